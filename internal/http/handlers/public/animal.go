package public

import (
	"strings"

	handlershared "github.com/pawpledge/internal/http/handlers/shared"
	"github.com/pawpledge/internal/http/response"
	"github.com/pawpledge/internal/repository"

	"github.com/gin-gonic/gin"
)

// ListAnimals 公开动物列表，仅展示可资助的动物
func (h *Handler) ListAnimals(c *gin.Context) {
	page, pageSize := handlershared.QueryPagination(c)
	animals, total, err := h.AnimalService.List(c.Request.Context(), repository.AnimalListFilter{
		Page:       page,
		PageSize:   pageSize,
		Species:    strings.ToLower(strings.TrimSpace(c.Query("species"))),
		Search:     strings.TrimSpace(c.Query("search")),
		OnlyActive: true,
	})
	if err != nil {
		handlershared.RespondServiceError(c, err)
		return
	}
	response.SuccessWithPage(c, animals, response.BuildPagination(page, pageSize, total))
}

// GetAnimal 动物详情
func (h *Handler) GetAnimal(c *gin.Context) {
	animal, err := h.AnimalService.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		handlershared.RespondServiceError(c, err)
		return
	}
	response.Success(c, animal)
}
