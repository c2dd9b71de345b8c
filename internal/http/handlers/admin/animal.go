package admin

import (
	handlershared "github.com/pawpledge/internal/http/handlers/shared"
	"github.com/pawpledge/internal/http/response"
	"github.com/pawpledge/internal/service"

	"github.com/gin-gonic/gin"
)

// UpsertAnimalRequest 新建或更新动物档案
type UpsertAnimalRequest struct {
	ID          string `json:"id" validate:"required,max=64"`
	Name        string `json:"name" validate:"required,max=120"`
	Species     string `json:"species" validate:"omitempty,max=40"`
	Status      string `json:"status" validate:"omitempty,oneof=active adopted inactive"`
	Description string `json:"description"`
}

// UpdateAnimalStatusRequest 更新动物状态
type UpdateAnimalStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=active adopted inactive"`
}

// UpsertAnimal 新建或更新动物档案
func (h *Handler) UpsertAnimal(c *gin.Context) {
	adminID, ok := getAdminID(c)
	if !ok {
		return
	}
	var req UpsertAnimalRequest
	if err := handlershared.BindStrictJSON(c, &req); err != nil {
		respondError(c, response.CodeBadRequest, err.Error(), nil)
		return
	}
	animal, err := h.AnimalService.Upsert(c.Request.Context(), service.UpsertAnimalInput{
		ID:          req.ID,
		Name:        req.Name,
		Species:     req.Species,
		Status:      req.Status,
		Description: req.Description,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	requestLog(c).Infow("admin_animal_upserted", "animal_id", animal.ID, "status", animal.Status, "operator_id", adminID)
	response.Success(c, animal)
}

// UpdateAnimalStatus 更新动物状态
func (h *Handler) UpdateAnimalStatus(c *gin.Context) {
	adminID, ok := getAdminID(c)
	if !ok {
		return
	}
	var req UpdateAnimalStatusRequest
	if err := handlershared.BindStrictJSON(c, &req); err != nil {
		respondError(c, response.CodeBadRequest, err.Error(), nil)
		return
	}
	id := c.Param("id")
	if err := h.AnimalService.SetStatus(c.Request.Context(), id, req.Status); err != nil {
		respondServiceError(c, err)
		return
	}
	requestLog(c).Infow("admin_animal_status_updated", "animal_id", id, "status", req.Status, "operator_id", adminID)
	response.Success(c, gin.H{"id": id, "status": req.Status})
}
