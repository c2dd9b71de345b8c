package public

import (
	"errors"

	handlershared "github.com/pawpledge/internal/http/handlers/shared"
	"github.com/pawpledge/internal/http/response"
	"github.com/pawpledge/internal/service"

	"github.com/gin-gonic/gin"
)

// mappedHandlerError 定义业务错误到接口错误响应的映射关系。
type mappedHandlerError struct {
	target error
	code   int
	msg    string
}

// respondWithMappedError 命中规则时按规则输出，否则按错误类别输出
func respondWithMappedError(c *gin.Context, err error, rules []mappedHandlerError) {
	for _, rule := range rules {
		if errors.Is(err, rule.target) {
			if rule.code >= response.CodeInternal {
				respondError(c, rule.code, rule.msg, err)
				return
			}
			respondError(c, rule.code, rule.msg, nil)
			return
		}
	}
	handlershared.RespondServiceError(c, err)
}

func respondError(c *gin.Context, code int, msg string, err error) {
	handlershared.RespondError(c, code, msg, err)
}

var checkoutErrorRules = []mappedHandlerError{
	{target: service.ErrProviderUnavailable, code: response.CodeInternal, msg: "payment provider is not available"},
	{target: service.ErrAnimalInactive, code: response.CodeBadRequest, msg: "this animal is not accepting sponsorships"},
}

var authErrorRules = []mappedHandlerError{
	{target: service.ErrUserDisabled, code: response.CodeUnauthorized, msg: "account is disabled"},
}

// webhookStatus 回调接口的状态码：验签与报文错误为 400，其余失败为 500 以便提供方重投
func webhookStatus(err error) int {
	switch service.KindOf(err) {
	case service.KindValidation, service.KindAuthentication:
		return response.CodeBadRequest
	default:
		return response.CodeInternal
	}
}
