package shared

import (
	"errors"

	"github.com/pawpledge/internal/http/response"
	"github.com/pawpledge/internal/logger"
	"github.com/pawpledge/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RequestLog 提供携带 request_id 的日志实例。
func RequestLog(c *gin.Context) *zap.SugaredLogger {
	if c == nil {
		return logger.S()
	}
	if requestID, ok := c.Get("request_id"); ok {
		if id, ok := requestID.(string); ok && id != "" {
			return logger.SW("request_id", id)
		}
	}
	return logger.S()
}

// RespondError 返回错误响应，并在有原始错误时记录日志。
func RespondError(c *gin.Context, code int, msg string, err error) {
	if err != nil {
		RequestLog(c).Errorw("handler_error",
			"code", code,
			"message", msg,
			"path", c.FullPath(),
			"error", err,
		)
	}
	response.Error(c, code, msg)
}

// StatusForKind 业务错误类别对应的状态码
func StatusForKind(kind service.ErrorKind) int {
	switch kind {
	case service.KindValidation:
		return response.CodeBadRequest
	case service.KindAuthentication:
		return response.CodeUnauthorized
	case service.KindAuthorization, service.KindNotFound:
		return response.CodeNotFound
	case service.KindConflict:
		return response.CodeConflict
	default:
		return response.CodeInternal
	}
}

// ServiceErrorMessage 对外展示的错误消息，内部错误不泄露细节
func ServiceErrorMessage(err error) string {
	var target *service.Error
	if !errors.As(err, &target) {
		return "internal server error"
	}
	switch target.Kind {
	case service.KindProvider:
		return "payment provider request failed"
	case service.KindInternal:
		return "internal server error"
	}
	return target.Msg
}

// RespondServiceError 按业务错误类别输出响应，5xx 记录原始错误
func RespondServiceError(c *gin.Context, err error) {
	code := StatusForKind(service.KindOf(err))
	msg := ServiceErrorMessage(err)
	if code >= response.CodeInternal {
		RespondError(c, code, msg, err)
		return
	}
	RequestLog(c).Infow("handler_rejected",
		"code", code,
		"kind", string(service.KindOf(err)),
		"message", msg,
	)
	response.Error(c, code, msg)
}
