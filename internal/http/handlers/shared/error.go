package shared

import (
	"github.com/quickbite/internal/http/response"
	"github.com/quickbite/internal/logger"
	"github.com/quickbite/internal/service"

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
func RespondError(c *gin.Context, code int, reason, msg string, err error) {
	appErr := response.WrapError(code, reason, msg, err)
	if err != nil {
		RequestLog(c).Errorw("handler_error",
			"code", appErr.Code,
			"reason", appErr.Reason,
			"message", appErr.Message,
			"error", err,
		)
	}
	response.Error(c, appErr.Code, appErr.Reason, appErr.Message)
}

// RespondServiceError 按业务错误分类映射响应；非业务错误按 500 处理并记录日志。
func RespondServiceError(c *gin.Context, err error) {
	domainErr, ok := service.AsDomainError(err)
	if !ok {
		RespondError(c, response.CodeInternal, "internal_server_error", "internal server error", err)
		return
	}
	status := domainErr.Kind.HTTPStatus()
	switch domainErr.Kind {
	case service.KindCritical, service.KindExternalGateway:
		RequestLog(c).Errorw("handler_service_error", "kind", domainErr.Kind.String(), "code", domainErr.Code, "error", err)
	default:
		RequestLog(c).Debugw("handler_service_error", "kind", domainErr.Kind.String(), "code", domainErr.Code, "error", err)
	}
	response.Error(c, status, domainErr.Code, domainErr.Message)
}
