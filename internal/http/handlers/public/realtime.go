package public

import (
	"net/http"

	handlershared "github.com/quickbite/internal/http/handlers/shared"
	"github.com/quickbite/internal/http/response"

	"github.com/gin-gonic/gin"
)

// ServeWS 升级为 WebSocket 事件流（自动订阅 user 频道，其余频道由客户端指令订阅）
func (h *Handler) ServeWS(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	if h.Hub == nil {
		response.Error(c, http.StatusServiceUnavailable, "realtime_disabled", "realtime events are disabled")
		return
	}
	// 升级失败时 upgrader 已写出 HTTP 错误
	if err := h.Hub.ServeWS(c.Writer, c.Request, uid); err != nil {
		handlershared.RequestLog(c).Warnw("realtime_upgrade_failed", "user_id", uid, "error", err)
	}
}
