package public

import (
	"net/http"

	handlershared "github.com/quickbite/internal/http/handlers/shared"
	"github.com/quickbite/internal/service"

	"github.com/gin-gonic/gin"
)

// VNPayReturn 网关回跳：校验签名、建单，并 302 跳转到前端结果页
func (h *Handler) VNPayReturn(c *gin.Context) {
	log := handlershared.RequestLog(c).With("txn_ref", c.Query("vnp_TxnRef"), "response_code", c.Query("vnp_ResponseCode"))
	result, err := h.PaymentService.HandleReturn(c.Request.Context(), c.Request.URL.Query())
	if err != nil {
		if service.IsKind(err, service.KindCritical) {
			log.Errorw("vnpay_return_critical", "error", err)
		} else {
			log.Warnw("vnpay_return_failed", "error", err)
		}
	}
	if result != nil && result.RedirectURL != "" {
		c.Redirect(http.StatusFound, result.RedirectURL)
		return
	}
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
