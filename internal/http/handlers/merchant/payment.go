package merchant

import (
	"strings"

	handlershared "github.com/quickbite/internal/http/handlers/shared"
	"github.com/quickbite/internal/http/response"
	"github.com/quickbite/internal/models"
	"github.com/quickbite/internal/service"

	"github.com/gin-gonic/gin"
)

// RefundRequest 退款请求（order_id 与 transaction_id 二选一）
type RefundRequest struct {
	OrderID       uint         `json:"order_id"`
	TransactionID string       `json:"transaction_id"`
	Amount        models.Money `json:"amount"`
}

// RefundPayment 店主发起退款
func (h *Handler) RefundPayment(c *gin.Context) {
	uid, ok := handlershared.GetUserID(c)
	if !ok {
		return
	}
	var req RefundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}
	refund, err := h.PaymentService.Refund(c.Request.Context(), service.RefundInput{
		OperatorID:    uid,
		OrderID:       req.OrderID,
		TransactionID: strings.TrimSpace(req.TransactionID),
		Amount:        req.Amount,
		ClientIP:      c.ClientIP(),
	})
	if err != nil {
		handlershared.RespondServiceError(c, err)
		return
	}
	response.Success(c, refund)
}
