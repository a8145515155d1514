package public

import (
	"strings"

	handlershared "github.com/quickbite/internal/http/handlers/shared"
	"github.com/quickbite/internal/http/response"
	"github.com/quickbite/internal/repository"

	"github.com/gin-gonic/gin"
)

// ListOrders 当前用户订单（含参与的拼单）
func (h *Handler) ListOrders(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	page, pageSize := handlershared.QueryPagination(c)
	orders, total, err := h.OrderService.ListOrders(repository.OrderListFilter{
		Page:     page,
		PageSize: pageSize,
		UserID:   uid,
		Status:   strings.TrimSpace(c.Query("status")),
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.SuccessWithPage(c, orders, response.NewPagination(page, pageSize, total))
}

// GetOrder 订单详情
func (h *Handler) GetOrder(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	orderID, ok := paramUint(c, "id")
	if !ok {
		return
	}
	detail, err := h.OrderService.GetOrder(uid, orderID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, detail)
}

// ListNotifications 当前用户通知
func (h *Handler) ListNotifications(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	page, pageSize := handlershared.QueryPagination(c)
	notifications, total, err := h.NotificationService.List(uid, page, pageSize)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.SuccessWithPage(c, notifications, response.NewPagination(page, pageSize, total))
}
