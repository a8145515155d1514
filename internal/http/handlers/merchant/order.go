package merchant

import (
	"strings"
	"time"

	handlershared "github.com/quickbite/internal/http/handlers/shared"
	"github.com/quickbite/internal/http/response"
	"github.com/quickbite/internal/repository"
	"github.com/quickbite/internal/service"

	"github.com/gin-gonic/gin"
)

// UpdateOrderStatusRequest 更新订单状态请求
type UpdateOrderStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// UpdateOrderStatus 店主推进订单状态
func (h *Handler) UpdateOrderStatus(c *gin.Context) {
	uid, ok := handlershared.GetUserID(c)
	if !ok {
		return
	}
	orderID, ok := handlershared.ParamUint(c, "id")
	if !ok {
		return
	}
	var req UpdateOrderStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "status is required")
		return
	}
	order, err := h.OrderService.UpdateStatus(c.Request.Context(), service.UpdateOrderStatusInput{
		OperatorID: uid,
		OrderID:    orderID,
		Status:     req.Status,
	})
	if err != nil {
		handlershared.RespondServiceError(c, err)
		return
	}
	response.Success(c, order)
}

// ListStoreOrders 门店订单列表
func (h *Handler) ListStoreOrders(c *gin.Context) {
	uid, ok := handlershared.GetUserID(c)
	if !ok {
		return
	}
	storeID, ok := handlershared.ParamUint(c, "store_id")
	if !ok {
		return
	}
	page, pageSize := handlershared.QueryPagination(c)
	createdFrom, err := parseTimeNullable(strings.TrimSpace(c.Query("created_from")))
	if err != nil {
		response.BadRequest(c, "created_from must be RFC3339")
		return
	}
	createdTo, err := parseTimeNullable(strings.TrimSpace(c.Query("created_to")))
	if err != nil {
		response.BadRequest(c, "created_to must be RFC3339")
		return
	}
	orders, total, err := h.OrderService.ListStoreOrders(uid, repository.OrderListFilter{
		Page:        page,
		PageSize:    pageSize,
		StoreID:     storeID,
		Status:      strings.TrimSpace(c.Query("status")),
		OrderNumber: strings.TrimSpace(c.Query("order_number")),
		CreatedFrom: createdFrom,
		CreatedTo:   createdTo,
	})
	if err != nil {
		handlershared.RespondServiceError(c, err)
		return
	}
	response.SuccessWithPage(c, orders, response.NewPagination(page, pageSize, total))
}

func parseTimeNullable(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}
