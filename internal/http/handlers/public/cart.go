package public

import (
	"github.com/quickbite/internal/http/response"
	"github.com/quickbite/internal/models"
	"github.com/quickbite/internal/service"

	"github.com/gin-gonic/gin"
)

// UpsertCartItemRequest 购物车行变更请求
type UpsertCartItemRequest struct {
	StoreID    uint   `json:"store_id" binding:"required"`
	DishID     uint   `json:"dish_id" binding:"required"`
	Quantity   int    `json:"quantity"`
	ToppingIDs []uint `json:"topping_ids"`
	Note       string `json:"note"`
	Action     string `json:"action"` // add / update / remove，缺省为 add
}

// ApplyVoucherRequest 选择优惠券请求
type ApplyVoucherRequest struct {
	VoucherID uint `json:"voucher_id" binding:"required"`
}

// CheckoutRequest 结账请求
type CheckoutRequest struct {
	Delivery    models.DeliveryInfo `json:"delivery"`
	VoucherIDs  []uint              `json:"voucher_ids"` // 缺省沿用购物车已选优惠券，[] 表示清空
	ShippingFee models.Money        `json:"shipping_fee"`
}

func (r CheckoutRequest) toInput(userID, cartID uint, clientIP string) service.CheckoutInput {
	return service.CheckoutInput{
		UserID:      userID,
		CartID:      cartID,
		Delivery:    r.Delivery,
		VoucherIDs:  r.VoucherIDs,
		ShippingFee: r.ShippingFee,
		ClientIP:    clientIP,
	}
}

// ListCarts 当前用户的活跃购物车（含参与的拼单）
func (h *Handler) ListCarts(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	carts, err := h.CartService.ListCarts(uid)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, carts)
}

// GetStoreCart 当前用户在门店的购物车及报价
func (h *Handler) GetStoreCart(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	storeID, ok := paramUint(c, "store_id")
	if !ok {
		return
	}
	view, err := h.CartService.GetCart(uid, storeID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, view)
}

// QuoteCart 购物车报价
func (h *Handler) QuoteCart(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	cartID, ok := paramUint(c, "id")
	if !ok {
		return
	}
	view, err := h.CartService.Quote(uid, cartID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, view)
}

// UpsertCartItem 添加、修改或移除购物车行
func (h *Handler) UpsertCartItem(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	var req UpsertCartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}
	cart, err := h.CartService.UpsertItem(c.Request.Context(), service.UpsertCartItemInput{
		UserID:     uid,
		StoreID:    req.StoreID,
		DishID:     req.DishID,
		Quantity:   req.Quantity,
		ToppingIDs: req.ToppingIDs,
		Note:       req.Note,
		Action:     req.Action,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	if cart == nil {
		response.Success(c, gin.H{"cart": nil, "deleted": true})
		return
	}
	view, err := h.CartService.Quote(uid, cart.ID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, view)
}

// ApplyVoucher 为购物车选择优惠券
func (h *Handler) ApplyVoucher(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	cartID, ok := paramUint(c, "id")
	if !ok {
		return
	}
	var req ApplyVoucherRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}
	view, err := h.CartService.ApplyVoucher(c.Request.Context(), uid, cartID, req.VoucherID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, view)
}

// RemoveVoucher 取消已选优惠券
func (h *Handler) RemoveVoucher(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	cartID, ok := paramUint(c, "id")
	if !ok {
		return
	}
	voucherID, ok := paramUint(c, "voucher_id")
	if !ok {
		return
	}
	view, err := h.CartService.RemoveVoucher(c.Request.Context(), uid, cartID, voucherID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, view)
}

// ClearStoreCart 清空当前用户在门店的私有购物车
func (h *Handler) ClearStoreCart(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	storeID, ok := paramUint(c, "store_id")
	if !ok {
		return
	}
	if err := h.CartService.ClearStoreCart(c.Request.Context(), uid, storeID); err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, gin.H{"deleted": true})
}

// ClearCarts 清空当前用户全部私有购物车
func (h *Handler) ClearCarts(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	cleared, err := h.CartService.ClearAll(c.Request.Context(), uid)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, gin.H{"cleared": cleared})
}

// ListStoreVouchers 门店当前对该用户可用的优惠券
func (h *Handler) ListStoreVouchers(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	storeID, ok := paramUint(c, "store_id")
	if !ok {
		return
	}
	vouchers, err := h.CartService.ListStoreVouchers(uid, storeID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, vouchers)
}

// ReorderOrder 按历史订单重建购物车
func (h *Handler) ReorderOrder(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	orderID, ok := paramUint(c, "id")
	if !ok {
		return
	}
	view, err := h.CartService.Reorder(c.Request.Context(), uid, orderID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.Created(c, view)
}

// CheckoutCash 私有购物车现金下单
func (h *Handler) CheckoutCash(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	cartID, ok := paramUint(c, "id")
	if !ok {
		return
	}
	var req CheckoutRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	order, err := h.PaymentService.CheckoutCash(c.Request.Context(), req.toInput(uid, cartID, c.ClientIP()))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.Created(c, order)
}

// CheckoutVNPay 生成 VNPay 支付链接
func (h *Handler) CheckoutVNPay(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	cartID, ok := paramUint(c, "id")
	if !ok {
		return
	}
	var req CheckoutRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	result, err := h.PaymentService.RequestCheckoutURL(c.Request.Context(), req.toInput(uid, cartID, c.ClientIP()))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, result)
}
