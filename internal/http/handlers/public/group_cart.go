package public

import (
	"strings"

	"github.com/quickbite/internal/http/response"
	"github.com/quickbite/internal/service"

	"github.com/gin-gonic/gin"
)

// JoinGroupCartRequest 加入拼单请求
type JoinGroupCartRequest struct {
	Token string `json:"token" binding:"required"`
}

// UpsertGroupItemRequest 拼单行变更请求
type UpsertGroupItemRequest struct {
	DishID     uint   `json:"dish_id" binding:"required"`
	Quantity   int    `json:"quantity"`
	ToppingIDs []uint `json:"topping_ids"`
	Note       string `json:"note"`
	Action     string `json:"action"`
}

// EnableGroupCart 将私有购物车转为拼单
func (h *Handler) EnableGroupCart(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	cartID, ok := paramUint(c, "id")
	if !ok {
		return
	}
	cart, err := h.GroupCartService.Enable(c.Request.Context(), uid, cartID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, cart)
}

// JoinGroupCart 通过邀请码加入拼单
func (h *Handler) JoinGroupCart(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	var req JoinGroupCartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}
	cart, err := h.GroupCartService.Join(c.Request.Context(), strings.TrimSpace(req.Token), uid)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, cart)
}

// LockGroupCart 车主锁定拼单
func (h *Handler) LockGroupCart(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	cartID, ok := paramUint(c, "id")
	if !ok {
		return
	}
	cart, err := h.GroupCartService.Lock(c.Request.Context(), uid, cartID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, cart)
}

// UnlockGroupCart 车主解锁拼单
func (h *Handler) UnlockGroupCart(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	cartID, ok := paramUint(c, "id")
	if !ok {
		return
	}
	cart, err := h.GroupCartService.Unlock(c.Request.Context(), uid, cartID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, cart)
}

// LeaveGroupCart 成员退出拼单
func (h *Handler) LeaveGroupCart(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	cartID, ok := paramUint(c, "id")
	if !ok {
		return
	}
	if err := h.GroupCartService.Leave(c.Request.Context(), uid, cartID); err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, gin.H{"left": true})
}

// RemoveGroupParticipant 车主移除成员
func (h *Handler) RemoveGroupParticipant(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	cartID, ok := paramUint(c, "id")
	if !ok {
		return
	}
	participantID, ok := paramUint(c, "user_id")
	if !ok {
		return
	}
	if err := h.GroupCartService.RemoveParticipant(c.Request.Context(), uid, cartID, participantID); err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, gin.H{"removed": true})
}

// UpsertGroupItem 成员修改自己在拼单中的行
func (h *Handler) UpsertGroupItem(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	cartID, ok := paramUint(c, "id")
	if !ok {
		return
	}
	var req UpsertGroupItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}
	if _, err := h.GroupCartService.UpsertItem(c.Request.Context(), service.UpsertGroupItemInput{
		UserID:     uid,
		CartID:     cartID,
		DishID:     req.DishID,
		Quantity:   req.Quantity,
		ToppingIDs: req.ToppingIDs,
		Note:       req.Note,
		Action:     req.Action,
	}); err != nil {
		respondServiceError(c, err)
		return
	}
	view, err := h.CartService.Quote(uid, cartID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, view)
}

// CompleteGroupCart 车主提交拼单（现金）
func (h *Handler) CompleteGroupCart(c *gin.Context) {
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
	order, err := h.GroupCartService.Complete(c.Request.Context(), uid, req.toInput(uid, cartID, c.ClientIP()))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.Created(c, order)
}
