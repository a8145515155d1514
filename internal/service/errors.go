package service

import (
	"errors"
	"net/http"
)

// ErrorKind 业务错误分类
type ErrorKind int

const (
	KindValidation ErrorKind = iota + 1
	KindNotFound
	KindConflict
	KindState
	KindExternalGateway
	KindCritical
)

// String 返回分类名称
func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindState:
		return "state"
	case KindExternalGateway:
		return "external_gateway"
	case KindCritical:
		return "critical_inconsistency"
	default:
		return "unknown"
	}
}

// HTTPStatus 分类对应的 HTTP 状态码
func (k ErrorKind) HTTPStatus() int {
	switch k {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindState:
		return http.StatusUnprocessableEntity
	case KindExternalGateway:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// DomainError 带分类与机器码的业务错误
type DomainError struct {
	Kind    ErrorKind
	Code    string
	Message string
}

func (e *DomainError) Error() string {
	return e.Message
}

func newDomainError(kind ErrorKind, code, message string) *DomainError {
	return &DomainError{Kind: kind, Code: code, Message: message}
}

// AsDomainError 提取错误链中的业务错误
func AsDomainError(err error) (*DomainError, bool) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr, true
	}
	return nil, false
}

// IsKind 判断错误是否属于指定分类
func IsKind(err error, kind ErrorKind) bool {
	domainErr, ok := AsDomainError(err)
	return ok && domainErr.Kind == kind
}

var (
	// 参数校验
	ErrInvalidInput       = newDomainError(KindValidation, "invalid_input", "invalid input")
	ErrInvalidCartAction  = newDomainError(KindValidation, "invalid_cart_action", "action must be add, update or remove")
	ErrInvalidQuantity    = newDomainError(KindValidation, "invalid_quantity", "quantity must not be negative")
	ErrDishNotInStore     = newDomainError(KindValidation, "dish_not_in_store", "dish does not belong to store")
	ErrToppingNotInStore  = newDomainError(KindValidation, "topping_not_in_store", "topping does not belong to store")
	ErrToppingGroupOnce   = newDomainError(KindValidation, "topping_group_only_once", "only one topping may be chosen from this group")
	ErrVoucherNotInStore  = newDomainError(KindValidation, "voucher_not_in_store", "voucher does not belong to store")
	ErrInvalidRefund      = newDomainError(KindValidation, "invalid_refund_amount", "refund amount exceeds refundable balance")
	ErrInvalidOrderStatus = newDomainError(KindValidation, "invalid_order_status", "unknown order status")

	// 资源不存在
	ErrStoreNotFound       = newDomainError(KindNotFound, "store_not_found", "store not found")
	ErrDishNotFound        = newDomainError(KindNotFound, "dish_not_found", "dish not found")
	ErrCartNotFound        = newDomainError(KindNotFound, "cart_not_found", "cart not found")
	ErrVoucherNotFound     = newDomainError(KindNotFound, "voucher_not_found", "voucher not found")
	ErrOrderNotFound       = newDomainError(KindNotFound, "order_not_found", "order not found")
	ErrPaymentNotFound     = newDomainError(KindNotFound, "payment_not_found", "payment not found")
	ErrInvalidJoinToken    = newDomainError(KindNotFound, "invalid_join_token", "group cart invitation not found")
	ErrParticipantNotFound = newDomainError(KindNotFound, "participant_not_found", "participant not found")

	// 资源冲突
	ErrInsufficientStock     = newDomainError(KindConflict, "insufficient_stock", "insufficient stock")
	ErrVoucherInactive       = newDomainError(KindConflict, "voucher_inactive", "voucher is not active")
	ErrVoucherExpired        = newDomainError(KindConflict, "voucher_expired", "voucher is outside its validity window")
	ErrVoucherMinOrder       = newDomainError(KindConflict, "voucher_below_minimum", "order amount is below the voucher minimum")
	ErrVoucherNotStackable   = newDomainError(KindConflict, "voucher_not_stackable", "voucher cannot be combined with the selected vouchers")
	ErrVoucherUsageExceeded  = newDomainError(KindConflict, "voucher_usage_exceeded", "voucher usage limit reached")
	ErrPaymentAmountMismatch = newDomainError(KindConflict, "payment_amount_mismatch", "paid amount does not match the order total")

	// 状态错误
	ErrCartCompleted           = newDomainError(KindState, "cart_completed", "cart has already been placed")
	ErrCartExpired             = newDomainError(KindState, "cart_expired", "cart has expired")
	ErrCartLocked              = newDomainError(KindState, "cart_locked", "group cart is locked by the owner")
	ErrCartPaymentPending      = newDomainError(KindState, "cart_payment_pending", "cart has an online payment in progress")
	ErrCartNotGroup            = newDomainError(KindState, "cart_not_group", "cart is not a group cart")
	ErrCartEmpty               = newDomainError(KindState, "cart_empty", "cart has no items")
	ErrNotCartOwner            = newDomainError(KindState, "not_cart_owner", "only the cart owner may do this")
	ErrNotCartMember           = newDomainError(KindState, "not_cart_member", "user is not a member of this cart")
	ErrParticipantRemoved      = newDomainError(KindState, "participant_removed", "participant has been removed from the group cart")
	ErrOwnerCannotLeave        = newDomainError(KindState, "owner_cannot_leave", "the owner cannot leave the group cart")
	ErrNotStoreOwner           = newDomainError(KindState, "not_store_owner", "only the store owner may do this")
	ErrOrderStatusAlreadySet   = newDomainError(KindState, "order_status_already_set", "order already has this status")
	ErrInvalidStatusTransition = newDomainError(KindState, "invalid_status_transition", "order status transition is not allowed")
	ErrNonPositiveTotal        = newDomainError(KindState, "non_positive_total", "online payment requires a positive total")
	ErrOrderNotPaid            = newDomainError(KindState, "order_not_paid", "order has no captured online payment")

	// 外部网关
	ErrGatewayUnavailable    = newDomainError(KindExternalGateway, "gateway_unavailable", "payment gateway is unavailable")
	ErrGatewayBadSignature   = newDomainError(KindExternalGateway, "gateway_bad_signature", "payment gateway signature mismatch")
	ErrGatewayRefundRejected = newDomainError(KindExternalGateway, "gateway_refund_rejected", "payment gateway rejected the refund")

	// 严重不一致：网关已扣款但订单未落库
	ErrCriticalInconsistency = newDomainError(KindCritical, "critical_inconsistency", "payment captured but order could not be created")
)
