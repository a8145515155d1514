package constants

// 购物车模式常量
const (
	CartModePrivate = "private"
	CartModeGroup   = "group"
)

// 购物车操作常量
const (
	CartActionAdd    = "add"
	CartActionUpdate = "update"
	CartActionRemove = "remove"
)

// 购物车活动记录类型
const (
	CartActivityAddItem           = "add_item"
	CartActivityUpdateItem        = "update_item"
	CartActivityRemoveItem        = "remove_item"
	CartActivityJoin              = "join"
	CartActivityLeave             = "leave"
	CartActivityRemoveParticipant = "remove_participant"
	CartActivityLock              = "lock"
	CartActivityUnlock            = "unlock"
)

// 拼单参与者状态常量
const (
	ParticipantStatusActive    = "active"
	ParticipantStatusLocking   = "locking"
	ParticipantStatusRemoved   = "removed"
	ParticipantStatusCompleted = "completed"
)

// 优惠券类型常量
const (
	VoucherTypePercentage = "PERCENTAGE"
	VoucherTypeFixed      = "FIXED"
)

// 优惠券叠加策略
const (
	VoucherStackingAll           = "all"
	VoucherStackingStackableOnly = "stackable_only"
)

// 支付方式常量
const (
	PaymentMethodCash  = "cash"
	PaymentMethodVNPay = "vnpay"
)

// 订单支付状态常量
const (
	OrderPaymentUnpaid   = "unpaid"
	OrderPaymentPaid     = "paid"
	OrderPaymentRefunded = "refunded"
)

// 支付记录状态常量
const (
	PaymentStatusSuccess  = "success"
	PaymentStatusRefunded = "refunded"
	PaymentStatusFailed   = "failed"
)

// 支付提供方常量
const (
	PaymentProviderVNPay = "vnpay"
)

// 支付异常状态常量
const (
	PaymentIncidentOpen     = "open"
	PaymentIncidentAlerted  = "alerted"
	PaymentIncidentResolved = "resolved"
)

// 发票状态常量
const (
	InvoiceStatusIssued    = "issued"
	InvoiceStatusPaid      = "paid"
	InvoiceStatusRefunded  = "refunded"
	InvoiceStatusCancelled = "cancelled"
)

// 序列号类型常量
const (
	SequenceTypeOrder   = "order"
	SequenceTypeInvoice = "invoice"
)

// 站内通知类型常量
const (
	NotificationTypeNewOrder     = "new_order"
	NotificationTypeOrderSuccess = "order_success"
	NotificationTypeOrderStatus  = "order_status"
)

// 实时事件类型常量
const (
	EventCartUpdated         = "cart.updated"
	EventGroupCartJoined     = "group_cart.joined"
	EventGroupCartLeft       = "group_cart.left"
	EventGroupCartLocked     = "group_cart.locked"
	EventGroupCartUnlocked   = "group_cart.unlocked"
	EventGroupCartCompleted  = "group_cart.completed"
	EventOrderCreated        = "order.created"
	EventOrderStatusChanged  = "order.status_changed"
	EventNotificationCreated = "notification.created"
	EventPaymentIncident     = "payment.incident"
)

// 队列与任务常量
const (
	QueueDefault             = "default"
	QueueCritical            = "critical"
	TaskOrderPlacedNotify    = "order:placed_notify"
	TaskOrderStatusNotify    = "order:status_notify"
	TaskPaymentIncidentAlert = "payment:incident_alert"
)
