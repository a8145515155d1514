package queue

import (
	"encoding/json"

	"github.com/quickbite/internal/constants"

	"github.com/hibiken/asynq"
)

const (
	// TaskOrderPlacedNotify 新订单通知任务
	TaskOrderPlacedNotify = constants.TaskOrderPlacedNotify
	// TaskOrderStatusNotify 订单状态变更通知任务
	TaskOrderStatusNotify = constants.TaskOrderStatusNotify
	// TaskPaymentIncidentAlert 支付异常告警任务
	TaskPaymentIncidentAlert = constants.TaskPaymentIncidentAlert
)

// OrderPlacedNotifyPayload 新订单通知任务载荷
type OrderPlacedNotifyPayload struct {
	OrderID uint `json:"order_id"`
}

// OrderStatusNotifyPayload 订单状态变更通知任务载荷
type OrderStatusNotifyPayload struct {
	OrderID uint   `json:"order_id"`
	Status  string `json:"status"`
}

// PaymentIncidentAlertPayload 支付异常告警任务载荷
type PaymentIncidentAlertPayload struct {
	IncidentID    uint   `json:"incident_id"`
	TransactionID string `json:"transaction_id"`
}

// NewOrderPlacedNotifyTask 创建新订单通知任务
func NewOrderPlacedNotifyTask(payload OrderPlacedNotifyPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskOrderPlacedNotify, body), nil
}

// NewOrderStatusNotifyTask 创建订单状态变更通知任务
func NewOrderStatusNotifyTask(payload OrderStatusNotifyPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskOrderStatusNotify, body), nil
}

// NewPaymentIncidentAlertTask 创建支付异常告警任务
func NewPaymentIncidentAlertTask(payload PaymentIncidentAlertPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskPaymentIncidentAlert, body), nil
}
