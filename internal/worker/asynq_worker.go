package worker

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/quickbite/internal/logger"
	"github.com/quickbite/internal/provider"
	"github.com/quickbite/internal/queue"
	"github.com/quickbite/internal/service"

	"github.com/hibiken/asynq"
)

// Consumer 异步任务消费者
type Consumer struct {
	*provider.Container
}

// NewConsumer 创建消费者
func NewConsumer(c *provider.Container) *Consumer {
	return &Consumer{
		Container: c,
	}
}

// Register 注册消费者
func (c *Consumer) Register(mux *asynq.ServeMux) {
	if c == nil || mux == nil {
		logger.Debugw("worker_register_skip_nil", "consumer_nil", c == nil, "mux_nil", mux == nil)
		return
	}
	mux.HandleFunc(queue.TaskOrderPlacedNotify, c.handleOrderPlacedNotify)
	mux.HandleFunc(queue.TaskOrderStatusNotify, c.handleOrderStatusNotify)
	mux.HandleFunc(queue.TaskPaymentIncidentAlert, c.handlePaymentIncidentAlert)
}

func (c *Consumer) handleOrderPlacedNotify(ctx context.Context, task *asynq.Task) error {
	if c == nil || task == nil || c.Container == nil {
		logger.Debugw("worker_order_placed_notify_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.OrderPlacedNotifyPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_order_placed_notify_unmarshal_failed", "error", err)
		return err
	}
	if payload.OrderID == 0 {
		logger.Debugw("worker_order_placed_notify_skip_invalid_payload", "order_id", payload.OrderID)
		return nil
	}
	if c.NotificationService == nil {
		logger.Warnw("worker_order_placed_notify_skip_service_nil", "order_id", payload.OrderID)
		return nil
	}
	if err := c.NotificationService.NotifyOrderPlaced(ctx, payload.OrderID); err != nil {
		if errors.Is(err, service.ErrOrderNotFound) {
			logger.Debugw("worker_order_placed_notify_skip_order_not_found", "order_id", payload.OrderID)
			return nil
		}
		logger.Warnw("worker_order_placed_notify_failed", "order_id", payload.OrderID, "error", err)
		return err
	}
	return nil
}

func (c *Consumer) handleOrderStatusNotify(ctx context.Context, task *asynq.Task) error {
	if c == nil || task == nil || c.Container == nil {
		logger.Debugw("worker_order_status_notify_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.OrderStatusNotifyPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_order_status_notify_unmarshal_failed", "error", err)
		return err
	}
	status := strings.TrimSpace(payload.Status)
	if payload.OrderID == 0 || status == "" {
		logger.Debugw("worker_order_status_notify_skip_invalid_payload", "order_id", payload.OrderID, "status", status)
		return nil
	}
	if c.NotificationService == nil {
		logger.Warnw("worker_order_status_notify_skip_service_nil", "order_id", payload.OrderID)
		return nil
	}
	if err := c.NotificationService.NotifyOrderStatus(ctx, payload.OrderID, status); err != nil {
		if errors.Is(err, service.ErrOrderNotFound) {
			logger.Debugw("worker_order_status_notify_skip_order_not_found", "order_id", payload.OrderID)
			return nil
		}
		logger.Warnw("worker_order_status_notify_failed", "order_id", payload.OrderID, "status", status, "error", err)
		return err
	}
	return nil
}

func (c *Consumer) handlePaymentIncidentAlert(ctx context.Context, task *asynq.Task) error {
	if c == nil || task == nil || c.Container == nil {
		logger.Debugw("worker_payment_incident_alert_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.PaymentIncidentAlertPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_payment_incident_alert_unmarshal_failed", "error", err)
		return err
	}
	transactionID := strings.TrimSpace(payload.TransactionID)
	if transactionID == "" {
		logger.Debugw("worker_payment_incident_alert_skip_invalid_payload", "incident_id", payload.IncidentID)
		return nil
	}
	if c.PaymentService == nil {
		logger.Warnw("worker_payment_incident_alert_skip_service_nil", "incident_id", payload.IncidentID)
		return nil
	}
	if err := c.PaymentService.AlertIncident(ctx, transactionID); err != nil {
		if errors.Is(err, service.ErrPaymentNotFound) {
			logger.Debugw("worker_payment_incident_alert_skip_not_found", "incident_id", payload.IncidentID, "transaction_id", transactionID)
			return nil
		}
		// 告警失败交给 asynq 重试
		logger.Errorw("worker_payment_incident_alert_failed", "incident_id", payload.IncidentID, "transaction_id", transactionID, "error", err)
		return err
	}
	return nil
}
