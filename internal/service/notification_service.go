package service

import (
	"context"
	"fmt"

	"github.com/quickbite/internal/constants"
	"github.com/quickbite/internal/events"
	"github.com/quickbite/internal/logger"
	"github.com/quickbite/internal/models"
	"github.com/quickbite/internal/queue"
	"github.com/quickbite/internal/repository"

	"github.com/hibiken/asynq"
)

// NotificationService 站内通知与实时推送
type NotificationService struct {
	notificationRepo repository.NotificationRepository
	orderRepo        repository.OrderRepository
	catalogRepo      repository.CatalogRepository
	publisher        events.Publisher
	queueClient      *queue.Client
}

// NewNotificationService 创建通知服务
func NewNotificationService(
	notificationRepo repository.NotificationRepository,
	orderRepo repository.OrderRepository,
	catalogRepo repository.CatalogRepository,
	publisher events.Publisher,
	queueClient *queue.Client,
) *NotificationService {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &NotificationService{
		notificationRepo: notificationRepo,
		orderRepo:        orderRepo,
		catalogRepo:      catalogRepo,
		publisher:        publisher,
		queueClient:      queueClient,
	}
}

// OrderPlaced 下单后通知门店与下单用户，队列可用时异步处理
func (s *NotificationService) OrderPlaced(ctx context.Context, orderID uint) {
	if s == nil || orderID == 0 {
		return
	}
	if s.queueClient.Enabled() {
		err := s.queueClient.EnqueueOrderPlacedNotify(queue.OrderPlacedNotifyPayload{OrderID: orderID}, asynq.MaxRetry(5))
		if err == nil {
			return
		}
		logger.Warnw("order_placed_notify_enqueue_failed", "order_id", orderID, "error", err)
	}
	if err := s.NotifyOrderPlaced(ctx, orderID); err != nil {
		logger.Warnw("order_placed_notify_failed", "order_id", orderID, "error", err)
	}
}

// OrderStatusChanged 订单状态变更后通知用户
func (s *NotificationService) OrderStatusChanged(ctx context.Context, orderID uint, status models.OrderStatus) {
	if s == nil || orderID == 0 {
		return
	}
	if s.queueClient.Enabled() {
		err := s.queueClient.EnqueueOrderStatusNotify(queue.OrderStatusNotifyPayload{OrderID: orderID, Status: string(status)}, asynq.MaxRetry(5))
		if err == nil {
			return
		}
		logger.Warnw("order_status_notify_enqueue_failed", "order_id", orderID, "status", status, "error", err)
	}
	if err := s.NotifyOrderStatus(ctx, orderID, string(status)); err != nil {
		logger.Warnw("order_status_notify_failed", "order_id", orderID, "status", status, "error", err)
	}
}

// NotifyOrderPlaced 写入新订单通知并推送
func (s *NotificationService) NotifyOrderPlaced(ctx context.Context, orderID uint) error {
	order, err := s.orderRepo.GetByID(orderID)
	if err != nil {
		return err
	}
	if order == nil {
		return ErrOrderNotFound
	}
	store, err := s.catalogRepo.GetStore(order.StoreID)
	if err != nil {
		return err
	}

	if store != nil && store.OwnerID != 0 {
		title := "New order"
		if order.IsGroupOrder {
			title = "New group order"
		}
		if err := s.create(ctx, &models.Notification{
			UserID:  store.OwnerID,
			OrderID: order.ID,
			Title:   title,
			Message: fmt.Sprintf("Order %s is waiting for confirmation (%s %s)", order.OrderNumber, order.FinalTotal.String(), order.Currency),
			Type:    constants.NotificationTypeNewOrder,
		}, events.StoreChannel(order.StoreID)); err != nil {
			return err
		}
	}

	return s.create(ctx, &models.Notification{
		UserID:  order.UserID,
		OrderID: order.ID,
		Title:   "Order placed",
		Message: fmt.Sprintf("Order %s has been placed successfully", order.OrderNumber),
		Type:    constants.NotificationTypeOrderSuccess,
	})
}

// NotifyOrderStatus 写入订单状态通知并推送（拼单成员同样收到）
func (s *NotificationService) NotifyOrderStatus(ctx context.Context, orderID uint, status string) error {
	order, err := s.orderRepo.GetByID(orderID)
	if err != nil {
		return err
	}
	if order == nil {
		return ErrOrderNotFound
	}
	recipients := []uint{order.UserID}
	for _, participant := range order.Participants {
		if participant.UserID != order.UserID {
			recipients = append(recipients, participant.UserID)
		}
	}
	for _, userID := range recipients {
		if err := s.create(ctx, &models.Notification{
			UserID:  userID,
			OrderID: order.ID,
			Title:   "Order update",
			Message: fmt.Sprintf("Order %s is now %s", order.OrderNumber, status),
			Type:    constants.NotificationTypeOrderStatus,
		}); err != nil {
			return err
		}
	}
	return nil
}

// List 分页查询用户通知
func (s *NotificationService) List(userID uint, page, pageSize int) ([]models.Notification, int64, error) {
	return s.notificationRepo.List(repository.NotificationListFilter{
		UserID:   userID,
		Page:     page,
		PageSize: pageSize,
	})
}

func (s *NotificationService) create(ctx context.Context, notification *models.Notification, extraChannels ...string) error {
	if err := s.notificationRepo.Create(notification); err != nil {
		return err
	}
	channels := append([]string{events.UserChannel(notification.UserID)}, extraChannels...)
	s.publish(ctx, events.New(constants.EventNotificationCreated, notification, channels...))
	return nil
}

// publish 推送失败只记录日志
func (s *NotificationService) publish(ctx context.Context, event events.Event) {
	publishQuietly(ctx, s.publisher, event)
}

func publishQuietly(ctx context.Context, publisher events.Publisher, event events.Event) {
	if publisher == nil {
		return
	}
	if err := publisher.Publish(ctx, event); err != nil {
		logger.Warnw("event_publish_failed", "event_type", event.Type, "channels", event.Channels, "error", err)
	}
}
