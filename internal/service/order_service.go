package service

import (
	"context"
	"strings"
	"time"

	"github.com/quickbite/internal/constants"
	"github.com/quickbite/internal/events"
	"github.com/quickbite/internal/logger"
	"github.com/quickbite/internal/models"
	"github.com/quickbite/internal/repository"

	"gorm.io/gorm"
)

// OrderService 订单服务
type OrderService struct {
	orderRepo     repository.OrderRepository
	invoiceRepo   repository.InvoiceRepository
	catalogRepo   repository.CatalogRepository
	sequence      *SequenceAllocator
	notifications *NotificationService
	publisher     events.Publisher
}

// NewOrderService 创建订单服务
func NewOrderService(
	orderRepo repository.OrderRepository,
	invoiceRepo repository.InvoiceRepository,
	catalogRepo repository.CatalogRepository,
	sequence *SequenceAllocator,
	notifications *NotificationService,
	publisher events.Publisher,
) *OrderService {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &OrderService{
		orderRepo:     orderRepo,
		invoiceRepo:   invoiceRepo,
		catalogRepo:   catalogRepo,
		sequence:      sequence,
		notifications: notifications,
		publisher:     publisher,
	}
}

// UpdateOrderStatusInput 门店更新订单状态输入
type UpdateOrderStatusInput struct {
	OperatorID uint
	OrderID    uint
	Status     string
}

// OrderDetail 订单详情（含发票）
type OrderDetail struct {
	Order   *models.Order   `json:"order"`
	Invoice *models.Invoice `json:"invoice,omitempty"`
}

// UpdateStatus 店主推进订单状态，进入 done 时在同一事务内开具发票
func (s *OrderService) UpdateStatus(ctx context.Context, input UpdateOrderStatusInput) (*models.Order, error) {
	if input.OrderID == 0 || input.OperatorID == 0 {
		return nil, ErrInvalidInput
	}
	target, err := ParseOrderStatus(input.Status)
	if err != nil {
		return nil, err
	}
	order, err := s.orderRepo.GetByID(input.OrderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	if err := s.ensureStoreOwner(order.StoreID, input.OperatorID); err != nil {
		return nil, err
	}
	from := order.Status
	if err := ValidateOrderTransition(from, target); err != nil {
		return nil, err
	}

	now := time.Now()
	var invoice *models.Invoice
	err = models.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		updated, err := s.orderRepo.WithTx(tx).UpdateStatus(order.ID, from, target)
		if err != nil {
			return err
		}
		if !updated {
			// 并发请求已推进状态
			return ErrInvalidStatusTransition
		}
		if target != models.OrderStatusDone {
			return nil
		}
		order.Status = target
		invoice, err = s.issueInvoice(tx, order, now)
		return err
	})
	if err != nil {
		return nil, err
	}

	logger.Infow("order_status_updated",
		"order_id", order.ID,
		"store_id", order.StoreID,
		"from", from,
		"to", target,
		"operator_id", input.OperatorID,
	)
	if invoice != nil {
		logger.Infow("invoice_issued", "order_id", order.ID, "invoice_number", invoice.InvoiceNumber, "status", invoice.Status)
	}

	s.publishStatusChanged(ctx, order, from, target)
	if s.notifications != nil {
		s.notifications.OrderStatusChanged(ctx, order.ID, target)
	}

	refreshed, err := s.orderRepo.GetByID(order.ID)
	if err != nil || refreshed == nil {
		order.Status = target
		return order, nil
	}
	return refreshed, nil
}

// issueInvoice 以订单快照开具发票
func (s *OrderService) issueInvoice(tx *gorm.DB, order *models.Order, now time.Time) (*models.Invoice, error) {
	number, err := s.sequence.NextInvoiceNumber(tx, order.StoreID, now)
	if err != nil {
		return nil, err
	}
	snapshot, err := models.ToJSON(order)
	if err != nil {
		return nil, err
	}
	status := constants.InvoiceStatusIssued
	if order.PaymentStatus == constants.OrderPaymentPaid {
		status = constants.InvoiceStatusPaid
	}
	invoice := &models.Invoice{
		InvoiceNumber: number,
		OrderID:       order.ID,
		IssuedAt:      now,
		Subtotal:      order.SubtotalPrice,
		TotalDiscount: order.TotalDiscount,
		ShippingFee:   order.ShippingFee,
		Total:         order.FinalTotal,
		Currency:      order.Currency,
		Status:        status,
		OrderSnapshot: snapshot,
	}
	if err := s.invoiceRepo.WithTx(tx).Create(invoice); err != nil {
		return nil, err
	}
	return invoice, nil
}

// GetOrder 获取订单详情（下单人、拼单成员或店主可见）
func (s *OrderService) GetOrder(userID, orderID uint) (*OrderDetail, error) {
	if orderID == 0 {
		return nil, ErrInvalidInput
	}
	order, err := s.orderRepo.GetByID(orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	if order.UserID != userID {
		member, err := s.orderRepo.IsParticipant(order.ID, userID)
		if err != nil {
			return nil, err
		}
		if !member {
			if ownerErr := s.ensureStoreOwner(order.StoreID, userID); ownerErr != nil {
				return nil, ErrOrderNotFound
			}
		}
	}
	invoice, err := s.invoiceRepo.GetByOrderID(order.ID)
	if err != nil {
		return nil, err
	}
	return &OrderDetail{Order: order, Invoice: invoice}, nil
}

// ListOrders 用户订单列表（含参与的拼单）
func (s *OrderService) ListOrders(filter repository.OrderListFilter) ([]models.Order, int64, error) {
	if filter.UserID == 0 {
		return nil, 0, ErrInvalidInput
	}
	filter.StoreID = 0
	if err := normalizeOrderFilter(&filter); err != nil {
		return nil, 0, err
	}
	return s.orderRepo.ListByUser(filter)
}

// ListStoreOrders 门店订单列表
func (s *OrderService) ListStoreOrders(operatorID uint, filter repository.OrderListFilter) ([]models.Order, int64, error) {
	if filter.StoreID == 0 {
		return nil, 0, ErrInvalidInput
	}
	if err := s.ensureStoreOwner(filter.StoreID, operatorID); err != nil {
		return nil, 0, err
	}
	filter.UserID = 0
	if err := normalizeOrderFilter(&filter); err != nil {
		return nil, 0, err
	}
	return s.orderRepo.ListByStore(filter)
}

func (s *OrderService) ensureStoreOwner(storeID, userID uint) error {
	store, err := s.catalogRepo.GetStore(storeID)
	if err != nil {
		return err
	}
	if store == nil {
		return ErrStoreNotFound
	}
	if store.OwnerID != userID {
		return ErrNotStoreOwner
	}
	return nil
}

func (s *OrderService) publishStatusChanged(ctx context.Context, order *models.Order, from, to models.OrderStatus) {
	channels := []string{events.StoreChannel(order.StoreID), events.UserChannel(order.UserID)}
	for _, participant := range order.Participants {
		if participant.UserID != order.UserID {
			channels = append(channels, events.UserChannel(participant.UserID))
		}
	}
	payload := map[string]interface{}{
		"order_id":     order.ID,
		"order_number": order.OrderNumber,
		"from":         from,
		"status":       to,
	}
	publishQuietly(ctx, s.publisher, events.New(constants.EventOrderStatusChanged, payload, channels...))
}

func normalizeOrderFilter(filter *repository.OrderListFilter) error {
	filter.Status = strings.TrimSpace(filter.Status)
	if filter.Status != "" {
		status, err := ParseOrderStatus(filter.Status)
		if err != nil {
			return err
		}
		filter.Status = string(status)
	}
	filter.OrderNumber = strings.TrimSpace(filter.OrderNumber)
	return nil
}
