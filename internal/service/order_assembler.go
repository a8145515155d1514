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

// PaymentRecord 下单时一并写入的支付记录
type PaymentRecord struct {
	Provider      string
	TransactionID string
	Amount        models.Money
	Metadata      models.JSON
}

// ConvertInput 购物车转订单输入
type ConvertInput struct {
	CartID        uint
	PaymentMethod string
	PaymentStatus string
	Payment       *PaymentRecord
	Checkout      *CheckoutInput // 非空时在同一事务内写入结账上下文
	ExpectedTotal *models.Money  // 网关确认金额，非空时必须与实付一致
}

// OrderAssemblerOptions 下单策略
type OrderAssemblerOptions struct {
	DecrementStock bool
	Currency       string
}

// OrderAssembler 将购物车在单个事务内转换为订单
type OrderAssembler struct {
	carts         *CartService
	cartRepo      repository.CartRepository
	orderRepo     repository.OrderRepository
	voucherRepo   repository.VoucherRepository
	paymentRepo   repository.PaymentRepository
	stock         *StockValidator
	sequence      *SequenceAllocator
	pricing       *PricingEngine
	notifications *NotificationService
	publisher     events.Publisher
	options       OrderAssemblerOptions
}

// NewOrderAssembler 创建订单组装器
func NewOrderAssembler(
	carts *CartService,
	cartRepo repository.CartRepository,
	orderRepo repository.OrderRepository,
	voucherRepo repository.VoucherRepository,
	paymentRepo repository.PaymentRepository,
	stock *StockValidator,
	sequence *SequenceAllocator,
	pricing *PricingEngine,
	notifications *NotificationService,
	publisher events.Publisher,
	options OrderAssemblerOptions,
) *OrderAssembler {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	if strings.TrimSpace(options.Currency) == "" {
		options.Currency = "VND"
	}
	return &OrderAssembler{
		carts:         carts,
		cartRepo:      cartRepo,
		orderRepo:     orderRepo,
		voucherRepo:   voucherRepo,
		paymentRepo:   paymentRepo,
		stock:         stock,
		sequence:      sequence,
		pricing:       pricing,
		notifications: notifications,
		publisher:     publisher,
		options:       options,
	}
}

// Convert 认领购物车并生成订单；任一步失败整体回滚，购物车保持未完成
func (a *OrderAssembler) Convert(ctx context.Context, input ConvertInput) (*models.Order, error) {
	if input.CartID == 0 {
		return nil, ErrInvalidInput
	}
	paymentMethod := strings.TrimSpace(input.PaymentMethod)
	if paymentMethod == "" {
		paymentMethod = constants.PaymentMethodCash
	}
	paymentStatus := strings.TrimSpace(input.PaymentStatus)
	if paymentStatus == "" {
		paymentStatus = constants.OrderPaymentUnpaid
	}

	now := time.Now()
	var order *models.Order
	var cart *models.Cart
	err := models.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		cartRepo := a.cartRepo.WithTx(tx)
		var err error
		cart, err = cartRepo.GetDetail(input.CartID)
		if err != nil {
			return err
		}
		if cart == nil {
			return ErrCartNotFound
		}
		if err := ensureCartMutable(cart); err != nil {
			return err
		}
		if input.Checkout != nil {
			if err := a.carts.SaveCheckoutContext(tx, cart, *input.Checkout, paymentMethod); err != nil {
				return err
			}
		}

		claimed, err := cartRepo.ClaimForOrder(cart.ID)
		if err != nil {
			return err
		}
		if !claimed {
			return ErrCartCompleted
		}

		items := billableItems(cart)
		if len(items) == 0 {
			return ErrCartEmpty
		}
		vouchers, err := a.voucherRepo.WithTx(tx).ListByIDs(cart.VoucherIDs())
		if err != nil {
			return err
		}
		quote := a.pricing.Quote(items, vouchers, cart.ShippingFee, now)
		if input.ExpectedTotal != nil && !quote.FinalTotal.Decimal.Equal(input.ExpectedTotal.Decimal) {
			return ErrPaymentAmountMismatch
		}

		orderNumber, err := a.sequence.NextOrderNumber(tx, cart.StoreID, now)
		if err != nil {
			return err
		}
		order, err = a.buildOrder(cart, items, quote, orderNumber, paymentMethod, paymentStatus)
		if err != nil {
			return err
		}
		if err := a.orderRepo.WithTx(tx).Create(order); err != nil {
			return err
		}

		if err := a.redeemVouchers(tx, cart.UserID, quote.Applied); err != nil {
			return err
		}
		if a.options.DecrementStock {
			if err := a.reserveStock(tx, items); err != nil {
				return err
			}
		}
		if cart.IsGroup() {
			if err := cartRepo.TransitionParticipants(cart.ID,
				[]string{constants.ParticipantStatusActive, constants.ParticipantStatusLocking},
				constants.ParticipantStatusCompleted); err != nil {
				return err
			}
		}
		if input.Payment != nil {
			if err := a.paymentRepo.WithTx(tx).Create(&models.Payment{
				OrderID:       order.ID,
				Provider:      input.Payment.Provider,
				Amount:        input.Payment.Amount,
				Status:        constants.PaymentStatusSuccess,
				TransactionID: input.Payment.TransactionID,
				Metadata:      input.Payment.Metadata,
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Infow("order_created",
		"order_id", order.ID,
		"order_number", order.OrderNumber,
		"cart_id", cart.ID,
		"store_id", order.StoreID,
		"is_group_order", order.IsGroupOrder,
		"final_total", order.FinalTotal.String(),
	)
	a.afterCommit(ctx, order)

	created, err := a.orderRepo.GetByID(order.ID)
	if err != nil || created == nil {
		return order, nil
	}
	return created, nil
}

// buildOrder 组装订单对象（含订单项快照、配送信息、成员与优惠券）
func (a *OrderAssembler) buildOrder(cart *models.Cart, items []models.CartItem, quote Quote, orderNumber, paymentMethod, paymentStatus string) (*models.Order, error) {
	order := &models.Order{
		OrderNumber:   orderNumber,
		CartID:        cart.ID,
		UserID:        cart.UserID,
		StoreID:       cart.StoreID,
		IsGroupOrder:  cart.IsGroup(),
		Status:        models.OrderStatusPending,
		PaymentMethod: paymentMethod,
		PaymentStatus: paymentStatus,
		Currency:      a.options.Currency,
		SubtotalPrice: quote.Subtotal,
		TotalDiscount: quote.TotalDiscount,
		ShippingFee:   quote.ShippingFee,
		FinalTotal:    quote.FinalTotal,
		ShipInfo: &models.OrderShipInfo{
			Lat:           cart.Delivery.Lat,
			Lng:           cart.Delivery.Lng,
			Address:       cart.Delivery.Address,
			DetailAddress: cart.Delivery.DetailAddress,
			ContactName:   cart.Delivery.ContactName,
			ContactPhone:  cart.Delivery.ContactPhone,
			Note:          cart.Delivery.Note,
		},
	}

	participantUsers := make(map[uint]uint, len(cart.Participants))
	if cart.IsGroup() {
		for _, p := range cart.Participants {
			participantUsers[p.ID] = p.UserID
			if p.Status != constants.ParticipantStatusActive && p.Status != constants.ParticipantStatusLocking {
				continue
			}
			order.Participants = append(order.Participants, models.OrderParticipant{
				UserID:  p.UserID,
				IsOwner: p.IsOwner,
			})
		}
	}

	for _, item := range items {
		amounts := a.pricing.ComputeLine(item)
		orderItem := models.OrderItem{
			DishID:        item.DishID,
			DishName:      item.DishName,
			Quantity:      item.Quantity,
			Price:         item.UnitPrice,
			ToppingsTotal: amounts.ToppingsTotal,
			LineSubtotal:  amounts.LineSubtotal,
			LineTotal:     amounts.LineTotal,
			Note:          item.Note,
		}
		if cart.IsGroup() && item.ParticipantID != 0 {
			participantID := item.ParticipantID
			orderItem.ParticipantID = &participantID
			if userID, ok := participantUsers[participantID]; ok {
				orderItem.UserID = &userID
			}
		}
		for _, topping := range item.Toppings {
			orderItem.Toppings = append(orderItem.Toppings, models.OrderItemTopping{
				ToppingID:   topping.ToppingID,
				ToppingName: topping.ToppingName,
				Price:       topping.Price,
			})
		}
		order.Items = append(order.Items, orderItem)
	}

	for _, applied := range quote.Applied {
		snapshot, err := models.ToJSON(applied.Voucher)
		if err != nil {
			return nil, err
		}
		order.Vouchers = append(order.Vouchers, models.OrderVoucher{
			VoucherID:      applied.Voucher.ID,
			DiscountAmount: applied.Discount,
			Snapshot:       snapshot,
		})
	}
	return order, nil
}

// redeemVouchers 原子递增优惠券总用量与用户用量，任一超限整体回滚
func (a *OrderAssembler) redeemVouchers(tx *gorm.DB, userID uint, applied []AppliedVoucher) error {
	voucherRepo := a.voucherRepo.WithTx(tx)
	for _, item := range applied {
		ok, err := voucherRepo.RedeemOnce(item.Voucher.ID)
		if err != nil {
			return err
		}
		if !ok {
			return ErrVoucherUsageExceeded
		}
		ok, err = voucherRepo.RedeemForUser(item.Voucher.ID, userID, item.Voucher.UserLimit)
		if err != nil {
			return err
		}
		if !ok {
			return ErrVoucherUsageExceeded
		}
	}
	return nil
}

// reserveStock 按菜品汇总数量后依次扣减，固定顺序避免死锁
func (a *OrderAssembler) reserveStock(tx *gorm.DB, items []models.CartItem) error {
	quantities, dishIDs := sumDishQuantities(items)
	for _, id := range dishIDs {
		if err := a.stock.Reserve(tx, id, quantities[id]); err != nil {
			return err
		}
	}
	return nil
}

func (a *OrderAssembler) afterCommit(ctx context.Context, order *models.Order) {
	channels := []string{
		events.StoreChannel(order.StoreID),
		events.UserChannel(order.UserID),
		events.CartChannel(order.CartID),
	}
	payload := map[string]interface{}{
		"order_id":       order.ID,
		"order_number":   order.OrderNumber,
		"store_id":       order.StoreID,
		"is_group_order": order.IsGroupOrder,
		"final_total":    order.FinalTotal,
	}
	publishQuietly(ctx, a.publisher, events.New(constants.EventOrderCreated, payload, channels...))
	if a.notifications != nil {
		a.notifications.OrderPlaced(ctx, order.ID)
	}
}
