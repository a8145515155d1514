package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/quickbite/internal/cache"
	"github.com/quickbite/internal/constants"
	"github.com/quickbite/internal/events"
	"github.com/quickbite/internal/logger"
	"github.com/quickbite/internal/models"
	"github.com/quickbite/internal/payment/vnpay"
	"github.com/quickbite/internal/queue"
	"github.com/quickbite/internal/repository"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// PaymentGateway 在线支付网关
type PaymentGateway interface {
	BuildPaymentURL(input vnpay.PaymentInput) (string, error)
	VerifyReturn(values url.Values) (*vnpay.ReturnData, error)
	Refund(ctx context.Context, input vnpay.RefundInput) (*vnpay.RefundResult, error)
}

// PaymentOptions 支付跳转与回调设置
type PaymentOptions struct {
	SuccessRedirect string // 支持 {order_id}
	FailureRedirect string // 支持 {store_id} 与 {status}
	ReturnLockTTL   time.Duration
	PendingTTL      time.Duration // 支付链接有效期，期间购物车不可改动
}

// PaymentService 支付服务（VNPay 结账、回跳、退款与现金下单）
type PaymentService struct {
	cartRepo    repository.CartRepository
	orderRepo   repository.OrderRepository
	paymentRepo repository.PaymentRepository
	invoiceRepo repository.InvoiceRepository
	catalogRepo repository.CatalogRepository
	carts       *CartService
	assembler   *OrderAssembler
	gateway     PaymentGateway
	queueClient *queue.Client
	publisher   events.Publisher
	options     PaymentOptions
}

// NewPaymentService 创建支付服务
func NewPaymentService(
	cartRepo repository.CartRepository,
	orderRepo repository.OrderRepository,
	paymentRepo repository.PaymentRepository,
	invoiceRepo repository.InvoiceRepository,
	catalogRepo repository.CatalogRepository,
	carts *CartService,
	assembler *OrderAssembler,
	gateway PaymentGateway,
	queueClient *queue.Client,
	publisher events.Publisher,
	options PaymentOptions,
) *PaymentService {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	if options.ReturnLockTTL <= 0 {
		options.ReturnLockTTL = 30 * time.Second
	}
	if options.PendingTTL <= 0 {
		options.PendingTTL = 15 * time.Minute
	}
	return &PaymentService{
		cartRepo:    cartRepo,
		orderRepo:   orderRepo,
		paymentRepo: paymentRepo,
		invoiceRepo: invoiceRepo,
		catalogRepo: catalogRepo,
		carts:       carts,
		assembler:   assembler,
		gateway:     gateway,
		queueClient: queueClient,
		publisher:   publisher,
		options:     options,
	}
}

// CheckoutURLResult 在线支付链接
type CheckoutURLResult struct {
	PaymentURL string       `json:"payment_url"`
	TxnRef     string       `json:"txn_ref"`
	Amount     models.Money `json:"amount"`
}

// ReturnResult 网关回跳处理结果
type ReturnResult struct {
	Success     bool
	RedirectURL string
	OrderID     uint
}

// RefundInput 退款输入
type RefundInput struct {
	OperatorID    uint
	OrderID       uint
	TransactionID string
	Amount        models.Money
	ClientIP      string
}

func paymentLogger(kv ...interface{}) *zap.SugaredLogger {
	if len(kv) == 0 {
		return logger.S()
	}
	return logger.SW(kv...)
}

// RequestCheckoutURL 写入结账上下文并生成 VNPay 支付链接
func (s *PaymentService) RequestCheckoutURL(ctx context.Context, input CheckoutInput) (*CheckoutURLResult, error) {
	if input.CartID == 0 || input.UserID == 0 {
		return nil, ErrInvalidInput
	}
	if s.gateway == nil {
		return nil, ErrGatewayUnavailable
	}

	var quote Quote
	var txnRef string
	err := models.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		cartRepo := s.cartRepo.WithTx(tx)
		cart, err := cartRepo.GetDetail(input.CartID)
		if err != nil {
			return err
		}
		if _, err := s.carts.authorize(cartRepo, cart, input.UserID, cart != nil && cart.IsGroup()); err != nil {
			return err
		}
		if err := ensureCartMutable(cart); err != nil {
			return err
		}
		items := billableItems(cart)
		if len(items) == 0 {
			return ErrCartEmpty
		}
		// 扣款前按下单时的口径预检库存与优惠券用量
		if err := s.carts.stock.CheckItems(s.catalogRepo.WithTx(tx), items); err != nil {
			return err
		}
		if err := s.carts.SaveCheckoutContext(tx, cart, input, constants.PaymentMethodVNPay); err != nil {
			return err
		}
		voucherRepo := s.carts.voucherRepo.WithTx(tx)
		now := time.Now()
		quote, err = s.carts.quoteCart(voucherRepo, cart, now)
		if err != nil {
			return err
		}
		applied := make([]models.Voucher, 0, len(quote.Applied))
		for _, item := range quote.Applied {
			applied = append(applied, item.Voucher)
		}
		if err := s.carts.ensureVouchersUsable(voucherRepo, cart.UserID, applied); err != nil {
			return err
		}
		if !quote.FinalTotal.Decimal.IsPositive() {
			return ErrNonPositiveTotal
		}
		txnRef, err = generateTxnRef(cart.ID)
		if err != nil {
			return err
		}
		return cartRepo.UpdateFields(cart.ID, map[string]interface{}{
			"pending_txn_ref": txnRef,
			"pending_until":   now.Add(s.options.PendingTTL),
		})
	})
	if err != nil {
		return nil, err
	}

	paymentURL, err := s.gateway.BuildPaymentURL(vnpay.PaymentInput{
		TxnRef:    txnRef,
		Amount:    quote.FinalTotal.Decimal,
		OrderInfo: fmt.Sprintf("Payment for cart %d", input.CartID),
		ClientIP:  input.ClientIP,
	})
	if err != nil {
		paymentLogger("cart_id", input.CartID, "txn_ref", txnRef).Errorw("payment_url_build_failed", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	paymentLogger("cart_id", input.CartID, "txn_ref", txnRef).Infow("payment_url_created", "amount", quote.FinalTotal.String())
	return &CheckoutURLResult{PaymentURL: paymentURL, TxnRef: txnRef, Amount: quote.FinalTotal}, nil
}

// HandleReturn 处理网关回跳：验签、幂等去重并下单
// 返回的结果总是带跳转地址；error 仅用于记录与告警。
func (s *PaymentService) HandleReturn(ctx context.Context, values url.Values) (*ReturnResult, error) {
	txnRef := strings.TrimSpace(values.Get("vnp_TxnRef"))
	log := paymentLogger("txn_ref", txnRef, "provider", constants.PaymentProviderVNPay)
	if s.gateway == nil {
		return s.failure(0, "gateway_unavailable"), ErrGatewayUnavailable
	}

	data, err := s.gateway.VerifyReturn(values)
	if err != nil {
		log.Warnw("payment_return_signature_invalid", "error", err)
		return s.failure(s.lookupStoreID(txnRef), "invalid_signature"), ErrGatewayBadSignature
	}

	cartID, parseErr := parseTxnRef(data.TxnRef)
	var cart *models.Cart
	if parseErr == nil {
		cart, err = s.cartRepo.GetByID(cartID)
		if err != nil {
			log.Errorw("payment_return_cart_fetch_failed", "cart_id", cartID, "error", err)
		}
	}
	storeID := uint(0)
	if cart != nil {
		storeID = cart.StoreID
	}

	if !data.Success() {
		log.Infow("payment_return_declined", "cart_id", cartID, "response_code", data.ResponseCode)
		s.releasePending(log, cart, data.TxnRef)
		return s.failure(storeID, data.ResponseCode), nil
	}

	if existing, err := s.paymentRepo.GetByTransactionID(data.TxnRef); err != nil {
		log.Errorw("payment_return_dedupe_failed", "error", err)
	} else if existing != nil {
		log.Infow("payment_return_duplicate", "order_id", existing.OrderID)
		return s.success(existing.OrderID), nil
	}

	if cart == nil {
		reason := "cart not found for captured payment"
		if parseErr != nil {
			reason = parseErr.Error()
		}
		return s.critical(ctx, log, cartID, storeID, data, errors.New(reason))
	}

	lockKey := "vnpay_return:" + data.TxnRef
	locked, lockErr := cache.AcquireLock(ctx, lockKey, s.options.ReturnLockTTL)
	if lockErr != nil {
		log.Warnw("payment_return_lock_failed", "error", lockErr)
	} else if locked {
		defer func() {
			if err := cache.ReleaseLock(context.Background(), lockKey); err != nil {
				log.Warnw("payment_return_lock_release_failed", "error", err)
			}
		}()
	} else {
		log.Infow("payment_return_lock_busy")
	}

	paid := models.NewMoneyFromDecimal(data.Amount)
	metadata := make(models.JSON, len(data.Raw))
	for k, v := range data.Raw {
		metadata[k] = v
	}
	order, err := s.assembler.Convert(ctx, ConvertInput{
		CartID:        cart.ID,
		PaymentMethod: constants.PaymentMethodVNPay,
		PaymentStatus: constants.OrderPaymentPaid,
		ExpectedTotal: &paid,
		Payment: &PaymentRecord{
			Provider:      constants.PaymentProviderVNPay,
			TransactionID: data.TxnRef,
			Amount:        paid,
			Metadata:      metadata,
		},
	})
	if err != nil {
		// 并发回跳时另一请求已完成下单
		if errors.Is(err, ErrCartCompleted) {
			if existing, lookupErr := s.paymentRepo.GetByTransactionID(data.TxnRef); lookupErr == nil && existing != nil {
				log.Infow("payment_return_duplicate", "order_id", existing.OrderID)
				return s.success(existing.OrderID), nil
			}
		}
		return s.critical(ctx, log, cart.ID, storeID, data, err)
	}

	log.Infow("payment_return_order_created", "order_id", order.ID, "order_number", order.OrderNumber)
	return s.success(order.ID), nil
}

// critical 已扣款但订单未落库：记录异常、告警并跳转失败页
func (s *PaymentService) critical(ctx context.Context, log *zap.SugaredLogger, cartID, storeID uint, data *vnpay.ReturnData, cause error) (*ReturnResult, error) {
	log.Errorw("payment_critical_inconsistency",
		"cart_id", cartID,
		"store_id", storeID,
		"amount", data.Amount.String(),
		"transaction_no", data.TransactionNo,
		"error", cause,
	)
	payload := make(models.JSON, len(data.Raw))
	for k, v := range data.Raw {
		payload[k] = v
	}
	incident := &models.PaymentIncident{
		Provider:      constants.PaymentProviderVNPay,
		TransactionID: data.TxnRef,
		CartID:        cartID,
		Amount:        models.NewMoneyFromDecimal(data.Amount),
		Reason:        cause.Error(),
		Status:        constants.PaymentIncidentOpen,
		Payload:       payload,
	}
	created, err := s.paymentRepo.CreateIncident(incident)
	if err != nil {
		log.Errorw("payment_incident_create_failed", "error", err)
	} else if created {
		s.dispatchIncidentAlert(ctx, log, incident)
	}
	return s.failure(storeID, "critical"), fmt.Errorf("%w: cart %d: %v", ErrCriticalInconsistency, cartID, cause)
}

func (s *PaymentService) dispatchIncidentAlert(ctx context.Context, log *zap.SugaredLogger, incident *models.PaymentIncident) {
	if s.queueClient != nil && s.queueClient.Enabled() {
		err := s.queueClient.EnqueuePaymentIncidentAlert(queue.PaymentIncidentAlertPayload{
			IncidentID:    incident.ID,
			TransactionID: incident.TransactionID,
		})
		if err == nil {
			return
		}
		log.Errorw("payment_incident_enqueue_failed", "incident_id", incident.ID, "error", err)
	}
	if err := s.AlertIncident(ctx, incident.TransactionID); err != nil {
		log.Errorw("payment_incident_alert_failed", "incident_id", incident.ID, "error", err)
	}
}

// AlertIncident 推送支付异常告警（由 critical 队列消费）
func (s *PaymentService) AlertIncident(ctx context.Context, transactionID string) error {
	incident, err := s.paymentRepo.GetIncident(transactionID)
	if err != nil {
		return err
	}
	if incident == nil {
		return ErrPaymentNotFound
	}
	if incident.Status != constants.PaymentIncidentOpen {
		return nil
	}
	channels := []string{}
	if incident.CartID != 0 {
		if cart, err := s.cartRepo.GetByID(incident.CartID); err == nil && cart != nil {
			channels = append(channels, events.StoreChannel(cart.StoreID), events.UserChannel(cart.UserID))
		}
	}
	logger.Errorw("payment_incident_alert",
		"incident_id", incident.ID,
		"transaction_id", incident.TransactionID,
		"cart_id", incident.CartID,
		"amount", incident.Amount.String(),
		"reason", incident.Reason,
	)
	if len(channels) > 0 {
		payload := map[string]interface{}{
			"incident_id":    incident.ID,
			"transaction_id": incident.TransactionID,
			"cart_id":        incident.CartID,
			"amount":         incident.Amount,
		}
		publishQuietly(ctx, s.publisher, events.New(constants.EventPaymentIncident, payload, channels...))
	}
	return s.paymentRepo.MarkIncidentAlerted(incident.ID, time.Now())
}

// Refund 店主发起退款（可部分退款，累计不超过实付）
func (s *PaymentService) Refund(ctx context.Context, input RefundInput) (*models.Payment, error) {
	if input.OperatorID == 0 || (input.OrderID == 0 && strings.TrimSpace(input.TransactionID) == "") {
		return nil, ErrInvalidInput
	}
	if s.gateway == nil {
		return nil, ErrGatewayUnavailable
	}

	captured, err := s.resolveCaptured(input)
	if err != nil {
		return nil, err
	}
	order, err := s.orderRepo.GetByID(captured.OrderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	store, err := s.catalogRepo.GetStore(order.StoreID)
	if err != nil {
		return nil, err
	}
	if store == nil || store.OwnerID != input.OperatorID {
		return nil, ErrNotStoreOwner
	}

	refunded, err := s.paymentRepo.SumRefunded(order.ID)
	if err != nil {
		return nil, err
	}
	refundable := captured.Amount.Minus(refunded)
	if !input.Amount.Decimal.IsPositive() || input.Amount.Decimal.GreaterThan(refundable.Decimal) {
		return nil, ErrInvalidRefund
	}

	log := paymentLogger("order_id", order.ID, "transaction_id", captured.TransactionID, "operator_id", input.OperatorID)
	result, err := s.gateway.Refund(ctx, vnpay.RefundInput{
		TxnRef:          captured.TransactionID,
		TransactionNo:   metadataString(captured.Metadata, "vnp_TransactionNo"),
		TransactionDate: metadataString(captured.Metadata, "vnp_PayDate"),
		Amount:          input.Amount.Decimal,
		Full:            refunded.Decimal.IsZero() && input.Amount.Decimal.Equal(captured.Amount.Decimal),
		OrderInfo:       fmt.Sprintf("Refund order %s", order.OrderNumber),
		CreatedBy:       strconv.FormatUint(uint64(input.OperatorID), 10),
		ClientIP:        input.ClientIP,
	})
	if err != nil {
		if errors.Is(err, vnpay.ErrRefundRejected) {
			log.Warnw("payment_refund_rejected", "error", err)
			return nil, fmt.Errorf("%w: %v", ErrGatewayRefundRejected, err)
		}
		log.Errorw("payment_refund_request_failed", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}

	var metadata models.JSON
	if result != nil {
		metadata = models.JSON(result.Raw)
	}
	refund := &models.Payment{
		OrderID:       order.ID,
		Provider:      constants.PaymentProviderVNPay,
		Amount:        input.Amount,
		Status:        constants.PaymentStatusRefunded,
		TransactionID: fmt.Sprintf("%s_refund_%d", captured.TransactionID, time.Now().UnixNano()),
		Metadata:      metadata,
	}
	fullyRefunded := !refunded.Plus(input.Amount).Decimal.LessThan(captured.Amount.Decimal)
	err = models.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.paymentRepo.WithTx(tx).Create(refund); err != nil {
			return err
		}
		if !fullyRefunded {
			return nil
		}
		if err := s.orderRepo.WithTx(tx).UpdatePaymentStatus(order.ID, constants.OrderPaymentRefunded); err != nil {
			return err
		}
		return s.invoiceRepo.WithTx(tx).UpdateStatus(order.ID, constants.InvoiceStatusRefunded)
	})
	if err != nil {
		// 网关已退款但本地未记账，需人工核对
		log.Errorw("payment_refund_persist_failed", "amount", input.Amount.String(), "error", err)
		return nil, err
	}
	log.Infow("payment_refunded", "amount", input.Amount.String(), "fully_refunded", fullyRefunded)
	return refund, nil
}

func (s *PaymentService) resolveCaptured(input RefundInput) (*models.Payment, error) {
	transactionID := strings.TrimSpace(input.TransactionID)
	if transactionID == "" {
		captured, err := s.paymentRepo.GetCaptured(input.OrderID)
		if err != nil {
			return nil, err
		}
		if captured == nil {
			return nil, ErrOrderNotPaid
		}
		return captured, nil
	}
	captured, err := s.paymentRepo.GetByTransactionID(transactionID)
	if err != nil {
		return nil, err
	}
	if captured == nil {
		return nil, ErrPaymentNotFound
	}
	if captured.Status != constants.PaymentStatusSuccess {
		return nil, ErrInvalidRefund
	}
	if input.OrderID != 0 && captured.OrderID != input.OrderID {
		return nil, ErrInvalidInput
	}
	return captured, nil
}

// CheckoutCash 货到付款下单
func (s *PaymentService) CheckoutCash(ctx context.Context, input CheckoutInput) (*models.Order, error) {
	if input.CartID == 0 || input.UserID == 0 {
		return nil, ErrInvalidInput
	}
	cart, err := s.cartRepo.GetByID(input.CartID)
	if err != nil {
		return nil, err
	}
	if _, err := s.carts.authorize(s.cartRepo, cart, input.UserID, cart != nil && cart.IsGroup()); err != nil {
		return nil, err
	}
	if err := ensureNoPendingPayment(cart, time.Now()); err != nil {
		return nil, err
	}
	return s.assembler.Convert(ctx, ConvertInput{
		CartID:        input.CartID,
		PaymentMethod: constants.PaymentMethodCash,
		PaymentStatus: constants.OrderPaymentUnpaid,
		Checkout:      &input,
	})
}

// releasePending 支付未成功时解除购物车的支付占用
func (s *PaymentService) releasePending(log *zap.SugaredLogger, cart *models.Cart, txnRef string) {
	if cart == nil || cart.Completed || cart.PendingTxnRef != txnRef {
		return
	}
	if err := s.cartRepo.UpdateFields(cart.ID, map[string]interface{}{
		"pending_txn_ref": "",
		"pending_until":   nil,
	}); err != nil {
		log.Warnw("payment_return_release_pending_failed", "cart_id", cart.ID, "error", err)
	}
}

func (s *PaymentService) lookupStoreID(txnRef string) uint {
	cartID, err := parseTxnRef(txnRef)
	if err != nil {
		return 0
	}
	cart, err := s.cartRepo.GetByID(cartID)
	if err != nil || cart == nil {
		return 0
	}
	return cart.StoreID
}

func (s *PaymentService) success(orderID uint) *ReturnResult {
	target := strings.ReplaceAll(s.options.SuccessRedirect, "{order_id}", strconv.FormatUint(uint64(orderID), 10))
	return &ReturnResult{Success: true, RedirectURL: target, OrderID: orderID}
}

func (s *PaymentService) failure(storeID uint, status string) *ReturnResult {
	target := strings.ReplaceAll(s.options.FailureRedirect, "{store_id}", strconv.FormatUint(uint64(storeID), 10))
	target = strings.ReplaceAll(target, "{status}", url.QueryEscape(status))
	return &ReturnResult{Success: false, RedirectURL: target}
}

// generateTxnRef 生成 {cartID}_{6 位随机数} 流水号
func generateTxnRef(cartID uint) (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d_%06d", cartID, n.Int64()+100000), nil
}

// parseTxnRef 从流水号解析购物车ID
func parseTxnRef(txnRef string) (uint, error) {
	idx := strings.Index(txnRef, "_")
	if idx <= 0 {
		return 0, fmt.Errorf("malformed txn ref %q", txnRef)
	}
	id, err := strconv.ParseUint(txnRef[:idx], 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("malformed txn ref %q", txnRef)
	}
	return uint(id), nil
}

func metadataString(metadata models.JSON, key string) string {
	if metadata == nil {
		return ""
	}
	if v, ok := metadata[key].(string); ok {
		return v
	}
	return ""
}
