package service

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/quickbite/internal/constants"
	"github.com/quickbite/internal/events"
	"github.com/quickbite/internal/models"
	"github.com/quickbite/internal/payment/vnpay"
	"github.com/quickbite/internal/repository"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

const (
	testStoreOwnerID uint = 900
	testOwnerID      uint = 1
	testFriendID     uint = 2
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, event events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) count(eventType string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, event := range p.events {
		if event.Type == eventType {
			n++
		}
	}
	return n
}

// fakeGateway 以 vnp_SecureHash=valid 作为合法签名
type fakeGateway struct {
	mu         sync.Mutex
	refundCode string
	refunds    []vnpay.RefundInput
	urls       []vnpay.PaymentInput
}

func (g *fakeGateway) BuildPaymentURL(input vnpay.PaymentInput) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.urls = append(g.urls, input)
	return "https://pay.test/vpcpay.html?vnp_TxnRef=" + url.QueryEscape(input.TxnRef), nil
}

func (g *fakeGateway) VerifyReturn(values url.Values) (*vnpay.ReturnData, error) {
	if values.Get("vnp_SecureHash") != "valid" {
		return nil, vnpay.ErrSignatureInvalid
	}
	amount, err := vnpay.ParseAmount(values.Get("vnp_Amount"))
	if err != nil {
		return nil, err
	}
	raw := make(map[string]string, len(values))
	for key := range values {
		if key == "vnp_SecureHash" {
			continue
		}
		raw[key] = values.Get(key)
	}
	return &vnpay.ReturnData{
		TxnRef:          values.Get("vnp_TxnRef"),
		ResponseCode:    values.Get("vnp_ResponseCode"),
		TransactionNo:   values.Get("vnp_TransactionNo"),
		TransactionDate: values.Get("vnp_PayDate"),
		Amount:          amount,
		Raw:             raw,
	}, nil
}

func (g *fakeGateway) Refund(_ context.Context, input vnpay.RefundInput) (*vnpay.RefundResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.refunds = append(g.refunds, input)
	result := &vnpay.RefundResult{ResponseCode: g.refundCode, Raw: map[string]interface{}{"vnp_ResponseCode": g.refundCode}}
	if g.refundCode != vnpay.ResponseCodeSuccess {
		return result, fmt.Errorf("%w: %s", vnpay.ErrRefundRejected, g.refundCode)
	}
	return result, nil
}

type checkoutEnv struct {
	db            *gorm.DB
	publisher     *recordingPublisher
	gateway       *fakeGateway
	carts         *CartService
	groups        *GroupCartService
	assembler     *OrderAssembler
	payments      *PaymentService
	orders        *OrderService
	notifications *NotificationService
	store         models.Store
	dishA         models.Dish
	dishB         models.Dish
	egg           models.Topping
}

type checkoutEnvOptions struct {
	decrementStock bool
	stackingPolicy string
}

func setupCheckoutTest(t *testing.T, opts checkoutEnvOptions) *checkoutEnv {
	t.Helper()
	dsn := fmt.Sprintf("file:checkout_service_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("get sql db failed: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := models.MigrateAll(db); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})
	models.DB = db

	cartRepo := repository.NewCartRepository(db)
	catalogRepo := repository.NewCatalogRepository(db)
	voucherRepo := repository.NewVoucherRepository(db)
	orderRepo := repository.NewOrderRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	invoiceRepo := repository.NewInvoiceRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	counterRepo := repository.NewCounterRepository(db)

	publisher := &recordingPublisher{}
	gateway := &fakeGateway{refundCode: vnpay.ResponseCodeSuccess}
	stock := NewStockValidator(catalogRepo)
	policy := opts.stackingPolicy
	if policy == "" {
		policy = constants.VoucherStackingStackableOnly
	}
	pricing := NewPricingEngine(policy)
	sequence := NewSequenceAllocator(counterRepo)
	notifications := NewNotificationService(notificationRepo, orderRepo, catalogRepo, publisher, nil)
	carts := NewCartService(cartRepo, catalogRepo, voucherRepo, orderRepo, stock, pricing, publisher)
	assembler := NewOrderAssembler(carts, cartRepo, orderRepo, voucherRepo, paymentRepo, stock, sequence, pricing, notifications, publisher,
		OrderAssemblerOptions{DecrementStock: opts.decrementStock, Currency: "VND"})
	groups := NewGroupCartService(carts, cartRepo, assembler, publisher)
	payments := NewPaymentService(cartRepo, orderRepo, paymentRepo, invoiceRepo, catalogRepo, carts, assembler, gateway, nil, publisher, PaymentOptions{
		SuccessRedirect: "https://shop.test/orders/{order_id}?status=success",
		FailureRedirect: "https://shop.test/store/{store_id}/cart?status={status}",
	})
	orders := NewOrderService(orderRepo, invoiceRepo, catalogRepo, sequence, notifications, publisher)

	env := &checkoutEnv{
		db:            db,
		publisher:     publisher,
		gateway:       gateway,
		carts:         carts,
		groups:        groups,
		assembler:     assembler,
		payments:      payments,
		orders:        orders,
		notifications: notifications,
	}
	env.seedCatalog(t)
	return env
}

func (e *checkoutEnv) seedCatalog(t *testing.T) {
	t.Helper()
	e.store = models.Store{OwnerID: testStoreOwnerID, Name: "Pho Corner", IsActive: true}
	if err := e.db.Create(&e.store).Error; err != nil {
		t.Fatalf("create store failed: %v", err)
	}
	e.dishA = models.Dish{StoreID: e.store.ID, Name: "Pho Bo", Price: models.NewMoneyFromInt(50000), StockCount: 10}
	e.dishB = models.Dish{StoreID: e.store.ID, Name: "Goi Cuon", Price: models.NewMoneyFromInt(30000), StockCount: 10}
	if err := e.db.Create(&e.dishA).Error; err != nil {
		t.Fatalf("create dish failed: %v", err)
	}
	if err := e.db.Create(&e.dishB).Error; err != nil {
		t.Fatalf("create dish failed: %v", err)
	}
	group := models.ToppingGroup{StoreID: e.store.ID, Name: "Extras"}
	if err := e.db.Create(&group).Error; err != nil {
		t.Fatalf("create topping group failed: %v", err)
	}
	e.egg = models.Topping{ToppingGroupID: group.ID, Name: "Egg", Price: models.NewMoneyFromInt(5000)}
	if err := e.db.Create(&e.egg).Error; err != nil {
		t.Fatalf("create topping failed: %v", err)
	}
}

func (e *checkoutEnv) createVoucher(t *testing.T, v models.Voucher) *models.Voucher {
	t.Helper()
	if v.StoreID == 0 {
		v.StoreID = e.store.ID
	}
	if v.StartDate.IsZero() {
		v.StartDate = time.Now().Add(-time.Hour)
	}
	if v.EndDate.IsZero() {
		v.EndDate = time.Now().Add(24 * time.Hour)
	}
	v.IsActive = true
	if err := e.db.Create(&v).Error; err != nil {
		t.Fatalf("create voucher failed: %v", err)
	}
	return &v
}

// fillScenarioCart 构造小计 140000 的私有购物车：A(50000+5000)x2 + B 30000x1
func (e *checkoutEnv) fillScenarioCart(t *testing.T, userID uint) *models.Cart {
	t.Helper()
	ctx := context.Background()
	if _, err := e.carts.UpsertItem(ctx, UpsertCartItemInput{
		UserID: userID, StoreID: e.store.ID, DishID: e.dishA.ID, Quantity: 2,
		ToppingIDs: []uint{e.egg.ID}, Action: constants.CartActionAdd,
	}); err != nil {
		t.Fatalf("add dish A failed: %v", err)
	}
	cart, err := e.carts.UpsertItem(ctx, UpsertCartItemInput{
		UserID: userID, StoreID: e.store.ID, DishID: e.dishB.ID, Quantity: 1, Action: constants.CartActionAdd,
	})
	if err != nil {
		t.Fatalf("add dish B failed: %v", err)
	}
	return cart
}

func (e *checkoutEnv) count(t *testing.T, model interface{}) int64 {
	t.Helper()
	var n int64
	if err := e.db.Model(model).Count(&n).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	return n
}

func intPtr(v int) *int {
	return &v
}

func moneyPtr(v int64) *models.Money {
	m := models.NewMoneyFromInt(v)
	return &m
}
