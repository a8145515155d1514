package router

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/quickbite/internal/config"
	"github.com/quickbite/internal/models"
	"github.com/quickbite/internal/provider"
	"github.com/quickbite/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

const (
	routerTestSecret   = "router-test-secret"
	routerTestOwner    = uint(900)
	routerTestBuyer    = uint(11)
	routerTestStranger = uint(12)
)

type apiEnvelope struct {
	StatusCode int             `json:"status_code"`
	Code       string          `json:"code"`
	Msg        string          `json:"msg"`
	Data       json.RawMessage `json:"data"`
}

type routerEnv struct {
	engine *gin.Engine
	store  models.Store
	dish   models.Dish
}

func setupRouterTest(t *testing.T) *routerEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	dsn := fmt.Sprintf("file:router_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
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

	cfg := &config.Config{
		Server:  config.ServerConfig{Mode: "debug"},
		UserJWT: config.JWTConfig{SecretKey: routerTestSecret},
		Order:   config.OrderConfig{DecrementStockOnOrder: true, Currency: "VND"},
		Security: config.SecurityConfig{
			CheckoutRateLimit: config.RateLimitConfig{WindowSeconds: 60, MaxRequests: 5},
		},
	}
	container := provider.NewContainer(cfg)

	env := &routerEnv{engine: SetupRouter(cfg, container)}
	env.store = models.Store{OwnerID: routerTestOwner, Name: "Bun Cha Ha Noi", IsActive: true}
	if err := db.Create(&env.store).Error; err != nil {
		t.Fatalf("create store failed: %v", err)
	}
	env.dish = models.Dish{StoreID: env.store.ID, Name: "Bun Cha", Price: models.NewMoneyFromInt(45000), StockCount: 5}
	if err := db.Create(&env.dish).Error; err != nil {
		t.Fatalf("create dish failed: %v", err)
	}
	return env
}

func (e *routerEnv) do(t *testing.T, method, path string, userID uint, body interface{}) (*httptest.ResponseRecorder, apiEnvelope) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body failed: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if userID != 0 {
		token, _, err := service.GenerateUserJWT(routerTestSecret, "", userID, time.Hour)
		if err != nil {
			t.Fatalf("generate token failed: %v", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.engine.ServeHTTP(w, req)

	var envelope apiEnvelope
	if w.Body.Len() > 0 {
		if err := json.Unmarshal(w.Body.Bytes(), &envelope); err != nil {
			t.Fatalf("unmarshal response failed: %v (%s)", err, w.Body.String())
		}
	}
	return w, envelope
}

func TestHealthz(t *testing.T) {
	env := setupRouterTest(t)
	w := httptest.NewRecorder()
	env.engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("healthz want 200 got %d", w.Code)
	}
}

func TestCartRoutesRequireAuth(t *testing.T) {
	env := setupRouterTest(t)
	w, envelope := env.do(t, http.MethodGet, "/api/v1/carts", 0, nil)
	if w.Code != http.StatusUnauthorized || envelope.StatusCode != 401 {
		t.Fatalf("want 401 got %d/%d", w.Code, envelope.StatusCode)
	}
}

func TestCheckoutFlowOverHTTP(t *testing.T) {
	env := setupRouterTest(t)

	w, envelope := env.do(t, http.MethodPost, "/api/v1/carts/items", routerTestBuyer, gin.H{
		"store_id": env.store.ID,
		"dish_id":  env.dish.ID,
		"quantity": 2,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("upsert item want 200 got %d: %s", w.Code, w.Body.String())
	}
	var view struct {
		Cart  models.Cart `json:"cart"`
		Quote struct {
			Subtotal   string `json:"subtotal"`
			FinalTotal string `json:"final_total"`
		} `json:"quote"`
	}
	if err := json.Unmarshal(envelope.Data, &view); err != nil {
		t.Fatalf("unmarshal cart view failed: %v", err)
	}
	if view.Quote.Subtotal != "90000.00" || view.Quote.FinalTotal != "90000.00" {
		t.Fatalf("unexpected quote: %+v", view.Quote)
	}
	cartID := view.Cart.ID

	// 其他用户看不到该购物车
	w, _ = env.do(t, http.MethodGet, fmt.Sprintf("/api/v1/carts/%d/quote", cartID), routerTestStranger, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("stranger quote want 404 got %d", w.Code)
	}

	w, envelope = env.do(t, http.MethodPost, fmt.Sprintf("/api/v1/carts/%d/checkout", cartID), routerTestBuyer, nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("checkout want 201 got %d: %s", w.Code, w.Body.String())
	}
	var order models.Order
	if err := json.Unmarshal(envelope.Data, &order); err != nil {
		t.Fatalf("unmarshal order failed: %v", err)
	}
	if order.Status != models.OrderStatusPending || order.FinalTotal.String() != "90000.00" {
		t.Fatalf("unexpected order: status=%s total=%s", order.Status, order.FinalTotal.String())
	}

	w, envelope = env.do(t, http.MethodPost, fmt.Sprintf("/api/v1/carts/%d/checkout", cartID), routerTestBuyer, nil)
	if w.Code != http.StatusUnprocessableEntity || envelope.Code != "cart_completed" {
		t.Fatalf("repeat checkout want 422 cart_completed got %d %s", w.Code, envelope.Code)
	}

	statusPath := fmt.Sprintf("/api/v1/merchant/orders/%d/status", order.ID)
	w, envelope = env.do(t, http.MethodPut, statusPath, routerTestBuyer, gin.H{"status": "preparing"})
	if w.Code != http.StatusUnprocessableEntity || envelope.Code != "not_store_owner" {
		t.Fatalf("non owner update want 422 not_store_owner got %d %s", w.Code, envelope.Code)
	}
	w, envelope = env.do(t, http.MethodPut, statusPath, routerTestOwner, gin.H{"status": "done"})
	if w.Code != http.StatusUnprocessableEntity || envelope.Code != "invalid_status_transition" {
		t.Fatalf("skip transition want 422 got %d %s", w.Code, envelope.Code)
	}
	w, _ = env.do(t, http.MethodPut, statusPath, routerTestOwner, gin.H{"status": "preparing"})
	if w.Code != http.StatusOK {
		t.Fatalf("owner update want 200 got %d: %s", w.Code, w.Body.String())
	}

	w, envelope = env.do(t, http.MethodGet, fmt.Sprintf("/api/v1/orders/%d", order.ID), routerTestBuyer, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get order want 200 got %d", w.Code)
	}
	var detail struct {
		Order models.Order `json:"order"`
	}
	if err := json.Unmarshal(envelope.Data, &detail); err != nil {
		t.Fatalf("unmarshal order failed: %v", err)
	}
	if detail.Order.Status != models.OrderStatusPreparing {
		t.Fatalf("order status want preparing got %s", detail.Order.Status)
	}

	var dish models.Dish
	if err := models.DB.First(&dish, env.dish.ID).Error; err != nil {
		t.Fatalf("reload dish failed: %v", err)
	}
	if dish.StockCount != 3 {
		t.Fatalf("stock want 3 got %d", dish.StockCount)
	}
}

func TestCheckoutRejectsMalformedBody(t *testing.T) {
	env := setupRouterTest(t)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/carts/1/checkout", bytes.NewBufferString("{"))
	req.Header.Set("Content-Type", "application/json")
	token, _, err := service.GenerateUserJWT(routerTestSecret, "", routerTestBuyer, time.Hour)
	if err != nil {
		t.Fatalf("generate token failed: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	env.engine.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("malformed body want 400 got %d", w.Code)
	}
}

func TestReorderAndClearOverHTTP(t *testing.T) {
	env := setupRouterTest(t)

	w, envelope := env.do(t, http.MethodPost, "/api/v1/carts/items", routerTestBuyer, gin.H{
		"store_id": env.store.ID,
		"dish_id":  env.dish.ID,
		"quantity": 2,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("upsert item want 200 got %d: %s", w.Code, w.Body.String())
	}
	var view struct {
		Cart models.Cart `json:"cart"`
	}
	if err := json.Unmarshal(envelope.Data, &view); err != nil {
		t.Fatalf("unmarshal cart view failed: %v", err)
	}
	w, envelope = env.do(t, http.MethodPost, fmt.Sprintf("/api/v1/carts/%d/checkout", view.Cart.ID), routerTestBuyer, nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("checkout want 201 got %d: %s", w.Code, w.Body.String())
	}
	var order models.Order
	if err := json.Unmarshal(envelope.Data, &order); err != nil {
		t.Fatalf("unmarshal order failed: %v", err)
	}

	reorderPath := fmt.Sprintf("/api/v1/orders/%d/reorder", order.ID)
	w, envelope = env.do(t, http.MethodPost, reorderPath, routerTestStranger, nil)
	if w.Code != http.StatusNotFound || envelope.Code != "order_not_found" {
		t.Fatalf("stranger reorder want 404 got %d %s", w.Code, envelope.Code)
	}
	w, envelope = env.do(t, http.MethodPost, reorderPath, routerTestBuyer, nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("reorder want 201 got %d: %s", w.Code, w.Body.String())
	}
	if err := json.Unmarshal(envelope.Data, &view); err != nil {
		t.Fatalf("unmarshal reorder view failed: %v", err)
	}
	if len(view.Cart.Items) != 1 || view.Cart.Items[0].Quantity != 2 {
		t.Fatalf("reorder should copy the order lines, got %+v", view.Cart.Items)
	}

	now := time.Now()
	voucher := models.Voucher{
		StoreID: env.store.ID, Code: "BUNCHA", DiscountType: "FIXED", DiscountValue: models.NewMoneyFromInt(5000),
		StartDate: now.Add(-time.Hour), EndDate: now.Add(time.Hour), IsActive: true,
	}
	if err := models.DB.Create(&voucher).Error; err != nil {
		t.Fatalf("create voucher failed: %v", err)
	}
	w, envelope = env.do(t, http.MethodGet, fmt.Sprintf("/api/v1/stores/%d/vouchers", env.store.ID), routerTestBuyer, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list vouchers want 200 got %d", w.Code)
	}
	var vouchers []models.Voucher
	if err := json.Unmarshal(envelope.Data, &vouchers); err != nil {
		t.Fatalf("unmarshal vouchers failed: %v", err)
	}
	if len(vouchers) != 1 || vouchers[0].ID != voucher.ID {
		t.Fatalf("unexpected vouchers: %+v", vouchers)
	}

	w, _ = env.do(t, http.MethodDelete, fmt.Sprintf("/api/v1/carts/store/%d", env.store.ID), routerTestBuyer, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("clear store cart want 200 got %d: %s", w.Code, w.Body.String())
	}
	w, envelope = env.do(t, http.MethodDelete, "/api/v1/carts", routerTestBuyer, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("clear carts want 200 got %d", w.Code)
	}
	var cleared struct {
		Cleared int `json:"cleared"`
	}
	if err := json.Unmarshal(envelope.Data, &cleared); err != nil || cleared.Cleared != 0 {
		t.Fatalf("nothing should be left to clear, got %+v err=%v", cleared, err)
	}
}
