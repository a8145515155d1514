package service

import (
	"context"
	"errors"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/quickbite/internal/constants"
	"github.com/quickbite/internal/models"
	"github.com/quickbite/internal/payment/vnpay"

	"github.com/shopspring/decimal"
)

func vnpayReturn(txnRef string, amount int64, code, hash string) url.Values {
	values := url.Values{}
	values.Set("vnp_TxnRef", txnRef)
	values.Set("vnp_Amount", vnpay.FormatAmount(decimal.NewFromInt(amount)))
	values.Set("vnp_ResponseCode", code)
	values.Set("vnp_TransactionNo", "14012345")
	values.Set("vnp_PayDate", "20260301101010")
	values.Set("vnp_SecureHash", hash)
	return values
}

// requestScenarioURL 构造 145000 的在线结账
func requestScenarioURL(t *testing.T, env *checkoutEnv) (*models.Cart, *CheckoutURLResult) {
	t.Helper()
	cart := env.fillScenarioCart(t, testOwnerID)
	voucher := env.createVoucher(t, models.Voucher{
		Code:          "TEN",
		DiscountType:  constants.VoucherTypePercentage,
		DiscountValue: models.NewMoneyFromInt(10),
		MaxDiscount:   moneyPtr(10000),
	})
	checkout := cashCheckout(testOwnerID, cart.ID)
	checkout.VoucherIDs = []uint{voucher.ID}
	result, err := env.payments.RequestCheckoutURL(context.Background(), *checkout)
	if err != nil {
		t.Fatalf("request checkout url failed: %v", err)
	}
	return cart, result
}

func TestRequestCheckoutURL(t *testing.T) {
	env := setupCheckoutTest(t, checkoutEnvOptions{})
	cart, result := requestScenarioURL(t, env)
	if !result.Amount.Decimal.Equal(models.NewMoneyFromInt(145000).Decimal) {
		t.Fatalf("expected amount 145000, got %s", result.Amount)
	}
	cartID, err := parseTxnRef(result.TxnRef)
	if err != nil || cartID != cart.ID {
		t.Fatalf("txn ref should encode the cart id, got %s", result.TxnRef)
	}
	var stored models.Cart
	env.db.First(&stored, cart.ID)
	if stored.PendingTxnRef != result.TxnRef || stored.PaymentMethod != constants.PaymentMethodVNPay {
		t.Fatalf("checkout context not saved: %+v", stored)
	}
	if stored.Completed {
		t.Fatalf("requesting a payment url must not place the order")
	}
	if len(env.gateway.urls) != 1 || !env.gateway.urls[0].Amount.Equal(decimal.NewFromInt(145000)) {
		t.Fatalf("unexpected gateway input: %+v", env.gateway.urls)
	}
}

func TestRequestCheckoutURLRejectsZeroTotal(t *testing.T) {
	env := setupCheckoutTest(t, checkoutEnvOptions{})
	cart := env.fillScenarioCart(t, testOwnerID)
	voucher := env.createVoucher(t, models.Voucher{
		Code:          "FREE",
		DiscountType:  constants.VoucherTypeFixed,
		DiscountValue: models.NewMoneyFromInt(500000),
	})
	_, err := env.payments.RequestCheckoutURL(context.Background(), CheckoutInput{
		UserID: testOwnerID, CartID: cart.ID, VoucherIDs: []uint{voucher.ID},
	})
	if !errors.Is(err, ErrNonPositiveTotal) {
		t.Fatalf("expected non positive total, got %v", err)
	}
}

func TestHandleReturnInvalidSignature(t *testing.T) {
	env := setupCheckoutTest(t, checkoutEnvOptions{})
	cart, result := requestScenarioURL(t, env)

	res, err := env.payments.HandleReturn(context.Background(), vnpayReturn(result.TxnRef, 145000, "00", "forged"))
	if !errors.Is(err, ErrGatewayBadSignature) {
		t.Fatalf("expected bad signature, got %v", err)
	}
	if res.Success {
		t.Fatalf("invalid signature must not succeed")
	}
	if !strings.Contains(res.RedirectURL, "status=invalid_signature") || !strings.Contains(res.RedirectURL, "/store/") {
		t.Fatalf("unexpected redirect: %s", res.RedirectURL)
	}
	if env.count(t, &models.Order{}) != 0 || env.count(t, &models.Payment{}) != 0 {
		t.Fatalf("invalid signature must not create order or payment")
	}
	var stored models.Cart
	env.db.First(&stored, cart.ID)
	if stored.Completed {
		t.Fatalf("cart should stay open")
	}
}

func TestHandleReturnDeclined(t *testing.T) {
	env := setupCheckoutTest(t, checkoutEnvOptions{})
	cart, result := requestScenarioURL(t, env)
	res, err := env.payments.HandleReturn(context.Background(), vnpayReturn(result.TxnRef, 145000, "24", "valid"))
	if err != nil {
		t.Fatalf("declined payment should not error: %v", err)
	}
	if res.Success || !strings.HasSuffix(res.RedirectURL, "status=24") {
		t.Fatalf("unexpected result: %+v", res)
	}
	if !strings.Contains(res.RedirectURL, "/store/"+itoa(cart.StoreID)+"/") {
		t.Fatalf("redirect should point at the store cart: %s", res.RedirectURL)
	}
	if env.count(t, &models.Order{}) != 0 {
		t.Fatalf("declined payment must not create an order")
	}
}

func TestHandleReturnIsIdempotent(t *testing.T) {
	env := setupCheckoutTest(t, checkoutEnvOptions{})
	ctx := context.Background()
	_, result := requestScenarioURL(t, env)
	values := vnpayReturn(result.TxnRef, 145000, "00", "valid")

	first, err := env.payments.HandleReturn(ctx, values)
	if err != nil {
		t.Fatalf("first return failed: %v", err)
	}
	if !first.Success || first.OrderID == 0 {
		t.Fatalf("expected success, got %+v", first)
	}
	if first.RedirectURL != "https://shop.test/orders/"+itoa(first.OrderID)+"?status=success" {
		t.Fatalf("unexpected redirect: %s", first.RedirectURL)
	}

	second, err := env.payments.HandleReturn(ctx, values)
	if err != nil {
		t.Fatalf("second return failed: %v", err)
	}
	if second.OrderID != first.OrderID {
		t.Fatalf("duplicate return should resolve to the same order")
	}
	if env.count(t, &models.Order{}) != 1 || env.count(t, &models.Payment{}) != 1 {
		t.Fatalf("expected exactly one order and one payment")
	}

	var payment models.Payment
	env.db.Where("transaction_id = ?", result.TxnRef).First(&payment)
	if payment.Status != constants.PaymentStatusSuccess || !payment.Amount.Decimal.Equal(models.NewMoneyFromInt(145000).Decimal) {
		t.Fatalf("unexpected payment: %+v", payment)
	}
	var order models.Order
	env.db.First(&order, first.OrderID)
	if order.PaymentStatus != constants.OrderPaymentPaid || order.PaymentMethod != constants.PaymentMethodVNPay {
		t.Fatalf("unexpected order payment state: %s/%s", order.PaymentMethod, order.PaymentStatus)
	}
}

func TestHandleReturnAmountMismatchIsCritical(t *testing.T) {
	env := setupCheckoutTest(t, checkoutEnvOptions{})
	ctx := context.Background()
	_, result := requestScenarioURL(t, env)

	res, err := env.payments.HandleReturn(ctx, vnpayReturn(result.TxnRef, 100000, "00", "valid"))
	if !errors.Is(err, ErrCriticalInconsistency) {
		t.Fatalf("expected critical inconsistency, got %v", err)
	}
	if res.Success || !strings.HasSuffix(res.RedirectURL, "status=critical") {
		t.Fatalf("unexpected result: %+v", res)
	}
	if env.count(t, &models.Order{}) != 0 {
		t.Fatalf("mismatched amount must not create an order")
	}
	var incident models.PaymentIncident
	if err := env.db.Where("transaction_id = ?", result.TxnRef).First(&incident).Error; err != nil {
		t.Fatalf("expected incident record: %v", err)
	}
	if incident.Status != constants.PaymentIncidentAlerted || incident.AlertedAt == nil {
		t.Fatalf("incident should be alerted inline without a queue, got %s", incident.Status)
	}
	if env.publisher.count(constants.EventPaymentIncident) != 1 {
		t.Fatalf("expected one incident event")
	}

	if _, err := env.payments.HandleReturn(ctx, vnpayReturn(result.TxnRef, 100000, "00", "valid")); !errors.Is(err, ErrCriticalInconsistency) {
		t.Fatalf("expected critical again, got %v", err)
	}
	if env.count(t, &models.PaymentIncident{}) != 1 || env.publisher.count(constants.EventPaymentIncident) != 1 {
		t.Fatalf("repeated return must not duplicate the incident or alert")
	}
}

func TestHandleReturnUnknownCartIsCritical(t *testing.T) {
	env := setupCheckoutTest(t, checkoutEnvOptions{})
	_, err := env.payments.HandleReturn(context.Background(), vnpayReturn("999_123456", 145000, "00", "valid"))
	if !errors.Is(err, ErrCriticalInconsistency) {
		t.Fatalf("expected critical inconsistency, got %v", err)
	}
	if env.count(t, &models.PaymentIncident{}) != 1 {
		t.Fatalf("expected incident record")
	}
}

func paidOrder(t *testing.T, env *checkoutEnv) (*models.Order, string) {
	t.Helper()
	_, result := requestScenarioURL(t, env)
	res, err := env.payments.HandleReturn(context.Background(), vnpayReturn(result.TxnRef, 145000, "00", "valid"))
	if err != nil {
		t.Fatalf("return failed: %v", err)
	}
	var order models.Order
	if err := env.db.First(&order, res.OrderID).Error; err != nil {
		t.Fatalf("load order failed: %v", err)
	}
	return &order, result.TxnRef
}

func TestRefundPartialThenFull(t *testing.T) {
	env := setupCheckoutTest(t, checkoutEnvOptions{})
	ctx := context.Background()
	order, txnRef := paidOrder(t, env)
	if _, err := env.orders.UpdateStatus(ctx, UpdateOrderStatusInput{OperatorID: testStoreOwnerID, OrderID: order.ID, Status: "preparing"}); err != nil {
		t.Fatalf("advance order failed: %v", err)
	}

	if _, err := env.payments.Refund(ctx, RefundInput{OperatorID: testOwnerID, OrderID: order.ID, Amount: models.NewMoneyFromInt(1000)}); !errors.Is(err, ErrNotStoreOwner) {
		t.Fatalf("customer cannot refund, got %v", err)
	}

	partial, err := env.payments.Refund(ctx, RefundInput{OperatorID: testStoreOwnerID, OrderID: order.ID, Amount: models.NewMoneyFromInt(45000)})
	if err != nil {
		t.Fatalf("partial refund failed: %v", err)
	}
	if partial.Status != constants.PaymentStatusRefunded || !strings.HasPrefix(partial.TransactionID, txnRef+"_refund_") {
		t.Fatalf("unexpected refund record: %+v", partial)
	}
	if env.gateway.refunds[0].Full || env.gateway.refunds[0].TransactionNo != "14012345" {
		t.Fatalf("unexpected gateway refund: %+v", env.gateway.refunds[0])
	}
	var stored models.Order
	env.db.First(&stored, order.ID)
	if stored.PaymentStatus != constants.OrderPaymentPaid {
		t.Fatalf("partial refund keeps order paid, got %s", stored.PaymentStatus)
	}

	if _, err := env.payments.Refund(ctx, RefundInput{OperatorID: testStoreOwnerID, OrderID: order.ID, Amount: models.NewMoneyFromInt(100001)}); !errors.Is(err, ErrInvalidRefund) {
		t.Fatalf("expected over refund rejection, got %v", err)
	}

	if _, err := env.payments.Refund(ctx, RefundInput{OperatorID: testStoreOwnerID, TransactionID: txnRef, Amount: models.NewMoneyFromInt(100000)}); err != nil {
		t.Fatalf("final refund failed: %v", err)
	}
	env.db.First(&stored, order.ID)
	if stored.PaymentStatus != constants.OrderPaymentRefunded {
		t.Fatalf("expected refunded order, got %s", stored.PaymentStatus)
	}
	if env.count(t, &models.Payment{}) != 3 {
		t.Fatalf("expected capture plus two refunds")
	}
	if _, err := env.payments.Refund(ctx, RefundInput{OperatorID: testStoreOwnerID, OrderID: order.ID, Amount: models.NewMoneyFromInt(1)}); !errors.Is(err, ErrInvalidRefund) {
		t.Fatalf("nothing left to refund, got %v", err)
	}
}

func TestRefundFullMarksInvoiceRefunded(t *testing.T) {
	env := setupCheckoutTest(t, checkoutEnvOptions{})
	ctx := context.Background()
	order, _ := paidOrder(t, env)
	for _, status := range []string{"preparing", "finished", "delivering", "done"} {
		if _, err := env.orders.UpdateStatus(ctx, UpdateOrderStatusInput{OperatorID: testStoreOwnerID, OrderID: order.ID, Status: status}); err != nil {
			t.Fatalf("advance to %s failed: %v", status, err)
		}
	}
	if _, err := env.payments.Refund(ctx, RefundInput{OperatorID: testStoreOwnerID, OrderID: order.ID, Amount: models.NewMoneyFromInt(145000)}); err != nil {
		t.Fatalf("refund failed: %v", err)
	}
	if !env.gateway.refunds[0].Full {
		t.Fatalf("expected a full refund request")
	}
	var invoice models.Invoice
	env.db.Where("order_id = ?", order.ID).First(&invoice)
	if invoice.Status != constants.InvoiceStatusRefunded {
		t.Fatalf("expected refunded invoice, got %s", invoice.Status)
	}
}

func TestRefundRejectedByGateway(t *testing.T) {
	env := setupCheckoutTest(t, checkoutEnvOptions{})
	order, _ := paidOrder(t, env)
	env.gateway.refundCode = "94"
	_, err := env.payments.Refund(context.Background(), RefundInput{OperatorID: testStoreOwnerID, OrderID: order.ID, Amount: models.NewMoneyFromInt(1000)})
	if !errors.Is(err, ErrGatewayRefundRejected) || !IsKind(err, KindExternalGateway) {
		t.Fatalf("expected gateway rejection, got %v", err)
	}
	if env.count(t, &models.Payment{}) != 1 {
		t.Fatalf("rejected refund must not be recorded")
	}
}

func TestRefundCashOrderIsNotPaid(t *testing.T) {
	env := setupCheckoutTest(t, checkoutEnvOptions{})
	cart := env.fillScenarioCart(t, testOwnerID)
	order, err := env.payments.CheckoutCash(context.Background(), *cashCheckout(testOwnerID, cart.ID))
	if err != nil {
		t.Fatalf("cash checkout failed: %v", err)
	}
	_, err = env.payments.Refund(context.Background(), RefundInput{OperatorID: testStoreOwnerID, OrderID: order.ID, Amount: models.NewMoneyFromInt(1000)})
	if !errors.Is(err, ErrOrderNotPaid) {
		t.Fatalf("expected order not paid, got %v", err)
	}
}

func TestParseTxnRef(t *testing.T) {
	if id, err := parseTxnRef("42_123456"); err != nil || id != 42 {
		t.Fatalf("unexpected parse result: %d %v", id, err)
	}
	for _, raw := range []string{"", "_123", "abc_1", "0_123456", "42"} {
		if _, err := parseTxnRef(raw); err == nil {
			t.Fatalf("expected error for %q", raw)
		}
	}
	ref, err := generateTxnRef(7)
	if err != nil || !strings.HasPrefix(ref, "7_") || len(ref) != len("7_123456") {
		t.Fatalf("unexpected txn ref %q: %v", ref, err)
	}
}

func itoa(v uint) string {
	return strconv.FormatUint(uint64(v), 10)
}

func TestRequestCheckoutURLRejectsExhaustedVoucher(t *testing.T) {
	env := setupCheckoutTest(t, checkoutEnvOptions{})
	ctx := context.Background()
	cart := env.fillScenarioCart(t, testOwnerID)
	voucher := env.createVoucher(t, models.Voucher{
		Code:          "LAST",
		DiscountType:  constants.VoucherTypeFixed,
		DiscountValue: models.NewMoneyFromInt(5000),
		UsageLimit:    intPtr(1),
	})
	if _, err := env.carts.ApplyVoucher(ctx, testOwnerID, cart.ID, voucher.ID); err != nil {
		t.Fatalf("apply voucher failed: %v", err)
	}
	// 其他订单先用完了总量
	if err := env.db.Model(&models.Voucher{}).Where("id = ?", voucher.ID).Update("used_count", 1).Error; err != nil {
		t.Fatalf("exhaust voucher failed: %v", err)
	}

	_, err := env.payments.RequestCheckoutURL(ctx, *cashCheckout(testOwnerID, cart.ID))
	if !errors.Is(err, ErrVoucherUsageExceeded) {
		t.Fatalf("expected usage exceeded before charging, got %v", err)
	}
	if len(env.gateway.urls) != 0 {
		t.Fatalf("no payment url may be issued for an exhausted voucher")
	}
	var stored models.Cart
	env.db.First(&stored, cart.ID)
	if stored.PendingTxnRef != "" || stored.PendingUntil != nil {
		t.Fatalf("rejected request must not mark the cart pending: %+v", stored)
	}
	if env.count(t, &models.PaymentIncident{}) != 0 {
		t.Fatalf("no incident expected")
	}
}

func TestRequestCheckoutURLRejectsUserLimitedVoucher(t *testing.T) {
	env := setupCheckoutTest(t, checkoutEnvOptions{})
	cart := env.fillScenarioCart(t, testOwnerID)
	voucher := env.createVoucher(t, models.Voucher{
		Code:          "ONCEEACH",
		DiscountType:  constants.VoucherTypeFixed,
		DiscountValue: models.NewMoneyFromInt(5000),
		UserLimit:     intPtr(1),
	})
	if err := env.db.Create(&models.UserVoucherUsage{UserID: testOwnerID, VoucherID: voucher.ID, UsedCount: 1}).Error; err != nil {
		t.Fatalf("seed usage failed: %v", err)
	}
	checkout := cashCheckout(testOwnerID, cart.ID)
	checkout.VoucherIDs = []uint{voucher.ID}
	if _, err := env.payments.RequestCheckoutURL(context.Background(), *checkout); !errors.Is(err, ErrVoucherUsageExceeded) {
		t.Fatalf("expected per-user limit before charging, got %v", err)
	}
	if len(env.gateway.urls) != 0 {
		t.Fatalf("no payment url may be issued")
	}
}

func TestRequestCheckoutURLRechecksStock(t *testing.T) {
	env := setupCheckoutTest(t, checkoutEnvOptions{})
	cart := env.fillScenarioCart(t, testOwnerID)
	if err := env.db.Model(&models.Dish{}).Where("id = ?", env.dishA.ID).Update("stock_count", 1).Error; err != nil {
		t.Fatalf("drop stock failed: %v", err)
	}
	_, err := env.payments.RequestCheckoutURL(context.Background(), *cashCheckout(testOwnerID, cart.ID))
	if !errors.Is(err, ErrInsufficientStock) {
		t.Fatalf("expected insufficient stock before charging, got %v", err)
	}
	if len(env.gateway.urls) != 0 {
		t.Fatalf("no payment url may be issued when stock ran out")
	}
}

func TestRequestCheckoutURLRechecksGroupSummedStock(t *testing.T) {
	env := setupCheckoutTest(t, checkoutEnvOptions{})
	ctx := context.Background()
	group := enableGroupCart(t, env)
	if _, err := env.groups.Join(ctx, *group.JoinToken, testFriendID); err != nil {
		t.Fatalf("join failed: %v", err)
	}
	if _, err := env.groups.UpsertItem(ctx, UpsertGroupItemInput{
		UserID: testFriendID, CartID: group.ID, DishID: env.dishA.ID, Quantity: 6, Action: constants.CartActionAdd,
	}); err != nil {
		t.Fatalf("participant add failed: %v", err)
	}
	// 每行都不超过 7，但合计 8
	if err := env.db.Model(&models.Dish{}).Where("id = ?", env.dishA.ID).Update("stock_count", 7).Error; err != nil {
		t.Fatalf("drop stock failed: %v", err)
	}
	_, err := env.payments.RequestCheckoutURL(ctx, *cashCheckout(testOwnerID, group.ID))
	if !errors.Is(err, ErrInsufficientStock) {
		t.Fatalf("expected summed stock rejection, got %v", err)
	}
	if len(env.gateway.urls) != 0 {
		t.Fatalf("no payment url may be issued")
	}
}

func TestPendingPaymentFreezesCart(t *testing.T) {
	env := setupCheckoutTest(t, checkoutEnvOptions{})
	ctx := context.Background()
	cart, result := requestScenarioURL(t, env)

	var stored models.Cart
	env.db.First(&stored, cart.ID)
	if stored.PendingUntil == nil || !stored.PendingUntil.After(time.Now()) {
		t.Fatalf("pending window should be set, got %v", stored.PendingUntil)
	}

	if _, err := env.carts.UpsertItem(ctx, UpsertCartItemInput{
		UserID: testOwnerID, StoreID: env.store.ID, DishID: env.dishB.ID, Quantity: 1, Action: constants.CartActionAdd,
	}); !errors.Is(err, ErrCartPaymentPending) {
		t.Fatalf("edit during payment should be rejected, got %v", err)
	}
	var applied models.Voucher
	if err := env.db.Where("code = ?", "TEN").First(&applied).Error; err != nil {
		t.Fatalf("load voucher failed: %v", err)
	}
	if _, err := env.carts.RemoveVoucher(ctx, testOwnerID, cart.ID, applied.ID); !errors.Is(err, ErrCartPaymentPending) {
		t.Fatalf("voucher removal during payment should be rejected, got %v", err)
	}
	if _, err := env.payments.CheckoutCash(ctx, *cashCheckout(testOwnerID, cart.ID)); !errors.Is(err, ErrCartPaymentPending) {
		t.Fatalf("cash checkout during payment should be rejected, got %v", err)
	}
	if err := env.carts.ClearStoreCart(ctx, testOwnerID, env.store.ID); !errors.Is(err, ErrCartPaymentPending) {
		t.Fatalf("clearing during payment should be rejected, got %v", err)
	}

	// 重新获取链接后旧流水号的失败回跳不解除占用
	again, err := env.payments.RequestCheckoutURL(ctx, *cashCheckout(testOwnerID, cart.ID))
	if err != nil {
		t.Fatalf("re-requesting a payment url failed: %v", err)
	}
	if again.TxnRef == result.TxnRef {
		t.Fatalf("a fresh txn ref is expected")
	}
	if _, err := env.payments.HandleReturn(ctx, vnpayReturn(result.TxnRef, 145000, "24", "valid")); err != nil {
		t.Fatalf("stale decline failed: %v", err)
	}
	env.db.First(&stored, cart.ID)
	if stored.PendingTxnRef != again.TxnRef {
		t.Fatalf("stale decline must not release the live link")
	}

	if _, err := env.payments.HandleReturn(ctx, vnpayReturn(again.TxnRef, 145000, "24", "valid")); err != nil {
		t.Fatalf("decline failed: %v", err)
	}
	if _, err := env.carts.UpsertItem(ctx, UpsertCartItemInput{
		UserID: testOwnerID, StoreID: env.store.ID, DishID: env.dishB.ID, Quantity: 1, Action: constants.CartActionAdd,
	}); err != nil {
		t.Fatalf("declined payment should release the cart: %v", err)
	}
}

func TestPendingPaymentExpires(t *testing.T) {
	env := setupCheckoutTest(t, checkoutEnvOptions{})
	ctx := context.Background()
	cart, _ := requestScenarioURL(t, env)
	if err := env.db.Model(&models.Cart{}).Where("id = ?", cart.ID).
		Update("pending_until", time.Now().Add(-time.Minute)).Error; err != nil {
		t.Fatalf("age pending window failed: %v", err)
	}
	if _, err := env.payments.CheckoutCash(ctx, *cashCheckout(testOwnerID, cart.ID)); err != nil {
		t.Fatalf("cash checkout after the link expired failed: %v", err)
	}
}

func TestHandleReturnConcurrentDuplicates(t *testing.T) {
	env := setupCheckoutTest(t, checkoutEnvOptions{})
	ctx := context.Background()
	_, result := requestScenarioURL(t, env)
	values := vnpayReturn(result.TxnRef, 145000, "00", "valid")

	const workers = 6
	var wg sync.WaitGroup
	results := make(chan *ReturnResult, workers)
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := env.payments.HandleReturn(ctx, values)
			if err != nil {
				errs <- err
				return
			}
			results <- res
		}()
	}
	wg.Wait()
	close(results)
	close(errs)
	for err := range errs {
		t.Fatalf("duplicate return failed: %v", err)
	}

	var orderID uint
	for res := range results {
		if !res.Success || res.OrderID == 0 {
			t.Fatalf("every duplicate should resolve to success, got %+v", res)
		}
		if orderID == 0 {
			orderID = res.OrderID
		}
		if res.OrderID != orderID {
			t.Fatalf("duplicates resolved to different orders: %d vs %d", res.OrderID, orderID)
		}
	}
	if env.count(t, &models.Order{}) != 1 || env.count(t, &models.Payment{}) != 1 {
		t.Fatalf("expected exactly one order and one payment")
	}
	if env.count(t, &models.PaymentIncident{}) != 0 {
		t.Fatalf("duplicates must not raise incidents")
	}
}
