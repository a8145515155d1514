package service

import (
	"sort"
	"strings"
	"time"

	"github.com/quickbite/internal/constants"
	"github.com/quickbite/internal/models"

	"github.com/shopspring/decimal"
)

// AppliedVoucher 生效的优惠券及其优惠金额
type AppliedVoucher struct {
	Voucher  models.Voucher `json:"voucher"`
	Discount models.Money   `json:"discount"`
}

// RejectedVoucher 未生效的优惠券及原因
type RejectedVoucher struct {
	VoucherID uint   `json:"voucher_id"`
	Code      string `json:"code"`
	Reason    string `json:"reason"`
	err       error
}

// Err 返回拒绝原因对应的业务错误
func (r RejectedVoucher) Err() error {
	return r.err
}

// VoucherResult 优惠券计算结果
type VoucherResult struct {
	TotalDiscount models.Money      `json:"total_discount"`
	Applied       []AppliedVoucher  `json:"applied"`
	Rejected      []RejectedVoucher `json:"rejected"`
}

// Quote 购物车价格预览
type Quote struct {
	Subtotal      models.Money      `json:"subtotal"`
	TotalDiscount models.Money      `json:"total_discount"`
	ShippingFee   models.Money      `json:"shipping_fee"`
	FinalTotal    models.Money      `json:"final_total"`
	Applied       []AppliedVoucher  `json:"applied_vouchers"`
	Rejected      []RejectedVoucher `json:"rejected_vouchers"`
}

// LineAmounts 单行金额拆分
type LineAmounts struct {
	ToppingsTotal models.Money
	LineSubtotal  models.Money // 单份（菜品+配料）
	LineTotal     models.Money
}

// PricingEngine 小计、优惠与实付计算
type PricingEngine struct {
	stackingPolicy string
}

// NewPricingEngine 创建计价引擎，未知策略按 stackable_only 处理
func NewPricingEngine(stackingPolicy string) *PricingEngine {
	policy := strings.ToLower(strings.TrimSpace(stackingPolicy))
	if policy != constants.VoucherStackingAll {
		policy = constants.VoucherStackingStackableOnly
	}
	return &PricingEngine{stackingPolicy: policy}
}

// StackingPolicy 当前叠加策略
func (e *PricingEngine) StackingPolicy() string {
	return e.stackingPolicy
}

// ComputeLine 计算单行金额
func (e *PricingEngine) ComputeLine(item models.CartItem) LineAmounts {
	toppings := models.ZeroMoney()
	for _, topping := range item.Toppings {
		toppings = toppings.Plus(topping.Price)
	}
	unit := item.UnitPrice.Plus(toppings)
	quantity := item.Quantity
	if quantity < 0 {
		quantity = 0
	}
	return LineAmounts{
		ToppingsTotal: toppings,
		LineSubtotal:  unit,
		LineTotal:     unit.Times(quantity),
	}
}

// ComputeSubtotal 小计 = Σ 数量 × (单价 + Σ 配料价)
func (e *PricingEngine) ComputeSubtotal(items []models.CartItem) models.Money {
	subtotal := models.ZeroMoney()
	for _, item := range items {
		subtotal = subtotal.Plus(e.ComputeLine(item).LineTotal)
	}
	return subtotal
}

// ValidateVoucher 校验优惠券在当前小计与时间下是否可用
func (e *PricingEngine) ValidateVoucher(voucher *models.Voucher, subtotal models.Money, now time.Time) error {
	if voucher == nil {
		return ErrVoucherNotFound
	}
	if !voucher.IsActive {
		return ErrVoucherInactive
	}
	if now.Before(voucher.StartDate) || now.After(voucher.EndDate) {
		return ErrVoucherExpired
	}
	if voucher.MinOrderAmount != nil && subtotal.Decimal.LessThan(voucher.MinOrderAmount.Decimal) {
		return ErrVoucherMinOrder
	}
	return nil
}

// CheckVoucherUsage 校验优惠券总用量与用户已用次数均未达上限
func (e *PricingEngine) CheckVoucherUsage(voucher *models.Voucher, userUsed int) error {
	if voucher == nil {
		return ErrVoucherNotFound
	}
	if voucher.UsageLimit != nil && voucher.UsedCount >= *voucher.UsageLimit {
		return ErrVoucherUsageExceeded
	}
	if voucher.UserLimit != nil && userUsed >= *voucher.UserLimit {
		return ErrVoucherUsageExceeded
	}
	return nil
}

// VoucherDiscount 单张优惠券的优惠金额（百分比按上限截断）
func (e *PricingEngine) VoucherDiscount(voucher *models.Voucher, subtotal models.Money) models.Money {
	if voucher == nil {
		return models.ZeroMoney()
	}
	var discount decimal.Decimal
	switch strings.ToUpper(strings.TrimSpace(voucher.DiscountType)) {
	case constants.VoucherTypePercentage:
		discount = subtotal.Decimal.Mul(voucher.DiscountValue.Decimal).Div(decimal.NewFromInt(100))
		if voucher.MaxDiscount != nil && discount.GreaterThan(voucher.MaxDiscount.Decimal) {
			discount = voucher.MaxDiscount.Decimal
		}
	case constants.VoucherTypeFixed:
		discount = voucher.DiscountValue.Decimal
	default:
		discount = decimal.Zero
	}
	if discount.IsNegative() {
		discount = decimal.Zero
	}
	return models.NewMoneyFromDecimal(discount)
}

// ApplyVouchers 按叠加策略计算优惠，总优惠不超过小计
func (e *PricingEngine) ApplyVouchers(subtotal models.Money, vouchers []models.Voucher, now time.Time) VoucherResult {
	result := VoucherResult{TotalDiscount: models.ZeroMoney()}

	var passing []AppliedVoucher
	for i := range vouchers {
		voucher := vouchers[i]
		if err := e.ValidateVoucher(&voucher, subtotal, now); err != nil {
			result.Rejected = append(result.Rejected, rejectVoucher(voucher, err))
			continue
		}
		passing = append(passing, AppliedVoucher{Voucher: voucher, Discount: e.VoucherDiscount(&voucher, subtotal)})
	}

	selected := passing
	if e.stackingPolicy == constants.VoucherStackingStackableOnly {
		var dropped []AppliedVoucher
		selected, dropped = selectStackable(passing)
		for _, item := range dropped {
			result.Rejected = append(result.Rejected, rejectVoucher(item.Voucher, ErrVoucherNotStackable))
		}
	}

	remaining := subtotal.Decimal
	for _, item := range selected {
		discount := item.Discount.Decimal
		if discount.GreaterThan(remaining) {
			discount = remaining
		}
		remaining = remaining.Sub(discount)
		item.Discount = models.NewMoneyFromDecimal(discount)
		result.Applied = append(result.Applied, item)
		result.TotalDiscount = result.TotalDiscount.Plus(item.Discount)
	}
	return result
}

// selectStackable 单张最优不可叠加券与全部可叠加券之和取较大者
func selectStackable(passing []AppliedVoucher) (selected, dropped []AppliedVoucher) {
	var stackable []AppliedVoucher
	stackableSum := decimal.Zero
	bestIdx := -1
	for i, item := range passing {
		if item.Voucher.IsStackable {
			stackable = append(stackable, item)
			stackableSum = stackableSum.Add(item.Discount.Decimal)
			continue
		}
		if bestIdx < 0 || item.Discount.Decimal.GreaterThan(passing[bestIdx].Discount.Decimal) {
			bestIdx = i
		}
	}
	if bestIdx >= 0 && passing[bestIdx].Discount.Decimal.GreaterThan(stackableSum) {
		selected = []AppliedVoucher{passing[bestIdx]}
		for i, item := range passing {
			if i != bestIdx {
				dropped = append(dropped, item)
			}
		}
		return selected, dropped
	}
	for _, item := range passing {
		if !item.Voucher.IsStackable {
			dropped = append(dropped, item)
		}
	}
	return stackable, dropped
}

func rejectVoucher(voucher models.Voucher, err error) RejectedVoucher {
	reason := err.Error()
	if domainErr, ok := AsDomainError(err); ok {
		reason = domainErr.Code
	}
	return RejectedVoucher{VoucherID: voucher.ID, Code: voucher.Code, Reason: reason, err: err}
}

// FinalTotal 实付 = max(0, 小计 - 优惠 + 配送费)
func (e *PricingEngine) FinalTotal(subtotal, discount, shipping models.Money) models.Money {
	total := subtotal.Decimal.Sub(discount.Decimal).Add(shipping.Decimal)
	if total.IsNegative() {
		return models.ZeroMoney()
	}
	return models.NewMoneyFromDecimal(total)
}

// Quote 计算购物车完整价格
func (e *PricingEngine) Quote(items []models.CartItem, vouchers []models.Voucher, shipping models.Money, now time.Time) Quote {
	sorted := make([]models.Voucher, len(vouchers))
	copy(sorted, vouchers)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	subtotal := e.ComputeSubtotal(items)
	vr := e.ApplyVouchers(subtotal, sorted, now)
	if shipping.Decimal.IsNegative() {
		shipping = models.ZeroMoney()
	}
	return Quote{
		Subtotal:      subtotal,
		TotalDiscount: vr.TotalDiscount,
		ShippingFee:   models.NewMoneyFromDecimal(shipping.Decimal),
		FinalTotal:    e.FinalTotal(subtotal, vr.TotalDiscount, shipping),
		Applied:       vr.Applied,
		Rejected:      vr.Rejected,
	}
}
