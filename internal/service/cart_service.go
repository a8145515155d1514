package service

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/quickbite/internal/constants"
	"github.com/quickbite/internal/events"
	"github.com/quickbite/internal/logger"
	"github.com/quickbite/internal/models"
	"github.com/quickbite/internal/repository"

	"gorm.io/gorm"
)

// UpsertCartItemInput 私有购物车行变更输入
type UpsertCartItemInput struct {
	UserID     uint
	StoreID    uint
	DishID     uint
	Quantity   int
	ToppingIDs []uint
	Note       string
	Action     string // add / update / remove
}

// CheckoutInput 结账上下文
type CheckoutInput struct {
	UserID      uint
	CartID      uint
	Delivery    models.DeliveryInfo
	VoucherIDs  []uint // nil 表示沿用购物车已选优惠券
	ShippingFee models.Money
	ClientIP    string
}

// CartView 购物车及价格预览
type CartView struct {
	Cart  *models.Cart `json:"cart"`
	Quote Quote        `json:"quote"`
}

// lineMutation 行变更参数（私有车与拼单共用）
type lineMutation struct {
	UserID     uint
	DishID     uint
	Quantity   int
	ToppingIDs []uint
	Note       string
	Action     string
}

// lineSpec 校验通过的菜品与配料快照
type lineSpec struct {
	dish     *models.Dish
	toppings []models.CartItemTopping
}

// CartService 购物车服务
type CartService struct {
	cartRepo    repository.CartRepository
	catalogRepo repository.CatalogRepository
	voucherRepo repository.VoucherRepository
	orderRepo   repository.OrderRepository
	stock       *StockValidator
	pricing     *PricingEngine
	publisher   events.Publisher
}

// NewCartService 创建购物车服务
func NewCartService(
	cartRepo repository.CartRepository,
	catalogRepo repository.CatalogRepository,
	voucherRepo repository.VoucherRepository,
	orderRepo repository.OrderRepository,
	stock *StockValidator,
	pricing *PricingEngine,
	publisher events.Publisher,
) *CartService {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &CartService{
		cartRepo:    cartRepo,
		catalogRepo: catalogRepo,
		voucherRepo: voucherRepo,
		orderRepo:   orderRepo,
		stock:       stock,
		pricing:     pricing,
		publisher:   publisher,
	}
}

// UpsertItem 添加、修改或移除私有购物车行
// 返回的购物车为 nil 表示最后一行被移除后购物车已删除。
func (s *CartService) UpsertItem(ctx context.Context, input UpsertCartItemInput) (*models.Cart, error) {
	if input.UserID == 0 || input.StoreID == 0 || input.DishID == 0 {
		return nil, ErrInvalidInput
	}
	mutation := lineMutation{
		UserID:     input.UserID,
		DishID:     input.DishID,
		Quantity:   input.Quantity,
		ToppingIDs: input.ToppingIDs,
		Note:       input.Note,
		Action:     input.Action,
	}
	action, err := normalizeCartAction(mutation.Action, mutation.Quantity)
	if err != nil {
		return nil, err
	}
	mutation.Action = action

	store, err := s.catalogRepo.GetStore(input.StoreID)
	if err != nil {
		return nil, err
	}
	if store == nil || !store.IsActive {
		return nil, ErrStoreNotFound
	}
	spec, err := s.resolveLine(s.catalogRepo, input.StoreID, mutation)
	if err != nil {
		return nil, err
	}

	var cartID uint
	deleted := false
	err = models.DB.Transaction(func(tx *gorm.DB) error {
		cartRepo := s.cartRepo.WithTx(tx)
		cart, err := cartRepo.FindOpenPrivate(input.UserID, input.StoreID)
		if err != nil {
			return err
		}
		if cart == nil {
			if action == constants.CartActionRemove || mutation.Quantity <= 0 {
				return ErrCartNotFound
			}
			cart = &models.Cart{
				UserID:  input.UserID,
				StoreID: input.StoreID,
				Mode:    constants.CartModePrivate,
				Status:  models.CartStatusActive,
			}
			if err := cartRepo.Create(cart); err != nil {
				return err
			}
		}
		if err := ensureCartMutable(cart); err != nil {
			return err
		}
		if err := ensureNoPendingPayment(cart, time.Now()); err != nil {
			return err
		}
		cartID = cart.ID

		if _, err := s.applyLine(cartRepo, cart, 0, spec, mutation); err != nil {
			return err
		}
		count, err := cartRepo.CountItems(cart.ID)
		if err != nil {
			return err
		}
		if count == 0 {
			deleted = true
			return cartRepo.Delete(cart.ID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publishCartUpdated(ctx, cartID, input.StoreID, []uint{input.UserID}, deleted)
	if deleted {
		return nil, nil
	}
	return s.cartRepo.GetDetail(cartID)
}

// GetCart 获取用户在门店下的私有购物车及价格预览
func (s *CartService) GetCart(userID, storeID uint) (*CartView, error) {
	cart, err := s.cartRepo.FindOpenPrivate(userID, storeID)
	if err != nil {
		return nil, err
	}
	if cart == nil {
		return nil, ErrCartNotFound
	}
	return s.view(cart.ID)
}

// ListCarts 列出用户拥有或参与的未完成购物车
func (s *CartService) ListCarts(userID uint) ([]models.Cart, error) {
	if userID == 0 {
		return nil, ErrInvalidInput
	}
	return s.cartRepo.ListOpenByUser(userID)
}

// Quote 购物车价格预览（车主与拼单成员可查看）
func (s *CartService) Quote(userID, cartID uint) (*CartView, error) {
	cart, err := s.cartRepo.GetDetail(cartID)
	if err != nil {
		return nil, err
	}
	if cart == nil {
		return nil, ErrCartNotFound
	}
	if _, err := s.authorize(s.cartRepo, cart, userID, false); err != nil {
		return nil, err
	}
	quote, err := s.quoteCart(s.voucherRepo, cart, time.Now())
	if err != nil {
		return nil, err
	}
	return &CartView{Cart: cart, Quote: quote}, nil
}

// ApplyVoucher 为购物车选择优惠券，需通过当前计价校验
func (s *CartService) ApplyVoucher(ctx context.Context, userID, cartID, voucherID uint) (*CartView, error) {
	cart, err := s.cartRepo.GetDetail(cartID)
	if err != nil {
		return nil, err
	}
	if cart == nil {
		return nil, ErrCartNotFound
	}
	if _, err := s.authorize(s.cartRepo, cart, userID, cart.IsGroup()); err != nil {
		return nil, err
	}
	if err := ensureCartMutable(cart); err != nil {
		return nil, err
	}
	if err := ensureNoPendingPayment(cart, time.Now()); err != nil {
		return nil, err
	}
	voucher, err := s.voucherRepo.GetByID(voucherID)
	if err != nil {
		return nil, err
	}
	if voucher == nil {
		return nil, ErrVoucherNotFound
	}
	if voucher.StoreID != cart.StoreID {
		return nil, ErrVoucherNotInStore
	}
	// 用量按车主计，与下单时的兑换口径一致
	if err := s.ensureVouchersUsable(s.voucherRepo, cart.UserID, []models.Voucher{*voucher}); err != nil {
		return nil, err
	}

	ids := appendUnique(cart.VoucherIDs(), voucherID)
	vouchers, err := s.voucherRepo.ListByIDs(ids)
	if err != nil {
		return nil, err
	}
	quote := s.pricing.Quote(billableItems(cart), vouchers, cart.ShippingFee, time.Now())
	for _, rejected := range quote.Rejected {
		if rejected.VoucherID == voucherID {
			return nil, rejected.Err()
		}
	}
	if err := s.cartRepo.AddVoucher(cart.ID, voucherID); err != nil {
		return nil, err
	}
	s.publishCartUpdated(ctx, cart.ID, cart.StoreID, []uint{cart.UserID}, false)
	return s.view(cart.ID)
}

// RemoveVoucher 取消选择优惠券
func (s *CartService) RemoveVoucher(ctx context.Context, userID, cartID, voucherID uint) (*CartView, error) {
	cart, err := s.cartRepo.GetByID(cartID)
	if err != nil {
		return nil, err
	}
	if cart == nil {
		return nil, ErrCartNotFound
	}
	if _, err := s.authorize(s.cartRepo, cart, userID, cart.IsGroup()); err != nil {
		return nil, err
	}
	if err := ensureCartMutable(cart); err != nil {
		return nil, err
	}
	if err := ensureNoPendingPayment(cart, time.Now()); err != nil {
		return nil, err
	}
	if err := s.cartRepo.RemoveVoucher(cart.ID, voucherID); err != nil {
		return nil, err
	}
	s.publishCartUpdated(ctx, cart.ID, cart.StoreID, []uint{cart.UserID}, false)
	return s.view(cart.ID)
}

// ExpireStale 将超时未更新的活跃购物车标记为过期
func (s *CartService) ExpireStale(maxIdle time.Duration) (int64, error) {
	if maxIdle <= 0 {
		return 0, nil
	}
	return s.cartRepo.ExpireStale(time.Now().Add(-maxIdle))
}

// ClearStoreCart 清空用户在门店下的私有购物车
func (s *CartService) ClearStoreCart(ctx context.Context, userID, storeID uint) error {
	if userID == 0 || storeID == 0 {
		return ErrInvalidInput
	}
	var cartID uint
	err := models.DB.Transaction(func(tx *gorm.DB) error {
		cartRepo := s.cartRepo.WithTx(tx)
		cart, err := cartRepo.FindOpenPrivate(userID, storeID)
		if err != nil {
			return err
		}
		if cart == nil {
			return ErrCartNotFound
		}
		if err := ensureNoPendingPayment(cart, time.Now()); err != nil {
			return err
		}
		cartID = cart.ID
		return cartRepo.Delete(cart.ID)
	})
	if err != nil {
		return err
	}
	s.publishCartUpdated(ctx, cartID, storeID, []uint{userID}, true)
	return nil
}

// ClearAll 清空用户全部未完成的私有购物车，支付中的购物车保留
func (s *CartService) ClearAll(ctx context.Context, userID uint) (int, error) {
	if userID == 0 {
		return 0, ErrInvalidInput
	}
	carts, err := s.cartRepo.ListOpenByUser(userID)
	if err != nil {
		return 0, err
	}
	now := time.Now()
	var cleared []models.Cart
	err = models.DB.Transaction(func(tx *gorm.DB) error {
		cartRepo := s.cartRepo.WithTx(tx)
		for _, cart := range carts {
			if cart.UserID != userID || cart.IsGroup() {
				continue
			}
			if ensureNoPendingPayment(&cart, now) != nil {
				logger.Infow("cart_clear_skip_pending", "cart_id", cart.ID, "user_id", userID)
				continue
			}
			if err := cartRepo.Delete(cart.ID); err != nil {
				return err
			}
			cleared = append(cleared, cart)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	for _, cart := range cleared {
		s.publishCartUpdated(ctx, cart.ID, cart.StoreID, []uint{userID}, true)
	}
	return len(cleared), nil
}

// ListStoreVouchers 门店当前可用的优惠券（已按用户用量过滤）
func (s *CartService) ListStoreVouchers(userID, storeID uint) ([]models.Voucher, error) {
	store, err := s.catalogRepo.GetStore(storeID)
	if err != nil {
		return nil, err
	}
	if store == nil || !store.IsActive {
		return nil, ErrStoreNotFound
	}
	vouchers, err := s.voucherRepo.ListUsableByStore(storeID, time.Now())
	if err != nil {
		return nil, err
	}
	usable := make([]models.Voucher, 0, len(vouchers))
	for _, voucher := range vouchers {
		used, err := userVoucherUsed(s.voucherRepo, voucher, userID)
		if err != nil {
			return nil, err
		}
		if s.pricing.CheckVoucherUsage(&voucher, used) != nil {
			continue
		}
		usable = append(usable, voucher)
	}
	return usable, nil
}

// Reorder 按历史订单重建门店私有购物车，原有私有购物车被替换
// 价格取当前菜单，下架或库存不足的菜品整体拒绝。
func (s *CartService) Reorder(ctx context.Context, userID, orderID uint) (*CartView, error) {
	if userID == 0 || orderID == 0 {
		return nil, ErrInvalidInput
	}
	order, err := s.orderRepo.GetByID(orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	lines := reorderLines(order, userID)
	if len(lines) == 0 {
		return nil, ErrOrderNotFound
	}
	store, err := s.catalogRepo.GetStore(order.StoreID)
	if err != nil {
		return nil, err
	}
	if store == nil || !store.IsActive {
		return nil, ErrStoreNotFound
	}

	var cartID uint
	err = models.DB.Transaction(func(tx *gorm.DB) error {
		cartRepo := s.cartRepo.WithTx(tx)
		catalogRepo := s.catalogRepo.WithTx(tx)
		specs := make([]*lineSpec, 0, len(lines))
		for _, line := range lines {
			spec, err := s.resolveLine(catalogRepo, order.StoreID, line)
			if err != nil {
				return err
			}
			specs = append(specs, spec)
		}

		existing, err := cartRepo.FindOpenPrivate(userID, order.StoreID)
		if err != nil {
			return err
		}
		if existing != nil {
			if err := ensureNoPendingPayment(existing, time.Now()); err != nil {
				return err
			}
			if err := cartRepo.Delete(existing.ID); err != nil {
				return err
			}
		}
		cart := &models.Cart{
			UserID:  userID,
			StoreID: order.StoreID,
			Mode:    constants.CartModePrivate,
			Status:  models.CartStatusActive,
		}
		if err := cartRepo.Create(cart); err != nil {
			return err
		}
		cartID = cart.ID
		for i, line := range lines {
			if _, err := s.applyLine(cartRepo, cart, 0, specs[i], line); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	logger.Infow("cart_reordered", "cart_id", cartID, "order_id", order.ID, "user_id", userID)
	s.publishCartUpdated(ctx, cartID, order.StoreID, []uint{userID}, false)
	return s.view(cartID)
}

// reorderLines 下单人取整单，拼单成员只取自己的行；同一菜品合并数量
func reorderLines(order *models.Order, userID uint) []lineMutation {
	wholeOrder := order.UserID == userID
	byDish := make(map[uint]int)
	var lines []lineMutation
	for _, item := range order.Items {
		if !wholeOrder && (item.UserID == nil || *item.UserID != userID) {
			continue
		}
		if idx, ok := byDish[item.DishID]; ok {
			lines[idx].Quantity += item.Quantity
			continue
		}
		toppingIDs := make([]uint, 0, len(item.Toppings))
		for _, topping := range item.Toppings {
			toppingIDs = append(toppingIDs, topping.ToppingID)
		}
		byDish[item.DishID] = len(lines)
		lines = append(lines, lineMutation{
			UserID:     userID,
			DishID:     item.DishID,
			Quantity:   item.Quantity,
			ToppingIDs: toppingIDs,
			Note:       item.Note,
			Action:     constants.CartActionUpdate,
		})
	}
	return lines
}

// SaveCheckoutContext 在事务内写入结账上下文（配送、支付方式、配送费、优惠券）
func (s *CartService) SaveCheckoutContext(tx *gorm.DB, cart *models.Cart, input CheckoutInput, paymentMethod string) error {
	cartRepo := s.cartRepo.WithTx(tx)
	if input.ShippingFee.Decimal.IsNegative() {
		return ErrInvalidInput
	}
	if input.VoucherIDs != nil {
		ids := appendUnique(nil, input.VoucherIDs...)
		vouchers, err := s.voucherRepo.WithTx(tx).ListByIDs(ids)
		if err != nil {
			return err
		}
		if len(vouchers) != len(ids) {
			return ErrVoucherNotFound
		}
		for _, voucher := range vouchers {
			if voucher.StoreID != cart.StoreID {
				return ErrVoucherNotInStore
			}
		}
		if err := cartRepo.ReplaceVouchers(cart.ID, ids); err != nil {
			return err
		}
		cart.Vouchers = make([]models.CartVoucher, 0, len(ids))
		for _, id := range ids {
			cart.Vouchers = append(cart.Vouchers, models.CartVoucher{CartID: cart.ID, VoucherID: id})
		}
	}
	delivery := input.Delivery
	fields := map[string]interface{}{
		"payment_method":          paymentMethod,
		"shipping_fee":            input.ShippingFee,
		"delivery_lat":            delivery.Lat,
		"delivery_lng":            delivery.Lng,
		"delivery_address":        strings.TrimSpace(delivery.Address),
		"delivery_detail_address": strings.TrimSpace(delivery.DetailAddress),
		"delivery_contact_name":   strings.TrimSpace(delivery.ContactName),
		"delivery_contact_phone":  strings.TrimSpace(delivery.ContactPhone),
		"delivery_note":           strings.TrimSpace(delivery.Note),
	}
	if err := cartRepo.UpdateFields(cart.ID, fields); err != nil {
		return err
	}
	cart.PaymentMethod = paymentMethod
	cart.ShippingFee = input.ShippingFee
	cart.Delivery = delivery
	return nil
}

func (s *CartService) view(cartID uint) (*CartView, error) {
	cart, err := s.cartRepo.GetDetail(cartID)
	if err != nil {
		return nil, err
	}
	if cart == nil {
		return nil, ErrCartNotFound
	}
	quote, err := s.quoteCart(s.voucherRepo, cart, time.Now())
	if err != nil {
		return nil, err
	}
	return &CartView{Cart: cart, Quote: quote}, nil
}

// quoteCart 以购物车已选优惠券计价（排除已移除成员的行）
func (s *CartService) quoteCart(voucherRepo repository.VoucherRepository, cart *models.Cart, now time.Time) (Quote, error) {
	vouchers, err := voucherRepo.ListByIDs(cart.VoucherIDs())
	if err != nil {
		return Quote{}, err
	}
	return s.pricing.Quote(billableItems(cart), vouchers, cart.ShippingFee, now), nil
}

// resolveLine 校验菜品与配料归属门店
func (s *CartService) resolveLine(catalogRepo repository.CatalogRepository, storeID uint, m lineMutation) (*lineSpec, error) {
	dish, err := catalogRepo.GetDish(m.DishID)
	if err != nil {
		return nil, err
	}
	if dish == nil {
		return nil, ErrDishNotFound
	}
	if dish.StoreID != storeID {
		return nil, ErrDishNotInStore
	}
	spec := &lineSpec{dish: dish}
	if m.Action == constants.CartActionRemove {
		return spec, nil
	}

	ids := appendUnique(nil, m.ToppingIDs...)
	if len(ids) == 0 {
		return spec, nil
	}
	toppings, err := catalogRepo.ListToppingsByIDs(ids)
	if err != nil {
		return nil, err
	}
	if len(toppings) != len(ids) {
		return nil, ErrToppingNotInStore
	}
	perGroup := make(map[uint]int, len(toppings))
	sort.Slice(toppings, func(i, j int) bool { return toppings[i].ID < toppings[j].ID })
	for _, topping := range toppings {
		if topping.Group == nil || topping.Group.StoreID != storeID {
			return nil, ErrToppingNotInStore
		}
		perGroup[topping.ToppingGroupID]++
		if topping.Group.OnlyOnce && perGroup[topping.ToppingGroupID] > 1 {
			return nil, ErrToppingGroupOnce
		}
		spec.toppings = append(spec.toppings, models.CartItemTopping{
			ToppingID:   topping.ID,
			ToppingName: topping.Name,
			Price:       topping.Price,
		})
	}
	return spec, nil
}

// applyLine 计算目标数量并写入购物车行，返回新的数量
func (s *CartService) applyLine(cartRepo *repository.GormCartRepository, cart *models.Cart, participantID uint, spec *lineSpec, m lineMutation) (int, error) {
	existing, err := cartRepo.GetItem(cart.ID, participantID, spec.dish.ID)
	if err != nil {
		return 0, err
	}
	current := 0
	if existing != nil {
		current = existing.Quantity
	}
	target := targetQuantity(m.Action, current, m.Quantity)

	activity := &models.CartActivity{CartID: cart.ID, UserID: m.UserID, DishID: spec.dish.ID, Quantity: target}
	if target == 0 {
		if existing == nil {
			return 0, nil
		}
		if err := cartRepo.DeleteItem(existing.ID); err != nil {
			return 0, err
		}
		activity.Action = constants.CartActivityRemoveItem
		return 0, cartRepo.LogActivity(activity)
	}

	requested := target
	if cart.IsGroup() {
		others, err := groupDishQuantity(cartRepo, cart.ID, participantID, spec.dish.ID)
		if err != nil {
			return current, err
		}
		requested += others
	}
	if err := s.stock.CheckAvailable(spec.dish, requested); err != nil {
		return current, err
	}
	item := existing
	activity.Action = constants.CartActivityUpdateItem
	if item == nil {
		item = &models.CartItem{CartID: cart.ID, ParticipantID: participantID, DishID: spec.dish.ID}
		activity.Action = constants.CartActivityAddItem
	}
	item.Quantity = target
	item.DishName = spec.dish.Name
	item.UnitPrice = spec.dish.Price
	if note := strings.TrimSpace(m.Note); note != "" || m.Action == constants.CartActionUpdate {
		item.Note = note
	}
	if err := cartRepo.SaveItem(item, spec.toppings); err != nil {
		return current, err
	}
	if err := cartRepo.UpdateFields(cart.ID, map[string]interface{}{"updated_at": time.Now()}); err != nil {
		return target, err
	}
	return target, cartRepo.LogActivity(activity)
}

// authorize 校验调用者与购物车的关系，返回拼单成员记录（私有车为 nil）
func (s *CartService) authorize(cartRepo repository.CartRepository, cart *models.Cart, userID uint, ownerOnly bool) (*models.CartParticipant, error) {
	if cart == nil {
		return nil, ErrCartNotFound
	}
	isOwner := cart.UserID == userID
	if !cart.IsGroup() {
		if !isOwner {
			return nil, ErrCartNotFound
		}
		return nil, nil
	}
	if ownerOnly && !isOwner {
		return nil, ErrNotCartOwner
	}
	participant, err := cartRepo.GetParticipant(cart.ID, userID)
	if err != nil {
		return nil, err
	}
	if participant == nil {
		return nil, ErrNotCartMember
	}
	if participant.Status == constants.ParticipantStatusRemoved {
		return nil, ErrParticipantRemoved
	}
	return participant, nil
}

func (s *CartService) publishCartUpdated(ctx context.Context, cartID, storeID uint, userIDs []uint, deleted bool) {
	channels := []string{events.StoreChannel(storeID), events.CartChannel(cartID)}
	for _, userID := range userIDs {
		channels = append(channels, events.UserChannel(userID))
	}
	payload := map[string]interface{}{
		"cart_id":  cartID,
		"store_id": storeID,
		"deleted":  deleted,
	}
	if err := s.publisher.Publish(ctx, events.New(constants.EventCartUpdated, payload, channels...)); err != nil {
		logger.Warnw("cart_upsert_publish_failed", "cart_id", cartID, "store_id", storeID, "error", err)
	}
}

// normalizeCartAction 校验动作与数量，缺省按 add 处理
func normalizeCartAction(action string, quantity int) (string, error) {
	normalized := strings.ToLower(strings.TrimSpace(action))
	if normalized == "" {
		normalized = constants.CartActionAdd
	}
	switch normalized {
	case constants.CartActionAdd, constants.CartActionUpdate, constants.CartActionRemove:
	default:
		return "", ErrInvalidCartAction
	}
	if quantity < 0 {
		return "", ErrInvalidQuantity
	}
	return normalized, nil
}

// targetQuantity add 累加，update 覆盖，remove 归零，结果不小于 0
func targetQuantity(action string, current, quantity int) int {
	var target int
	switch action {
	case constants.CartActionAdd:
		target = current + quantity
	case constants.CartActionUpdate:
		target = quantity
	default:
		target = 0
	}
	if target < 0 {
		return 0
	}
	return target
}

// ensureVouchersUsable 校验优惠券总用量与指定用户的已用次数
func (s *CartService) ensureVouchersUsable(voucherRepo repository.VoucherRepository, userID uint, vouchers []models.Voucher) error {
	for i := range vouchers {
		used, err := userVoucherUsed(voucherRepo, vouchers[i], userID)
		if err != nil {
			return err
		}
		if err := s.pricing.CheckVoucherUsage(&vouchers[i], used); err != nil {
			return err
		}
	}
	return nil
}

func userVoucherUsed(voucherRepo repository.VoucherRepository, voucher models.Voucher, userID uint) (int, error) {
	if voucher.UserLimit == nil || userID == 0 {
		return 0, nil
	}
	usage, err := voucherRepo.GetUsage(voucher.ID, userID)
	if err != nil || usage == nil {
		return 0, err
	}
	return usage.UsedCount, nil
}

// groupDishQuantity 拼单内其他成员同一菜品的计价数量
func groupDishQuantity(cartRepo repository.CartRepository, cartID, participantID, dishID uint) (int, error) {
	detail, err := cartRepo.GetDetail(cartID)
	if err != nil {
		return 0, err
	}
	total := 0
	for _, item := range billableItems(detail) {
		if item.DishID == dishID && item.ParticipantID != participantID {
			total += item.Quantity
		}
	}
	return total, nil
}

// ensureNoPendingPayment 支付链接有效期内不可改动计价内容
func ensureNoPendingPayment(cart *models.Cart, now time.Time) error {
	if cart != nil && cart.PendingUntil != nil && now.Before(*cart.PendingUntil) {
		return ErrCartPaymentPending
	}
	return nil
}

// ensureCartMutable 已下单或已过期的购物车不可修改
func ensureCartMutable(cart *models.Cart) error {
	if cart == nil {
		return ErrCartNotFound
	}
	if cart.Completed || cart.Status == models.CartStatusPlaced {
		return ErrCartCompleted
	}
	if cart.Status == models.CartStatusExpired {
		return ErrCartExpired
	}
	return nil
}

// billableItems 参与计价的购物车行（排除已移除成员）
func billableItems(cart *models.Cart) []models.CartItem {
	if cart == nil {
		return nil
	}
	if !cart.IsGroup() {
		return cart.Items
	}
	removed := make(map[uint]bool)
	for _, p := range cart.Participants {
		if p.Status == constants.ParticipantStatusRemoved {
			removed[p.ID] = true
		}
	}
	items := make([]models.CartItem, 0, len(cart.Items))
	for _, item := range cart.Items {
		if removed[item.ParticipantID] {
			continue
		}
		items = append(items, item)
	}
	return items
}

func appendUnique(base []uint, ids ...uint) []uint {
	seen := make(map[uint]bool, len(base)+len(ids))
	result := make([]uint, 0, len(base)+len(ids))
	for _, id := range append(append([]uint{}, base...), ids...) {
		if id == 0 || seen[id] {
			continue
		}
		seen[id] = true
		result = append(result, id)
	}
	return result
}
