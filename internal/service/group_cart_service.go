package service

import (
	"context"
	"time"

	"github.com/quickbite/internal/constants"
	"github.com/quickbite/internal/events"
	"github.com/quickbite/internal/models"
	"github.com/quickbite/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// UpsertGroupItemInput 拼单购物车行变更输入
type UpsertGroupItemInput struct {
	UserID     uint
	CartID     uint
	DishID     uint
	Quantity   int
	ToppingIDs []uint
	Note       string
	Action     string
}

// GroupCartService 拼单协调
type GroupCartService struct {
	carts     *CartService
	cartRepo  repository.CartRepository
	assembler *OrderAssembler
	publisher events.Publisher
}

// NewGroupCartService 创建拼单服务
func NewGroupCartService(carts *CartService, cartRepo repository.CartRepository, assembler *OrderAssembler, publisher events.Publisher) *GroupCartService {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &GroupCartService{
		carts:     carts,
		cartRepo:  cartRepo,
		assembler: assembler,
		publisher: publisher,
	}
}

// Enable 将私有购物车升级为拼单并返回邀请令牌，已是拼单时返回原令牌
func (s *GroupCartService) Enable(ctx context.Context, ownerID, cartID uint) (*models.Cart, error) {
	var cart *models.Cart
	err := models.DB.Transaction(func(tx *gorm.DB) error {
		cartRepo := s.cartRepo.WithTx(tx)
		var err error
		cart, err = cartRepo.GetByID(cartID)
		if err != nil {
			return err
		}
		if cart == nil || cart.UserID != ownerID {
			if cart != nil && cart.IsGroup() {
				return ErrNotCartOwner
			}
			return ErrCartNotFound
		}
		if err := ensureCartMutable(cart); err != nil {
			return err
		}
		if cart.IsGroup() {
			return nil
		}

		owner := &models.CartParticipant{
			CartID:  cart.ID,
			UserID:  ownerID,
			IsOwner: true,
			Status:  constants.ParticipantStatusActive,
		}
		if err := cartRepo.CreateParticipant(owner); err != nil {
			return err
		}
		if err := cartRepo.ReassignItems(cart.ID, 0, owner.ID); err != nil {
			return err
		}
		token := uuid.NewString()
		if err := cartRepo.UpdateFields(cart.ID, map[string]interface{}{
			"mode":       constants.CartModeGroup,
			"join_token": token,
		}); err != nil {
			return err
		}
		cart.Mode = constants.CartModeGroup
		cart.JoinToken = &token
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.carts.publishCartUpdated(ctx, cart.ID, cart.StoreID, []uint{ownerID}, false)
	return s.cartRepo.GetDetail(cart.ID)
}

// Join 通过邀请令牌加入拼单，已加入时直接返回
func (s *GroupCartService) Join(ctx context.Context, token string, userID uint) (*models.Cart, error) {
	if token == "" || userID == 0 {
		return nil, ErrInvalidJoinToken
	}
	var cart *models.Cart
	joined := false
	err := models.DB.Transaction(func(tx *gorm.DB) error {
		cartRepo := s.cartRepo.WithTx(tx)
		var err error
		cart, err = cartRepo.GetByJoinToken(token)
		if err != nil {
			return err
		}
		if cart == nil || !cart.IsGroup() {
			return ErrInvalidJoinToken
		}
		if err := ensureCartMutable(cart); err != nil {
			return err
		}
		participant, err := cartRepo.GetParticipant(cart.ID, userID)
		if err != nil {
			return err
		}
		if participant != nil {
			if participant.Status == constants.ParticipantStatusRemoved {
				return ErrParticipantRemoved
			}
			return nil
		}
		if cart.Status == models.CartStatusLocking {
			return ErrCartLocked
		}
		if err := cartRepo.CreateParticipant(&models.CartParticipant{
			CartID: cart.ID,
			UserID: userID,
			Status: constants.ParticipantStatusActive,
		}); err != nil {
			return err
		}
		joined = true
		return cartRepo.LogActivity(&models.CartActivity{CartID: cart.ID, UserID: userID, Action: constants.CartActivityJoin})
	})
	if err != nil {
		return nil, err
	}
	if joined {
		s.publishGroupEvent(ctx, constants.EventGroupCartJoined, cart, userID)
	}
	return s.cartRepo.GetDetail(cart.ID)
}

// UpsertItem 拼单成员添加、修改或移除自己的购物车行
func (s *GroupCartService) UpsertItem(ctx context.Context, input UpsertGroupItemInput) (*models.Cart, error) {
	if input.UserID == 0 || input.CartID == 0 || input.DishID == 0 {
		return nil, ErrInvalidInput
	}
	action, err := normalizeCartAction(input.Action, input.Quantity)
	if err != nil {
		return nil, err
	}
	mutation := lineMutation{
		UserID:     input.UserID,
		DishID:     input.DishID,
		Quantity:   input.Quantity,
		ToppingIDs: input.ToppingIDs,
		Note:       input.Note,
		Action:     action,
	}

	var cart *models.Cart
	err = models.DB.Transaction(func(tx *gorm.DB) error {
		cartRepo := s.cartRepo.WithTx(tx)
		var err error
		cart, err = cartRepo.GetByID(input.CartID)
		if err != nil {
			return err
		}
		if cart == nil {
			return ErrCartNotFound
		}
		if !cart.IsGroup() {
			return ErrCartNotGroup
		}
		if err := ensureCartMutable(cart); err != nil {
			return err
		}
		participant, err := s.carts.authorize(cartRepo, cart, input.UserID, false)
		if err != nil {
			return err
		}
		if cart.Status == models.CartStatusLocking && cart.UserID != input.UserID {
			return ErrCartLocked
		}
		if err := ensureNoPendingPayment(cart, time.Now()); err != nil {
			return err
		}
		spec, err := s.carts.resolveLine(s.carts.catalogRepo.WithTx(tx), cart.StoreID, mutation)
		if err != nil {
			return err
		}
		_, err = s.carts.applyLine(cartRepo, cart, participant.ID, spec, mutation)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.carts.publishCartUpdated(ctx, cart.ID, cart.StoreID, []uint{input.UserID}, false)
	return s.cartRepo.GetDetail(cart.ID)
}

// Lock 车主锁定拼单，成员不可再修改
func (s *GroupCartService) Lock(ctx context.Context, ownerID, cartID uint) (*models.Cart, error) {
	return s.toggleLock(ctx, ownerID, cartID, true)
}

// Unlock 车主解除锁定
func (s *GroupCartService) Unlock(ctx context.Context, ownerID, cartID uint) (*models.Cart, error) {
	return s.toggleLock(ctx, ownerID, cartID, false)
}

func (s *GroupCartService) toggleLock(ctx context.Context, ownerID, cartID uint, lock bool) (*models.Cart, error) {
	from, to := models.CartStatusActive, models.CartStatusLocking
	participantFrom, participantTo := constants.ParticipantStatusActive, constants.ParticipantStatusLocking
	activity, eventType := constants.CartActivityLock, constants.EventGroupCartLocked
	if !lock {
		from, to = to, from
		participantFrom, participantTo = participantTo, participantFrom
		activity, eventType = constants.CartActivityUnlock, constants.EventGroupCartUnlocked
	}

	var cart *models.Cart
	changed := false
	err := models.DB.Transaction(func(tx *gorm.DB) error {
		cartRepo := s.cartRepo.WithTx(tx)
		var err error
		cart, err = s.loadOwnedGroupCart(cartRepo, ownerID, cartID)
		if err != nil {
			return err
		}
		if cart.Status == to {
			return nil
		}
		if !CanTransitionCart(from, to) || cart.Status != from {
			return ErrInvalidStatusTransition
		}
		if err := cartRepo.UpdateFields(cart.ID, map[string]interface{}{"status": to}); err != nil {
			return err
		}
		if err := cartRepo.TransitionParticipants(cart.ID, []string{participantFrom}, participantTo); err != nil {
			return err
		}
		cart.Status = to
		changed = true
		return cartRepo.LogActivity(&models.CartActivity{CartID: cart.ID, UserID: ownerID, Action: activity})
	})
	if err != nil {
		return nil, err
	}
	if changed {
		s.publishGroupEvent(ctx, eventType, cart, ownerID)
	}
	return s.cartRepo.GetDetail(cart.ID)
}

// Leave 成员退出拼单，已加的行保留但不再计价
func (s *GroupCartService) Leave(ctx context.Context, userID, cartID uint) error {
	var cart *models.Cart
	err := models.DB.Transaction(func(tx *gorm.DB) error {
		cartRepo := s.cartRepo.WithTx(tx)
		var err error
		cart, err = cartRepo.GetByID(cartID)
		if err != nil {
			return err
		}
		if cart == nil {
			return ErrCartNotFound
		}
		if !cart.IsGroup() {
			return ErrCartNotGroup
		}
		if err := ensureCartMutable(cart); err != nil {
			return err
		}
		if cart.UserID == userID {
			return ErrOwnerCannotLeave
		}
		if err := ensureNoPendingPayment(cart, time.Now()); err != nil {
			return err
		}
		if _, err := s.carts.authorize(cartRepo, cart, userID, false); err != nil {
			return err
		}
		if err := cartRepo.UpdateParticipantStatus(cart.ID, userID, constants.ParticipantStatusRemoved); err != nil {
			return err
		}
		return cartRepo.LogActivity(&models.CartActivity{CartID: cart.ID, UserID: userID, Action: constants.CartActivityLeave})
	})
	if err != nil {
		return err
	}
	s.publishGroupEvent(ctx, constants.EventGroupCartLeft, cart, userID)
	return nil
}

// RemoveParticipant 车主移除成员
func (s *GroupCartService) RemoveParticipant(ctx context.Context, ownerID, cartID, participantUserID uint) error {
	var cart *models.Cart
	err := models.DB.Transaction(func(tx *gorm.DB) error {
		cartRepo := s.cartRepo.WithTx(tx)
		var err error
		cart, err = s.loadOwnedGroupCart(cartRepo, ownerID, cartID)
		if err != nil {
			return err
		}
		if participantUserID == ownerID {
			return ErrOwnerCannotLeave
		}
		if err := ensureNoPendingPayment(cart, time.Now()); err != nil {
			return err
		}
		participant, err := cartRepo.GetParticipant(cart.ID, participantUserID)
		if err != nil {
			return err
		}
		if participant == nil {
			return ErrParticipantNotFound
		}
		if participant.Status == constants.ParticipantStatusRemoved {
			return nil
		}
		if err := cartRepo.UpdateParticipantStatus(cart.ID, participantUserID, constants.ParticipantStatusRemoved); err != nil {
			return err
		}
		return cartRepo.LogActivity(&models.CartActivity{CartID: cart.ID, UserID: participantUserID, Action: constants.CartActivityRemoveParticipant})
	})
	if err != nil {
		return err
	}
	s.publishGroupEvent(ctx, constants.EventGroupCartLeft, cart, participantUserID)
	return nil
}

// Complete 车主提交拼单，生成拼单订单
func (s *GroupCartService) Complete(ctx context.Context, ownerID uint, input CheckoutInput) (*models.Order, error) {
	cart, err := s.loadOwnedGroupCart(s.cartRepo, ownerID, input.CartID)
	if err != nil {
		return nil, err
	}
	if err := ensureNoPendingPayment(cart, time.Now()); err != nil {
		return nil, err
	}
	input.UserID = ownerID
	order, err := s.assembler.Convert(ctx, ConvertInput{
		CartID:        cart.ID,
		PaymentMethod: constants.PaymentMethodCash,
		PaymentStatus: constants.OrderPaymentUnpaid,
		Checkout:      &input,
	})
	if err != nil {
		return nil, err
	}
	s.publishGroupEvent(ctx, constants.EventGroupCartCompleted, cart, ownerID)
	return order, nil
}

func (s *GroupCartService) loadOwnedGroupCart(cartRepo repository.CartRepository, ownerID, cartID uint) (*models.Cart, error) {
	cart, err := cartRepo.GetByID(cartID)
	if err != nil {
		return nil, err
	}
	if cart == nil {
		return nil, ErrCartNotFound
	}
	if !cart.IsGroup() {
		if cart.UserID != ownerID {
			return nil, ErrCartNotFound
		}
		return nil, ErrCartNotGroup
	}
	if cart.UserID != ownerID {
		return nil, ErrNotCartOwner
	}
	if err := ensureCartMutable(cart); err != nil {
		return nil, err
	}
	return cart, nil
}

func (s *GroupCartService) publishGroupEvent(ctx context.Context, eventType string, cart *models.Cart, userID uint) {
	if cart == nil {
		return
	}
	payload := map[string]interface{}{
		"cart_id":  cart.ID,
		"store_id": cart.StoreID,
		"user_id":  userID,
		"status":   cart.Status,
	}
	publishQuietly(ctx, s.publisher, events.New(eventType, payload,
		events.CartChannel(cart.ID),
		events.UserChannel(userID),
		events.UserChannel(cart.UserID),
	))
}
