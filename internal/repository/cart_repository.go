package repository

import (
	"errors"
	"time"

	"github.com/quickbite/internal/constants"
	"github.com/quickbite/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CartRepository 购物车数据访问接口
type CartRepository interface {
	GetByID(id uint) (*models.Cart, error)
	GetDetail(id uint) (*models.Cart, error)
	FindOpenPrivate(userID, storeID uint) (*models.Cart, error)
	GetByJoinToken(token string) (*models.Cart, error)
	ListOpenByUser(userID uint) ([]models.Cart, error)
	Create(cart *models.Cart) error
	UpdateFields(id uint, fields map[string]interface{}) error
	Delete(id uint) error
	ClaimForOrder(id uint) (bool, error)
	ExpireStale(before time.Time) (int64, error)

	GetItem(cartID, participantID, dishID uint) (*models.CartItem, error)
	SaveItem(item *models.CartItem, toppings []models.CartItemTopping) error
	DeleteItem(itemID uint) error
	CountItems(cartID uint) (int64, error)
	ReassignItems(cartID, fromParticipantID, toParticipantID uint) error

	GetParticipant(cartID, userID uint) (*models.CartParticipant, error)
	CreateParticipant(participant *models.CartParticipant) error
	UpdateParticipantStatus(cartID, userID uint, status string) error
	TransitionParticipants(cartID uint, from []string, to string) error

	AddVoucher(cartID, voucherID uint) error
	RemoveVoucher(cartID, voucherID uint) error
	ReplaceVouchers(cartID uint, voucherIDs []uint) error

	LogActivity(activity *models.CartActivity) error
	WithTx(tx *gorm.DB) *GormCartRepository
}

// GormCartRepository GORM 实现
type GormCartRepository struct {
	db *gorm.DB
}

// NewCartRepository 创建购物车仓库
func NewCartRepository(db *gorm.DB) *GormCartRepository {
	return &GormCartRepository{db: db}
}

// WithTx 绑定事务
func (r *GormCartRepository) WithTx(tx *gorm.DB) *GormCartRepository {
	if tx == nil {
		return r
	}
	return &GormCartRepository{db: tx}
}

// GetByID 根据ID获取购物车（不含明细）
func (r *GormCartRepository) GetByID(id uint) (*models.Cart, error) {
	var cart models.Cart
	if err := r.db.First(&cart, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &cart, nil
}

// GetDetail 获取购物车及其明细、成员、已选优惠券
func (r *GormCartRepository) GetDetail(id uint) (*models.Cart, error) {
	var cart models.Cart
	err := r.db.
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("id asc") }).
		Preload("Items.Toppings").
		Preload("Participants", func(db *gorm.DB) *gorm.DB { return db.Order("id asc") }).
		Preload("Vouchers").
		First(&cart, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &cart, nil
}

// FindOpenPrivate 查找用户在门店下未完成的私有购物车
func (r *GormCartRepository) FindOpenPrivate(userID, storeID uint) (*models.Cart, error) {
	var cart models.Cart
	err := r.db.
		Where("user_id = ? AND store_id = ? AND mode = ? AND completed = ? AND status IN ?", userID, storeID, constants.CartModePrivate, false,
			[]models.CartStatus{models.CartStatusActive, models.CartStatusLocking}).
		Order("id desc").
		First(&cart).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &cart, nil
}

// GetByJoinToken 根据拼单令牌获取购物车
func (r *GormCartRepository) GetByJoinToken(token string) (*models.Cart, error) {
	if token == "" {
		return nil, nil
	}
	var cart models.Cart
	if err := r.db.Where("join_token = ?", token).First(&cart).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &cart, nil
}

// ListOpenByUser 列出用户拥有或参与的未完成购物车
func (r *GormCartRepository) ListOpenByUser(userID uint) ([]models.Cart, error) {
	var carts []models.Cart
	participantCarts := r.db.Model(&models.CartParticipant{}).
		Select("cart_id").
		Where("user_id = ? AND status IN ?", userID, []string{constants.ParticipantStatusActive, constants.ParticipantStatusLocking})
	err := r.db.
		Preload("Items.Toppings").
		Preload("Participants").
		Preload("Vouchers").
		Where("completed = ?", false).
		Where("status IN ?", []models.CartStatus{models.CartStatusActive, models.CartStatusLocking}).
		Where(r.db.Where("user_id = ?", userID).Or("id IN (?)", participantCarts)).
		Order("updated_at desc").
		Find(&carts).Error
	if err != nil {
		return nil, err
	}
	return carts, nil
}

// Create 创建购物车
func (r *GormCartRepository) Create(cart *models.Cart) error {
	return r.db.Create(cart).Error
}

// UpdateFields 按字段更新购物车
func (r *GormCartRepository) UpdateFields(id uint, fields map[string]interface{}) error {
	if len(fields) == 0 {
		return nil
	}
	if _, ok := fields["updated_at"]; !ok {
		fields["updated_at"] = time.Now()
	}
	return r.db.Model(&models.Cart{}).Where("id = ?", id).Updates(fields).Error
}

// Delete 删除购物车及其全部明细
func (r *GormCartRepository) Delete(id uint) error {
	itemIDs := r.db.Model(&models.CartItem{}).Select("id").Where("cart_id = ?", id)
	if err := r.db.Where("cart_item_id IN (?)", itemIDs).Delete(&models.CartItemTopping{}).Error; err != nil {
		return err
	}
	if err := r.db.Where("cart_id = ?", id).Delete(&models.CartItem{}).Error; err != nil {
		return err
	}
	if err := r.db.Where("cart_id = ?", id).Delete(&models.CartVoucher{}).Error; err != nil {
		return err
	}
	if err := r.db.Where("cart_id = ?", id).Delete(&models.CartParticipant{}).Error; err != nil {
		return err
	}
	return r.db.Delete(&models.Cart{}, id).Error
}

// ClaimForOrder 将购物车标记为已下单，返回 false 表示已被其他请求占用
func (r *GormCartRepository) ClaimForOrder(id uint) (bool, error) {
	result := r.db.Model(&models.Cart{}).
		Where("id = ? AND completed = ? AND status IN ?", id, false,
			[]models.CartStatus{models.CartStatusActive, models.CartStatusLocking}).
		Updates(map[string]interface{}{
			"completed":  true,
			"status":     models.CartStatusPlaced,
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// ExpireStale 将长时间未更新的活跃购物车标记为过期
func (r *GormCartRepository) ExpireStale(before time.Time) (int64, error) {
	result := r.db.Model(&models.Cart{}).
		Where("completed = ? AND status = ? AND updated_at < ?", false, models.CartStatusActive, before).
		Updates(map[string]interface{}{
			"status":     models.CartStatusExpired,
			"updated_at": time.Now(),
		})
	return result.RowsAffected, result.Error
}

// GetItem 获取购物车行
func (r *GormCartRepository) GetItem(cartID, participantID, dishID uint) (*models.CartItem, error) {
	var item models.CartItem
	err := r.db.Preload("Toppings").
		Where("cart_id = ? AND participant_id = ? AND dish_id = ?", cartID, participantID, dishID).
		First(&item).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &item, nil
}

// SaveItem 创建或更新购物车行，并整体替换配料
func (r *GormCartRepository) SaveItem(item *models.CartItem, toppings []models.CartItemTopping) error {
	if item == nil {
		return nil
	}
	if item.ID == 0 {
		if err := r.db.Omit("Toppings").Create(item).Error; err != nil {
			return err
		}
	} else {
		if err := r.db.Model(&models.CartItem{}).Where("id = ?", item.ID).Updates(map[string]interface{}{
			"quantity":   item.Quantity,
			"unit_price": item.UnitPrice,
			"dish_name":  item.DishName,
			"note":       item.Note,
			"updated_at": time.Now(),
		}).Error; err != nil {
			return err
		}
		if err := r.db.Where("cart_item_id = ?", item.ID).Delete(&models.CartItemTopping{}).Error; err != nil {
			return err
		}
	}
	if len(toppings) == 0 {
		item.Toppings = nil
		return nil
	}
	for i := range toppings {
		toppings[i].ID = 0
		toppings[i].CartItemID = item.ID
	}
	if err := r.db.Create(&toppings).Error; err != nil {
		return err
	}
	item.Toppings = toppings
	return nil
}

// DeleteItem 删除购物车行及其配料
func (r *GormCartRepository) DeleteItem(itemID uint) error {
	if err := r.db.Where("cart_item_id = ?", itemID).Delete(&models.CartItemTopping{}).Error; err != nil {
		return err
	}
	return r.db.Delete(&models.CartItem{}, itemID).Error
}

// CountItems 统计购物车行数
func (r *GormCartRepository) CountItems(cartID uint) (int64, error) {
	var count int64
	if err := r.db.Model(&models.CartItem{}).Where("cart_id = ?", cartID).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// ReassignItems 将购物车行转移给指定成员（私有车升级拼单时使用）
func (r *GormCartRepository) ReassignItems(cartID, fromParticipantID, toParticipantID uint) error {
	return r.db.Model(&models.CartItem{}).
		Where("cart_id = ? AND participant_id = ?", cartID, fromParticipantID).
		UpdateColumn("participant_id", toParticipantID).Error
}

// GetParticipant 获取拼单成员
func (r *GormCartRepository) GetParticipant(cartID, userID uint) (*models.CartParticipant, error) {
	var participant models.CartParticipant
	if err := r.db.Where("cart_id = ? AND user_id = ?", cartID, userID).First(&participant).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &participant, nil
}

// CreateParticipant 创建拼单成员
func (r *GormCartRepository) CreateParticipant(participant *models.CartParticipant) error {
	return r.db.Create(participant).Error
}

// UpdateParticipantStatus 更新单个成员状态
func (r *GormCartRepository) UpdateParticipantStatus(cartID, userID uint, status string) error {
	return r.db.Model(&models.CartParticipant{}).
		Where("cart_id = ? AND user_id = ?", cartID, userID).
		Updates(map[string]interface{}{"status": status, "updated_at": time.Now()}).Error
}

// TransitionParticipants 批量迁移成员状态
func (r *GormCartRepository) TransitionParticipants(cartID uint, from []string, to string) error {
	return r.db.Model(&models.CartParticipant{}).
		Where("cart_id = ? AND status IN ?", cartID, from).
		Updates(map[string]interface{}{"status": to, "updated_at": time.Now()}).Error
}

// AddVoucher 添加已选优惠券（重复添加忽略）
func (r *GormCartRepository) AddVoucher(cartID, voucherID uint) error {
	return r.db.Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.CartVoucher{CartID: cartID, VoucherID: voucherID}).Error
}

// RemoveVoucher 移除已选优惠券
func (r *GormCartRepository) RemoveVoucher(cartID, voucherID uint) error {
	return r.db.Where("cart_id = ? AND voucher_id = ?", cartID, voucherID).Delete(&models.CartVoucher{}).Error
}

// ReplaceVouchers 用新的优惠券集合替换已选优惠券
func (r *GormCartRepository) ReplaceVouchers(cartID uint, voucherIDs []uint) error {
	if err := r.db.Where("cart_id = ?", cartID).Delete(&models.CartVoucher{}).Error; err != nil {
		return err
	}
	for _, id := range voucherIDs {
		if err := r.AddVoucher(cartID, id); err != nil {
			return err
		}
	}
	return nil
}

// LogActivity 记录购物车操作
func (r *GormCartRepository) LogActivity(activity *models.CartActivity) error {
	if activity == nil {
		return nil
	}
	return r.db.Create(activity).Error
}
