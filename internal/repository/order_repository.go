package repository

import (
	"errors"
	"strings"
	"time"

	"github.com/quickbite/internal/models"

	"gorm.io/gorm"
)

// OrderRepository 订单数据访问接口
type OrderRepository interface {
	Create(order *models.Order) error
	GetByID(id uint) (*models.Order, error)
	GetByCartID(cartID uint) (*models.Order, error)
	IsParticipant(orderID, userID uint) (bool, error)
	ListByUser(filter OrderListFilter) ([]models.Order, int64, error)
	ListByStore(filter OrderListFilter) ([]models.Order, int64, error)
	UpdateStatus(id uint, from, to models.OrderStatus) (bool, error)
	UpdatePaymentStatus(id uint, status string) error
	WithTx(tx *gorm.DB) *GormOrderRepository
}

// GormOrderRepository GORM 实现
type GormOrderRepository struct {
	db *gorm.DB
}

// NewOrderRepository 创建订单仓库
func NewOrderRepository(db *gorm.DB) *GormOrderRepository {
	return &GormOrderRepository{db: db}
}

// WithTx 绑定事务
func (r *GormOrderRepository) WithTx(tx *gorm.DB) *GormOrderRepository {
	if tx == nil {
		return r
	}
	return &GormOrderRepository{db: tx}
}

func (r *GormOrderRepository) withDetail(query *gorm.DB) *gorm.DB {
	return query.
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("id asc") }).
		Preload("Items.Toppings").
		Preload("Participants").
		Preload("ShipInfo").
		Preload("Vouchers")
}

// Create 创建订单及其订单项、配料、成员、配送信息与优惠券记录
func (r *GormOrderRepository) Create(order *models.Order) error {
	return r.db.Create(order).Error
}

// GetByID 根据 ID 获取订单详情
func (r *GormOrderRepository) GetByID(id uint) (*models.Order, error) {
	var order models.Order
	if err := r.withDetail(r.db).First(&order, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &order, nil
}

// GetByCartID 根据来源购物车获取订单
func (r *GormOrderRepository) GetByCartID(cartID uint) (*models.Order, error) {
	var order models.Order
	if err := r.withDetail(r.db).Where("cart_id = ?", cartID).First(&order).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &order, nil
}

// IsParticipant 判断用户是否为订单的拼单成员
func (r *GormOrderRepository) IsParticipant(orderID, userID uint) (bool, error) {
	var count int64
	if err := r.db.Model(&models.OrderParticipant{}).
		Where("order_id = ? AND user_id = ?", orderID, userID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// ListByUser 获取用户（下单人或拼单成员）的订单列表
func (r *GormOrderRepository) ListByUser(filter OrderListFilter) ([]models.Order, int64, error) {
	participantOrders := r.db.Model(&models.OrderParticipant{}).Select("order_id").Where("user_id = ?", filter.UserID)
	query := r.db.Model(&models.Order{}).
		Where(r.db.Where("user_id = ?", filter.UserID).Or("id IN (?)", participantOrders))
	return r.list(query, filter)
}

// ListByStore 获取门店订单列表
func (r *GormOrderRepository) ListByStore(filter OrderListFilter) ([]models.Order, int64, error) {
	query := r.db.Model(&models.Order{}).Where("store_id = ?", filter.StoreID)
	return r.list(query, filter)
}

func (r *GormOrderRepository) list(query *gorm.DB, filter OrderListFilter) ([]models.Order, int64, error) {
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if keyword := strings.TrimSpace(filter.OrderNumber); keyword != "" {
		condition, argCount := buildLikeCondition(r.db, []string{"order_number"})
		query = query.Where(condition, repeatLikeArgs("%"+keyword+"%", argCount)...)
	}
	if filter.CreatedFrom != nil {
		query = query.Where("created_at >= ?", *filter.CreatedFrom)
	}
	if filter.CreatedTo != nil {
		query = query.Where("created_at <= ?", *filter.CreatedTo)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var orders []models.Order
	query = applyPagination(query, filter.Page, filter.PageSize)
	if err := r.withDetail(query).Order("id desc").Find(&orders).Error; err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

// UpdateStatus 条件更新订单状态，返回 false 表示当前状态已不是 from
func (r *GormOrderRepository) UpdateStatus(id uint, from, to models.OrderStatus) (bool, error) {
	result := r.db.Model(&models.Order{}).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]interface{}{
			"status":     to,
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// UpdatePaymentStatus 更新订单支付状态
func (r *GormOrderRepository) UpdatePaymentStatus(id uint, status string) error {
	return r.db.Model(&models.Order{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"payment_status": status,
			"updated_at":     time.Now(),
		}).Error
}
