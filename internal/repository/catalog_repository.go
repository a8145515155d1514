package repository

import (
	"errors"

	"github.com/quickbite/internal/models"

	"gorm.io/gorm"
)

// CatalogRepository 目录只读模型（门店/菜品/配料）
type CatalogRepository interface {
	GetStore(id uint) (*models.Store, error)
	GetDish(id uint) (*models.Dish, error)
	ListDishesByIDs(ids []uint) ([]models.Dish, error)
	ListToppingsByIDs(ids []uint) ([]models.Topping, error)
	ReserveDishStock(dishID uint, quantity int) (bool, error)
	WithTx(tx *gorm.DB) *GormCatalogRepository
}

// GormCatalogRepository GORM 实现
type GormCatalogRepository struct {
	db *gorm.DB
}

// NewCatalogRepository 创建目录仓库
func NewCatalogRepository(db *gorm.DB) *GormCatalogRepository {
	return &GormCatalogRepository{db: db}
}

// WithTx 绑定事务
func (r *GormCatalogRepository) WithTx(tx *gorm.DB) *GormCatalogRepository {
	if tx == nil {
		return r
	}
	return &GormCatalogRepository{db: tx}
}

// GetStore 根据ID获取门店
func (r *GormCatalogRepository) GetStore(id uint) (*models.Store, error) {
	var store models.Store
	if err := r.db.First(&store, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &store, nil
}

// GetDish 根据ID获取菜品
func (r *GormCatalogRepository) GetDish(id uint) (*models.Dish, error) {
	var dish models.Dish
	if err := r.db.First(&dish, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &dish, nil
}

// ListDishesByIDs 批量获取菜品
func (r *GormCatalogRepository) ListDishesByIDs(ids []uint) ([]models.Dish, error) {
	if len(ids) == 0 {
		return []models.Dish{}, nil
	}
	var dishes []models.Dish
	if err := r.db.Where("id IN ?", ids).Find(&dishes).Error; err != nil {
		return nil, err
	}
	return dishes, nil
}

// ListToppingsByIDs 批量获取配料（附带配料组，用于校验门店归属）
func (r *GormCatalogRepository) ListToppingsByIDs(ids []uint) ([]models.Topping, error) {
	if len(ids) == 0 {
		return []models.Topping{}, nil
	}
	var toppings []models.Topping
	if err := r.db.Preload("Group").Where("id IN ?", ids).Find(&toppings).Error; err != nil {
		return nil, err
	}
	return toppings, nil
}

// ReserveDishStock 条件扣减库存，不限量菜品不扣减；返回 false 表示库存不足
func (r *GormCatalogRepository) ReserveDishStock(dishID uint, quantity int) (bool, error) {
	if dishID == 0 || quantity <= 0 {
		return true, nil
	}
	result := r.db.Model(&models.Dish{}).
		Where("id = ? AND (stock_count = ? OR stock_count >= ?)", dishID, models.DishStockUnlimited, quantity).
		UpdateColumn("stock_count", gorm.Expr("CASE WHEN stock_count = ? THEN stock_count ELSE stock_count - ? END", models.DishStockUnlimited, quantity))
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
