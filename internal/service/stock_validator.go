package service

import (
	"sort"

	"github.com/quickbite/internal/models"
	"github.com/quickbite/internal/repository"

	"gorm.io/gorm"
)

// StockValidator 菜品库存校验与下单扣减
type StockValidator struct {
	catalogRepo repository.CatalogRepository
}

// NewStockValidator 创建库存校验器
func NewStockValidator(catalogRepo repository.CatalogRepository) *StockValidator {
	return &StockValidator{catalogRepo: catalogRepo}
}

// CheckAvailable 校验目标数量不超过库存，不限量菜品直接通过
func (v *StockValidator) CheckAvailable(dish *models.Dish, requested int) error {
	if dish == nil {
		return ErrDishNotFound
	}
	if requested < 0 {
		return ErrInvalidQuantity
	}
	if dish.IsUnlimited() {
		return nil
	}
	if requested > dish.StockCount {
		return ErrInsufficientStock
	}
	return nil
}

// CheckItems 按菜品汇总整车数量，以最新库存校验
func (v *StockValidator) CheckItems(catalogRepo repository.CatalogRepository, items []models.CartItem) error {
	quantities, dishIDs := sumDishQuantities(items)
	for _, id := range dishIDs {
		dish, err := catalogRepo.GetDish(id)
		if err != nil {
			return err
		}
		if err := v.CheckAvailable(dish, quantities[id]); err != nil {
			return err
		}
	}
	return nil
}

// Reserve 在事务内原子扣减库存
func (v *StockValidator) Reserve(tx *gorm.DB, dishID uint, quantity int) error {
	ok, err := v.catalogRepo.WithTx(tx).ReserveDishStock(dishID, quantity)
	if err != nil {
		return err
	}
	if !ok {
		return ErrInsufficientStock
	}
	return nil
}

// sumDishQuantities 按菜品汇总数量，菜品ID升序返回
func sumDishQuantities(items []models.CartItem) (map[uint]int, []uint) {
	quantities := make(map[uint]int, len(items))
	for _, item := range items {
		quantities[item.DishID] += item.Quantity
	}
	dishIDs := make([]uint, 0, len(quantities))
	for id := range quantities {
		dishIDs = append(dishIDs, id)
	}
	sort.Slice(dishIDs, func(i, j int) bool { return dishIDs[i] < dishIDs[j] })
	return quantities, dishIDs
}
