package service

import (
	"errors"
	"testing"

	"github.com/quickbite/internal/models"
	"github.com/quickbite/internal/repository"

	"gorm.io/gorm"
)

func TestStockValidatorCheckAvailable(t *testing.T) {
	validator := NewStockValidator(nil)
	limited := &models.Dish{StockCount: 3}
	unlimited := &models.Dish{StockCount: models.DishStockUnlimited}

	cases := []struct {
		name string
		dish *models.Dish
		qty  int
		want error
	}{
		{name: "within stock", dish: limited, qty: 3},
		{name: "above stock", dish: limited, qty: 4, want: ErrInsufficientStock},
		{name: "unlimited", dish: unlimited, qty: 1000},
		{name: "negative", dish: limited, qty: -1, want: ErrInvalidQuantity},
		{name: "missing dish", dish: nil, qty: 1, want: ErrDishNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := validator.CheckAvailable(tc.dish, tc.qty)
			if !errors.Is(err, tc.want) {
				t.Fatalf("want %v got %v", tc.want, err)
			}
		})
	}
}

func TestStockValidatorReserve(t *testing.T) {
	env := setupCheckoutTest(t, checkoutEnvOptions{})
	validator := NewStockValidator(repository.NewCatalogRepository(env.db))

	err := models.DB.Transaction(func(tx *gorm.DB) error {
		return validator.Reserve(tx, env.dishA.ID, 4)
	})
	if err != nil {
		t.Fatalf("reserve failed: %v", err)
	}
	err = models.DB.Transaction(func(tx *gorm.DB) error {
		return validator.Reserve(tx, env.dishA.ID, 7)
	})
	if !errors.Is(err, ErrInsufficientStock) {
		t.Fatalf("expected insufficient stock, got %v", err)
	}

	var dish models.Dish
	if err := env.db.First(&dish, env.dishA.ID).Error; err != nil {
		t.Fatalf("reload dish failed: %v", err)
	}
	if dish.StockCount != 6 {
		t.Fatalf("stock want 6 got %d", dish.StockCount)
	}
}

func TestStockValidatorCheckItemsSumsPerDish(t *testing.T) {
	env := setupCheckoutTest(t, checkoutEnvOptions{})
	catalogRepo := repository.NewCatalogRepository(env.db)
	validator := NewStockValidator(catalogRepo)

	// 两个成员各点 6 份，单行都未超出库存 10
	items := []models.CartItem{
		{DishID: env.dishA.ID, ParticipantID: 1, Quantity: 6},
		{DishID: env.dishA.ID, ParticipantID: 2, Quantity: 6},
		{DishID: env.dishB.ID, Quantity: 1},
	}
	if err := validator.CheckItems(catalogRepo, items); !errors.Is(err, ErrInsufficientStock) {
		t.Fatalf("summed quantity above stock should be rejected, got %v", err)
	}
	items[1].Quantity = 4
	if err := validator.CheckItems(catalogRepo, items); err != nil {
		t.Fatalf("summed quantity within stock should pass: %v", err)
	}
	items = append(items, models.CartItem{DishID: 9999, Quantity: 1})
	if err := validator.CheckItems(catalogRepo, items); !errors.Is(err, ErrDishNotFound) {
		t.Fatalf("missing dish should be rejected, got %v", err)
	}
}
