package main

import (
	"flag"
	"time"

	"github.com/quickbite/internal/config"
	"github.com/quickbite/internal/constants"
	"github.com/quickbite/internal/logger"
	"github.com/quickbite/internal/models"
	"github.com/quickbite/internal/service"
)

type dishSeed struct {
	Name  string
	Price int64
	Stock int
}

type toppingSeed struct {
	Group    string
	OnlyOnce bool
	Items    map[string]int64
}

func main() {
	var ownerID, customerID, friendID uint
	flag.UintVar(&ownerID, "owner", 900, "演示门店店主用户ID")
	flag.UintVar(&customerID, "customer", 1, "演示顾客用户ID")
	flag.UintVar(&friendID, "friend", 2, "演示拼单好友用户ID")
	flag.Parse()

	// 连接数据库
	cfg := config.Load()
	logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	stdLog := logger.StdLogger()
	if err := models.InitDB(cfg.Database.Driver, cfg.Database.DSN, models.DBPoolConfig{
		MaxOpenConns:           cfg.Database.Pool.MaxOpenConns,
		MaxIdleConns:           cfg.Database.Pool.MaxIdleConns,
		ConnMaxLifetimeSeconds: cfg.Database.Pool.ConnMaxLifetimeSeconds,
		ConnMaxIdleTimeSeconds: cfg.Database.Pool.ConnMaxIdleTimeSeconds,
	}, cfg.Log.Level); err != nil {
		stdLog.Fatalf("Failed to connect database: %v", err)
	}

	// 自动迁移
	if err := models.AutoMigrate(); err != nil {
		stdLog.Fatalf("Failed to migrate database: %v", err)
	}

	// 门店
	var store models.Store
	if err := models.DB.Where("owner_id = ? AND name = ?", ownerID, "Pho Corner").First(&store).Error; err != nil {
		store = models.Store{OwnerID: ownerID, Name: "Pho Corner", IsActive: true}
		if err := models.DB.Create(&store).Error; err != nil {
			stdLog.Fatalf("Failed to create store: %v", err)
		}
		stdLog.Printf("Created store: %s (id=%d)", store.Name, store.ID)
	} else {
		stdLog.Printf("Store already exists: %s (id=%d)", store.Name, store.ID)
	}

	// 菜品
	dishes := []dishSeed{
		{Name: "Pho Bo", Price: 50000, Stock: 30},
		{Name: "Pho Ga", Price: 45000, Stock: 30},
		{Name: "Goi Cuon", Price: 30000, Stock: 5},
		{Name: "Tra Da", Price: 5000, Stock: models.DishStockUnlimited},
	}
	for _, seed := range dishes {
		var dish models.Dish
		if err := models.DB.Where("store_id = ? AND name = ?", store.ID, seed.Name).First(&dish).Error; err != nil {
			dish = models.Dish{
				StoreID:    store.ID,
				Name:       seed.Name,
				Price:      models.NewMoneyFromInt(seed.Price),
				StockCount: seed.Stock,
			}
			if err := models.DB.Create(&dish).Error; err != nil {
				stdLog.Printf("Failed to create dish %s: %v", seed.Name, err)
				continue
			}
			stdLog.Printf("Created dish: %s (id=%d)", seed.Name, dish.ID)
			continue
		}
		dish.Price = models.NewMoneyFromInt(seed.Price)
		dish.StockCount = seed.Stock
		if err := models.DB.Save(&dish).Error; err != nil {
			stdLog.Printf("Failed to update dish %s: %v", seed.Name, err)
		} else {
			stdLog.Printf("Updated dish: %s (id=%d)", seed.Name, dish.ID)
		}
	}

	// 配料
	toppings := []toppingSeed{
		{Group: "Size", OnlyOnce: true, Items: map[string]int64{"Large": 10000, "Extra Large": 15000}},
		{Group: "Extras", OnlyOnce: false, Items: map[string]int64{"Egg": 5000, "Beef Balls": 12000}},
	}
	for _, seed := range toppings {
		var group models.ToppingGroup
		if err := models.DB.Where("store_id = ? AND name = ?", store.ID, seed.Group).First(&group).Error; err != nil {
			group = models.ToppingGroup{StoreID: store.ID, Name: seed.Group, OnlyOnce: seed.OnlyOnce}
			if err := models.DB.Create(&group).Error; err != nil {
				stdLog.Printf("Failed to create topping group %s: %v", seed.Group, err)
				continue
			}
		}
		for name, price := range seed.Items {
			var topping models.Topping
			if err := models.DB.Where("topping_group_id = ? AND name = ?", group.ID, name).First(&topping).Error; err == nil {
				continue
			}
			topping = models.Topping{ToppingGroupID: group.ID, Name: name, Price: models.NewMoneyFromInt(price)}
			if err := models.DB.Create(&topping).Error; err != nil {
				stdLog.Printf("Failed to create topping %s: %v", name, err)
				continue
			}
			stdLog.Printf("Created topping: %s/%s (id=%d)", seed.Group, name, topping.ID)
		}
	}

	// 优惠券
	now := time.Now()
	maxDiscount := models.NewMoneyFromInt(20000)
	minOrder := models.NewMoneyFromInt(100000)
	perUser := 1
	vouchers := []models.Voucher{
		{
			StoreID:       store.ID,
			Code:          "WELCOME10",
			DiscountType:  constants.VoucherTypePercentage,
			DiscountValue: models.NewMoneyFromInt(10),
			MaxDiscount:   &maxDiscount,
			StartDate:     now.AddDate(0, 0, -1),
			EndDate:       now.AddDate(0, 3, 0),
			UserLimit:     &perUser,
			IsActive:      true,
			IsStackable:   true,
		},
		{
			StoreID:        store.ID,
			Code:           "BIGORDER15K",
			DiscountType:   constants.VoucherTypeFixed,
			DiscountValue:  models.NewMoneyFromInt(15000),
			MinOrderAmount: &minOrder,
			StartDate:      now.AddDate(0, 0, -1),
			EndDate:        now.AddDate(0, 3, 0),
			IsActive:       true,
			IsStackable:    true,
		},
		{
			StoreID:       store.ID,
			Code:          "SOLO20K",
			DiscountType:  constants.VoucherTypeFixed,
			DiscountValue: models.NewMoneyFromInt(20000),
			StartDate:     now.AddDate(0, 0, -1),
			EndDate:       now.AddDate(0, 3, 0),
			IsActive:      true,
		},
	}
	for _, voucher := range vouchers {
		var existing models.Voucher
		if err := models.DB.Where("store_id = ? AND code = ?", store.ID, voucher.Code).First(&existing).Error; err == nil {
			stdLog.Printf("Voucher already exists: %s (id=%d)", voucher.Code, existing.ID)
			continue
		}
		if err := models.DB.Create(&voucher).Error; err != nil {
			stdLog.Printf("Failed to create voucher %s: %v", voucher.Code, err)
			continue
		}
		stdLog.Printf("Created voucher: %s (id=%d)", voucher.Code, voucher.ID)
	}

	// 演示用户令牌
	for _, demo := range []struct {
		Label  string
		UserID uint
	}{
		{Label: "owner", UserID: ownerID},
		{Label: "customer", UserID: customerID},
		{Label: "friend", UserID: friendID},
	} {
		token, expiresAt, err := service.GenerateUserJWT(cfg.UserJWT.SecretKey, cfg.UserJWT.Issuer, demo.UserID, 7*24*time.Hour)
		if err != nil {
			stdLog.Printf("Failed to sign token for %s: %v", demo.Label, err)
			continue
		}
		stdLog.Printf("Demo %s token (user_id=%d, expires %s): %s", demo.Label, demo.UserID, expiresAt.Format(time.RFC3339), token)
	}

	stdLog.Printf("Seed completed")
}
