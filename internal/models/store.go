package models

import (
	"time"

	"gorm.io/gorm"
)

// 库存不限量标记
const DishStockUnlimited = -1

// Store 门店（目录只读模型）
type Store struct {
	ID        uint           `gorm:"primarykey" json:"id"`                   // 主键
	OwnerID   uint           `gorm:"index;not null" json:"owner_id"`         // 店主用户ID
	Name      string         `gorm:"type:varchar(200);not null" json:"name"` // 门店名称
	IsActive  bool           `gorm:"not null;default:true" json:"is_active"` // 是否营业
	CreatedAt time.Time      `gorm:"index" json:"created_at"`                // 创建时间
	UpdatedAt time.Time      `gorm:"index" json:"updated_at"`                // 更新时间
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`                         // 软删除时间
}

// TableName 指定表名
func (Store) TableName() string {
	return "stores"
}

// Dish 菜品
type Dish struct {
	ID          uint           `gorm:"primarykey" json:"id"`                                          // 主键
	StoreID     uint           `gorm:"index;not null" json:"store_id"`                                // 门店ID
	Name        string         `gorm:"type:varchar(200);not null" json:"name"`                        // 菜品名称
	Price       Money          `gorm:"type:decimal(20,2);not null" json:"price"`                      // 单价
	StockCount  int            `gorm:"not null;default:0" json:"stock_count"`                         // 库存（-1 表示不限量）
	StockStatus string         `gorm:"type:varchar(20);not null;default:'available'" json:"stock_status"` // 库存状态
	CreatedAt   time.Time      `gorm:"index" json:"created_at"`                                       // 创建时间
	UpdatedAt   time.Time      `gorm:"index" json:"updated_at"`                                       // 更新时间
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`                                                // 软删除时间
}

// TableName 指定表名
func (Dish) TableName() string {
	return "dishes"
}

// IsUnlimited 是否不限库存
func (d *Dish) IsUnlimited() bool {
	return d != nil && d.StockCount == DishStockUnlimited
}

// ToppingGroup 配料组
type ToppingGroup struct {
	ID        uint      `gorm:"primarykey" json:"id"`                   // 主键
	StoreID   uint      `gorm:"index;not null" json:"store_id"`         // 门店ID
	Name      string    `gorm:"type:varchar(200);not null" json:"name"` // 组名
	OnlyOnce  bool      `gorm:"not null;default:false" json:"only_once"` // 是否单选
	CreatedAt time.Time `json:"created_at"`                             // 创建时间

	Toppings []Topping `gorm:"foreignKey:ToppingGroupID" json:"toppings,omitempty"`
}

// TableName 指定表名
func (ToppingGroup) TableName() string {
	return "topping_groups"
}

// Topping 配料
type Topping struct {
	ID             uint      `gorm:"primarykey" json:"id"`                     // 主键
	ToppingGroupID uint      `gorm:"index;not null" json:"topping_group_id"`   // 配料组ID
	Name           string    `gorm:"type:varchar(200);not null" json:"name"`   // 名称
	Price          Money     `gorm:"type:decimal(20,2);not null" json:"price"` // 价格
	CreatedAt      time.Time `json:"created_at"`                               // 创建时间

	Group *ToppingGroup `gorm:"foreignKey:ToppingGroupID" json:"group,omitempty"`
}

// TableName 指定表名
func (Topping) TableName() string {
	return "toppings"
}
