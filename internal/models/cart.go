package models

import (
	"time"

	"github.com/quickbite/internal/constants"
)

// CartStatus 购物车状态
type CartStatus string

const (
	CartStatusActive  CartStatus = "active"
	CartStatusLocking CartStatus = "locking"
	CartStatusPlaced  CartStatus = "placed"
	CartStatusExpired CartStatus = "expired"
)

// DeliveryInfo 结账时的配送信息
type DeliveryInfo struct {
	Lat           float64 `json:"lat"`
	Lng           float64 `json:"lng"`
	Address       string  `gorm:"type:varchar(500)" json:"address"`
	DetailAddress string  `gorm:"type:varchar(500)" json:"detail_address"`
	ContactName   string  `gorm:"type:varchar(100)" json:"contact_name"`
	ContactPhone  string  `gorm:"type:varchar(30)" json:"contact_phone"`
	Note          string  `gorm:"type:varchar(500)" json:"note"`
}

// Cart 购物车
type Cart struct {
	ID            uint         `gorm:"primarykey" json:"id"`                                             // 主键
	UserID        uint         `gorm:"index;not null" json:"user_id"`                                    // 车主用户ID
	StoreID       uint         `gorm:"index;not null" json:"store_id"`                                   // 门店ID
	Mode          string       `gorm:"type:varchar(20);not null;default:'private'" json:"mode"`          // 模式（private/group）
	Status        CartStatus   `gorm:"type:varchar(20);index;not null;default:'active'" json:"status"`   // 状态
	JoinToken     *string      `gorm:"type:varchar(64);uniqueIndex" json:"join_token,omitempty"`         // 拼单邀请令牌
	ShippingFee   Money        `gorm:"type:decimal(20,2);not null;default:0" json:"shipping_fee"`        // 配送费
	PaymentMethod string       `gorm:"type:varchar(20)" json:"payment_method"`                           // 支付方式
	Delivery      DeliveryInfo `gorm:"embedded;embeddedPrefix:delivery_" json:"delivery"`                // 配送信息
	PendingTxnRef string       `gorm:"type:varchar(64);index" json:"-"`                                  // 最近一次支付流水号
	PendingUntil  *time.Time   `json:"pending_until,omitempty"`                                          // 在线支付链接有效期
	Completed     bool         `gorm:"not null;default:false;index" json:"completed"`                    // 是否已下单（终态）
	CreatedAt     time.Time    `gorm:"index" json:"created_at"`                                          // 创建时间
	UpdatedAt     time.Time    `gorm:"index" json:"updated_at"`                                          // 更新时间

	Items        []CartItem        `gorm:"foreignKey:CartID" json:"items,omitempty"`        // 购物车项
	Participants []CartParticipant `gorm:"foreignKey:CartID" json:"participants,omitempty"` // 拼单成员
	Vouchers     []CartVoucher     `gorm:"foreignKey:CartID" json:"vouchers,omitempty"`     // 已选优惠券
}

// TableName 指定表名
func (Cart) TableName() string {
	return "carts"
}

// IsGroup 是否拼单购物车
func (c *Cart) IsGroup() bool {
	return c != nil && c.Mode == constants.CartModeGroup
}

// VoucherIDs 已选优惠券ID列表
func (c *Cart) VoucherIDs() []uint {
	if c == nil {
		return nil
	}
	ids := make([]uint, 0, len(c.Vouchers))
	for _, v := range c.Vouchers {
		ids = append(ids, v.VoucherID)
	}
	return ids
}

// CartVoucher 购物车已选优惠券
type CartVoucher struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CartID    uint      `gorm:"not null;uniqueIndex:idx_cart_voucher" json:"cart_id"`
	VoucherID uint      `gorm:"not null;uniqueIndex:idx_cart_voucher" json:"voucher_id"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName 指定表名
func (CartVoucher) TableName() string {
	return "cart_vouchers"
}

// CartParticipant 拼单成员
type CartParticipant struct {
	ID        uint      `gorm:"primarykey" json:"id"`                                      // 主键
	CartID    uint      `gorm:"not null;uniqueIndex:idx_cart_participant_user" json:"cart_id"` // 购物车ID
	UserID    uint      `gorm:"not null;uniqueIndex:idx_cart_participant_user" json:"user_id"` // 用户ID
	IsOwner   bool      `gorm:"not null;default:false" json:"is_owner"`                    // 是否车主
	Status    string    `gorm:"type:varchar(20);not null;index" json:"status"`            // 状态（active/locking/removed/completed）
	CreatedAt time.Time `json:"created_at"`                                                // 创建时间
	UpdatedAt time.Time `json:"updated_at"`                                                // 更新时间
}

// TableName 指定表名
func (CartParticipant) TableName() string {
	return "cart_participants"
}

// CartItem 购物车项（私有车 ParticipantID 为 0）
type CartItem struct {
	ID            uint      `gorm:"primarykey" json:"id"`                                          // 主键
	CartID        uint      `gorm:"not null;uniqueIndex:idx_cart_item_line" json:"cart_id"`        // 购物车ID
	ParticipantID uint      `gorm:"not null;default:0;uniqueIndex:idx_cart_item_line" json:"participant_id"` // 拼单成员ID
	DishID        uint      `gorm:"not null;uniqueIndex:idx_cart_item_line" json:"dish_id"`        // 菜品ID
	DishName      string    `gorm:"type:varchar(200);not null" json:"dish_name"`                   // 菜品名称快照
	Quantity      int       `gorm:"not null" json:"quantity"`                                      // 数量
	UnitPrice     Money     `gorm:"type:decimal(20,2);not null" json:"unit_price"`                 // 单价快照
	Note          string    `gorm:"type:varchar(500)" json:"note"`                                 // 备注
	CreatedAt     time.Time `json:"created_at"`                                                    // 创建时间
	UpdatedAt     time.Time `json:"updated_at"`                                                    // 更新时间

	Toppings []CartItemTopping `gorm:"foreignKey:CartItemID" json:"toppings,omitempty"` // 配料
}

// TableName 指定表名
func (CartItem) TableName() string {
	return "cart_items"
}

// CartItemTopping 购物车项配料
type CartItemTopping struct {
	ID          uint   `gorm:"primarykey" json:"id"`
	CartItemID  uint   `gorm:"index;not null" json:"cart_item_id"`
	ToppingID   uint   `gorm:"not null" json:"topping_id"`
	ToppingName string `gorm:"type:varchar(200);not null" json:"topping_name"`
	Price       Money  `gorm:"type:decimal(20,2);not null" json:"price"`
}

// TableName 指定表名
func (CartItemTopping) TableName() string {
	return "cart_item_toppings"
}

// CartActivity 购物车操作记录
type CartActivity struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CartID    uint      `gorm:"index;not null" json:"cart_id"`
	UserID    uint      `gorm:"index;not null" json:"user_id"`
	Action    string    `gorm:"type:varchar(30);not null" json:"action"`
	DishID    uint      `json:"dish_id,omitempty"`
	Quantity  int       `json:"quantity,omitempty"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

// TableName 指定表名
func (CartActivity) TableName() string {
	return "cart_activities"
}
