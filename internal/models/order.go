package models

import (
	"time"

	"gorm.io/gorm"
)

// OrderStatus 订单状态
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusPreparing  OrderStatus = "preparing"
	OrderStatusFinished   OrderStatus = "finished"
	OrderStatusDelivering OrderStatus = "delivering"
	OrderStatusDone       OrderStatus = "done"
)

// Order 订单表
type Order struct {
	ID            uint           `gorm:"primarykey" json:"id"`                                          // 主键
	OrderNumber   string         `gorm:"type:varchar(64);uniqueIndex;not null" json:"order_number"`     // 订单编号（门店+日期+序号）
	CartID        uint           `gorm:"uniqueIndex;not null" json:"cart_id"`                           // 来源购物车
	UserID        uint           `gorm:"index;not null" json:"user_id"`                                 // 下单用户
	StoreID       uint           `gorm:"index;not null" json:"store_id"`                                // 门店ID
	IsGroupOrder  bool           `gorm:"not null;default:false" json:"is_group_order"`                  // 是否拼单
	Status        OrderStatus    `gorm:"type:varchar(20);index;not null" json:"status"`                 // 订单状态
	PaymentMethod string         `gorm:"type:varchar(20);not null" json:"payment_method"`               // 支付方式
	PaymentStatus string         `gorm:"type:varchar(20);index;not null" json:"payment_status"`         // 支付状态
	Currency      string         `gorm:"type:varchar(10);not null" json:"currency"`                     // 币种
	SubtotalPrice Money          `gorm:"type:decimal(20,2);not null;default:0" json:"subtotal_price"`   // 小计
	TotalDiscount Money          `gorm:"type:decimal(20,2);not null;default:0" json:"total_discount"`   // 优惠合计
	ShippingFee   Money          `gorm:"type:decimal(20,2);not null;default:0" json:"shipping_fee"`     // 配送费
	FinalTotal    Money          `gorm:"type:decimal(20,2);not null;default:0" json:"final_total"`      // 实付金额
	CreatedAt     time.Time      `gorm:"index" json:"created_at"`                                       // 创建时间
	UpdatedAt     time.Time      `gorm:"index" json:"updated_at"`                                       // 更新时间
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"-"`                                                // 软删除时间

	Participants []OrderParticipant `gorm:"foreignKey:OrderID" json:"participants,omitempty"` // 拼单成员快照
	Items        []OrderItem        `gorm:"foreignKey:OrderID" json:"items,omitempty"`        // 订单项
	ShipInfo     *OrderShipInfo     `gorm:"foreignKey:OrderID" json:"ship_info,omitempty"`    // 配送信息
	Vouchers     []OrderVoucher     `gorm:"foreignKey:OrderID" json:"vouchers,omitempty"`     // 使用的优惠券
}

// TableName 指定表名
func (Order) TableName() string {
	return "orders"
}

// OrderParticipant 拼单订单成员快照
type OrderParticipant struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	OrderID   uint      `gorm:"index;not null" json:"order_id"`
	UserID    uint      `gorm:"index;not null" json:"user_id"`
	IsOwner   bool      `gorm:"not null;default:false" json:"is_owner"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName 指定表名
func (OrderParticipant) TableName() string {
	return "order_participants"
}

// OrderItem 订单项（价格与名称为下单时快照）
type OrderItem struct {
	ID            uint      `gorm:"primarykey" json:"id"`                                      // 主键
	OrderID       uint      `gorm:"index;not null" json:"order_id"`                            // 订单ID
	ParticipantID *uint     `gorm:"index" json:"participant_id,omitempty"`                     // 拼单成员ID
	UserID        *uint     `gorm:"index" json:"user_id,omitempty"`                            // 拼单成员用户ID
	DishID        uint      `gorm:"index;not null" json:"dish_id"`                             // 菜品ID
	DishName      string    `gorm:"type:varchar(200);not null" json:"dish_name"`               // 菜品名称
	Quantity      int       `gorm:"not null" json:"quantity"`                                  // 数量
	Price         Money     `gorm:"type:decimal(20,2);not null" json:"price"`                  // 单价
	ToppingsTotal Money     `gorm:"type:decimal(20,2);not null;default:0" json:"toppings_total"` // 单份配料合计
	LineSubtotal  Money     `gorm:"type:decimal(20,2);not null;default:0" json:"line_subtotal"`  // 单份价格（菜品+配料）
	LineTotal     Money     `gorm:"type:decimal(20,2);not null;default:0" json:"line_total"`     // 行合计
	Note          string    `gorm:"type:varchar(500)" json:"note"`                             // 备注
	CreatedAt     time.Time `json:"created_at"`                                                // 创建时间

	Toppings []OrderItemTopping `gorm:"foreignKey:OrderItemID" json:"toppings,omitempty"`
}

// TableName 指定表名
func (OrderItem) TableName() string {
	return "order_items"
}

// OrderItemTopping 订单项配料快照
type OrderItemTopping struct {
	ID          uint   `gorm:"primarykey" json:"id"`
	OrderItemID uint   `gorm:"index;not null" json:"order_item_id"`
	ToppingID   uint   `gorm:"not null" json:"topping_id"`
	ToppingName string `gorm:"type:varchar(200);not null" json:"topping_name"`
	Price       Money  `gorm:"type:decimal(20,2);not null" json:"price"`
}

// TableName 指定表名
func (OrderItemTopping) TableName() string {
	return "order_item_toppings"
}

// OrderShipInfo 订单配送信息
type OrderShipInfo struct {
	ID            uint      `gorm:"primarykey" json:"id"`
	OrderID       uint      `gorm:"uniqueIndex;not null" json:"order_id"`
	Lat           float64   `json:"lat"`
	Lng           float64   `json:"lng"`
	Address       string    `gorm:"type:varchar(500)" json:"address"`
	DetailAddress string    `gorm:"type:varchar(500)" json:"detail_address"`
	ContactName   string    `gorm:"type:varchar(100)" json:"contact_name"`
	ContactPhone  string    `gorm:"type:varchar(30)" json:"contact_phone"`
	Note          string    `gorm:"type:varchar(500)" json:"note"`
	CreatedAt     time.Time `json:"created_at"`
}

// TableName 指定表名
func (OrderShipInfo) TableName() string {
	return "order_ship_infos"
}

// OrderVoucher 订单优惠券使用记录
type OrderVoucher struct {
	ID             uint      `gorm:"primarykey" json:"id"`
	OrderID        uint      `gorm:"index;not null" json:"order_id"`
	VoucherID      uint      `gorm:"index;not null" json:"voucher_id"`
	DiscountAmount Money     `gorm:"type:decimal(20,2);not null" json:"discount_amount"`
	Snapshot       JSON      `gorm:"type:json" json:"snapshot"`
	CreatedAt      time.Time `json:"created_at"`
}

// TableName 指定表名
func (OrderVoucher) TableName() string {
	return "order_vouchers"
}
