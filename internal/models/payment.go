package models

import (
	"time"
)

// Payment 支付记录（支付成功与退款各一条）
type Payment struct {
	ID            uint      `gorm:"primarykey" json:"id"`                                    // 主键
	OrderID       uint      `gorm:"index;not null" json:"order_id"`                          // 订单ID
	Provider      string    `gorm:"type:varchar(20);not null" json:"provider"`               // 支付提供方
	Amount        Money     `gorm:"type:decimal(20,2);not null" json:"amount"`               // 金额
	Status        string    `gorm:"type:varchar(20);index;not null" json:"status"`           // 状态（success/refunded/failed）
	TransactionID string    `gorm:"type:varchar(100);uniqueIndex;not null" json:"transaction_id"` // 流水号（幂等键）
	Metadata      JSON      `gorm:"type:json" json:"metadata"`                               // 网关回传数据
	CreatedAt     time.Time `gorm:"index" json:"created_at"`                                 // 创建时间
	UpdatedAt     time.Time `json:"updated_at"`                                              // 更新时间
}

// TableName 指定表名
func (Payment) TableName() string {
	return "payments"
}

// PaymentIncident 支付成功但订单未落库的异常记录
type PaymentIncident struct {
	ID            uint       `gorm:"primarykey" json:"id"`                                          // 主键
	Provider      string     `gorm:"type:varchar(20);not null" json:"provider"`                     // 支付提供方
	TransactionID string     `gorm:"type:varchar(100);uniqueIndex;not null" json:"transaction_id"`  // 网关流水号
	CartID        uint       `gorm:"index" json:"cart_id"`                                          // 购物车ID
	Amount        Money      `gorm:"type:decimal(20,2);not null;default:0" json:"amount"`           // 网关确认金额
	Reason        string     `gorm:"type:text;not null" json:"reason"`                              // 失败原因
	Status        string     `gorm:"type:varchar(20);index;not null" json:"status"`                 // 状态（open/alerted/resolved）
	Payload       JSON       `gorm:"type:json" json:"payload"`                                      // 回调原始参数
	AlertedAt     *time.Time `json:"alerted_at,omitempty"`                                          // 告警时间
	CreatedAt     time.Time  `gorm:"index" json:"created_at"`                                       // 创建时间
	UpdatedAt     time.Time  `json:"updated_at"`                                                    // 更新时间
}

// TableName 指定表名
func (PaymentIncident) TableName() string {
	return "payment_incidents"
}
