package models

import "time"

// Invoice 订单完成时开具的发票
type Invoice struct {
	ID            uint      `gorm:"primarykey" json:"id"`                                        // 主键
	InvoiceNumber string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"invoice_number"` // 发票编号
	OrderID       uint      `gorm:"uniqueIndex;not null" json:"order_id"`                        // 订单ID
	IssuedAt      time.Time `gorm:"not null" json:"issued_at"`                                   // 开具时间
	Subtotal      Money     `gorm:"type:decimal(20,2);not null" json:"subtotal"`                 // 小计
	TotalDiscount Money     `gorm:"type:decimal(20,2);not null;default:0" json:"total_discount"` // 优惠合计
	ShippingFee   Money     `gorm:"type:decimal(20,2);not null;default:0" json:"shipping_fee"`   // 配送费
	Total         Money     `gorm:"type:decimal(20,2);not null" json:"total"`                    // 合计
	Currency      string    `gorm:"type:varchar(10);not null" json:"currency"`                   // 币种
	Status        string    `gorm:"type:varchar(20);not null" json:"status"`                     // 状态
	OrderSnapshot JSON      `gorm:"type:json" json:"order_snapshot"`                             // 订单快照
	CreatedAt     time.Time `json:"created_at"`                                                  // 创建时间
	UpdatedAt     time.Time `json:"updated_at"`                                                  // 更新时间
}

// TableName 指定表名
func (Invoice) TableName() string {
	return "invoices"
}
