package models

import (
	"time"

	"gorm.io/gorm"
)

// Voucher 门店优惠券
type Voucher struct {
	ID             uint           `gorm:"primarykey" json:"id"`                                         // 主键
	StoreID        uint           `gorm:"not null;uniqueIndex:idx_voucher_store_code" json:"store_id"`  // 门店ID
	Code           string         `gorm:"type:varchar(64);not null;uniqueIndex:idx_voucher_store_code" json:"code"` // 优惠码
	DiscountType   string         `gorm:"type:varchar(20);not null" json:"discount_type"`               // 类型（PERCENTAGE/FIXED）
	DiscountValue  Money          `gorm:"type:decimal(20,2);not null" json:"discount_value"`            // 数值（百分比或固定金额）
	MaxDiscount    *Money         `gorm:"type:decimal(20,2)" json:"max_discount,omitempty"`             // 最大优惠金额
	MinOrderAmount *Money         `gorm:"type:decimal(20,2)" json:"min_order_amount,omitempty"`         // 使用门槛
	StartDate      time.Time      `gorm:"index;not null" json:"start_date"`                             // 生效时间
	EndDate        time.Time      `gorm:"index;not null" json:"end_date"`                               // 失效时间
	UsageLimit     *int           `json:"usage_limit,omitempty"`                                        // 总使用上限（空表示不限制）
	UsedCount      int            `gorm:"not null;default:0" json:"used_count"`                         // 已使用次数
	UserLimit      *int           `json:"user_limit,omitempty"`                                         // 每人使用上限（空表示不限制）
	IsActive       bool           `gorm:"not null;default:true" json:"is_active"`                       // 是否启用
	IsStackable    bool           `gorm:"not null;default:false" json:"is_stackable"`                   // 是否可叠加
	CreatedAt      time.Time      `gorm:"index" json:"created_at"`                                      // 创建时间
	UpdatedAt      time.Time      `gorm:"index" json:"updated_at"`                                      // 更新时间
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"-"`                                               // 软删除时间
}

// TableName 指定表名
func (Voucher) TableName() string {
	return "vouchers"
}

// UserVoucherUsage 用户优惠券使用计数
type UserVoucherUsage struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_user_voucher_usage" json:"user_id"`
	VoucherID uint      `gorm:"not null;uniqueIndex:idx_user_voucher_usage" json:"voucher_id"`
	UsedCount int       `gorm:"not null;default:0" json:"used_count"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName 指定表名
func (UserVoucherUsage) TableName() string {
	return "user_voucher_usages"
}
