package models

// Counter 门店按日递增的序列号
type Counter struct {
	ID      uint   `gorm:"primarykey" json:"id"`
	StoreID uint   `gorm:"not null;uniqueIndex:idx_counter_key" json:"store_id"`
	Type    string `gorm:"type:varchar(20);not null;uniqueIndex:idx_counter_key" json:"type"`
	Date    string `gorm:"type:varchar(10);not null;uniqueIndex:idx_counter_key" json:"date"` // YYYY-MM-DD
	Seq     int64  `gorm:"not null;default:0" json:"seq"`
}

// TableName 指定表名
func (Counter) TableName() string {
	return "counters"
}
