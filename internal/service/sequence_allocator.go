package service

import (
	"fmt"
	"time"

	"github.com/quickbite/internal/constants"
	"github.com/quickbite/internal/repository"

	"gorm.io/gorm"
)

const sequenceDateLayout = "2006-01-02"

// SequenceAllocator 门店按日序列号分配
type SequenceAllocator struct {
	counterRepo repository.CounterRepository
}

// NewSequenceAllocator 创建序列号分配器
func NewSequenceAllocator(counterRepo repository.CounterRepository) *SequenceAllocator {
	return &SequenceAllocator{counterRepo: counterRepo}
}

// Next 分配下一个序列号
func (a *SequenceAllocator) Next(storeID uint, seqType string, date time.Time) (int64, error) {
	return a.counterRepo.Next(storeID, seqType, date.Format(sequenceDateLayout))
}

// NextTx 在事务内分配下一个序列号
func (a *SequenceAllocator) NextTx(tx *gorm.DB, storeID uint, seqType string, date time.Time) (int64, error) {
	return a.counterRepo.WithTx(tx).Next(storeID, seqType, date.Format(sequenceDateLayout))
}

// NextOrderNumber 分配订单编号
func (a *SequenceAllocator) NextOrderNumber(tx *gorm.DB, storeID uint, now time.Time) (string, error) {
	seq, err := a.NextTx(tx, storeID, constants.SequenceTypeOrder, now)
	if err != nil {
		return "", err
	}
	return FormatOrderNumber(storeID, now, seq), nil
}

// NextInvoiceNumber 分配发票编号
func (a *SequenceAllocator) NextInvoiceNumber(tx *gorm.DB, storeID uint, now time.Time) (string, error) {
	seq, err := a.NextTx(tx, storeID, constants.SequenceTypeInvoice, now)
	if err != nil {
		return "", err
	}
	return FormatInvoiceNumber(storeID, now, seq), nil
}

// FormatOrderNumber 订单编号：{门店}-{yyyymmdd}-{序号}
func FormatOrderNumber(storeID uint, date time.Time, seq int64) string {
	return fmt.Sprintf("%d-%s-%04d", storeID, date.Format("20060102"), seq)
}

// FormatInvoiceNumber 发票编号：INV-{yyyymmdd}-{门店}-{序号}
func FormatInvoiceNumber(storeID uint, date time.Time, seq int64) string {
	return fmt.Sprintf("INV-%s-%d-%04d", date.Format("20060102"), storeID, seq)
}
