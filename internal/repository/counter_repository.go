package repository

import (
	"github.com/quickbite/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CounterRepository 序列号数据访问接口
type CounterRepository interface {
	Next(storeID uint, seqType, date string) (int64, error)
	WithTx(tx *gorm.DB) *GormCounterRepository
}

// GormCounterRepository GORM 实现
type GormCounterRepository struct {
	db *gorm.DB
}

// NewCounterRepository 创建序列号仓库
func NewCounterRepository(db *gorm.DB) *GormCounterRepository {
	return &GormCounterRepository{db: db}
}

// WithTx 绑定事务
func (r *GormCounterRepository) WithTx(tx *gorm.DB) *GormCounterRepository {
	if tx == nil {
		return r
	}
	return &GormCounterRepository{db: tx}
}

// Next 原子自增并返回新的序列号
// upsert 持有行锁直到事务结束，因此同一事务内回读的值只属于本次调用。
func (r *GormCounterRepository) Next(storeID uint, seqType, date string) (int64, error) {
	var seq int64
	err := r.db.Transaction(func(tx *gorm.DB) error {
		counter := models.Counter{StoreID: storeID, Type: seqType, Date: date, Seq: 1}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "store_id"}, {Name: "type"}, {Name: "date"}},
			DoUpdates: clause.Assignments(map[string]interface{}{"seq": gorm.Expr("counters.seq + 1")}),
		}).Create(&counter).Error; err != nil {
			return err
		}
		return tx.Model(&models.Counter{}).
			Select("seq").
			Where("store_id = ? AND type = ? AND date = ?", storeID, seqType, date).
			Row().Scan(&seq)
	})
	if err != nil {
		return 0, err
	}
	return seq, nil
}
