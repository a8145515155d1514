package repository

import (
	"errors"
	"time"

	"github.com/quickbite/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// VoucherRepository 优惠券数据访问接口
type VoucherRepository interface {
	GetByID(id uint) (*models.Voucher, error)
	GetByStoreCode(storeID uint, code string) (*models.Voucher, error)
	ListByIDs(ids []uint) ([]models.Voucher, error)
	ListUsableByStore(storeID uint, now time.Time) ([]models.Voucher, error)
	Create(voucher *models.Voucher) error
	RedeemOnce(voucherID uint) (bool, error)
	RedeemForUser(voucherID, userID uint, userLimit *int) (bool, error)
	GetUsage(voucherID, userID uint) (*models.UserVoucherUsage, error)
	WithTx(tx *gorm.DB) *GormVoucherRepository
}

// GormVoucherRepository GORM 实现
type GormVoucherRepository struct {
	db *gorm.DB
}

// NewVoucherRepository 创建优惠券仓库
func NewVoucherRepository(db *gorm.DB) *GormVoucherRepository {
	return &GormVoucherRepository{db: db}
}

// WithTx 绑定事务
func (r *GormVoucherRepository) WithTx(tx *gorm.DB) *GormVoucherRepository {
	if tx == nil {
		return r
	}
	return &GormVoucherRepository{db: tx}
}

// GetByID 根据ID获取优惠券
func (r *GormVoucherRepository) GetByID(id uint) (*models.Voucher, error) {
	var voucher models.Voucher
	if err := r.db.First(&voucher, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &voucher, nil
}

// GetByStoreCode 根据门店与优惠码获取优惠券
func (r *GormVoucherRepository) GetByStoreCode(storeID uint, code string) (*models.Voucher, error) {
	var voucher models.Voucher
	if err := r.db.Where("store_id = ? AND code = ?", storeID, code).First(&voucher).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &voucher, nil
}

// ListByIDs 批量获取优惠券（按ID升序）
func (r *GormVoucherRepository) ListByIDs(ids []uint) ([]models.Voucher, error) {
	if len(ids) == 0 {
		return []models.Voucher{}, nil
	}
	var vouchers []models.Voucher
	if err := r.db.Where("id IN ?", ids).Order("id asc").Find(&vouchers).Error; err != nil {
		return nil, err
	}
	return vouchers, nil
}

// ListUsableByStore 门店启用中、在有效期内且总量未用完的优惠券
func (r *GormVoucherRepository) ListUsableByStore(storeID uint, now time.Time) ([]models.Voucher, error) {
	var vouchers []models.Voucher
	err := r.db.
		Where("store_id = ? AND is_active = ?", storeID, true).
		Where("start_date <= ? AND end_date >= ?", now, now).
		Where("(usage_limit IS NULL OR used_count < usage_limit)").
		Order("id asc").
		Find(&vouchers).Error
	if err != nil {
		return nil, err
	}
	return vouchers, nil
}

// Create 创建优惠券
func (r *GormVoucherRepository) Create(voucher *models.Voucher) error {
	return r.db.Create(voucher).Error
}

// RedeemOnce 条件递增已用次数，返回 false 表示已达总上限
func (r *GormVoucherRepository) RedeemOnce(voucherID uint) (bool, error) {
	result := r.db.Model(&models.Voucher{}).
		Where("id = ? AND (usage_limit IS NULL OR used_count < usage_limit)", voucherID).
		Updates(map[string]interface{}{
			"used_count": gorm.Expr("used_count + ?", 1),
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// RedeemForUser 条件递增用户使用次数，返回 false 表示已达每人上限
func (r *GormVoucherRepository) RedeemForUser(voucherID, userID uint, userLimit *int) (bool, error) {
	if userID == 0 {
		return true, nil
	}
	usage := models.UserVoucherUsage{UserID: userID, VoucherID: voucherID}
	if err := r.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&usage).Error; err != nil {
		return false, err
	}
	query := r.db.Model(&models.UserVoucherUsage{}).Where("user_id = ? AND voucher_id = ?", userID, voucherID)
	if userLimit != nil {
		query = query.Where("used_count < ?", *userLimit)
	}
	result := query.Updates(map[string]interface{}{
		"used_count": gorm.Expr("used_count + ?", 1),
		"updated_at": time.Now(),
	})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// GetUsage 获取用户使用计数
func (r *GormVoucherRepository) GetUsage(voucherID, userID uint) (*models.UserVoucherUsage, error) {
	var usage models.UserVoucherUsage
	if err := r.db.Where("user_id = ? AND voucher_id = ?", userID, voucherID).First(&usage).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &usage, nil
}
