package repository

import (
	"errors"
	"time"

	"github.com/quickbite/internal/constants"
	"github.com/quickbite/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PaymentRepository 支付数据访问接口
type PaymentRepository interface {
	Create(payment *models.Payment) error
	GetByTransactionID(transactionID string) (*models.Payment, error)
	ListByOrderID(orderID uint) ([]models.Payment, error)
	GetCaptured(orderID uint) (*models.Payment, error)
	SumRefunded(orderID uint) (models.Money, error)
	CreateIncident(incident *models.PaymentIncident) (bool, error)
	GetIncident(transactionID string) (*models.PaymentIncident, error)
	MarkIncidentAlerted(id uint, at time.Time) error
	WithTx(tx *gorm.DB) *GormPaymentRepository
}

// GormPaymentRepository GORM 实现
type GormPaymentRepository struct {
	db *gorm.DB
}

// NewPaymentRepository 创建支付仓库
func NewPaymentRepository(db *gorm.DB) *GormPaymentRepository {
	return &GormPaymentRepository{db: db}
}

// WithTx 绑定事务
func (r *GormPaymentRepository) WithTx(tx *gorm.DB) *GormPaymentRepository {
	if tx == nil {
		return r
	}
	return &GormPaymentRepository{db: tx}
}

// Create 创建支付记录
func (r *GormPaymentRepository) Create(payment *models.Payment) error {
	return r.db.Create(payment).Error
}

// GetByTransactionID 根据流水号获取支付记录
func (r *GormPaymentRepository) GetByTransactionID(transactionID string) (*models.Payment, error) {
	if transactionID == "" {
		return nil, nil
	}
	var payment models.Payment
	if err := r.db.Where("transaction_id = ?", transactionID).First(&payment).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &payment, nil
}

// ListByOrderID 获取订单的全部支付记录
func (r *GormPaymentRepository) ListByOrderID(orderID uint) ([]models.Payment, error) {
	var payments []models.Payment
	if err := r.db.Where("order_id = ?", orderID).Order("id asc").Find(&payments).Error; err != nil {
		return nil, err
	}
	return payments, nil
}

// GetCaptured 获取订单的成功支付记录
func (r *GormPaymentRepository) GetCaptured(orderID uint) (*models.Payment, error) {
	var payment models.Payment
	err := r.db.Where("order_id = ? AND status = ?", orderID, constants.PaymentStatusSuccess).
		Order("id asc").
		First(&payment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &payment, nil
}

// SumRefunded 汇总订单已退款金额
func (r *GormPaymentRepository) SumRefunded(orderID uint) (models.Money, error) {
	var payments []models.Payment
	if err := r.db.Select("amount").
		Where("order_id = ? AND status = ?", orderID, constants.PaymentStatusRefunded).
		Find(&payments).Error; err != nil {
		return models.ZeroMoney(), err
	}
	total := decimal.Zero
	for _, p := range payments {
		total = total.Add(p.Amount.Decimal)
	}
	return models.NewMoneyFromDecimal(total), nil
}

// CreateIncident 记录支付异常，同一流水号只记录一次；返回 false 表示已存在
func (r *GormPaymentRepository) CreateIncident(incident *models.PaymentIncident) (bool, error) {
	result := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "transaction_id"}},
		DoNothing: true,
	}).Create(incident)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// GetIncident 根据流水号获取支付异常
func (r *GormPaymentRepository) GetIncident(transactionID string) (*models.PaymentIncident, error) {
	var incident models.PaymentIncident
	if err := r.db.Where("transaction_id = ?", transactionID).First(&incident).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &incident, nil
}

// MarkIncidentAlerted 标记支付异常已告警
func (r *GormPaymentRepository) MarkIncidentAlerted(id uint, at time.Time) error {
	return r.db.Model(&models.PaymentIncident{}).
		Where("id = ? AND status = ?", id, constants.PaymentIncidentOpen).
		Updates(map[string]interface{}{
			"status":     constants.PaymentIncidentAlerted,
			"alerted_at": at,
			"updated_at": at,
		}).Error
}
