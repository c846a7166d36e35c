package postgres

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/solusipay/payment-aggregator/internal/core/datamodel/merchant"
	merchantpkg "github.com/solusipay/payment-aggregator/internal/merchant"
)

type MerchantRepository struct {
	db *gorm.DB
}

func NewMerchantRepository(db *gorm.DB) merchantpkg.RepositoryAPI {
	return &MerchantRepository{
		db: db,
	}
}

func (r *MerchantRepository) GetByID(id int64) (*merchant.Merchant, error) {
	var m merchant.Merchant
	err := r.db.First(&m, id).Error
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// IncrementProcessed updates the aggregates in one statement so concurrent
// completions never lose an increment.
func (r *MerchantRepository) IncrementProcessed(merchantID int64, amount decimal.Decimal) error {
	return r.db.Model(&merchant.Merchant{}).
		Where("id = ?", merchantID).
		Updates(map[string]interface{}{
			"total_processed_amount": gorm.Expr("total_processed_amount + ?", amount),
			"total_transactions":     gorm.Expr("total_transactions + 1"),
			"updated_at":             time.Now(),
		}).Error
}
