package postgres

import (
	"gorm.io/gorm"

	"github.com/solusipay/payment-aggregator/internal/core/datamodel/payment"
	"github.com/solusipay/payment-aggregator/internal/core/datamodel/paymentmethod"
	paymentmethodpkg "github.com/solusipay/payment-aggregator/internal/paymentmethod"
)

type PaymentMethodRepository struct {
	db *gorm.DB
}

func NewPaymentMethodRepository(db *gorm.DB) paymentmethodpkg.RepositoryAPI {
	return &PaymentMethodRepository{
		db: db,
	}
}

func (r *PaymentMethodRepository) GetByID(id int64) (*paymentmethod.PaymentMethod, error) {
	var pm paymentmethod.PaymentMethod
	err := r.db.First(&pm, id).Error
	if err != nil {
		return nil, err
	}
	return &pm, nil
}

// FindActiveByGatewayType returns the newest active integration for a
// gateway. Webhook verification keys off this record's secret.
func (r *PaymentMethodRepository) FindActiveByGatewayType(gateway payment.Gateway) (*paymentmethod.PaymentMethod, error) {
	var pm paymentmethod.PaymentMethod
	err := r.db.Where("gateway_type = ? AND is_active = ?", gateway, true).
		Order("created_at DESC").
		First(&pm).Error
	if err != nil {
		return nil, err
	}
	return &pm, nil
}

func (r *PaymentMethodRepository) ListByMerchant(merchantID int64) ([]*paymentmethod.PaymentMethod, error) {
	var methods []*paymentmethod.PaymentMethod
	err := r.db.Where("merchant_id = ?", merchantID).
		Order("created_at DESC").
		Find(&methods).Error
	return methods, err
}
