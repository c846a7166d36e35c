package postgres

import (
	"github.com/solusipay/payment-aggregator/internal/core/datamodel/payment"
	paymentpkg "github.com/solusipay/payment-aggregator/internal/payment"
	"gorm.io/gorm"
)

type PaymentRepository struct {
	db *gorm.DB
}

func NewPaymentRepository(db *gorm.DB) paymentpkg.RepositoryAPI {
	return &PaymentRepository{
		db: db,
	}
}

func (r *PaymentRepository) Create(p *payment.Payment) error {
	return r.db.Create(p).Error
}

func (r *PaymentRepository) GetByID(id int64) (*payment.Payment, error) {
	var p payment.Payment
	err := r.db.First(&p, id).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PaymentRepository) GetByReference(reference string) (*payment.Payment, error) {
	var p payment.Payment
	err := r.db.Where("reference = ?", reference).First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PaymentRepository) GetByExternalOrGatewayRef(ref string) (*payment.Payment, error) {
	var p payment.Payment
	err := r.db.Where("external_id = ? OR gateway_reference = ?", ref, ref).First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PaymentRepository) Update(p *payment.Payment) error {
	return r.db.Save(p).Error
}

func (r *PaymentRepository) GetByMerchantID(merchantID int64, offset, limit int) ([]*payment.Payment, error) {
	var payments []*payment.Payment
	err := r.db.Where("merchant_id = ?", merchantID).
		Order("created_at DESC").
		Offset(offset).Limit(limit).
		Find(&payments).Error
	return payments, err
}
