package paymentmethod

import (
	"errors"
	"log/slog"

	"gorm.io/gorm"

	apperrors "github.com/solusipay/payment-aggregator/internal"
	"github.com/solusipay/payment-aggregator/internal/core/datamodel/payment"
	"github.com/solusipay/payment-aggregator/internal/core/datamodel/paymentmethod"
)

type RepositoryAPI interface {
	GetByID(id int64) (*paymentmethod.PaymentMethod, error)
	FindActiveByGatewayType(gateway payment.Gateway) (*paymentmethod.PaymentMethod, error)
	ListByMerchant(merchantID int64) ([]*paymentmethod.PaymentMethod, error)
}

type PaymentMethodService struct {
	repository RepositoryAPI
	logger     *slog.Logger
}

func NewPaymentMethodService(repository RepositoryAPI, logger *slog.Logger) *PaymentMethodService {
	return &PaymentMethodService{
		repository: repository,
		logger:     logger,
	}
}

// FindActiveByGatewayType resolves the integration whose secret verifies
// webhooks from the given gateway.
func (s *PaymentMethodService) FindActiveByGatewayType(gateway payment.Gateway) (*paymentmethod.PaymentMethod, error) {
	pm, err := s.repository.FindActiveByGatewayType(gateway)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrPaymentMethodNotFound
		}
		s.logger.Error("failed to look up payment method", "gateway", gateway, "error", err)
		return nil, apperrors.NewInternalError("failed to look up payment method", err)
	}
	return pm, nil
}

func (s *PaymentMethodService) ListByMerchant(merchantID int64) ([]*paymentmethod.PaymentMethod, error) {
	methods, err := s.repository.ListByMerchant(merchantID)
	if err != nil {
		s.logger.Error("failed to list payment methods", "merchant_id", merchantID, "error", err)
		return nil, apperrors.NewInternalError("failed to list payment methods", err)
	}
	return methods, nil
}
