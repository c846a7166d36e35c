package merchant

import (
	"errors"
	"log/slog"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	apperrors "github.com/solusipay/payment-aggregator/internal"
	"github.com/solusipay/payment-aggregator/internal/core/datamodel/merchant"
)

// RepositoryAPI is defined here, on the consumer side, so the postgres
// package stays a pure adapter.
type RepositoryAPI interface {
	GetByID(id int64) (*merchant.Merchant, error)
	IncrementProcessed(merchantID int64, amount decimal.Decimal) error
}

type MerchantService struct {
	repository RepositoryAPI
	logger     *slog.Logger
}

func NewMerchantService(repository RepositoryAPI, logger *slog.Logger) *MerchantService {
	return &MerchantService{
		repository: repository,
		logger:     logger,
	}
}

func (s *MerchantService) GetMerchant(id int64) (*merchant.Merchant, error) {
	m, err := s.repository.GetByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrMerchantNotFound
		}
		s.logger.Error("failed to fetch merchant", "merchant_id", id, "error", err)
		return nil, apperrors.NewInternalError("failed to fetch merchant", err)
	}
	return m, nil
}

// IncrementProcessed adds a completed payment to the merchant's running
// totals. It is applied once per payment, at the transition into
// COMPLETED, never on webhook replays.
func (s *MerchantService) IncrementProcessed(merchantID int64, amount decimal.Decimal) error {
	if err := s.repository.IncrementProcessed(merchantID, amount); err != nil {
		s.logger.Error("failed to increment merchant totals",
			"merchant_id", merchantID,
			"amount", amount,
			"error", err)
		return apperrors.NewInternalError("failed to update merchant totals", err)
	}
	return nil
}
