package payment

import (
	"time"

	"github.com/shopspring/decimal"

	errors "github.com/solusipay/payment-aggregator/internal"
	"github.com/solusipay/payment-aggregator/internal/core/common/validation"
	"github.com/solusipay/payment-aggregator/internal/core/datamodel/payment"
)

// CreatePaymentRequest is the inbound payload for payment initialization.
type CreatePaymentRequest struct {
	MerchantID      int64           `json:"merchant_id"`
	Amount          decimal.Decimal `json:"amount"`
	Currency        string          `json:"currency"`
	Gateway         string          `json:"gateway"`
	Description     string          `json:"description,omitempty"`
	PaymentMethodID *int64          `json:"payment_method_id,omitempty"`
	ParentPaymentID *int64          `json:"parent_payment_id,omitempty"`
}

func (r *CreatePaymentRequest) Validate() error {
	if appErr := validation.ValidatePaymentAmount(r.Amount); appErr != nil {
		return appErr
	}
	if r.MerchantID <= 0 {
		return errors.NewValidationFieldError("merchant_id", "merchant_id is required", errors.ErrCodeValidationFailed)
	}
	if !payment.Currency(r.Currency).Valid() {
		return errors.NewValidationError("unknown currency", errors.ErrCodeInvalidCurrency)
	}
	if !payment.Gateway(r.Gateway).Valid() {
		return errors.NewValidationError("unknown gateway", errors.ErrCodeInvalidGateway)
	}
	return nil
}

// PaymentResponse is the outbound representation of a payment.
type PaymentResponse struct {
	ID               int64           `json:"id"`
	Reference        string          `json:"reference"`
	MerchantID       int64           `json:"merchant_id"`
	Amount           decimal.Decimal `json:"amount"`
	Currency         string          `json:"currency"`
	Gateway          string          `json:"gateway"`
	Status           string          `json:"status"`
	GatewayFee       decimal.Decimal `json:"gateway_fee"`
	PlatformFee      decimal.Decimal `json:"platform_fee"`
	NetAmount        decimal.Decimal `json:"net_amount"`
	ExternalID       *string         `json:"external_id,omitempty"`
	GatewayReference *string         `json:"gateway_reference,omitempty"`
	FailureCode      *string         `json:"failure_code,omitempty"`
	FailureReason    *string         `json:"failure_reason,omitempty"`
	InitiatedAt      time.Time       `json:"initiated_at"`
	ProcessedAt      *time.Time      `json:"processed_at,omitempty"`
	CompletedAt      *time.Time      `json:"completed_at,omitempty"`
	FailedAt         *time.Time      `json:"failed_at,omitempty"`
	ExpiresAt        *time.Time      `json:"expires_at,omitempty"`
}

func ToResponse(p *payment.Payment) *PaymentResponse {
	return &PaymentResponse{
		ID:               p.ID,
		Reference:        p.Reference,
		MerchantID:       p.MerchantID,
		Amount:           p.Amount,
		Currency:         string(p.Currency),
		Gateway:          string(p.Gateway),
		Status:           string(p.Status),
		GatewayFee:       p.GatewayFee,
		PlatformFee:      p.PlatformFee,
		NetAmount:        p.NetAmount,
		ExternalID:       p.ExternalID,
		GatewayReference: p.GatewayReference,
		FailureCode:      p.FailureCode,
		FailureReason:    p.FailureReason,
		InitiatedAt:      p.InitiatedAt,
		ProcessedAt:      p.ProcessedAt,
		CompletedAt:      p.CompletedAt,
		FailedAt:         p.FailedAt,
		ExpiresAt:        p.ExpiresAt,
	}
}
