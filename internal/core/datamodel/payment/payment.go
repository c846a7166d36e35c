package payment

import (
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPending           Status = "PENDING"
	StatusProcessing        Status = "PROCESSING"
	StatusCompleted         Status = "COMPLETED"
	StatusFailed            Status = "FAILED"
	StatusCancelled         Status = "CANCELLED"
	StatusRefunded          Status = "REFUNDED"
	StatusPartiallyRefunded Status = "PARTIALLY_REFUNDED"
	StatusDisputed          Status = "DISPUTED"
	StatusExpired           Status = "EXPIRED"
)

type Gateway string

const (
	GatewayPaystack    Gateway = "paystack"
	GatewayFlutterwave Gateway = "flutterwave"
	GatewayStripe      Gateway = "stripe"
	GatewayPaypal      Gateway = "paypal"
	GatewaySquare      Gateway = "square"
	GatewayRazorpay    Gateway = "razorpay"
	GatewayInternal    Gateway = "internal"
)

func (g Gateway) Valid() bool {
	switch g {
	case GatewayPaystack, GatewayFlutterwave, GatewayStripe,
		GatewayPaypal, GatewaySquare, GatewayRazorpay, GatewayInternal:
		return true
	}
	return false
}

type Currency string

const (
	CurrencyNGN Currency = "NGN"
	CurrencyUSD Currency = "USD"
	CurrencyEUR Currency = "EUR"
	CurrencyGBP Currency = "GBP"
	CurrencyKES Currency = "KES"
	CurrencyGHS Currency = "GHS"
	CurrencyZAR Currency = "ZAR"
)

func (c Currency) Valid() bool {
	switch c {
	case CurrencyNGN, CurrencyUSD, CurrencyEUR, CurrencyGBP,
		CurrencyKES, CurrencyGHS, CurrencyZAR:
		return true
	}
	return false
}

// Payment is the central entity. Status is the single source of truth for
// lifecycle; Reference uniquely identifies a payment for webhook matching
// and is immutable after creation.
type Payment struct {
	ID              int64           `gorm:"primaryKey"`
	Reference       string          `gorm:"column:reference;not null;uniqueIndex"`
	MerchantID      int64           `gorm:"column:merchant_id;not null;index"`
	PaymentMethodID *int64          `gorm:"column:payment_method_id"`
	ParentPaymentID *int64          `gorm:"column:parent_payment_id"`
	Amount          decimal.Decimal `gorm:"column:amount;type:numeric(12,2);not null"`
	Currency        Currency        `gorm:"column:currency;not null"`
	Gateway         Gateway         `gorm:"column:gateway;not null"`
	Status          Status          `gorm:"column:status;default:PENDING;index"`

	GatewayFee  decimal.Decimal `gorm:"column:gateway_fee;type:numeric(12,2);default:0"`
	PlatformFee decimal.Decimal `gorm:"column:platform_fee;type:numeric(12,2);default:0"`
	NetAmount   decimal.Decimal `gorm:"column:net_amount;type:numeric(12,2);default:0"`

	ExternalID       *string `gorm:"column:external_id;index"`
	GatewayReference *string `gorm:"column:gateway_reference;index"`
	FailureCode      *string `gorm:"column:failure_code"`
	FailureReason    *string `gorm:"column:failure_reason"`
	Description      *string `gorm:"column:description"`

	InitiatedAt time.Time  `gorm:"column:initiated_at"`
	ProcessedAt *time.Time `gorm:"column:processed_at"`
	CompletedAt *time.Time `gorm:"column:completed_at"`
	FailedAt    *time.Time `gorm:"column:failed_at"`
	ExpiresAt   *time.Time `gorm:"column:expires_at"`

	WebhookAttempts  int        `gorm:"column:webhook_attempts;default:0"`
	WebhookDelivered bool       `gorm:"column:webhook_delivered;default:false"`
	LastWebhookAt    *time.Time `gorm:"column:last_webhook_at"`

	CreatedAt time.Time `gorm:"column:created_at;default:now()"`
	UpdatedAt time.Time `gorm:"column:updated_at;default:now()"`
}

func (Payment) TableName() string {
	return "payments"
}
