package paymentmethod

import (
	"time"

	"github.com/solusipay/payment-aggregator/internal/core/datamodel/payment"
)

// PaymentMethod is a configured gateway integration. WebhookSecret is the
// HMAC key used to verify callbacks from that gateway.
type PaymentMethod struct {
	ID            int64           `gorm:"primaryKey"`
	MerchantID    int64           `gorm:"column:merchant_id;not null;index"`
	GatewayType   payment.Gateway `gorm:"column:gateway_type;not null;index"`
	DisplayName   string          `gorm:"column:display_name"`
	WebhookSecret string          `gorm:"column:webhook_secret;not null"`
	IsActive      bool            `gorm:"column:is_active;default:true"`

	CreatedAt time.Time `gorm:"column:created_at;default:now()"`
	UpdatedAt time.Time `gorm:"column:updated_at;default:now()"`
}

func (PaymentMethod) TableName() string {
	return "payment_methods"
}
