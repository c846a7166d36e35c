package merchant

import (
	"time"

	"github.com/shopspring/decimal"
)

// Merchant owns payments. The aggregate totals are updated by the payment
// service whenever one of the merchant's payments completes.
type Merchant struct {
	ID           int64  `gorm:"primaryKey"`
	BusinessName string `gorm:"column:business_name;not null"`
	Email        string `gorm:"column:email;not null;uniqueIndex"`
	APIKeyHash   string `gorm:"column:api_key_hash;not null"`
	IsActive     bool   `gorm:"column:is_active;default:true"`

	TotalProcessedAmount decimal.Decimal `gorm:"column:total_processed_amount;type:numeric(16,2);default:0"`
	TotalTransactions    int64           `gorm:"column:total_transactions;default:0"`

	CreatedAt time.Time `gorm:"column:created_at;default:now()"`
	UpdatedAt time.Time `gorm:"column:updated_at;default:now()"`
}

func (Merchant) TableName() string {
	return "merchants"
}
