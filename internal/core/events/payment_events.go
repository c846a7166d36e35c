package events

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/solusipay/payment-aggregator/internal/core/datamodel/payment"
)

type EventType string

const (
	EventTypePaymentInitiated  EventType = "PAYMENT_INITIATED"
	EventTypePaymentProcessing EventType = "PAYMENT_PROCESSING"
	EventTypePaymentCompleted  EventType = "PAYMENT_COMPLETED"
	EventTypePaymentFailed     EventType = "PAYMENT_FAILED"
	EventTypePaymentCancelled  EventType = "PAYMENT_CANCELLED"
	EventTypePaymentRefunded   EventType = "PAYMENT_REFUNDED"
	EventTypePaymentDisputed   EventType = "PAYMENT_DISPUTED"
)

// EventTypeForStatus maps a payment status to the lifecycle event published
// when a payment transitions into it. Statuses with no outbound event
// (PARTIALLY_REFUNDED, EXPIRED) return false.
func EventTypeForStatus(status payment.Status) (EventType, bool) {
	switch status {
	case payment.StatusPending:
		return EventTypePaymentInitiated, true
	case payment.StatusProcessing:
		return EventTypePaymentProcessing, true
	case payment.StatusCompleted:
		return EventTypePaymentCompleted, true
	case payment.StatusFailed:
		return EventTypePaymentFailed, true
	case payment.StatusCancelled:
		return EventTypePaymentCancelled, true
	case payment.StatusRefunded:
		return EventTypePaymentRefunded, true
	case payment.StatusDisputed:
		return EventTypePaymentDisputed, true
	}
	return "", false
}

// PaymentEvent is the message published to the queue for every lifecycle
// transition. It is transient: created at publish time, consumed and
// discarded by the event consumer, never updated.
type PaymentEvent struct {
	EventID       string           `json:"event_id"`
	EventType     EventType        `json:"event_type"`
	Timestamp     time.Time        `json:"timestamp"`
	CorrelationID string           `json:"correlation_id,omitempty"`
	RetryCount    int              `json:"retry_count"`
	Data          PaymentEventData `json:"data"`
}

// PaymentEventData mirrors the relevant payment fields at time of publish.
type PaymentEventData struct {
	PaymentID     int64           `json:"payment_id"`
	Reference     string          `json:"reference"`
	MerchantID    int64           `json:"merchant_id"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	Gateway       string          `json:"gateway"`
	Status        string          `json:"status"`
	NetAmount     decimal.Decimal `json:"net_amount"`
	ExternalID    string          `json:"external_id,omitempty"`
	FailureCode   string          `json:"failure_code,omitempty"`
	FailureReason string          `json:"failure_reason,omitempty"`
}

// NewPaymentEvent builds an event with a fresh unique event id. The id is
// the transport-level dedup key, so every publish attempt of the same
// logical change still carries one id.
func NewPaymentEvent(eventType EventType, data PaymentEventData, correlationID string) *PaymentEvent {
	return &PaymentEvent{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		Timestamp:     time.Now().UTC(),
		CorrelationID: correlationID,
		Data:          data,
	}
}

// FromPayment snapshots the fields the event payload mirrors.
func FromPayment(p *payment.Payment) PaymentEventData {
	data := PaymentEventData{
		PaymentID:  p.ID,
		Reference:  p.Reference,
		MerchantID: p.MerchantID,
		Amount:     p.Amount,
		Currency:   string(p.Currency),
		Gateway:    string(p.Gateway),
		Status:     string(p.Status),
		NetAmount:  p.NetAmount,
	}
	if p.ExternalID != nil {
		data.ExternalID = *p.ExternalID
	}
	if p.FailureCode != nil {
		data.FailureCode = *p.FailureCode
	}
	if p.FailureReason != nil {
		data.FailureReason = *p.FailureReason
	}
	return data
}
