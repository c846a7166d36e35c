package payment

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	errors "github.com/solusipay/payment-aggregator/internal"
	"github.com/solusipay/payment-aggregator/internal/core/datamodel/payment"
	"github.com/solusipay/payment-aggregator/internal/core/events"
)

// RepositoryAPI is the persistence collaborator for payments.
type RepositoryAPI interface {
	Create(p *payment.Payment) error
	GetByID(id int64) (*payment.Payment, error)
	GetByReference(reference string) (*payment.Payment, error)
	GetByExternalOrGatewayRef(ref string) (*payment.Payment, error)
	GetByMerchantID(merchantID int64, offset, limit int) ([]*payment.Payment, error)
	Update(p *payment.Payment) error
}

// MerchantStatsAPI updates merchant aggregates when a payment completes.
type MerchantStatsAPI interface {
	IncrementProcessed(merchantID int64, amount decimal.Decimal) error
}

// EventPublisherAPI publishes lifecycle events to the queue. The returned
// string is the transport message id (or a sentinel when the queue is
// disabled).
type EventPublisherAPI interface {
	Publish(ctx context.Context, event *events.PaymentEvent, merchantID int64) (string, error)
}

const defaultExpiry = 30 * time.Minute

// PaymentService owns payment creation and status transitions. It is the
// only code path that mutates a payment's status.
type PaymentService struct {
	repository RepositoryAPI
	merchants  MerchantStatsAPI
	publisher  EventPublisherAPI
	logger     *slog.Logger
}

func NewPaymentService(repository RepositoryAPI, merchants MerchantStatsAPI, publisher EventPublisherAPI, logger *slog.Logger) *PaymentService {
	return &PaymentService{
		repository: repository,
		merchants:  merchants,
		publisher:  publisher,
		logger:     logger,
	}
}

// CreatePayment initializes a PENDING payment with a generated reference and
// a 30 minute expiry, then publishes PAYMENT_INITIATED.
func (s *PaymentService) CreatePayment(ctx context.Context, req *CreatePaymentRequest) (*payment.Payment, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	expiresAt := now.Add(defaultExpiry)
	p := &payment.Payment{
		Reference:       GenerateReference(),
		MerchantID:      req.MerchantID,
		PaymentMethodID: req.PaymentMethodID,
		ParentPaymentID: req.ParentPaymentID,
		Amount:          req.Amount,
		Currency:        payment.Currency(req.Currency),
		Gateway:         payment.Gateway(req.Gateway),
		Status:          payment.StatusPending,
		InitiatedAt:     now,
		ExpiresAt:       &expiresAt,
	}
	if req.Description != "" {
		description := req.Description
		p.Description = &description
	}

	if err := s.repository.Create(p); err != nil {
		s.logger.Error("failed to create payment", "error", err, "merchant_id", req.MerchantID)
		return nil, errors.NewInternalError("failed to create payment", err)
	}

	s.logger.Info("payment initialized",
		"payment_id", p.ID,
		"reference", p.Reference,
		"merchant_id", p.MerchantID,
		"amount", p.Amount,
		"gateway", p.Gateway)

	s.publishLifecycleEvent(ctx, p, events.EventTypePaymentInitiated, "")

	return p, nil
}

// GetByReference returns the payment for a merchant-facing reference.
func (s *PaymentService) GetByReference(reference string) (*payment.Payment, error) {
	p, err := s.repository.GetByReference(reference)
	if err != nil {
		return nil, errors.ErrPaymentNotFound
	}
	return p, nil
}

// FindForWebhook resolves a payment the way webhooks identify one: by our
// reference first, then by the gateway-assigned external/gateway reference.
// A webhook that cannot resolve a payment fails closed, it never creates one.
func (s *PaymentService) FindForWebhook(ref string) (*payment.Payment, error) {
	if p, err := s.repository.GetByReference(ref); err == nil {
		return p, nil
	}
	p, err := s.repository.GetByExternalOrGatewayRef(ref)
	if err != nil {
		return nil, errors.ErrPaymentNotFound
	}
	return p, nil
}

// ListByMerchant pages through a merchant's payments, newest first.
func (s *PaymentService) ListByMerchant(merchantID int64, offset, limit int) ([]*payment.Payment, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.repository.GetByMerchantID(merchantID, offset, limit)
}

// ApplyWebhookTransition moves a payment to target and records the webhook
// bookkeeping fields, persists the result, updates merchant aggregates on
// completion and publishes the matching lifecycle event. An illegal
// transition returns a conflict without mutating or persisting anything.
func (s *PaymentService) ApplyWebhookTransition(ctx context.Context, p *payment.Payment, target payment.Status, info TransitionInfo, correlationID string) (*payment.Payment, error) {
	return s.transition(ctx, p, target, info, correlationID, true)
}

func (s *PaymentService) transition(ctx context.Context, p *payment.Payment, target payment.Status, info TransitionInfo, correlationID string, webhookDriven bool) (*payment.Payment, error) {
	now := time.Now().UTC()
	previous := p.Status

	if err := ApplyTransition(p, target, info, now); err != nil {
		s.logger.Warn("rejected illegal status transition",
			"reference", p.Reference,
			"from", previous,
			"to", target)
		return nil, err
	}

	if webhookDriven {
		p.WebhookAttempts++
		p.WebhookDelivered = true
		lastWebhookAt := now
		p.LastWebhookAt = &lastWebhookAt
	}

	if err := s.repository.Update(p); err != nil {
		s.logger.Error("failed to persist status transition",
			"error", err,
			"reference", p.Reference,
			"from", previous,
			"to", target)
		return nil, errors.NewInternalError("failed to persist payment update", err)
	}

	s.logger.Info("payment status updated",
		"reference", p.Reference,
		"from", previous,
		"to", target,
		"webhook_attempts", p.WebhookAttempts)

	if target == payment.StatusCompleted {
		if err := s.merchants.IncrementProcessed(p.MerchantID, p.Amount); err != nil {
			s.logger.Error("failed to update merchant statistics",
				"error", err,
				"merchant_id", p.MerchantID,
				"reference", p.Reference)
		}
	}

	if eventType, ok := events.EventTypeForStatus(target); ok {
		s.publishLifecycleEvent(ctx, p, eventType, correlationID)
	}

	return p, nil
}

// publishLifecycleEvent is best effort: a queue failure is logged and never
// rolls back the persisted state change.
func (s *PaymentService) publishLifecycleEvent(ctx context.Context, p *payment.Payment, eventType events.EventType, correlationID string) {
	event := events.NewPaymentEvent(eventType, events.FromPayment(p), correlationID)
	messageID, err := s.publisher.Publish(ctx, event, p.MerchantID)
	if err != nil {
		s.logger.Error("failed to publish lifecycle event",
			"error", err,
			"event_type", eventType,
			"reference", p.Reference)
		return
	}
	s.logger.Info("published lifecycle event",
		"event_type", eventType,
		"event_id", event.EventID,
		"message_id", messageID,
		"reference", p.Reference)
}

// Expire marks an overdue pending payment as EXPIRED.
func (s *PaymentService) Expire(ctx context.Context, reference string) (*payment.Payment, error) {
	p, err := s.GetByReference(reference)
	if err != nil {
		return nil, err
	}
	if p.ExpiresAt == nil || p.ExpiresAt.After(time.Now().UTC()) {
		return nil, errors.NewConflictError(
			fmt.Sprintf("payment %s has not expired yet", reference),
			errors.ErrCodeInvalidTransition,
		)
	}
	return s.transition(ctx, p, payment.StatusExpired, TransitionInfo{
		FailureCode:   "EXPIRED",
		FailureReason: "payment window elapsed before gateway confirmation",
	}, "", false)
}
