package webhook

import (
	"context"
	"fmt"
	"log/slog"

	errors "github.com/solusipay/payment-aggregator/internal"
	"github.com/solusipay/payment-aggregator/internal/core/datamodel/payment"
	"github.com/solusipay/payment-aggregator/internal/core/datamodel/paymentmethod"
	"github.com/solusipay/payment-aggregator/internal/metrics"
	paymentpkg "github.com/solusipay/payment-aggregator/internal/payment"
)

// PaymentMethodAPI resolves the active integration (and webhook secret) for
// a gateway.
type PaymentMethodAPI interface {
	FindActiveByGatewayType(gateway payment.Gateway) (*paymentmethod.PaymentMethod, error)
}

// PaymentsAPI is the slice of the payment service the orchestrator needs.
type PaymentsAPI interface {
	FindForWebhook(ref string) (*payment.Payment, error)
	GetByReference(reference string) (*payment.Payment, error)
	ApplyWebhookTransition(ctx context.Context, p *payment.Payment, target payment.Status, info paymentpkg.TransitionInfo, correlationID string) (*payment.Payment, error)
}

// Result is the orchestrator's answer to any webhook, mirrored directly
// into the HTTP response body.
type Result struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	Reference string `json:"reference,omitempty"`
	Status    string `json:"status,omitempty"`
}

// Service ties verification, normalization, state transition, persistence
// and event emission into one flow.
type Service struct {
	verifier   *Verifier
	normalizer *Normalizer
	methods    PaymentMethodAPI
	payments   PaymentsAPI
	logger     *slog.Logger
}

func NewService(verifier *Verifier, normalizer *Normalizer, methods PaymentMethodAPI, payments PaymentsAPI, logger *slog.Logger) *Service {
	return &Service{
		verifier:   verifier,
		normalizer: normalizer,
		methods:    methods,
		payments:   payments,
		logger:     logger,
	}
}

// ProcessGatewayWebhook handles a gateway-specific endpoint. Failures are
// returned as AppErrors so the transport maps them to 401/404/409/400.
func (s *Service) ProcessGatewayWebhook(ctx context.Context, gateway payment.Gateway, rawBody []byte, signature string) (*Result, error) {
	return s.processWithTimestamp(ctx, gateway, rawBody, signature, "")
}

// ProcessWebhook is the generic multi-gateway entrypoint. A missing payment
// is reported as {success:false} instead of an error: gateways retry on
// HTTP failures and an unknown reference will never start resolving.
func (s *Service) ProcessWebhook(ctx context.Context, gateway payment.Gateway, rawBody []byte, signature, timestamp string) (*Result, error) {
	result, err := s.processWithTimestamp(ctx, gateway, rawBody, signature, timestamp)
	if err != nil {
		if appErr, ok := errors.IsAppError(err); ok && appErr.Type == errors.ErrorTypeNotFound {
			s.logger.Warn("webhook for unknown payment acknowledged without processing",
				"gateway", gateway)
			return &Result{Success: false, Message: appErr.Message}, nil
		}
		return nil, err
	}
	return result, nil
}

func (s *Service) processWithTimestamp(ctx context.Context, gateway payment.Gateway, rawBody []byte, signature, timestamp string) (*Result, error) {
	method, err := s.methods.FindActiveByGatewayType(gateway)
	if err != nil {
		// A lookup failure that is not a missing record (a DB outage, say)
		// must surface as 500 so the gateway retries later.
		if appErr, ok := errors.IsAppError(err); ok && appErr.Type != errors.ErrorTypeNotFound {
			metrics.WebhooksProcessed.WithLabelValues(string(gateway), "error").Inc()
			return nil, appErr
		}
		metrics.WebhooksProcessed.WithLabelValues(string(gateway), "not_found").Inc()
		return nil, errors.ErrPaymentMethodNotFound
	}

	if !s.verifier.VerifyWithTimestamp(gateway, rawBody, signature, timestamp, method.WebhookSecret) {
		s.logger.Warn("webhook signature verification failed", "gateway", gateway)
		metrics.WebhooksProcessed.WithLabelValues(string(gateway), "invalid_signature").Inc()
		return nil, errors.ErrInvalidSignature
	}

	normalized, err := s.normalizer.Normalize(gateway, rawBody)
	if err != nil {
		metrics.WebhooksProcessed.WithLabelValues(string(gateway), "bad_request").Inc()
		return nil, err
	}

	if normalized.Unsupported {
		s.logger.Info("ignoring unsupported webhook event",
			"gateway", gateway,
			"event_type", normalized.RawEventType)
		metrics.WebhooksProcessed.WithLabelValues(string(gateway), "unsupported_event").Inc()
		return &Result{
			Success: true,
			Message: fmt.Sprintf("unsupported event type %q ignored", normalized.RawEventType),
		}, nil
	}

	p, err := s.payments.FindForWebhook(normalized.Reference)
	if err != nil {
		s.logger.Warn("webhook references unknown payment",
			"gateway", gateway,
			"reference", normalized.Reference)
		metrics.WebhooksProcessed.WithLabelValues(string(gateway), "not_found").Inc()
		return nil, err
	}

	info := paymentpkg.TransitionInfo{
		ExternalID:       normalized.ExternalID,
		GatewayReference: normalized.ExternalID,
		GatewayFee:       normalized.GatewayFee,
		FailureCode:      normalized.FailureCode,
		FailureReason:    normalized.FailureReason,
	}

	correlationID := errors.CorrelationIDFromContext(ctx)
	updated, err := s.payments.ApplyWebhookTransition(ctx, p, normalized.Status, info, correlationID)
	if err != nil {
		if appErr, ok := errors.IsAppError(err); ok && appErr.Code == errors.ErrCodeInvalidTransition {
			metrics.WebhooksProcessed.WithLabelValues(string(gateway), "invalid_transition").Inc()
		}
		return nil, err
	}

	metrics.WebhooksProcessed.WithLabelValues(string(gateway), "success").Inc()
	return &Result{
		Success:   true,
		Message:   "webhook processed",
		Reference: updated.Reference,
		Status:    string(updated.Status),
	}, nil
}

// SimulateWebhook drives a payment through the same transition, persist and
// publish path without a gateway callback, for test environments. It is
// restricted to pending payments so it can never rewrite history on a live
// one.
func (s *Service) SimulateWebhook(ctx context.Context, reference string, target payment.Status) (*Result, error) {
	if target == "" {
		target = payment.StatusCompleted
	}

	p, err := s.payments.GetByReference(reference)
	if err != nil {
		return nil, err
	}

	if p.Status != payment.StatusPending {
		return nil, errors.ErrSimulationNotPending
	}

	info := paymentpkg.TransitionInfo{}
	if target == payment.StatusFailed {
		info.FailureCode = "SIMULATED"
		info.FailureReason = "simulated failure"
	}

	updated, err := s.payments.ApplyWebhookTransition(ctx, p, target, info, errors.CorrelationIDFromContext(ctx))
	if err != nil {
		return nil, err
	}

	s.logger.Info("simulated webhook applied",
		"reference", updated.Reference,
		"status", updated.Status)

	return &Result{
		Success:   true,
		Message:   "simulated webhook processed",
		Reference: updated.Reference,
		Status:    string(updated.Status),
	}, nil
}
