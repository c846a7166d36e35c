package webhook

import (
	"encoding/json"
	"log/slog"

	"github.com/shopspring/decimal"

	errors "github.com/solusipay/payment-aggregator/internal"
	"github.com/solusipay/payment-aggregator/internal/core/datamodel/payment"
)

// NormalizedEvent is the canonical result of decoding a gateway payload.
// Unsupported marks event types the gateway sends but we deliberately
// ignore; those are acknowledged without a state change so the gateway does
// not retry.
type NormalizedEvent struct {
	Reference     string
	Status        payment.Status
	ExternalID    string
	GatewayFee    *decimal.Decimal
	FailureCode   string
	FailureReason string
	Unsupported   bool
	RawEventType  string
}

type NormalizeFunc func(rawPayload []byte) (*NormalizedEvent, error)

// statusLookup maps free-text gateway status strings to the internal
// vocabulary, used by the generic entrypoint.
var statusLookup = map[string]payment.Status{
	"succeeded":          payment.StatusCompleted,
	"completed":          payment.StatusCompleted,
	"success":            payment.StatusCompleted,
	"successful":         payment.StatusCompleted,
	"paid":               payment.StatusCompleted,
	"failed":             payment.StatusFailed,
	"declined":           payment.StatusFailed,
	"error":              payment.StatusFailed,
	"pending":            payment.StatusPending,
	"processing":         payment.StatusProcessing,
	"in_progress":        payment.StatusProcessing,
	"cancelled":          payment.StatusCancelled,
	"canceled":           payment.StatusCancelled,
	"refunded":           payment.StatusRefunded,
	"partially_refunded": payment.StatusPartiallyRefunded,
	"disputed":           payment.StatusDisputed,
	"chargeback":         payment.StatusDisputed,
	"expired":            payment.StatusExpired,
}

// eventLookup maps well-known event names; it takes precedence over the
// bare status string when both are present.
var eventLookup = map[string]payment.Status{
	"payment.completed": payment.StatusCompleted,
	"payment.failed":    payment.StatusFailed,
	"payment.cancelled": payment.StatusCancelled,
	"payment.refunded":  payment.StatusRefunded,
	"payment.disputed":  payment.StatusDisputed,
	"charge.success":    payment.StatusCompleted,
	"charge.failed":     payment.StatusFailed,
	"charge.completed":  payment.StatusCompleted,
	"charge.refunded":   payment.StatusRefunded,
	"charge.dispute":    payment.StatusDisputed,
}

// Normalizer decodes heterogeneous gateway payloads into NormalizedEvent.
// Like the verifier it is a registry; per-gateway decoders are typed so
// missing fields surface as MissingReference/MalformedPayload instead of
// runtime surprises.
type Normalizer struct {
	registry map[payment.Gateway]NormalizeFunc
	logger   *slog.Logger
}

func NewNormalizer(logger *slog.Logger) *Normalizer {
	n := &Normalizer{logger: logger}
	n.registry = map[payment.Gateway]NormalizeFunc{
		payment.GatewayStripe:      n.normalizeStripe,
		payment.GatewayPaystack:    n.normalizePaystack,
		payment.GatewayFlutterwave: n.normalizeFlutterwave,
		payment.GatewayInternal:    n.normalizeGeneric,
	}
	return n
}

// Normalize decodes rawPayload for the gateway. Gateways without a
// dedicated decoder fall back to the generic shape.
func (n *Normalizer) Normalize(gateway payment.Gateway, rawPayload []byte) (*NormalizedEvent, error) {
	normalize, ok := n.registry[gateway]
	if !ok {
		normalize = n.normalizeGeneric
	}
	return normalize(rawPayload)
}

type stripeEvent struct {
	Type string `json:"type"`
	Data struct {
		Object struct {
			ID       string `json:"id"`
			Metadata struct {
				PaymentReference string `json:"payment_reference"`
			} `json:"metadata"`
			LastPaymentError *struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"last_payment_error"`
		} `json:"object"`
	} `json:"data"`
}

func (n *Normalizer) normalizeStripe(rawPayload []byte) (*NormalizedEvent, error) {
	var evt stripeEvent
	if err := json.Unmarshal(rawPayload, &evt); err != nil {
		return nil, errors.ErrMalformedPayload
	}

	var status payment.Status
	switch evt.Type {
	case "payment_intent.succeeded":
		status = payment.StatusCompleted
	case "payment_intent.payment_failed":
		status = payment.StatusFailed
	default:
		return &NormalizedEvent{Unsupported: true, RawEventType: evt.Type}, nil
	}

	if evt.Data.Object.Metadata.PaymentReference == "" {
		return nil, errors.ErrMissingReference
	}

	normalized := &NormalizedEvent{
		Reference:    evt.Data.Object.Metadata.PaymentReference,
		Status:       status,
		ExternalID:   evt.Data.Object.ID,
		RawEventType: evt.Type,
	}
	if status == payment.StatusFailed && evt.Data.Object.LastPaymentError != nil {
		normalized.FailureCode = evt.Data.Object.LastPaymentError.Code
		normalized.FailureReason = evt.Data.Object.LastPaymentError.Message
	}
	return normalized, nil
}

type paystackEvent struct {
	Event string `json:"event"`
	Data  struct {
		ID             json.Number `json:"id"`
		Reference      string      `json:"reference"`
		Fees           json.Number `json:"fees"`
		GatewayMessage string      `json:"gateway_response"`
	} `json:"data"`
}

func (n *Normalizer) normalizePaystack(rawPayload []byte) (*NormalizedEvent, error) {
	var evt paystackEvent
	if err := json.Unmarshal(rawPayload, &evt); err != nil {
		return nil, errors.ErrMalformedPayload
	}

	var status payment.Status
	switch evt.Event {
	case "charge.success":
		status = payment.StatusCompleted
	case "charge.failed":
		status = payment.StatusFailed
	default:
		return &NormalizedEvent{Unsupported: true, RawEventType: evt.Event}, nil
	}

	if evt.Data.Reference == "" {
		return nil, errors.ErrMissingReference
	}

	normalized := &NormalizedEvent{
		Reference:    evt.Data.Reference,
		Status:       status,
		ExternalID:   evt.Data.ID.String(),
		RawEventType: evt.Event,
	}
	// paystack reports fees in currency subunits
	if fee, err := decimal.NewFromString(evt.Data.Fees.String()); err == nil && !fee.IsZero() {
		gatewayFee := fee.Shift(-2)
		normalized.GatewayFee = &gatewayFee
	}
	if status == payment.StatusFailed && evt.Data.GatewayMessage != "" {
		normalized.FailureReason = evt.Data.GatewayMessage
	}
	return normalized, nil
}

type flutterwaveEvent struct {
	Event string `json:"event"`
	Data  struct {
		ID               json.Number     `json:"id"`
		TxRef            string          `json:"tx_ref"`
		Status           string          `json:"status"`
		AppFee           decimal.Decimal `json:"app_fee"`
		ProcessorMessage string          `json:"processor_response"`
	} `json:"data"`
}

func (n *Normalizer) normalizeFlutterwave(rawPayload []byte) (*NormalizedEvent, error) {
	var evt flutterwaveEvent
	if err := json.Unmarshal(rawPayload, &evt); err != nil {
		return nil, errors.ErrMalformedPayload
	}

	if evt.Event != "charge.completed" {
		return &NormalizedEvent{Unsupported: true, RawEventType: evt.Event}, nil
	}

	if evt.Data.TxRef == "" {
		return nil, errors.ErrMissingReference
	}

	status := payment.StatusFailed
	if evt.Data.Status == "successful" {
		status = payment.StatusCompleted
	}

	normalized := &NormalizedEvent{
		Reference:    evt.Data.TxRef,
		Status:       status,
		ExternalID:   evt.Data.ID.String(),
		RawEventType: evt.Event,
	}
	if !evt.Data.AppFee.IsZero() {
		gatewayFee := evt.Data.AppFee
		normalized.GatewayFee = &gatewayFee
	}
	if status == payment.StatusFailed && evt.Data.ProcessorMessage != "" {
		normalized.FailureReason = evt.Data.ProcessorMessage
	}
	return normalized, nil
}

type genericEvent struct {
	Event            string           `json:"event"`
	Reference        string           `json:"reference"`
	PaymentReference string           `json:"payment_reference"`
	Status           string           `json:"status"`
	ExternalID       string           `json:"external_id"`
	GatewayFee       *decimal.Decimal `json:"gateway_fee"`
	FailureCode      string           `json:"failure_code"`
	FailureReason    string           `json:"failure_reason"`
}

// normalizeGeneric handles the gateway-agnostic shape used by the
// multi-gateway entrypoint. The event name table wins over the bare status
// string; an unknown status degrades to PROCESSING with a warning rather
// than a hard failure.
func (n *Normalizer) normalizeGeneric(rawPayload []byte) (*NormalizedEvent, error) {
	var evt genericEvent
	if err := json.Unmarshal(rawPayload, &evt); err != nil {
		return nil, errors.ErrMalformedPayload
	}

	reference := evt.Reference
	if reference == "" {
		reference = evt.PaymentReference
	}
	if reference == "" {
		return nil, errors.ErrMissingReference
	}

	status, ok := eventLookup[evt.Event]
	if !ok {
		status, ok = statusLookup[evt.Status]
	}
	if !ok {
		n.logger.Warn("unknown webhook status, defaulting to PROCESSING",
			"status", evt.Status,
			"event", evt.Event,
			"reference", reference)
		status = payment.StatusProcessing
	}

	rawEventType := evt.Event
	if rawEventType == "" {
		rawEventType = evt.Status
	}

	return &NormalizedEvent{
		Reference:     reference,
		Status:        status,
		ExternalID:    evt.ExternalID,
		GatewayFee:    evt.GatewayFee,
		FailureCode:   evt.FailureCode,
		FailureReason: evt.FailureReason,
		RawEventType:  rawEventType,
	}, nil
}
