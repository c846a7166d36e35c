package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/solusipay/payment-aggregator/internal"
	coreevents "github.com/solusipay/payment-aggregator/internal/core/events"
	"github.com/solusipay/payment-aggregator/internal/metrics"
)

// DisabledMessageID is returned by every publish when no queue is
// configured. Payment processing never fails because the queue is absent.
const DisabledMessageID = "queue-disabled"

const (
	maxPublishAttempts = 3
	defaultBackoff     = time.Second
	maxBatchSize       = 10
)

// Writer is the subset of the kafka writer the publisher needs; it keeps
// the publisher testable without a broker.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher delivers payment lifecycle events to the queue with
// at-least-once semantics. The message key is derived from the merchant id
// so the transport preserves per-merchant ordering; the event id rides in a
// header as the consumer-side dedup key.
type Publisher struct {
	writer  Writer
	backoff time.Duration
	logger  *slog.Logger
}

// NewPublisher builds a kafka-backed publisher, or a disabled one when no
// brokers are configured.
func NewPublisher(cfg internal.QueueConfig, logger *slog.Logger) *Publisher {
	if !cfg.Enabled() {
		logger.Warn("queue brokers not configured, event publishing disabled")
		return &Publisher{backoff: defaultBackoff, logger: logger}
	}

	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.EventsTopic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
	}
	return &Publisher{writer: w, backoff: defaultBackoff, logger: logger}
}

// NewPublisherWithWriter injects a writer, used by tests. A zero backoff
// falls back to the production default.
func NewPublisherWithWriter(w Writer, backoff time.Duration, logger *slog.Logger) *Publisher {
	if backoff <= 0 {
		backoff = defaultBackoff
	}
	return &Publisher{writer: w, backoff: backoff, logger: logger}
}

func (p *Publisher) Enabled() bool {
	return p.writer != nil
}

// Publish sends one event, retrying with exponential backoff before
// failing loudly. Whether an exhausted publish is fatal is the caller's
// decision; the payment service treats it as log-only.
func (p *Publisher) Publish(ctx context.Context, event *coreevents.PaymentEvent, merchantID int64) (string, error) {
	if !p.Enabled() {
		p.logger.Info("queue disabled, skipping event publish",
			"event_type", event.EventType,
			"event_id", event.EventID)
		metrics.EventsPublished.WithLabelValues(string(event.EventType), "disabled").Inc()
		return DisabledMessageID, nil
	}

	msg, err := p.buildMessage(event, merchantID)
	if err != nil {
		return "", err
	}

	if err := p.writeWithRetry(ctx, event, msg); err != nil {
		metrics.EventsPublished.WithLabelValues(string(event.EventType), "error").Inc()
		return "", err
	}

	metrics.EventsPublished.WithLabelValues(string(event.EventType), "success").Inc()
	return event.EventID, nil
}

// PublishBatch sends events in chunks of at most ten. When a chunk fails,
// only its messages are retried, individually, so one poison message
// cannot sink its neighbours.
func (p *Publisher) PublishBatch(ctx context.Context, events []*coreevents.PaymentEvent, merchantID int64) ([]string, error) {
	if !p.Enabled() {
		p.logger.Info("queue disabled, skipping batch publish", "count", len(events))
		ids := make([]string, len(events))
		for i := range ids {
			ids[i] = DisabledMessageID
		}
		return ids, nil
	}

	var ids []string
	var failed []string

	for start := 0; start < len(events); start += maxBatchSize {
		end := start + maxBatchSize
		if end > len(events) {
			end = len(events)
		}
		chunk := events[start:end]

		msgs := make([]kafka.Message, 0, len(chunk))
		for _, event := range chunk {
			msg, err := p.buildMessage(event, merchantID)
			if err != nil {
				return ids, err
			}
			msgs = append(msgs, msg)
		}

		if err := p.writer.WriteMessages(ctx, msgs...); err == nil {
			for _, event := range chunk {
				metrics.EventsPublished.WithLabelValues(string(event.EventType), "success").Inc()
				ids = append(ids, event.EventID)
			}
			continue
		}

		p.logger.Warn("batch publish failed, retrying messages individually",
			"chunk_size", len(chunk))
		for i, event := range chunk {
			if err := p.writeWithRetry(ctx, event, msgs[i]); err != nil {
				metrics.EventsPublished.WithLabelValues(string(event.EventType), "error").Inc()
				failed = append(failed, event.EventID)
				continue
			}
			metrics.EventsPublished.WithLabelValues(string(event.EventType), "success").Inc()
			ids = append(ids, event.EventID)
		}
	}

	if len(failed) > 0 {
		return ids, fmt.Errorf("failed to publish %d of %d events", len(failed), len(events))
	}
	return ids, nil
}

func (p *Publisher) buildMessage(event *coreevents.PaymentEvent, merchantID int64) (kafka.Message, error) {
	value, err := json.Marshal(event)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("marshal event %s: %w", event.EventID, err)
	}

	return kafka.Message{
		Key:   []byte(fmt.Sprintf("merchant-%d", merchantID)),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event-id", Value: []byte(event.EventID)},
			{Key: "event-type", Value: []byte(event.EventType)},
			{Key: "merchant-id", Value: []byte(strconv.FormatInt(merchantID, 10))},
			{Key: "payment-id", Value: []byte(strconv.FormatInt(event.Data.PaymentID, 10))},
			{Key: "timestamp", Value: []byte(event.Timestamp.Format(time.RFC3339))},
		},
	}, nil
}

func (p *Publisher) writeWithRetry(ctx context.Context, event *coreevents.PaymentEvent, msg kafka.Message) error {
	backoff := p.backoff
	var lastErr error

	for attempt := 1; attempt <= maxPublishAttempts; attempt++ {
		lastErr = p.writer.WriteMessages(ctx, msg)
		if lastErr == nil {
			if attempt > 1 {
				p.logger.Info("event published after retry",
					"event_id", event.EventID,
					"attempt", attempt)
			}
			return nil
		}

		p.logger.Warn("event publish attempt failed",
			"event_id", event.EventID,
			"event_type", event.EventType,
			"attempt", attempt,
			"error", lastErr)

		if attempt == maxPublishAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}

	return fmt.Errorf("publish event %s after %d attempts: %w", event.EventID, maxPublishAttempts, lastErr)
}

func (p *Publisher) Close() error {
	if p.writer == nil {
		return nil
	}
	return p.writer.Close()
}
