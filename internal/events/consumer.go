package events

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"

	"github.com/segmentio/kafka-go"

	"github.com/solusipay/payment-aggregator/internal"
	coreevents "github.com/solusipay/payment-aggregator/internal/core/events"
	"github.com/solusipay/payment-aggregator/internal/metrics"
)

const defaultMaxRedeliver = 3

// Reader is the subset of the kafka reader the consumer needs.
type Reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// HandlerFunc processes one lifecycle event. A nil return commits the
// message; an error leaves it uncommitted for redelivery.
type HandlerFunc func(ctx context.Context, event *coreevents.PaymentEvent) error

// Consumer pulls payment lifecycle events off the queue and dispatches
// them by event type. Commits are issued only after the handler succeeds,
// so a crash mid-handle redelivers rather than loses the event. Handlers
// must therefore be idempotent; the event id is their dedup key.
type Consumer struct {
	reader       Reader
	maxRedeliver int
	logger       *slog.Logger

	mu       sync.Mutex
	handlers map[coreevents.EventType]HandlerFunc
	failures map[string]int

	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewConsumer builds a kafka-backed consumer from the queue config. The
// caller should not start it when the queue is disabled.
func NewConsumer(cfg internal.QueueConfig, logger *slog.Logger) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers: cfg.Brokers,
		Topic:   cfg.EventsTopic,
		GroupID: cfg.ConsumerGroup,
		MaxWait: cfg.FetchWait,
	})
	return NewConsumerWithReader(r, cfg.MaxRedeliver, logger)
}

// NewConsumerWithReader injects a reader, used by tests.
func NewConsumerWithReader(r Reader, maxRedeliver int, logger *slog.Logger) *Consumer {
	if maxRedeliver <= 0 {
		maxRedeliver = defaultMaxRedeliver
	}
	return &Consumer{
		reader:       r,
		maxRedeliver: maxRedeliver,
		logger:       logger,
		handlers:     make(map[coreevents.EventType]HandlerFunc),
		failures:     make(map[string]int),
		stopCh:       make(chan struct{}),
	}
}

// Register binds a handler to an event type, replacing any previous one.
func (c *Consumer) Register(eventType coreevents.EventType, h HandlerFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[eventType] = h
}

// Start runs the fetch loop until the context is cancelled or Stop is
// called. It blocks; run it in its own goroutine when needed.
func (c *Consumer) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		select {
		case <-c.stopCh:
			cancel()
		case <-runCtx.Done():
		}
	}()

	c.logger.Info("event consumer started", "max_redeliver", c.maxRedeliver)

	for {
		msg, err := c.reader.FetchMessage(runCtx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				c.logger.Info("event consumer stopping")
				return nil
			}
			c.logger.Error("fetch message failed", "error", err)
			return err
		}

		c.processMessage(runCtx, msg)
	}
}

// Stop shuts the consumer down. It is idempotent and safe to call from
// any goroutine, including before Start.
func (c *Consumer) Stop() {
	c.stopOnce.Do(func() {
		close(c.stopCh)
	})
}

func (c *Consumer) Close() error {
	c.Stop()
	return c.reader.Close()
}

func (c *Consumer) processMessage(ctx context.Context, msg kafka.Message) {
	var event coreevents.PaymentEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		c.logger.Error("dropping undecodable event message",
			"offset", msg.Offset,
			"error", err)
		metrics.EventsConsumed.WithLabelValues("unknown", "malformed").Inc()
		c.commit(ctx, msg)
		return
	}

	if err := validateEvent(&event); err != nil {
		c.logger.Error("dropping malformed event",
			"event_id", event.EventID,
			"event_type", event.EventType,
			"error", err)
		metrics.EventsConsumed.WithLabelValues(string(event.EventType), "malformed").Inc()
		c.commit(ctx, msg)
		return
	}

	c.mu.Lock()
	handler, ok := c.handlers[event.EventType]
	c.mu.Unlock()
	if !ok {
		c.logger.Warn("no handler registered for event type, dropping",
			"event_type", event.EventType,
			"event_id", event.EventID)
		metrics.EventsConsumed.WithLabelValues(string(event.EventType), "unhandled").Inc()
		c.commit(ctx, msg)
		return
	}

	if err := handler(ctx, &event); err != nil {
		c.recordFailure(ctx, msg, &event, err)
		return
	}

	c.clearFailures(event.EventID)
	metrics.EventsConsumed.WithLabelValues(string(event.EventType), "success").Inc()
	c.commit(ctx, msg)
}

// recordFailure leaves the message uncommitted so the queue redelivers it,
// until the failure count for its event id reaches the ceiling. At the
// ceiling the event is dropped with a loud log instead of poisoning the
// partition forever.
func (c *Consumer) recordFailure(ctx context.Context, msg kafka.Message, event *coreevents.PaymentEvent, cause error) {
	c.mu.Lock()
	c.failures[event.EventID]++
	count := c.failures[event.EventID]
	c.mu.Unlock()

	if count >= c.maxRedeliver {
		c.logger.Error("event failed max deliveries, dropping",
			"event_id", event.EventID,
			"event_type", event.EventType,
			"payment_reference", event.Data.Reference,
			"deliveries", count,
			"error", cause)
		metrics.EventsConsumed.WithLabelValues(string(event.EventType), "dead_letter").Inc()
		c.clearFailures(event.EventID)
		c.commit(ctx, msg)
		return
	}

	c.logger.Warn("event handler failed, leaving for redelivery",
		"event_id", event.EventID,
		"event_type", event.EventType,
		"delivery", count,
		"error", cause)
	metrics.EventsConsumed.WithLabelValues(string(event.EventType), "retry").Inc()
}

func (c *Consumer) clearFailures(eventID string) {
	c.mu.Lock()
	delete(c.failures, eventID)
	c.mu.Unlock()
}

func (c *Consumer) commit(ctx context.Context, msg kafka.Message) {
	if err := c.reader.CommitMessages(ctx, msg); err != nil {
		c.logger.Error("commit message failed", "offset", msg.Offset, "error", err)
	}
}

func validateEvent(event *coreevents.PaymentEvent) error {
	if event.EventID == "" {
		return errors.New("missing event_id")
	}
	if event.EventType == "" {
		return errors.New("missing event_type")
	}
	if event.Data.PaymentID <= 0 {
		return errors.New("missing data.payment_id")
	}
	if event.Data.Reference == "" {
		return errors.New("missing data.reference")
	}
	if event.Data.MerchantID <= 0 {
		return errors.New("missing data.merchant_id")
	}
	return nil
}
