package events_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/segmentio/kafka-go"

	coreevents "github.com/solusipay/payment-aggregator/internal/core/events"
	"github.com/solusipay/payment-aggregator/internal/events"
)

// mockReader hands out preloaded messages. Once drained it either blocks
// until the context is cancelled or reports cancellation immediately, so
// data-path specs can run the consumer loop synchronously.
type mockReader struct {
	mu             sync.Mutex
	msgs           []kafka.Message
	committed      []kafka.Message
	blockWhenEmpty bool
	closed         bool
}

func (r *mockReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.msgs) > 0 {
		msg := r.msgs[0]
		r.msgs = r.msgs[1:]
		r.mu.Unlock()
		return msg, nil
	}
	block := r.blockWhenEmpty
	r.mu.Unlock()

	if block {
		<-ctx.Done()
	}
	return kafka.Message{}, context.Canceled
}

func (r *mockReader) CommitMessages(ctx context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.committed = append(r.committed, msgs...)
	return nil
}

func (r *mockReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

func (r *mockReader) committedCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.committed)
}

func messageFor(event *coreevents.PaymentEvent) kafka.Message {
	value, err := json.Marshal(event)
	Expect(err).ToNot(HaveOccurred())
	return kafka.Message{Key: []byte("merchant-10"), Value: value}
}

var _ = Describe("Consumer", func() {
	var (
		reader  *mockReader
		logger  *slog.Logger
		handled []*coreevents.PaymentEvent
		handler events.HandlerFunc
	)

	BeforeEach(func() {
		reader = &mockReader{}
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
		handled = nil
		handler = func(ctx context.Context, event *coreevents.PaymentEvent) error {
			handled = append(handled, event)
			return nil
		}
	})

	Describe("dispatch", func() {
		It("should invoke the handler and commit on success", func() {
			// Given
			event := testEvent(coreevents.EventTypePaymentCompleted)
			reader.msgs = []kafka.Message{messageFor(event)}

			consumer := events.NewConsumerWithReader(reader, 3, logger)
			consumer.Register(coreevents.EventTypePaymentCompleted, handler)

			// When
			err := consumer.Start(context.Background())

			// Then
			Expect(err).ToNot(HaveOccurred())
			Expect(handled).To(HaveLen(1))
			Expect(handled[0].EventID).To(Equal(event.EventID))
			Expect(reader.committedCount()).To(Equal(1))
		})

		It("should drop and commit messages with no registered handler", func() {
			// Given
			reader.msgs = []kafka.Message{messageFor(testEvent(coreevents.EventTypePaymentDisputed))}

			consumer := events.NewConsumerWithReader(reader, 3, logger)
			consumer.Register(coreevents.EventTypePaymentCompleted, handler)

			// When
			err := consumer.Start(context.Background())

			// Then
			Expect(err).ToNot(HaveOccurred())
			Expect(handled).To(BeEmpty())
			Expect(reader.committedCount()).To(Equal(1))
		})

		It("should drop and commit undecodable messages", func() {
			// Given
			reader.msgs = []kafka.Message{{Value: []byte(`{not json`)}}

			consumer := events.NewConsumerWithReader(reader, 3, logger)
			consumer.Register(coreevents.EventTypePaymentCompleted, handler)

			// When
			err := consumer.Start(context.Background())

			// Then
			Expect(err).ToNot(HaveOccurred())
			Expect(handled).To(BeEmpty())
			Expect(reader.committedCount()).To(Equal(1))
		})

		It("should drop and commit events failing shape validation", func() {
			// Given
			event := testEvent(coreevents.EventTypePaymentCompleted)
			event.Data.Reference = ""
			reader.msgs = []kafka.Message{messageFor(event)}

			consumer := events.NewConsumerWithReader(reader, 3, logger)
			consumer.Register(coreevents.EventTypePaymentCompleted, handler)

			// When
			err := consumer.Start(context.Background())

			// Then
			Expect(err).ToNot(HaveOccurred())
			Expect(handled).To(BeEmpty())
			Expect(reader.committedCount()).To(Equal(1))
		})
	})

	Describe("redelivery", func() {
		It("should leave a failed message uncommitted below the ceiling", func() {
			// Given
			event := testEvent(coreevents.EventTypePaymentCompleted)
			reader.msgs = []kafka.Message{messageFor(event)}

			attempts := 0
			failing := func(ctx context.Context, e *coreevents.PaymentEvent) error {
				attempts++
				return errors.New("downstream unavailable")
			}

			consumer := events.NewConsumerWithReader(reader, 3, logger)
			consumer.Register(coreevents.EventTypePaymentCompleted, failing)

			// When
			err := consumer.Start(context.Background())

			// Then
			Expect(err).ToNot(HaveOccurred())
			Expect(attempts).To(Equal(1))
			Expect(reader.committedCount()).To(BeZero())
		})

		It("should commit and drop once the event hits the delivery ceiling", func() {
			// Given: the queue redelivers the same uncommitted message
			event := testEvent(coreevents.EventTypePaymentCompleted)
			msg := messageFor(event)
			reader.msgs = []kafka.Message{msg, msg}

			attempts := 0
			failing := func(ctx context.Context, e *coreevents.PaymentEvent) error {
				attempts++
				return errors.New("downstream unavailable")
			}

			consumer := events.NewConsumerWithReader(reader, 2, logger)
			consumer.Register(coreevents.EventTypePaymentCompleted, failing)

			// When
			err := consumer.Start(context.Background())

			// Then
			Expect(err).ToNot(HaveOccurred())
			Expect(attempts).To(Equal(2))
			Expect(reader.committedCount()).To(Equal(1))
		})

		It("should reset the failure count after a success", func() {
			// Given: fail once, get redelivered, succeed, then fail once more
			event := testEvent(coreevents.EventTypePaymentCompleted)
			msg := messageFor(event)
			reader.msgs = []kafka.Message{msg, msg, msg}

			attempts := 0
			flaky := func(ctx context.Context, e *coreevents.PaymentEvent) error {
				attempts++
				if attempts == 2 {
					return nil
				}
				return errors.New("downstream unavailable")
			}

			consumer := events.NewConsumerWithReader(reader, 2, logger)
			consumer.Register(coreevents.EventTypePaymentCompleted, flaky)

			// When
			err := consumer.Start(context.Background())

			// Then: the third delivery starts a fresh count, below the ceiling
			Expect(err).ToNot(HaveOccurred())
			Expect(attempts).To(Equal(3))
			Expect(reader.committedCount()).To(Equal(1))
		})
	})

	Describe("lifecycle", func() {
		It("should stop a blocked consumer", func() {
			// Given
			reader.blockWhenEmpty = true
			consumer := events.NewConsumerWithReader(reader, 3, logger)

			errCh := make(chan error, 1)
			go func() {
				errCh <- consumer.Start(context.Background())
			}()

			// When
			consumer.Stop()

			// Then
			Eventually(errCh).Should(Receive(BeNil()))
		})

		It("should tolerate repeated Stop calls", func() {
			consumer := events.NewConsumerWithReader(reader, 3, logger)

			Expect(func() {
				consumer.Stop()
				consumer.Stop()
			}).ToNot(Panic())
		})

		It("should close the underlying reader", func() {
			consumer := events.NewConsumerWithReader(reader, 3, logger)

			Expect(consumer.Close()).To(Succeed())
			Expect(reader.closed).To(BeTrue())
		})

		It("should default the redelivery ceiling", func() {
			// Given: a non-positive ceiling falls back to the default of 3
			event := testEvent(coreevents.EventTypePaymentCompleted)
			msg := messageFor(event)
			reader.msgs = []kafka.Message{msg, msg, msg}

			attempts := 0
			failing := func(ctx context.Context, e *coreevents.PaymentEvent) error {
				attempts++
				return errors.New("downstream unavailable")
			}

			consumer := events.NewConsumerWithReader(reader, 0, logger)
			consumer.Register(coreevents.EventTypePaymentCompleted, failing)

			// When
			err := consumer.Start(context.Background())

			// Then
			Expect(err).ToNot(HaveOccurred())
			Expect(attempts).To(Equal(3))
			Expect(reader.committedCount()).To(Equal(1))
		})
	})
})

var _ = Describe("EventTypeForStatus", func() {
	It("should have no outbound event for EXPIRED and PARTIALLY_REFUNDED", func() {
		_, ok := coreevents.EventTypeForStatus("EXPIRED")
		Expect(ok).To(BeFalse())

		_, ok = coreevents.EventTypeForStatus("PARTIALLY_REFUNDED")
		Expect(ok).To(BeFalse())
	})

	It("should map every other lifecycle status", func() {
		eventType, ok := coreevents.EventTypeForStatus("COMPLETED")
		Expect(ok).To(BeTrue())
		Expect(eventType).To(Equal(coreevents.EventTypePaymentCompleted))
	})
})
