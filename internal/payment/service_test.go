package payment_test

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"

	apperrors "github.com/solusipay/payment-aggregator/internal"
	"github.com/solusipay/payment-aggregator/internal/core/datamodel/payment"
	"github.com/solusipay/payment-aggregator/internal/core/events"
	paymentPkg "github.com/solusipay/payment-aggregator/internal/payment"
)

// Mock repository for testing
type mockPaymentRepository struct {
	payments    map[string]*payment.Payment
	nextID      int64
	createError error
	getError    error
	updateError error
}

func newMockPaymentRepository() *mockPaymentRepository {
	return &mockPaymentRepository{
		payments: make(map[string]*payment.Payment),
	}
}

func (m *mockPaymentRepository) Create(p *payment.Payment) error {
	if m.createError != nil {
		return m.createError
	}
	m.nextID++
	p.ID = m.nextID
	p.CreatedAt = time.Now()
	p.UpdatedAt = time.Now()
	m.payments[p.Reference] = p
	return nil
}

func (m *mockPaymentRepository) GetByID(id int64) (*payment.Payment, error) {
	if m.getError != nil {
		return nil, m.getError
	}
	for _, p := range m.payments {
		if p.ID == id {
			return p, nil
		}
	}
	return nil, errors.New("record not found")
}

func (m *mockPaymentRepository) GetByReference(reference string) (*payment.Payment, error) {
	if m.getError != nil {
		return nil, m.getError
	}
	p, exists := m.payments[reference]
	if !exists {
		return nil, errors.New("record not found")
	}
	return p, nil
}

func (m *mockPaymentRepository) GetByExternalOrGatewayRef(ref string) (*payment.Payment, error) {
	if m.getError != nil {
		return nil, m.getError
	}
	for _, p := range m.payments {
		if p.ExternalID != nil && *p.ExternalID == ref {
			return p, nil
		}
		if p.GatewayReference != nil && *p.GatewayReference == ref {
			return p, nil
		}
	}
	return nil, errors.New("record not found")
}

func (m *mockPaymentRepository) GetByMerchantID(merchantID int64, offset, limit int) ([]*payment.Payment, error) {
	if m.getError != nil {
		return nil, m.getError
	}
	var results []*payment.Payment
	for _, p := range m.payments {
		if p.MerchantID == merchantID {
			results = append(results, p)
		}
	}
	return results, nil
}

func (m *mockPaymentRepository) Update(p *payment.Payment) error {
	if m.updateError != nil {
		return m.updateError
	}
	m.payments[p.Reference] = p
	return nil
}

// Mock merchant stats for testing
type mockMerchantStats struct {
	increments     []decimal.Decimal
	incrementError error
}

func (m *mockMerchantStats) IncrementProcessed(merchantID int64, amount decimal.Decimal) error {
	if m.incrementError != nil {
		return m.incrementError
	}
	m.increments = append(m.increments, amount)
	return nil
}

// Mock event publisher for testing
type mockEventPublisher struct {
	published    []*events.PaymentEvent
	publishError error
}

func (m *mockEventPublisher) Publish(ctx context.Context, event *events.PaymentEvent, merchantID int64) (string, error) {
	if m.publishError != nil {
		return "", m.publishError
	}
	m.published = append(m.published, event)
	return event.EventID, nil
}

func (m *mockEventPublisher) lastEventType() events.EventType {
	if len(m.published) == 0 {
		return ""
	}
	return m.published[len(m.published)-1].EventType
}

var _ = Describe("PaymentService", func() {
	var (
		service       *paymentPkg.PaymentService
		mockRepo      *mockPaymentRepository
		mockMerchants *mockMerchantStats
		mockPublisher *mockEventPublisher
		logger        *slog.Logger
		ctx           context.Context
	)

	BeforeEach(func() {
		mockRepo = newMockPaymentRepository()
		mockMerchants = &mockMerchantStats{}
		mockPublisher = &mockEventPublisher{}
		logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		ctx = context.Background()

		service = paymentPkg.NewPaymentService(mockRepo, mockMerchants, mockPublisher, logger)
	})

	Describe("CreatePayment", func() {
		Context("when the request is valid", func() {
			It("should create a PENDING payment with reference and expiry", func() {
				// Given
				req := &paymentPkg.CreatePaymentRequest{
					MerchantID: 10,
					Amount:     decimal.RequireFromString("100.50"),
					Currency:   "USD",
					Gateway:    "stripe",
				}

				// When
				result, err := service.CreatePayment(ctx, req)

				// Then
				Expect(err).ToNot(HaveOccurred())
				Expect(result).ToNot(BeNil())
				Expect(result.ID).To(BeNumerically(">", 0))
				Expect(result.Status).To(Equal(payment.StatusPending))
				Expect(result.Reference).To(HavePrefix("PAY_"))
				Expect(result.ExpiresAt).ToNot(BeNil())
				Expect(result.ExpiresAt.Sub(result.InitiatedAt)).To(Equal(30 * time.Minute))
			})

			It("should publish PAYMENT_INITIATED", func() {
				req := &paymentPkg.CreatePaymentRequest{
					MerchantID: 10,
					Amount:     decimal.RequireFromString("50.00"),
					Currency:   "NGN",
					Gateway:    "paystack",
				}

				_, err := service.CreatePayment(ctx, req)

				Expect(err).ToNot(HaveOccurred())
				Expect(mockPublisher.published).To(HaveLen(1))
				Expect(mockPublisher.lastEventType()).To(Equal(events.EventTypePaymentInitiated))
			})

			It("should still succeed when publishing fails", func() {
				mockPublisher.publishError = errors.New("broker unreachable")
				req := &paymentPkg.CreatePaymentRequest{
					MerchantID: 10,
					Amount:     decimal.RequireFromString("50.00"),
					Currency:   "USD",
					Gateway:    "stripe",
				}

				result, err := service.CreatePayment(ctx, req)

				Expect(err).ToNot(HaveOccurred())
				Expect(result).ToNot(BeNil())
			})
		})

		Context("when validation fails", func() {
			It("should reject an amount below the minimum", func() {
				req := &paymentPkg.CreatePaymentRequest{
					MerchantID: 10,
					Amount:     decimal.RequireFromString("0.001"),
					Currency:   "USD",
					Gateway:    "stripe",
				}

				result, err := service.CreatePayment(ctx, req)

				Expect(err).To(HaveOccurred())
				Expect(result).To(BeNil())
			})

			It("should reject an unknown currency", func() {
				req := &paymentPkg.CreatePaymentRequest{
					MerchantID: 10,
					Amount:     decimal.RequireFromString("10.00"),
					Currency:   "XYZ",
					Gateway:    "stripe",
				}

				result, err := service.CreatePayment(ctx, req)

				Expect(err).To(HaveOccurred())
				appErr, ok := apperrors.IsAppError(err)
				Expect(ok).To(BeTrue())
				Expect(appErr.Code).To(Equal(apperrors.ErrCodeInvalidCurrency))
				Expect(result).To(BeNil())
			})

			It("should reject an unknown gateway", func() {
				req := &paymentPkg.CreatePaymentRequest{
					MerchantID: 10,
					Amount:     decimal.RequireFromString("10.00"),
					Currency:   "USD",
					Gateway:    "wiretransfer",
				}

				result, err := service.CreatePayment(ctx, req)

				Expect(err).To(HaveOccurred())
				Expect(result).To(BeNil())
			})
		})

		Context("when repository fails", func() {
			It("should return an internal error", func() {
				mockRepo.createError = errors.New("connection refused")
				req := &paymentPkg.CreatePaymentRequest{
					MerchantID: 10,
					Amount:     decimal.RequireFromString("10.00"),
					Currency:   "USD",
					Gateway:    "stripe",
				}

				result, err := service.CreatePayment(ctx, req)

				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("failed to create payment"))
				Expect(result).To(BeNil())
			})
		})
	})

	Describe("FindForWebhook", func() {
		BeforeEach(func() {
			externalID := "pi_abc123"
			mockRepo.payments["PAY_1_aaaa"] = &payment.Payment{
				ID:         1,
				Reference:  "PAY_1_aaaa",
				MerchantID: 10,
				ExternalID: &externalID,
				Status:     payment.StatusPending,
			}
		})

		It("should resolve by our reference first", func() {
			p, err := service.FindForWebhook("PAY_1_aaaa")
			Expect(err).ToNot(HaveOccurred())
			Expect(p.ID).To(Equal(int64(1)))
		})

		It("should fall back to the gateway external id", func() {
			p, err := service.FindForWebhook("pi_abc123")
			Expect(err).ToNot(HaveOccurred())
			Expect(p.ID).To(Equal(int64(1)))
		})

		It("should fail closed for an unknown reference", func() {
			p, err := service.FindForWebhook("pi_unknown")
			Expect(err).To(HaveOccurred())
			appErr, ok := apperrors.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Code).To(Equal(apperrors.ErrCodePaymentNotFound))
			Expect(p).To(BeNil())
		})
	})

	Describe("ApplyWebhookTransition", func() {
		var p *payment.Payment

		BeforeEach(func() {
			p = &payment.Payment{
				ID:         1,
				Reference:  "PAY_1_aaaa",
				MerchantID: 10,
				Amount:     decimal.RequireFromString("100.50"),
				Currency:   payment.CurrencyUSD,
				Gateway:    payment.GatewayStripe,
				Status:     payment.StatusPending,
			}
			mockRepo.payments[p.Reference] = p
		})

		Context("when completing a pending payment", func() {
			It("should persist, update merchant totals and publish", func() {
				fee := decimal.RequireFromString("2.90")
				info := paymentPkg.TransitionInfo{ExternalID: "pi_123", GatewayFee: &fee}

				updated, err := service.ApplyWebhookTransition(ctx, p, payment.StatusCompleted, info, "corr-1")

				Expect(err).ToNot(HaveOccurred())
				Expect(updated.Status).To(Equal(payment.StatusCompleted))
				Expect(updated.NetAmount.Equal(decimal.RequireFromString("97.60"))).To(BeTrue())
				Expect(updated.WebhookAttempts).To(Equal(1))
				Expect(updated.WebhookDelivered).To(BeTrue())

				Expect(mockMerchants.increments).To(HaveLen(1))
				Expect(mockMerchants.increments[0].Equal(p.Amount)).To(BeTrue())

				Expect(mockPublisher.published).To(HaveLen(1))
				Expect(mockPublisher.lastEventType()).To(Equal(events.EventTypePaymentCompleted))
				Expect(mockPublisher.published[0].CorrelationID).To(Equal("corr-1"))
			})
		})

		Context("when a completion webhook is replayed", func() {
			It("should return a conflict and not double-apply merchant totals", func() {
				fee := decimal.RequireFromString("2.90")
				info := paymentPkg.TransitionInfo{ExternalID: "pi_123", GatewayFee: &fee}

				_, err := service.ApplyWebhookTransition(ctx, p, payment.StatusCompleted, info, "")
				Expect(err).ToNot(HaveOccurred())

				// Replay
				_, err = service.ApplyWebhookTransition(ctx, p, payment.StatusCompleted, info, "")

				Expect(err).To(HaveOccurred())
				appErr, ok := apperrors.IsAppError(err)
				Expect(ok).To(BeTrue())
				Expect(appErr.Code).To(Equal(apperrors.ErrCodeInvalidTransition))
				Expect(appErr.StatusCode).To(Equal(409))

				Expect(mockMerchants.increments).To(HaveLen(1))
				Expect(mockPublisher.published).To(HaveLen(1))
				Expect(p.WebhookAttempts).To(Equal(1), "replay must not mutate the payment")
			})
		})

		Context("when a failure webhook arrives", func() {
			It("should not touch merchant totals", func() {
				info := paymentPkg.TransitionInfo{
					FailureCode:   "card_declined",
					FailureReason: "insufficient funds",
				}

				updated, err := service.ApplyWebhookTransition(ctx, p, payment.StatusFailed, info, "")

				Expect(err).ToNot(HaveOccurred())
				Expect(updated.Status).To(Equal(payment.StatusFailed))
				Expect(mockMerchants.increments).To(BeEmpty())
				Expect(mockPublisher.lastEventType()).To(Equal(events.EventTypePaymentFailed))
			})
		})

		Context("when persistence fails", func() {
			It("should return an error and skip event publishing", func() {
				mockRepo.updateError = errors.New("connection reset")

				_, err := service.ApplyWebhookTransition(ctx, p, payment.StatusCompleted, paymentPkg.TransitionInfo{}, "")

				Expect(err).To(HaveOccurred())
				Expect(mockPublisher.published).To(BeEmpty())
			})
		})
	})

	Describe("Expire", func() {
		Context("when the payment is overdue", func() {
			It("should expire without webhook bookkeeping and without an event", func() {
				expiredAt := time.Now().UTC().Add(-time.Minute)
				p := &payment.Payment{
					ID:         1,
					Reference:  "PAY_1_aaaa",
					MerchantID: 10,
					Amount:     decimal.RequireFromString("20.00"),
					Status:     payment.StatusPending,
					ExpiresAt:  &expiredAt,
				}
				mockRepo.payments[p.Reference] = p

				updated, err := service.Expire(ctx, p.Reference)

				Expect(err).ToNot(HaveOccurred())
				Expect(updated.Status).To(Equal(payment.StatusExpired))
				Expect(updated.WebhookAttempts).To(BeZero())
				Expect(updated.WebhookDelivered).To(BeFalse())
				Expect(*updated.FailureCode).To(Equal("EXPIRED"))
				// EXPIRED has no lifecycle event type
				Expect(mockPublisher.published).To(BeEmpty())
			})
		})

		Context("when the payment has not expired yet", func() {
			It("should return a conflict", func() {
				future := time.Now().UTC().Add(time.Hour)
				p := &payment.Payment{
					ID:        1,
					Reference: "PAY_1_aaaa",
					Status:    payment.StatusPending,
					ExpiresAt: &future,
				}
				mockRepo.payments[p.Reference] = p

				_, err := service.Expire(ctx, p.Reference)

				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("has not expired yet"))
			})
		})
	})
})
