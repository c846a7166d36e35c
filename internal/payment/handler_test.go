package payment_test

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"

	"github.com/go-chi/chi"
	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"
	"github.com/shopspring/decimal"

	"github.com/solusipay/payment-aggregator/internal/core/datamodel/payment"
	paymentpkg "github.com/solusipay/payment-aggregator/internal/payment"
)

var _ = ginkgo.Describe("PaymentHandler", func() {
	var (
		handler  *paymentpkg.Handler
		mockRepo *mockPaymentRepository
		recorder *httptest.ResponseRecorder
		router   *chi.Mux
		logger   *slog.Logger
	)

	ginkgo.BeforeEach(func() {
		mockRepo = newMockPaymentRepository()
		logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

		service := paymentpkg.NewPaymentService(mockRepo, &mockMerchantStats{}, &mockEventPublisher{}, logger)
		handler = paymentpkg.NewHandler(service, logger)
		recorder = httptest.NewRecorder()

		router = chi.NewRouter()
		router.Post("/payments", handler.CreatePayment)
		router.Get("/payments", handler.ListPayments)
		router.Get("/payments/{reference}", handler.GetPayment)
	})

	ginkgo.Describe("CreatePayment", func() {
		ginkgo.Context("when the payload is valid", func() {
			ginkgo.It("should return 201 with the created payment", func() {
				body := []byte(`{"merchant_id": 10, "amount": "100.50", "currency": "USD", "gateway": "stripe"}`)
				req := httptest.NewRequest(http.MethodPost, "/payments", bytes.NewBuffer(body))
				req.Header.Set("Content-Type", "application/json")

				router.ServeHTTP(recorder, req)

				gomega.Expect(recorder.Code).To(gomega.Equal(http.StatusCreated))

				var resp paymentpkg.PaymentResponse
				err := json.Unmarshal(recorder.Body.Bytes(), &resp)
				gomega.Expect(err).ToNot(gomega.HaveOccurred())
				gomega.Expect(resp.Status).To(gomega.Equal("PENDING"))
				gomega.Expect(resp.Reference).To(gomega.HavePrefix("PAY_"))
				gomega.Expect(resp.Amount.Equal(decimal.RequireFromString("100.50"))).To(gomega.BeTrue())
			})
		})

		ginkgo.Context("when the payload is malformed JSON", func() {
			ginkgo.It("should return 400", func() {
				req := httptest.NewRequest(http.MethodPost, "/payments", bytes.NewBufferString("{not json"))

				router.ServeHTTP(recorder, req)

				gomega.Expect(recorder.Code).To(gomega.Equal(http.StatusBadRequest))
			})
		})

		ginkgo.Context("when validation fails", func() {
			ginkgo.It("should return 400 for a three decimal place amount", func() {
				body := []byte(`{"merchant_id": 10, "amount": "10.123", "currency": "USD", "gateway": "stripe"}`)
				req := httptest.NewRequest(http.MethodPost, "/payments", bytes.NewBuffer(body))

				router.ServeHTTP(recorder, req)

				gomega.Expect(recorder.Code).To(gomega.Equal(http.StatusBadRequest))
			})
		})
	})

	ginkgo.Describe("GetPayment", func() {
		ginkgo.Context("when the payment exists", func() {
			ginkgo.It("should return 200 with the payment", func() {
				mockRepo.payments["PAY_1_aaaa"] = &payment.Payment{
					ID:         1,
					Reference:  "PAY_1_aaaa",
					MerchantID: 10,
					Amount:     decimal.RequireFromString("25.00"),
					Currency:   payment.CurrencyUSD,
					Gateway:    payment.GatewayStripe,
					Status:     payment.StatusCompleted,
				}

				req := httptest.NewRequest(http.MethodGet, "/payments/PAY_1_aaaa", nil)
				router.ServeHTTP(recorder, req)

				gomega.Expect(recorder.Code).To(gomega.Equal(http.StatusOK))

				var resp paymentpkg.PaymentResponse
				err := json.Unmarshal(recorder.Body.Bytes(), &resp)
				gomega.Expect(err).ToNot(gomega.HaveOccurred())
				gomega.Expect(resp.Reference).To(gomega.Equal("PAY_1_aaaa"))
				gomega.Expect(resp.Status).To(gomega.Equal("COMPLETED"))
			})
		})

		ginkgo.Context("when the payment does not exist", func() {
			ginkgo.It("should return 404", func() {
				req := httptest.NewRequest(http.MethodGet, "/payments/PAY_missing", nil)
				router.ServeHTTP(recorder, req)

				gomega.Expect(recorder.Code).To(gomega.Equal(http.StatusNotFound))
			})
		})
	})

	ginkgo.Describe("ListPayments", func() {
		ginkgo.Context("when merchant_id is missing", func() {
			ginkgo.It("should return 400", func() {
				req := httptest.NewRequest(http.MethodGet, "/payments", nil)
				router.ServeHTTP(recorder, req)

				gomega.Expect(recorder.Code).To(gomega.Equal(http.StatusBadRequest))
			})
		})

		ginkgo.Context("when payments exist for the merchant", func() {
			ginkgo.It("should return them with a count", func() {
				mockRepo.payments["PAY_1_aaaa"] = &payment.Payment{
					ID: 1, Reference: "PAY_1_aaaa", MerchantID: 10,
					Amount: decimal.RequireFromString("10.00"),
					Status: payment.StatusPending,
				}
				mockRepo.payments["PAY_2_bbbb"] = &payment.Payment{
					ID: 2, Reference: "PAY_2_bbbb", MerchantID: 10,
					Amount: decimal.RequireFromString("20.00"),
					Status: payment.StatusCompleted,
				}

				req := httptest.NewRequest(http.MethodGet, "/payments?merchant_id=10", nil)
				router.ServeHTTP(recorder, req)

				gomega.Expect(recorder.Code).To(gomega.Equal(http.StatusOK))

				var resp struct {
					Payments []paymentpkg.PaymentResponse `json:"payments"`
					Count    int                          `json:"count"`
				}
				err := json.Unmarshal(recorder.Body.Bytes(), &resp)
				gomega.Expect(err).ToNot(gomega.HaveOccurred())
				gomega.Expect(resp.Count).To(gomega.Equal(2))
			})
		})
	})
})
