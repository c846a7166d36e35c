package payment

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi"

	errors "github.com/solusipay/payment-aggregator/internal"
	"github.com/solusipay/payment-aggregator/internal/transport"
)

type Handler struct {
	transport.BaseHandler
	PaymentService *PaymentService
	Logger         *slog.Logger
}

func NewHandler(paymentService *PaymentService, logger *slog.Logger) *Handler {
	return &Handler{
		BaseHandler:    transport.BaseHandler{Logger: logger},
		PaymentService: paymentService,
		Logger:         logger,
	}
}

// CreatePayment handles POST /api/v1/payments
func (h *Handler) CreatePayment(w http.ResponseWriter, r *http.Request) {
	var req CreatePaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Logger.Error("CreatePayment: failed to parse request body", "error", err)
		h.HandleError(w, errors.NewValidationError("invalid request body", errors.ErrCodeValidationFailed))
		return
	}

	p, err := h.PaymentService.CreatePayment(r.Context(), &req)
	if err != nil {
		h.Logger.Error("CreatePayment: service error", "error", err, "merchant_id", req.MerchantID)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusCreated, ToResponse(p))
}

// GetPayment handles GET /api/v1/payments/{reference}
func (h *Handler) GetPayment(w http.ResponseWriter, r *http.Request) {
	reference := chi.URLParam(r, "reference")
	if reference == "" {
		h.HandleError(w, errors.NewValidationError("reference is required", errors.ErrCodeValidationFailed))
		return
	}

	p, err := h.PaymentService.GetByReference(reference)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, ToResponse(p))
}

// ListPayments handles GET /api/v1/payments?merchant_id=&offset=&limit=
func (h *Handler) ListPayments(w http.ResponseWriter, r *http.Request) {
	merchantID, err := strconv.ParseInt(r.URL.Query().Get("merchant_id"), 10, 64)
	if err != nil || merchantID <= 0 {
		h.HandleError(w, errors.NewValidationError("merchant_id is required", errors.ErrCodeValidationFailed))
		return
	}
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	payments, err := h.PaymentService.ListByMerchant(merchantID, offset, limit)
	if err != nil {
		h.Logger.Error("ListPayments: service error", "error", err, "merchant_id", merchantID)
		h.HandleServiceError(w, err)
		return
	}

	responses := make([]*PaymentResponse, 0, len(payments))
	for _, p := range payments {
		responses = append(responses, ToResponse(p))
	}

	h.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"payments": responses,
		"count":    len(responses),
	})
}
