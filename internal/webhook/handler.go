package webhook

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"

	errors "github.com/solusipay/payment-aggregator/internal"
	"github.com/solusipay/payment-aggregator/internal/core/datamodel/payment"
	"github.com/solusipay/payment-aggregator/internal/transport"
)

const maxWebhookBody = 1 << 20 // gateways send small payloads; cap reads at 1MB

// Gateway-specific signature headers.
const (
	headerStripeSignature      = "Stripe-Signature"
	headerPaystackSignature    = "X-Paystack-Signature"
	headerFlutterwaveSignature = "Verif-Hash"
	headerGenericSignature     = "X-Signature"
	headerGenericTimestamp     = "X-Timestamp"
)

type Handler struct {
	*transport.BaseHandler
	service *Service
	logger  *slog.Logger
}

func NewHandler(baseHandler *transport.BaseHandler, service *Service, logger *slog.Logger) *Handler {
	return &Handler{
		BaseHandler: baseHandler,
		service:     service,
		logger:      logger,
	}
}

// HandleStripe handles POST /webhooks/stripe
func (h *Handler) HandleStripe(w http.ResponseWriter, r *http.Request) {
	h.handleGatewayWebhook(w, r, payment.GatewayStripe, headerStripeSignature)
}

// HandlePaystack handles POST /webhooks/paystack
func (h *Handler) HandlePaystack(w http.ResponseWriter, r *http.Request) {
	h.handleGatewayWebhook(w, r, payment.GatewayPaystack, headerPaystackSignature)
}

// HandleFlutterwave handles POST /webhooks/flutterwave
func (h *Handler) HandleFlutterwave(w http.ResponseWriter, r *http.Request) {
	h.handleGatewayWebhook(w, r, payment.GatewayFlutterwave, headerFlutterwaveSignature)
}

func (h *Handler) handleGatewayWebhook(w http.ResponseWriter, r *http.Request, gateway payment.Gateway, signatureHeader string) {
	rawBody, ok := h.readBody(w, r)
	if !ok {
		return
	}

	result, err := h.service.ProcessGatewayWebhook(r.Context(), gateway, rawBody, r.Header.Get(signatureHeader))
	if err != nil {
		h.logger.Error("webhook processing failed", "gateway", gateway, "error", err)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, result)
}

// HandleGeneric handles POST /webhooks/{gateway} for gateways without a
// dedicated endpoint, reading the x-signature/x-timestamp header pair.
func (h *Handler) HandleGeneric(w http.ResponseWriter, r *http.Request) {
	gateway := payment.Gateway(chi.URLParam(r, "gateway"))
	if !gateway.Valid() {
		h.HandleError(w, errors.NewValidationError("unknown gateway", errors.ErrCodeInvalidGateway))
		return
	}

	rawBody, ok := h.readBody(w, r)
	if !ok {
		return
	}

	result, err := h.service.ProcessWebhook(
		r.Context(),
		gateway,
		rawBody,
		r.Header.Get(headerGenericSignature),
		r.Header.Get(headerGenericTimestamp),
	)
	if err != nil {
		h.logger.Error("webhook processing failed", "gateway", gateway, "error", err)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, result)
}

type simulateRequest struct {
	Reference string `json:"reference"`
	Status    string `json:"status,omitempty"`
}

// HandleSimulate handles POST /webhooks/simulate, a test-only path that
// moves a pending payment without a signed gateway callback.
func (h *Handler) HandleSimulate(w http.ResponseWriter, r *http.Request) {
	var req simulateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.HandleError(w, errors.NewValidationError("invalid request body", errors.ErrCodeValidationFailed))
		return
	}
	if req.Reference == "" {
		h.HandleError(w, errors.NewValidationFieldError("reference", "reference is required", errors.ErrCodeValidationFailed))
		return
	}

	result, err := h.service.SimulateWebhook(r.Context(), req.Reference, payment.Status(req.Status))
	if err != nil {
		h.logger.Error("webhook simulation failed", "reference", req.Reference, "error", err)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	rawBody, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		h.logger.Error("failed to read webhook body", "error", err)
		h.HandleError(w, errors.NewValidationError("unable to read request body", errors.ErrCodeMalformedPayload))
		return nil, false
	}
	return rawBody, true
}
