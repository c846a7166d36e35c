package merchant

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi"
	"github.com/shopspring/decimal"

	apperrors "github.com/solusipay/payment-aggregator/internal"
	"github.com/solusipay/payment-aggregator/internal/transport"
)

type Handler struct {
	*transport.BaseHandler
	service *MerchantService
	logger  *slog.Logger
}

func NewHandler(service *MerchantService, logger *slog.Logger) *Handler {
	return &Handler{
		BaseHandler: transport.NewBaseHandler(logger),
		service:     service,
		logger:      logger,
	}
}

// StatsResponse exposes the merchant's processing aggregates.
type StatsResponse struct {
	MerchantID           int64           `json:"merchant_id"`
	BusinessName         string          `json:"business_name"`
	TotalProcessedAmount decimal.Decimal `json:"total_processed_amount"`
	TotalTransactions    int64           `json:"total_transactions"`
	IsActive             bool            `json:"is_active"`
}

func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		h.HandleError(w, apperrors.NewValidationError("invalid merchant id", apperrors.ErrCodeValidationFailed))
		return
	}

	m, err := h.service.GetMerchant(id)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, StatsResponse{
		MerchantID:           m.ID,
		BusinessName:         m.BusinessName,
		TotalProcessedAmount: m.TotalProcessedAmount,
		TotalTransactions:    m.TotalTransactions,
		IsActive:             m.IsActive,
	})
}
