package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/solusipay/payment-aggregator/internal"
	"github.com/solusipay/payment-aggregator/pkg/logger"
)

// CorrelationID assigns every request a correlation id, honouring one the
// caller already sent. The id follows the request into lifecycle events so
// a webhook can be traced end to end through the queue.
func CorrelationID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		correlationID := r.Header.Get("X-Correlation-ID")
		if correlationID == "" {
			correlationID = uuid.NewString()
		}

		ctx := internal.ContextWithCorrelationID(r.Context(), correlationID)
		ctx = logger.With(ctx, "correlation_id", correlationID)

		// propagate back to response
		w.Header().Set("X-Correlation-ID", correlationID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
