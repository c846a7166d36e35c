package rest

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"

	"github.com/solusipay/payment-aggregator/internal"
	"github.com/solusipay/payment-aggregator/internal/merchant"
	"github.com/solusipay/payment-aggregator/internal/metrics"
	"github.com/solusipay/payment-aggregator/internal/payment"
	"github.com/solusipay/payment-aggregator/internal/transport/middleware"
	"github.com/solusipay/payment-aggregator/internal/transport/swagger"
	"github.com/solusipay/payment-aggregator/internal/webhook"
)

func RegisterAllRoutes(router *chi.Mux, db *sql.DB, cfg *internal.Config, paymentHandler *payment.Handler, webhookHandler *webhook.Handler, merchantHandler *merchant.Handler, logger *slog.Logger) {
	healthHandler := NewHealthHandler(db, cfg.Queue.Enabled())

	// Apply global middleware
	router.Use(middleware.CorrelationID)
	router.Use(middleware.LoggingMiddleware(logger))
	router.Use(middleware.RecoveryMiddleware(logger))

	// Serve OpenAPI spec at root (outside API prefix)
	router.Get("/openapi.yml", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, "./api/openapi.yml")
	})
	// Swagger UI route at root
	router.Handle("/swagger/*", swagger.Handler())

	if cfg.Observability.Metrics.Enabled {
		router.Handle(cfg.Observability.Metrics.Path, metrics.Handler())
	}

	// Mount API under /api/v1 to match OpenAPI basePath
	router.Route("/api/v1", func(r chi.Router) {
		// Health check route
		r.Get("/health", healthHandler.healthCheckHandler)
		r.Get("/ping", healthHandler.pingHandler)

		// Gateway callbacks. These are authenticated by HMAC signature,
		// never by API credentials.
		r.Route("/webhooks", func(wr chi.Router) {
			wr.Post("/stripe", webhookHandler.HandleStripe)
			wr.Post("/paystack", webhookHandler.HandlePaystack)
			wr.Post("/flutterwave", webhookHandler.HandleFlutterwave)
			wr.Post("/simulate", webhookHandler.HandleSimulate)
			wr.Post("/{gateway}", webhookHandler.HandleGeneric)
		})

		r.Route("/payments", func(pr chi.Router) {
			pr.Post("/", paymentHandler.CreatePayment)
			pr.Get("/", paymentHandler.ListPayments)
			pr.Get("/{reference}", paymentHandler.GetPayment)
		})

		r.Get("/merchants/{id}/stats", merchantHandler.GetStats)
	})
}
