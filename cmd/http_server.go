package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/solusipay/payment-aggregator/internal"
	"github.com/solusipay/payment-aggregator/internal/events"
	"github.com/solusipay/payment-aggregator/internal/merchant"
	merchantpostgres "github.com/solusipay/payment-aggregator/internal/merchant/postgres"
	"github.com/solusipay/payment-aggregator/internal/payment"
	paymentpostgres "github.com/solusipay/payment-aggregator/internal/payment/postgres"
	"github.com/solusipay/payment-aggregator/internal/paymentmethod"
	paymentmethodpostgres "github.com/solusipay/payment-aggregator/internal/paymentmethod/postgres"
	"github.com/solusipay/payment-aggregator/internal/transport"
	"github.com/solusipay/payment-aggregator/internal/transport/rest"
	"github.com/solusipay/payment-aggregator/internal/webhook"
	"github.com/solusipay/payment-aggregator/pkg/logger"
)

var httpServerCmd = &cobra.Command{
	Use:   "server",
	Short: "Start HTTP server",
	Long:  `Start the HTTP server for payment creation and gateway webhook ingestion`,
	Run: func(cmd *cobra.Command, args []string) {
		startHTTPServer()
	},
}

type Dependencies struct {
	Config    *internal.Config
	DB        *sqlx.DB
	Router    *chi.Mux
	Publisher *events.Publisher
	Logger    *slog.Logger
}

func startHTTPServer() {
	deps, err := initializeDependencies()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize dependencies: %v\n", err)
		os.Exit(1)
	}

	addr := fmt.Sprintf(":%d", deps.Config.Server.Port)
	slog.Info("Starting HTTP server", "address", addr)

	server := &http.Server{
		Addr:         addr,
		Handler:      deps.Router,
		ReadTimeout:  deps.Config.Server.ReadTimeout,
		WriteTimeout: deps.Config.Server.WriteTimeout,
		IdleTimeout:  deps.Config.Server.IdleTimeout,
	}

	// Signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrChan := make(chan error, 1)
	go func() {
		serverErrChan <- server.ListenAndServe()
	}()

	select {
	case sig := <-sigChan:
		slog.Info("Received signal, shutting down...", "signal", sig)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}
		if err := deps.Publisher.Close(); err != nil {
			slog.Error("Publisher close error", "error", err)
		}
		if err := deps.DB.Close(); err != nil {
			slog.Error("Database close error", "error", err)
		}
	case err := <-serverErrChan:
		if err != nil && err != http.ErrServerClosed {
			slog.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}

	slog.Info("Server stopped")
}

func initializeDependencies() (*Dependencies, error) {
	config, err := loadConfig(".")
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger.Init(config.Observability.Logging.Level, config.Observability.Logging.Format)
	appLogger := logger.LoggerWrapper()

	db, err := initDB(config.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	gormDB, err := initGorm(db)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize orm: %w", err)
	}

	publisher := events.NewPublisher(config.Queue, appLogger)

	paymentRepo := paymentpostgres.NewPaymentRepository(gormDB)
	merchantRepo := merchantpostgres.NewMerchantRepository(gormDB)
	methodRepo := paymentmethodpostgres.NewPaymentMethodRepository(gormDB)

	merchantService := merchant.NewMerchantService(merchantRepo, appLogger)
	methodService := paymentmethod.NewPaymentMethodService(methodRepo, appLogger)
	paymentService := payment.NewPaymentService(paymentRepo, merchantService, publisher, appLogger)

	verifier := webhook.NewVerifier(config.Gateways.ReplayTolerance)
	normalizer := webhook.NewNormalizer(appLogger)
	webhookService := webhook.NewService(verifier, normalizer, methodService, paymentService, appLogger)

	paymentHandler := payment.NewHandler(paymentService, appLogger)
	webhookHandler := webhook.NewHandler(transport.NewBaseHandler(appLogger), webhookService, appLogger)
	merchantHandler := merchant.NewHandler(merchantService, appLogger)

	router := chi.NewRouter()
	rest.RegisterAllRoutes(router, db.DB, config, paymentHandler, webhookHandler, merchantHandler, appLogger)

	return &Dependencies{
		Config:    config,
		Logger:    appLogger,
		DB:        db,
		Router:    router,
		Publisher: publisher,
	}, nil
}

// initDB initializes the database connection
func initDB(cfg internal.DatabaseConfig) (*sqlx.DB, error) {
	const driver = "pgx"

	dbConn, err := sqlx.Connect(driver, cfg.Source)
	if err != nil {
		return nil, fmt.Errorf("failed to open db connection: %w", err)
	}

	dbConn.SetMaxIdleConns(cfg.MaxIdleConns)
	dbConn.SetMaxOpenConns(cfg.MaxOpenConns)

	// verify connection; close underlying *sql.DB on failure
	if err := dbConn.Ping(); err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return dbConn, nil
}

// initGorm wraps the already-open connection pool for the repositories.
func initGorm(db *sqlx.DB) (*gorm.DB, error) {
	return gorm.Open(gormpostgres.New(gormpostgres.Config{Conn: db.DB}), &gorm.Config{})
}
