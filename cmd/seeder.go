package cmd

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/solusipay/payment-aggregator/internal"
	"github.com/solusipay/payment-aggregator/internal/core/datamodel/payment"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the database with sample data",
	Long:  `Seed the database with sample merchants and payment method configurations for development and testing purposes.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig(".")
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}

		sqlxDB, err := initDB(cfg.Database)
		if err != nil {
			log.Fatalf("failed to init db: %v", err)
		}

		db, err := gorm.Open(gormpostgres.New(gormpostgres.Config{Conn: sqlxDB.DB}), &gorm.Config{})
		if err != nil {
			log.Fatalf("failed to init orm: %v", err)
		}

		if clearData {
			for _, table := range []string{"payments", "payment_methods", "merchants"} {
				if err := db.Exec(fmt.Sprintf("DELETE FROM %s", table)).Error; err != nil {
					log.Fatalf("failed to clear %s: %v", table, err)
				}
			}
			fmt.Println("Cleared existing data")
		}

		merchants := []struct {
			BusinessName string
			Email        string
			APIKey       string
		}{
			{"Acme Store", "payments@acme.example", "sk_test_acme"},
			{"Globex Retail", "finance@globex.example", "sk_test_globex"},
		}

		for _, m := range merchants {
			var exists int
			row := db.Raw("SELECT 1 FROM merchants WHERE email = ?", m.Email).Row()
			if err := row.Scan(&exists); err == nil {
				fmt.Printf("merchant %s already exists, skipping\n", m.Email)
				continue
			}

			hash, err := bcrypt.GenerateFromPassword([]byte(m.APIKey), bcrypt.DefaultCost)
			if err != nil {
				log.Fatalf("failed to hash api key for %s: %v", m.Email, err)
			}

			if err := db.Exec(
				"INSERT INTO merchants (business_name, email, api_key_hash, is_active, created_at, updated_at) VALUES (?, ?, ?, true, now(), now())",
				m.BusinessName, m.Email, string(hash),
			).Error; err != nil {
				log.Fatalf("failed to insert merchant %s: %v", m.Email, err)
			}
			fmt.Println("Seeded merchant:", m.Email)
		}

		var merchantID int64
		if err := db.Raw("SELECT id FROM merchants WHERE email = ?", merchants[0].Email).Row().Scan(&merchantID); err != nil {
			log.Fatalf("failed to lookup merchant id: %v", err)
		}

		for _, pm := range gatewaySeeds(cfg.Gateways) {
			if pm.Secret == "" {
				fmt.Printf("no webhook secret configured for %s, skipping\n", pm.Gateway)
				continue
			}

			var exists int
			row := db.Raw("SELECT 1 FROM payment_methods WHERE merchant_id = ? AND gateway_type = ?", merchantID, pm.Gateway).Row()
			if err := row.Scan(&exists); err == nil {
				continue
			}

			if err := db.Exec(
				"INSERT INTO payment_methods (merchant_id, gateway_type, display_name, webhook_secret, is_active, created_at, updated_at) VALUES (?, ?, ?, ?, true, now(), now())",
				merchantID, pm.Gateway, pm.DisplayName, pm.Secret,
			).Error; err != nil {
				log.Fatalf("failed to insert payment method %s: %v", pm.Gateway, err)
			}
			fmt.Println("Seeded payment method:", pm.Gateway)
		}

		fmt.Println("Seeding complete")
	},
}

type seedMethod struct {
	Gateway     payment.Gateway
	DisplayName string
	Secret      string
}

// gatewaySeeds builds the payment method rows from the configured webhook
// secrets. Gateway values are the enum constants the webhook secret lookup
// queries with; free-text names would never resolve.
func gatewaySeeds(cfg internal.GatewaysConfig) []seedMethod {
	return []seedMethod{
		{payment.GatewayStripe, "Stripe (test mode)", cfg.StripeWebhookSecret},
		{payment.GatewayPaystack, "Paystack (test mode)", cfg.PaystackWebhookSecret},
		{payment.GatewayFlutterwave, "Flutterwave (test mode)", cfg.FlutterwaveWebhookSecret},
		{payment.GatewayInternal, "Internal simulator", cfg.InternalWebhookSecret},
	}
}
