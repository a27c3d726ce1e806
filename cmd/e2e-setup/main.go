package main

import (
	"context"
	"flag"
	"log"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4/pgxpool"

	"automation-subscription-platform/internal/config"
	pg "automation-subscription-platform/internal/infra/db/postgres"
	httpapi "automation-subscription-platform/internal/infra/http"
	red "automation-subscription-platform/internal/infra/redis"
)

// Resets the database and cache to a clean, predictable state for manual
// end-to-end runs against sandbox gateway credentials.
func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	schemaPath := flag.String("schema", filepath.Join("deploy", "postgres", "init.sql"), "path to schema file")
	flag.Parse()

	ctx := context.Background()

	cfg, err := config.LoadConfig(*cfgPath, true)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	pool, err := pg.Connect(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer pool.Close()

	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		log.Fatalf("redis: %v", err)
	}
	defer redisClient.Close()

	log.Println("--- E2E environment setup ---")

	log.Println("[1/3] flushing redis")
	if err := redisClient.FlushDB(ctx); err != nil {
		log.Fatalf("flush redis: %v", err)
	}

	log.Println("[2/3] resetting schema")
	schema, err := os.ReadFile(*schemaPath)
	if err != nil {
		log.Fatalf("read schema: %v", err)
	}
	if _, err := pool.Exec(ctx, `DROP TABLE IF EXISTS payments, subscriptions, services CASCADE`); err != nil {
		log.Fatalf("drop tables: %v", err)
	}
	if _, err := pool.Exec(ctx, string(schema)); err != nil {
		log.Fatalf("apply schema: %v", err)
	}

	log.Println("[3/3] seeding catalog")
	seedCatalog(ctx, pool)

	token, err := httpapi.IssueToken(cfg.Auth.HMACSecret, "e2e-user", cfg.Auth.TTL)
	if err != nil {
		log.Fatalf("issue token: %v", err)
	}
	log.Printf("bearer token for e2e-user: %s", token)

	log.Println("--- E2E environment ready ---")
}

// seedCatalog inserts the fixed services the manual test scripts expect.
func seedCatalog(ctx context.Context, pool *pgxpool.Pool) {
	services := []struct {
		Slug      string
		Name      string
		PricePYG  int64
		TrialDays int
		Recurring bool
	}{
		{"ocr-suite", "Document OCR Suite", 150_000, 7, true},
		{"bulk-export", "Bulk Data Export", 450_000, 0, false},
	}
	for _, s := range services {
		_, err := pool.Exec(ctx, `
			INSERT INTO services (id, slug, name, price_pyg, trial_days, recurring, active)
			VALUES ($1, $2, $3, $4, $5, $6, TRUE)`,
			uuid.NewString(), s.Slug, s.Name, s.PricePYG, s.TrialDays, s.Recurring,
		)
		if err != nil {
			log.Fatalf("seed %q: %v", s.Slug, err)
		}
		log.Printf("seeded %s (%d PYG)", s.Slug, s.PricePYG)
	}
}
