package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"automation-subscription-platform/internal/config"
	pg "automation-subscription-platform/internal/infra/db/postgres"
)

// Seeds the service catalog. The settlement engine only reads services, so
// this tool is the one writer; re-running it updates prices in place.
func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, false)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pg.Connect(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer pool.Close()

	catalog := []struct {
		Slug      string
		Name      string
		PricePYG  int64
		TrialDays int
		Recurring bool
	}{
		{"ocr-suite", "Document OCR Suite", 150_000, 7, true},
		{"invoice-sync", "Invoice Sync", 290_000, 14, true},
		{"report-builder", "Report Builder", 90_000, 0, true},
		{"bulk-export", "Bulk Data Export", 450_000, 0, false},
	}

	for _, s := range catalog {
		tag, err := pool.Exec(ctx, `
			INSERT INTO services (id, slug, name, price_pyg, trial_days, recurring, active)
			VALUES ($1, $2, $3, $4, $5, $6, TRUE)
			ON CONFLICT (slug) DO UPDATE SET
				name       = EXCLUDED.name,
				price_pyg  = EXCLUDED.price_pyg,
				trial_days = EXCLUDED.trial_days,
				recurring  = EXCLUDED.recurring,
				active     = TRUE`,
			uuid.NewString(), s.Slug, s.Name, s.PricePYG, s.TrialDays, s.Recurring,
		)
		if err != nil {
			log.Fatalf("seed service %q: %v", s.Slug, err)
		}
		fmt.Printf("seeded: %s (%s, %d PYG, trial=%dd, rows=%d)\n", s.Slug, s.Name, s.PricePYG, s.TrialDays, tag.RowsAffected())
	}

	fmt.Println("seeding complete")
}
