// Package main seeds the subscription_tiers reference table. Run it once
// against a fresh project, or again after editing the tier definitions.
package main

import (
	"context"
	"flag"
	"log"
	"os"

	"github.com/joho/godotenv"

	"github.com/teambase/teambase/internal/storage/memory"
	"github.com/teambase/teambase/internal/supabase"
)

func main() {
	envFile := flag.String("env", ".env", "Path to a .env file with SUPABASE_URL and SUPABASE_SERVICE_KEY")
	flag.Parse()

	// Missing .env is fine when the variables are already exported.
	if err := godotenv.Load(*envFile); err != nil && !os.IsNotExist(err) {
		log.Fatalf("load env (%s): %v", *envFile, err)
	}

	url := os.Getenv("SUPABASE_URL")
	serviceKey := os.Getenv("SUPABASE_SERVICE_KEY")
	if url == "" || serviceKey == "" {
		log.Fatal("SUPABASE_URL and SUPABASE_SERVICE_KEY are required")
	}

	client, err := supabase.New(supabase.Config{URL: url, AnonKey: serviceKey, ServiceKey: serviceKey})
	if err != nil {
		log.Fatalf("configure client: %v", err)
	}
	admin, err := client.Admin()
	if err != nil {
		log.Fatalf("configure service-role client: %v", err)
	}

	ctx := context.Background()
	for _, tier := range memory.DefaultTiers() {
		_, err := admin.From("subscription_tiers").
			OnConflict("name").
			ExecuteUpsert(ctx, map[string]any{
				"name":          string(tier.Name),
				"max_members":   tier.MaxMembers,
				"price_monthly": tier.PriceMonthly,
				"price_yearly":  tier.PriceYearly,
				"features":      tier.Features,
				"is_team_plan":  tier.IsTeamPlan,
			})
		if err != nil {
			log.Fatalf("seed tier %s: %v", tier.Name, err)
		}
		log.Printf("seeded tier %s", tier.Name)
	}
}
