// Package main runs the teambase maintenance worker: the scheduled jobs
// without the HTTP API. Deployments that scale the API horizontally run a
// single worker so the jobs execute once.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/teambase/teambase/internal/config"
	"github.com/teambase/teambase/internal/jobs"
	supastore "github.com/teambase/teambase/internal/storage/supabase"
	"github.com/teambase/teambase/internal/supabase"
	"github.com/teambase/teambase/pkg/logger"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "Path to the configuration file")
	runOnce := flag.Bool("once", false, "Run the cleanup job immediately and exit")
	flag.Parse()

	if v := os.Getenv("CONFIG_PATH"); v != "" {
		*configPath = v
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	applog := logger.New(logger.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format})

	client, err := supabase.New(supabase.Config{
		URL:        cfg.Supabase.URL,
		AnonKey:    cfg.Supabase.AnonKey,
		ServiceKey: cfg.Supabase.ServiceKey,
	})
	if err != nil {
		log.Fatalf("Failed to configure backend client: %v", err)
	}
	admin, err := client.Admin()
	if err != nil {
		log.Fatalf("Failed to configure service-role client: %v", err)
	}
	store := supastore.New(admin)

	scheduler := jobs.NewScheduler(store, store, applog.WithField("component", "jobs"))

	if *runOnce {
		removed, err := scheduler.RunCleanup(context.Background())
		if err != nil {
			log.Fatalf("Cleanup failed: %v", err)
		}
		applog.WithField("removed", removed).Info("cleanup finished")
		return
	}

	if err := scheduler.Start(); err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	scheduler.Stop()
}
