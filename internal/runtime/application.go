// Package runtime wires the application dependencies and manages the HTTP
// server lifecycle.
package runtime

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/teambase/teambase/internal/config"
	"github.com/teambase/teambase/internal/httpapi"
	"github.com/teambase/teambase/internal/jobs"
	"github.com/teambase/teambase/internal/metrics"
	"github.com/teambase/teambase/internal/middleware"
	profilesvc "github.com/teambase/teambase/internal/service/profile"
	teamsvc "github.com/teambase/teambase/internal/service/team"
	"github.com/teambase/teambase/internal/storage"
	supastore "github.com/teambase/teambase/internal/storage/supabase"
	"github.com/teambase/teambase/internal/supabase"
	"github.com/teambase/teambase/pkg/logger"
)

// Application bundles the wired components.
type Application struct {
	cfg        *config.Config
	log        *logger.Logger
	httpServer *http.Server
	scheduler  *jobs.Scheduler
	done       chan struct{}
}

// stores groups the storage interfaces one backend satisfies.
type stores struct {
	teams       storage.TeamStore
	members     storage.MemberStore
	invitations storage.InvitationStore
	tiers       storage.TierStore
	profiles    storage.ProfileStore
	stats       storage.StatsStore
}

// NewApplication constructs the application from configuration.
func NewApplication(cfg *config.Config) (*Application, error) {
	log := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})

	client, err := supabase.New(supabase.Config{
		URL:        cfg.Supabase.URL,
		AnonKey:    cfg.Supabase.AnonKey,
		ServiceKey: cfg.Supabase.ServiceKey,
	})
	if err != nil {
		return nil, fmt.Errorf("configure backend client: %w", err)
	}
	admin, err := client.Admin()
	if err != nil {
		return nil, fmt.Errorf("configure service-role client: %w", err)
	}

	st := buildStores(admin)

	teams := teamsvc.NewService(st.teams, st.members, st.invitations, st.tiers, log.WithField("component", "team-service"))
	profiles := profilesvc.NewService(st.profiles, log.WithField("component", "profile-service"))

	handler := httpapi.NewHandler(teams, profiles, client, log.WithField("component", "httpapi"))

	auth := middleware.NewAuth(cfg.Auth.JWTSecret, client, log.WithField("component", "auth"), httpapi.SkipAuthPaths())
	cors := middleware.NewCORS(cfg.Server.AllowedOrigins)
	obs := middleware.NewObservability(log.WithField("component", "http"))
	limiter := middleware.NewRateLimiter(cfg.Limits.RequestsPerSecond, cfg.Limits.Burst, log.WithField("component", "ratelimit"))

	done := make(chan struct{})
	limiter.StartCleanup(time.Minute, done)

	// Outermost first: recovery/logging, CORS, metrics, auth, throttling.
	var root http.Handler = handler.Routes()
	root = limiter.Handler(root)
	root = auth.Handler(root)
	root = metrics.InstrumentHandler(root)
	root = cors.Handler(root)
	root = obs.Handler(root)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      root,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	scheduler := jobs.NewScheduler(st.invitations, st.stats, log.WithField("component", "jobs"))

	return &Application{
		cfg:        cfg,
		log:        log,
		httpServer: httpServer,
		scheduler:  scheduler,
		done:       done,
	}, nil
}

func buildStores(admin *supabase.Client) stores {
	store := supastore.New(admin)
	return stores{
		teams:       store,
		members:     store,
		invitations: store,
		tiers:       store,
		profiles:    store,
		stats:       store,
	}
}

// Run starts the scheduler and the HTTP server, blocking until the context
// is cancelled or the server fails.
func (a *Application) Run(ctx context.Context) error {
	if err := a.scheduler.Start(); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.Infof("HTTP server listening on :%d", a.cfg.Server.Port)
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}

// Shutdown stops the server, the scheduler and the background cleanup.
func (a *Application) Shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
	defer cancel()

	close(a.done)
	a.scheduler.Stop()

	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		return err
	}
	a.log.Info("shutdown complete")
	return nil
}

// Scheduler exposes the job scheduler, mainly for the worker binary.
func (a *Application) Scheduler() *jobs.Scheduler {
	return a.scheduler
}
