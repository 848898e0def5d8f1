package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/teambase/teambase/internal/domain/team"
	"github.com/teambase/teambase/internal/storage/memory"
)

func TestRunCleanupPurgesExpired(t *testing.T) {
	store := memory.New()
	created, err := store.CreateTeam(context.Background(), team.Team{Name: "Acme", Slug: "acme"})
	if err != nil {
		t.Fatalf("CreateTeam: %v", err)
	}
	now := time.Now()
	for i, exp := range []time.Time{now.Add(-time.Hour), now.Add(-time.Minute), now.Add(time.Hour)} {
		_, err := store.CreateInvitation(context.Background(), team.Invitation{
			TeamID:    created.ID,
			Email:     string(rune('a'+i)) + "@example.com",
			Role:      team.RoleMember,
			Token:     "tok-" + string(rune('a'+i)),
			ExpiresAt: exp,
		})
		if err != nil {
			t.Fatalf("CreateInvitation: %v", err)
		}
	}

	s := NewScheduler(store, store, nil)
	removed, err := s.RunCleanup(context.Background())
	if err != nil {
		t.Fatalf("RunCleanup: %v", err)
	}
	if removed != 2 {
		t.Errorf("removed = %d, want 2", removed)
	}

	// A second pass finds nothing.
	removed, err = s.RunCleanup(context.Background())
	if err != nil {
		t.Fatalf("RunCleanup again: %v", err)
	}
	if removed != 0 {
		t.Errorf("second pass removed %d", removed)
	}
}

func TestRunMetricsRefresh(t *testing.T) {
	store := memory.New()
	s := NewScheduler(store, store, nil)
	if err := s.RunMetricsRefresh(context.Background()); err != nil {
		t.Fatalf("RunMetricsRefresh: %v", err)
	}
}

func TestSchedulerStartStop(t *testing.T) {
	s := NewScheduler(memory.New(), memory.New(), nil)
	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	s.Stop()
	if s.CleanupRuns() != 0 || s.MetricsRuns() != 0 {
		t.Errorf("jobs ran during immediate start/stop: cleanup=%d metrics=%d", s.CleanupRuns(), s.MetricsRuns())
	}
}

func TestSchedulesParse(t *testing.T) {
	for _, spec := range []string{CleanupSchedule, MetricsSchedule} {
		s := NewScheduler(memory.New(), memory.New(), nil)
		if _, err := s.cron.AddFunc(spec, func() {}); err != nil {
			t.Errorf("schedule %q does not parse: %v", spec, err)
		}
	}
}
