package supabase

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/teambase/teambase/internal/domain/team"
	supa "github.com/teambase/teambase/internal/supabase"
)

func newTestStore(t *testing.T, handler http.HandlerFunc) (*Store, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := supa.New(supa.Config{
		URL:        srv.URL,
		AnonKey:    "anon-key",
		ServiceKey: "service-key",
	})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	admin, err := client.Admin()
	if err != nil {
		t.Fatalf("admin client: %v", err)
	}
	return New(admin), srv
}

func TestGetTeamDecodesSnakeColumns(t *testing.T) {
	store, _ := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/rest/v1/teams") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("id"); got != "eq.team-1" {
			t.Errorf("id filter = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"id": "team-1",
			"name": "Acme",
			"slug": "acme",
			"logo_url": "https://img.example/acme.png",
			"is_personal": false,
			"subscription_tier": "pro",
			"max_members": 25,
			"created_at": "2026-01-02T03:04:05Z",
			"updated_at": "2026-01-02T03:04:05Z"
		}`))
	})

	got, err := store.GetTeam(context.Background(), "team-1")
	if err != nil {
		t.Fatalf("GetTeam: %v", err)
	}
	if got.LogoURL != "https://img.example/acme.png" {
		t.Errorf("LogoURL = %q, snake_case column not converted", got.LogoURL)
	}
	if got.SubscriptionTier != team.TierPro {
		t.Errorf("SubscriptionTier = %q, want pro", got.SubscriptionTier)
	}
	if got.MaxMembers != 25 {
		t.Errorf("MaxMembers = %d, want 25", got.MaxMembers)
	}
}

func TestGetTeamNotFound(t *testing.T) {
	store, _ := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotAcceptable)
		w.Write([]byte(`{"code":"PGRST116","message":"JSON object requested, multiple (or no) rows returned"}`))
	})

	_, err := store.GetTeam(context.Background(), "missing")
	if !errors.Is(err, team.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCreateTeamSendsSnakePayload(t *testing.T) {
	var payload map[string]any
	store, _ := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`[{"id":"team-1","name":"Acme","slug":"acme","subscription_tier":"free","max_members":3,"created_at":"2026-01-02T03:04:05Z","updated_at":"2026-01-02T03:04:05Z"}]`))
	})

	created, err := store.CreateTeam(context.Background(), team.Team{
		Name:             "Acme",
		Slug:             "acme",
		LogoURL:          "https://img.example/acme.png",
		SubscriptionTier: team.TierFree,
		MaxMembers:       3,
	})
	if err != nil {
		t.Fatalf("CreateTeam: %v", err)
	}
	if created.ID != "team-1" {
		t.Errorf("ID = %q, want team-1", created.ID)
	}
	if _, ok := payload["logo_url"]; !ok {
		t.Errorf("payload keys not snake_case: %v", payload)
	}
	if _, ok := payload["logoUrl"]; ok {
		t.Errorf("camelCase key leaked to the wire: %v", payload)
	}
	if payload["id"] == "" {
		t.Errorf("insert payload missing generated id")
	}
}

func TestCreateTeamSlugConflict(t *testing.T) {
	store, _ := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		w.Write([]byte(`{"code":"23505","message":"duplicate key value violates unique constraint \"teams_slug_key\""}`))
	})

	_, err := store.CreateTeam(context.Background(), team.Team{Name: "Acme", Slug: "acme"})
	if !errors.Is(err, team.ErrSlugTaken) {
		t.Fatalf("expected ErrSlugTaken, got %v", err)
	}
}

func TestRemoveMemberGuardError(t *testing.T) {
	store, _ := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rest/v1/rpc/remove_team_member" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"code":"P0001","message":"last_owner"}`))
	})

	err := store.RemoveMember(context.Background(), "team-1", "owner-1")
	if !errors.Is(err, team.ErrLastOwner) {
		t.Fatalf("expected ErrLastOwner, got %v", err)
	}
}

func TestAcceptInvitationRPC(t *testing.T) {
	store, _ := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rest/v1/rpc/accept_team_invitation" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var params map[string]string
		if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
			t.Errorf("decode params: %v", err)
		}
		if params["p_token"] != "tok-1" || params["p_user_id"] != "u2" {
			t.Errorf("params = %v", params)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"m-1","team_id":"team-1","user_id":"u2","role":"member","created_at":"2026-01-02T03:04:05Z","updated_at":"2026-01-02T03:04:05Z"}`))
	})

	m, err := store.AcceptInvitation(context.Background(), "tok-1", "u2")
	if err != nil {
		t.Fatalf("AcceptInvitation: %v", err)
	}
	if m.TeamID != "team-1" || m.Role != team.RoleMember {
		t.Errorf("member = %+v", m)
	}
}

func TestAcceptInvitationExpired(t *testing.T) {
	store, _ := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"code":"P0001","message":"invitation_expired"}`))
	})

	_, err := store.AcceptInvitation(context.Background(), "tok-old", "u2")
	if !errors.Is(err, team.ErrInvitationExpired) {
		t.Fatalf("expected ErrInvitationExpired, got %v", err)
	}
}

func TestCountMembersUsesContentRange(t *testing.T) {
	store, _ := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		if prefer := r.Header.Get("Prefer"); !strings.Contains(prefer, "count=exact") {
			t.Errorf("Prefer = %q, want count=exact", prefer)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Content-Range", "0-0/42")
		w.Write([]byte(`[{"id":"m-1"}]`))
	})

	n, err := store.CountMembers(context.Background(), "team-1")
	if err != nil {
		t.Fatalf("CountMembers: %v", err)
	}
	if n != 42 {
		t.Errorf("count = %d, want 42", n)
	}
}

func TestListTeamsForUserEmbeddedSelect(t *testing.T) {
	store, _ := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("select"); got != "teams(*)" {
			t.Errorf("select = %q, want teams(*)", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[
			{"teams": {"id":"team-1","name":"Acme","slug":"acme","subscription_tier":"free","max_members":3,"created_at":"2026-01-02T03:04:05Z","updated_at":"2026-01-02T03:04:05Z"}},
			{"teams": {"id":"team-2","name":"Beta","slug":"beta","subscription_tier":"pro","max_members":25,"created_at":"2026-01-03T03:04:05Z","updated_at":"2026-01-03T03:04:05Z"}}
		]`))
	})

	teams, err := store.ListTeamsForUser(context.Background(), "u1")
	if err != nil {
		t.Fatalf("ListTeamsForUser: %v", err)
	}
	if len(teams) != 2 {
		t.Fatalf("len = %d, want 2", len(teams))
	}
	if teams[0].Slug != "acme" || teams[1].Slug != "beta" {
		t.Errorf("teams = %+v", teams)
	}
}

func TestDeleteTeamNotFound(t *testing.T) {
	store, _ := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[]`))
	})

	err := store.DeleteTeam(context.Background(), "missing")
	if !errors.Is(err, team.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteExpiredInvitationsCountsRows(t *testing.T) {
	store, _ := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			t.Errorf("method = %s, want DELETE", r.Method)
		}
		if got := r.URL.Query().Get("expires_at"); !strings.HasPrefix(got, "lt.") {
			t.Errorf("expires_at filter = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"id":"i-1"},{"id":"i-2"},{"id":"i-3"}]`))
	})

	n, err := store.DeleteExpiredInvitations(context.Background(), time.Now())
	if err != nil {
		t.Fatalf("DeleteExpiredInvitations: %v", err)
	}
	if n != 3 {
		t.Errorf("removed = %d, want 3", n)
	}
}
