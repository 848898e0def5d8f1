package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/teambase/teambase/internal/domain/team"
	"github.com/teambase/teambase/internal/middleware"
	profilesvc "github.com/teambase/teambase/internal/service/profile"
	teamsvc "github.com/teambase/teambase/internal/service/team"
	"github.com/teambase/teambase/internal/storage/memory"
	"github.com/teambase/teambase/internal/supabase"
)

func newTestHandler(t *testing.T) (*Handler, *memory.Store) {
	t.Helper()
	store := memory.New()
	teams := teamsvc.NewService(store, store, store, store, nil)
	profiles := profilesvc.NewService(store, nil)
	return NewHandler(teams, profiles, nil, nil), store
}

// do issues a request as the given user against the full route table.
func do(t *testing.T, h *Handler, userID, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if userID != "" {
		req = req.WithContext(middleware.WithUser(req.Context(), userID, ""))
	}
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode response %s: %v", rec.Body.String(), err)
	}
	return v
}

func createTeam(t *testing.T, h *Handler, userID, name string) team.Team {
	t.Helper()
	rec := do(t, h, userID, http.MethodPost, "/teams", map[string]any{"name": name})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create team: status %d body %s", rec.Code, rec.Body.String())
	}
	return decodeBody[team.Team](t, rec)
}

func TestCreateAndGetTeam(t *testing.T) {
	h, _ := newTestHandler(t)
	created := createTeam(t, h, "u1", "Acme Inc.")
	if created.Slug != "acme-inc" {
		t.Errorf("slug = %q", created.Slug)
	}
	if created.OwnerID != "u1" {
		t.Errorf("ownerId = %q, want u1", created.OwnerID)
	}

	rec := do(t, h, "u1", http.MethodGet, "/teams/"+created.ID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get team: status %d", rec.Code)
	}
	got := decodeBody[team.Team](t, rec)
	if got.OwnerID != "u1" {
		t.Errorf("ownerId missing on read: %+v", got)
	}

	rec = do(t, h, "u1", http.MethodGet, "/teams/slug/acme-inc", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get by slug: status %d", rec.Code)
	}
}

func TestGetTeamCrossTenantForbidden(t *testing.T) {
	h, _ := newTestHandler(t)
	created := createTeam(t, h, "u1", "Acme")

	rec := do(t, h, "intruder", http.MethodGet, "/teams/"+created.ID, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
	body := decodeBody[map[string]string](t, rec)
	if body["error"] == "" {
		t.Error("error body missing message")
	}
}

func TestCreateTeamRejectsUnknownFields(t *testing.T) {
	h, _ := newTestHandler(t)
	rec := do(t, h, "u1", http.MethodPost, "/teams", map[string]any{"name": "Acme", "bogus": true})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestDeleteTeam(t *testing.T) {
	h, _ := newTestHandler(t)
	created := createTeam(t, h, "u1", "Acme")

	rec := do(t, h, "u1", http.MethodDelete, "/teams/"+created.ID, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete: status %d body %s", rec.Code, rec.Body.String())
	}
	rec = do(t, h, "u1", http.MethodGet, "/teams/"+created.ID, nil)
	if rec.Code != http.StatusForbidden && rec.Code != http.StatusNotFound {
		t.Fatalf("get after delete: status %d", rec.Code)
	}
}

func TestMemberLifecycle(t *testing.T) {
	h, _ := newTestHandler(t)
	created := createTeam(t, h, "owner", "Acme")

	rec := do(t, h, "owner", http.MethodPost, "/teams/"+created.ID+"/members", map[string]any{"userId": "u2"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("add member: status %d body %s", rec.Code, rec.Body.String())
	}
	m := decodeBody[team.Member](t, rec)
	if m.Role != team.RoleMember {
		t.Errorf("default role = %q, want member", m.Role)
	}

	rec = do(t, h, "owner", http.MethodPatch, "/teams/"+created.ID+"/members/u2", map[string]any{"role": "admin"})
	if rec.Code != http.StatusOK {
		t.Fatalf("update role: status %d body %s", rec.Code, rec.Body.String())
	}

	rec = do(t, h, "u2", http.MethodGet, "/teams/"+created.ID+"/members", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list members: status %d", rec.Code)
	}
	members := decodeBody[[]team.Member](t, rec)
	if len(members) != 2 {
		t.Fatalf("members = %d, want 2", len(members))
	}

	rec = do(t, h, "owner", http.MethodDelete, "/teams/"+created.ID+"/members/u2", nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("remove member: status %d", rec.Code)
	}
}

func TestRemoveLastOwnerIsRejected(t *testing.T) {
	h, _ := newTestHandler(t)
	created := createTeam(t, h, "owner", "Acme")

	rec := do(t, h, "owner", http.MethodDelete, "/teams/"+created.ID+"/members/owner", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestInvitationFlow(t *testing.T) {
	h, _ := newTestHandler(t)
	created := createTeam(t, h, "owner", "Acme")

	rec := do(t, h, "owner", http.MethodPost, "/teams/"+created.ID+"/invitations", map[string]any{
		"email": "new@example.com",
		"role":  "admin",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("invite: status %d body %s", rec.Code, rec.Body.String())
	}
	inv := decodeBody[team.Invitation](t, rec)
	if inv.Token == "" {
		t.Fatal("invitation token missing")
	}

	// Anyone holding the token can inspect it.
	rec = do(t, h, "u2", http.MethodGet, "/invitations/"+inv.Token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get invitation: status %d", rec.Code)
	}

	rec = do(t, h, "u2", http.MethodPost, "/invitations/"+inv.Token+"/accept", nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("accept: status %d body %s", rec.Code, rec.Body.String())
	}
	m := decodeBody[team.Member](t, rec)
	if m.Role != team.RoleAdmin {
		t.Errorf("accepted role = %q, want admin", m.Role)
	}

	// The token is burned.
	rec = do(t, h, "u3", http.MethodPost, "/invitations/"+inv.Token+"/accept", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("reuse: status %d, want 404", rec.Code)
	}
}

func TestDuplicateInvitationConflict(t *testing.T) {
	h, _ := newTestHandler(t)
	created := createTeam(t, h, "owner", "Acme")

	payload := map[string]any{"email": "dup@example.com"}
	do(t, h, "owner", http.MethodPost, "/teams/"+created.ID+"/invitations", payload)
	rec := do(t, h, "owner", http.MethodPost, "/teams/"+created.ID+"/invitations", payload)
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
}

func TestSubscriptionEndpoints(t *testing.T) {
	h, _ := newTestHandler(t)
	created := createTeam(t, h, "owner", "Acme")

	rec := do(t, h, "", http.MethodGet, "/subscription-tiers", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list tiers: status %d", rec.Code)
	}
	tiers := decodeBody[[]team.SubscriptionTier](t, rec)
	if len(tiers) != 4 || tiers[0].Name != team.TierFree {
		t.Errorf("tiers = %+v", tiers)
	}

	rec = do(t, h, "owner", http.MethodPut, "/teams/"+created.ID+"/subscription", map[string]any{
		"tier":           "pro",
		"subscriptionId": "sub_42",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("change subscription: status %d body %s", rec.Code, rec.Body.String())
	}
	updated := decodeBody[team.Team](t, rec)
	if updated.SubscriptionTier != team.TierPro || updated.MaxMembers != 25 {
		t.Errorf("team after upgrade = %+v", updated)
	}

	rec = do(t, h, "owner", http.MethodGet, "/teams/"+created.ID+"/subscription", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get subscription: status %d body %s", rec.Code, rec.Body.String())
	}
	sub := decodeBody[teamsvc.Subscription](t, rec)
	if sub.Tier != team.TierPro || sub.MemberCount != 1 || sub.Plan.Name != team.TierPro {
		t.Errorf("subscription = %+v", sub)
	}

	rec = do(t, h, "owner", http.MethodPut, "/teams/"+created.ID+"/subscription", map[string]any{"tier": "platinum"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unknown tier: status %d, want 400", rec.Code)
	}
}

func TestTiersReachableUnderTeams(t *testing.T) {
	h, _ := newTestHandler(t)
	rec := do(t, h, "u1", http.MethodGet, "/teams/subscription-tiers", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body %s, want 200", rec.Code, rec.Body.String())
	}
	tiers := decodeBody[[]team.SubscriptionTier](t, rec)
	if len(tiers) != 4 {
		t.Errorf("tiers = %+v", tiers)
	}

	rec = do(t, h, "u1", http.MethodGet, "/teams/subscription-tiers?isTeamPlan=false", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("all plans: status %d", rec.Code)
	}
	rec = do(t, h, "u1", http.MethodGet, "/teams/subscription-tiers?isTeamPlan=maybe", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad filter: status %d, want 400", rec.Code)
	}
}

func TestPutAcceptedForUpdates(t *testing.T) {
	h, _ := newTestHandler(t)
	created := createTeam(t, h, "owner", "Acme")

	rec := do(t, h, "owner", http.MethodPut, "/teams/"+created.ID, map[string]any{"name": "Acme Corp"})
	if rec.Code != http.StatusOK {
		t.Fatalf("put team: status %d body %s", rec.Code, rec.Body.String())
	}
	if got := decodeBody[team.Team](t, rec); got.Name != "Acme Corp" {
		t.Errorf("name = %q, want Acme Corp", got.Name)
	}

	rec = do(t, h, "owner", http.MethodPost, "/teams/"+created.ID+"/members", map[string]any{"userId": "bob"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("add member: status %d", rec.Code)
	}
	rec = do(t, h, "owner", http.MethodPut, "/teams/"+created.ID+"/members/bob", map[string]any{"role": "admin"})
	if rec.Code != http.StatusOK {
		t.Fatalf("put member role: status %d body %s", rec.Code, rec.Body.String())
	}
	if got := decodeBody[team.Member](t, rec); got.Role != team.RoleAdmin {
		t.Errorf("role = %q, want admin", got.Role)
	}
}

func TestProfileEndpoints(t *testing.T) {
	h, _ := newTestHandler(t)

	rec := do(t, h, "u1", http.MethodGet, "/profile", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("fresh profile: status %d, want 404", rec.Code)
	}

	rec = do(t, h, "u1", http.MethodPut, "/profile", map[string]any{
		"username": "alice",
		"fullName": "Alice Liddell",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("upsert: status %d body %s", rec.Code, rec.Body.String())
	}

	rec = do(t, h, "u2", http.MethodGet, "/profiles/alice", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("public profile: status %d", rec.Code)
	}

	rec = do(t, h, "u2", http.MethodGet, "/username-available?username=alice", nil)
	body := decodeBody[map[string]bool](t, rec)
	if body["available"] {
		t.Error("taken username reported available")
	}

	rec = do(t, h, "u2", http.MethodPut, "/profile", map[string]any{"username": "alice"})
	if rec.Code != http.StatusConflict {
		t.Fatalf("duplicate username: status %d, want 409", rec.Code)
	}

	rec = do(t, h, "u1", http.MethodDelete, "/profile", nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete profile: status %d", rec.Code)
	}
}

func TestHealthz(t *testing.T) {
	h, _ := newTestHandler(t)
	rec := do(t, h, "", http.MethodGet, "/healthz", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestAuthEndpointsProxyBackend(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/auth/v1/token":
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"access_token":"at","refresh_token":"rt","token_type":"bearer","expires_in":3600,"user":{"id":"u1","email":"a@example.com"}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer backend.Close()

	client, err := supabase.New(supabase.Config{URL: backend.URL, AnonKey: "anon"})
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	store := memory.New()
	h := NewHandler(teamsvc.NewService(store, store, store, store, nil), profilesvc.NewService(store, nil), client, nil)

	rec := do(t, h, "", http.MethodPost, "/auth/signin", map[string]any{
		"email":    "a@example.com",
		"password": "secret",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("signin: status %d body %s", rec.Code, rec.Body.String())
	}
	session := decodeBody[supabase.Session](t, rec)
	if session.AccessToken != "at" {
		t.Errorf("session = %+v", session)
	}
}
