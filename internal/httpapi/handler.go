// Package httpapi exposes the REST API. Handlers translate HTTP to service
// calls and map domain errors to status codes; they hold no business rules.
package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/teambase/teambase/internal/domain/profile"
	"github.com/teambase/teambase/internal/domain/team"
	"github.com/teambase/teambase/internal/metrics"
	profilesvc "github.com/teambase/teambase/internal/service/profile"
	teamsvc "github.com/teambase/teambase/internal/service/team"
	"github.com/teambase/teambase/internal/supabase"
	"github.com/teambase/teambase/pkg/logger"
)

// Handler bundles the HTTP endpoints.
type Handler struct {
	teams    *teamsvc.Service
	profiles *profilesvc.Service
	auth     *supabase.Client
	logger   *logger.Logger
}

// NewHandler wires the endpoint handlers.
func NewHandler(teams *teamsvc.Service, profiles *profilesvc.Service, auth *supabase.Client, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.NewDefault("httpapi")
	}
	return &Handler{teams: teams, profiles: profiles, auth: auth, logger: log}
}

// Routes registers every endpoint on a fresh router.
func (h *Handler) Routes() *mux.Router {
	r := mux.NewRouter()

	// Reachable without a token; the auth middleware skips them.
	r.HandleFunc("/healthz", h.healthz).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/auth/signup", h.signUp).Methods(http.MethodPost)
	r.HandleFunc("/auth/signin", h.signIn).Methods(http.MethodPost)
	r.HandleFunc("/auth/refresh", h.refresh).Methods(http.MethodPost)
	r.HandleFunc("/auth/reset-password", h.resetPassword).Methods(http.MethodPost)
	r.HandleFunc("/subscription-tiers", h.listTiers).Methods(http.MethodGet)

	r.HandleFunc("/auth/signout", h.signOut).Methods(http.MethodPost)

	r.HandleFunc("/teams", h.listTeams).Methods(http.MethodGet)
	r.HandleFunc("/teams", h.createTeam).Methods(http.MethodPost)
	// Fixed segments must land before the {id} routes swallow them.
	r.HandleFunc("/teams/subscription-tiers", h.listTiers).Methods(http.MethodGet)
	r.HandleFunc("/teams/slug/{slug}", h.getTeamBySlug).Methods(http.MethodGet)
	r.HandleFunc("/teams/{id}", h.getTeam).Methods(http.MethodGet)
	r.HandleFunc("/teams/{id}", h.updateTeam).Methods(http.MethodPut, http.MethodPatch)
	r.HandleFunc("/teams/{id}", h.deleteTeam).Methods(http.MethodDelete)

	r.HandleFunc("/teams/{id}/members", h.listMembers).Methods(http.MethodGet)
	r.HandleFunc("/teams/{id}/members", h.addMember).Methods(http.MethodPost)
	r.HandleFunc("/teams/{id}/members/{userId}", h.updateMemberRole).Methods(http.MethodPut, http.MethodPatch)
	r.HandleFunc("/teams/{id}/members/{userId}", h.removeMember).Methods(http.MethodDelete)

	r.HandleFunc("/teams/{id}/invitations", h.listInvitations).Methods(http.MethodGet)
	r.HandleFunc("/teams/{id}/invitations", h.createInvitation).Methods(http.MethodPost)
	r.HandleFunc("/teams/{id}/invitations/{invitationId}", h.deleteInvitation).Methods(http.MethodDelete)
	r.HandleFunc("/invitations/{token}", h.getInvitation).Methods(http.MethodGet)
	r.HandleFunc("/invitations/{token}/accept", h.acceptInvitation).Methods(http.MethodPost)

	r.HandleFunc("/teams/{id}/subscription", h.getSubscription).Methods(http.MethodGet)
	r.HandleFunc("/teams/{id}/subscription", h.changeSubscription).Methods(http.MethodPut)

	r.HandleFunc("/profile", h.getOwnProfile).Methods(http.MethodGet)
	r.HandleFunc("/profile", h.upsertProfile).Methods(http.MethodPut)
	r.HandleFunc("/profile", h.deleteProfile).Methods(http.MethodDelete)
	r.HandleFunc("/profiles/{username}", h.getProfileByUsername).Methods(http.MethodGet)
	r.HandleFunc("/username-available", h.usernameAvailable).Methods(http.MethodGet)

	return r
}

// SkipAuthPaths lists the routes the auth middleware lets through without a
// token.
func SkipAuthPaths() []string {
	return []string{
		"/healthz",
		"/metrics",
		"/auth/signup",
		"/auth/signin",
		"/auth/refresh",
		"/auth/reset-password",
		"/subscription-tiers",
	}
}

func (h *Handler) healthz(w http.ResponseWriter, r *http.Request) {
	status := map[string]string{"status": "ok"}
	if h.auth != nil {
		if err := h.auth.Health(r.Context()); err != nil {
			h.logger.WithError(err).Warn("backend health check failed")
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
			return
		}
	}
	writeJSON(w, http.StatusOK, status)
}

// Helpers ----------------------------------------------------------------

func decodeJSON(body io.ReadCloser, dst interface{}) error {
	defer body.Close()
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}

// writeDomainError maps domain sentinels onto HTTP statuses. Anything
// unrecognized is a 500 with a generic body so internals do not leak.
func (h *Handler) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, team.ErrNotFound), errors.Is(err, profile.ErrNotFound):
		writeError(w, http.StatusNotFound, err)
	case errors.Is(err, team.ErrForbidden):
		writeError(w, http.StatusForbidden, err)
	case errors.Is(err, team.ErrSlugTaken),
		errors.Is(err, team.ErrAlreadyMember),
		errors.Is(err, team.ErrInvitePending),
		errors.Is(err, profile.ErrUsernameTaken):
		writeError(w, http.StatusConflict, err)
	case errors.Is(err, team.ErrLastOwner),
		errors.Is(err, team.ErrPersonalTeam),
		errors.Is(err, team.ErrInvitationExpired),
		errors.Is(err, team.ErrInvalidRole),
		errors.Is(err, team.ErrMemberLimit):
		writeError(w, http.StatusBadRequest, err)
	default:
		h.logger.WithError(err).Error("request failed")
		writeError(w, http.StatusInternalServerError, errors.New("internal server error"))
	}
}
