package httpapi

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/teambase/teambase/internal/domain/team"
	"github.com/teambase/teambase/internal/middleware"
	teamsvc "github.com/teambase/teambase/internal/service/team"
)

func (h *Handler) listTeams(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r.Context())
	teams, err := h.teams.ListForUser(r.Context(), userID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	if teams == nil {
		teams = []team.Team{}
	}
	writeJSON(w, http.StatusOK, teams)
}

func (h *Handler) createTeam(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Name        string            `json:"name"`
		Slug        string            `json:"slug"`
		Description string            `json:"description"`
		LogoURL     string            `json:"logoUrl"`
		IsPersonal  bool              `json:"isPersonal"`
		Metadata    map[string]string `json:"metadata"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	created, err := h.teams.Create(r.Context(), middleware.UserID(r.Context()), teamsvc.CreateInput{
		Name:        payload.Name,
		Slug:        payload.Slug,
		Description: payload.Description,
		LogoURL:     payload.LogoURL,
		IsPersonal:  payload.IsPersonal,
		Metadata:    payload.Metadata,
	})
	if err != nil {
		if errors.Is(err, team.ErrSlugTaken) {
			h.writeDomainError(w, err)
			return
		}
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *Handler) getTeam(w http.ResponseWriter, r *http.Request) {
	teamID := mux.Vars(r)["id"]
	userID := middleware.UserID(r.Context())

	if err := h.teams.Authorize(r.Context(), teamID, userID, teamsvc.ActionView); err != nil {
		h.writeDomainError(w, err)
		return
	}
	t, err := h.teams.GetByID(r.Context(), teamID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *Handler) getTeamBySlug(w http.ResponseWriter, r *http.Request) {
	slug := mux.Vars(r)["slug"]
	userID := middleware.UserID(r.Context())

	t, err := h.teams.GetBySlug(r.Context(), slug)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	if err := h.teams.Authorize(r.Context(), t.ID, userID, teamsvc.ActionView); err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *Handler) updateTeam(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Name        *string           `json:"name"`
		Description *string           `json:"description"`
		LogoURL     *string           `json:"logoUrl"`
		Metadata    map[string]string `json:"metadata"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	updated, err := h.teams.Update(r.Context(), mux.Vars(r)["id"], middleware.UserID(r.Context()), teamsvc.UpdateInput{
		Name:        payload.Name,
		Description: payload.Description,
		LogoURL:     payload.LogoURL,
		Metadata:    payload.Metadata,
	})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *Handler) deleteTeam(w http.ResponseWriter, r *http.Request) {
	err := h.teams.Delete(r.Context(), mux.Vars(r)["id"], middleware.UserID(r.Context()))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Members ----------------------------------------------------------------

func (h *Handler) listMembers(w http.ResponseWriter, r *http.Request) {
	members, err := h.teams.ListMembers(r.Context(), mux.Vars(r)["id"], middleware.UserID(r.Context()))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	if members == nil {
		members = []team.Member{}
	}
	writeJSON(w, http.StatusOK, members)
}

func (h *Handler) addMember(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		UserID string    `json:"userId"`
		Role   team.Role `json:"role"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if payload.UserID == "" {
		writeError(w, http.StatusBadRequest, errors.New("userId is required"))
		return
	}
	if payload.Role == "" {
		payload.Role = team.RoleMember
	}

	m, err := h.teams.AddMember(r.Context(), mux.Vars(r)["id"], middleware.UserID(r.Context()), payload.UserID, payload.Role)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

func (h *Handler) updateMemberRole(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Role team.Role `json:"role"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	vars := mux.Vars(r)
	m, err := h.teams.UpdateMemberRole(r.Context(), vars["id"], middleware.UserID(r.Context()), vars["userId"], payload.Role)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (h *Handler) removeMember(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	err := h.teams.RemoveMember(r.Context(), vars["id"], middleware.UserID(r.Context()), vars["userId"])
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Invitations ------------------------------------------------------------

func (h *Handler) listInvitations(w http.ResponseWriter, r *http.Request) {
	invs, err := h.teams.ListInvitations(r.Context(), mux.Vars(r)["id"], middleware.UserID(r.Context()))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	if invs == nil {
		invs = []team.Invitation{}
	}
	writeJSON(w, http.StatusOK, invs)
}

func (h *Handler) createInvitation(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Email string    `json:"email"`
		Role  team.Role `json:"role"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if payload.Role == "" {
		payload.Role = team.RoleMember
	}

	inv, err := h.teams.Invite(r.Context(), mux.Vars(r)["id"], middleware.UserID(r.Context()), payload.Email, payload.Role)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, inv)
}

func (h *Handler) deleteInvitation(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	err := h.teams.DeleteInvitation(r.Context(), vars["id"], middleware.UserID(r.Context()), vars["invitationId"])
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) getInvitation(w http.ResponseWriter, r *http.Request) {
	inv, err := h.teams.GetInvitationByToken(r.Context(), mux.Vars(r)["token"])
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, inv)
}

func (h *Handler) acceptInvitation(w http.ResponseWriter, r *http.Request) {
	m, err := h.teams.AcceptInvitation(r.Context(), mux.Vars(r)["token"], middleware.UserID(r.Context()))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

// Subscription -----------------------------------------------------------

func (h *Handler) changeSubscription(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Tier           team.Tier `json:"tier"`
		SubscriptionID string    `json:"subscriptionId"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if !payload.Tier.Valid() {
		writeError(w, http.StatusBadRequest, errors.New("unknown subscription tier"))
		return
	}

	updated, err := h.teams.ChangeSubscription(r.Context(), mux.Vars(r)["id"], middleware.UserID(r.Context()), payload.Tier, payload.SubscriptionID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *Handler) getSubscription(w http.ResponseWriter, r *http.Request) {
	sub, err := h.teams.GetSubscription(r.Context(), mux.Vars(r)["id"], middleware.UserID(r.Context()))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sub)
}

func (h *Handler) listTiers(w http.ResponseWriter, r *http.Request) {
	teamPlansOnly := true
	if raw := r.URL.Query().Get("isTeamPlan"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, errors.New("isTeamPlan must be a boolean"))
			return
		}
		teamPlansOnly = v
	}
	tiers, err := h.teams.ListTiers(r.Context(), teamPlansOnly)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tiers)
}
