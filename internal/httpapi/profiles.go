package httpapi

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/teambase/teambase/internal/middleware"
	profilesvc "github.com/teambase/teambase/internal/service/profile"
)

func (h *Handler) getOwnProfile(w http.ResponseWriter, r *http.Request) {
	p, err := h.profiles.Get(r.Context(), middleware.UserID(r.Context()))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *Handler) upsertProfile(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Username  *string `json:"username"`
		FullName  *string `json:"fullName"`
		AvatarURL *string `json:"avatarUrl"`
		Website   *string `json:"website"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	p, err := h.profiles.Upsert(r.Context(), middleware.UserID(r.Context()), profilesvc.UpdateInput{
		Username:  payload.Username,
		FullName:  payload.FullName,
		AvatarURL: payload.AvatarURL,
		Website:   payload.Website,
	})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *Handler) deleteProfile(w http.ResponseWriter, r *http.Request) {
	if err := h.profiles.Delete(r.Context(), middleware.UserID(r.Context())); err != nil {
		h.writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) getProfileByUsername(w http.ResponseWriter, r *http.Request) {
	p, err := h.profiles.GetByUsername(r.Context(), mux.Vars(r)["username"])
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *Handler) usernameAvailable(w http.ResponseWriter, r *http.Request) {
	username := r.URL.Query().Get("username")
	if username == "" {
		writeError(w, http.StatusBadRequest, errors.New("username query parameter is required"))
		return
	}
	available, err := h.profiles.IsUsernameAvailable(r.Context(), username)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"available": available})
}
