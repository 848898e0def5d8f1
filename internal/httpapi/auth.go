package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/teambase/teambase/internal/middleware"
)

// The auth endpoints proxy the managed auth API so browsers only ever talk
// to this service. Failures from the backend surface as 401s with the
// backend's message.

func (h *Handler) signUp(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Email    string         `json:"email"`
		Password string         `json:"password"`
		Metadata map[string]any `json:"metadata"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if payload.Email == "" || payload.Password == "" {
		writeError(w, http.StatusBadRequest, errors.New("email and password are required"))
		return
	}

	session, err := h.auth.Auth().SignUp(r.Context(), payload.Email, payload.Password, payload.Metadata)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusCreated, session)
}

func (h *Handler) signIn(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	session, err := h.auth.Auth().SignInWithPassword(r.Context(), payload.Email, payload.Password)
	if err != nil {
		writeError(w, http.StatusUnauthorized, errors.New("invalid email or password"))
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (h *Handler) refresh(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		RefreshToken string `json:"refreshToken"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if payload.RefreshToken == "" {
		writeError(w, http.StatusBadRequest, errors.New("refreshToken is required"))
		return
	}

	session, err := h.auth.Auth().RefreshToken(r.Context(), payload.RefreshToken)
	if err != nil {
		writeError(w, http.StatusUnauthorized, errors.New("invalid or expired refresh token"))
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (h *Handler) signOut(w http.ResponseWriter, r *http.Request) {
	token := middleware.AccessToken(r.Context())
	if token == "" {
		// Fall back to the raw header for completeness.
		parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
		if len(parts) == 2 {
			token = parts[1]
		}
	}
	if err := h.auth.Auth().SignOut(r.Context(), token); err != nil {
		h.logger.WithError(err).Warn("sign-out failed")
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) resetPassword(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Email string `json:"email"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if payload.Email == "" {
		writeError(w, http.StatusBadRequest, errors.New("email is required"))
		return
	}

	// Always 204: whether the address exists is not disclosed.
	if err := h.auth.Auth().ResetPasswordForEmail(r.Context(), payload.Email); err != nil {
		h.logger.WithError(err).Warn("password reset request failed")
	}
	w.WriteHeader(http.StatusNoContent)
}
