package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// AuthClient handles the backend's auth subsystem. Password hashing, token
// issuance and refresh are all performed server-side.
type AuthClient struct {
	client *Client
}

// User is a backend auth user.
type User struct {
	ID           string         `json:"id"`
	Email        string         `json:"email"`
	Phone        string         `json:"phone,omitempty"`
	Role         string         `json:"role,omitempty"`
	AppMetadata  map[string]any `json:"app_metadata,omitempty"`
	UserMetadata map[string]any `json:"user_metadata,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// Session is an issued token pair.
type Session struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	ExpiresAt    int64  `json:"expires_at,omitempty"`
	RefreshToken string `json:"refresh_token"`
	User         *User  `json:"user,omitempty"`
}

// SignUp registers a new user and returns the initial session.
func (a *AuthClient) SignUp(ctx context.Context, email, password string, data map[string]any) (*Session, error) {
	payload := map[string]any{
		"email":    email,
		"password": password,
	}
	if len(data) > 0 {
		payload["data"] = data
	}
	return a.sessionRequest(ctx, "/auth/v1/signup", payload)
}

// SignInWithPassword authenticates with email and password.
func (a *AuthClient) SignInWithPassword(ctx context.Context, email, password string) (*Session, error) {
	return a.sessionRequest(ctx, "/auth/v1/token?grant_type=password", map[string]any{
		"email":    email,
		"password": password,
	})
}

// RefreshToken exchanges a refresh token for a fresh session.
func (a *AuthClient) RefreshToken(ctx context.Context, refreshToken string) (*Session, error) {
	return a.sessionRequest(ctx, "/auth/v1/token?grant_type=refresh_token", map[string]any{
		"refresh_token": refreshToken,
	})
}

// GetUser resolves an access token to the user it belongs to.
func (a *AuthClient) GetUser(ctx context.Context, accessToken string) (*User, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.client.baseURL+"/auth/v1/user", nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	a.client.setHeaders(req, accessToken)

	resp, err := a.client.do(req)
	if err != nil {
		return nil, err
	}

	var user User
	if err := resp.JSON(&user); err != nil {
		return nil, fmt.Errorf("unmarshal user: %w", err)
	}
	return &user, nil
}

// SignOut revokes the session behind an access token.
func (a *AuthClient) SignOut(ctx context.Context, accessToken string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.client.baseURL+"/auth/v1/logout", nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	a.client.setHeaders(req, accessToken)

	_, err = a.client.do(req)
	return err
}

// ResetPasswordForEmail triggers the backend's password-recovery mail.
func (a *AuthClient) ResetPasswordForEmail(ctx context.Context, email string) error {
	body, err := marshalBody(map[string]string{"email": email})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.client.baseURL+"/auth/v1/recover", strings.NewReader(string(body)))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	a.client.setHeaders(req, "")
	req.Header.Set("Content-Type", "application/json")

	_, err = a.client.do(req)
	return err
}

// AdminGetUser looks up a user by ID with the service-role key.
func (a *AuthClient) AdminGetUser(ctx context.Context, userID string) (*User, error) {
	admin, err := a.client.Admin()
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, admin.baseURL+"/auth/v1/admin/users/"+userID, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	admin.setHeaders(req, "")

	resp, err := admin.do(req)
	if err != nil {
		return nil, err
	}

	var user User
	if err := resp.JSON(&user); err != nil {
		return nil, fmt.Errorf("unmarshal user: %w", err)
	}
	return &user, nil
}

// AdminDeleteUser deletes a user with the service-role key. The backend
// cascades the deletion down to profile and membership rows.
func (a *AuthClient) AdminDeleteUser(ctx context.Context, userID string) error {
	admin, err := a.client.Admin()
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, admin.baseURL+"/auth/v1/admin/users/"+userID, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	admin.setHeaders(req, "")

	_, err = admin.do(req)
	return err
}

func (a *AuthClient) sessionRequest(ctx context.Context, path string, payload map[string]any) (*Session, error) {
	body, err := marshalBody(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.client.baseURL+path, strings.NewReader(string(body)))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	a.client.setHeaders(req, "")
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.do(req)
	if err != nil {
		return nil, err
	}

	var session Session
	if err := json.Unmarshal(resp.Body, &session); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	return &session, nil
}
