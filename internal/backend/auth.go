// ABOUTME: Authentication operations against the backend's auth endpoint
// ABOUTME: Password sign-in/sign-up, session refresh, and current-user resolution

package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const authPath = "/auth/v1"

// User is the authenticated identity as the backend reports it.
type User struct {
	ID       string       `json:"id"`
	Email    string       `json:"email"`
	Metadata UserMetadata `json:"user_metadata"`
}

// UserMetadata carries the profile attributes attached at sign-up.
type UserMetadata struct {
	FullName    string `json:"full_name,omitempty"`
	Nombres     string `json:"nombres,omitempty"`
	Phone       string `json:"phone,omitempty"`
	TipoUsuario string `json:"tipo_usuario,omitempty"`
}

// IsAdvisor reports whether the user is flagged as a commercial advisor.
func (u *User) IsAdvisor() bool {
	return u.Metadata.TipoUsuario == "asesor"
}

// DisplayName resolves the user's visible name: stored names first, then
// the local part of the email, then a generic fallback.
func (u *User) DisplayName() string {
	if u.Metadata.Nombres != "" {
		return u.Metadata.Nombres
	}
	if u.Metadata.FullName != "" {
		return u.Metadata.FullName
	}
	if at := strings.Index(u.Email, "@"); at > 0 {
		return u.Email[:at]
	}
	return "Usuario"
}

// Session is the token bundle returned by a successful sign-in.
type Session struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	TokenType    string `json:"token_type"`
	User         User   `json:"user"`
}

// AuthError is the error document the auth endpoint returns on failure.
type AuthError struct {
	Status  int
	Code    string `json:"error_code"`
	Message string `json:"msg"`
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth failed: %s (status %d)", e.Message, e.Status)
}

// SignIn exchanges email/password for a session and installs the access
// token on the client.
func (c *Client) SignIn(ctx context.Context, email, password string) (*Session, error) {
	payload := map[string]string{"email": email, "password": password}
	var session Session
	if err := c.authPost(ctx, "/token?grant_type=password", payload, &session); err != nil {
		return nil, err
	}
	c.SetAccessToken(session.AccessToken)
	c.logger.Debug("signed in", "user_id", session.User.ID)
	return &session, nil
}

// SignUpOptions carries the metadata stored on the new account.
type SignUpOptions struct {
	FullName string
	Phone    string
}

// SignUp registers a new account. The backend sends the profile trigger;
// the caller is responsible for completing the profile row afterwards.
func (c *Client) SignUp(ctx context.Context, email, password string, opts SignUpOptions) (*Session, error) {
	payload := map[string]any{
		"email":    email,
		"password": password,
		"data": map[string]string{
			"full_name": opts.FullName,
			"phone":     opts.Phone,
		},
	}
	var session Session
	if err := c.authPost(ctx, "/signup", payload, &session); err != nil {
		return nil, err
	}
	if session.AccessToken != "" {
		c.SetAccessToken(session.AccessToken)
	}
	return &session, nil
}

// SignOut revokes the current session and clears the installed token.
func (c *Client) SignOut(ctx context.Context) error {
	if c.AccessToken() == "" {
		return ErrNotAuthenticated
	}
	err := c.authPost(ctx, "/logout", struct{}{}, nil)
	c.SetAccessToken("")
	return err
}

// RefreshSession exchanges a refresh token for a fresh session and
// installs the new access token.
func (c *Client) RefreshSession(ctx context.Context, refreshToken string) (*Session, error) {
	payload := map[string]string{"refresh_token": refreshToken}
	var session Session
	if err := c.authPost(ctx, "/token?grant_type=refresh_token", payload, &session); err != nil {
		return nil, err
	}
	c.SetAccessToken(session.AccessToken)
	return &session, nil
}

// CurrentUser resolves the signed-in user from the backend. Returns
// ErrNotAuthenticated when no token is installed or the token is rejected.
func (c *Client) CurrentUser(ctx context.Context) (*User, error) {
	if c.AccessToken() == "" {
		return nil, ErrNotAuthenticated
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+authPath+"/user", nil)
	if err != nil {
		return nil, err
	}
	c.applyHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching current user: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, ErrNotAuthenticated
	}
	if resp.StatusCode != http.StatusOK {
		return nil, c.authErr(resp)
	}

	var user User
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, fmt.Errorf("decoding user: %w", err)
	}
	return &user, nil
}

// authPost executes one POST against the auth endpoint.
func (c *Client) authPost(ctx context.Context, path string, payload, dest any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding auth request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+authPath+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	c.applyHeaders(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("auth request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return c.authErr(resp)
	}
	if dest == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(dest)
}

// authErr decodes an auth endpoint failure into an AuthError.
func (c *Client) authErr(resp *http.Response) error {
	ae := &AuthError{Status: resp.StatusCode}
	data, err := io.ReadAll(resp.Body)
	if err == nil && json.Unmarshal(data, ae) == nil && ae.Message != "" {
		return ae
	}
	ae.Message = strings.TrimSpace(string(data))
	if ae.Message == "" {
		ae.Message = http.StatusText(resp.StatusCode)
	}
	return ae
}
