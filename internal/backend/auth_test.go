// ABOUTME: Tests for the auth endpoint client
// ABOUTME: Verifies sign-in, current-user resolution, and the unauthenticated paths

package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_SignIn_InstallsToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/auth/v1/token", r.URL.Path)
		require.Equal(t, "password", r.URL.Query().Get("grant_type"))

		var creds map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&creds))
		assert.Equal(t, "maria@example.com", creds["email"])

		json.NewEncoder(w).Encode(Session{
			AccessToken:  "tok-123",
			RefreshToken: "ref-123",
			ExpiresIn:    3600,
			User:         User{ID: "u1", Email: "maria@example.com"},
		})
	}))
	defer srv.Close()

	c := New(srv.URL, "anon-key", nil)
	sess, err := c.SignIn(context.Background(), "maria@example.com", "secret")
	require.NoError(t, err)
	assert.Equal(t, "tok-123", sess.AccessToken)
	assert.Equal(t, "u1", sess.User.ID)
	assert.Equal(t, "tok-123", c.AccessToken())
}

func TestClient_SignIn_BadCredentials(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error_code":"invalid_credentials","msg":"Invalid login credentials"}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "anon-key", nil)
	_, err := c.SignIn(context.Background(), "maria@example.com", "wrong")

	var ae *AuthError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, http.StatusBadRequest, ae.Status)
	assert.Equal(t, "Invalid login credentials", ae.Message)
	assert.Empty(t, c.AccessToken())
}

func TestClient_CurrentUser(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/auth/v1/user", r.URL.Path)
		assert.Equal(t, "Bearer tok-123", r.Header.Get("Authorization"))
		json.NewEncoder(w).Encode(User{
			ID:       "u1",
			Email:    "maria@example.com",
			Metadata: UserMetadata{TipoUsuario: "asesor", Nombres: "María"},
		})
	}))
	defer srv.Close()

	c := New(srv.URL, "anon-key", nil)
	c.SetAccessToken("tok-123")

	user, err := c.CurrentUser(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "u1", user.ID)
	assert.True(t, user.IsAdvisor())
	assert.Equal(t, "María", user.DisplayName())
}

func TestClient_CurrentUser_NoToken(t *testing.T) {
	c := New("http://unused", "anon-key", nil)
	_, err := c.CurrentUser(context.Background())
	require.ErrorIs(t, err, ErrNotAuthenticated)
}

func TestClient_CurrentUser_RejectedToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := New(srv.URL, "anon-key", nil)
	c.SetAccessToken("expired")

	_, err := c.CurrentUser(context.Background())
	require.ErrorIs(t, err, ErrNotAuthenticated)
}

func TestClient_SignOut_ClearsToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/auth/v1/logout", r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := New(srv.URL, "anon-key", nil)
	c.SetAccessToken("tok-123")
	require.NoError(t, c.SignOut(context.Background()))
	assert.Empty(t, c.AccessToken())
}

func TestClient_SignOut_NotSignedIn(t *testing.T) {
	c := New("http://unused", "anon-key", nil)
	require.ErrorIs(t, c.SignOut(context.Background()), ErrNotAuthenticated)
}

func TestUser_DisplayNameFallbacks(t *testing.T) {
	tests := []struct {
		name string
		user User
		want string
	}{
		{"stored names win", User{Email: "x@y.com", Metadata: UserMetadata{Nombres: "Ana"}}, "Ana"},
		{"full name next", User{Email: "x@y.com", Metadata: UserMetadata{FullName: "Ana López"}}, "Ana López"},
		{"email local part", User{Email: "ana.lopez@y.com"}, "ana.lopez"},
		{"generic fallback", User{}, "Usuario"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.user.DisplayName())
		})
	}
}
