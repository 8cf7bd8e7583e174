// ABOUTME: Profile row operations over the backend row API
// ABOUTME: Get/Update plus trigger-race-tolerant Ensure after signup

package profile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/movilplan/movilchat/internal/backend"
)

const table = "perfiles"

// ErrProfileNotFound is returned when a user id has no profile row.
var ErrProfileNotFound = errors.New("profile not found")

// Profile is a row of the perfiles table. The id matches the auth
// user id.
type Profile struct {
	ID               string `json:"id"`
	Email            string `json:"email"`
	Rol              string `json:"rol,omitempty"`
	NombresCompletos string `json:"nombres_completos,omitempty"`
	Telefono         string `json:"telefono,omitempty"`
	CreatedAt        string `json:"created_at,omitempty"`
	UpdatedAt        string `json:"updated_at,omitempty"`
}

// Service exposes profile operations.
type Service struct {
	client *backend.Client
	logger *slog.Logger
}

// NewService creates a profile service over the given backend client.
func NewService(client *backend.Client) *Service {
	return &Service{
		client: client,
		logger: slog.Default().With("component", "profile"),
	}
}

// Get returns the profile for a user id, or ErrProfileNotFound.
func (s *Service) Get(ctx context.Context, userID string) (*Profile, error) {
	q := backend.Query{Filters: []backend.Filter{backend.Eq("id", userID)}, Limit: 1}

	var profiles []Profile
	if err := s.client.Select(ctx, table, q, &profiles); err != nil {
		return nil, fmt.Errorf("fetching profile %s: %w", userID, err)
	}
	if len(profiles) == 0 {
		return nil, ErrProfileNotFound
	}
	return &profiles[0], nil
}

// Update patches name and phone on an existing profile and stamps
// updated_at. Empty fields are left untouched.
func (s *Service) Update(ctx context.Context, userID, nombres, telefono string) (*Profile, error) {
	patch := map[string]any{
		"updated_at": time.Now().UTC().Format(time.RFC3339),
	}
	if nombres != "" {
		patch["nombres_completos"] = nombres
	}
	if telefono != "" {
		patch["telefono"] = telefono
	}

	var updated []Profile
	filters := []backend.Filter{backend.Eq("id", userID)}
	if err := s.client.Update(ctx, table, patch, filters, &updated); err != nil {
		return nil, fmt.Errorf("updating profile %s: %w", userID, err)
	}
	if len(updated) == 0 {
		return nil, ErrProfileNotFound
	}

	s.logger.Debug("profile updated", "user_id", userID)
	return &updated[0], nil
}

// Ensure makes sure a profile row exists after signup. The backend's
// signup trigger usually creates the row first; when it has, Ensure
// just fills in the extra fields. When it hasn't yet, Ensure inserts
// the row itself, and if that insert collides with the trigger it
// falls back to updating.
func (s *Service) Ensure(ctx context.Context, userID, email, nombres, telefono string) (*Profile, error) {
	existing, err := s.Get(ctx, userID)
	if err == nil {
		if nombres == "" && telefono == "" {
			return existing, nil
		}
		return s.Update(ctx, userID, nombres, telefono)
	}
	if !errors.Is(err, ErrProfileNotFound) {
		return nil, err
	}

	now := time.Now().UTC().Format(time.RFC3339)
	row := map[string]any{
		"id":         userID,
		"email":      email,
		"created_at": now,
		"updated_at": now,
	}
	if nombres != "" {
		row["nombres_completos"] = nombres
	}
	if telefono != "" {
		row["telefono"] = telefono
	}

	var created []Profile
	if err := s.client.Insert(ctx, table, []map[string]any{row}, &created); err != nil {
		// The trigger may have created the row between our check and the
		// insert. A conflict means it exists now, so update instead.
		var qe *backend.QueryError
		if errors.As(err, &qe) && qe.Status == 409 {
			s.logger.Debug("profile insert lost race, updating", "user_id", userID)
			return s.Update(ctx, userID, nombres, telefono)
		}
		return nil, fmt.Errorf("creating profile %s: %w", userID, err)
	}
	if len(created) == 0 {
		return nil, fmt.Errorf("creating profile %s: backend returned no row", userID)
	}

	s.logger.Info("profile created", "user_id", userID)
	return &created[0], nil
}
