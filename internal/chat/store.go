// ABOUTME: Store interface the chat layer needs plus its backend-gateway implementation
// ABOUTME: Maps conversation/message operations onto row queries against the hosted tables

package chat

import (
	"context"

	"github.com/movilplan/movilchat/internal/backend"
)

// Backend table names for the chat domain.
const (
	tableContracts = "contrataciones"
	tableMessages  = "mensajes_chat"
)

// contractColumns projects contract rows joined with the plan's commercial
// fields.
const contractColumns = "id,estado,fecha_contratacion,usuario_id,aprobado_por,plan:plan_id(nombre_comercial,precio)"

// Store defines what the chat layer needs from the backend.
type Store interface {
	// ContractsForViewer returns the viewer's contracts (by advisor
	// assignment or by client ownership), newest first.
	ContractsForViewer(ctx context.Context, viewer Viewer) ([]Contract, error)

	// MessagesForContracts returns every message belonging to the given
	// contracts. An empty id set returns an empty slice without querying.
	MessagesForContracts(ctx context.Context, contractIDs []string) ([]Message, error)

	// ContractMessages returns one contract's messages oldest first.
	ContractMessages(ctx context.Context, contractID string) ([]Message, error)

	// InsertMessage creates an unread message and returns the stored row.
	InsertMessage(ctx context.Context, contractID, authorID, text string) (*Message, error)

	// MarkRead flips the read flag on the given messages.
	MarkRead(ctx context.Context, messageIDs []string) error
}

// SessionSource resolves the signed-in user.
type SessionSource interface {
	CurrentUser(ctx context.Context) (*backend.User, error)
}

// Subscription is the slice of a realtime subscription the chat layer
// consumes.
type Subscription interface {
	Events() <-chan backend.InsertEvent
	Close()
}

// MessageFeed opens realtime subscriptions on message inserts.
type MessageFeed interface {
	// SubscribeMessageInserts delivers inserts on the message table,
	// server-side filtered to exclude rows authored by viewerID.
	SubscribeMessageInserts(ctx context.Context, viewerID string) (Subscription, error)
}

// BackendStore implements Store and MessageFeed over the backend client.
type BackendStore struct {
	client *backend.Client
}

// NewBackendStore wraps the shared backend client.
func NewBackendStore(client *backend.Client) *BackendStore {
	return &BackendStore{client: client}
}

// ContractsForViewer queries contracts filtered by role: advisors see the
// contracts they approved, clients the ones they own.
func (s *BackendStore) ContractsForViewer(ctx context.Context, viewer Viewer) ([]Contract, error) {
	column := "usuario_id"
	if viewer.Advisor {
		column = "aprobado_por"
	}

	var contracts []Contract
	err := s.client.Select(ctx, tableContracts, backend.Query{
		Columns:    contractColumns,
		Filters:    []backend.Filter{backend.Eq(column, viewer.ID)},
		OrderBy:    "fecha_contratacion",
		Descending: true,
	}, &contracts)
	if err != nil {
		return nil, err
	}
	return contracts, nil
}

// MessagesForContracts fetches all messages across the given contracts.
func (s *BackendStore) MessagesForContracts(ctx context.Context, contractIDs []string) ([]Message, error) {
	var messages []Message
	err := s.client.Select(ctx, tableMessages, backend.Query{
		Filters: []backend.Filter{backend.In("contratacion_id", contractIDs)},
	}, &messages)
	if err != nil {
		return nil, err
	}
	return messages, nil
}

// ContractMessages fetches one contract's messages in ascending creation
// order.
func (s *BackendStore) ContractMessages(ctx context.Context, contractID string) ([]Message, error) {
	var messages []Message
	err := s.client.Select(ctx, tableMessages, backend.Query{
		Filters: []backend.Filter{backend.Eq("contratacion_id", contractID)},
		OrderBy: "created_at",
	}, &messages)
	if err != nil {
		return nil, err
	}
	return messages, nil
}

// InsertMessage creates the message row and returns the backend's stored
// representation.
func (s *BackendStore) InsertMessage(ctx context.Context, contractID, authorID, text string) (*Message, error) {
	row := map[string]any{
		"contratacion_id": contractID,
		"usuario_id":      authorID,
		"mensaje":         text,
		"leido":           false,
	}

	var inserted []Message
	if err := s.client.Insert(ctx, tableMessages, []map[string]any{row}, &inserted); err != nil {
		return nil, err
	}
	if len(inserted) == 0 {
		return nil, &backend.QueryError{Op: "insert", Table: tableMessages, Message: "no row returned"}
	}
	return &inserted[0], nil
}

// MarkRead flips leido on the given messages in one batch update.
func (s *BackendStore) MarkRead(ctx context.Context, messageIDs []string) error {
	patch := map[string]any{"leido": true}
	filters := []backend.Filter{backend.In("id", messageIDs)}
	return s.client.Update(ctx, tableMessages, patch, filters, nil)
}

// SubscribeMessageInserts opens the realtime feed on message inserts,
// excluding the viewer's own rows server-side.
func (s *BackendStore) SubscribeMessageInserts(ctx context.Context, viewerID string) (Subscription, error) {
	return s.client.SubscribeInserts(ctx, tableMessages, "usuario_id=neq."+viewerID)
}
