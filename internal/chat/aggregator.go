// ABOUTME: Conversation Aggregator deriving the per-user conversation list
// ABOUTME: Combines contracts, messages, and profile lookups into a sorted in-memory view

package chat

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"github.com/movilplan/movilchat/internal/backend"
)

// Role fallback labels used when the other party's profile cannot be
// resolved.
const (
	labelAdvisor = "Asesor"
	labelClient  = "Cliente"
)

// Aggregator derives the viewer's conversation list. The list is a pure
// function of (contracts, messages, profiles, viewer); the aggregator
// only caches the last computed result so the controller can look
// conversations up by id.
type Aggregator struct {
	store  Store
	users  SessionSource
	logger *slog.Logger

	mu            sync.RWMutex
	conversations []Conversation
	viewer        *Viewer
}

// NewAggregator creates an aggregator. Pass nil logger for the default.
func NewAggregator(store Store, users SessionSource, logger *slog.Logger) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{
		store:  store,
		users:  users,
		logger: logger.With("component", "aggregator"),
	}
}

// LoadConversations recomputes the conversation list from the backend.
// Fails with backend.ErrNotAuthenticated when no user is signed in and
// with *backend.QueryError when a query fails; the caller owns the
// user-visible reporting.
func (a *Aggregator) LoadConversations(ctx context.Context) ([]Conversation, error) {
	user, err := a.users.CurrentUser(ctx)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, backend.ErrNotAuthenticated
	}

	viewer := Viewer{
		ID:      user.ID,
		Name:    user.DisplayName(),
		Email:   user.Email,
		Advisor: user.IsAdvisor(),
	}

	contracts, err := a.store.ContractsForViewer(ctx, viewer)
	if err != nil {
		return nil, err
	}

	// Never issue a message query for an empty contract set.
	var messages []Message
	if len(contracts) > 0 {
		ids := make([]string, len(contracts))
		for i, c := range contracts {
			ids[i] = c.ID
		}
		messages, err = a.store.MessagesForContracts(ctx, ids)
		if err != nil {
			return nil, err
		}
	}

	// Only the viewer's own profile is resolvable from the session; other
	// participants fall back to role labels until the backend grows a
	// batch profile lookup.
	profiles := map[string]Profile{
		viewer.ID: {ID: viewer.ID, Name: viewer.Name, Email: viewer.Email},
	}

	conversations := buildConversations(contracts, messages, profiles, viewer)

	a.mu.Lock()
	a.conversations = conversations
	a.viewer = &viewer
	a.mu.Unlock()

	a.logger.Debug("conversations loaded",
		"viewer_id", viewer.ID,
		"advisor", viewer.Advisor,
		"count", len(conversations))

	return conversations, nil
}

// Conversations returns a copy of the last computed list.
func (a *Aggregator) Conversations() []Conversation {
	a.mu.RLock()
	defer a.mu.RUnlock()

	out := make([]Conversation, len(a.conversations))
	copy(out, a.conversations)
	return out
}

// Find looks a conversation up by contract id in the last computed list.
func (a *Aggregator) Find(id string) (Conversation, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	for _, c := range a.conversations {
		if c.ID == id {
			return c, true
		}
	}
	return Conversation{}, false
}

// Viewer returns the viewer resolved by the last successful load.
func (a *Aggregator) Viewer() (Viewer, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.viewer == nil {
		return Viewer{}, false
	}
	return *a.viewer, true
}

// buildConversations computes the derived view. Pure: no backend calls,
// no shared state.
func buildConversations(contracts []Contract, messages []Message, profiles map[string]Profile, viewer Viewer) []Conversation {
	byContract := make(map[string][]Message, len(contracts))
	for _, m := range messages {
		byContract[m.ContratacionID] = append(byContract[m.ContratacionID], m)
	}

	conversations := make([]Conversation, 0, len(contracts))
	for _, contract := range contracts {
		msgs := byContract[contract.ID]

		var last *Message
		for i := range msgs {
			if last == nil || msgs[i].CreatedAt.After(last.CreatedAt) {
				last = &msgs[i]
			}
		}

		unread := 0
		for _, m := range msgs {
			if !m.Leido && m.UsuarioID != viewer.ID {
				unread++
			}
		}

		isClient := contract.UsuarioID == viewer.ID
		otherID := contract.AprobadoPor
		fallback := labelAdvisor
		if !isClient {
			otherID = contract.UsuarioID
			fallback = labelClient
		}

		party := Party{ID: otherID, Name: fallback}
		if p, ok := profiles[otherID]; ok {
			party.Name = p.Name
			party.Email = p.Email
		}

		planName := "Plan sin nombre"
		if contract.Plan != nil && contract.Plan.NombreComercial != "" {
			planName = contract.Plan.NombreComercial
		}

		conv := Conversation{
			ID:           contract.ID,
			PlanName:     planName,
			UnreadCount:  unread,
			OtherParty:   party,
			Status:       contract.Estado,
			LastActivity: contract.FechaContratacion,
		}
		if last != nil {
			conv.LastMessage = &LastMessage{
				Text:   last.Mensaje,
				SentAt: last.CreatedAt,
				IsMine: last.UsuarioID == viewer.ID,
			}
			conv.LastActivity = last.CreatedAt
		}

		conversations = append(conversations, conv)
	}

	// Newest activity first; ties keep input order.
	sort.SliceStable(conversations, func(i, j int) bool {
		return conversations[i].LastActivity.After(conversations[j].LastActivity)
	})

	return conversations
}
