// ABOUTME: Tests for the Conversation Aggregator
// ABOUTME: Verifies derivation, sorting, unread counts, and the empty-contract-set guard

package chat

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/movilplan/movilchat/internal/backend"
)

// mockStore implements Store for testing.
type mockStore struct {
	contracts    []Contract
	contractsErr error

	messages     []Message
	messagesErr  error
	messageCalls int

	byContract     map[string][]Message
	byContractErr  error
	selectionCalls int

	insertedMsg *Message
	insertErr   error
	insertCalls int
	insertText  string

	markReadCalls [][]string
	markReadErr   error
}

func (m *mockStore) ContractsForViewer(ctx context.Context, viewer Viewer) ([]Contract, error) {
	if m.contractsErr != nil {
		return nil, m.contractsErr
	}
	return m.contracts, nil
}

func (m *mockStore) MessagesForContracts(ctx context.Context, contractIDs []string) ([]Message, error) {
	m.messageCalls++
	if m.messagesErr != nil {
		return nil, m.messagesErr
	}
	return m.messages, nil
}

func (m *mockStore) ContractMessages(ctx context.Context, contractID string) ([]Message, error) {
	m.selectionCalls++
	if m.byContractErr != nil {
		return nil, m.byContractErr
	}
	return m.byContract[contractID], nil
}

func (m *mockStore) InsertMessage(ctx context.Context, contractID, authorID, text string) (*Message, error) {
	m.insertCalls++
	m.insertText = text
	if m.insertErr != nil {
		return nil, m.insertErr
	}
	if m.insertedMsg != nil {
		return m.insertedMsg, nil
	}
	return &Message{
		ID:             "generated",
		ContratacionID: contractID,
		UsuarioID:      authorID,
		Mensaje:        text,
		CreatedAt:      time.Now(),
	}, nil
}

func (m *mockStore) MarkRead(ctx context.Context, messageIDs []string) error {
	m.markReadCalls = append(m.markReadCalls, messageIDs)
	return m.markReadErr
}

// mockSession implements SessionSource for testing.
type mockSession struct {
	user *backend.User
	err  error
}

func (m *mockSession) CurrentUser(ctx context.Context) (*backend.User, error) {
	return m.user, m.err
}

func clientUser() *backend.User {
	return &backend.User{
		ID:    "client-1",
		Email: "maria@example.com",
	}
}

func ts(offset int) time.Time {
	return time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC).Add(time.Duration(offset) * time.Minute)
}

func TestAggregator_LoadConversations_OnePerContract(t *testing.T) {
	store := &mockStore{
		contracts: []Contract{
			{ID: "c1", Estado: StatusApproved, FechaContratacion: ts(0), UsuarioID: "client-1", AprobadoPor: "advisor-1", Plan: &Plan{NombreComercial: "Plan X", Precio: 25}},
			{ID: "c2", Estado: StatusPending, FechaContratacion: ts(5), UsuarioID: "client-1"},
		},
	}
	agg := NewAggregator(store, &mockSession{user: clientUser()}, nil)

	convs, err := agg.LoadConversations(context.Background())
	require.NoError(t, err)
	require.Len(t, convs, 2)

	ids := []string{convs[0].ID, convs[1].ID}
	assert.ElementsMatch(t, []string{"c1", "c2"}, ids)
}

func TestAggregator_LoadConversations_SortedByLastActivity(t *testing.T) {
	store := &mockStore{
		contracts: []Contract{
			{ID: "old", FechaContratacion: ts(0), UsuarioID: "client-1"},
			{ID: "busy", FechaContratacion: ts(1), UsuarioID: "client-1"},
			{ID: "recent", FechaContratacion: ts(10), UsuarioID: "client-1"},
		},
		messages: []Message{
			{ID: "m1", ContratacionID: "busy", UsuarioID: "advisor-1", Mensaje: "hola", CreatedAt: ts(30)},
		},
	}
	agg := NewAggregator(store, &mockSession{user: clientUser()}, nil)

	convs, err := agg.LoadConversations(context.Background())
	require.NoError(t, err)
	require.Len(t, convs, 3)

	// "busy" has the newest message, then the contracts by creation time.
	assert.Equal(t, "busy", convs[0].ID)
	assert.Equal(t, "recent", convs[1].ID)
	assert.Equal(t, "old", convs[2].ID)
}

func TestAggregator_LoadConversations_NoMessages(t *testing.T) {
	store := &mockStore{
		contracts: []Contract{
			{ID: "c1", Estado: StatusPending, FechaContratacion: ts(0), UsuarioID: "client-1"},
		},
	}
	agg := NewAggregator(store, &mockSession{user: clientUser()}, nil)

	convs, err := agg.LoadConversations(context.Background())
	require.NoError(t, err)
	require.Len(t, convs, 1)

	assert.Nil(t, convs[0].LastMessage)
	assert.Equal(t, 0, convs[0].UnreadCount)
	assert.Equal(t, ts(0), convs[0].LastActivity)
	assert.Equal(t, "Plan sin nombre", convs[0].PlanName)
}

func TestAggregator_LoadConversations_UnreadCount(t *testing.T) {
	store := &mockStore{
		contracts: []Contract{
			{ID: "c1", FechaContratacion: ts(0), UsuarioID: "client-1", AprobadoPor: "advisor-1"},
		},
		messages: []Message{
			{ID: "m1", ContratacionID: "c1", UsuarioID: "advisor-1", Leido: false, CreatedAt: ts(1)},
			{ID: "m2", ContratacionID: "c1", UsuarioID: "advisor-1", Leido: true, CreatedAt: ts(2)},
			{ID: "m3", ContratacionID: "c1", UsuarioID: "client-1", Leido: false, CreatedAt: ts(3)},
		},
	}
	agg := NewAggregator(store, &mockSession{user: clientUser()}, nil)

	convs, err := agg.LoadConversations(context.Background())
	require.NoError(t, err)
	require.Len(t, convs, 1)

	// Only the advisor's unread message counts; the viewer's own unread
	// message does not.
	assert.Equal(t, 1, convs[0].UnreadCount)
}

func TestAggregator_LoadConversations_EmptyContractSetSkipsMessageQuery(t *testing.T) {
	store := &mockStore{}
	agg := NewAggregator(store, &mockSession{user: clientUser()}, nil)

	convs, err := agg.LoadConversations(context.Background())
	require.NoError(t, err)
	assert.Empty(t, convs)
	assert.Equal(t, 0, store.messageCalls, "message query must not be issued for an empty contract set")
}

func TestAggregator_LoadConversations_NoUser(t *testing.T) {
	agg := NewAggregator(&mockStore{}, &mockSession{}, nil)

	_, err := agg.LoadConversations(context.Background())
	require.ErrorIs(t, err, backend.ErrNotAuthenticated)
}

func TestAggregator_LoadConversations_AuthErrorPropagates(t *testing.T) {
	agg := NewAggregator(&mockStore{}, &mockSession{err: backend.ErrNotAuthenticated}, nil)

	_, err := agg.LoadConversations(context.Background())
	require.ErrorIs(t, err, backend.ErrNotAuthenticated)
}

func TestAggregator_LoadConversations_QueryErrorPropagates(t *testing.T) {
	qerr := &backend.QueryError{Op: "select", Table: "contrataciones", Status: 500, Message: "boom"}
	agg := NewAggregator(&mockStore{contractsErr: qerr}, &mockSession{user: clientUser()}, nil)

	_, err := agg.LoadConversations(context.Background())
	require.Error(t, err)
	assert.True(t, backend.IsQueryError(err))
}

func TestAggregator_LoadConversations_ExampleScenario(t *testing.T) {
	// Viewer is the client on c1; advisor a1 approved it. m1 from the
	// advisor is unread, m2 from the client is read and newer.
	store := &mockStore{
		contracts: []Contract{
			{ID: "c1", Estado: StatusApproved, FechaContratacion: ts(0), UsuarioID: "client-1", AprobadoPor: "a1", Plan: &Plan{NombreComercial: "Plan X", Precio: 30}},
		},
		messages: []Message{
			{ID: "m1", ContratacionID: "c1", UsuarioID: "a1", Mensaje: "bienvenida", Leido: false, CreatedAt: ts(1)},
			{ID: "m2", ContratacionID: "c1", UsuarioID: "client-1", Mensaje: "gracias", Leido: true, CreatedAt: ts(2)},
		},
	}
	agg := NewAggregator(store, &mockSession{user: clientUser()}, nil)

	convs, err := agg.LoadConversations(context.Background())
	require.NoError(t, err)
	require.Len(t, convs, 1)

	conv := convs[0]
	assert.Equal(t, "Plan X", conv.PlanName)
	require.NotNil(t, conv.LastMessage)
	assert.Equal(t, "gracias", conv.LastMessage.Text)
	assert.True(t, conv.LastMessage.IsMine)
	assert.Equal(t, 1, conv.UnreadCount)
	assert.Equal(t, "a1", conv.OtherParty.ID)
	assert.Equal(t, labelAdvisor, conv.OtherParty.Name)
	assert.Equal(t, ts(2), conv.LastActivity)
}

func TestAggregator_LoadConversations_AdvisorSeesClientLabel(t *testing.T) {
	advisor := &backend.User{
		ID:       "advisor-1",
		Email:    "asesor@example.com",
		Metadata: backend.UserMetadata{TipoUsuario: "asesor"},
	}
	store := &mockStore{
		contracts: []Contract{
			{ID: "c1", FechaContratacion: ts(0), UsuarioID: "client-1", AprobadoPor: "advisor-1"},
		},
	}
	agg := NewAggregator(store, &mockSession{user: advisor}, nil)

	convs, err := agg.LoadConversations(context.Background())
	require.NoError(t, err)
	require.Len(t, convs, 1)

	assert.Equal(t, "client-1", convs[0].OtherParty.ID)
	assert.Equal(t, labelClient, convs[0].OtherParty.Name)
}

func TestAggregator_FindAndCache(t *testing.T) {
	store := &mockStore{
		contracts: []Contract{
			{ID: "c1", FechaContratacion: ts(0), UsuarioID: "client-1"},
		},
	}
	agg := NewAggregator(store, &mockSession{user: clientUser()}, nil)

	_, ok := agg.Find("c1")
	assert.False(t, ok, "nothing cached before the first load")

	_, err := agg.LoadConversations(context.Background())
	require.NoError(t, err)

	conv, ok := agg.Find("c1")
	require.True(t, ok)
	assert.Equal(t, "c1", conv.ID)

	viewer, ok := agg.Viewer()
	require.True(t, ok)
	assert.Equal(t, "client-1", viewer.ID)
	assert.Equal(t, "maria", viewer.Name, "display name falls back to the email local part")
}
