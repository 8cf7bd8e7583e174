// ABOUTME: Tests for the realtime change-feed subscriber
// ABOUTME: Verifies join framing, insert delivery, and exactly-once teardown

package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var upgrader = websocket.Upgrader{}

// realtimeServer upgrades one connection, captures the join frame, and
// hands the connection to the test.
func realtimeServer(t *testing.T, handle func(conn *websocket.Conn, join phoenixFrame)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/realtime/v1/websocket", r.URL.Path)
		require.Equal(t, "anon-key", r.URL.Query().Get("apikey"))

		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()

		var join phoenixFrame
		require.NoError(t, conn.ReadJSON(&join))
		require.Equal(t, "phx_join", join.Event)

		handle(conn, join)
	}))
}

func changeFrame(t *testing.T, topic, changeType string, record any) phoenixFrame {
	t.Helper()
	recJSON, err := json.Marshal(record)
	require.NoError(t, err)

	var payload changePayload
	payload.Data.Type = changeType
	payload.Data.Table = "mensajes_chat"
	payload.Data.Record = recJSON
	raw, err := json.Marshal(payload)
	require.NoError(t, err)

	return phoenixFrame{Topic: topic, Event: "postgres_changes", Payload: raw, Ref: "1"}
}

func TestClient_SubscribeInserts_DeliversEvents(t *testing.T) {
	done := make(chan struct{})
	srv := realtimeServer(t, func(conn *websocket.Conn, join phoenixFrame) {
		assert.Equal(t, "realtime:public:mensajes_chat", join.Topic)

		var cfg struct {
			Config struct {
				Changes []map[string]any `json:"postgres_changes"`
			} `json:"config"`
		}
		require.NoError(t, json.Unmarshal(join.Payload, &cfg))
		require.Len(t, cfg.Config.Changes, 1)
		assert.Equal(t, "INSERT", cfg.Config.Changes[0]["event"])
		assert.Equal(t, "usuario_id=neq.u1", cfg.Config.Changes[0]["filter"])

		require.NoError(t, conn.WriteJSON(changeFrame(t, join.Topic, "INSERT",
			map[string]any{"id": "m1", "mensaje": "hola"})))
		// UPDATE events are filtered out client-side.
		require.NoError(t, conn.WriteJSON(changeFrame(t, join.Topic, "UPDATE",
			map[string]any{"id": "m2"})))
		<-done
	})
	defer srv.Close()
	defer close(done)

	c := New(srv.URL, "anon-key", nil)
	sub, err := c.SubscribeInserts(context.Background(), "mensajes_chat", "usuario_id=neq.u1")
	require.NoError(t, err)
	defer sub.Close()

	select {
	case ev := <-sub.Events():
		assert.Equal(t, "mensajes_chat", ev.Table)
		var rec map[string]any
		require.NoError(t, json.Unmarshal(ev.Record, &rec))
		assert.Equal(t, "m1", rec["id"])
	case <-time.After(2 * time.Second):
		t.Fatal("no event delivered")
	}

	// The UPDATE frame must not surface.
	select {
	case ev, ok := <-sub.Events():
		if ok {
			t.Fatalf("unexpected event: %+v", ev)
		}
	case <-time.After(100 * time.Millisecond):
	}
}

func TestSubscription_CloseIsIdempotent(t *testing.T) {
	srv := realtimeServer(t, func(conn *websocket.Conn, join phoenixFrame) {
		// Hold the connection until the client hangs up.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
	defer srv.Close()

	c := New(srv.URL, "anon-key", nil)
	sub, err := c.SubscribeInserts(context.Background(), "mensajes_chat", "")
	require.NoError(t, err)

	sub.Close()
	sub.Close() // must not panic

	// The event channel drains and closes after teardown.
	select {
	case _, ok := <-sub.Events():
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("event channel never closed")
	}
}

func TestClient_SubscribeInserts_ConnectionLostClosesChannel(t *testing.T) {
	srv := realtimeServer(t, func(conn *websocket.Conn, join phoenixFrame) {
		conn.Close()
	})
	defer srv.Close()

	c := New(srv.URL, "anon-key", nil)
	sub, err := c.SubscribeInserts(context.Background(), "mensajes_chat", "")
	require.NoError(t, err)
	defer sub.Close()

	select {
	case _, ok := <-sub.Events():
		assert.False(t, ok, "channel closes when the feed drops; no reconnect")
	case <-time.After(2 * time.Second):
		t.Fatal("event channel never closed")
	}
}

func TestClient_SubscribeInserts_BadScheme(t *testing.T) {
	c := New("ftp://example.com", "anon-key", nil)
	_, err := c.SubscribeInserts(context.Background(), "mensajes_chat", "")
	require.Error(t, err)
}
