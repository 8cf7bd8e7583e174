// ABOUTME: Realtime change-feed subscriber over the backend's websocket channel
// ABOUTME: Phoenix-framed join/heartbeat protocol delivering table insert events

package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	realtimePath = "/realtime/v1/websocket"
	writeTimeout = 10 * time.Second

	// heartbeatInterval is the default cadence; config can override it
	// via Client.SetHeartbeatInterval.
	heartbeatInterval = 30 * time.Second

	// eventBufferSize is the subscriber channel buffer. Events are dropped
	// when the consumer falls this far behind.
	eventBufferSize = 64
)

// InsertEvent is one row insertion delivered by the change feed.
type InsertEvent struct {
	Table  string
	Record json.RawMessage
}

// Subscription is a live change-feed subscription. Events stop and the
// channel closes when the connection drops or Close is called; there is
// no automatic reconnect.
type Subscription struct {
	events chan InsertEvent
	conn   *websocket.Conn
	topic  string

	closeOnce sync.Once
	done      chan struct{}
}

// Events returns the channel delivering insert events.
func (s *Subscription) Events() <-chan InsertEvent {
	return s.events
}

// Close tears down the subscription. Safe to call more than once; the
// underlying channel is released exactly once.
func (s *Subscription) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
		s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(writeTimeout))
		s.conn.Close()
	})
}

// phoenixFrame is the wire framing for the realtime channel protocol.
type phoenixFrame struct {
	Topic   string          `json:"topic"`
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
	Ref     string          `json:"ref"`
}

// changePayload is the payload of a postgres_changes event.
type changePayload struct {
	Data struct {
		Type   string          `json:"type"`
		Table  string          `json:"table"`
		Record json.RawMessage `json:"record"`
	} `json:"data"`
}

// SubscribeInserts opens a realtime subscription for insert events on the
// given table. The filter uses the backend's column=op.value syntax (for
// example "usuario_id=neq.<id>") and is applied server-side; pass empty
// for no filter.
func (c *Client) SubscribeInserts(ctx context.Context, table, filter string) (*Subscription, error) {
	wsURL, err := c.realtimeURL()
	if err != nil {
		return nil, err
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("dialing realtime endpoint: %w", err)
	}

	topic := "realtime:public:" + table
	sub := &Subscription{
		events: make(chan InsertEvent, eventBufferSize),
		conn:   conn,
		topic:  topic,
		done:   make(chan struct{}),
	}

	if err := c.joinChannel(conn, topic, table, filter); err != nil {
		conn.Close()
		return nil, err
	}

	go c.readLoop(sub, table)
	go c.heartbeatLoop(sub)

	c.logger.Info("realtime subscription opened", "table", table, "filter", filter)
	return sub, nil
}

// realtimeURL derives the websocket endpoint from the project URL.
func (c *Client) realtimeURL() (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("parsing backend url: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	default:
		return "", fmt.Errorf("unsupported backend scheme %q", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + realtimePath
	q := u.Query()
	q.Set("apikey", c.apiKey)
	q.Set("vsn", "1.0.0")
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// joinChannel sends the phx_join frame configuring the change listener.
func (c *Client) joinChannel(conn *websocket.Conn, topic, table, filter string) error {
	change := map[string]any{
		"event":  "INSERT",
		"schema": "public",
		"table":  table,
	}
	if filter != "" {
		change["filter"] = filter
	}
	payload := map[string]any{
		"config": map[string]any{
			"postgres_changes": []any{change},
		},
	}
	if token := c.AccessToken(); token != "" {
		payload["access_token"] = token
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding join payload: %w", err)
	}
	frame := phoenixFrame{
		Topic:   topic,
		Event:   "phx_join",
		Payload: raw,
		Ref:     uuid.New().String(),
	}

	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := conn.WriteJSON(frame); err != nil {
		return fmt.Errorf("joining channel %s: %w", topic, err)
	}
	return nil
}

// readLoop pumps frames off the connection and forwards insert events.
// On read failure the event channel closes and the loop ends; resuming is
// the caller's decision.
func (c *Client) readLoop(sub *Subscription, table string) {
	defer close(sub.events)

	for {
		var frame phoenixFrame
		if err := sub.conn.ReadJSON(&frame); err != nil {
			select {
			case <-sub.done:
				// Deliberate teardown, not an error.
			default:
				c.logger.Warn("realtime connection lost", "table", table, "error", err)
			}
			return
		}

		if frame.Event != "postgres_changes" {
			continue
		}

		var change changePayload
		if err := json.Unmarshal(frame.Payload, &change); err != nil {
			c.logger.Warn("undecodable change event", "table", table, "error", err)
			continue
		}
		if change.Data.Type != "INSERT" {
			continue
		}

		ev := InsertEvent{Table: change.Data.Table, Record: change.Data.Record}
		select {
		case sub.events <- ev:
		default:
			c.logger.Debug("dropped realtime event for slow consumer", "table", table)
		}
	}
}

// heartbeatLoop keeps the channel alive until teardown.
func (c *Client) heartbeatLoop(sub *Subscription) {
	ticker := time.NewTicker(c.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-sub.done:
			return
		case <-ticker.C:
			frame := phoenixFrame{
				Topic:   "phoenix",
				Event:   "heartbeat",
				Payload: json.RawMessage("{}"),
				Ref:     uuid.New().String(),
			}
			sub.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := sub.conn.WriteJSON(frame); err != nil {
				c.logger.Debug("heartbeat write failed", "error", err)
				return
			}
		}
	}
}
