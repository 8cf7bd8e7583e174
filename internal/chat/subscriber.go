// ABOUTME: Realtime Subscriber driving incremental chat updates
// ABOUTME: One subscribe-once lifecycle feeding the controller and refreshing the conversation list

package chat

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
)

// ErrAlreadySubscribed is returned when Start is called on a running
// subscriber. The lifecycle is subscribe-once: teardown is the only way
// back to the unsubscribed state.
var ErrAlreadySubscribed = errors.New("already subscribed")

// MessageSink receives inbound realtime messages.
type MessageSink interface {
	HandleIncoming(ctx context.Context, msg Message)
}

// Refresher recomputes the conversation list.
type Refresher interface {
	LoadConversations(ctx context.Context) ([]Conversation, error)
}

// Subscriber owns the single realtime subscription on message inserts.
// There is no reconnect: when the feed drops, events stop until a new
// subscriber is started. Reconnect handling is an extension point.
type Subscriber struct {
	feed      MessageFeed
	sink      MessageSink
	refresher Refresher
	logger    *slog.Logger

	mu        sync.Mutex
	sub       Subscription
	closeOnce sync.Once
}

// NewSubscriber creates a subscriber. Pass nil logger for the default.
func NewSubscriber(feed MessageFeed, sink MessageSink, refresher Refresher, logger *slog.Logger) *Subscriber {
	if logger == nil {
		logger = slog.Default()
	}
	return &Subscriber{
		feed:      feed,
		sink:      sink,
		refresher: refresher,
		logger:    logger.With("component", "subscriber"),
	}
}

// Start opens the subscription for the given viewer and begins dispatching
// events. A single transition: calling Start on a live subscriber fails.
func (s *Subscriber) Start(ctx context.Context, viewerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sub != nil {
		return ErrAlreadySubscribed
	}

	sub, err := s.feed.SubscribeMessageInserts(ctx, viewerID)
	if err != nil {
		return err
	}
	s.sub = sub

	go s.run(ctx, sub)
	return nil
}

// run dispatches events until the feed's channel closes.
func (s *Subscriber) run(ctx context.Context, sub Subscription) {
	for ev := range sub.Events() {
		var msg Message
		if err := json.Unmarshal(ev.Record, &msg); err != nil {
			s.logger.Warn("undecodable message event", "error", err)
			continue
		}

		// The controller decides whether the message belongs to the
		// selected conversation; the list refresh happens either way.
		s.sink.HandleIncoming(ctx, msg)

		if _, err := s.refresher.LoadConversations(ctx); err != nil {
			s.logger.Warn("conversation refresh after event failed", "error", err)
		}
	}
	s.logger.Debug("realtime feed ended")
}

// Close releases the subscription exactly once. Safe on a never-started
// subscriber.
func (s *Subscriber) Close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		sub := s.sub
		s.mu.Unlock()

		if sub != nil {
			sub.Close()
		}
	})
}
