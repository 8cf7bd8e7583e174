// ABOUTME: Message Stream Controller for the selected conversation
// ABOUTME: Selection, optimistic send with draft restore, incoming appends, and read marking

package chat

import (
	"context"
	"log/slog"
	"strings"
	"sync"
)

// ConversationSource is the slice of the aggregator the controller uses:
// lookups against the last computed list and refresh triggering.
type ConversationSource interface {
	Find(id string) (Conversation, bool)
	LoadConversations(ctx context.Context) ([]Conversation, error)
}

// Controller manages the selected conversation's message stream.
type Controller struct {
	store  Store
	convs  ConversationSource
	logger *slog.Logger

	// onScroll fires whenever the view should jump to the newest message.
	onScroll func()

	mu       sync.Mutex
	closed   bool
	viewerID string
	selected *Conversation
	messages []Message
	draft    string
}

// NewController creates a controller. Pass nil logger for the default.
func NewController(store Store, convs ConversationSource, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		store:    store,
		convs:    convs,
		logger:   logger.With("component", "controller"),
		onScroll: func() {},
	}
}

// SetScrollHook installs the scroll-to-bottom side effect.
func (c *Controller) SetScrollHook(fn func()) {
	if fn == nil {
		fn = func() {}
	}
	c.mu.Lock()
	c.onScroll = fn
	c.mu.Unlock()
}

// SetViewer caches the authenticated user id. Send is a no-op until one
// is set.
func (c *Controller) SetViewer(userID string) {
	c.mu.Lock()
	c.viewerID = userID
	c.mu.Unlock()
}

// SelectConversation switches the stream to the given contract. Unknown
// ids are a no-op: the conversation must come from the aggregator's last
// computed list. The other party's unread messages are marked read on the
// backend only; the local copies keep their flags.
func (c *Controller) SelectConversation(ctx context.Context, contractID string) error {
	conv, ok := c.convs.Find(contractID)
	if !ok {
		return nil
	}

	messages, err := c.store.ContractMessages(ctx, contractID)
	if err != nil {
		return err
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.selected = &conv
	c.messages = messages
	viewerID := c.viewerID
	scroll := c.onScroll
	c.mu.Unlock()

	scroll()

	var unread []string
	for _, m := range messages {
		if !m.Leido && m.UsuarioID != viewerID {
			unread = append(unread, m.ID)
		}
	}
	if len(unread) > 0 {
		c.markRead(ctx, unread)
	}

	return nil
}

// Deselect returns to the conversation list.
func (c *Controller) Deselect() {
	c.mu.Lock()
	c.selected = nil
	c.messages = nil
	c.mu.Unlock()
}

// Selected returns the current conversation, if any.
func (c *Controller) Selected() (Conversation, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.selected == nil {
		return Conversation{}, false
	}
	return *c.selected, true
}

// Messages returns a copy of the current message stream.
func (c *Controller) Messages() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// SetDraft replaces the pending input text.
func (c *Controller) SetDraft(text string) {
	c.mu.Lock()
	c.draft = text
	c.mu.Unlock()
}

// Draft returns the pending input text.
func (c *Controller) Draft() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.draft
}

// Send inserts the draft as a new message. No-op when the draft is blank,
// nothing is selected, or no user id is cached. The draft is cleared
// before the insert goes out and restored only if the insert fails; a
// successful send appends the stored row and refreshes the conversation
// list.
func (c *Controller) Send(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	text := strings.TrimSpace(c.draft)
	if text == "" || c.selected == nil || c.viewerID == "" {
		c.mu.Unlock()
		return nil
	}
	contractID := c.selected.ID
	viewerID := c.viewerID
	c.draft = "" // cleared before the network call
	c.mu.Unlock()

	msg, err := c.store.InsertMessage(ctx, contractID, viewerID, text)
	if err != nil {
		// Restore the draft so the user can retry; the message was never
		// appended locally, so there is nothing to roll back.
		c.mu.Lock()
		if !c.closed {
			c.draft = text
		}
		c.mu.Unlock()
		return &SendError{Err: err}
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	if c.selected != nil && c.selected.ID == contractID {
		c.messages = append(c.messages, *msg)
	}
	scroll := c.onScroll
	c.mu.Unlock()

	scroll()

	// Keep the conversation list's last-message summary current. A failed
	// refresh does not fail the send.
	if _, err := c.convs.LoadConversations(ctx); err != nil {
		c.logger.Warn("conversation refresh after send failed", "error", err)
	}

	return nil
}

// HandleIncoming appends a realtime message when it belongs to the
// selected conversation and marks it read. Messages for other
// conversations leave the stream untouched.
func (c *Controller) HandleIncoming(ctx context.Context, msg Message) {
	c.mu.Lock()
	if c.closed || c.selected == nil || c.selected.ID != msg.ContratacionID {
		c.mu.Unlock()
		return
	}
	c.messages = append(c.messages, msg)
	scroll := c.onScroll
	c.mu.Unlock()

	scroll()
	c.markRead(ctx, []string{msg.ID})
}

// Close tears the controller down. Responses from in-flight requests are
// discarded after this point.
func (c *Controller) Close() {
	c.mu.Lock()
	c.closed = true
	c.selected = nil
	c.messages = nil
	c.mu.Unlock()
}

// markRead is best-effort: failures are logged, never surfaced.
func (c *Controller) markRead(ctx context.Context, ids []string) {
	if err := c.store.MarkRead(ctx, ids); err != nil {
		c.logger.Warn("marking messages read failed",
			"count", len(ids),
			"error", err)
	}
}
