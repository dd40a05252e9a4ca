package store

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"rental-chat/models"
)

// ErrConversationClosed is returned when appending to a torn-down
// conversation. Late NLU replies hit this and are discarded.
var ErrConversationClosed = errors.New("conversation closed")

// watchBuffer is the per-watcher channel depth. A watcher that falls this
// far behind is closed rather than left with a gap; the consumer re-reads
// the snapshot and watches again.
const watchBuffer = 32

// Conversation is an append-only, ordered message log. Appends are
// serialized; stored messages are never mutated or removed. Readers get
// copied snapshots, so a snapshot taken before an append stays intact.
type Conversation struct {
	mu        sync.Mutex
	messages  []models.Message
	watchers  map[int]chan models.Message
	nextWatch int
	closed    bool
}

// NewConversation returns an empty conversation.
func NewConversation() *Conversation {
	return &Conversation{watchers: make(map[int]chan models.Message)}
}

// Append adds messages to the tail of the log, stamping a fresh id and
// timestamp on any message that lacks one. It returns the stored copies.
// Appending zero messages is a no-op.
func (c *Conversation) Append(msgs ...models.Message) ([]models.Message, error) {
	if len(msgs) == 0 {
		return nil, nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrConversationClosed
	}
	stored := make([]models.Message, 0, len(msgs))
	for _, m := range msgs {
		if m.ID == uuid.Nil {
			m.ID = uuid.New()
		}
		if m.CreatedAt.IsZero() {
			m.CreatedAt = time.Now()
		}
		c.messages = append(c.messages, m)
		stored = append(stored, m)
	}
	for id, w := range c.watchers {
		lagged := false
		for _, m := range stored {
			select {
			case w <- m:
			default:
				lagged = true
			}
			if lagged {
				break
			}
		}
		// Closing instead of dropping keeps loss visible: the consumer
		// sees the channel end and resyncs from Messages.
		if lagged {
			delete(c.watchers, id)
			close(w)
		}
	}
	return stored, nil
}

// Messages returns a snapshot copy of the log, oldest first.
func (c *Conversation) Messages() []models.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]models.Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// Len returns the number of stored messages.
func (c *Conversation) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.messages)
}

// Closed reports whether the conversation has been torn down.
func (c *Conversation) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Watch registers a listener for subsequently appended messages. The
// returned cancel func must be called when the listener goes away; it is
// safe to call more than once. The channel is closed on cancel, when the
// conversation closes, or when the listener lags too far behind; in the
// last case the listener re-reads the snapshot and watches again.
func (c *Conversation) Watch() (<-chan models.Message, func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch := make(chan models.Message, watchBuffer)
	if c.closed {
		close(ch)
		return ch, func() {}
	}
	id := c.nextWatch
	c.nextWatch++
	c.watchers[id] = ch
	cancel := func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if w, ok := c.watchers[id]; ok {
			delete(c.watchers, id)
			close(w)
		}
	}
	return ch, cancel
}

// Close tears the conversation down. Further appends fail with
// ErrConversationClosed; existing snapshots remain valid. Idempotent.
func (c *Conversation) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	for id, w := range c.watchers {
		delete(c.watchers, id)
		close(w)
	}
}
