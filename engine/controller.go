package engine

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"

	"rental-chat/models"
	"rental-chat/store"
)

// Gateway is the NLU boundary: one utterance in, one structured result
// out. Implementations must honor context cancellation.
type Gateway interface {
	Detect(ctx context.Context, utterance string) (models.NLUResult, error)
}

// State of the controller between turns.
type State int

const (
	Idle State = iota
	AwaitingReply
)

// ErrEmptyInput is returned when a submitted utterance is blank.
var ErrEmptyInput = errors.New("empty input")

// Turn is the asynchronous result of one submitted input. The user
// message is committed before Submit returns; the bot side lands later.
type Turn struct {
	UserMessage models.Message

	done chan struct{}
	bot  []models.Message
	err  error
}

// Wait blocks until the bot reply lands or the turn fails, returning the
// appended bot messages.
func (t *Turn) Wait(ctx context.Context) ([]models.Message, error) {
	select {
	case <-t.done:
		return t.bot, t.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Controller runs turns for one conversation: append the user message,
// call the gateway asynchronously, feed the result through interpreter
// and dispatcher, append the reply. Free text, quick-reply clicks and
// card clicks all funnel through Submit; there is one input pathway.
type Controller struct {
	conv    *store.Conversation
	gateway Gateway
	interp  *Interpreter
	disp    *Dispatcher
	user    models.Author

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	inflight int
}

// NewController seeds conv with the bot greeting (carrying the top-level
// quick-reply menu) and returns a controller ready for input.
func NewController(conv *store.Conversation, gw Gateway, interp *Interpreter, disp *Dispatcher, user models.Author, greeting string, menu []models.QuickReply) (*Controller, error) {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		conv:    conv,
		gateway: gw,
		interp:  interp,
		disp:    disp,
		user:    user,
		ctx:     ctx,
		cancel:  cancel,
	}
	_, err := conv.Append(models.Message{
		Text:         greeting,
		Author:       interp.Bot,
		QuickReplies: menu,
	})
	if err != nil {
		cancel()
		return nil, err
	}
	return c, nil
}

// Submit records text as a user message and starts the NLU round trip.
// The user message is in the store when Submit returns and stays there
// whatever happens to the gateway call.
func (c *Controller) Submit(text string) (*Turn, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyInput
	}
	stored, err := c.conv.Append(models.Message{Text: text, Author: c.user})
	if err != nil {
		return nil, err
	}
	t := &Turn{UserMessage: stored[0], done: make(chan struct{})}
	c.mu.Lock()
	c.inflight++
	c.mu.Unlock()
	go c.await(t)
	return t, nil
}

// SelectQuickReply feeds a chosen quick-reply value through the normal
// input pathway, exactly as if the user had typed it.
func (c *Controller) SelectQuickReply(r models.QuickReply) (*Turn, error) {
	return c.Submit(r.Value)
}

// SelectCard feeds a chosen carousel card through the normal input
// pathway, exactly as if the user had typed its value.
func (c *Controller) SelectCard(card models.OptionCard) (*Turn, error) {
	return c.Submit(card.SelectValue)
}

func (c *Controller) await(t *Turn) {
	defer func() {
		c.mu.Lock()
		c.inflight--
		c.mu.Unlock()
		close(t.done)
	}()

	res, err := c.gateway.Detect(c.ctx, t.UserMessage.Text)
	if err != nil {
		// Recoverable: the turn ends with no bot message and the user
		// message stays in history.
		log.Printf("NLU request failed: %v", err)
		t.err = err
		return
	}

	if msgs := c.interp.Interpret(res); len(msgs) > 0 {
		stored, err := c.conv.Append(msgs...)
		if err != nil {
			// Conversation torn down while awaiting; discard the reply.
			t.err = err
			return
		}
		t.bot = stored
	}

	c.disp.Dispatch(res)
}

// State reports Idle or AwaitingReply. Overlapping turns are tolerated;
// the store serializes their appends.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inflight > 0 {
		return AwaitingReply
	}
	return Idle
}

// Close cancels in-flight gateway calls and closes the conversation.
// Replies that arrive afterwards are discarded.
func (c *Controller) Close() {
	c.cancel()
	c.conv.Close()
}
