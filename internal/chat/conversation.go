package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/starford/quill/internal/dialogue"
	"github.com/starford/quill/internal/notestore"
)

// Inbound message types.
const (
	TypeChat        = "chat"
	TypeGetCommands = "get_commands"
	TypeGetAllNotes = "get_all_notes"
)

// Inbound is one client message.
type Inbound struct {
	Type        string `json:"type"`
	Text        string `json:"text"`
	AutoConfirm bool   `json:"auto_confirm"`
}

// item is a client message, an asynchronous dialogue event, or a reply to
// a frame the reader could not decode.
type item struct {
	in     *Inbound
	event  dialogue.Event
	reject string
}

// Conversation is the event loop of one connection. Client messages and AI
// answers are applied strictly in arrival order by a single goroutine, which
// is the only one touching the session.
type Conversation struct {
	session *dialogue.Session
	machine *dialogue.Machine
	repo    notestore.Repository
	hub     *Hub
	logger  *slog.Logger

	inbox chan item
	done  chan struct{}
}

// NewConversation creates the loop for session id. Call Run to start it.
func NewConversation(id string, machine *dialogue.Machine, repo notestore.Repository, hub *Hub, logger *slog.Logger) *Conversation {
	c := &Conversation{
		machine: machine,
		repo:    repo,
		hub:     hub,
		logger:  logger.With("session", id),
		inbox:   make(chan item, 16),
		done:    make(chan struct{}),
	}
	c.session = dialogue.NewSession(id, c.post)
	return c
}

// post queues an asynchronous event. After the loop ends it is a no-op.
func (c *Conversation) post(ev dialogue.Event) {
	select {
	case c.inbox <- item{event: ev}:
	case <-c.done:
	}
}

// Submit queues a client message. It reports false once the loop has ended
// or ctx is done.
func (c *Conversation) Submit(ctx context.Context, in Inbound) bool {
	return c.enqueue(ctx, item{in: &in})
}

// Reject queues reply for a frame that never became a message, so it is
// delivered after the replies to everything received before it.
func (c *Conversation) Reject(ctx context.Context, reply string) bool {
	return c.enqueue(ctx, item{reject: reply})
}

func (c *Conversation) enqueue(ctx context.Context, it item) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.inbox <- it:
		return true
	case <-c.done:
		return false
	case <-ctx.Done():
		return false
	}
}

// Done is closed when Run returns.
func (c *Conversation) Done() <-chan struct{} { return c.done }

// Run processes queued items until ctx is cancelled.
func (c *Conversation) Run(ctx context.Context) error {
	defer close(c.done)
	for {
		select {
		case <-ctx.Done():
			return nil
		case it := <-c.inbox:
			switch {
			case it.event != nil:
				c.machine.Apply(ctx, c.session, it.event)
			case it.in != nil:
				c.handle(ctx, *it.in)
			default:
				c.hub.Deliver(c.session.ID, it.reject)
			}
		}
	}
}

func (c *Conversation) handle(ctx context.Context, in Inbound) {
	id := c.session.ID
	switch in.Type {
	case TypeChat:
		if strings.TrimSpace(in.Text) == "" {
			c.hub.Deliver(id, "Missing text in chat message")
			return
		}
		c.machine.Apply(ctx, c.session, dialogue.Message{Text: in.Text, AutoConfirm: in.AutoConfirm})
	case TypeGetCommands:
		c.hub.Send(id, Frame{Type: FrameAvailableCommands, Commands: dialogue.AvailableCommands(c.session)})
	case TypeGetAllNotes:
		notes, err := c.repo.List(ctx, notestore.ListOptions{})
		if err != nil {
			c.logger.Error("list notes failed", "err", err)
			c.hub.Deliver(id, "Error getting notes. Please try again.")
			return
		}
		c.hub.Send(id, Frame{Type: FrameAllNotes, Notes: notes})
	default:
		c.hub.Deliver(id, fmt.Sprintf("Unknown message type: %s", in.Type))
	}
}
