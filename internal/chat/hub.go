// Package chat is the WebSocket transport: it owns client connections, feeds
// their messages to the dialogue machine and delivers replies.
package chat

import (
	"log/slog"
	"sync/atomic"

	"github.com/starford/quill/internal/dialogue"
	"github.com/starford/quill/internal/models"
)

// Outbound frame types.
const (
	FrameReply             = "reply"
	FrameBroadcast         = "broadcast"
	FrameAvailableCommands = "available_commands"
	FrameAllNotes          = "all_notes"
)

// Frame is one outbound JSON message.
type Frame struct {
	Type     string                 `json:"type"`
	Text     string                 `json:"text,omitempty"`
	Commands []dialogue.CommandInfo `json:"commands,omitempty"`
	Notes    []models.Note          `json:"notes,omitempty"`
}

type registration struct {
	id string
	ch chan Frame
}

// envelope addresses a frame to one session, or to everyone when to is "".
type envelope struct {
	to    string
	frame Frame
}

// Hub tracks connected sessions and routes frames to them.
//
// A single goroutine owns the client map; public methods talk to it over
// channels. Frames for one client keep the order they were submitted in.
type Hub struct {
	logger *slog.Logger

	registerCh   chan registration
	unregisterCh chan string
	sendCh       chan envelope
	countReqCh   chan chan int

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

var _ dialogue.Outbox = (*Hub)(nil)

// clientBuffer is the number of frames queued per client before new frames
// for it are dropped.
const clientBuffer = 64

// NewHub starts a hub.
func NewHub(logger *slog.Logger) *Hub {
	h := &Hub{
		logger:       logger,
		registerCh:   make(chan registration),
		unregisterCh: make(chan string),
		sendCh:       make(chan envelope, 256),
		countReqCh:   make(chan chan int),
		stopCh:       make(chan struct{}),
		stopped:      make(chan struct{}),
	}
	go h.run()
	return h
}

func (h *Hub) run() {
	defer close(h.stopped)

	clients := make(map[string]chan Frame)

	push := func(id string, ch chan Frame, f Frame) {
		select {
		case ch <- f:
		default:
			h.logger.Warn("chat client buffer full, dropping frame", "session", id, "type", f.Type)
		}
	}

	for {
		select {
		case <-h.stopCh:
			for _, ch := range clients {
				close(ch)
			}
			return

		case reg := <-h.registerCh:
			if old, ok := clients[reg.id]; ok {
				close(old)
			}
			clients[reg.id] = reg.ch

		case id := <-h.unregisterCh:
			if ch, ok := clients[id]; ok {
				delete(clients, id)
				close(ch)
			}

		case env := <-h.sendCh:
			if env.to == "" {
				for id, ch := range clients {
					push(id, ch, env.frame)
				}
				continue
			}
			if ch, ok := clients[env.to]; ok {
				push(env.to, ch, env.frame)
			}

		case resp := <-h.countReqCh:
			resp <- len(clients)
		}
	}
}

// Close stops the hub and closes every client channel.
func (h *Hub) Close() {
	if h.closed.CompareAndSwap(false, true) {
		close(h.stopCh)
	}
	<-h.stopped
}

// Register adds a session and returns the channel its frames arrive on. The
// channel is closed by Unregister or Close.
func (h *Hub) Register(id string) <-chan Frame {
	ch := make(chan Frame, clientBuffer)
	if h.closed.Load() {
		close(ch)
		return ch
	}
	select {
	case h.registerCh <- registration{id: id, ch: ch}:
	case <-h.stopped:
		close(ch)
	}
	return ch
}

// Unregister removes a session.
func (h *Hub) Unregister(id string) {
	if h.closed.Load() {
		return
	}
	select {
	case h.unregisterCh <- id:
	case <-h.stopped:
	}
}

// Send queues a frame for one session. Unknown sessions are ignored.
func (h *Hub) Send(id string, f Frame) {
	h.enqueue(envelope{to: id, frame: f})
}

// Deliver sends a reply to one session.
func (h *Hub) Deliver(sessionID, text string) {
	h.Send(sessionID, Frame{Type: FrameReply, Text: text})
}

// Broadcast sends text to every session.
func (h *Hub) Broadcast(text string) {
	h.enqueue(envelope{frame: Frame{Type: FrameBroadcast, Text: text}})
}

func (h *Hub) enqueue(env envelope) {
	if h.closed.Load() {
		return
	}
	select {
	case h.sendCh <- env:
	case <-h.stopped:
	}
}

// ClientCount returns the number of connected sessions.
func (h *Hub) ClientCount() int {
	if h.closed.Load() {
		return 0
	}
	resp := make(chan int, 1)
	select {
	case h.countReqCh <- resp:
	case <-h.stopped:
		return 0
	}
	select {
	case n := <-resp:
		return n
	case <-h.stopped:
		return 0
	}
}
