package chat

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/net/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/starford/quill/internal/dialogue"
	"github.com/starford/quill/internal/notestore"
)

// Server serves the chat WebSocket endpoint.
type Server struct {
	hub     *Hub
	machine *dialogue.Machine
	repo    notestore.Repository
	logger  *slog.Logger
}

// NewServer creates the endpoint.
func NewServer(hub *Hub, machine *dialogue.Machine, repo notestore.Repository, logger *slog.Logger) *Server {
	return &Server{hub: hub, machine: machine, repo: repo, logger: logger}
}

// Handler returns the WebSocket handler. Origin checks are left to the
// auth middleware in front of it.
func (s *Server) Handler() http.Handler {
	return websocket.Server{
		Handshake: func(*websocket.Config, *http.Request) error { return nil },
		Handler:   s.serve,
	}
}

func (s *Server) serve(ws *websocket.Conn) {
	defer ws.Close()

	id := uuid.NewString()
	logger := s.logger.With("session", id)
	logger.Info("chat client connected", "remote", ws.Request().RemoteAddr)

	ctx, cancel := context.WithCancel(ws.Request().Context())
	defer cancel()

	frames := s.hub.Register(id)
	conv := NewConversation(id, s.machine, s.repo, s.hub, s.logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return conv.Run(gctx) })
	g.Go(func() error {
		for f := range frames {
			if err := websocket.JSON.Send(ws, f); err != nil {
				// Unblocks the reader below.
				ws.Close()
				return err
			}
		}
		// Unregistered or hub closed.
		ws.Close()
		return nil
	})

	s.read(gctx, ws, conv, logger)

	cancel()
	s.hub.Unregister(id)
	if err := g.Wait(); err != nil && !errors.Is(err, io.EOF) {
		logger.Debug("chat writer stopped", "err", err)
	}
	logger.Info("chat client disconnected")
}

func (s *Server) read(ctx context.Context, ws *websocket.Conn, conv *Conversation, logger *slog.Logger) {
	for {
		var raw string
		if err := websocket.Message.Receive(ws, &raw); err != nil {
			if !errors.Is(err, io.EOF) {
				logger.Debug("chat read failed", "err", err)
			}
			return
		}
		var ok bool
		var in Inbound
		switch {
		case strings.TrimSpace(raw) == "":
			ok = conv.Reject(ctx, "Empty message received")
		case json.Unmarshal([]byte(raw), &in) != nil:
			ok = conv.Reject(ctx, "Bad JSON")
		default:
			ok = conv.Submit(ctx, in)
		}
		if !ok {
			return
		}
	}
}
