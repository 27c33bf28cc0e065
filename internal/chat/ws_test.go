package chat

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/goleak"
	"golang.org/x/net/websocket"

	"github.com/starford/quill/internal/aibridge"
	"github.com/starford/quill/internal/dialogue"
	"github.com/starford/quill/internal/testutil"
)

type wsEnv struct {
	hub *Hub
	url string
}

func newWSEnv(t *testing.T) *wsEnv {
	t.Helper()
	// Registered first so it runs after every other cleanup.
	t.Cleanup(func() { goleak.VerifyNone(t) })

	store := testutil.TestStore(t)
	logger := discardLogger()
	hub := NewHub(logger)
	machine := dialogue.NewMachine(store, aibridge.Disabled{}, hub, logger)
	srv := httptest.NewServer(NewServer(hub, machine, store, logger).Handler())
	t.Cleanup(hub.Close)
	t.Cleanup(srv.Close)

	return &wsEnv{hub: hub, url: "ws" + strings.TrimPrefix(srv.URL, "http")}
}

func (e *wsEnv) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	conn, err := websocket.Dial(e.url, "", "http://localhost/")
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, raw string) {
	t.Helper()
	if err := websocket.Message.Send(conn, raw); err != nil {
		t.Fatalf("send: %v", err)
	}
}

func next(t *testing.T, conn *websocket.Conn) Frame {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var f Frame
	if err := websocket.JSON.Receive(conn, &f); err != nil {
		t.Fatalf("receive: %v", err)
	}
	return f
}

func TestChatRoundTrip(t *testing.T) {
	env := newWSEnv(t)
	conn := env.dial(t)

	send(t, conn, `{"type":"chat","text":"/createnote \"trip plan\""}`)
	if f := next(t, conn); f.Type != FrameReply || !strings.Contains(f.Text, "(yes/no)") {
		t.Fatalf("prompt frame = %+v", f)
	}
	send(t, conn, `{"type":"chat","text":"yes"}`)
	if f := next(t, conn); !strings.Contains(f.Text, "ID: 1") {
		t.Fatalf("confirmation frame = %+v", f)
	}

	send(t, conn, `{"type":"get_commands"}`)
	f := next(t, conn)
	if f.Type != FrameAvailableCommands || len(f.Commands) == 0 {
		t.Fatalf("commands frame = %+v", f)
	}

	send(t, conn, `{"type":"get_all_notes"}`)
	f = next(t, conn)
	if f.Type != FrameAllNotes || len(f.Notes) != 1 || f.Notes[0].Title != "trip plan" {
		t.Fatalf("notes frame = %+v", f)
	}
}

func TestChatRejectsMalformedInput(t *testing.T) {
	env := newWSEnv(t)
	conn := env.dial(t)

	cases := []struct{ raw, want string }{
		{"{not json", "Bad JSON"},
		{"   ", "Empty message received"},
		{`{"type":"chat"}`, "Missing text in chat message"},
		{`{"type":"dance"}`, "Unknown message type: dance"},
	}
	for _, c := range cases {
		send(t, conn, c.raw)
		if f := next(t, conn); f.Type != FrameReply || f.Text != c.want {
			t.Errorf("%q: frame = %+v, want reply %q", c.raw, f, c.want)
		}
	}
}

func TestSessionsAreIsolated(t *testing.T) {
	env := newWSEnv(t)
	a := env.dial(t)
	b := env.dial(t)

	send(t, a, `{"type":"chat","text":"/createnote shared","auto_confirm":true}`)
	next(t, a)

	// b has no selection of its own.
	send(t, b, `{"type":"chat","text":"/delete"}`)
	if f := next(t, b); !strings.Contains(f.Text, "No note selected") {
		t.Errorf("b reply = %+v", f)
	}
}

func TestBroadcastReachesAllClients(t *testing.T) {
	env := newWSEnv(t)
	a := env.dial(t)
	b := env.dial(t)

	// Wait until both connections are registered.
	deadline := time.Now().Add(2 * time.Second)
	for env.hub.ClientCount() < 2 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	env.hub.Broadcast("📅 summary")

	for _, c := range []*websocket.Conn{a, b} {
		if f := next(t, c); f.Type != FrameBroadcast || f.Text != "📅 summary" {
			t.Errorf("frame = %+v", f)
		}
	}
}

func TestConversationStopsWithContext(t *testing.T) {
	t.Cleanup(func() { goleak.VerifyNone(t) })
	store := testutil.TestStore(t)
	hub := NewHub(discardLogger())
	defer hub.Close()
	machine := dialogue.NewMachine(store, aibridge.Disabled{}, hub, discardLogger())
	conv := NewConversation("c", machine, store, hub, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	go conv.Run(ctx)
	cancel()
	<-conv.Done()

	if conv.Submit(context.Background(), Inbound{Type: TypeChat, Text: "hi"}) {
		t.Error("Submit after stop should report false")
	}
}

func TestRejectedFramesKeepArrivalOrder(t *testing.T) {
	env := newWSEnv(t)
	conn := env.dial(t)

	send(t, conn, `{"type":"chat","text":"/createnote first","auto_confirm":true}`)
	send(t, conn, "{not json")
	send(t, conn, `{"type":"chat","text":"/createnote second","auto_confirm":true}`)
	send(t, conn, "  ")

	want := []string{"ID: 1", "Bad JSON", "ID: 2", "Empty message received"}
	for _, w := range want {
		if f := next(t, conn); !strings.Contains(f.Text, w) {
			t.Errorf("frame = %+v, want text containing %q", f, w)
		}
	}
}

func TestConversationQueuesRejectsBehindMessages(t *testing.T) {
	t.Cleanup(func() { goleak.VerifyNone(t) })
	store := testutil.TestStore(t)
	hub := NewHub(discardLogger())
	defer hub.Close()
	frames := hub.Register("c")
	machine := dialogue.NewMachine(store, aibridge.Disabled{}, hub, discardLogger())
	conv := NewConversation("c", machine, store, hub, discardLogger())

	// Queued before the loop starts, so the order is fixed.
	ctx := context.Background()
	if !conv.Submit(ctx, Inbound{Type: TypeChat, Text: "/help"}) || !conv.Reject(ctx, "Bad JSON") {
		t.Fatal("queue refused items")
	}

	runCtx, cancel := context.WithCancel(ctx)
	go conv.Run(runCtx)
	defer func() {
		cancel()
		<-conv.Done()
	}()

	for _, w := range []string{"Available Commands", "Bad JSON"} {
		select {
		case f := <-frames:
			if !strings.Contains(f.Text, w) {
				t.Errorf("frame = %+v, want text containing %q", f, w)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("no frame for %q", w)
		}
	}
}
