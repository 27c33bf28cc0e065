package jobs

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/starford/quill/internal/aibridge"
	"github.com/starford/quill/internal/notestore"
	"github.com/starford/quill/internal/testutil"
)

var start = time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)

type fakeBridge struct {
	mu     sync.Mutex
	items  []aibridge.SummaryItem
	answer string
	err    error
}

func (f *fakeBridge) Summarize(_ context.Context, items []aibridge.SummaryItem) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items = items
	return f.answer, f.err
}

func (f *fakeBridge) Ask(context.Context, aibridge.NoteContext, string, []aibridge.Exchange) (string, error) {
	return "", errors.New("not used")
}

type recorder struct {
	mu   sync.Mutex
	msgs []string
}

func (r *recorder) Broadcast(text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, text)
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.msgs)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// summaryEnv returns a store whose clock the test can move, plus a Summary
// that reads the same clock.
func summaryEnv(t *testing.T, bridge aibridge.Bridge) (*notestore.Store, *Summary, func(time.Duration)) {
	t.Helper()
	var mu sync.Mutex
	now := start
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	advance := func(d time.Duration) {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(d)
	}
	repo := testutil.TestStore(t, notestore.WithClock(clock))
	s := &Summary{Repo: repo, Bridge: bridge, Out: &recorder{}, Now: clock, Logger: discardLogger()}
	return repo, s, advance
}

func TestSummaryComposeNoNotes(t *testing.T) {
	_, s, _ := summaryEnv(t, &fakeBridge{answer: "unused"})
	got := s.Compose(context.Background())
	want := "📅 **Daily Summary** (2025-03-14)\n\nNo new notes created in the last 24 hours."
	if got != want {
		t.Errorf("Compose = %q, want %q", got, want)
	}
}

func TestSummaryComposeUsesWindow(t *testing.T) {
	bridge := &fakeBridge{answer: "You planned a trip."}
	repo, s, advance := summaryEnv(t, bridge)
	testutil.MustCreate(t, repo, "Old", nil)
	advance(30 * time.Hour)
	testutil.MustCreate(t, repo, "Trip", nil)
	advance(time.Hour)

	got := s.Compose(context.Background())
	if want := "📅 **Daily Summary** (2025-03-15)\n\nYou planned a trip."; got != want {
		t.Errorf("Compose = %q, want %q", got, want)
	}
	var titles []string
	for _, it := range bridge.items {
		titles = append(titles, it.Title)
	}
	if diff := cmp.Diff([]string{"Trip"}, titles); diff != "" {
		t.Errorf("summarized titles mismatch (-want +got):\n%s", diff)
	}
}

func TestSummaryComposeFailure(t *testing.T) {
	tests := []struct {
		name   string
		bridge *fakeBridge
	}{
		{"error", &fakeBridge{err: errors.New("quota")}},
		{"empty", &fakeBridge{answer: "  "}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, s, _ := summaryEnv(t, tt.bridge)
			testutil.MustCreate(t, repo, "Trip", nil)
			got := s.Compose(context.Background())
			want := "📅 **Daily Summary** (2025-03-14)\n\n❌ Failed to generate summary. Please try again later."
			if got != want {
				t.Errorf("Compose = %q, want %q", got, want)
			}
		})
	}
}

func TestSummaryRunBroadcasts(t *testing.T) {
	repo, s, _ := summaryEnv(t, &fakeBridge{answer: "ok"})
	testutil.MustCreate(t, repo, "Trip", nil)
	rec := s.Out.(*recorder)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx, 10*time.Millisecond) }()

	deadline := time.Now().Add(2 * time.Second)
	for rec.count() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rec.count() < 2 {
		t.Fatalf("broadcasts = %d, want at least 2", rec.count())
	}
}

func TestEveryDisabled(t *testing.T) {
	var calls atomic.Int32
	Every(context.Background(), 0, func(context.Context) { calls.Add(1) })
	if calls.Load() != 0 {
		t.Errorf("calls = %d, want 0", calls.Load())
	}
}

func TestSnapshotRunExportsOnShutdown(t *testing.T) {
	repo := testutil.TestStore(t)
	root, dst := testutil.TestData(t)
	testutil.MustCreate(t, repo, "Trip", nil)
	snap := &Snapshot{Repo: repo, Dst: dst, Logger: discardLogger()}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := snap.Run(ctx, time.Hour); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, filepath.FromSlash(notestore.SnapshotPath))); err != nil {
		t.Errorf("snapshot not written: %v", err)
	}
}

func TestSnapshotDisabled(t *testing.T) {
	repo := testutil.TestStore(t)
	root, dst := testutil.TestData(t)
	snap := &Snapshot{Repo: repo, Dst: dst, Logger: discardLogger()}
	if err := snap.Run(context.Background(), 0); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, filepath.FromSlash(notestore.SnapshotPath))); !os.IsNotExist(err) {
		t.Errorf("snapshot written while disabled: %v", err)
	}
}
