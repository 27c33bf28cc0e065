// Package jobs runs the periodic background work: the daily summary
// broadcast and the note snapshot export.
package jobs

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/starford/quill/internal/aibridge"
	"github.com/starford/quill/internal/notestore"
	"github.com/starford/quill/internal/storage"
)

const (
	DefaultSummaryInterval  = 12 * time.Hour
	DefaultSummaryWindow    = 24 * time.Hour
	DefaultSnapshotInterval = 5 * time.Minute
)

// Broadcaster pushes a message to every connected session.
type Broadcaster interface {
	Broadcast(text string)
}

// Every calls fn each interval until ctx is cancelled. A non-positive
// interval disables the loop.
func Every(ctx context.Context, interval time.Duration, fn func(context.Context)) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn(ctx)
		}
	}
}

// Summary collects recently created notes, asks the AI bridge for a summary
// and broadcasts the result.
type Summary struct {
	Repo   notestore.Repository
	Bridge aibridge.Bridge
	Out    Broadcaster
	Window time.Duration
	Now    func() time.Time
	Logger *slog.Logger
}

// Run broadcasts a summary every interval until ctx is cancelled.
func (s *Summary) Run(ctx context.Context, interval time.Duration) error {
	s.Logger.Info("summary: scheduled", slog.Duration("interval", interval), slog.Duration("window", s.window()))
	Every(ctx, interval, func(ctx context.Context) { s.Out.Broadcast(s.Compose(ctx)) })
	return nil
}

// Compose builds one summary message. It never fails: problems are reported
// in the message itself.
func (s *Summary) Compose(ctx context.Context) string {
	now := s.now()
	header := "📅 **Daily Summary** (" + now.Format("2006-01-02") + ")\n\n"

	notes, err := s.Repo.Recent(ctx, now.Add(-s.window()))
	if err != nil {
		s.Logger.Error("summary: load recent notes", slog.String("error", err.Error()))
		return header + "❌ Error generating daily summary: " + err.Error()
	}
	if len(notes) == 0 {
		s.Logger.Info("summary: no recent notes")
		return header + "No new notes created in the last " + windowText(s.window()) + "."
	}

	text, err := s.Bridge.Summarize(ctx, aibridge.SummaryItems(notes))
	if err != nil || strings.TrimSpace(text) == "" {
		attrs := []any{slog.Int("notes", len(notes))}
		if err != nil {
			attrs = append(attrs, slog.String("error", err.Error()))
		}
		s.Logger.Warn("summary: no answer", attrs...)
		return header + "❌ Failed to generate summary. Please try again later."
	}
	s.Logger.Info("summary: broadcast", slog.Int("notes", len(notes)))
	return header + text
}

func (s *Summary) window() time.Duration {
	if s.Window <= 0 {
		return DefaultSummaryWindow
	}
	return s.Window
}

func (s *Summary) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func windowText(d time.Duration) string {
	if d%time.Hour == 0 {
		h := int(d / time.Hour)
		if h == 1 {
			return "hour"
		}
		return strconv.Itoa(h) + " hours"
	}
	return d.String()
}

// Snapshot periodically exports the note store.
type Snapshot struct {
	Repo   notestore.Repository
	Dst    storage.Provider
	Logger *slog.Logger
}

// Run exports every interval and once more when ctx is cancelled.
func (s *Snapshot) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		s.Logger.Info("snapshot: disabled")
		return nil
	}
	Every(ctx, interval, s.Export)
	s.Export(context.WithoutCancel(ctx))
	return nil
}

// Export writes one snapshot, logging the outcome.
func (s *Snapshot) Export(ctx context.Context) {
	written, err := s.Repo.Export(ctx, s.Dst)
	if err != nil {
		s.Logger.Error("snapshot: export failed", slog.String("error", err.Error()))
		return
	}
	if written {
		s.Logger.Debug("snapshot: written", slog.String("path", notestore.SnapshotPath))
	}
}
