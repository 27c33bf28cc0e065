package images

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/quill/internal/models"
)

const settleDelay = 200 * time.Millisecond

// AttachCallback is called after the inbox attaches a file to a note.
type AttachCallback func(note models.Note, source string)

// WatchInbox watches inboxDir for files dropped into <inboxDir>/<noteID>/ and
// attaches each one to that note. Attached files are removed from the inbox;
// rejected files are left in place and logged. Files present when the watch
// starts are processed first. Runs until ctx is cancelled.
func WatchInbox(ctx context.Context, inboxDir string, a *Attacher, logger *slog.Logger, cb AttachCallback) error {
	if err := os.MkdirAll(inboxDir, 0o755); err != nil {
		return err
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := addDirsRecursive(w, inboxDir); err != nil {
		return err
	}
	logger.Info("inbox: started", slog.String("root", inboxDir))

	in := &inbox{root: inboxDir, attacher: a, logger: logger, cb: cb}
	in.sweep(ctx, inboxDir)

	// Writes arrive as a burst of events; a file is processed once it has
	// been quiet for settleDelay.
	pending := make(map[string]struct{})
	var settleTimer *time.Timer
	var settleCh <-chan time.Time
	schedule := func(p string) {
		pending[p] = struct{}{}
		if settleTimer == nil {
			settleTimer = time.NewTimer(settleDelay)
			settleCh = settleTimer.C
		} else {
			settleTimer.Reset(settleDelay)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if settleTimer != nil {
				settleTimer.Stop()
			}
			logger.Info("inbox: stopped")
			return nil

		case <-settleCh:
			for p := range pending {
				in.process(ctx, p)
				delete(pending, p)
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(ev.Name); statErr == nil && info.IsDir() {
					if addErr := addDirsRecursive(w, ev.Name); addErr != nil {
						logger.Warn("inbox: add new dir failed",
							slog.String("path", ev.Name),
							slog.String("error", addErr.Error()))
						continue
					}
					in.sweep(ctx, ev.Name)
					continue
				}
			}
			schedule(ev.Name)

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("inbox: error", slog.String("error", watchErr.Error()))
		}
	}
}

type inbox struct {
	root     string
	attacher *Attacher
	logger   *slog.Logger
	cb       AttachCallback
}

// sweep processes every file already under dir.
func (in *inbox) sweep(ctx context.Context, dir string) {
	_ = filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		in.process(ctx, p)
		return nil
	})
}

func (in *inbox) process(ctx context.Context, abs string) {
	rel, err := filepath.Rel(in.root, abs)
	if err != nil {
		return
	}
	parts := strings.Split(filepath.ToSlash(rel), "/")
	if len(parts) != 2 || strings.HasPrefix(parts[1], ".") {
		return
	}
	noteID, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		in.logger.Warn("inbox: directory is not a note id", slog.String("path", rel))
		return
	}

	data, err := os.ReadFile(abs)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			in.logger.Warn("inbox: read failed", slog.String("path", rel), slog.String("error", err.Error()))
		}
		return
	}

	note, err := in.attacher.Attach(ctx, noteID, parts[1], data)
	if err != nil {
		in.logger.Warn("inbox: attach failed", slog.String("path", rel), slog.String("error", err.Error()))
		return
	}
	if err := os.Remove(abs); err != nil {
		in.logger.Warn("inbox: remove failed", slog.String("path", rel), slog.String("error", err.Error()))
	}
	if in.cb != nil {
		in.cb(*note, rel)
	}
}

// addDirsRecursive adds root and all its subdirectories to the watcher.
func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.Add(p)
		}
		return nil
	})
}
