// Package images stores image bytes in the data root and attaches the
// resulting references to notes.
package images

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/starford/quill/internal/apperr"
	"github.com/starford/quill/internal/models"
	"github.com/starford/quill/internal/notestore"
	"github.com/starford/quill/internal/storage"
)

const (
	// Dir is the storage directory holding attached images.
	Dir = "attachments"
	// DefaultMaxPerNote applies when no limit is configured.
	DefaultMaxPerNote = 10
	// MaxSize caps a single image.
	MaxSize = 10 << 20
)

var mimeToExt = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// Allowed reports whether filename carries a supported image extension.
func Allowed(filename string) bool {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".png", ".jpg", ".jpeg", ".gif", ".webp":
		return true
	}
	return false
}

// Attacher writes images to storage and records them on notes.
type Attacher struct {
	repo       notestore.Repository
	store      storage.Provider
	maxPerNote int
	logger     *slog.Logger

	mu sync.Mutex // serializes the count check with AddImage
}

// NewAttacher creates an Attacher. A non-positive maxPerNote falls back to
// DefaultMaxPerNote.
func NewAttacher(repo notestore.Repository, store storage.Provider, maxPerNote int, logger *slog.Logger) *Attacher {
	if maxPerNote <= 0 {
		maxPerNote = DefaultMaxPerNote
	}
	return &Attacher{repo: repo, store: store, maxPerNote: maxPerNote, logger: logger}
}

// Attach stores data under a fresh name and appends the reference to the
// note. The original filename only contributes its extension.
func (a *Attacher) Attach(ctx context.Context, noteID int64, filename string, data []byte) (*models.Note, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if !Allowed(filename) {
		return nil, apperr.Validation(fmt.Sprintf("unsupported image type %q (allowed: png, jpg, jpeg, gif, webp)", ext))
	}
	if len(data) == 0 {
		return nil, apperr.Validation("image is empty")
	}
	if len(data) > MaxSize {
		return nil, apperr.Validation(fmt.Sprintf("image too large: %d bytes (max %d)", len(data), MaxSize))
	}
	if err := validateMagicBytes(data, ext); err != nil {
		return nil, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	note, err := a.repo.FindByID(ctx, noteID)
	if err != nil {
		return nil, err
	}
	if len(note.Images) >= a.maxPerNote {
		return nil, apperr.Validation(fmt.Sprintf("note %d already has %d images (max %d)", noteID, len(note.Images), a.maxPerNote))
	}

	ref := path.Join(Dir, uuid.NewString()+ext)
	if err := a.store.Write(ref, data); err != nil {
		return nil, fmt.Errorf("save image: %w", err)
	}

	updated, err := a.repo.AddImage(ctx, noteID, ref)
	if err != nil {
		if delErr := a.store.Delete(ref); delErr != nil {
			a.logger.Warn("images: cleanup failed", slog.String("path", ref), slog.String("error", delErr.Error()))
		}
		return nil, err
	}
	a.logger.Info("images: attached", slog.Int64("note_id", noteID), slog.String("path", ref))
	return updated, nil
}

// validateMagicBytes checks that the content matches the declared extension.
func validateMagicBytes(data []byte, ext string) error {
	detected := http.DetectContentType(data)
	got := mimeToExt[strings.Split(detected, ";")[0]]
	if ext == ".jpeg" {
		ext = ".jpg"
	}
	if got != ext {
		return apperr.Validation(fmt.Sprintf("content does not match extension %s (detected: %s)", ext, detected))
	}
	return nil
}
