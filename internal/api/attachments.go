package api

import (
	"bytes"
	"errors"
	"io/fs"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/starford/quill/internal/images"
	"github.com/starford/quill/internal/storage"
)

// AttachmentHandler serves stored image files.
type AttachmentHandler struct {
	store storage.Provider
}

// NewAttachmentHandler creates a handler reading from store.
func NewAttachmentHandler(store storage.Provider) *AttachmentHandler {
	return &AttachmentHandler{store: store}
}

// ServeFile handles GET /attachments/{filename}.
func (h *AttachmentHandler) ServeFile(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "filename")
	if name == "" || name != path.Base(name) || strings.Contains(name, "..") || strings.HasPrefix(name, ".") {
		http.Error(w, "invalid filename", http.StatusBadRequest)
		return
	}
	if !images.Allowed(name) {
		http.NotFound(w, r)
		return
	}
	data, err := h.store.Read(path.Join(images.Dir, name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			http.NotFound(w, r)
			return
		}
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Cache-Control", "private, max-age=86400")
	http.ServeContent(w, r, name, time.Time{}, bytes.NewReader(data))
}

// List handles GET /api/attachments.
//
//	@Summary	List stored attachment files with size and checksum
//	@Success	200	{object}	AttachmentListResponse
//	@Router		/attachments [get]
func (h *AttachmentHandler) List(w http.ResponseWriter, r *http.Request) {
	files, err := h.store.List(images.Dir)
	if err != nil {
		writeError(w, "list attachments", err)
		return
	}
	writeJSON(w, http.StatusOK, AttachmentListResponse{Files: files, Total: len(files)})
}
