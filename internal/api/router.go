package api

import (
	"github.com/go-chi/chi/v5"

	"github.com/starford/quill/internal/images"
	"github.com/starford/quill/internal/notestore"
	"github.com/starford/quill/internal/storage"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
func NewRouter(repo notestore.Repository, attacher *images.Attacher, files storage.Provider, authEnabled bool, token string) chi.Router {
	h := NewHandler(repo, attacher)
	ah := NewAttachmentHandler(files)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	r.Get("/notes", h.ListNotes)
	r.Get("/notes/{id}", h.GetNote)
	r.Post("/notes/{id}/images", h.UploadImage)

	r.Get("/attachments", ah.List)

	r.Get("/commands", h.Commands)

	return r
}
