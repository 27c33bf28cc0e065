package api

import (
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/starford/quill/internal/dialogue"
	"github.com/starford/quill/internal/images"
	"github.com/starford/quill/internal/notestore"
)

// maxUploadBytes leaves room for multipart framing around the largest image.
const maxUploadBytes = images.MaxSize + 1<<20

// Handler holds API route handlers.
type Handler struct {
	repo     notestore.Repository
	attacher *images.Attacher
}

// NewHandler creates a new Handler.
func NewHandler(repo notestore.Repository, attacher *images.Attacher) *Handler {
	return &Handler{repo: repo, attacher: attacher}
}

func noteID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil && id > 0
}

// ListNotes handles GET /api/notes.
//
//	@Summary	List notes, optionally filtered by tag
//	@Param		tag				query	string	false	"Filter by tag"
//	@Param		include_deleted	query	bool	false	"Include soft-deleted notes"
//	@Success	200	{object}	NoteListResponse
//	@Router		/notes [get]
func (h *Handler) ListNotes(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	includeDeleted, _ := strconv.ParseBool(q.Get("include_deleted"))

	notes, err := h.repo.List(r.Context(), notestore.ListOptions{
		Tag:            q.Get("tag"),
		IncludeDeleted: includeDeleted,
	})
	if err != nil {
		writeError(w, "list notes", err)
		return
	}
	writeJSON(w, http.StatusOK, NoteListResponse{Notes: notes, Total: len(notes)})
}

// GetNote handles GET /api/notes/{id}.
//
//	@Summary	Get a note and its children
//	@Success	200	{object}	NoteDetail
//	@Failure	404	{object}	errResponse
//	@Router		/notes/{id} [get]
func (h *Handler) GetNote(w http.ResponseWriter, r *http.Request) {
	id, ok := noteID(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid note id"))
		return
	}
	note, err := h.repo.FindByID(r.Context(), id)
	if err != nil {
		writeError(w, "get note", err)
		return
	}
	children, err := h.repo.ListChildren(r.Context(), id)
	if err != nil {
		writeError(w, "list children", err)
		return
	}
	writeJSON(w, http.StatusOK, NoteDetail{Note: *note, Children: children})
}

// UploadImage handles POST /api/notes/{id}/images (multipart/form-data,
// field "file").
//
//	@Summary	Attach an image to a note
//	@Success	201	{object}	ImageUploadResponse
//	@Failure	400	{object}	errResponse
//	@Failure	404	{object}	errResponse
//	@Router		/notes/{id}/images [post]
func (h *Handler) UploadImage(w http.ResponseWriter, r *http.Request) {
	id, ok := noteID(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid note id"))
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("file too large or invalid multipart"))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("missing 'file' field in multipart form"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("failed to read upload"))
		return
	}

	note, err := h.attacher.Attach(r.Context(), id, header.Filename, data)
	if err != nil {
		writeError(w, "upload image", err)
		return
	}
	ref := note.Images[len(note.Images)-1]
	writeJSON(w, http.StatusCreated, ImageUploadResponse{Ref: ref, URL: "/" + ref, Note: *note})
}

// Commands handles GET /api/commands.
func (h *Handler) Commands(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, dialogue.Catalogue())
}
