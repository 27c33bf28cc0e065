package api

import (
	"github.com/starford/quill/internal/models"
	"github.com/starford/quill/internal/storage"
)

// NoteListResponse wraps note listings.
type NoteListResponse struct {
	Notes []models.Note `json:"notes"`
	Total int           `json:"total"`
}

// NoteDetail is a note together with its live children.
type NoteDetail struct {
	models.Note
	Children []models.Note `json:"children"`
}

// ImageUploadResponse is returned after a successful image upload.
type ImageUploadResponse struct {
	Ref  string      `json:"ref"`
	URL  string      `json:"url"`
	Note models.Note `json:"note"`
}

// AttachmentListResponse lists stored attachment files.
type AttachmentListResponse struct {
	Files []storage.FileInfo `json:"files"`
	Total int                `json:"total"`
}
