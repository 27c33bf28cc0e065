// Package models defines the domain types for Quill.
package models

import "time"

// Note is a persisted note. ParentID is nil for top-level ("parent") notes.
type Note struct {
	ID           int64      `json:"id"`
	Title        string     `json:"title"`
	Description  string     `json:"description"`
	ParentID     *int64     `json:"parent_id"`
	Done         bool       `json:"done"`
	DoneDate     *time.Time `json:"done_date"`
	CreationDate time.Time  `json:"creation_date"`
	LastUpdated  time.Time  `json:"last_updated"`
	Deleted      bool       `json:"deleted"`
	DeletionDate *time.Time `json:"deletion_date,omitempty"`
	Images       []string   `json:"images"`
	Tags         []string   `json:"tags"`
}

// IsParent reports whether the note is a top-level note.
func (n Note) IsParent() bool {
	return n.ParentID == nil
}

// IsChildOf reports whether the note's parent is id.
func (n Note) IsChildOf(id int64) bool {
	return n.ParentID != nil && *n.ParentID == id
}

// Fields holds the mutable subset of a note accepted by an update.
// Nil/empty members are left untouched.
type Fields struct {
	// Description replaces the description.
	Description *string
	// AppendDescription is appended to the existing description, separated by
	// a blank line; it is applied after Description.
	AppendDescription string
	Done              *bool
	// Images are appended; references already present are skipped.
	Images []string
	// Tags replaces the tag set when non-nil.
	Tags []string
}
