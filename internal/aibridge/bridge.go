// Package aibridge hands summary and question requests to a text-generation
// backend. Callers treat any error, or an empty answer, as "no answer".
package aibridge

import (
	"context"
	"fmt"
	"time"

	"github.com/starford/quill/internal/models"
	"github.com/starford/quill/internal/notestore"
)

// Bridge is the AI collaborator. Each call is a single request with a single
// reply; implementations own their timeout and never retry.
type Bridge interface {
	Summarize(ctx context.Context, items []SummaryItem) (string, error)
	Ask(ctx context.Context, note NoteContext, question string, history []Exchange) (string, error)
}

// SummaryItem is one note fed to Summarize.
type SummaryItem struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Done        bool      `json:"done"`
	Created     time.Time `json:"created"`
}

// NoteContext is a note together with two levels of descendants.
type NoteContext struct {
	Note     models.Note
	Children []ChildContext
}

// ChildContext is one child and its own children.
type ChildContext struct {
	Note     models.Note
	Children []models.Note
}

// Exchange is one question/answer pair of an AI conversation.
type Exchange struct {
	Question string
	Answer   string
}

// SummaryItems converts notes for Summarize.
func SummaryItems(notes []models.Note) []SummaryItem {
	out := make([]SummaryItem, 0, len(notes))
	for _, n := range notes {
		out = append(out, SummaryItem{
			Title:       n.Title,
			Description: n.Description,
			Done:        n.Done,
			Created:     n.CreationDate,
		})
	}
	return out
}

// LoadContext reads note's children and grandchildren from repo.
func LoadContext(ctx context.Context, repo notestore.Repository, note models.Note) (NoteContext, error) {
	nc := NoteContext{Note: note}
	children, err := repo.ListChildren(ctx, note.ID)
	if err != nil {
		return nc, fmt.Errorf("aibridge: load children: %w", err)
	}
	for _, c := range children {
		grand, err := repo.ListChildren(ctx, c.ID)
		if err != nil {
			return nc, fmt.Errorf("aibridge: load grandchildren: %w", err)
		}
		nc.Children = append(nc.Children, ChildContext{Note: c, Children: grand})
	}
	return nc, nil
}
