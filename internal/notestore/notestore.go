package notestore

import (
	"context"
	"time"

	"github.com/starford/quill/internal/models"
	"github.com/starford/quill/internal/storage"
)

// Repository defines the note store operations.
// Consumers should depend on this interface rather than the concrete *Store
// so they can be tested against fakes.
type Repository interface {
	Create(ctx context.Context, title string, parentID *int64) (*models.Note, error)
	FindByID(ctx context.Context, id int64) (*models.Note, error)
	FindByTitle(ctx context.Context, query string) ([]models.Note, error)
	ListParents(ctx context.Context) ([]models.Note, error)
	ListChildren(ctx context.Context, parentID int64) ([]models.Note, error)
	ListOrphans(ctx context.Context) ([]models.Note, error)
	Recent(ctx context.Context, since time.Time) ([]models.Note, error)
	List(ctx context.Context, opts ListOptions) ([]models.Note, error)
	Update(ctx context.Context, id int64, fields models.Fields) (*models.Note, error)
	SoftDelete(ctx context.Context, id int64) error
	AddImage(ctx context.Context, id int64, ref string) (*models.Note, error)
	Export(ctx context.Context, dst storage.Provider) (bool, error)
}

// ListOptions filters List.
type ListOptions struct {
	Tag            string
	IncludeDeleted bool
}

// Verify *Store satisfies Repository at compile time.
var _ Repository = (*Store)(nil)
