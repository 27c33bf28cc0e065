// Package testutil provides shared test helpers for setting up stores and
// data directories.
package testutil

import (
	"context"
	"os"
	"testing"

	"github.com/starford/quill/internal/models"
	"github.com/starford/quill/internal/notestore"
	"github.com/starford/quill/internal/storage"
)

// TestStore opens a note store on a temporary SQLite file that is removed
// when the test ends.
func TestStore(t *testing.T, opts ...notestore.Option) *notestore.Store {
	t.Helper()
	dbFile, err := os.CreateTemp(t.TempDir(), "quill-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()

	st, err := notestore.Open(dbFile.Name(), opts...)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

// TestData creates a temporary data root with a storage.Provider.
func TestData(t *testing.T) (string, *storage.FS) {
	t.Helper()
	dir := t.TempDir()
	fs, err := storage.NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	return dir, fs
}

// MustCreate creates a note or fails the test.
func MustCreate(t *testing.T, repo notestore.Repository, title string, parent *int64) *models.Note {
	t.Helper()
	n, err := repo.Create(context.Background(), title, parent)
	if err != nil {
		t.Fatalf("Create(%q): %v", title, err)
	}
	return n
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T { return &v }
