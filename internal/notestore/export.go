package notestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/starford/quill/internal/checksum"
	"github.com/starford/quill/internal/models"
	"github.com/starford/quill/internal/storage"
)

// Snapshot locations relative to the data root. Export keeps one previous
// generation next to the current one.
const (
	SnapshotPath         = "snapshots/notes.json"
	PreviousSnapshotPath = "snapshots/notes.prev.json"
)

// Snapshot is the exported document: every note including deleted ones, and
// the highest id ever allocated.
type Snapshot struct {
	Notes      []models.Note `json:"notes"`
	LastNoteID int64         `json:"last_note_id"`
}

// Export writes a JSON snapshot of the store to dst. It reports false when
// the snapshot already on disk is identical; otherwise the old snapshot is
// moved to PreviousSnapshotPath first.
func (s *Store) Export(ctx context.Context, dst storage.Provider) (bool, error) {
	notes, err := s.List(ctx, ListOptions{IncludeDeleted: true})
	if err != nil {
		return false, err
	}
	last, err := s.lastNoteID(ctx)
	if err != nil {
		return false, err
	}

	data, err := json.MarshalIndent(Snapshot{Notes: notes, LastNoteID: last}, "", "  ")
	if err != nil {
		return false, fmt.Errorf("notestore: encode snapshot: %w", err)
	}
	prev, err := dst.Read(SnapshotPath)
	if err == nil {
		if checksum.Equal(data, checksum.Sum(prev)) {
			return false, nil
		}
		if err := dst.Move(SnapshotPath, PreviousSnapshotPath); err != nil {
			return false, err
		}
	}
	if err := dst.Write(SnapshotPath, data); err != nil {
		return false, err
	}
	return true, nil
}

// lastNoteID reads the AUTOINCREMENT high-water mark, which survives deletes.
func (s *Store) lastNoteID(ctx context.Context) (int64, error) {
	var seq int64
	err := s.conn.QueryRowContext(ctx,
		`SELECT seq FROM sqlite_sequence WHERE name = 'notes'`).Scan(&seq)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("notestore: read sequence: %w", err)
	}
	return seq, nil
}
