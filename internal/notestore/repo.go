package notestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/starford/quill/internal/apperr"
	"github.com/starford/quill/internal/models"
)

const noteColumns = `id, title, description, parent_id, done, done_date, creation_date,
	last_updated, deleted, deletion_date, images, tags`

type rowScanner interface {
	Scan(dest ...any) error
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func scanNote(sc rowScanner) (*models.Note, error) {
	var (
		n                      models.Note
		parent                 sql.NullInt64
		doneDate, deletionDate sql.NullTime
		images, tags           string
	)
	err := sc.Scan(&n.ID, &n.Title, &n.Description, &parent, &n.Done, &doneDate,
		&n.CreationDate, &n.LastUpdated, &n.Deleted, &deletionDate, &images, &tags)
	if err != nil {
		return nil, err
	}
	if parent.Valid {
		id := parent.Int64
		n.ParentID = &id
	}
	if doneDate.Valid {
		t := doneDate.Time
		n.DoneDate = &t
	}
	if deletionDate.Valid {
		t := deletionDate.Time
		n.DeletionDate = &t
	}
	if err := json.Unmarshal([]byte(images), &n.Images); err != nil {
		return nil, fmt.Errorf("notestore: decode images of note %d: %w", n.ID, err)
	}
	if err := json.Unmarshal([]byte(tags), &n.Tags); err != nil {
		return nil, fmt.Errorf("notestore: decode tags of note %d: %w", n.ID, err)
	}
	n.Images = nonNilSlice(n.Images)
	n.Tags = nonNilSlice(n.Tags)
	return &n, nil
}

// getNote loads a note regardless of its deleted flag.
func getNote(ctx context.Context, q queryer, id int64) (*models.Note, error) {
	row := q.QueryRowContext(ctx, `SELECT `+noteColumns+` FROM notes WHERE id = ?`, id)
	return scanNote(row)
}

func (s *Store) queryNotes(ctx context.Context, query string, args ...any) ([]models.Note, error) {
	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("notestore: query: %w", err)
	}
	defer rows.Close()

	out := []models.Note{}
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *n)
	}
	return out, rows.Err()
}

// Create allocates the next id and inserts a new note. A non-nil parentID must
// reference a note that exists and is not deleted.
func (s *Store) Create(ctx context.Context, title string, parentID *int64) (*models.Note, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, apperr.Validation("title is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("notestore: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	var parent sql.NullInt64
	if parentID != nil {
		p, err := getNote(ctx, tx, *parentID)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("notestore: load parent: %w", err)
		}
		if p == nil || p.Deleted {
			return nil, apperr.Validation(fmt.Sprintf("parent note %d does not exist", *parentID))
		}
		parent = sql.NullInt64{Int64: *parentID, Valid: true}
	}

	now := s.timestamp()
	res, err := tx.ExecContext(ctx, `
		INSERT INTO notes (title, parent_id, creation_date, last_updated)
		VALUES (?, ?, ?, ?)
	`, title, parent, now, now)
	if err != nil {
		return nil, fmt.Errorf("notestore: insert note: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("notestore: last insert id: %w", err)
	}

	note, err := getNote(ctx, tx, id)
	if err != nil {
		return nil, fmt.Errorf("%w: note %d vanished after insert: %v", apperr.ErrConflict, id, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("notestore: commit: %w", err)
	}
	return note, nil
}

// FindByID returns the note only if it is not deleted.
func (s *Store) FindByID(ctx context.Context, id int64) (*models.Note, error) {
	n, err := getNote(ctx, s.conn, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFound(fmt.Sprintf("note %d", id))
		}
		return nil, fmt.Errorf("notestore: find by id: %w", err)
	}
	if n.Deleted {
		return nil, apperr.NotFound(fmt.Sprintf("note %d", id))
	}
	return n, nil
}

// FindByTitle returns non-deleted notes whose title contains query,
// case-insensitively, ordered by id.
func (s *Store) FindByTitle(ctx context.Context, query string) ([]models.Note, error) {
	needle := strings.ToLower(strings.TrimSpace(query))
	if needle == "" {
		return nil, apperr.Validation("search text is required")
	}
	// Matching happens in Go: SQLite's lower() only folds ASCII.
	all, err := s.queryNotes(ctx, `SELECT `+noteColumns+` FROM notes WHERE deleted = 0 ORDER BY id`)
	if err != nil {
		return nil, err
	}
	out := []models.Note{}
	for _, n := range all {
		if strings.Contains(strings.ToLower(n.Title), needle) {
			out = append(out, n)
		}
	}
	return out, nil
}

// ListParents returns all non-deleted top-level notes.
func (s *Store) ListParents(ctx context.Context) ([]models.Note, error) {
	return s.queryNotes(ctx, `SELECT `+noteColumns+` FROM notes
		WHERE deleted = 0 AND parent_id IS NULL ORDER BY id`)
}

// ListChildren returns the non-deleted direct children of parentID.
func (s *Store) ListChildren(ctx context.Context, parentID int64) ([]models.Note, error) {
	return s.queryNotes(ctx, `SELECT `+noteColumns+` FROM notes
		WHERE deleted = 0 AND parent_id = ? ORDER BY id`, parentID)
}

// ListOrphans returns non-deleted notes whose parent is deleted or missing.
func (s *Store) ListOrphans(ctx context.Context) ([]models.Note, error) {
	return s.queryNotes(ctx, `SELECT `+noteColumns+` FROM notes
		WHERE deleted = 0 AND parent_id IS NOT NULL
		  AND parent_id NOT IN (SELECT id FROM notes WHERE deleted = 0)
		ORDER BY id`)
}

// Recent returns non-deleted notes created at or after since.
func (s *Store) Recent(ctx context.Context, since time.Time) ([]models.Note, error) {
	all, err := s.queryNotes(ctx, `SELECT `+noteColumns+` FROM notes WHERE deleted = 0 ORDER BY id`)
	if err != nil {
		return nil, err
	}
	out := []models.Note{}
	for _, n := range all {
		if !n.CreationDate.Before(since) {
			out = append(out, n)
		}
	}
	return out, nil
}

// List returns notes ordered by id, optionally filtered by tag.
func (s *Store) List(ctx context.Context, opts ListOptions) ([]models.Note, error) {
	q := `SELECT ` + noteColumns + ` FROM notes`
	if !opts.IncludeDeleted {
		q += ` WHERE deleted = 0`
	}
	all, err := s.queryNotes(ctx, q+` ORDER BY id`)
	if err != nil {
		return nil, err
	}
	if opts.Tag == "" {
		return all, nil
	}
	out := []models.Note{}
	for _, n := range all {
		if slices.Contains(n.Tags, opts.Tag) {
			out = append(out, n)
		}
	}
	return out, nil
}

// Update merges fields into a non-deleted note and refreshes last_updated.
func (s *Store) Update(ctx context.Context, id int64, fields models.Fields) (*models.Note, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("notestore: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	n, err := getNote(ctx, tx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFound(fmt.Sprintf("note %d", id))
		}
		return nil, fmt.Errorf("notestore: load note: %w", err)
	}
	if n.Deleted {
		return nil, apperr.NotFound(fmt.Sprintf("note %d", id))
	}

	now := s.timestamp()
	applyFields(n, fields, now)
	n.LastUpdated = now

	if err := writeNote(ctx, tx, n); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("notestore: commit: %w", err)
	}
	return n, nil
}

func applyFields(n *models.Note, f models.Fields, now time.Time) {
	if f.Description != nil {
		n.Description = *f.Description
	}
	if f.AppendDescription != "" {
		if strings.TrimSpace(n.Description) == "" {
			n.Description = f.AppendDescription
		} else {
			n.Description = n.Description + "\n\n" + f.AppendDescription
		}
	}
	if f.Done != nil {
		switch {
		case *f.Done && !n.Done:
			n.Done = true
			t := now
			n.DoneDate = &t
		case !*f.Done:
			n.Done = false
			n.DoneDate = nil
		}
	}
	for _, ref := range f.Images {
		if ref != "" && !slices.Contains(n.Images, ref) {
			n.Images = append(n.Images, ref)
		}
	}
	if f.Tags != nil {
		tags := []string{}
		for _, t := range f.Tags {
			t = strings.TrimSpace(t)
			if t != "" && !slices.Contains(tags, t) {
				tags = append(tags, t)
			}
		}
		slices.Sort(tags)
		n.Tags = tags
	}
}

func writeNote(ctx context.Context, tx *sql.Tx, n *models.Note) error {
	images, err := json.Marshal(nonNilSlice(n.Images))
	if err != nil {
		return fmt.Errorf("notestore: encode images: %w", err)
	}
	tags, err := json.Marshal(nonNilSlice(n.Tags))
	if err != nil {
		return fmt.Errorf("notestore: encode tags: %w", err)
	}
	res, err := tx.ExecContext(ctx, `
		UPDATE notes SET
			description   = ?,
			done          = ?,
			done_date     = ?,
			last_updated  = ?,
			deleted       = ?,
			deletion_date = ?,
			images        = ?,
			tags          = ?
		WHERE id = ?
	`, n.Description, n.Done, nullTime(n.DoneDate), n.LastUpdated, n.Deleted,
		nullTime(n.DeletionDate), string(images), string(tags), n.ID)
	if err != nil {
		return fmt.Errorf("notestore: update note %d: %w", n.ID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("notestore: rows affected: %w", err)
	}
	if affected != 1 {
		return fmt.Errorf("%w: update of note %d touched %d rows", apperr.ErrConflict, n.ID, affected)
	}
	return nil
}

// SoftDelete marks a note deleted. Children are left untouched.
func (s *Store) SoftDelete(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("notestore: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	n, err := getNote(ctx, tx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return apperr.NotFound(fmt.Sprintf("note %d", id))
		}
		return fmt.Errorf("notestore: load note: %w", err)
	}
	if n.Deleted {
		return apperr.NotFound(fmt.Sprintf("note %d", id))
	}

	now := s.timestamp()
	n.Deleted = true
	n.DeletionDate = &now
	n.LastUpdated = now
	if err := writeNote(ctx, tx, n); err != nil {
		return err
	}
	return tx.Commit()
}

// AddImage appends ref to the note's images. A reference already attached is
// not duplicated.
func (s *Store) AddImage(ctx context.Context, id int64, ref string) (*models.Note, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, apperr.Validation("image reference is required")
	}
	return s.Update(ctx, id, models.Fields{Images: []string{ref}})
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func nonNilSlice[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
