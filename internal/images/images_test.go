package images

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/starford/quill/internal/apperr"
	"github.com/starford/quill/internal/models"
	"github.com/starford/quill/internal/testutil"
)

var (
	pngBytes  = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
	jpegBytes = []byte("\xff\xd8\xff\xe0\x00\x10JFIF\x00")
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func eventually(t *testing.T, timeout, tick time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(tick)
	}
	t.Error(msg)
}

func TestAttachStoresFileAndReference(t *testing.T) {
	repo := testutil.TestStore(t)
	root, store := testutil.TestData(t)
	a := NewAttacher(repo, store, 0, discardLogger())
	n := testutil.MustCreate(t, repo, "Trip", nil)

	got, err := a.Attach(context.Background(), n.ID, "Photo.JPEG", jpegBytes)
	if err != nil {
		t.Fatalf("Attach: %v", err)
	}
	if len(got.Images) != 1 {
		t.Fatalf("images = %v, want one", got.Images)
	}
	ref := got.Images[0]
	if !strings.HasPrefix(ref, Dir+"/") || !strings.HasSuffix(ref, ".jpeg") {
		t.Errorf("ref = %q, want attachments/<uuid>.jpeg", ref)
	}
	data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(ref)))
	if err != nil {
		t.Fatalf("stored file: %v", err)
	}
	if string(data) != string(jpegBytes) {
		t.Error("stored bytes differ from upload")
	}
}

func TestAttachRejections(t *testing.T) {
	repo := testutil.TestStore(t)
	_, store := testutil.TestData(t)
	a := NewAttacher(repo, store, 2, discardLogger())
	ctx := context.Background()
	n := testutil.MustCreate(t, repo, "Trip", nil)

	tests := []struct {
		name     string
		noteID   int64
		filename string
		data     []byte
		want     error
	}{
		{"extension", n.ID, "notes.txt", []byte("hello"), apperr.ErrValidation},
		{"empty", n.ID, "a.png", nil, apperr.ErrValidation},
		{"content mismatch", n.ID, "a.png", jpegBytes, apperr.ErrValidation},
		{"missing note", 999, "a.png", pngBytes, apperr.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := a.Attach(ctx, tt.noteID, tt.filename, tt.data)
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestAttachEnforcesMaxPerNote(t *testing.T) {
	repo := testutil.TestStore(t)
	_, store := testutil.TestData(t)
	a := NewAttacher(repo, store, 2, discardLogger())
	ctx := context.Background()
	n := testutil.MustCreate(t, repo, "Trip", nil)

	for i := 0; i < 2; i++ {
		if _, err := a.Attach(ctx, n.ID, "a.png", pngBytes); err != nil {
			t.Fatalf("Attach %d: %v", i, err)
		}
	}
	if _, err := a.Attach(ctx, n.ID, "a.png", pngBytes); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("third Attach err = %v, want validation", err)
	}
	files, err := store.List(Dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 2 {
		t.Errorf("stored %d files, want 2", len(files))
	}
}

func TestAttachConcurrentRespectsLimit(t *testing.T) {
	repo := testutil.TestStore(t)
	_, store := testutil.TestData(t)
	a := NewAttacher(repo, store, 3, discardLogger())
	n := testutil.MustCreate(t, repo, "Trip", nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = a.Attach(context.Background(), n.ID, "a.png", pngBytes)
		}()
	}
	wg.Wait()

	got, err := repo.FindByID(context.Background(), n.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Images) != 3 {
		t.Errorf("images = %d, want 3", len(got.Images))
	}
}

func TestWatchInbox(t *testing.T) {
	repo := testutil.TestStore(t)
	_, store := testutil.TestData(t)
	inboxDir := t.TempDir()
	a := NewAttacher(repo, store, 0, discardLogger())

	existing := testutil.MustCreate(t, repo, "Existing", nil)
	later := testutil.MustCreate(t, repo, "Later", nil)

	// A file dropped before the watcher starts is picked up by the sweep.
	preDir := filepath.Join(inboxDir, fmt.Sprint(existing.ID))
	if err := os.MkdirAll(preDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(preDir, "early.png"), pngBytes, 0o644); err != nil {
		t.Fatal(err)
	}

	var mu sync.Mutex
	var attached []string
	cb := func(n models.Note, source string) {
		mu.Lock()
		attached = append(attached, source)
		mu.Unlock()
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- WatchInbox(ctx, inboxDir, a, discardLogger(), cb) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	imageCount := func(id int64) int {
		n, err := repo.FindByID(context.Background(), id)
		if err != nil {
			return -1
		}
		return len(n.Images)
	}

	eventually(t, 3*time.Second, 20*time.Millisecond, func() bool {
		return imageCount(existing.ID) == 1
	}, "pre-existing inbox file was not attached")

	// A directory created while watching is followed.
	newDir := filepath.Join(inboxDir, fmt.Sprint(later.ID))
	if err := os.MkdirAll(newDir, 0o755); err != nil {
		t.Fatal(err)
	}
	dropped := filepath.Join(newDir, "late.png")
	if err := os.WriteFile(dropped, pngBytes, 0o644); err != nil {
		t.Fatal(err)
	}
	eventually(t, 3*time.Second, 20*time.Millisecond, func() bool {
		return imageCount(later.ID) == 1
	}, "file in new inbox dir was not attached")
	eventually(t, 3*time.Second, 20*time.Millisecond, func() bool {
		_, err := os.Stat(dropped)
		return errors.Is(err, os.ErrNotExist)
	}, "attached file was not removed from inbox")

	// Rejected files stay put.
	rejected := filepath.Join(newDir, "readme.txt")
	if err := os.WriteFile(rejected, []byte("not an image"), 0o644); err != nil {
		t.Fatal(err)
	}
	time.Sleep(3 * settleDelay)
	if _, err := os.Stat(rejected); err != nil {
		t.Errorf("rejected file removed: %v", err)
	}
	if got := imageCount(later.ID); got != 1 {
		t.Errorf("later images = %d, want 1", got)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(attached) != 2 {
		t.Errorf("callback saw %v, want two attachments", attached)
	}
}
