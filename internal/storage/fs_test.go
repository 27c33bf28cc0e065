package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/quill/internal/checksum"
)

func tempRoot(t *testing.T) *FS {
	t.Helper()
	fs, err := NewFS(t.TempDir())
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	return fs
}

func TestWriteReadNested(t *testing.T) {
	s := tempRoot(t)
	if err := s.Write("attachments/a/b.png", []byte("png")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := s.Read("attachments/a/b.png")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != "png" {
		t.Errorf("content = %q", got)
	}
}

func TestOverwriteLeavesNoTempFiles(t *testing.T) {
	s := tempRoot(t)
	_ = s.Write("snapshots/notes.json", []byte("v1"))
	if err := s.Write("snapshots/notes.json", []byte("v2")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, _ := s.Read("snapshots/notes.json")
	if string(got) != "v2" {
		t.Errorf("got %q, want v2", got)
	}
	matches, _ := filepath.Glob(filepath.Join(s.Root(), "snapshots", tempPrefix+"*"))
	if len(matches) != 0 {
		t.Errorf("leftover temp files: %v", matches)
	}
}

func TestDeleteAndMove(t *testing.T) {
	s := tempRoot(t)
	_ = s.Write("old.bin", []byte("data"))
	if err := s.Move("old.bin", "sub/new.bin"); err != nil {
		t.Fatalf("Move: %v", err)
	}
	if _, err := s.Read("old.bin"); err == nil {
		t.Error("old path should not exist")
	}
	if err := s.Delete("sub/new.bin"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Read("sub/new.bin"); err == nil {
		t.Error("expected error reading deleted file")
	}
}

func TestListReportsChecksums(t *testing.T) {
	s := tempRoot(t)
	_ = s.Write("attachments/x.png", []byte("x"))
	_ = s.Write("attachments/y.jpg", []byte("yy"))

	items, err := s.List("attachments")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("len = %d, want 2", len(items))
	}
	if items[0].Path != "attachments/x.png" || items[0].Checksum != checksum.Sum([]byte("x")) {
		t.Errorf("first item = %+v", items[0])
	}
	if items[1].Size != 2 {
		t.Errorf("size = %d, want 2", items[1].Size)
	}
}

func TestListMissingDir(t *testing.T) {
	s := tempRoot(t)
	items, err := s.List("nope")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 0 {
		t.Errorf("items = %v", items)
	}
}

func TestTraversalBlocked(t *testing.T) {
	s := tempRoot(t)
	for _, p := range []string{"../../etc/passwd", "../outside.png", "/etc/shadow"} {
		if _, err := s.Read(p); err == nil {
			t.Errorf("expected error for read of %q", p)
		}
		if err := s.Write(p, []byte("x")); err == nil {
			t.Errorf("expected error for write to %q", p)
		}
	}
}

func TestNewFS_CreatesRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "data", "nested")
	if _, err := NewFS(root); err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	if info, err := os.Stat(root); err != nil || !info.IsDir() {
		t.Errorf("root not created: %v", err)
	}
}

func TestNewFS_FileNotDir(t *testing.T) {
	f, _ := os.CreateTemp(t.TempDir(), "quill-test-*")
	_ = f.Close()
	if _, err := NewFS(f.Name()); err == nil {
		t.Error("expected error when root is a file")
	}
}
