package tracker

import (
	"testing"

	"github.com/starford/quill/internal/models"
)

func note(id int64, title string) models.Note {
	return models.Note{ID: id, Title: title}
}

func TestEmptyTracker(t *testing.T) {
	var tr Tracker
	if _, ok := tr.Top(); ok {
		t.Error("Top on empty tracker should report false")
	}
	if _, ok := tr.Pop(); ok {
		t.Error("Pop on empty tracker should report false")
	}
	tr.Push()
	if tr.Len() != 0 {
		t.Errorf("Push() with no notes changed Len to %d", tr.Len())
	}
}

func TestPushPopOrder(t *testing.T) {
	var tr Tracker
	tr.Push(note(1, "parent"))
	tr.Push(note(2, "child"))

	if top, _ := tr.Top(); top.ID != 2 {
		t.Fatalf("Top = %d, want 2", top.ID)
	}
	if popped, _ := tr.Pop(); popped.ID != 2 {
		t.Fatalf("Pop = %d, want 2", popped.ID)
	}
	if top, _ := tr.Top(); top.ID != 1 {
		t.Fatalf("Top after pop = %d, want 1", top.ID)
	}
}

func TestMultiCandidateFrame(t *testing.T) {
	var tr Tracker
	tr.Push(note(3, "milk"), note(5, "milkshake"))

	if top, _ := tr.Top(); top.ID != 3 {
		t.Errorf("Top = %d, want first candidate 3", top.ID)
	}
	if len(tr.TopFrame()) != 2 {
		t.Errorf("TopFrame len = %d", len(tr.TopFrame()))
	}

	if _, ok := tr.Narrow(99); ok {
		t.Error("Narrow to unknown id should fail")
	}
	n, ok := tr.Narrow(5)
	if !ok || n.ID != 5 {
		t.Fatalf("Narrow(5) = %v, %v", n, ok)
	}
	if tr.Len() != 1 || len(tr.TopFrame()) != 1 {
		t.Errorf("Narrow should replace the top frame, got len %d frame %v", tr.Len(), tr.TopFrame())
	}
}

func TestPushCopiesInput(t *testing.T) {
	var tr Tracker
	notes := []models.Note{note(1, "a"), note(2, "b")}
	tr.Push(notes...)
	notes[0].Title = "mutated"
	if top, _ := tr.Top(); top.Title != "a" {
		t.Errorf("tracker aliased caller slice: %q", top.Title)
	}
}

func TestRefreshAndReset(t *testing.T) {
	var tr Tracker
	tr.Push(note(1, "old"))
	tr.Push(note(2, "x"), note(1, "old"))

	tr.Refresh(models.Note{ID: 1, Title: "new", Done: true})
	frame := tr.TopFrame()
	if frame[1].Title != "new" || !frame[1].Done {
		t.Errorf("top frame not refreshed: %+v", frame[1])
	}
	tr.Pop()
	if top, _ := tr.Top(); top.Title != "new" {
		t.Errorf("lower frame not refreshed: %+v", top)
	}

	tr.Reset()
	if tr.Len() != 0 {
		t.Errorf("Len after Reset = %d", tr.Len())
	}
}
