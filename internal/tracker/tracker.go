// Package tracker keeps a session's navigation history: which note (or set
// of candidate notes) the conversation is currently about.
package tracker

import "github.com/starford/quill/internal/models"

// Frame is one level of the selection stack. A frame produced by a search
// can hold several candidates; the first one is the current note.
type Frame []models.Note

// Tracker is a stack of frames. The zero value is an empty stack.
// It is not safe for concurrent use; each session owns one.
type Tracker struct {
	frames []Frame
}

// Push adds a frame holding notes. Pushing nothing is a no-op.
func (t *Tracker) Push(notes ...models.Note) {
	if len(notes) == 0 {
		return
	}
	t.frames = append(t.frames, append(Frame(nil), notes...))
}

// Pop removes the top frame and returns its current note.
func (t *Tracker) Pop() (models.Note, bool) {
	if len(t.frames) == 0 {
		return models.Note{}, false
	}
	top := t.frames[len(t.frames)-1]
	t.frames = t.frames[:len(t.frames)-1]
	return top[0], true
}

// Top returns the current note.
func (t *Tracker) Top() (models.Note, bool) {
	if len(t.frames) == 0 {
		return models.Note{}, false
	}
	return t.frames[len(t.frames)-1][0], true
}

// TopFrame returns a copy of the top frame.
func (t *Tracker) TopFrame() Frame {
	if len(t.frames) == 0 {
		return nil
	}
	return append(Frame(nil), t.frames[len(t.frames)-1]...)
}

// Narrow replaces the top frame with the single candidate whose id is id.
func (t *Tracker) Narrow(id int64) (models.Note, bool) {
	if len(t.frames) == 0 {
		return models.Note{}, false
	}
	for _, n := range t.frames[len(t.frames)-1] {
		if n.ID == id {
			t.frames[len(t.frames)-1] = Frame{n}
			return n, true
		}
	}
	return models.Note{}, false
}

// Refresh replaces every copy of note held in the stack with the given
// version, so later renders see the latest title and flags.
func (t *Tracker) Refresh(note models.Note) {
	for _, f := range t.frames {
		for i := range f {
			if f[i].ID == note.ID {
				f[i] = note
			}
		}
	}
}

// Reset empties the stack.
func (t *Tracker) Reset() {
	t.frames = nil
}

// Len returns the number of frames.
func (t *Tracker) Len() int {
	return len(t.frames)
}
