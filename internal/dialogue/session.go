// Package dialogue is the conversation engine. It turns parsed messages into
// note store operations and reply text, one session at a time.
package dialogue

import (
	"github.com/starford/quill/internal/aibridge"
	"github.com/starford/quill/internal/models"
	"github.com/starford/quill/internal/tracker"
)

// Mode is the interaction mode of a session.
type Mode int

const (
	ModeIdle Mode = iota
	ModeAwaitingConfirmation
	ModeEditingDescription
	ModeSelectingSubNote
	ModeAIConversation
)

func (m Mode) String() string {
	switch m {
	case ModeAwaitingConfirmation:
		return "awaiting_confirmation"
	case ModeEditingDescription:
		return "editing_description"
	case ModeSelectingSubNote:
		return "selecting_sub_note"
	case ModeAIConversation:
		return "ai_conversation"
	default:
		return "idle"
	}
}

// ActionKind names a mutating action waiting on the confirmation gate.
type ActionKind int

const (
	ActCreateNote ActionKind = iota
	ActCreateSub
	ActDelete
	ActMarkDone
	ActUpdateDescription
)

func (k ActionKind) String() string {
	switch k {
	case ActCreateSub:
		return "create_sub"
	case ActDelete:
		return "delete"
	case ActMarkDone:
		return "mark_done"
	case ActUpdateDescription:
		return "update_description"
	default:
		return "create_note"
	}
}

// Action is a fully resolved mutation.
type Action struct {
	Kind ActionKind
	// Title of the note to create.
	Title string
	// Target is the note acted on; for ActCreateSub it is the parent.
	Target models.Note
	// Text is the composed description for ActUpdateDescription.
	Text string
}

// maxAIHistory bounds the exchanges sent with each AI question.
const maxAIHistory = 10

type aiState struct {
	// epoch changes whenever a conversation starts or ends, so answers to
	// questions from an earlier conversation can be recognized.
	epoch   uint64
	noteID  int64
	title   string
	history []aibridge.Exchange
}

// Session is the per-connection conversation state. It is owned by a single
// goroutine; the Machine never touches it concurrently.
type Session struct {
	ID string

	mode    Mode
	pending *Action
	buffer  []string
	stack   tracker.Tracker
	ai      aiState

	// post feeds asynchronous events (AI answers) back into the owner's
	// event loop.
	post func(Event)
}

// NewSession creates an idle session. post is called from other goroutines
// and must not block.
func NewSession(id string, post func(Event)) *Session {
	return &Session{ID: id, post: post}
}

// Mode returns the current interaction mode.
func (s *Session) Mode() Mode { return s.mode }

// Current returns the selected note, if any.
func (s *Session) Current() (models.Note, bool) { return s.stack.Top() }

// Pending returns a copy of the action awaiting confirmation.
func (s *Session) Pending() (Action, bool) {
	if s.pending == nil {
		return Action{}, false
	}
	return *s.pending, true
}

// Depth returns the number of selection frames.
func (s *Session) Depth() int { return s.stack.Len() }

// toIdle clears every mode-scoped field.
func (s *Session) toIdle() {
	if s.mode == ModeAIConversation {
		s.ai = aiState{epoch: s.ai.epoch + 1}
	}
	s.mode = ModeIdle
	s.pending = nil
	s.buffer = nil
}
