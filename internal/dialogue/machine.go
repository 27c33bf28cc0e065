package dialogue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"

	"github.com/starford/quill/internal/aibridge"
	"github.com/starford/quill/internal/apperr"
	"github.com/starford/quill/internal/confirm"
	"github.com/starford/quill/internal/models"
	"github.com/starford/quill/internal/notestore"
	"github.com/starford/quill/internal/parser"
)

// Machine applies events to sessions. It holds no per-session state and may
// be shared by every connection.
type Machine struct {
	repo   notestore.Repository
	bridge aibridge.Bridge
	out    Outbox
	logger *slog.Logger
}

// NewMachine creates a Machine.
func NewMachine(repo notestore.Repository, bridge aibridge.Bridge, out Outbox, logger *slog.Logger) *Machine {
	return &Machine{repo: repo, bridge: bridge, out: out, logger: logger}
}

// Apply processes one event for s. Every Message yields exactly one Deliver
// to s; AI answers are broadcast.
func (m *Machine) Apply(ctx context.Context, s *Session, ev Event) {
	switch ev := ev.(type) {
	case Message:
		from := s.mode
		reply := m.handle(ctx, s, ev)
		m.logger.Debug("dialogue transition",
			"session", s.ID, "mode_from", from.String(), "mode_to", s.mode.String(), "event", "message")
		m.out.Deliver(s.ID, reply)
	case AIAnswer:
		m.answer(s, ev)
	}
}

func (m *Machine) handle(ctx context.Context, s *Session, msg Message) string {
	p := parser.Parse(msg.Text)
	switch p.Kind {
	case parser.UnknownCommand:
		return replyUnknownCommand
	case parser.FreeText:
		return m.freeText(ctx, s, p.Text, msg.AutoConfirm)
	}

	// Accepted in every mode.
	switch p.Verb {
	case parser.Help:
		return HelpText()
	case parser.FindByTitle, parser.FindByID, parser.ShowParents:
		notice := m.leaveMode(s)
		return joinReply(notice, m.find(ctx, s, p))
	case parser.Back:
		if s.mode != ModeAwaitingConfirmation && s.mode != ModeSelectingSubNote {
			return m.back(ctx, s)
		}
	case parser.Cancel:
		return m.cancel(s)
	}

	switch s.mode {
	case ModeAwaitingConfirmation:
		return joinReply("Please answer yes or no first.", confirmPrompt(*s.pending))
	case ModeSelectingSubNote:
		return fmt.Sprintf("Please tell me the name of the sub-note under '%s', or say /cancel.", s.pending.Target.Title)
	case ModeEditingDescription:
		switch p.Verb {
		case parser.StopEditing:
			return m.stopEditing(ctx, s, msg.AutoConfirm)
		case parser.CreateSub:
			s.toIdle()
			return joinReply("Description editing discarded.", m.command(ctx, s, p, msg.AutoConfirm))
		}
		return fmt.Sprintf("You're editing the description of '%s'. Say /stopediting to finish or /cancel to discard.",
			s.pending.Target.Title)
	case ModeAIConversation:
		return fmt.Sprintf("You're talking with the AI about '%s'. Say /cancel to end the conversation first.", s.ai.title)
	}
	return m.command(ctx, s, p, msg.AutoConfirm)
}

// command handles a command in Idle.
func (m *Machine) command(ctx context.Context, s *Session, p parser.Result, auto bool) string {
	switch p.Verb {
	case parser.CreateNote:
		if p.Arg == "" {
			return "Usage: /createnote <title>"
		}
		return m.gate(ctx, s, Action{Kind: ActCreateNote, Title: p.Arg}, auto)
	case parser.StopEditing:
		return "You're not editing a description. Select a note and use /editdescription first."
	}

	note, notice, err := m.current(ctx, s)
	if err != nil {
		return joinReply(notice, m.errorReply(s, err))
	}
	if notice != "" {
		// The selected note went away; show where the user landed instead
		// of acting on a note they never picked.
		children, err := m.repo.ListChildren(ctx, note.ID)
		if err != nil {
			return joinReply(notice, m.errorReply(s, err))
		}
		return joinReply(notice, returnedTo(note), renderTree(note, children))
	}

	var reply string
	switch p.Verb {
	case parser.EditDesc:
		s.mode = ModeEditingDescription
		s.pending = &Action{Kind: ActUpdateDescription, Target: note}
		s.buffer = nil
		reply = fmt.Sprintf("I'll start description editing mode for '%s'. Type or record the new content. To finish, say /stopediting.", note.Title)
	case parser.Delete:
		reply = m.gate(ctx, s, Action{Kind: ActDelete, Target: note}, auto)
	case parser.MarkDone:
		reply = m.requestMarkDone(ctx, s, note, auto)
	case parser.CreateSub:
		s.mode = ModeSelectingSubNote
		s.pending = &Action{Kind: ActCreateSub, Target: note}
		reply = fmt.Sprintf("I'll create a sub-note under '%s'. What should be the name of the sub-note?", note.Title)
	case parser.SelectSubNote:
		reply = m.selectSub(ctx, s, note, p.Arg)
	case parser.TalkAI:
		s.mode = ModeAIConversation
		s.ai = aiState{epoch: s.ai.epoch + 1, noteID: note.ID, title: note.Title}
		reply = fmt.Sprintf("🤖 Started AI conversation about note '%s'. Ask your questions, or say 'cancel' to end the conversation.", note.Title)
	default:
		reply = replyUnknownCommand
	}
	return reply
}

func (m *Machine) freeText(ctx context.Context, s *Session, text string, auto bool) string {
	switch s.mode {
	case ModeAwaitingConfirmation:
		switch confirm.Classify(text) {
		case confirm.Yes:
			a := *s.pending
			s.toIdle()
			return m.execute(ctx, s, a)
		case confirm.No:
			kind := s.pending.Kind
			s.toIdle()
			return cancelledReply(kind)
		}
		return joinReply("Please answer yes or no.", confirmPrompt(*s.pending))

	case ModeEditingDescription:
		fragment := strings.TrimSpace(text)
		if fragment == "" {
			return "Nothing to add. Type the description text, or say /stopediting to finish."
		}
		s.buffer = append(s.buffer, fragment)
		return "✅ Added to description. Continue writing or say /stopediting to finish."

	case ModeSelectingSubNote:
		parent := s.pending.Target
		switch confirm.Classify(text) {
		case confirm.No:
			s.toIdle()
			return cancelledReply(ActCreateSub)
		case confirm.Yes:
			return fmt.Sprintf("Please tell me the name of the sub-note under '%s'.", parent.Title)
		}
		title := parser.Unquote(text)
		if title == "" {
			return fmt.Sprintf("Please tell me the name of the sub-note under '%s'.", parent.Title)
		}
		s.toIdle()
		return m.gate(ctx, s, Action{Kind: ActCreateSub, Title: title, Target: parent}, auto)

	case ModeAIConversation:
		if confirm.IsCancel(text) {
			return m.cancel(s)
		}
		q := strings.TrimSpace(text)
		if q == "" {
			return fmt.Sprintf("Ask me a question about '%s', or say 'cancel' to end the conversation.", s.ai.title)
		}
		return m.ask(ctx, s, q)
	}

	if frame := s.stack.TopFrame(); len(frame) > 1 {
		return m.narrow(ctx, s, frame, text)
	}
	if confirm.Classify(text) != confirm.Other {
		return "There's nothing to confirm right now."
	}
	return replyIdleHint
}

// gate either parks a for confirmation or runs it now.
func (m *Machine) gate(ctx context.Context, s *Session, a Action, auto bool) string {
	if confirm.ShouldConfirm(auto) {
		s.mode = ModeAwaitingConfirmation
		s.pending = &a
		return confirmPrompt(a)
	}
	return m.execute(ctx, s, a)
}

func (m *Machine) execute(ctx context.Context, s *Session, a Action) string {
	switch a.Kind {
	case ActCreateNote:
		n, err := m.repo.Create(ctx, a.Title, nil)
		if err != nil {
			return m.errorReply(s, err)
		}
		s.stack.Push(*n)
		return fmt.Sprintf("Note created successfully! ID: %d, Title: '%s'", n.ID, n.Title)

	case ActCreateSub:
		n, err := m.repo.Create(ctx, a.Title, &a.Target.ID)
		if err != nil {
			if errors.Is(err, apperr.ErrValidation) {
				return m.targetGone(ctx, s, a.Target)
			}
			return m.errorReply(s, err)
		}
		s.stack.Push(*n)
		return fmt.Sprintf("Sub-note created successfully! ID: %d, Title: '%s'", n.ID, n.Title)

	case ActDelete:
		if err := m.repo.SoftDelete(ctx, a.Target.ID); err != nil {
			if errors.Is(err, apperr.ErrNotFound) {
				return m.targetGone(ctx, s, a.Target)
			}
			return m.errorReply(s, err)
		}
		return joinReply(fmt.Sprintf("Note '%s' deleted successfully!", a.Target.Title), m.leave(ctx, s, a.Target.ID))

	case ActMarkDone:
		open, err := m.openChildren(ctx, a.Target.ID)
		if err != nil {
			return m.errorReply(s, err)
		}
		if len(open) > 0 {
			return incompleteChildren(a.Target, open)
		}
		done := true
		if _, err := m.repo.Update(ctx, a.Target.ID, models.Fields{Done: &done}); err != nil {
			if errors.Is(err, apperr.ErrNotFound) {
				return m.targetGone(ctx, s, a.Target)
			}
			return m.errorReply(s, err)
		}
		return joinReply(fmt.Sprintf("Note '%s' marked as done successfully!", a.Target.Title), m.leave(ctx, s, a.Target.ID))

	case ActUpdateDescription:
		fields := models.Fields{AppendDescription: a.Text}
		if tags := parser.ExtractTags(a.Text); len(tags) > 0 {
			fields.Tags = append(slices.Clone(a.Target.Tags), tags...)
		}
		n, err := m.repo.Update(ctx, a.Target.ID, fields)
		if err != nil {
			if errors.Is(err, apperr.ErrNotFound) {
				return m.targetGone(ctx, s, a.Target)
			}
			return m.errorReply(s, err)
		}
		s.stack.Refresh(*n)
		return fmt.Sprintf("✅ Note description for '%s' updated successfully!", n.Title)
	}
	return replyGenericFailure
}

func (m *Machine) requestMarkDone(ctx context.Context, s *Session, note models.Note, auto bool) string {
	if note.Done {
		return fmt.Sprintf("Note '%s' is already done.", note.Title)
	}
	open, err := m.openChildren(ctx, note.ID)
	if err != nil {
		return m.errorReply(s, err)
	}
	if len(open) > 0 {
		return incompleteChildren(note, open)
	}
	return m.gate(ctx, s, Action{Kind: ActMarkDone, Target: note}, auto)
}

func (m *Machine) openChildren(ctx context.Context, id int64) ([]models.Note, error) {
	children, err := m.repo.ListChildren(ctx, id)
	if err != nil {
		return nil, err
	}
	var open []models.Note
	for _, c := range children {
		if !c.Done {
			open = append(open, c)
		}
	}
	return open, nil
}

func (m *Machine) stopEditing(ctx context.Context, s *Session, auto bool) string {
	target := s.pending.Target
	text := composeDescription(s.buffer)
	s.toIdle()
	if text == "" {
		return "No content was added to the description."
	}
	return m.gate(ctx, s, Action{Kind: ActUpdateDescription, Target: target, Text: text}, auto)
}

func (m *Machine) find(ctx context.Context, s *Session, p parser.Result) string {
	switch p.Verb {
	case parser.FindByID:
		if p.Arg == "" {
			return "Usage: /findbyid <id>"
		}
		id, err := strconv.ParseInt(strings.TrimPrefix(p.Arg, "#"), 10, 64)
		if err != nil {
			return fmt.Sprintf("No note found with ID '%s'", p.Arg)
		}
		n, err := m.repo.FindByID(ctx, id)
		if errors.Is(err, apperr.ErrNotFound) {
			return fmt.Sprintf("No note found with ID '%s'", p.Arg)
		}
		if err != nil {
			return m.errorReply(s, err)
		}
		return m.show(ctx, s, "Found note", *n)

	case parser.FindByTitle:
		if p.Arg == "" {
			return "Usage: /findnote <title>"
		}
		notes, err := m.repo.FindByTitle(ctx, p.Arg)
		if err != nil {
			return m.errorReply(s, err)
		}
		switch len(notes) {
		case 0:
			return fmt.Sprintf("No notes found for '%s'", p.Arg)
		case 1:
			return m.show(ctx, s, "Found note", notes[0])
		}
		s.stack.Push(notes...)
		return foundMany(notes)
	}
	return m.showParents(ctx, s)
}

// show pushes n and renders it with its children.
func (m *Machine) show(ctx context.Context, s *Session, prefix string, n models.Note) string {
	children, err := m.repo.ListChildren(ctx, n.ID)
	if err != nil {
		return m.errorReply(s, err)
	}
	s.stack.Push(n)
	return foundOne(prefix, n, children)
}

func (m *Machine) showParents(ctx context.Context, s *Session) string {
	parents, err := m.repo.ListParents(ctx)
	if err != nil {
		return m.errorReply(s, err)
	}
	orphans, err := m.repo.ListOrphans(ctx)
	if err != nil {
		return m.errorReply(s, err)
	}
	all := append(parents, orphans...)
	if len(all) == 0 {
		return "No parent notes found."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d parent notes:\n", len(all))
	for i, n := range all {
		children, err := m.repo.ListChildren(ctx, n.ID)
		if err != nil {
			return m.errorReply(s, err)
		}
		fmt.Fprintf(&b, "\n%d. %s '%s' (ID: %d) [%d sub-notes]", i+1, statusIcon(n), n.Title, n.ID, len(children))
		if i >= len(parents) {
			b.WriteString(" (orphaned)")
		}
	}
	b.WriteString("\n\nWhich note would you like to select? (say the number or name)")
	s.stack.Push(all...)
	return b.String()
}

// narrow picks one candidate of a multi-note frame by id, list position or
// exact title.
func (m *Machine) narrow(ctx context.Context, s *Session, frame []models.Note, text string) string {
	pick, ok := matchCandidate(frame, text)
	if !ok {
		return "Please pick one of the listed notes by its number or exact title:" + candidateList(frame)
	}
	s.stack.Narrow(pick.ID)
	n, notice, err := m.current(ctx, s)
	if err != nil {
		return joinReply(notice, m.errorReply(s, err))
	}
	children, err := m.repo.ListChildren(ctx, n.ID)
	if err != nil {
		return m.errorReply(s, err)
	}
	return joinReply(notice, foundOne("Selected note", n, children))
}

func matchCandidate(frame []models.Note, text string) (models.Note, bool) {
	t := strings.TrimSpace(text)
	lower := strings.ToLower(t)
	for _, p := range []string{"note ", "id "} {
		lower = strings.TrimPrefix(lower, p)
	}
	if num, err := strconv.ParseInt(strings.TrimPrefix(lower, "#"), 10, 64); err == nil {
		for _, n := range frame {
			if n.ID == num {
				return n, true
			}
		}
		if num >= 1 && num <= int64(len(frame)) {
			return frame[num-1], true
		}
		return models.Note{}, false
	}
	title := parser.Unquote(t)
	for _, n := range frame {
		if strings.EqualFold(n.Title, title) {
			return n, true
		}
	}
	return models.Note{}, false
}

func (m *Machine) selectSub(ctx context.Context, s *Session, parent models.Note, arg string) string {
	if arg == "" {
		return "Usage: /selectsubnote <id>"
	}
	id, err := strconv.ParseInt(strings.TrimPrefix(arg, "#"), 10, 64)
	if err != nil {
		return fmt.Sprintf("No sub-note found with ID %s under '%s'", arg, parent.Title)
	}
	n, err := m.repo.FindByID(ctx, id)
	if err != nil && !errors.Is(err, apperr.ErrNotFound) {
		return m.errorReply(s, err)
	}
	if n == nil || !n.IsChildOf(parent.ID) {
		return fmt.Sprintf("No sub-note found with ID %d under '%s'", id, parent.Title)
	}
	return m.show(ctx, s, "Selected sub-note", *n)
}

func (m *Machine) back(ctx context.Context, s *Session) string {
	notice := m.leaveMode(s)
	left, ok := s.stack.Pop()
	if !ok {
		return joinReply(notice, "Nothing to go back to.")
	}
	n, stale, err := m.current(ctx, s)
	if errors.Is(err, apperr.ErrNoContext) {
		return joinReply(notice, stale, fmt.Sprintf("Left note '%s'. No note is selected now.", left.Title))
	}
	if err != nil {
		return joinReply(notice, stale, m.errorReply(s, err))
	}
	children, err := m.repo.ListChildren(ctx, n.ID)
	if err != nil {
		return m.errorReply(s, err)
	}
	return joinReply(notice, stale, returnedTo(n), renderTree(n, children))
}

func (m *Machine) cancel(s *Session) string {
	if s.mode == ModeIdle {
		return "Nothing to cancel."
	}
	return m.leaveMode(s)
}

// leaveMode returns s to Idle and describes what was abandoned.
func (m *Machine) leaveMode(s *Session) string {
	var notice string
	switch s.mode {
	case ModeIdle:
		return ""
	case ModeAIConversation:
		notice = "AI conversation cancelled. Back to main mode."
	default:
		notice = cancelledReply(s.pending.Kind)
	}
	s.toIdle()
	return notice
}

// leave pops id if it is the current note and names the note the session
// returns to.
func (m *Machine) leave(ctx context.Context, s *Session, id int64) string {
	top, ok := s.stack.Top()
	if !ok || top.ID != id {
		return ""
	}
	s.stack.Pop()
	n, notice, err := m.current(ctx, s)
	if err != nil {
		return notice
	}
	return joinReply(notice, returnedTo(n))
}

// targetGone reports that the note an action was aimed at has disappeared.
func (m *Machine) targetGone(ctx context.Context, s *Session, target models.Note) string {
	return joinReply(noLongerExists(target), m.leave(ctx, s, target.ID))
}

// current re-reads the selected note, dropping frames whose note has been
// deleted since it was selected.
func (m *Machine) current(ctx context.Context, s *Session) (models.Note, string, error) {
	var notices []string
	for {
		top, ok := s.stack.Top()
		if !ok {
			return models.Note{}, strings.Join(notices, "\n"), apperr.ErrNoContext
		}
		n, err := m.repo.FindByID(ctx, top.ID)
		if err == nil {
			s.stack.Refresh(*n)
			return *n, strings.Join(notices, "\n"), nil
		}
		if !errors.Is(err, apperr.ErrNotFound) {
			return models.Note{}, strings.Join(notices, "\n"), err
		}
		s.stack.Pop()
		notices = append(notices, noLongerExists(top))
	}
}

func (m *Machine) ask(ctx context.Context, s *Session, question string) string {
	note, notice, err := m.current(ctx, s)
	if err != nil && !errors.Is(err, apperr.ErrNoContext) {
		return joinReply(notice, m.errorReply(s, err))
	}
	if err != nil || note.ID != s.ai.noteID {
		s.toIdle()
		return joinReply(notice, "The note of this AI conversation is no longer available. AI conversation ended.")
	}
	nc, err := aibridge.LoadContext(ctx, m.repo, note)
	if err != nil {
		return joinReply(notice, m.errorReply(s, err))
	}
	if s.post == nil {
		m.logger.Warn("session cannot receive ai answers", "session", s.ID)
		return joinReply(notice, replyAIFailure)
	}

	epoch, history, post := s.ai.epoch, slices.Clone(s.ai.history), s.post
	go func() {
		text, err := m.bridge.Ask(ctx, nc, question, history)
		post(AIAnswer{Epoch: epoch, NoteID: note.ID, Question: question, Text: text, Err: err})
	}()
	return joinReply(notice, fmt.Sprintf("🤖 Thinking about '%s'...", note.Title))
}

func (m *Machine) answer(s *Session, ev AIAnswer) {
	if s.mode != ModeAIConversation || ev.Epoch != s.ai.epoch || ev.NoteID != s.ai.noteID {
		m.logger.Info("dropping stale ai answer",
			"session", s.ID, "note_id", ev.NoteID, "epoch", ev.Epoch, "mode", s.mode.String())
		return
	}
	text := strings.TrimSpace(ev.Text)
	if ev.Err != nil || text == "" {
		m.logger.Warn("ai answer unavailable", "session", s.ID, "note_id", ev.NoteID, "err", ev.Err)
		m.out.Broadcast(replyAIFailure)
		return
	}
	s.ai.history = append(s.ai.history, aibridge.Exchange{Question: ev.Question, Answer: text})
	if len(s.ai.history) > maxAIHistory {
		s.ai.history = s.ai.history[len(s.ai.history)-maxAIHistory:]
	}
	m.out.Broadcast("🤖 " + text)
}

// errorReply converts an error into reply text. Anything outside the user
// error taxonomy is logged as a failure.
func (m *Machine) errorReply(s *Session, err error) string {
	switch {
	case errors.Is(err, apperr.ErrNoContext):
		return replyNoContext
	case errors.Is(err, apperr.ErrValidation):
		return "Could not do that: " + apperr.Reason(err) + "."
	case errors.Is(err, apperr.ErrNotFound):
		return "Not found: " + apperr.Reason(err) + "."
	}
	m.logger.Error("dialogue operation failed", "session", s.ID, "err", err)
	return replyGenericFailure
}
