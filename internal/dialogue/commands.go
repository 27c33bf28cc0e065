package dialogue

import "strings"

// Scope is the situation a command is offered in.
type Scope string

const (
	ScopeMain         Scope = "main"
	ScopeSelected     Scope = "note_selected"
	ScopeEditing      Scope = "editing"
	ScopeAI           Scope = "ai_conversation"
	ScopeConfirmation Scope = "confirmation"
)

// CommandInfo describes one command for clients building a menu.
type CommandInfo struct {
	Command       string   `json:"command"`
	Category      string   `json:"category"`
	Description   string   `json:"description"`
	Examples      []string `json:"examples"`
	RequiresParam bool     `json:"requires_param"`
	Scopes        []Scope  `json:"-"`
}

var catalogue = []CommandInfo{
	{"/createnote", "📝 Create", "Creating a new note", []string{"/createnote groceries", "/createnote my task"}, true, []Scope{ScopeMain, ScopeSelected}},
	{"/findnote", "🔍 Find", "Searching for notes by title", []string{"/findnote shopping"}, true, []Scope{ScopeMain, ScopeSelected}},
	{"/findbyid", "🔍 Find", "Finding note by ID number", []string{"/findbyid 5"}, true, []Scope{ScopeMain, ScopeSelected}},
	{"/showparents", "📋 Show", "Showing all parent notes", []string{"/showparents"}, false, []Scope{ScopeMain, ScopeSelected}},
	{"/editdescription", "✏️ Edit", "Editing note description", []string{"/editdescription"}, false, []Scope{ScopeSelected}},
	{"/markdone", "✅ Mark", "Marking the current note as done", []string{"/markdone"}, false, []Scope{ScopeSelected}},
	{"/delete", "🗑️ Delete", "Deleting the current note", []string{"/delete"}, false, []Scope{ScopeSelected}},
	{"/createsub", "📝 Create", "Creating a sub-note under current note", []string{"/createsub"}, false, []Scope{ScopeSelected}},
	{"/talkai", "🤖 AI", "Starting AI conversation about current note", []string{"/talkai"}, false, []Scope{ScopeSelected}},
	{"/selectsubnote", "🔍 Navigate", "Selecting a sub-note by ID", []string{"/selectsubnote 2", "/sub 4"}, true, []Scope{ScopeSelected}},
	{"/stopediting", "📝 Edit", "Stopping description editing mode", []string{"/stopediting"}, false, []Scope{ScopeEditing}},
	{"/cancel", "❌ Cancel", "Leaving the current mode", []string{"/cancel"}, false, []Scope{ScopeEditing, ScopeAI, ScopeConfirmation}},
	{"/back", "🔙 Back", "Going back to previous context", []string{"/back"}, false, []Scope{ScopeSelected, ScopeEditing, ScopeAI}},
	{"/help", "❓ Help", "Showing available commands", []string{"/help"}, false, []Scope{ScopeMain, ScopeSelected, ScopeEditing, ScopeAI, ScopeConfirmation}},
	{"yes", "✅ Confirm", "Confirming the action", []string{"yes", "y", "sure", "ok"}, false, []Scope{ScopeConfirmation}},
	{"no", "❌ Decline", "Declining the action", []string{"no", "n", "nope", "cancel"}, false, []Scope{ScopeConfirmation}},
}

// Catalogue returns every command the assistant understands.
func Catalogue() []CommandInfo {
	out := make([]CommandInfo, len(catalogue))
	copy(out, catalogue)
	return out
}

func (s *Session) scope() Scope {
	switch s.mode {
	case ModeEditingDescription:
		return ScopeEditing
	case ModeAIConversation:
		return ScopeAI
	case ModeAwaitingConfirmation, ModeSelectingSubNote:
		return ScopeConfirmation
	}
	if s.stack.Len() > 0 {
		return ScopeSelected
	}
	return ScopeMain
}

// AvailableCommands lists the commands that make sense for s right now.
func AvailableCommands(s *Session) []CommandInfo {
	scope := s.scope()
	var out []CommandInfo
	for _, c := range catalogue {
		for _, sc := range c.Scopes {
			if sc == scope {
				out = append(out, c)
				break
			}
		}
	}
	return out
}

// HelpText is the reply to /help.
func HelpText() string {
	var b strings.Builder
	b.WriteString("🆘 **Available Commands:**\n\n")
	b.WriteString("📝 **Create Commands:**\n")
	b.WriteString("• `/createnote [title]` - Create a new note\n")
	b.WriteString("• `/createsub` - Create a sub-note under the current note\n\n")
	b.WriteString("🔍 **Find Commands:**\n")
	b.WriteString("• `/findnote [title]` - Search for notes\n")
	b.WriteString("• `/findbyid [number]` - Find by ID\n")
	b.WriteString("• `/selectsubnote [number]` - Select a sub-note of the current note\n\n")
	b.WriteString("📋 **Show Commands:**\n")
	b.WriteString("• `/showparents` - Show parent notes\n\n")
	b.WriteString("✏️ **Note Commands** (after selecting a note):\n")
	b.WriteString("• `/editdescription` - Add to the description, finish with `/stopediting`\n")
	b.WriteString("• `/markdone` - Mark the note as done\n")
	b.WriteString("• `/delete` - Delete the note\n")
	b.WriteString("• `/talkai` - Start AI conversation\n\n")
	b.WriteString("🔙 **Navigation Commands:**\n")
	b.WriteString("• `/back` - Return to the previous context\n")
	b.WriteString("• `/cancel` - Leave the current mode\n\n")
	b.WriteString("ℹ️ **Note:** all command formats are supported:\n")
	b.WriteString("• Snake case: `/create_note`, `/find_note`, `/find_by_id`\n")
	b.WriteString("• Kebab case: `/create-note`, `/find-note`, `/find-by-id`\n")
	b.WriteString("• Camel case: `/createNote`, `/findNote`, `/findById`\n")
	b.WriteString("• Shortest: `/create`, `/find`, `/id`, `/parents`")
	return b.String()
}
