// Package parser turns a raw chat message into a command or free text. It
// never looks at session state.
package parser

import (
	"strings"
)

// Marker introduces a command.
const Marker = "/"

// Kind classifies a parsed message.
type Kind int

const (
	FreeText Kind = iota
	Command
	UnknownCommand
)

func (k Kind) String() string {
	switch k {
	case Command:
		return "command"
	case UnknownCommand:
		return "unknown_command"
	default:
		return "free_text"
	}
}

// Verb is the canonical name of a recognized command.
type Verb string

const (
	CreateNote    Verb = "create-note"
	FindByTitle   Verb = "find-by-title"
	FindByID      Verb = "find-by-id"
	ShowParents   Verb = "show-parents"
	EditDesc      Verb = "edit-description"
	StopEditing   Verb = "stop-editing"
	Delete        Verb = "delete"
	MarkDone      Verb = "mark-done"
	CreateSub     Verb = "create-sub"
	SelectSubNote Verb = "select-sub-note"
	TalkAI        Verb = "start-ai-conversation"
	Cancel        Verb = "cancel"
	Back          Verb = "back"
	Help          Verb = "help"
)

// aliases maps a normalized verb spelling to its canonical verb.
var aliases = map[string]Verb{
	"createnote":      CreateNote,
	"create":          CreateNote,
	"findnote":        FindByTitle,
	"find":            FindByTitle,
	"findbyid":        FindByID,
	"id":              FindByID,
	"showparents":     ShowParents,
	"parents":         ShowParents,
	"editdescription": EditDesc,
	"editdesc":        EditDesc,
	"stopediting":     StopEditing,
	"delete":          Delete,
	"markdone":        MarkDone,
	"done":            MarkDone,
	"createsub":       CreateSub,
	"selectsubnote":   SelectSubNote,
	"selectsub":       SelectSubNote,
	"sub":             SelectSubNote,
	"talkai":          TalkAI,
	"cancel":          Cancel,
	"back":            Back,
	"help":            Help,
}

// Result is the parsed form of one message.
type Result struct {
	Kind Kind
	// Verb is set for Command.
	Verb Verb
	// Name is the verb as typed, without the marker. Set for Command and
	// UnknownCommand.
	Name string
	// Arg is the trimmed argument with one pair of surrounding quotes removed.
	Arg string
	// Text is the original message, set for FreeText.
	Text string
}

// Parse classifies text.
func Parse(text string) Result {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, Marker) {
		return Result{Kind: FreeText, Text: text}
	}

	body := trimmed[len(Marker):]
	name, arg := body, ""
	if i := strings.IndexAny(body, " \t\r\n"); i >= 0 {
		name, arg = body[:i], body[i+1:]
	}
	if name == "" {
		return Result{Kind: UnknownCommand}
	}

	verb, ok := aliases[normalize(name)]
	if !ok {
		return Result{Kind: UnknownCommand, Name: name}
	}
	return Result{Kind: Command, Verb: verb, Name: name, Arg: unquote(strings.TrimSpace(arg))}
}

// normalize lowercases name and drops '_' and '-'.
func normalize(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		if r == '_' || r == '-' {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func unquote(s string) string {
	if len(s) >= 2 {
		first, last := s[0], s[len(s)-1]
		if (first == '"' || first == '\'') && first == last {
			return strings.TrimSpace(s[1 : len(s)-1])
		}
	}
	return s
}

// Unquote strips one pair of matching surrounding quotes from trimmed s.
func Unquote(s string) string {
	return unquote(strings.TrimSpace(s))
}
