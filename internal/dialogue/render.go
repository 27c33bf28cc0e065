package dialogue

import (
	"fmt"
	"strings"

	"github.com/starford/quill/internal/models"
)

const (
	replyUnknownCommand = "I didn't understand that command. Try using the available commands or say '/help' for a list of commands."
	replyNoContext      = "No note selected. Use /findnote <title>, /findbyid <id> or /showparents to select a note first."
	replyGenericFailure = "Something went wrong. Please try again."
	replyAIFailure      = "🤖 Sorry, I couldn't get an answer from the AI right now. Please try again."
	replyIdleHint       = "I'm not sure what to do with that. Use a command such as /createnote <title> or /findnote <title>, or say /help."
	noteMenu            = "What would you like to do? (/editdescription /delete /createsub /markdone /talkai /selectsubnote)"
)

func statusIcon(n models.Note) string {
	if n.Done {
		return "✅"
	}
	return "➡️"
}

// renderTree draws note and its direct children.
func renderTree(n models.Note, children []models.Note) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s 📝 %s (ID: %d)", statusIcon(n), n.Title, n.ID)
	if len(children) == 0 {
		b.WriteString("\n└── (no sub-notes)")
		return b.String()
	}
	for i, c := range children {
		last := i == len(children)-1
		branch, indent := "├── ", "│   "
		if last {
			branch, indent = "└── ", "    "
		}
		fmt.Fprintf(&b, "\n%s%s 📄 %s (ID: %d)", branch, statusIcon(c), c.Title, c.ID)
		if d := shortDescription(c.Description); d != "" {
			b.WriteString("\n" + indent + "   💬 " + d)
		}
	}
	return b.String()
}

// shortDescription keeps at most two lines, or 100 characters of one line.
func shortDescription(desc string) string {
	d := strings.TrimSpace(desc)
	if d == "" {
		return ""
	}
	if lines := strings.Split(d, "\n"); len(lines) > 2 {
		return strings.Join(lines[:2], "\n") + "..."
	}
	if r := []rune(d); len(r) > 100 {
		return string(r[:97]) + "..."
	}
	return d
}

func candidateList(notes []models.Note) string {
	var b strings.Builder
	for i, n := range notes {
		fmt.Fprintf(&b, "\n%d. %s '%s' (ID: %d)", i+1, statusIcon(n), n.Title, n.ID)
	}
	return b.String()
}

func foundOne(prefix string, n models.Note, children []models.Note) string {
	return fmt.Sprintf("%s: '%s' (ID: %d).\n\n%s\n\n%s", prefix, n.Title, n.ID, renderTree(n, children), noteMenu)
}

func foundMany(notes []models.Note) string {
	return fmt.Sprintf("Found %d notes:%s\nWhich note would you like to select? (say the number or name)",
		len(notes), candidateList(notes))
}

func confirmPrompt(a Action) string {
	switch a.Kind {
	case ActCreateNote:
		return fmt.Sprintf("Do you want to create a note with title '%s'? (yes/no)", a.Title)
	case ActCreateSub:
		return fmt.Sprintf("Do you want to create a sub-note '%s' under '%s'? (yes/no)", a.Title, a.Target.Title)
	case ActDelete:
		return fmt.Sprintf("Do you want to delete the note '%s'? (yes/no)", a.Target.Title)
	case ActMarkDone:
		return fmt.Sprintf("Do you want to mark the note '%s' as done? (yes/no)", a.Target.Title)
	case ActUpdateDescription:
		return fmt.Sprintf("Do you want to update the description for '%s' with: '%s'? (yes/no)", a.Target.Title, a.Text)
	}
	return "Please answer yes or no."
}

func cancelledReply(k ActionKind) string {
	switch k {
	case ActCreateSub:
		return "Sub-note creation cancelled."
	case ActDelete:
		return "Note deletion cancelled."
	case ActMarkDone:
		return "Note mark done cancelled."
	case ActUpdateDescription:
		return "Description update cancelled."
	default:
		return "Note creation cancelled."
	}
}

func incompleteChildren(n models.Note, pending []models.Note) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Cannot mark note '%s' as done because it has incomplete sub-notes:", n.Title)
	for i, c := range pending {
		fmt.Fprintf(&b, "\n%d. %s (ID: %d)", i+1, c.Title, c.ID)
	}
	b.WriteString("\n\nPlease complete the sub-notes first.")
	return b.String()
}

func returnedTo(n models.Note) string {
	return fmt.Sprintf("Returned to note '%s' (ID: %d).", n.Title, n.ID)
}

func noLongerExists(n models.Note) string {
	return fmt.Sprintf("Note '%s' (ID: %d) no longer exists.", n.Title, n.ID)
}

// joinReply joins non-empty parts with a blank line.
func joinReply(parts ...string) string {
	var keep []string
	for _, p := range parts {
		if p != "" {
			keep = append(keep, p)
		}
	}
	return strings.Join(keep, "\n\n")
}

// composeDescription terminates each fragment with a period unless it
// already ends in . ! or ?, then joins them with single spaces.
func composeDescription(fragments []string) string {
	out := make([]string, 0, len(fragments))
	for _, f := range fragments {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		if !strings.HasSuffix(f, ".") && !strings.HasSuffix(f, "!") && !strings.HasSuffix(f, "?") {
			f += "."
		}
		out = append(out, f)
	}
	return strings.Join(out, " ")
}
