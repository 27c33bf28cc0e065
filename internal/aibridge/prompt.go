package aibridge

import (
	"encoding/json"
	"fmt"
	"strings"
)

// SummaryPrompt builds the daily summary request.
func SummaryPrompt(items []SummaryItem) (string, error) {
	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return "", fmt.Errorf("aibridge: encode summary items: %w", err)
	}

	var b strings.Builder
	b.WriteString("Analyze these notes created in the last 24 hours and provide a concise summary ")
	b.WriteString("highlighting important tasks, reminders, and actionable items. Focus on:\n\n")
	b.WriteString("1. Tasks that need to be done\n")
	b.WriteString("2. Meetings or appointments to schedule\n")
	b.WriteString("3. Shopping lists or items to buy\n")
	b.WriteString("4. Important reminders or deadlines\n")
	b.WriteString("5. Any other actionable items\n\n")
	b.WriteString("Notes data:\n")
	b.Write(data)
	b.WriteString("\n\nProvide a friendly, helpful summary that highlights what the user needs to focus on today.")
	return b.String(), nil
}

// Topic is the broad kind of note a question is about. It picks the
// assistant persona used in the prompt.
type Topic string

const (
	TopicGeneral    Topic = "general"
	TopicScheduling Topic = "scheduling"
	TopicShopping   Topic = "shopping"
	TopicProject    Topic = "project"
	TopicLearning   Topic = "learning"
	TopicGoals      Topic = "goals"
)

// Checked in order; the first topic with a matching keyword wins.
var topicKeywords = []struct {
	topic    Topic
	keywords []string
}{
	{TopicScheduling, []string{"meeting", "schedule", "appointment", "remind", "call", "email"}},
	{TopicShopping, []string{"shopping", "buy", "grocery", "store", "purchase", "list"}},
	{TopicProject, []string{"project", "task", "build", "fix", "develop", "implement", "create", "design"}},
	{TopicLearning, []string{"study", "learn", "research", "read", "book", "course", "tutorial", "practice"}},
	{TopicGoals, []string{"goal", "target", "objective", "fitness", "career", "personal"}},
}

type persona struct {
	system, focus, examples string
}

var personas = map[Topic]persona{
	TopicScheduling: {
		"a scheduling and reminder assistant. Help users manage their time, appointments, and commitments.",
		"Focus on time management, scheduling conflicts, reminder strategies, and calendar optimization.",
		"Help with meeting preparation, deadline management, and time blocking strategies.",
	},
	TopicShopping: {
		"a shopping and list management assistant. Help users organize purchases, compare options, and manage shopping lists.",
		"Focus on product recommendations, price comparisons, shopping efficiency, and list organization.",
		"Help with meal planning, budget management, and shopping route optimization.",
	},
	TopicProject: {
		"a project management assistant. Help users break down tasks, estimate timelines, and track progress.",
		"Focus on task decomposition, resource planning, timeline estimation, and progress tracking.",
		"Help with project planning, risk assessment, and milestone management.",
	},
	TopicLearning: {
		"a learning and research assistant. Help users study effectively, organize knowledge, and track learning progress.",
		"Focus on study strategies, knowledge organization, research methods, and learning optimization.",
		"Help with study planning, research organization, and knowledge retention strategies.",
	},
	TopicGoals: {
		"a goal-setting and achievement assistant. Help users define, track, and achieve their objectives.",
		"Focus on goal clarity, progress tracking, motivation strategies, and achievement planning.",
		"Help with goal breakdown, progress measurement, and motivation techniques.",
	},
	TopicGeneral: {
		"a helpful note-taking assistant. Help users organize, understand, and make progress with their notes.",
		"Focus on note organization, information synthesis, and actionable next steps.",
		"Help with note categorization, information extraction, and task identification.",
	},
}

// Classify guesses the topic of a note from its title and description.
func Classify(title, description string) Topic {
	text := strings.ToLower(title + " " + description)
	for _, tk := range topicKeywords {
		for _, kw := range tk.keywords {
			if strings.Contains(text, kw) {
				return tk.topic
			}
		}
	}
	return TopicGeneral
}

// RenderContext writes the note and two levels of sub-notes as plain text.
func RenderContext(nc NoteContext) string {
	var b strings.Builder
	b.WriteString("📝 **Note: " + nc.Note.Title + "**\n")
	if nc.Note.Description != "" {
		b.WriteString("Description: " + nc.Note.Description + "\n\n")
	}
	if len(nc.Children) > 0 {
		b.WriteString("📋 **Sub-tasks:**\n")
		for _, c := range nc.Children {
			b.WriteString("• " + contextLine(c.Note.Title, c.Note.Description, c.Note.Done) + "\n")
			for _, g := range c.Children {
				b.WriteString("  - " + contextLine(g.Title, g.Description, g.Done) + "\n")
			}
		}
	}
	return b.String()
}

func contextLine(title, desc string, done bool) string {
	line := title
	if desc != "" {
		line += " - " + desc
	}
	if done {
		return line + " ✅ (Completed)"
	}
	return line + " ⏳ (Pending)"
}

// AskPrompt builds a question about a note, including earlier exchanges of
// the same conversation.
func AskPrompt(nc NoteContext, question string, history []Exchange) string {
	p := personas[Classify(nc.Note.Title, nc.Note.Description)]

	var b strings.Builder
	b.WriteString("You are " + p.system + "\n\n")
	b.WriteString("Context: " + RenderContext(nc) + "\n\n")
	b.WriteString("User Question: " + question + "\n\n")
	b.WriteString("Instructions:\n")
	b.WriteString("- " + p.focus + "\n")
	b.WriteString("- Provide specific, actionable advice\n")
	b.WriteString("- Consider the user's note context\n")
	b.WriteString("- Suggest concrete next steps\n")
	b.WriteString("- Be encouraging and practical\n\n")
	b.WriteString(p.examples)
	if len(history) > 0 {
		b.WriteString("\n\n**Previous Conversation:**\n")
		for _, ex := range history {
			b.WriteString("User: " + ex.Question + "\n")
			b.WriteString("AI: " + ex.Answer + "\n\n")
		}
	}
	return b.String()
}
