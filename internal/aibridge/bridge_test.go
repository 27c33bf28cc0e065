package aibridge

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/starford/quill/internal/apperr"
	"github.com/starford/quill/internal/models"
	"github.com/starford/quill/internal/testutil"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		title, desc string
		want        Topic
	}{
		{"Team meeting", "", TopicScheduling},
		{"Groceries", "buy eggs", TopicShopping},
		{"Fix the fence", "", TopicProject},
		{"Read Dune", "", TopicLearning},
		{"Fitness plan", "", TopicGoals},
		{"Random thoughts", "", TopicGeneral},
	}
	for _, tt := range tests {
		if got := Classify(tt.title, tt.desc); got != tt.want {
			t.Errorf("Classify(%q, %q) = %s, want %s", tt.title, tt.desc, got, tt.want)
		}
	}
}

func TestRenderContext(t *testing.T) {
	nc := NoteContext{
		Note: models.Note{Title: "Trip", Description: "Summer"},
		Children: []ChildContext{{
			Note:     models.Note{Title: "Book flights", Done: true},
			Children: []models.Note{{Title: "Compare prices", Description: "3 sites"}},
		}},
	}
	want := "📝 **Note: Trip**\nDescription: Summer\n\n" +
		"📋 **Sub-tasks:**\n" +
		"• Book flights ✅ (Completed)\n" +
		"  - Compare prices - 3 sites ⏳ (Pending)\n"
	if got := RenderContext(nc); got != want {
		t.Errorf("RenderContext =\n%q\nwant\n%q", got, want)
	}
}

func TestAskPromptIncludesHistory(t *testing.T) {
	nc := NoteContext{Note: models.Note{Title: "Project launch"}}
	p := AskPrompt(nc, "what next?", []Exchange{{Question: "first?", Answer: "plan it"}})

	for _, want := range []string{
		"project management assistant",
		"User Question: what next?",
		"📝 **Note: Project launch**",
		"**Previous Conversation:**\nUser: first?\nAI: plan it",
	} {
		if !strings.Contains(p, want) {
			t.Errorf("prompt missing %q:\n%s", want, p)
		}
	}
}

func TestSummaryPrompt(t *testing.T) {
	p, err := SummaryPrompt([]SummaryItem{{Title: "Buy milk", Done: false}})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(p, `"title": "Buy milk"`) {
		t.Errorf("prompt missing note data:\n%s", p)
	}
}

func TestSummaryPromptEncodeError(t *testing.T) {
	// Years past 9999 have no RFC 3339 form.
	far := time.Date(10000, 1, 1, 0, 0, 0, 0, time.UTC)
	if _, err := SummaryPrompt([]SummaryItem{{Title: "later", Created: far}}); err == nil {
		t.Error("want error for unencodable item")
	}
}

func TestDisabled(t *testing.T) {
	var b Bridge = Disabled{}
	if _, err := b.Summarize(context.Background(), nil); !errors.Is(err, apperr.ErrAIDelegation) {
		t.Errorf("Summarize err = %v", err)
	}
	if _, err := b.Ask(context.Background(), NoteContext{}, "q", nil); !errors.Is(err, apperr.ErrAIDelegation) {
		t.Errorf("Ask err = %v", err)
	}
}

func TestLoadContext(t *testing.T) {
	st := testutil.TestStore(t)
	root := testutil.MustCreate(t, st, "root", nil)
	child := testutil.MustCreate(t, st, "child", &root.ID)
	testutil.MustCreate(t, st, "grandchild", &child.ID)

	nc, err := LoadContext(context.Background(), st, *root)
	if err != nil {
		t.Fatal(err)
	}
	if len(nc.Children) != 1 || len(nc.Children[0].Children) != 1 {
		t.Fatalf("context = %+v", nc)
	}
	if nc.Children[0].Children[0].Title != "grandchild" {
		t.Errorf("grandchild = %q", nc.Children[0].Children[0].Title)
	}
}

func geminiServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestGemini(t *testing.T, baseURL string) *Gemini {
	t.Helper()
	g, err := NewGemini(context.Background(), GeminiConfig{
		APIKey:  "test-key",
		Timeout: 5 * time.Second,
		BaseURL: baseURL,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("NewGemini: %v", err)
	}
	return g
}

func TestGeminiAsk(t *testing.T) {
	srv := geminiServer(t, http.StatusOK,
		`{"candidates":[{"content":{"role":"model","parts":[{"text":"  Start with the flights.  "}]}}]}`)
	g := newTestGemini(t, srv.URL)

	got, err := g.Ask(context.Background(), NoteContext{Note: models.Note{Title: "Trip"}}, "where to start?", nil)
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if got != "Start with the flights." {
		t.Errorf("answer = %q", got)
	}
}

func TestGeminiFailureIsDelegationError(t *testing.T) {
	srv := geminiServer(t, http.StatusInternalServerError, `{"error":{"code":500,"message":"boom"}}`)
	g := newTestGemini(t, srv.URL)

	if _, err := g.Summarize(context.Background(), nil); !errors.Is(err, apperr.ErrAIDelegation) {
		t.Errorf("err = %v, want ErrAIDelegation", err)
	}
}

func TestNewGeminiRequiresKey(t *testing.T) {
	if _, err := NewGemini(context.Background(), GeminiConfig{}, slog.Default()); err == nil {
		t.Error("expected error without api key")
	}
}
