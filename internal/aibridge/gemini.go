package aibridge

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/starford/quill/internal/apperr"
)

const (
	DefaultModel   = "gemini-2.0-flash"
	DefaultTimeout = 30 * time.Second
)

// GeminiConfig configures the Gemini bridge.
type GeminiConfig struct {
	APIKey  string
	Model   string
	Timeout time.Duration
	// BaseURL overrides the API endpoint. Empty means the public endpoint.
	BaseURL string
}

// Gemini answers through the Gemini API.
type Gemini struct {
	client  *genai.Client
	model   string
	timeout time.Duration
	logger  *slog.Logger
}

var _ Bridge = (*Gemini)(nil)

// NewGemini creates a Gemini bridge.
func NewGemini(ctx context.Context, cfg GeminiConfig, logger *slog.Logger) (*Gemini, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("aibridge: gemini api key is required")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	cc := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("aibridge: create gemini client: %w", err)
	}
	return &Gemini{client: client, model: cfg.Model, timeout: cfg.Timeout, logger: logger}, nil
}

// Summarize asks for a digest of items.
func (g *Gemini) Summarize(ctx context.Context, items []SummaryItem) (string, error) {
	prompt, err := SummaryPrompt(items)
	if err != nil {
		return "", err
	}
	return g.generate(ctx, "summarize", prompt)
}

// Ask asks a question about note.
func (g *Gemini) Ask(ctx context.Context, note NoteContext, question string, history []Exchange) (string, error) {
	return g.generate(ctx, "ask", AskPrompt(note, question, history))
}

func (g *Gemini) generate(ctx context.Context, op, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	start := time.Now()
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), nil)
	if err != nil {
		return "", fmt.Errorf("%w: gemini %s: %v", apperr.ErrAIDelegation, op, err)
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", fmt.Errorf("%w: gemini %s: empty response", apperr.ErrAIDelegation, op)
	}
	g.logger.Debug("gemini answered", "op", op, "model", g.model, "elapsed", time.Since(start))
	return text, nil
}
