package aibridge

import (
	"context"
	"fmt"

	"github.com/starford/quill/internal/apperr"
)

// Disabled is used when no AI provider is configured. Every call fails.
type Disabled struct{}

var _ Bridge = Disabled{}

func (Disabled) Summarize(context.Context, []SummaryItem) (string, error) {
	return "", fmt.Errorf("%w: ai provider disabled", apperr.ErrAIDelegation)
}

func (Disabled) Ask(context.Context, NoteContext, string, []Exchange) (string, error) {
	return "", fmt.Errorf("%w: ai provider disabled", apperr.ErrAIDelegation)
}
