package synthesis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"askdoc/internal/adapter/openai"
)

// ErrExhausted means the retry budget ran out; the last underlying cause is
// wrapped alongside it.
var ErrExhausted = errors.New("synthesis retry budget exhausted")

const systemInstructions = `You are a document assistant. Answer the user's question using ONLY the context provided below. If the context does not contain enough information to answer, say that you don't have sufficient information. Do not invent facts that are not in the context.

Context:
`

type ChatClient interface {
	Complete(ctx context.Context, messages []openai.ChatMessage) (string, error)
}

type Synthesizer struct {
	chat ChatClient

	// maxAttempts is shared across rate-limit and generic-error retries.
	// baseDelay is overridable so tests don't sleep on production backoffs.
	maxAttempts int
	baseDelay   time.Duration
	maxDelay    time.Duration
}

func New(chat ChatClient) *Synthesizer {
	return &Synthesizer{
		chat:        chat,
		maxAttempts: 3,
		baseDelay:   time.Second,
		maxDelay:    60 * time.Second,
	}
}

// WithDelays returns a copy tuned for tests.
func (s *Synthesizer) WithDelays(base, max time.Duration) *Synthesizer {
	clone := *s
	clone.baseDelay = base
	clone.maxDelay = max
	return &clone
}

// Synthesize sends exactly two turns: a system turn embedding the retrieved
// context and a user turn with the raw query. Rate-limited responses back off
// exponentially, other transient failures linearly; both draw from the same
// attempt budget.
func (s *Synthesizer) Synthesize(ctx context.Context, query string, contexts []string) (string, error) {
	messages := []openai.ChatMessage{
		{Role: "system", Content: systemInstructions + strings.Join(contexts, "\n\n")},
		{Role: "user", Content: query},
	}

	var lastErr error
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		content, err := s.chat.Complete(ctx, messages)
		if err == nil {
			return content, nil
		}
		lastErr = err

		if attempt == s.maxAttempts {
			break
		}

		var delay time.Duration
		if openai.IsRateLimit(err) {
			delay = s.baseDelay << (attempt - 1)
			if delay > s.maxDelay {
				delay = s.maxDelay
			}
		} else {
			delay = time.Duration(attempt) * s.baseDelay
		}

		slog.WarnContext(ctx, "completion attempt failed, retrying",
			"attempt", attempt, "max_attempts", s.maxAttempts, "delay", delay, "error", err)
		time.Sleep(delay)
	}

	return "", fmt.Errorf("%w after %d attempts: %w", ErrExhausted, s.maxAttempts, lastErr)
}
