package synthesis

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"askdoc/internal/adapter/openai"
)

type scriptedChat struct {
	responses []func() (string, error)
	calls     int
	messages  [][]openai.ChatMessage
}

func (c *scriptedChat) Complete(ctx context.Context, messages []openai.ChatMessage) (string, error) {
	c.messages = append(c.messages, messages)
	if c.calls >= len(c.responses) {
		return "", errors.New("no more scripted responses")
	}
	resp := c.responses[c.calls]
	c.calls++
	return resp()
}

func ok(content string) func() (string, error) {
	return func() (string, error) { return content, nil }
}

func fail(err error) func() (string, error) {
	return func() (string, error) { return "", err }
}

func rateLimited() func() (string, error) {
	return fail(&openai.APIError{Status: http.StatusTooManyRequests})
}

func fastSynthesizer(chat ChatClient) *Synthesizer {
	return New(chat).WithDelays(time.Millisecond, 10*time.Millisecond)
}

func TestSynthesize_SuccessFirstAttempt(t *testing.T) {
	chat := &scriptedChat{responses: []func() (string, error){ok("Paris is the capital.")}}

	answer, err := fastSynthesizer(chat).Synthesize(context.Background(), "What is the capital?", []string{"Paris is the capital of France."})
	require.NoError(t, err)
	assert.Equal(t, "Paris is the capital.", answer)
	assert.Equal(t, 1, chat.calls)
}

func TestSynthesize_TwoTurnMessageShape(t *testing.T) {
	chat := &scriptedChat{responses: []func() (string, error){ok("answer")}}
	contexts := []string{"first passage", "second passage"}

	_, err := fastSynthesizer(chat).Synthesize(context.Background(), "the question", contexts)
	require.NoError(t, err)

	require.Len(t, chat.messages, 1)
	messages := chat.messages[0]
	require.Len(t, messages, 2)

	assert.Equal(t, "system", messages[0].Role)
	assert.Contains(t, messages[0].Content, "first passage\n\nsecond passage")
	assert.Equal(t, "user", messages[1].Role)
	assert.Equal(t, "the question", messages[1].Content)
}

func TestSynthesize_ExhaustsBudgetOnPersistentRateLimit(t *testing.T) {
	chat := &scriptedChat{responses: []func() (string, error){
		rateLimited(), rateLimited(), rateLimited(), rateLimited(),
	}}

	_, err := fastSynthesizer(chat).Synthesize(context.Background(), "q", []string{"ctx"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrExhausted)
	assert.True(t, openai.IsRateLimit(err), "last cause must stay inspectable through the wrap")
	assert.Equal(t, 3, chat.calls, "budget is exactly three attempts")
}

func TestSynthesize_BudgetSharedAcrossErrorKinds(t *testing.T) {
	boom := errors.New("connection reset")
	chat := &scriptedChat{responses: []func() (string, error){
		rateLimited(), fail(boom), fail(boom),
	}}

	_, err := fastSynthesizer(chat).Synthesize(context.Background(), "q", []string{"ctx"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrExhausted)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 3, chat.calls)
}

func TestSynthesize_RecoversWithinBudget(t *testing.T) {
	chat := &scriptedChat{responses: []func() (string, error){
		rateLimited(), fail(errors.New("timeout")), ok("recovered"),
	}}

	answer, err := fastSynthesizer(chat).Synthesize(context.Background(), "q", []string{"ctx"})
	require.NoError(t, err)
	assert.Equal(t, "recovered", answer)
	assert.Equal(t, 3, chat.calls)
}

func TestSynthesize_SystemTurnCarriesInstructions(t *testing.T) {
	chat := &scriptedChat{responses: []func() (string, error){ok("answer")}}

	_, err := fastSynthesizer(chat).Synthesize(context.Background(), "q", []string{"only context"})
	require.NoError(t, err)

	system := chat.messages[0][0].Content
	assert.True(t, strings.Contains(system, "ONLY the context"))
	assert.True(t, strings.HasSuffix(system, "only context"))
}
