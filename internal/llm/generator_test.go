package llm

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/rahul/workdesk/internal/llm/llmtest"
	"github.com/rahul/workdesk/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
)

func TestModelGenerator_Complete(t *testing.T) {
	model := llmtest.NewModel(llmtest.Reply{Text: "  - point one\n"})
	gen := NewModelGenerator(model, "gpt-4")

	out, err := gen.Complete(context.Background(), "be brief", "summarize this", 0.3, 400)
	require.NoError(t, err)
	assert.Equal(t, "- point one", out)

	calls := model.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "be brief", calls[0].SystemPrompt)
	assert.Equal(t, "summarize this", calls[0].UserPrompt)
	assert.InDelta(t, 0.3, calls[0].Temperature, 1e-9)
	assert.Equal(t, 400, calls[0].MaxTokens)
}

func TestModelGenerator_ClassifiesProviderErrors(t *testing.T) {
	rateLimited := &llms.Error{Code: llms.ErrCodeRateLimit, Message: "slow down", Provider: "openai"}
	model := llmtest.NewModel(
		llmtest.Reply{Err: rateLimited},
		llmtest.Reply{Err: context.DeadlineExceeded},
		llmtest.Reply{Err: errors.New("socket closed")},
	)
	gen := NewModelGenerator(model, "gpt-4")

	wantCodes := []llms.ErrorCode{llms.ErrCodeRateLimit, llms.ErrCodeTimeout, llms.ErrCodeUnknown}
	for i, want := range wantCodes {
		t.Run(fmt.Sprint(want), func(t *testing.T) {
			_, err := gen.Complete(context.Background(), "s", "u", 0, 0)
			require.Error(t, err, "call %d", i)

			var pe *ProviderError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, want, pe.Code)
		})
	}
	assert.True(t, llms.IsRateLimitError(Classify(rateLimited)))
}

func TestClassify_KeepsExistingProviderError(t *testing.T) {
	orig := &ProviderError{Code: llms.ErrCodeAuthentication, Err: errors.New("bad key")}
	assert.Same(t, orig, Classify(fmt.Errorf("wrapped: %w", orig)))
}

func TestNewModel_RejectsUnknownOrKeyless(t *testing.T) {
	_, err := NewModel("anthropic", config.ProviderConfig{APIKey: "x"})
	assert.Error(t, err)

	_, err = NewModel("openai", config.ProviderConfig{Model: "gpt-4"})
	assert.Error(t, err)
}
