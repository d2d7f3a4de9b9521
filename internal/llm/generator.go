// Package llm adapts langchaingo models to the single synchronous completion call
// the planner and the executor actions need.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rahul/workdesk/internal/observability"
	"github.com/tmc/langchaingo/llms"
)

// ErrEmptyResponse is returned when the provider answers without any choice.
var ErrEmptyResponse = errors.New("empty response from model")

// Generator turns a system and user prompt into text with one model call.
// There is no retry or rate-limit handling.
type Generator interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string, temperature float64, maxTokens int) (string, error)
}

// ProviderError is the error every Generator failure is reported as.
type ProviderError struct {
	Code llms.ErrorCode
	Err  error
}

func (e *ProviderError) Error() string {
	return e.Err.Error()
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// Classify wraps err in a ProviderError carrying the langchaingo error code.
func Classify(err error) *ProviderError {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe
	}
	code := llms.ErrCodeUnknown
	var le *llms.Error
	switch {
	case errors.As(err, &le):
		code = le.Code
	case errors.Is(err, context.DeadlineExceeded):
		code = llms.ErrCodeTimeout
	case errors.Is(err, context.Canceled):
		code = llms.ErrCodeCanceled
	case errors.Is(err, ErrEmptyResponse):
		code = llms.ErrCodeProviderUnavailable
	}
	return &ProviderError{Code: code, Err: err}
}

// ModelGenerator implements Generator on top of an llms.Model.
type ModelGenerator struct {
	Model     llms.Model
	ModelName string
	logger    *observability.Logger
	metrics   *observability.Metrics
}

type Option func(*ModelGenerator)

func WithLogger(l *observability.Logger) Option {
	return func(g *ModelGenerator) { g.logger = l }
}

func WithMetrics(m *observability.Metrics) Option {
	return func(g *ModelGenerator) { g.metrics = m }
}

func NewModelGenerator(model llms.Model, modelName string, opts ...Option) *ModelGenerator {
	g := &ModelGenerator{
		Model:     model,
		ModelName: modelName,
		logger:    observability.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *ModelGenerator) Complete(ctx context.Context, systemPrompt, userPrompt string, temperature float64, maxTokens int) (string, error) {
	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, systemPrompt),
		llms.TextParts(llms.ChatMessageTypeHuman, userPrompt),
	}

	callOpts := []llms.CallOption{llms.WithTemperature(temperature)}
	if maxTokens > 0 {
		callOpts = append(callOpts, llms.WithMaxTokens(maxTokens))
	}

	start := time.Now()
	resp, err := g.Model.GenerateContent(ctx, messages, callOpts...)
	if err == nil && (resp == nil || len(resp.Choices) == 0) {
		err = ErrEmptyResponse
	}
	elapsed := time.Since(start)
	g.metrics.ObserveLLM(elapsed, err)
	if err != nil {
		return "", Classify(fmt.Errorf("generate content: %w", err))
	}

	content := strings.TrimSpace(resp.Choices[0].Content)
	g.logger.LogLLM(ctx, g.ModelName, systemPrompt, userPrompt, content, elapsed)
	return content, nil
}
