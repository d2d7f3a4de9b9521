// Package llmtest provides scripted language-model doubles for tests.
package llmtest

import (
	"context"
	"errors"
	"sync"

	"github.com/tmc/langchaingo/llms"
)

// Call records one request seen by a double.
type Call struct {
	SystemPrompt string
	UserPrompt   string
	Temperature  float64
	MaxTokens    int
}

// Reply is a scripted answer: either text or an error.
type Reply struct {
	Text string
	Err  error
}

// ErrScriptExhausted is returned once every scripted reply has been used.
var ErrScriptExhausted = errors.New("llmtest: no scripted reply left")

// Generator is a scripted llm.Generator.
type Generator struct {
	mu      sync.Mutex
	replies []Reply
	calls   []Call
}

func NewGenerator(replies ...Reply) *Generator {
	return &Generator{replies: replies}
}

// Texts is shorthand for a script of successful replies.
func Texts(texts ...string) []Reply {
	out := make([]Reply, len(texts))
	for i, t := range texts {
		out[i] = Reply{Text: t}
	}
	return out
}

func (g *Generator) Complete(_ context.Context, systemPrompt, userPrompt string, temperature float64, maxTokens int) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, Call{
		SystemPrompt: systemPrompt,
		UserPrompt:   userPrompt,
		Temperature:  temperature,
		MaxTokens:    maxTokens,
	})
	if len(g.replies) == 0 {
		return "", ErrScriptExhausted
	}
	r := g.replies[0]
	g.replies = g.replies[1:]
	return r.Text, r.Err
}

// Calls returns a copy of the recorded calls.
func (g *Generator) Calls() []Call {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]Call(nil), g.calls...)
}

// Model is a scripted llms.Model that records the messages and options it receives.
type Model struct {
	mu      sync.Mutex
	replies []Reply
	calls   []Call
}

func NewModel(replies ...Reply) *Model {
	return &Model{replies: replies}
}

func (m *Model) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	var opts llms.CallOptions
	for _, o := range options {
		o(&opts)
	}
	call := Call{Temperature: opts.Temperature, MaxTokens: opts.MaxTokens}
	for _, msg := range messages {
		for _, part := range msg.Parts {
			text, ok := part.(llms.TextContent)
			if !ok {
				continue
			}
			switch msg.Role {
			case llms.ChatMessageTypeSystem:
				call.SystemPrompt += text.Text
			case llms.ChatMessageTypeHuman:
				call.UserPrompt += text.Text
			}
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, call)
	if len(m.replies) == 0 {
		return nil, ErrScriptExhausted
	}
	r := m.replies[0]
	m.replies = m.replies[1:]
	if r.Err != nil {
		return nil, r.Err
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: r.Text}}}, nil
}

func (m *Model) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, m, prompt, options...)
}

func (m *Model) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Call(nil), m.calls...)
}
