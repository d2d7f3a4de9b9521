package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/rahul/workdesk/internal/llm"
	"github.com/rahul/workdesk/internal/observability"
	"go.uber.org/zap"
)

const (
	DefaultPlannerTemperature = 0.3
	DefaultPlannerMaxTokens   = 1500
)

// PlanResult is the planner's answer. Failures are reported in Error and never
// returned as Go errors.
type PlanResult struct {
	Success     bool   `json:"success"`
	Plan        *Plan  `json:"plan,omitempty"`
	Error       string `json:"error,omitempty"`
	RawResponse string `json:"raw_response,omitempty"`
}

// Planner turns a user query into a Plan with one model call.
type Planner struct {
	gen         llm.Generator
	prompts     *PromptManager
	temperature float64
	maxTokens   int
	logger      *observability.Logger
}

type PlannerOption func(*Planner)

func WithPlannerLimits(temperature float64, maxTokens int) PlannerOption {
	return func(p *Planner) {
		p.temperature = temperature
		if maxTokens > 0 {
			p.maxTokens = maxTokens
		}
	}
}

func WithPlannerLogger(l *observability.Logger) PlannerOption {
	return func(p *Planner) { p.logger = l }
}

func NewPlanner(gen llm.Generator, prompts *PromptManager, opts ...PlannerOption) *Planner {
	if prompts == nil {
		prompts = NewPromptManager("")
	}
	p := &Planner{
		gen:         gen,
		prompts:     prompts,
		temperature: DefaultPlannerTemperature,
		maxTokens:   DefaultPlannerMaxTokens,
		logger:      observability.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Plan asks the model for a plan that answers query.
func (p *Planner) Plan(ctx context.Context, query string, aux map[string]any) PlanResult {
	var b strings.Builder
	fmt.Fprintf(&b, "User Query: \"%s\"\n\n", query)
	b.WriteString("Please analyze this query and create a step-by-step plan to fulfill the user's request.")
	writeAux(&b, aux)

	return p.run(ctx, b.String(), planMessages{
		provider:  "LLM provider error: ",
		structure: "Generated plan has invalid structure",
		parse:     "Could not parse response as JSON",
	})
}

// RefinePlan asks the model to revise prior according to feedback.
func (p *Planner) RefinePlan(ctx context.Context, prior Plan, feedback string, aux map[string]any) PlanResult {
	priorJSON, err := json.MarshalIndent(prior, "", "  ")
	if err != nil {
		return PlanResult{Error: fmt.Sprintf("could not encode plan: %v", err)}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Original Plan:\n%s\n\nFeedback: %s\n\n", priorJSON, feedback)
	b.WriteString("Please refine the plan based on the feedback provided. Return the updated plan in the same JSON format.")
	writeAux(&b, aux)

	return p.run(ctx, b.String(), planMessages{
		provider:  "LLM provider error during refinement: ",
		structure: "Refined plan has invalid structure",
		parse:     "Could not parse refined response as JSON",
	})
}

type planMessages struct {
	provider, structure, parse string
}

func writeAux(b *strings.Builder, aux map[string]any) {
	if len(aux) == 0 {
		return
	}
	data, err := json.MarshalIndent(aux, "", "  ")
	if err != nil {
		return
	}
	fmt.Fprintf(b, "\n\nAdditional Context: %s", data)
}

func (p *Planner) run(ctx context.Context, userPrompt string, msg planMessages) PlanResult {
	system, err := p.prompts.GetPlannerPrompt()
	if err != nil {
		return PlanResult{Error: err.Error()}
	}

	raw, err := p.gen.Complete(ctx, system, userPrompt, p.temperature, p.maxTokens)
	if err != nil {
		p.logger.Zap().Warn("planner call failed", zap.Error(err))
		return PlanResult{Error: msg.provider + err.Error()}
	}

	plan, err := parsePlanResponse(raw)
	switch {
	case err == nil:
		return PlanResult{Success: true, Plan: plan, RawResponse: raw}
	case errors.Is(err, ErrInvalidPlan):
		p.logger.Zap().Debug("plan rejected", zap.Error(err))
		return PlanResult{Error: msg.structure, RawResponse: raw}
	default:
		return PlanResult{Error: msg.parse, RawResponse: raw}
	}
}

// parsePlanResponse decodes the whole response first. When that is not JSON, it
// retries with the span from the first '{' to the last '}'. A response that is
// JSON but not a valid plan is rejected without the retry.
func parsePlanResponse(raw string) (*Plan, error) {
	plan, err := decodePlan(raw)
	// Only text that is not JSON at all gets the brace-span retry.
	if err == nil || errors.Is(err, ErrInvalidPlan) || json.Valid([]byte(raw)) {
		return plan, err
	}
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return nil, err
	}
	return decodePlan(raw[start : end+1])
}
