package agent

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mitchellh/mapstructure"
)

const (
	AgentPlanner   = "Planner"
	AgentRetriever = "Retriever"
	AgentExecutor  = "Executor"
)

// ErrInvalidPlan marks a plan that fails structural validation.
var ErrInvalidPlan = errors.New("invalid plan")

// Plan is the planner's decomposition of a user query.
type Plan struct {
	Analysis        string `json:"analysis"`
	Steps           []Step `json:"steps"`
	ExpectedOutcome string `json:"expected_outcome"`
}

// Step is one delegated action. Parameters stay loosely typed until dispatch,
// where they are decoded into the request type of the action.
type Step struct {
	StepNumber  int            `json:"step_number" mapstructure:"step_number"`
	Agent       string         `json:"agent" mapstructure:"agent"`
	Action      string         `json:"action" mapstructure:"action"`
	Description string         `json:"description" mapstructure:"description"`
	Parameters  map[string]any `json:"parameters,omitempty" mapstructure:"parameters"`
}

var (
	planFields = []string{"analysis", "steps", "expected_outcome"}
	stepFields = []string{"step_number", "agent", "action", "description"}
)

// decodePlan parses raw as a plan and checks its structure: the top-level fields
// are present, steps is a non-empty list, and every step names a known agent.
// Action names are checked later, by the provider the step is routed to.
func decodePlan(raw string) (*Plan, error) {
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return nil, err
	}
	doc, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: plan must be a JSON object", ErrInvalidPlan)
	}
	plan, err := validatePlan(doc)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPlan, err)
	}
	return plan, nil
}

// text renders a free-form plan field; null becomes empty.
func text(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	default:
		return fmt.Sprint(t)
	}
}

func validatePlan(doc map[string]any) (*Plan, error) {
	for _, f := range planFields {
		if _, ok := doc[f]; !ok {
			return nil, fmt.Errorf("missing field %q", f)
		}
	}
	rawSteps, ok := doc["steps"].([]any)
	if !ok || len(rawSteps) == 0 {
		return nil, errors.New("steps must be a non-empty list")
	}

	plan := &Plan{
		Analysis:        text(doc["analysis"]),
		ExpectedOutcome: text(doc["expected_outcome"]),
		Steps:           make([]Step, 0, len(rawSteps)),
	}
	for i, rs := range rawSteps {
		m, ok := rs.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("step %d is not an object", i+1)
		}
		for _, f := range stepFields {
			if _, ok := m[f]; !ok {
				return nil, fmt.Errorf("step %d: missing field %q", i+1, f)
			}
		}
		var step Step
		if err := mapstructure.WeakDecode(m, &step); err != nil {
			return nil, fmt.Errorf("step %d: %v", i+1, err)
		}
		if step.Agent != AgentRetriever && step.Agent != AgentExecutor {
			return nil, fmt.Errorf("step %d: unknown agent %q", i+1, step.Agent)
		}
		plan.Steps = append(plan.Steps, step)
	}
	return plan, nil
}

// StepDetails returns the step numbered n.
func StepDetails(plan Plan, n int) (Step, error) {
	for _, s := range plan.Steps {
		if s.StepNumber == n {
			return s, nil
		}
	}
	return Step{}, fmt.Errorf("step %d not found in plan", n)
}
