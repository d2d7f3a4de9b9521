package agent

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/rahul/workdesk/internal/llm/llmtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const onboardingPlan = `{
  "analysis": "The user wants a summary of onboarding material",
  "steps": [
    {"step_number": 1, "agent": "Retriever", "action": "search", "description": "Find onboarding documents", "parameters": {"query": "onboarding"}},
    {"step_number": 2, "agent": "Executor", "action": "summarize", "description": "Summarize what was found", "parameters": {}}
  ],
  "expected_outcome": "A short onboarding summary"
}`

func TestPlanner_Plan(t *testing.T) {
	gen := llmtest.NewGenerator(llmtest.Reply{Text: onboardingPlan})
	res := NewPlanner(gen, nil).Plan(context.Background(), "Summarize my onboarding", nil)

	require.True(t, res.Success, res.Error)
	want := &Plan{
		Analysis: "The user wants a summary of onboarding material",
		Steps: []Step{
			{StepNumber: 1, Agent: AgentRetriever, Action: "search", Description: "Find onboarding documents", Parameters: map[string]any{"query": "onboarding"}},
			{StepNumber: 2, Agent: AgentExecutor, Action: "summarize", Description: "Summarize what was found", Parameters: map[string]any{}},
		},
		ExpectedOutcome: "A short onboarding summary",
	}
	if diff := cmp.Diff(want, res.Plan); diff != "" {
		t.Errorf("plan mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, onboardingPlan, res.RawResponse)

	calls := gen.Calls()
	require.Len(t, calls, 1)
	assert.InDelta(t, 0.3, calls[0].Temperature, 1e-9)
	assert.Equal(t, 1500, calls[0].MaxTokens)
	assert.Contains(t, calls[0].SystemPrompt, "Retriever Agent")
	assert.Equal(t,
		"User Query: \"Summarize my onboarding\"\n\nPlease analyze this query and create a step-by-step plan to fulfill the user's request.",
		calls[0].UserPrompt)
}

func TestPlanner_PlanWithContext(t *testing.T) {
	gen := llmtest.NewGenerator(llmtest.Reply{Text: onboardingPlan})
	NewPlanner(gen, nil).Plan(context.Background(), "q", map[string]any{"team": "platform"})

	prompt := gen.Calls()[0].UserPrompt
	assert.True(t, strings.HasSuffix(prompt, "\n\nAdditional Context: {\n  \"team\": \"platform\"\n}"), prompt)
}

func TestPlanner_ExtractsEmbeddedJSON(t *testing.T) {
	raw := "Sure! Here is the plan:\n```json\n" + onboardingPlan + "\n```\nLet me know."
	res := NewPlanner(llmtest.NewGenerator(llmtest.Reply{Text: raw}), nil).Plan(context.Background(), "q", nil)

	require.True(t, res.Success, res.Error)
	assert.Len(t, res.Plan.Steps, 2)
	assert.Equal(t, raw, res.RawResponse)
}

func TestPlanner_WeaklyTypedStepNumbers(t *testing.T) {
	raw := `{"analysis":"a","steps":[{"step_number":"1","agent":"Retriever","action":"get_documents","description":"List"}],"expected_outcome":"e"}`
	res := NewPlanner(llmtest.NewGenerator(llmtest.Reply{Text: raw}), nil).Plan(context.Background(), "q", nil)

	require.True(t, res.Success, res.Error)
	assert.Equal(t, 1, res.Plan.Steps[0].StepNumber)
	assert.Nil(t, res.Plan.Steps[0].Parameters)
}

func TestPlanner_NullFreeTextFields(t *testing.T) {
	raw := `{"analysis":null,"steps":[{"step_number":1,"agent":"Retriever","action":"get_documents","description":"List"}],"expected_outcome":null}`
	res := NewPlanner(llmtest.NewGenerator(llmtest.Reply{Text: raw}), nil).Plan(context.Background(), "q", nil)

	require.True(t, res.Success, res.Error)
	assert.Empty(t, res.Plan.Analysis)
	assert.Empty(t, res.Plan.ExpectedOutcome)
}

func TestPlanner_Failures(t *testing.T) {
	tests := []struct {
		name    string
		reply   llmtest.Reply
		wantErr string
		wantRaw bool
	}{
		{
			name:    "provider error",
			reply:   llmtest.Reply{Err: errors.New("connection reset")},
			wantErr: "LLM provider error: connection reset",
		},
		{
			name:    "not json",
			reply:   llmtest.Reply{Text: "I cannot help with that."},
			wantErr: "Could not parse response as JSON",
			wantRaw: true,
		},
		{
			name:    "missing expected_outcome",
			reply:   llmtest.Reply{Text: `{"analysis":"a","steps":[{"step_number":1,"agent":"Retriever","action":"search","description":"d"}]}`},
			wantErr: "Generated plan has invalid structure",
			wantRaw: true,
		},
		{
			name:    "empty steps",
			reply:   llmtest.Reply{Text: `{"analysis":"a","steps":[],"expected_outcome":"e"}`},
			wantErr: "Generated plan has invalid structure",
			wantRaw: true,
		},
		{
			name:    "step missing description",
			reply:   llmtest.Reply{Text: `{"analysis":"a","steps":[{"step_number":1,"agent":"Retriever","action":"search"}],"expected_outcome":"e"}`},
			wantErr: "Generated plan has invalid structure",
			wantRaw: true,
		},
		{
			name:    "unknown agent",
			reply:   llmtest.Reply{Text: `{"analysis":"a","steps":[{"step_number":1,"agent":"Mailer","action":"send","description":"d"}],"expected_outcome":"e"}`},
			wantErr: "Generated plan has invalid structure",
			wantRaw: true,
		},
		{
			name:    "invalid plan inside prose",
			reply:   llmtest.Reply{Text: `Plan: {"analysis":"a","steps":"none","expected_outcome":"e"} done`},
			wantErr: "Generated plan has invalid structure",
			wantRaw: true,
		},
		{
			name:    "plan wrapped in an array",
			reply:   llmtest.Reply{Text: "[" + onboardingPlan + "]"},
			wantErr: "Generated plan has invalid structure",
			wantRaw: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := NewPlanner(llmtest.NewGenerator(tt.reply), nil).Plan(context.Background(), "q", nil)
			assert.False(t, res.Success)
			assert.Nil(t, res.Plan)
			assert.Equal(t, tt.wantErr, res.Error)
			if tt.wantRaw {
				assert.Equal(t, tt.reply.Text, res.RawResponse)
			} else {
				assert.Empty(t, res.RawResponse)
			}
		})
	}
}

func TestPlanner_RefinePlan(t *testing.T) {
	gen := llmtest.NewGenerator(llmtest.Reply{Text: onboardingPlan})
	prior := Plan{
		Analysis:        "old",
		Steps:           []Step{{StepNumber: 1, Agent: AgentRetriever, Action: "get_documents", Description: "List"}},
		ExpectedOutcome: "docs",
	}
	res := NewPlanner(gen, nil).RefinePlan(context.Background(), prior, "Also summarize them", nil)
	require.True(t, res.Success, res.Error)

	prompt := gen.Calls()[0].UserPrompt
	assert.True(t, strings.HasPrefix(prompt, "Original Plan:\n{\n  \"analysis\": \"old\""), prompt)
	assert.Contains(t, prompt, "\n\nFeedback: Also summarize them\n\n")
	assert.True(t, strings.HasSuffix(prompt, "Return the updated plan in the same JSON format."))
}

func TestPlanner_RefinePlanFailures(t *testing.T) {
	ctx := context.Background()
	gen := llmtest.NewGenerator(
		llmtest.Reply{Err: errors.New("timeout")},
		llmtest.Reply{Text: "nope"},
		llmtest.Reply{Text: `{"analysis":"a"}`},
	)
	p := NewPlanner(gen, nil)

	assert.Equal(t, "LLM provider error during refinement: timeout", p.RefinePlan(ctx, Plan{}, "f", nil).Error)
	assert.Equal(t, "Could not parse refined response as JSON", p.RefinePlan(ctx, Plan{}, "f", nil).Error)
	assert.Equal(t, "Refined plan has invalid structure", p.RefinePlan(ctx, Plan{}, "f", nil).Error)
}

func TestPlanner_Limits(t *testing.T) {
	gen := llmtest.NewGenerator(llmtest.Reply{Text: onboardingPlan})
	NewPlanner(gen, nil, WithPlannerLimits(0.7, 900)).Plan(context.Background(), "q", nil)
	assert.InDelta(t, 0.7, gen.Calls()[0].Temperature, 1e-9)
	assert.Equal(t, 900, gen.Calls()[0].MaxTokens)
}

func TestStepDetails(t *testing.T) {
	plan := Plan{Steps: []Step{{StepNumber: 1, Action: "search"}, {StepNumber: 2, Action: "summarize"}}}

	step, err := StepDetails(plan, 2)
	require.NoError(t, err)
	assert.Equal(t, "summarize", step.Action)

	_, err = StepDetails(plan, 5)
	assert.EqualError(t, err, "step 5 not found in plan")
}
