package agent

import (
	"testing"

	"github.com/rahul/workdesk/internal/actions"
	"github.com/rahul/workdesk/internal/retrieval"
	"github.com/rahul/workdesk/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetrieverParams(t *testing.T) {
	tests := []struct {
		name string
		step Step
		want StepParams
	}{
		{
			name: "search defaults",
			step: Step{Action: ActionSearch, Parameters: map[string]any{"query": "vacation"}},
			want: retrieval.SearchRequest{Query: "vacation", K: 4, ScoreThreshold: 0.3},
		},
		{
			name: "search with string k",
			step: Step{Action: ActionSearch, Parameters: map[string]any{"query": "vacation", "k": "2"}},
			want: retrieval.SearchRequest{Query: "vacation", K: 2, ScoreThreshold: 0.3},
		},
		{
			name: "search by document",
			step: Step{Action: ActionSearchByDocument, Parameters: map[string]any{"query": "dental", "source_file": "Handbook.pdf"}},
			want: retrieval.DocumentSearchRequest{Query: "dental", SourceFile: "Handbook.pdf", K: 4},
		},
		{
			name: "get documents ignores parameters",
			step: Step{Action: ActionGetDocuments, Parameters: map[string]any{"k": 9}},
			want: retrieval.DocumentListRequest{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := retrieverParams(tt.step, 0.3)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := retrieverParams(Step{Action: "crawl"}, 0.3)
	assert.EqualError(t, err, "Unknown retriever action: crawl")
}

func TestExecutorParams(t *testing.T) {
	buffer := []RetrievedContent{
		{Source: "a.pdf", Content: "first"},
		{Source: "b.md", Content: "second"},
	}
	joined := "From a.pdf: first\n\nFrom b.md: second"

	tests := []struct {
		name   string
		step   Step
		buffer []RetrievedContent
		want   StepParams
	}{
		{
			name: "task_type becomes title",
			step: Step{Action: actions.ActionCreateTask, Parameters: map[string]any{"task_type": "Review benefits", "description": "d"}},
			want: actions.TaskRequest{Title: "Review benefits", Description: "d"},
		},
		{
			name: "explicit title wins over task_type",
			step: Step{Action: actions.ActionCreateTask, Parameters: map[string]any{"title": "Enroll", "task_type": "ignored"}},
			want: actions.TaskRequest{Title: "Enroll"},
		},
		{
			name: "default task title",
			step: Step{Action: actions.ActionCreateTask},
			want: actions.TaskRequest{Title: "Generated Task"},
		},
		{
			name:   "task ignores buffer",
			step:   Step{Action: actions.ActionCreateTask, Parameters: map[string]any{"title": "t"}},
			buffer: buffer,
			want:   actions.TaskRequest{Title: "t"},
		},
		{
			name:   "summarize uses buffer",
			step:   Step{Action: actions.ActionSummarize, Parameters: map[string]any{"content": "stale", "max_length": 50}},
			buffer: buffer,
			want:   actions.SummarizeRequest{Content: joined, MaxLength: 50},
		},
		{
			name: "summarize keeps content without buffer",
			step: Step{Action: actions.ActionSummarize, Parameters: map[string]any{"content": "given"}},
			want: actions.SummarizeRequest{Content: "given"},
		},
		{
			name:   "analyze uses buffer",
			step:   Step{Action: actions.ActionAnalyzeContent, Parameters: map[string]any{"analysis_type": "risk"}},
			buffer: buffer,
			want:   actions.AnalyzeRequest{Content: joined, AnalysisType: "risk"},
		},
		{
			name:   "checklist uses buffer and default title",
			step:   Step{Action: actions.ActionCreateChecklist},
			buffer: buffer,
			want:   actions.ChecklistRequest{Title: "Generated Checklist", Content: joined},
		},
		{
			name: "report sections",
			step: Step{Action: actions.ActionGenerateReport, Parameters: map[string]any{
				"title":    "Q1",
				"sections": []any{map[string]any{"title": "Intro", "content": "hello"}},
			}},
			want: actions.ReportRequest{Title: "Q1", Sections: []store.Section{{Title: "Intro", Content: "hello"}}},
		},
		{
			name: "unknown action passes through",
			step: Step{Action: "send_email", Parameters: map[string]any{"to": "hr"}},
			want: actions.UnknownRequest{Name: "send_email", Parameters: map[string]any{"to": "hr"}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := executorParams(tt.step, tt.buffer)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExecutorParams_InvalidParameters(t *testing.T) {
	_, err := executorParams(Step{Action: actions.ActionGenerateReport, Parameters: map[string]any{"sections": "not a list"}}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid parameters for generate_report")
}
