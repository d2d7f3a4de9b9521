package agent

import (
	"fmt"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/rahul/workdesk/internal/actions"
	"github.com/rahul/workdesk/internal/retrieval"
)

const (
	ActionSearch           = "search"
	ActionSearchByDocument = "search_by_document"
	ActionGetDocuments     = "get_documents"

	// defaultStepK is the result count used when a retriever step names none.
	defaultStepK = 4
)

// StepParams is the typed parameter set of a step: one of the retrieval
// requests or one of the actions requests.
type StepParams interface {
	Action() string
}

// RetrievedContent is one chunk carried from retriever steps to later executor
// steps.
type RetrievedContent struct {
	Source  string `json:"source"`
	Content string `json:"content"`
}

// errUnknownRetrieverAction marks a Retriever step whose action is not one of
// the search operations.
type errUnknownRetrieverAction string

func (e errUnknownRetrieverAction) Error() string {
	return "Unknown retriever action: " + string(e)
}

// retrieverParams decodes the parameters of a Retriever step.
func retrieverParams(step Step, threshold float64) (StepParams, error) {
	switch step.Action {
	case ActionSearch:
		req := retrieval.SearchRequest{K: defaultStepK, ScoreThreshold: threshold}
		if err := decodeParams(step, &req); err != nil {
			return nil, err
		}
		return req, nil
	case ActionSearchByDocument:
		req := retrieval.DocumentSearchRequest{K: defaultStepK}
		if err := decodeParams(step, &req); err != nil {
			return nil, err
		}
		return req, nil
	case ActionGetDocuments:
		return retrieval.DocumentListRequest{}, nil
	default:
		return nil, errUnknownRetrieverAction(step.Action)
	}
}

// executorParams decodes the parameters of an Executor step and applies the
// rewriting rules: buffered content replaces the content of the generation
// actions, task_type stands in for a missing task title, and missing titles get
// a default. Unknown actions pass through for the executor to reject.
func executorParams(step Step, buffer []RetrievedContent) (StepParams, error) {
	var req StepParams
	switch step.Action {
	case actions.ActionCreateTask:
		var r actions.TaskRequest
		if err := decodeParams(step, &r); err != nil {
			return nil, err
		}
		if _, ok := step.Parameters["title"]; !ok {
			if tt, ok := step.Parameters["task_type"]; ok {
				r.Title = fmt.Sprint(tt)
			}
		}
		if r.Title == "" {
			r.Title = actions.DefaultTaskTitle
		}
		req = r
	case actions.ActionSummarize:
		var r actions.SummarizeRequest
		if err := decodeParams(step, &r); err != nil {
			return nil, err
		}
		if len(buffer) > 0 {
			r.Content = joinBuffer(buffer)
		}
		req = r
	case actions.ActionAnalyzeContent:
		var r actions.AnalyzeRequest
		if err := decodeParams(step, &r); err != nil {
			return nil, err
		}
		if len(buffer) > 0 {
			r.Content = joinBuffer(buffer)
		}
		req = r
	case actions.ActionCreateChecklist:
		var r actions.ChecklistRequest
		if err := decodeParams(step, &r); err != nil {
			return nil, err
		}
		if len(buffer) > 0 {
			r.Content = joinBuffer(buffer)
		}
		if r.Title == "" {
			r.Title = actions.DefaultChecklistTitle
		}
		req = r
	case actions.ActionGenerateReport:
		var r actions.ReportRequest
		if err := decodeParams(step, &r); err != nil {
			return nil, err
		}
		req = r
	default:
		req = actions.UnknownRequest{Name: step.Action, Parameters: step.Parameters}
	}
	return req, nil
}

func decodeParams(step Step, out any) error {
	if len(step.Parameters) == 0 {
		return nil
	}
	if err := mapstructure.WeakDecode(step.Parameters, out); err != nil {
		return fmt.Errorf("invalid parameters for %s: %w", step.Action, err)
	}
	return nil
}

func joinBuffer(buffer []RetrievedContent) string {
	parts := make([]string, len(buffer))
	for i, item := range buffer {
		parts[i] = fmt.Sprintf("From %s: %s", item.Source, item.Content)
	}
	return strings.Join(parts, "\n\n")
}
