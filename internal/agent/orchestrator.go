package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rahul/workdesk/internal/actions"
	"github.com/rahul/workdesk/internal/contextlog"
	"github.com/rahul/workdesk/internal/governance"
	"github.com/rahul/workdesk/internal/observability"
	"github.com/rahul/workdesk/internal/retrieval"
	"go.uber.org/zap"
)

// PlanMaker produces plans. *Planner implements it.
type PlanMaker interface {
	Plan(ctx context.Context, query string, aux map[string]any) PlanResult
}

// Searcher is the retrieval capability. *retrieval.Retriever implements it.
type Searcher interface {
	Search(ctx context.Context, query string, k int, threshold float64) *retrieval.SearchResult
	SearchByDocument(ctx context.Context, query, source string, k int) *retrieval.SearchResult
	GetDocumentList(ctx context.Context) *retrieval.DocumentList
	ScoreThreshold() float64
}

// ActionExecutor is the executor capability. *actions.Executor implements it.
type ActionExecutor interface {
	Execute(ctx context.Context, req actions.Request) actions.Result
}

// StepResult is the outcome of one plan step.
type StepResult struct {
	StepNumber  int    `json:"step_number"`
	Agent       string `json:"agent"`
	Action      string `json:"action"`
	Description string `json:"description"`
	Result      any    `json:"result"`
	Success     bool   `json:"success"`
	Error       string `json:"error,omitempty"`
}

// QueryResult is what ProcessQuery returns. Success is false only when planning
// failed or the run hit an unexpected fault; individual step failures leave it
// true.
type QueryResult struct {
	SessionID        string              `json:"session_id"`
	Success          bool                `json:"success"`
	UserQuery        string              `json:"user_query,omitempty"`
	Plan             *Plan               `json:"plan,omitempty"`
	StepResults      []StepResult        `json:"step_results,omitempty"`
	RetrievedContent []RetrievedContent  `json:"retrieved_content,omitempty"`
	FinalSummary     *FinalSummary       `json:"final_summary,omitempty"`
	ContextSummary   *contextlog.Summary `json:"context_summary,omitempty"`
	Error            string              `json:"error,omitempty"`
	Details          *PlanResult         `json:"details,omitempty"`
}

// stepFailure is the payload of a step that never reached a capability.
type stepFailure struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// Orchestrator drives one query through planning, step execution and
// summarizing. Queries on one Orchestrator run one at a time.
type Orchestrator struct {
	mu        sync.Mutex
	planner   PlanMaker
	retriever Searcher
	executor  ActionExecutor
	contexts  *contextlog.Log
	policy    governance.PolicyEngine
	logger    *observability.Logger
	metrics   *observability.Metrics
	newID     func() string
}

type Option func(*Orchestrator)

func WithPolicy(p governance.PolicyEngine) Option {
	return func(o *Orchestrator) { o.policy = p }
}

func WithLogger(l *observability.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

func WithMetrics(m *observability.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithSessionIDs replaces the session id generator.
func WithSessionIDs(next func() string) Option {
	return func(o *Orchestrator) { o.newID = next }
}

func NewOrchestrator(planner PlanMaker, retriever Searcher, executor ActionExecutor, contexts *contextlog.Log, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		planner:   planner,
		retriever: retriever,
		executor:  executor,
		contexts:  contexts,
		logger:    observability.NewNopLogger(),
		newID:     NewSessionID,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// NewSessionID returns "session_" followed by 8 hex characters.
func NewSessionID() string {
	return "session_" + uuid.NewString()[:8]
}

// Contexts returns the log the orchestrator records sessions in.
func (o *Orchestrator) Contexts() *contextlog.Log {
	return o.contexts
}

// ProcessQuery plans and runs query. It never panics and never returns an
// error; every outcome is described by the QueryResult.
func (o *Orchestrator) ProcessQuery(ctx context.Context, query string) (res QueryResult) {
	o.mu.Lock()
	defer o.mu.Unlock()

	sessionID := o.newID()
	ctx = observability.WithSession(ctx, sessionID)
	defer observability.SetStatus(observability.PhaseIdle, "")

	if _, err := o.contexts.Create(sessionID, query); err != nil {
		// The id may belong to another session; leave its status alone.
		o.logger.Zap().Warn("could not open session", zap.String("session_id", sessionID), zap.Error(err))
		return o.failed(sessionID, query, err)
	}

	defer func() {
		if r := recover(); r != nil {
			o.logger.Zap().Error("query processing panicked", zap.String("session_id", sessionID), zap.Any("panic", r))
			res = o.fault(sessionID, query, fmt.Errorf("%v", r))
		}
	}()

	res, err := o.run(ctx, sessionID, query)
	if err != nil {
		return o.fault(sessionID, query, err)
	}
	return res
}

func (o *Orchestrator) fault(sessionID, query string, err error) QueryResult {
	if serr := o.contexts.SetStatus(sessionID, contextlog.StatusError); serr != nil && !errors.Is(serr, contextlog.ErrSessionClosed) {
		o.logger.Zap().Warn("could not mark session failed", zap.String("session_id", sessionID), zap.Error(serr))
	}
	return o.failed(sessionID, query, err)
}

func (o *Orchestrator) failed(sessionID, query string, err error) QueryResult {
	o.metrics.ObserveQuery(string(contextlog.StatusError))
	return QueryResult{
		SessionID: sessionID,
		Success:   false,
		UserQuery: query,
		Error:     err.Error(),
	}
}

func (o *Orchestrator) run(ctx context.Context, sessionID, query string) (QueryResult, error) {
	observability.SetStatus(observability.PhasePlanning, sessionID)
	planned := o.planner.Plan(ctx, query, nil)
	if _, err := o.contexts.Record(sessionID, AgentPlanner, "create_plan", map[string]any{"user_query": query}, planned, nil); err != nil {
		return QueryResult{}, err
	}
	stepCount := 0
	if planned.Plan != nil {
		stepCount = len(planned.Plan.Steps)
	}
	o.logger.LogPlan(sessionID, planned.Success, stepCount, planned.Error)
	o.metrics.ObservePlan(planned.Success)

	if !planned.Success || planned.Plan == nil {
		if err := o.contexts.SetStatus(sessionID, contextlog.StatusError); err != nil {
			return QueryResult{}, err
		}
		o.metrics.ObserveQuery(string(contextlog.StatusError))
		return QueryResult{
			SessionID: sessionID,
			Success:   false,
			Error:     "Planning failed",
			Details:   &planned,
		}, nil
	}
	plan := planned.Plan

	observability.SetStatus(observability.PhaseExecuting, sessionID)
	var (
		results []StepResult
		buffer  []RetrievedContent
	)
	for _, step := range plan.Steps {
		started := time.Now()
		params, payload, found := o.runStep(ctx, sessionID, step, buffer)
		buffer = append(buffer, found...)

		sr := StepResult{
			StepNumber:  step.StepNumber,
			Agent:       step.Agent,
			Action:      step.Action,
			Description: step.Description,
			Result:      payload,
		}
		sr.Success, sr.Error = outcomeOf(payload)

		var recordedParams any = step.Parameters
		if params != nil {
			recordedParams = params
		}
		input := map[string]any{"step": step, "parameters": recordedParams}
		if _, err := o.contexts.Record(sessionID, step.Agent, step.Action, input, payload, nil); err != nil {
			return QueryResult{}, err
		}
		o.logger.LogStep(sessionID, step.StepNumber, step.Agent, step.Action, sr.Success, time.Since(started))
		o.metrics.ObserveStep(step.Agent, step.Action, sr.Success)
		results = append(results, sr)
	}

	observability.SetStatus(observability.PhaseSummarizing, sessionID)
	summary := summarize(query, plan, results, buffer)

	status := contextlog.StatusCompleted
	if summary.FailedSteps > 0 {
		status = contextlog.StatusCompletedWithErrors
	}
	if err := o.contexts.SetStatus(sessionID, status); err != nil {
		return QueryResult{}, err
	}
	ctxSummary, err := o.contexts.Summary(sessionID)
	if err != nil {
		return QueryResult{}, err
	}
	o.metrics.ObserveQuery(string(status))

	return QueryResult{
		SessionID:        sessionID,
		Success:          true,
		UserQuery:        query,
		Plan:             plan,
		StepResults:      results,
		RetrievedContent: buffer,
		FinalSummary:     summary,
		ContextSummary:   &ctxSummary,
	}, nil
}

// runStep routes one step to its capability. It returns the typed parameters
// (nil when they could not be built), the payload to record, and any chunks to
// add to the run buffer.
func (o *Orchestrator) runStep(ctx context.Context, sessionID string, step Step, buffer []RetrievedContent) (StepParams, any, []RetrievedContent) {
	var (
		params StepParams
		err    error
	)
	switch step.Agent {
	case AgentRetriever:
		params, err = retrieverParams(step, o.retriever.ScoreThreshold())
	case AgentExecutor:
		params, err = executorParams(step, buffer)
	default:
		return nil, stepFailure{Error: "Unknown agent: " + step.Agent}, nil
	}
	if err != nil {
		return nil, stepFailure{Error: err.Error()}, nil
	}

	if reason, denied := o.checkPolicy(ctx, sessionID, step, params); denied {
		return params, stepFailure{Error: "Blocked by policy: " + reason}, nil
	}

	if step.Agent == AgentExecutor {
		return params, o.executor.Execute(ctx, params), nil
	}

	switch r := params.(type) {
	case retrieval.SearchRequest:
		res := o.retriever.Search(ctx, r.Query, r.K, r.ScoreThreshold)
		return params, res, collect(res)
	case retrieval.DocumentSearchRequest:
		res := o.retriever.SearchByDocument(ctx, r.Query, r.SourceFile, r.K)
		return params, res, collect(res)
	default:
		return params, o.retriever.GetDocumentList(ctx), nil
	}
}

func (o *Orchestrator) checkPolicy(ctx context.Context, sessionID string, step Step, params StepParams) (string, bool) {
	if o.policy == nil {
		return "", false
	}
	args, err := json.Marshal(params)
	if err != nil {
		return fmt.Sprintf("could not encode parameters: %v", err), true
	}
	decision, err := o.policy.Evaluate(ctx, governance.Request{
		Agent:     step.Agent,
		Action:    step.Action,
		Arguments: string(args),
		SessionID: sessionID,
	})
	if err != nil {
		o.logger.LogPolicy(sessionID, step.StepNumber, step.Action, "error", err.Error())
		return fmt.Sprintf("policy evaluation failed: %v", err), true
	}
	o.logger.LogPolicy(sessionID, step.StepNumber, step.Action, string(decision.Effect), decision.Reason)
	return decision.Reason, decision.Effect == governance.EffectDeny
}

func collect(res *retrieval.SearchResult) []RetrievedContent {
	if !res.Success || len(res.Results) == 0 {
		return nil
	}
	out := make([]RetrievedContent, len(res.Results))
	for i, hit := range res.Results {
		out[i] = RetrievedContent{Source: hit.SourceFile, Content: hit.Content}
	}
	return out
}

func outcomeOf(payload any) (bool, string) {
	switch p := payload.(type) {
	case stepFailure:
		return false, p.Error
	case actions.Result:
		return p.Success, p.Error
	case *retrieval.SearchResult:
		return p.Success, p.Error
	case *retrieval.DocumentList:
		return p.Success, p.Error
	default:
		return false, fmt.Sprintf("unexpected step payload %T", payload)
	}
}
