// Package actions implements the executor capability: task, report and checklist
// creation plus the single-call generation actions.
package actions

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rahul/workdesk/internal/llm"
	"github.com/rahul/workdesk/internal/observability"
	"github.com/rahul/workdesk/internal/store"
	"go.uber.org/zap"
)

// Request is the typed parameter set of one executor action.
type Request interface {
	Action() string
}

// Result is what Execute returns for every request, successful or not.
type Result struct {
	Success    bool      `json:"success"`
	Action     string    `json:"action"`
	Parameters Request   `json:"parameters,omitempty"`
	Result     any       `json:"result"`
	Error      string    `json:"error,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// Handler runs one action. A non-nil payload alongside an error is still reported
// to the caller, marked as failed.
type Handler func(ctx context.Context, req Request) (any, error)

var errWrongRequest = errors.New("request type does not match action")

// Executor dispatches requests to the registered actions.
type Executor struct {
	gen       llm.Generator
	artifacts *store.Artifacts
	handlers  map[string]Handler
	order     []string
	logger    *observability.Logger
	now       func() time.Time
}

type Option func(*Executor)

func WithLogger(l *observability.Logger) Option {
	return func(e *Executor) { e.logger = l }
}

func NewExecutor(gen llm.Generator, artifacts *store.Artifacts, opts ...Option) *Executor {
	e := &Executor{
		gen:       gen,
		artifacts: artifacts,
		handlers:  make(map[string]Handler),
		logger:    observability.NewNopLogger(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}

	e.Register(ActionCreateTask, e.createTask)
	e.Register(ActionSummarize, e.summarize)
	e.Register(ActionGenerateReport, e.generateReport)
	e.Register(ActionCreateChecklist, e.createChecklist)
	e.Register(ActionAnalyzeContent, e.analyzeContent)
	return e
}

// Register adds or replaces an action.
func (e *Executor) Register(name string, h Handler) {
	if _, ok := e.handlers[name]; !ok {
		e.order = append(e.order, name)
	}
	e.handlers[name] = h
}

// Available lists the action names in registration order.
func (e *Executor) Available() []string {
	return append([]string(nil), e.order...)
}

// Artifacts exposes the store the actions write to.
func (e *Executor) Artifacts() *store.Artifacts {
	return e.artifacts
}

// Execute runs req. It never returns an error; failures are reported in the Result.
func (e *Executor) Execute(ctx context.Context, req Request) Result {
	name := req.Action()
	h, ok := e.handlers[name]
	if !ok {
		return Result{
			Success:   false,
			Action:    name,
			Error:     fmt.Sprintf("Unknown action: %s. Available: %v", name, e.order),
			Timestamp: e.now(),
		}
	}

	payload, err := h(ctx, req)
	res := Result{
		Success:    err == nil,
		Action:     name,
		Parameters: req,
		Result:     payload,
		Timestamp:  e.now(),
	}
	if err != nil {
		if payload == nil {
			res.Error = fmt.Sprintf("Execution failed: %v", err)
		} else {
			res.Error = err.Error()
		}
		e.logger.Zap().Warn("action failed", zap.String("action", name), zap.Error(err))
	}
	return res
}
