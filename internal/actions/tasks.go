package actions

import (
	"context"
	"errors"
	"fmt"

	"github.com/rahul/workdesk/internal/store"
)

type TaskOutput struct {
	TaskID  string     `json:"task_id"`
	Task    store.Task `json:"task"`
	Message string     `json:"message"`
}

type ReportOutput struct {
	ReportID string       `json:"report_id"`
	Report   store.Report `json:"report"`
	Message  string       `json:"message"`
}

func (e *Executor) createTask(_ context.Context, r Request) (any, error) {
	req, ok := r.(TaskRequest)
	if !ok {
		return nil, errWrongRequest
	}
	if req.Title == "" {
		return nil, errors.New("title is required")
	}
	task := e.artifacts.CreateTask(req.Title, req.Description, req.Priority)
	return &TaskOutput{
		TaskID:  task.ID,
		Task:    task,
		Message: fmt.Sprintf("✅ Task '%s' created successfully", task.Title),
	}, nil
}

func (e *Executor) generateReport(_ context.Context, r Request) (any, error) {
	req, ok := r.(ReportRequest)
	if !ok {
		return nil, errWrongRequest
	}
	if req.Title == "" {
		return nil, errors.New("title is required")
	}
	report := e.artifacts.CreateReport(req.Title, req.Sections)
	return &ReportOutput{
		ReportID: report.ID,
		Report:   report,
		Message:  fmt.Sprintf("📊 Report '%s' generated successfully", report.Title),
	}, nil
}
