package actions

import (
	"context"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/rahul/workdesk/internal/store"
)

const generationTemperature = 0.3

const (
	summarizeSystem = "You are a helpful assistant that creates clear, concise summaries."
	summarizePrompt = `Please summarize the following content in bullet points (max %d words):

%s

Return a concise summary in bullet point format.`

	checklistSystem    = "You are an expert at extracting actionable tasks."
	checklistPrompt    = "Extract actionable checklist items from the following content:\n\n%s\n\nReturn a numbered list of clear, actionable items."
	checklistMaxTokens = 500

	analyzeSystem    = "You are an expert analyst."
	analyzePrompt    = "Analyze this content and provide key insights and important points:\n\n%s\n\nProvide a structured analysis with clear sections."
	analyzeMaxTokens = 800
)

type SummaryOutput struct {
	Summary        string `json:"summary"`
	OriginalLength int    `json:"original_length"`
	SummaryLength  int    `json:"summary_length"`
	Message        string `json:"message"`
	Error          string `json:"error,omitempty"`
}

type ChecklistOutput struct {
	Checklist store.Checklist `json:"checklist"`
	Message   string          `json:"message"`
	Error     string          `json:"error,omitempty"`
}

type AnalysisOutput struct {
	Analysis     string `json:"analysis"`
	AnalysisType string `json:"analysis_type"`
	Message      string `json:"message"`
	Error        string `json:"error,omitempty"`
}

func (e *Executor) summarize(ctx context.Context, r Request) (any, error) {
	req, ok := r.(SummarizeRequest)
	if !ok {
		return nil, errWrongRequest
	}
	if req.Content == "" {
		return nil, errors.New("content is required")
	}
	maxLength := req.MaxLength
	if maxLength <= 0 {
		maxLength = DefaultMaxLength
	}

	summary, err := e.gen.Complete(ctx, summarizeSystem, fmt.Sprintf(summarizePrompt, maxLength, req.Content),
		generationTemperature, maxLength*2)
	if err != nil {
		return &SummaryOutput{
			Summary: fmt.Sprintf("Error generating summary: %v", err),
			Error:   err.Error(),
			Message: "❌ Failed to generate summary",
		}, err
	}
	return &SummaryOutput{
		Summary:        summary,
		OriginalLength: utf8.RuneCountInString(req.Content),
		SummaryLength:  utf8.RuneCountInString(summary),
		Message:        "📝 Content summarized successfully",
	}, nil
}

func (e *Executor) createChecklist(ctx context.Context, r Request) (any, error) {
	req, ok := r.(ChecklistRequest)
	if !ok {
		return nil, errWrongRequest
	}
	if req.Title == "" {
		return nil, errors.New("title is required")
	}

	text, err := e.gen.Complete(ctx, checklistSystem, fmt.Sprintf(checklistPrompt, req.Content),
		generationTemperature, checklistMaxTokens)
	if err != nil {
		return &ChecklistOutput{
			Checklist: store.Checklist{Title: req.Title, Items: []store.ChecklistItem{}},
			Error:     err.Error(),
			Message:   "❌ Failed to create checklist",
		}, err
	}

	cl := e.artifacts.AddChecklist(req.Title, ParseChecklist(text))
	return &ChecklistOutput{
		Checklist: cl,
		Message:   fmt.Sprintf("📋 Checklist '%s' created with %d items", cl.Title, cl.TotalItems),
	}, nil
}

func (e *Executor) analyzeContent(ctx context.Context, r Request) (any, error) {
	req, ok := r.(AnalyzeRequest)
	if !ok {
		return nil, errWrongRequest
	}
	if req.Content == "" {
		return nil, errors.New("content is required")
	}
	kind := req.AnalysisType
	if kind == "" {
		kind = DefaultAnalysisType
	}

	analysis, err := e.gen.Complete(ctx, analyzeSystem, fmt.Sprintf(analyzePrompt, req.Content),
		generationTemperature, analyzeMaxTokens)
	if err != nil {
		return &AnalysisOutput{
			Analysis:     fmt.Sprintf("Error during analysis: %v", err),
			AnalysisType: kind,
			Error:        err.Error(),
			Message:      "❌ Content analysis failed",
		}, err
	}
	return &AnalysisOutput{
		Analysis:     analysis,
		AnalysisType: kind,
		Message:      "🔍 Content analysis completed successfully",
	}, nil
}
