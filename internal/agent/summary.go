package agent

import (
	"fmt"
	"strings"

	"github.com/rahul/workdesk/internal/actions"
	"github.com/rahul/workdesk/internal/retrieval"
)

// FinalSummary aggregates a completed run.
type FinalSummary struct {
	UserQuery          string   `json:"user_query"`
	PlanAnalysis       string   `json:"plan_analysis"`
	ExpectedOutcome    string   `json:"expected_outcome"`
	TotalSteps         int      `json:"total_steps"`
	SuccessfulSteps    int      `json:"successful_steps"`
	FailedSteps        int      `json:"failed_steps"`
	RetrievedDocuments int      `json:"retrieved_documents"`
	KeyAchievements    []string `json:"key_achievements"`
}

func summarize(query string, plan *Plan, results []StepResult, buffer []RetrievedContent) *FinalSummary {
	s := &FinalSummary{
		UserQuery:       query,
		PlanAnalysis:    plan.Analysis,
		ExpectedOutcome: plan.ExpectedOutcome,
		TotalSteps:      len(results),
		KeyAchievements: []string{},
	}
	sources := make(map[string]bool)
	for _, item := range buffer {
		sources[item.Source] = true
	}
	s.RetrievedDocuments = len(sources)

	for _, r := range results {
		if !r.Success {
			s.FailedSteps++
			continue
		}
		s.SuccessfulSteps++
		if a, ok := achievement(r); ok {
			s.KeyAchievements = append(s.KeyAchievements, a)
		}
	}
	return s
}

func achievement(r StepResult) (string, bool) {
	switch p := r.Result.(type) {
	case *retrieval.SearchResult:
		return fmt.Sprintf("Retrieved %d relevant documents for '%s'", p.TotalResults, r.Description), true
	case *retrieval.DocumentList:
		return fmt.Sprintf("Retrieved %d relevant documents for '%s'", p.TotalDocuments, r.Description), true
	case actions.Result:
		switch out := p.Result.(type) {
		case *actions.TaskOutput:
			return "Created task: " + out.Task.Title, true
		case *actions.SummaryOutput:
			return "Generated content summary", true
		case *actions.ReportOutput:
			return "Generated report: " + out.Report.Title, true
		case *actions.ChecklistOutput:
			return fmt.Sprintf("Created checklist with %d items", out.Checklist.TotalItems), true
		}
	}
	return "", false
}

// Describe renders a result the way the interactive surfaces print it.
func Describe(res QueryResult) string {
	var b strings.Builder
	if !res.Success {
		msg := res.Error
		if msg == "" {
			msg = "Unknown error"
		}
		fmt.Fprintf(&b, "❌ Processing failed: %s\n", msg)
		return b.String()
	}
	b.WriteString("🎉 Processing completed successfully!\n")
	fmt.Fprintf(&b, "📄 View full results in session: %s\n", res.SessionID)
	if res.FinalSummary != nil && len(res.FinalSummary.KeyAchievements) > 0 {
		b.WriteString("\n🏆 Key Achievements:\n")
		for _, a := range res.FinalSummary.KeyAchievements {
			fmt.Fprintf(&b, "  • %s\n", a)
		}
	}
	return b.String()
}
