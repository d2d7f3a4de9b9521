package actions

import "github.com/rahul/workdesk/internal/store"

const (
	ActionCreateTask      = "create_task"
	ActionSummarize       = "summarize"
	ActionGenerateReport  = "generate_report"
	ActionCreateChecklist = "create_checklist"
	ActionAnalyzeContent  = "analyze_content"

	DefaultTaskTitle      = "Generated Task"
	DefaultChecklistTitle = "Generated Checklist"
	DefaultMaxLength      = 200
	DefaultAnalysisType   = "general"
)

type TaskRequest struct {
	Title       string `mapstructure:"title" json:"title"`
	Description string `mapstructure:"description" json:"description"`
	Priority    string `mapstructure:"priority" json:"priority,omitempty"`
}

func (TaskRequest) Action() string { return ActionCreateTask }

type SummarizeRequest struct {
	Content   string `mapstructure:"content" json:"content"`
	MaxLength int    `mapstructure:"max_length" json:"max_length,omitempty"`
}

func (SummarizeRequest) Action() string { return ActionSummarize }

type ReportRequest struct {
	Title    string          `mapstructure:"title" json:"title"`
	Sections []store.Section `mapstructure:"sections" json:"sections"`
}

func (ReportRequest) Action() string { return ActionGenerateReport }

type ChecklistRequest struct {
	Title   string `mapstructure:"title" json:"title"`
	Content string `mapstructure:"content" json:"content"`
}

func (ChecklistRequest) Action() string { return ActionCreateChecklist }

type AnalyzeRequest struct {
	Content      string `mapstructure:"content" json:"content"`
	AnalysisType string `mapstructure:"analysis_type" json:"analysis_type,omitempty"`
}

func (AnalyzeRequest) Action() string { return ActionAnalyzeContent }

// UnknownRequest carries an action name the executor does not implement.
type UnknownRequest struct {
	Name       string         `json:"name"`
	Parameters map[string]any `json:"parameters,omitempty"`
}

func (u UnknownRequest) Action() string { return u.Name }
