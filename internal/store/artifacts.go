package store

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

const (
	DefaultPriority     = "medium"
	StatusPending       = "pending"
	defaultSectionTitle = "Section"
	idTimeLayout        = "20060102_150405"
	reportTimeLayout    = "2006-01-02 15:04:05"
)

// Artifacts holds the tasks, reports and checklists created during the process lifetime.
// Identifier ordinals are allocated under the same lock as the append, so ids stay
// unique under concurrent callers.
type Artifacts struct {
	mu         sync.RWMutex
	tasks      []Task
	reports    []Report
	checklists []Checklist
	now        func() time.Time
}

func NewArtifacts() *Artifacts {
	return &Artifacts{now: time.Now}
}

// WithClock replaces the time source, for tests.
func (a *Artifacts) WithClock(now func() time.Time) *Artifacts {
	a.now = now
	return a
}

func artifactID(kind string, n int, at time.Time) string {
	return fmt.Sprintf("%s_%d_%s", kind, n, at.Format(idTimeLayout))
}

// CreateTask records a pending task. An empty priority becomes "medium".
func (a *Artifacts) CreateTask(title, description, priority string) Task {
	if priority == "" {
		priority = DefaultPriority
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	now := a.now()
	task := Task{
		ID:          artifactID("task", len(a.tasks)+1, now),
		Title:       title,
		Description: description,
		Priority:    priority,
		Status:      StatusPending,
		CreatedAt:   now,
	}
	a.tasks = append(a.tasks, task)
	return task
}

// CreateReport renders sections into markdown and records the report.
func (a *Artifacts) CreateReport(title string, sections []Section) Report {
	a.mu.Lock()
	defer a.mu.Unlock()
	now := a.now()
	secs := append([]Section(nil), sections...)
	report := Report{
		ID:        artifactID("report", len(a.reports)+1, now),
		Title:     title,
		Content:   RenderReport(title, now, secs),
		Sections:  secs,
		CreatedAt: now,
	}
	a.reports = append(a.reports, report)
	return report
}

// AddChecklist records a checklist built from already parsed items.
func (a *Artifacts) AddChecklist(title string, items []ChecklistItem) Checklist {
	a.mu.Lock()
	defer a.mu.Unlock()
	now := a.now()
	if items == nil {
		items = []ChecklistItem{}
	}
	cl := Checklist{
		ID:         artifactID("checklist", len(a.checklists)+1, now),
		Title:      title,
		Items:      items,
		TotalItems: len(items),
		CreatedAt:  now,
	}
	a.checklists = append(a.checklists, cl)
	return cl
}

func (a *Artifacts) Tasks() []Task {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return append([]Task(nil), a.tasks...)
}

func (a *Artifacts) Reports() []Report {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return append([]Report(nil), a.reports...)
}

func (a *Artifacts) Checklists() []Checklist {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return append([]Checklist(nil), a.checklists...)
}

// RenderReport produces the markdown body of a report.
func RenderReport(title string, generated time.Time, sections []Section) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", title)
	fmt.Fprintf(&b, "**Generated:** %s\n\n", generated.Format(reportTimeLayout))
	for _, s := range sections {
		heading := s.Title
		if heading == "" {
			heading = defaultSectionTitle
		}
		fmt.Fprintf(&b, "## %s\n\n%s\n\n", heading, s.Content)
	}
	return b.String()
}
