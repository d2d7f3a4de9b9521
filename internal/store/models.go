package store

import "time"

// Task is a unit of work created on the user's behalf.
type Task struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Priority    string    `json:"priority"`
	Status      string    `json:"status"` // pending, in_progress, completed
	CreatedAt   time.Time `json:"created_at"`
}

// Section is one titled block of a report.
type Section struct {
	Title   string `json:"title" mapstructure:"title"`
	Content string `json:"content" mapstructure:"content"`
}

// Report is a markdown document assembled from sections.
type Report struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Sections  []Section `json:"sections"`
	CreatedAt time.Time `json:"created_at"`
}

type ChecklistItem struct {
	Item      string `json:"item"`
	Completed bool   `json:"completed"`
}

type Checklist struct {
	ID         string          `json:"id,omitempty"`
	Title      string          `json:"title"`
	Items      []ChecklistItem `json:"items"`
	TotalItems int             `json:"total_items"`
	CreatedAt  time.Time       `json:"created_at"`
}
