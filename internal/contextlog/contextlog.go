// Package contextlog keeps the append-only record of agent actions per session.
package contextlog

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rahul/workdesk/internal/observability"
	"gopkg.in/yaml.v3"
)

var (
	ErrNoActiveContext = errors.New("no active context")
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionExists   = errors.New("session already exists")
	ErrSessionClosed   = errors.New("session already reached a terminal status")
)

type Status string

const (
	StatusActive              Status = "active"
	StatusCompleted           Status = "completed"
	StatusCompletedWithErrors Status = "completed_with_errors"
	StatusError               Status = "error"
)

// Terminal reports whether no further entries may be recorded.
func (s Status) Terminal() bool {
	return s != StatusActive
}

// Entry is one recorded agent action. Input and Output are JSON snapshots taken
// when the entry is recorded, so later mutation of the originals cannot change them.
type Entry struct {
	Timestamp time.Time       `json:"timestamp"`
	Agent     string          `json:"agent"`
	Action    string          `json:"action"`
	Input     json.RawMessage `json:"input"`
	Output    json.RawMessage `json:"output"`
	Metadata  map[string]any  `json:"metadata,omitempty"`
}

// Conversation is the context of one ProcessQuery run.
type Conversation struct {
	mu          sync.RWMutex
	sessionID   string
	userQuery   string
	entries     []Entry
	currentStep int
	status      Status
}

func (c *Conversation) SessionID() string { return c.sessionID }
func (c *Conversation) UserQuery() string { return c.userQuery }

func (c *Conversation) Status() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.status
}

func (c *Conversation) CurrentStep() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.currentStep
}

// Entries returns a copy of the recorded entries in order.
func (c *Conversation) Entries() []Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]Entry(nil), c.entries...)
}

// AgentHistory returns the entries recorded for agent, in order.
func (c *Conversation) AgentHistory(agent string) []Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []Entry
	for _, e := range c.entries {
		if e.Agent == agent {
			out = append(out, e)
		}
	}
	return out
}

// LatestOutput returns the output snapshot of the last entry for agent, or nil.
func (c *Conversation) LatestOutput(agent string) json.RawMessage {
	h := c.AgentHistory(agent)
	if len(h) == 0 {
		return nil
	}
	return h[len(h)-1].Output
}

func (c *Conversation) add(e Entry) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.status.Terminal() {
		return fmt.Errorf("%w: %s", ErrSessionClosed, c.sessionID)
	}
	c.entries = append(c.entries, e)
	c.currentStep++
	return nil
}

func (c *Conversation) setStatus(s Status) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.status.Terminal() {
		return fmt.Errorf("%w: %s is %s", ErrSessionClosed, c.sessionID, c.status)
	}
	c.status = s
	return nil
}

// Summary is the compact view of a conversation.
type Summary struct {
	SessionID      string    `json:"session_id" yaml:"session_id"`
	UserQuery      string    `json:"user_query" yaml:"user_query"`
	TotalSteps     int       `json:"total_steps" yaml:"total_steps"`
	CurrentStep    int       `json:"current_step" yaml:"current_step"`
	Status         Status    `json:"status" yaml:"status"`
	AgentsInvolved []string  `json:"agents_involved" yaml:"agents_involved"`
	LastUpdated    time.Time `json:"last_updated,omitempty" yaml:"last_updated,omitempty"`
}

func (c *Conversation) Summary() Summary {
	c.mu.RLock()
	defer c.mu.RUnlock()
	agents := make(map[string]bool)
	for _, e := range c.entries {
		agents[e.Agent] = true
	}
	involved := make([]string, 0, len(agents))
	for a := range agents {
		involved = append(involved, a)
	}
	sort.Strings(involved)

	s := Summary{
		SessionID:      c.sessionID,
		UserQuery:      c.userQuery,
		TotalSteps:     len(c.entries),
		CurrentStep:    c.currentStep,
		Status:         c.status,
		AgentsInvolved: involved,
	}
	if n := len(c.entries); n > 0 {
		s.LastUpdated = c.entries[n-1].Timestamp
	}
	return s
}

// Log owns every conversation of the process, keyed by session id.
type Log struct {
	mu       sync.RWMutex
	contexts map[string]*Conversation
	active   *Conversation
	logger   *observability.Logger
	now      func() time.Time
}

func New(logger *observability.Logger) *Log {
	if logger == nil {
		logger = observability.NewNopLogger()
	}
	return &Log{
		contexts: make(map[string]*Conversation),
		logger:   logger,
		now:      time.Now,
	}
}

// Create starts a new active conversation and makes it the active one.
// Session ids are never reused.
func (l *Log) Create(sessionID, userQuery string) (*Conversation, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.contexts[sessionID]; ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionExists, sessionID)
	}
	c := &Conversation{sessionID: sessionID, userQuery: userQuery, status: StatusActive}
	l.contexts[sessionID] = c
	l.active = c
	l.logger.LogSession(sessionID, string(StatusActive))
	return c, nil
}

func (l *Log) Get(sessionID string) (*Conversation, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	c, ok := l.contexts[sessionID]
	return c, ok
}

func (l *Log) lookup(sessionID string) (*Conversation, error) {
	c, ok := l.Get(sessionID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	return c, nil
}

// SetActive switches the active conversation. It reports false for unknown ids.
func (l *Log) SetActive(sessionID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	c, ok := l.contexts[sessionID]
	if ok {
		l.active = c
	}
	return ok
}

// Active returns the active conversation, if any.
func (l *Log) Active() (*Conversation, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.active, l.active != nil
}

// Sessions lists the known session ids, sorted.
func (l *Log) Sessions() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	ids := make([]string, 0, len(l.contexts))
	for id := range l.contexts {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Record appends an entry to the named conversation, snapshotting input and output.
func (l *Log) Record(sessionID, agent, action string, input, output any, metadata map[string]any) (Entry, error) {
	c, err := l.lookup(sessionID)
	if err != nil {
		return Entry{}, err
	}
	in, err := json.Marshal(input)
	if err != nil {
		return Entry{}, fmt.Errorf("snapshot input of %s/%s: %w", agent, action, err)
	}
	out, err := json.Marshal(output)
	if err != nil {
		return Entry{}, fmt.Errorf("snapshot output of %s/%s: %w", agent, action, err)
	}
	var meta map[string]any
	if metadata != nil {
		meta = make(map[string]any, len(metadata))
		for k, v := range metadata {
			meta[k] = v
		}
	}
	e := Entry{
		Timestamp: l.now(),
		Agent:     agent,
		Action:    action,
		Input:     in,
		Output:    out,
		Metadata:  meta,
	}
	if err := c.add(e); err != nil {
		return Entry{}, err
	}
	return e, nil
}

// LogAction records on the active conversation.
func (l *Log) LogAction(agent, action string, input, output any, metadata map[string]any) (Entry, error) {
	c, ok := l.Active()
	if !ok {
		return Entry{}, ErrNoActiveContext
	}
	return l.Record(c.sessionID, agent, action, input, output, metadata)
}

// SetStatus moves a conversation to status. Terminal statuses are final.
func (l *Log) SetStatus(sessionID string, status Status) error {
	c, err := l.lookup(sessionID)
	if err != nil {
		return err
	}
	if err := c.setStatus(status); err != nil {
		return err
	}
	l.logger.LogSession(sessionID, string(status))
	return nil
}

func (l *Log) Summary(sessionID string) (Summary, error) {
	c, err := l.lookup(sessionID)
	if err != nil {
		return Summary{}, err
	}
	return c.Summary(), nil
}

// Format selects the Export encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

type exportedEntry struct {
	Timestamp time.Time      `json:"timestamp" yaml:"timestamp"`
	Agent     string         `json:"agent" yaml:"agent"`
	Action    string         `json:"action" yaml:"action"`
	Input     any            `json:"input" yaml:"input"`
	Output    any            `json:"output" yaml:"output"`
	Metadata  map[string]any `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

type exported struct {
	SessionID   string          `json:"session_id" yaml:"session_id"`
	UserQuery   string          `json:"user_query" yaml:"user_query"`
	CurrentStep int             `json:"current_step" yaml:"current_step"`
	Status      Status          `json:"status" yaml:"status"`
	Entries     []exportedEntry `json:"entries" yaml:"entries"`
}

// Export serializes a whole conversation.
func (l *Log) Export(sessionID string, format Format) ([]byte, error) {
	c, err := l.lookup(sessionID)
	if err != nil {
		return nil, err
	}
	doc := exported{
		SessionID:   c.sessionID,
		UserQuery:   c.userQuery,
		CurrentStep: c.CurrentStep(),
		Status:      c.Status(),
		Entries:     []exportedEntry{},
	}
	for _, e := range c.Entries() {
		var in, out any
		if err := json.Unmarshal(e.Input, &in); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(e.Output, &out); err != nil {
			return nil, err
		}
		doc.Entries = append(doc.Entries, exportedEntry{
			Timestamp: e.Timestamp,
			Agent:     e.Agent,
			Action:    e.Action,
			Input:     in,
			Output:    out,
			Metadata:  e.Metadata,
		})
	}

	switch format {
	case FormatJSON, "":
		return json.MarshalIndent(doc, "", "  ")
	case FormatYAML:
		return yaml.Marshal(doc)
	default:
		return nil, fmt.Errorf("unsupported export format %q", format)
	}
}
