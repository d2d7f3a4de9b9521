package observability

import (
	"sync"
	"time"
)

// Phase is the pipeline stage the process is currently in.
type Phase string

const (
	PhaseIdle        Phase = "IDLE"
	PhasePlanning    Phase = "PLANNING"
	PhaseExecuting   Phase = "EXECUTING"
	PhaseSummarizing Phase = "SUMMARIZING"
)

type SystemStatus struct {
	mu            sync.RWMutex
	Phase         Phase
	ActiveSession string
	LastHeartbeat time.Time
}

// Snapshot is a copy of SystemStatus safe to hand out.
type Snapshot struct {
	Phase         Phase     `json:"phase"`
	ActiveSession string    `json:"active_session,omitempty"`
	LastHeartbeat time.Time `json:"last_heartbeat"`
}

var globalStatus = &SystemStatus{
	Phase:         PhaseIdle,
	LastHeartbeat: time.Now(),
}

// SetStatus updates the global system status.
func SetStatus(phase Phase, session string) {
	globalStatus.mu.Lock()
	defer globalStatus.mu.Unlock()
	globalStatus.Phase = phase
	globalStatus.ActiveSession = session
}

// GetStatus retrieves a copy of the global system status.
func GetStatus() Snapshot {
	globalStatus.mu.RLock()
	defer globalStatus.mu.RUnlock()
	return Snapshot{
		Phase:         globalStatus.Phase,
		ActiveSession: globalStatus.ActiveSession,
		LastHeartbeat: globalStatus.LastHeartbeat,
	}
}

// Heartbeat updates the last heartbeat time.
func Heartbeat() {
	globalStatus.mu.Lock()
	defer globalStatus.mu.Unlock()
	globalStatus.LastHeartbeat = time.Now()
}

// Healthy reports whether a heartbeat was seen within maxAge.
func Healthy(maxAge time.Duration) bool {
	return time.Since(GetStatus().LastHeartbeat) < maxAge
}
