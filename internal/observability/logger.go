package observability

import (
	"context"
	"os"
	"time"

	"github.com/rahul/workdesk/pkg/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// EventType defines the category of the log event.
type EventType string

const (
	EventTypePlan    EventType = "plan"
	EventTypeStep    EventType = "step"
	EventTypeLLM     EventType = "llm"
	EventTypeSearch  EventType = "search"
	EventTypeIngest  EventType = "ingest"
	EventTypeSession EventType = "session"
	EventTypePolicy  EventType = "policy_check"
)

// Event represents a structured log entry.
type Event struct {
	Type      EventType `json:"type"`
	SessionID string    `json:"session_id,omitempty"`
	Step      int       `json:"step,omitempty"`
	Data      any       `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

// Logger handles structured logging. LLM events are also appended to a
// rotating JSONL file when one is configured.
type Logger struct {
	base *zap.Logger
	llm  *zap.Logger
}

// NewLogger builds a Logger writing to stderr in the configured format.
func NewLogger(cfg config.LoggerConfig) *Logger {
	return newLogger(cfg, zapcore.Lock(os.Stderr))
}

// NewNopLogger returns a Logger that discards everything.
func NewNopLogger() *Logger {
	return &Logger{base: zap.NewNop(), llm: zap.NewNop()}
}

// NewLoggerFromZap wraps an existing zap logger, mostly for tests.
func NewLoggerFromZap(z *zap.Logger) *Logger {
	return &Logger{base: z, llm: zap.NewNop()}
}

func newLogger(cfg config.LoggerConfig, out zapcore.WriteSyncer) *Logger {
	level := zap.NewAtomicLevel()
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level.SetLevel(zap.InfoLevel)
	}

	cores := []zapcore.Core{zapcore.NewCore(encoder(cfg.Format), out, level)}
	if cfg.LogFile != "" {
		cores = append(cores, zapcore.NewCore(encoder("json"), rotating(cfg, cfg.LogFile), level))
	}
	l := &Logger{
		base: zap.New(zapcore.NewTee(cores...), zap.AddStacktrace(zap.ErrorLevel)),
		llm:  zap.NewNop(),
	}
	if cfg.LLMLogFile != "" {
		l.llm = zap.New(zapcore.NewCore(encoder("json"), rotating(cfg, cfg.LLMLogFile), zap.DebugLevel))
	}
	return l
}

func rotating(cfg config.LoggerConfig, filename string) zapcore.WriteSyncer {
	return zapcore.AddSync(&lumberjack.Logger{
		Filename:   filename,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		Compress:   cfg.Compress,
	})
}

func encoder(format string) zapcore.Encoder {
	ec := zap.NewProductionEncoderConfig()
	ec.EncodeTime = zapcore.ISO8601TimeEncoder
	if format == "json" {
		return zapcore.NewJSONEncoder(ec)
	}
	ec.EncodeLevel = zapcore.CapitalColorLevelEncoder
	return zapcore.NewConsoleEncoder(ec)
}

// Zap exposes the underlying logger for components that log free-form messages.
func (l *Logger) Zap() *zap.Logger {
	return l.base
}

// Sync flushes buffered entries.
func (l *Logger) Sync() error {
	_ = l.llm.Sync()
	return l.base.Sync()
}

// Log emits a structured event.
func (l *Logger) Log(evt Event) {
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now()
	}
	fields := []zap.Field{
		zap.String("type", string(evt.Type)),
		zap.Time("timestamp", evt.Timestamp),
		zap.Any("data", evt.Data),
	}
	if evt.SessionID != "" {
		fields = append(fields, zap.String("session_id", evt.SessionID))
	}
	if evt.Step != 0 {
		fields = append(fields, zap.Int("step", evt.Step))
	}

	if evt.Type == EventTypeLLM {
		l.llm.Info("event", fields...)
		l.base.Debug("event", fields...)
		return
	}
	l.base.Info("event", fields...)
}

// Helper methods for common events

func (l *Logger) LogPlan(sessionID string, success bool, steps int, errMsg string) {
	data := map[string]any{"success": success, "steps": steps}
	if errMsg != "" {
		data["error"] = errMsg
	}
	l.Log(Event{Type: EventTypePlan, SessionID: sessionID, Data: data})
}

func (l *Logger) LogStep(sessionID string, step int, agent, action string, success bool, elapsed time.Duration) {
	l.Log(Event{
		Type:      EventTypeStep,
		SessionID: sessionID,
		Step:      step,
		Data: map[string]any{
			"agent":       agent,
			"action":      action,
			"success":     success,
			"duration_ms": elapsed.Milliseconds(),
		},
	})
}

func (l *Logger) LogLLM(ctx context.Context, model, systemPrompt, prompt, response string, elapsed time.Duration) {
	l.Log(Event{
		Type:      EventTypeLLM,
		SessionID: SessionFrom(ctx),
		Data: map[string]any{
			"model":         model,
			"system_prompt": systemPrompt,
			"prompt":        prompt,
			"response":      response,
			"duration_ms":   elapsed.Milliseconds(),
		},
	})
}

func (l *Logger) LogSearch(ctx context.Context, query string, results int) {
	l.Log(Event{
		Type:      EventTypeSearch,
		SessionID: SessionFrom(ctx),
		Data:      map[string]any{"query": query, "results": results},
	})
}

func (l *Logger) LogIngest(source, kind string, chunks int) {
	l.Log(Event{
		Type: EventTypeIngest,
		Data: map[string]any{"source": source, "kind": kind, "chunks": chunks},
	})
}

func (l *Logger) LogSession(sessionID, status string) {
	l.Log(Event{
		Type:      EventTypeSession,
		SessionID: sessionID,
		Data:      map[string]string{"status": status},
	})
}

func (l *Logger) LogPolicy(sessionID string, step int, action, effect, reason string) {
	l.Log(Event{
		Type:      EventTypePolicy,
		SessionID: sessionID,
		Step:      step,
		Data:      map[string]string{"action": action, "effect": effect, "reason": reason},
	})
}

type sessionKey struct{}

// WithSession tags ctx with the session being processed so downstream events carry it.
func WithSession(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, sessionKey{}, sessionID)
}

// SessionFrom returns the session id stored by WithSession, or "".
func SessionFrom(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(sessionKey{}).(string)
	return id
}
