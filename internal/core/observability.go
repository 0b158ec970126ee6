package core

import (
	"context"
	"time"
)

// Logger is the structured logging surface used by the service. *slog.Logger
// satisfies it.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Clock supplies the current time to the service.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock. A nil ClockFunc reports the system time.
type ClockFunc func() time.Time

// Now returns the current time in UTC.
func (f ClockFunc) Now() time.Time {
	if f == nil {
		return time.Now().UTC()
	}
	return f().UTC()
}

// AuditStatus records whether an audited operation committed.
type AuditStatus string

const (
	AuditStatusSuccess AuditStatus = "success"
	AuditStatusError   AuditStatus = "error"
)

// AuditEntry describes one state-changing service call.
type AuditEntry struct {
	Operation string
	Entity    EntityType
	Action    Action
	EntityID  string
	ActorID   string
	Status    AuditStatus
	Error     string
	Duration  time.Duration
	Timestamp time.Time
}

// AuditRecorder receives audit entries for mutating operations.
type AuditRecorder interface {
	Record(ctx context.Context, entry AuditEntry)
}

// MetricsRecorder observes the outcome and latency of every service operation.
type MetricsRecorder interface {
	Observe(ctx context.Context, operation string, success bool, duration time.Duration)
}

// Tracer starts a span per service operation.
type Tracer interface {
	Start(ctx context.Context, operation string) (context.Context, TraceSpan)
}

// TraceSpan is finished with the operation's error, if any.
type TraceSpan interface {
	End(err error)
}

type noopAuditRecorder struct{}

func (noopAuditRecorder) Record(context.Context, AuditEntry) {}

type noopMetricsRecorder struct{}

func (noopMetricsRecorder) Observe(context.Context, string, bool, time.Duration) {}

type noopTracer struct{}

func (noopTracer) Start(ctx context.Context, _ string) (context.Context, TraceSpan) {
	return ctx, noopSpan{}
}

type noopSpan struct{}

func (noopSpan) End(error) {}

type operationMetadata struct {
	entity EntityType
	action Action
}

var auditedOperations = map[string]operationMetadata{
	"register_person":       {EntityPerson, ActionCreate},
	"change_password":       {EntityPerson, ActionUpdate},
	"create_project":        {EntityProject, ActionCreate},
	"update_project":        {EntityProject, ActionUpdate},
	"toggle_visibility":     {EntityProject, ActionUpdate},
	"delete_project":        {EntityProject, ActionDelete},
	"submit_request":        {EntityHousingRequest, ActionCreate},
	"apply":                 {EntityHousingRequest, ActionCreate},
	"request_withdrawal":    {EntityHousingRequest, ActionUpdate},
	"decide_request":        {EntityHousingRequest, ActionUpdate},
	"book_unit":             {EntityHousingRequest, ActionUpdate},
	"decide_withdrawal":     {EntityHousingRequest, ActionUpdate},
	"register_assignment":   {EntityAssignmentRequest, ActionCreate},
	"set_assignment_status": {EntityAssignmentRequest, ActionUpdate},
	"decide_assignment":     {EntityAssignmentRequest, ActionUpdate},
	"post_enquiry":          {EntityEnquiry, ActionCreate},
	"reply_enquiry":         {EntityEnquiry, ActionUpdate},
	"respond_enquiry":       {EntityEnquiry, ActionUpdate},
	"edit_enquiry":          {EntityEnquiry, ActionUpdate},
	"delete_enquiry":        {EntityEnquiry, ActionDelete},
}

// LoggerAuditRecorder writes audit entries to a Logger at info level, or
// warn level for failures.
type LoggerAuditRecorder struct {
	logger Logger
}

// NewLoggerAuditRecorder wraps logger. A nil logger discards entries.
func NewLoggerAuditRecorder(logger Logger) *LoggerAuditRecorder {
	if logger == nil {
		logger = noopLogger{}
	}
	return &LoggerAuditRecorder{logger: logger}
}

// Record implements AuditRecorder.
func (r *LoggerAuditRecorder) Record(_ context.Context, entry AuditEntry) {
	args := []any{
		"operation", entry.Operation,
		"entity", string(entry.Entity),
		"action", string(entry.Action),
		"entity_id", entry.EntityID,
		"actor_id", entry.ActorID,
		"duration", entry.Duration,
	}
	if entry.Status == AuditStatusError {
		r.logger.Warn("audit", append(args, "error", entry.Error)...)
		return
	}
	r.logger.Info("audit", args...)
}
