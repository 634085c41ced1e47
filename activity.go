package membership

import (
	"context"
	"time"
)

// ActivityEventType enumerates supported activity categories.
type ActivityEventType string

const (
	ActivityEventUserApproved    ActivityEventType = "user.approved"
	ActivityEventUserSuspended   ActivityEventType = "user.suspended"
	ActivityEventUserReinstated  ActivityEventType = "user.reinstated"
	ActivityEventUserLocked      ActivityEventType = "user.locked"
	ActivityEventPasswordChanged ActivityEventType = "password.changed"
	ActivityEventPasswordReset   ActivityEventType = "password.reset"
	ActivityEventPasswordForgot  ActivityEventType = "password.forgot"
	ActivityEventLoginFailure    ActivityEventType = "login.failure"
)

// ActivityEvent captures audit-friendly information about an action.
type ActivityEvent struct {
	EventType  ActivityEventType
	UserID     int64
	Namespace  string
	Metadata   map[string]any
	OccurredAt time.Time
}

// ActivitySink consumes activity events for auditing/telemetry purposes.
// Sinks run best-effort: errors are logged, never propagated.
type ActivitySink interface {
	Record(ctx context.Context, event ActivityEvent) error
}

// ActivitySinkFunc adapts a function to the ActivitySink interface.
type ActivitySinkFunc func(ctx context.Context, event ActivityEvent) error

// Record implements ActivitySink.
func (f ActivitySinkFunc) Record(ctx context.Context, event ActivityEvent) error {
	if f == nil {
		return nil
	}
	return f(ctx, event)
}

type noopActivitySink struct{}

func (noopActivitySink) Record(context.Context, ActivityEvent) error {
	return nil
}

func normalizeActivitySink(s ActivitySink) ActivitySink {
	if s == nil {
		return noopActivitySink{}
	}
	return s
}
