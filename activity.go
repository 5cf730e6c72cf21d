package auth

import (
	"context"
	"time"
)

// ActivityEventType enumerates supported activity categories.
type ActivityEventType string

const (
	ActivityEventSignInSuccess        ActivityEventType = "auth.signin.success"
	ActivityEventSignInFailure        ActivityEventType = "auth.signin.failure"
	ActivityEventSignUpSuccess        ActivityEventType = "auth.signup.success"
	ActivityEventSignUpFailure        ActivityEventType = "auth.signup.failure"
	ActivityEventSignOut              ActivityEventType = "auth.signout"
	ActivityEventPasswordResetRequest ActivityEventType = "auth.password.reset_requested"
	ActivityEventProfileResolved      ActivityEventType = "profile.resolved"
	ActivityEventProfileFallback      ActivityEventType = "profile.fallback"
	ActivityEventProfileStale         ActivityEventType = "profile.stale_dropped"
	ActivityEventProvisioned          ActivityEventType = "profile.provisioned"
	ActivityEventProvisioningFailure  ActivityEventType = "profile.provisioning_failed"
)

// ActorRef identifies who/what triggered an event.
type ActorRef struct {
	ID   string
	Type string
}

// ActivityEvent captures audit-friendly information about an action.
type ActivityEvent struct {
	EventType  ActivityEventType
	Actor      ActorRef
	UserID     string
	Metadata   map[string]any
	OccurredAt time.Time
}

// ActivitySink consumes activity events for auditing/telemetry purposes.
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

// recordActivity is best effort: sink failures are logged and swallowed.
func recordActivity(ctx context.Context, sink ActivitySink, logger Logger, event ActivityEvent) {
	if event.Metadata == nil {
		event.Metadata = map[string]any{}
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}
	if event.Actor.Type == "" {
		event.Actor = actorFor(event.UserID)
	}

	if err := normalizeActivitySink(sink).Record(ctx, event); err != nil {
		normalizeLogger(logger).Warn("activity sink record error", "event", event.EventType, "error", err)
	}
}

func actorFor(userID string) ActorRef {
	if userID == "" {
		return ActorRef{Type: "unknown"}
	}
	return ActorRef{ID: userID, Type: "user"}
}
