package activitymap_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	auth "github.com/goliatone/go-dashboard-auth"
	"github.com/goliatone/go-dashboard-auth/activitymap"
)

func TestNormalizeAuthEvent(t *testing.T) {
	t.Parallel()

	ts := time.Date(2026, 1, 10, 9, 30, 0, 0, time.UTC)
	event := auth.ActivityEvent{
		EventType: auth.ActivityEventSignInFailure,
		Actor:     auth.ActorRef{ID: "user-100", Type: "user"},
		UserID:    "user-100",
		Metadata: map[string]any{
			"error_code": auth.TextCodeInvalidCredentials,
		},
		OccurredAt: ts,
	}

	out := activitymap.Normalize(event)

	assert.Equal(t, "user-100", out.ActorID)
	assert.Equal(t, string(auth.ActivityEventSignInFailure), out.Verb)
	assert.Equal(t, "user", out.ObjectType)
	assert.Equal(t, "user-100", out.ObjectID)
	assert.Equal(t, "auth", out.Channel)
	assert.True(t, out.OccurredAt.Equal(ts))
	assert.Equal(t, auth.TextCodeInvalidCredentials, out.Metadata[activitymap.MetadataKeyErrorCode])
	assert.Equal(t, "user", out.Metadata[activitymap.MetadataKeyActorType])

	assert.Len(t, event.Metadata, 1, "source metadata must stay unchanged")
}

func TestNormalizeProfileEventFamily(t *testing.T) {
	t.Parallel()

	out := activitymap.Normalize(auth.ActivityEvent{
		EventType: auth.ActivityEventProfileFallback,
		UserID:    "user-7",
	})

	assert.Equal(t, "profile", out.Channel)
	assert.Equal(t, "profile", out.ObjectType)
	assert.Equal(t, "user-7", out.ObjectID)
	assert.True(t, out.Failure)
	assert.False(t, out.OccurredAt.IsZero())
}

func TestNormalizeKeepsExistingActorType(t *testing.T) {
	t.Parallel()

	out := activitymap.Normalize(auth.ActivityEvent{
		EventType: auth.ActivityEventPasswordResetRequest,
		Actor:     auth.ActorRef{Type: "user"},
		UserID:    "user-200",
		Metadata: map[string]any{
			activitymap.MetadataKeyActorType: "existing",
		},
	})

	assert.Equal(t, "auth", out.Channel)
	assert.False(t, out.Failure)
	assert.Equal(t, "existing", out.Metadata[activitymap.MetadataKeyActorType])
}

func TestNormalizeActorFallbackChain(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		event  auth.ActivityEvent
		expect string
	}{
		{
			name:   "uses actor id when present",
			event:  auth.ActivityEvent{Actor: auth.ActorRef{ID: "actor-1"}, UserID: "user-1"},
			expect: "actor-1",
		},
		{
			name:   "uses user id when actor id missing",
			event:  auth.ActivityEvent{UserID: "user-2"},
			expect: "user-2",
		},
		{
			name:   "uses system when actor and user missing",
			event:  auth.ActivityEvent{},
			expect: "system",
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			out := activitymap.Normalize(tc.event)
			assert.Equal(t, tc.expect, out.ActorID)
			assert.Nil(t, out.Metadata)
		})
	}
}

type captureLogger struct {
	mu    sync.Mutex
	lines []string
}

func (c *captureLogger) add(level, msg string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lines = append(c.lines, level+" "+msg+" "+fmt.Sprint(args...))
}

func (c *captureLogger) Debug(msg string, args ...any) { c.add("DBG", msg, args...) }
func (c *captureLogger) Info(msg string, args ...any)  { c.add("INF", msg, args...) }
func (c *captureLogger) Warn(msg string, args ...any)  { c.add("WRN", msg, args...) }
func (c *captureLogger) Error(msg string, args ...any) { c.add("ERR", msg, args...) }

func TestLogSinkLevels(t *testing.T) {
	logger := &captureLogger{}
	sink := activitymap.NewLogSink(logger)
	ctx := context.Background()

	require.NoError(t, sink.Record(ctx, auth.ActivityEvent{EventType: auth.ActivityEventSignInSuccess, UserID: "u1"}))
	require.NoError(t, sink.Record(ctx, auth.ActivityEvent{EventType: auth.ActivityEventProfileFallback, UserID: "u1"}))

	require.Len(t, logger.lines, 2)
	assert.Contains(t, logger.lines[0], "INF activity")
	assert.Contains(t, logger.lines[0], "auth.signin.success")
	assert.Contains(t, logger.lines[1], "WRN activity")
	assert.Contains(t, logger.lines[1], "profile.fallback")
}
