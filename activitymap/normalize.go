package activitymap

import (
	"strings"
	"time"

	auth "github.com/goliatone/go-dashboard-auth"
)

const (
	// MetadataKeyActorType stores the actor type derived from auth.ActorRef.Type.
	MetadataKeyActorType = "actor_type"
	// MetadataKeyErrorCode stores the error text code of failure events.
	MetadataKeyErrorCode = "error_code"
)

const systemActor = "system"

// Normalized is a flat audit record for log shippers and storage.
type Normalized struct {
	ActorID    string         `json:"actor_id"`
	Verb       string         `json:"verb"`
	ObjectType string         `json:"object_type,omitempty"`
	ObjectID   string         `json:"object_id,omitempty"`
	Channel    string         `json:"channel,omitempty"`
	Failure    bool           `json:"failure,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// Normalize flattens an auth.ActivityEvent. Profile events (profile.*) are
// filed under the profile channel, everything else under auth. The object is
// always the user the event is about.
func Normalize(event auth.ActivityEvent) Normalized {
	channel, objectType := "auth", "user"
	if strings.HasPrefix(string(event.EventType), "profile.") {
		channel, objectType = "profile", "profile"
	}

	actorID := strings.TrimSpace(event.Actor.ID)
	if actorID == "" {
		actorID = strings.TrimSpace(event.UserID)
	}
	if actorID == "" {
		actorID = systemActor
	}

	occurredAt := event.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}

	metadata := make(map[string]any, len(event.Metadata)+1)
	for key, value := range event.Metadata {
		metadata[key] = value
	}
	if actorType := strings.TrimSpace(event.Actor.Type); actorType != "" {
		if _, exists := metadata[MetadataKeyActorType]; !exists {
			metadata[MetadataKeyActorType] = actorType
		}
	}
	if len(metadata) == 0 {
		metadata = nil
	}

	return Normalized{
		ActorID:    actorID,
		Verb:       string(event.EventType),
		ObjectType: objectType,
		ObjectID:   strings.TrimSpace(event.UserID),
		Channel:    channel,
		Failure:    isFailure(event.EventType),
		Metadata:   metadata,
		OccurredAt: occurredAt,
	}
}

// isFailure marks events that mean a user saw degraded behavior
func isFailure(eventType auth.ActivityEventType) bool {
	switch eventType {
	case auth.ActivityEventSignInFailure,
		auth.ActivityEventSignUpFailure,
		auth.ActivityEventProfileFallback,
		auth.ActivityEventProvisioningFailure:
		return true
	}
	return false
}
