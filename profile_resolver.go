package auth

import (
	"context"
)

// ProfileResolver reads profiles from the store and falls back to a profile
// synthesized from the identity when the store can not answer.
type ProfileResolver struct {
	store        ProfileStore
	identities   IdentitySource
	logger       Logger
	activitySink ActivitySink
}

// NewProfileResolver returns a resolver over store. identities is read only on
// the fallback path.
func NewProfileResolver(store ProfileStore, identities IdentitySource) *ProfileResolver {
	return &ProfileResolver{
		store:        store,
		identities:   identities,
		logger:       defLogger{},
		activitySink: noopActivitySink{},
	}
}

func (r *ProfileResolver) WithLogger(logger Logger) *ProfileResolver {
	r.logger = normalizeLogger(logger)
	return r
}

// WithActivitySink configures an ActivitySink for fallback events.
func (r *ProfileResolver) WithActivitySink(sink ActivitySink) *ProfileResolver {
	r.activitySink = normalizeActivitySink(sink)
	return r
}

// Resolve never fails. It returns the stored profile, a fallback profile when
// the store fails and an identity for userID exists, or nil otherwise.
func (r *ProfileResolver) Resolve(ctx context.Context, userID string) *Profile {
	if userID == "" {
		return nil
	}

	var err error
	if r.store != nil {
		var profile *Profile
		profile, err = r.store.Get(ctx, userID)
		if err == nil && profile != nil {
			if profile.Role == "" {
				profile.Role = DefaultRole
			}
			return profile
		}
		if err == nil {
			err = ErrProfileNotFound
		}
	} else {
		err = ErrProfileNotFound
	}

	fetchErr := ProfileFetchError(err, userID)
	r.logger.Warn("profile fetch failed, using fallback profile", "user_id", userID, "error", fetchErr)

	identity := r.currentIdentity(ctx)
	if identity == nil || identity.ID != userID {
		r.logger.Info("no identity available for fallback profile", "user_id", userID)
		return nil
	}

	recordActivity(ctx, r.activitySink, r.logger, ActivityEvent{
		EventType: ActivityEventProfileFallback,
		UserID:    userID,
		Metadata: map[string]any{
			"error":      fetchErr.Error(),
			"error_code": ErrorCode(err),
		},
	})

	return FallbackProfile(identity)
}

func (r *ProfileResolver) currentIdentity(ctx context.Context) *Identity {
	if r.identities == nil {
		return nil
	}

	session, err := r.identities.GetCurrentSession(ctx)
	if err != nil {
		r.logger.Error("unable to read identity for fallback profile", "error", err)
		return nil
	}
	return session.Identity()
}
