package auth

import (
	"context"
	"time"
)

// DefaultProvisionWait is how long sign up waits for the provisioning
// trigger before checking for the profile row.
const DefaultProvisionWait = time.Second

// ProvisionResult reports what phase two of sign up did
type ProvisionResult string

const (
	ProvisionExisting ProvisionResult = "existing"
	ProvisionCreated  ProvisionResult = "created"
	ProvisionFailed   ProvisionResult = "failed"
	ProvisionSkipped  ProvisionResult = "skipped"
)

// Provisioner confirms or creates the profile of a freshly created identity.
// It is best effort: failures are logged and recorded, never returned.
type Provisioner struct {
	store        ProfileStore
	wait         time.Duration
	sleep        func(ctx context.Context, d time.Duration) error
	logger       Logger
	activitySink ActivitySink
}

// NewProvisioner returns a Provisioner writing to store
func NewProvisioner(store ProfileStore) *Provisioner {
	return &Provisioner{
		store:        store,
		wait:         DefaultProvisionWait,
		sleep:        sleepContext,
		logger:       defLogger{},
		activitySink: noopActivitySink{},
	}
}

func (p *Provisioner) WithLogger(logger Logger) *Provisioner {
	p.logger = normalizeLogger(logger)
	return p
}

// WithActivitySink configures an ActivitySink for provisioning events.
func (p *Provisioner) WithActivitySink(sink ActivitySink) *Provisioner {
	p.activitySink = normalizeActivitySink(sink)
	return p
}

// WithWait overrides DefaultProvisionWait. Zero disables the wait.
func (p *Provisioner) WithWait(d time.Duration) *Provisioner {
	if d >= 0 {
		p.wait = d
	}
	return p
}

// Ensure waits for the provisioning trigger, then checks the store and
// creates the profile from identity metadata when it is still missing.
func (p *Provisioner) Ensure(ctx context.Context, identity *Identity) ProvisionResult {
	if identity == nil || identity.ID == "" || p.store == nil {
		return ProvisionSkipped
	}

	if p.wait > 0 {
		if err := p.sleep(ctx, p.wait); err != nil {
			p.fail(ctx, identity, err)
			return ProvisionFailed
		}
	}

	existing, err := p.store.Get(ctx, identity.ID)
	if err == nil && existing != nil {
		p.logger.Debug("profile provisioned by trigger", "user_id", identity.ID)
		return ProvisionExisting
	}

	if err != nil && !IsProfileNotFound(err) {
		// access denied or transport trouble: still try to create, the
		// write path may be allowed where the read was not
		p.logger.Warn("profile check failed during provisioning", "user_id", identity.ID, "error", err)
	}

	profile := ProvisionedProfile(identity)
	if err := p.store.Upsert(ctx, profile); err != nil {
		p.fail(ctx, identity, err)
		return ProvisionFailed
	}

	p.logger.Info("profile created after provisioning race", "user_id", identity.ID)
	recordActivity(ctx, p.activitySink, p.logger, ActivityEvent{
		EventType: ActivityEventProvisioned,
		UserID:    identity.ID,
		Metadata: map[string]any{
			"role": profile.Role,
		},
	})

	return ProvisionCreated
}

func (p *Provisioner) fail(ctx context.Context, identity *Identity, err error) {
	provErr := ProvisioningError(err, identity.ID)
	p.logger.Error("profile provisioning failed", "user_id", identity.ID, "error", provErr)
	recordActivity(ctx, p.activitySink, p.logger, ActivityEvent{
		EventType: ActivityEventProvisioningFailure,
		UserID:    identity.ID,
		Metadata: map[string]any{
			"error": provErr.Error(),
		},
	})
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
