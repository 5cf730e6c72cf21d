package auth

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// SessionState is an immutable snapshot of the session store.
// Profile is only non-nil when Identity is non-nil.
type SessionState struct {
	Identity *Identity `json:"identity"`
	Profile  *Profile  `json:"profile"`
	Loading  bool      `json:"loading"`
	// Version increases on every mutation
	Version uint64 `json:"version"`
}

// UserID returns the current identity id, or an empty string
func (s SessionState) UserID() string {
	if s.Identity == nil {
		return ""
	}
	return s.Identity.ID
}

// Authenticated reports whether someone is signed in
func (s SessionState) Authenticated() bool {
	return s.Identity != nil
}

// Role returns the resolved profile role, or an empty string
func (s SessionState) Role() UserRole {
	if s.Profile == nil {
		return ""
	}
	return s.Profile.Role
}

// String is meant for debug logs
func (s SessionState) String() string {
	return fmt.Sprintf("user=%s role=%s loading=%t version=%d", s.UserID(), s.Role(), s.Loading, s.Version)
}

// StateListener observes session store mutations
type StateListener func(SessionState)

// SessionManagerOption customizes a SessionManager
type SessionManagerOption func(*SessionManager)

// WithSessionDebouncerOptions forwards options to the internal Debouncer
func WithSessionDebouncerOptions(opts ...DebouncerOption) SessionManagerOption {
	return func(m *SessionManager) {
		m.debouncerOptions = append(m.debouncerOptions, opts...)
	}
}

// WithSessionLogger sets the logger
func WithSessionLogger(logger Logger) SessionManagerOption {
	return func(m *SessionManager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithSessionActivitySink sets the ActivitySink used for resolution events
func WithSessionActivitySink(sink ActivitySink) SessionManagerOption {
	return func(m *SessionManager) {
		m.activitySink = normalizeActivitySink(sink)
	}
}

// WithSessionStartTimeout bounds the initial session read in Start
func WithSessionStartTimeout(d time.Duration) SessionManagerOption {
	return func(m *SessionManager) {
		if d > 0 {
			m.startTimeout = d
		}
	}
}

// Resolver resolves the profile for a user id; *ProfileResolver implements it
type Resolver interface {
	Resolve(ctx context.Context, userID string) *Profile
}

// SessionManager is the session store: current identity, resolved profile
// and the loading flag. All mutation goes through OnIdentityEvent and
// OnProfileResolved.
type SessionManager struct {
	provider     IdentityProvider
	resolver     Resolver
	debouncer    *Debouncer
	logger       Logger
	activitySink ActivitySink
	startTimeout time.Duration

	debouncerOptions []DebouncerOption

	mu        sync.Mutex
	identity  *Identity
	profile   *Profile
	loading   bool
	version   uint64
	listeners map[uint64]StateListener
	nextID    uint64

	// commits are queued in version order and drained by one caller at a
	// time, so nested or concurrent commits never overtake earlier ones
	deliverMu  sync.Mutex
	pending    []delivery
	delivering bool

	unsubscribe Unsubscribe
	started     bool
	closed      bool
}

// NewSessionManager builds a session store over provider and resolver.
// The store starts in the loading state.
func NewSessionManager(provider IdentityProvider, resolver Resolver, opts ...SessionManagerOption) *SessionManager {
	m := &SessionManager{
		provider:     provider,
		resolver:     resolver,
		logger:       defLogger{},
		activitySink: noopActivitySink{},
		startTimeout: 10 * time.Second,
		loading:      true,
		listeners:    map[uint64]StateListener{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}

	debouncerOpts := append([]DebouncerOption{WithDebounceLogger(m.logger)}, m.debouncerOptions...)
	m.debouncer = NewDebouncer(m.resolve, debouncerOpts...)

	return m
}

// Start reads the current provider session once and subscribes to change
// notifications. A failing read is logged and treated as signed out.
func (m *SessionManager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return fmt.Errorf("session manager is closed")
	}
	if m.started {
		m.mu.Unlock()
		return nil
	}
	m.started = true
	m.mu.Unlock()

	readCtx, cancel := context.WithTimeout(ctx, m.startTimeout)
	session, err := m.provider.GetCurrentSession(readCtx)
	cancel()
	if err != nil {
		m.logger.Error("failed to read current session", "error", err)
		session = nil
	}

	m.OnIdentityEvent(session.Identity())

	unsubscribe := m.provider.Subscribe(func(event AuthEvent) {
		m.logger.Debug("identity provider event", "type", event.Type, "user_id", userIDOf(event.Identity()))
		m.OnIdentityEvent(event.Identity())
	})

	m.mu.Lock()
	m.unsubscribe = unsubscribe
	m.mu.Unlock()

	return nil
}

// Close releases the provider subscription and cancels pending resolutions
func (m *SessionManager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	unsubscribe := m.unsubscribe
	m.unsubscribe = nil
	m.listeners = map[uint64]StateListener{}
	m.deliverMu.Lock()
	m.pending = nil
	m.deliverMu.Unlock()
	m.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	m.debouncer.Close()
	return nil
}

// Snapshot returns the current state
func (m *SessionManager) Snapshot() SessionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

// Subscribe registers a listener for every subsequent mutation
func (m *SessionManager) Subscribe(listener StateListener) Unsubscribe {
	if listener == nil {
		return func() {}
	}

	m.mu.Lock()
	m.nextID++
	id := m.nextID
	m.listeners[id] = listener
	m.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.listeners, id)
			m.mu.Unlock()
		})
	}
}

// OnIdentityEvent applies an identity change. A nil identity clears identity
// and profile and stops loading in a single mutation. A non-nil identity is
// stored and a profile resolution is scheduled before the lock is released.
func (m *SessionManager) OnIdentityEvent(identity *Identity) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}

	if identity == nil {
		m.identity = nil
		m.profile = nil
		m.loading = false
		m.debouncer.Cancel()
	} else {
		previous := m.identity
		m.identity = identity.Clone()
		if previous == nil || previous.ID != identity.ID {
			m.profile = nil
			m.loading = true
		}
		m.debouncer.Schedule(identity.ID)
	}

	m.commitLocked()
	m.mu.Unlock()

	m.drain()
}

// OnProfileResolved applies a resolution result for userID. Results for a
// user that is no longer the current identity are dropped.
func (m *SessionManager) OnProfileResolved(userID string, profile *Profile) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}

	if m.identity == nil || m.identity.ID != userID {
		current := m.identity
		unresolved := current != nil && m.loading
		if unresolved {
			// the gate may have dropped the schedule for the current identity
			m.debouncer.Schedule(current.ID)
		}
		m.mu.Unlock()

		m.logger.Debug("dropping stale profile resolution", "user_id", userID, "current_user_id", userIDOf(current))
		recordActivity(context.Background(), m.activitySink, m.logger, ActivityEvent{
			EventType: ActivityEventProfileStale,
			UserID:    userID,
			Metadata: map[string]any{
				"current_user_id": userIDOf(current),
				"rescheduled":     unresolved,
			},
		})
		return
	}

	if profile != nil && profile.ID != "" && profile.ID != userID {
		m.mu.Unlock()
		m.logger.Warn("resolved profile does not belong to user", "user_id", userID, "profile_id", profile.ID)
		return
	}

	m.profile = profile.Clone()
	m.loading = false
	m.commitLocked()
	m.mu.Unlock()

	m.drain()
}

func (m *SessionManager) resolve(ctx context.Context, userID string) {
	profile := m.resolver.Resolve(ctx, userID)
	if ctx.Err() != nil {
		return
	}

	if profile != nil {
		recordActivity(ctx, m.activitySink, m.logger, ActivityEvent{
			EventType: ActivityEventProfileResolved,
			UserID:    userID,
			Metadata: map[string]any{
				"role":     profile.Role,
				"fallback": profile.Fallback,
			},
		})
	}

	m.OnProfileResolved(userID, profile)
}

type delivery struct {
	state     SessionState
	listeners []StateListener
}

// commitLocked bumps the version and queues the snapshot for delivery.
// Callers hold m.mu and call drain after releasing it.
func (m *SessionManager) commitLocked() {
	m.version++
	listeners := make([]StateListener, 0, len(m.listeners))
	for id := uint64(1); id <= m.nextID; id++ {
		if l, ok := m.listeners[id]; ok {
			listeners = append(listeners, l)
		}
	}

	m.deliverMu.Lock()
	m.pending = append(m.pending, delivery{state: m.snapshotLocked(), listeners: listeners})
	m.deliverMu.Unlock()
}

func (m *SessionManager) snapshotLocked() SessionState {
	return SessionState{
		Identity: m.identity.Clone(),
		Profile:  m.profile.Clone(),
		Loading:  m.loading,
		Version:  m.version,
	}
}

// drain delivers queued snapshots in commit order. When another call is
// already draining, including a listener that mutated the store, it returns
// and the active drainer delivers the new snapshot after the current one.
func (m *SessionManager) drain() {
	m.deliverMu.Lock()
	if m.delivering {
		m.deliverMu.Unlock()
		return
	}
	m.delivering = true
	m.deliverMu.Unlock()

	finished := false
	defer func() {
		// a panicking listener must not wedge later deliveries
		if !finished {
			m.deliverMu.Lock()
			m.delivering = false
			m.deliverMu.Unlock()
		}
	}()

	for {
		m.deliverMu.Lock()
		if len(m.pending) == 0 {
			m.delivering = false
			finished = true
			m.deliverMu.Unlock()
			return
		}
		next := m.pending[0]
		m.pending = m.pending[1:]
		m.deliverMu.Unlock()

		for _, l := range next.listeners {
			l(next.state)
		}
	}
}

func userIDOf(identity *Identity) string {
	if identity == nil {
		return ""
	}
	return identity.ID
}
