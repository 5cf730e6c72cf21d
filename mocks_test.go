package auth

import (
	"context"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"
)

// MockIdentityProvider implements IdentityProvider
type MockIdentityProvider struct {
	mock.Mock
}

func (m *MockIdentityProvider) GetCurrentSession(ctx context.Context) (*ProviderSession, error) {
	args := m.Called(ctx)
	session, _ := args.Get(0).(*ProviderSession)
	return session, args.Error(1)
}

func (m *MockIdentityProvider) Subscribe(listener func(AuthEvent)) Unsubscribe {
	args := m.Called(listener)
	if fn, ok := args.Get(0).(Unsubscribe); ok {
		return fn
	}
	return func() {}
}

func (m *MockIdentityProvider) SignIn(ctx context.Context, email, password string) (*ProviderSession, error) {
	args := m.Called(ctx, email, password)
	session, _ := args.Get(0).(*ProviderSession)
	return session, args.Error(1)
}

func (m *MockIdentityProvider) SignUp(ctx context.Context, email, password string, metadata map[string]any) (*ProviderSession, error) {
	args := m.Called(ctx, email, password, metadata)
	session, _ := args.Get(0).(*ProviderSession)
	return session, args.Error(1)
}

func (m *MockIdentityProvider) SignOut(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockIdentityProvider) ResetPassword(ctx context.Context, email string) (string, error) {
	args := m.Called(ctx, email)
	return args.String(0), args.Error(1)
}

// MockProfileStore implements ProfileStore
type MockProfileStore struct {
	mock.Mock
}

func (m *MockProfileStore) Get(ctx context.Context, id string) (*Profile, error) {
	args := m.Called(ctx, id)
	profile, _ := args.Get(0).(*Profile)
	return profile, args.Error(1)
}

func (m *MockProfileStore) Upsert(ctx context.Context, profile *Profile) error {
	return m.Called(ctx, profile).Error(0)
}

// fakeProvider is an in-memory IdentityProvider that lets tests emit events
type fakeProvider struct {
	mu        sync.Mutex
	current   *ProviderSession
	readErr   error
	listeners map[int]func(AuthEvent)
	nextID    int
}

func newFakeProvider(current *ProviderSession) *fakeProvider {
	return &fakeProvider{current: current, listeners: map[int]func(AuthEvent){}}
}

func (f *fakeProvider) GetCurrentSession(context.Context) (*ProviderSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.readErr != nil {
		return nil, f.readErr
	}
	return f.current, nil
}

func (f *fakeProvider) Subscribe(listener func(AuthEvent)) Unsubscribe {
	f.mu.Lock()
	f.nextID++
	id := f.nextID
	f.listeners[id] = listener
	current := f.current
	f.mu.Unlock()

	listener(AuthEvent{Type: AuthEventInitialSession, Session: current})

	return func() {
		f.mu.Lock()
		delete(f.listeners, id)
		f.mu.Unlock()
	}
}

func (f *fakeProvider) listenerCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.listeners)
}

// emit sets the current session and notifies every listener
func (f *fakeProvider) emit(eventType AuthEventType, session *ProviderSession) {
	f.mu.Lock()
	f.current = session
	listeners := make([]func(AuthEvent), 0, len(f.listeners))
	for _, l := range f.listeners {
		listeners = append(listeners, l)
	}
	f.mu.Unlock()

	for _, l := range listeners {
		l(AuthEvent{Type: eventType, Session: session})
	}
}

func (f *fakeProvider) SignIn(context.Context, string, string) (*ProviderSession, error) {
	return nil, ErrAuthUnknown
}

func (f *fakeProvider) SignUp(context.Context, string, string, map[string]any) (*ProviderSession, error) {
	return nil, ErrAuthUnknown
}

func (f *fakeProvider) SignOut(context.Context) error {
	f.emit(AuthEventSignedOut, nil)
	return nil
}

func (f *fakeProvider) ResetPassword(context.Context, string) (string, error) {
	return "", nil
}

func sessionFor(id, email string, metadata map[string]any) *ProviderSession {
	return &ProviderSession{User: &Identity{ID: id, Email: email, Metadata: metadata}}
}

// manualTimers is a TimerFunc whose timers only fire when a test says so
type manualTimers struct {
	mu     sync.Mutex
	timers []*manualTimer
}

type manualTimer struct {
	delay   time.Duration
	f       func()
	stopped bool
	fired   bool
}

func (t *manualTimer) Stop() bool {
	active := !t.stopped && !t.fired
	t.stopped = true
	return active
}

func (m *manualTimers) New(d time.Duration, f func()) Timer {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := &manualTimer{delay: d, f: f}
	m.timers = append(m.timers, t)
	return t
}

func (m *manualTimers) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.timers)
}

// Fire runs timer i even if it was stopped, like a time.AfterFunc callback
// that was already on its way when Stop was called.
func (m *manualTimers) Fire(i int) {
	m.mu.Lock()
	t := m.timers[i]
	t.fired = true
	m.mu.Unlock()
	t.f()
}

// FireLast runs the most recent timer when it is still active
func (m *manualTimers) FireLast() bool {
	m.mu.Lock()
	if len(m.timers) == 0 {
		m.mu.Unlock()
		return false
	}
	t := m.timers[len(m.timers)-1]
	if t.stopped || t.fired {
		m.mu.Unlock()
		return false
	}
	t.fired = true
	m.mu.Unlock()
	t.f()
	return true
}

func (m *manualTimers) Delay(i int) time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.timers[i].delay
}

type resolverFunc func(ctx context.Context, userID string) *Profile

func (f resolverFunc) Resolve(ctx context.Context, userID string) *Profile {
	return f(ctx, userID)
}

type activityRecorder struct {
	mu     sync.Mutex
	events []ActivityEvent
}

func (r *activityRecorder) Record(_ context.Context, event ActivityEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *activityRecorder) types() []ActivityEventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ActivityEventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.EventType)
	}
	return out
}

func (r *activityRecorder) last() ActivityEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.events[len(r.events)-1]
}
