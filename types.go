package auth

import (
	"context"
	"fmt"
)

// Logger is satisfied by glog loggers and by the printf fallback below
type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// Unsubscribe releases a listener registration. Calling it more than once is safe.
type Unsubscribe func()

// IdentityProvider wraps the external authentication service.
type IdentityProvider interface {
	IdentitySource
	// Subscribe registers a listener invoked once per authentication event.
	// Implementations deliver events in emission order.
	Subscribe(listener func(AuthEvent)) Unsubscribe
	SignIn(ctx context.Context, email, password string) (*ProviderSession, error)
	SignUp(ctx context.Context, email, password string, metadata map[string]any) (*ProviderSession, error)
	SignOut(ctx context.Context) error
	ResetPassword(ctx context.Context, email string) (string, error)
}

// IdentitySource returns the provider's current session, or nil when nobody
// is signed in.
type IdentitySource interface {
	GetCurrentSession(ctx context.Context) (*ProviderSession, error)
}

// ProfileStore is the keyed profile record store
type ProfileStore interface {
	Get(ctx context.Context, id string) (*Profile, error)
	Upsert(ctx context.Context, profile *Profile) error
}

// ProfileStoreFuncs adapts plain functions to ProfileStore, mostly for tests
// and for wrapping stores with extra behavior.
type ProfileStoreFuncs struct {
	GetFunc    func(ctx context.Context, id string) (*Profile, error)
	UpsertFunc func(ctx context.Context, profile *Profile) error
}

func (f ProfileStoreFuncs) Get(ctx context.Context, id string) (*Profile, error) {
	if f.GetFunc == nil {
		return nil, ErrProfileNotFound
	}
	return f.GetFunc(ctx, id)
}

func (f ProfileStoreFuncs) Upsert(ctx context.Context, profile *Profile) error {
	if f.UpsertFunc == nil {
		return nil
	}
	return f.UpsertFunc(ctx, profile)
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] SESSION "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] SESSION "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] SESSION "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] SESSION "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// NoopLogger discards everything. Useful in tests.
func NoopLogger() Logger {
	return noopLogger{}
}

func normalizeLogger(l Logger) Logger {
	if l == nil {
		return defLogger{}
	}
	return l
}
