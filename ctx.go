package auth

import (
	"context"
)

var stateCtxKey = &contextKey{"session_state"}
var decisionCtxKey = &contextKey{"route_decision"}

type contextKey struct {
	name string
}

// WithSessionState stores a session snapshot in the context
func WithSessionState(ctx context.Context, state SessionState) context.Context {
	return context.WithValue(ctx, stateCtxKey, state)
}

// SessionStateFromContext finds the session snapshot in the context
func SessionStateFromContext(ctx context.Context) (SessionState, bool) {
	raw, ok := ctx.Value(stateCtxKey).(SessionState)
	return raw, ok
}

// WithRouteDecision stores the decision computed for the current request
func WithRouteDecision(ctx context.Context, decision RouteDecision) context.Context {
	return context.WithValue(ctx, decisionCtxKey, decision)
}

// RouteDecisionFromContext finds the decision for the current request
func RouteDecisionFromContext(ctx context.Context) (RouteDecision, bool) {
	raw, ok := ctx.Value(decisionCtxKey).(RouteDecision)
	return raw, ok
}

// ProfileFromContext is a shortcut for the resolved profile of the request
func ProfileFromContext(ctx context.Context) (*Profile, bool) {
	state, ok := SessionStateFromContext(ctx)
	if !ok || state.Profile == nil {
		return nil, false
	}
	return state.Profile, true
}
