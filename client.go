package auth

import (
	"context"
	"strings"
)

// Client is the authentication surface used by the presentation layer. It
// delegates to the identity provider and runs profile provisioning after
// sign up. Errors keep their text code; UserMessage turns them into the
// inline message shown to the user.
type Client struct {
	provider     IdentityProvider
	provisioner  *Provisioner
	logger       Logger
	activitySink ActivitySink
}

// NewClient returns a Client. provisioner may be nil to skip phase two of sign up.
func NewClient(provider IdentityProvider, provisioner *Provisioner) *Client {
	return &Client{
		provider:     provider,
		provisioner:  provisioner,
		logger:       defLogger{},
		activitySink: noopActivitySink{},
	}
}

func (c *Client) WithLogger(logger Logger) *Client {
	c.logger = normalizeLogger(logger)
	return c
}

// WithActivitySink configures an ActivitySink for auth events.
func (c *Client) WithActivitySink(sink ActivitySink) *Client {
	c.activitySink = normalizeActivitySink(sink)
	return c
}

// SignIn authenticates with email and password
func (c *Client) SignIn(ctx context.Context, email, password string) (*ProviderSession, error) {
	email = normalizeEmail(email)

	session, err := c.provider.SignIn(ctx, email, password)
	if err != nil {
		c.logger.Error("sign in failed", "email", email, "error", err)
		c.emit(ctx, ActivityEventSignInFailure, "", map[string]any{
			"email":      email,
			"error_code": ErrorCode(err),
		})
		return nil, err
	}

	c.emit(ctx, ActivityEventSignInSuccess, userIDOf(session.Identity()), map[string]any{
		"email": email,
	})
	return session, nil
}

// SignUp runs the two phase registration: the identity is created by the
// provider (phase one, errors surfaced) and then its profile is confirmed or
// created (phase two, best effort). A phase two failure never undoes phase one.
func (c *Client) SignUp(ctx context.Context, email, password string, metadata map[string]any) (*ProviderSession, error) {
	email = normalizeEmail(email)

	session, err := c.provider.SignUp(ctx, email, password, metadata)
	if err != nil {
		c.logger.Error("sign up failed", "email", email, "error", err)
		c.emit(ctx, ActivityEventSignUpFailure, "", map[string]any{
			"email":      email,
			"error_code": ErrorCode(err),
		})
		return nil, err
	}

	identity := session.Identity()
	c.emit(ctx, ActivityEventSignUpSuccess, userIDOf(identity), map[string]any{
		"email": email,
	})

	if c.provisioner != nil {
		result := c.provisioner.Ensure(ctx, identity)
		c.logger.Debug("sign up provisioning finished", "user_id", userIDOf(identity), "result", result)
	}

	return session, nil
}

// SignOut ends the provider session. The provider notifies subscribers with
// a nil identity.
func (c *Client) SignOut(ctx context.Context) error {
	var userID string
	if current, err := c.provider.GetCurrentSession(ctx); err == nil {
		userID = userIDOf(current.Identity())
	}

	if err := c.provider.SignOut(ctx); err != nil {
		c.logger.Error("sign out failed", "error", err)
		return err
	}

	c.emit(ctx, ActivityEventSignOut, userID, nil)
	return nil
}

// ResetPassword asks the provider to send reset instructions
func (c *Client) ResetPassword(ctx context.Context, email string) (string, error) {
	email = normalizeEmail(email)

	message, err := c.provider.ResetPassword(ctx, email)
	if err != nil {
		c.logger.Error("password reset failed", "email", email, "error", err)
		return "", err
	}

	c.emit(ctx, ActivityEventPasswordResetRequest, "", map[string]any{
		"email": email,
	})
	return message, nil
}

// CurrentSession returns the provider session, nil when signed out
func (c *Client) CurrentSession(ctx context.Context) (*ProviderSession, error) {
	return c.provider.GetCurrentSession(ctx)
}

func (c *Client) emit(ctx context.Context, eventType ActivityEventType, userID string, metadata map[string]any) {
	recordActivity(ctx, c.activitySink, c.logger, ActivityEvent{
		EventType: eventType,
		UserID:    userID,
		Metadata:  metadata,
	})
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
