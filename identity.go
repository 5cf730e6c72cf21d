package auth

import (
	"strings"
	"time"
)

// Identity is the identity provider's record of who is signed in. It is
// replaced wholesale on every change event.
type Identity struct {
	ID       string         `json:"id"`
	Email    string         `json:"email"`
	Metadata map[string]any `json:"user_metadata,omitempty"`
}

// DisplayName returns the best display name found in the provider metadata
func (i *Identity) DisplayName() string {
	if i == nil {
		return ""
	}

	if name := i.metadataString("full_name", "name", "display_name"); name != "" {
		return name
	}

	joined := strings.TrimSpace(i.FirstName() + " " + i.LastName())
	if joined != "" {
		return joined
	}

	if at := strings.Index(i.Email, "@"); at > 0 {
		return i.Email[:at]
	}
	return i.Email
}

// FirstName reads first_name, or the first word of the full name
func (i *Identity) FirstName() string {
	if i == nil {
		return ""
	}
	if first := i.metadataString("first_name", "given_name"); first != "" {
		return first
	}
	first, _ := splitName(i.metadataString("full_name", "name"))
	return first
}

// LastName reads last_name, or the remainder of the full name
func (i *Identity) LastName() string {
	if i == nil {
		return ""
	}
	if last := i.metadataString("last_name", "family_name"); last != "" {
		return last
	}
	_, last := splitName(i.metadataString("full_name", "name"))
	return last
}

// Locale reads the provider locale, if any
func (i *Identity) Locale() string {
	if i == nil {
		return ""
	}
	return i.metadataString("locale")
}

// Clone copies the identity and its metadata map
func (i *Identity) Clone() *Identity {
	if i == nil {
		return nil
	}
	cp := *i
	if i.Metadata != nil {
		cp.Metadata = make(map[string]any, len(i.Metadata))
		for k, v := range i.Metadata {
			cp.Metadata[k] = v
		}
	}
	return &cp
}

func (i *Identity) metadataString(keys ...string) string {
	if i == nil || i.Metadata == nil {
		return ""
	}
	for _, key := range keys {
		if raw, ok := i.Metadata[key]; ok {
			if s, ok := raw.(string); ok && strings.TrimSpace(s) != "" {
				return strings.TrimSpace(s)
			}
		}
	}
	return ""
}

func splitName(name string) (string, string) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ""
	}

	parts := strings.SplitN(name, " ", 2)
	if len(parts) == 1 {
		return parts[0], ""
	}
	return parts[0], strings.TrimSpace(parts[1])
}

// ProviderSession is the session issued by the identity provider
type ProviderSession struct {
	User         *Identity `json:"user"`
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	TokenType    string    `json:"token_type,omitempty"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// Identity returns the session user, nil safe
func (s *ProviderSession) Identity() *Identity {
	if s == nil {
		return nil
	}
	return s.User
}

// AuthEventType enumerates provider change notifications
type AuthEventType string

const (
	AuthEventInitialSession AuthEventType = "INITIAL_SESSION"
	AuthEventSignedIn       AuthEventType = "SIGNED_IN"
	AuthEventSignedOut      AuthEventType = "SIGNED_OUT"
	AuthEventTokenRefreshed AuthEventType = "TOKEN_REFRESHED"
	AuthEventUserUpdated    AuthEventType = "USER_UPDATED"
)

// AuthEvent carries the provider session after the event, nil when signed out
type AuthEvent struct {
	Type    AuthEventType
	Session *ProviderSession
}

// Identity returns the identity carried by the event, or nil
func (e AuthEvent) Identity() *Identity {
	return e.Session.Identity()
}
