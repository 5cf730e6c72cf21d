package auth

import (
	"time"

	"github.com/uptrace/bun"
)

// UserRole is the profile's role
type UserRole = string

const (
	// RoleBusinessOwner owns a business account (agreements, clients, team)
	RoleBusinessOwner UserRole = "business_owner"
	// RoleSuperAdmin operates the platform (users, admin analytics, channel settings)
	RoleSuperAdmin UserRole = "super_admin"
)

// DefaultRole is assigned to fallback and freshly provisioned profiles
const DefaultRole = RoleBusinessOwner

// Profile is the application level record about a user, keyed by the
// identity id. Profiles are always replaced whole.
type Profile struct {
	bun.BaseModel `bun:"table:profiles,alias:prf"`
	ID            string         `bun:"id,pk" json:"id"`
	Email         string         `bun:"email" json:"email,omitempty"`
	DisplayName   string         `bun:"display_name" json:"display_name,omitempty"`
	FirstName     string         `bun:"first_name" json:"first_name,omitempty"`
	LastName      string         `bun:"last_name" json:"last_name,omitempty"`
	Role          UserRole       `bun:"role,notnull" json:"role"`
	BusinessName  string         `bun:"business_name" json:"business_name,omitempty"`
	Phone         string         `bun:"phone_number" json:"phone_number,omitempty"`
	Locale        string         `bun:"locale" json:"locale,omitempty"`
	Metadata      map[string]any `bun:"metadata,type:jsonb" json:"metadata,omitempty"`
	CreatedAt     *time.Time     `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time     `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
	// Fallback marks profiles synthesized from identity metadata
	Fallback bool `bun:"-" json:"fallback,omitempty"`
}

// IsSuperAdmin reports whether the profile carries the super admin role
func (p *Profile) IsSuperAdmin() bool {
	return p != nil && p.Role == RoleSuperAdmin
}

// Clone returns a deep enough copy for handing out snapshots
func (p *Profile) Clone() *Profile {
	if p == nil {
		return nil
	}
	cp := *p
	if p.Metadata != nil {
		cp.Metadata = make(map[string]any, len(p.Metadata))
		for k, v := range p.Metadata {
			cp.Metadata[k] = v
		}
	}
	return &cp
}

// FallbackProfile synthesizes a minimal profile from identity metadata alone.
// It returns nil when there is no identity to derive from.
func FallbackProfile(identity *Identity) *Profile {
	if identity == nil || identity.ID == "" {
		return nil
	}

	return &Profile{
		ID:          identity.ID,
		Email:       identity.Email,
		DisplayName: identity.DisplayName(),
		FirstName:   identity.FirstName(),
		LastName:    identity.LastName(),
		Role:        DefaultRole,
		Locale:      identity.Locale(),
		Fallback:    true,
	}
}

// ProvisionedProfile is the record created for a new identity when the
// provisioning trigger did not create one in time.
func ProvisionedProfile(identity *Identity) *Profile {
	p := FallbackProfile(identity)
	if p == nil {
		return nil
	}
	p.Fallback = false
	p.BusinessName = identity.metadataString("business_name")
	p.Phone = identity.metadataString("phone", "phone_number")
	if role, ok := ParseRole(identity.metadataString("role")); ok {
		p.Role = role
	}
	return p
}
