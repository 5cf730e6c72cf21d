package local

import (
	"context"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// CredentialModel is the Bun model for provider accounts.
type CredentialModel struct {
	bun.BaseModel `bun:"table:auth_users,alias:au"`

	ID             uuid.UUID      `bun:"id,pk,type:uuid"`
	Email          string         `bun:"email,notnull,unique"`
	PasswordHash   string         `bun:"password_hash,notnull"`
	UserMetadata   map[string]any `bun:"user_metadata,type:jsonb"`
	LoginAttempts  int            `bun:"login_attempts,notnull,default:0"`
	LoginAttemptAt *time.Time     `bun:"login_attempt_at,nullzero"`
	LastSignInAt   *time.Time     `bun:"last_sign_in_at,nullzero"`
	CreatedAt      time.Time      `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt      time.Time      `bun:"updated_at,notnull,default:current_timestamp"`
}

const (
	// ResetRequestedStatus is the status of a fresh reset request
	ResetRequestedStatus = "requested"
)

// PasswordResetModel records password reset requests.
type PasswordResetModel struct {
	bun.BaseModel `bun:"table:auth_password_resets,alias:apr"`

	ID        uuid.UUID  `bun:"id,pk,type:uuid"`
	UserID    *uuid.UUID `bun:"user_id,type:uuid,nullzero"`
	Email     string     `bun:"email,notnull"`
	Status    string     `bun:"status,notnull"`
	CreatedAt time.Time  `bun:"created_at,notnull,default:current_timestamp"`
}

// CreateSchema creates the provider tables if they do not exist
func CreateSchema(ctx context.Context, db bun.IDB) error {
	models := []any{
		(*CredentialModel)(nil),
		(*PasswordResetModel)(nil),
	}

	for _, model := range models {
		if _, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return err
		}
	}
	return nil
}

func newCredentialRepository(db *bun.DB) repository.Repository[*CredentialModel] {
	return repository.NewRepository[*CredentialModel](db, repository.ModelHandlers[*CredentialModel]{
		NewRecord: func() *CredentialModel { return &CredentialModel{} },
		GetID: func(c *CredentialModel) uuid.UUID {
			if c == nil {
				return uuid.Nil
			}
			return c.ID
		},
		SetID: func(c *CredentialModel, id uuid.UUID) {
			if c != nil {
				c.ID = id
			}
		},
	})
}
