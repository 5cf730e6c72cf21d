package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	auth "github.com/goliatone/go-dashboard-auth"
	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

// ProfileRepository implements auth.ProfileStore using Bun.
type ProfileRepository struct {
	db bun.IDB
}

var _ auth.ProfileStore = (*ProfileRepository)(nil)

// NewProfileRepository creates a new repository.
func NewProfileRepository(db bun.IDB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

// Get implements auth.ProfileStore.
func (r *ProfileRepository) Get(ctx context.Context, id string) (*auth.Profile, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, auth.ErrProfileNotFound
	}

	record := &auth.Profile{}
	err := r.db.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, auth.ErrProfileNotFound
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to read profile").
			WithTextCode(auth.TextCodeProfileFetchFailed)
	}

	if record.Role == "" {
		record.Role = auth.DefaultRole
	}
	return record, nil
}

// Upsert implements auth.ProfileStore. The record replaces the stored one.
func (r *ProfileRepository) Upsert(ctx context.Context, profile *auth.Profile) error {
	if profile == nil || strings.TrimSpace(profile.ID) == "" {
		return goerrors.New("profile id is required", goerrors.CategoryValidation).
			WithTextCode(auth.TextCodeInvalidInput)
	}

	record := profile.Clone()
	if record.Role == "" {
		record.Role = auth.DefaultRole
	}
	if record.Metadata == nil {
		record.Metadata = map[string]any{}
	}
	now := time.Now().UTC()
	if record.CreatedAt == nil {
		record.CreatedAt = &now
	}
	record.UpdatedAt = &now

	_, err := r.db.NewInsert().
		Model(record).
		On("CONFLICT (id) DO UPDATE").
		Set("email = EXCLUDED.email").
		Set("display_name = EXCLUDED.display_name").
		Set("first_name = EXCLUDED.first_name").
		Set("last_name = EXCLUDED.last_name").
		Set("role = EXCLUDED.role").
		Set("business_name = EXCLUDED.business_name").
		Set("phone_number = EXCLUDED.phone_number").
		Set("locale = EXCLUDED.locale").
		Set("metadata = EXCLUDED.metadata").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to upsert profile").
			WithTextCode(auth.TextCodeProfileFetchFailed)
	}

	profile.CreatedAt = record.CreatedAt
	profile.UpdatedAt = record.UpdatedAt
	if profile.Role == "" {
		profile.Role = record.Role
	}
	return nil
}

// Delete removes the profile with id
func (r *ProfileRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.NewDelete().
		Model((*auth.Profile)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	return err
}

// ListByRole returns profiles with the given role ordered by email
func (r *ProfileRepository) ListByRole(ctx context.Context, role auth.UserRole) ([]*auth.Profile, error) {
	var records []*auth.Profile
	err := r.db.NewSelect().
		Model(&records).
		Where("?TableAlias.role = ?", role).
		OrderExpr("?TableAlias.email ASC").
		Scan(ctx)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	return records, nil
}
