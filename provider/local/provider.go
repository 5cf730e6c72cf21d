package local

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"sync"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"golang.org/x/crypto/bcrypt"

	auth "github.com/goliatone/go-dashboard-auth"
)

const (
	DefaultTokenTTL         = time.Hour
	DefaultMaxLoginAttempts = 5
	DefaultCoolDown         = 15 * time.Minute
	DefaultIssuer           = "go-dashboard-auth"
	MinPasswordLength       = 6

	// ResetRequestedMessage is returned for every reset request so callers can
	// not find out which emails are registered.
	ResetRequestedMessage = "if an account exists for that email, password reset instructions have been sent"
)

// ProvisionFunc plays the part of the database trigger that creates the
// profile row for a freshly registered identity.
type ProvisionFunc func(ctx context.Context, identity *auth.Identity) error

// Config configures a Provider
type Config struct {
	SigningKey       []byte
	Issuer           string
	TokenTTL         time.Duration
	MaxLoginAttempts int
	CoolDown         time.Duration
	BcryptCost       int
	// ProvisionDelay is how long after sign up ProvisionFunc runs
	ProvisionDelay time.Duration
	ProvisionFunc  ProvisionFunc
}

// Option customizes a Provider
type Option func(*Provider)

// WithLogger sets the logger
func WithLogger(logger auth.Logger) Option {
	return func(p *Provider) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithHashedIDs derives account ids from the email so the same account gets
// the same id in every environment.
func WithHashedIDs() Option {
	return func(p *Provider) {
		p.newID = func(email string) uuid.UUID {
			if id, err := hashid.NewUUID(email); err == nil {
				return id
			}
			return uuid.New()
		}
	}
}

// WithClock overrides time.Now
func WithClock(now func() time.Time) Option {
	return func(p *Provider) {
		if now != nil {
			p.now = now
		}
	}
}

// Provider is a self hosted identity provider backed by Bun. It keeps a
// single current session, the way a browser client of a hosted provider does.
type Provider struct {
	db          *bun.DB
	credentials repository.Repository[*CredentialModel]
	config      Config
	logger      auth.Logger
	now         func() time.Time
	newID       func(email string) uuid.UUID
	tokens      *tokenIssuer

	mu        sync.Mutex
	current   *auth.ProviderSession
	listeners map[uint64]func(auth.AuthEvent)
	nextID    uint64
	closed    bool

	// held from the session swap through delivery, so the last event a
	// listener sees always matches GetCurrentSession
	emitMu sync.Mutex

	provisionCtx    context.Context
	provisionCancel context.CancelFunc
	provisionWG     sync.WaitGroup
}

var _ auth.IdentityProvider = (*Provider)(nil)

// New returns a Provider over db
func New(db *bun.DB, config Config, opts ...Option) (*Provider, error) {
	if len(config.SigningKey) == 0 {
		return nil, goerrors.New("local provider requires a signing key", goerrors.CategoryValidation).
			WithTextCode(auth.TextCodeInvalidInput)
	}
	if config.Issuer == "" {
		config.Issuer = DefaultIssuer
	}
	if config.TokenTTL <= 0 {
		config.TokenTTL = DefaultTokenTTL
	}
	if config.MaxLoginAttempts <= 0 {
		config.MaxLoginAttempts = DefaultMaxLoginAttempts
	}
	if config.CoolDown <= 0 {
		config.CoolDown = DefaultCoolDown
	}
	if config.BcryptCost == 0 {
		config.BcryptCost = bcrypt.DefaultCost
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &Provider{
		db:              db,
		credentials:     newCredentialRepository(db),
		config:          config,
		logger:          auth.NoopLogger(),
		now:             time.Now,
		newID:           func(string) uuid.UUID { return uuid.New() },
		listeners:       map[uint64]func(auth.AuthEvent){},
		provisionCtx:    ctx,
		provisionCancel: cancel,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}

	p.tokens = newTokenIssuer(config.SigningKey, config.Issuer, config.TokenTTL, p.now)

	return p, nil
}

// GetCurrentSession returns a copy of the current session, nil when signed out
func (p *Provider) GetCurrentSession(ctx context.Context) (*auth.ProviderSession, error) {
	if err := ctx.Err(); err != nil {
		return nil, auth.ProviderError(err, "session read cancelled")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return cloneSession(p.current), nil
}

// Subscribe registers listener and immediately delivers INITIAL_SESSION to it.
// Listeners run while the session is locked and must not sign in or out.
func (p *Provider) Subscribe(listener func(auth.AuthEvent)) auth.Unsubscribe {
	if listener == nil {
		return func() {}
	}

	p.emitMu.Lock()
	p.mu.Lock()
	p.nextID++
	id := p.nextID
	p.listeners[id] = listener
	initial := cloneSession(p.current)
	p.mu.Unlock()

	listener(auth.AuthEvent{Type: auth.AuthEventInitialSession, Session: initial})
	p.emitMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			p.mu.Lock()
			delete(p.listeners, id)
			p.mu.Unlock()
		})
	}
}

// SignIn checks the password and starts a session
func (p *Provider) SignIn(ctx context.Context, email, password string) (*auth.ProviderSession, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, auth.ErrInvalidCredentials
	}

	record, err := p.findByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			p.logger.Debug("sign in for unknown email")
			return nil, auth.ErrInvalidCredentials
		}
		return nil, auth.ProviderError(err, "failed to load account")
	}

	now := p.now()
	attempts := record.LoginAttempts
	if record.LoginAttemptAt != nil && now.Sub(*record.LoginAttemptAt) > p.config.CoolDown {
		attempts = 0
	}
	if attempts >= p.config.MaxLoginAttempts {
		p.logger.Warn("sign in rate limited", "user_id", record.ID.String())
		return nil, auth.ErrRateLimited
	}

	if err := bcrypt.CompareHashAndPassword([]byte(record.PasswordHash), []byte(password)); err != nil {
		if !errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return nil, goerrors.Wrap(err, goerrors.CategoryAuth, "failed to verify password").
				WithTextCode(auth.TextCodeAuthUnknown)
		}
		if err := p.recordFailure(ctx, record.ID, attempts+1, now); err != nil {
			p.logger.Error("failed to record login attempt", "user_id", record.ID.String(), "error", err)
		}
		return nil, auth.ErrInvalidCredentials
	}

	if err := p.recordSuccess(ctx, record.ID, now); err != nil {
		return nil, auth.ProviderError(err, "failed to update account")
	}

	return p.startSession(record, auth.AuthEventSignedIn)
}

// SignUp registers an account, schedules provisioning and signs the new user in
func (p *Provider) SignUp(ctx context.Context, email, password string, metadata map[string]any) (*auth.ProviderSession, error) {
	email = normalizeEmail(email)
	if err := validateSignUp(email, password); err != nil {
		return nil, err
	}

	exists, err := p.db.NewSelect().
		Model((*CredentialModel)(nil)).
		Where("?TableAlias.email = ?", email).
		Exists(ctx)
	if err != nil {
		return nil, auth.ProviderError(err, "failed to check email")
	}
	if exists {
		return nil, auth.ErrEmailAlreadyInUse
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), p.config.BcryptCost)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryAuth, "failed to hash password").
			WithTextCode(auth.TextCodeAuthUnknown)
	}

	now := p.now()
	record := &CredentialModel{
		ID:           p.newID(email),
		Email:        email,
		PasswordHash: string(hash),
		UserMetadata: copyMetadata(metadata),
		LastSignInAt: &now,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if _, err := p.credentials.Create(ctx, record); err != nil {
		return nil, auth.ProviderError(err, "failed to create account")
	}

	p.scheduleProvisioning(identityFor(record))

	return p.startSession(record, auth.AuthEventSignedIn)
}

// SignOut ends the current session. Listeners always receive SIGNED_OUT.
func (p *Provider) SignOut(ctx context.Context) error {
	p.publish(nil, auth.AuthEventSignedOut)
	return nil
}

// ResetPassword records a reset request. The message is the same whether or
// not the email is registered.
func (p *Provider) ResetPassword(ctx context.Context, email string) (string, error) {
	email = normalizeEmail(email)
	if err := validation.Validate(email, validation.Required, is.EmailFormat); err != nil {
		return "", invalidInput("email", err)
	}

	request := &PasswordResetModel{
		ID:        uuid.New(),
		Email:     email,
		Status:    ResetRequestedStatus,
		CreatedAt: p.now(),
	}

	record, err := p.findByEmail(ctx, email)
	switch {
	case err == nil:
		request.UserID = &record.ID
	case errors.Is(err, sql.ErrNoRows):
	default:
		return "", auth.ProviderError(err, "failed to load account")
	}

	if _, err := p.db.NewInsert().Model(request).Exec(ctx); err != nil {
		return "", auth.ProviderError(err, "failed to record reset request")
	}

	return ResetRequestedMessage, nil
}

// RefreshSession issues a new access token for the current session
func (p *Provider) RefreshSession(ctx context.Context) (*auth.ProviderSession, error) {
	p.mu.Lock()
	current := p.current
	p.mu.Unlock()

	if current == nil || current.User == nil {
		return nil, auth.ErrNoIdentity
	}

	record, err := p.findByID(ctx, current.User.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, auth.ErrNoIdentity
		}
		return nil, auth.ProviderError(err, "failed to load account")
	}

	return p.startSession(record, auth.AuthEventTokenRefreshed)
}

// UpdateUserMetadata merges metadata into the current user and emits USER_UPDATED
func (p *Provider) UpdateUserMetadata(ctx context.Context, metadata map[string]any) (*auth.ProviderSession, error) {
	p.mu.Lock()
	current := p.current
	p.mu.Unlock()

	if current == nil || current.User == nil {
		return nil, auth.ErrNoIdentity
	}

	record, err := p.findByID(ctx, current.User.ID)
	if err != nil {
		return nil, auth.ProviderError(err, "failed to load account")
	}

	merged := copyMetadata(record.UserMetadata)
	for k, v := range metadata {
		merged[k] = v
	}
	record.UserMetadata = merged
	record.UpdatedAt = p.now()

	_, err = p.db.NewUpdate().
		Model(record).
		Column("user_metadata", "updated_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		return nil, auth.ProviderError(err, "failed to update account")
	}

	return p.startSession(record, auth.AuthEventUserUpdated)
}

// ValidateAccessToken parses a token issued by this provider
func (p *Provider) ValidateAccessToken(token string) (*auth.Identity, error) {
	return p.tokens.validate(token)
}

// RevokeAccessToken rejects token in later validations until it expires
func (p *Provider) RevokeAccessToken(token string) error {
	return p.tokens.revoke(token)
}

// Close cancels pending provisioning and waits for running hooks
func (p *Provider) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.listeners = map[uint64]func(auth.AuthEvent){}
	p.mu.Unlock()

	p.provisionCancel()
	p.provisionWG.Wait()
	return nil
}

func (p *Provider) startSession(record *CredentialModel, eventType auth.AuthEventType) (*auth.ProviderSession, error) {
	identity := identityFor(record)
	token, expiresAt, err := p.tokens.issue(identity)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryAuth, "failed to sign access token").
			WithTextCode(auth.TextCodeAuthUnknown)
	}

	session := &auth.ProviderSession{
		User:         identity,
		AccessToken:  token,
		RefreshToken: uuid.NewString(),
		TokenType:    "bearer",
		ExpiresAt:    expiresAt,
	}

	p.publish(session, eventType)
	return cloneSession(session), nil
}

// publish swaps the current session and delivers the event to every
// listener before another swap can happen.
func (p *Provider) publish(session *auth.ProviderSession, eventType auth.AuthEventType) {
	p.emitMu.Lock()
	defer p.emitMu.Unlock()

	p.mu.Lock()
	p.current = session
	listeners := make([]func(auth.AuthEvent), 0, len(p.listeners))
	for id := uint64(1); id <= p.nextID; id++ {
		if l, ok := p.listeners[id]; ok {
			listeners = append(listeners, l)
		}
	}
	p.mu.Unlock()

	event := auth.AuthEvent{Type: eventType, Session: cloneSession(session)}
	for _, l := range listeners {
		l(event)
	}
}

func (p *Provider) scheduleProvisioning(identity *auth.Identity) {
	if p.config.ProvisionFunc == nil {
		return
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.provisionWG.Add(1)
	p.mu.Unlock()

	go func() {
		defer p.provisionWG.Done()

		ctx := p.provisionCtx
		if p.config.ProvisionDelay > 0 {
			t := time.NewTimer(p.config.ProvisionDelay)
			select {
			case <-ctx.Done():
				t.Stop()
				return
			case <-t.C:
			}
		}

		if err := p.config.ProvisionFunc(ctx, identity); err != nil {
			p.logger.Error("provisioning hook failed", "user_id", identity.ID, "error", err)
			return
		}
		p.logger.Debug("provisioning hook completed", "user_id", identity.ID)
	}()
}

func (p *Provider) findByEmail(ctx context.Context, email string) (*CredentialModel, error) {
	record := &CredentialModel{}
	err := p.db.NewSelect().
		Model(record).
		Where("?TableAlias.email = ?", email).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return record, nil
}

func (p *Provider) findByID(ctx context.Context, id string) (*CredentialModel, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, sql.ErrNoRows
	}

	record, err := p.credentials.GetByID(ctx, id)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, sql.ErrNoRows
		}
		return nil, err
	}
	return record, nil
}

func (p *Provider) recordFailure(ctx context.Context, id uuid.UUID, attempts int, at time.Time) error {
	_, err := p.db.NewUpdate().
		Model((*CredentialModel)(nil)).
		Set("login_attempts = ?", attempts).
		Set("login_attempt_at = ?", at).
		Where("id = ?", id).
		Exec(ctx)
	return err
}

func (p *Provider) recordSuccess(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := p.db.NewUpdate().
		Model((*CredentialModel)(nil)).
		Set("login_attempts = 0").
		Set("login_attempt_at = NULL").
		Set("last_sign_in_at = ?", at).
		Where("id = ?", id).
		Exec(ctx)
	return err
}

func validateSignUp(email, password string) error {
	if err := validation.Validate(email, validation.Required, is.EmailFormat); err != nil {
		return invalidInput("email", err)
	}
	if err := validation.Validate(password, validation.Required, validation.RuneLength(MinPasswordLength, 72)); err != nil {
		return invalidInput("password", err)
	}
	return nil
}

func invalidInput(field string, err error) error {
	return goerrors.Wrap(err, goerrors.CategoryValidation, field+": "+err.Error()).
		WithTextCode(auth.TextCodeInvalidInput).
		WithCode(goerrors.CodeBadRequest)
}

func identityFor(record *CredentialModel) *auth.Identity {
	return &auth.Identity{
		ID:       record.ID.String(),
		Email:    record.Email,
		Metadata: copyMetadata(record.UserMetadata),
	}
}

func cloneSession(s *auth.ProviderSession) *auth.ProviderSession {
	if s == nil {
		return nil
	}
	out := *s
	out.User = s.User.Clone()
	return &out
}

func copyMetadata(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
