package web

import (
	"context"
	"errors"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"
	"github.com/nyaruka/phonenumbers"

	auth "github.com/goliatone/go-dashboard-auth"
	"github.com/goliatone/go-dashboard-auth/middleware/jwtware"
)

// Authenticator is the auth surface the controller drives; *auth.Client implements it
type Authenticator interface {
	SignIn(ctx context.Context, email, password string) (*auth.ProviderSession, error)
	SignUp(ctx context.Context, email, password string, metadata map[string]any) (*auth.ProviderSession, error)
	SignOut(ctx context.Context) error
	ResetPassword(ctx context.Context, email string) (string, error)
	CurrentSession(ctx context.Context) (*auth.ProviderSession, error)
}

// TokenRevoker invalidates an access token before it expires; the local
// provider implements it
type TokenRevoker interface {
	RevokeAccessToken(token string) error
}

// Routes holds the mount points
type Routes struct {
	SignIn        string
	SignUp        string
	SignOut       string
	ResetPassword string
	Session       string
	Me            string
	Dashboard     string
}

// DefaultRoutes returns the standard mount points
func DefaultRoutes() Routes {
	return Routes{
		SignIn:        "/auth/sign-in",
		SignUp:        "/auth/sign-up",
		SignOut:       "/auth/sign-out",
		ResetPassword: "/auth/reset-password",
		Session:       "/auth/session",
		Me:            "/auth/me",
		Dashboard:     "/dashboard",
	}
}

// Controller is the HTTP boundary over the client, profile store and route
// resolver. Every request carries its own session: the caller's identity
// comes from its access token, never from the process wide provider session.
type Controller struct {
	Routes       Routes
	client       Authenticator
	tokens       jwtware.TokenValidator
	profiles     auth.ProfileStore
	router       *auth.RouteResolver
	logger       auth.Logger
	activitySink auth.ActivitySink
}

// NewController builds a controller with DefaultRoutes. tokens is required.
func NewController(client Authenticator, tokens jwtware.TokenValidator, profiles auth.ProfileStore, router *auth.RouteResolver) *Controller {
	if router == nil {
		router = auth.NewRouteResolver()
	}
	return &Controller{
		Routes:   DefaultRoutes(),
		client:   client,
		tokens:   tokens,
		profiles: profiles,
		router:   router,
		logger:   auth.NoopLogger(),
	}
}

func (h *Controller) WithLogger(logger auth.Logger) *Controller {
	if logger != nil {
		h.logger = logger
	}
	return h
}

// WithActivitySink records fallback profiles resolved for requests
func (h *Controller) WithActivitySink(sink auth.ActivitySink) *Controller {
	h.activitySink = sink
	return h
}

// Register mounts every handler on app
func (h *Controller) Register(app fiber.Router) {
	required := jwtware.New(jwtware.Config{
		TokenValidator: h.tokens,
		ErrorHandler:   h.tokenError,
	})
	optional := jwtware.New(jwtware.Config{
		TokenValidator: h.tokens,
		ErrorHandler:   h.optionalTokenError,
	})

	app.Post(h.Routes.SignIn, h.SignIn)
	app.Post(h.Routes.SignUp, h.SignUp)
	app.Post(h.Routes.SignOut, required, h.SignOut)
	app.Post(h.Routes.ResetPassword, h.ResetPassword)
	app.Get(h.Routes.Session, optional, h.SessionLocals, h.Session)
	app.Get(h.Routes.Me, required, h.Me)

	app.Get(h.Routes.Dashboard, optional, h.SessionLocals, h.Dashboard)
	app.Get(h.Routes.Dashboard+"/*", optional, h.SessionLocals, h.Dashboard)
}

// SessionLocals stores the caller's session state in the request context.
// Requests without an access token get the signed out state.
func (h *Controller) SessionLocals(c *fiber.Ctx) error {
	if _, found := auth.SessionStateFromContext(c.UserContext()); found {
		return c.Next()
	}
	state := h.requestState(c)
	c.SetUserContext(auth.WithSessionState(c.UserContext(), state))
	return c.Next()
}

func (h *Controller) requestState(c *fiber.Ctx) auth.SessionState {
	identity, found := jwtware.IdentityFromLocals(c, jwtware.DefaultContextKey)
	if !found {
		return auth.SessionState{}
	}

	state := auth.SessionState{Identity: identity.Clone()}
	if h.profiles != nil {
		resolver := auth.NewProfileResolver(h.profiles, requestIdentity{identity: identity}).
			WithLogger(h.logger).
			WithActivitySink(h.activitySink)
		state.Profile = resolver.Resolve(c.UserContext(), identity.ID)
	}
	return state
}

// requestIdentity feeds the token identity to the fallback profile path
type requestIdentity struct {
	identity *auth.Identity
}

func (r requestIdentity) GetCurrentSession(context.Context) (*auth.ProviderSession, error) {
	return &auth.ProviderSession{User: r.identity.Clone()}, nil
}

// SignInPayload is the sign in request body
type SignInPayload struct {
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
}

// Validate checks the payload shape only; credentials are the provider's job
func (p SignInPayload) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Email, validation.Required, is.EmailFormat),
		validation.Field(&p.Password, validation.Required),
	)
}

// SignUpPayload is the registration request body
type SignUpPayload struct {
	Email        string `json:"email" form:"email"`
	Password     string `json:"password" form:"password"`
	FullName     string `json:"full_name" form:"full_name"`
	BusinessName string `json:"business_name" form:"business_name"`
	Phone        string `json:"phone_number" form:"phone_number"`
}

// DefaultPhoneRegion is used to parse phone numbers without a country prefix
var DefaultPhoneRegion = "US"

func (p SignUpPayload) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Email, validation.Required, is.EmailFormat),
		validation.Field(&p.Password, validation.Required, validation.RuneLength(6, 72)),
		validation.Field(&p.FullName, validation.Length(0, 200)),
		validation.Field(&p.BusinessName, validation.Length(0, 200)),
		validation.Field(&p.Phone, validation.By(validPhone)),
	)
}

func validPhone(value any) error {
	phone, _ := value.(string)
	if strings.TrimSpace(phone) == "" {
		return nil
	}
	if _, ok := normalizePhone(phone); !ok {
		return errors.New("must be a valid phone number")
	}
	return nil
}

// normalizePhone returns the E.164 form of phone
func normalizePhone(phone string) (string, bool) {
	num, err := phonenumbers.Parse(strings.TrimSpace(phone), DefaultPhoneRegion)
	if err != nil || !phonenumbers.IsValidNumber(num) {
		return "", false
	}
	return phonenumbers.Format(num, phonenumbers.E164), true
}

// Metadata is the identity metadata sent to the provider
func (p SignUpPayload) Metadata() map[string]any {
	metadata := map[string]any{}
	if v := strings.TrimSpace(p.FullName); v != "" {
		metadata["full_name"] = v
	}
	if v := strings.TrimSpace(p.BusinessName); v != "" {
		metadata["business_name"] = v
	}
	if v := strings.TrimSpace(p.Phone); v != "" {
		if e164, ok := normalizePhone(v); ok {
			v = e164
		}
		metadata["phone_number"] = v
	}
	return metadata
}

// ResetPasswordPayload is the reset request body
type ResetPasswordPayload struct {
	Email string `json:"email" form:"email"`
}

func (p ResetPasswordPayload) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Email, validation.Required, is.EmailFormat),
	)
}

type sessionBody struct {
	User        *auth.Identity `json:"user"`
	AccessToken string         `json:"access_token"`
	ExpiresAt   time.Time      `json:"expires_at"`
}

func (h *Controller) SignIn(c *fiber.Ctx) error {
	payload := SignInPayload{}
	if err := h.bind(c, &payload); err != nil {
		return fail(c, err)
	}

	session, err := h.client.SignIn(c.UserContext(), payload.Email, payload.Password)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, toSessionBody(session))
}

func (h *Controller) SignUp(c *fiber.Ctx) error {
	payload := SignUpPayload{}
	if err := h.bind(c, &payload); err != nil {
		return fail(c, err)
	}

	session, err := h.client.SignUp(c.UserContext(), payload.Email, payload.Password, payload.Metadata())
	if err != nil {
		return fail(c, err)
	}
	return ok(c, toSessionBody(session))
}

// SignOut revokes the caller's access token. The provider session is only
// ended when it belongs to the caller.
func (h *Controller) SignOut(c *fiber.Ctx) error {
	identity, found := jwtware.IdentityFromLocals(c, jwtware.DefaultContextKey)
	if !found {
		return fail(c, auth.ErrNoIdentity)
	}

	if revoker, ok := h.tokens.(TokenRevoker); ok {
		if token, found := jwtware.TokenFromLocals(c, jwtware.DefaultTokenContextKey); found {
			if err := revoker.RevokeAccessToken(token); err != nil {
				return fail(c, err)
			}
		}
	}

	current, err := h.client.CurrentSession(c.UserContext())
	if err != nil {
		return fail(c, err)
	}
	if current.Identity() == nil || current.Identity().ID != identity.ID {
		h.logger.Debug("provider session belongs to another user, keeping it", "user_id", identity.ID)
		return ok(c, nil)
	}

	if err := h.client.SignOut(c.UserContext()); err != nil {
		return fail(c, err)
	}
	return ok(c, nil)
}

func (h *Controller) ResetPassword(c *fiber.Ctx) error {
	payload := ResetPasswordPayload{}
	if err := h.bind(c, &payload); err != nil {
		return fail(c, err)
	}

	message, err := h.client.ResetPassword(c.UserContext(), payload.Email)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, fiber.Map{"message": message})
}

// Session returns the caller's session state
func (h *Controller) Session(c *fiber.Ctx) error {
	state, found := auth.SessionStateFromContext(c.UserContext())
	if !found {
		state = h.requestState(c)
	}
	return ok(c, state)
}

// Me returns the identity the bearer token was issued for
func (h *Controller) Me(c *fiber.Ctx) error {
	identity, found := jwtware.IdentityFromLocals(c, jwtware.DefaultContextKey)
	if !found {
		return fail(c, auth.ErrNoIdentity)
	}
	return ok(c, identity)
}

func (h *Controller) tokenError(c *fiber.Ctx, err error) error {
	if errors.Is(err, jwtware.ErrJWTMissingOrMalformed) {
		err = goerrors.Wrap(err, goerrors.CategoryAuth, "missing access token").
			WithTextCode(auth.TextCodeInvalidCredentials).
			WithCode(goerrors.CodeUnauthorized)
	}
	h.logger.Debug("access token rejected", "path", c.Path(), "error", err)
	return fail(c, err)
}

// optionalTokenError lets requests without a token through as signed out.
// A token that is present but invalid is still rejected.
func (h *Controller) optionalTokenError(c *fiber.Ctx, err error) error {
	if errors.Is(err, jwtware.ErrJWTMissingOrMalformed) {
		return c.Next()
	}
	return h.tokenError(c, err)
}

// Dashboard runs the route decision table for the requested path. Redirect
// decisions become 302 responses.
func (h *Controller) Dashboard(c *fiber.Ctx) error {
	state, found := auth.SessionStateFromContext(c.UserContext())
	if !found {
		state = h.requestState(c)
	}

	decision := h.router.Decide(state, c.Path())
	h.logger.Debug("route decision", "path", c.Path(), "kind", decision.Kind.String(), "state", decision.State)

	if decision.Kind == auth.DecisionRedirect {
		return c.Redirect(decision.Target, fiber.StatusFound)
	}
	return ok(c, decision)
}

type validatable interface {
	Validate() error
}

func (h *Controller) bind(c *fiber.Ctx, payload validatable) error {
	if err := c.BodyParser(payload); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "malformed request body").
			WithTextCode(auth.TextCodeInvalidInput).
			WithCode(goerrors.CodeBadRequest)
	}
	if err := payload.Validate(); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, err.Error()).
			WithTextCode(auth.TextCodeInvalidInput).
			WithCode(goerrors.CodeBadRequest)
	}
	return nil
}

func toSessionBody(session *auth.ProviderSession) sessionBody {
	if session == nil {
		return sessionBody{}
	}
	return sessionBody{
		User:        session.User,
		AccessToken: session.AccessToken,
		ExpiresAt:   session.ExpiresAt,
	}
}
