package jwtware

import (
	"context"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"

	auth "github.com/goliatone/go-dashboard-auth"
)

var (
	defaultTokenLookup       = "header:" + fiber.HeaderAuthorization
	ErrJWTMissingOrMalformed = errors.New("missing or malformed JWT")
)

// TokenValidator turns an access token into the identity it was issued for.
// The local provider implements it.
type TokenValidator interface {
	ValidateAccessToken(token string) (*auth.Identity, error)
}

// ValidationListener runs after the token validated and before the handler.
// Returning an error rejects the request.
type ValidationListener func(c *fiber.Ctx, identity *auth.Identity) error

type Config struct {
	Filter         func(*fiber.Ctx) bool
	SuccessHandler fiber.Handler
	ErrorHandler   func(*fiber.Ctx, error) error
	// ContextKey is the fiber locals key holding the *auth.Identity
	ContextKey string
	// TokenContextKey is the fiber locals key holding the raw access token
	TokenContextKey string
	TokenLookup     string
	AuthScheme      string
	// TokenValidator is required
	TokenValidator TokenValidator

	// ContextEnricher propagates the identity to the request user context
	ContextEnricher func(c context.Context, identity *auth.Identity) context.Context

	ValidationListeners []ValidationListener
}

// New returns a middleware that rejects requests without a valid access token
func New(config ...Config) fiber.Handler {
	cfg := GetDefaultConfig(config...)
	extractors := cfg.getExtractors()

	return func(c *fiber.Ctx) error {
		if cfg.Filter != nil && cfg.Filter(c) {
			return c.Next()
		}

		raw, err := ExtractRawToken(c, extractors)
		if err != nil {
			return cfg.ErrorHandler(c, err)
		}

		identity, err := cfg.TokenValidator.ValidateAccessToken(raw)
		if err != nil {
			return cfg.ErrorHandler(c, err)
		}

		for _, listener := range cfg.ValidationListeners {
			if listener == nil {
				continue
			}
			if err := listener(c, identity); err != nil {
				return cfg.ErrorHandler(c, err)
			}
		}

		c.Locals(cfg.ContextKey, identity)
		c.Locals(cfg.TokenContextKey, raw)

		if cfg.ContextEnricher != nil {
			c.SetUserContext(cfg.ContextEnricher(c.UserContext(), identity))
		}

		return cfg.SuccessHandler(c)
	}
}

// IdentityFromLocals returns the identity stored by the middleware under key
func IdentityFromLocals(c *fiber.Ctx, key string) (*auth.Identity, bool) {
	if key == "" {
		key = DefaultContextKey
	}
	identity, ok := c.Locals(key).(*auth.Identity)
	return identity, ok && identity != nil
}

// TokenFromLocals returns the raw access token stored by the middleware under key
func TokenFromLocals(c *fiber.Ctx, key string) (string, bool) {
	if key == "" {
		key = DefaultTokenContextKey
	}
	token, ok := c.Locals(key).(string)
	return token, ok && token != ""
}

const (
	// DefaultContextKey is the locals key used when Config.ContextKey is empty
	DefaultContextKey = "identity"
	// DefaultTokenContextKey is used when Config.TokenContextKey is empty
	DefaultTokenContextKey = "access_token"
)

func ExtractRawToken(c *fiber.Ctx, extractors []JWTExtractor) (string, error) {
	var raw string
	var err error

	for _, extractor := range extractors {
		raw, err = extractor(c)
		if raw != "" && err == nil {
			break
		}
	}

	if raw == "" && err == nil {
		err = ErrJWTMissingOrMalformed
	}

	return raw, err
}

func GetDefaultConfig(config ...Config) (cfg Config) {
	if len(config) > 0 {
		cfg = config[0]
	}

	if cfg.SuccessHandler == nil {
		cfg.SuccessHandler = func(c *fiber.Ctx) error {
			return c.Next()
		}
	}

	if cfg.ErrorHandler == nil {
		cfg.ErrorHandler = func(c *fiber.Ctx, err error) error {
			if errors.Is(err, ErrJWTMissingOrMalformed) {
				return c.Status(fiber.StatusBadRequest).SendString(ErrJWTMissingOrMalformed.Error())
			}
			return c.Status(fiber.StatusUnauthorized).SendString("Invalid or expired token")
		}
	}

	if cfg.TokenValidator == nil {
		panic("AUTH: JWT middleware configuration: TokenValidator is required.")
	}

	if cfg.ContextKey == "" {
		cfg.ContextKey = DefaultContextKey
	}

	if cfg.TokenContextKey == "" {
		cfg.TokenContextKey = DefaultTokenContextKey
	}

	if cfg.TokenLookup == "" {
		cfg.TokenLookup = defaultTokenLookup
	}

	if cfg.AuthScheme == "" {
		cfg.AuthScheme = "Bearer"
	}

	return cfg
}

func (cfg *Config) getExtractors() []JWTExtractor {
	return GetExtractors(cfg.TokenLookup, cfg.AuthScheme)
}

func GetExtractors(tokenLookup string, authSchemes ...string) []JWTExtractor {
	extractors := make([]JWTExtractor, 0)

	authScheme := "Bearer"
	if len(authSchemes) > 0 {
		authScheme = strings.TrimSpace(authSchemes[0])
	}

	// header:Authorization,cookie:jwt,query:access_token,param:token
	for _, rootPart := range strings.Split(tokenLookup, ",") {
		parts := strings.SplitN(strings.TrimSpace(rootPart), ":", 2)
		if len(parts) != 2 {
			continue
		}
		source, name := strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])

		switch source {
		case "header":
			extractors = append(extractors, jwtFromHeader(name, authScheme))
		case "query":
			extractors = append(extractors, jwtFromQuery(name))
		case "param":
			extractors = append(extractors, jwtFromParam(name))
		case "cookie":
			extractors = append(extractors, jwtFromCookie(name))
		}
	}

	return extractors
}

type JWTExtractor func(c *fiber.Ctx) (string, error)

// jwtFromHeader returns a function that extracts token from the request header.
func jwtFromHeader(header string, authScheme string) JWTExtractor {
	return func(c *fiber.Ctx) (string, error) {
		a := c.Get(header)
		l := len(authScheme)
		if l == 0 {
			return "", ErrJWTMissingOrMalformed
		}
		if len(a) > l+1 && strings.EqualFold(a[:l], authScheme) {
			return strings.TrimSpace(a[l:]), nil
		}
		return "", ErrJWTMissingOrMalformed
	}
}

// jwtFromQuery returns a function that extracts token from the query string.
func jwtFromQuery(param string) JWTExtractor {
	return func(c *fiber.Ctx) (string, error) {
		token := c.Query(param)
		if token == "" {
			return "", ErrJWTMissingOrMalformed
		}
		return token, nil
	}
}

// jwtFromParam returns a function that extracts token from the url param string.
func jwtFromParam(param string) JWTExtractor {
	return func(c *fiber.Ctx) (string, error) {
		token := c.Params(param)
		if token == "" {
			return "", ErrJWTMissingOrMalformed
		}
		return token, nil
	}
}

// jwtFromCookie returns a function that extracts token from the named cookie.
func jwtFromCookie(name string) JWTExtractor {
	return func(c *fiber.Ctx) (string, error) {
		token := c.Cookies(name)
		if token == "" {
			return "", ErrJWTMissingOrMalformed
		}
		return token, nil
	}
}
