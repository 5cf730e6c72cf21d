package local

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"

	auth "github.com/goliatone/go-dashboard-auth"
)

type accessClaims struct {
	jwt.RegisteredClaims
	Email        string         `json:"email"`
	UserMetadata map[string]any `json:"user_metadata,omitempty"`
}

// DefaultRevocationSize bounds the revoked token ids kept until expiry
const DefaultRevocationSize = 10000

type tokenIssuer struct {
	key    []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
	// token ids signed out before they expired; entries outlive the token
	revoked *expirable.LRU[string, struct{}]
}

func newTokenIssuer(key []byte, issuer string, ttl time.Duration, now func() time.Time) *tokenIssuer {
	return &tokenIssuer{
		key:     key,
		issuer:  issuer,
		ttl:     ttl,
		now:     now,
		revoked: expirable.NewLRU[string, struct{}](DefaultRevocationSize, nil, ttl),
	}
}

func (t *tokenIssuer) issue(identity *auth.Identity) (string, time.Time, error) {
	now := t.now()
	expiresAt := now.Add(t.ttl)

	claims := accessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    t.issuer,
			Subject:   identity.ID,
			Audience:  jwt.ClaimStrings{"authenticated"},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Email:        identity.Email,
		UserMetadata: identity.Metadata,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.key)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

func (t *tokenIssuer) validate(tokenString string) (*auth.Identity, error) {
	claims, err := t.parse(tokenString)
	if err != nil {
		return nil, err
	}

	if claims.ID != "" && t.revoked.Contains(claims.ID) {
		return nil, invalidToken("access token was revoked")
	}

	return &auth.Identity{
		ID:       claims.Subject,
		Email:    claims.Email,
		Metadata: claims.UserMetadata,
	}, nil
}

// revoke rejects tokenString from now until it expires
func (t *tokenIssuer) revoke(tokenString string) error {
	claims, err := t.parse(tokenString)
	if err != nil {
		return err
	}
	if claims.ID == "" {
		return invalidToken("access token has no id")
	}
	t.revoked.Add(claims.ID, struct{}{})
	return nil
}

func (t *tokenIssuer) parse(tokenString string) (*accessClaims, error) {
	claims := &accessClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		return t.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(t.issuer),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryAuth, "invalid access token").
			WithTextCode(auth.TextCodeInvalidCredentials).
			WithCode(goerrors.CodeUnauthorized)
	}

	if claims.Subject == "" {
		return nil, invalidToken("access token has no subject")
	}
	return claims, nil
}

func invalidToken(message string) error {
	return goerrors.New(message, goerrors.CategoryAuth).
		WithTextCode(auth.TextCodeInvalidCredentials).
		WithCode(goerrors.CodeUnauthorized)
}
