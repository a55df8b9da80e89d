package auth

import (
	"errors"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Token types carried in the token_type claim.
const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

var (
	ErrTokenExpired = errors.New("token expired")
	ErrTokenInvalid = errors.New("token invalid")
)

// Claims is the JWT payload issued by Tokens.
type Claims struct {
	UserID    uuid.UUID `json:"user_id"`
	TokenType string    `json:"token_type"`

	jwtlib.RegisteredClaims
}

// Tokens issues and validates HS256 access and refresh tokens. The two kinds
// are signed with different secrets.
type Tokens struct {
	accessSecret  []byte
	refreshSecret []byte

	accessExpiresIn  time.Duration
	refreshExpiresIn time.Duration

	now func() time.Time
}

// NewTokens builds a token issuer.
func NewTokens(accessSecret, refreshSecret string, accessExpiresIn, refreshExpiresIn time.Duration) *Tokens {
	return &Tokens{
		accessSecret:     []byte(accessSecret),
		refreshSecret:    []byte(refreshSecret),
		accessExpiresIn:  accessExpiresIn,
		refreshExpiresIn: refreshExpiresIn,
		now:              time.Now,
	}
}

// Access issues an access token for userID.
func (t *Tokens) Access(userID uuid.UUID) (string, error) {
	return t.generate(TokenTypeAccess, userID)
}

// Refresh issues a refresh token for userID.
func (t *Tokens) Refresh(userID uuid.UUID) (string, error) {
	return t.generate(TokenTypeRefresh, userID)
}

// ParseAccess validates an access token. Refresh tokens are rejected.
func (t *Tokens) ParseAccess(token string) (Claims, error) {
	return t.parse(token, t.accessSecret, TokenTypeAccess)
}

// ParseRefresh validates a refresh token. Access tokens are rejected.
func (t *Tokens) ParseRefresh(token string) (Claims, error) {
	return t.parse(token, t.refreshSecret, TokenTypeRefresh)
}

// ParseAny accepts either kind of valid token.
func (t *Tokens) ParseAny(token string) (Claims, error) {
	c, accessErr := t.ParseAccess(token)
	if accessErr == nil {
		return c, nil
	}
	c, refreshErr := t.ParseRefresh(token)
	if refreshErr == nil {
		return c, nil
	}
	if errors.Is(accessErr, ErrTokenExpired) || errors.Is(refreshErr, ErrTokenExpired) {
		return Claims{}, ErrTokenExpired
	}
	return Claims{}, ErrTokenInvalid
}

func (t *Tokens) generate(tokenType string, userID uuid.UUID) (string, error) {
	secret, expIn := t.accessSecret, t.accessExpiresIn
	if tokenType == TokenTypeRefresh {
		secret, expIn = t.refreshSecret, t.refreshExpiresIn
	}
	if len(secret) == 0 || expIn <= 0 {
		return "", ErrTokenInvalid
	}

	now := t.now().UTC()
	c := Claims{
		UserID:    userID,
		TokenType: tokenType,
		RegisteredClaims: jwtlib.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwtlib.NewNumericDate(now),
			ExpiresAt: jwtlib.NewNumericDate(now.Add(expIn)),
			Subject:   userID.String(),
		},
	}
	return jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, c).SignedString(secret)
}

func (t *Tokens) parse(token string, secret []byte, wantType string) (Claims, error) {
	p := jwtlib.NewParser(
		jwtlib.WithValidMethods([]string{jwtlib.SigningMethodHS256.Alg()}),
		jwtlib.WithTimeFunc(t.now),
		jwtlib.WithExpirationRequired(),
	)

	var c Claims
	tok, err := p.ParseWithClaims(token, &c, func(*jwtlib.Token) (any, error) {
		return secret, nil
	})
	if err != nil {
		if errors.Is(err, jwtlib.ErrTokenExpired) {
			return Claims{}, ErrTokenExpired
		}
		return Claims{}, ErrTokenInvalid
	}
	if tok == nil || !tok.Valid || c.TokenType != wantType || c.UserID == uuid.Nil {
		return Claims{}, ErrTokenInvalid
	}
	return c, nil
}
