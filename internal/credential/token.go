package credential

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	// ErrTokenExpired is returned for a well-formed token past its expiry.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenInvalid covers every other verification failure.
	ErrTokenInvalid = errors.New("invalid token")
)

const (
	kindAccess  = "access"
	kindRefresh = "refresh"
)

// Subject identifies the user a token is issued to.
type Subject struct {
	UserID string
	Email  string
}

// Claims are the JWT claims carried by access and refresh tokens.
type Claims struct {
	Email string `json:"email"`
	Kind  string `json:"typ"`
	jwt.RegisteredClaims
}

// UserID returns the token subject.
func (c Claims) UserID() string { return c.Subject }

// IssuedToken is a signed token with its validity window.
type IssuedToken struct {
	Token     string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// TokenConfig configures a TokenIssuer.
type TokenConfig struct {
	AccessSecret  string
	RefreshSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Issuer        string
}

// TokenIssuer signs and verifies HS256 tokens. Access and refresh tokens use
// separate secrets so one can never be presented as the other.
type TokenIssuer struct {
	cfg TokenConfig
	now func() time.Time
}

// NewTokenIssuer builds a TokenIssuer.
func NewTokenIssuer(cfg TokenConfig) *TokenIssuer {
	return &TokenIssuer{cfg: cfg, now: time.Now}
}

// AccessTTL is the configured access-token lifetime.
func (t *TokenIssuer) AccessTTL() time.Duration { return t.cfg.AccessTTL }

// IssueAccess signs a short-lived access token.
func (t *TokenIssuer) IssueAccess(sub Subject) (IssuedToken, error) {
	return t.issue(sub, kindAccess, t.cfg.AccessSecret, t.cfg.AccessTTL)
}

// IssueRefresh signs a long-lived refresh token.
func (t *TokenIssuer) IssueRefresh(sub Subject) (IssuedToken, error) {
	return t.issue(sub, kindRefresh, t.cfg.RefreshSecret, t.cfg.RefreshTTL)
}

// VerifyAccess validates an access token.
func (t *TokenIssuer) VerifyAccess(token string) (Claims, error) {
	return t.verify(token, kindAccess, t.cfg.AccessSecret)
}

// VerifyRefresh validates a refresh token.
func (t *TokenIssuer) VerifyRefresh(token string) (Claims, error) {
	return t.verify(token, kindRefresh, t.cfg.RefreshSecret)
}

func (t *TokenIssuer) issue(sub Subject, kind, secret string, ttl time.Duration) (IssuedToken, error) {
	now := t.now().UTC()
	exp := now.Add(ttl)
	claims := Claims{
		Email: sub.Email,
		Kind:  kind,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   sub.UserID,
			Issuer:    t.cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return IssuedToken{}, fmt.Errorf("sign %s token: %w", kind, err)
	}
	return IssuedToken{Token: signed, IssuedAt: now, ExpiresAt: exp}, nil
}

func (t *TokenIssuer) verify(token, kind, secret string) (Claims, error) {
	var claims Claims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(tok *jwt.Token) (any, error) {
		if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", tok.Header["alg"])
		}
		return []byte(secret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Claims{}, ErrTokenExpired
		}
		return Claims{}, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if !parsed.Valid || claims.Kind != kind || claims.Subject == "" {
		return Claims{}, ErrTokenInvalid
	}
	return claims, nil
}
