package security

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/forgeworks/auth-connector/internal/domain"
	"github.com/forgeworks/auth-connector/internal/ports"
)

// TokenCodecConfig configures the internal HS256 codec. Access and refresh
// secrets are distinct so compromise of one cannot forge the other.
type TokenCodecConfig struct {
	Issuer        string
	AccessSecret  string
	RefreshSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
}

// TokenCodec implements HS256 signing/parsing for internal session tokens.
// Secrets are held at adapter level so the application layer stays
// crypto-library agnostic.
type TokenCodec struct {
	issuer        string
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	nowFn         func() time.Time
}

type internalClaims struct {
	Kind string `json:"type"`
	jwt.RegisteredClaims
}

func NewTokenCodec(cfg TokenCodecConfig) (*TokenCodec, error) {
	if cfg.Issuer == "" {
		return nil, errors.New("token issuer is required")
	}
	if cfg.AccessSecret == "" || cfg.RefreshSecret == "" {
		return nil, errors.New("access and refresh secrets are required")
	}
	if cfg.AccessSecret == cfg.RefreshSecret {
		return nil, errors.New("access and refresh secrets must differ")
	}
	accessTTL := cfg.AccessTTL
	if accessTTL <= 0 {
		accessTTL = 15 * time.Minute
	}
	refreshTTL := cfg.RefreshTTL
	if refreshTTL <= 0 {
		refreshTTL = 7 * 24 * time.Hour
	}
	return &TokenCodec{
		issuer:        cfg.Issuer,
		accessSecret:  []byte(cfg.AccessSecret),
		refreshSecret: []byte(cfg.RefreshSecret),
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
		nowFn:         func() time.Time { return time.Now().UTC() },
	}, nil
}

func (c *TokenCodec) secretFor(kind ports.TokenKind) ([]byte, error) {
	switch kind {
	case ports.TokenKindAccess:
		return c.accessSecret, nil
	case ports.TokenKindRefresh:
		return c.refreshSecret, nil
	default:
		return nil, fmt.Errorf("unknown token kind: %s", kind)
	}
}

func (c *TokenCodec) ttlFor(kind ports.TokenKind) time.Duration {
	if kind == ports.TokenKindRefresh {
		return c.refreshTTL
	}
	return c.accessTTL
}

// Issue signs a token of the given kind for the subject. Issuer and audience
// are both the service's own canonical base URL.
func (c *TokenCodec) Issue(subject string, kind ports.TokenKind) (string, error) {
	secret, err := c.secretFor(kind)
	if err != nil {
		return "", err
	}
	now := c.nowFn()
	claims := internalClaims{
		Kind: string(kind),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.ttlFor(kind))),
			Issuer:    c.issuer,
			Audience:  jwt.ClaimStrings{c.issuer},
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// Verify decodes and validates the token in one step, then checks the kind.
// The signing secret is selected by the token's own type claim, so a valid
// token of the wrong kind fails with domain.ErrTokenWrongKind rather than a
// signature error; forging either kind still requires that kind's secret.
func (c *TokenCodec) Verify(raw string, expected ports.TokenKind) (string, error) {
	if _, err := c.secretFor(expected); err != nil {
		return "", err
	}

	claims := &internalClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (any, error) {
		inner, ok := token.Claims.(*internalClaims)
		if !ok {
			return nil, errors.New("unexpected claims type")
		}
		return c.secretFor(ports.TokenKind(inner.Kind))
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(c.issuer),
		jwt.WithAudience(c.issuer),
		jwt.WithIssuedAt(),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return "", mapJWTError(err)
	}

	if ports.TokenKind(claims.Kind) != expected {
		return "", fmt.Errorf("%w: got %q, want %q", domain.ErrTokenWrongKind, claims.Kind, expected)
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("%w: sub", domain.ErrTokenMissingClaim)
	}
	return claims.Subject, nil
}

// mapJWTError translates golang-jwt's error set into the domain taxonomy so
// callers can branch without importing the JWT library.
func mapJWTError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w: %v", domain.ErrTokenExpired, err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid),
		errors.Is(err, jwt.ErrTokenInvalidAudience),
		errors.Is(err, jwt.ErrTokenInvalidIssuer),
		errors.Is(err, jwt.ErrTokenNotValidYet):
		return fmt.Errorf("%w: %v", domain.ErrTokenSignature, err)
	case errors.Is(err, jwt.ErrTokenMalformed):
		return fmt.Errorf("%w: %v", domain.ErrTokenDecode, err)
	default:
		return fmt.Errorf("%w: %v", domain.ErrTokenDecode, err)
	}
}
