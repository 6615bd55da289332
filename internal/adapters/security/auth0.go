package security

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"

	"github.com/forgeworks/auth-connector/internal/domain"
	"github.com/forgeworks/auth-connector/internal/ports"
)

// Auth0Config describes one Auth0 tenant acting as the identity provider.
type Auth0Config struct {
	Domain       string
	ClientID     string
	ClientSecret string
	// Audience is the expected ID-token audience; defaults to ClientID.
	Audience string
	Scopes   []string
	// HTTPClient is used for the token exchange and JWKS fetches. Nil gets a
	// client with a sane timeout.
	HTTPClient *http.Client
}

// Auth0Client drives the authorization-code flow against one Auth0 tenant and
// verifies its RS256 ID tokens. The provider's issuer and audience are its
// own; they must never be conflated with the internal codec's.
type Auth0Client struct {
	oauth      *oauth2.Config
	resolver   ports.SigningKeyResolver
	httpClient *http.Client
	issuer     string
	audience   string
}

func NewAuth0Client(cfg Auth0Config) (*Auth0Client, error) {
	domainName := strings.TrimSpace(cfg.Domain)
	if domainName == "" || strings.TrimSpace(cfg.ClientID) == "" {
		return nil, errors.New("auth0 domain and client id are required")
	}
	audience := strings.TrimSpace(cfg.Audience)
	if audience == "" {
		audience = cfg.ClientID
	}
	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = []string{"openid", "profile", "email"}
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 8 * time.Second}
	}

	return &Auth0Client{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Scopes:       scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:  "https://" + domainName + "/authorize",
				TokenURL: "https://" + domainName + "/oauth/token",
			},
		},
		resolver:   NewJWKSKeyResolver("https://"+domainName+"/.well-known/jwks.json", httpClient),
		httpClient: httpClient,
		issuer:     "https://" + domainName + "/",
		audience:   audience,
	}, nil
}

// WithKeyResolver swaps the signing key resolver. Exposed for wiring a shared
// resolver or a test double.
func (c *Auth0Client) WithKeyResolver(resolver ports.SigningKeyResolver) *Auth0Client {
	c.resolver = resolver
	return c
}

// AuthorizationURL builds the authorize redirect with server-generated state
// and nonce. The callback URL is supplied per call because the caller owns
// the externally-visible base address.
func (c *Auth0Client) AuthorizationURL(_ context.Context, callbackURL, state, nonce, connection string) (string, error) {
	if callbackURL == "" || state == "" || nonce == "" {
		return "", fmt.Errorf("%w: callback URL, state and nonce are required", domain.ErrRedirectGeneration)
	}
	opts := []oauth2.AuthCodeOption{
		oauth2.SetAuthURLParam("redirect_uri", callbackURL),
		oauth2.SetAuthURLParam("nonce", nonce),
	}
	if connection != "" {
		opts = append(opts, oauth2.SetAuthURLParam("connection", connection))
	}
	return c.oauth.AuthCodeURL(state, opts...), nil
}

// ExchangeCode swaps the authorization code for provider tokens. The failure
// is deliberately coarse: whatever went wrong, the user retries login.
func (c *Auth0Client) ExchangeCode(ctx context.Context, code, callbackURL string) (ports.ProviderTokens, error) {
	if strings.TrimSpace(code) == "" {
		return ports.ProviderTokens{}, fmt.Errorf("%w: authorization code is required", domain.ErrProviderAuthentication)
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	token, err := c.oauth.Exchange(ctx, code, oauth2.SetAuthURLParam("redirect_uri", callbackURL))
	if err != nil {
		return ports.ProviderTokens{}, fmt.Errorf("%w: %v", domain.ErrProviderAuthentication, err)
	}

	idToken, _ := token.Extra("id_token").(string)
	return ports.ProviderTokens{
		AccessToken: token.AccessToken,
		IDToken:     idToken,
	}, nil
}

// VerifyIdentity validates the provider ID token and extracts the claim set.
// Each step has its own failure kind: key resolution, signature/audience/
// issuer/expiry validation, and required-claim extraction.
func (c *Auth0Client) VerifyIdentity(ctx context.Context, idToken string) (ports.VerifiedIdentity, error) {
	key, err := c.resolver.ResolveKey(ctx, idToken)
	if err != nil {
		return ports.VerifiedIdentity{}, err
	}

	claims := jwt.MapClaims{}
	_, err = jwt.ParseWithClaims(idToken, claims, func(token *jwt.Token) (any, error) {
		if token.Method.Alg() != jwt.SigningMethodRS256.Alg() {
			return nil, fmt.Errorf("unexpected signing method: %s", token.Method.Alg())
		}
		return key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithAudience(c.audience),
		jwt.WithIssuer(c.issuer),
		jwt.WithIssuedAt(),
		jwt.WithLeeway(30*time.Second),
	)
	if err != nil {
		return ports.VerifiedIdentity{}, mapJWTError(err)
	}

	sub := stringClaim(claims, "sub")
	email := stringClaim(claims, "email")
	name := stringClaim(claims, "name")
	if sub == "" || email == "" || name == "" {
		return ports.VerifiedIdentity{}, fmt.Errorf("%w: sub, email and name are required", domain.ErrTokenMissingClaim)
	}

	return ports.VerifiedIdentity{
		ProviderUserID: sub,
		Email:          email,
		Name:           name,
		Picture:        stringClaim(claims, "picture"),
		Nonce:          stringClaim(claims, "nonce"),
	}, nil
}

func stringClaim(claims jwt.MapClaims, key string) string {
	v, ok := claims[key]
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}
