package ports

import (
	"context"
	"crypto/rsa"
)

// TokenKind discriminates the two internal token flavors. They are
// structurally identical except for kind and lifetime, and are signed with
// distinct secrets.
type TokenKind string

const (
	TokenKindAccess  TokenKind = "access"
	TokenKindRefresh TokenKind = "refresh"
)

// TokenCodec issues and verifies internally-signed JWTs.
//
// Verify validates signature, issuer, audience and expiry in one step and
// returns the subject. A decodable token whose kind differs from expected
// fails with domain.ErrTokenWrongKind; expired, forged and malformed tokens
// fail with domain.ErrTokenExpired, ErrTokenSignature and ErrTokenDecode
// respectively, so callers can branch on each.
type TokenCodec interface {
	Issue(subject string, kind TokenKind) (string, error)
	Verify(token string, kind TokenKind) (subject string, err error)
}

// SigningKeyResolver maps a token's key id onto the identity provider's
// published verification key. Implementations cache the key set and attempt
// at least one refetch before reporting an unknown key id.
type SigningKeyResolver interface {
	ResolveKey(ctx context.Context, rawToken string) (*rsa.PublicKey, error)
}

// VerifiedIdentity is the claim set produced by a successful ID-token
// verification. It is ephemeral: consumed by reconciliation, then discarded.
type VerifiedIdentity struct {
	ProviderUserID string
	Email          string
	Name           string
	Picture        string // optional, empty when the claim is absent
	Nonce          string // echoed from the authorization request when present
}

// ProviderTokens is the provider's response to the code exchange. IDToken is
// empty when the provider answered without one; the caller reports that as a
// distinct condition.
type ProviderTokens struct {
	AccessToken string
	IDToken     string
}

// IdentityProviderClient drives the OAuth2 authorization-code flow against
// the external identity provider and verifies its ID tokens.
type IdentityProviderClient interface {
	// AuthorizationURL builds the provider authorize redirect. connection is a
	// provider-specific hint (e.g. "google-oauth2") restricting the login
	// variant; empty means no restriction. Failures map to
	// domain.ErrRedirectGeneration.
	AuthorizationURL(ctx context.Context, callbackURL, state, nonce, connection string) (string, error)

	// ExchangeCode swaps the authorization code for provider tokens. Any
	// failure maps to domain.ErrProviderAuthentication; the caller's only
	// recourse is asking the user to retry login.
	ExchangeCode(ctx context.Context, code, callbackURL string) (ProviderTokens, error)

	// VerifyIdentity resolves the signing key, verifies the ID token against
	// the provider's issuer/audience and extracts the required claims
	// (sub, email, name; picture optional).
	VerifyIdentity(ctx context.Context, idToken string) (VerifiedIdentity, error)
}
