package domain

import "errors"

// Provider flow errors. These are deliberately coarse: the caller's only
// recourse for either is "ask the user to retry login".
var (
	// ErrRedirectGeneration is returned when the authorization redirect to the
	// identity provider cannot be built. Usually a configuration problem.
	ErrRedirectGeneration = errors.New("authorization redirect generation failed")
	// ErrProviderAuthentication covers failures of the code-for-token exchange
	// with the identity provider.
	ErrProviderAuthentication = errors.New("provider authentication failed")
	// ErrMissingIDToken signals that the provider responded to the exchange but
	// the response carried no ID token. Distinct from an exchange failure
	// because the provider did answer.
	ErrMissingIDToken = errors.New("id token missing in provider response")
)

// Token verification errors. Each kind requires a different remediation, so
// adapters and use cases must be able to branch on them individually.
var (
	// ErrKeyFetch is returned when the provider's signing key cannot be
	// resolved: network failure, malformed key set, or unknown key id after a
	// refresh attempt.
	ErrKeyFetch = errors.New("signing key retrieval failed")
	// ErrTokenExpired means the token was otherwise valid but its exp passed.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenSignature covers invalid signatures plus audience/issuer
	// mismatches, which are indistinguishable from forgery for our purposes.
	ErrTokenSignature = errors.New("token signature verification failed")
	// ErrTokenDecode means the token is structurally invalid.
	ErrTokenDecode = errors.New("token decode failed")
	// ErrTokenMissingClaim is returned when a required claim (sub, email,
	// name) is absent from an otherwise valid token.
	ErrTokenMissingClaim = errors.New("required token claim missing")
	// ErrTokenWrongKind signals a validly signed internal token presented
	// where the other kind was expected (access vs refresh). Callers remediate
	// this differently from a decode failure, so it stays distinct.
	ErrTokenWrongKind = errors.New("unexpected token kind")
)

// User management errors. Infra failures (connection) are retryable,
// integrity violations are not, and callers need to tell them apart.
var (
	ErrStorageConnection = errors.New("storage connection failed")
	ErrDataIntegrity     = errors.New("storage integrity constraint violated")
	ErrUserSearch        = errors.New("user search failed")
	ErrUserCreation      = errors.New("user creation failed")
	ErrUserUpdate        = errors.New("user update failed")
	// ErrDuplicateLinkedAccount is rejected at the aggregate boundary, before
	// any persistence call. Seeing it in normal operation indicates a
	// programming error or a lost first-login race.
	ErrDuplicateLinkedAccount = errors.New("linked account already present")
)
