package application

import "errors"

// Use-case outcome errors. Each operation exposes a small closed set; lower
// layer errors are re-wrapped into these at the use-case boundary so callers
// never branch on an open-ended error type.
var (
	// ErrProviderTokenRetrieval wraps a failed code-for-token exchange.
	ErrProviderTokenRetrieval = errors.New("could not retrieve tokens from identity provider")
	// ErrInternalTokenCreation wraps everything between receiving an ID token
	// and handing out the internal pair: verification, reconciliation,
	// persistence, signing.
	ErrInternalTokenCreation = errors.New("internal token creation failed")
	// ErrTokenRefresh wraps refresh-token verification and re-issuance failures.
	ErrTokenRefresh = errors.New("token refresh failed")
	// ErrLogoutURLGeneration wraps provider logout URL construction failures.
	ErrLogoutURLGeneration = errors.New("logout URL generation failed")
	// ErrAccessTokenVerification wraps access-token verification failures,
	// including storage failures while loading the subject.
	ErrAccessTokenVerification = errors.New("access token verification failed")
	// ErrAuthenticatedUserNotFound means a validly-signed access token names a
	// user that no longer exists. Deliberately distinct from a verification
	// failure: the token is genuine, the subject is gone.
	ErrAuthenticatedUserNotFound = errors.New("no user matches the access token subject")
)
