package application

import "time"

// LoginRedirect instructs the transport layer to send the user agent to the
// provider's authorize endpoint.
type LoginRedirect struct {
	RedirectURL string
	State       string
}

// TokenPair is the internally-issued session token set.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// LogoutInstruction carries the provider logout URL the client must visit to
// terminate the provider-side session; no server state is mutated.
type LogoutInstruction struct {
	Message   string
	LogoutURL string
}

// AuthenticatedUser is the profile subset exposed to callers.
type AuthenticatedUser struct {
	Name    string
	Picture string
}

// Config is the application-level configuration slice, carved out of
// bootstrap config so the service stays testable without YAML or env.
type Config struct {
	// PublicBaseURL is the service's externally-visible base address; the
	// callback URL and the internal token issuer/audience derive from it.
	PublicBaseURL string
	// ClientAppURL is where the callback redirects the browser after setting
	// token cookies.
	ClientAppURL string
	// ProviderName keys linked accounts, e.g. "auth0".
	ProviderName string
	// ConnectionHint restricts the provider login variant, e.g. "google-oauth2".
	ConnectionHint string
	// ProviderDomain and ProviderClientID feed the provider logout URL.
	ProviderDomain   string
	ProviderClientID string
	LogoutReturnURL  string
	// StateTTL bounds the window between authorize redirect and callback.
	StateTTL time.Duration

	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
}
