package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/google/uuid"

	"github.com/forgeworks/auth-connector/internal/domain"
	"github.com/forgeworks/auth-connector/internal/ports"
)

func appLogger() *slog.Logger {
	return slog.Default().With(
		"module", "application",
		"layer", "application",
	)
}

// Login builds the provider authorize redirect. State and nonce are generated
// server-side and parked in the state store until the callback returns.
// Every failure collapses into domain.ErrRedirectGeneration: there is no
// partial state to recover, so the caller needs no finer granularity.
func (s *Service) Login(ctx context.Context) (LoginRedirect, error) {
	state := uuid.NewString()
	nonce := uuid.NewString()
	now := s.nowFn()

	if err := s.states.Put(ctx, state, ports.LoginState{
		Nonce:     nonce,
		CreatedAt: now,
		ExpiresAt: now.Add(s.cfg.StateTTL),
	}, s.cfg.StateTTL); err != nil {
		return LoginRedirect{}, fmt.Errorf("%w: %v", domain.ErrRedirectGeneration, err)
	}

	redirectURL, err := s.provider.AuthorizationURL(ctx, s.callbackURL(), state, nonce, s.cfg.ConnectionHint)
	if err != nil {
		if errors.Is(err, domain.ErrRedirectGeneration) {
			return LoginRedirect{}, err
		}
		return LoginRedirect{}, fmt.Errorf("%w: %v", domain.ErrRedirectGeneration, err)
	}

	return LoginRedirect{RedirectURL: redirectURL, State: state}, nil
}

// Callback finishes the authorization-code flow: exchange the code, verify
// the ID token, reconcile the external identity onto an internal user, and
// issue the internal token pair. The outcome set is closed: provider token
// retrieval, missing ID token, and internal token creation. Anything
// unanticipated is folded into the last kind.
func (s *Service) Callback(ctx context.Context, code, state string) (TokenPair, error) {
	if code == "" || state == "" {
		return TokenPair{}, fmt.Errorf("%w: code and state are required", ErrProviderTokenRetrieval)
	}

	envelope, err := s.states.Get(ctx, state)
	if err != nil {
		return TokenPair{}, fmt.Errorf("%w: %v", ErrProviderTokenRetrieval, err)
	}
	if envelope == nil || envelope.ExpiresAt.Before(s.nowFn()) {
		appLogger().WarnContext(ctx, "callback with unknown or expired state",
			"operation", "callback",
			"outcome", "failure",
		)
		return TokenPair{}, fmt.Errorf("%w: unknown or expired state", ErrProviderTokenRetrieval)
	}
	_ = s.states.Delete(ctx, state)

	tokens, err := s.provider.ExchangeCode(ctx, code, s.callbackURL())
	if err != nil {
		return TokenPair{}, fmt.Errorf("%w: %v", ErrProviderTokenRetrieval, err)
	}
	if tokens.IDToken == "" {
		return TokenPair{}, domain.ErrMissingIDToken
	}

	return s.createInternalTokens(ctx, tokens.IDToken, envelope.Nonce)
}

func (s *Service) createInternalTokens(ctx context.Context, idToken, expectedNonce string) (TokenPair, error) {
	identity, err := s.provider.VerifyIdentity(ctx, idToken)
	if err != nil {
		appLogger().WarnContext(ctx, "id token verification failed",
			"operation", "callback",
			"outcome", "failure",
			"error", err,
		)
		return TokenPair{}, fmt.Errorf("%w: %v", ErrInternalTokenCreation, err)
	}
	if expectedNonce != "" && identity.Nonce != expectedNonce {
		return TokenPair{}, fmt.Errorf("%w: nonce mismatch", ErrInternalTokenCreation)
	}

	user, created, err := s.reconciler.Resolve(ctx, s.cfg.ProviderName, identity)
	if err != nil {
		return TokenPair{}, fmt.Errorf("%w: %v", ErrInternalTokenCreation, err)
	}

	pair, err := s.issuePair(user.ID.String())
	if err != nil {
		return TokenPair{}, fmt.Errorf("%w: %v", ErrInternalTokenCreation, err)
	}

	now := s.nowFn()
	eventType := "user.login"
	if created {
		eventType = "user.created"
	}
	payload, _ := json.Marshal(map[string]any{
		"user_id":     user.ID.String(),
		"provider":    s.cfg.ProviderName,
		"occurred_at": now,
	})
	if err := s.events.Publish(ctx, eventType, payload); err != nil {
		appLogger().WarnContext(ctx, "event publish failed",
			"operation", "callback",
			"outcome", "degraded",
			"event_type", eventType,
			"error", err,
		)
	}

	appLogger().InfoContext(ctx, "callback completed",
		"operation", "callback",
		"outcome", "success",
		"user_id", user.ID.String(),
		"user_created", created,
	)
	return pair, nil
}

// Refresh verifies the refresh token and re-issues both tokens for the same
// subject. Refresh is stateless: signature, expiry and kind only, no store
// lookup. All failures surface as ErrTokenRefresh.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	subject, err := s.tokens.Verify(refreshToken, ports.TokenKindRefresh)
	if err != nil {
		return TokenPair{}, fmt.Errorf("%w: %v", ErrTokenRefresh, err)
	}
	if subject == "" {
		return TokenPair{}, fmt.Errorf("%w: token has no subject", ErrTokenRefresh)
	}

	pair, err := s.issuePair(subject)
	if err != nil {
		return TokenPair{}, fmt.Errorf("%w: %v", ErrTokenRefresh, err)
	}
	return pair, nil
}

// Logout computes the provider logout URL. Internal tokens are stateless and
// cannot be server-side revoked; the client drops its copies and visits the
// provider URL to end the provider session.
func (s *Service) Logout(_ context.Context) (LogoutInstruction, error) {
	if s.cfg.ProviderDomain == "" || s.cfg.ProviderClientID == "" {
		return LogoutInstruction{}, fmt.Errorf("%w: provider domain and client id are required", ErrLogoutURLGeneration)
	}

	q := url.Values{}
	q.Set("returnTo", s.cfg.LogoutReturnURL)
	q.Set("client_id", s.cfg.ProviderClientID)
	return LogoutInstruction{
		Message:   "redirect to the identity provider to complete logout",
		LogoutURL: "https://" + s.cfg.ProviderDomain + "/v2/logout?" + q.Encode(),
	}, nil
}

// GetAuthenticatedUser verifies an access token and loads its subject. A
// well-formed, validly-signed token for a vanished user is reported as
// ErrAuthenticatedUserNotFound, distinct from any verification failure.
func (s *Service) GetAuthenticatedUser(ctx context.Context, accessToken string) (AuthenticatedUser, error) {
	subject, err := s.tokens.Verify(accessToken, ports.TokenKindAccess)
	if err != nil {
		return AuthenticatedUser{}, fmt.Errorf("%w: %v", ErrAccessTokenVerification, err)
	}

	userID, err := uuid.Parse(subject)
	if err != nil {
		return AuthenticatedUser{}, fmt.Errorf("%w: malformed subject", ErrAccessTokenVerification)
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return AuthenticatedUser{}, fmt.Errorf("%w: %v", ErrAccessTokenVerification, err)
	}
	if user == nil {
		return AuthenticatedUser{}, fmt.Errorf("%w: %s", ErrAuthenticatedUserNotFound, userID)
	}

	return AuthenticatedUser{Name: user.Name, Picture: user.Picture}, nil
}

func (s *Service) issuePair(subject string) (TokenPair, error) {
	access, err := s.tokens.Issue(subject, ports.TokenKindAccess)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := s.tokens.Issue(subject, ports.TokenKindRefresh)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}
