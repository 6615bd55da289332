package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/forgeworks/auth-connector/internal/application"
	"github.com/forgeworks/auth-connector/internal/domain"
	"github.com/forgeworks/auth-connector/internal/ports"
)

type stubProvider struct {
	mu        sync.Mutex
	lastNonce string
}

func (p *stubProvider) AuthorizationURL(_ context.Context, callbackURL, state, nonce, connection string) (string, error) {
	p.mu.Lock()
	p.lastNonce = nonce
	p.mu.Unlock()
	q := url.Values{}
	q.Set("redirect_uri", callbackURL)
	q.Set("state", state)
	q.Set("nonce", nonce)
	q.Set("connection", connection)
	return "https://tenant.example.com/authorize?" + q.Encode(), nil
}

func (p *stubProvider) ExchangeCode(_ context.Context, code, _ string) (ports.ProviderTokens, error) {
	if code == "" {
		return ports.ProviderTokens{}, fmt.Errorf("%w: empty code", domain.ErrProviderAuthentication)
	}
	return ports.ProviderTokens{AccessToken: "provider-access", IDToken: "id-token"}, nil
}

func (p *stubProvider) VerifyIdentity(context.Context, string) (ports.VerifiedIdentity, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return ports.VerifiedIdentity{
		ProviderUserID: "auth0|abc123",
		Email:          "jo@example.com",
		Name:           "Jo Doe",
		Nonce:          p.lastNonce,
	}, nil
}

type stubCodec struct{}

func (stubCodec) Issue(subject string, kind ports.TokenKind) (string, error) {
	return string(kind) + ":" + subject, nil
}

func (stubCodec) Verify(token string, kind ports.TokenKind) (string, error) {
	prefix, subject, ok := strings.Cut(token, ":")
	if !ok {
		return "", fmt.Errorf("%w: stub", domain.ErrTokenDecode)
	}
	if prefix != string(kind) {
		return "", fmt.Errorf("%w: got %s", domain.ErrTokenWrongKind, prefix)
	}
	return subject, nil
}

type stubUserRepo struct {
	mu    sync.Mutex
	users map[uuid.UUID]*domain.User
}

func (r *stubUserRepo) FindByID(_ context.Context, id uuid.UUID) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.users[id], nil
}

func (r *stubUserRepo) FindByLinkedAccount(_ context.Context, providerName, providerUserID string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.HasLinkedAccount(providerName, providerUserID) {
			return u, nil
		}
	}
	return nil, nil
}

func (r *stubUserRepo) Save(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[user.ID] = user
	return nil
}

type stubStateStore struct {
	mu     sync.Mutex
	states map[string]ports.LoginState
}

func (s *stubStateStore) Put(_ context.Context, state string, value ports.LoginState, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[state] = value
	return nil
}

func (s *stubStateStore) Get(_ context.Context, state string) (*ports.LoginState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.states[state]
	if !ok {
		return nil, nil
	}
	return &v, nil
}

func (s *stubStateStore) Delete(_ context.Context, state string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.states, state)
	return nil
}

type noopPublisher struct{}

func (noopPublisher) Publish(context.Context, string, []byte) error { return nil }

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	svc := application.NewService(application.Dependencies{
		Config: application.Config{
			PublicBaseURL:    "http://localhost:8080",
			ClientAppURL:     "http://localhost:3000",
			ProviderName:     "auth0",
			ConnectionHint:   "google-oauth2",
			ProviderDomain:   "tenant.example.com",
			ProviderClientID: "client-1",
			LogoutReturnURL:  "http://localhost:3000",
		},
		Provider: &stubProvider{},
		Tokens:   stubCodec{},
		Users:    &stubUserRepo{users: map[uuid.UUID]*domain.User{}},
		States:   &stubStateStore{states: map[string]ports.LoginState{}},
		Events:   noopPublisher{},
	})
	handler := NewHandler(svc, HandlerConfig{
		ClientAppURL: "http://localhost:3000",
	}, nil)
	srv := httptest.NewServer(NewRouter(handler))
	t.Cleanup(srv.Close)
	return srv
}

func noRedirectClient() *http.Client {
	return &http.Client{
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

// completeLogin drives login and callback against the running server and
// returns the callback response so tests can inspect cookies.
func completeLogin(t *testing.T, srv *httptest.Server) *http.Response {
	t.Helper()
	client := noRedirectClient()

	loginResp, err := client.Get(srv.URL + "/auth/v1/login")
	if err != nil {
		t.Fatalf("login request: %v", err)
	}
	defer loginResp.Body.Close()
	if loginResp.StatusCode != http.StatusFound {
		t.Fatalf("login: expected 302, got %d", loginResp.StatusCode)
	}
	location, err := url.Parse(loginResp.Header.Get("Location"))
	if err != nil {
		t.Fatalf("parse login redirect: %v", err)
	}
	state := location.Query().Get("state")
	if state == "" {
		t.Fatalf("login redirect carries no state")
	}

	resp, err := client.Get(srv.URL + "/auth/v1/callback?code=code-1&state=" + url.QueryEscape(state))
	if err != nil {
		t.Fatalf("callback request: %v", err)
	}
	return resp
}

func cookieByName(resp *http.Response, name string) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestHealthEndpoints(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)
	for _, path := range []string{"/healthz", "/readyz"} {
		resp, err := http.Get(srv.URL + path)
		if err != nil {
			t.Fatalf("%s: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", path, resp.StatusCode)
		}
	}
}

func TestLoginRedirectsToProvider(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)
	resp, err := noRedirectClient().Get(srv.URL + "/auth/v1/login")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusFound {
		t.Fatalf("expected 302, got %d", resp.StatusCode)
	}
	if !strings.HasPrefix(resp.Header.Get("Location"), "https://tenant.example.com/authorize?") {
		t.Fatalf("unexpected redirect target: %s", resp.Header.Get("Location"))
	}
}

func TestCallbackSetsCookiesAndRedirects(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)
	resp := completeLogin(t, srv)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusFound {
		t.Fatalf("expected 302, got %d", resp.StatusCode)
	}
	if got := resp.Header.Get("Location"); got != "http://localhost:3000" {
		t.Fatalf("expected redirect to client app, got %q", got)
	}

	access := cookieByName(resp, accessTokenCookie)
	refresh := cookieByName(resp, refreshTokenCookie)
	if access == nil || refresh == nil {
		t.Fatalf("token cookies not set")
	}
	if access.HttpOnly {
		t.Fatalf("access token cookie must be readable by the client")
	}
	if !refresh.HttpOnly {
		t.Fatalf("refresh token cookie must be HttpOnly")
	}
	if access.SameSite != http.SameSiteLaxMode || refresh.SameSite != http.SameSiteLaxMode {
		t.Fatalf("cookies must be SameSite=Lax")
	}
}

func TestCallbackRejectsUnknownState(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)
	resp, err := http.Get(srv.URL + "/auth/v1/callback?code=code-1&state=forged")
	if err != nil {
		t.Fatalf("callback: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", resp.StatusCode)
	}
	var body struct {
		Status string `json:"status"`
		Code   string `json:"code"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if body.Status != "error" || body.Code != "PROVIDER_EXCHANGE_FAILED" {
		t.Fatalf("unexpected error body: %+v", body)
	}
}

func TestRefreshFromCookie(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)
	loginResp := completeLogin(t, srv)
	loginResp.Body.Close()
	refresh := cookieByName(loginResp, refreshTokenCookie)
	if refresh == nil {
		t.Fatalf("no refresh cookie after login")
	}

	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/auth/v1/refresh", nil)
	req.AddCookie(refresh)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if cookieByName(resp, accessTokenCookie) == nil || cookieByName(resp, refreshTokenCookie) == nil {
		t.Fatalf("refresh must reinstall both cookies")
	}
}

func TestRefreshWithoutTokenIsUnauthorized(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)
	resp, err := http.Post(srv.URL+"/auth/v1/refresh", "application/json", nil)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

func TestRefreshRejectsAccessTokenCookie(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)
	loginResp := completeLogin(t, srv)
	loginResp.Body.Close()
	access := cookieByName(loginResp, accessTokenCookie)

	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/auth/v1/refresh", nil)
	req.AddCookie(&http.Cookie{Name: refreshTokenCookie, Value: access.Value})
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for access token in refresh slot, got %d", resp.StatusCode)
	}
}

func TestMeWithBearerToken(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)
	loginResp := completeLogin(t, srv)
	loginResp.Body.Close()
	access := cookieByName(loginResp, accessTokenCookie)

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/auth/v1/me", nil)
	req.Header.Set("Authorization", "Bearer "+access.Value)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("me: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var body struct {
		Data struct {
			Name string `json:"name"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Data.Name != "Jo Doe" {
		t.Fatalf("unexpected profile name: %q", body.Data.Name)
	}
}

func TestMeWithoutTokenIsUnauthorized(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)
	resp, err := http.Get(srv.URL + "/auth/v1/me")
	if err != nil {
		t.Fatalf("me: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

func TestLogoutClearsCookiesAndReturnsProviderURL(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)
	resp, err := http.Post(srv.URL+"/auth/v1/logout", "application/json", nil)
	if err != nil {
		t.Fatalf("logout: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var body struct {
		Data struct {
			LogoutURL string `json:"logout_url"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if !strings.HasPrefix(body.Data.LogoutURL, "https://tenant.example.com/v2/logout?") {
		t.Fatalf("unexpected logout url: %q", body.Data.LogoutURL)
	}

	for _, name := range []string{accessTokenCookie, refreshTokenCookie} {
		c := cookieByName(resp, name)
		if c == nil || c.MaxAge >= 0 {
			t.Fatalf("cookie %s not cleared", name)
		}
	}
}
