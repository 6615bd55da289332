package security

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/forgeworks/auth-connector/internal/domain"
)

func newRSAKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate rsa key: %v", err)
	}
	return key
}

func jwksFor(t *testing.T, kids map[string]*rsa.PrivateKey) []byte {
	t.Helper()
	doc := jwksDocument{}
	for kid, key := range kids {
		doc.Keys = append(doc.Keys, jwk{
			Kty: "RSA",
			Kid: kid,
			Use: "sig",
			Alg: "RS256",
			N:   base64.RawURLEncoding.EncodeToString(key.PublicKey.N.Bytes()),
			E:   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.PublicKey.E)).Bytes()),
		})
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal jwks: %v", err)
	}
	return raw
}

func signRS256(t *testing.T, key *rsa.PrivateKey, kid string, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	if kid != "" {
		token.Header["kid"] = kid
	}
	raw, err := token.SignedString(key)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return raw
}

func TestJWKSResolverCachesKeySet(t *testing.T) {
	t.Parallel()

	key := newRSAKey(t)
	body := jwksFor(t, map[string]*rsa.PrivateKey{"kid-1": key})

	var fetches atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fetches.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(body)
	}))
	defer srv.Close()

	resolver := NewJWKSKeyResolver(srv.URL, srv.Client())
	raw := signRS256(t, key, "kid-1", jwt.MapClaims{"sub": "x", "exp": time.Now().Add(time.Hour).Unix()})

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		got, err := resolver.ResolveKey(ctx, raw)
		if err != nil {
			t.Fatalf("resolve %d: %v", i, err)
		}
		if got.N.Cmp(key.PublicKey.N) != 0 {
			t.Fatalf("resolved wrong key")
		}
	}
	if n := fetches.Load(); n != 1 {
		t.Fatalf("expected a single jwks fetch, got %d", n)
	}
}

func TestJWKSResolverRefetchesOnUnknownKid(t *testing.T) {
	t.Parallel()

	oldKey := newRSAKey(t)
	newKey := newRSAKey(t)

	var fetches atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		n := fetches.Add(1)
		w.Header().Set("Content-Type", "application/json")
		if n == 1 {
			_, _ = w.Write(jwksFor(t, map[string]*rsa.PrivateKey{"kid-old": oldKey}))
			return
		}
		_, _ = w.Write(jwksFor(t, map[string]*rsa.PrivateKey{"kid-old": oldKey, "kid-new": newKey}))
	}))
	defer srv.Close()

	resolver := NewJWKSKeyResolver(srv.URL, srv.Client())
	ctx := context.Background()

	oldToken := signRS256(t, oldKey, "kid-old", jwt.MapClaims{"sub": "x"})
	if _, err := resolver.ResolveKey(ctx, oldToken); err != nil {
		t.Fatalf("resolve old kid: %v", err)
	}

	newToken := signRS256(t, newKey, "kid-new", jwt.MapClaims{"sub": "x"})
	got, err := resolver.ResolveKey(ctx, newToken)
	if err != nil {
		t.Fatalf("resolve rotated kid: %v", err)
	}
	if got.N.Cmp(newKey.PublicKey.N) != 0 {
		t.Fatalf("resolved wrong key after rotation")
	}
	if n := fetches.Load(); n != 2 {
		t.Fatalf("expected exactly 2 fetches, got %d", n)
	}
}

func TestJWKSResolverReportsUnknownKid(t *testing.T) {
	t.Parallel()

	key := newRSAKey(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(jwksFor(t, map[string]*rsa.PrivateKey{"kid-1": key}))
	}))
	defer srv.Close()

	resolver := NewJWKSKeyResolver(srv.URL, srv.Client())
	stranger := signRS256(t, newRSAKey(t), "kid-stranger", jwt.MapClaims{"sub": "x"})

	if _, err := resolver.ResolveKey(context.Background(), stranger); !errors.Is(err, domain.ErrKeyFetch) {
		t.Fatalf("expected ErrKeyFetch for unknown kid, got %v", err)
	}
}

func TestJWKSResolverReportsFetchFailure(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	resolver := NewJWKSKeyResolver(srv.URL, srv.Client())
	raw := signRS256(t, newRSAKey(t), "kid-1", jwt.MapClaims{"sub": "x"})

	if _, err := resolver.ResolveKey(context.Background(), raw); !errors.Is(err, domain.ErrKeyFetch) {
		t.Fatalf("expected ErrKeyFetch on server failure, got %v", err)
	}
}

func TestJWKSResolverRequiresKid(t *testing.T) {
	t.Parallel()

	resolver := NewJWKSKeyResolver("http://unused.invalid", nil)
	raw := signRS256(t, newRSAKey(t), "", jwt.MapClaims{"sub": "x"})

	if _, err := resolver.ResolveKey(context.Background(), raw); !errors.Is(err, domain.ErrKeyFetch) {
		t.Fatalf("expected ErrKeyFetch for missing kid, got %v", err)
	}
}
