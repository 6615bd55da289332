package security

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/forgeworks/auth-connector/internal/domain"
)

type jwksDocument struct {
	Keys []jwk `json:"keys"`
}

type jwk struct {
	Kty string `json:"kty"`
	Kid string `json:"kid"`
	Use string `json:"use"`
	Alg string `json:"alg"`
	N   string `json:"n"`
	E   string `json:"e"`
}

// JWKSKeyResolver caches the provider's published key set and maps a token's
// kid onto a verification key. The cache is read-mostly; refresh races are
// benign since a duplicate fetch just rewrites the same map.
type JWKSKeyResolver struct {
	httpClient *http.Client
	jwksURL    string

	mu   sync.RWMutex
	keys map[string]*rsa.PublicKey
}

func NewJWKSKeyResolver(jwksURL string, httpClient *http.Client) *JWKSKeyResolver {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 8 * time.Second}
	}
	return &JWKSKeyResolver{
		httpClient: httpClient,
		jwksURL:    jwksURL,
	}
}

// ResolveKey extracts the kid from the unverified token header and returns
// the matching cached key, refetching the key set once when the kid is
// unknown. All retrieval failures map to domain.ErrKeyFetch; they are always
// reported, never defaulted to "unverified".
func (r *JWKSKeyResolver) ResolveKey(ctx context.Context, rawToken string) (*rsa.PublicKey, error) {
	token, _, err := jwt.NewParser().ParseUnverified(rawToken, jwt.MapClaims{})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrTokenDecode, err)
	}
	kid, _ := token.Header["kid"].(string)
	if strings.TrimSpace(kid) == "" {
		return nil, fmt.Errorf("%w: token header has no kid", domain.ErrKeyFetch)
	}

	r.mu.RLock()
	key, ok := r.keys[kid]
	r.mu.RUnlock()
	if ok {
		return key, nil
	}

	if err := r.refresh(ctx); err != nil {
		return nil, err
	}

	r.mu.RLock()
	key, ok = r.keys[kid]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: unknown key id %q after refresh", domain.ErrKeyFetch, kid)
	}
	return key, nil
}

func (r *JWKSKeyResolver) refresh(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.jwksURL, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrKeyFetch, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrKeyFetch, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%w: jwks fetch status=%d body=%s", domain.ErrKeyFetch, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var doc jwksDocument
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return fmt.Errorf("%w: decode jwks: %v", domain.ErrKeyFetch, err)
	}

	keys, err := parseRSAKeys(doc)
	if err != nil {
		return err
	}

	r.mu.Lock()
	r.keys = keys
	r.mu.Unlock()
	return nil
}

func parseRSAKeys(doc jwksDocument) (map[string]*rsa.PublicKey, error) {
	keys := make(map[string]*rsa.PublicKey)
	for i, key := range doc.Keys {
		if strings.ToUpper(strings.TrimSpace(key.Kty)) != "RSA" {
			continue
		}
		nBytes, err := base64.RawURLEncoding.DecodeString(strings.TrimSpace(key.N))
		if err != nil {
			return nil, fmt.Errorf("%w: decode jwks n: %v", domain.ErrKeyFetch, err)
		}
		eBytes, err := base64.RawURLEncoding.DecodeString(strings.TrimSpace(key.E))
		if err != nil {
			return nil, fmt.Errorf("%w: decode jwks e: %v", domain.ErrKeyFetch, err)
		}
		eBig := new(big.Int).SetBytes(eBytes)
		if !eBig.IsInt64() || eBig.Int64() <= 1 {
			return nil, fmt.Errorf("%w: invalid exponent for key %q", domain.ErrKeyFetch, key.Kid)
		}

		kid := strings.TrimSpace(key.Kid)
		if kid == "" {
			kid = fmt.Sprintf("key-%d", i)
		}
		keys[kid] = &rsa.PublicKey{
			N: new(big.Int).SetBytes(nBytes),
			E: int(eBig.Int64()),
		}
	}
	if len(keys) == 0 {
		return nil, fmt.Errorf("%w: no RSA keys in jwks", domain.ErrKeyFetch)
	}
	return keys, nil
}
