package ports

import (
	"context"
	"time"
)

// LoginState is the short-lived envelope stored under the OAuth state value
// between the authorize redirect and the provider callback.
type LoginState struct {
	Nonce     string    `json:"nonce"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// LoginStateStore keeps login-state envelopes with a TTL. Get returns
// (nil, nil) for an unknown or already-consumed state.
type LoginStateStore interface {
	Put(ctx context.Context, state string, value LoginState, ttl time.Duration) error
	Get(ctx context.Context, state string) (*LoginState, error)
	Delete(ctx context.Context, state string) error
}
