package application

import (
	"time"

	"github.com/forgeworks/auth-connector/internal/ports"
)

// Service orchestrates the authentication use cases. It holds no mutable
// state of its own; every operation is an independent unit of work over the
// injected ports.
type Service struct {
	cfg        Config
	provider   ports.IdentityProviderClient
	tokens     ports.TokenCodec
	users      ports.UserRepository
	states     ports.LoginStateStore
	events     ports.EventPublisher
	reconciler *Reconciler
	nowFn      func() time.Time
}

// Dependencies is the explicit dependency set, constructed once at process
// start and passed by reference to request-scoped handlers.
type Dependencies struct {
	Config   Config
	Provider ports.IdentityProviderClient
	Tokens   ports.TokenCodec
	Users    ports.UserRepository
	States   ports.LoginStateStore
	Events   ports.EventPublisher
}

func NewService(deps Dependencies) *Service {
	cfg := deps.Config
	if cfg.StateTTL <= 0 {
		cfg.StateTTL = 10 * time.Minute
	}
	return &Service{
		cfg:        cfg,
		provider:   deps.Provider,
		tokens:     deps.Tokens,
		users:      deps.Users,
		states:     deps.States,
		events:     deps.Events,
		reconciler: NewReconciler(deps.Users),
		nowFn:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) callbackURL() string {
	return s.cfg.PublicBaseURL + "/auth/v1/callback"
}
