package ports

import (
	"context"

	"github.com/google/uuid"

	"github.com/forgeworks/auth-connector/internal/domain"
)

// UserRepository defines persistence for the user aggregate. The reconciler
// and use cases depend only on this contract; the relational implementation
// lives in adapters.
//
// Find methods return (nil, nil) when no user matches. Errors are classified
// into the domain vocabulary: domain.ErrStorageConnection for infrastructure
// failures, domain.ErrDataIntegrity for constraint violations, and
// domain.ErrUserSearch / ErrUserCreation / ErrUserUpdate for everything else
// on the respective operation.
type UserRepository interface {
	FindByID(ctx context.Context, userID uuid.UUID) (*domain.User, error)
	FindByLinkedAccount(ctx context.Context, providerName, providerUserID string) (*domain.User, error)

	// Save persists the aggregate. For an existing user it updates the profile
	// fields and differentially syncs linked accounts (set difference on
	// LinkKey: only additions inserted, only removals deleted, intersection
	// untouched), all within one transactional scope.
	Save(ctx context.Context, user *domain.User) error
}
