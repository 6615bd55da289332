package application

import (
	"context"

	"github.com/google/uuid"

	"github.com/forgeworks/auth-connector/internal/domain"
	"github.com/forgeworks/auth-connector/internal/ports"
)

// Reconciler maps a verified external identity onto a durable internal user:
// find by linked account, or create a fresh aggregate on first login.
type Reconciler struct {
	users ports.UserRepository
}

func NewReconciler(users ports.UserRepository) *Reconciler {
	return &Reconciler{users: users}
}

// Resolve returns the user owning the given provider identity, creating one
// when none exists. The returned bool reports whether a user was created.
//
// Resolving the same identity twice yields the same user id: the linked
// account lookup is the identity decision, the verified claim only supplies
// profile data. On a returning login the profile fields are refreshed from
// the claim and saved; the linked-account set is unchanged, so the
// repository's diff sync performs zero account writes.
//
// Two concurrent first logins for the same identity race to create; the
// storage uniqueness constraint on (provider_name, provider_user_id) turns
// the race into domain.ErrDataIntegrity on the losing request.
func (r *Reconciler) Resolve(ctx context.Context, providerName string, identity ports.VerifiedIdentity) (*domain.User, bool, error) {
	user, err := r.users.FindByLinkedAccount(ctx, providerName, identity.ProviderUserID)
	if err != nil {
		return nil, false, err
	}

	if user != nil {
		user.RefreshProfile(identity.Email, identity.Name, identity.Picture)
		if err := r.users.Save(ctx, user); err != nil {
			return nil, false, err
		}
		return user, false, nil
	}

	user = domain.NewUser(uuid.New(), identity.Email, identity.Name, identity.Picture)
	if err := user.AddLinkedAccount(providerName, identity.ProviderUserID); err != nil {
		return nil, false, err
	}
	if err := r.users.Save(ctx, user); err != nil {
		return nil, false, err
	}
	return user, true, nil
}
