package domain

import (
	"fmt"

	"github.com/google/uuid"
)

// LinkKey identifies a linked account by its provider-side identity.
// Two linked accounts are the same account iff their keys are equal.
type LinkKey struct {
	ProviderName   string
	ProviderUserID string
}

// LinkedAccount ties one internal user to one external provider identity.
// It is immutable once created; the only mutations on a user's account set
// are addition and removal, keyed by LinkKey.
type LinkedAccount struct {
	UserID         uuid.UUID
	ProviderName   string
	ProviderUserID string
}

// Key returns the identity key used for set operations and diff sync.
func (a LinkedAccount) Key() LinkKey {
	return LinkKey{ProviderName: a.ProviderName, ProviderUserID: a.ProviderUserID}
}

// User is the aggregate root owning the linked-account set.
// The internal id is generated once at first login and never reused; provider
// identities map onto it via linked accounts. The linked-account slice is
// private so the duplicate-key invariant can only be enforced through
// AddLinkedAccount.
type User struct {
	ID      uuid.UUID
	Email   string
	Name    string
	Picture string

	linkedAccounts []LinkedAccount
}

// NewUser constructs a user with no linked accounts. Picture may be empty.
func NewUser(id uuid.UUID, email, name, picture string) *User {
	return &User{ID: id, Email: email, Name: name, Picture: picture}
}

// AddLinkedAccount attaches a provider identity to the user. Adding the same
// (provider, provider user id) pair twice is rejected, not silently ignored.
func (u *User) AddLinkedAccount(providerName, providerUserID string) error {
	key := LinkKey{ProviderName: providerName, ProviderUserID: providerUserID}
	for _, existing := range u.linkedAccounts {
		if existing.Key() == key {
			return fmt.Errorf("%w: %s/%s", ErrDuplicateLinkedAccount, providerName, providerUserID)
		}
	}
	u.linkedAccounts = append(u.linkedAccounts, LinkedAccount{
		UserID:         u.ID,
		ProviderName:   providerName,
		ProviderUserID: providerUserID,
	})
	return nil
}

// LinkedAccounts returns a copy; mutation happens only through AddLinkedAccount.
func (u *User) LinkedAccounts() []LinkedAccount {
	out := make([]LinkedAccount, len(u.linkedAccounts))
	copy(out, u.linkedAccounts)
	return out
}

// HasLinkedAccount reports whether the given provider identity is attached.
func (u *User) HasLinkedAccount(providerName, providerUserID string) bool {
	key := LinkKey{ProviderName: providerName, ProviderUserID: providerUserID}
	for _, a := range u.linkedAccounts {
		if a.Key() == key {
			return true
		}
	}
	return false
}

// RefreshProfile overwrites the mutable profile fields from a fresh verified
// identity claim. Called on every returning login; the linked-account set is
// untouched.
func (u *User) RefreshProfile(email, name, picture string) {
	u.Email = email
	u.Name = name
	u.Picture = picture
}
