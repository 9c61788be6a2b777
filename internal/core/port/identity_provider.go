package port

import (
	"context"
	"errors"

	"github.com/slamint/account-management/internal/core/domain"
)

var (
	// ErrRemoteUserExists indicates the provider already holds an identity with
	// the requested username or email.
	ErrRemoteUserExists = errors.New("identity provider: user exists")

	// ErrRemoteUserNotFound indicates the provider has no identity with the
	// given id.
	ErrRemoteUserNotFound = errors.New("identity provider: user not found")
)

// RemoteUserInput is the profile handed to the identity provider when a new
// identity is created.
type RemoteUserInput struct {
	FirstName string
	LastName  string
	Email     string
	Username  string
}

// IdentityProvider is the capability surface of the external identity
// provider. The provider owns the canonical role assignment; the local role
// column is only a cached projection of it.
type IdentityProvider interface {
	// ListRealmRoles returns the realm role catalog filtered to the known
	// enumeration. Implementations cache the result with a short TTL.
	ListRealmRoles(ctx context.Context) ([]domain.RealmRole, error)

	// ReplaceUserRoles removes the user's current non-reserved realm roles,
	// assigns the requested one and returns the resulting set for
	// verification.
	ReplaceUserRoles(ctx context.Context, remoteID string, role domain.RoleName) ([]domain.RoleName, error)

	// CreateUser creates the remote identity and returns its provider-assigned
	// id, which becomes the local row's subject.
	CreateUser(ctx context.Context, input RemoteUserInput) (string, error)

	// TriggerOnboardingEmail asks the provider to send its verification and
	// password-setup email for the given identity.
	TriggerOnboardingEmail(ctx context.Context, remoteID string) error

	DeleteUser(ctx context.Context, remoteID string) error
}
