package usecase

import (
	"context"
	"fmt"
	"time"

	uuid "github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/slamint/account-management/internal/core/domain"
	"github.com/slamint/account-management/internal/core/port"
)

// Identity is the verified token material handed to provisioning: the subject
// plus whatever profile claims the token carried.
type Identity struct {
	Sub      string
	Email    *string
	Name     *string
	Username *string
	Roles    []string
}

// ProvisioningService owns the ensure-user-exists routine that runs on every
// authenticated request before the target operation.
type ProvisioningService struct {
	users  port.UserRepository
	events port.EventPublisher
	logger *zap.Logger
	now    func() time.Time
}

// NewProvisioningService constructs a ProvisioningService instance.
func NewProvisioningService(users port.UserRepository, events port.EventPublisher, logger *zap.Logger) *ProvisioningService {
	return &ProvisioningService{
		users:  users,
		events: events,
		logger: logger,
		// timestamptz round-trips at microsecond precision, and first-login
		// detection compares the stored timestamp against this one.
		now: func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
	}
}

// EnsureFromIdentity makes sure a local row exists for the subject and returns
// it along with whether this call observed the first login. Safe under
// concurrent first logins: the insert's uniqueness constraint is the sole
// correctness mechanism, and the follow-up update is first-write-wins per
// field.
func (s *ProvisioningService) EnsureFromIdentity(ctx context.Context, identity Identity) (*domain.User, bool, error) {
	if identity.Sub == "" {
		return nil, false, fmt.Errorf("subject is required")
	}

	now := s.now()
	role := domain.EffectiveRole(identity.Roles)

	seed := domain.User{
		ID:           uuid.NewString(),
		Sub:          identity.Sub,
		Email:        identity.Email,
		Name:         identity.Name,
		Username:     identity.Username,
		Role:         role,
		Status:       domain.StatusActive,
		FirstLoginAt: &now,
		LastLoginAt:  &now,
	}

	// Conflict on sub is the expected concurrent-login path, never an error.
	if err := s.users.InsertProvisional(ctx, seed); err != nil {
		return nil, false, fmt.Errorf("insert provisional user: %w", err)
	}

	user, err := s.users.TouchLogin(ctx, identity.Sub, now, identity.Email, identity.Name, identity.Username)
	if err != nil {
		return nil, false, fmt.Errorf("touch login: %w", err)
	}

	// The token is the provider's own signed assertion, so a differing stored
	// role is just a stale cache entry.
	if len(identity.Roles) > 0 && user.Role != role {
		if err := s.users.UpdateRole(ctx, user.ID, role); err != nil {
			return nil, false, fmt.Errorf("refresh cached role: %w", err)
		}
		user.Role = role
	}

	isFirstLogin := user.FirstLoginAt != nil && user.FirstLoginAt.Equal(now)

	if isFirstLogin {
		event := domain.UserProvisionedEvent{
			UserID:        user.ID,
			Sub:           user.Sub,
			Role:          user.Role,
			ProvisionedAt: now,
		}
		if err := s.events.PublishUserProvisioned(ctx, event); err != nil {
			s.logger.Warn("failed to publish user provisioned event",
				zap.String("user_id", user.ID),
				zap.Error(err),
			)
		}
	}

	return user, isFirstLogin, nil
}
