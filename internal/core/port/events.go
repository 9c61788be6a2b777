package port

import (
	"context"

	"github.com/slamint/account-management/internal/core/domain"
)

// EventPublisher emits user lifecycle audit events. Publishing is best-effort:
// callers log failures but never fail the business operation over them.
type EventPublisher interface {
	PublishUserProvisioned(ctx context.Context, event domain.UserProvisionedEvent) error
	PublishUserStatusChanged(ctx context.Context, event domain.UserStatusChangedEvent) error
	PublishUserRoleChanged(ctx context.Context, event domain.UserRoleChangedEvent) error
	PublishUserManagerChanged(ctx context.Context, event domain.UserManagerChangedEvent) error
	PublishUserDepartmentChanged(ctx context.Context, event domain.UserDepartmentChangedEvent) error
	PublishUserDeleted(ctx context.Context, event domain.UserDeletedEvent) error
	PublishUserInvited(ctx context.Context, event domain.UserInvitedEvent) error
}
