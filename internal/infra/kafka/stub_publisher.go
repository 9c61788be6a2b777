package kafka

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/slamint/account-management/internal/core/domain"
	"github.com/slamint/account-management/internal/core/port"
)

// StubPublisher logs events instead of sending them to Kafka. Useful for development environments.
type StubPublisher struct {
	logger *zap.Logger
}

// NewStubPublisher constructs a development-friendly event publisher.
func NewStubPublisher(logger *zap.Logger) *StubPublisher {
	return &StubPublisher{logger: logger}
}

func (p *StubPublisher) logEvent(eventType, userID string, at time.Time, payload any) {
	if at.IsZero() {
		at = time.Now().UTC()
	}

	p.logger.Info("Stub event published",
		zap.String("event_type", eventType),
		zap.String("user_id", userID),
		zap.Time("timestamp", at.UTC()),
		zap.Any("payload", payload),
	)
}

// PublishUserProvisioned logs accmgmt.user.provisioned events.
func (p *StubPublisher) PublishUserProvisioned(_ context.Context, event domain.UserProvisionedEvent) error {
	payload := map[string]any{
		"user_id":        event.UserID,
		"sub":            event.Sub,
		"role":           event.Role,
		"provisioned_at": event.ProvisionedAt,
	}
	p.logEvent("accmgmt.user.provisioned", event.UserID, event.ProvisionedAt, payload)
	return nil
}

// PublishUserStatusChanged logs accmgmt.user.status.changed events.
func (p *StubPublisher) PublishUserStatusChanged(_ context.Context, event domain.UserStatusChangedEvent) error {
	payload := map[string]any{
		"user_id":    event.UserID,
		"status":     event.Status,
		"reason":     event.Reason,
		"changed_at": event.ChangedAt,
	}
	p.logEvent("accmgmt.user.status.changed", event.UserID, event.ChangedAt, payload)
	return nil
}

// PublishUserRoleChanged logs accmgmt.user.role.changed events.
func (p *StubPublisher) PublishUserRoleChanged(_ context.Context, event domain.UserRoleChangedEvent) error {
	payload := map[string]any{
		"user_id":    event.UserID,
		"old_role":   event.OldRole,
		"new_role":   event.NewRole,
		"changed_at": event.ChangedAt,
	}
	p.logEvent("accmgmt.user.role.changed", event.UserID, event.ChangedAt, payload)
	return nil
}

// PublishUserManagerChanged logs accmgmt.user.manager.changed events.
func (p *StubPublisher) PublishUserManagerChanged(_ context.Context, event domain.UserManagerChangedEvent) error {
	payload := map[string]any{
		"user_id":        event.UserID,
		"old_manager_id": event.OldManagerID,
		"new_manager_id": event.NewManagerID,
		"affected":       event.Affected,
		"changed_at":     event.ChangedAt,
	}
	p.logEvent("accmgmt.user.manager.changed", event.UserID, event.ChangedAt, payload)
	return nil
}

// PublishUserDepartmentChanged logs accmgmt.user.department.changed events.
func (p *StubPublisher) PublishUserDepartmentChanged(_ context.Context, event domain.UserDepartmentChangedEvent) error {
	payload := map[string]any{
		"user_id":       event.UserID,
		"department_id": event.DepartmentID,
		"changed_at":    event.ChangedAt,
	}
	p.logEvent("accmgmt.user.department.changed", event.UserID, event.ChangedAt, payload)
	return nil
}

// PublishUserDeleted logs accmgmt.user.deleted events.
func (p *StubPublisher) PublishUserDeleted(_ context.Context, event domain.UserDeletedEvent) error {
	payload := map[string]any{
		"user_id":    event.UserID,
		"sub":        event.Sub,
		"deleted_at": event.DeletedAt,
	}
	p.logEvent("accmgmt.user.deleted", event.UserID, event.DeletedAt, payload)
	return nil
}

// PublishUserInvited logs accmgmt.user.invited events.
func (p *StubPublisher) PublishUserInvited(_ context.Context, event domain.UserInvitedEvent) error {
	payload := map[string]any{
		"user_id":    event.UserID,
		"email":      event.Email,
		"role":       event.Role,
		"invited_at": event.InvitedAt,
	}
	p.logEvent("accmgmt.user.invited", event.UserID, event.InvitedAt, payload)
	return nil
}

var _ port.EventPublisher = (*StubPublisher)(nil)
