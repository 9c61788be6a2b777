package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/slamint/account-management/internal/core/domain"
	"github.com/slamint/account-management/internal/core/port"
	"github.com/slamint/account-management/internal/infra/config"
)

const schemaVersion = "1.0"

// EventPublisher implements port.EventPublisher using Kafka.
type EventPublisher struct {
	producer *Producer
	logger   *zap.Logger
	appCfg   config.AppSettings
}

// NewEventPublisher constructs a Kafka-backed event publisher.
func NewEventPublisher(producer *Producer, appCfg config.AppSettings, logger *zap.Logger) *EventPublisher {
	return &EventPublisher{producer: producer, appCfg: appCfg, logger: logger}
}

type envelopeMetadata map[string]string

type eventEnvelope struct {
	EventID   string           `json:"event_id"`
	EventType string           `json:"event_type"`
	UserID    string           `json:"user_id,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
	Version   string           `json:"version"`
	Payload   any              `json:"payload"`
	Metadata  envelopeMetadata `json:"metadata,omitempty"`
}

func (p *EventPublisher) publish(ctx context.Context, eventID, eventType, userID string, ts time.Time, payload any) error {
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	id := eventID
	if id == "" {
		id = uuid.NewString()
	}

	metadata := envelopeMetadata{
		"service":     p.appCfg.Name,
		"environment": p.appCfg.Env,
	}

	if span := trace.SpanFromContext(ctx); span != nil {
		if sc := span.SpanContext(); sc.IsValid() {
			metadata["trace_id"] = sc.TraceID().String()
		}
	}

	envelope := eventEnvelope{
		EventID:   id,
		EventType: eventType,
		UserID:    userID,
		Timestamp: ts.UTC(),
		Version:   schemaVersion,
		Payload:   payload,
		Metadata:  metadata,
	}

	bytes, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal event envelope: %w", err)
	}

	message := &sarama.ProducerMessage{
		Topic: p.producer.TopicName(eventType),
		Value: sarama.ByteEncoder(bytes),
	}

	select {
	case p.producer.Producer().Input() <- message:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PublishUserProvisioned publishes accmgmt.user.provisioned events.
func (p *EventPublisher) PublishUserProvisioned(ctx context.Context, event domain.UserProvisionedEvent) error {
	payload := struct {
		UserID        string    `json:"user_id"`
		Sub           string    `json:"sub"`
		Role          string    `json:"role"`
		ProvisionedAt time.Time `json:"provisioned_at"`
	}{
		UserID:        event.UserID,
		Sub:           event.Sub,
		Role:          string(event.Role),
		ProvisionedAt: event.ProvisionedAt.UTC(),
	}

	return p.publish(ctx, event.EventID, "accmgmt.user.provisioned", event.UserID, event.ProvisionedAt, payload)
}

// PublishUserStatusChanged publishes accmgmt.user.status.changed events.
func (p *EventPublisher) PublishUserStatusChanged(ctx context.Context, event domain.UserStatusChangedEvent) error {
	payload := struct {
		UserID    string    `json:"user_id"`
		Status    string    `json:"status"`
		Reason    string    `json:"reason,omitempty"`
		ChangedAt time.Time `json:"changed_at"`
	}{
		UserID:    event.UserID,
		Status:    string(event.Status),
		Reason:    event.Reason,
		ChangedAt: event.ChangedAt.UTC(),
	}

	return p.publish(ctx, event.EventID, "accmgmt.user.status.changed", event.UserID, event.ChangedAt, payload)
}

// PublishUserRoleChanged publishes accmgmt.user.role.changed events.
func (p *EventPublisher) PublishUserRoleChanged(ctx context.Context, event domain.UserRoleChangedEvent) error {
	payload := struct {
		UserID    string    `json:"user_id"`
		OldRole   string    `json:"old_role"`
		NewRole   string    `json:"new_role"`
		ChangedAt time.Time `json:"changed_at"`
	}{
		UserID:    event.UserID,
		OldRole:   string(event.OldRole),
		NewRole:   string(event.NewRole),
		ChangedAt: event.ChangedAt.UTC(),
	}

	return p.publish(ctx, event.EventID, "accmgmt.user.role.changed", event.UserID, event.ChangedAt, payload)
}

// PublishUserManagerChanged publishes accmgmt.user.manager.changed events.
// Affected is 1 for single reassignments and the moved-report count for bulk.
func (p *EventPublisher) PublishUserManagerChanged(ctx context.Context, event domain.UserManagerChangedEvent) error {
	payload := struct {
		UserID       string    `json:"user_id,omitempty"`
		OldManagerID string    `json:"old_manager_id,omitempty"`
		NewManagerID string    `json:"new_manager_id"`
		Affected     int64     `json:"affected"`
		ChangedAt    time.Time `json:"changed_at"`
	}{
		UserID:       event.UserID,
		OldManagerID: event.OldManagerID,
		NewManagerID: event.NewManagerID,
		Affected:     event.Affected,
		ChangedAt:    event.ChangedAt.UTC(),
	}

	return p.publish(ctx, event.EventID, "accmgmt.user.manager.changed", event.UserID, event.ChangedAt, payload)
}

// PublishUserDepartmentChanged publishes accmgmt.user.department.changed events.
func (p *EventPublisher) PublishUserDepartmentChanged(ctx context.Context, event domain.UserDepartmentChangedEvent) error {
	payload := struct {
		UserID       string    `json:"user_id"`
		DepartmentID string    `json:"department_id"`
		ChangedAt    time.Time `json:"changed_at"`
	}{
		UserID:       event.UserID,
		DepartmentID: event.DepartmentID,
		ChangedAt:    event.ChangedAt.UTC(),
	}

	return p.publish(ctx, event.EventID, "accmgmt.user.department.changed", event.UserID, event.ChangedAt, payload)
}

// PublishUserDeleted publishes accmgmt.user.deleted events.
func (p *EventPublisher) PublishUserDeleted(ctx context.Context, event domain.UserDeletedEvent) error {
	payload := struct {
		UserID    string    `json:"user_id"`
		Sub       string    `json:"sub"`
		DeletedAt time.Time `json:"deleted_at"`
	}{
		UserID:    event.UserID,
		Sub:       event.Sub,
		DeletedAt: event.DeletedAt.UTC(),
	}

	return p.publish(ctx, event.EventID, "accmgmt.user.deleted", event.UserID, event.DeletedAt, payload)
}

// PublishUserInvited publishes accmgmt.user.invited events.
func (p *EventPublisher) PublishUserInvited(ctx context.Context, event domain.UserInvitedEvent) error {
	payload := struct {
		UserID    string    `json:"user_id"`
		Email     string    `json:"email"`
		Role      string    `json:"role"`
		InvitedAt time.Time `json:"invited_at"`
	}{
		UserID:    event.UserID,
		Email:     event.Email,
		Role:      string(event.Role),
		InvitedAt: event.InvitedAt.UTC(),
	}

	return p.publish(ctx, event.EventID, "accmgmt.user.invited", event.UserID, event.InvitedAt, payload)
}

var _ port.EventPublisher = (*EventPublisher)(nil)
