package audit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Repository is the persistence contract for audit events.
//
// It MUST be append-only.
// No Update/Delete methods are provided by design.

type Repository interface {
	Append(ctx context.Context, e Event) error
}

// Service logs internal audit information.
//
// IMPORTANT:
// - Audit is internal-only. Do not expose these records to end users by default.
// - Callers should treat audit logging as best-effort.

type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

var ErrInvalidEvent = errors.New("audit: invalid event")

func (s *Service) Append(ctx context.Context, e Event) error {
	if s.repo == nil {
		return errors.New("audit: repository not configured")
	}
	if e.Type == "" {
		return ErrInvalidEvent
	}

	now := s.clock().UTC()
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	return s.repo.Append(ctx, e)
}

// LogControlCommand records a manual switch command issued over the API.
func (s *Service) LogControlCommand(ctx context.Context, actorUserID, actorRole, ip, command, channelID, extension string) error {
	return s.Append(ctx, Event{
		Type:        EventTypeControlCommand,
		ActorUserID: actorUserID,
		ActorRole:   actorRole,
		IPAddress:   ip,
		ChannelID:   channelID,
		Extension:   extension,
		Message:     command,
	})
}

// LogOperatorChange records a directory mutation.
func (s *Service) LogOperatorChange(ctx context.Context, actorUserID, actorRole, ip, operatorID, message string) error {
	return s.Append(ctx, Event{
		Type:        EventTypeOperatorChange,
		ActorUserID: actorUserID,
		ActorRole:   actorRole,
		IPAddress:   ip,
		OperatorID:  operatorID,
		Message:     message,
	})
}
