package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/letter-service/internal/events"
)

// AuditService records domain events to the structured log.
type AuditService struct {
	logger *zap.Logger
}

// NewAuditService creates the service.
func NewAuditService(logger *zap.Logger) *AuditService {
	return &AuditService{logger: nopLogger(logger).Named("audit")}
}

// Record writes one audit entry for event.
func (a *AuditService) Record(_ context.Context, event events.Event) error {
	fields := []zap.Field{
		zap.String("event_id", event.ID),
		zap.String("subject", event.Subject),
		zap.String("actor_id", event.Actor.UserID),
		zap.String("actor", event.Actor.Username),
		zap.String("actor_kind", string(event.Actor.Kind)),
		zap.Time("at", event.Timestamp),
	}
	if event.Actor.Sector != "" {
		fields = append(fields, zap.String("actor_sector", string(event.Actor.Sector)))
	}
	if event.Payload != nil {
		fields = append(fields, zap.Any("payload", event.Payload))
	}
	a.logger.Info(string(event.Type), fields...)
	return nil
}
