package events

import (
	"context"

	"github.com/layer-3/walletauth/core"
	"github.com/layer-3/walletauth/ports"
	"go.uber.org/zap"
)

// LogPublisher writes audit events to the service log
type LogPublisher struct {
	log *zap.Logger
}

var _ ports.EventPublisher = (*LogPublisher)(nil)

// NewLogPublisher returns a publisher logging under the "audit" name
func NewLogPublisher(log *zap.Logger) *LogPublisher {
	return &LogPublisher{log: log.Named("audit")}
}

func (p *LogPublisher) Publish(_ context.Context, event core.AuthEvent) error {
	fields := []zap.Field{
		zap.String("event", event.Event),
		zap.String("user_id", event.UserID),
		zap.Time("occurred_at", event.OccurredAt),
	}
	if len(event.Metadata) > 0 {
		fields = append(fields, zap.Any("metadata", event.Metadata))
	}
	if event.Error != "" {
		fields = append(fields, zap.String("error", event.Error))
		p.log.Warn("auth event", fields...)
		return nil
	}
	p.log.Info("auth event", fields...)
	return nil
}
