package service

import (
	"context"
	"time"

	"github.com/layer-3/walletauth/core"
	"github.com/layer-3/walletauth/ports"
	"go.uber.org/zap"
)

// Auditor publishes authentication events. Publish failures are logged and
// never fail the operation that produced the event.
type Auditor struct {
	pub ports.EventPublisher
	log *zap.Logger
	now func() time.Time
}

// NewAuditor returns an Auditor publishing to pub
func NewAuditor(pub ports.EventPublisher, log *zap.Logger) *Auditor {
	return &Auditor{pub: pub, log: log, now: time.Now}
}

// Emit stamps the event time if unset and publishes it
func (a *Auditor) Emit(ctx context.Context, event core.AuthEvent) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = a.now().UTC()
	}
	if err := a.pub.Publish(ctx, event); err != nil {
		a.log.Warn("failed to publish auth event",
			zap.String("event", event.Event),
			zap.String("user_id", event.UserID),
			zap.Error(err),
		)
	}
}
