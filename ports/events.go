package ports

import (
	"context"

	"github.com/layer-3/walletauth/core"
)

// EventPublisher is the audit sink for authentication events
type EventPublisher interface {
	Publish(ctx context.Context, event core.AuthEvent) error
}
