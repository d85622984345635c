package events

import (
	"context"

	"laundriku/agent/internal/domain"
)

// Publisher announces sync lifecycle events for dashboards or other outlet
// tooling. Publishing is best-effort; callers ignore errors beyond logging.
type Publisher interface {
	SyncCompleted(ctx context.Context, report domain.SyncReport) error
	PendingCountChanged(ctx context.Context, count int) error
	Close() error
}

// NoopPublisher is used when no Redis address is configured.
type NoopPublisher struct{}

func NewNoopPublisher() *NoopPublisher { return &NoopPublisher{} }

func (*NoopPublisher) SyncCompleted(context.Context, domain.SyncReport) error { return nil }
func (*NoopPublisher) PendingCountChanged(context.Context, int) error         { return nil }
func (*NoopPublisher) Close() error                                           { return nil }
