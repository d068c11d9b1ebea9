package event

import (
	"context"

	"github.com/retailcore/user-management/internal/domain"
)

// Publisher emits integration events. Publication is fire-and-forget from
// the protocol's perspective: a failure surfaces to the caller but does not
// roll back already-persisted state.
type Publisher interface {
	PublishUserCreated(ctx context.Context, event domain.UserCreatedEvent) error
}

// NoopPublisher discards events. Used by the memory driver and in tests.
type NoopPublisher struct{}

func (NoopPublisher) PublishUserCreated(ctx context.Context, event domain.UserCreatedEvent) error {
	return nil
}
