package contact

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, msg *Message) error
	GetByID(ctx context.Context, id uuid.UUID) (*Message, error)
	// List returns messages, newest first. When pendingOnly is set,
	// resolved messages are skipped.
	List(ctx context.Context, pendingOnly bool, limit, offset int) ([]*Message, int, error)
	MarkResolved(ctx context.Context, id uuid.UUID) error
}
