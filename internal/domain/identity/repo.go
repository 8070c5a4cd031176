package identity

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, ident *Identity) error
	GetByID(ctx context.Context, id uuid.UUID) (*Identity, error)
	GetByUsername(ctx context.Context, role, username string) (*Identity, error)
	GetByUID(ctx context.Context, uid string) (*Identity, error)
	Update(ctx context.Context, ident *Identity) error
	Deactivate(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, role string, limit, offset int) ([]*Identity, int, error)
}
