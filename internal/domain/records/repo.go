package records

import (
	"context"

	"github.com/google/uuid"
)

// Filter narrows a record listing. Zero-valued fields are ignored.
type Filter struct {
	PatientID      uuid.UUID
	PractitionerID uuid.UUID
}

type Repository interface {
	Create(ctx context.Context, rec *VisitRecord) error
	GetByID(ctx context.Context, id uuid.UUID) (*VisitRecord, error)
	Update(ctx context.Context, rec *VisitRecord) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, f Filter, limit, offset int) ([]*VisitRecord, int, error)
}
