package records

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/medichron/medichron/internal/domain/identity"
	"github.com/medichron/medichron/internal/platform/apperr"
	"github.com/medichron/medichron/internal/platform/auth"
)

// IdentityDirectory is the slice of the identity store the records service
// needs: resolving a record's target patient. The identity repository
// satisfies it.
type IdentityDirectory interface {
	GetByID(ctx context.Context, id uuid.UUID) (*identity.Identity, error)
}

type Service struct {
	repo       Repository
	identities IdentityDirectory
	guard      *auth.Guard
}

func NewService(repo Repository, identities IdentityDirectory, guard *auth.Guard) *Service {
	return &Service{repo: repo, identities: identities, guard: guard}
}

// Create stores a new visit record authored by the calling practitioner. The
// target must be an active patient; the author is always the caller.
func (s *Service) Create(ctx context.Context, author uuid.UUID, role string, in *CreateInput) (*VisitRecord, error) {
	if role != auth.RolePractitioner {
		return nil, apperr.ErrForbidden
	}
	if in.PatientID == uuid.Nil {
		return nil, apperr.Validationf("patient_id is required")
	}
	if in.Symptoms == "" && in.Diagnosis == "" {
		return nil, apperr.Validationf("at least one of symptoms or diagnosis is required")
	}

	patient, err := s.identities.GetByID(ctx, in.PatientID)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, apperr.Validationf("patient_id does not reference an active patient")
	}
	if err != nil {
		return nil, fmt.Errorf("record create: resolve patient: %w", err)
	}
	if !patient.IsPatient() || !patient.Active {
		return nil, apperr.Validationf("patient_id does not reference an active patient")
	}

	visitDate := time.Now()
	if in.VisitDate != nil {
		visitDate = *in.VisitDate
	}

	rec := &VisitRecord{
		PatientID:      in.PatientID,
		PractitionerID: author,
		VisitDate:      visitDate,
		Symptoms:       in.Symptoms,
		Diagnosis:      in.Diagnosis,
		Treatment:      in.Treatment,
		Notes:          in.Notes,
	}
	if err := s.repo.Create(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// Get returns one record after the ownership check: the owning patient, the
// authoring practitioner, or any practitioner when the view policy allows it.
func (s *Service) Get(ctx context.Context, subject uuid.UUID, role string, id uuid.UUID) (*VisitRecord, error) {
	rec, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.guard.RequireRecordView(subject, role, rec.PatientID, rec.PractitionerID); err != nil {
		return nil, err
	}
	return rec, nil
}

// List returns the records visible to the caller. Patients see their own
// records only; a request for another patient's records is Forbidden, not
// empty. Practitioners default to records they authored and may list a
// specific patient's chart when the view policy allows it.
func (s *Service) List(ctx context.Context, subject uuid.UUID, role string, patientID uuid.UUID, limit, offset int) ([]*VisitRecord, int, error) {
	var f Filter
	switch role {
	case auth.RolePatient:
		if patientID != uuid.Nil && patientID != subject {
			return nil, 0, apperr.ErrForbidden
		}
		f.PatientID = subject
	case auth.RolePractitioner:
		if patientID != uuid.Nil {
			if s.guard.ViewPolicy() != auth.RecordViewAnyPractitioner {
				f.PractitionerID = subject
			}
			f.PatientID = patientID
		} else {
			f.PractitionerID = subject
		}
	default:
		return nil, 0, apperr.ErrForbidden
	}
	return s.repo.List(ctx, f, limit, offset)
}

// Update applies the mutable fields. Only the authoring practitioner may
// update a record; the owner/author pair never changes.
func (s *Service) Update(ctx context.Context, subject uuid.UUID, role string, id uuid.UUID, in *UpdateInput) (*VisitRecord, error) {
	rec, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.guard.RequireRecordModify(subject, role, rec.PractitionerID); err != nil {
		return nil, err
	}

	if in.VisitDate != nil {
		rec.VisitDate = *in.VisitDate
	}
	if in.Symptoms != nil {
		rec.Symptoms = *in.Symptoms
	}
	if in.Diagnosis != nil {
		rec.Diagnosis = *in.Diagnosis
	}
	if in.Treatment != nil {
		rec.Treatment = *in.Treatment
	}
	if in.Notes != nil {
		rec.Notes = *in.Notes
	}
	if rec.Symptoms == "" && rec.Diagnosis == "" {
		return nil, apperr.Validationf("at least one of symptoms or diagnosis is required")
	}

	if err := s.repo.Update(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// Delete removes a record. Only the authoring practitioner may delete.
func (s *Service) Delete(ctx context.Context, subject uuid.UUID, role string, id uuid.UUID) error {
	rec, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.guard.RequireRecordModify(subject, role, rec.PractitionerID); err != nil {
		return err
	}
	return s.repo.Delete(ctx, rec.ID)
}
