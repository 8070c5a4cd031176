package records

import (
	"time"

	"github.com/google/uuid"
)

// VisitRecord is one clinical encounter. It is owned by exactly one patient
// and authored by exactly one practitioner; that pair never changes after
// creation.
type VisitRecord struct {
	ID             uuid.UUID `json:"id"`
	PatientID      uuid.UUID `json:"patient_id"`
	PractitionerID uuid.UUID `json:"practitioner_id"`
	VisitDate      time.Time `json:"visit_date"`
	Symptoms       string    `json:"symptoms"`
	Diagnosis      string    `json:"diagnosis"`
	Treatment      string    `json:"treatment"`
	Notes          string    `json:"notes,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// CreateInput is the practitioner-supplied payload for a new record. The
// author is taken from the authenticated caller, never from the body.
type CreateInput struct {
	PatientID uuid.UUID  `json:"patient_id"`
	VisitDate *time.Time `json:"visit_date"`
	Symptoms  string     `json:"symptoms"`
	Diagnosis string     `json:"diagnosis"`
	Treatment string     `json:"treatment"`
	Notes     string     `json:"notes"`
}

// UpdateInput carries the mutable fields. Nil leaves a field untouched; the
// owner and author references cannot be changed.
type UpdateInput struct {
	VisitDate *time.Time `json:"visit_date"`
	Symptoms  *string    `json:"symptoms"`
	Diagnosis *string    `json:"diagnosis"`
	Treatment *string    `json:"treatment"`
	Notes     *string    `json:"notes"`
}
