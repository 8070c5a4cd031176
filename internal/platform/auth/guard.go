package auth

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/medichron/medichron/internal/platform/apperr"
)

// RecordViewPolicy decides which practitioners may read a visit record they
// did not author. It is a single named flag, set once from configuration,
// so the choice is visible and reversible rather than buried in handler
// conditionals.
type RecordViewPolicy string

const (
	// RecordViewAnyPractitioner lets any practitioner read any visit
	// record. This mirrors how clinics share charts and is the default.
	RecordViewAnyPractitioner RecordViewPolicy = "any-practitioner"
	// RecordViewAuthorOnly restricts practitioners to records they
	// authored.
	RecordViewAuthorOnly RecordViewPolicy = "author-only"
)

// ParseRecordViewPolicy validates a configured policy value.
func ParseRecordViewPolicy(s string) (RecordViewPolicy, error) {
	switch RecordViewPolicy(s) {
	case RecordViewAnyPractitioner, RecordViewAuthorOnly:
		return RecordViewPolicy(s), nil
	default:
		return "", fmt.Errorf("unknown record view policy %q (want %q or %q)",
			s, RecordViewAnyPractitioner, RecordViewAuthorOnly)
	}
}

// Guard makes ownership decisions for an authenticated (subject, role)
// against a target resource. Role gating for whole route groups is
// RequireRole's job; the Guard handles the per-resource checks that need the
// resource's owner and author ids.
type Guard struct {
	viewPolicy RecordViewPolicy
}

func NewGuard(viewPolicy RecordViewPolicy) *Guard {
	return &Guard{viewPolicy: viewPolicy}
}

// ViewPolicy returns the configured record view policy.
func (g *Guard) ViewPolicy() RecordViewPolicy { return g.viewPolicy }

// RequireSelf allows access to a self-scoped resource (own profile, own QR
// code, own record list) only when the subject is the owner.
func (g *Guard) RequireSelf(subject, owner uuid.UUID) error {
	if subject != owner {
		return apperr.ErrForbidden
	}
	return nil
}

// RequireRecordView decides whether the subject may read a visit record.
// The owning patient may always read it; a practitioner may read it if they
// authored it, or unconditionally under RecordViewAnyPractitioner.
func (g *Guard) RequireRecordView(subject uuid.UUID, role string, ownerID, authorID uuid.UUID) error {
	switch role {
	case RolePatient:
		if subject == ownerID {
			return nil
		}
	case RolePractitioner:
		if g.viewPolicy == RecordViewAnyPractitioner || subject == authorID {
			return nil
		}
	}
	return apperr.ErrForbidden
}

// RequireRecordModify decides whether the subject may update or delete a
// visit record: only the authoring practitioner may.
func (g *Guard) RequireRecordModify(subject uuid.UUID, role string, authorID uuid.UUID) error {
	if role != RolePractitioner || subject != authorID {
		return apperr.ErrForbidden
	}
	return nil
}
