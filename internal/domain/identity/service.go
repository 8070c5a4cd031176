package identity

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/medichron/medichron/internal/platform/apperr"
	"github.com/medichron/medichron/internal/platform/auth"
	"github.com/medichron/medichron/internal/platform/qr"
)

type Service struct {
	repo   Repository
	hasher *auth.PasswordHasher
	tokens *auth.TokenIssuer
}

func NewService(repo Repository, hasher *auth.PasswordHasher, tokens *auth.TokenIssuer) *Service {
	return &Service{repo: repo, hasher: hasher, tokens: tokens}
}

// Register validates and creates a new identity of the given role. Patients
// are assigned a random UID; deriving it from name or phone fragments would
// make badge identifiers guessable.
func (s *Service) Register(ctx context.Context, role string, reg *Registration) (*Identity, error) {
	if role != auth.RolePatient && role != auth.RolePractitioner {
		return nil, apperr.Validationf("unknown role %q", role)
	}
	if err := ValidateUsername(reg.Username); err != nil {
		return nil, err
	}
	if err := ValidateEmail(reg.Email); err != nil {
		return nil, err
	}
	if err := ValidatePassword(reg.Password); err != nil {
		return nil, err
	}
	if err := ValidateNationalID(reg.NationalID); err != nil {
		return nil, err
	}
	if reg.FirstName == "" || reg.LastName == "" {
		return nil, apperr.Validationf("first_name and last_name are required")
	}
	if reg.Phone != nil {
		if err := ValidatePhone(*reg.Phone); err != nil {
			return nil, err
		}
	}
	if role == auth.RolePractitioner {
		if reg.Specialization == "" {
			return nil, apperr.Validationf("specialization is required")
		}
		if reg.LicenseNumber == "" {
			return nil, apperr.Validationf("license_number is required")
		}
	}

	digest, err := s.hasher.HashPassword(reg.Password)
	if err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}

	nationalID := reg.NationalID
	ident := &Identity{
		Role:         role,
		Username:     reg.Username,
		Email:        reg.Email,
		PasswordHash: digest,
		FirstName:    reg.FirstName,
		LastName:     reg.LastName,
		Phone:        reg.Phone,
		Location:     reg.Location,
		DateOfBirth:  reg.DateOfBirth,
		NationalID:   &nationalID,
		Active:       true,
	}

	switch role {
	case auth.RolePatient:
		uid := uuid.NewString()
		ident.UID = &uid
	case auth.RolePractitioner:
		ident.Specialization = &reg.Specialization
		ident.LicenseNumber = &reg.LicenseNumber
	}

	if err := s.repo.Create(ctx, ident); err != nil {
		return nil, err
	}
	return ident, nil
}

// Login verifies the credentials and issues a bearer token. Every failure
// collapses to Unauthorized so the response does not reveal whether the
// username exists.
func (s *Service) Login(ctx context.Context, role, username, password string) (string, *Identity, error) {
	if role != auth.RolePatient && role != auth.RolePractitioner {
		return "", nil, apperr.Validationf("unknown role %q", role)
	}

	ident, err := s.repo.GetByUsername(ctx, role, username)
	if err != nil {
		return "", nil, apperr.ErrUnauthorized
	}
	if !ident.Active {
		return "", nil, apperr.ErrUnauthorized
	}
	if !s.hasher.VerifyPassword(password, ident.PasswordHash) {
		return "", nil, apperr.ErrUnauthorized
	}

	token, err := s.tokens.Issue(ident.ID, ident.Role)
	if err != nil {
		return "", nil, fmt.Errorf("login: %w", err)
	}
	return token, ident, nil
}

// Profile returns the caller's own identity with the national-ID decrypted
// (or masked when decryption failed).
func (s *Service) Profile(ctx context.Context, subject uuid.UUID) (*Identity, error) {
	return s.repo.GetByID(ctx, subject)
}

// UpdateProfile applies the caller's changes to their own record. Role,
// username, UID, and license number are immutable after registration.
func (s *Service) UpdateProfile(ctx context.Context, subject uuid.UUID, upd *ProfileUpdate) (*Identity, error) {
	ident, err := s.repo.GetByID(ctx, subject)
	if err != nil {
		return nil, err
	}

	if upd.Email != nil {
		if err := ValidateEmail(*upd.Email); err != nil {
			return nil, err
		}
		ident.Email = *upd.Email
	}
	if upd.FirstName != nil {
		if *upd.FirstName == "" {
			return nil, apperr.Validationf("first_name must not be empty")
		}
		ident.FirstName = *upd.FirstName
	}
	if upd.LastName != nil {
		if *upd.LastName == "" {
			return nil, apperr.Validationf("last_name must not be empty")
		}
		ident.LastName = *upd.LastName
	}
	if upd.Phone != nil {
		if err := ValidatePhone(*upd.Phone); err != nil {
			return nil, err
		}
		ident.Phone = upd.Phone
	}
	if upd.Location != nil {
		ident.Location = upd.Location
	}
	if upd.DateOfBirth != nil {
		ident.DateOfBirth = upd.DateOfBirth
	}

	if err := s.repo.Update(ctx, ident); err != nil {
		return nil, err
	}
	return ident, nil
}

// Deactivate soft-deletes the caller's own account.
func (s *Service) Deactivate(ctx context.Context, subject uuid.UUID) error {
	return s.repo.Deactivate(ctx, subject)
}

// LookupByUID resolves a scanned QR code to the non-sensitive public
// projection of an active patient.
func (s *Service) LookupByUID(ctx context.Context, uid string) (*PublicProfile, error) {
	ident, err := s.repo.GetByUID(ctx, uid)
	if err != nil {
		return nil, err
	}
	if !ident.Active || !ident.IsPatient() {
		return nil, apperr.ErrNotFound
	}
	return ident.PublicProfile(), nil
}

// QRCode renders the caller's UID as a PNG badge. Only patients carry a UID.
func (s *Service) QRCode(ctx context.Context, subject uuid.UUID, size int) ([]byte, error) {
	ident, err := s.repo.GetByID(ctx, subject)
	if err != nil {
		return nil, err
	}
	if ident.UID == nil {
		return nil, apperr.ErrNotFound
	}
	return qr.EncodePNG(*ident.UID, size)
}

// ListPractitioners returns the active practitioner directory. The
// national-ID never appears in listings, decrypted or otherwise.
func (s *Service) ListPractitioners(ctx context.Context, limit, offset int) ([]*Identity, int, error) {
	idents, total, err := s.repo.List(ctx, auth.RolePractitioner, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	for _, ident := range idents {
		ident.NationalID = nil
	}
	return idents, total, nil
}
