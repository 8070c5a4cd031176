package identity

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/medichron/medichron/internal/platform/apperr"
	"github.com/medichron/medichron/internal/platform/auth"
)

// -- Mock Repository --

type mockRepo struct {
	idents map[uuid.UUID]*Identity
}

func newMockRepo() *mockRepo {
	return &mockRepo{idents: make(map[uuid.UUID]*Identity)}
}

func (m *mockRepo) Create(_ context.Context, ident *Identity) error {
	for _, existing := range m.idents {
		if existing.Role == ident.Role && existing.Username == ident.Username {
			return fmt.Errorf("identities_role_username_key: %w", apperr.ErrConflict)
		}
		if existing.Role == ident.Role && existing.Email == ident.Email {
			return fmt.Errorf("identities_role_email_key: %w", apperr.ErrConflict)
		}
		if ident.LicenseNumber != nil && existing.LicenseNumber != nil &&
			*existing.LicenseNumber == *ident.LicenseNumber {
			return fmt.Errorf("identities_license_key: %w", apperr.ErrConflict)
		}
	}
	if ident.ID == uuid.Nil {
		ident.ID = uuid.New()
	}
	ident.CreatedAt = time.Now()
	ident.UpdatedAt = time.Now()
	copied := *ident
	m.idents[ident.ID] = &copied
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*Identity, error) {
	ident, ok := m.idents[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	copied := *ident
	return &copied, nil
}

func (m *mockRepo) GetByUsername(_ context.Context, role, username string) (*Identity, error) {
	for _, ident := range m.idents {
		if ident.Role == role && ident.Username == username {
			copied := *ident
			return &copied, nil
		}
	}
	return nil, apperr.ErrNotFound
}

func (m *mockRepo) GetByUID(_ context.Context, uid string) (*Identity, error) {
	for _, ident := range m.idents {
		if ident.UID != nil && *ident.UID == uid {
			copied := *ident
			return &copied, nil
		}
	}
	return nil, apperr.ErrNotFound
}

func (m *mockRepo) Update(_ context.Context, ident *Identity) error {
	if _, ok := m.idents[ident.ID]; !ok {
		return apperr.ErrNotFound
	}
	copied := *ident
	m.idents[ident.ID] = &copied
	return nil
}

func (m *mockRepo) Deactivate(_ context.Context, id uuid.UUID) error {
	ident, ok := m.idents[id]
	if !ok {
		return apperr.ErrNotFound
	}
	ident.Active = false
	return nil
}

func (m *mockRepo) List(_ context.Context, role string, limit, offset int) ([]*Identity, int, error) {
	var result []*Identity
	for _, ident := range m.idents {
		if ident.Role == role && ident.Active {
			copied := *ident
			result = append(result, &copied)
		}
	}
	return result, len(result), nil
}

func newTestService(repo Repository) *Service {
	hasher := auth.NewPasswordHasher(4)
	tokens := auth.NewTokenIssuer([]byte("test-signing-key-0123456789abcdef"), "medichron-test", time.Hour)
	return NewService(repo, hasher, tokens)
}

func patientRegistration(username string) *Registration {
	phone := "9876543210"
	return &Registration{
		Username:   username,
		Email:      username + "@example.com",
		Password:   "Str0ngPass",
		FirstName:  "Alice",
		LastName:   "Kumar",
		NationalID: "123456789012",
		Phone:      &phone,
	}
}

func practitionerRegistration(username string) *Registration {
	reg := patientRegistration(username)
	reg.Specialization = "cardiology"
	reg.LicenseNumber = "LIC-" + username
	return reg
}

// -- Register --

func TestRegisterPatient(t *testing.T) {
	svc := newTestService(newMockRepo())

	ident, err := svc.Register(context.Background(), auth.RolePatient, patientRegistration("alice"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ident.Active {
		t.Error("new identity not active")
	}
	if ident.UID == nil || *ident.UID == "" {
		t.Fatal("patient has no UID")
	}
	if _, err := uuid.Parse(*ident.UID); err != nil {
		t.Errorf("UID %q is not a random identifier", *ident.UID)
	}
	if ident.PasswordHash == "Str0ngPass" {
		t.Error("password stored as plaintext")
	}
	if ident.NationalID == nil || *ident.NationalID != "123456789012" {
		t.Error("national id not preserved for caller")
	}
	if ident.Specialization != nil || ident.LicenseNumber != nil {
		t.Error("patient carries practitioner extension fields")
	}
}

func TestRegisterPractitioner(t *testing.T) {
	svc := newTestService(newMockRepo())

	ident, err := svc.Register(context.Background(), auth.RolePractitioner, practitionerRegistration("drbob"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ident.UID != nil {
		t.Error("practitioner has a UID")
	}
	if ident.Specialization == nil || *ident.Specialization != "cardiology" {
		t.Error("specialization not stored")
	}
	if ident.LicenseNumber == nil {
		t.Error("license number not stored")
	}
}

func TestRegisterValidation(t *testing.T) {
	svc := newTestService(newMockRepo())
	ctx := context.Background()

	cases := []struct {
		name   string
		mutate func(*Registration)
	}{
		{"weak password", func(r *Registration) { r.Password = "weak" }},
		{"bad national id", func(r *Registration) { r.NationalID = "12345" }},
		{"bad email", func(r *Registration) { r.Email = "not-an-email" }},
		{"bad username", func(r *Registration) { r.Username = "a" }},
		{"missing name", func(r *Registration) { r.FirstName = "" }},
		{"bad phone", func(r *Registration) { bad := "123"; r.Phone = &bad }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			reg := patientRegistration("alice")
			tc.mutate(reg)
			_, err := svc.Register(ctx, auth.RolePatient, reg)
			if !apperr.IsValidation(err) {
				t.Errorf("expected ValidationError, got %v", err)
			}
		})
	}

	if _, err := svc.Register(ctx, "admin", patientRegistration("alice")); !apperr.IsValidation(err) {
		t.Errorf("expected ValidationError for unknown role, got %v", err)
	}

	reg := practitionerRegistration("drbob")
	reg.Specialization = ""
	if _, err := svc.Register(ctx, auth.RolePractitioner, reg); !apperr.IsValidation(err) {
		t.Errorf("expected ValidationError for missing specialization, got %v", err)
	}
}

func TestRegisterDuplicateUsername(t *testing.T) {
	svc := newTestService(newMockRepo())
	ctx := context.Background()

	if _, err := svc.Register(ctx, auth.RolePatient, patientRegistration("alice")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	reg := patientRegistration("alice")
	reg.Email = "alice2@example.com"
	_, err := svc.Register(ctx, auth.RolePatient, reg)
	if !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("expected ErrConflict, got %v", err)
	}
}

func TestRegisterSameUsernameAcrossRoles(t *testing.T) {
	svc := newTestService(newMockRepo())
	ctx := context.Background()

	if _, err := svc.Register(ctx, auth.RolePatient, patientRegistration("casey")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Username uniqueness is scoped per role; the same username may also
	// exist for a practitioner.
	if _, err := svc.Register(ctx, auth.RolePractitioner, practitionerRegistration("casey")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// -- Login --

func TestLogin(t *testing.T) {
	svc := newTestService(newMockRepo())
	ctx := context.Background()

	registered, err := svc.Register(ctx, auth.RolePatient, patientRegistration("alice"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	token, ident, err := svc.Login(ctx, auth.RolePatient, "alice", "Str0ngPass")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if token == "" {
		t.Fatal("empty token")
	}
	if ident.ID != registered.ID {
		t.Error("login returned a different identity")
	}

	claims, err := svc.tokens.Validate(token)
	if err != nil {
		t.Fatalf("issued token does not validate: %v", err)
	}
	if claims.Role != auth.RolePatient {
		t.Errorf("token role = %q, want patient", claims.Role)
	}
	if claims.SubjectID() != registered.ID {
		t.Error("token subject mismatch")
	}
}

func TestLoginFailures(t *testing.T) {
	svc := newTestService(newMockRepo())
	ctx := context.Background()

	if _, err := svc.Register(ctx, auth.RolePatient, patientRegistration("alice")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, _, err := svc.Login(ctx, auth.RolePatient, "alice", "WrongPass1"); !errors.Is(err, apperr.ErrUnauthorized) {
		t.Errorf("wrong password: expected ErrUnauthorized, got %v", err)
	}
	if _, _, err := svc.Login(ctx, auth.RolePatient, "nobody", "Str0ngPass"); !errors.Is(err, apperr.ErrUnauthorized) {
		t.Errorf("unknown user: expected ErrUnauthorized, got %v", err)
	}
	// Registered as a patient; a practitioner login with the same
	// credentials must not succeed.
	if _, _, err := svc.Login(ctx, auth.RolePractitioner, "alice", "Str0ngPass"); !errors.Is(err, apperr.ErrUnauthorized) {
		t.Errorf("cross-role login: expected ErrUnauthorized, got %v", err)
	}
}

func TestLoginDeactivatedAccount(t *testing.T) {
	svc := newTestService(newMockRepo())
	ctx := context.Background()

	ident, err := svc.Register(ctx, auth.RolePatient, patientRegistration("alice"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := svc.Deactivate(ctx, ident.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, _, err := svc.Login(ctx, auth.RolePatient, "alice", "Str0ngPass"); !errors.Is(err, apperr.ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized for deactivated account, got %v", err)
	}
}

// -- Profile --

func TestUpdateProfile(t *testing.T) {
	svc := newTestService(newMockRepo())
	ctx := context.Background()

	ident, err := svc.Register(ctx, auth.RolePatient, patientRegistration("alice"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	newEmail := "alice.new@example.com"
	newLocation := "Pune"
	updated, err := svc.UpdateProfile(ctx, ident.ID, &ProfileUpdate{Email: &newEmail, Location: &newLocation})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.Email != newEmail {
		t.Errorf("email = %q, want %q", updated.Email, newEmail)
	}
	if updated.Location == nil || *updated.Location != "Pune" {
		t.Error("location not updated")
	}
	if updated.UID == nil || *updated.UID != *ident.UID {
		t.Error("UID changed on profile update; it must be stable for the account's lifetime")
	}

	badEmail := "nope"
	if _, err := svc.UpdateProfile(ctx, ident.ID, &ProfileUpdate{Email: &badEmail}); !apperr.IsValidation(err) {
		t.Errorf("expected ValidationError, got %v", err)
	}
}

// -- QR & public lookup --

func TestLookupByUID(t *testing.T) {
	svc := newTestService(newMockRepo())
	ctx := context.Background()

	ident, err := svc.Register(ctx, auth.RolePatient, patientRegistration("alice"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	profile, err := svc.LookupByUID(ctx, *ident.UID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if profile.UID != *ident.UID {
		t.Error("uid mismatch")
	}
	if profile.FirstName != "Alice" {
		t.Errorf("first name = %q", profile.FirstName)
	}

	if _, err := svc.LookupByUID(ctx, "no-such-uid"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestLookupByUIDDeactivated(t *testing.T) {
	svc := newTestService(newMockRepo())
	ctx := context.Background()

	ident, err := svc.Register(ctx, auth.RolePatient, patientRegistration("alice"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := svc.Deactivate(ctx, ident.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := svc.LookupByUID(ctx, *ident.UID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected ErrNotFound for deactivated patient, got %v", err)
	}
}

func TestQRCode(t *testing.T) {
	svc := newTestService(newMockRepo())
	ctx := context.Background()

	patient, err := svc.Register(ctx, auth.RolePatient, patientRegistration("alice"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	png, err := svc.QRCode(ctx, patient.ID, 128)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(png) == 0 {
		t.Error("empty QR image")
	}

	practitioner, err := svc.Register(ctx, auth.RolePractitioner, practitionerRegistration("drbob"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.QRCode(ctx, practitioner.ID, 128); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected ErrNotFound for practitioner QR, got %v", err)
	}
}

func TestListPractitionersHidesNationalID(t *testing.T) {
	svc := newTestService(newMockRepo())
	ctx := context.Background()

	if _, err := svc.Register(ctx, auth.RolePractitioner, practitionerRegistration("drbob")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	idents, total, err := svc.ListPractitioners(ctx, 20, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 1 || len(idents) != 1 {
		t.Fatalf("listed %d/%d practitioners, want 1", len(idents), total)
	}
	if idents[0].NationalID != nil {
		t.Error("directory listing exposes national id")
	}
}
