// Package identity holds the unified patient/practitioner identity model:
// registration, login, profiles, QR lookup, and the encrypted national-ID
// field. Both roles share one record shape with role-specific extension
// fields, so validation and persistence are written once.
package identity

import (
	"time"

	"github.com/google/uuid"

	"github.com/medichron/medichron/internal/platform/auth"
)

// Identity is a registered patient or practitioner. The role discriminator
// decides which extension fields are populated: patients carry a UID for QR
// lookup, practitioners carry specialization and license number.
//
// NationalID holds plaintext only while the value is in memory; the
// repository encrypts it before every write and decrypts it after every
// read. The password digest never serializes.
type Identity struct {
	ID           uuid.UUID  `json:"id" db:"id"`
	Role         string     `json:"role" db:"role"`
	Username     string     `json:"username" db:"username"`
	Email        string     `json:"email" db:"email"`
	PasswordHash string     `json:"-" db:"password_hash"`
	FirstName    string     `json:"first_name" db:"first_name"`
	LastName     string     `json:"last_name" db:"last_name"`
	Phone        *string    `json:"phone,omitempty" db:"phone"`
	Location     *string    `json:"location,omitempty" db:"location"`
	DateOfBirth  *time.Time `json:"date_of_birth,omitempty" db:"date_of_birth"`
	NationalID   *string    `json:"national_id,omitempty" db:"national_id"`

	// Patient extension
	UID *string `json:"uid,omitempty" db:"uid"`

	// Practitioner extension
	Specialization *string `json:"specialization,omitempty" db:"specialization"`
	LicenseNumber  *string `json:"license_number,omitempty" db:"license_number"`

	Active    bool      `json:"active" db:"active"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// IsPatient reports whether the identity holds the patient role.
func (i *Identity) IsPatient() bool { return i.Role == auth.RolePatient }

// IsPractitioner reports whether the identity holds the practitioner role.
func (i *Identity) IsPractitioner() bool { return i.Role == auth.RolePractitioner }

// Registration is the input for creating a new identity.
type Registration struct {
	Username    string     `json:"username"`
	Email       string     `json:"email"`
	Password    string     `json:"password"`
	FirstName   string     `json:"first_name"`
	LastName    string     `json:"last_name"`
	NationalID  string     `json:"national_id"`
	Phone       *string    `json:"phone,omitempty"`
	Location    *string    `json:"location,omitempty"`
	DateOfBirth *time.Time `json:"date_of_birth,omitempty"`

	// Practitioner-only
	Specialization string `json:"specialization,omitempty"`
	LicenseNumber  string `json:"license_number,omitempty"`
}

// ProfileUpdate carries the mutable profile fields. Nil pointers leave the
// stored value untouched.
type ProfileUpdate struct {
	Email       *string    `json:"email,omitempty"`
	FirstName   *string    `json:"first_name,omitempty"`
	LastName    *string    `json:"last_name,omitempty"`
	Phone       *string    `json:"phone,omitempty"`
	Location    *string    `json:"location,omitempty"`
	DateOfBirth *time.Time `json:"date_of_birth,omitempty"`
}

// PublicProfile is the projection returned by the QR-scan lookup. It is the
// only publicly readable view of an identity and must stay free of sensitive
// fields: no email, phone, date of birth, or national-ID.
type PublicProfile struct {
	UID       string  `json:"uid"`
	FirstName string  `json:"first_name"`
	LastName  string  `json:"last_name"`
	Location  *string `json:"location,omitempty"`
}

// PublicProfile builds the QR-scan projection for a patient.
func (i *Identity) PublicProfile() *PublicProfile {
	p := &PublicProfile{
		FirstName: i.FirstName,
		LastName:  i.LastName,
		Location:  i.Location,
	}
	if i.UID != nil {
		p.UID = *i.UID
	}
	return p
}
