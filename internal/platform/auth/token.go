package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// The two roles the system issues tokens for. Patients and practitioners
// never share a credential; the role travels inside the token and is checked
// on every authenticated call.
const (
	RolePatient      = "patient"
	RolePractitioner = "practitioner"
)

var (
	// ErrTokenExpired signals a well-formed token past its expiry.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenInvalid signals a bad signature, malformed payload, or a
	// missing subject/role claim.
	ErrTokenInvalid = errors.New("token invalid")
)

// Claims is the payload of an issued bearer token.
type Claims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
}

// TokenIssuer mints and validates HS256 bearer tokens. Tokens are stateless;
// logout is handled by the RevocationStore keyed on the JTI claim.
type TokenIssuer struct {
	key    []byte
	issuer string
	ttl    time.Duration
}

func NewTokenIssuer(key []byte, issuer string, ttl time.Duration) *TokenIssuer {
	return &TokenIssuer{key: key, issuer: issuer, ttl: ttl}
}

// Issue produces a signed token asserting (subject, role) with issued-at,
// expiry, and a fresh JTI.
func (i *TokenIssuer) Issue(subject uuid.UUID, role string) (string, error) {
	if role != RolePatient && role != RolePractitioner {
		return "", fmt.Errorf("issue token: unknown role %q", role)
	}

	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.issuer,
			Subject:   subject.String(),
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
		Role: role,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.key)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Validate verifies signature and expiry and returns the claims. Failures
// collapse to ErrTokenExpired or ErrTokenInvalid; callers never see parser
// internals.
func (i *TokenIssuer) Validate(tokenStr string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims,
		func(t *jwt.Token) (interface{}, error) { return i.key, nil },
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(i.issuer),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}
	if !token.Valid {
		return nil, ErrTokenInvalid
	}
	if claims.Subject == "" || claims.ID == "" || claims.ExpiresAt == nil {
		return nil, ErrTokenInvalid
	}
	if claims.Role != RolePatient && claims.Role != RolePractitioner {
		return nil, ErrTokenInvalid
	}
	if _, err := uuid.Parse(claims.Subject); err != nil {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

// SubjectID returns the parsed subject UUID. Validate has already checked
// that the claim parses.
func (c *Claims) SubjectID() uuid.UUID {
	id, _ := uuid.Parse(c.Subject)
	return id
}
