package contact

import (
	"time"

	"github.com/google/uuid"
)

// Message is an inbound contact-form submission. It arrives on the public,
// unauthenticated surface and carries no identity linkage.
type Message struct {
	ID         uuid.UUID  `json:"id"`
	Name       string     `json:"name"`
	Email      string     `json:"email"`
	Subject    string     `json:"subject"`
	Body       string     `json:"body"`
	Resolved   bool       `json:"resolved"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// SubmitInput is the public form payload.
type SubmitInput struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}
