package contact

import (
	"context"

	"github.com/google/uuid"

	"github.com/medichron/medichron/internal/domain/identity"
	"github.com/medichron/medichron/internal/platform/apperr"
)

// maxBodyLength bounds the free-text body; the form is unauthenticated and
// must not become a cheap storage dump.
const maxBodyLength = 4000

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Submit stores an inbound message from the public contact form.
func (s *Service) Submit(ctx context.Context, in *SubmitInput) (*Message, error) {
	if in.Name == "" {
		return nil, apperr.Validationf("name is required")
	}
	if err := identity.ValidateEmail(in.Email); err != nil {
		return nil, err
	}
	if in.Body == "" {
		return nil, apperr.Validationf("body is required")
	}
	if len(in.Body) > maxBodyLength {
		return nil, apperr.Validationf("body exceeds %d characters", maxBodyLength)
	}

	msg := &Message{
		Name:    in.Name,
		Email:   in.Email,
		Subject: in.Subject,
		Body:    in.Body,
	}
	if err := s.repo.Create(ctx, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

// List returns messages for the practitioner inbox.
func (s *Service) List(ctx context.Context, pendingOnly bool, limit, offset int) ([]*Message, int, error) {
	return s.repo.List(ctx, pendingOnly, limit, offset)
}

// Resolve marks a message handled. Resolving twice is a no-op success; the
// message stays resolved.
func (s *Service) Resolve(ctx context.Context, id uuid.UUID) (*Message, error) {
	if err := s.repo.MarkResolved(ctx, id); err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, id)
}
