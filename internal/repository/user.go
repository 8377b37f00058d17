package repository

import (
	"context"

	"github.com/ErlanBelekov/storefront/internal/domain"
)

// UserRepository is the credential store. Emails are compared in their
// normalized form; Create fails with domain.ErrDuplicateEmail and writes
// nothing when the email is taken.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) (*domain.User, error)
	FindByID(ctx context.Context, id string) (*domain.User, error)
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	List(ctx context.Context) ([]*domain.User, error)
	SetRole(ctx context.Context, id string, role domain.Role) (*domain.User, error)
	Delete(ctx context.Context, id string) error
}
