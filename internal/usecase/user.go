package usecase

import (
	"context"
	"fmt"

	"github.com/ErlanBelekov/storefront/internal/domain"
	"github.com/ErlanBelekov/storefront/internal/repository"
)

// UserUsecase backs the administrator user-management routes.
type UserUsecase struct {
	users repository.UserRepository
}

func NewUserUsecase(users repository.UserRepository) *UserUsecase {
	return &UserUsecase{users: users}
}

func (u *UserUsecase) List(ctx context.Context) ([]*domain.User, error) {
	users, err := u.users.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

func (u *UserUsecase) Get(ctx context.Context, id string) (*domain.User, error) {
	user, err := u.users.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

func (u *UserUsecase) SetRole(ctx context.Context, id string, role domain.Role) (*domain.User, error) {
	if _, err := domain.ParseRole(string(role)); err != nil {
		return nil, err
	}
	user, err := u.users.SetRole(ctx, id, role)
	if err != nil {
		return nil, fmt.Errorf("set role: %w", err)
	}
	return user, nil
}

// Delete removes the account only. Orders placed by the user are kept and
// keep pointing at the removed id.
func (u *UserUsecase) Delete(ctx context.Context, id string) error {
	if err := u.users.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return nil
}
