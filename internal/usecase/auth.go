package usecase

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/ErlanBelekov/storefront/internal/domain"
	"github.com/ErlanBelekov/storefront/internal/repository"
)

// TokenIssuer is satisfied by *auth.TokenService.
type TokenIssuer interface {
	Issue(userID string) (string, error)
}

// PasswordHasher is satisfied by *auth.PasswordHasher.
type PasswordHasher interface {
	Hash(plaintext string) (string, error)
	Verify(plaintext, storedHash string) bool
}

type AuthUsecase struct {
	users       repository.UserRepository
	tokens      TokenIssuer
	hasher      PasswordHasher
	adminSecret []byte
}

func NewAuthUsecase(users repository.UserRepository, tokens TokenIssuer, hasher PasswordHasher, adminSecret string) *AuthUsecase {
	return &AuthUsecase{
		users:       users,
		tokens:      tokens,
		hasher:      hasher,
		adminSecret: []byte(adminSecret),
	}
}

type RegisterInput struct {
	Name     string
	Email    string
	Password string
}

// Session is what a successful register or login hands back to the client.
type Session struct {
	Token string
	User  *domain.User
}

func (in RegisterInput) validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return fmt.Errorf("%w: name required", domain.ErrValidation)
	}
	if _, err := mail.ParseAddress(domain.NormalizeEmail(in.Email)); err != nil {
		return fmt.Errorf("%w: invalid email", domain.ErrValidation)
	}
	if in.Password == "" {
		return fmt.Errorf("%w: password required", domain.ErrValidation)
	}
	return nil
}

// Register creates a customer account and signs the caller in.
func (u *AuthUsecase) Register(ctx context.Context, input RegisterInput) (*Session, error) {
	return u.register(ctx, input, domain.RoleCustomer)
}

// RegisterAdmin creates an administrator account. The shared admin secret is
// checked before anything else, so a wrong secret never reveals whether the
// email is taken.
func (u *AuthUsecase) RegisterAdmin(ctx context.Context, input RegisterInput, adminSecret string) (*Session, error) {
	if len(u.adminSecret) == 0 || subtle.ConstantTimeCompare([]byte(adminSecret), u.adminSecret) != 1 {
		return nil, domain.ErrInvalidAdminSecret
	}
	return u.register(ctx, input, domain.RoleAdministrator)
}

func (u *AuthUsecase) register(ctx context.Context, input RegisterInput, role domain.Role) (*Session, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}

	hash, err := u.hasher.Hash(input.Password)
	if err != nil {
		return nil, err
	}

	user, err := u.users.Create(ctx, &domain.User{
		Name:         strings.TrimSpace(input.Name),
		Email:        domain.NormalizeEmail(input.Email),
		PasswordHash: hash,
		Role:         role,
	})
	if err != nil {
		if errors.Is(err, domain.ErrDuplicateEmail) {
			return nil, domain.ErrDuplicateEmail
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	return u.session(user)
}

// Login answers domain.ErrInvalidCredentials for both an unknown email and a
// wrong password.
func (u *AuthUsecase) Login(ctx context.Context, email, password string) (*Session, error) {
	user, err := u.users.FindByEmail(ctx, email)
	if err != nil && !errors.Is(err, domain.ErrUserNotFound) {
		return nil, fmt.Errorf("find user: %w", err)
	}

	var storedHash string
	if user != nil {
		storedHash = user.PasswordHash
	}
	if !u.hasher.Verify(password, storedHash) || user == nil {
		return nil, domain.ErrInvalidCredentials
	}

	return u.session(user)
}

func (u *AuthUsecase) session(user *domain.User) (*Session, error) {
	token, err := u.tokens.Issue(user.ID)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	return &Session{Token: token, User: user}, nil
}
