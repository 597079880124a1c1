package service

import (
	"context"
	"errors"
	"fmt"

	"threpsi/internal/domain"
	"threpsi/internal/repository"
)

var (
	// ErrInvalidCredentials indicates that provided login credentials are incorrect.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUsernameTaken is returned when registering with a username that is already in use.
	ErrUsernameTaken = errors.New("username already exists")
	// ErrEmailTaken is returned when registering with an email that is already in use.
	ErrEmailTaken = errors.New("email already registered")
)

// UserService describes user lifecycle operations.
type UserService interface {
	Register(ctx context.Context, username, email, password string) (*domain.User, error)
	Authenticate(ctx context.Context, username, password string) error
}

type userService struct {
	users repository.UserRepository
}

func NewUserService(users repository.UserRepository) UserService {
	return &userService{users: users}
}

// Register checks the username first and the email second, and only then inserts.
// A constraint violation from a concurrent registration maps to the same outcomes.
func (s *userService) Register(ctx context.Context, username, email, password string) (*domain.User, error) {
	taken, err := s.users.UsernameExists(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("check username: %w", err)
	}
	if taken {
		return nil, ErrUsernameTaken
	}

	taken, err = s.users.EmailExists(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("check email: %w", err)
	}
	if taken {
		return nil, ErrEmailTaken
	}

	user := &domain.User{
		Username: username,
		Email:    email,
		Password: password,
	}
	if _, err := s.users.Create(ctx, user); err != nil {
		switch {
		case errors.Is(err, domain.ErrDuplicateUsername):
			return nil, ErrUsernameTaken
		case errors.Is(err, domain.ErrDuplicateEmail):
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	return user, nil
}

func (s *userService) Authenticate(ctx context.Context, username, password string) error {
	ok, err := s.users.ValidateCredentials(ctx, username, password)
	if err != nil {
		return fmt.Errorf("validate credentials: %w", err)
	}
	if !ok {
		return ErrInvalidCredentials
	}
	return nil
}
