package repository

import (
	"context"

	"threpsi/internal/domain"
)

// UserRepository defines persistence operations for User entities.
type UserRepository interface {
	Init(ctx context.Context) error
	UsernameExists(ctx context.Context, username string) (bool, error)
	EmailExists(ctx context.Context, email string) (bool, error)
	Create(ctx context.Context, user *domain.User) (int64, error)
	ValidateCredentials(ctx context.Context, username, password string) (bool, error)
}
