package repository

import (
	"context"

	"smartinfra-data/internal/domain"
)

// UsersRepository 用户Repository接口
type UsersRepository interface {
	CreateUser(ctx context.Context, u *domain.User) error
	GetUser(ctx context.Context, userID string) (*domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
	ListUsers(ctx context.Context, role *domain.Role, page, size int) ([]*domain.User, int, error)
}
