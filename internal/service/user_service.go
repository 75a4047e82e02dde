package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"smartinfra-data/internal/domain"
	"smartinfra-data/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// UserService 用户服务接口
type UserService interface {
	CreateUser(ctx context.Context, req CreateUserRequest) (*domain.User, error)
	GetUser(ctx context.Context, userID string) (*domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
	ListUsers(ctx context.Context, role *domain.Role, page, size int) (*ListUsersResponse, error)
}

// CreateUserRequest 用户创建请求
type CreateUserRequest struct {
	Email      string
	Name       *string
	Role       domain.Role // 缺省 CITIZEN
	ExternalID *string     // 外部认证系统的 ID
}

// ListUsersResponse 用户列表响应
type ListUsersResponse struct {
	Items []*domain.User
	Total int
}

type userService struct {
	usersRepo repository.UsersRepository
	logger    *zap.Logger
}

// NewUserService 创建 UserService 实例
func NewUserService(usersRepo repository.UsersRepository, logger *zap.Logger) UserService {
	return &userService{usersRepo: usersRepo, logger: logger}
}

func (s *userService) CreateUser(ctx context.Context, req CreateUserRequest) (*domain.User, error) {
	if req.Email == "" {
		return nil, fmt.Errorf("%w: email is required", domain.ErrInvalidInput)
	}
	role := req.Role
	if role == "" {
		role = domain.RoleCitizen
	}
	switch role {
	case domain.RoleAdmin, domain.RoleCitizen, domain.RoleWorker:
	default:
		return nil, fmt.Errorf("%w: unknown role %q", domain.ErrInvalidInput, role)
	}

	u := &domain.User{
		UserID:    uuid.NewString(),
		Email:     req.Email,
		Role:      role,
		CreatedAt: time.Now(),
	}
	if req.Name != nil {
		u.Name = sql.NullString{Valid: true, String: *req.Name}
	}
	if req.ExternalID != nil {
		u.ExternalID = sql.NullString{Valid: true, String: *req.ExternalID}
	}

	if err := s.usersRepo.CreateUser(ctx, u); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

func (s *userService) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	return s.usersRepo.GetUser(ctx, userID)
}

func (s *userService) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	return s.usersRepo.GetUserByEmail(ctx, email)
}

func (s *userService) ListUsers(ctx context.Context, role *domain.Role, page, size int) (*ListUsersResponse, error) {
	if page < 1 {
		page = 1
	}
	if size < 1 || size > 200 {
		size = 20
	}
	items, total, err := s.usersRepo.ListUsers(ctx, role, page, size)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return &ListUsersResponse{Items: items, Total: total}, nil
}
