package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"smartinfra-data/internal/domain"
)

// MemoryUsersRepository 内存实现（无数据库时使用，测试亦复用）
type MemoryUsersRepository struct {
	mu    sync.RWMutex
	users map[string]*domain.User
}

func NewMemoryUsersRepository() *MemoryUsersRepository {
	return &MemoryUsersRepository{users: make(map[string]*domain.User)}
}

var _ UsersRepository = (*MemoryUsersRepository)(nil)

func cloneUser(u *domain.User) *domain.User {
	c := *u
	return &c
}

func (r *MemoryUsersRepository) CreateUser(ctx context.Context, u *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[u.UserID]; ok {
		return fmt.Errorf("%w: users_pkey", domain.ErrConstraintViolation)
	}
	for _, existing := range r.users {
		if existing.Email == u.Email {
			return fmt.Errorf("%w: users_email_key", domain.ErrConstraintViolation)
		}
		if u.ExternalID.Valid && existing.ExternalID.Valid && existing.ExternalID.String == u.ExternalID.String {
			return fmt.Errorf("%w: users_external_id_key", domain.ErrConstraintViolation)
		}
	}
	r.users[u.UserID] = cloneUser(u)
	return nil
}

func (r *MemoryUsersRepository) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[userID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cloneUser(u), nil
}

func (r *MemoryUsersRepository) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.users {
		if u.Email == email {
			return cloneUser(u), nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *MemoryUsersRepository) ListUsers(ctx context.Context, role *domain.Role, page, size int) ([]*domain.User, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var all []*domain.User
	for _, u := range r.users {
		if role != nil && u.Role != *role {
			continue
		}
		all = append(all, cloneUser(u))
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})
	return paginate(all, page, size), len(all), nil
}

// paginate 对已排序的切片做内存分页
func paginate[T any](items []T, page, size int) []T {
	start := (page - 1) * size
	if start >= len(items) {
		return nil
	}
	end := start + size
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}
