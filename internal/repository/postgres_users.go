package repository

import (
	"context"
	"database/sql"
	"fmt"

	"smartinfra-data/internal/domain"
)

// PostgresUsersRepository 用户Repository实现
type PostgresUsersRepository struct {
	db *sql.DB
}

func NewPostgresUsersRepository(db *sql.DB) *PostgresUsersRepository {
	return &PostgresUsersRepository{db: db}
}

var _ UsersRepository = (*PostgresUsersRepository)(nil)

const userColumns = `user_id, external_id, name, email, role, created_at`

func scanUser(row interface{ Scan(...interface{}) error }) (*domain.User, error) {
	var u domain.User
	if err := row.Scan(&u.UserID, &u.ExternalID, &u.Name, &u.Email, &u.Role, &u.CreatedAt); err != nil {
		return nil, mapError(err)
	}
	return &u, nil
}

func (r *PostgresUsersRepository) CreateUser(ctx context.Context, u *domain.User) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (user_id, external_id, name, email, role, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		u.UserID, u.ExternalID, u.Name, u.Email, u.Role, u.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("create user: %w", mapError(err))
	}
	return nil
}

func (r *PostgresUsersRepository) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE user_id = $1`, userID)
	return scanUser(row)
}

func (r *PostgresUsersRepository) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	return scanUser(row)
}

func (r *PostgresUsersRepository) ListUsers(ctx context.Context, role *domain.Role, page, size int) ([]*domain.User, int, error) {
	args := []interface{}{}
	where := "TRUE"
	if role != nil {
		where = "role = $1"
		args = append(args, *role)
	}

	var total int
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM users WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, mapError(err)
	}

	argN := len(args)
	query := fmt.Sprintf(
		`SELECT `+userColumns+` FROM users WHERE `+where+`
		 ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, argN+1, argN+2)
	args = append(args, size, (page-1)*size)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, mapError(err)
	}
	defer rows.Close()

	var users []*domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		users = append(users, u)
	}
	return users, total, rows.Err()
}
