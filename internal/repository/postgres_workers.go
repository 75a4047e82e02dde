package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"smartinfra-data/internal/domain"

	"github.com/google/uuid"
)

// PostgresWorkersRepository 维修工Repository实现
type PostgresWorkersRepository struct {
	db *sql.DB
}

func NewPostgresWorkersRepository(db *sql.DB) *PostgresWorkersRepository {
	return &PostgresWorkersRepository{db: db}
}

var _ WorkersRepository = (*PostgresWorkersRepository)(nil)

const workerColumns = `worker_id, user_id, name, email, phone, employee_id, is_active,
	current_latitude, current_longitude, last_location_update, created_at, updated_at`

func scanWorker(row interface{ Scan(...interface{}) error }) (*domain.Worker, error) {
	var w domain.Worker
	if err := row.Scan(
		&w.WorkerID, &w.UserID, &w.Name, &w.Email, &w.Phone, &w.EmployeeID, &w.IsActive,
		&w.CurrentLatitude, &w.CurrentLongitude, &w.LastLocationUpdate,
		&w.CreatedAt, &w.UpdatedAt,
	); err != nil {
		return nil, mapError(err)
	}
	return &w, nil
}

func (r *PostgresWorkersRepository) CreateWorker(ctx context.Context, w *domain.Worker) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO workers (worker_id, user_id, name, email, phone, employee_id, is_active,
		        current_latitude, current_longitude, last_location_update, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		w.WorkerID, w.UserID, w.Name, w.Email, w.Phone, w.EmployeeID, w.IsActive,
		w.CurrentLatitude, w.CurrentLongitude, w.LastLocationUpdate, w.CreatedAt, w.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create worker: %w", mapError(err))
	}
	return nil
}

func (r *PostgresWorkersRepository) GetWorker(ctx context.Context, workerID string) (*domain.Worker, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+workerColumns+` FROM workers WHERE worker_id = $1`, workerID)
	return scanWorker(row)
}

func (r *PostgresWorkersRepository) GetWorkerByEmployeeID(ctx context.Context, employeeID string) (*domain.Worker, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+workerColumns+` FROM workers WHERE employee_id = $1`, employeeID)
	return scanWorker(row)
}

func (r *PostgresWorkersRepository) ListWorkers(ctx context.Context, activeOnly bool, page, size int) ([]*domain.Worker, int, error) {
	where := "TRUE"
	if activeOnly {
		where = "is_active = TRUE"
	}

	var total int
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM workers WHERE `+where).Scan(&total); err != nil {
		return nil, 0, mapError(err)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+workerColumns+` FROM workers WHERE `+where+`
		 ORDER BY created_at DESC LIMIT $1 OFFSET $2`, size, (page-1)*size)
	if err != nil {
		return nil, 0, mapError(err)
	}
	defer rows.Close()

	var items []*domain.Worker
	for rows.Next() {
		w, err := scanWorker(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, w)
	}
	return items, total, rows.Err()
}

func (r *PostgresWorkersRepository) SetWorkerActive(ctx context.Context, workerID string, active bool) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE workers SET is_active = $1, updated_at = NOW() WHERE worker_id = $2`,
		active, workerID)
	if err != nil {
		return fmt.Errorf("set worker active: %w", mapError(err))
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// UpdateWorkerLocation 同一事务内更新当前位置并追加轨迹
func (r *PostgresWorkersRepository) UpdateWorkerLocation(ctx context.Context, workerID string, lat, lon float64, accuracy *float64, at time.Time) (*domain.WorkerLocation, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin worker location: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE workers SET current_latitude = $1, current_longitude = $2,
		        last_location_update = $3, updated_at = NOW()
		 WHERE worker_id = $4`,
		lat, lon, at, workerID,
	)
	if err != nil {
		return nil, fmt.Errorf("update worker location: %w", mapError(err))
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, domain.ErrNotFound
	}

	loc := &domain.WorkerLocation{
		LocationID: uuid.New().String(),
		WorkerID:   workerID,
		Latitude:   lat,
		Longitude:  lon,
		RecordedAt: at,
	}
	if accuracy != nil {
		loc.Accuracy = sql.NullFloat64{Valid: true, Float64: *accuracy}
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO worker_locations (location_id, worker_id, latitude, longitude, accuracy, recorded_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		loc.LocationID, loc.WorkerID, loc.Latitude, loc.Longitude, loc.Accuracy, loc.RecordedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("append worker location: %w", mapError(err))
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return loc, nil
}

func (r *PostgresWorkersRepository) ListWorkerLocations(ctx context.Context, workerID string, limit int) ([]*domain.WorkerLocation, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT location_id, worker_id, latitude, longitude, accuracy, recorded_at
		 FROM worker_locations WHERE worker_id = $1
		 ORDER BY recorded_at DESC LIMIT $2`, workerID, limit)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var items []*domain.WorkerLocation
	for rows.Next() {
		var l domain.WorkerLocation
		if err := rows.Scan(&l.LocationID, &l.WorkerID, &l.Latitude, &l.Longitude, &l.Accuracy, &l.RecordedAt); err != nil {
			return nil, mapError(err)
		}
		items = append(items, &l)
	}
	return items, rows.Err()
}
