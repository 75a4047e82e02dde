package repository

import (
	"context"
	"database/sql"
	"fmt"

	"smartinfra-data/internal/domain"
)

// PostgresReportsRepository 市民上报Repository实现
type PostgresReportsRepository struct {
	db *sql.DB
}

func NewPostgresReportsRepository(db *sql.DB) *PostgresReportsRepository {
	return &PostgresReportsRepository{db: db}
}

var _ ReportsRepository = (*PostgresReportsRepository)(nil)

const reportColumns = `report_id, title, description, latitude, longitude, status,
	severity, image_url, user_id, created_at, updated_at`

func scanReport(row interface{ Scan(...interface{}) error }) (*domain.Report, error) {
	var rp domain.Report
	if err := row.Scan(
		&rp.ReportID, &rp.Title, &rp.Description, &rp.Latitude, &rp.Longitude,
		&rp.Status, &rp.Severity, &rp.ImageURL, &rp.UserID, &rp.CreatedAt, &rp.UpdatedAt,
	); err != nil {
		return nil, mapError(err)
	}
	return &rp, nil
}

func (r *PostgresReportsRepository) CreateReport(ctx context.Context, rp *domain.Report) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO reports (report_id, title, description, latitude, longitude,
		        status, severity, image_url, user_id, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		rp.ReportID, rp.Title, rp.Description, rp.Latitude, rp.Longitude,
		rp.Status, rp.Severity, rp.ImageURL, rp.UserID, rp.CreatedAt, rp.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create report: %w", mapError(err))
	}
	return nil
}

func (r *PostgresReportsRepository) GetReport(ctx context.Context, reportID string) (*domain.Report, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+reportColumns+` FROM reports WHERE report_id = $1`, reportID)
	return scanReport(row)
}

func (r *PostgresReportsRepository) ListReports(ctx context.Context, filters ReportFilters, page, size int) ([]*domain.Report, int, error) {
	where := []string{"TRUE"}
	args := []interface{}{}
	argN := 1

	if filters.Status != nil {
		where = append(where, fmt.Sprintf("status = $%d", argN))
		args = append(args, *filters.Status)
		argN++
	}
	if filters.UserID != nil {
		where = append(where, fmt.Sprintf("user_id = $%d", argN))
		args = append(args, *filters.UserID)
		argN++
	}

	whereClause := joinAnd(where)

	var total int
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM reports WHERE `+whereClause, args...).Scan(&total); err != nil {
		return nil, 0, mapError(err)
	}

	query := fmt.Sprintf(
		`SELECT `+reportColumns+` FROM reports WHERE `+whereClause+`
		 ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, argN, argN+1)
	args = append(args, size, (page-1)*size)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, mapError(err)
	}
	defer rows.Close()

	var reports []*domain.Report
	for rows.Next() {
		rp, err := scanReport(rows)
		if err != nil {
			return nil, 0, err
		}
		reports = append(reports, rp)
	}
	return reports, total, rows.Err()
}

func (r *PostgresReportsRepository) UpdateReportStatus(ctx context.Context, reportID string, status domain.ReportStatus, severity *int32) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE reports SET status = $1, severity = COALESCE($2, severity), updated_at = NOW()
		 WHERE report_id = $3`,
		status, severity, reportID,
	)
	if err != nil {
		return fmt.Errorf("update report status: %w", mapError(err))
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *PostgresReportsRepository) CreateMedia(ctx context.Context, m *domain.Media) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO media (media_id, report_id, media_url, media_type, uploaded_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		m.MediaID, m.ReportID, m.MediaURL, m.MediaType, m.UploadedAt,
	)
	if err != nil {
		return fmt.Errorf("create media: %w", mapError(err))
	}
	return nil
}

func (r *PostgresReportsRepository) GetMedia(ctx context.Context, mediaID string) (*domain.Media, error) {
	var m domain.Media
	err := r.db.QueryRowContext(ctx,
		`SELECT media_id, report_id, media_url, media_type, uploaded_at
		 FROM media WHERE media_id = $1`, mediaID,
	).Scan(&m.MediaID, &m.ReportID, &m.MediaURL, &m.MediaType, &m.UploadedAt)
	if err != nil {
		return nil, mapError(err)
	}
	return &m, nil
}

func (r *PostgresReportsRepository) ListMediaByReport(ctx context.Context, reportID string) ([]*domain.Media, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT media_id, report_id, media_url, media_type, uploaded_at
		 FROM media WHERE report_id = $1 ORDER BY uploaded_at ASC`, reportID)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var items []*domain.Media
	for rows.Next() {
		var m domain.Media
		if err := rows.Scan(&m.MediaID, &m.ReportID, &m.MediaURL, &m.MediaType, &m.UploadedAt); err != nil {
			return nil, mapError(err)
		}
		items = append(items, &m)
	}
	return items, rows.Err()
}
