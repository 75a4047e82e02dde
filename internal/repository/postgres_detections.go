package repository

import (
	"context"
	"database/sql"
	"fmt"

	"smartinfra-data/internal/domain"
)

// PostgresDetectionsRepository 检测结果Repository实现
type PostgresDetectionsRepository struct {
	db *sql.DB
}

func NewPostgresDetectionsRepository(db *sql.DB) *PostgresDetectionsRepository {
	return &PostgresDetectionsRepository{db: db}
}

var _ DetectionsRepository = (*PostgresDetectionsRepository)(nil)

const detectionColumns = `detection_id, media_id, detected_class, confidence,
	bbox_x, bbox_y, bbox_width, bbox_height, frame_time, created_at`

func scanDetection(row interface{ Scan(...interface{}) error }) (*domain.Detection, error) {
	var d domain.Detection
	if err := row.Scan(
		&d.DetectionID, &d.MediaID, &d.DetectedClass, &d.Confidence,
		&d.BBoxX, &d.BBoxY, &d.BBoxWidth, &d.BBoxHeight, &d.FrameTime, &d.CreatedAt,
	); err != nil {
		return nil, mapError(err)
	}
	return &d, nil
}

func (r *PostgresDetectionsRepository) CreateDetection(ctx context.Context, d *domain.Detection) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO detections (detection_id, media_id, detected_class, confidence,
		        bbox_x, bbox_y, bbox_width, bbox_height, frame_time, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		d.DetectionID, d.MediaID, d.DetectedClass, d.Confidence,
		d.BBoxX, d.BBoxY, d.BBoxWidth, d.BBoxHeight, d.FrameTime, d.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("create detection: %w", mapError(err))
	}
	return nil
}

func (r *PostgresDetectionsRepository) GetDetection(ctx context.Context, detectionID string) (*domain.Detection, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+detectionColumns+` FROM detections WHERE detection_id = $1`, detectionID)
	return scanDetection(row)
}

func (r *PostgresDetectionsRepository) ListDetectionsByMedia(ctx context.Context, mediaID string) ([]*domain.Detection, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+detectionColumns+` FROM detections
		 WHERE media_id = $1 ORDER BY created_at ASC`, mediaID)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var items []*domain.Detection
	for rows.Next() {
		d, err := scanDetection(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, d)
	}
	return items, rows.Err()
}
