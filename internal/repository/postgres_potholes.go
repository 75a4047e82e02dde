package repository

import (
	"context"
	"database/sql"
	"fmt"

	"smartinfra-data/internal/domain"
)

// PostgresPotholesRepository 坑洞Repository实现
type PostgresPotholesRepository struct {
	db *sql.DB
}

func NewPostgresPotholesRepository(db *sql.DB) *PostgresPotholesRepository {
	return &PostgresPotholesRepository{db: db}
}

var _ PotholesRepository = (*PostgresPotholesRepository)(nil)

const potholeColumns = `pothole_id, latitude, longitude, image_url, detection_id,
	priority_score, priority_level, created_at, updated_at`

func scanPothole(row interface{ Scan(...interface{}) error }) (*domain.Pothole, error) {
	var p domain.Pothole
	if err := row.Scan(
		&p.PotholeID, &p.Latitude, &p.Longitude, &p.ImageURL, &p.DetectionID,
		&p.PriorityScore, &p.PriorityLevel, &p.CreatedAt, &p.UpdatedAt,
	); err != nil {
		return nil, mapError(err)
	}
	return &p, nil
}

func (r *PostgresPotholesRepository) CreatePothole(ctx context.Context, p *domain.Pothole) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO potholes (pothole_id, latitude, longitude, image_url, detection_id,
		        priority_score, priority_level, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		p.PotholeID, p.Latitude, p.Longitude, p.ImageURL, p.DetectionID,
		p.PriorityScore, p.PriorityLevel, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create pothole: %w", mapError(err))
	}
	return nil
}

func (r *PostgresPotholesRepository) GetPothole(ctx context.Context, potholeID string) (*domain.Pothole, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+potholeColumns+` FROM potholes WHERE pothole_id = $1`, potholeID)
	return scanPothole(row)
}

func (r *PostgresPotholesRepository) GetPotholeByDetection(ctx context.Context, detectionID string) (*domain.Pothole, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+potholeColumns+` FROM potholes WHERE detection_id = $1`, detectionID)
	return scanPothole(row)
}

func (r *PostgresPotholesRepository) ListPotholes(ctx context.Context, filters PotholeFilters, page, size int) ([]*domain.Pothole, int, error) {
	where := []string{"TRUE"}
	args := []interface{}{}
	argN := 1

	if filters.PriorityLevel != nil {
		where = append(where, fmt.Sprintf("priority_level = $%d", argN))
		args = append(args, string(*filters.PriorityLevel))
		argN++
	}
	if filters.Scored != nil {
		if *filters.Scored {
			where = append(where, "priority_score IS NOT NULL")
		} else {
			where = append(where, "priority_score IS NULL")
		}
	}

	whereClause := joinAnd(where)

	var total int
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM potholes WHERE `+whereClause, args...).Scan(&total); err != nil {
		return nil, 0, mapError(err)
	}

	// 已评分的按分数倒序排在前面
	query := fmt.Sprintf(
		`SELECT `+potholeColumns+` FROM potholes WHERE `+whereClause+`
		 ORDER BY priority_score DESC NULLS LAST, created_at DESC
		 LIMIT $%d OFFSET $%d`, argN, argN+1)
	args = append(args, size, (page-1)*size)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, mapError(err)
	}
	defer rows.Close()

	var items []*domain.Pothole
	for rows.Next() {
		p, err := scanPothole(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, p)
	}
	return items, total, rows.Err()
}

func (r *PostgresPotholesRepository) UpdatePriority(ctx context.Context, potholeID string, score float64, level domain.PriorityLevel) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE potholes SET priority_score = $1, priority_level = $2, updated_at = NOW()
		 WHERE pothole_id = $3`,
		score, string(level), potholeID,
	)
	if err != nil {
		return fmt.Errorf("update priority: %w", mapError(err))
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *PostgresPotholesRepository) UpsertRoadInfo(ctx context.Context, ri *domain.RoadInfo) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO road_info (road_info_id, pothole_id, road_name, road_type, speed_limit,
		        traffic_importance, priority_factor, osm_data, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 ON CONFLICT (pothole_id) DO UPDATE SET
		   road_name = EXCLUDED.road_name,
		   road_type = EXCLUDED.road_type,
		   speed_limit = EXCLUDED.speed_limit,
		   traffic_importance = EXCLUDED.traffic_importance,
		   priority_factor = EXCLUDED.priority_factor,
		   osm_data = EXCLUDED.osm_data,
		   updated_at = NOW()`,
		ri.RoadInfoID, ri.PotholeID, ri.RoadName, ri.RoadType, ri.SpeedLimit,
		ri.TrafficImportance, ri.PriorityFactor, nullableJSON(ri.OSMData), ri.CreatedAt, ri.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert road info: %w", mapError(err))
	}
	return nil
}

func (r *PostgresPotholesRepository) GetRoadInfoByPothole(ctx context.Context, potholeID string) (*domain.RoadInfo, error) {
	var ri domain.RoadInfo
	var osmData sql.NullString
	err := r.db.QueryRowContext(ctx,
		`SELECT road_info_id, pothole_id, road_name, road_type, speed_limit,
		        traffic_importance, priority_factor, osm_data, created_at, updated_at
		 FROM road_info WHERE pothole_id = $1`, potholeID,
	).Scan(
		&ri.RoadInfoID, &ri.PotholeID, &ri.RoadName, &ri.RoadType, &ri.SpeedLimit,
		&ri.TrafficImportance, &ri.PriorityFactor, &osmData, &ri.CreatedAt, &ri.UpdatedAt,
	)
	if err != nil {
		return nil, mapError(err)
	}
	if osmData.Valid {
		ri.OSMData = []byte(osmData.String)
	}
	return &ri, nil
}
