package repository

import (
	"context"

	"smartinfra-data/internal/domain"
)

// DetectionsRepository 检测结果Repository接口
type DetectionsRepository interface {
	CreateDetection(ctx context.Context, d *domain.Detection) error
	GetDetection(ctx context.Context, detectionID string) (*domain.Detection, error)
	ListDetectionsByMedia(ctx context.Context, mediaID string) ([]*domain.Detection, error)
}
