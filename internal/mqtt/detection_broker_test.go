package mqtt

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"smartinfra-data/internal/config"
	"smartinfra-data/internal/domain"
	"smartinfra-data/internal/repository"
	"smartinfra-data/internal/service"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type brokerEnv struct {
	broker     *DetectionBroker
	reports    *repository.MemoryReportsRepository
	detections *repository.MemoryDetectionsRepository
	potholes   *repository.MemoryPotholesRepository
}

func newBrokerEnv(t *testing.T) *brokerEnv {
	t.Helper()
	logger := zap.NewNop()
	reports := repository.NewMemoryReportsRepository()
	detections := repository.NewMemoryDetectionsRepository()
	potholes := repository.NewMemoryPotholesRepository()

	svc := service.NewDetectionService(detections, reports, potholes, &config.PriorityConfig{
		PromotionThreshold:  0.6,
		PromotionClass:      "pothole",
		AutoVerifyThreshold: 0.85,
		BucketLow:           0.3,
		BucketMedium:        0.6,
		BucketHigh:          0.9,
	}, logger)

	return &brokerEnv{
		broker:     NewDetectionBroker(svc, logger),
		reports:    reports,
		detections: detections,
		potholes:   potholes,
	}
}

func (e *brokerEnv) seedMedia(t *testing.T) *domain.Media {
	t.Helper()
	ctx := context.Background()
	now := time.Now()
	rep := &domain.Report{
		ReportID:  uuid.NewString(),
		Latitude:  40.7128,
		Longitude: -74.0060,
		Status:    domain.ReportPending,
		ImageURL:  sql.NullString{Valid: true, String: "https://cdn.example.com/pothole.jpg"},
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, e.reports.CreateReport(ctx, rep))
	m := &domain.Media{
		MediaID:    uuid.NewString(),
		ReportID:   rep.ReportID,
		MediaURL:   rep.ImageURL.String,
		MediaType:  domain.MediaImage,
		UploadedAt: now,
	}
	require.NoError(t, e.reports.CreateMedia(ctx, m))
	return m
}

func TestHandleMessage_SingleObject(t *testing.T) {
	env := newBrokerEnv(t)
	media := env.seedMedia(t)

	payload := fmt.Sprintf(
		`{"media_id":%q,"confidence":0.91,"bbox_x":10,"bbox_y":20,"bbox_width":200,"bbox_height":120}`,
		media.MediaID)
	require.NoError(t, env.broker.HandleMessage("ml/detections", []byte(payload)))

	items, err := env.detections.ListDetectionsByMedia(context.Background(), media.MediaID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 0.91, items[0].Confidence)

	// 高置信度自动晋升
	_, err = env.potholes.GetPotholeByDetection(context.Background(), items[0].DetectionID)
	assert.NoError(t, err)
}

func TestHandleMessage_Array(t *testing.T) {
	env := newBrokerEnv(t)
	m1 := env.seedMedia(t)
	m2 := env.seedMedia(t)

	payload := fmt.Sprintf(
		`[{"media_id":%q,"confidence":0.7,"bbox_width":100,"bbox_height":80},
		  {"media_id":%q,"confidence":0.3,"bbox_width":50,"bbox_height":40}]`,
		m1.MediaID, m2.MediaID)
	require.NoError(t, env.broker.HandleMessage("ml/detections", []byte(payload)))

	items1, err := env.detections.ListDetectionsByMedia(context.Background(), m1.MediaID)
	require.NoError(t, err)
	assert.Len(t, items1, 1)
	items2, err := env.detections.ListDetectionsByMedia(context.Background(), m2.MediaID)
	require.NoError(t, err)
	assert.Len(t, items2, 1)
}

// 单条失败不中断整批
func TestHandleMessage_PartialFailure(t *testing.T) {
	env := newBrokerEnv(t)
	media := env.seedMedia(t)

	payload := fmt.Sprintf(
		`[{"media_id":"missing","confidence":0.7},
		  {"media_id":%q,"confidence":0.7,"bbox_width":100,"bbox_height":80}]`,
		media.MediaID)
	require.NoError(t, env.broker.HandleMessage("ml/detections", []byte(payload)))

	items, err := env.detections.ListDetectionsByMedia(context.Background(), media.MediaID)
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestHandleMessage_BadPayload(t *testing.T) {
	env := newBrokerEnv(t)
	assert.Error(t, env.broker.HandleMessage("ml/detections", []byte(`not json`)))
}
