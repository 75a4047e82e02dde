package service

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"smartinfra-data/internal/config"
	"smartinfra-data/internal/domain"
	"smartinfra-data/internal/repository"
	"smartinfra-data/internal/stream"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// capturePublisher 捕获发布的事件，断言用
type capturePublisher struct {
	mu     sync.Mutex
	events []stream.TicketEvent
}

func (p *capturePublisher) PublishTicketEvent(_ context.Context, ev stream.TicketEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *capturePublisher) all() []stream.TicketEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]stream.TicketEvent{}, p.events...)
}

type testEnv struct {
	users      *repository.MemoryUsersRepository
	reports    *repository.MemoryReportsRepository
	detections *repository.MemoryDetectionsRepository
	potholes   *repository.MemoryPotholesRepository
	workers    *repository.MemoryWorkersRepository
	proofs     *repository.MemoryWorkProofsRepository
	tickets    *repository.MemoryTicketsRepository

	published *capturePublisher

	priority     PriorityService
	detectionSvc DetectionService
	ticketSvc    TicketService
	proofSvc     WorkProofService
	workerSvc    WorkerService
	reportSvc    ReportService
}

func defaultPriorityConfig() *config.PriorityConfig {
	return &config.PriorityConfig{
		PromotionThreshold:  0.6,
		PromotionClass:      "pothole",
		AutoVerifyThreshold: 0.85,
		BucketLow:           0.3,
		BucketMedium:        0.6,
		BucketHigh:          0.9,
	}
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := zap.NewNop()
	cfg := defaultPriorityConfig()

	env := &testEnv{
		users:      repository.NewMemoryUsersRepository(),
		reports:    repository.NewMemoryReportsRepository(),
		detections: repository.NewMemoryDetectionsRepository(),
		potholes:   repository.NewMemoryPotholesRepository(),
		workers:    repository.NewMemoryWorkersRepository(),
		proofs:     repository.NewMemoryWorkProofsRepository(),
		published:  &capturePublisher{},
	}
	env.tickets = repository.NewMemoryTicketsRepository(env.workers, env.proofs)

	env.priority = NewPriorityService(env.potholes, env.detections, cfg, logger)
	env.detectionSvc = NewDetectionService(env.detections, env.reports, env.potholes, cfg, logger)
	env.ticketSvc = NewTicketService(env.tickets, env.potholes, env.published, logger)
	env.proofSvc = NewWorkProofService(env.proofs, env.tickets, env.ticketSvc, logger)
	env.workerSvc = NewWorkerService(env.workers, env.tickets, logger)
	env.reportSvc = NewReportService(env.reports, logger)
	return env
}

// seedReportWithMedia 上报 + 一张图片媒体
func (e *testEnv) seedReportWithMedia(t *testing.T) (*domain.Report, *domain.Media) {
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
		MediaURL:   "https://cdn.example.com/pothole.jpg",
		MediaType:  domain.MediaImage,
		UploadedAt: now,
	}
	require.NoError(t, e.reports.CreateMedia(ctx, m))
	return rep, m
}

// seedPothole 检测 + 坑洞（绕过晋升逻辑直接建）
func (e *testEnv) seedPothole(t *testing.T, confidence float64) *domain.Pothole {
	t.Helper()
	ctx := context.Background()
	_, media := e.seedReportWithMedia(t)

	now := time.Now()
	d := &domain.Detection{
		DetectionID:   uuid.NewString(),
		MediaID:       media.MediaID,
		DetectedClass: "pothole",
		Confidence:    confidence,
		BBoxX:         10, BBoxY: 20, BBoxWidth: 100, BBoxHeight: 80,
		CreatedAt: now,
	}
	require.NoError(t, e.detections.CreateDetection(ctx, d))

	p := &domain.Pothole{
		PotholeID:   uuid.NewString(),
		Latitude:    40.7128,
		Longitude:   -74.0060,
		DetectionID: d.DetectionID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	require.NoError(t, e.potholes.CreatePothole(ctx, p))
	return p
}

// seedRoadInfo 按给定因子挂道路信息
func (e *testEnv) seedRoadInfo(t *testing.T, potholeID string, importance, factor float64, speedLimit *int32) {
	t.Helper()
	now := time.Now()
	ri := &domain.RoadInfo{
		RoadInfoID:        uuid.NewString(),
		PotholeID:         potholeID,
		TrafficImportance: importance,
		PriorityFactor:    factor,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if speedLimit != nil {
		ri.SpeedLimit = sql.NullInt32{Valid: true, Int32: *speedLimit}
	}
	require.NoError(t, e.potholes.UpsertRoadInfo(context.Background(), ri))
}

// seedWorker 在岗维修工
func (e *testEnv) seedWorker(t *testing.T, active bool) *domain.Worker {
	t.Helper()
	now := time.Now()
	w := &domain.Worker{
		WorkerID:   uuid.NewString(),
		Name:       "Sam Carter",
		Email:      uuid.NewString() + "@crew.example.com",
		EmployeeID: "EMP-" + uuid.NewString()[:8],
		IsActive:   active,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	require.NoError(t, e.workers.CreateWorker(context.Background(), w))
	return w
}

// seedScoredTicket 已评分坑洞 + DETECTED 工单
func (e *testEnv) seedScoredTicket(t *testing.T) *domain.Ticket {
	t.Helper()
	ctx := context.Background()
	p := e.seedPothole(t, 0.8)
	speed := int32(60)
	e.seedRoadInfo(t, p.PotholeID, 1.2, 1.0, &speed)
	_, err := e.priority.ScorePothole(ctx, p.PotholeID)
	require.NoError(t, err)

	ticket, err := e.ticketSvc.CreateTicket(ctx, CreateTicketRequest{PotholeID: p.PotholeID})
	require.NoError(t, err)
	return ticket
}

func int32Ptr(v int32) *int32       { return &v }
func strPtr(s string) *string       { return &s }
func float64Ptr(v float64) *float64 { return &v }
