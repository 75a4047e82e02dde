package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"smartinfra-data/internal/config"
	"smartinfra-data/internal/repository"
	"smartinfra-data/internal/service"
	"smartinfra-data/internal/store"
	"smartinfra-data/internal/stream"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// newTestRouter 内存仓储 + Overpass 桩，完整路由
func newTestRouter(t *testing.T) *Router {
	t.Helper()
	logger := zap.NewNop()
	cfg := &config.PriorityConfig{
		PromotionThreshold:  0.6,
		PromotionClass:      "pothole",
		AutoVerifyThreshold: 0.85,
		BucketLow:           0.3,
		BucketMedium:        0.6,
		BucketHigh:          0.9,
	}

	users := repository.NewMemoryUsersRepository()
	reports := repository.NewMemoryReportsRepository()
	detections := repository.NewMemoryDetectionsRepository()
	potholes := repository.NewMemoryPotholesRepository()
	workers := repository.NewMemoryWorkersRepository()
	proofs := repository.NewMemoryWorkProofsRepository()
	tickets := repository.NewMemoryTicketsRepository(workers, proofs)

	overpass := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"elements":[{"type":"way","id":1,"tags":{"highway":"primary","name":"Main St","maxspeed":"60"},"geometry":[{"lat":40.7129,"lon":-74.0061}]}]}`)
	}))
	t.Cleanup(overpass.Close)

	priority := service.NewPriorityService(potholes, detections, cfg, logger)
	roadInfo := service.NewRoadInfoService(potholes, priority, store.NewMemoryKV(), &config.OverpassConfig{
		Endpoint: overpass.URL, RadiusMeters: 50, TimeoutSec: 5, CacheTTLSec: 60,
	}, logger)
	detectionSvc := service.NewDetectionService(detections, reports, potholes, cfg, logger)
	ticketSvc := service.NewTicketService(tickets, potholes, stream.NopPublisher{}, logger)
	proofSvc := service.NewWorkProofService(proofs, tickets, ticketSvc, logger)
	workerSvc := service.NewWorkerService(workers, tickets, logger)
	reportSvc := service.NewReportService(reports, logger)
	userSvc := service.NewUserService(users, logger)

	router := NewRouter(logger)
	router.RegisterRoutes(&Handlers{
		Users:      NewUserHandler(userSvc, logger),
		Reports:    NewReportHandler(reportSvc, logger),
		Detections: NewDetectionHandler(detectionSvc, logger),
		Media:      NewMediaDetectionsHandler(detectionSvc, logger),
		Potholes:   NewPotholeHandler(potholes, priority, roadInfo, logger),
		Tickets:    NewTicketHandler(ticketSvc, proofSvc, NewTicketExporter(ticketSvc, logger), logger),
		Proofs:     NewProofHandler(proofSvc, logger),
		Workers:    NewWorkerHandler(workerSvc, ticketSvc, logger),
	})
	return router
}

// doJSON 发送请求并解包统一响应
func doJSON(t *testing.T, router *Router, method, path string, body any) (int, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var envelope struct {
		Code    int            `json:"code"`
		Type    string         `json:"type"`
		Message string         `json:"message"`
		Result  map[string]any `json:"result"`
	}
	if rec.Body.Len() > 0 {
		_ = json.Unmarshal(rec.Body.Bytes(), &envelope)
	}
	return rec.Code, envelope.Result
}

func TestHealth(t *testing.T) {
	router := newTestRouter(t)
	code, result := doJSON(t, router, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", result["status"])
}

// 全流程：上报 → 检测 → 晋升 → 道路信息 → 建单 → 指派 → 施工 → 凭证 → 审核
func TestAPIPipeline(t *testing.T) {
	router := newTestRouter(t)

	// 市民上报（带一张图片）
	code, report := doJSON(t, router, http.MethodPost, "/api/v1/reports", map[string]any{
		"title":     "Pothole near the crosswalk",
		"latitude":  40.7128,
		"longitude": -74.0060,
		"image_url": "https://cdn.example.com/pothole.jpg",
		"media": []map[string]any{
			{"media_url": "https://cdn.example.com/pothole.jpg", "media_type": "IMAGE"},
		},
	})
	require.Equal(t, http.StatusCreated, code)
	media := report["media"].([]any)
	require.Len(t, media, 1)
	mediaID := media[0].(map[string]any)["media_id"].(string)

	// 高置信度检测：自动核实 + 自动晋升
	code, detection := doJSON(t, router, http.MethodPost, "/api/v1/detections", map[string]any{
		"media_id":    mediaID,
		"confidence":  0.92,
		"bbox_x":      10.0,
		"bbox_y":      20.0,
		"bbox_width":  200.0,
		"bbox_height": 120.0,
	})
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, true, detection["auto_verified"])
	pothole := detection["pothole"].(map[string]any)
	potholeID := pothole["pothole_id"].(string)

	// 附加道路信息并重评分
	code, roadInfo := doJSON(t, router, http.MethodPost, "/api/v1/potholes/"+potholeID+"/road-info", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Main St", roadInfo["road_name"])
	assert.Equal(t, "primary", roadInfo["road_type"])

	// 建单
	code, ticket := doJSON(t, router, http.MethodPost, "/api/v1/tickets", map[string]any{
		"pothole_id": potholeID,
		"created_by": "system",
	})
	require.Equal(t, http.StatusCreated, code)
	ticketID := ticket["ticket_id"].(string)
	assert.Equal(t, "DETECTED", ticket["status"])

	// 注册维修工
	code, worker := doJSON(t, router, http.MethodPost, "/api/v1/workers", map[string]any{
		"name":        "Sam Carter",
		"email":       "sam@crew.example.com",
		"employee_id": "EMP-0007",
	})
	require.Equal(t, http.StatusCreated, code)
	workerID := worker["worker_id"].(string)

	// rank → assign → start
	code, ranked := doJSON(t, router, http.MethodPost, "/api/v1/tickets/"+ticketID+"/rank", map[string]any{"changed_by": "admin"})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "RANKED", ranked["status"])

	code, assigned := doJSON(t, router, http.MethodPost, "/api/v1/tickets/"+ticketID+"/assign", map[string]any{
		"worker_id": workerID, "changed_by": "admin",
	})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ASSIGNED", assigned["status"])

	code, started := doJSON(t, router, http.MethodPost, "/api/v1/workers/"+workerID+"/start-job", map[string]any{
		"ticket_id": ticketID, "estimated_eta": "20m",
	})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "IN_PROGRESS", started["status"])

	// 提交完工凭证
	code, proof := doJSON(t, router, http.MethodPost, "/api/v1/tickets/"+ticketID+"/proofs", map[string]any{
		"worker_id":  workerID,
		"image_urls": []string{"https://cdn.example.com/fixed.jpg"},
	})
	require.Equal(t, http.StatusCreated, code)
	proofID := proof["proof_id"].(string)
	assert.Equal(t, "AWAITING_VERIFICATION", proof["ticket"].(map[string]any)["status"])

	// 审核通过 → RESOLVED
	code, reviewed := doJSON(t, router, http.MethodPost, "/api/v1/proofs/"+proofID+"/review", map[string]any{
		"approved": true, "reviewed_by": "supervisor",
	})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "RESOLVED", reviewed["ticket"].(map[string]any)["status"])

	// 按工单号也能查
	code, byNumber := doJSON(t, router, http.MethodGet, "/api/v1/tickets/"+ticket["ticket_number"].(string), nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, ticketID, byNumber["ticket_id"])
}

func TestAPIErrorMapping(t *testing.T) {
	router := newTestRouter(t)

	t.Run("not found", func(t *testing.T) {
		code, _ := doJSON(t, router, http.MethodGet, "/api/v1/tickets/00000000-0000-0000-0000-000000000000", nil)
		assert.Equal(t, http.StatusNotFound, code)
	})

	t.Run("bad input", func(t *testing.T) {
		code, _ := doJSON(t, router, http.MethodPost, "/api/v1/reports", map[string]any{
			"latitude": 120.0, "longitude": 0.0,
		})
		assert.Equal(t, http.StatusBadRequest, code)
	})

	t.Run("invalid transition", func(t *testing.T) {
		// 未评分的坑洞直接建单后 rank 被守卫拦下
		_, rep := doJSON(t, router, http.MethodPost, "/api/v1/reports", map[string]any{
			"latitude": 40.0, "longitude": -74.0,
			"media": []map[string]any{{"media_url": "https://cdn.example.com/x.jpg", "media_type": "IMAGE"}},
		})
		mediaID := rep["media"].([]any)[0].(map[string]any)["media_id"].(string)
		_, det := doJSON(t, router, http.MethodPost, "/api/v1/detections", map[string]any{
			"media_id": mediaID, "confidence": 0.7, "bbox_width": 10.0, "bbox_height": 10.0,
		})
		potholeID := det["pothole"].(map[string]any)["pothole_id"].(string)
		_, ticket := doJSON(t, router, http.MethodPost, "/api/v1/tickets", map[string]any{"pothole_id": potholeID})
		ticketID := ticket["ticket_id"].(string)

		code, _ := doJSON(t, router, http.MethodPost, "/api/v1/tickets/"+ticketID+"/rank", nil)
		assert.Equal(t, http.StatusUnprocessableEntity, code)

		// 非法跳转（DETECTED → RESOLVED）
		code, _ = doJSON(t, router, http.MethodPost, "/api/v1/tickets/"+ticketID+"/status", map[string]any{"to": "RESOLVED"})
		assert.Equal(t, http.StatusUnprocessableEntity, code)
	})
}

func TestTicketExport(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/tickets/export", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t,
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), `attachment; filename="tickets-`)
	assert.NotZero(t, rec.Body.Len())
}
