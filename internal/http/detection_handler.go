package httpapi

import (
	"net/http"
	"strings"

	"smartinfra-data/internal/service"

	"go.uber.org/zap"
)

// DetectionHandler ML 检测结果 Handler
type DetectionHandler struct {
	detections service.DetectionService
	logger     *zap.Logger
}

// NewDetectionHandler 创建检测结果 Handler
func NewDetectionHandler(detections service.DetectionService, logger *zap.Logger) *DetectionHandler {
	return &DetectionHandler{detections: detections, logger: logger}
}

// ServeHTTP 实现 http.Handler 接口
func (h *DetectionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/v1/detections")
	path = strings.Trim(path, "/")
	parts := strings.Split(path, "/")

	switch {
	case path == "" && r.Method == http.MethodPost:
		h.RecordDetection(w, r)
	case len(parts) == 1 && r.Method == http.MethodGet:
		h.GetDetection(w, r, parts[0])
	case len(parts) == 2 && parts[1] == "promote" && r.Method == http.MethodPost:
		h.PromoteDetection(w, r, parts[0])
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

type recordDetectionBody struct {
	MediaID       string   `json:"media_id"`
	DetectedClass string   `json:"detected_class"`
	Confidence    float64  `json:"confidence"`
	BBoxX         float64  `json:"bbox_x"`
	BBoxY         float64  `json:"bbox_y"`
	BBoxWidth     float64  `json:"bbox_width"`
	BBoxHeight    float64  `json:"bbox_height"`
	FrameTime     *float64 `json:"frame_time"`
}

func (h *DetectionHandler) RecordDetection(w http.ResponseWriter, r *http.Request) {
	var body recordDetectionBody
	if err := readBodyJSON(r, 1<<20, &body); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid request body"))
		return
	}

	result, err := h.detections.RecordDetection(r.Context(), service.RecordDetectionRequest{
		MediaID:       body.MediaID,
		DetectedClass: body.DetectedClass,
		Confidence:    body.Confidence,
		BBoxX:         body.BBoxX,
		BBoxY:         body.BBoxY,
		BBoxWidth:     body.BBoxWidth,
		BBoxHeight:    body.BBoxHeight,
		FrameTime:     body.FrameTime,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	resp := result.Detection.ToJSON()
	resp["auto_verified"] = result.AutoVerified
	if result.Pothole != nil {
		resp["pothole"] = result.Pothole.ToJSON()
	}
	writeJSON(w, http.StatusCreated, Ok(resp))
}

func (h *DetectionHandler) GetDetection(w http.ResponseWriter, r *http.Request, detectionID string) {
	d, err := h.detections.GetDetection(r.Context(), detectionID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(d.ToJSON()))
}

func (h *DetectionHandler) PromoteDetection(w http.ResponseWriter, r *http.Request, detectionID string) {
	pothole, err := h.detections.PromoteDetection(r.Context(), detectionID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, Ok(pothole.ToJSON()))
}

// MediaDetectionsHandler 按媒体列检测结果（/api/v1/media/{id}/detections）
type MediaDetectionsHandler struct {
	detections service.DetectionService
	logger     *zap.Logger
}

func NewMediaDetectionsHandler(detections service.DetectionService, logger *zap.Logger) *MediaDetectionsHandler {
	return &MediaDetectionsHandler{detections: detections, logger: logger}
}

func (h *MediaDetectionsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/v1/media")
	path = strings.Trim(path, "/")
	parts := strings.Split(path, "/")

	if len(parts) != 2 || parts[1] != "detections" || r.Method != http.MethodGet {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	items, err := h.detections.ListDetectionsByMedia(r.Context(), parts[0])
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]map[string]any, 0, len(items))
	for _, d := range items {
		out = append(out, d.ToJSON())
	}
	writeJSON(w, http.StatusOK, Ok(out))
}
