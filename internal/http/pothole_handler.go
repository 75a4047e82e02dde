package httpapi

import (
	"net/http"
	"strings"

	"smartinfra-data/internal/domain"
	"smartinfra-data/internal/repository"
	"smartinfra-data/internal/service"

	"go.uber.org/zap"
)

// PotholeHandler 坑洞 Handler（列表/详情/评分/道路信息）
type PotholeHandler struct {
	potholesRepo repository.PotholesRepository
	priority     service.PriorityService
	roadInfo     service.RoadInfoService
	logger       *zap.Logger
}

// NewPotholeHandler 创建坑洞 Handler
func NewPotholeHandler(
	potholesRepo repository.PotholesRepository,
	priority service.PriorityService,
	roadInfo service.RoadInfoService,
	logger *zap.Logger,
) *PotholeHandler {
	return &PotholeHandler{
		potholesRepo: potholesRepo,
		priority:     priority,
		roadInfo:     roadInfo,
		logger:       logger,
	}
}

// ServeHTTP 实现 http.Handler 接口
func (h *PotholeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/v1/potholes")
	path = strings.Trim(path, "/")
	parts := strings.Split(path, "/")

	switch {
	case path == "" && r.Method == http.MethodGet:
		h.ListPotholes(w, r)
	case len(parts) == 1 && r.Method == http.MethodGet:
		h.GetPothole(w, r, parts[0])
	case len(parts) == 2 && parts[1] == "score" && r.Method == http.MethodPost:
		h.ScorePothole(w, r, parts[0])
	case len(parts) == 2 && parts[1] == "score" && r.Method == http.MethodGet:
		h.ExplainScore(w, r, parts[0])
	case len(parts) == 2 && parts[1] == "road-info" && r.Method == http.MethodPost:
		h.AttachRoadInfo(w, r, parts[0])
	case len(parts) == 2 && parts[1] == "road-info" && r.Method == http.MethodGet:
		h.GetRoadInfo(w, r, parts[0])
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *PotholeHandler) ListPotholes(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page := parseInt(q.Get("page"), 1)
	size := parseInt(q.Get("size"), 20)
	if page < 1 {
		page = 1
	}
	if size < 1 || size > 200 {
		size = 20
	}

	filters := repository.PotholeFilters{}
	if lv := q.Get("priority_level"); lv != "" {
		level := domain.PriorityLevel(lv)
		if !level.Valid() {
			writeJSON(w, http.StatusBadRequest, Fail("unknown priority_level"))
			return
		}
		filters.PriorityLevel = &level
	}
	if s := q.Get("scored"); s != "" {
		scored := s == "true"
		filters.Scored = &scored
	}

	items, total, err := h.potholesRepo.ListPotholes(r.Context(), filters, page, size)
	if err != nil {
		writeError(w, err)
		return
	}

	out := make([]map[string]any, 0, len(items))
	for _, p := range items {
		out = append(out, p.ToJSON())
	}
	writeJSON(w, http.StatusOK, Ok(Page{Items: out, Total: total, Page: page, Size: size}))
}

func (h *PotholeHandler) GetPothole(w http.ResponseWriter, r *http.Request, potholeID string) {
	p, err := h.potholesRepo.GetPothole(r.Context(), potholeID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(p.ToJSON()))
}

func (h *PotholeHandler) ScorePothole(w http.ResponseWriter, r *http.Request, potholeID string) {
	result, err := h.priority.ScorePothole(r.Context(), potholeID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(map[string]any{
		"pothole_id":     result.PotholeID,
		"priority_score": result.Score,
		"priority_level": string(result.Level),
	}))
}

func (h *PotholeHandler) ExplainScore(w http.ResponseWriter, r *http.Request, potholeID string) {
	breakdown, err := h.priority.Explain(r.Context(), potholeID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(breakdown))
}

func (h *PotholeHandler) AttachRoadInfo(w http.ResponseWriter, r *http.Request, potholeID string) {
	ri, err := h.roadInfo.AttachRoadInfo(r.Context(), potholeID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(ri.ToJSON()))
}

func (h *PotholeHandler) GetRoadInfo(w http.ResponseWriter, r *http.Request, potholeID string) {
	ri, err := h.roadInfo.GetRoadInfo(r.Context(), potholeID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(ri.ToJSON()))
}
