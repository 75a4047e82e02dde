package httpapi

import (
	"net/http"
	"strings"

	"smartinfra-data/internal/domain"
	"smartinfra-data/internal/service"

	"go.uber.org/zap"
)

// ReportHandler 市民上报 Handler
type ReportHandler struct {
	reports service.ReportService
	logger  *zap.Logger
}

// NewReportHandler 创建上报 Handler
func NewReportHandler(reports service.ReportService, logger *zap.Logger) *ReportHandler {
	return &ReportHandler{reports: reports, logger: logger}
}

// ServeHTTP 实现 http.Handler 接口
func (h *ReportHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/v1/reports")
	path = strings.Trim(path, "/")
	parts := strings.Split(path, "/")

	switch {
	case path == "" && r.Method == http.MethodGet:
		h.ListReports(w, r)
	case path == "" && r.Method == http.MethodPost:
		h.CreateReport(w, r)
	case len(parts) == 1 && r.Method == http.MethodGet:
		h.GetReport(w, r, parts[0])
	case len(parts) == 2 && parts[1] == "status" && r.Method == http.MethodPatch:
		h.UpdateStatus(w, r, parts[0])
	case len(parts) == 2 && parts[1] == "media" && r.Method == http.MethodPost:
		h.AddMedia(w, r, parts[0])
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

type createReportBody struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	ImageURL    *string `json:"image_url"`
	UserID      *string `json:"user_id"`
	Media       []struct {
		MediaURL  string `json:"media_url"`
		MediaType string `json:"media_type"`
	} `json:"media"`
}

func (h *ReportHandler) CreateReport(w http.ResponseWriter, r *http.Request) {
	var body createReportBody
	if err := readBodyJSON(r, 1<<20, &body); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid request body"))
		return
	}

	req := service.CreateReportRequest{
		Title:       body.Title,
		Description: body.Description,
		Latitude:    body.Latitude,
		Longitude:   body.Longitude,
		ImageURL:    body.ImageURL,
		UserID:      body.UserID,
	}
	for _, m := range body.Media {
		req.Media = append(req.Media, service.MediaInput{
			MediaURL:  m.MediaURL,
			MediaType: domain.MediaType(m.MediaType),
		})
	}

	result, err := h.reports.CreateReport(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := result.Report.ToJSON()
	resp["media"] = mediaToJSON(result.Media)
	writeJSON(w, http.StatusCreated, Ok(resp))
}

func (h *ReportHandler) GetReport(w http.ResponseWriter, r *http.Request, reportID string) {
	result, err := h.reports.GetReport(r.Context(), reportID)
	if err != nil {
		writeError(w, err)
		return
	}
	resp := result.Report.ToJSON()
	resp["media"] = mediaToJSON(result.Media)
	writeJSON(w, http.StatusOK, Ok(resp))
}

func (h *ReportHandler) ListReports(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := service.ListReportsRequest{
		Page: parseInt(q.Get("page"), 1),
		Size: parseInt(q.Get("size"), 20),
	}
	if s := q.Get("status"); s != "" {
		status := domain.ReportStatus(s)
		req.Status = &status
	}
	if u := q.Get("user_id"); u != "" {
		req.UserID = &u
	}

	result, err := h.reports.ListReports(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}

	items := make([]map[string]any, 0, len(result.Items))
	for _, rep := range result.Items {
		items = append(items, rep.ToJSON())
	}
	writeJSON(w, http.StatusOK, Ok(Page{Items: items, Total: result.Total, Page: req.Page, Size: req.Size}))
}

func (h *ReportHandler) UpdateStatus(w http.ResponseWriter, r *http.Request, reportID string) {
	var body struct {
		Status   string `json:"status"`
		Severity *int32 `json:"severity"`
	}
	if err := readBodyJSON(r, 1<<20, &body); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid request body"))
		return
	}

	if err := h.reports.UpdateStatus(r.Context(), reportID, domain.ReportStatus(body.Status), body.Severity); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(map[string]any{"report_id": reportID, "status": body.Status}))
}

func (h *ReportHandler) AddMedia(w http.ResponseWriter, r *http.Request, reportID string) {
	var body struct {
		MediaURL  string `json:"media_url"`
		MediaType string `json:"media_type"`
	}
	if err := readBodyJSON(r, 1<<20, &body); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid request body"))
		return
	}

	m, err := h.reports.AddMedia(r.Context(), reportID, service.MediaInput{
		MediaURL:  body.MediaURL,
		MediaType: domain.MediaType(body.MediaType),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, Ok(m.ToJSON()))
}

func mediaToJSON(media []*domain.Media) []map[string]any {
	out := make([]map[string]any, 0, len(media))
	for _, m := range media {
		out = append(out, m.ToJSON())
	}
	return out
}
