package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"

	"smartinfra-data/internal/service"

	"go.uber.org/zap"
)

// WorkerHandler 维修工 Handler（注册/位置/任务/开工）
type WorkerHandler struct {
	workers service.WorkerService
	tickets service.TicketService
	logger  *zap.Logger
}

// NewWorkerHandler 创建维修工 Handler
func NewWorkerHandler(workers service.WorkerService, tickets service.TicketService, logger *zap.Logger) *WorkerHandler {
	return &WorkerHandler{workers: workers, tickets: tickets, logger: logger}
}

// ServeHTTP 实现 http.Handler 接口
func (h *WorkerHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/v1/workers")
	path = strings.Trim(path, "/")
	parts := strings.Split(path, "/")

	switch {
	case path == "" && r.Method == http.MethodGet:
		h.ListWorkers(w, r)
	case path == "" && r.Method == http.MethodPost:
		h.RegisterWorker(w, r)
	case len(parts) == 1 && r.Method == http.MethodGet:
		h.GetWorker(w, r, parts[0])
	case len(parts) == 2 && parts[1] == "active" && r.Method == http.MethodPatch:
		h.SetActive(w, r, parts[0])
	case len(parts) == 2 && parts[1] == "location" && r.Method == http.MethodPost:
		h.UpdateLocation(w, r, parts[0])
	case len(parts) == 2 && parts[1] == "locations" && r.Method == http.MethodGet:
		h.ListLocations(w, r, parts[0])
	case len(parts) == 2 && parts[1] == "tasks" && r.Method == http.MethodGet:
		h.ListTasks(w, r, parts[0])
	case len(parts) == 2 && parts[1] == "start-job" && r.Method == http.MethodPost:
		h.StartJob(w, r, parts[0])
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *WorkerHandler) RegisterWorker(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name       string  `json:"name"`
		Email      string  `json:"email"`
		EmployeeID string  `json:"employee_id"`
		Phone      *string `json:"phone"`
		UserID     *string `json:"user_id"`
	}
	if err := readBodyJSON(r, 1<<20, &body); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid request body"))
		return
	}

	worker, err := h.workers.RegisterWorker(r.Context(), service.RegisterWorkerRequest{
		Name:       body.Name,
		Email:      body.Email,
		EmployeeID: body.EmployeeID,
		Phone:      body.Phone,
		UserID:     body.UserID,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, Ok(worker.ToJSON()))
}

func (h *WorkerHandler) GetWorker(w http.ResponseWriter, r *http.Request, idOrEmployeeID string) {
	worker, err := h.workers.GetWorker(r.Context(), idOrEmployeeID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(worker.ToJSON()))
}

func (h *WorkerHandler) ListWorkers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page := parseInt(q.Get("page"), 1)
	size := parseInt(q.Get("size"), 20)
	activeOnly := q.Get("active") == "true"

	result, err := h.workers.ListWorkers(r.Context(), activeOnly, page, size)
	if err != nil {
		writeError(w, err)
		return
	}
	items := make([]map[string]any, 0, len(result.Items))
	for _, worker := range result.Items {
		items = append(items, worker.ToJSON())
	}
	writeJSON(w, http.StatusOK, Ok(Page{Items: items, Total: result.Total, Page: page, Size: size}))
}

func (h *WorkerHandler) SetActive(w http.ResponseWriter, r *http.Request, workerID string) {
	var body struct {
		Active bool `json:"active"`
	}
	if err := readBodyJSON(r, 1<<20, &body); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid request body"))
		return
	}
	if err := h.workers.SetWorkerActive(r.Context(), workerID, body.Active); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(map[string]any{"worker_id": workerID, "is_active": body.Active}))
}

func (h *WorkerHandler) UpdateLocation(w http.ResponseWriter, r *http.Request, workerID string) {
	var body struct {
		Latitude  float64  `json:"latitude"`
		Longitude float64  `json:"longitude"`
		Accuracy  *float64 `json:"accuracy"`
	}
	if err := readBodyJSON(r, 1<<20, &body); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid request body"))
		return
	}

	loc, err := h.workers.UpdateLocation(r.Context(), service.UpdateLocationRequest{
		WorkerID:  workerID,
		Latitude:  body.Latitude,
		Longitude: body.Longitude,
		Accuracy:  body.Accuracy,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(loc.ToJSON()))
}

func (h *WorkerHandler) ListLocations(w http.ResponseWriter, r *http.Request, workerID string) {
	limit := parseInt(r.URL.Query().Get("limit"), 50)
	items, err := h.workers.ListLocations(r.Context(), workerID, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]map[string]any, 0, len(items))
	for _, l := range items {
		out = append(out, l.ToJSON())
	}
	writeJSON(w, http.StatusOK, Ok(out))
}

func (h *WorkerHandler) ListTasks(w http.ResponseWriter, r *http.Request, workerID string) {
	q := r.URL.Query()
	page := parseInt(q.Get("page"), 1)
	size := parseInt(q.Get("size"), 20)

	result, err := h.workers.ListTasks(r.Context(), workerID, page, size)
	if err != nil {
		writeError(w, err)
		return
	}
	items := make([]map[string]any, 0, len(result.Items))
	for _, t := range result.Items {
		items = append(items, t.ToJSON())
	}
	writeJSON(w, http.StatusOK, Ok(Page{Items: items, Total: result.Total, Page: page, Size: size}))
}

func (h *WorkerHandler) StartJob(w http.ResponseWriter, r *http.Request, workerID string) {
	var body struct {
		TicketID     string          `json:"ticket_id"`
		RouteData    json.RawMessage `json:"route_data"`
		EstimatedETA *string         `json:"estimated_eta"`
	}
	if err := readBodyJSON(r, 1<<20, &body); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid request body"))
		return
	}

	t, err := h.tickets.StartJob(r.Context(), service.StartJobRequest{
		TicketID:     body.TicketID,
		WorkerID:     workerID,
		RouteData:    body.RouteData,
		EstimatedETA: body.EstimatedETA,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(t.ToJSON()))
}
