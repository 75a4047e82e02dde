package httpapi

import (
	"net/http"

	"go.uber.org/zap"
)

// Router 使用标准库 http.ServeMux（避免引入第三方路由依赖）
type Router struct {
	mux    *http.ServeMux
	logger *zap.Logger
}

func NewRouter(logger *zap.Logger) *Router {
	return &Router{
		mux:    http.NewServeMux(),
		logger: logger,
	}
}

func (r *Router) Handle(pattern string, h http.Handler) {
	r.mux.Handle(pattern, h)
}

func (r *Router) HandleFunc(pattern string, h http.HandlerFunc) {
	r.mux.HandleFunc(pattern, h)
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// Handlers 路由注册需要的全部 Handler
type Handlers struct {
	Users      *UserHandler
	Reports    *ReportHandler
	Detections *DetectionHandler
	Media      *MediaDetectionsHandler
	Potholes   *PotholeHandler
	Tickets    *TicketHandler
	Proofs     *ProofHandler
	Workers    *WorkerHandler
}

// RegisterRoutes 注册全部业务路由
func (r *Router) RegisterRoutes(h *Handlers) {
	r.Handle("/api/v1/users", h.Users)
	r.Handle("/api/v1/users/", h.Users)
	r.Handle("/api/v1/reports", h.Reports)
	r.Handle("/api/v1/reports/", h.Reports)
	r.Handle("/api/v1/detections", h.Detections)
	r.Handle("/api/v1/detections/", h.Detections)
	r.Handle("/api/v1/media/", h.Media)
	r.Handle("/api/v1/potholes", h.Potholes)
	r.Handle("/api/v1/potholes/", h.Potholes)
	r.Handle("/api/v1/tickets", h.Tickets)
	r.Handle("/api/v1/tickets/", h.Tickets)
	r.Handle("/api/v1/proofs/", h.Proofs)
	r.Handle("/api/v1/workers", h.Workers)
	r.Handle("/api/v1/workers/", h.Workers)

	r.HandleFunc("/health", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, Ok(map[string]string{"status": "ok"}))
	})
}
