package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"

	"smartinfra-data/internal/domain"
	"smartinfra-data/internal/service"

	"go.uber.org/zap"
)

// TicketHandler 工单 Handler（建单/查询/状态迁移/凭证/历史/导出）
type TicketHandler struct {
	tickets service.TicketService
	proofs  service.WorkProofService
	export  *TicketExporter
	logger  *zap.Logger
}

// NewTicketHandler 创建工单 Handler
func NewTicketHandler(
	tickets service.TicketService,
	proofs service.WorkProofService,
	export *TicketExporter,
	logger *zap.Logger,
) *TicketHandler {
	return &TicketHandler{
		tickets: tickets,
		proofs:  proofs,
		export:  export,
		logger:  logger,
	}
}

// ServeHTTP 实现 http.Handler 接口
func (h *TicketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/v1/tickets")
	path = strings.Trim(path, "/")
	parts := strings.Split(path, "/")

	switch {
	case path == "" && r.Method == http.MethodGet:
		h.ListTickets(w, r)
	case path == "" && r.Method == http.MethodPost:
		h.CreateTicket(w, r)
	case path == "export" && r.Method == http.MethodGet:
		h.export.Export(w, r)
	case len(parts) == 1 && r.Method == http.MethodGet:
		h.GetTicket(w, r, parts[0])
	case len(parts) == 2 && parts[1] == "history" && r.Method == http.MethodGet:
		h.ListHistory(w, r, parts[0])
	case len(parts) == 2 && parts[1] == "rank" && r.Method == http.MethodPost:
		h.RankTicket(w, r, parts[0])
	case len(parts) == 2 && parts[1] == "assign" && r.Method == http.MethodPost:
		h.AssignTicket(w, r, parts[0])
	case len(parts) == 2 && parts[1] == "status" && r.Method == http.MethodPost:
		h.Transition(w, r, parts[0])
	case len(parts) == 2 && parts[1] == "reject" && r.Method == http.MethodPost:
		h.RejectTicket(w, r, parts[0])
	case len(parts) == 2 && parts[1] == "proofs" && r.Method == http.MethodPost:
		h.SubmitProof(w, r, parts[0])
	case len(parts) == 2 && parts[1] == "proofs" && r.Method == http.MethodGet:
		h.ListProofs(w, r, parts[0])
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *TicketHandler) CreateTicket(w http.ResponseWriter, r *http.Request) {
	var body struct {
		PotholeID string  `json:"pothole_id"`
		Notes     *string `json:"notes"`
		CreatedBy string  `json:"created_by"`
	}
	if err := readBodyJSON(r, 1<<20, &body); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid request body"))
		return
	}

	t, err := h.tickets.CreateTicket(r.Context(), service.CreateTicketRequest{
		PotholeID: body.PotholeID,
		Notes:     body.Notes,
		CreatedBy: body.CreatedBy,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, Ok(t.ToJSON()))
}

// GetTicket 支持 UUID 或 TICKET-YYYYMMDD-NNNN 工单号
func (h *TicketHandler) GetTicket(w http.ResponseWriter, r *http.Request, idOrNumber string) {
	var t *domain.Ticket
	var err error
	if strings.HasPrefix(idOrNumber, "TICKET-") {
		t, err = h.tickets.GetTicketByNumber(r.Context(), idOrNumber)
	} else {
		t, err = h.tickets.GetTicket(r.Context(), idOrNumber)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(t.ToJSON()))
}

func (h *TicketHandler) ListTickets(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := service.ListTicketsRequest{
		Page: parseInt(q.Get("page"), 1),
		Size: parseInt(q.Get("size"), 20),
	}
	if s := q.Get("status"); s != "" {
		for _, v := range strings.Split(s, ",") {
			status := domain.TicketStatus(strings.TrimSpace(v))
			if !status.Valid() {
				writeJSON(w, http.StatusBadRequest, Fail("unknown ticket status"))
				return
			}
			req.Statuses = append(req.Statuses, status)
		}
	}
	if wid := q.Get("worker_id"); wid != "" {
		req.AssignedWorkerID = &wid
	}
	if pid := q.Get("pothole_id"); pid != "" {
		req.PotholeID = &pid
	}

	result, err := h.tickets.ListTickets(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}

	items := make([]map[string]any, 0, len(result.Items))
	for _, t := range result.Items {
		items = append(items, t.ToJSON())
	}
	writeJSON(w, http.StatusOK, Ok(Page{Items: items, Total: result.Total, Page: req.Page, Size: req.Size}))
}

func (h *TicketHandler) ListHistory(w http.ResponseWriter, r *http.Request, ticketID string) {
	items, err := h.tickets.ListStatusHistory(r.Context(), ticketID)
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]map[string]any, 0, len(items))
	for _, hrow := range items {
		out = append(out, hrow.ToJSON())
	}
	writeJSON(w, http.StatusOK, Ok(out))
}

func (h *TicketHandler) RankTicket(w http.ResponseWriter, r *http.Request, ticketID string) {
	var body struct {
		ChangedBy string `json:"changed_by"`
	}
	if err := readBodyJSON(r, 1<<20, &body); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid request body"))
		return
	}
	t, err := h.tickets.RankTicket(r.Context(), ticketID, body.ChangedBy)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(t.ToJSON()))
}

func (h *TicketHandler) AssignTicket(w http.ResponseWriter, r *http.Request, ticketID string) {
	var body struct {
		WorkerID  string `json:"worker_id"`
		ChangedBy string `json:"changed_by"`
	}
	if err := readBodyJSON(r, 1<<20, &body); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid request body"))
		return
	}
	t, err := h.tickets.AssignTicket(r.Context(), ticketID, body.WorkerID, body.ChangedBy)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(t.ToJSON()))
}

func (h *TicketHandler) Transition(w http.ResponseWriter, r *http.Request, ticketID string) {
	var body struct {
		To           string          `json:"to"`
		ChangedBy    string          `json:"changed_by"`
		Reason       *string         `json:"reason"`
		WorkerID     *string         `json:"worker_id"`
		RouteData    json.RawMessage `json:"route_data"`
		EstimatedETA *string         `json:"estimated_eta"`
	}
	if err := readBodyJSON(r, 1<<20, &body); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid request body"))
		return
	}

	t, err := h.tickets.Transition(r.Context(), service.TransitionRequest{
		TicketID:     ticketID,
		To:           domain.TicketStatus(body.To),
		ChangedBy:    body.ChangedBy,
		Reason:       body.Reason,
		WorkerID:     body.WorkerID,
		RouteData:    body.RouteData,
		EstimatedETA: body.EstimatedETA,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(t.ToJSON()))
}

func (h *TicketHandler) RejectTicket(w http.ResponseWriter, r *http.Request, ticketID string) {
	var body struct {
		Reason    string `json:"reason"`
		ChangedBy string `json:"changed_by"`
	}
	if err := readBodyJSON(r, 1<<20, &body); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid request body"))
		return
	}
	t, err := h.tickets.RejectTicket(r.Context(), ticketID, body.Reason, body.ChangedBy)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(t.ToJSON()))
}

func (h *TicketHandler) SubmitProof(w http.ResponseWriter, r *http.Request, ticketID string) {
	var body struct {
		WorkerID  string   `json:"worker_id"`
		ImageURLs []string `json:"image_urls"`
		Notes     *string  `json:"notes"`
		Latitude  *float64 `json:"latitude"`
		Longitude *float64 `json:"longitude"`
	}
	if err := readBodyJSON(r, 1<<20, &body); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid request body"))
		return
	}

	result, err := h.proofs.SubmitProof(r.Context(), service.SubmitProofRequest{
		TicketID:  ticketID,
		WorkerID:  body.WorkerID,
		ImageURLs: body.ImageURLs,
		Notes:     body.Notes,
		Latitude:  body.Latitude,
		Longitude: body.Longitude,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	resp := result.Proof.ToJSON()
	resp["ticket"] = result.Ticket.ToJSON()
	writeJSON(w, http.StatusCreated, Ok(resp))
}

func (h *TicketHandler) ListProofs(w http.ResponseWriter, r *http.Request, ticketID string) {
	items, err := h.proofs.ListProofsByTicket(r.Context(), ticketID)
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]map[string]any, 0, len(items))
	for _, p := range items {
		out = append(out, p.ToJSON())
	}
	writeJSON(w, http.StatusOK, Ok(out))
}

// ProofHandler 完工凭证 Handler（/api/v1/proofs/{id}[/review]）
type ProofHandler struct {
	proofs service.WorkProofService
	logger *zap.Logger
}

func NewProofHandler(proofs service.WorkProofService, logger *zap.Logger) *ProofHandler {
	return &ProofHandler{proofs: proofs, logger: logger}
}

func (h *ProofHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/v1/proofs")
	path = strings.Trim(path, "/")
	parts := strings.Split(path, "/")

	switch {
	case len(parts) == 1 && parts[0] != "" && r.Method == http.MethodGet:
		h.GetProof(w, r, parts[0])
	case len(parts) == 2 && parts[1] == "review" && r.Method == http.MethodPost:
		h.ReviewProof(w, r, parts[0])
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *ProofHandler) GetProof(w http.ResponseWriter, r *http.Request, proofID string) {
	p, err := h.proofs.GetProof(r.Context(), proofID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(p.ToJSON()))
}

func (h *ProofHandler) ReviewProof(w http.ResponseWriter, r *http.Request, proofID string) {
	var body struct {
		Approved    bool    `json:"approved"`
		ReviewedBy  string  `json:"reviewed_by"`
		ReviewNotes *string `json:"review_notes"`
	}
	if err := readBodyJSON(r, 1<<20, &body); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid request body"))
		return
	}

	result, err := h.proofs.ReviewProof(r.Context(), service.ReviewProofRequest{
		ProofID:     proofID,
		Approved:    body.Approved,
		ReviewedBy:  body.ReviewedBy,
		ReviewNotes: body.ReviewNotes,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	resp := result.Proof.ToJSON()
	resp["ticket"] = result.Ticket.ToJSON()
	writeJSON(w, http.StatusOK, Ok(resp))
}
