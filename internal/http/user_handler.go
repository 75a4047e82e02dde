package httpapi

import (
	"net/http"
	"strings"

	"smartinfra-data/internal/domain"
	"smartinfra-data/internal/service"

	"go.uber.org/zap"
)

// UserHandler 用户 Handler
type UserHandler struct {
	users  service.UserService
	logger *zap.Logger
}

// NewUserHandler 创建用户 Handler
func NewUserHandler(users service.UserService, logger *zap.Logger) *UserHandler {
	return &UserHandler{users: users, logger: logger}
}

// ServeHTTP 实现 http.Handler 接口
func (h *UserHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/v1/users")
	path = strings.Trim(path, "/")
	parts := strings.Split(path, "/")

	switch {
	case path == "" && r.Method == http.MethodGet:
		h.ListUsers(w, r)
	case path == "" && r.Method == http.MethodPost:
		h.CreateUser(w, r)
	case len(parts) == 1 && r.Method == http.MethodGet:
		h.GetUser(w, r, parts[0])
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *UserHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email      string  `json:"email"`
		Name       *string `json:"name"`
		Role       string  `json:"role"`
		ExternalID *string `json:"external_id"`
	}
	if err := readBodyJSON(r, 1<<20, &body); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid request body"))
		return
	}

	u, err := h.users.CreateUser(r.Context(), service.CreateUserRequest{
		Email:      body.Email,
		Name:       body.Name,
		Role:       domain.Role(body.Role),
		ExternalID: body.ExternalID,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, Ok(u.ToJSON()))
}

func (h *UserHandler) GetUser(w http.ResponseWriter, r *http.Request, userID string) {
	u, err := h.users.GetUser(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(u.ToJSON()))
}

func (h *UserHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page := parseInt(q.Get("page"), 1)
	size := parseInt(q.Get("size"), 20)

	var role *domain.Role
	if s := q.Get("role"); s != "" {
		v := domain.Role(s)
		role = &v
	}

	result, err := h.users.ListUsers(r.Context(), role, page, size)
	if err != nil {
		writeError(w, err)
		return
	}
	items := make([]map[string]any, 0, len(result.Items))
	for _, u := range result.Items {
		items = append(items, u.ToJSON())
	}
	writeJSON(w, http.StatusOK, Ok(Page{Items: items, Total: result.Total, Page: page, Size: size}))
}
