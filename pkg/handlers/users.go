package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/medialert/medialert-engine/pkg/auth"
	"github.com/medialert/medialert-engine/pkg/models"
	"github.com/medialert/medialert-engine/pkg/repositories"
	"github.com/medialert/medialert-engine/pkg/services"
)

// CreateUserRequest is the request body for registering a user.
type CreateUserRequest struct {
	Name       string       `json:"name"`
	NationalID string       `json:"national_id"`
	Email      string       `json:"email"`
	Password   string       `json:"password"`
	Role       string       `json:"role"`
	Status     string       `json:"status,omitempty"`
	BirthDate  *models.Date `json:"birth_date,omitempty"`
	Phone      *string      `json:"phone,omitempty"`
	City       *string      `json:"city,omitempty"`
	EPSID      *int64       `json:"eps_id,omitempty"`
}

// UpdateUserRequest is the request body for editing a user's profile.
type UpdateUserRequest struct {
	Name       string       `json:"name"`
	NationalID string       `json:"national_id"`
	Email      string       `json:"email"`
	BirthDate  *models.Date `json:"birth_date,omitempty"`
	Phone      *string      `json:"phone,omitempty"`
	City       *string      `json:"city,omitempty"`
	EPSID      *int64       `json:"eps_id,omitempty"`
}

// StatusRequest is the request body for status transitions.
type StatusRequest struct {
	Status string `json:"status"`
}

// UserStatusResponse is returned after a user status change.
type UserStatusResponse struct {
	User              *models.User `json:"user"`
	DeactivatedAlerts []int64      `json:"deactivated_alerts"`
}

// UsersHandler handles user administration HTTP requests.
type UsersHandler struct {
	userService services.UserService
	logger      *zap.Logger
}

// NewUsersHandler creates a new users handler.
func NewUsersHandler(userService services.UserService, logger *zap.Logger) *UsersHandler {
	return &UsersHandler{
		userService: userService,
		logger:      logger,
	}
}

// RegisterRoutes registers the users handler's routes on the given mux.
// All routes require the admin role.
func (h *UsersHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware, scope ScopeMiddleware) {
	admin := adminOnly(authMiddleware, scope)

	mux.HandleFunc("GET /api/users", admin(h.List))
	mux.HandleFunc("POST /api/users", admin(h.Create))
	mux.HandleFunc("GET /api/users/{id}", admin(h.Get))
	mux.HandleFunc("PUT /api/users/{id}", admin(h.Update))
	mux.HandleFunc("DELETE /api/users/{id}", admin(h.Delete))
	mux.HandleFunc("PUT /api/users/{id}/status", admin(h.SetStatus))
}

// List handles GET /api/users?role=&status=&q=
func (h *UsersHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	users, err := h.userService.List(r.Context(), models.UserFilter{
		Role:   q.Get("role"),
		Status: q.Get("status"),
		Search: q.Get("q"),
	})
	if err != nil {
		writeServiceError(w, r, err, "list users", h.logger)
		return
	}
	if users == nil {
		users = []*models.User{}
	}
	writeData(w, http.StatusOK, users, h.logger)
}

// Create handles POST /api/users
func (h *UsersHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if !decodeJSON(w, r, &req, h.logger) {
		return
	}

	user := &models.User{
		Name:       req.Name,
		NationalID: req.NationalID,
		Email:      req.Email,
		Role:       req.Role,
		Status:     req.Status,
		BirthDate:  req.BirthDate,
		Phone:      req.Phone,
		City:       req.City,
		EPSID:      req.EPSID,
	}
	if err := h.userService.Create(r.Context(), user, req.Password); err != nil {
		writeServiceError(w, r, err, "create user", h.logger)
		return
	}
	writeData(w, http.StatusCreated, user, h.logger)
}

// Get handles GET /api/users/{id}
func (h *UsersHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseID(w, r, "id", h.logger)
	if !ok {
		return
	}

	user, err := h.userService.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err, "get user", h.logger)
		return
	}
	writeData(w, http.StatusOK, user, h.logger)
}

// Update handles PUT /api/users/{id}
func (h *UsersHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseID(w, r, "id", h.logger)
	if !ok {
		return
	}
	var req UpdateUserRequest
	if !decodeJSON(w, r, &req, h.logger) {
		return
	}

	user := &models.User{
		ID:         id,
		Name:       req.Name,
		NationalID: req.NationalID,
		Email:      req.Email,
		BirthDate:  req.BirthDate,
		Phone:      req.Phone,
		City:       req.City,
		EPSID:      req.EPSID,
	}
	if err := h.userService.Update(r.Context(), user); err != nil {
		writeServiceError(w, r, err, "update user", h.logger)
		return
	}
	writeData(w, http.StatusOK, user, h.logger)
}

// SetStatus handles PUT /api/users/{id}/status
// Deactivating a client also deactivates their active alerts.
func (h *UsersHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseID(w, r, "id", h.logger)
	if !ok {
		return
	}
	var req StatusRequest
	if !decodeJSON(w, r, &req, h.logger) {
		return
	}

	change, err := h.userService.SetStatus(r.Context(), id, req.Status)
	if err != nil {
		writeServiceError(w, r, err, "change user status", h.logger)
		return
	}

	deactivated := change.DeactivatedAlerts
	if deactivated == nil {
		deactivated = []int64{}
	}
	writeData(w, http.StatusOK, UserStatusResponse{User: change.After, DeactivatedAlerts: deactivated}, h.logger)
}

// Delete handles DELETE /api/users/{id}
// Clients are never removed: the attempt is recorded and the response says
// deleted=false with the client's unchanged record.
func (h *UsersHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseID(w, r, "id", h.logger)
	if !ok {
		return
	}

	outcome, previous, err := h.userService.Delete(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err, "delete user", h.logger)
		return
	}

	resp := DeleteResponse{Deleted: outcome == repositories.Deleted}
	if !resp.Deleted {
		resp.Record = previous
	}
	writeData(w, http.StatusOK, resp, h.logger)
}
