package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/medialert/medialert-engine/pkg/auth"
	"github.com/medialert/medialert-engine/pkg/models"
	"github.com/medialert/medialert-engine/pkg/services"
)

// ChangePasswordRequest is the request body for PUT /api/me/password.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// MeHandler serves the authenticated user's own data.
type MeHandler struct {
	alertService services.AlertService
	userService  services.UserService
	logger       *zap.Logger
}

// NewMeHandler creates a new handler for /api/me routes.
func NewMeHandler(alertService services.AlertService, userService services.UserService, logger *zap.Logger) *MeHandler {
	return &MeHandler{
		alertService: alertService,
		userService:  userService,
		logger:       logger,
	}
}

// RegisterRoutes registers the /api/me routes. Any authenticated user may
// call them; results are scoped to the token subject.
func (h *MeHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware, scope ScopeMiddleware) {
	self := authenticated(authMiddleware, scope)

	mux.HandleFunc("GET /api/me", self(h.Profile))
	mux.HandleFunc("GET /api/me/alerts", self(h.Alerts))
	mux.HandleFunc("GET /api/me/prescription", self(h.Prescription))
	mux.HandleFunc("PUT /api/me/password", self(h.ChangePassword))
}

// Profile handles GET /api/me
func (h *MeHandler) Profile(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.subject(w, r)
	if !ok {
		return
	}

	user, err := h.userService.Get(r.Context(), userID)
	if err != nil {
		writeServiceError(w, r, err, "get profile", h.logger)
		return
	}
	writeData(w, http.StatusOK, user, h.logger)
}

// Alerts handles GET /api/me/alerts?status=
func (h *MeHandler) Alerts(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.subject(w, r)
	if !ok {
		return
	}

	alerts, err := h.alertService.ListForClient(r.Context(), userID, r.URL.Query().Get("status"))
	if err != nil {
		writeServiceError(w, r, err, "list alerts", h.logger)
		return
	}
	if alerts == nil {
		alerts = []*models.AlertDetail{}
	}
	writeData(w, http.StatusOK, alerts, h.logger)
}

// Prescription handles GET /api/me/prescription
// Generating the summary is itself audited.
func (h *MeHandler) Prescription(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.subject(w, r)
	if !ok {
		return
	}

	p, err := h.alertService.Prescription(r.Context(), userID)
	if err != nil {
		writeServiceError(w, r, err, "generate prescription", h.logger)
		return
	}
	writeData(w, http.StatusOK, p, h.logger)
}

// ChangePassword handles PUT /api/me/password
func (h *MeHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.subject(w, r)
	if !ok {
		return
	}
	var req ChangePasswordRequest
	if !decodeJSON(w, r, &req, h.logger) {
		return
	}

	if err := h.userService.ChangePassword(r.Context(), userID, req.CurrentPassword, req.NewPassword); err != nil {
		writeServiceError(w, r, err, "change password", h.logger)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// subject returns the authenticated user id or writes a 401.
func (h *MeHandler) subject(w http.ResponseWriter, r *http.Request) (int64, bool) {
	userID, err := auth.RequireUserIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized", "Authentication required", h.logger)
		return 0, false
	}
	return userID, true
}
