package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/medialert/medialert-engine/pkg/auth"
	"github.com/medialert/medialert-engine/pkg/models"
	"github.com/medialert/medialert-engine/pkg/services"
)

// AlertRequest is the request body for creating or replacing an alert.
type AlertRequest struct {
	UserID        int64        `json:"user_id"`
	MedicationID  int64        `json:"medication_id"`
	Dose          string       `json:"dose"`
	Frequency     string       `json:"frequency"`
	StartDate     models.Date  `json:"start_date"`
	EndDate       *models.Date `json:"end_date,omitempty"`
	PreferredTime *string      `json:"preferred_time,omitempty"`
	Status        string       `json:"status,omitempty"`
}

func (req *AlertRequest) toModel(id int64) *models.Alert {
	return &models.Alert{
		ID:            id,
		UserID:        req.UserID,
		MedicationID:  req.MedicationID,
		Dose:          req.Dose,
		Frequency:     req.Frequency,
		StartDate:     req.StartDate,
		EndDate:       req.EndDate,
		PreferredTime: req.PreferredTime,
		Status:        req.Status,
	}
}

// AlertsHandler handles dosage alert HTTP requests.
type AlertsHandler struct {
	alertService services.AlertService
	logger       *zap.Logger
}

// NewAlertsHandler creates a new alerts handler.
func NewAlertsHandler(alertService services.AlertService, logger *zap.Logger) *AlertsHandler {
	return &AlertsHandler{
		alertService: alertService,
		logger:       logger,
	}
}

// RegisterRoutes registers the alerts handler's routes on the given mux.
// Everything is admin-only except the per-alert prescription, which a client
// may request for their own alerts.
func (h *AlertsHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware, scope ScopeMiddleware) {
	admin := adminOnly(authMiddleware, scope)
	self := authenticated(authMiddleware, scope)

	mux.HandleFunc("GET /api/alerts", admin(h.List))
	mux.HandleFunc("POST /api/alerts", admin(h.Create))
	mux.HandleFunc("GET /api/alerts/{id}", admin(h.Get))
	mux.HandleFunc("PUT /api/alerts/{id}", admin(h.Update))
	mux.HandleFunc("DELETE /api/alerts/{id}", admin(h.Delete))
	mux.HandleFunc("GET /api/alerts/{id}/prescription", self(h.AlertPrescription))
	mux.HandleFunc("GET /api/prescriptions", admin(h.Prescriptions))
}

// List handles GET /api/alerts?user_id=&medication_id=&status=
func (h *AlertsHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, err := queryInt64(r, "user_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_user_id", "Invalid user_id", h.logger)
		return
	}
	medicationID, err := queryInt64(r, "medication_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_medication_id", "Invalid medication_id", h.logger)
		return
	}

	alerts, err := h.alertService.List(r.Context(), models.AlertFilter{
		UserID:       userID,
		MedicationID: medicationID,
		Status:       r.URL.Query().Get("status"),
	})
	if err != nil {
		writeServiceError(w, r, err, "list alerts", h.logger)
		return
	}
	if alerts == nil {
		alerts = []*models.AlertDetail{}
	}
	writeData(w, http.StatusOK, alerts, h.logger)
}

// Create handles POST /api/alerts
// The acting admin becomes the alert's assigner.
func (h *AlertsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req AlertRequest
	if !decodeJSON(w, r, &req, h.logger) {
		return
	}

	alert := req.toModel(0)
	if err := h.alertService.Create(r.Context(), alert); err != nil {
		writeServiceError(w, r, err, "create alert", h.logger)
		return
	}
	writeData(w, http.StatusCreated, alert, h.logger)
}

// Get handles GET /api/alerts/{id}
func (h *AlertsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseID(w, r, "id", h.logger)
	if !ok {
		return
	}

	alert, err := h.alertService.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err, "get alert", h.logger)
		return
	}
	writeData(w, http.StatusOK, alert, h.logger)
}

// Update handles PUT /api/alerts/{id}
// The body replaces the alert; status is required.
func (h *AlertsHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseID(w, r, "id", h.logger)
	if !ok {
		return
	}
	var req AlertRequest
	if !decodeJSON(w, r, &req, h.logger) {
		return
	}

	alert := req.toModel(id)
	if err := h.alertService.Update(r.Context(), alert); err != nil {
		writeServiceError(w, r, err, "update alert", h.logger)
		return
	}
	writeData(w, http.StatusOK, alert, h.logger)
}

// Delete handles DELETE /api/alerts/{id}
func (h *AlertsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseID(w, r, "id", h.logger)
	if !ok {
		return
	}

	if err := h.alertService.Delete(r.Context(), id); err != nil {
		writeServiceError(w, r, err, "delete alert", h.logger)
		return
	}
	writeData(w, http.StatusOK, DeleteResponse{Deleted: true}, h.logger)
}

// Prescriptions handles GET /api/prescriptions?user_id=
// Without user_id it returns one consolidated prescription per client with
// active alerts. With user_id it returns that client's prescription as a
// single-element list, even when it has no lines.
func (h *AlertsHandler) Prescriptions(w http.ResponseWriter, r *http.Request) {
	userID, err := queryInt64(r, "user_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_user_id", "Invalid user_id", h.logger)
		return
	}

	if userID != nil {
		p, err := h.alertService.Prescription(r.Context(), *userID)
		if err != nil {
			writeServiceError(w, r, err, "generate prescription", h.logger)
			return
		}
		writeData(w, http.StatusOK, []*models.Prescription{p}, h.logger)
		return
	}

	all, err := h.alertService.AllPrescriptions(r.Context())
	if err != nil {
		writeServiceError(w, r, err, "generate prescriptions", h.logger)
		return
	}
	if all == nil {
		all = []*models.Prescription{}
	}
	writeData(w, http.StatusOK, all, h.logger)
}

// AlertPrescription handles GET /api/alerts/{id}/prescription
// Clients get 403 for alerts they do not own.
func (h *AlertsHandler) AlertPrescription(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseID(w, r, "id", h.logger)
	if !ok {
		return
	}

	p, err := h.alertService.AlertPrescription(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err, "generate alert prescription", h.logger)
		return
	}
	writeData(w, http.StatusOK, p, h.logger)
}
