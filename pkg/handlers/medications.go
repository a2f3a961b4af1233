package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/medialert/medialert-engine/pkg/auth"
	"github.com/medialert/medialert-engine/pkg/models"
	"github.com/medialert/medialert-engine/pkg/services"
)

// MedicationRequest is the request body for creating or editing a medication.
type MedicationRequest struct {
	Name        string  `json:"name"`
	Description *string `json:"description,omitempty"`
	Composition *string `json:"composition,omitempty"`
	SideEffects *string `json:"side_effects,omitempty"`
	Indications *string `json:"indications,omitempty"`
	AgeRange    *string `json:"age_range,omitempty"`
	Status      string  `json:"status,omitempty"`
}

func (req *MedicationRequest) toModel(id int64) *models.Medication {
	return &models.Medication{
		ID:          id,
		Name:        req.Name,
		Description: req.Description,
		Composition: req.Composition,
		SideEffects: req.SideEffects,
		Indications: req.Indications,
		AgeRange:    req.AgeRange,
		Status:      req.Status,
	}
}

// MedicationStatusResponse is returned after a medication status change.
type MedicationStatusResponse struct {
	Medication        *models.Medication `json:"medication"`
	DeactivatedAlerts []int64            `json:"deactivated_alerts"`
}

// MedicationsHandler handles medication catalog HTTP requests.
type MedicationsHandler struct {
	medicationService services.MedicationService
	logger            *zap.Logger
}

// NewMedicationsHandler creates a new medications handler.
func NewMedicationsHandler(medicationService services.MedicationService, logger *zap.Logger) *MedicationsHandler {
	return &MedicationsHandler{
		medicationService: medicationService,
		logger:            logger,
	}
}

// RegisterRoutes registers the medications handler's routes on the given mux.
func (h *MedicationsHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware, scope ScopeMiddleware) {
	admin := adminOnly(authMiddleware, scope)

	mux.HandleFunc("GET /api/medications", admin(h.List))
	mux.HandleFunc("POST /api/medications", admin(h.Create))
	mux.HandleFunc("GET /api/medications/{id}", admin(h.Get))
	mux.HandleFunc("PUT /api/medications/{id}", admin(h.Update))
	mux.HandleFunc("DELETE /api/medications/{id}", admin(h.Delete))
	mux.HandleFunc("PUT /api/medications/{id}/status", admin(h.SetStatus))
}

// List handles GET /api/medications?status=&q=
func (h *MedicationsHandler) List(w http.ResponseWriter, r *http.Request) {
	meds, err := h.medicationService.List(r.Context(), models.MedicationFilter{
		Status: r.URL.Query().Get("status"),
		Search: r.URL.Query().Get("q"),
	})
	if err != nil {
		writeServiceError(w, r, err, "list medications", h.logger)
		return
	}
	if meds == nil {
		meds = []*models.Medication{}
	}
	writeData(w, http.StatusOK, meds, h.logger)
}

// Create handles POST /api/medications
func (h *MedicationsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req MedicationRequest
	if !decodeJSON(w, r, &req, h.logger) {
		return
	}

	med := req.toModel(0)
	if err := h.medicationService.Create(r.Context(), med); err != nil {
		writeServiceError(w, r, err, "create medication", h.logger)
		return
	}
	writeData(w, http.StatusCreated, med, h.logger)
}

// Get handles GET /api/medications/{id}
func (h *MedicationsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseID(w, r, "id", h.logger)
	if !ok {
		return
	}

	med, err := h.medicationService.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err, "get medication", h.logger)
		return
	}
	writeData(w, http.StatusOK, med, h.logger)
}

// Update handles PUT /api/medications/{id}
// Status changes go through SetStatus so cascades run.
func (h *MedicationsHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseID(w, r, "id", h.logger)
	if !ok {
		return
	}
	var req MedicationRequest
	if !decodeJSON(w, r, &req, h.logger) {
		return
	}

	med := req.toModel(id)
	if err := h.medicationService.Update(r.Context(), med); err != nil {
		writeServiceError(w, r, err, "update medication", h.logger)
		return
	}
	writeData(w, http.StatusOK, med, h.logger)
}

// SetStatus handles PUT /api/medications/{id}/status
// Discontinuing a medication deactivates the active alerts that use it.
func (h *MedicationsHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseID(w, r, "id", h.logger)
	if !ok {
		return
	}
	var req StatusRequest
	if !decodeJSON(w, r, &req, h.logger) {
		return
	}

	change, err := h.medicationService.SetStatus(r.Context(), id, req.Status)
	if err != nil {
		writeServiceError(w, r, err, "change medication status", h.logger)
		return
	}

	deactivated := change.DeactivatedAlerts
	if deactivated == nil {
		deactivated = []int64{}
	}
	writeData(w, http.StatusOK, MedicationStatusResponse{Medication: change.After, DeactivatedAlerts: deactivated}, h.logger)
}

// Delete handles DELETE /api/medications/{id}
// Medications are never removed; the attempt is recorded and the unchanged
// row is returned.
func (h *MedicationsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseID(w, r, "id", h.logger)
	if !ok {
		return
	}

	med, err := h.medicationService.Delete(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err, "delete medication", h.logger)
		return
	}
	writeData(w, http.StatusOK, DeleteResponse{Deleted: false, Record: med}, h.logger)
}
