package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/medialert/medialert-engine/pkg/auth"
	"github.com/medialert/medialert-engine/pkg/models"
	"github.com/medialert/medialert-engine/pkg/services"
)

// AuditHandler serves the read-only audit log.
type AuditHandler struct {
	auditService services.AuditService
	logger       *zap.Logger
}

// NewAuditHandler creates a new audit handler.
func NewAuditHandler(auditService services.AuditService, logger *zap.Logger) *AuditHandler {
	return &AuditHandler{
		auditService: auditService,
		logger:       logger,
	}
}

// RegisterRoutes registers the audit handler's routes on the given mux.
// The log has no write routes.
func (h *AuditHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware, scope ScopeMiddleware) {
	admin := adminOnly(authMiddleware, scope)

	mux.HandleFunc("GET /api/audit", admin(h.List))
	mux.HandleFunc("GET /api/audit/{id}", admin(h.Get))
}

// List handles GET /api/audit?entity=&record_id=&actor=&action=&since=&until=&limit=&offset=
// Entries are newest first.
func (h *AuditHandler) List(w http.ResponseWriter, r *http.Request) {
	filter, ok := h.parseFilter(w, r)
	if !ok {
		return
	}

	page, err := h.auditService.List(r.Context(), filter)
	if err != nil {
		writeServiceError(w, r, err, "list audit entries", h.logger)
		return
	}
	writeData(w, http.StatusOK, page, h.logger)
}

// Get handles GET /api/audit/{id}
func (h *AuditHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseID(w, r, "id", h.logger)
	if !ok {
		return
	}

	entry, err := h.auditService.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err, "get audit entry", h.logger)
		return
	}
	writeData(w, http.StatusOK, entry, h.logger)
}

func (h *AuditHandler) parseFilter(w http.ResponseWriter, r *http.Request) (models.AuditFilter, bool) {
	q := r.URL.Query()
	filter := models.AuditFilter{
		Entity:   q.Get("entity"),
		RecordID: q.Get("record_id"),
		Action:   q.Get("action"),
	}

	var err error
	if filter.ActorUserID, err = queryInt64(r, "actor"); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_actor", "Invalid actor", h.logger)
		return filter, false
	}
	if filter.Since, err = queryTime(r, "since"); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_since", "since must be an RFC 3339 timestamp", h.logger)
		return filter, false
	}
	if filter.Until, err = queryTime(r, "until"); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_until", "until must be an RFC 3339 timestamp", h.logger)
		return filter, false
	}
	if filter.Limit, err = queryInt(r, "limit"); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_limit", "Invalid limit", h.logger)
		return filter, false
	}
	if filter.Offset, err = queryInt(r, "offset"); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_offset", "Invalid offset", h.logger)
		return filter, false
	}
	return filter, true
}
