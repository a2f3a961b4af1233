package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/medialert/medialert-engine/pkg/auth"
	"github.com/medialert/medialert-engine/pkg/models"
	"github.com/medialert/medialert-engine/pkg/services"
)

// EPSHandler serves the insurer catalog.
type EPSHandler struct {
	epsService services.EPSService
	logger     *zap.Logger
}

// NewEPSHandler creates a new EPS handler.
func NewEPSHandler(epsService services.EPSService, logger *zap.Logger) *EPSHandler {
	return &EPSHandler{
		epsService: epsService,
		logger:     logger,
	}
}

// RegisterRoutes registers the EPS routes. Any authenticated user may list
// the catalog.
func (h *EPSHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware, scope ScopeMiddleware) {
	self := authenticated(authMiddleware, scope)

	mux.HandleFunc("GET /api/eps", self(h.List))
}

// List handles GET /api/eps
func (h *EPSHandler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.epsService.ListActive(r.Context())
	if err != nil {
		writeServiceError(w, r, err, "list eps", h.logger)
		return
	}
	if list == nil {
		list = []*models.EPS{}
	}
	writeData(w, http.StatusOK, list, h.logger)
}
