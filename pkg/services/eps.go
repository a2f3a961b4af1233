package services

import (
	"context"

	"go.uber.org/zap"

	"github.com/medialert/medialert-engine/pkg/models"
	"github.com/medialert/medialert-engine/pkg/repositories"
)

// EPSService exposes the insurer catalog used when registering clients.
type EPSService interface {
	ListActive(ctx context.Context) ([]*models.EPS, error)
}

type epsService struct {
	epsRepo repositories.EPSRepository
	logger  *zap.Logger
}

// NewEPSService creates a new EPS service.
func NewEPSService(epsRepo repositories.EPSRepository, logger *zap.Logger) EPSService {
	return &epsService{
		epsRepo: epsRepo,
		logger:  logger.Named("eps-service"),
	}
}

var _ EPSService = (*epsService)(nil)

func (s *epsService) ListActive(ctx context.Context) ([]*models.EPS, error) {
	return s.epsRepo.ListActive(ctx)
}
