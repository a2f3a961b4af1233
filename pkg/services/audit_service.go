package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/medialert/medialert-engine/pkg/apperrors"
	"github.com/medialert/medialert-engine/pkg/models"
	"github.com/medialert/medialert-engine/pkg/repositories"
)

// AuditService provides read access to the audit log.
// Writes happen through the repository change hooks and audit.Recorder only.
type AuditService interface {
	// List returns one page of entries, newest first, with the total count.
	List(ctx context.Context, filter models.AuditFilter) (*models.AuditPage, error)

	// Get returns a single entry.
	Get(ctx context.Context, id int64) (*models.AuditEntry, error)
}

type auditService struct {
	repo   repositories.AuditRepository
	logger *zap.Logger
}

// NewAuditService creates a new AuditService.
func NewAuditService(repo repositories.AuditRepository, logger *zap.Logger) AuditService {
	return &auditService{
		repo:   repo,
		logger: logger.Named("audit-service"),
	}
}

var _ AuditService = (*auditService)(nil)

func (s *auditService) List(ctx context.Context, filter models.AuditFilter) (*models.AuditPage, error) {
	if filter.Since != nil && filter.Until != nil && !filter.Until.After(*filter.Since) {
		return nil, fmt.Errorf("until must be after since: %w", apperrors.ErrValidation)
	}
	if filter.Offset < 0 {
		return nil, fmt.Errorf("offset must not be negative: %w", apperrors.ErrValidation)
	}

	entries, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	total, err := s.repo.Count(ctx, filter)
	if err != nil {
		return nil, err
	}

	if entries == nil {
		entries = []*models.AuditEntry{}
	}
	return &models.AuditPage{
		Entries: entries,
		Total:   total,
		Limit:   filter.EffectiveLimit(),
		Offset:  filter.Offset,
	}, nil
}

func (s *auditService) Get(ctx context.Context, id int64) (*models.AuditEntry, error) {
	return s.repo.GetByID(ctx, id)
}
