package services

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/medialert/medialert-engine/pkg/apperrors"
	"github.com/medialert/medialert-engine/pkg/audit"
	"github.com/medialert/medialert-engine/pkg/models"
	"github.com/medialert/medialert-engine/pkg/repositories"
)

// MedicationService defines the interface for medication catalog operations.
type MedicationService interface {
	Create(ctx context.Context, med *models.Medication) error
	Get(ctx context.Context, id int64) (*models.Medication, error)
	List(ctx context.Context, filter models.MedicationFilter) ([]*models.Medication, error)
	Update(ctx context.Context, med *models.Medication) error
	// SetStatus makes a medication available or discontinued. Discontinuing
	// deactivates every active alert that uses it.
	SetStatus(ctx context.Context, id int64, status string) (*repositories.MedicationStatusChange, error)
	// Delete never removes a medication. The attempt is recorded and the
	// current state returned.
	Delete(ctx context.Context, id int64) (*models.Medication, error)
}

type medicationService struct {
	medRepo  repositories.MedicationRepository
	recorder audit.Recorder
	logger   *zap.Logger
}

// NewMedicationService creates a new medication service.
func NewMedicationService(medRepo repositories.MedicationRepository, recorder audit.Recorder, logger *zap.Logger) MedicationService {
	return &medicationService{
		medRepo:  medRepo,
		recorder: recorder,
		logger:   logger.Named("medication-service"),
	}
}

var _ MedicationService = (*medicationService)(nil)

func (s *medicationService) Create(ctx context.Context, med *models.Medication) error {
	if med.Status == "" {
		med.Status = models.MedicationStatusAvailable
	}
	if !models.IsValidMedicationStatus(med.Status) {
		return fmt.Errorf("status %q: %w", med.Status, apperrors.ErrInvalidStatus)
	}
	if err := validateMedication(med); err != nil {
		return err
	}

	if err := s.medRepo.Create(ctx, med); err != nil {
		return err
	}

	s.recorder.Record(ctx, audit.Event{
		Action:   models.AuditActionMedicationCreated,
		Entity:   models.AuditEntityMedications,
		RecordID: strconv.FormatInt(med.ID, 10),
		After:    med,
		Extra:    map[string]any{"creado_por_admin_id": models.ActorIDFromContext(ctx)},
	})
	return nil
}

func (s *medicationService) Get(ctx context.Context, id int64) (*models.Medication, error) {
	return s.medRepo.GetByID(ctx, id)
}

func (s *medicationService) List(ctx context.Context, filter models.MedicationFilter) ([]*models.Medication, error) {
	if filter.Status != "" && !models.IsValidMedicationStatus(filter.Status) {
		return nil, fmt.Errorf("status %q: %w", filter.Status, apperrors.ErrInvalidStatus)
	}
	return s.medRepo.List(ctx, filter)
}

func (s *medicationService) Update(ctx context.Context, med *models.Medication) error {
	if err := validateMedication(med); err != nil {
		return err
	}

	previous, err := s.medRepo.Update(ctx, med)
	if err != nil {
		return err
	}

	s.recorder.Record(ctx, audit.Event{
		Action:   models.AuditActionMedicationEdited,
		Entity:   models.AuditEntityMedications,
		RecordID: strconv.FormatInt(med.ID, 10),
		Before:   previous,
		After:    med,
		Extra:    map[string]any{"actualizado_por_admin_id": models.ActorIDFromContext(ctx)},
	})
	return nil
}

func (s *medicationService) SetStatus(ctx context.Context, id int64, status string) (*repositories.MedicationStatusChange, error) {
	if !models.IsValidMedicationStatus(status) {
		return nil, fmt.Errorf("status %q: %w", status, apperrors.ErrInvalidStatus)
	}

	change, err := s.medRepo.SetStatus(ctx, id, status)
	if err != nil {
		return nil, err
	}

	action := models.AuditActionMedicationEdited
	switch {
	case change.Before.IsAvailable() && !change.After.IsAvailable():
		action = models.AuditActionMedicationDiscontinue
		s.logger.Info("Medication discontinued",
			zap.Int64("medication_id", id),
			zap.Int("alerts_deactivated", len(change.DeactivatedAlerts)))
	case !change.Before.IsAvailable() && change.After.IsAvailable():
		action = models.AuditActionMedicationReactivated
	}

	extra := map[string]any{"actualizado_por_admin_id": models.ActorIDFromContext(ctx)}
	if len(change.DeactivatedAlerts) > 0 {
		extra["alertas_desactivadas"] = change.DeactivatedAlerts
	}
	s.recorder.Record(ctx, audit.Event{
		Action:   action,
		Entity:   models.AuditEntityMedications,
		RecordID: strconv.FormatInt(id, 10),
		Before:   change.Before,
		After:    change.After,
		Extra:    extra,
	})
	return change, nil
}

func (s *medicationService) Delete(ctx context.Context, id int64) (*models.Medication, error) {
	med, err := s.medRepo.Delete(ctx, id)
	if err != nil {
		return nil, err
	}
	s.logger.Info("Prevented physical delete of medication", zap.Int64("medication_id", id))
	return med, nil
}

func validateMedication(med *models.Medication) error {
	med.Name = strings.TrimSpace(med.Name)
	if med.Name == "" {
		return fmt.Errorf("medication name is required: %w", apperrors.ErrValidation)
	}
	med.Description = emptyToNil(med.Description)
	med.Composition = emptyToNil(med.Composition)
	med.SideEffects = emptyToNil(med.SideEffects)
	med.Indications = emptyToNil(med.Indications)
	med.AgeRange = emptyToNil(med.AgeRange)
	return nil
}
