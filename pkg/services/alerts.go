package services

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/medialert/medialert-engine/pkg/apperrors"
	"github.com/medialert/medialert-engine/pkg/audit"
	"github.com/medialert/medialert-engine/pkg/models"
	"github.com/medialert/medialert-engine/pkg/repositories"
)

// AlertService defines the interface for dosage alert operations.
type AlertService interface {
	// Create schedules an alert for an active client on an available medication.
	Create(ctx context.Context, alert *models.Alert) error
	Get(ctx context.Context, id int64) (*models.Alert, error)
	List(ctx context.Context, filter models.AlertFilter) ([]*models.AlertDetail, error)
	// ListForClient returns the alerts of one client, optionally filtered by status.
	ListForClient(ctx context.Context, userID int64, status string) ([]*models.AlertDetail, error)
	Update(ctx context.Context, alert *models.Alert) error
	// Delete physically removes an alert.
	Delete(ctx context.Context, id int64) error
	// Prescription builds the consolidated prescription of a client and
	// records its generation.
	Prescription(ctx context.Context, userID int64) (*models.Prescription, error)
	// AllPrescriptions builds one consolidated prescription per client with
	// at least one active alert on an available medication.
	AllPrescriptions(ctx context.Context) ([]*models.Prescription, error)
	// AlertPrescription builds the prescription of a single alert in any
	// status. A client may only request alerts they own.
	AlertPrescription(ctx context.Context, alertID int64) (*models.Prescription, error)
}

type alertService struct {
	alertRepo repositories.AlertRepository
	userRepo  repositories.UserRepository
	epsRepo   repositories.EPSRepository
	recorder  audit.Recorder
	logger    *zap.Logger
	now       func() time.Time
}

// NewAlertService creates a new alert service.
func NewAlertService(
	alertRepo repositories.AlertRepository,
	userRepo repositories.UserRepository,
	epsRepo repositories.EPSRepository,
	recorder audit.Recorder,
	logger *zap.Logger,
) AlertService {
	return &alertService{
		alertRepo: alertRepo,
		userRepo:  userRepo,
		epsRepo:   epsRepo,
		recorder:  recorder,
		logger:    logger.Named("alert-service"),
		now:       time.Now,
	}
}

var _ AlertService = (*alertService)(nil)

func (s *alertService) Create(ctx context.Context, alert *models.Alert) error {
	if alert.Status == "" {
		alert.Status = models.AlertStatusActive
	}
	if err := validateAlert(alert); err != nil {
		return err
	}

	if err := s.alertRepo.Create(ctx, alert); err != nil {
		return err
	}

	s.recorder.Record(ctx, audit.Event{
		Action:   models.AuditActionAlertCreated,
		Entity:   models.AuditEntityAlerts,
		RecordID: strconv.FormatInt(alert.ID, 10),
		After:    alert,
		Extra:    map[string]any{"creado_por_admin_id": models.ActorIDFromContext(ctx)},
	})
	return nil
}

func (s *alertService) Get(ctx context.Context, id int64) (*models.Alert, error) {
	return s.alertRepo.GetByID(ctx, id)
}

func (s *alertService) List(ctx context.Context, filter models.AlertFilter) ([]*models.AlertDetail, error) {
	if filter.Status != "" && !models.IsValidAlertStatus(filter.Status) {
		return nil, fmt.Errorf("status %q: %w", filter.Status, apperrors.ErrInvalidStatus)
	}
	return s.alertRepo.List(ctx, filter)
}

func (s *alertService) ListForClient(ctx context.Context, userID int64, status string) ([]*models.AlertDetail, error) {
	return s.List(ctx, models.AlertFilter{UserID: &userID, Status: status})
}

func (s *alertService) Update(ctx context.Context, alert *models.Alert) error {
	if err := validateAlert(alert); err != nil {
		return err
	}

	previous, err := s.alertRepo.Update(ctx, alert)
	if err != nil {
		return err
	}

	s.recorder.Record(ctx, audit.Event{
		Action:   models.AuditActionAlertEdited,
		Entity:   models.AuditEntityAlerts,
		RecordID: strconv.FormatInt(alert.ID, 10),
		Before:   previous,
		After:    alert,
		Extra:    map[string]any{"actualizado_por_admin_id": models.ActorIDFromContext(ctx)},
	})
	return nil
}

func (s *alertService) Delete(ctx context.Context, id int64) error {
	previous, err := s.alertRepo.Delete(ctx, id)
	if err != nil {
		return err
	}

	s.recorder.Record(ctx, audit.Event{
		Action:   models.AuditActionAlertDeleted,
		Entity:   models.AuditEntityAlerts,
		RecordID: strconv.FormatInt(id, 10),
		Before:   previous,
		Extra:    map[string]any{"eliminado_por_admin_id": models.ActorIDFromContext(ctx)},
	})
	return nil
}

func (s *alertService) Prescription(ctx context.Context, userID int64) (*models.Prescription, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.Role != models.RoleClient {
		return nil, fmt.Errorf("user %d is not a client: %w", userID, apperrors.ErrNotFound)
	}

	found, err := s.alertRepo.Prescription(ctx, models.PrescriptionFilter{UserID: &userID})
	if err != nil {
		return nil, err
	}

	// The header comes from the user row so a client without lines still
	// gets a complete document.
	p := &models.Prescription{
		UserID:      user.ID,
		UserName:    user.Name,
		NationalID:  user.NationalID,
		BirthDate:   user.BirthDate,
		Phone:       user.Phone,
		City:        user.City,
		GeneratedAt: s.now().UTC(),
		Lines:       []models.PrescriptionLine{},
	}
	if len(found) > 0 {
		p.Lines = found[0].Lines
	}
	if user.EPSID != nil {
		eps, err := s.epsRepo.GetByID(ctx, *user.EPSID)
		if err != nil {
			return nil, err
		}
		p.EPSName = &eps.Name
		p.EPSNIT = eps.NIT
	}

	s.recorder.Record(ctx, audit.Event{
		Action:   models.AuditActionPrescriptionGenerated,
		Entity:   models.AuditEntityUsers,
		RecordID: strconv.FormatInt(userID, 10),
		Extra: map[string]any{
			"alertas_incluidas": lineAlertIDs(p.Lines),
			"generado_en":       p.GeneratedAt,
		},
	})
	return p, nil
}

func (s *alertService) AllPrescriptions(ctx context.Context) ([]*models.Prescription, error) {
	found, err := s.alertRepo.Prescription(ctx, models.PrescriptionFilter{})
	if err != nil {
		return nil, err
	}

	generatedAt := s.now().UTC()
	clientIDs := make([]int64, 0, len(found))
	var lines []models.PrescriptionLine
	for _, p := range found {
		p.GeneratedAt = generatedAt
		clientIDs = append(clientIDs, p.UserID)
		lines = append(lines, p.Lines...)
	}

	s.recorder.Record(ctx, audit.Event{
		Action: models.AuditActionPrescriptionGenerated,
		Entity: models.AuditEntityUsers,
		Extra: map[string]any{
			"clientes_incluidos": clientIDs,
			"alertas_incluidas":  lineAlertIDs(lines),
			"generado_en":        generatedAt,
		},
	})
	return found, nil
}

func (s *alertService) AlertPrescription(ctx context.Context, alertID int64) (*models.Prescription, error) {
	found, err := s.alertRepo.Prescription(ctx, models.PrescriptionFilter{AlertID: &alertID})
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, fmt.Errorf("alert %d: %w", alertID, apperrors.ErrNotFound)
	}
	p := found[0]

	if actor, ok := models.GetActor(ctx); ok && actor.Role == models.RoleClient && actor.UserID != p.UserID {
		s.logger.Warn("Client requested another client's alert",
			zap.Int64("actor_user_id", actor.UserID),
			zap.Int64("alert_id", alertID))
		return nil, fmt.Errorf("alert %d belongs to another client: %w", alertID, apperrors.ErrForbidden)
	}
	p.GeneratedAt = s.now().UTC()

	s.recorder.Record(ctx, audit.Event{
		Action:   models.AuditActionAlertPrescription,
		Entity:   models.AuditEntityAlerts,
		RecordID: strconv.FormatInt(alertID, 10),
		Extra: map[string]any{
			"cliente_id":  p.UserID,
			"generado_en": p.GeneratedAt,
		},
	})
	return p, nil
}

func lineAlertIDs(lines []models.PrescriptionLine) []int64 {
	ids := make([]int64, 0, len(lines))
	for _, l := range lines {
		ids = append(ids, l.AlertID)
	}
	return ids
}

// validateAlert checks the fields the database cannot explain well.
func validateAlert(alert *models.Alert) error {
	if !models.IsValidAlertStatus(alert.Status) {
		return fmt.Errorf("status %q: %w", alert.Status, apperrors.ErrInvalidStatus)
	}
	if alert.UserID <= 0 || alert.MedicationID <= 0 {
		return fmt.Errorf("user and medication are required: %w", apperrors.ErrValidation)
	}

	alert.Dose = strings.TrimSpace(alert.Dose)
	alert.Frequency = strings.TrimSpace(alert.Frequency)
	if alert.Dose == "" || alert.Frequency == "" {
		return fmt.Errorf("dose and frequency are required: %w", apperrors.ErrValidation)
	}

	if alert.StartDate.IsZero() {
		return fmt.Errorf("start date is required: %w", apperrors.ErrValidation)
	}
	if alert.EndDate != nil && alert.EndDate.Before(alert.StartDate.Time) {
		return fmt.Errorf("end date %s is before start date %s: %w",
			alert.EndDate, alert.StartDate, apperrors.ErrValidation)
	}

	alert.PreferredTime = emptyToNil(alert.PreferredTime)
	if alert.PreferredTime != nil && !validTimeOfDay(*alert.PreferredTime) {
		return fmt.Errorf("preferred time %q must be HH:MM: %w", *alert.PreferredTime, apperrors.ErrValidation)
	}
	return nil
}

func validTimeOfDay(s string) bool {
	for _, layout := range []string{"15:04", "15:04:05"} {
		if _, err := time.Parse(layout, s); err == nil {
			return true
		}
	}
	return false
}
