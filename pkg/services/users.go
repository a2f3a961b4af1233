package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/medialert/medialert-engine/pkg/apperrors"
	"github.com/medialert/medialert-engine/pkg/audit"
	"github.com/medialert/medialert-engine/pkg/logging"
	"github.com/medialert/medialert-engine/pkg/models"
	"github.com/medialert/medialert-engine/pkg/repositories"
)

// maskedPassword stands in for password values in audit payloads.
const maskedPassword = "********"

// UserService defines the interface for user operations.
type UserService interface {
	// Create registers a client or an admin with the given plain password.
	Create(ctx context.Context, user *models.User, password string) error
	Get(ctx context.Context, id int64) (*models.User, error)
	List(ctx context.Context, filter models.UserFilter) ([]*models.User, error)
	// Update changes profile fields. Role, status and password are not touched.
	Update(ctx context.Context, user *models.User) error
	// SetStatus activates or deactivates a user. Deactivating a client also
	// deactivates their active alerts.
	SetStatus(ctx context.Context, id int64, status string) (*repositories.UserStatusChange, error)
	// Delete removes an admin. Clients are never removed; the attempt is
	// recorded and DeletePrevented is returned. The user's last state is
	// returned in both cases.
	Delete(ctx context.Context, id int64) (repositories.DeleteOutcome, *models.User, error)
	// ChangePassword replaces the password after verifying the current one.
	ChangePassword(ctx context.Context, id int64, current, next string) error
}

type userService struct {
	userRepo repositories.UserRepository
	hasher   PasswordHasher
	recorder audit.Recorder
	logger   *zap.Logger
}

// NewUserService creates a new user service with dependencies.
func NewUserService(
	userRepo repositories.UserRepository,
	hasher PasswordHasher,
	recorder audit.Recorder,
	logger *zap.Logger,
) UserService {
	return &userService{
		userRepo: userRepo,
		hasher:   hasher,
		recorder: recorder,
		logger:   logger.Named("user-service"),
	}
}

var _ UserService = (*userService)(nil)

func (s *userService) Create(ctx context.Context, user *models.User, password string) error {
	if !models.IsValidRole(user.Role) {
		return fmt.Errorf("role %q: %w", user.Role, apperrors.ErrInvalidRole)
	}
	if user.Status == "" {
		user.Status = models.UserStatusActive
	}
	if !models.IsValidUserStatus(user.Status) {
		return fmt.Errorf("status %q: %w", user.Status, apperrors.ErrInvalidStatus)
	}
	if err := validateProfile(user); err != nil {
		return err
	}
	if err := validatePassword(password); err != nil {
		return err
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return err
	}
	user.PasswordHash = hash

	if err := s.userRepo.Create(ctx, user); err != nil {
		return err
	}

	s.logger.Info("User created",
		zap.Int64("user_id", user.ID),
		zap.String("role", user.Role),
		zap.String("email", logging.SanitizeEmail(user.Email)))

	action := models.AuditActionClientCreated
	if user.Role == models.RoleAdmin {
		action = models.AuditActionAdminCreated
	}
	s.recorder.Record(ctx, audit.Event{
		Action:   action,
		Entity:   models.AuditEntityUsers,
		RecordID: strconv.FormatInt(user.ID, 10),
		After:    user,
		Extra:    map[string]any{"creado_por_admin_id": models.ActorIDFromContext(ctx)},
	})
	return nil
}

func (s *userService) Get(ctx context.Context, id int64) (*models.User, error) {
	return s.userRepo.GetByID(ctx, id)
}

func (s *userService) List(ctx context.Context, filter models.UserFilter) ([]*models.User, error) {
	if filter.Role != "" && !models.IsValidRole(filter.Role) {
		return nil, fmt.Errorf("role %q: %w", filter.Role, apperrors.ErrInvalidRole)
	}
	if filter.Status != "" && !models.IsValidUserStatus(filter.Status) {
		return nil, fmt.Errorf("status %q: %w", filter.Status, apperrors.ErrInvalidStatus)
	}
	return s.userRepo.List(ctx, filter)
}

func (s *userService) Update(ctx context.Context, user *models.User) error {
	if err := validateProfile(user); err != nil {
		return err
	}

	previous, err := s.userRepo.Update(ctx, user)
	if err != nil {
		return err
	}

	action := models.AuditActionClientEdited
	if user.Role == models.RoleAdmin {
		action = models.AuditActionAdminEdited
	}
	s.recorder.Record(ctx, audit.Event{
		Action:   action,
		Entity:   models.AuditEntityUsers,
		RecordID: strconv.FormatInt(user.ID, 10),
		Before:   previous,
		After:    user,
		Extra:    map[string]any{"actualizado_por_admin_id": models.ActorIDFromContext(ctx)},
	})
	return nil
}

func (s *userService) SetStatus(ctx context.Context, id int64, status string) (*repositories.UserStatusChange, error) {
	if !models.IsValidUserStatus(status) {
		return nil, fmt.Errorf("status %q: %w", status, apperrors.ErrInvalidStatus)
	}

	change, err := s.userRepo.SetStatus(ctx, id, status)
	if err != nil {
		return nil, err
	}

	if len(change.DeactivatedAlerts) > 0 {
		s.logger.Info("Deactivated alerts of inactive user",
			zap.Int64("user_id", id),
			zap.Int("alerts", len(change.DeactivatedAlerts)))
	}

	extra := map[string]any{"actualizado_por_admin_id": models.ActorIDFromContext(ctx)}
	if len(change.DeactivatedAlerts) > 0 {
		extra["alertas_desactivadas"] = change.DeactivatedAlerts
	}
	s.recorder.Record(ctx, audit.Event{
		Action:   userStatusAction(change.Before, change.After),
		Entity:   models.AuditEntityUsers,
		RecordID: strconv.FormatInt(id, 10),
		Before:   change.Before,
		After:    change.After,
		Extra:    extra,
	})
	return change, nil
}

// userStatusAction picks the curated action for a status change.
func userStatusAction(before, after *models.User) string {
	if after.Role == models.RoleAdmin {
		return models.AuditActionAdminEdited
	}
	switch {
	case before.IsActive() && !after.IsActive():
		return models.AuditActionClientDeactivated
	case !before.IsActive() && after.IsActive():
		return models.AuditActionClientReactivated
	default:
		return models.AuditActionClientEdited
	}
}

func (s *userService) Delete(ctx context.Context, id int64) (repositories.DeleteOutcome, *models.User, error) {
	if actor := models.ActorIDFromContext(ctx); actor != nil && *actor == id {
		return 0, nil, fmt.Errorf("admins cannot delete themselves: %w", apperrors.ErrConflict)
	}

	outcome, previous, err := s.userRepo.Delete(ctx, id)
	if err != nil {
		return 0, nil, err
	}

	if outcome == repositories.DeletePrevented {
		s.logger.Info("Prevented physical delete of client", zap.Int64("user_id", id))
		return outcome, previous, nil
	}

	s.recorder.Record(ctx, audit.Event{
		Action:   models.AuditActionAdminDeleted,
		Entity:   models.AuditEntityUsers,
		RecordID: strconv.FormatInt(id, 10),
		Before:   previous,
		Extra:    map[string]any{"eliminado_por_admin_id": models.ActorIDFromContext(ctx)},
	})
	return outcome, previous, nil
}

func (s *userService) ChangePassword(ctx context.Context, id int64, current, next string) error {
	hash, err := s.userRepo.GetPasswordHash(ctx, id)
	if err != nil {
		return err
	}

	if err := s.hasher.Compare(hash, current); err != nil {
		if errors.Is(err, apperrors.ErrInvalidCredentials) {
			s.recorder.Record(ctx, audit.Event{
				Action:   models.AuditActionPasswordChangeFailed,
				Entity:   models.AuditEntityUsers,
				RecordID: strconv.FormatInt(id, 10),
				Extra:    map[string]any{"motivo": "contrasena actual incorrecta"},
			})
		}
		return err
	}
	if err := validatePassword(next); err != nil {
		return err
	}

	newHash, err := s.hasher.Hash(next)
	if err != nil {
		return err
	}
	if err := s.userRepo.SetPasswordHash(ctx, id, newHash); err != nil {
		return err
	}

	s.recorder.Record(ctx, audit.Event{
		Action:   models.AuditActionPasswordChanged,
		Entity:   models.AuditEntityUsers,
		RecordID: strconv.FormatInt(id, 10),
		Before:   map[string]string{"password": maskedPassword},
		After:    map[string]string{"password": maskedPassword},
	})
	return nil
}

// validateProfile trims and checks the required identity fields.
func validateProfile(user *models.User) error {
	user.Name = strings.TrimSpace(user.Name)
	user.NationalID = strings.TrimSpace(user.NationalID)
	user.Email = strings.TrimSpace(strings.ToLower(user.Email))

	switch {
	case user.Name == "":
		return fmt.Errorf("name is required: %w", apperrors.ErrValidation)
	case user.NationalID == "":
		return fmt.Errorf("national id is required: %w", apperrors.ErrValidation)
	case !strings.Contains(user.Email, "@"):
		return fmt.Errorf("email %q is invalid: %w", user.Email, apperrors.ErrValidation)
	}
	user.Phone = emptyToNil(user.Phone)
	user.City = emptyToNil(user.City)
	return nil
}

// emptyToNil maps blank optional strings to NULL.
func emptyToNil(s *string) *string {
	if s == nil {
		return nil
	}
	if v := strings.TrimSpace(*s); v != "" {
		return &v
	}
	return nil
}
