package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/medialert/medialert-engine/pkg/models"
	"github.com/medialert/medialert-engine/pkg/repositories"
)

// InitialAdmin describes the admin created on first start.
type InitialAdmin struct {
	Name       string
	NationalID string
	Email      string
	Password   string
}

// EnsureInitialAdmin creates the configured admin when the database has no
// active admin, so a fresh install can be administered. It reports whether
// an admin was created. The creation is audited like any other, without an
// actor. ctx must carry a database scope.
func EnsureInitialAdmin(
	ctx context.Context,
	userRepo repositories.UserRepository,
	userService UserService,
	admin InitialAdmin,
	logger *zap.Logger,
) (bool, error) {
	if admin.Email == "" {
		return false, nil
	}

	count, err := userRepo.CountActiveAdmins(ctx)
	if err != nil {
		return false, err
	}
	if count > 0 {
		logger.Debug("Active admin present, skipping bootstrap", zap.Int("admins", count))
		return false, nil
	}

	user := &models.User{
		Name:       admin.Name,
		NationalID: admin.NationalID,
		Email:      admin.Email,
		Role:       models.RoleAdmin,
		Status:     models.UserStatusActive,
	}
	if err := userService.Create(ctx, user, admin.Password); err != nil {
		return false, fmt.Errorf("failed to create initial admin: %w", err)
	}

	logger.Info("Created initial admin", zap.Int64("user_id", user.ID))
	return true, nil
}
