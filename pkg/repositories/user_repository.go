package repositories

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/medialert/medialert-engine/pkg/apperrors"
	"github.com/medialert/medialert-engine/pkg/database"
	"github.com/medialert/medialert-engine/pkg/metrics"
	"github.com/medialert/medialert-engine/pkg/models"
)

// DeleteOutcome tells the caller what a delete request actually did.
type DeleteOutcome int

const (
	// DeletePrevented means the row is protected; a prevented-delete entry was recorded instead.
	DeletePrevented DeleteOutcome = iota + 1
	// Deleted means the row was physically removed.
	Deleted
)

// UserStatusChange describes a user status transition and its cascade.
type UserStatusChange struct {
	Before            *models.User
	After             *models.User
	DeactivatedAlerts []int64
}

// UserRepository defines the interface for user data access.
type UserRepository interface {
	// Create inserts a user. ID and RegisteredOn are populated from the stored row.
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id int64) (*models.User, error)
	List(ctx context.Context, filter models.UserFilter) ([]*models.User, error)
	// Update changes profile fields and returns the previous state.
	Update(ctx context.Context, user *models.User) (*models.User, error)
	// SetStatus changes the status. active→inactive deactivates the user's
	// active alerts in the same transaction. Deactivating the last active admin
	// returns ErrLastAdmin.
	SetStatus(ctx context.Context, id int64, status string) (*UserStatusChange, error)
	SetPasswordHash(ctx context.Context, id int64, hash string) error
	GetPasswordHash(ctx context.Context, id int64) (string, error)
	// Delete never removes clients: it records a prevented-delete entry and
	// returns DeletePrevented. Admins are removed after their assigned_by
	// references are cleared; an admin that owns alerts yields ErrConflict.
	Delete(ctx context.Context, id int64) (DeleteOutcome, *models.User, error)
	CountActiveAdmins(ctx context.Context) (int, error)
}

// userRepository implements UserRepository using PostgreSQL.
type userRepository struct {
	hooks *changeHooks
}

// NewUserRepository creates a new user repository.
func NewUserRepository(auditRepo AuditRepository, m *metrics.Metrics) UserRepository {
	return &userRepository{hooks: newChangeHooks(auditRepo, m)}
}

var _ UserRepository = (*userRepository)(nil)

const userColumns = `id, name, national_id, email, password_hash, role, status,
	birth_date, phone, city, eps_id, registered_on`

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	err := mutateAndAudit(ctx, func(tx pgx.Tx) error {
		_, after, err := r.hooks.insertRow(ctx, tx, models.AuditEntityUsers,
			"name, national_id, email, password_hash, role, status, birth_date, phone, city, eps_id",
			"$1, $2, $3, $4, $5, $6, $7::date, $8, $9, $10",
			user.Name, user.NationalID, user.Email, user.PasswordHash, user.Role, user.Status,
			user.BirthDate, user.Phone, user.City, user.EPSID,
		)
		if err != nil {
			return err
		}
		stored, err := decodeImage[models.User](after)
		if err != nil {
			return err
		}
		stored.PasswordHash = user.PasswordHash
		*user = *stored
		return nil
	})
	return translateError("create user", err)
}

func (r *userRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no database scope in context")
	}

	row := scope.Conn.QueryRow(ctx, "SELECT "+userColumns+" FROM users WHERE id = $1", id)
	user, err := scanUser(row)
	if err != nil {
		return nil, translateError("get user", err)
	}
	return user, nil
}

func (r *userRepository) List(ctx context.Context, filter models.UserFilter) ([]*models.User, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no database scope in context")
	}

	var (
		conds []string
		args  []any
	)
	if filter.Role != "" {
		args = append(args, filter.Role)
		conds = append(conds, "role = $"+strconv.Itoa(len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		conds = append(conds, "status = $"+strconv.Itoa(len(args)))
	}
	if s := strings.TrimSpace(filter.Search); s != "" {
		args = append(args, "%"+s+"%")
		n := strconv.Itoa(len(args))
		conds = append(conds, "(name ILIKE $"+n+" OR national_id ILIKE $"+n+" OR email ILIKE $"+n+")")
	}

	query := "SELECT " + userColumns + " FROM users"
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY name, id"

	rows, err := scope.Conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating users: %w", err)
	}

	return users, nil
}

func (r *userRepository) Update(ctx context.Context, user *models.User) (*models.User, error) {
	var previous *models.User
	err := mutateAndAudit(ctx, func(tx pgx.Tx) error {
		before, after, err := r.hooks.updateRow(ctx, tx, models.AuditEntityUsers, user.ID,
			"name = $2, national_id = $3, email = $4, birth_date = $5::date, phone = $6, city = $7, eps_id = $8",
			user.Name, user.NationalID, user.Email, user.BirthDate, user.Phone, user.City, user.EPSID,
		)
		if err != nil {
			return err
		}
		if previous, err = decodeImage[models.User](before); err != nil {
			return err
		}
		stored, err := decodeImage[models.User](after)
		if err != nil {
			return err
		}
		*user = *stored
		return nil
	})
	if err != nil {
		return nil, translateError("update user", err)
	}
	return previous, nil
}

func (r *userRepository) SetStatus(ctx context.Context, id int64, status string) (*UserStatusChange, error) {
	change := &UserStatusChange{}
	err := mutateAndAudit(ctx, func(tx pgx.Tx) error {
		current, err := r.hooks.lockRow(ctx, tx, models.AuditEntityUsers, id)
		if err != nil {
			return err
		}
		cur, err := decodeImage[models.User](current)
		if err != nil {
			return err
		}
		if cur.Role == models.RoleAdmin && cur.IsActive() && status != models.UserStatusActive {
			if err := ensureAnotherActiveAdmin(ctx, tx, id); err != nil {
				return err
			}
		}

		before, after, err := r.hooks.updateRow(ctx, tx, models.AuditEntityUsers, id, "status = $2", status)
		if err != nil {
			return err
		}
		if change.Before, err = decodeImage[models.User](before); err != nil {
			return err
		}
		if change.After, err = decodeImage[models.User](after); err != nil {
			return err
		}

		if userInactiveRule.applies(change.Before.Status, change.After.Status) {
			change.DeactivatedAlerts, err = r.hooks.cascadeDeactivateAlerts(ctx, tx, userInactiveRule, id, change.After.Name)
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, translateError("set user status", err)
	}
	return change, nil
}

func (r *userRepository) SetPasswordHash(ctx context.Context, id int64, hash string) error {
	err := mutateAndAudit(ctx, func(tx pgx.Tx) error {
		_, _, err := r.hooks.updateRow(ctx, tx, models.AuditEntityUsers, id, "password_hash = $2", hash)
		return err
	})
	return translateError("set user password", err)
}

func (r *userRepository) GetPasswordHash(ctx context.Context, id int64) (string, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return "", fmt.Errorf("no database scope in context")
	}

	var hash string
	if err := scope.Conn.QueryRow(ctx, "SELECT password_hash FROM users WHERE id = $1", id).Scan(&hash); err != nil {
		return "", translateError("get user password", err)
	}
	return hash, nil
}

func (r *userRepository) Delete(ctx context.Context, id int64) (DeleteOutcome, *models.User, error) {
	var (
		outcome  DeleteOutcome
		previous *models.User
	)
	err := mutateAndAudit(ctx, func(tx pgx.Tx) error {
		before, err := r.hooks.lockRow(ctx, tx, models.AuditEntityUsers, id)
		if err != nil {
			return err
		}
		if previous, err = decodeImage[models.User](before); err != nil {
			return err
		}

		if previous.Role != models.RoleAdmin {
			outcome = DeletePrevented
			return r.hooks.preventDelete(ctx, tx, models.AuditActionClientDeletePrevented,
				models.AuditEntityUsers, id, before)
		}

		if previous.IsActive() {
			if err := ensureAnotherActiveAdmin(ctx, tx, id); err != nil {
				return err
			}
		}

		var owned int
		if err := tx.QueryRow(ctx, "SELECT COUNT(*) FROM alerts WHERE user_id = $1", id).Scan(&owned); err != nil {
			return fmt.Errorf("failed to count alerts owned by user %d: %w", id, err)
		}
		if owned > 0 {
			return fmt.Errorf("admin %d owns %d alerts: %w", id, owned, apperrors.ErrConflict)
		}

		rows, err := tx.Query(ctx, "SELECT id FROM alerts WHERE assigned_by = $1 ORDER BY id FOR UPDATE", id)
		if err != nil {
			return fmt.Errorf("failed to select alerts assigned by user %d: %w", id, err)
		}
		assigned, err := pgx.CollectRows(rows, pgx.RowTo[int64])
		if err != nil {
			return fmt.Errorf("failed to read alerts assigned by user %d: %w", id, err)
		}
		for _, alertID := range assigned {
			if _, _, err := r.hooks.updateRow(ctx, tx, models.AuditEntityAlerts, alertID, "assigned_by = NULL"); err != nil {
				return fmt.Errorf("failed to clear assigned_by on alert %d: %w", alertID, err)
			}
		}

		if _, err := r.hooks.deleteRow(ctx, tx, models.AuditEntityUsers, id); err != nil {
			return err
		}
		outcome = Deleted
		return nil
	})
	if err != nil {
		return 0, nil, translateError("delete user", err)
	}
	return outcome, previous, nil
}

func (r *userRepository) CountActiveAdmins(ctx context.Context) (int, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return 0, fmt.Errorf("no database scope in context")
	}

	var count int
	err := scope.Conn.QueryRow(ctx,
		"SELECT COUNT(*) FROM users WHERE role = $1 AND status = $2",
		models.RoleAdmin, models.UserStatusActive).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count admins: %w", err)
	}
	return count, nil
}

// ensureAnotherActiveAdmin returns ErrLastAdmin unless an active admin other
// than id exists. Other admins are locked so concurrent removals serialize.
func ensureAnotherActiveAdmin(ctx context.Context, tx pgx.Tx, id int64) error {
	rows, err := tx.Query(ctx,
		"SELECT id FROM users WHERE role = $1 AND status = $2 AND id <> $3 FOR UPDATE",
		models.RoleAdmin, models.UserStatusActive, id)
	if err != nil {
		return fmt.Errorf("failed to count admins: %w", err)
	}
	others, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return fmt.Errorf("failed to count admins: %w", err)
	}
	if len(others) == 0 {
		return apperrors.ErrLastAdmin
	}
	return nil
}

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(
		&u.ID,
		&u.Name,
		&u.NationalID,
		&u.Email,
		&u.PasswordHash,
		&u.Role,
		&u.Status,
		&u.BirthDate,
		&u.Phone,
		&u.City,
		&u.EPSID,
		&u.RegisteredOn,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}
	return &u, nil
}
