package repositories

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/medialert/medialert-engine/pkg/apperrors"
	"github.com/medialert/medialert-engine/pkg/database"
	"github.com/medialert/medialert-engine/pkg/metrics"
	"github.com/medialert/medialert-engine/pkg/models"
)

// AlertRepository defines the interface for alert data access.
type AlertRepository interface {
	// Create inserts an alert for an active client on an available medication.
	// AssignedBy is set to the actor in ctx.
	Create(ctx context.Context, alert *models.Alert) error
	GetByID(ctx context.Context, id int64) (*models.Alert, error)
	List(ctx context.Context, filter models.AlertFilter) ([]*models.AlertDetail, error)
	// Update replaces the editable fields, reassigns the alert to the actor in
	// ctx and returns the previous state.
	Update(ctx context.Context, alert *models.Alert) (*models.Alert, error)
	// Delete physically removes the alert and returns its last state.
	Delete(ctx context.Context, id int64) (*models.Alert, error)
	// Prescription returns the lines selected by filter grouped per client,
	// ordered by client name then medication name. GeneratedAt is left zero.
	Prescription(ctx context.Context, filter models.PrescriptionFilter) ([]*models.Prescription, error)
}

type alertRepository struct {
	hooks *changeHooks
}

// NewAlertRepository creates a new alert repository.
func NewAlertRepository(auditRepo AuditRepository, m *metrics.Metrics) AlertRepository {
	return &alertRepository{hooks: newChangeHooks(auditRepo, m)}
}

var _ AlertRepository = (*alertRepository)(nil)

const alertColumns = `a.id, a.user_id, a.medication_id, a.dose, a.frequency, a.start_date, a.end_date,
	a.preferred_time::text, a.last_notified_at, a.status, a.assigned_by`

func (r *alertRepository) Create(ctx context.Context, alert *models.Alert) error {
	err := mutateAndAudit(ctx, func(tx pgx.Tx) error {
		if err := checkAlertTargets(ctx, tx, alert.UserID, alert.MedicationID); err != nil {
			return err
		}

		_, after, err := r.hooks.insertRow(ctx, tx, models.AuditEntityAlerts,
			"user_id, medication_id, dose, frequency, start_date, end_date, preferred_time, status, assigned_by",
			"$1, $2, $3, $4, $5::date, $6::date, $7::time, $8, $9",
			alert.UserID, alert.MedicationID, alert.Dose, alert.Frequency,
			alert.StartDate, alert.EndDate, alert.PreferredTime, alert.Status,
			models.ActorIDFromContext(ctx),
		)
		if err != nil {
			return err
		}
		stored, err := decodeImage[models.Alert](after)
		if err != nil {
			return err
		}
		*alert = *stored
		return nil
	})
	return translateError("create alert", err)
}

func (r *alertRepository) GetByID(ctx context.Context, id int64) (*models.Alert, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no database scope in context")
	}

	row := scope.Conn.QueryRow(ctx, "SELECT "+alertColumns+" FROM alerts a WHERE a.id = $1", id)
	alert, err := scanAlert(row)
	if err != nil {
		return nil, translateError("get alert", err)
	}
	return alert, nil
}

func (r *alertRepository) List(ctx context.Context, filter models.AlertFilter) ([]*models.AlertDetail, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no database scope in context")
	}

	var (
		conds []string
		args  []any
	)
	if filter.UserID != nil {
		args = append(args, *filter.UserID)
		conds = append(conds, "a.user_id = $"+strconv.Itoa(len(args)))
	}
	if filter.MedicationID != nil {
		args = append(args, *filter.MedicationID)
		conds = append(conds, "a.medication_id = $"+strconv.Itoa(len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		conds = append(conds, "a.status = $"+strconv.Itoa(len(args)))
	}

	query := `SELECT ` + alertColumns + `, u.name, m.name
		FROM alerts a
		JOIN users u ON u.id = a.user_id
		JOIN medications m ON m.id = a.medication_id`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY a.start_date DESC, a.preferred_time DESC NULLS LAST, a.id DESC"

	rows, err := scope.Conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list alerts: %w", err)
	}
	defer rows.Close()

	var alerts []*models.AlertDetail
	for rows.Next() {
		var d models.AlertDetail
		if err := rows.Scan(append(alertScanTargets(&d.Alert), &d.UserName, &d.MedicationName)...); err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		alerts = append(alerts, &d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating alerts: %w", err)
	}

	return alerts, nil
}

func (r *alertRepository) Update(ctx context.Context, alert *models.Alert) (*models.Alert, error) {
	var previous *models.Alert
	err := mutateAndAudit(ctx, func(tx pgx.Tx) error {
		current, err := r.hooks.lockRow(ctx, tx, models.AuditEntityAlerts, alert.ID)
		if err != nil {
			return err
		}
		cur, err := decodeImage[models.Alert](current)
		if err != nil {
			return err
		}

		retargeted := cur.UserID != alert.UserID || cur.MedicationID != alert.MedicationID
		reactivated := alert.Status == models.AlertStatusActive && cur.Status != models.AlertStatusActive
		if retargeted || reactivated {
			if err := checkAlertTargets(ctx, tx, alert.UserID, alert.MedicationID); err != nil {
				return err
			}
		}

		before, after, err := r.hooks.updateRow(ctx, tx, models.AuditEntityAlerts, alert.ID,
			`user_id = $2, medication_id = $3, dose = $4, frequency = $5, start_date = $6::date,
			end_date = $7::date, preferred_time = $8::time, status = $9, assigned_by = $10`,
			alert.UserID, alert.MedicationID, alert.Dose, alert.Frequency, alert.StartDate,
			alert.EndDate, alert.PreferredTime, alert.Status, models.ActorIDFromContext(ctx),
		)
		if err != nil {
			return err
		}
		if previous, err = decodeImage[models.Alert](before); err != nil {
			return err
		}
		stored, err := decodeImage[models.Alert](after)
		if err != nil {
			return err
		}
		*alert = *stored
		return nil
	})
	if err != nil {
		return nil, translateError("update alert", err)
	}
	return previous, nil
}

func (r *alertRepository) Delete(ctx context.Context, id int64) (*models.Alert, error) {
	var previous *models.Alert
	err := mutateAndAudit(ctx, func(tx pgx.Tx) error {
		before, err := r.hooks.deleteRow(ctx, tx, models.AuditEntityAlerts, id)
		if err != nil {
			return err
		}
		previous, err = decodeImage[models.Alert](before)
		return err
	})
	if err != nil {
		return nil, translateError("delete alert", err)
	}
	return previous, nil
}

func (r *alertRepository) Prescription(ctx context.Context, filter models.PrescriptionFilter) ([]*models.Prescription, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no database scope in context")
	}

	var (
		conds []string
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, strings.ReplaceAll(cond, "?", "$"+strconv.Itoa(len(args))))
	}
	if filter.AlertID != nil {
		add("a.id = ?", *filter.AlertID)
	} else {
		add("a.status = ?", models.AlertStatusActive)
		add("m.status = ?", models.MedicationStatusAvailable)
		add("u.role = ?", models.RoleClient)
	}
	if filter.UserID != nil {
		add("a.user_id = ?", *filter.UserID)
	}

	query := `
		SELECT u.id, u.name, u.national_id, u.birth_date, u.phone, u.city, e.name, e.nit,
			a.id, a.status, m.id, m.name, m.description, m.composition, m.indications,
			m.side_effects, m.age_range, a.dose, a.frequency, a.start_date, a.end_date,
			a.preferred_time::text, ap.name
		FROM alerts a
		JOIN medications m ON m.id = a.medication_id
		JOIN users u ON u.id = a.user_id
		LEFT JOIN eps e ON e.id = u.eps_id
		LEFT JOIN users ap ON ap.id = a.assigned_by
		WHERE ` + strings.Join(conds, " AND ") + `
		ORDER BY u.name, u.id, m.name, a.id`

	rows, err := scope.Conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query prescription: %w", err)
	}
	defer rows.Close()

	// Rows arrive ordered by client, so a new header starts whenever the
	// client id changes.
	prescriptions := []*models.Prescription{}
	var current *models.Prescription
	for rows.Next() {
		var (
			p models.Prescription
			l models.PrescriptionLine
		)
		err := rows.Scan(
			&p.UserID, &p.UserName, &p.NationalID, &p.BirthDate, &p.Phone, &p.City, &p.EPSName, &p.EPSNIT,
			&l.AlertID, &l.AlertStatus, &l.MedicationID, &l.MedicationName, &l.Description, &l.Composition,
			&l.Indications, &l.SideEffects, &l.AgeRange, &l.Dose, &l.Frequency, &l.StartDate, &l.EndDate,
			&l.PreferredTime, &l.AssignedByName,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan prescription line: %w", err)
		}
		if current == nil || current.UserID != p.UserID {
			current = &p
			current.Lines = []models.PrescriptionLine{}
			prescriptions = append(prescriptions, current)
		}
		current.Lines = append(current.Lines, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating prescription lines: %w", err)
	}

	return prescriptions, nil
}

// checkAlertTargets verifies that the alert belongs to an active client and
// references an available medication. Both rows are share-locked so a
// concurrent deactivation cannot slip in before commit.
func checkAlertTargets(ctx context.Context, tx pgx.Tx, userID, medicationID int64) error {
	var role, status string
	err := tx.QueryRow(ctx, "SELECT role, status FROM users WHERE id = $1 FOR SHARE", userID).Scan(&role, &status)
	if errors.Is(err, pgx.ErrNoRows) || (err == nil && (role != models.RoleClient || status != models.UserStatusActive)) {
		return fmt.Errorf("user %d: %w", userID, apperrors.ErrInactiveUser)
	}
	if err != nil {
		return fmt.Errorf("failed to check alert user: %w", err)
	}

	err = tx.QueryRow(ctx, "SELECT status FROM medications WHERE id = $1 FOR SHARE", medicationID).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) || (err == nil && status != models.MedicationStatusAvailable) {
		return fmt.Errorf("medication %d: %w", medicationID, apperrors.ErrMedicationUnavailable)
	}
	if err != nil {
		return fmt.Errorf("failed to check alert medication: %w", err)
	}
	return nil
}

func alertScanTargets(a *models.Alert) []any {
	return []any{
		&a.ID,
		&a.UserID,
		&a.MedicationID,
		&a.Dose,
		&a.Frequency,
		&a.StartDate,
		&a.EndDate,
		&a.PreferredTime,
		&a.LastNotifiedAt,
		&a.Status,
		&a.AssignedBy,
	}
}

func scanAlert(row pgx.Row) (*models.Alert, error) {
	var a models.Alert
	if err := row.Scan(alertScanTargets(&a)...); err != nil {
		if err == pgx.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan alert: %w", err)
	}
	return &a, nil
}
