package repositories

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/medialert/medialert-engine/pkg/database"
	"github.com/medialert/medialert-engine/pkg/metrics"
	"github.com/medialert/medialert-engine/pkg/models"
)

// MedicationStatusChange describes a medication status transition and its cascade.
type MedicationStatusChange struct {
	Before            *models.Medication
	After             *models.Medication
	DeactivatedAlerts []int64
}

// MedicationRepository defines the interface for medication data access.
type MedicationRepository interface {
	Create(ctx context.Context, med *models.Medication) error
	GetByID(ctx context.Context, id int64) (*models.Medication, error)
	List(ctx context.Context, filter models.MedicationFilter) ([]*models.Medication, error)
	// Update changes descriptive fields and returns the previous state.
	Update(ctx context.Context, med *models.Medication) (*models.Medication, error)
	// SetStatus changes the status. available→discontinued deactivates every
	// active alert on the medication in the same transaction.
	SetStatus(ctx context.Context, id int64, status string) (*MedicationStatusChange, error)
	// Delete never removes the row; it records a prevented-delete entry.
	Delete(ctx context.Context, id int64) (*models.Medication, error)
}

type medicationRepository struct {
	hooks *changeHooks
}

// NewMedicationRepository creates a new medication repository.
func NewMedicationRepository(auditRepo AuditRepository, m *metrics.Metrics) MedicationRepository {
	return &medicationRepository{hooks: newChangeHooks(auditRepo, m)}
}

var _ MedicationRepository = (*medicationRepository)(nil)

const medicationColumns = `id, name, description, composition, side_effects, indications, age_range, status`

func (r *medicationRepository) Create(ctx context.Context, med *models.Medication) error {
	err := mutateAndAudit(ctx, func(tx pgx.Tx) error {
		_, after, err := r.hooks.insertRow(ctx, tx, models.AuditEntityMedications,
			"name, description, composition, side_effects, indications, age_range, status",
			"$1, $2, $3, $4, $5, $6, $7",
			med.Name, med.Description, med.Composition, med.SideEffects, med.Indications, med.AgeRange, med.Status,
		)
		if err != nil {
			return err
		}
		stored, err := decodeImage[models.Medication](after)
		if err != nil {
			return err
		}
		*med = *stored
		return nil
	})
	return translateError("create medication", err)
}

func (r *medicationRepository) GetByID(ctx context.Context, id int64) (*models.Medication, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no database scope in context")
	}

	row := scope.Conn.QueryRow(ctx, "SELECT "+medicationColumns+" FROM medications WHERE id = $1", id)
	med, err := scanMedication(row)
	if err != nil {
		return nil, translateError("get medication", err)
	}
	return med, nil
}

func (r *medicationRepository) List(ctx context.Context, filter models.MedicationFilter) ([]*models.Medication, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no database scope in context")
	}

	var (
		conds []string
		args  []any
	)
	if filter.Status != "" {
		args = append(args, filter.Status)
		conds = append(conds, "status = $"+strconv.Itoa(len(args)))
	}
	if s := strings.TrimSpace(filter.Search); s != "" {
		args = append(args, "%"+s+"%")
		conds = append(conds, "name ILIKE $"+strconv.Itoa(len(args)))
	}

	query := "SELECT " + medicationColumns + " FROM medications"
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY name"

	rows, err := scope.Conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list medications: %w", err)
	}
	defer rows.Close()

	var meds []*models.Medication
	for rows.Next() {
		med, err := scanMedication(rows)
		if err != nil {
			return nil, err
		}
		meds = append(meds, med)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating medications: %w", err)
	}

	return meds, nil
}

func (r *medicationRepository) Update(ctx context.Context, med *models.Medication) (*models.Medication, error) {
	var previous *models.Medication
	err := mutateAndAudit(ctx, func(tx pgx.Tx) error {
		before, after, err := r.hooks.updateRow(ctx, tx, models.AuditEntityMedications, med.ID,
			"name = $2, description = $3, composition = $4, side_effects = $5, indications = $6, age_range = $7",
			med.Name, med.Description, med.Composition, med.SideEffects, med.Indications, med.AgeRange,
		)
		if err != nil {
			return err
		}
		if previous, err = decodeImage[models.Medication](before); err != nil {
			return err
		}
		stored, err := decodeImage[models.Medication](after)
		if err != nil {
			return err
		}
		*med = *stored
		return nil
	})
	if err != nil {
		return nil, translateError("update medication", err)
	}
	return previous, nil
}

func (r *medicationRepository) SetStatus(ctx context.Context, id int64, status string) (*MedicationStatusChange, error) {
	change := &MedicationStatusChange{}
	err := mutateAndAudit(ctx, func(tx pgx.Tx) error {
		before, after, err := r.hooks.updateRow(ctx, tx, models.AuditEntityMedications, id, "status = $2", status)
		if err != nil {
			return err
		}
		if change.Before, err = decodeImage[models.Medication](before); err != nil {
			return err
		}
		if change.After, err = decodeImage[models.Medication](after); err != nil {
			return err
		}

		if medicationDiscontinuedRule.applies(change.Before.Status, change.After.Status) {
			change.DeactivatedAlerts, err = r.hooks.cascadeDeactivateAlerts(ctx, tx, medicationDiscontinuedRule, id, change.After.Name)
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, translateError("set medication status", err)
	}
	return change, nil
}

func (r *medicationRepository) Delete(ctx context.Context, id int64) (*models.Medication, error) {
	var current *models.Medication
	err := mutateAndAudit(ctx, func(tx pgx.Tx) error {
		before, err := r.hooks.lockRow(ctx, tx, models.AuditEntityMedications, id)
		if err != nil {
			return err
		}
		if current, err = decodeImage[models.Medication](before); err != nil {
			return err
		}
		return r.hooks.preventDelete(ctx, tx, models.AuditActionMedicationDeletePrevented,
			models.AuditEntityMedications, id, before)
	})
	if err != nil {
		return nil, translateError("delete medication", err)
	}
	return current, nil
}

func scanMedication(row pgx.Row) (*models.Medication, error) {
	var m models.Medication
	err := row.Scan(
		&m.ID,
		&m.Name,
		&m.Description,
		&m.Composition,
		&m.SideEffects,
		&m.Indications,
		&m.AgeRange,
		&m.Status,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan medication: %w", err)
	}
	return &m, nil
}
