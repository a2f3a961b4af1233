package repositories

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/medialert/medialert-engine/pkg/models"
)

// cascadeRule describes one bulk alert deactivation triggered by a parent
// status transition.
type cascadeRule struct {
	name      string // metrics label
	action    string
	column    string // alerts column referencing the parent
	idKey     string
	nameKey   string
	fromState string
	toState   string
}

var (
	userInactiveRule = cascadeRule{
		name:      "user_inactive",
		action:    models.AuditActionAlertsDeactivatedByUser,
		column:    "user_id",
		idKey:     "usuario_inactivado_id",
		nameKey:   "usuario_nombre",
		fromState: models.UserStatusActive,
		toState:   models.UserStatusInactive,
	}
	medicationDiscontinuedRule = cascadeRule{
		name:      "medication_discontinued",
		action:    models.AuditActionAlertsDeactivatedByMed,
		column:    "medication_id",
		idKey:     "medicamento_discontinuado_id",
		nameKey:   "medicamento_nombre",
		fromState: models.MedicationStatusAvailable,
		toState:   models.MedicationStatusDiscontinued,
	}
)

// applies reports whether a parent status change fires the rule.
// Only the exact from→to transition qualifies.
func (r cascadeRule) applies(oldStatus, newStatus string) bool {
	return oldStatus == r.fromState && newStatus == r.toState
}

// cascadeDeactivateAlerts moves every active alert of the parent to inactive
// through the per-row hook, then appends one summary entry for the rule.
// It returns the ids of the alerts it changed.
func (h *changeHooks) cascadeDeactivateAlerts(ctx context.Context, tx pgx.Tx, rule cascadeRule, parentID int64, parentName string) ([]int64, error) {
	query := fmt.Sprintf(`SELECT id FROM alerts WHERE %s = $1 AND status = $2 ORDER BY id FOR UPDATE`, rule.column)

	rows, err := tx.Query(ctx, query, parentID, models.AlertStatusActive)
	if err != nil {
		return nil, fmt.Errorf("failed to select alerts for %s cascade: %w", rule.name, err)
	}
	alertIDs, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, fmt.Errorf("failed to read alerts for %s cascade: %w", rule.name, err)
	}

	for _, alertID := range alertIDs {
		if _, _, err := h.updateRow(ctx, tx, models.AuditEntityAlerts, alertID,
			"status = $2", models.AlertStatusInactive); err != nil {
			return nil, fmt.Errorf("failed to deactivate alert %d: %w", alertID, err)
		}
	}

	extra := map[string]any{
		rule.idKey:          parentID,
		rule.nameKey:        parentName,
		"alertas_afectadas": alertIDs,
	}
	if alertIDs == nil {
		extra["alertas_afectadas"] = []int64{}
	}
	if err := h.write(ctx, tx, rule.action, models.AuditEntityAlerts, parentID, nil, nil, extra); err != nil {
		return nil, err
	}

	h.metrics.CascadeApplied(rule.name, len(alertIDs))
	return alertIDs, nil
}
