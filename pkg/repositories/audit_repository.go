package repositories

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/medialert/medialert-engine/pkg/database"
	"github.com/medialert/medialert-engine/pkg/models"
)

// AuditRepository provides data access for the append-only audit log.
// There is deliberately no update or delete method; the table rejects both.
type AuditRepository interface {
	// Append inserts one entry using q, which is usually the caller's transaction.
	// ID and OccurredAt are populated from the stored row.
	Append(ctx context.Context, q database.Querier, entry *models.AuditEntry) error

	// List returns entries matching filter, newest first.
	List(ctx context.Context, filter models.AuditFilter) ([]*models.AuditEntry, error)

	// Count returns how many entries match filter, ignoring limit and offset.
	Count(ctx context.Context, filter models.AuditFilter) (int64, error)

	// GetByID returns one entry.
	GetByID(ctx context.Context, id int64) (*models.AuditEntry, error)
}

type auditRepository struct{}

// NewAuditRepository creates a new AuditRepository.
func NewAuditRepository() AuditRepository {
	return &auditRepository{}
}

var _ AuditRepository = (*auditRepository)(nil)

const auditColumns = `aud.id, aud.actor_user_id, aud.occurred_at, aud.action, aud.affected_entity,
	aud.affected_record_id, aud.before_state, aud.after_state, aud.extra_context,
	actor.name, actor.national_id`

// auditFrom joins each entry to its actor. Entries outlive deleted admins, so
// the join is outer and the actor fields may be NULL.
const auditFrom = `audit_log aud LEFT JOIN users actor ON actor.id = aud.actor_user_id`

func (r *auditRepository) Append(ctx context.Context, q database.Querier, entry *models.AuditEntry) error {
	query := `
		INSERT INTO audit_log (
			actor_user_id, action, affected_entity, affected_record_id,
			before_state, after_state, extra_context
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, occurred_at`

	err := q.QueryRow(ctx, query,
		entry.ActorUserID,
		entry.Action,
		entry.AffectedEntity,
		entry.AffectedRecordID,
		nullableJSON(entry.BeforeState),
		nullableJSON(entry.AfterState),
		nullableJSON(entry.ExtraContext),
	).Scan(&entry.ID, &entry.OccurredAt)
	if err != nil {
		return fmt.Errorf("failed to append audit log entry: %w", err)
	}

	return nil
}

func (r *auditRepository) List(ctx context.Context, filter models.AuditFilter) ([]*models.AuditEntry, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no database scope in context")
	}

	where, args := auditWhere(filter)
	args = append(args, filter.EffectiveLimit(), max(filter.Offset, 0))
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s
		%s
		ORDER BY aud.occurred_at DESC, aud.id DESC
		LIMIT $%d OFFSET $%d`, auditColumns, auditFrom, where, len(args)-1, len(args))

	rows, err := scope.Conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit log: %w", err)
	}
	defer rows.Close()

	var entries []*models.AuditEntry
	for rows.Next() {
		entry, err := scanAuditEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit log entries: %w", err)
	}

	return entries, nil
}

func (r *auditRepository) Count(ctx context.Context, filter models.AuditFilter) (int64, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return 0, fmt.Errorf("no database scope in context")
	}

	where, args := auditWhere(filter)
	var count int64
	if err := scope.Conn.QueryRow(ctx, "SELECT COUNT(*) FROM audit_log aud "+where, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count audit log entries: %w", err)
	}
	return count, nil
}

func (r *auditRepository) GetByID(ctx context.Context, id int64) (*models.AuditEntry, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no database scope in context")
	}

	row := scope.Conn.QueryRow(ctx, "SELECT "+auditColumns+" FROM "+auditFrom+" WHERE aud.id = $1", id)
	entry, err := scanAuditEntry(row)
	if err != nil {
		return nil, translateError("get audit log entry", err)
	}
	return entry, nil
}

// auditWhere builds the WHERE clause for filter over the aud alias.
// Placeholders start at $1.
func auditWhere(filter models.AuditFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, strings.ReplaceAll(cond, "?", "$"+strconv.Itoa(len(args))))
	}

	if filter.Entity != "" {
		add("aud.affected_entity = ?", filter.Entity)
	}
	if filter.RecordID != "" {
		add("aud.affected_record_id = ?", filter.RecordID)
	}
	if filter.Action != "" {
		add("aud.action = ?", filter.Action)
	}
	if filter.ActorUserID != nil {
		add("aud.actor_user_id = ?", *filter.ActorUserID)
	}
	if filter.Since != nil {
		add("aud.occurred_at >= ?", *filter.Since)
	}
	if filter.Until != nil {
		add("aud.occurred_at < ?", *filter.Until)
	}

	if len(conds) == 0 {
		return "", args
	}
	return "WHERE " + strings.Join(conds, " AND "), args
}

func scanAuditEntry(row pgx.Row) (*models.AuditEntry, error) {
	var entry models.AuditEntry
	var before, after, extra []byte

	err := row.Scan(
		&entry.ID,
		&entry.ActorUserID,
		&entry.OccurredAt,
		&entry.Action,
		&entry.AffectedEntity,
		&entry.AffectedRecordID,
		&before,
		&after,
		&extra,
		&entry.ActorName,
		&entry.ActorNationalID,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan audit log entry: %w", err)
	}

	entry.BeforeState = before
	entry.AfterState = after
	entry.ExtraContext = extra
	return &entry, nil
}

// nullableJSON maps an empty payload to SQL NULL rather than an empty document.
func nullableJSON(raw []byte) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}
