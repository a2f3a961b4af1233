package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"

	"github.com/medialert/medialert-engine/pkg/audit"
	"github.com/medialert/medialert-engine/pkg/database"
	"github.com/medialert/medialert-engine/pkg/metrics"
	"github.com/medialert/medialert-engine/pkg/models"
)

// mutateAndAudit runs fn in one transaction on the request's scoped connection.
// Every mutating repository method goes through it and performs its writes
// with the changeHooks helpers, so the hook-level audit entries, guards and
// cascades commit or roll back together with the mutation they describe.
func mutateAndAudit(ctx context.Context, fn func(tx pgx.Tx) error) error {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return fmt.Errorf("no database scope in context")
	}
	return pgx.BeginFunc(ctx, scope.Conn, fn)
}

// changeHooks performs row mutations on audited tables and appends exactly one
// hook-level audit entry per affected row, in the caller's transaction.
// A failed audit insert returns an error, which rolls the transaction back.
type changeHooks struct {
	audit   AuditRepository
	metrics *metrics.Metrics
}

func newChangeHooks(auditRepo AuditRepository, m *metrics.Metrics) *changeHooks {
	return &changeHooks{audit: auditRepo, metrics: m}
}

// rowImage is the SQL expression producing the audited image of alias t.
// Password hashes never reach the audit log.
func rowImage(table string) string {
	if table == models.AuditEntityUsers {
		return "to_jsonb(t) - 'password_hash'"
	}
	return "to_jsonb(t)"
}

// insertRow runs INSERT INTO table AS t (columns) VALUES (values) and records an INSERT entry.
// values holds the placeholder list, e.g. "$1, $2, $3::date".
func (h *changeHooks) insertRow(ctx context.Context, tx pgx.Tx, table, columns, values string, args ...any) (int64, json.RawMessage, error) {
	query := fmt.Sprintf(`INSERT INTO %s AS t (%s) VALUES (%s) RETURNING t.id, %s`,
		table, columns, values, rowImage(table))

	var (
		id    int64
		after []byte
	)
	if err := tx.QueryRow(ctx, query, args...).Scan(&id, &after); err != nil {
		return 0, nil, err
	}

	if err := h.write(ctx, tx, models.AuditActionInsert, table, id, nil, after, nil); err != nil {
		return 0, nil, err
	}
	return id, after, nil
}

// lockRow returns the current image of a row and holds FOR UPDATE on it until
// the transaction ends. Missing rows yield pgx.ErrNoRows.
func (h *changeHooks) lockRow(ctx context.Context, tx pgx.Tx, table string, id int64) (json.RawMessage, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s t WHERE t.id = $1 FOR UPDATE`, rowImage(table), table)

	var before []byte
	if err := tx.QueryRow(ctx, query, id).Scan(&before); err != nil {
		return nil, err
	}
	return before, nil
}

// updateRow locks the row, applies "UPDATE table AS t SET <set> WHERE t.id = $1"
// and records an UPDATE entry with both images. Placeholders in set start at $2.
func (h *changeHooks) updateRow(ctx context.Context, tx pgx.Tx, table string, id int64, set string, args ...any) (before, after json.RawMessage, err error) {
	before, err = h.lockRow(ctx, tx, table, id)
	if err != nil {
		return nil, nil, err
	}

	query := fmt.Sprintf(`UPDATE %s AS t SET %s WHERE t.id = $1 RETURNING %s`, table, set, rowImage(table))

	var raw []byte
	if err := tx.QueryRow(ctx, query, append([]any{id}, args...)...).Scan(&raw); err != nil {
		return nil, nil, err
	}
	after = raw

	if err := h.write(ctx, tx, models.AuditActionUpdate, table, id, before, after, nil); err != nil {
		return nil, nil, err
	}
	return before, after, nil
}

// deleteRow physically removes the row and records a DELETE entry with its last image.
func (h *changeHooks) deleteRow(ctx context.Context, tx pgx.Tx, table string, id int64) (json.RawMessage, error) {
	query := fmt.Sprintf(`DELETE FROM %s AS t WHERE t.id = $1 RETURNING %s`, table, rowImage(table))

	var before []byte
	if err := tx.QueryRow(ctx, query, id).Scan(&before); err != nil {
		return nil, err
	}

	if err := h.write(ctx, tx, models.AuditActionDelete, table, id, before, nil, nil); err != nil {
		return nil, err
	}
	return before, nil
}

// preventDelete records a prevented physical delete. The row is left untouched.
func (h *changeHooks) preventDelete(ctx context.Context, tx pgx.Tx, action, table string, id int64, before json.RawMessage) error {
	if err := h.write(ctx, tx, action, table, id, before, nil, nil); err != nil {
		return err
	}
	h.metrics.DeletePrevented(table)
	return nil
}

// write normalizes the images and appends one entry attributed to the actor in ctx.
func (h *changeHooks) write(ctx context.Context, tx pgx.Tx, action, table string, id int64, before, after json.RawMessage, extra any) error {
	entry, err := audit.BuildEntry(ctx, audit.Event{
		Action:   action,
		Entity:   table,
		RecordID: strconv.FormatInt(id, 10),
		Before:   before,
		After:    after,
		Extra:    extra,
	})
	if err != nil {
		return fmt.Errorf("failed to build %s audit entry for %s %d: %w", action, table, id, err)
	}

	if err := h.audit.Append(ctx, tx, entry); err != nil {
		return fmt.Errorf("failed to write %s audit entry for %s %d: %w", action, table, id, err)
	}

	h.metrics.AuditEntryWritten(metrics.SourceHook, table)
	return nil
}

// decodeImage unmarshals a row image into a model.
func decodeImage[T any](image json.RawMessage) (*T, error) {
	var out T
	if err := json.Unmarshal(image, &out); err != nil {
		return nil, fmt.Errorf("failed to decode row image: %w", err)
	}
	return &out, nil
}
