// Package audit records application-level audit events.
//
// Application-level entries carry a curated action name and extra context.
// They are written after the business transaction has committed, in a
// transaction of their own, so a failing audit write never undoes or fails
// the operation it describes. Failures are reported to the operational log
// and to the medialert_audit_record_failures_total counter instead.
package audit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/medialert/medialert-engine/pkg/database"
	"github.com/medialert/medialert-engine/pkg/metrics"
	"github.com/medialert/medialert-engine/pkg/models"
)

// DefaultWriteTimeout bounds one application-level audit write.
const DefaultWriteTimeout = 5 * time.Second

// Event is one application-level audit event.
// Before, After and Extra accept any JSON-compatible value; see Normalize.
type Event struct {
	Action   string
	Entity   string
	RecordID string
	Before   any
	After    any
	Extra    any
}

// Store appends audit entries inside a caller-provided transaction.
// Satisfied by repositories.AuditRepository.
type Store interface {
	Append(ctx context.Context, q database.Querier, entry *models.AuditEntry) error
}

// Recorder writes application-level audit events.
type Recorder interface {
	// Record persists the event. It never returns an error and never panics;
	// failures are logged and counted.
	Record(ctx context.Context, event Event)
}

type recorder struct {
	db      database.TxBeginner
	store   Store
	metrics *metrics.Metrics
	logger  *zap.Logger
	timeout time.Duration
}

var _ Recorder = (*recorder)(nil)

// Option customizes a Recorder.
type Option func(*recorder)

// WithWriteTimeout overrides DefaultWriteTimeout. Non-positive values are ignored.
func WithWriteTimeout(d time.Duration) Option {
	return func(r *recorder) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// NewRecorder creates a Recorder that writes through store on connections
// taken from db, never the request's scoped connection.
func NewRecorder(db database.TxBeginner, store Store, m *metrics.Metrics, logger *zap.Logger, opts ...Option) Recorder {
	r := &recorder{
		db:      db,
		store:   store,
		metrics: m,
		logger:  logger.Named("audit"),
		timeout: DefaultWriteTimeout,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Record implements Recorder.
func (r *recorder) Record(ctx context.Context, event Event) {
	defer func() {
		if p := recover(); p != nil {
			r.fail(metrics.StagePanic, event, fmt.Errorf("panic: %v", p))
		}
	}()

	if strings.TrimSpace(event.Action) == "" {
		r.fail(metrics.StageValidate, event, errors.New("audit event has no action"))
		return
	}

	entry, err := BuildEntry(ctx, event)
	if err != nil {
		r.fail(metrics.StageSerialize, event, err)
		return
	}

	// The business operation has already committed; the audit write must not
	// be cut short because the request that triggered it is finishing.
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
	defer cancel()

	tx, err := r.db.Begin(writeCtx)
	if err != nil {
		r.fail(metrics.StageBegin, event, err)
		return
	}
	defer func() {
		if err := tx.Rollback(writeCtx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			r.logger.Warn("Failed to rollback audit transaction", zap.Error(err))
		}
	}()

	if err := r.store.Append(writeCtx, tx, entry); err != nil {
		r.fail(metrics.StageInsert, event, err)
		return
	}

	if err := tx.Commit(writeCtx); err != nil {
		r.fail(metrics.StageCommit, event, err)
		return
	}

	r.metrics.AuditEntryWritten(metrics.SourceApplication, event.Entity)
	r.logger.Debug("Audit event recorded",
		zap.String("action", event.Action),
		zap.String("entity", event.Entity),
		zap.String("record_id", event.RecordID),
		zap.Int64("audit_id", entry.ID))
}

func (r *recorder) fail(stage string, event Event, err error) {
	r.metrics.AuditRecordFailed(stage)
	r.logger.Error("Failed to record audit event",
		zap.String("stage", stage),
		zap.String("action", event.Action),
		zap.String("entity", event.Entity),
		zap.String("record_id", event.RecordID),
		zap.Error(err))
}

// BuildEntry normalizes an event into an AuditEntry attributed to the actor in ctx.
func BuildEntry(ctx context.Context, event Event) (*models.AuditEntry, error) {
	entry := &models.AuditEntry{
		ActorUserID: models.ActorIDFromContext(ctx),
		Action:      event.Action,
	}
	if event.Entity != "" {
		entity := event.Entity
		entry.AffectedEntity = &entity
	}
	if event.RecordID != "" {
		recordID := event.RecordID
		entry.AffectedRecordID = &recordID
	}

	var err error
	if entry.BeforeState, err = Normalize(event.Before); err != nil {
		return nil, fmt.Errorf("failed to normalize before state: %w", err)
	}
	if entry.AfterState, err = Normalize(event.After); err != nil {
		return nil, fmt.Errorf("failed to normalize after state: %w", err)
	}
	if entry.ExtraContext, err = Normalize(event.Extra); err != nil {
		return nil, fmt.Errorf("failed to normalize extra context: %w", err)
	}
	return entry, nil
}
