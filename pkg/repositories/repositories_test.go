//go:build integration

package repositories

import (
	"context"
	"encoding/json"
	"strconv"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/medialert/medialert-engine/pkg/models"
	"github.com/medialert/medialert-engine/pkg/testhelpers"
)

// repoTestContext holds test dependencies for repository integration tests.
// audit_log cannot be cleaned between tests, so every test creates its own
// rows and reads the log filtered by record id.
type repoTestContext struct {
	t        *testing.T
	engineDB *testhelpers.EngineDB
	audit    AuditRepository
	users    UserRepository
	meds     MedicationRepository
	alerts   AlertRepository
	eps      EPSRepository
	admin    *models.User
}

func setupRepoTest(t *testing.T) *repoTestContext {
	engineDB := testhelpers.GetEngineDB(t)
	auditRepo := NewAuditRepository()
	tc := &repoTestContext{
		t:        t,
		engineDB: engineDB,
		audit:    auditRepo,
		users:    NewUserRepository(auditRepo, nil),
		meds:     NewMedicationRepository(auditRepo, nil),
		alerts:   NewAlertRepository(auditRepo, nil),
		eps:      NewEPSRepository(),
	}

	ctx, cleanup := testhelpers.CreateScopedContext(t, context.Background(), engineDB.DB)
	defer cleanup()
	tc.admin = tc.createUser(ctx, models.RoleAdmin, models.UserStatusActive)
	return tc
}

// createTestContext returns a scoped context acting as the test admin.
func (tc *repoTestContext) createTestContext() (context.Context, func()) {
	tc.t.Helper()
	return testhelpers.ActingAs(tc.t, tc.engineDB.DB, tc.admin.ID, models.RoleAdmin)
}

func (tc *repoTestContext) createUser(ctx context.Context, role, status string) *models.User {
	tc.t.Helper()
	suffix := uuid.NewString()[:12]
	user := &models.User{
		Name:         "Test " + role + " " + suffix,
		NationalID:   suffix,
		Email:        suffix + "@medialert.test",
		PasswordHash: "$2a$10$test-hash",
		Role:         role,
		Status:       status,
	}
	require.NoError(tc.t, tc.users.Create(ctx, user))
	return user
}

func (tc *repoTestContext) createMedication(ctx context.Context, status string) *models.Medication {
	tc.t.Helper()
	desc := "test medication"
	med := &models.Medication{
		Name:        "Med " + uuid.NewString()[:12],
		Description: &desc,
		Status:      status,
	}
	require.NoError(tc.t, tc.meds.Create(ctx, med))
	return med
}

func (tc *repoTestContext) createAlert(ctx context.Context, userID, medicationID int64, status string) *models.Alert {
	tc.t.Helper()
	preferred := "08:30"
	alert := &models.Alert{
		UserID:        userID,
		MedicationID:  medicationID,
		Dose:          "1 tablet",
		Frequency:     "every 8 hours",
		StartDate:     models.NewDate(time.Now()),
		PreferredTime: &preferred,
		Status:        models.AlertStatusActive,
	}
	require.NoError(tc.t, tc.alerts.Create(ctx, alert))

	if status != models.AlertStatusActive {
		alert.Status = status
		_, err := tc.alerts.Update(ctx, alert)
		require.NoError(tc.t, err)
	}
	return alert
}

// entriesFor returns the audit entries of one record in write order.
func (tc *repoTestContext) entriesFor(ctx context.Context, entity string, id int64) []*models.AuditEntry {
	tc.t.Helper()
	entries, err := tc.audit.List(ctx, models.AuditFilter{
		Entity:   entity,
		RecordID: strconv.FormatInt(id, 10),
		Limit:    models.MaxAuditLimit,
	})
	require.NoError(tc.t, err)

	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	return entries
}

// entriesWithAction filters entries by action.
func entriesWithAction(entries []*models.AuditEntry, action string) []*models.AuditEntry {
	var out []*models.AuditEntry
	for _, e := range entries {
		if e.Action == action {
			out = append(out, e)
		}
	}
	return out
}

func decodeState(t *testing.T, raw json.RawMessage) map[string]any {
	t.Helper()
	require.NotEmpty(t, raw)
	var m map[string]any
	require.NoError(t, json.Unmarshal(raw, &m))
	return m
}
