//go:build integration

package repositories

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medialert/medialert-engine/pkg/apperrors"
	"github.com/medialert/medialert-engine/pkg/database"
	"github.com/medialert/medialert-engine/pkg/models"
)

func TestUserRepository_Create_WritesInsertEntry(t *testing.T) {
	tc := setupRepoTest(t)
	ctx, cleanup := tc.createTestContext()
	defer cleanup()

	user := tc.createUser(ctx, models.RoleClient, models.UserStatusActive)
	assert.NotZero(t, user.ID)
	assert.False(t, user.RegisteredOn.IsZero())

	entries := tc.entriesFor(ctx, models.AuditEntityUsers, user.ID)
	require.Len(t, entries, 1)

	entry := entries[0]
	assert.Equal(t, models.AuditActionInsert, entry.Action)
	require.NotNil(t, entry.ActorUserID)
	assert.Equal(t, tc.admin.ID, *entry.ActorUserID)
	assert.Nil(t, entry.BeforeState)

	after := decodeState(t, entry.AfterState)
	assert.Equal(t, user.NationalID, after["national_id"])
	assert.NotContains(t, after, "password_hash")
}

func TestUserRepository_Create_DuplicateNationalID(t *testing.T) {
	tc := setupRepoTest(t)
	ctx, cleanup := tc.createTestContext()
	defer cleanup()

	user := tc.createUser(ctx, models.RoleClient, models.UserStatusActive)
	dup := &models.User{
		Name:         "Duplicate",
		NationalID:   user.NationalID,
		Email:        "other-" + user.Email,
		PasswordHash: "hash",
		Role:         models.RoleClient,
		Status:       models.UserStatusActive,
	}
	err := tc.users.Create(ctx, dup)
	assert.ErrorIs(t, err, apperrors.ErrConflict)
}

func TestUserRepository_Update_WritesOneUpdateEntry(t *testing.T) {
	tc := setupRepoTest(t)
	ctx, cleanup := tc.createTestContext()
	defer cleanup()

	user := tc.createUser(ctx, models.RoleClient, models.UserStatusActive)
	oldName := user.Name
	city := "Bogotá"
	user.Name = oldName + " Updated"
	user.City = &city

	previous, err := tc.users.Update(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, oldName, previous.Name)
	assert.Equal(t, oldName+" Updated", user.Name)
	require.NotNil(t, user.City)
	assert.Equal(t, city, *user.City)

	updates := entriesWithAction(tc.entriesFor(ctx, models.AuditEntityUsers, user.ID), models.AuditActionUpdate)
	require.Len(t, updates, 1)
	assert.Equal(t, oldName, decodeState(t, updates[0].BeforeState)["name"])
	assert.Equal(t, user.Name, decodeState(t, updates[0].AfterState)["name"])
}

func TestUserRepository_Update_NotFound(t *testing.T) {
	tc := setupRepoTest(t)
	ctx, cleanup := tc.createTestContext()
	defer cleanup()

	_, err := tc.users.Update(ctx, &models.User{ID: -1, Name: "x", NationalID: "x", Email: "x"})
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestUserRepository_SetPasswordHash_NotInAuditImage(t *testing.T) {
	tc := setupRepoTest(t)
	ctx, cleanup := tc.createTestContext()
	defer cleanup()

	user := tc.createUser(ctx, models.RoleClient, models.UserStatusActive)
	require.NoError(t, tc.users.SetPasswordHash(ctx, user.ID, "$2a$10$new-hash"))

	hash, err := tc.users.GetPasswordHash(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "$2a$10$new-hash", hash)

	updates := entriesWithAction(tc.entriesFor(ctx, models.AuditEntityUsers, user.ID), models.AuditActionUpdate)
	require.Len(t, updates, 1)
	assert.NotContains(t, decodeState(t, updates[0].BeforeState), "password_hash")
	assert.NotContains(t, decodeState(t, updates[0].AfterState), "password_hash")
}

func TestUserRepository_Delete_ClientIsPrevented(t *testing.T) {
	tc := setupRepoTest(t)
	ctx, cleanup := tc.createTestContext()
	defer cleanup()

	user := tc.createUser(ctx, models.RoleClient, models.UserStatusActive)

	const attempts = 3
	for i := 0; i < attempts; i++ {
		outcome, current, err := tc.users.Delete(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, DeletePrevented, outcome)
		assert.Equal(t, user.ID, current.ID)
	}

	stored, err := tc.users.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, user.Name, stored.Name)
	assert.Equal(t, user.Status, stored.Status)

	entries := tc.entriesFor(ctx, models.AuditEntityUsers, user.ID)
	prevented := entriesWithAction(entries, models.AuditActionClientDeletePrevented)
	require.Len(t, prevented, attempts)
	for _, e := range prevented {
		assert.Equal(t, user.NationalID, decodeState(t, e.BeforeState)["national_id"])
		assert.Nil(t, e.AfterState)
	}
	assert.Empty(t, entriesWithAction(entries, models.AuditActionDelete))
	assert.Empty(t, entriesWithAction(entries, models.AuditActionUpdate))
}

func TestUserRepository_SetStatus_CascadesAlerts(t *testing.T) {
	tc := setupRepoTest(t)
	ctx, cleanup := tc.createTestContext()
	defer cleanup()

	client := tc.createUser(ctx, models.RoleClient, models.UserStatusActive)
	med := tc.createMedication(ctx, models.MedicationStatusAvailable)

	var active []int64
	for i := 0; i < 3; i++ {
		active = append(active, tc.createAlert(ctx, client.ID, med.ID, models.AlertStatusActive).ID)
	}
	inactive := tc.createAlert(ctx, client.ID, med.ID, models.AlertStatusInactive)
	completed := tc.createAlert(ctx, client.ID, med.ID, models.AlertStatusCompleted)

	change, err := tc.users.SetStatus(ctx, client.ID, models.UserStatusInactive)
	require.NoError(t, err)
	assert.Equal(t, models.UserStatusActive, change.Before.Status)
	assert.Equal(t, models.UserStatusInactive, change.After.Status)
	assert.ElementsMatch(t, active, change.DeactivatedAlerts)

	for _, id := range active {
		alert, err := tc.alerts.GetByID(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, models.AlertStatusInactive, alert.Status)

		updates := entriesWithAction(tc.entriesFor(ctx, models.AuditEntityAlerts, id), models.AuditActionUpdate)
		require.NotEmpty(t, updates)
		last := updates[len(updates)-1]
		assert.Equal(t, models.AlertStatusActive, decodeState(t, last.BeforeState)["status"])
		assert.Equal(t, models.AlertStatusInactive, decodeState(t, last.AfterState)["status"])
	}

	for id, status := range map[int64]string{inactive.ID: models.AlertStatusInactive, completed.ID: models.AlertStatusCompleted} {
		alert, err := tc.alerts.GetByID(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, status, alert.Status)
		// One UPDATE from the helper that set the initial status, none from the cascade.
		assert.Len(t, entriesWithAction(tc.entriesFor(ctx, models.AuditEntityAlerts, id), models.AuditActionUpdate), 1)
	}

	summaries := entriesWithAction(tc.entriesFor(ctx, models.AuditEntityAlerts, client.ID), models.AuditActionAlertsDeactivatedByUser)
	require.Len(t, summaries, 1)
	extra := decodeState(t, summaries[0].ExtraContext)
	assert.EqualValues(t, client.ID, extra["usuario_inactivado_id"])
	assert.Equal(t, client.Name, extra["usuario_nombre"])
	affected, ok := extra["alertas_afectadas"].([]any)
	require.True(t, ok)
	assert.Len(t, affected, 3)

	userUpdates := entriesWithAction(tc.entriesFor(ctx, models.AuditEntityUsers, client.ID), models.AuditActionUpdate)
	assert.Len(t, userUpdates, 1)
}

func TestUserRepository_SetStatus_NoCascadeOnOtherTransitions(t *testing.T) {
	tc := setupRepoTest(t)
	ctx, cleanup := tc.createTestContext()
	defer cleanup()

	client := tc.createUser(ctx, models.RoleClient, models.UserStatusActive)
	med := tc.createMedication(ctx, models.MedicationStatusAvailable)
	alert := tc.createAlert(ctx, client.ID, med.ID, models.AlertStatusActive)

	// active → active and a profile edit leave alerts alone.
	change, err := tc.users.SetStatus(ctx, client.ID, models.UserStatusActive)
	require.NoError(t, err)
	assert.Empty(t, change.DeactivatedAlerts)

	client.Name += " renamed"
	_, err = tc.users.Update(ctx, client)
	require.NoError(t, err)

	// active → inactive → active: only the first transition cascades.
	_, err = tc.users.SetStatus(ctx, client.ID, models.UserStatusInactive)
	require.NoError(t, err)
	change, err = tc.users.SetStatus(ctx, client.ID, models.UserStatusActive)
	require.NoError(t, err)
	assert.Empty(t, change.DeactivatedAlerts)

	stored, err := tc.alerts.GetByID(ctx, alert.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AlertStatusInactive, stored.Status, "reactivation does not restore alerts")

	summaries := entriesWithAction(tc.entriesFor(ctx, models.AuditEntityAlerts, client.ID), models.AuditActionAlertsDeactivatedByUser)
	assert.Len(t, summaries, 1)
}

func TestUserRepository_SetStatus_InvalidStatus(t *testing.T) {
	tc := setupRepoTest(t)
	ctx, cleanup := tc.createTestContext()
	defer cleanup()

	client := tc.createUser(ctx, models.RoleClient, models.UserStatusActive)
	_, err := tc.users.SetStatus(ctx, client.ID, "archived")
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestUserRepository_Delete_AdminClearsAssignedBy(t *testing.T) {
	tc := setupRepoTest(t)
	ctx, cleanup := tc.createTestContext()
	defer cleanup()

	admin := tc.createUser(ctx, models.RoleAdmin, models.UserStatusActive)
	client := tc.createUser(ctx, models.RoleClient, models.UserStatusActive)
	med := tc.createMedication(ctx, models.MedicationStatusAvailable)

	adminCtx := models.WithActor(ctx, models.ActorContext{UserID: admin.ID, Role: models.RoleAdmin})
	alert := tc.createAlert(adminCtx, client.ID, med.ID, models.AlertStatusActive)
	require.NotNil(t, alert.AssignedBy)
	assert.Equal(t, admin.ID, *alert.AssignedBy)

	outcome, previous, err := tc.users.Delete(ctx, admin.ID)
	require.NoError(t, err)
	assert.Equal(t, Deleted, outcome)
	assert.Equal(t, admin.ID, previous.ID)

	_, err = tc.users.GetByID(ctx, admin.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	stored, err := tc.alerts.GetByID(ctx, alert.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.AssignedBy)

	alertUpdates := entriesWithAction(tc.entriesFor(ctx, models.AuditEntityAlerts, alert.ID), models.AuditActionUpdate)
	require.Len(t, alertUpdates, 1)
	assert.Nil(t, decodeState(t, alertUpdates[0].AfterState)["assigned_by"])

	deletes := entriesWithAction(tc.entriesFor(ctx, models.AuditEntityUsers, admin.ID), models.AuditActionDelete)
	require.Len(t, deletes, 1)
	assert.Equal(t, admin.Email, decodeState(t, deletes[0].BeforeState)["email"])
	assert.Nil(t, deletes[0].AfterState)
}

func TestUserRepository_Delete_AdminOwningAlertsConflicts(t *testing.T) {
	tc := setupRepoTest(t)
	ctx, cleanup := tc.createTestContext()
	defer cleanup()

	admin := tc.createUser(ctx, models.RoleAdmin, models.UserStatusActive)
	med := tc.createMedication(ctx, models.MedicationStatusAvailable)

	// Alerts may only target clients, so the ownership is set up directly.
	scope, _ := database.GetScope(ctx)
	_, err := scope.Conn.Exec(ctx, `
		INSERT INTO alerts (user_id, medication_id, dose, frequency, start_date)
		VALUES ($1, $2, '1', 'daily', CURRENT_DATE)`, admin.ID, med.ID)
	require.NoError(t, err)

	_, _, err = tc.users.Delete(ctx, admin.ID)
	assert.ErrorIs(t, err, apperrors.ErrConflict)

	_, err = tc.users.GetByID(ctx, admin.ID)
	assert.NoError(t, err)
}

func TestUserRepository_Delete_NotFound(t *testing.T) {
	tc := setupRepoTest(t)
	ctx, cleanup := tc.createTestContext()
	defer cleanup()

	_, _, err := tc.users.Delete(ctx, -1)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestUserRepository_LastActiveAdminIsProtected(t *testing.T) {
	tc := setupRepoTest(t)
	ctx, cleanup := tc.createTestContext()
	defer cleanup()

	scope, _ := database.GetScope(ctx)

	// Park every other active admin for the duration of the test.
	rows, err := scope.Conn.Query(ctx, `
		UPDATE users SET status = 'inactive'
		WHERE role = 'admin' AND status = 'active' AND id <> $1
		RETURNING id`, tc.admin.ID)
	require.NoError(t, err)
	var parked []int64
	for rows.Next() {
		var id int64
		require.NoError(t, rows.Scan(&id))
		parked = append(parked, id)
	}
	require.NoError(t, rows.Err())
	defer func() {
		_, _ = scope.Conn.Exec(context.Background(),
			"UPDATE users SET status = 'active' WHERE id = ANY($1)", parked)
	}()

	count, err := tc.users.CountActiveAdmins(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	_, err = tc.users.SetStatus(ctx, tc.admin.ID, models.UserStatusInactive)
	assert.ErrorIs(t, err, apperrors.ErrLastAdmin)

	_, _, err = tc.users.Delete(ctx, tc.admin.ID)
	assert.ErrorIs(t, err, apperrors.ErrLastAdmin)

	stored, err := tc.users.GetByID(ctx, tc.admin.ID)
	require.NoError(t, err)
	assert.Equal(t, models.UserStatusActive, stored.Status)
}

func TestUserRepository_List(t *testing.T) {
	tc := setupRepoTest(t)
	ctx, cleanup := tc.createTestContext()
	defer cleanup()

	active := tc.createUser(ctx, models.RoleClient, models.UserStatusActive)
	inactive := tc.createUser(ctx, models.RoleClient, models.UserStatusInactive)

	users, err := tc.users.List(ctx, models.UserFilter{Search: active.NationalID})
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, active.ID, users[0].ID)

	users, err = tc.users.List(ctx, models.UserFilter{Status: models.UserStatusActive, Search: inactive.NationalID})
	require.NoError(t, err)
	assert.Empty(t, users)

	users, err = tc.users.List(ctx, models.UserFilter{Role: models.RoleClient, Status: models.UserStatusInactive, Search: inactive.Email})
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, inactive.ID, users[0].ID)
}
