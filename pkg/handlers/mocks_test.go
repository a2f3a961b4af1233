package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/golang-jwt/jwt/v5"

	"github.com/medialert/medialert-engine/pkg/auth"
	"github.com/medialert/medialert-engine/pkg/models"
	"github.com/medialert/medialert-engine/pkg/repositories"
)

// withSubject attaches claims and the actor for userID, as RequireAuth does.
func withSubject(r *http.Request, userID int64, role string) *http.Request {
	claims := &auth.Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: strconv.FormatInt(userID, 10)},
		Role:             role,
	}
	ctx := context.WithValue(r.Context(), auth.ClaimsKey, claims)
	ctx = models.WithActor(ctx, models.ActorContext{UserID: userID, Role: role})
	return r.WithContext(ctx)
}

// passthroughScope stands in for database.WithScope.
func passthroughScope(next http.HandlerFunc) http.HandlerFunc { return next }

type mockUserService struct {
	user          *models.User
	users         []*models.User
	change        *repositories.UserStatusChange
	outcome       repositories.DeleteOutcome
	err           error
	created       *models.User
	password      string
	updated       *models.User
	filter        models.UserFilter
	passwordCalls []int64
}

func (m *mockUserService) Create(ctx context.Context, user *models.User, password string) error {
	if m.err != nil {
		return m.err
	}
	user.ID = 42
	m.created = user
	m.password = password
	return nil
}

func (m *mockUserService) Get(ctx context.Context, id int64) (*models.User, error) {
	return m.user, m.err
}

func (m *mockUserService) List(ctx context.Context, filter models.UserFilter) ([]*models.User, error) {
	m.filter = filter
	return m.users, m.err
}

func (m *mockUserService) Update(ctx context.Context, user *models.User) error {
	m.updated = user
	return m.err
}

func (m *mockUserService) SetStatus(ctx context.Context, id int64, status string) (*repositories.UserStatusChange, error) {
	return m.change, m.err
}

func (m *mockUserService) Delete(ctx context.Context, id int64) (repositories.DeleteOutcome, *models.User, error) {
	if m.err != nil {
		return 0, nil, m.err
	}
	return m.outcome, m.user, nil
}

func (m *mockUserService) ChangePassword(ctx context.Context, id int64, current, next string) error {
	m.passwordCalls = append(m.passwordCalls, id)
	return m.err
}

type mockMedicationService struct {
	med    *models.Medication
	change *repositories.MedicationStatusChange
	err    error
	filter models.MedicationFilter
}

func (m *mockMedicationService) Create(ctx context.Context, med *models.Medication) error {
	if m.err != nil {
		return m.err
	}
	med.ID = 7
	med.Status = models.MedicationStatusAvailable
	return nil
}

func (m *mockMedicationService) Get(ctx context.Context, id int64) (*models.Medication, error) {
	return m.med, m.err
}

func (m *mockMedicationService) List(ctx context.Context, filter models.MedicationFilter) ([]*models.Medication, error) {
	m.filter = filter
	return nil, m.err
}

func (m *mockMedicationService) Update(ctx context.Context, med *models.Medication) error {
	return m.err
}

func (m *mockMedicationService) SetStatus(ctx context.Context, id int64, status string) (*repositories.MedicationStatusChange, error) {
	return m.change, m.err
}

func (m *mockMedicationService) Delete(ctx context.Context, id int64) (*models.Medication, error) {
	return m.med, m.err
}

type mockAlertService struct {
	alert         *models.Alert
	alerts        []*models.AlertDetail
	prescription  *models.Prescription
	prescriptions []*models.Prescription
	prescribedFor int64
	allCalled     bool
	err           error
	filter        models.AlertFilter
	clientID      int64
	clientStatus  string
	deleted       int64
}

func (m *mockAlertService) Create(ctx context.Context, alert *models.Alert) error {
	if m.err != nil {
		return m.err
	}
	alert.ID = 99
	alert.Status = models.AlertStatusActive
	return nil
}

func (m *mockAlertService) Get(ctx context.Context, id int64) (*models.Alert, error) {
	return m.alert, m.err
}

func (m *mockAlertService) List(ctx context.Context, filter models.AlertFilter) ([]*models.AlertDetail, error) {
	m.filter = filter
	return m.alerts, m.err
}

func (m *mockAlertService) ListForClient(ctx context.Context, userID int64, status string) ([]*models.AlertDetail, error) {
	m.clientID = userID
	m.clientStatus = status
	return m.alerts, m.err
}

func (m *mockAlertService) Update(ctx context.Context, alert *models.Alert) error {
	return m.err
}

func (m *mockAlertService) Delete(ctx context.Context, id int64) error {
	m.deleted = id
	return m.err
}

func (m *mockAlertService) Prescription(ctx context.Context, userID int64) (*models.Prescription, error) {
	m.prescribedFor = userID
	return m.prescription, m.err
}

func (m *mockAlertService) AllPrescriptions(ctx context.Context) ([]*models.Prescription, error) {
	m.allCalled = true
	return m.prescriptions, m.err
}

func (m *mockAlertService) AlertPrescription(ctx context.Context, alertID int64) (*models.Prescription, error) {
	m.prescribedFor = alertID
	return m.prescription, m.err
}

type mockEPSService struct {
	list []*models.EPS
	err  error
}

func (m *mockEPSService) ListActive(ctx context.Context) ([]*models.EPS, error) {
	return m.list, m.err
}

type mockAuditService struct {
	page   *models.AuditPage
	entry  *models.AuditEntry
	err    error
	filter models.AuditFilter
}

func (m *mockAuditService) List(ctx context.Context, filter models.AuditFilter) (*models.AuditPage, error) {
	m.filter = filter
	if m.err != nil {
		return nil, m.err
	}
	if m.page != nil {
		return m.page, nil
	}
	return &models.AuditPage{Entries: []*models.AuditEntry{}, Limit: filter.EffectiveLimit()}, nil
}

func (m *mockAuditService) Get(ctx context.Context, id int64) (*models.AuditEntry, error) {
	return m.entry, m.err
}

type mockPinger struct {
	err error
}

func (m *mockPinger) Ping(ctx context.Context) error { return m.err }
