package services

import (
	"context"
	"sync"

	"github.com/medialert/medialert-engine/pkg/apperrors"
	"github.com/medialert/medialert-engine/pkg/audit"
	"github.com/medialert/medialert-engine/pkg/database"
	"github.com/medialert/medialert-engine/pkg/models"
	"github.com/medialert/medialert-engine/pkg/repositories"
)

// fakeRecorder captures application-level audit events.
type fakeRecorder struct {
	mu     sync.Mutex
	events []audit.Event
}

func (r *fakeRecorder) Record(_ context.Context, event audit.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *fakeRecorder) actions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Action)
	}
	return out
}

func (r *fakeRecorder) last() audit.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.events) == 0 {
		return audit.Event{}
	}
	return r.events[len(r.events)-1]
}

// fakeHasher produces reversible "hashes" so tests stay fast.
type fakeHasher struct{}

func (fakeHasher) Hash(plain string) (string, error) { return "hashed:" + plain, nil }

func (fakeHasher) Compare(hash, plain string) error {
	if hash != "hashed:"+plain {
		return apperrors.ErrInvalidCredentials
	}
	return nil
}

// mockUserRepository is a configurable mock for testing UserService.
type mockUserRepository struct {
	user         *models.User
	users        []*models.User
	passwordHash string
	statusChange *repositories.UserStatusChange
	deleteResult repositories.DeleteOutcome

	createErr error
	getErr    error
	updateErr error
	statusErr error
	deleteErr error

	activeAdmins int
	countErr     error

	createCalled   bool
	capturedUser   *models.User
	capturedID     int64
	capturedStatus string
	capturedHash   string
	capturedFilter models.UserFilter
}

func (m *mockUserRepository) Create(_ context.Context, user *models.User) error {
	m.createCalled = true
	m.capturedUser = user
	if m.createErr != nil {
		return m.createErr
	}
	user.ID = 42
	return nil
}

func (m *mockUserRepository) GetByID(_ context.Context, id int64) (*models.User, error) {
	m.capturedID = id
	if m.getErr != nil {
		return nil, m.getErr
	}
	return m.user, nil
}

func (m *mockUserRepository) List(_ context.Context, filter models.UserFilter) ([]*models.User, error) {
	m.capturedFilter = filter
	return m.users, nil
}

func (m *mockUserRepository) Update(_ context.Context, user *models.User) (*models.User, error) {
	m.capturedUser = user
	if m.updateErr != nil {
		return nil, m.updateErr
	}
	return m.user, nil
}

func (m *mockUserRepository) SetStatus(_ context.Context, id int64, status string) (*repositories.UserStatusChange, error) {
	m.capturedID = id
	m.capturedStatus = status
	if m.statusErr != nil {
		return nil, m.statusErr
	}
	return m.statusChange, nil
}

func (m *mockUserRepository) SetPasswordHash(_ context.Context, id int64, hash string) error {
	m.capturedID = id
	m.capturedHash = hash
	return nil
}

func (m *mockUserRepository) GetPasswordHash(_ context.Context, id int64) (string, error) {
	if m.getErr != nil {
		return "", m.getErr
	}
	return m.passwordHash, nil
}

func (m *mockUserRepository) Delete(_ context.Context, id int64) (repositories.DeleteOutcome, *models.User, error) {
	m.capturedID = id
	if m.deleteErr != nil {
		return 0, nil, m.deleteErr
	}
	return m.deleteResult, m.user, nil
}

func (m *mockUserRepository) CountActiveAdmins(context.Context) (int, error) {
	return m.activeAdmins, m.countErr
}

// mockMedicationRepository is a configurable mock for testing MedicationService.
type mockMedicationRepository struct {
	med          *models.Medication
	statusChange *repositories.MedicationStatusChange
	err          error

	createCalled   bool
	capturedFilter models.MedicationFilter
}

func (m *mockMedicationRepository) Create(_ context.Context, med *models.Medication) error {
	m.createCalled = true
	if m.err != nil {
		return m.err
	}
	med.ID = 7
	return nil
}

func (m *mockMedicationRepository) GetByID(context.Context, int64) (*models.Medication, error) {
	return m.med, m.err
}

func (m *mockMedicationRepository) List(_ context.Context, filter models.MedicationFilter) ([]*models.Medication, error) {
	m.capturedFilter = filter
	return []*models.Medication{m.med}, m.err
}

func (m *mockMedicationRepository) Update(context.Context, *models.Medication) (*models.Medication, error) {
	return m.med, m.err
}

func (m *mockMedicationRepository) SetStatus(context.Context, int64, string) (*repositories.MedicationStatusChange, error) {
	return m.statusChange, m.err
}

func (m *mockMedicationRepository) Delete(context.Context, int64) (*models.Medication, error) {
	return m.med, m.err
}

// mockAlertRepository is a configurable mock for testing AlertService.
type mockAlertRepository struct {
	alert         *models.Alert
	prescriptions []*models.Prescription
	err           error

	createCalled         bool
	capturedFilter       models.AlertFilter
	capturedPrescription models.PrescriptionFilter
}

func (m *mockAlertRepository) Create(_ context.Context, alert *models.Alert) error {
	m.createCalled = true
	if m.err != nil {
		return m.err
	}
	alert.ID = 99
	return nil
}

func (m *mockAlertRepository) GetByID(context.Context, int64) (*models.Alert, error) {
	return m.alert, m.err
}

func (m *mockAlertRepository) List(_ context.Context, filter models.AlertFilter) ([]*models.AlertDetail, error) {
	m.capturedFilter = filter
	return nil, m.err
}

func (m *mockAlertRepository) Update(context.Context, *models.Alert) (*models.Alert, error) {
	return m.alert, m.err
}

func (m *mockAlertRepository) Delete(context.Context, int64) (*models.Alert, error) {
	return m.alert, m.err
}

func (m *mockAlertRepository) Prescription(_ context.Context, filter models.PrescriptionFilter) ([]*models.Prescription, error) {
	m.capturedPrescription = filter
	return m.prescriptions, m.err
}

// mockEPSRepository is a configurable mock for the insurer catalog.
type mockEPSRepository struct {
	eps  *models.EPS
	list []*models.EPS
	err  error
}

func (m *mockEPSRepository) ListActive(context.Context) ([]*models.EPS, error) {
	return m.list, m.err
}

func (m *mockEPSRepository) GetByID(context.Context, int64) (*models.EPS, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.eps == nil {
		return nil, apperrors.ErrNotFound
	}
	return m.eps, nil
}

// mockAuditRepository is a configurable mock for testing AuditService.
type mockAuditRepository struct {
	entries []*models.AuditEntry
	total   int64
	err     error

	capturedFilter models.AuditFilter
}

func (m *mockAuditRepository) Append(context.Context, database.Querier, *models.AuditEntry) error {
	return m.err
}

func (m *mockAuditRepository) List(_ context.Context, filter models.AuditFilter) ([]*models.AuditEntry, error) {
	m.capturedFilter = filter
	return m.entries, m.err
}

func (m *mockAuditRepository) Count(context.Context, models.AuditFilter) (int64, error) {
	return m.total, m.err
}

func (m *mockAuditRepository) GetByID(context.Context, int64) (*models.AuditEntry, error) {
	if len(m.entries) == 0 {
		return nil, apperrors.ErrNotFound
	}
	return m.entries[0], m.err
}

var (
	_ repositories.UserRepository       = (*mockUserRepository)(nil)
	_ repositories.MedicationRepository = (*mockMedicationRepository)(nil)
	_ repositories.AlertRepository      = (*mockAlertRepository)(nil)
	_ repositories.AuditRepository      = (*mockAuditRepository)(nil)
	_ repositories.EPSRepository        = (*mockEPSRepository)(nil)
	_ audit.Recorder                    = (*fakeRecorder)(nil)
)
