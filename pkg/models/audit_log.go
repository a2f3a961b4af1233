package models

import (
	"encoding/json"
	"time"
)

// Hook-level actions written by the repository change hooks.
const (
	AuditActionInsert = "INSERT"
	AuditActionUpdate = "UPDATE"
	AuditActionDelete = "DELETE"
)

// Guard and cascade actions written inside the mutating transaction.
const (
	AuditActionClientDeletePrevented     = "INTENTO_BORRADO_FISICO_CLIENTE_PREVENIDO"
	AuditActionMedicationDeletePrevented = "INTENTO_BORRADO_FISICO_MEDICAMENTO_PREVENIDO"
	AuditActionAlertsDeactivatedByUser   = "DESACTIVACION_MASIVA_ALERTAS_POR_USUARIO_INACTIVO"
	AuditActionAlertsDeactivatedByMed    = "DESACTIVACION_MASIVA_ALERTAS_POR_MEDICAMENTO_DISCONTINUADO"
)

// Application-level actions written by services after commit.
const (
	AuditActionClientCreated         = "CREACION_CLIENTE"
	AuditActionClientEdited          = "EDICION_CLIENTE"
	AuditActionClientDeactivated     = "DESACTIVACION_CLIENTE"
	AuditActionClientReactivated     = "REACTIVACION_CLIENTE"
	AuditActionAdminCreated          = "CREACION_ADMINISTRADOR"
	AuditActionAdminEdited           = "EDICION_ADMINISTRADOR"
	AuditActionAdminDeleted          = "ELIMINACION_ADMINISTRADOR"
	AuditActionMedicationCreated     = "CREACION_MEDICAMENTO"
	AuditActionMedicationEdited      = "EDICION_MEDICAMENTO"
	AuditActionMedicationDiscontinue = "DISCONTINUACION_MEDICAMENTO"
	AuditActionMedicationReactivated = "REACTIVACION_MEDICAMENTO"
	AuditActionAlertCreated          = "CREACION_ALERTA"
	AuditActionAlertEdited           = "EDICION_ALERTA"
	AuditActionAlertDeleted          = "ELIMINACION_ALERTA"
	AuditActionPasswordChanged       = "CAMBIO_CONTRASENA_EXITOSO"
	AuditActionPasswordChangeFailed  = "CAMBIO_CONTRASENA_FALLIDO"
	AuditActionPrescriptionGenerated = "GENERACION_RECETA_CONSOLIDADA"
	AuditActionAlertPrescription     = "GENERACION_RECETA_ALERTA"
)

// Audited entity names. They match the table names.
const (
	AuditEntityUsers       = "users"
	AuditEntityMedications = "medications"
	AuditEntityAlerts      = "alerts"
)

// AuditEntry is one immutable row of the audit log.
// Stored in the audit_log table.
type AuditEntry struct {
	ID               int64           `json:"id"`
	ActorUserID      *int64          `json:"actor_user_id,omitempty"`
	OccurredAt       time.Time       `json:"occurred_at"`
	Action           string          `json:"action"`
	AffectedEntity   *string         `json:"affected_entity,omitempty"`
	AffectedRecordID *string         `json:"affected_record_id,omitempty"`
	BeforeState      json.RawMessage `json:"before_state,omitempty"`
	AfterState       json.RawMessage `json:"after_state,omitempty"`
	ExtraContext     json.RawMessage `json:"extra_context,omitempty"`

	// Read-side projection of the actor; never written.
	ActorName       *string `json:"actor_name,omitempty"`
	ActorNationalID *string `json:"actor_national_id,omitempty"`
}

// AuditFilter narrows audit log listings. Zero values mean "no filter".
type AuditFilter struct {
	Entity      string
	RecordID    string
	Action      string
	ActorUserID *int64
	Since       *time.Time
	Until       *time.Time
	Limit       int
	Offset      int
}

// Default and maximum page sizes for audit listings.
const (
	DefaultAuditLimit = 100
	MaxAuditLimit     = 1000
)

// EffectiveLimit clamps the requested limit to the allowed range.
func (f AuditFilter) EffectiveLimit() int {
	switch {
	case f.Limit <= 0:
		return DefaultAuditLimit
	case f.Limit > MaxAuditLimit:
		return MaxAuditLimit
	default:
		return f.Limit
	}
}
