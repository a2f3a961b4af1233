package models

import "time"

// PrescriptionLine is one row of a consolidated prescription: an alert and
// the details of its medication.
type PrescriptionLine struct {
	AlertID        int64   `json:"alert_id"`
	AlertStatus    string  `json:"alert_status"`
	MedicationID   int64   `json:"medication_id"`
	MedicationName string  `json:"medication_name"`
	Description    *string `json:"description,omitempty"`
	Composition    *string `json:"composition,omitempty"`
	Indications    *string `json:"indications,omitempty"`
	SideEffects    *string `json:"side_effects,omitempty"`
	AgeRange       *string `json:"age_range,omitempty"`
	Dose           string  `json:"dose"`
	Frequency      string  `json:"frequency"`
	StartDate      Date    `json:"start_date"`
	EndDate        *Date   `json:"end_date,omitempty"`
	PreferredTime  *string `json:"preferred_time,omitempty"`
	AssignedByName *string `json:"assigned_by_name,omitempty"`
}

// Prescription is the summary generated for one client: a header with the
// client's identity and EPS affiliation followed by the lines.
type Prescription struct {
	UserID      int64              `json:"user_id"`
	UserName    string             `json:"user_name"`
	NationalID  string             `json:"national_id"`
	BirthDate   *Date              `json:"birth_date,omitempty"`
	Phone       *string            `json:"phone,omitempty"`
	City        *string            `json:"city,omitempty"`
	EPSName     *string            `json:"eps_name,omitempty"`
	EPSNIT      *string            `json:"eps_nit,omitempty"`
	GeneratedAt time.Time          `json:"generated_at"`
	Lines       []PrescriptionLine `json:"lines"`
}

// PrescriptionFilter selects the lines of a prescription query.
// With AlertID set, exactly that alert is returned whatever its status.
// Otherwise only active alerts on available medications of clients are
// returned, optionally narrowed to UserID.
type PrescriptionFilter struct {
	UserID  *int64
	AlertID *int64
}
