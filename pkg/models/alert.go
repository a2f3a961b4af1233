package models

import "time"

// Alert schedules doses of one medication for one client.
// Alerts are the only audited entity that supports physical deletion.
type Alert struct {
	ID             int64      `json:"id"`
	UserID         int64      `json:"user_id"`
	MedicationID   int64      `json:"medication_id"`
	Dose           string     `json:"dose"`
	Frequency      string     `json:"frequency"`
	StartDate      Date       `json:"start_date"`
	EndDate        *Date      `json:"end_date,omitempty"`
	PreferredTime  *string    `json:"preferred_time,omitempty"` // HH:MM[:SS]
	LastNotifiedAt *time.Time `json:"last_notified_at,omitempty"`
	Status         string     `json:"status"` // 'active', 'inactive', 'completed', 'failed'
	AssignedBy     *int64     `json:"assigned_by,omitempty"`
}

// Alert status values.
const (
	AlertStatusActive    = "active"
	AlertStatusInactive  = "inactive"
	AlertStatusCompleted = "completed"
	AlertStatusFailed    = "failed"
)

// ValidAlertStatuses contains all valid alert status values.
var ValidAlertStatuses = []string{
	AlertStatusActive,
	AlertStatusInactive,
	AlertStatusCompleted,
	AlertStatusFailed,
}

// IsValidAlertStatus checks if the given alert status is valid.
func IsValidAlertStatus(status string) bool {
	for _, s := range ValidAlertStatuses {
		if s == status {
			return true
		}
	}
	return false
}

// AlertFilter narrows alert listings.
type AlertFilter struct {
	UserID       *int64
	MedicationID *int64
	Status       string
}

// AlertDetail is an alert joined with the names of its client and medication,
// as shown in the admin listing.
type AlertDetail struct {
	Alert
	UserName       string `json:"user_name"`
	MedicationName string `json:"medication_name"`
}
