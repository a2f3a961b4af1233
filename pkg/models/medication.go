package models

// Medication is a catalog entry that alerts can reference.
// Discontinuation replaces deletion.
type Medication struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	Description *string `json:"description,omitempty"`
	Composition *string `json:"composition,omitempty"`
	SideEffects *string `json:"side_effects,omitempty"`
	Indications *string `json:"indications,omitempty"`
	AgeRange    *string `json:"age_range,omitempty"`
	Status      string  `json:"status"` // 'available', 'discontinued'
}

// Medication status values.
const (
	MedicationStatusAvailable    = "available"
	MedicationStatusDiscontinued = "discontinued"
)

// IsValidMedicationStatus checks if the given medication status is valid.
func IsValidMedicationStatus(status string) bool {
	return status == MedicationStatusAvailable || status == MedicationStatusDiscontinued
}

// IsAvailable reports whether new alerts may reference the medication.
func (m *Medication) IsAvailable() bool {
	return m.Status == MedicationStatusAvailable
}

// MedicationFilter narrows medication listings.
type MedicationFilter struct {
	Status string
	Search string // matched against the name
}
