package models

// EPS is a health insurer (Entidad Promotora de Salud) a client can be
// affiliated with. The catalog is seeded by migration and read-only here.
type EPS struct {
	ID     int64   `json:"id"`
	Name   string  `json:"name"`
	NIT    *string `json:"nit,omitempty"`
	Status string  `json:"status"` // 'active', 'inactive'
}

// EPS status values.
const (
	EPSStatusActive   = "active"
	EPSStatusInactive = "inactive"
)
