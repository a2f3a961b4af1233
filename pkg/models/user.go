package models

// User is an administrator or a client of the service.
// Client users are never physically removed; deactivation is their terminal state.
type User struct {
	ID           int64   `json:"id"`
	Name         string  `json:"name"`
	NationalID   string  `json:"national_id"`
	Email        string  `json:"email"`
	PasswordHash string  `json:"-"`
	Role         string  `json:"role"`   // 'admin', 'client'
	Status       string  `json:"status"` // 'active', 'inactive'
	BirthDate    *Date   `json:"birth_date,omitempty"`
	Phone        *string `json:"phone,omitempty"`
	City         *string `json:"city,omitempty"`
	EPSID        *int64  `json:"eps_id,omitempty"`
	RegisteredOn Date    `json:"registered_on"`
}

// IsActive reports whether the user may sign in and receive alerts.
func (u *User) IsActive() bool {
	return u.Status == UserStatusActive
}

// Role constants for users.
const (
	RoleAdmin  = "admin"
	RoleClient = "client"
)

// ValidRoles contains all valid role values.
var ValidRoles = []string{RoleAdmin, RoleClient}

// IsValidRole checks if the given role is valid.
func IsValidRole(role string) bool {
	for _, r := range ValidRoles {
		if r == role {
			return true
		}
	}
	return false
}

// User status values.
const (
	UserStatusActive   = "active"
	UserStatusInactive = "inactive"
)

// IsValidUserStatus checks if the given user status is valid.
func IsValidUserStatus(status string) bool {
	return status == UserStatusActive || status == UserStatusInactive
}

// UserFilter narrows user listings.
type UserFilter struct {
	Role   string
	Status string
	Search string // matched against name, national id and email
}
