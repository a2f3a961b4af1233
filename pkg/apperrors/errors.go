package apperrors

import "errors"

var (
	ErrNotFound              = errors.New("not found")
	ErrConflict              = errors.New("conflict")
	ErrValidation            = errors.New("validation failed")
	ErrInvalidRole           = errors.New("invalid role")
	ErrInvalidStatus         = errors.New("invalid status")
	ErrInactiveUser          = errors.New("user is not an active client")
	ErrMedicationUnavailable = errors.New("medication is not available")
	ErrLastAdmin             = errors.New("cannot remove the last active admin")
	ErrInvalidCredentials    = errors.New("invalid credentials")
	ErrForbidden             = errors.New("forbidden")
)
