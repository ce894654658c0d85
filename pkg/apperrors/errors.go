package apperrors

import "errors"

var (
	ErrNotFound            = errors.New("not found")
	ErrForbidden           = errors.New("forbidden")
	ErrConflict            = errors.New("conflict")
	ErrProjectNotActive    = errors.New("project is not active")
	ErrInsufficientCredits = errors.New("insufficient credits")
	ErrInvalidStatusChange = errors.New("invalid generation status transition")
)
