package apperrors

import "errors"

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")

	// ErrMissingDestinationDisplay is returned when a display clone targets a
	// bundle that has no display for the source mode. Displays are never created.
	ErrMissingDestinationDisplay = errors.New("destination display does not exist")

	ErrCrossEntityTypeUnsupported = errors.New("cloning across entity types is not supported")
	ErrInvalidDisplayContext      = errors.New("invalid display context")
	ErrMissingBundle              = errors.New("entity type and bundle are required")
)
