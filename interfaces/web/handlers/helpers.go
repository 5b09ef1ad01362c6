package handlers

import (
	"errors"
	"net/http"

	"spmigrate/domain/contracts"
	"spmigrate/domain/principal"
)

// statusForError maps the resolution error taxonomy to HTTP status codes.
func statusForError(err error) int {
	switch {
	case errors.Is(err, principal.ErrInvalidDomain):
		return http.StatusNotFound
	case errors.Is(err, contracts.ErrRunNotFound):
		return http.StatusNotFound
	case errors.Is(err, principal.ErrDirectoryUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, principal.ErrDirectoryQuery):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
