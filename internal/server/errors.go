package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/jonathan/cv-publisher/internal/publish"
	"github.com/jonathan/cv-publisher/internal/rendering"
	"github.com/jonathan/cv-publisher/internal/schemas"
	"github.com/jonathan/cv-publisher/internal/types"
)

// ErrValidation indicates request validation failure
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error: %s - %s", e.Field, e.Message)
}

// HTTPStatus returns the appropriate HTTP status code for an error
func HTTPStatus(err error) int {
	var (
		verr      *ErrValidation
		schemaErr *schemas.ValidationError
		unknown   *rendering.UnknownTemplateError
	)
	switch {
	case errors.Is(err, publish.ErrBusy):
		return http.StatusConflict
	case errors.As(err, &verr), errors.As(err, &schemaErr), errors.As(err, &unknown):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// StatusForKind maps a failed publish to the status of a non-streaming
// response. Successful results are 200.
func StatusForKind(kind types.ErrorKind) int {
	switch kind {
	case "":
		return http.StatusOK
	case types.ErrorAuthentication:
		return http.StatusUnauthorized
	case types.ErrorValidation:
		return http.StatusUnprocessableEntity
	case types.ErrorBusy:
		return http.StatusConflict
	case types.ErrorTimeout:
		return http.StatusGatewayTimeout
	case types.ErrorCanceled:
		return http.StatusConflict
	default:
		return http.StatusBadGateway
	}
}
