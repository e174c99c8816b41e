package httpx

import (
	"errors"
	"net/http"

	"github.com/budgetdesk/budgetdesk/internal/shared"
)

// RespondError maps domain errors to HTTP responses using RFC7807. Internal errors
// carry no detail.
func RespondError(w http.ResponseWriter, err error) {
	status := StatusFor(err)
	detail := err.Error()
	title := "Internal Error"
	switch status {
	case http.StatusNotFound:
		title = "Not Found"
	case http.StatusConflict:
		title = "Conflict"
	case http.StatusUnprocessableEntity:
		title = "Rule Violation"
	case http.StatusBadRequest:
		title = "Validation Failed"
	default:
		detail = ""
	}
	Problem(w, status, title, detail)
}

// StatusFor returns the status RespondError would use for err.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, shared.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, shared.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, shared.ErrRuleViolation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, shared.ErrMalformed):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
