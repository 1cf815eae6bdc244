package httpx

import (
	"errors"
	"net/http"
)

// Sentinel errors understood by RespondError.
var (
	ErrNotFound    = errors.New("resource not found")
	ErrValidation  = errors.New("validation failed")
	ErrForbidden   = errors.New("forbidden")
	ErrUnavailable = errors.New("dependency unavailable")
)

var problemTitles = []struct {
	err    error
	status int
	title  string
}{
	{ErrNotFound, http.StatusNotFound, "Not Found"},
	{ErrValidation, http.StatusBadRequest, "Validation Failed"},
	{ErrForbidden, http.StatusForbidden, "Forbidden"},
	{ErrUnavailable, http.StatusServiceUnavailable, "Service Unavailable"},
}

// RespondError maps err onto a problem response. Unknown errors carry no detail.
func RespondError(w http.ResponseWriter, r *http.Request, err error) {
	for _, p := range problemTitles {
		if errors.Is(err, p.err) {
			Problem(w, r, p.status, p.title, err.Error())
			return
		}
	}
	Problem(w, r, http.StatusInternalServerError, "Internal Error", "")
}
