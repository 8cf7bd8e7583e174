// ABOUTME: Error taxonomy for backend operations
// ABOUTME: ErrNotAuthenticated for missing sessions, QueryError for failed queries and mutations

package backend

import (
	"errors"
	"fmt"
)

// ErrNotAuthenticated is returned when an operation requires a signed-in
// user and none is available. Callers treat it as a redirect-to-login
// signal, never as something to retry.
var ErrNotAuthenticated = errors.New("not authenticated")

// QueryError describes a failed query or mutation against the backend.
// The Message carries the backend's own description so it can be shown
// to the user verbatim.
type QueryError struct {
	Op      string // "select", "insert", "update", "delete"
	Table   string
	Status  int // HTTP status, 0 if the request never completed
	Message string
}

func (e *QueryError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s %s: %s (status %d)", e.Op, e.Table, e.Message, e.Status)
	}
	return fmt.Sprintf("%s %s: %s", e.Op, e.Table, e.Message)
}

// IsQueryError reports whether err is (or wraps) a QueryError.
func IsQueryError(err error) bool {
	var qe *QueryError
	return errors.As(err, &qe)
}
