package client

import (
	"errors"
	"fmt"
	"net/http"
)

// StatusError is the cause recorded when a response had a non-2xx status.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d %s", e.Code, http.StatusText(e.Code))
}

// RetrievalError reports that a URL could not be fetched, after retries
// where the failure was transient.
type RetrievalError struct {
	URL        string
	Attempts   int
	StatusCode int
	Cause      error
}

func (e *RetrievalError) Error() string {
	return fmt.Sprintf("fetch %s failed after %d attempt(s): %v", e.URL, e.Attempts, e.Cause)
}

func (e *RetrievalError) Unwrap() error {
	return e.Cause
}

// Forbidden reports whether the final response was a 403.
func (e *RetrievalError) Forbidden() bool {
	return e.StatusCode == http.StatusForbidden
}

// IsForbidden reports whether err is a RetrievalError ending in 403.
func IsForbidden(err error) bool {
	var re *RetrievalError
	return errors.As(err, &re) && re.Forbidden()
}
