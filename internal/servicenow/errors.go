package servicenow

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound means no sign-in record matched the visitor name.
	ErrNotFound = errors.New("no sign-in record found for today")
	// ErrAlreadySignedOut means the matched record already has a sign-out time.
	ErrAlreadySignedOut = errors.New("visitor has already signed out")
	// ErrInvalidRating means a rating outside 1-5.
	ErrInvalidRating = errors.New("rating must be between 1 and 5")
)

// RemoteWriteError is a non-success response to a create, patch or upload.
type RemoteWriteError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *RemoteWriteError) Error() string {
	return fmt.Sprintf("%s failed: %d - %s", e.Op, e.StatusCode, e.Body)
}

// RemoteReadError is a non-success response to a query.
type RemoteReadError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *RemoteReadError) Error() string {
	return fmt.Sprintf("%s failed: %d - %s", e.Op, e.StatusCode, e.Body)
}
