package util

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrChallenge is returned when a site answers with an anti-bot challenge page
	ErrChallenge = errors.New("challenge page returned (try VPN or wait)")
	// ErrNotFound is returned when a requested page or item does not exist
	ErrNotFound = errors.New("not found")
)

// StatusError is returned for non-2xx responses
type StatusError struct {
	URL        string
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("server returned %s for %s", e.Status, e.URL)
}

// Is makes 404 responses match ErrNotFound
func (e *StatusError) Is(target error) bool {
	return target == ErrNotFound && e.StatusCode == 404
}

// IsStatus reports whether err carries a StatusError with code
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == code
}
