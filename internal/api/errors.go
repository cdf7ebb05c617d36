package api

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidObjects is returned by Get when no object types are given.
	ErrInvalidObjects = errors.New("the object argument provided is invalid")

	// ErrUnsupportedObjects is returned by Get when none of the requested
	// object types has an endpoint.
	ErrUnsupportedObjects = errors.New("the specified object types are not supported")

	// ErrNoEndpoints is returned by Get when sideloading leaves no request
	// to issue.
	ErrNoEndpoints = errors.New("no valid REST API endpoints were found")

	// ErrNotJSON is returned when a response is not application/json.
	ErrNotJSON = errors.New("response does not have a content type of JSON")
)

// StatusError reports a response whose status was not 200 OK.
type StatusError struct {
	URL        string
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: %s", e.URL, e.Status)
}

// IsStatus reports whether err is a StatusError with the given code.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == code
}
