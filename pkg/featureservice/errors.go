package featureservice

import (
	"errors"
	"fmt"
)

// Shape errors signal a contract mismatch with the service or transport
// rather than a business failure. They are never retried.
var (
	// ErrFeaturesUndefined is returned when a query body carries no
	// features list.
	ErrFeaturesUndefined = errors.New("features are undefined")

	// ErrUnparsableBody is returned when a mutation body is empty or is not
	// valid JSON.
	ErrUnparsableBody = errors.New("Response body was null or could not be parsed")

	// ErrResultsNotFound is returned when a mutation body has no non-empty
	// results sequence.
	ErrResultsNotFound = errors.New("Results object not found or is not as expected")
)

// ServiceError is an error the service itself reported, either at the body
// level on a query or per result on a mutation.
type ServiceError struct {
	Message string
	Code    int
	Details []any
}

func (e *ServiceError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("feature service error code %d", e.Code)
	}
	return e.Message
}

// UnexpectedResultError is the defensive catch-all for a parsed mutation
// result that carries neither a success flag nor an error object. Result
// holds the raw element for diagnosis.
type UnexpectedResultError struct {
	Result any
}

func (e *UnexpectedResultError) Error() string {
	return "Feature service error: unexpected result"
}
