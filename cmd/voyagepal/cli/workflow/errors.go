package workflow

import (
	"errors"
	"fmt"
)

// Local precondition failures. They are always wrapped in *ValidationError.
var (
	ErrBusy             = errors.New("another request is already in progress")
	ErrWrongStage       = errors.New("not allowed in the current stage")
	ErrEmptySelection   = errors.New("Please select at least one location.")
	ErrMissingTripID    = errors.New("Trip ID is missing. Please start a new plan.")
	ErrInvalidRequest   = errors.New("invalid trip request")
	ErrUnknownCandidate = errors.New("location is not among the current suggestions")
)

// ErrNotAuthenticated is returned by New for a session without a token.
var ErrNotAuthenticated = errors.New("not logged in: run 'voyagepal auth login' first")

// ErrDiscarded is returned by a transition whose response arrived after the
// workflow was reset. The response is dropped.
var ErrDiscarded = errors.New("workflow was reset while the request was in flight")

// Fallback messages used when the service gives no detail.
const (
	SuggestionsFailedMessage  = "Failed to get initial suggestions."
	AnalysisFailedMessage     = "Failed to get detailed analysis."
	OptimizationFailedMessage = "Failed to optimize itinerary."
)

// ValidationError is a local precondition failure. Nothing was sent and no
// state changed.
type ValidationError struct {
	Reason error
	// Detail replaces Reason's text in Error when set.
	Detail string
}

func (e *ValidationError) Error() string {
	if e.Detail != "" {
		return e.Detail
	}
	return e.Reason.Error()
}

func (e *ValidationError) Unwrap() error { return e.Reason }

// ServiceError is a failed call to the planning service. Message is what to
// show the user; the stage is unchanged so the call can be retried.
type ServiceError struct {
	Stage   StageName
	Message string
	Err     error
}

func (e *ServiceError) Error() string { return e.Message }

func (e *ServiceError) Unwrap() error { return e.Err }

func invalid(reason error) *ValidationError { return &ValidationError{Reason: reason} }

func wrongStage(op string, current StageName) *ValidationError {
	return &ValidationError{
		Reason: ErrWrongStage,
		Detail: fmt.Sprintf("cannot %s while %s", op, current),
	}
}
