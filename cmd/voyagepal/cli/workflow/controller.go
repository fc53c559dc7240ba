// Package workflow sequences the four planning stages: submit a request, pick
// from the suggestions, analyze the selection, optimize it into an itinerary.
//
// The controller is the only holder of stage data. It persists nothing but the
// trip id, so a new process resumes the id with an empty Collecting stage.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/voyagepal/cli/cmd/voyagepal/cli/auth"
	"github.com/voyagepal/cli/cmd/voyagepal/cli/logging"
	"github.com/voyagepal/cli/cmd/voyagepal/cli/selection"
	"github.com/voyagepal/cli/cmd/voyagepal/cli/store"
	"github.com/voyagepal/cli/cmd/voyagepal/cli/trip"
	"github.com/voyagepal/cli/cmd/voyagepal/cli/tripapi"
	"github.com/voyagepal/cli/cmd/voyagepal/cli/validation"
)

// Planner is the trip planning service as the controller sees it.
type Planner interface {
	InitialSuggestions(ctx context.Context, req trip.TripRequest) (trip.Plan, error)
	DetailedAnalysis(ctx context.Context, req trip.SelectionRequest) (trip.DetailedAnalysis, error)
	OptimizeItinerary(ctx context.Context, req trip.SelectionRequest) (trip.OptimizedItinerary, error)
}

// Transition describes one attempted stage change.
type Transition struct {
	Event    Event
	From     StageName
	To       StageName
	TripID   string
	Duration time.Duration
	Err      error
}

// EventSink receives every attempted transition.
type EventSink interface {
	Transition(ctx context.Context, t Transition)
}

// Option configures a Controller.
type Option func(*Controller)

// WithEventSink reports transitions to sink.
func WithEventSink(sink EventSink) Option {
	return func(c *Controller) { c.sink = sink }
}

// Controller drives one planning workflow. Its methods are safe for
// concurrent use. At most one service call is in flight at a time.
type Controller struct {
	planner Planner
	store   *store.SessionStore
	sink    EventSink

	busy atomic.Bool

	mu        sync.Mutex
	stage     Stage
	tripID    string
	selection selection.Set
	lastErr   error
	// gen is bumped by Reset so that responses to calls started earlier
	// are dropped.
	gen uint64
	// cancel aborts the call in flight, if any.
	cancel context.CancelFunc

	// persistMu orders trip id writes after a submit against the clear in
	// Reset. Lock order is persistMu, then mu.
	persistMu sync.Mutex
}

// New builds a controller for an authenticated session and loads the
// persisted trip id.
func New(ctx context.Context, sess auth.Session, planner Planner, st *store.SessionStore, opts ...Option) (*Controller, error) {
	if !sess.IsAuthenticated() {
		return nil, ErrNotAuthenticated
	}
	tripID, err := st.TripID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load trip session: %w", err)
	}

	c := &Controller{
		planner: planner,
		store:   st,
		stage:   Collecting{},
		tripID:  tripID,
	}
	for _, opt := range opts {
		opt(c)
	}
	if tripID != "" {
		logging.Debug(logging.WithComponent(ctx, "workflow"), "resumed trip session", slog.String("trip_id", tripID))
	}
	return c, nil
}

// Stage returns the current stage.
func (c *Controller) Stage() Stage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stage
}

// TripID returns the trip session id, or "" when none is held.
func (c *Controller) TripID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tripID
}

// Selection returns the current selection in the order it was made.
func (c *Controller) Selection() []trip.LocationCandidate {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selection.Items()
}

// IsSelected reports whether the candidate named name is selected.
func (c *Controller) IsSelected(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selection.Contains(name)
}

// LastError returns the error stored by the most recent failed transition.
// It is cleared by the next successful transition and by Reset.
func (c *Controller) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Busy reports whether a service call is in flight.
func (c *Controller) Busy() bool { return c.busy.Load() }

// Toggle adds or removes c from the selection and reports whether it is
// selected afterwards. c must be one of the current suggestions, so Toggle
// returns a *ValidationError (ErrUnknownCandidate) in Collecting, where there
// are none. It is allowed in every other stage and while a call is in flight.
func (c *Controller) Toggle(candidate trip.LocationCandidate) (bool, error) {
	return c.ToggleByName(candidate.Name)
}

// ToggleByName is Toggle keyed by candidate name. The stored candidate is the
// one from the current suggestions.
func (c *Controller) ToggleByName(name string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	suggestions, ok := SuggestionsOf(c.stage)
	if !ok {
		return false, &ValidationError{Reason: ErrUnknownCandidate, Detail: "there are no suggestions to select from"}
	}
	candidate, ok := suggestions.Candidate(name)
	if !ok {
		return false, &ValidationError{Reason: ErrUnknownCandidate, Detail: fmt.Sprintf("%q is not among the current suggestions", name)}
	}
	return c.selection.Toggle(candidate), nil
}

// Submit sends req for initial suggestions. On success the workflow moves to
// Suggested with a fresh trip id and an empty selection.
func (c *Controller) Submit(ctx context.Context, req trip.TripRequest) error {
	ctx = logging.WithComponent(ctx, "workflow")
	if !c.busy.CompareAndSwap(false, true) {
		return invalid(ErrBusy)
	}
	defer c.busy.Store(false)

	req = req.Normalized()

	c.mu.Lock()
	from := c.stage.Name()
	if from != StageCollecting {
		err := c.failLocked(wrongStage("submit a new request", from))
		c.mu.Unlock()
		c.emit(ctx, Transition{Event: EventSubmit, From: from, To: from, Err: err})
		return err
	}
	if verr := req.Validate(); verr != nil {
		err := c.failLocked(&ValidationError{Reason: ErrInvalidRequest, Detail: verr.Error()})
		c.mu.Unlock()
		c.emit(ctx, Transition{Event: EventSubmit, From: from, To: from, Err: err})
		return err
	}
	gen := c.gen
	callCtx, cancel := c.beginCallLocked(ctx)
	c.mu.Unlock()

	start := time.Now()
	plan, callErr := c.planner.InitialSuggestions(callCtx, req)
	cancel()
	if callErr == nil {
		if idErr := validation.ValidateTripID(plan.TripID); idErr != nil {
			callErr = fmt.Errorf("service returned an unusable trip id: %w", idErr)
		}
	}

	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		logging.Info(ctx, "discarding response after reset", slog.String("event", string(EventSubmit)))
		return ErrDiscarded
	}
	c.cancel = nil
	if callErr != nil {
		err := c.failLocked(serviceError(StageSuggested, SuggestionsFailedMessage, callErr))
		c.mu.Unlock()
		c.emit(ctx, Transition{Event: EventSubmit, From: from, To: from, Duration: time.Since(start), Err: err})
		return err
	}
	c.stage = Suggested{Request: req, Suggestions: plan.SuggestionSet}
	c.tripID = plan.TripID
	c.selection.Clear()
	c.lastErr = nil
	c.mu.Unlock()

	c.persistTripID(ctx, gen, plan.TripID)

	c.emit(ctx, Transition{Event: EventSubmit, From: from, To: StageSuggested, TripID: plan.TripID, Duration: time.Since(start)})
	return nil
}

// RequestAnalysis asks for a detailed analysis of the current selection.
// It sends nothing when the selection is empty or no trip id is held.
func (c *Controller) RequestAnalysis(ctx context.Context) error {
	ctx = logging.WithComponent(ctx, "workflow")
	if !c.busy.CompareAndSwap(false, true) {
		return invalid(ErrBusy)
	}
	defer c.busy.Store(false)

	c.mu.Lock()
	from := c.stage.Name()
	suggested, ok := c.stage.(Suggested)
	var precondition *ValidationError
	switch {
	case !ok:
		precondition = wrongStage("request an analysis", from)
	case c.selection.Len() == 0:
		precondition = invalid(ErrEmptySelection)
	case c.tripID == "":
		precondition = invalid(ErrMissingTripID)
	}
	if precondition != nil {
		err := c.failLocked(precondition)
		c.mu.Unlock()
		c.emit(ctx, Transition{Event: EventAnalyze, From: from, To: from, Err: err})
		return err
	}
	selected := c.selection.Items()
	tripID := c.tripID
	gen := c.gen
	callCtx, cancel := c.beginCallLocked(ctx)
	c.mu.Unlock()

	start := time.Now()
	analysis, callErr := c.planner.DetailedAnalysis(callCtx, trip.NewSelectionRequest(tripID, suggested.Request, selected))
	cancel()

	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		logging.Info(ctx, "discarding response after reset", slog.String("event", string(EventAnalyze)))
		return ErrDiscarded
	}
	c.cancel = nil
	if callErr != nil {
		err := c.failLocked(serviceError(StageAnalyzed, AnalysisFailedMessage, callErr))
		c.mu.Unlock()
		c.emit(ctx, Transition{Event: EventAnalyze, From: from, To: from, TripID: tripID, Duration: time.Since(start), Err: err})
		return err
	}
	c.stage = Analyzed{Suggested: suggested, Selected: selected, Analysis: analysis}
	c.lastErr = nil
	c.mu.Unlock()

	c.emit(ctx, Transition{Event: EventAnalyze, From: from, To: StageAnalyzed, TripID: tripID, Duration: time.Since(start)})
	return nil
}

// RequestOptimization asks for an itinerary over the selection that was
// analyzed. Selection changes made after the analysis are not sent.
func (c *Controller) RequestOptimization(ctx context.Context) error {
	ctx = logging.WithComponent(ctx, "workflow")
	if !c.busy.CompareAndSwap(false, true) {
		return invalid(ErrBusy)
	}
	defer c.busy.Store(false)

	c.mu.Lock()
	from := c.stage.Name()
	analyzed, ok := c.stage.(Analyzed)
	var precondition *ValidationError
	switch {
	case !ok:
		precondition = wrongStage("optimize", from)
	case c.tripID == "":
		precondition = invalid(ErrMissingTripID)
	}
	if precondition != nil {
		err := c.failLocked(precondition)
		c.mu.Unlock()
		c.emit(ctx, Transition{Event: EventOptimize, From: from, To: from, Err: err})
		return err
	}
	tripID := c.tripID
	gen := c.gen
	callCtx, cancel := c.beginCallLocked(ctx)
	c.mu.Unlock()

	start := time.Now()
	body := trip.NewSelectionRequest(tripID, analyzed.Request, analyzed.Selected)
	itinerary, callErr := c.planner.OptimizeItinerary(callCtx, body)
	cancel()

	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		logging.Info(ctx, "discarding response after reset", slog.String("event", string(EventOptimize)))
		return ErrDiscarded
	}
	c.cancel = nil
	if callErr != nil {
		err := c.failLocked(serviceError(StageOptimized, OptimizationFailedMessage, callErr))
		c.mu.Unlock()
		c.emit(ctx, Transition{Event: EventOptimize, From: from, To: from, TripID: tripID, Duration: time.Since(start), Err: err})
		return err
	}
	c.stage = Optimized{Analyzed: analyzed, Itinerary: itinerary}
	c.lastErr = nil
	c.mu.Unlock()

	c.emit(ctx, Transition{Event: EventOptimize, From: from, To: StageOptimized, TripID: tripID, Duration: time.Since(start)})
	return nil
}

// Reset discards all workflow data, forgets the persisted trip id and
// returns to Collecting. The session is untouched. A call in flight is
// cancelled and its response dropped. The busy flag is released once that
// call returns, so a new call made right after Reset may still see ErrBusy.
func (c *Controller) Reset(ctx context.Context) {
	ctx = logging.WithComponent(ctx, "workflow")

	c.mu.Lock()
	from := c.stage.Name()
	tripID := c.tripID
	c.gen++
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.stage = Collecting{}
	c.tripID = ""
	c.selection.Clear()
	c.lastErr = nil
	c.mu.Unlock()

	// A submit that passed its generation check finishes its write first.
	c.persistMu.Lock()
	err := c.store.ClearTripID(context.WithoutCancel(ctx))
	c.persistMu.Unlock()
	if err != nil {
		logging.Warn(ctx, "failed to clear persisted trip id", slog.String("error", err.Error()))
	}
	c.emit(ctx, Transition{Event: EventReset, From: from, To: StageCollecting, TripID: tripID})
}

// beginCallLocked derives the context for one service call and records its
// cancel func for Reset. Must be called with c.mu held.
func (c *Controller) beginCallLocked(ctx context.Context) (context.Context, context.CancelFunc) {
	callCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	return callCtx, cancel
}

// persistTripID stores id unless a Reset has happened since generation gen.
func (c *Controller) persistTripID(ctx context.Context, gen uint64, id string) {
	c.persistMu.Lock()
	defer c.persistMu.Unlock()

	c.mu.Lock()
	current := c.gen
	c.mu.Unlock()
	if current != gen {
		logging.Info(ctx, "skipping trip id write after reset", slog.String("trip_id", id))
		return
	}
	if err := c.store.SetTripID(context.WithoutCancel(ctx), id); err != nil {
		logging.Warn(ctx, "failed to persist trip id", slog.String("trip_id", id), slog.String("error", err.Error()))
	}
}

func (c *Controller) failLocked(err error) error {
	c.lastErr = err
	return err
}

// emit logs t and forwards it to the sink. Must be called without c.mu held.
func (c *Controller) emit(ctx context.Context, t Transition) {
	attrs := []any{
		slog.String("event", string(t.Event)),
		slog.String("trip_id", t.TripID),
	}
	if t.Duration > 0 {
		attrs = append(attrs, slog.Int64("duration_ms", t.Duration.Milliseconds()))
	}
	switch {
	case t.Err != nil:
		logging.Info(ctx, "transition rejected", append(attrs,
			slog.String("stage", string(t.From)),
			slog.String("error", t.Err.Error()),
		)...)
	case t.From != t.To:
		logging.Info(ctx, "stage transition", append(attrs,
			slog.String("from", string(t.From)),
			slog.String("to", string(t.To)),
		)...)
	default:
		logging.Debug(ctx, "stage unchanged", append(attrs, slog.String("stage", string(t.From)))...)
	}

	if c.sink != nil {
		c.sink.Transition(ctx, t)
	}
}

func serviceError(stage StageName, fallback string, err error) *ServiceError {
	msg := tripapi.Detail(err)
	if msg == "" {
		msg = fallback
	}
	if errors.Is(err, context.Canceled) {
		msg = fallback + " (cancelled)"
	}
	return &ServiceError{Stage: stage, Message: msg, Err: err}
}
