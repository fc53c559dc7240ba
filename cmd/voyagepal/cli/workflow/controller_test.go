package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/voyagepal/cli/cmd/voyagepal/cli/auth"
	"github.com/voyagepal/cli/cmd/voyagepal/cli/store"
	"github.com/voyagepal/cli/cmd/voyagepal/cli/trip"
	"github.com/voyagepal/cli/cmd/voyagepal/cli/tripapi"
	"github.com/voyagepal/cli/cmd/voyagepal/cli/tripapi/tripapitest"
)

var loggedIn = auth.Session{Token: "tok"}

func chicago() trip.TripRequest {
	return trip.TripRequest{
		Destination:        "Chicago",
		TripDate:           "2024-06-01",
		ReturnTime:         "11 PM",
		Interests:          []trip.Interest{trip.InterestFood},
		Pace:               trip.PaceRelaxed,
		PreferredTransport: []trip.Transport{trip.TransportWalking},
		BudgetRange:        trip.BudgetMid,
	}
}

func candidates(names ...string) []trip.LocationCandidate {
	out := make([]trip.LocationCandidate, len(names))
	for i, n := range names {
		out[i] = trip.LocationCandidate{Name: n, Type: "Attraction", EstimatedTimeMinutes: 60}
	}
	return out
}

// fakePlanner counts calls and returns canned results.
type fakePlanner struct {
	mu    sync.Mutex
	calls int
	last  trip.SelectionRequest

	plan         trip.Plan
	planErr      error
	analysisErr  error
	itineraryErr error
}

func newFakePlanner() *fakePlanner {
	return &fakePlanner{plan: trip.Plan{
		TripID:        "abc123",
		SuggestionSet: trip.SuggestionSet{Candidates: candidates("Millennium Park", "Navy Pier")},
	}}
}

func (f *fakePlanner) InitialSuggestions(context.Context, trip.TripRequest) (trip.Plan, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.plan, f.planErr
}

func (f *fakePlanner) DetailedAnalysis(_ context.Context, req trip.SelectionRequest) (trip.DetailedAnalysis, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.last = req
	return trip.DetailedAnalysis{WeatherSummary: "Sunny"}, f.analysisErr
}

func (f *fakePlanner) OptimizeItinerary(_ context.Context, req trip.SelectionRequest) (trip.OptimizedItinerary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.last = req
	return trip.OptimizedItinerary{FeasibilityStatus: trip.FeasibilityPossible}, f.itineraryErr
}

func (f *fakePlanner) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakePlanner) Last() trip.SelectionRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.last
}

func newController(t *testing.T, p Planner, opts ...Option) (*Controller, *store.SessionStore) {
	t.Helper()
	st := store.NewSessionStore(store.NewMemoryBackend())
	c, err := New(context.Background(), loggedIn, p, st, opts...)
	require.NoError(t, err)
	return c, st
}

func persistedTripID(t *testing.T, st *store.SessionStore) string {
	t.Helper()
	id, err := st.TripID(context.Background())
	require.NoError(t, err)
	return id
}

func TestNew_RequiresAuthentication(t *testing.T) {
	t.Parallel()

	st := store.NewSessionStore(store.NewMemoryBackend())
	_, err := New(context.Background(), auth.Session{}, newFakePlanner(), st)
	require.ErrorIs(t, err, ErrNotAuthenticated)
}

func TestNew_ResumesTripIDOnly(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	st := store.NewSessionStore(store.NewMemoryBackend())
	require.NoError(t, st.SetTripID(ctx, "abc123"))

	c, err := New(ctx, loggedIn, newFakePlanner(), st)
	require.NoError(t, err)
	assert.Equal(t, "abc123", c.TripID())
	assert.Equal(t, StageCollecting, c.Stage().Name())
	assert.Empty(t, c.Selection())
}

// TestChicagoScenario drives a full run against the fake HTTP service.
func TestChicagoScenario(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	srv := tripapitest.New(t)
	st := store.NewSessionStore(store.NewMemoryBackend())
	token := srv.IssueToken(tripapitest.Email, time.Hour)
	require.NoError(t, st.SetToken(ctx, token))
	client, err := tripapi.New(srv.BaseURL(), tripapi.WithTokenSource(st))
	require.NoError(t, err)

	c, err := New(ctx, auth.Session{Token: token}, client, st)
	require.NoError(t, err)

	require.NoError(t, c.Submit(ctx, chicago()))
	assert.Equal(t, StageSuggested, c.Stage().Name())
	assert.Equal(t, tripapitest.FirstTripID, c.TripID())
	assert.Equal(t, tripapitest.FirstTripID, persistedTripID(t, st))
	assert.Empty(t, c.Selection())

	selected, err := c.ToggleByName(tripapitest.MillenniumPark)
	require.NoError(t, err)
	assert.True(t, selected)

	require.NoError(t, c.RequestAnalysis(ctx))
	analyzed, ok := c.Stage().(Analyzed)
	require.True(t, ok)
	assert.Equal(t, "High of 78F, clear skies.", analyzed.Analysis.WeatherSummary)

	var sent struct {
		TripID            string                   `json:"trip_id"`
		UserPreferences   trip.Preferences         `json:"user_preferences"`
		SelectedLocations []trip.LocationCandidate `json:"selected_locations"`
	}
	require.NoError(t, json.Unmarshal(srv.LastBody(http.MethodPost, tripapitest.PathDetailedAnalysis), &sent))
	assert.Equal(t, tripapitest.FirstTripID, sent.TripID)
	assert.Equal(t, trip.PaceRelaxed, sent.UserPreferences.Pace)
	require.Len(t, sent.SelectedLocations, 1)
	assert.Equal(t, tripapitest.MillenniumPark, sent.SelectedLocations[0].Name)

	require.NoError(t, c.RequestOptimization(ctx))
	optimized, ok := c.Stage().(Optimized)
	require.True(t, ok)
	assert.Len(t, optimized.Itinerary.Steps, 2)
	assert.Equal(t, tripapitest.FirstTripID, c.TripID())

	// A fresh controller resumes only the id; analysis is refused locally.
	before := srv.TotalCalls()
	fresh, err := New(ctx, auth.Session{Token: token}, client, st)
	require.NoError(t, err)
	assert.Equal(t, tripapitest.FirstTripID, fresh.TripID())

	err = fresh.RequestAnalysis(ctx)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, before, srv.TotalCalls())
}

func TestRequestAnalysis_NoCallWhenPreconditionFails(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		setup   func(c *Controller)
		wantErr error
	}{
		{
			name:    "collecting",
			setup:   func(*Controller) {},
			wantErr: ErrWrongStage,
		},
		{
			name: "empty selection",
			setup: func(c *Controller) {
				c.stage = Suggested{Request: chicago(), Suggestions: trip.SuggestionSet{Candidates: candidates("Navy Pier")}}
				c.tripID = "abc123"
			},
			wantErr: ErrEmptySelection,
		},
		{
			name: "missing trip id",
			setup: func(c *Controller) {
				c.stage = Suggested{Request: chicago(), Suggestions: trip.SuggestionSet{Candidates: candidates("Navy Pier")}}
				c.selection.Toggle(candidates("Navy Pier")[0])
			},
			wantErr: ErrMissingTripID,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			p := newFakePlanner()
			c, _ := newController(t, p)
			tt.setup(c)
			before := c.Stage()

			err := c.RequestAnalysis(context.Background())
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			require.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, err, c.LastError())
			assert.Equal(t, before, c.Stage())
			assert.Zero(t, p.Calls())
			assert.False(t, c.Busy())
		})
	}
}

func TestValidationMessages(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "Please select at least one location.", invalid(ErrEmptySelection).Error())
	assert.Equal(t, "Trip ID is missing. Please start a new plan.", invalid(ErrMissingTripID).Error())
}

func TestRequestOptimization_Preconditions(t *testing.T) {
	t.Parallel()

	p := newFakePlanner()
	c, _ := newController(t, p)
	ctx := context.Background()

	require.ErrorIs(t, c.RequestOptimization(ctx), ErrWrongStage)

	require.NoError(t, c.Submit(ctx, chicago()))
	require.ErrorIs(t, c.RequestOptimization(ctx), ErrWrongStage)

	c.mu.Lock()
	c.stage = Analyzed{Suggested: Suggested{Request: chicago()}, Selected: candidates("Navy Pier")}
	c.tripID = ""
	c.mu.Unlock()
	require.ErrorIs(t, c.RequestOptimization(ctx), ErrMissingTripID)
	assert.Equal(t, 1, p.Calls())
}

func TestSubmit_Rejections(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("invalid request", func(t *testing.T) {
		t.Parallel()
		p := newFakePlanner()
		c, _ := newController(t, p)

		req := chicago()
		req.Destination = "  "
		req.Pace = "sprint"
		err := c.Submit(ctx, req)
		require.ErrorIs(t, err, ErrInvalidRequest)
		assert.Contains(t, err.Error(), "destination is required")
		assert.Zero(t, p.Calls())
		assert.Equal(t, StageCollecting, c.Stage().Name())
	})

	t.Run("already suggested", func(t *testing.T) {
		t.Parallel()
		p := newFakePlanner()
		c, _ := newController(t, p)

		require.NoError(t, c.Submit(ctx, chicago()))
		require.ErrorIs(t, c.Submit(ctx, chicago()), ErrWrongStage)
		assert.Equal(t, 1, p.Calls())
	})

	t.Run("unusable trip id", func(t *testing.T) {
		t.Parallel()
		p := newFakePlanner()
		p.plan.TripID = "../../etc"
		c, st := newController(t, p)

		var serr *ServiceError
		require.ErrorAs(t, c.Submit(ctx, chicago()), &serr)
		assert.Equal(t, SuggestionsFailedMessage, serr.Message)
		assert.Equal(t, StageCollecting, c.Stage().Name())
		assert.Empty(t, persistedTripID(t, st))
	})
}

func TestSubmit_StoresNormalizedCopy(t *testing.T) {
	t.Parallel()

	c, _ := newController(t, newFakePlanner())
	req := chicago()
	req.Interests = []trip.Interest{trip.InterestFood, trip.InterestFood}
	require.NoError(t, c.Submit(context.Background(), req))

	req.Interests[0] = trip.InterestShopping
	got, ok := RequestOf(c.Stage())
	require.True(t, ok)
	assert.Equal(t, []trip.Interest{trip.InterestFood}, got.Interests)
}

func TestServiceErrors_LeaveStageUnchanged(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	detailErr := &tripapi.APIError{Status: http.StatusInternalServerError, Detail: "Error generating analysis: LLM timeout"}

	tests := []struct {
		name        string
		configure   func(*fakePlanner)
		advance     func(*testing.T, *Controller)
		trigger     func(*Controller) error
		wantStage   StageName
		wantMessage string
	}{
		{
			name:        "suggestions fallback",
			configure:   func(p *fakePlanner) { p.planErr = errors.New("connection refused") },
			advance:     func(*testing.T, *Controller) {},
			trigger:     func(c *Controller) error { return c.Submit(ctx, chicago()) },
			wantStage:   StageCollecting,
			wantMessage: SuggestionsFailedMessage,
		},
		{
			name:      "analysis detail",
			configure: func(p *fakePlanner) { p.analysisErr = detailErr },
			advance: func(t *testing.T, c *Controller) {
				require.NoError(t, c.Submit(ctx, chicago()))
				_, err := c.ToggleByName("Navy Pier")
				require.NoError(t, err)
			},
			trigger:     func(c *Controller) error { return c.RequestAnalysis(ctx) },
			wantStage:   StageSuggested,
			wantMessage: "Error generating analysis: LLM timeout",
		},
		{
			name:      "optimization fallback",
			configure: func(p *fakePlanner) { p.itineraryErr = &tripapi.APIError{Status: http.StatusBadGateway} },
			advance: func(t *testing.T, c *Controller) {
				require.NoError(t, c.Submit(ctx, chicago()))
				_, err := c.ToggleByName("Navy Pier")
				require.NoError(t, err)
				require.NoError(t, c.RequestAnalysis(ctx))
			},
			trigger:     func(c *Controller) error { return c.RequestOptimization(ctx) },
			wantStage:   StageAnalyzed,
			wantMessage: OptimizationFailedMessage,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			p := newFakePlanner()
			tt.configure(p)
			c, _ := newController(t, p)
			tt.advance(t, c)
			tripID := c.TripID()

			err := tt.trigger(c)
			var serr *ServiceError
			require.ErrorAs(t, err, &serr)
			assert.Equal(t, tt.wantMessage, serr.Error())
			assert.Equal(t, tt.wantStage, c.Stage().Name())
			assert.Equal(t, tripID, c.TripID())
			assert.Equal(t, err, c.LastError())
			assert.False(t, c.Busy())
		})
	}
}

func TestLastError_ClearedOnSuccess(t *testing.T) {
	t.Parallel()

	p := newFakePlanner()
	p.planErr = errors.New("boom")
	c, _ := newController(t, p)
	ctx := context.Background()

	require.Error(t, c.Submit(ctx, chicago()))
	require.Error(t, c.LastError())

	p.mu.Lock()
	p.planErr = nil
	p.mu.Unlock()
	require.NoError(t, c.Submit(ctx, chicago()))
	assert.NoError(t, c.LastError())
}

func TestToggle(t *testing.T) {
	t.Parallel()

	c, _ := newController(t, newFakePlanner())

	// Collecting has no suggestions to pick from.
	_, err := c.ToggleByName("Navy Pier")
	require.ErrorIs(t, err, ErrUnknownCandidate)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)

	require.NoError(t, c.Submit(context.Background(), chicago()))

	_, err = c.Toggle(trip.LocationCandidate{Name: "Willis Tower"})
	require.ErrorIs(t, err, ErrUnknownCandidate)

	on, err := c.ToggleByName("Navy Pier")
	require.NoError(t, err)
	assert.True(t, on)
	assert.True(t, c.IsSelected("Navy Pier"))

	on, err = c.ToggleByName("Navy Pier")
	require.NoError(t, err)
	assert.False(t, on)
	assert.Empty(t, c.Selection())
}

func TestTripID_StableUntilReset(t *testing.T) {
	t.Parallel()

	srv := tripapitest.New(t)
	ctx := context.Background()
	st := store.NewSessionStore(store.NewMemoryBackend())
	client, err := tripapi.New(srv.BaseURL(), tripapi.WithTokenSource(st))
	require.NoError(t, err)
	require.NoError(t, st.SetToken(ctx, srv.IssueToken(tripapitest.Email, time.Hour)))
	c, err := New(ctx, loggedIn, client, st)
	require.NoError(t, err)

	require.NoError(t, c.Submit(ctx, chicago()))
	id := c.TripID()

	// Failures and local rejections must not move the id.
	require.Error(t, c.RequestAnalysis(ctx))
	require.Error(t, c.Submit(ctx, chicago()))
	_, err = c.ToggleByName(tripapitest.NavyPier)
	require.NoError(t, err)
	srv.Fail(http.MethodPost, tripapitest.PathDetailedAnalysis, http.StatusInternalServerError, "boom")
	require.Error(t, c.RequestAnalysis(ctx))
	assert.Equal(t, id, c.TripID())
	assert.Equal(t, id, persistedTripID(t, st))

	c.Reset(ctx)
	assert.Empty(t, c.TripID())

	require.NoError(t, c.Submit(ctx, chicago()))
	assert.Equal(t, "trip-2", c.TripID())
	assert.Equal(t, "trip-2", persistedTripID(t, st))
}

func TestReset_ClearsEverythingButSession(t *testing.T) {
	t.Parallel()

	p := newFakePlanner()
	c, st := newController(t, p)
	ctx := context.Background()

	require.NoError(t, c.Submit(ctx, chicago()))
	_, err := c.ToggleByName("Millennium Park")
	require.NoError(t, err)
	require.NoError(t, c.RequestAnalysis(ctx))
	require.NoError(t, c.RequestOptimization(ctx))
	require.Equal(t, StageOptimized, c.Stage().Name())

	c.Reset(ctx)

	assert.Equal(t, Collecting{}, c.Stage())
	_, hasRequest := RequestOf(c.Stage())
	assert.False(t, hasRequest)
	_, hasSuggestions := SuggestionsOf(c.Stage())
	assert.False(t, hasSuggestions)
	assert.Empty(t, c.Selection())
	assert.Empty(t, c.TripID())
	assert.NoError(t, c.LastError())
	assert.Empty(t, persistedTripID(t, st))

	// Reset from Collecting is harmless.
	c.Reset(ctx)
	assert.Equal(t, StageCollecting, c.Stage().Name())
}

func TestRequestOptimization_UsesAnalyzedSelection(t *testing.T) {
	t.Parallel()

	p := newFakePlanner()
	c, _ := newController(t, p)
	ctx := context.Background()

	require.NoError(t, c.Submit(ctx, chicago()))
	_, err := c.ToggleByName("Millennium Park")
	require.NoError(t, err)
	require.NoError(t, c.RequestAnalysis(ctx))

	_, err = c.ToggleByName("Navy Pier")
	require.NoError(t, err)
	require.NoError(t, c.RequestOptimization(ctx))

	sent := p.Last()
	require.Len(t, sent.SelectedLocations, 1)
	assert.Equal(t, "Millennium Park", sent.SelectedLocations[0].Name)
	assert.Equal(t, []string{"Millennium Park", "Navy Pier"}, names(c.Selection()))
}

func names(cs []trip.LocationCandidate) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.Name
	}
	return out
}

func TestBusy_RejectsSecondCall(t *testing.T) {
	t.Parallel()

	srv := tripapitest.New(t)
	ctx := context.Background()
	st := store.NewSessionStore(store.NewMemoryBackend())
	require.NoError(t, st.SetToken(ctx, srv.IssueToken(tripapitest.Email, time.Hour)))
	client, err := tripapi.New(srv.BaseURL(), tripapi.WithTokenSource(st))
	require.NoError(t, err)
	c, err := New(ctx, loggedIn, client, st)
	require.NoError(t, err)

	require.NoError(t, c.Submit(ctx, chicago()))
	_, err = c.ToggleByName(tripapitest.NavyPier)
	require.NoError(t, err)
	require.NoError(t, c.RequestAnalysis(ctx))

	entered, release := srv.Block(http.MethodPost, tripapitest.PathOptimizeItinerary)
	done := make(chan error, 1)
	go func() { done <- c.RequestOptimization(ctx) }()
	<-entered
	assert.True(t, c.Busy())

	err = c.RequestOptimization(ctx)
	require.ErrorIs(t, err, ErrBusy)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	require.ErrorIs(t, c.RequestAnalysis(ctx), ErrBusy)
	require.ErrorIs(t, c.Submit(ctx, chicago()), ErrBusy)

	// Toggling is still allowed while busy.
	_, err = c.ToggleByName(tripapitest.ArtInstitute)
	require.NoError(t, err)

	release()
	require.NoError(t, <-done)
	assert.False(t, c.Busy())
	assert.Equal(t, 1, srv.Calls(http.MethodPost, tripapitest.PathOptimizeItinerary))
	assert.Equal(t, StageOptimized, c.Stage().Name())
}

func TestReset_DiscardsInFlightResponse(t *testing.T) {
	t.Parallel()

	srv := tripapitest.New(t)
	ctx := context.Background()
	st := store.NewSessionStore(store.NewMemoryBackend())
	require.NoError(t, st.SetToken(ctx, srv.IssueToken(tripapitest.Email, time.Hour)))
	client, err := tripapi.New(srv.BaseURL(), tripapi.WithTokenSource(st))
	require.NoError(t, err)
	c, err := New(ctx, loggedIn, client, st)
	require.NoError(t, err)

	entered, release := srv.Block(http.MethodPost, tripapitest.PathInitialSuggestions)
	done := make(chan error, 1)
	go func() { done <- c.Submit(ctx, chicago()) }()
	<-entered

	c.Reset(ctx)
	release()

	require.ErrorIs(t, <-done, ErrDiscarded)
	assert.Equal(t, StageCollecting, c.Stage().Name())
	assert.Empty(t, c.TripID())
	assert.Empty(t, persistedTripID(t, st))
	assert.False(t, c.Busy())
}

func TestReset_CancelsInFlightCall(t *testing.T) {
	t.Parallel()

	srv := tripapitest.New(t)
	ctx := context.Background()
	st := store.NewSessionStore(store.NewMemoryBackend())
	require.NoError(t, st.SetToken(ctx, srv.IssueToken(tripapitest.Email, time.Hour)))
	client, err := tripapi.New(srv.BaseURL(), tripapi.WithTokenSource(st))
	require.NoError(t, err)
	c, err := New(ctx, loggedIn, client, st)
	require.NoError(t, err)

	entered, release := srv.Block(http.MethodPost, tripapitest.PathInitialSuggestions)
	done := make(chan error, 1)
	go func() { done <- c.Submit(ctx, chicago()) }()
	<-entered

	// The gate stays closed: only cancellation can end the call.
	c.Reset(ctx)
	select {
	case err := <-done:
		require.ErrorIs(t, err, ErrDiscarded)
	case <-time.After(5 * time.Second):
		t.Fatal("Reset did not cancel the call in flight")
	}
	assert.False(t, c.Busy())

	release()
	require.NoError(t, c.Submit(ctx, chicago()))
	assert.Equal(t, StageSuggested, c.Stage().Name())
}

// gatedBackend blocks writes of the trip id until released.
type gatedBackend struct {
	*store.MemoryBackend
	entered chan struct{}
	release chan struct{}
}

func (b *gatedBackend) Set(ctx context.Context, key, value string) error {
	if key == store.KeyTripID {
		close(b.entered)
		<-b.release
	}
	return b.MemoryBackend.Set(ctx, key, value)
}

func TestReset_DuringTripIDWrite(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	backend := &gatedBackend{
		MemoryBackend: store.NewMemoryBackend(),
		entered:       make(chan struct{}),
		release:       make(chan struct{}),
	}
	st := store.NewSessionStore(backend)
	c, err := New(ctx, loggedIn, newFakePlanner(), st)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- c.Submit(ctx, chicago()) }()
	<-backend.entered

	reset := make(chan struct{})
	go func() {
		c.Reset(ctx)
		close(reset)
	}()
	// Reset waits for the write in progress before clearing.
	require.Eventually(t, func() bool { return c.Stage().Name() == StageCollecting }, 5*time.Second, 5*time.Millisecond)
	close(backend.release)

	require.NoError(t, <-done)
	<-reset
	assert.Equal(t, StageCollecting, c.Stage().Name())
	assert.Empty(t, c.TripID())
	assert.Empty(t, persistedTripID(t, st))
}

func TestReset_BeforeTripIDWrite(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	planner := &resettingPlanner{fakePlanner: newFakePlanner()}
	c, st := newController(t, planner)
	planner.reset = func() { c.Reset(ctx) }

	// The reset lands after the call but before the response is applied, so
	// nothing may reach the store.
	require.ErrorIs(t, c.Submit(ctx, chicago()), ErrDiscarded)
	assert.Empty(t, persistedTripID(t, st))
}

// resettingPlanner runs reset from inside the suggestions call.
type resettingPlanner struct {
	*fakePlanner
	reset func()
}

func (p *resettingPlanner) InitialSuggestions(ctx context.Context, req trip.TripRequest) (trip.Plan, error) {
	plan, err := p.fakePlanner.InitialSuggestions(ctx, req)
	p.reset()
	return plan, err
}

func TestSubmit_CancelledContext(t *testing.T) {
	t.Parallel()

	srv := tripapitest.New(t)
	st := store.NewSessionStore(store.NewMemoryBackend())
	require.NoError(t, st.SetToken(context.Background(), srv.IssueToken(tripapitest.Email, time.Hour)))
	client, err := tripapi.New(srv.BaseURL(), tripapi.WithTokenSource(st))
	require.NoError(t, err)
	c, err := New(context.Background(), loggedIn, client, st)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	entered, _ := srv.Block(http.MethodPost, tripapitest.PathInitialSuggestions)
	done := make(chan error, 1)
	go func() { done <- c.Submit(ctx, chicago()) }()
	<-entered
	cancel()

	err = <-done
	var serr *ServiceError
	require.ErrorAs(t, err, &serr)
	require.ErrorIs(t, err, context.Canceled)
	assert.False(t, c.Busy())
	assert.Equal(t, StageCollecting, c.Stage().Name())
}

type recordingSink struct {
	mu     sync.Mutex
	events []Transition
}

func (r *recordingSink) Transition(_ context.Context, t Transition) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, t)
}

func TestEventSink(t *testing.T) {
	t.Parallel()

	sink := &recordingSink{}
	c, _ := newController(t, newFakePlanner(), WithEventSink(sink))
	ctx := context.Background()

	require.NoError(t, c.Submit(ctx, chicago()))
	require.Error(t, c.RequestAnalysis(ctx))
	c.Reset(ctx)

	require.Len(t, sink.events, 3)
	assert.Equal(t, Transition{Event: EventSubmit, From: StageCollecting, To: StageSuggested, TripID: "abc123"},
		withoutDuration(sink.events[0]))
	assert.Equal(t, EventAnalyze, sink.events[1].Event)
	assert.Equal(t, StageSuggested, sink.events[1].To)
	require.ErrorIs(t, sink.events[1].Err, ErrEmptySelection)
	assert.Equal(t, EventReset, sink.events[2].Event)
	assert.Equal(t, StageCollecting, sink.events[2].To)
}

func withoutDuration(t Transition) Transition {
	t.Duration = 0
	return t
}

func TestMermaidDiagram(t *testing.T) {
	t.Parallel()

	d := MermaidDiagram()
	assert.Contains(t, d, "stateDiagram-v2")
	assert.Contains(t, d, "[*] --> collecting")
	assert.Contains(t, d, "collecting --> suggested : submit")
	assert.Contains(t, d, "analyzed --> optimized : optimize")
	assert.Contains(t, d, "optimized --> collecting : reset")
}
