package tripapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/voyagepal/cli/cmd/voyagepal/cli/trip"
	"github.com/voyagepal/cli/cmd/voyagepal/cli/tripapi/tripapitest"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

type staticToken string

func (s staticToken) Token(context.Context) (string, error) { return string(s), nil }

type failingToken struct{}

func (failingToken) Token(context.Context) (string, error) { return "", errors.New("disk gone") }

func chicagoRequest() trip.TripRequest {
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

func newClient(t *testing.T, srv *tripapitest.Server, opts ...Option) *Client {
	t.Helper()
	token := srv.IssueToken(tripapitest.Email, time.Hour)
	c, err := New(srv.BaseURL(), append([]Option{WithTokenSource(staticToken(token))}, opts...)...)
	require.NoError(t, err)
	return c
}

func TestNew_RejectsBadURL(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{"ftp://example.com", "://nope", "localhost:8000"} {
		_, err := New(raw)
		assert.Error(t, err, raw)
	}

	c, err := New("")
	require.NoError(t, err)
	assert.Equal(t, DefaultBaseURL, c.BaseURL())

	c, err = New("http://example.com/api/v1/")
	require.NoError(t, err)
	assert.Equal(t, "http://example.com/api/v1", c.BaseURL())
}

func TestStages_AgainstFakeService(t *testing.T) {
	t.Parallel()

	srv := tripapitest.New(t)
	c := newClient(t, srv)
	ctx := context.Background()

	plan, err := c.InitialSuggestions(ctx, chicagoRequest())
	require.NoError(t, err)
	assert.Equal(t, tripapitest.FirstTripID, plan.TripID)
	require.Len(t, plan.Candidates, 3)
	assert.Equal(t, tripapitest.MillenniumPark, plan.Candidates[0].Name)
	assert.Nil(t, plan.Candidates[0].AdmissionCostUSD)

	var sent map[string]any
	require.NoError(t, json.Unmarshal(srv.LastBody(http.MethodPost, tripapitest.PathInitialSuggestions), &sent))
	assert.Equal(t, "Chicago", sent["destination"])
	assert.Equal(t, "mid-range", sent["budget_range"])

	sel := trip.NewSelectionRequest(plan.TripID, chicagoRequest(), plan.Candidates[:2])
	analysis, err := c.DetailedAnalysis(ctx, sel)
	require.NoError(t, err)
	assert.False(t, analysis.CarryUmbrella)
	assert.Nil(t, analysis.EstimatedGasCostUSD)
	require.NotNil(t, analysis.EstimatedRideShareCostUSD)
	assert.InDelta(t, 28.5, *analysis.EstimatedRideShareCostUSD, 0.001)

	itin, err := c.OptimizeItinerary(ctx, sel)
	require.NoError(t, err)
	assert.Equal(t, trip.FeasibilityPossible, itin.FeasibilityStatus)
	require.Len(t, itin.Steps, 2)
	assert.Equal(t, tripapitest.NavyPier, itin.Steps[1].LocationName)
	assert.Nil(t, itin.Steps[1].EstimatedTravelTimeMinutes)
}

func TestDo_SendsHeaders(t *testing.T) {
	t.Parallel()

	srv := tripapitest.New(t)
	c := newClient(t, srv, WithUserAgent("voyagepal-test"))

	_, err := c.SavedTrips(context.Background())
	require.NoError(t, err)

	h := srv.LastHeader(http.MethodGet, tripapitest.PathTrips)
	assert.Contains(t, h.Get("Authorization"), "Bearer ")
	assert.Equal(t, "voyagepal-test", h.Get("User-Agent"))
	_, err = uuid.Parse(h.Get(RequestIDHeader))
	assert.NoError(t, err)
}

func TestDo_NoTokenNoAuthorizationHeader(t *testing.T) {
	t.Parallel()

	srv := tripapitest.New(t)
	c, err := New(srv.BaseURL(), WithTokenSource(staticToken("")))
	require.NoError(t, err)

	_, err = c.SavedTrips(context.Background())
	require.Error(t, err)
	assert.True(t, IsUnauthorized(err))
	assert.Empty(t, srv.LastHeader(http.MethodGet, tripapitest.PathTrips).Get("Authorization"))
}

func TestDo_TokenSourceFailureSendsNothing(t *testing.T) {
	t.Parallel()

	srv := tripapitest.New(t)
	c, err := New(srv.BaseURL(), WithTokenSource(failingToken{}))
	require.NoError(t, err)

	_, err = c.SavedTrips(context.Background())
	require.ErrorContains(t, err, "disk gone")
	assert.Zero(t, srv.TotalCalls())
}

func TestDo_ErrorDetail(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		status     int
		body       string
		wantDetail string
	}{
		{
			name:       "string detail",
			status:     http.StatusInternalServerError,
			body:       `{"detail":"Error generating suggestions: quota exceeded"}`,
			wantDetail: "Error generating suggestions: quota exceeded",
		},
		{
			name:       "validation list",
			status:     http.StatusUnprocessableEntity,
			body:       `{"detail":[{"loc":["body","trip_date"],"msg":"Input should be a valid date","type":"date_from_datetime_parsing"},{"loc":["body"],"msg":"Extra inputs are not permitted"}]}`,
			wantDetail: "trip_date: Input should be a valid date; Extra inputs are not permitted",
		},
		{
			name:       "no detail",
			status:     http.StatusBadGateway,
			body:       `<html>bad gateway</html>`,
			wantDetail: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			srv := tripapitest.New(t)
			srv.Handle(http.MethodPost, tripapitest.PathInitialSuggestions, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})
			c := newClient(t, srv)

			_, err := c.InitialSuggestions(context.Background(), chicagoRequest())
			var apiErr *APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, tt.status, apiErr.Status)
			assert.Equal(t, tt.wantDetail, apiErr.Detail)
			assert.Equal(t, tt.wantDetail, Detail(err))
		})
	}
}

func TestDo_SchemaViolation(t *testing.T) {
	t.Parallel()

	srv := tripapitest.New(t)
	srv.Respond(http.MethodPost, tripapitest.PathInitialSuggestions, `{"trip_id":"abc123","location_suggestions":"oops"}`)
	c := newClient(t, srv)

	_, err := c.InitialSuggestions(context.Background(), chicagoRequest())
	var schemaErr *SchemaError
	require.ErrorAs(t, err, &schemaErr)
	assert.Equal(t, SchemaInitialSuggestions, schemaErr.Schema)
	assert.Empty(t, Detail(err))
}

func TestDo_RecordsSpans(t *testing.T) {
	t.Parallel()

	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	srv := tripapitest.New(t)
	srv.Fail(http.MethodPost, tripapitest.PathDetailedAnalysis, http.StatusInternalServerError, "boom")
	c := newClient(t, srv, WithTracerProvider(tp))

	_, err := c.InitialSuggestions(context.Background(), chicagoRequest())
	require.NoError(t, err)
	_, err = c.DetailedAnalysis(context.Background(), trip.SelectionRequest{TripID: "abc123"})
	require.Error(t, err)

	spans := recorder.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, "POST /trip/plan/initial-suggestions", spans[0].Name())
	assert.Equal(t, codes.Unset, spans[0].Status().Code)
	assert.Equal(t, "POST /trip/plan/detailed-analysis", spans[1].Name())
	assert.Equal(t, codes.Error, spans[1].Status().Code)
}

func TestLoginAndRegister(t *testing.T) {
	t.Parallel()

	srv := tripapitest.New(t)
	c, err := New(srv.BaseURL())
	require.NoError(t, err)
	ctx := context.Background()

	token, err := c.Login(ctx, tripapitest.Email, tripapitest.Password)
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.Equal(t, "application/x-www-form-urlencoded", srv.LastHeader(http.MethodPost, tripapitest.PathToken).Get("Content-Type"))

	_, err = c.Login(ctx, tripapitest.Email, "wrong")
	assert.True(t, IsUnauthorized(err))
	assert.Equal(t, "Incorrect username or password", Detail(err))

	msg, err := c.Register(ctx, trip.Registration{Email: "new@example.com", Password: "pw", FullName: "New User"})
	require.NoError(t, err)
	assert.Equal(t, "User registered successfully", msg)

	_, err = c.Register(ctx, trip.Registration{Email: "new@example.com", Password: "pw"})
	assert.Equal(t, "Email already registered", Detail(err))
}

func TestSavePreferences_CreatesWhenMissing(t *testing.T) {
	t.Parallel()

	srv := tripapitest.New(t)
	c := newClient(t, srv)
	ctx := context.Background()

	want := trip.Preferences{
		Interests:          []trip.Interest{trip.InterestCulture},
		Pace:               trip.PaceFastPaced,
		PreferredTransport: []trip.Transport{trip.TransportPublicTransit},
		BudgetRange:        trip.BudgetLuxury,
	}
	got, err := c.SavePreferences(ctx, want)
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Equal(t, 1, srv.Calls(http.MethodPut, tripapitest.PathPreferences))
	assert.Equal(t, 1, srv.Calls(http.MethodPost, tripapitest.PathPreferences))

	got, err = c.Preferences(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	want.Pace = trip.PaceRelaxed
	_, err = c.SavePreferences(ctx, want)
	require.NoError(t, err)
	assert.Equal(t, 2, srv.Calls(http.MethodPut, tripapitest.PathPreferences))
	assert.Equal(t, 1, srv.Calls(http.MethodPost, tripapitest.PathPreferences))
}

func TestWeather(t *testing.T) {
	t.Parallel()

	srv := tripapitest.New(t)
	c := newClient(t, srv)

	got, err := c.Weather(context.Background(), "New York", "2024-06-01")
	require.NoError(t, err)
	assert.Equal(t, "New York", got["city"])

	_, err = c.Weather(context.Background(), "Chicago", "June 1st")
	require.Error(t, err)
	assert.Equal(t, 0, srv.TotalCalls())
}

func TestSavedTrips(t *testing.T) {
	t.Parallel()

	srv := tripapitest.New(t)
	srv.AddSavedTrip(`{"id":"t1","destination":"Chicago","trip_date":"2024-06-01","return_time":"11 PM",
		"estimated_costs":{"overall_total_estimated_cost_usd":42.5}}`)
	c := newClient(t, srv)

	trips, err := c.SavedTrips(context.Background())
	require.NoError(t, err)
	require.Len(t, trips, 1)
	assert.Equal(t, "Chicago", trips[0].Destination)
	total, ok := trips[0].TotalCost()
	assert.True(t, ok)
	assert.InDelta(t, 42.5, total, 0.001)
}
