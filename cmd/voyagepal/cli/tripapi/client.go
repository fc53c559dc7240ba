// Package tripapi is the HTTP client for the trip planning service and its
// auth endpoints. Every 2xx body is checked against an embedded JSON Schema
// before it is decoded.
package tripapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/voyagepal/cli/cmd/voyagepal/cli/logging"
	"github.com/voyagepal/cli/cmd/voyagepal/cli/trip"
	"github.com/voyagepal/cli/cmd/voyagepal/cli/versioninfo"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// DefaultBaseURL is used when no api_url is configured.
const DefaultBaseURL = "http://localhost:8000/api/v1"

// RequestIDHeader carries a fresh UUID on every request.
const RequestIDHeader = "X-Request-ID"

const (
	tracerName = "github.com/voyagepal/cli/tripapi"

	// maxBodyBytes bounds how much of a response is read.
	maxBodyBytes = 8 << 20
)

// TokenSource supplies the bearer token. An empty token means no
// Authorization header is sent.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Client talks to the trip planning service.
type Client struct {
	baseURL   string
	http      *http.Client
	tokens    TokenSource
	tracer    trace.Tracer
	userAgent string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTimeout sets the per-request timeout. Zero disables it.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		hc := *c.http
		hc.Timeout = d
		c.http = &hc
	}
}

// WithTokenSource attaches bearer tokens from ts.
func WithTokenSource(ts TokenSource) Option {
	return func(c *Client) { c.tokens = ts }
}

// WithTracerProvider records spans on tp instead of the global provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *Client) { c.tracer = tp.Tracer(tracerName) }
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

// New returns a client rooted at baseURL, e.g. "http://localhost:8000/api/v1".
func New(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid api url %q: %w", baseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid api url %q: scheme must be http or https", baseURL)
	}

	c := &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		http:      &http.Client{Timeout: 2 * time.Minute},
		tracer:    otel.GetTracerProvider().Tracer(tracerName),
		userAgent: "voyagepal/" + versioninfo.Version,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the service root the client was built with.
func (c *Client) BaseURL() string { return c.baseURL }

// InitialSuggestions runs the first planning stage.
func (c *Client) InitialSuggestions(ctx context.Context, req trip.TripRequest) (trip.Plan, error) {
	var out trip.Plan
	err := c.doJSON(ctx, http.MethodPost, "/trip/plan/initial-suggestions", req, SchemaInitialSuggestions, &out)
	return out, err
}

// DetailedAnalysis runs the second planning stage.
func (c *Client) DetailedAnalysis(ctx context.Context, req trip.SelectionRequest) (trip.DetailedAnalysis, error) {
	var out trip.DetailedAnalysis
	err := c.doJSON(ctx, http.MethodPost, "/trip/plan/detailed-analysis", req, SchemaDetailedAnalysis, &out)
	return out, err
}

// OptimizeItinerary runs the third planning stage.
func (c *Client) OptimizeItinerary(ctx context.Context, req trip.SelectionRequest) (trip.OptimizedItinerary, error) {
	var out trip.OptimizedItinerary
	err := c.doJSON(ctx, http.MethodPost, "/trip/plan/optimize-itinerary", req, SchemaOptimizedItinerary, &out)
	return out, err
}

// SavedTrips lists the trips the service stored for the current user.
func (c *Client) SavedTrips(ctx context.Context) ([]trip.SavedTrip, error) {
	var out []trip.SavedTrip
	if err := c.doJSON(ctx, http.MethodGet, "/trip/trips", nil, SchemaSavedTrips, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Login exchanges credentials for an access token.
func (c *Client) Login(ctx context.Context, email, password string) (string, error) {
	form := url.Values{}
	form.Set("username", email)
	form.Set("password", password)

	var out struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
	}
	body := strings.NewReader(form.Encode())
	if err := c.do(ctx, http.MethodPost, "/auth/token", body, "application/x-www-form-urlencoded", SchemaToken, &out); err != nil {
		return "", err
	}
	return out.AccessToken, nil
}

// Register creates an account and returns the service's confirmation message.
func (c *Client) Register(ctx context.Context, reg trip.Registration) (string, error) {
	var out struct {
		Message string `json:"message"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/auth/register", reg, SchemaMessage, &out); err != nil {
		return "", err
	}
	return out.Message, nil
}

// Preferences fetches the user's saved planning preferences.
func (c *Client) Preferences(ctx context.Context) (trip.Preferences, error) {
	var out trip.Preferences
	err := c.doJSON(ctx, http.MethodGet, "/user/preferences", nil, SchemaPreferences, &out)
	return out, err
}

// SavePreferences updates the user's preferences, creating them when the
// service has none yet.
func (c *Client) SavePreferences(ctx context.Context, p trip.Preferences) (trip.Preferences, error) {
	var out trip.Preferences
	err := c.doJSON(ctx, http.MethodPut, "/user/preferences", p, SchemaPreferences, &out)
	if IsNotFound(err) {
		logging.Debug(ctx, "preferences missing, creating")
		out = trip.Preferences{}
		err = c.doJSON(ctx, http.MethodPost, "/user/preferences", p, SchemaPreferences, &out)
	}
	return out, err
}

// Weather fetches the raw forecast for city on date (YYYY-MM-DD).
func (c *Client) Weather(ctx context.Context, city, date string) (map[string]any, error) {
	if _, err := time.Parse(trip.DateLayout, date); err != nil {
		return nil, fmt.Errorf("date %q must be YYYY-MM-DD", date)
	}
	path := "/data/weather/" + url.PathEscape(city) + "/" + url.PathEscape(date)

	var out map[string]any
	if err := c.do(ctx, http.MethodGet, path, nil, "", "", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, in any, schema string, out any) error {
	var body io.Reader
	contentType := ""
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(data)
		contentType = "application/json"
	}
	return c.do(ctx, method, path, body, contentType, schema, out)
}

// do sends one request. A non-2xx status becomes *APIError. A 2xx body is
// validated against schema (when non-empty) and decoded into out.
func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType, schema string, out any) (err error) {
	ctx = logging.WithComponent(ctx, "tripapi")
	requestID := uuid.NewString()
	start := time.Now()

	ctx, span := c.tracer.Start(ctx, method+" "+path,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", method),
			attribute.String("url.path", path),
			attribute.String("voyagepal.request_id", requestID),
		),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set(RequestIDHeader, requestID)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.tokens != nil {
		token, tokErr := c.tokens.Token(ctx)
		if tokErr != nil {
			return fmt.Errorf("failed to read token: %w", tokErr)
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		logging.Debug(ctx, "request failed", slog.String("path", path), slog.String("error", err.Error()))
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))
	logging.LogDuration(ctx, slog.LevelDebug, "service call", start,
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", resp.StatusCode),
		slog.String("request_id", requestID),
	)

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{Status: resp.StatusCode, Detail: parseDetail(data)}
	}
	if out == nil {
		return nil
	}
	if schema != "" {
		if err := ValidateBody(schema, data); err != nil {
			return err
		}
	}
	if err := json.Unmarshal(data, out); err != nil {
		var syntaxErr *json.SyntaxError
		if errors.As(err, &syntaxErr) {
			return &SchemaError{Schema: path, Err: err}
		}
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
