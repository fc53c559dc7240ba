// Package tripapitest runs an in-process fake of the trip planning service
// for tests. It counts calls per route, remembers the last request on each
// route, and lets a test override or block any handler.
package tripapitest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/julienschmidt/httprouter"
)

// Route paths, relative to BaseURL.
const (
	PathInitialSuggestions = "/trip/plan/initial-suggestions"
	PathDetailedAnalysis   = "/trip/plan/detailed-analysis"
	PathOptimizeItinerary  = "/trip/plan/optimize-itinerary"
	PathTrips              = "/trip/trips"
	PathToken              = "/auth/token"
	PathRegister           = "/auth/register"
	PathPreferences        = "/user/preferences"
	PathWeather            = "/data/weather/:city/:date"
)

// Default credentials accepted by the fake.
const (
	Email    = "traveler@example.com"
	Password = "correct-horse"
)

const prefix = "/api/v1"

// Server is a running fake service.
type Server struct {
	srv *httptest.Server

	// Secret signs the tokens issued by /auth/token.
	Secret []byte

	mu        sync.Mutex
	calls     map[string]int
	bodies    map[string][]byte
	headers   map[string]http.Header
	overrides map[string]http.HandlerFunc
	gates     map[string]*gate
	users     map[string]string
	prefs     map[string]json.RawMessage
	trips     []json.RawMessage
	tripSeq   int
}

type gate struct {
	entered     chan struct{}
	release     chan struct{}
	once        sync.Once
	releaseOnce sync.Once
}

func (g *gate) open() { g.releaseOnce.Do(func() { close(g.release) }) }

// New starts a fake service and closes it when the test ends.
func New(tb testing.TB) *Server {
	tb.Helper()

	s := &Server{
		Secret:    []byte("tripapitest-secret"),
		calls:     make(map[string]int),
		bodies:    make(map[string][]byte),
		headers:   make(map[string]http.Header),
		overrides: make(map[string]http.HandlerFunc),
		gates:     make(map[string]*gate),
		users:     map[string]string{Email: Password},
		prefs:     make(map[string]json.RawMessage),
	}

	r := httprouter.New()
	s.route(r, http.MethodPost, PathInitialSuggestions, s.authed(s.initialSuggestions))
	s.route(r, http.MethodPost, PathDetailedAnalysis, s.authed(s.detailedAnalysis))
	s.route(r, http.MethodPost, PathOptimizeItinerary, s.authed(s.optimizeItinerary))
	s.route(r, http.MethodGet, PathTrips, s.authed(s.savedTrips))
	s.route(r, http.MethodPost, PathToken, s.token)
	s.route(r, http.MethodPost, PathRegister, s.register)
	s.route(r, http.MethodGet, PathPreferences, s.authed(s.getPreferences))
	s.route(r, http.MethodPost, PathPreferences, s.authed(s.createPreferences))
	s.route(r, http.MethodPut, PathPreferences, s.authed(s.updatePreferences))
	s.route(r, http.MethodGet, PathWeather, s.authed(s.weather))

	s.srv = httptest.NewServer(r)
	tb.Cleanup(func() {
		s.releaseAll()
		s.srv.Close()
	})
	return s
}

// BaseURL is the API root to hand to tripapi.New.
func (s *Server) BaseURL() string { return s.srv.URL + prefix }

func key(method, path string) string { return method + " " + path }

func (s *Server) route(r *httprouter.Router, method, path string, h httprouter.Handle) {
	k := key(method, path)
	r.Handle(method, prefix+path, func(w http.ResponseWriter, req *http.Request, ps httprouter.Params) {
		body, _ := io.ReadAll(req.Body)
		req.Body = io.NopCloser(strings.NewReader(string(body)))

		s.mu.Lock()
		s.calls[k]++
		s.bodies[k] = body
		s.headers[k] = req.Header.Clone()
		override := s.overrides[k]
		g := s.gates[k]
		s.mu.Unlock()

		if g != nil {
			g.once.Do(func() { close(g.entered) })
			select {
			case <-g.release:
			case <-req.Context().Done():
				return
			}
		}
		if override != nil {
			override(w, req)
			return
		}
		h(w, req, ps)
	})
}

// Calls returns how many requests reached method+path.
func (s *Server) Calls(method, path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[key(method, path)]
}

// TotalCalls returns the number of requests across all routes.
func (s *Server) TotalCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		n += c
	}
	return n
}

// LastBody returns the body of the most recent request to method+path.
func (s *Server) LastBody(method, path string) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bodies[key(method, path)]
}

// LastHeader returns the headers of the most recent request to method+path.
func (s *Server) LastHeader(method, path string) http.Header {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.headers[key(method, path)]
}

// Handle replaces the handler for method+path. Calls are still counted.
func (s *Server) Handle(method, path string, h http.HandlerFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.overrides[key(method, path)] = h
}

// Fail makes method+path answer with status and a FastAPI style detail.
func (s *Server) Fail(method, path string, status int, detail string) {
	s.Handle(method, path, func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, status, map[string]any{"detail": detail})
	})
}

// Respond makes method+path answer 200 with a raw JSON body.
func (s *Server) Respond(method, path, body string) {
	s.Handle(method, path, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, body)
	})
}

// Block holds requests to method+path until release is called. entered is
// closed when the first such request arrives.
func (s *Server) Block(method, path string) (entered <-chan struct{}, release func()) {
	g := &gate{entered: make(chan struct{}), release: make(chan struct{})}
	s.mu.Lock()
	s.gates[key(method, path)] = g
	s.mu.Unlock()

	return g.entered, g.open
}

func (s *Server) releaseAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, g := range s.gates {
		g.open()
		delete(s.gates, k)
	}
}

// AddSavedTrip appends a raw saved trip record to GET /trip/trips.
func (s *Server) AddSavedTrip(raw string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trips = append(s.trips, json.RawMessage(raw))
}

// IssueToken signs a token for email the way /auth/token does.
func (s *Server) IssueToken(email string, ttl time.Duration) string {
	claims := jwt.RegisteredClaims{
		Subject:   email,
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.Secret)
	if err != nil {
		panic(fmt.Sprintf("tripapitest: sign token: %v", err))
	}
	return signed
}

// authed rejects requests without a bearer token this server signed.
func (s *Server) authed(h httprouter.Handle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || raw == "" {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"detail": "Not authenticated"})
			return
		}
		claims := &jwt.RegisteredClaims{}
		_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) { return s.Secret, nil },
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"detail": "Could not validate credentials"})
			return
		}
		h(w, r.WithContext(withUser(r.Context(), claims.Subject)), ps)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func validationError(w http.ResponseWriter, field, msg string) {
	writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
		"detail": []map[string]any{{"loc": []string{"body", field}, "msg": msg, "type": "value_error"}},
	})
}
