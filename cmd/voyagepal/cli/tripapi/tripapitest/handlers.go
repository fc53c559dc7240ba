package tripapitest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"
)

// FirstTripID is the trip id the first initial-suggestions call returns.
// Later calls return "trip-2", "trip-3" and so on.
const FirstTripID = "abc123"

// Candidate names in the Chicago fixture.
const (
	MillenniumPark = "Millennium Park"
	NavyPier       = "Navy Pier"
	ArtInstitute   = "Art Institute of Chicago"
)

// SuggestionsJSON is the initial-suggestions fixture, minus trip_id.
const SuggestionsJSON = `{
	"general_weather_advice": "Sunny with a light breeze off the lake.",
	"clothing_suggestion": "Light layers and comfortable shoes.",
	"umbrella_needed": false,
	"location_suggestions": [
		{
			"name": "Millennium Park",
			"type": "Park",
			"description": "Downtown park home to Cloud Gate.",
			"estimated_time_spent_minutes": 90,
			"admission_cost_usd": null,
			"operating_hours_summary": "6 AM - 11 PM",
			"reasons_for_suggestion": ["Outdoor & Nature", "Architecture & City Views"],
			"address": "201 E Randolph St, Chicago, IL 60602",
			"place_id": "ChIJ-millennium"
		},
		{
			"name": "Navy Pier",
			"type": "Attraction",
			"description": "Lakefront pier with rides and restaurants.",
			"estimated_time_spent_minutes": 120,
			"admission_cost_usd": 0,
			"operating_hours_summary": "10 AM - 10 PM",
			"reasons_for_suggestion": ["Food & Drink"],
			"address": "600 E Grand Ave, Chicago, IL 60611",
			"place_id": "ChIJ-navypier"
		},
		{
			"name": "Art Institute of Chicago",
			"type": "Museum",
			"description": "Encyclopedic art museum.",
			"estimated_time_spent_minutes": 180,
			"admission_cost_usd": 32,
			"operating_hours_summary": "11 AM - 5 PM",
			"reasons_for_suggestion": ["Culture & Museums"],
			"address": "111 S Michigan Ave, Chicago, IL 60603",
			"place_id": "ChIJ-artinstitute"
		}
	]
}`

// AnalysisJSON is the detailed-analysis fixture.
const AnalysisJSON = `{
	"weather_summary": "High of 78F, clear skies.",
	"clothing_suggestion": "T-shirt and a light jacket for the evening.",
	"carry_umbrella": false,
	"estimated_gas_cost_usd": null,
	"estimated_public_transit_cost_usd": 5,
	"estimated_ride_share_cost_usd": 28.5,
	"general_money_tips": "Many lakefront attractions are free.",
	"transportation_tips": "Walk between Millennium Park and Navy Pier along the Riverwalk.",
	"other_carry_items": ["Sunscreen", "Water bottle"],
	"location_info": [
		{"name": "Millennium Park", "admission_cost_usd": null},
		{"name": "Navy Pier", "admission_cost_usd": 0}
	]
}`

// ItineraryJSON is the optimize-itinerary fixture.
const ItineraryJSON = `{
	"feasibility_status": "possible",
	"feasibility_notes": "Plenty of slack before the 11 PM return.",
	"total_activity_time_minutes": 210,
	"total_travel_time_minutes": 25,
	"total_estimated_cost_usd": 12.5,
	"itinerary_steps": [
		{
			"activity": "Explore Cloud Gate and Lurie Garden",
			"start_time": "09:00",
			"end_time": "10:30",
			"location_name": "Millennium Park",
			"address": "201 E Randolph St, Chicago, IL 60602",
			"transport_mode_to_next": "walking",
			"estimated_travel_time_minutes": 25,
			"notes": null
		},
		{
			"activity": "Lunch and the Ferris wheel",
			"start_time": "10:55",
			"end_time": "12:55",
			"location_name": "Navy Pier",
			"address": "600 E Grand Ave, Chicago, IL 60611",
			"transport_mode_to_next": null,
			"estimated_travel_time_minutes": null,
			"notes": "Centennial Wheel tickets are extra."
		}
	]
}`

type userKey struct{}

func withUser(ctx context.Context, email string) context.Context {
	return context.WithValue(ctx, userKey{}, email)
}

func userFrom(ctx context.Context) string {
	email, _ := ctx.Value(userKey{}).(string)
	return email
}

func (s *Server) nextTripID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tripSeq++
	if s.tripSeq == 1 {
		return FirstTripID
	}
	return fmt.Sprintf("trip-%d", s.tripSeq)
}

func (s *Server) initialSuggestions(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req struct {
		Destination string `json:"destination"`
		TripDate    string `json:"trip_date"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		validationError(w, "body", "Invalid JSON")
		return
	}
	if req.Destination == "" {
		validationError(w, "destination", "Field required")
		return
	}
	if _, err := time.Parse("2006-01-02", req.TripDate); err != nil {
		validationError(w, "trip_date", "Input should be a valid date")
		return
	}

	var out map[string]any
	_ = json.Unmarshal([]byte(SuggestionsJSON), &out)
	out["trip_id"] = s.nextTripID()
	writeJSON(w, http.StatusOK, out)
}

type selectionBody struct {
	TripID            string            `json:"trip_id"`
	SelectedLocations []json.RawMessage `json:"selected_locations"`
}

func decodeSelection(w http.ResponseWriter, r *http.Request) (selectionBody, bool) {
	var body selectionBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		validationError(w, "body", "Invalid JSON")
		return body, false
	}
	if body.TripID == "" {
		validationError(w, "trip_id", "Field required")
		return body, false
	}
	if len(body.SelectedLocations) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]any{"detail": "No locations selected."})
		return body, false
	}
	return body, true
}

func (s *Server) detailedAnalysis(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if _, ok := decodeSelection(w, r); !ok {
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(AnalysisJSON))
}

func (s *Server) optimizeItinerary(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if _, ok := decodeSelection(w, r); !ok {
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(ItineraryJSON))
}

func (s *Server) savedTrips(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	s.mu.Lock()
	trips := append([]json.RawMessage{}, s.trips...)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, trips)
}

func (s *Server) token(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if err := r.ParseForm(); err != nil {
		validationError(w, "body", "Invalid form")
		return
	}
	email, password := r.PostForm.Get("username"), r.PostForm.Get("password")

	s.mu.Lock()
	want, ok := s.users[email]
	s.mu.Unlock()
	if !ok || want != password {
		w.Header().Set("WWW-Authenticate", "Bearer")
		writeJSON(w, http.StatusUnauthorized, map[string]any{"detail": "Incorrect username or password"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"access_token": s.IssueToken(email, time.Hour),
		"token_type":   "bearer",
	})
}

func (s *Server) register(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" || req.Password == "" {
		validationError(w, "email", "Field required")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.users[req.Email]; exists {
		writeJSON(w, http.StatusBadRequest, map[string]any{"detail": "Email already registered"})
		return
	}
	s.users[req.Email] = req.Password
	writeJSON(w, http.StatusCreated, map[string]any{"message": "User registered successfully"})
}

const defaultPreferences = `{"interests":[],"pace":"relaxed","preferred_transport":[],"budget_range":"mid-range"}`

func (s *Server) getPreferences(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	user := userFrom(r.Context())
	s.mu.Lock()
	p, ok := s.prefs[user]
	if !ok {
		p = json.RawMessage(defaultPreferences)
		s.prefs[user] = p
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) createPreferences(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	user := userFrom(r.Context())
	var body json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		validationError(w, "body", "Invalid JSON")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.prefs[user]; ok {
		writeJSON(w, http.StatusBadRequest, map[string]any{"detail": "Preferences already exist for this user. Use PUT to update."})
		return
	}
	s.prefs[user] = body
	writeJSON(w, http.StatusCreated, body)
}

func (s *Server) updatePreferences(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	user := userFrom(r.Context())
	var body json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		validationError(w, "body", "Invalid JSON")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.prefs[user]; !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"detail": "Preferences not found for this user. Use POST to create."})
		return
	}
	s.prefs[user] = body
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) weather(w http.ResponseWriter, _ *http.Request, ps httprouter.Params) {
	date := ps.ByName("date")
	if _, err := time.Parse("2006-01-02", date); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"detail": "Invalid date format. Use YYYY-MM-DD."})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"city":        ps.ByName("city"),
		"date":        date,
		"temp_max_c":  25.5,
		"temp_min_c":  17,
		"description": "clear sky",
	})
}
