package trip

// LocationCandidate is one suggested place. Name is the identity key.
type LocationCandidate struct {
	Name                 string   `json:"name" yaml:"name"`
	Type                 string   `json:"type" yaml:"type"`
	Description          string   `json:"description,omitempty" yaml:"description,omitempty"`
	EstimatedTimeMinutes int      `json:"estimated_time_spent_minutes" yaml:"estimated_time_spent_minutes"`
	AdmissionCostUSD     *float64 `json:"admission_cost_usd" yaml:"admission_cost_usd"`
	HoursSummary         string   `json:"operating_hours_summary,omitempty" yaml:"operating_hours_summary,omitempty"`
	Reasons              []string `json:"reasons_for_suggestion,omitempty" yaml:"reasons_for_suggestion,omitempty"`
	Address              *string  `json:"address,omitempty" yaml:"address,omitempty"`
	PlaceID              *string  `json:"place_id,omitempty" yaml:"place_id,omitempty"`
}

// IsFree reports whether the service priced admission at nothing (null).
func (c LocationCandidate) IsFree() bool {
	return c.AdmissionCostUSD == nil || *c.AdmissionCostUSD == 0
}

// SuggestionSet is the first-stage result.
type SuggestionSet struct {
	WeatherAdvice      string              `json:"general_weather_advice" yaml:"general_weather_advice"`
	ClothingSuggestion string              `json:"clothing_suggestion" yaml:"clothing_suggestion"`
	UmbrellaNeeded     bool                `json:"umbrella_needed" yaml:"umbrella_needed"`
	Candidates         []LocationCandidate `json:"location_suggestions" yaml:"location_suggestions"`
}

// Candidate returns the candidate with the given name.
func (s SuggestionSet) Candidate(name string) (LocationCandidate, bool) {
	for _, c := range s.Candidates {
		if c.Name == name {
			return c, true
		}
	}
	return LocationCandidate{}, false
}

// DetailedAnalysis is the second-stage result. All fields are informational.
type DetailedAnalysis struct {
	WeatherSummary                string           `json:"weather_summary" yaml:"weather_summary"`
	ClothingSuggestion            string           `json:"clothing_suggestion" yaml:"clothing_suggestion"`
	CarryUmbrella                 bool             `json:"carry_umbrella" yaml:"carry_umbrella"`
	EstimatedGasCostUSD           *float64         `json:"estimated_gas_cost_usd" yaml:"estimated_gas_cost_usd"`
	EstimatedPublicTransitCostUSD *float64         `json:"estimated_public_transit_cost_usd" yaml:"estimated_public_transit_cost_usd"`
	EstimatedRideShareCostUSD     *float64         `json:"estimated_ride_share_cost_usd" yaml:"estimated_ride_share_cost_usd"`
	GeneralMoneyTips              string           `json:"general_money_tips" yaml:"general_money_tips"`
	TransportationTips            string           `json:"transportation_tips" yaml:"transportation_tips"`
	OtherCarryItems               []string         `json:"other_carry_items" yaml:"other_carry_items"`
	LocationInfo                  []map[string]any `json:"location_info" yaml:"location_info"`
}

// Step is one entry of an optimized itinerary.
type Step struct {
	Activity                   string  `json:"activity" yaml:"activity"`
	StartTime                  string  `json:"start_time" yaml:"start_time"`
	EndTime                    string  `json:"end_time" yaml:"end_time"`
	LocationName               string  `json:"location_name" yaml:"location_name"`
	Address                    *string `json:"address" yaml:"address"`
	TransportModeToNext        *string `json:"transport_mode_to_next" yaml:"transport_mode_to_next"`
	EstimatedTravelTimeMinutes *int    `json:"estimated_travel_time_minutes" yaml:"estimated_travel_time_minutes"`
	Notes                      *string `json:"notes" yaml:"notes"`
}

// OptimizedItinerary is the third-stage result.
type OptimizedItinerary struct {
	FeasibilityStatus        Feasibility `json:"feasibility_status" yaml:"feasibility_status"`
	FeasibilityNotes         *string     `json:"feasibility_notes" yaml:"feasibility_notes"`
	TotalActivityTimeMinutes int         `json:"total_activity_time_minutes" yaml:"total_activity_time_minutes"`
	TotalTravelTimeMinutes   int         `json:"total_travel_time_minutes" yaml:"total_travel_time_minutes"`
	TotalEstimatedCostUSD    float64     `json:"total_estimated_cost_usd" yaml:"total_estimated_cost_usd"`
	Steps                    []Step      `json:"itinerary_steps" yaml:"itinerary_steps"`
}

// SavedTrip is a trip the service stored for the user. Read-only here.
type SavedTrip struct {
	ID                string              `json:"id" yaml:"id"`
	Destination       string              `json:"destination" yaml:"destination"`
	TripDate          string              `json:"trip_date" yaml:"trip_date"`
	ReturnTime        string              `json:"return_time" yaml:"return_time"`
	Preferences       map[string]any      `json:"preferences,omitempty" yaml:"preferences,omitempty"`
	SelectedLocations []LocationCandidate `json:"selected_locations,omitempty" yaml:"selected_locations,omitempty"`
	Itinerary         []map[string]any    `json:"itinerary,omitempty" yaml:"itinerary,omitempty"`
	EstimatedCosts    map[string]any      `json:"estimated_costs,omitempty" yaml:"estimated_costs,omitempty"`
}

// TotalCost returns the overall estimated cost recorded on the saved trip.
func (t SavedTrip) TotalCost() (float64, bool) {
	v, ok := t.EstimatedCosts["overall_total_estimated_cost_usd"].(float64)
	return v, ok && v > 0
}

// Plan is the first-stage response: the suggestions plus the trip id the
// service assigned to this planning session.
type Plan struct {
	TripID        string `json:"trip_id" yaml:"trip_id"`
	SuggestionSet `yaml:",inline"`
}

// SelectionRequest is the body of the analysis and optimization stages.
type SelectionRequest struct {
	TripID            string              `json:"trip_id" yaml:"trip_id"`
	Destination       string              `json:"destination" yaml:"destination"`
	TripDate          string              `json:"trip_date" yaml:"trip_date"`
	ReturnTime        string              `json:"return_time" yaml:"return_time"`
	UserPreferences   Preferences         `json:"user_preferences" yaml:"user_preferences"`
	SelectedLocations []LocationCandidate `json:"selected_locations" yaml:"selected_locations"`
}

// NewSelectionRequest builds the later-stage body from the submitted request.
// The selected slice is copied.
func NewSelectionRequest(tripID string, req TripRequest, selected []LocationCandidate) SelectionRequest {
	return SelectionRequest{
		TripID:            tripID,
		Destination:       req.Destination,
		TripDate:          req.TripDate,
		ReturnTime:        req.ReturnTime,
		UserPreferences:   req.Preferences(),
		SelectedLocations: append([]LocationCandidate{}, selected...),
	}
}

// Registration is the body of an account registration.
type Registration struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name,omitempty"`
}
