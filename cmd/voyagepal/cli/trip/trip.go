// Package trip defines the domain records exchanged with the trip planning
// service. JSON tags follow the service's wire names.
package trip

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"
)

// DateLayout is the wire format of TripRequest.TripDate.
const DateLayout = "2006-01-02"

// Pace is how packed the day should be.
type Pace string

const (
	PaceRelaxed   Pace = "relaxed"
	PaceFastPaced Pace = "fast-paced"
	DefaultPace        = PaceRelaxed
)

// Paces lists valid Pace values in display order.
var Paces = []Pace{PaceRelaxed, PaceFastPaced}

// Transport is a way of getting between locations.
type Transport string

const (
	TransportDriving       Transport = "driving"
	TransportPublicTransit Transport = "public_transit"
	TransportWalking       Transport = "walking"
	TransportRideShare     Transport = "ride_share"
)

// Transports lists valid Transport values in display order.
var Transports = []Transport{TransportDriving, TransportPublicTransit, TransportWalking, TransportRideShare}

// Budget is the spending bracket for the day.
type Budget string

const (
	BudgetLow     Budget = "budget"
	BudgetMid     Budget = "mid-range"
	BudgetLuxury  Budget = "luxury"
	DefaultBudget        = BudgetMid
)

// Budgets lists valid Budget values in display order.
var Budgets = []Budget{BudgetLow, BudgetMid, BudgetLuxury}

// Interest is a theme the suggestions should favour.
type Interest string

const (
	InterestCulture      Interest = "Culture & Museums"
	InterestOutdoor      Interest = "Outdoor & Nature"
	InterestFood         Interest = "Food & Drink"
	InterestArchitecture Interest = "Architecture & City Views"
	InterestFamily       Interest = "Family-Friendly"
	InterestShopping     Interest = "Shopping & Entertainment"
)

// Interests lists valid Interest values in display order.
var Interests = []Interest{
	InterestCulture, InterestOutdoor, InterestFood,
	InterestArchitecture, InterestFamily, InterestShopping,
}

// Feasibility is the service's verdict on an itinerary.
type Feasibility string

const (
	FeasibilityPossible    Feasibility = "possible"
	FeasibilityTight       Feasibility = "tight_but_possible"
	FeasibilityNotPossible Feasibility = "not_possible"
)

// ParsePace validates s as a Pace.
func ParsePace(s string) (Pace, error) { return parseEnum(s, Paces, "pace") }

// ParseTransport validates s as a Transport.
func ParseTransport(s string) (Transport, error) { return parseEnum(s, Transports, "transport") }

// ParseBudget validates s as a Budget.
func ParseBudget(s string) (Budget, error) { return parseEnum(s, Budgets, "budget range") }

// ParseInterest validates s as an Interest. Matching ignores case.
func ParseInterest(s string) (Interest, error) {
	for _, i := range Interests {
		if strings.EqualFold(string(i), strings.TrimSpace(s)) {
			return i, nil
		}
	}
	return "", fmt.Errorf("unknown interest %q (valid: %s)", s, joinValues(Interests))
}

func parseEnum[T ~string](s string, valid []T, what string) (T, error) {
	v := T(strings.TrimSpace(s))
	if slices.Contains(valid, v) {
		return v, nil
	}
	return "", fmt.Errorf("unknown %s %q (valid: %s)", what, s, joinValues(valid))
}

func joinValues[T ~string](vs []T) string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = string(v)
	}
	return strings.Join(parts, ", ")
}

// TripRequest is what the user submits in the first stage.
type TripRequest struct {
	Destination        string      `json:"destination" yaml:"destination"`
	TripDate           string      `json:"trip_date" yaml:"trip_date"`
	ReturnTime         string      `json:"return_time" yaml:"return_time"`
	Interests          []Interest  `json:"interests" yaml:"interests"`
	Pace               Pace        `json:"pace" yaml:"pace"`
	PreferredTransport []Transport `json:"preferred_transport" yaml:"preferred_transport"`
	BudgetRange        Budget      `json:"budget_range" yaml:"budget_range"`
}

// ErrInvalidRequest wraps every TripRequest validation failure.
var ErrInvalidRequest = errors.New("invalid trip request")

// Validate checks required fields and enum membership.
func (r TripRequest) Validate() error {
	var problems []string
	if strings.TrimSpace(r.Destination) == "" {
		problems = append(problems, "destination is required")
	}
	if _, err := time.Parse(DateLayout, r.TripDate); err != nil {
		problems = append(problems, fmt.Sprintf("trip date %q must be YYYY-MM-DD", r.TripDate))
	}
	if strings.TrimSpace(r.ReturnTime) == "" {
		problems = append(problems, "return time is required")
	}
	if !slices.Contains(Paces, r.Pace) {
		problems = append(problems, fmt.Sprintf("unknown pace %q", r.Pace))
	}
	if !slices.Contains(Budgets, r.BudgetRange) {
		problems = append(problems, fmt.Sprintf("unknown budget range %q", r.BudgetRange))
	}
	for _, i := range r.Interests {
		if !slices.Contains(Interests, i) {
			problems = append(problems, fmt.Sprintf("unknown interest %q", i))
		}
	}
	for _, t := range r.PreferredTransport {
		if !slices.Contains(Transports, t) {
			problems = append(problems, fmt.Sprintf("unknown transport %q", t))
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidRequest, strings.Join(problems, "; "))
	}
	return nil
}

// Normalized returns a deep copy with whitespace trimmed and duplicate
// interests/transports removed (first occurrence wins). The copy shares no
// slices with r, so later edits to r cannot reach a running workflow.
func (r TripRequest) Normalized() TripRequest {
	out := r
	out.Destination = strings.TrimSpace(r.Destination)
	out.TripDate = strings.TrimSpace(r.TripDate)
	out.ReturnTime = strings.TrimSpace(r.ReturnTime)
	out.Interests = dedupe(r.Interests)
	out.PreferredTransport = dedupe(r.PreferredTransport)
	return out
}

func dedupe[T comparable](in []T) []T {
	out := make([]T, 0, len(in))
	for _, v := range in {
		if !slices.Contains(out, v) {
			out = append(out, v)
		}
	}
	return out
}

// Preferences is the preference snapshot sent with later stages and stored
// per user by the service.
type Preferences struct {
	Interests          []Interest  `json:"interests" yaml:"interests"`
	Pace               Pace        `json:"pace" yaml:"pace"`
	PreferredTransport []Transport `json:"preferred_transport" yaml:"preferred_transport"`
	BudgetRange        Budget      `json:"budget_range" yaml:"budget_range"`
}

// Preferences extracts the preference snapshot from the request. Slices are
// never nil so they encode as [] rather than null.
func (r TripRequest) Preferences() Preferences {
	return Preferences{
		Interests:          append([]Interest{}, r.Interests...),
		Pace:               r.Pace,
		PreferredTransport: append([]Transport{}, r.PreferredTransport...),
		BudgetRange:        r.BudgetRange,
	}
}

// ApplyDefaults fills empty request fields from saved preferences.
func (r TripRequest) ApplyDefaults(p Preferences) TripRequest {
	if len(r.Interests) == 0 {
		r.Interests = slices.Clone(p.Interests)
	}
	if r.Pace == "" {
		r.Pace = p.Pace
	}
	if len(r.PreferredTransport) == 0 {
		r.PreferredTransport = slices.Clone(p.PreferredTransport)
	}
	if r.BudgetRange == "" {
		r.BudgetRange = p.BudgetRange
	}
	return r
}
