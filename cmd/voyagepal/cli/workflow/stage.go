package workflow

import (
	"fmt"
	"strings"

	"github.com/voyagepal/cli/cmd/voyagepal/cli/trip"
)

//go:generate go run gen_state_diagram.go

// StageName identifies a Stage for logs, output and telemetry.
type StageName string

const (
	StageCollecting StageName = "collecting"
	StageSuggested  StageName = "suggested"
	StageAnalyzed   StageName = "analyzed"
	StageOptimized  StageName = "optimized"
)

// Stage is the workflow's current state. Each stage carries exactly the data
// produced so far, so an itinerary without an analysis cannot be expressed.
// The set of implementations is closed.
type Stage interface {
	Name() StageName
	stage()
}

// Collecting is the initial stage: no request has been submitted.
type Collecting struct{}

// Suggested holds the submitted request and the suggestions returned for it.
type Suggested struct {
	Request     trip.TripRequest
	Suggestions trip.SuggestionSet
}

// Analyzed adds the selection that was analyzed and the analysis itself.
type Analyzed struct {
	Suggested
	Selected []trip.LocationCandidate
	Analysis trip.DetailedAnalysis
}

// Optimized adds the itinerary built from the analyzed selection.
type Optimized struct {
	Analyzed
	Itinerary trip.OptimizedItinerary
}

func (Collecting) Name() StageName { return StageCollecting }
func (Suggested) Name() StageName  { return StageSuggested }
func (Analyzed) Name() StageName   { return StageAnalyzed }
func (Optimized) Name() StageName  { return StageOptimized }

func (Collecting) stage() {}
func (Suggested) stage()  {}
func (Analyzed) stage()   {}
func (Optimized) stage()  {}

// SuggestionsOf returns the suggestions carried by s, if any.
func SuggestionsOf(s Stage) (trip.SuggestionSet, bool) {
	switch st := s.(type) {
	case Suggested:
		return st.Suggestions, true
	case Analyzed:
		return st.Suggestions, true
	case Optimized:
		return st.Suggestions, true
	default:
		return trip.SuggestionSet{}, false
	}
}

// RequestOf returns the trip request carried by s, if any.
func RequestOf(s Stage) (trip.TripRequest, bool) {
	switch st := s.(type) {
	case Suggested:
		return st.Request, true
	case Analyzed:
		return st.Request, true
	case Optimized:
		return st.Request, true
	default:
		return trip.TripRequest{}, false
	}
}

// Event names the trigger of a transition.
type Event string

const (
	EventSubmit   Event = "submit"
	EventAnalyze  Event = "analyze"
	EventOptimize Event = "optimize"
	EventReset    Event = "reset"
)

type edge struct {
	from  StageName
	event Event
	to    StageName
}

// edges lists every successful transition. Failures leave the stage as is.
var edges = []edge{
	{StageCollecting, EventSubmit, StageSuggested},
	{StageSuggested, EventAnalyze, StageAnalyzed},
	{StageAnalyzed, EventOptimize, StageOptimized},
	{StageSuggested, EventReset, StageCollecting},
	{StageAnalyzed, EventReset, StageCollecting},
	{StageOptimized, EventReset, StageCollecting},
}

// MermaidDiagram renders the stage machine as a Mermaid state diagram.
func MermaidDiagram() string {
	var b strings.Builder
	b.WriteString("stateDiagram-v2\n")
	fmt.Fprintf(&b, "    [*] --> %s\n", StageCollecting)
	for _, e := range edges {
		fmt.Fprintf(&b, "    %s --> %s : %s\n", e.from, e.to, e.event)
	}
	fmt.Fprintf(&b, "    note right of %s : toggle allowed in any stage with suggestions\n", StageSuggested)
	return b.String()
}
