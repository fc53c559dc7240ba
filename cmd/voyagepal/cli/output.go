package cli

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/voyagepal/cli/cmd/voyagepal/cli/jsonutil"
	"github.com/voyagepal/cli/cmd/voyagepal/cli/trip"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	labelStyle = lipgloss.NewStyle().Bold(true)
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("242"))
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
)

// configureColor drops styling unless w is a terminal and NO_COLOR is unset.
func configureColor(w io.Writer) {
	f, ok := w.(*os.File)
	if ok && term.IsTerminal(int(f.Fd())) && os.Getenv("NO_COLOR") == "" {
		return
	}
	lipgloss.SetColorProfile(termenv.Ascii)
}

// printer writes a result either as styled text or as a structured document.
type printer struct {
	w      io.Writer
	format outputFormat
}

// emit writes v as JSON or YAML, or calls text for the text format.
func (p printer) emit(v any, text func(b *strings.Builder)) error {
	var out []byte
	var err error
	switch p.format {
	case outputJSON:
		out, err = jsonutil.MarshalIndentWithNewline(v, "", "  ")
	case outputYAML:
		out, err = yaml.Marshal(v)
	default:
		var b strings.Builder
		text(&b)
		out = []byte(b.String())
	}
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	_, err = p.w.Write(out)
	return err //nolint:wrapcheck // writer errors pass through
}

func heading(b *strings.Builder, s string) {
	b.WriteString(titleStyle.Render(s))
	b.WriteString("\n")
}

func field(b *strings.Builder, label, value string) {
	if value == "" {
		return
	}
	fmt.Fprintf(b, "%s %s\n", labelStyle.Render(label+":"), value)
}

func money(v *float64) string {
	if v == nil {
		return "n/a"
	}
	return fmt.Sprintf("$%.2f", *v)
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}

func joinEnums[T ~string](vs []T) string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = string(v)
	}
	return strings.Join(parts, ", ")
}

func renderSuggestions(b *strings.Builder, s trip.SuggestionSet, selected func(string) bool) {
	heading(b, "Suggestions")
	field(b, "Weather", s.WeatherAdvice)
	field(b, "Wear", s.ClothingSuggestion)
	field(b, "Umbrella", yesNo(s.UmbrellaNeeded))
	b.WriteString("\n")

	for i, c := range s.Candidates {
		mark := "[ ]"
		if selected != nil && selected(c.Name) {
			mark = okStyle.Render("[x]")
		}
		cost := "free"
		if !c.IsFree() {
			cost = money(c.AdmissionCostUSD)
		}
		fmt.Fprintf(b, "%s %d. %s %s\n", mark, i+1, labelStyle.Render(c.Name),
			dimStyle.Render(fmt.Sprintf("(%s, %d min, %s)", c.Type, c.EstimatedTimeMinutes, cost)))
		if c.Description != "" {
			fmt.Fprintf(b, "      %s\n", c.Description)
		}
		if c.HoursSummary != "" {
			fmt.Fprintf(b, "      %s\n", dimStyle.Render("Hours: "+c.HoursSummary))
		}
		for _, r := range c.Reasons {
			fmt.Fprintf(b, "      - %s\n", r)
		}
	}
}

func renderAnalysis(b *strings.Builder, a trip.DetailedAnalysis) {
	heading(b, "Analysis")
	field(b, "Weather", a.WeatherSummary)
	field(b, "Wear", a.ClothingSuggestion)
	field(b, "Umbrella", yesNo(a.CarryUmbrella))
	if len(a.OtherCarryItems) > 0 {
		field(b, "Bring", strings.Join(a.OtherCarryItems, ", "))
	}
	field(b, "Gas", money(a.EstimatedGasCostUSD))
	field(b, "Public transit", money(a.EstimatedPublicTransitCostUSD))
	field(b, "Ride share", money(a.EstimatedRideShareCostUSD))
	field(b, "Money tips", a.GeneralMoneyTips)
	field(b, "Getting around", a.TransportationTips)
}

func feasibilityLabel(f trip.Feasibility) string {
	switch f {
	case trip.FeasibilityPossible:
		return okStyle.Render("feasible")
	case trip.FeasibilityTight:
		return warnStyle.Render("tight but possible")
	case trip.FeasibilityNotPossible:
		return errStyle.Render("not possible as planned")
	default:
		return string(f)
	}
}

func renderItinerary(b *strings.Builder, it trip.OptimizedItinerary) {
	heading(b, "Itinerary")
	field(b, "Feasibility", feasibilityLabel(it.FeasibilityStatus))
	if it.FeasibilityNotes != nil {
		field(b, "Notes", *it.FeasibilityNotes)
	}
	fmt.Fprintf(b, "%s %d min of activities, %d min of travel, about $%.2f\n\n",
		labelStyle.Render("Totals:"), it.TotalActivityTimeMinutes, it.TotalTravelTimeMinutes, it.TotalEstimatedCostUSD)

	for _, s := range it.Steps {
		fmt.Fprintf(b, "%s-%s  %s  %s\n", s.StartTime, s.EndTime, labelStyle.Render(s.LocationName), s.Activity)
		if s.Address != nil && *s.Address != "" {
			fmt.Fprintf(b, "             %s\n", dimStyle.Render(*s.Address))
		}
		if s.Notes != nil && *s.Notes != "" {
			fmt.Fprintf(b, "             %s\n", *s.Notes)
		}
		if s.TransportModeToNext != nil && *s.TransportModeToNext != "" {
			leg := "then " + strings.ReplaceAll(*s.TransportModeToNext, "_", " ")
			if s.EstimatedTravelTimeMinutes != nil {
				leg += fmt.Sprintf(", %d min", *s.EstimatedTravelTimeMinutes)
			}
			fmt.Fprintf(b, "             %s\n", dimStyle.Render(leg))
		}
	}
}

func renderTrips(b *strings.Builder, trips []trip.SavedTrip) {
	if len(trips) == 0 {
		b.WriteString("No saved trips yet.\n")
		return
	}
	heading(b, fmt.Sprintf("Saved trips (%d)", len(trips)))
	for _, t := range trips {
		line := fmt.Sprintf("%s  %s  %s", t.TripDate, labelStyle.Render(t.Destination), dimStyle.Render(t.ID))
		if total, ok := t.TotalCost(); ok {
			line += fmt.Sprintf("  $%.2f", total)
		}
		b.WriteString(line + "\n")
		if len(t.SelectedLocations) > 0 {
			names := make([]string, len(t.SelectedLocations))
			for i, c := range t.SelectedLocations {
				names[i] = c.Name
			}
			fmt.Fprintf(b, "    %s\n", strings.Join(names, ", "))
		}
	}
}

func renderPreferences(b *strings.Builder, p trip.Preferences) {
	heading(b, "Preferences")
	field(b, "Interests", orNone(joinEnums(p.Interests)))
	field(b, "Pace", orNone(string(p.Pace)))
	field(b, "Transport", orNone(joinEnums(p.PreferredTransport)))
	field(b, "Budget", orNone(string(p.BudgetRange)))
}

func renderWeather(b *strings.Builder, city, date string, w map[string]any) {
	heading(b, fmt.Sprintf("Weather for %s on %s", city, date))
	keys := make([]string, 0, len(w))
	for k := range w {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		field(b, strings.ReplaceAll(k, "_", " "), fmt.Sprint(w[k]))
	}
}

func orNone(s string) string {
	if s == "" {
		return dimStyle.Render("none")
	}
	return s
}
