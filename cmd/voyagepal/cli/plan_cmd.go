package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/voyagepal/cli/cmd/voyagepal/cli/export"
	"github.com/voyagepal/cli/cmd/voyagepal/cli/logging"
	"github.com/voyagepal/cli/cmd/voyagepal/cli/trip"
	"github.com/voyagepal/cli/cmd/voyagepal/cli/workflow"
)

// planResult is the structured form of a planning run.
type planResult struct {
	TripID      string                   `json:"trip_id,omitempty" yaml:"trip_id,omitempty"`
	Stage       workflow.StageName       `json:"stage" yaml:"stage"`
	Request     *trip.TripRequest        `json:"request,omitempty" yaml:"request,omitempty"`
	Suggestions *trip.SuggestionSet      `json:"suggestions,omitempty" yaml:"suggestions,omitempty"`
	Selected    []string                 `json:"selected,omitempty" yaml:"selected,omitempty"`
	Analysis    *trip.DetailedAnalysis   `json:"analysis,omitempty" yaml:"analysis,omitempty"`
	Itinerary   *trip.OptimizedItinerary `json:"itinerary,omitempty" yaml:"itinerary,omitempty"`
	MapsURL     string                   `json:"maps_url,omitempty" yaml:"maps_url,omitempty"`
	PDF         string                   `json:"pdf,omitempty" yaml:"pdf,omitempty"`
}

func resultOf(c *workflow.Controller) planResult {
	res := planResult{TripID: c.TripID()}
	st := c.Stage()
	res.Stage = st.Name()
	if req, ok := workflow.RequestOf(st); ok {
		res.Request = &req
	}
	if s, ok := workflow.SuggestionsOf(st); ok {
		res.Suggestions = &s
	}
	for _, sel := range c.Selection() {
		res.Selected = append(res.Selected, sel.Name)
	}

	switch st := st.(type) {
	case workflow.Analyzed:
		res.Selected = candidateNames(st.Selected)
		res.Analysis = &st.Analysis
	case workflow.Optimized:
		res.Selected = candidateNames(st.Selected)
		res.Analysis = &st.Analysis
		res.Itinerary = &st.Itinerary
		res.MapsURL = export.MapsURL(st.Request.Destination, st.Itinerary.Steps)
	}
	return res
}

func candidateNames(cs []trip.LocationCandidate) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.Name
	}
	return out
}

func renderPlan(b *strings.Builder, res planResult) {
	if res.TripID != "" {
		field(b, "Trip", res.TripID)
	}
	if res.Request != nil {
		field(b, "Destination", fmt.Sprintf("%s on %s, back by %s", res.Request.Destination, res.Request.TripDate, res.Request.ReturnTime))
	}
	if res.Suggestions != nil {
		b.WriteString("\n")
		selected := make(map[string]bool, len(res.Selected))
		for _, n := range res.Selected {
			selected[n] = true
		}
		renderSuggestions(b, *res.Suggestions, func(name string) bool { return selected[name] })
	}
	if res.Analysis != nil {
		b.WriteString("\n")
		renderAnalysis(b, *res.Analysis)
	}
	if res.Itinerary != nil {
		b.WriteString("\n")
		renderItinerary(b, *res.Itinerary)
	}
	if res.MapsURL != "" {
		b.WriteString("\n")
		field(b, "Directions", res.MapsURL)
	}
	if res.PDF != "" {
		field(b, "Saved", res.PDF)
	}
	if res.Stage == workflow.StageSuggested {
		b.WriteString("\n" + dimStyle.Render("Pick places with --select and add --analyze or --optimize to continue.") + "\n")
	}
}

type planOptions struct {
	req       trip.TripRequest
	selection []string
	selectAll bool
	analyze   bool
	optimize  bool
	pdf       string
}

func newPlanCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Plan a day trip step by step",
		Long: `Plan a day trip interactively: describe the trip, pick from the suggested
places, review the analysis, then build an optimized itinerary.

Use 'voyagepal plan run' to do the same from flags without prompts.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !canPrompt() {
				return errNeedsTerminal
			}
			cc := newCommandContext(cmd.Context(), "plan")
			return cc.run(func(ctx context.Context) error {
				return a.runWizard(ctx, cmd)
			})
		},
	}
	cmd.AddCommand(newPlanRunCmd(a))
	cmd.AddCommand(newPlanStatusCmd(a))
	cmd.AddCommand(newPlanResetCmd(a))
	return cmd
}

func newPlanRunCmd(a *app) *cobra.Command {
	var opts planOptions
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Plan a day trip from flags",
		Example: `  voyagepal plan run --destination Chicago --date 2024-06-01 --return-time "11 PM" \
    --interest "Culture & Museums" --transport walking --select 1 --select "Navy Pier" --optimize`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc := newCommandContext(cmd.Context(), "plan run")
			return cc.run(func(ctx context.Context) error {
				return a.runPlan(ctx, cmd, opts)
			}, slog.Bool("analyze", opts.analyze), slog.Bool("optimize", opts.optimize))
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.req.Destination, "destination", "", "city or area to visit")
	f.StringVar(&opts.req.TripDate, "date", "", "trip date, YYYY-MM-DD")
	f.StringVar(&opts.req.ReturnTime, "return-time", "", `when you need to be back, e.g. "11 PM"`)
	f.Var(newInterestFlag(&opts.req.Interests), "interest", "interest to favour (repeatable)")
	f.Var(newEnumValue(&opts.req.Pace, trip.ParsePace, "pace"), "pace", "relaxed or fast-paced")
	f.Var(newEnumListValue(&opts.req.PreferredTransport, trip.ParseTransport, "transport"), "transport", "driving, public_transit, walking or ride_share (repeatable)")
	f.Var(newEnumValue(&opts.req.BudgetRange, trip.ParseBudget, "budget"), "budget", "budget, mid-range or luxury")
	f.StringArrayVar(&opts.selection, "select", nil, "suggestion to keep, by name or 1-based number (repeatable)")
	f.BoolVar(&opts.selectAll, "select-all", false, "keep every suggestion")
	f.BoolVar(&opts.analyze, "analyze", false, "request the detailed analysis of the selection")
	f.BoolVar(&opts.optimize, "optimize", false, "build an optimized itinerary (implies --analyze)")
	f.StringVar(&opts.pdf, "pdf", "", "write the itinerary to this PDF file (implies --optimize)")
	_ = cmd.MarkFlagRequired("destination")
	_ = cmd.MarkFlagRequired("date")
	_ = cmd.MarkFlagRequired("return-time")
	cmd.MarkFlagsMutuallyExclusive("select", "select-all")
	return cmd
}

// withDefaults fills unset preference fields from the saved preferences.
// A failed lookup is logged and the built-in defaults are used.
func (a *app) withDefaults(ctx context.Context, req trip.TripRequest) trip.TripRequest {
	if len(req.Interests) == 0 || req.Pace == "" || len(req.PreferredTransport) == 0 || req.BudgetRange == "" {
		prefs, err := a.client.Preferences(ctx)
		if err != nil {
			logging.Debug(ctx, "saved preferences unavailable", slog.String("error", err.Error()))
		} else {
			req = req.ApplyDefaults(prefs)
		}
	}
	if req.Pace == "" {
		req.Pace = trip.DefaultPace
	}
	if req.BudgetRange == "" {
		req.BudgetRange = trip.DefaultBudget
	}
	return req
}

func (a *app) runPlan(ctx context.Context, cmd *cobra.Command, opts planOptions) error {
	if opts.pdf != "" {
		opts.optimize = true
	}
	if opts.optimize {
		opts.analyze = true
	}
	if (len(opts.selection) > 0 || opts.selectAll) && !opts.analyze {
		opts.analyze = true
	}

	c, err := a.controller(ctx)
	if err != nil {
		return err
	}
	if err := c.Submit(ctx, a.withDefaults(ctx, opts.req)); err != nil {
		return err //nolint:wrapcheck // workflow errors carry the user-facing message
	}

	if opts.analyze {
		suggestions, _ := workflow.SuggestionsOf(c.Stage())
		names := resolveSelection(suggestions.Candidates, opts.selection, opts.selectAll)
		for _, name := range names {
			if _, err := c.ToggleByName(name); err != nil {
				return fmt.Errorf("%q: %w", name, err)
			}
		}
		if err := c.RequestAnalysis(ctx); err != nil {
			return err //nolint:wrapcheck // workflow errors carry the user-facing message
		}
	}
	if opts.optimize {
		if err := c.RequestOptimization(ctx); err != nil {
			return err //nolint:wrapcheck // workflow errors carry the user-facing message
		}
	}

	res := resultOf(c)
	if opts.pdf != "" {
		path, err := writeItineraryPDF(c, opts.pdf)
		if err != nil {
			return err
		}
		res.PDF = path
	}
	return printer{w: cmd.OutOrStdout(), format: a.output}.emit(res, func(b *strings.Builder) { renderPlan(b, res) })
}

// resolveSelection maps 1-based numbers and case-insensitive names to
// candidate names. Anything else is passed through unchanged so the
// workflow can reject it.
func resolveSelection(candidates []trip.LocationCandidate, specs []string, all bool) []string {
	if all {
		return candidateNames(candidates)
	}
	out := make([]string, 0, len(specs))
	for _, spec := range specs {
		spec = strings.TrimSpace(spec)
		if n, err := strconv.Atoi(spec); err == nil && n >= 1 && n <= len(candidates) {
			out = append(out, candidates[n-1].Name)
			continue
		}
		name := spec
		for _, c := range candidates {
			if strings.EqualFold(c.Name, spec) {
				name = c.Name
				break
			}
		}
		out = append(out, name)
	}
	return out
}

func writeItineraryPDF(c *workflow.Controller, path string) (string, error) {
	optimized, ok := c.Stage().(workflow.Optimized)
	if !ok {
		return "", errors.New("no itinerary to export")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("invalid PDF path: %w", err)
	}
	f, err := os.Create(abs) //nolint:gosec // path is chosen by the user
	if err != nil {
		return "", fmt.Errorf("failed to create PDF: %w", err)
	}
	werr := export.WritePDF(f, export.Document{
		TripID:      c.TripID(),
		Request:     optimized.Request,
		Analysis:    optimized.Analysis,
		Itinerary:   optimized.Itinerary,
		GeneratedAt: time.Now(),
	})
	if cerr := f.Close(); werr == nil && cerr != nil {
		werr = fmt.Errorf("failed to write PDF: %w", cerr)
	}
	if werr != nil {
		_ = os.Remove(abs)
		return "", werr //nolint:wrapcheck // export errors are already wrapped
	}
	return abs, nil
}

// retrying runs step until it succeeds, fails for a reason other than the
// service, or the user declines to retry.
func retrying(ctx context.Context, cmd *cobra.Command, step func() error) error {
	for {
		err := step()
		var se *workflow.ServiceError
		if !errors.As(err, &se) {
			return err
		}
		fmt.Fprintln(cmd.ErrOrStderr(), errStyle.Render(se.Message))
		again, cerr := confirm(ctx, cmd, "Try again?", true)
		if cerr != nil {
			return cerr
		}
		if !again {
			return err
		}
	}
}

func (a *app) runWizard(ctx context.Context, cmd *cobra.Command) error {
	c, err := a.controller(ctx)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	show := func(render func(b *strings.Builder)) {
		var b strings.Builder
		render(&b)
		fmt.Fprint(out, b.String())
	}

	req := a.withDefaults(ctx, trip.TripRequest{})
	for {
		if err := promptTripRequest(ctx, cmd, &req); err != nil {
			return err
		}
		err := retrying(ctx, cmd, func() error { return c.Submit(ctx, req) })
		var ve *workflow.ValidationError
		if errors.As(err, &ve) {
			fmt.Fprintln(cmd.ErrOrStderr(), errStyle.Render(ve.Error()))
			continue
		}
		if err != nil {
			return err //nolint:wrapcheck // workflow errors carry the user-facing message
		}
		break
	}

	suggestions, _ := workflow.SuggestionsOf(c.Stage())
	show(func(b *strings.Builder) { renderSuggestions(b, suggestions, nil) })

	var chosen []string
	if err := promptSelection(ctx, cmd, suggestions.Candidates, &chosen); err != nil {
		return err
	}
	if err := syncSelection(c, chosen); err != nil {
		return err
	}
	if err := retrying(ctx, cmd, func() error { return c.RequestAnalysis(ctx) }); err != nil {
		return err //nolint:wrapcheck // workflow errors carry the user-facing message
	}
	show(func(b *strings.Builder) { renderAnalysis(b, *resultOf(c).Analysis) })

	build, err := confirm(ctx, cmd, "Build an optimized itinerary?", true)
	if err != nil || !build {
		return err
	}
	if err := retrying(ctx, cmd, func() error { return c.RequestOptimization(ctx) }); err != nil {
		return err //nolint:wrapcheck // workflow errors carry the user-facing message
	}
	res := resultOf(c)
	show(func(b *strings.Builder) {
		b.WriteString("\n")
		renderItinerary(b, *res.Itinerary)
		if res.MapsURL != "" {
			b.WriteString("\n")
			field(b, "Directions", res.MapsURL)
		}
	})

	save, err := confirm(ctx, cmd, "Save the itinerary as a PDF?", false)
	if err != nil || !save {
		return err
	}
	path := fmt.Sprintf("voyagepal-%s.pdf", c.TripID())
	if err := promptPath(ctx, cmd, "File name", &path); err != nil {
		return err
	}
	abs, err := writeItineraryPDF(c, path)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, okStyle.Render("Saved "+abs))
	return nil
}

// syncSelection toggles candidates until exactly names are selected.
func syncSelection(c *workflow.Controller, names []string) error {
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[n] = true
	}
	for _, sel := range c.Selection() {
		if !want[sel.Name] {
			if _, err := c.ToggleByName(sel.Name); err != nil {
				return err //nolint:wrapcheck // workflow errors carry the user-facing message
			}
		}
	}
	for _, n := range names {
		if !c.IsSelected(n) {
			if _, err := c.ToggleByName(n); err != nil {
				return err //nolint:wrapcheck // workflow errors carry the user-facing message
			}
		}
	}
	return nil
}

type planStatus struct {
	LoggedIn bool   `json:"logged_in" yaml:"logged_in"`
	TripID   string `json:"trip_id,omitempty" yaml:"trip_id,omitempty"`
}

func newPlanStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the stored trip session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tripID, err := a.store.TripID(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to read trip session: %w", err)
			}
			st := planStatus{LoggedIn: a.auth.Session().IsAuthenticated(), TripID: tripID}
			return printer{w: cmd.OutOrStdout(), format: a.output}.emit(st, func(b *strings.Builder) {
				if st.TripID == "" {
					b.WriteString("No trip in progress.\n")
				} else {
					field(b, "Trip", st.TripID)
				}
				if !st.LoggedIn {
					b.WriteString(dimStyle.Render("Not logged in.") + "\n")
				}
			})
		},
	}
}

func newPlanResetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Forget the stored trip session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc := newCommandContext(cmd.Context(), "plan reset")
			return cc.run(func(ctx context.Context) error {
				c, err := a.controller(ctx)
				switch {
				case errors.Is(err, workflow.ErrNotAuthenticated):
					if err := a.store.ClearTripID(ctx); err != nil {
						return fmt.Errorf("failed to clear trip session: %w", err)
					}
				case err != nil:
					return err
				default:
					c.Reset(ctx)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Trip session cleared.")
				return nil
			})
		},
	}
}
