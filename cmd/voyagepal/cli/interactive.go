package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
	"github.com/voyagepal/cli/cmd/voyagepal/cli/trip"
	"golang.org/x/term"
)

// TestTTYEnvVar forces terminal detection: "1" means interactive, "0" means not.
const TestTTYEnvVar = "VOYAGEPAL_TEST_TTY"

// errNeedsTerminal is returned when a prompt is required but stdin is not a terminal.
var errNeedsTerminal = errors.New("this command needs an interactive terminal; pass the values as flags instead")

func canPrompt() bool {
	switch os.Getenv(TestTTYEnvVar) {
	case "1":
		return true
	case "0":
		return false
	}
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}

func runForm(ctx context.Context, cmd *cobra.Command, groups ...*huh.Group) error {
	form := huh.NewForm(groups...).
		WithInput(cmd.InOrStdin()).
		WithOutput(cmd.ErrOrStderr()).
		WithAccessible(os.Getenv("ACCESSIBLE") != "")
	if err := form.RunWithContext(ctx); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return errors.New("cancelled")
		}
		return fmt.Errorf("prompt failed: %w", err)
	}
	return nil
}

func required(what string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", what)
		}
		return nil
	}
}

func promptCredentials(ctx context.Context, cmd *cobra.Command, email, password *string, fullName *string) error {
	fields := []huh.Field{
		huh.NewInput().Title("Email").Value(email).Validate(required("email")),
		huh.NewInput().Title("Password").EchoMode(huh.EchoModePassword).Value(password).Validate(required("password")),
	}
	if fullName != nil {
		fields = append(fields, huh.NewInput().Title("Full name (optional)").Value(fullName))
	}
	return runForm(ctx, cmd, huh.NewGroup(fields...))
}

func enumOptions[T ~string](vs []T) []huh.Option[T] {
	opts := make([]huh.Option[T], len(vs))
	for i, v := range vs {
		opts[i] = huh.NewOption(string(v), v)
	}
	return opts
}

func validDate(s string) error {
	if _, err := time.Parse(trip.DateLayout, strings.TrimSpace(s)); err != nil {
		return errors.New("use YYYY-MM-DD")
	}
	return nil
}

// promptTripRequest fills req in place. Existing values are the defaults.
func promptTripRequest(ctx context.Context, cmd *cobra.Command, req *trip.TripRequest) error {
	if req.Pace == "" {
		req.Pace = trip.DefaultPace
	}
	if req.BudgetRange == "" {
		req.BudgetRange = trip.DefaultBudget
	}
	return runForm(ctx, cmd,
		huh.NewGroup(
			huh.NewInput().Title("Where to?").Placeholder("Chicago").Value(&req.Destination).Validate(required("destination")),
			huh.NewInput().Title("Date").Placeholder(trip.DateLayout).Value(&req.TripDate).Validate(validDate),
			huh.NewInput().Title("Back by").Placeholder("11 PM").Value(&req.ReturnTime).Validate(required("return time")),
		),
		huh.NewGroup(
			huh.NewMultiSelect[trip.Interest]().Title("Interests").Options(enumOptions(trip.Interests)...).Value(&req.Interests),
			huh.NewSelect[trip.Pace]().Title("Pace").Options(enumOptions(trip.Paces)...).Value(&req.Pace),
			huh.NewMultiSelect[trip.Transport]().Title("Getting around").Options(enumOptions(trip.Transports)...).Value(&req.PreferredTransport),
			huh.NewSelect[trip.Budget]().Title("Budget").Options(enumOptions(trip.Budgets)...).Value(&req.BudgetRange),
		),
	)
}

func promptPreferences(ctx context.Context, cmd *cobra.Command, p *trip.Preferences) error {
	if p.Pace == "" {
		p.Pace = trip.DefaultPace
	}
	if p.BudgetRange == "" {
		p.BudgetRange = trip.DefaultBudget
	}
	return runForm(ctx, cmd, huh.NewGroup(
		huh.NewMultiSelect[trip.Interest]().Title("Interests").Options(enumOptions(trip.Interests)...).Value(&p.Interests),
		huh.NewSelect[trip.Pace]().Title("Pace").Options(enumOptions(trip.Paces)...).Value(&p.Pace),
		huh.NewMultiSelect[trip.Transport]().Title("Getting around").Options(enumOptions(trip.Transports)...).Value(&p.PreferredTransport),
		huh.NewSelect[trip.Budget]().Title("Budget").Options(enumOptions(trip.Budgets)...).Value(&p.BudgetRange),
	))
}

// promptSelection asks which candidates to keep. chosen holds the
// preselected names on entry.
func promptSelection(ctx context.Context, cmd *cobra.Command, candidates []trip.LocationCandidate, chosen *[]string) error {
	opts := make([]huh.Option[string], len(candidates))
	for i, c := range candidates {
		opts[i] = huh.NewOption(fmt.Sprintf("%s (%s, %d min)", c.Name, c.Type, c.EstimatedTimeMinutes), c.Name)
	}
	return runForm(ctx, cmd, huh.NewGroup(
		huh.NewMultiSelect[string]().
			Title("Pick the places to analyze").
			Options(opts...).
			Value(chosen).
			Validate(func(v []string) error {
				if len(v) == 0 {
					return errors.New("select at least one location")
				}
				return nil
			}),
	))
}

func confirm(ctx context.Context, cmd *cobra.Command, title string, def bool) (bool, error) {
	v := def
	err := runForm(ctx, cmd, huh.NewGroup(huh.NewConfirm().Title(title).Affirmative("Yes").Negative("No").Value(&v)))
	return v, err
}

func promptPath(ctx context.Context, cmd *cobra.Command, title string, path *string) error {
	return runForm(ctx, cmd, huh.NewGroup(huh.NewInput().Title(title).Value(path).Validate(required("path"))))
}
