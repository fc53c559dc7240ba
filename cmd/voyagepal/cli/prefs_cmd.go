package cli

import (
	"context"
	"strings"

	"github.com/spf13/cobra"
	"github.com/voyagepal/cli/cmd/voyagepal/cli/trip"
)

func newPrefsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prefs",
		Short: "Show or change the preferences used as planning defaults",
	}
	cmd.AddCommand(newPrefsShowCmd(a))
	cmd.AddCommand(newPrefsSetCmd(a))
	return cmd
}

func (a *app) printPreferences(cmd *cobra.Command, p trip.Preferences) error {
	return printer{w: cmd.OutOrStdout(), format: a.output}.emit(p, func(b *strings.Builder) { renderPreferences(b, p) })
}

func newPrefsShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show saved preferences",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.requireLogin(); err != nil {
				return err
			}
			var prefs trip.Preferences
			err := newCommandContext(cmd.Context(), "prefs show").run(func(ctx context.Context) error {
				var err error
				prefs, err = a.client.Preferences(ctx)
				return err //nolint:wrapcheck // APIError carries the service detail
			})
			if err != nil {
				return err
			}
			return a.printPreferences(cmd, prefs)
		},
	}
}

func newPrefsSetCmd(a *app) *cobra.Command {
	var next trip.Preferences
	cmd := &cobra.Command{
		Use:   "set",
		Short: "Change saved preferences",
		Long: `Change saved preferences. Flags that are not given keep their saved value.
Without flags the preferences are edited in a form.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.requireLogin(); err != nil {
				return err
			}
			flags := cmd.Flags()
			anyFlag := flags.Changed("interest") || flags.Changed("pace") || flags.Changed("transport") || flags.Changed("budget")
			if !anyFlag && !canPrompt() {
				return errNeedsTerminal
			}

			var saved trip.Preferences
			err := newCommandContext(cmd.Context(), "prefs set").run(func(ctx context.Context) error {
				current, err := a.client.Preferences(ctx)
				if err != nil {
					return err //nolint:wrapcheck // APIError carries the service detail
				}
				merged := current
				if flags.Changed("interest") {
					merged.Interests = next.Interests
				}
				if flags.Changed("pace") {
					merged.Pace = next.Pace
				}
				if flags.Changed("transport") {
					merged.PreferredTransport = next.PreferredTransport
				}
				if flags.Changed("budget") {
					merged.BudgetRange = next.BudgetRange
				}
				if !anyFlag {
					if err := promptPreferences(ctx, cmd, &merged); err != nil {
						return err
					}
				}
				saved, err = a.client.SavePreferences(ctx, merged)
				return err //nolint:wrapcheck // APIError carries the service detail
			})
			if err != nil {
				return err
			}
			return a.printPreferences(cmd, saved)
		},
	}

	f := cmd.Flags()
	f.Var(newInterestFlag(&next.Interests), "interest", "interest to favour (repeatable)")
	f.Var(newEnumValue(&next.Pace, trip.ParsePace, "pace"), "pace", "relaxed or fast-paced")
	f.Var(newEnumListValue(&next.PreferredTransport, trip.ParseTransport, "transport"), "transport", "driving, public_transit, walking or ride_share (repeatable)")
	f.Var(newEnumValue(&next.BudgetRange, trip.ParseBudget, "budget"), "budget", "budget, mid-range or luxury")
	return cmd
}
