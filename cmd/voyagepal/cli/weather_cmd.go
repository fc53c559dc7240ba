package cli

import (
	"context"
	"strings"

	"github.com/spf13/cobra"
)

func newWeatherCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "weather <city> <date>",
		Short:   "Show the forecast the planner uses for a city and date",
		Example: `  voyagepal weather Chicago 2024-06-01`,
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireLogin(); err != nil {
				return err
			}
			city, date := args[0], args[1]
			var forecast map[string]any
			cc := newCommandContext(cmd.Context(), "weather")
			err := cc.run(func(ctx context.Context) error {
				var err error
				forecast, err = a.client.Weather(ctx, city, date)
				return err //nolint:wrapcheck // APIError carries the service detail
			})
			if err != nil {
				return err
			}
			return printer{w: cmd.OutOrStdout(), format: a.output}.emit(forecast, func(b *strings.Builder) {
				renderWeather(b, city, date, forecast)
			})
		},
	}
}
