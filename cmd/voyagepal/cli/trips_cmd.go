package cli

import (
	"context"
	"strings"

	"github.com/spf13/cobra"
	"github.com/voyagepal/cli/cmd/voyagepal/cli/trip"
)

func newTripsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "trips",
		Short: "List the trips saved to your account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.requireLogin(); err != nil {
				return err
			}
			var trips []trip.SavedTrip
			cc := newCommandContext(cmd.Context(), "trips")
			err := cc.run(func(ctx context.Context) error {
				var err error
				trips, err = a.client.SavedTrips(ctx)
				return err //nolint:wrapcheck // APIError carries the service detail
			})
			if err != nil {
				return err
			}
			if trips == nil {
				trips = []trip.SavedTrip{}
			}
			return printer{w: cmd.OutOrStdout(), format: a.output}.emit(trips, func(b *strings.Builder) { renderTrips(b, trips) })
		},
	}
}
