// Package cli is the voyagepal command tree.
package cli

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/voyagepal/cli/cmd/voyagepal/cli/auth"
	"github.com/voyagepal/cli/cmd/voyagepal/cli/logging"
	"github.com/voyagepal/cli/cmd/voyagepal/cli/paths"
	"github.com/voyagepal/cli/cmd/voyagepal/cli/settings"
	"github.com/voyagepal/cli/cmd/voyagepal/cli/store"
	"github.com/voyagepal/cli/cmd/voyagepal/cli/telemetry"
	"github.com/voyagepal/cli/cmd/voyagepal/cli/tripapi"
	"github.com/voyagepal/cli/cmd/voyagepal/cli/versioninfo"
	"github.com/voyagepal/cli/cmd/voyagepal/cli/workflow"
)

// skipSetupAnnotation marks commands that run without home, store or client.
const skipSetupAnnotation = "voyagepal/skip-setup"

// app is the per-invocation runtime built by PersistentPreRunE.
type app struct {
	homeFlag   string
	apiURLFlag string
	output     outputFormat

	home      string
	settings  *settings.Settings
	store     *store.SessionStore
	client    *tripapi.Client
	auth      *auth.Manager
	telemetry telemetry.Client
	finished  bool
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	a := &app{output: outputText, telemetry: telemetry.NoOpClient{}}

	cmd := &cobra.Command{
		Use:   "voyagepal",
		Short: "Plan a day trip from the terminal",
		Long: `VoyagePal plans a day trip in four steps: describe the trip, pick from the
suggested places, review the cost and weather analysis, then get an
optimized itinerary.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       versioninfo.Version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			configureColor(cmd.OutOrStdout())
			if skipsSetup(cmd) {
				return nil
			}
			if err := a.setup(cmd); err != nil {
				a.teardown()
				return err
			}
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			if !skipsSetup(cmd) {
				a.finish(cmd)
			}
			return nil
		},
	}
	cmd.SetVersionTemplate(versionString())

	cmd.PersistentFlags().VarP(&a.output, "output", "o", "output format: text, json or yaml")
	cmd.PersistentFlags().StringVar(&a.homeFlag, "home", "", "state directory (default $"+paths.HomeEnvVar+" or the user config dir)")
	cmd.PersistentFlags().StringVar(&a.apiURLFlag, "api-url", "", "trip planning service URL, e.g. "+settings.DefaultAPIURL)

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newAuthCmd(a))
	cmd.AddCommand(newPlanCmd(a))
	cmd.AddCommand(newTripsCmd(a))
	cmd.AddCommand(newPrefsCmd(a))
	cmd.AddCommand(newWeatherCmd(a))

	finishOnError(cmd, a)
	return cmd
}

// finishOnError wraps every RunE so a failed command still records
// telemetry and releases the store and log file. Cobra skips
// PersistentPostRunE after an error.
func finishOnError(c *cobra.Command, a *app) {
	if run := c.RunE; run != nil && !skipsSetup(c) {
		c.RunE = func(cmd *cobra.Command, args []string) error {
			err := run(cmd, args)
			if err != nil {
				a.finish(cmd)
			}
			return err
		}
	}
	for _, sub := range c.Commands() {
		finishOnError(sub, a)
	}
}

func skipsSetup(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations[skipSetupAnnotation] == "true" {
			return true
		}
	}
	return false
}

func (a *app) setup(cmd *cobra.Command) error {
	ctx := cmd.Context()

	home, err := paths.Home(a.homeFlag)
	if err != nil {
		return err
	}
	if err := paths.EnsureDir(home); err != nil {
		return err
	}
	a.home = home

	s, err := settings.Load(home)
	if err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}
	if a.apiURLFlag != "" {
		s.APIURL = a.apiURLFlag
	}
	a.settings = s

	logging.SetLogLevelGetter(func() string { return s.LogLevel })
	if err := logging.Init(ctx, home); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: logging to stderr: %v\n", err)
	}

	backend, err := store.Open(s.Backend(), home)
	if err != nil {
		return err
	}
	a.store = store.NewSessionStore(backend)

	timeout, err := s.Timeout()
	if err != nil {
		return err
	}
	a.client, err = tripapi.New(s.BaseURL(),
		tripapi.WithTokenSource(a.store),
		tripapi.WithTimeout(timeout),
	)
	if err != nil {
		return err
	}

	a.auth, err = auth.NewManager(ctx, a.client, a.store)
	if err != nil {
		return err
	}

	a.telemetry = telemetry.NewClient(ctx, s.TelemetryEnabled())
	logging.Debug(logging.WithComponent(ctx, "cli"), "setup complete",
		"command", cmd.CommandPath(),
		"backend", s.Backend(),
		"api_url", s.BaseURL(),
	)
	return nil
}

func (a *app) finish(cmd *cobra.Command) {
	if a.finished {
		return
	}
	a.telemetry.TrackCommand(cmd.CommandPath(), changedFlags(cmd))
	a.teardown()
}

func (a *app) teardown() {
	a.finished = true
	a.telemetry.Close()
	if a.store != nil {
		_ = a.store.Close()
	}
	logging.Close()
}

// controller builds a workflow controller for the logged-in user.
func (a *app) controller(ctx context.Context) (*workflow.Controller, error) {
	c, err := workflow.New(ctx, a.auth.Session(), a.client, a.store, workflow.WithEventSink(a.telemetry))
	if errors.Is(err, workflow.ErrNotAuthenticated) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to start planning session: %w", err)
	}
	return c, nil
}

// requireLogin fails unless a token is held.
func (a *app) requireLogin() error {
	if !a.auth.Session().IsAuthenticated() {
		return workflow.ErrNotAuthenticated
	}
	return nil
}

func changedFlags(cmd *cobra.Command) []string {
	var names []string
	cmd.Flags().Visit(func(f *pflag.Flag) { names = append(names, f.Name) })
	return names
}

func versionString() string {
	var b strings.Builder
	fmt.Fprintf(&b, "voyagepal %s (%s)\n", versioninfo.Version, versioninfo.Commit)
	fmt.Fprintf(&b, "Go version: %s\n", runtime.Version())
	fmt.Fprintf(&b, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
	return b.String()
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:         "version",
		Short:       "Show build information",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{skipSetupAnnotation: "true"},
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprint(cmd.OutOrStdout(), versionString())
		},
	}
}
