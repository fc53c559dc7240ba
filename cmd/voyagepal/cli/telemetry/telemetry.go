// Package telemetry sends anonymous usage events: which commands run and how
// planning stages transition. It is off unless enabled in settings, and never
// sends destinations, selections, tokens or trip ids.
package telemetry

import (
	"context"
	"runtime"
	"sort"

	"github.com/denisbrodbeck/machineid"
	"github.com/posthog/posthog-go"
	"github.com/voyagepal/cli/cmd/voyagepal/cli/logging"
	"github.com/voyagepal/cli/cmd/voyagepal/cli/versioninfo"
	"github.com/voyagepal/cli/cmd/voyagepal/cli/workflow"
)

// PostHogAPIKey is injected at release build time. Telemetry stays off when empty.
var PostHogAPIKey = ""

// PostHogEndpoint is where events are sent.
const PostHogEndpoint = "https://eu.i.posthog.com"

const appID = "voyagepal-cli"

// Client records usage events.
type Client interface {
	workflow.EventSink
	TrackCommand(command string, flags []string)
	Close()
}

// NoOpClient drops everything.
type NoOpClient struct{}

func (NoOpClient) TrackCommand(string, []string)                   {}
func (NoOpClient) Transition(context.Context, workflow.Transition) {}
func (NoOpClient) Close()                                          {}

// enqueuer is the subset of posthog.Client used here.
type enqueuer interface {
	Enqueue(msg posthog.Message) error
	Close() error
}

// PostHogClient sends events to PostHog under an anonymous machine id.
type PostHogClient struct {
	client     enqueuer
	distinctID string
}

// NewClient returns a PostHog-backed client when enabled and a key is
// configured, and a NoOpClient otherwise. Setup failures disable telemetry.
func NewClient(ctx context.Context, enabled bool) Client {
	if !enabled || PostHogAPIKey == "" {
		return NoOpClient{}
	}
	ctx = logging.WithComponent(ctx, "telemetry")

	id, err := machineid.ProtectedID(appID)
	if err != nil {
		logging.Debug(ctx, "telemetry disabled: no machine id", "error", err.Error())
		return NoOpClient{}
	}
	ph, err := posthog.NewWithConfig(PostHogAPIKey, posthog.Config{
		Endpoint:  PostHogEndpoint,
		BatchSize: 10,
	})
	if err != nil {
		logging.Debug(ctx, "telemetry disabled", "error", err.Error())
		return NoOpClient{}
	}
	return &PostHogClient{client: ph, distinctID: id}
}

func (c *PostHogClient) baseProperties() posthog.Properties {
	return posthog.NewProperties().
		Set("cli_version", versioninfo.Version).
		Set("os", runtime.GOOS).
		Set("arch", runtime.GOARCH)
}

// TrackCommand records that command ran with the named flags set. Flag
// values are never sent.
func (c *PostHogClient) TrackCommand(command string, flags []string) {
	names := append([]string{}, flags...)
	sort.Strings(names)
	_ = c.client.Enqueue(posthog.Capture{
		DistinctId: c.distinctID,
		Event:      "cli_command_executed",
		Properties: c.baseProperties().Set("command", command).Set("flags", names),
	})
}

// Transition records a planning stage transition.
func (c *PostHogClient) Transition(_ context.Context, t workflow.Transition) {
	props := c.baseProperties().
		Set("event", string(t.Event)).
		Set("from", string(t.From)).
		Set("to", string(t.To)).
		Set("ok", t.Err == nil).
		Set("duration_ms", t.Duration.Milliseconds())
	_ = c.client.Enqueue(posthog.Capture{
		DistinctId: c.distinctID,
		Event:      "plan_stage_transition",
		Properties: props,
	})
}

// Close flushes queued events.
func (c *PostHogClient) Close() {
	_ = c.client.Close()
}
