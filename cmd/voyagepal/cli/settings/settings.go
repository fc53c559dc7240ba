// Package settings loads CLI configuration.
//
// Sources, later overriding earlier:
//
//  1. <home>/settings.json
//  2. <home>/settings.local.json
//  3. .env in the working directory
//  4. process environment (VOYAGEPAL_*)
//
// Unknown keys in either JSON file are rejected so typos surface early.
package settings

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/voyagepal/cli/cmd/voyagepal/cli/jsonutil"
	"github.com/voyagepal/cli/cmd/voyagepal/cli/paths"
)

// Environment variables consulted after the settings files.
const (
	EnvAPIURL         = "VOYAGEPAL_API_URL"
	EnvLogLevel       = "VOYAGEPAL_LOG_LEVEL"
	EnvStateBackend   = "VOYAGEPAL_STATE_BACKEND"
	EnvTelemetry      = "VOYAGEPAL_TELEMETRY"
	EnvRequestTimeout = "VOYAGEPAL_REQUEST_TIMEOUT"
)

const (
	// DefaultAPIURL matches the backend's default mount point.
	DefaultAPIURL         = "http://localhost:8000/api/v1"
	DefaultStateBackend   = "file"
	DefaultRequestTimeout = 2 * time.Minute
)

// Settings is the merged configuration.
type Settings struct {
	// APIURL is the base URL of the trip planning service, including the
	// /api/v1 prefix.
	APIURL string `json:"api_url,omitempty"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `json:"log_level,omitempty"`

	// StateBackend names the store backend ("file", "sqlite" or "memory").
	StateBackend string `json:"state_backend,omitempty"`

	// RequestTimeout bounds each service call, as a Go duration string.
	// "0" disables the timeout.
	RequestTimeout string `json:"request_timeout,omitempty"`

	// Telemetry is nil until the user has chosen.
	Telemetry *bool `json:"telemetry,omitempty"`
}

// Load reads settings from home and the environment.
func Load(home string) (*Settings, error) {
	s := &Settings{}
	if err := mergeFile(s, filepath.Join(home, paths.SettingsFile)); err != nil {
		return nil, err
	}
	if err := mergeFile(s, filepath.Join(home, paths.LocalSettings)); err != nil {
		return nil, err
	}
	if err := mergeEnv(s); err != nil {
		return nil, err
	}
	if _, err := s.Timeout(); err != nil {
		return nil, err
	}
	return s, nil
}

func mergeFile(dst *Settings, path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // path is under the CLI home
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	var overlay Settings
	if err := jsonutil.DecodeStrictBytes(data, &overlay); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	dst.merge(&overlay)
	return nil
}

func (s *Settings) merge(o *Settings) {
	if o.APIURL != "" {
		s.APIURL = o.APIURL
	}
	if o.LogLevel != "" {
		s.LogLevel = o.LogLevel
	}
	if o.StateBackend != "" {
		s.StateBackend = o.StateBackend
	}
	if o.RequestTimeout != "" {
		s.RequestTimeout = o.RequestTimeout
	}
	if o.Telemetry != nil {
		v := *o.Telemetry
		s.Telemetry = &v
	}
}

// mergeEnv applies .env first, then the real environment on top of it.
func mergeEnv(s *Settings) error {
	env := map[string]string{}
	if _, err := os.Stat(paths.DotEnvFile); err == nil {
		dotenv, err := godotenv.Read(paths.DotEnvFile)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", paths.DotEnvFile, err)
		}
		env = dotenv
	}
	for _, key := range []string{EnvAPIURL, EnvLogLevel, EnvStateBackend, EnvTelemetry, EnvRequestTimeout} {
		if v, ok := os.LookupEnv(key); ok {
			env[key] = v
		}
	}

	overlay := &Settings{
		APIURL:         env[EnvAPIURL],
		LogLevel:       env[EnvLogLevel],
		StateBackend:   env[EnvStateBackend],
		RequestTimeout: env[EnvRequestTimeout],
	}
	if raw := strings.TrimSpace(env[EnvTelemetry]); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", EnvTelemetry, raw, err)
		}
		overlay.Telemetry = &v
	}
	s.merge(overlay)
	return nil
}

// BaseURL returns the configured API URL without a trailing slash.
func (s *Settings) BaseURL() string {
	if s.APIURL == "" {
		return DefaultAPIURL
	}
	return strings.TrimRight(s.APIURL, "/")
}

// Backend returns the configured state backend name.
func (s *Settings) Backend() string {
	if s.StateBackend == "" {
		return DefaultStateBackend
	}
	return s.StateBackend
}

// Timeout parses RequestTimeout. Zero means no timeout.
func (s *Settings) Timeout() (time.Duration, error) {
	if s.RequestTimeout == "" {
		return DefaultRequestTimeout, nil
	}
	if s.RequestTimeout == "0" {
		return 0, nil
	}
	d, err := time.ParseDuration(s.RequestTimeout)
	if err != nil {
		return 0, fmt.Errorf("invalid request_timeout %q: %w", s.RequestTimeout, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("invalid request_timeout %q: must not be negative", s.RequestTimeout)
	}
	return d, nil
}

// TelemetryEnabled reports whether the user opted in. Unset means no.
func (s *Settings) TelemetryEnabled() bool {
	return s.Telemetry != nil && *s.Telemetry
}
