// Package voyagepal runs the compiled voyagepal binary for end-to-end tests.
package voyagepal

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"
)

// BinEnvVar points at a prebuilt binary. When unset the binary is built
// from source once per test process.
const BinEnvVar = "E2E_VOYAGEPAL_BIN"

var buildOnce = sync.OnceValues(func() (string, error) {
	if bin := os.Getenv(BinEnvVar); bin != "" {
		return bin, nil
	}
	_, file, _, _ := runtime.Caller(0)
	root := filepath.Join(filepath.Dir(file), "..", "..")
	dir, err := os.MkdirTemp("", "voyagepal-e2e-")
	if err != nil {
		return "", err //nolint:wrapcheck // test helper
	}
	bin := filepath.Join(dir, "voyagepal")
	cmd := exec.Command("go", "build", "-o", bin, "./cmd/voyagepal")
	cmd.Dir = root
	if out, err := cmd.CombinedOutput(); err != nil {
		return "", fmt.Errorf("build voyagepal: %w\n%s", err, out)
	}
	return bin, nil
})

// BinPath returns the binary under test, building it if needed.
func BinPath() string {
	bin, err := buildOnce()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	return bin
}

// Env is one isolated CLI installation talking to one service.
type Env struct {
	Home   string
	APIURL string
}

// NewEnv returns an Env with a fresh home directory.
func NewEnv(t *testing.T, apiURL string) *Env {
	t.Helper()
	return &Env{Home: t.TempDir(), APIURL: apiURL}
}

// ExecError wraps a voyagepal execution failure with its output.
type ExecError struct {
	Args   []string
	Err    error
	Output string
}

func (e *ExecError) Error() string {
	return "voyagepal " + strings.Join(e.Args, " ") + ": " + e.Err.Error() + "\n" + e.Output
}

func (e *ExecError) Unwrap() error {
	return e.Err
}

func (e *Env) command(stdin string, args ...string) *exec.Cmd {
	full := append([]string{"--home", e.Home, "--api-url", e.APIURL}, args...)
	cmd := exec.Command(BinPath(), full...)
	cmd.Env = append(os.Environ(), "VOYAGEPAL_TEST_TTY=0", "VOYAGEPAL_TELEMETRY=false", "NO_COLOR=1")
	cmd.Stdin = strings.NewReader(stdin)
	return cmd
}

// Output runs a subcommand and returns its stdout. Failures are returned,
// not reported, since callers may test failure cases.
func (e *Env) Output(stdin string, args ...string) (string, error) {
	cmd := e.command(stdin, args...)
	var stderr strings.Builder
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return string(out), &ExecError{Args: args, Err: err, Output: stderr.String()}
	}
	return string(out), nil
}

// Run runs a subcommand and fails the test on error.
func (e *Env) Run(t *testing.T, args ...string) string {
	t.Helper()
	out, err := e.Output("", args...)
	if err != nil {
		t.Fatalf("%v", err)
	}
	return out
}

// JSON runs a subcommand with -o json and decodes its output into v.
func (e *Env) JSON(t *testing.T, v any, args ...string) {
	t.Helper()
	out := e.Run(t, append(args, "-o", "json")...)
	if err := json.Unmarshal([]byte(out), v); err != nil {
		t.Fatalf("parse voyagepal %s output: %v\nraw output: %s", strings.Join(args, " "), err, out)
	}
}

// Login logs in with the password passed on stdin.
func (e *Env) Login(t *testing.T, email, password string) {
	t.Helper()
	if _, err := e.Output(password+"\n", "auth", "login", "--email", email, "--password-stdin"); err != nil {
		t.Fatalf("%v", err)
	}
}
