//go:build ignore

// gen_state_diagram writes the workflow stage machine as a Mermaid diagram.
// Run via: go generate ./cmd/voyagepal/cli/workflow/
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/voyagepal/cli/cmd/voyagepal/cli/workflow"
)

func main() {
	_, thisFile, _, ok := runtime.Caller(0)
	if !ok {
		fmt.Fprintln(os.Stderr, "runtime.Caller failed")
		os.Exit(1)
	}

	root, err := moduleRoot(filepath.Dir(thisFile))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	outDir := filepath.Join(root, "docs", "generated")
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "failed to create %s: %v\n", outDir, err)
		os.Exit(1)
	}

	out := filepath.Join(outDir, "workflow-stages.mmd")
	if err := os.WriteFile(out, []byte(workflow.MermaidDiagram()), 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "failed to write diagram: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Wrote %s\n", out)
}

func moduleRoot(dir string) (string, error) {
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("no go.mod above %s", dir)
		}
		dir = parent
	}
}
