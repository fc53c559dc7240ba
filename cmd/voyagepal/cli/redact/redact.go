// Package redact scrubs credentials from strings before they are logged.
package redact

import (
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/zricethezav/gitleaks/v8/detect"
)

// Placeholder replaces every detected secret.
const Placeholder = "REDACTED"

var (
	bearerPattern = regexp.MustCompile(`(?i)(bearer\s+)[A-Za-z0-9\-._~+/]+=*`)
	jwtPattern    = regexp.MustCompile(`eyJ[A-Za-z0-9_-]+\.[A-Za-z0-9_-]+\.[A-Za-z0-9_-]*`)
)

// The gitleaks default config compiles a few hundred rules; build it once.
var loadDetector = sync.OnceValues(detect.NewDetectorDefaultConfig)

// String returns s with bearer credentials, JWTs and anything the gitleaks
// default ruleset flags replaced by Placeholder.
func String(s string) string {
	if s == "" {
		return s
	}
	s = bearerPattern.ReplaceAllString(s, "${1}"+Placeholder)
	s = jwtPattern.ReplaceAllString(s, Placeholder)

	detector, err := loadDetector()
	if err != nil || detector == nil {
		return s
	}
	findings := detector.DetectString(s)
	if len(findings) == 0 {
		return s
	}
	secrets := make([]string, 0, len(findings))
	for _, f := range findings {
		if f.Secret != "" {
			secrets = append(secrets, f.Secret)
		}
	}
	// Longest first so a secret containing another is replaced whole.
	sort.Slice(secrets, func(i, j int) bool { return len(secrets[i]) > len(secrets[j]) })
	for _, secret := range secrets {
		s = strings.ReplaceAll(s, secret, Placeholder)
	}
	return s
}
