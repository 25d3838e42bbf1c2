// Package terminal reads secrets from the controlling terminal and decides
// whether the process may prompt at all.
package terminal

import (
	"os"
	"strings"

	"golang.org/x/term"
)

// ciEnvVars contains common CI environment variables
var ciEnvVars = []string{
	"CI",
	"CONTINUOUS_INTEGRATION",
	"GITHUB_ACTIONS",
	"GITLAB_CI",
	"JENKINS_URL",
	"BUILD_NUMBER",
	"BUILDKITE",
	"DRONE",
	"TF_BUILD",
}

// DetectorOptions contains options for controlling interactive detection
type DetectorOptions struct {
	ForceInteractive    bool
	ForceNonInteractive bool
}

// InteractiveDetector decides whether a human can answer a prompt.
type InteractiveDetector interface {
	IsInteractive() bool
	IsTerminal() bool
	IsCIEnvironment() bool
}

// DefaultInteractiveDetector implements InteractiveDetector
type DefaultInteractiveDetector struct {
	options DetectorOptions
}

func NewInteractiveDetector(options DetectorOptions) InteractiveDetector {
	return &DefaultInteractiveDetector{options: options}
}

// IsInteractive applies, in order: forced options, CI detection, terminal detection.
func (d *DefaultInteractiveDetector) IsInteractive() bool {
	if d.options.ForceInteractive {
		return true
	}
	if d.options.ForceNonInteractive {
		return false
	}
	if d.IsCIEnvironment() {
		return false
	}
	return d.IsTerminal()
}

// IsTerminal checks that stdin (where secrets are read) and stderr (where
// prompts are written) are both terminals.
func (d *DefaultInteractiveDetector) IsTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stderr.Fd()))
}

func (d *DefaultInteractiveDetector) IsCIEnvironment() bool {
	for _, envVar := range ciEnvVars {
		if value := os.Getenv(envVar); value != "" {
			if envVar == "CI" {
				return isCITruthy(value)
			}
			return true
		}
	}
	return false
}

// CI=false, CI=0 and CI=no do not count as a CI environment.
func isCITruthy(value string) bool {
	lower := strings.ToLower(strings.TrimSpace(value))
	return lower != "false" && lower != "0" && lower != "no"
}
