package terminal

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// setupCleanEnv blanks every CI variable, then applies envVars.
func setupCleanEnv(t *testing.T, envVars map[string]string) {
	t.Helper()
	for _, v := range ciEnvVars {
		t.Setenv(v, "")
	}
	for k, v := range envVars {
		t.Setenv(k, v)
	}
}

func TestInteractiveDetector_IsInteractive(t *testing.T) {
	tests := []struct {
		name            string
		envVars         map[string]string
		options         DetectorOptions
		wantInteractive bool
	}{
		{
			name:            "CI environment detected - GITHUB_ACTIONS",
			envVars:         map[string]string{"GITHUB_ACTIONS": "true"},
			wantInteractive: false,
		},
		{
			name:            "CI environment detected - CI=true",
			envVars:         map[string]string{"CI": "true"},
			wantInteractive: false,
		},
		{
			name:            "Force interactive mode overrides CI",
			envVars:         map[string]string{"CI": "true"},
			options:         DetectorOptions{ForceInteractive: true},
			wantInteractive: true,
		},
		{
			name:            "Force non-interactive mode",
			options:         DetectorOptions{ForceNonInteractive: true},
			wantInteractive: false,
		},
		{
			name:            "No CI environment - depends on terminal check",
			wantInteractive: false, // test binaries do not run on a terminal
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setupCleanEnv(t, tt.envVars)
			detector := NewInteractiveDetector(tt.options)
			if tt.name == "No CI environment - depends on terminal check" && detector.IsTerminal() {
				t.Skip("running on a real terminal")
			}
			assert.Equal(t, tt.wantInteractive, detector.IsInteractive())
		})
	}
}

func TestInteractiveDetector_IsCIEnvironment(t *testing.T) {
	tests := []struct {
		name    string
		envVars map[string]string
		want    bool
	}{
		{"none", map[string]string{}, false},
		{"CI=1", map[string]string{"CI": "1"}, true},
		{"CI=false", map[string]string{"CI": "false"}, false},
		{"CI=0", map[string]string{"CI": "0"}, false},
		{"CI=No", map[string]string{"CI": "No"}, false},
		{"GITLAB_CI", map[string]string{"GITLAB_CI": "true"}, true},
		{"JENKINS_URL", map[string]string{"JENKINS_URL": "http://jenkins.example.com"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setupCleanEnv(t, tt.envVars)
			assert.Equal(t, tt.want, NewInteractiveDetector(DetectorOptions{}).IsCIEnvironment())
		})
	}
}
