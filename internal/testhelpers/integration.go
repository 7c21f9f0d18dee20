//go:build integration
// +build integration

package testhelpers

import (
	"os"
	"strings"
	"testing"

	"github.com/kjstillabower/greeter-service/internal/greeting"
)

// IntegrationTestConfig describes a deployed greeter to test against.
type IntegrationTestConfig struct {
	BaseURL  string
	Greeting string
}

// GetIntegrationConfig loads the live target from GREETER_BASE_URL (and optional
// GREETER_EXPECTED_GREETING). Skips the test when no target is set.
func GetIntegrationConfig(t *testing.T) IntegrationTestConfig {
	t.Helper()
	baseURL := strings.TrimRight(strings.TrimSpace(os.Getenv("GREETER_BASE_URL")), "/")
	if baseURL == "" {
		t.Skip("GREETER_BASE_URL not set, skipping integration test")
	}
	expected := strings.TrimSpace(os.Getenv("GREETER_EXPECTED_GREETING"))
	if expected == "" {
		expected = greeting.DefaultMessage
	}
	return IntegrationTestConfig{BaseURL: baseURL, Greeting: expected}
}
