package testutil

import (
	"os"
	"testing"
)

// SkipIfShort skips the test if running in short mode
func SkipIfShort(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
}

// RequireIntegration skips container backed tests in short mode, and in CI
// unless ESBENCH_INTEGRATION=1 is set.
func RequireIntegration(t *testing.T) {
	t.Helper()
	SkipIfShort(t)
	if os.Getenv("CI") != "" && os.Getenv("ESBENCH_INTEGRATION") != "1" {
		t.Skip("skipping integration test (set ESBENCH_INTEGRATION=1 to run)")
	}
}
