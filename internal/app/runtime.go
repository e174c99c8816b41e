package app

import (
	"log/slog"
	"os"
	"sync/atomic"
)

// TestModeEnv disables network side effects of the entrypoints when set to "1".
const TestModeEnv = "BUDGETDESK_TEST_MODE"

var testMode atomic.Pointer[bool]

// InTestMode reports whether entrypoints should skip startup. The environment is read
// once; call RefreshTestMode after changing it.
func InTestMode() bool {
	if v := testMode.Load(); v != nil {
		return *v
	}
	return RefreshTestMode()
}

// RefreshTestMode re-reads TestModeEnv.
func RefreshTestMode() bool {
	v := os.Getenv(TestModeEnv) == "1"
	testMode.Store(&v)
	return v
}

// SkipStartup logs and returns true when running in test mode.
func SkipStartup(logger *slog.Logger, component string) bool {
	if !InTestMode() {
		return false
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("test mode detected, skipping startup", slog.String("component", component))
	return true
}
