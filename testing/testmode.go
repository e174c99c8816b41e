// Package testing switches the entrypoints into test mode when imported for side
// effects by a test binary.
package testing

import (
	"os"
	"sync"
)

// testModeEnv matches app.TestModeEnv.
const testModeEnv = "BUDGETDESK_TEST_MODE"

var once sync.Once

// Enable sets test mode and placeholder secrets so config loading succeeds without a
// real environment.
func Enable() {
	once.Do(func() {
		_ = os.Setenv(testModeEnv, "1")
		setDefault("SESSION_SECRET", "test-session-secret")
		setDefault("CHAT_PASSPHRASE", "test-passphrase")
	})
}

func setDefault(key, value string) {
	if os.Getenv(key) == "" {
		_ = os.Setenv(key, value)
	}
}

func init() {
	Enable()
}
