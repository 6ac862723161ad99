package app

import (
	"os"
	"sync"
	"sync/atomic"
)

// Test mode disables side effects that need live infrastructure.
const testModeEnv = "FILMLEDGER_TEST_MODE"

var testMode struct {
	once sync.Once
	on   atomic.Bool
}

func readTestMode() {
	testMode.on.Store(os.Getenv(testModeEnv) == "1")
}

// InTestMode reports whether runtime side effects should be skipped.
func InTestMode() bool {
	testMode.once.Do(readTestMode)
	return testMode.on.Load()
}

// RefreshTestMode re-reads the environment; tests flip the flag at runtime.
func RefreshTestMode() {
	readTestMode()
}
