// Package testing switches the binaries into test mode when imported by tests.
package testing

import (
	"os"
	"sync"
)

var once sync.Once

func ensureTestMode() {
	once.Do(func() {
		_ = os.Setenv("USERBOARD_TEST_MODE", "1")
		if os.Getenv("DIRECTORY_BASE_URL") == "" {
			_ = os.Setenv("DIRECTORY_BASE_URL", "http://127.0.0.1:0")
		}
	})
}

func init() {
	ensureTestMode()
}
