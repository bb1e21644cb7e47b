package testing

import (
	"os"
	"sync"
	stdtesting "testing"
)

var once sync.Once

// ensureTestMode keeps mains from dialing Redis or Postgres under go test.
func ensureTestMode() {
	once.Do(func() {
		_ = os.Setenv("BIKETRACK_TEST_MODE", "1")
		if os.Getenv("SESSION_SECRET") == "" {
			_ = os.Setenv("SESSION_SECRET", "test-session-secret")
		}
		if os.Getenv("CSRF_SECRET") == "" {
			_ = os.Setenv("CSRF_SECRET", "test-csrf-secret")
		}
		if os.Getenv("STORE_CONFIG_ENDPOINT") == "" {
			_ = os.Setenv("STORE_CONFIG_ENDPOINT", "http://127.0.0.1:0/config")
		}
	})
}

func init() {
	ensureTestMode()
}

func TestMain(m *stdtesting.M) {
	ensureTestMode()
	os.Exit(m.Run())
}
