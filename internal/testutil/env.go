// Package testutil holds helpers and fakes shared by multicloud tests.
package testutil

import (
	"os"
	"testing"
)

// SetupTestEnv sets environment variables for the duration of a test.
//
// The original environment is restored with t.Cleanup, even when the test
// fails. Tests that call it must not run in parallel.
//
//	SetupTestEnv(t, map[string]string{
//	    "MULTICLOUD_BOOTSTRAP_PASSWORD": "hunter22",
//	})
func SetupTestEnv(t *testing.T, vars map[string]string) {
	t.Helper()

	original := make(map[string]string)
	unset := make([]string, 0)

	for key, value := range vars {
		if orig, ok := os.LookupEnv(key); ok {
			original[key] = orig
		} else {
			unset = append(unset, key)
		}

		if err := os.Setenv(key, value); err != nil {
			t.Fatalf("Failed to set environment variable %s: %v", key, err)
		}
	}

	t.Cleanup(func() {
		for key, value := range original {
			if err := os.Setenv(key, value); err != nil {
				t.Errorf("Failed to restore environment variable %s: %v", key, err)
			}
		}
		for _, key := range unset {
			if err := os.Unsetenv(key); err != nil {
				t.Errorf("Failed to unset environment variable %s: %v", key, err)
			}
		}
	})
}

// UnsetTestEnv removes environment variables for the duration of a test.
func UnsetTestEnv(t *testing.T, names ...string) {
	t.Helper()

	original := make(map[string]string)
	for _, name := range names {
		if orig, ok := os.LookupEnv(name); ok {
			original[name] = orig
			if err := os.Unsetenv(name); err != nil {
				t.Fatalf("Failed to unset environment variable %s: %v", name, err)
			}
		}
	}

	t.Cleanup(func() {
		for name, value := range original {
			_ = os.Setenv(name, value)
		}
	})
}
