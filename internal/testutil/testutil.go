// Package testutil holds fixtures shared by package and integration tests.
package testutil

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"
)

// GetProjectRoot walks up from this file until it finds go.mod.
func GetProjectRoot() (string, error) {
	_, filename, _, ok := runtime.Caller(0)
	if !ok {
		return "", errors.New("failed to get caller information")
	}
	dir := filepath.Dir(filename)
	for {
		if FileExists(filepath.Join(dir, "go.mod")) {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", fmt.Errorf("could not find go.mod file starting from %s", filepath.Dir(filename))
}

// ModelsDir returns TIRESIAS_MODELS_DIR or <root>/models.
func ModelsDir(t *testing.T) string {
	t.Helper()
	if env := os.Getenv("TIRESIAS_MODELS_DIR"); env != "" {
		return env
	}
	root, err := GetProjectRoot()
	require.NoError(t, err, "Failed to find project root")
	return filepath.Join(root, "models")
}

// RequireModel skips the test when the model file under ModelsDir is absent.
func RequireModel(t *testing.T, rel string) string {
	t.Helper()
	p := filepath.Join(ModelsDir(t), rel)
	if !FileExists(p) {
		t.Skipf("model %s not available", p)
	}
	return p
}

// EnsureDir creates a directory if it doesn't exist.
func EnsureDir(path string) error {
	return os.MkdirAll(path, 0o750)
}

// FileExists checks if a file exists.
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// DirExists checks if a directory exists.
func DirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
