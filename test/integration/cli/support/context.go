// Package support holds the godog step definitions of the CLI feature suite.
package support

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// TestContext holds the state of one scenario.
type TestContext struct {
	// Command execution state
	LastCommand  string
	LastOutput   string
	LastStderr   string
	LastError    error
	LastExitCode int

	// Test environment
	TempDir   string
	prevDir   string
	Shapefile string
	envBackup map[string]*string
	engine    *scriptedEngine

	// HTTP state
	Server             *HTTPTestServer
	LastHTTPStatusCode int
	LastHTTPResponse   []byte
	LastHTTPHeaders    map[string]string
}

// NewTestContext creates a scenario directory and moves into it, so relative
// paths in the features resolve inside it.
func NewTestContext() (*TestContext, error) {
	prev, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get working directory: %w", err)
	}
	tempDir, err := os.MkdirTemp("", "tiresias-test-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}
	if err := os.Chdir(tempDir); err != nil {
		return nil, err
	}
	ctx := &TestContext{
		TempDir:   tempDir,
		prevDir:   prev,
		envBackup: map[string]*string{},
	}
	// A models directory that holds nothing keeps real models out of the suite.
	if err := ctx.SetEnv("TIRESIAS_MODELS_DIR", filepath.Join(tempDir, "models")); err != nil {
		return nil, err
	}
	return ctx, nil
}

// SetEnv sets a variable for the rest of the scenario.
func (testCtx *TestContext) SetEnv(name, value string) error {
	if _, saved := testCtx.envBackup[name]; !saved {
		if old, ok := os.LookupEnv(name); ok {
			testCtx.envBackup[name] = &old
		} else {
			testCtx.envBackup[name] = nil
		}
	}
	return os.Setenv(name, value)
}

// Cleanup stops the server, restores the environment and removes the
// scenario directory.
func (testCtx *TestContext) Cleanup() error {
	var errs []error
	if testCtx.Server != nil {
		testCtx.Server.Close()
		testCtx.Server = nil
	}
	for name, old := range testCtx.envBackup {
		if old == nil {
			errs = append(errs, os.Unsetenv(name))
		} else {
			errs = append(errs, os.Setenv(name, *old))
		}
	}
	errs = append(errs, os.Chdir(testCtx.prevDir))
	if err := os.RemoveAll(testCtx.TempDir); err != nil {
		errs = append(errs, fmt.Errorf("failed to remove temp directory %s: %w", testCtx.TempDir, err))
	}
	return errors.Join(errs...)
}
