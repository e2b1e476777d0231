// Package testutil provides shared helpers for the integration tests: a
// thread-safe log buffer, a definition-file writer, and a harness that boots
// the app the way main does, recovering startup panics into errors.
package testutil

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/voicekb/voicekb/internal/app"
)

// SafeBuffer is a thread-safe buffer for capturing log output in tests.
type SafeBuffer struct {
	b  bytes.Buffer
	mu sync.Mutex
}

// Write implements the io.Writer interface for SafeBuffer.
func (b *SafeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.Write(p)
}

// String implements the fmt.Stringer interface for SafeBuffer.
func (b *SafeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.String()
}

// HarnessResult holds the outcomes of booting the app in a test.
type HarnessResult struct {
	LogOutput string
	Err       error
	App       *app.App
	// Out is the writer the app logs to and writes command output into.
	// Inspect it after running a command on App.
	Out *SafeBuffer
}

// WriteDefinition writes the given definition files (relative path -> HCL
// content) into a fresh temp directory and returns the directory path.
func WriteDefinition(t *testing.T, files map[string]string) string {
	t.Helper()

	tmpDir := t.TempDir()
	for name, content := range files {
		filePath := filepath.Join(tmpDir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(filePath), 0755))
		require.NoError(t, os.WriteFile(filePath, []byte(content), 0644))
	}
	return tmpDir
}

// BootApp provides a standardized harness for booting the application from a
// set of definition files. Startup panics are recovered and surfaced as the
// result's Err, mirroring what main does.
func BootApp(t *testing.T, files map[string]string, overrides func(*app.Config)) *HarnessResult {
	t.Helper()

	dir := WriteDefinition(t, files)

	appConfig, err := app.NewConfig(app.Config{
		Command:        app.CommandValidate,
		DefinitionPath: dir,
		Format:         "json",
		LogLevel:       "debug",
		LogFormat:      "text",
	})
	require.NoError(t, err)
	if overrides != nil {
		overrides(appConfig)
	}

	logBuffer := &SafeBuffer{}

	var testApp *app.App
	var panicErr any
	func() {
		defer func() {
			if r := recover(); r != nil {
				panicErr = r
			}
		}()
		testApp = app.NewApp(logBuffer, appConfig)
	}()

	if panicErr != nil {
		return &HarnessResult{
			LogOutput: logBuffer.String(),
			Err:       fmt.Errorf("application startup panicked | %v", panicErr),
			Out:       logBuffer,
		}
	}

	return &HarnessResult{
		LogOutput: logBuffer.String(),
		App:       testApp,
		Out:       logBuffer,
	}
}

// MinimalDefinition is the smallest valid deployment definition: a stack name
// and an explicit deletion policy. Everything else is defaulted.
const MinimalDefinition = `
stack {
  name = "voicekb-test"
}

storage {
  deletion_policy = "retain"
}
`
