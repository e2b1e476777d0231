package app_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voicekb/voicekb/internal/app"
	"github.com/voicekb/voicekb/internal/testutil"
)

func TestApp_BootComposesTheStack(t *testing.T) {
	t.Parallel()

	// --- Act ---
	result := testutil.BootApp(t, map[string]string{"main.hcl": testutil.MinimalDefinition}, nil)

	// --- Assert ---
	require.NoError(t, result.Err)
	require.NotNil(t, result.App)
	assert.Len(t, result.App.Builder().EntityIDs(), 9, "the full stack composes at boot")
	assert.Equal(t, "voicekb-test", result.App.Definition().Name)
}

func TestApp_BootFailsOnBrokenDefinition(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	files := map[string]string{"main.hcl": `stack { name = `}

	// --- Act ---
	result := testutil.BootApp(t, files, nil)

	// --- Assert ---
	require.Error(t, result.Err)
	assert.Contains(t, result.Err.Error(), "application startup panicked")
	assert.Contains(t, result.Err.Error(), "failed to parse")
}

func TestApp_BootFailsOnInvalidStack(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	// Syntactically fine, semantically out of range.
	files := map[string]string{"main.hcl": `
		stack {
			name = "voicekb-test"
		}
		storage {
			deletion_policy = "retain"
		}
		chunking {
			overlap = 1.5
		}
	`}

	// --- Act ---
	result := testutil.BootApp(t, files, nil)

	// --- Assert ---
	require.Error(t, result.Err)
	assert.Contains(t, result.Err.Error(), "overlap fraction")
}

func TestApp_RunValidate(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	result := testutil.BootApp(t, map[string]string{"main.hcl": testutil.MinimalDefinition}, nil)
	require.NoError(t, result.Err)

	// --- Act ---
	err := result.App.Run(context.Background())

	// --- Assert ---
	require.NoError(t, err)
	assert.Contains(t, result.Out.String(), `Stack "voicekb-test" is valid: 9 entities, 4 exports.`)
}

func TestApp_RunSynthToFile(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	outPath := filepath.Join(t.TempDir(), "template.json")
	result := testutil.BootApp(t, map[string]string{"main.hcl": testutil.MinimalDefinition}, func(c *app.Config) {
		c.Command = app.CommandSynth
		c.OutPath = outPath
	})
	require.NoError(t, result.Err)

	// --- Act ---
	err := result.App.Run(context.Background())

	// --- Assert ---
	require.NoError(t, err)

	raw, err := os.ReadFile(outPath)
	require.NoError(t, err)

	var tpl struct {
		FormatVersion string                    `json:"AWSTemplateFormatVersion"`
		Resources     map[string]map[string]any `json:"Resources"`
		Outputs       map[string]any            `json:"Outputs"`
	}
	require.NoError(t, json.Unmarshal(raw, &tpl))
	assert.Equal(t, "2010-09-09", tpl.FormatVersion)
	assert.Contains(t, tpl.Resources, "Documents")
	assert.Contains(t, tpl.Resources, "KnowledgeBase")
	assert.Len(t, tpl.Outputs, 4)
}

func TestApp_RunSynthYAMLToOutput(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	result := testutil.BootApp(t, map[string]string{"main.hcl": testutil.MinimalDefinition}, func(c *app.Config) {
		c.Command = app.CommandSynth
		c.Format = "yaml"
		c.LogLevel = "error" // keep the output buffer to just the template
	})
	require.NoError(t, result.Err)

	// --- Act ---
	err := result.App.Run(context.Background())

	// --- Assert ---
	require.NoError(t, err)
	out := result.Out.String()
	assert.Contains(t, out, "AWSTemplateFormatVersion:")
	assert.Contains(t, out, "AWS::Bedrock::KnowledgeBase")
}
