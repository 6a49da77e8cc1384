package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadScenario_ValidFile(t *testing.T) {
	sc, err := LoadScenario("testdata/suites/add.yaml")
	require.NoError(t, err)

	assert.Equal(t, "add", sc.Name)
	assert.Equal(t, "add/Add.hack", sc.Image)
	assert.Equal(t, 100, sc.MaxSteps)
	assert.Equal(t, filepath.Join("testdata", "suites"), sc.Dir)
	require.Len(t, sc.Assertions, 7)
	assert.Equal(t, AssertOutcome, sc.Assertions[0].Type)
	require.NotNil(t, sc.Assertions[2].Value)
	assert.Equal(t, 8, *sc.Assertions[2].Value)
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario("/nonexistent/scenario.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestLoadScenario_MissingImage(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "s.yaml")
	content := `
name: s
description: "missing image"
image: Nope.hack
assertions:
  - type: outcome
    outcome: completed
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "image not found")
}

// TestParseScenario_Invalid tests the validation messages for malformed
// scenarios.
func TestParseScenario_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "unknown field",
			content: "name: s\ndescription: d\nscript: \"ticktock;\"\nassertion: []\n",
			wantErr: "failed to parse YAML",
		},
		{
			name:    "missing name",
			content: "description: d\nscript: \"ticktock;\"\nassertions: [{type: no_comparison}]\n",
			wantErr: "name is required",
		},
		{
			name:    "missing description",
			content: "name: s\nscript: \"ticktock;\"\nassertions: [{type: no_comparison}]\n",
			wantErr: "description is required",
		},
		{
			name:    "nothing to run",
			content: "name: s\ndescription: d\nassertions: [{type: no_comparison}]\n",
			wantErr: "one of image, test or script is required",
		},
		{
			name:    "test and script",
			content: "name: s\ndescription: d\ntest: A.tst\nscript: \"ticktock;\"\nassertions: [{type: no_comparison}]\n",
			wantErr: "mutually exclusive",
		},
		{
			name:    "compare without script",
			content: "name: s\ndescription: d\nimage: A.hack\ncompare: x\nassertions: [{type: no_comparison}]\n",
			wantErr: "compare requires script",
		},
		{
			name:    "no assertions",
			content: "name: s\ndescription: d\nscript: \"ticktock;\"\n",
			wantErr: "assertions list is required",
		},
		{
			name:    "unknown assertion",
			content: "name: s\ndescription: d\nscript: \"ticktock;\"\nassertions: [{type: vibes}]\n",
			wantErr: `unknown assertion type "vibes"`,
		},
		{
			name:    "bad register",
			content: "name: s\ndescription: d\nscript: \"ticktock;\"\nassertions: [{type: register, register: X, value: 1}]\n",
			wantErr: "register must be A, D or PC",
		},
		{
			name:    "ram without address",
			content: "name: s\ndescription: d\nscript: \"ticktock;\"\nassertions: [{type: ram, value: 1}]\n",
			wantErr: "address and value are required",
		},
		{
			name:    "negative count",
			content: "name: s\ndescription: d\nscript: \"ticktock;\"\nassertions: [{type: event_count, event: update, count: -1}]\n",
			wantErr: "count must be non-negative",
		},
		{
			name:    "empty journal assertion",
			content: "name: s\ndescription: d\nscript: \"ticktock;\"\nassertions: [{type: journal}]\n",
			wantErr: "count or outcome is required",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
