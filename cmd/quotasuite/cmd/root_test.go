package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectScenariosDefaults(t *testing.T) {
	scenarios, err := collectScenarios("")
	require.NoError(t, err)
	assert.Len(t, scenarios, 3)
}

func TestCollectScenariosNoMatch(t *testing.T) {
	_, err := collectScenarios(filepath.Join(t.TempDir(), "*.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no scenario files match")
}

func TestCollectScenariosFromFiles(t *testing.T) {
	dir := t.TempDir()
	contents := "scenarios:\n  - producerId: p\n    consumerId: c\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.yaml"), []byte(contents), 0o644))

	scenarios, err := collectScenarios(filepath.Join(dir, "*.yaml"))
	require.NoError(t, err)
	require.Len(t, scenarios, 1)
	assert.Equal(t, "p", scenarios[0].ProducerId)
	assert.Equal(t, "c", scenarios[0].ConsumerId)
}
