package pipeline

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadPreset(t *testing.T) {
	preset, err := LoadPreset(strings.NewReader(`
name: rigid_affine
binary: antsRegistration
args: ["--dimensionality", "3", "--transform", "Rigid[0.2]"]
`))
	require.NoError(t, err)
	assert.Equal(t, "rigid_affine", preset.Name)
	assert.Equal(t, "antsRegistration", preset.Binary)
	assert.Equal(t, []string{"--dimensionality", "3", "--transform", "Rigid[0.2]"}, preset.Args)
}

func TestLoadPresetRejectsUnknownFields(t *testing.T) {
	_, err := LoadPreset(strings.NewReader("name: bad\nthreads: 4\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "threads")
}

func TestLoadPresetFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "preset.yaml")
	require.NoError(t, os.WriteFile(path, []byte("name: from_disk\nbinary: antsRegistration\n"), 0o644))

	preset, err := LoadPresetFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "from_disk", preset.Name)

	_, err = LoadPresetFromFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
