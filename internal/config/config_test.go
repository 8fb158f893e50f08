package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "qsiprep", cfg.Anatomical.InputType)
	assert.Equal(t, 100, cfg.SDC.B0Threshold)
	assert.Equal(t, "localhost:7233", cfg.Temporal.HostPort)
	assert.Equal(t, "dmriflow", cfg.Temporal.TaskQueue)
	assert.Equal(t, 2112, cfg.Observability.Metrics.Port)
	assert.True(t, cfg.Observability.Metrics.Enabled)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dmriflow.yaml")
	content := `
input_dir: /data/qsiprep
output_dir: /data/derivatives
subjects: ["01", "02"]
anatomical:
  input_type: hcpya
  extras: [mrtrix_5tt_hsvs]
  atlases: [schaefer100]
  atlas_dir: /data/atlases
sdc:
  b0_threshold: 50
temporal:
  host_port: temporal:7233
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/data/qsiprep", cfg.InputDir)
	assert.Equal(t, []string{"01", "02"}, cfg.Subjects)
	assert.Equal(t, "hcpya", cfg.Anatomical.InputType)
	assert.Equal(t, []string{"mrtrix_5tt_hsvs"}, cfg.Anatomical.Extras)
	assert.Equal(t, 50, cfg.SDC.B0Threshold)
	assert.Equal(t, "temporal:7233", cfg.Temporal.HostPort)
	// Untouched values keep their defaults.
	assert.Equal(t, "default", cfg.Temporal.Namespace)
}

func TestLoadRejectsUnknownInputType(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dmriflow.yaml")
	require.NoError(t, os.WriteFile(path, []byte("anatomical:\n  input_type: fsl\n"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "input_type")
}

func TestValidateCrossingROIsRequiredWithTransform(t *testing.T) {
	cfg := &Config{
		Anatomical: AnatomicalConfig{
			InputType:         "qsiprep",
			NeedsT1wTransform: true,
		},
		SDC: SDCConfig{B0Threshold: 100},
	}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "crossing_rois_path")

	cfg.Anatomical.CrossingROIsPath = "/data/rois/odf_rois.nii.gz"
	assert.NoError(t, cfg.Validate())
}

func TestValidateAtlasDirRequired(t *testing.T) {
	cfg := &Config{
		Anatomical: AnatomicalConfig{
			InputType: "qsiprep",
			Atlases:   []string{"schaefer100"},
		},
		SDC: SDCConfig{B0Threshold: 100},
	}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "atlas_dir")
}
