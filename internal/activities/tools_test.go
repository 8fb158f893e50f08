package activities

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/testsuite"

	"github.com/dmriflow/dmriflow/internal/pipeline"
)

func TestRunToolNodeExecutesBinary(t *testing.T) {
	workDir := t.TempDir()
	a := testActivities(t, t.TempDir())

	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestActivityEnvironment()
	env.RegisterActivity(a.RunToolNode)

	future, err := env.ExecuteActivity(a.RunToolNode, RunToolNodeInput{
		GraphName: "recon_anatomical_wf",
		NodeID:    "echo_node",
		Tool: pipeline.ToolSpec{
			Binary:  "sh",
			Args:    []string{"-c", "echo ok > {out_file}"},
			Outputs: map[string]string{"out_file": "result.txt"},
		},
		WorkDir: workDir,
	})
	require.NoError(t, err)

	var result RunToolNodeResult
	require.NoError(t, future.Get(&result))

	expected := filepath.Join(workDir, "recon_anatomical_wf", "echo_node", "result.txt")
	assert.Equal(t, expected, result.Outputs["out_file"])
	data, err := os.ReadFile(expected)
	require.NoError(t, err)
	assert.Equal(t, "ok\n", string(data))
}

func TestRunToolNodeDispatchesBuiltins(t *testing.T) {
	a := testActivities(t, t.TempDir())

	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestActivityEnvironment()
	env.RegisterActivity(a.RunToolNode)

	future, err := env.ExecuteActivity(a.RunToolNode, RunToolNodeInput{
		GraphName: "recon_anatomical_wf",
		NodeID:    "voxel_size_chooser",
		Tool: pipeline.ToolSpec{
			Binary: "builtin:voxel_size_chooser",
			Args:   []string{"{input_image}", "2.00"},
		},
		WorkDir: t.TempDir(),
	})
	require.NoError(t, err)

	var result RunToolNodeResult
	require.NoError(t, future.Get(&result))
	assert.Equal(t, "2.00", result.Outputs["voxel_size"])
}

func TestRunSinkNodeNamesDerivative(t *testing.T) {
	outputDir := t.TempDir()
	a := testActivities(t, outputDir)

	inFile := filepath.Join(t.TempDir(), "warped.nii.gz")
	require.NoError(t, os.WriteFile(inFile, []byte("mask"), 0o644))

	result, err := a.RunSinkNode(context.Background(), RunSinkNodeInput{
		GraphName:  "sub01_dwi_anatomical_wf",
		NodeID:     "ds_qsiprep_5tt_hsvs",
		Sink:       pipeline.SinkSpec{Atlas: "hsvs", Space: "T1w", Suffix: "dseg", Compress: true},
		InFile:     inFile,
		SourceFile: "sub-01_ses-1_space-T1w_desc-preproc_dwi.nii.gz",
	})
	require.NoError(t, err)

	expected := filepath.Join(outputDir, "sub-01", "anat",
		"sub-01_ses-1_space-T1w_atlas-hsvs_dseg.nii.gz")
	assert.Equal(t, expected, result.OutFile)
	data, err := os.ReadFile(expected)
	require.NoError(t, err)
	assert.Equal(t, "mask", string(data))
}

func TestRunSinkNodeWithoutSourceFile(t *testing.T) {
	outputDir := t.TempDir()
	a := testActivities(t, outputDir)

	inFile := filepath.Join(t.TempDir(), "gather_report.txt")
	require.NoError(t, os.WriteFile(inFile, []byte("report"), 0o644))

	result, err := a.RunSinkNode(context.Background(), RunSinkNodeInput{
		GraphName: "drbuddi_sdc_wf",
		NodeID:    "drbuddi_summary",
		Sink:      pipeline.SinkSpec{Desc: "drbuddi", Suffix: "report", Extension: ".txt"},
		InFile:    inFile,
	})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(outputDir, "drbuddi_sdc_wf", "desc-drbuddi_report.txt"), result.OutFile)
}

func TestRunSinkNodeRequiresInput(t *testing.T) {
	a := testActivities(t, t.TempDir())
	_, err := a.RunSinkNode(context.Background(), RunSinkNodeInput{NodeID: "ds_mask"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no input file")
}
