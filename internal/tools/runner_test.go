package tools

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/dmriflow/dmriflow/internal/pipeline"
)

func TestRenderArgs(t *testing.T) {
	spec := &pipeline.ToolSpec{
		Binary:  "3dAutomask",
		Args:    []string{"-prefix", "{out_file}", "{in_file}"},
		Outputs: map[string]string{"out_file": "automask.nii.gz"},
	}
	inputs := map[string]string{"in_file": "/data/b0.nii.gz"}

	args, outputs, err := RenderArgs(spec, inputs, "/work")
	require.NoError(t, err)
	assert.Equal(t, []string{"-prefix", "/work/automask.nii.gz", "/data/b0.nii.gz"}, args)
	assert.Equal(t, map[string]string{"out_file": "/work/automask.nii.gz"}, outputs)
}

func TestRenderArgsUnboundField(t *testing.T) {
	spec := &pipeline.ToolSpec{Binary: "mrconvert", Args: []string{"{in_file}", "{out_file}"}}

	_, _, err := RenderArgs(spec, nil, "/work")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unbound field "in_file"`)
}

func TestRenderArgsInputsWinOverOutputs(t *testing.T) {
	// A field bound by an upstream edge overrides the node's own declared
	// output path of the same name.
	spec := &pipeline.ToolSpec{
		Binary:  "tool",
		Args:    []string{"{shared}"},
		Outputs: map[string]string{"shared": "local.nii.gz"},
	}
	args, _, err := RenderArgs(spec, map[string]string{"shared": "/upstream/value"}, "/work")
	require.NoError(t, err)
	assert.Equal(t, []string{"/upstream/value"}, args)
}

func TestRunnerRun(t *testing.T) {
	workDir := t.TempDir()
	spec := &pipeline.ToolSpec{
		Binary:  "sh",
		Args:    []string{"-c", "echo done > {out_file}"},
		Outputs: map[string]string{"out_file": "result.txt"},
	}

	outputs, err := NewRunner(zaptest.NewLogger(t)).Run(context.Background(), spec, nil, workDir)
	require.NoError(t, err)

	data, err := os.ReadFile(outputs["out_file"])
	require.NoError(t, err)
	assert.Equal(t, "done\n", string(data))
	assert.Equal(t, filepath.Join(workDir, "result.txt"), outputs["out_file"])
}

func TestRunnerRunCapturesStderr(t *testing.T) {
	spec := &pipeline.ToolSpec{
		Binary: "sh",
		Args:   []string{"-c", "echo boom >&2; exit 3"},
	}

	_, err := NewRunner(zaptest.NewLogger(t)).Run(context.Background(), spec, nil, t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sh failed")
	assert.Contains(t, err.Error(), "boom")
}

func TestRunnerRunMissingBinary(t *testing.T) {
	spec := &pipeline.ToolSpec{Binary: "no_such_neuroimaging_tool"}

	_, err := NewRunner(zaptest.NewLogger(t)).Run(context.Background(), spec, nil, t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found on PATH")
}
