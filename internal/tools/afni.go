package tools

import (
	"strconv"

	"github.com/dmriflow/dmriflow/internal/pipeline"
)

// Automask runs AFNI 3dAutomask over the field named by inField.
func Automask(inField string) *pipeline.ToolSpec {
	return &pipeline.ToolSpec{
		Binary: "3dAutomask",
		Args: []string{
			"-prefix", "{out_file}",
			"{" + inField + "}",
		},
		Outputs: map[string]string{"out_file": "automask.nii.gz"},
	}
}

// Calc runs AFNI 3dcalc with the given expression over fields a and b.
func Calc(expr, aField, bField, outName string) *pipeline.ToolSpec {
	return &pipeline.ToolSpec{
		Binary: "3dcalc",
		Args: []string{
			"-a", "{" + aField + "}",
			"-b", "{" + bField + "}",
			"-expr", expr,
			"-prefix", "{out_file}",
		},
		Outputs: map[string]string{"out_file": outName},
	}
}

// ResampleOrient reorients an image with AFNI 3dresample.
func ResampleOrient(orientation, inField, outName string) *pipeline.ToolSpec {
	return &pipeline.ToolSpec{
		Binary: "3dresample",
		Args: []string{
			"-orient", orientation,
			"-prefix", "{out_file}",
			"-input", "{" + inField + "}",
		},
		Outputs: map[string]string{"out_file": outName},
	}
}

// ResampleVoxelSize resamples an image to an isotropic voxel size. The size
// is a node input rendered from the voxel-size chooser's output.
func ResampleVoxelSize(inField, outName string) *pipeline.ToolSpec {
	return &pipeline.ToolSpec{
		Binary: "3dresample",
		Args: []string{
			"-dxyz", "{voxel_size}", "{voxel_size}", "{voxel_size}",
			"-prefix", "{out_file}",
			"-input", "{" + inField + "}",
		},
		Outputs: map[string]string{"out_file": outName},
	}
}

// Autobox crops an image to its bounding box with padding via 3dAutobox.
func Autobox(padding int, inField, outName string) *pipeline.ToolSpec {
	return &pipeline.ToolSpec{
		Binary: "3dAutobox",
		Args: []string{
			"-npad", strconv.Itoa(padding),
			"-prefix", "{out_file}",
			"-input", "{" + inField + "}",
		},
		Outputs: map[string]string{"out_file": outName},
	}
}

// WarpDeoblique removes obliquity with AFNI 3dWarp.
func WarpDeoblique(inField, outName string) *pipeline.ToolSpec {
	return &pipeline.ToolSpec{
		Binary: "3dWarp",
		Args: []string{
			"-deoblique",
			"-prefix", "{out_file}",
			"{" + inField + "}",
		},
		Outputs: map[string]string{"out_file": outName},
	}
}
