package tools

import (
	"fmt"
	"strconv"

	"github.com/dmriflow/dmriflow/internal/pipeline"
)

// MRConvert converts an image format, optionally forcing strides.
func MRConvert(inField, outName, strides string) *pipeline.ToolSpec {
	args := []string{"{" + inField + "}", "{out_file}"}
	if strides != "" {
		args = append(args, "-strides", strides)
	}
	return &pipeline.ToolSpec{
		Binary:  "mrconvert",
		Args:    args,
		Outputs: map[string]string{"out_file": outName},
	}
}

// Generate5ttHSVS builds a hybrid surface/volume 5-tissue-type segmentation
// from a FreeSurfer subject directory with 5ttgen.
func Generate5ttHSVS(fsSubjectDir string, nthreads int) *pipeline.ToolSpec {
	args := []string{
		"hsvs",
		fsSubjectDir,
		"{out_file}",
	}
	if nthreads > 0 {
		args = append(args, "-nthreads", strconv.Itoa(nthreads))
	}
	return &pipeline.ToolSpec{
		Binary:   "5ttgen",
		Args:     args,
		Outputs:  map[string]string{"out_file": "5tt_hsvs.nii.gz"},
		NThreads: nthreads,
	}
}

// MRCat concatenates n images along the volume axis. Inputs are the fields
// in_file_0 through in_file_{n-1}.
func MRCat(n int, outName string) *pipeline.ToolSpec {
	args := []string{"-axis", "3"}
	for i := 0; i < n; i++ {
		args = append(args, fmt.Sprintf("{in_file_%d}", i))
	}
	args = append(args, "{out_file}")
	return &pipeline.ToolSpec{
		Binary:  "mrcat",
		Args:    args,
		Outputs: map[string]string{"out_file": outName},
	}
}

// TransformConvert converts an ITK text transform into MRtrix format.
func TransformConvert() *pipeline.ToolSpec {
	return &pipeline.ToolSpec{
		Binary: "transformconvert",
		Args: []string{
			"{in_transform}",
			"itk_import",
			"{out_transform}",
		},
		Outputs: map[string]string{"out_transform": "transform_mrtrix.txt"},
	}
}

// TransformHeader applies a linear transform to an image header without
// resampling, preserving voxel values exactly.
func TransformHeader(inField, outName string) *pipeline.ToolSpec {
	return &pipeline.ToolSpec{
		Binary: "mrtransform",
		Args: []string{
			"-linear", "{transform_file}",
			"-replace",
			"{" + inField + "}",
			"{out_image}",
		},
		Outputs: map[string]string{"out_image": outName},
	}
}

// ExtractB0s pulls the b=0 volumes out of a DWI series with dwiextract.
// The threshold is passed through MRtrix's BZeroThreshold config key so the
// same cutoff applies as in the rest of the pipeline.
func ExtractB0s(b0Threshold int) *pipeline.ToolSpec {
	return &pipeline.ToolSpec{
		Binary: "dwiextract",
		Args: []string{
			"-bzero",
			"-fslgrad", "{bvec_file}", "{bval_file}",
			"-config", "BZeroThreshold", fmt.Sprintf("%d", b0Threshold),
			"{dwi_file}",
			"{b0_series}",
		},
		Outputs: map[string]string{"b0_series": "b0_series.nii.gz"},
	}
}
