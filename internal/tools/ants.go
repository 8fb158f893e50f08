// Package tools builds command specifications for the external scientific
// binaries the pipelines delegate to. Builders only assemble arguments;
// execution happens inside activities.
package tools

import (
	"strconv"

	"github.com/dmriflow/dmriflow/internal/pipeline"
)

// Interpolation modes accepted by antsApplyTransforms.
const (
	InterpNearestNeighbor = "NearestNeighbor"
	InterpMultiLabel      = "MultiLabel"
	InterpLinear          = "Linear"
)

// ApplyTransformsSpec configures an antsApplyTransforms invocation.
type ApplyTransformsSpec struct {
	Dimension     int
	Interpolation string
	// InputField and ReferenceField name the graph fields supplying the
	// moving image and the reference grid.
	InputField     string
	ReferenceField string
	// Transforms are either field placeholders or the literal "identity".
	Transforms []string
	OutputName string
}

// ApplyTransforms renders the spec as a graph ToolSpec.
func ApplyTransforms(s ApplyTransformsSpec) *pipeline.ToolSpec {
	dim := s.Dimension
	if dim == 0 {
		dim = 3
	}
	args := []string{
		"--dimensionality", strconv.Itoa(dim),
		"--input", "{" + s.InputField + "}",
		"--reference-image", "{" + s.ReferenceField + "}",
		"--output", "{output_image}",
		"--interpolation", s.Interpolation,
	}
	for _, t := range s.Transforms {
		if t == "identity" {
			args = append(args, "--transform", "identity")
			continue
		}
		args = append(args, "--transform", "{"+t+"}")
	}
	return &pipeline.ToolSpec{
		Binary:  "antsApplyTransforms",
		Args:    args,
		Outputs: map[string]string{"output_image": s.OutputName},
	}
}

// Registration renders an antsRegistration invocation from a preset. The
// preset supplies the staged metric/convergence arguments; fixed, moving,
// and optional fixed-mask images come from graph fields.
func Registration(preset *pipeline.ToolPreset, useFixedMask bool) *pipeline.ToolSpec {
	args := append([]string(nil), preset.Args...)
	args = append(args,
		"--output", "[{output_prefix},{warped_image}]",
	)
	if useFixedMask {
		args = append(args, "--masks", "[{fixed_image_mask},NULL]")
	}
	return &pipeline.ToolSpec{
		Binary: preset.Binary,
		Args:   args,
		Outputs: map[string]string{
			"output_prefix":       "transform",
			"warped_image":        "warped.nii.gz",
			"forward_transform":   "transform0GenericAffine.mat",
			"composite_transform": "transformComposite.h5",
		},
	}
}

// RegistrationPresetName is the preset looked up in the preset directory to
// override the anatomical registration parameters.
const RegistrationPresetName = "freesurfer_to_qsiprep"

// DefaultRegistrationPreset is the staged rigid+affine registration used to
// align a FreeSurfer brain with a preprocessed anatomical reference.
func DefaultRegistrationPreset() *pipeline.ToolPreset {
	return &pipeline.ToolPreset{
		Name:   RegistrationPresetName,
		Binary: "antsRegistration",
		Args: []string{
			"--dimensionality", "3",
			"--float", "0",
			"--interpolation", "BSpline",
			"--collapse-output-transforms", "1",
			"--write-composite-transform", "1",
			"--initial-moving-transform", "[{fixed_image},{moving_image},1]",
			"--transform", "Rigid[0.1]",
			"--metric", "MI[{fixed_image},{moving_image},1,32,Regular,0.25]",
			"--convergence", "[1000x500x250x100,1e-6,10]",
			"--shrink-factors", "8x4x2x1",
			"--smoothing-sigmas", "3x2x1x0vox",
			"--transform", "Affine[0.1]",
			"--metric", "MI[{fixed_image},{moving_image},1,32,Regular,0.25]",
			"--convergence", "[1000x500x250x100,1e-6,10]",
			"--shrink-factors", "8x4x2x1",
			"--smoothing-sigmas", "3x2x1x0vox",
		},
	}
}

// ConvertTransformFile converts an ANTs binary .mat transform to the text
// format transformconvert understands.
func ConvertTransformFile(dimension int) *pipeline.ToolSpec {
	return &pipeline.ToolSpec{
		Binary: "ConvertTransformFile",
		Args: []string{
			strconv.Itoa(dimension),
			"{in_transform}",
			"{out_transform}",
		},
		Outputs: map[string]string{"out_transform": "transform.txt"},
	}
}
