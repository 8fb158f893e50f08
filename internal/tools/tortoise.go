package tools

import (
	"strconv"

	"github.com/dmriflow/dmriflow/internal/pipeline"
)

// DRBUDDISpec configures a TORTOISE DRBUDDI invocation for susceptibility
// distortion correction using opposing phase-encoding acquisitions.
type DRBUDDISpec struct {
	FieldmapType string // epi, rpe_series, or dwi
	NThreads     int
	// Sloppy trades registration quality for speed, for smoke tests only.
	Sloppy bool
}

// DRBUDDI renders the spec as a graph ToolSpec. Blip-up/blip-down inputs are
// wired from the gather node's outputs.
func DRBUDDI(s DRBUDDISpec) *pipeline.ToolSpec {
	args := []string{
		"-u", "{blip_up_image}",
		"-d", "{blip_down_image}",
		"--up_json", "{blip_up_json}",
		"-o", "{output_prefix}",
	}
	if s.FieldmapType == "rpe_series" || s.FieldmapType == "dwi" {
		// FA-guided multimodal registration needs the b-matrices.
		args = append(args,
			"--up_bmtxt", "{blip_up_bmat}",
			"--down_bmtxt", "{blip_down_bmat}",
		)
	}
	if s.Sloppy {
		args = append(args, "--DRBUDDI_quick", "1")
	}
	if s.NThreads > 0 {
		args = append(args, "--ncores", strconv.Itoa(s.NThreads))
	}
	return &pipeline.ToolSpec{
		Binary: "DRBUDDI",
		Args:   args,
		Outputs: map[string]string{
			"output_prefix":          "drbuddi",
			"undistorted_reference":  "drbuddi_b0_corrected_final.nii.gz",
			"deformation_finv":       "drbuddi_deformation_FINV.nii.gz",
			"deformation_minv":       "drbuddi_deformation_MINV.nii.gz",
			"blip_up_b0_corrected":   "drbuddi_blip_up_b0_corrected.nii.gz",
			"blip_down_b0_corrected": "drbuddi_blip_down_b0_corrected.nii.gz",
		},
		NThreads: s.NThreads,
	}
}
