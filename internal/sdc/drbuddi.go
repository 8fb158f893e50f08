// Package sdc assembles susceptibility-distortion-correction graphs around
// TORTOISE's DRBUDDI, which estimates the distortion field from b=0 images
// acquired with opposing phase-encoding directions (optionally guided by FA
// maps when two full DWI series are available).
package sdc

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/dmriflow/dmriflow/internal/pipeline"
	"github.com/dmriflow/dmriflow/internal/tools"
)

// FieldmapInfo describes the distortion-estimation inputs of a scan group.
type FieldmapInfo struct {
	// Suffix is the fieldmap flavor: epi, rpe_series, or dwi.
	Suffix    string   `yaml:"suffix"`
	EPI       []string `yaml:"epi,omitempty"`
	RPESeries []string `yaml:"rpe_series,omitempty"`
	DWI       []string `yaml:"dwi,omitempty"`
}

// Files returns the fieldmap images for the declared suffix.
func (f FieldmapInfo) Files() []string {
	switch f.Suffix {
	case "epi":
		return f.EPI
	case "rpe_series":
		return f.RPESeries
	case "dwi":
		return f.DWI
	}
	return nil
}

// ScanGroups is one distortion grouping: the DWI series that share a
// distortion pattern plus the fieldmap that corrects them.
type ScanGroups struct {
	DWISeries            []string     `yaml:"dwi_series"`
	DWISeriesPEDir       string       `yaml:"dwi_series_pedir"`
	FieldmapInfo         FieldmapInfo `yaml:"fieldmap_info"`
	ConcatenatedBIDSName string       `yaml:"concatenated_bids_name"`
}

// Options configures DRBUDDI graph assembly.
type Options struct {
	Name        string
	B0Threshold int
	// RawImageSDC estimates distortion from the unprocessed images rather
	// than the eddy-corrected ones.
	RawImageSDC bool
	NThreads    int
	// Sloppy trades registration quality for speed, for smoke tests only.
	Sloppy bool
}

// InitDRBUDDIGraph assembles the graph that gathers blip-up/blip-down
// inputs, runs DRBUDDI, and aggregates the unwarped outputs. The fieldmap
// type must be epi, rpe_series, or dwi.
func InitDRBUDDIGraph(groups ScanGroups, opts Options, logger *zap.Logger) (*pipeline.Graph, error) {
	name := opts.Name
	if name == "" {
		name = "drbuddi_sdc_wf"
	}

	suffix := groups.FieldmapInfo.Suffix
	switch suffix {
	case "epi", "rpe_series", "dwi":
	default:
		return nil, fmt.Errorf("DRBUDDI workflow requires epi, rpe_series or dwi fieldmaps, got %q", suffix)
	}

	logger.Info("Assembling DRBUDDI distortion correction",
		zap.String("fieldmap_type", suffix),
		zap.String("pe_dir", groups.DWISeriesPEDir),
		zap.Int("fieldmap_files", len(groups.FieldmapInfo.Files())),
	)

	graph := pipeline.NewGraph(name)
	graph.AddNode(pipeline.Node{
		ID:   "inputnode",
		Kind: pipeline.KindIdentity,
		Fields: []string{
			"dwi_files", "bval_files", "bvec_files", "original_files",
			"t1_brain", "t2_brain",
		},
	})
	graph.AddNode(pipeline.Node{
		ID:   "outputnode",
		Kind: pipeline.KindIdentity,
		Fields: []string{
			"b0_ref", "b0_mask", "sdc_warps", "sdc_scaling_images", "report", "method",
		},
	})

	// Splitting the concatenated series into blip-up/blip-down sets and
	// converting gradients to b-matrices happens in the gather activity.
	gatherArgs := []string{
		"--pe-dir", groups.DWISeriesPEDir,
		"--fieldmap-type", suffix,
		"--b0-threshold", fmt.Sprintf("%d", opts.B0Threshold),
	}
	if opts.RawImageSDC {
		gatherArgs = append(gatherArgs, "--raw-image-sdc")
	}
	for _, f := range groups.FieldmapInfo.Files() {
		gatherArgs = append(gatherArgs, "--epi-fmap", f)
	}
	gatherArgs = append(gatherArgs, "{dwi_files}", "{bval_files}", "{bvec_files}")
	graph.AddNode(pipeline.Node{
		ID:   "gather_drbuddi_inputs",
		Kind: pipeline.KindTool,
		Tool: &pipeline.ToolSpec{
			Binary: "builtin:gather_drbuddi_inputs",
			Args:   gatherArgs,
			Outputs: map[string]string{
				"blip_up_image":    "blip_up.nii.gz",
				"blip_up_json":     "blip_up.json",
				"blip_up_bmat":     "blip_up.bmtxt",
				"blip_down_image":  "blip_down.nii.gz",
				"blip_down_bmat":   "blip_down.bmtxt",
				"blip_assignments": "blip_assignments.json",
				"report":           "gather_report.txt",
			},
		},
	})
	graph.Connect("inputnode", "dwi_files", "gather_drbuddi_inputs", "dwi_files")
	graph.Connect("inputnode", "bval_files", "gather_drbuddi_inputs", "bval_files")
	graph.Connect("inputnode", "bvec_files", "gather_drbuddi_inputs", "bvec_files")

	graph.AddNode(pipeline.Node{
		ID:   "drbuddi",
		Kind: pipeline.KindTool,
		Tool: tools.DRBUDDI(tools.DRBUDDISpec{
			FieldmapType: suffix,
			NThreads:     opts.NThreads,
			Sloppy:       opts.Sloppy,
		}),
	})
	for _, field := range []string{"blip_up_image", "blip_up_json", "blip_up_bmat", "blip_down_image", "blip_down_bmat"} {
		graph.Connect("gather_drbuddi_inputs", field, "drbuddi", field)
	}
	// A T2w brain drives the multimodal registration mode when present.
	graph.Connect("inputnode", "t2_brain", "drbuddi", "structural_image")

	graph.AddNode(pipeline.Node{
		ID:   "aggregate_drbuddi",
		Kind: pipeline.KindTool,
		Tool: &pipeline.ToolSpec{
			Binary: "builtin:aggregate_drbuddi",
			Args: []string{
				"--fieldmap-type", suffix,
				"{undistorted_reference}",
				"{deformation_finv}",
				"{deformation_minv}",
				"{blip_assignments}",
			},
			Outputs: map[string]string{
				"sdc_warps":          "sdc_warps.json",
				"sdc_scaling_images": "sdc_scaling_images.json",
				"b0_mask":            "b0_mask.nii.gz",
			},
		},
	})
	graph.Connect("drbuddi", "undistorted_reference", "aggregate_drbuddi", "undistorted_reference")
	graph.Connect("drbuddi", "deformation_finv", "aggregate_drbuddi", "deformation_finv")
	graph.Connect("drbuddi", "deformation_minv", "aggregate_drbuddi", "deformation_minv")
	graph.Connect("gather_drbuddi_inputs", "blip_assignments", "aggregate_drbuddi", "blip_assignments")

	graph.AddNode(pipeline.Node{
		ID:   "drbuddi_summary",
		Kind: pipeline.KindSink,
		Sink: &pipeline.SinkSpec{Desc: "drbuddi", Suffix: "report", Extension: ".txt"},
	})
	graph.Connect("gather_drbuddi_inputs", "report", "drbuddi_summary", "in_file")

	graph.Connect("drbuddi", "undistorted_reference", "outputnode", "b0_ref")
	graph.Connect("aggregate_drbuddi", "b0_mask", "outputnode", "b0_mask")
	graph.Connect("aggregate_drbuddi", "sdc_warps", "outputnode", "sdc_warps")
	graph.Connect("aggregate_drbuddi", "sdc_scaling_images", "outputnode", "sdc_scaling_images")
	graph.Connect("gather_drbuddi_inputs", "report", "outputnode", "report")

	return graph, nil
}

// Method describes the correction strategy for reporting.
func Method(info FieldmapInfo) string {
	return fmt.Sprintf("PEB/PEPOLAR (phase-encoding based / PE-POLARity): %s", info.Suffix)
}
