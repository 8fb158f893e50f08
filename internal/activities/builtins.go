package activities

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/dmriflow/dmriflow/internal/nifti"
	"github.com/dmriflow/dmriflow/internal/tools"
)

// runBuiltin dispatches the small in-process computations that ride along in
// the graph as tool nodes. Everything voxel-heavy still goes to external
// binaries through the runner.
func (a *Activities) runBuiltin(ctx context.Context, in *RunToolNodeInput, workDir string) (map[string]string, error) {
	switch in.Tool.Binary {
	case "builtin:voxel_size_chooser":
		return a.chooseVoxelSize(in)
	case "builtin:warp_atlases":
		return a.warpAtlases(ctx, in, workDir)
	case "builtin:gather_drbuddi_inputs":
		return a.gatherDRBUDDIInputs(ctx, in, workDir)
	case "builtin:aggregate_drbuddi":
		return a.aggregateDRBUDDI(ctx, in, workDir)
	default:
		return nil, fmt.Errorf("unknown builtin %q", in.Tool.Binary)
	}
}

// chooseVoxelSize picks the isotropic output voxel size: the configured
// resolution when one was requested, otherwise the smallest spatial voxel
// dimension of the input image so no resolution is thrown away.
func (a *Activities) chooseVoxelSize(in *RunToolNodeInput) (map[string]string, error) {
	if len(in.Tool.Args) >= 2 {
		if configured, err := strconv.ParseFloat(in.Tool.Args[len(in.Tool.Args)-1], 64); err == nil && configured > 0 {
			return map[string]string{"voxel_size": fmt.Sprintf("%.2f", configured)}, nil
		}
	}

	inputImage := in.Inputs["input_image"]
	if inputImage == "" {
		return nil, fmt.Errorf("voxel size chooser has no input image")
	}
	hdr, err := nifti.ReadHeaderFile(inputImage)
	if err != nil {
		return nil, err
	}
	sizes := hdr.VoxelSizes()
	smallest := sizes[0]
	for _, s := range sizes[1:] {
		if s > 0 && s < smallest {
			smallest = s
		}
	}
	if smallest <= 0 {
		return nil, fmt.Errorf("image %s reports non-positive voxel sizes", inputImage)
	}
	return map[string]string{"voxel_size": fmt.Sprintf("%.2f", smallest)}, nil
}

// atlasConfig is one atlas's entry in the atlas_configs catalog consumed by
// connectivity workflows.
type atlasConfig struct {
	Name              string `json:"name"`
	DWIResolutionFile string `json:"dwi_resolution_file"`
	DWIResolutionMif  string `json:"dwi_resolution_mif"`
	MRtrixLUT         string `json:"mrtrix_lut"`
	OrigLUT           string `json:"orig_lut"`
}

// warpAtlases maps each requested parcellation from template space into the
// DWI grid (multi-label interpolation keeps label identities), converts it to
// MRtrix format, and copies the lookup tables alongside.
func (a *Activities) warpAtlases(ctx context.Context, in *RunToolNodeInput, workDir string) (map[string]string, error) {
	var atlasDir string
	var names []string
	args := in.Tool.Args
	for i := 0; i < len(args); i++ {
		switch {
		case args[i] == "--atlas-dir" && i+1 < len(args):
			atlasDir = args[i+1]
			i++
		case strings.HasPrefix(args[i], "{"):
			// field placeholders resolve through Inputs, not args
		default:
			names = append(names, args[i])
		}
	}
	transform := in.Inputs["forward_transform"]
	reference := in.Inputs["reference_image"]
	if transform == "" || reference == "" {
		return nil, fmt.Errorf("atlas warp is missing its transform or reference image")
	}

	outputs := make(map[string]string, 4*len(names)+1)
	configs := make(map[string]atlasConfig, len(names))
	for _, atlas := range names {
		srcImage := filepath.Join(atlasDir, "atlas-"+atlas+"_dseg.nii.gz")
		if _, err := os.Stat(srcImage); err != nil {
			return nil, fmt.Errorf("atlas %q not found under %s: %w", atlas, atlasDir, err)
		}

		warped := atlas + "_dseg.nii.gz"
		spec := tools.ApplyTransforms(tools.ApplyTransformsSpec{
			Dimension:      3,
			Interpolation:  tools.InterpMultiLabel,
			InputField:     "atlas_image",
			ReferenceField: "reference_image",
			Transforms:     []string{"forward_transform"},
			OutputName:     warped,
		})
		if _, err := a.runner.Run(ctx, spec, map[string]string{
			"atlas_image":       srcImage,
			"reference_image":   reference,
			"forward_transform": transform,
		}, workDir); err != nil {
			return nil, fmt.Errorf("warp atlas %q: %w", atlas, err)
		}

		mif := atlas + "_dseg.mif.gz"
		convert := tools.MRConvert("in_file", mif, "")
		if _, err := a.runner.Run(ctx, convert, map[string]string{
			"in_file": filepath.Join(workDir, warped),
		}, workDir); err != nil {
			return nil, fmt.Errorf("convert atlas %q: %w", atlas, err)
		}

		mrtrixLUT := atlas + "_mrtrix_lut.txt"
		origLUT := atlas + "_orig_lut.txt"
		if err := copyFile(filepath.Join(atlasDir, "atlas-"+atlas+"_dseg_mrtrix.txt"), filepath.Join(workDir, mrtrixLUT)); err != nil {
			return nil, fmt.Errorf("atlas %q mrtrix lut: %w", atlas, err)
		}
		if err := copyFile(filepath.Join(atlasDir, "atlas-"+atlas+"_dseg.txt"), filepath.Join(workDir, origLUT)); err != nil {
			return nil, fmt.Errorf("atlas %q orig lut: %w", atlas, err)
		}

		configs[atlas] = atlasConfig{
			Name:              atlas,
			DWIResolutionFile: filepath.Join(workDir, warped),
			DWIResolutionMif:  filepath.Join(workDir, mif),
			MRtrixLUT:         filepath.Join(workDir, mrtrixLUT),
			OrigLUT:           filepath.Join(workDir, origLUT),
		}
		outputs[atlas+"_dwi_resolution_file"] = configs[atlas].DWIResolutionFile
		outputs[atlas+"_dwi_resolution_mif"] = configs[atlas].DWIResolutionMif
		outputs[atlas+"_mrtrix_lut"] = configs[atlas].MRtrixLUT
		outputs[atlas+"_orig_lut"] = configs[atlas].OrigLUT
	}

	catalog := filepath.Join(workDir, "atlas_configs.json")
	payload, err := json.MarshalIndent(configs, "", "  ")
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(catalog, payload, 0o644); err != nil {
		return nil, fmt.Errorf("write atlas catalog: %w", err)
	}
	outputs["atlas_configs"] = catalog

	a.logger.Info("Warped atlases into DWI space",
		zap.Strings("atlases", names),
		zap.String("catalog", catalog),
	)
	return outputs, nil
}
