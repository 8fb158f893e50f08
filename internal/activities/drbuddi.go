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

// blipAssignments records which acquired files contributed to each
// phase-encoding polarity, so the aggregate step can hand every original
// series its warp.
type blipAssignments struct {
	BlipUp   []string `json:"blip_up"`
	BlipDown []string `json:"blip_down"`
}

// gatherDRBUDDIInputs prepares the blip-up/blip-down pair DRBUDDI consumes:
// the b=0 volumes of the DWI series on one side, the opposing-polarity
// fieldmap (EPI, reverse-PE series, or full DWI) on the other, plus
// b-matrices and a phase-encoding sidecar.
func (a *Activities) gatherDRBUDDIInputs(ctx context.Context, in *RunToolNodeInput, workDir string) (map[string]string, error) {
	var (
		peDir        string
		fieldmapType string
		b0Threshold  = 100
		fmapFiles    []string
	)
	args := in.Tool.Args
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--pe-dir":
			peDir = args[i+1]
			i++
		case "--fieldmap-type":
			fieldmapType = args[i+1]
			i++
		case "--b0-threshold":
			t, err := strconv.Atoi(args[i+1])
			if err != nil {
				return nil, fmt.Errorf("bad b0 threshold %q: %w", args[i+1], err)
			}
			b0Threshold = t
			i++
		case "--epi-fmap":
			fmapFiles = append(fmapFiles, args[i+1])
			i++
		}
	}
	if len(fmapFiles) == 0 {
		return nil, fmt.Errorf("no fieldmap files to estimate distortion from")
	}

	dwiFile := in.Inputs["dwi_files"]
	bvalFile := in.Inputs["bval_files"]
	bvecFile := in.Inputs["bvec_files"]

	// Blip-up side: the b=0 volumes of the series under correction.
	blipUp := filepath.Join(workDir, "blip_up.nii.gz")
	if err := a.extractB0sTo(ctx, dwiFile, bvalFile, bvecFile, b0Threshold, blipUp, workDir); err != nil {
		return nil, fmt.Errorf("extract blip-up b=0 volumes: %w", err)
	}

	bvals, bvecs, err := readGradients(bvalFile, bvecFile)
	if err != nil {
		return nil, err
	}
	blipUpBmat := filepath.Join(workDir, "blip_up.bmtxt")
	if err := writeBMatrix(blipUpBmat, bvals, bvecs, b0Threshold); err != nil {
		return nil, err
	}

	blipUpJSON := filepath.Join(workDir, "blip_up.json")
	sidecar, err := json.MarshalIndent(map[string]string{"PhaseEncodingDirection": peDir}, "", "  ")
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(blipUpJSON, sidecar, 0o644); err != nil {
		return nil, fmt.Errorf("write blip-up sidecar: %w", err)
	}

	// Blip-down side depends on the fieldmap flavor. EPI fieldmaps are
	// already b=0 images; reverse-PE and full-DWI fieldmaps carry gradients
	// and need their own b=0 extraction.
	blipDown := filepath.Join(workDir, "blip_down.nii.gz")
	switch fieldmapType {
	case "epi":
		if err := a.mergeImagesTo(ctx, fmapFiles, blipDown, workDir); err != nil {
			return nil, fmt.Errorf("prepare blip-down EPI fieldmap: %w", err)
		}
	case "rpe_series", "dwi":
		fmap := fmapFiles[0]
		fmapBval := strings.TrimSuffix(strings.TrimSuffix(fmap, ".gz"), ".nii") + ".bval"
		fmapBvec := strings.TrimSuffix(strings.TrimSuffix(fmap, ".gz"), ".nii") + ".bvec"
		if err := a.extractB0sTo(ctx, fmap, fmapBval, fmapBvec, b0Threshold, blipDown, workDir); err != nil {
			return nil, fmt.Errorf("extract blip-down b=0 volumes: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported fieldmap type %q", fieldmapType)
	}

	blipDownBmat := filepath.Join(workDir, "blip_down.bmtxt")
	if err := writeZeroBMatrixFor(blipDown, blipDownBmat); err != nil {
		return nil, err
	}

	assignments := blipAssignments{
		BlipUp:   []string{dwiFile},
		BlipDown: fmapFiles,
	}
	assignFile := filepath.Join(workDir, "blip_assignments.json")
	payload, err := json.MarshalIndent(assignments, "", "  ")
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(assignFile, payload, 0o644); err != nil {
		return nil, fmt.Errorf("write blip assignments: %w", err)
	}

	report := filepath.Join(workDir, "gather_report.txt")
	summary := fmt.Sprintf(
		"Susceptibility distortion correction: DRBUDDI\nFieldmap type: %s\nPhase encoding direction: %s\nBlip-up source: %s\nBlip-down sources: %s\n",
		fieldmapType, peDir, dwiFile, strings.Join(fmapFiles, ", "),
	)
	if err := os.WriteFile(report, []byte(summary), 0o644); err != nil {
		return nil, fmt.Errorf("write gather report: %w", err)
	}

	a.logger.Info("Gathered DRBUDDI inputs",
		zap.String("fieldmap_type", fieldmapType),
		zap.String("pe_dir", peDir),
		zap.Int("fieldmap_files", len(fmapFiles)),
	)
	return map[string]string{
		"blip_up_image":    blipUp,
		"blip_up_json":     blipUpJSON,
		"blip_up_bmat":     blipUpBmat,
		"blip_down_image":  blipDown,
		"blip_down_bmat":   blipDownBmat,
		"blip_assignments": assignFile,
		"report":           report,
	}, nil
}

// aggregateDRBUDDI turns DRBUDDI's displacement fields into the per-series
// warp catalog downstream resampling expects, and masks the corrected b=0
// reference.
func (a *Activities) aggregateDRBUDDI(ctx context.Context, in *RunToolNodeInput, workDir string) (map[string]string, error) {
	reference := in.Inputs["undistorted_reference"]
	finv := in.Inputs["deformation_finv"]
	minv := in.Inputs["deformation_minv"]
	if reference == "" || finv == "" || minv == "" {
		return nil, fmt.Errorf("aggregate step is missing DRBUDDI outputs")
	}

	var assignments blipAssignments
	raw, err := os.ReadFile(in.Inputs["blip_assignments"])
	if err != nil {
		return nil, fmt.Errorf("read blip assignments: %w", err)
	}
	if err := json.Unmarshal(raw, &assignments); err != nil {
		return nil, fmt.Errorf("parse blip assignments: %w", err)
	}

	warps := make(map[string]string, len(assignments.BlipUp)+len(assignments.BlipDown))
	for _, f := range assignments.BlipUp {
		warps[f] = finv
	}
	for _, f := range assignments.BlipDown {
		warps[f] = minv
	}
	warpsFile := filepath.Join(workDir, "sdc_warps.json")
	payload, err := json.MarshalIndent(warps, "", "  ")
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(warpsFile, payload, 0o644); err != nil {
		return nil, fmt.Errorf("write warp catalog: %w", err)
	}

	// DRBUDDI's warps carry Jacobian scaling already, so no separate
	// scaling images are emitted.
	scalingFile := filepath.Join(workDir, "sdc_scaling_images.json")
	if err := os.WriteFile(scalingFile, []byte("{}\n"), 0o644); err != nil {
		return nil, fmt.Errorf("write scaling catalog: %w", err)
	}

	if _, err := a.runner.Run(ctx, tools.Automask("in_file"), map[string]string{"in_file": reference}, workDir); err != nil {
		return nil, fmt.Errorf("mask corrected b=0 reference: %w", err)
	}
	maskFile := filepath.Join(workDir, "b0_mask.nii.gz")
	if err := os.Rename(filepath.Join(workDir, "automask.nii.gz"), maskFile); err != nil {
		return nil, fmt.Errorf("place b=0 mask: %w", err)
	}

	return map[string]string{
		"sdc_warps":          warpsFile,
		"sdc_scaling_images": scalingFile,
		"b0_mask":            maskFile,
	}, nil
}

func (a *Activities) extractB0sTo(ctx context.Context, dwi, bval, bvec string, threshold int, dest, workDir string) error {
	outputs, err := a.runner.Run(ctx, tools.ExtractB0s(threshold), map[string]string{
		"dwi_file":  dwi,
		"bval_file": bval,
		"bvec_file": bvec,
	}, workDir)
	if err != nil {
		return err
	}
	return os.Rename(outputs["b0_series"], dest)
}

// mergeImagesTo concatenates the given images along the volume axis into
// dest, or converts in place when there is only one.
func (a *Activities) mergeImagesTo(ctx context.Context, files []string, dest, workDir string) error {
	if len(files) == 1 {
		spec := tools.MRConvert("in_file", filepath.Base(dest), "")
		_, err := a.runner.Run(ctx, spec, map[string]string{"in_file": files[0]}, workDir)
		return err
	}
	inputs := make(map[string]string, len(files))
	for i, f := range files {
		inputs[fmt.Sprintf("in_file_%d", i)] = f
	}
	_, err := a.runner.Run(ctx, tools.MRCat(len(files), filepath.Base(dest)), inputs, workDir)
	return err
}

// readGradients parses FSL-style bval (one row of values) and bvec (three
// rows of x, y, z components) files.
func readGradients(bvalPath, bvecPath string) ([]float64, [][3]float64, error) {
	bvalRaw, err := os.ReadFile(bvalPath)
	if err != nil {
		return nil, nil, fmt.Errorf("read bval file: %w", err)
	}
	var bvals []float64
	for _, f := range strings.Fields(string(bvalRaw)) {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, nil, fmt.Errorf("bad bval %q in %s: %w", f, bvalPath, err)
		}
		bvals = append(bvals, v)
	}

	bvecRaw, err := os.ReadFile(bvecPath)
	if err != nil {
		return nil, nil, fmt.Errorf("read bvec file: %w", err)
	}
	var rows [][]float64
	for _, line := range strings.Split(strings.TrimSpace(string(bvecRaw)), "\n") {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		row := make([]float64, 0, len(fields))
		for _, f := range fields {
			v, err := strconv.ParseFloat(f, 64)
			if err != nil {
				return nil, nil, fmt.Errorf("bad bvec %q in %s: %w", f, bvecPath, err)
			}
			row = append(row, v)
		}
		rows = append(rows, row)
	}
	if len(rows) != 3 {
		return nil, nil, fmt.Errorf("bvec file %s has %d rows, want 3", bvecPath, len(rows))
	}
	for _, row := range rows {
		if len(row) != len(bvals) {
			return nil, nil, fmt.Errorf("gradient tables disagree: %d bvals vs %d bvecs", len(bvals), len(row))
		}
	}
	bvecs := make([][3]float64, len(bvals))
	for i := range bvals {
		bvecs[i] = [3]float64{rows[0][i], rows[1][i], rows[2][i]}
	}
	return bvals, bvecs, nil
}

// writeBMatrix writes the b=0 rows of the series as a TORTOISE b-matrix
// (bxx bxy bxz byy byz bzz per volume, cross terms doubled).
func writeBMatrix(path string, bvals []float64, bvecs [][3]float64, threshold int) error {
	var sb strings.Builder
	for i, b := range bvals {
		if b > float64(threshold) {
			continue
		}
		g := bvecs[i]
		fmt.Fprintf(&sb, "%g %g %g %g %g %g\n",
			b*g[0]*g[0], 2*b*g[0]*g[1], 2*b*g[0]*g[2],
			b*g[1]*g[1], 2*b*g[1]*g[2], b*g[2]*g[2],
		)
	}
	if sb.Len() == 0 {
		return fmt.Errorf("no b=0 volumes below threshold %d", threshold)
	}
	return os.WriteFile(path, []byte(sb.String()), 0o644)
}

// writeZeroBMatrixFor writes an all-zero b-matrix with one row per volume of
// the given image, for blip-down sets that are pure b=0 acquisitions.
func writeZeroBMatrixFor(imagePath, bmatPath string) error {
	hdr, err := nifti.ReadHeaderFile(imagePath)
	if err != nil {
		return fmt.Errorf("read blip-down header: %w", err)
	}
	nvols := 1
	if shape := hdr.Shape(); len(shape) >= 4 {
		nvols = shape[3]
	}
	var sb strings.Builder
	for i := 0; i < nvols; i++ {
		sb.WriteString("0 0 0 0 0 0\n")
	}
	return os.WriteFile(bmatPath, []byte(sb.String()), 0o644)
}
