package ingress

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dmriflow/dmriflow/internal/pipeline"
)

// ResolveIngress maps an ingress node's fields to concrete paths. Optional
// files that don't exist are omitted; downstream nodes that need them will
// fail with an unbound-field error rather than a dangling path.
func ResolveIngress(spec *pipeline.IngressSpec) (map[string]string, error) {
	switch spec.Source {
	case "qsiprep":
		return resolveQSIPrep(spec)
	case "ukb":
		return map[string]string{
			"t1_preproc":    filepath.Join(spec.InputDir, "T1", "T1_brain.nii.gz"),
			"t1_brain_mask": filepath.Join(spec.InputDir, "T1", "T1_brain_mask.nii.gz"),
		}, nil
	case "hcpya":
		return map[string]string{
			"t1_preproc":    filepath.Join(spec.InputDir, "T1w", "T1w_acpc_dc_restore_brain.nii.gz"),
			"t1_brain_mask": filepath.Join(spec.InputDir, "T1w", "brainmask_fs.nii.gz"),
		}, nil
	case "freesurfer":
		return map[string]string{
			"brain": filepath.Join(spec.InputDir, "mri", "brain.mgz"),
			"aseg":  filepath.Join(spec.InputDir, "mri", "aseg.mgz"),
		}, nil
	case "template":
		prefix := "tpl-" + spec.SubjectID
		return map[string]string{
			"template_file": filepath.Join(spec.InputDir, prefix+"_res-01_T1w.nii.gz"),
			"mask_file":     filepath.Join(spec.InputDir, prefix+"_res-01_desc-brain_mask.nii.gz"),
		}, nil
	case "static":
		// InputDir is the file itself for static single-file sources.
		return map[string]string{"roi_file": spec.InputDir}, nil
	default:
		return nil, fmt.Errorf("unknown ingress source %q", spec.Source)
	}
}

func resolveQSIPrep(spec *pipeline.IngressSpec) (map[string]string, error) {
	anatDir := filepath.Join(spec.InputDir, "sub-"+spec.SubjectID, "anat")
	prefix := "sub-" + spec.SubjectID

	out := map[string]string{}
	required := map[string]string{
		"t1_preproc":    prefix + "_desc-preproc_T1w.nii.gz",
		"t1_brain_mask": prefix + "_desc-brain_mask.nii.gz",
	}
	for field, name := range required {
		path, err := firstExisting(
			filepath.Join(anatDir, name),
			filepath.Join(anatDir, strings.ReplaceAll(name, "_T1w", "_T2w")),
			strings.TrimSuffix(filepath.Join(anatDir, name), ".gz"),
		)
		if err != nil {
			return nil, fmt.Errorf("qsiprep ingress for %s: %w", spec.SubjectID, err)
		}
		out[field] = path
	}

	optional := map[string]string{
		"t1_seg":                     prefix + "_dseg.nii.gz",
		"t1_2_mni_forward_transform": prefix + "_from-T1w_to-MNI152NLin2009cAsym_mode-image_xfm.h5",
		"t1_2_mni_reverse_transform": prefix + "_from-MNI152NLin2009cAsym_to-T1w_mode-image_xfm.h5",
	}
	for field, name := range optional {
		if path, err := firstExisting(filepath.Join(anatDir, name)); err == nil {
			out[field] = path
		}
	}
	return out, nil
}

func firstExisting(candidates ...string) (string, error) {
	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c, nil
		}
	}
	return "", fmt.Errorf("none of the expected files exist: %s", strings.Join(candidates, ", "))
}
