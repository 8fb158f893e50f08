package anat

import (
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// Required FreeSurfer files for MRtrix's HSVS 5tt generation.
var hsvsRequirements = []string{
	"mri/aparc+aseg.mgz",
	"mri/brainmask.mgz",
	"mri/norm.mgz",
	"mri/transforms/talairach.xfm",
	"surf/lh.white",
	"surf/lh.pial",
	"surf/rh.white",
	"surf/rh.pial",
}

var ukbRequirements = []string{
	"T1/T1_brain.nii.gz",
	"T1/T1_brain_mask.nii.gz",
}

var hcpRequirements = []string{
	"T1w/T1w_acpc_dc_restore_brain.nii.gz",
	"T1w/brainmask_fs.nii.gz",
}

// Files that must exist if the preprocessing pipeline ran its anatomical workflow.
var qsiprepAnatRequirements = []string{
	"sub-{subject_id}/anat/sub-{subject_id}_desc-brain_mask.nii.gz",
	"sub-{subject_id}/anat/sub-{subject_id}_desc-preproc_T1w.nii.gz",
}

var qsiprepNormalizedAnatRequirements = []string{
	"sub-{subject_id}/anat/sub-{subject_id}_from-T1w_to-MNI152NLin2009cAsym_mode-image_xfm.h5",
	"sub-{subject_id}/anat/sub-{subject_id}_from-MNI152NLin2009cAsym_to-T1w_mode-image_xfm.h5",
}

// AnatType selects which QSIPrep requirement list to probe.
type AnatType string

const (
	AnatT1w        AnatType = "T1w"
	AnatTransforms AnatType = "transforms"
)

// Resolver probes input directories for anatomical derivatives.
type Resolver struct {
	InputDir      string
	FreeSurferDir string
	Logger        *zap.Logger
}

// checkZippedUnzipped reports whether a path exists, accepting a non-gzipped
// variant of a .gz path and warning when one is found.
func (r *Resolver) checkZippedUnzipped(path string) bool {
	exists := false
	if _, err := os.Stat(path); err == nil {
		exists = true
	}
	if strings.HasSuffix(path, ".gz") {
		nonzipped := strings.TrimSuffix(path, ".gz")
		if _, err := os.Stat(nonzipped); err == nil {
			r.Logger.Warn("A non-gzipped input nifti file was found; consider gzipping it",
				zap.String("path", nonzipped))
			exists = true
		}
	}
	r.Logger.Debug("Checked anatomical input", zap.String("path", path), zap.Bool("exists", exists))
	return exists
}

// CheckQSIPrepOutputs determines whether an aligned T1w (or its template
// transforms) exists in a QSIPrep-style derivatives directory.
//
// It is possible that:
//   - preprocessing ran DWI-only, in which case there is NO T1w available
//   - spatial normalization was skipped, so there is a T1w but no transform
//   - normal mode, where both the T1w and the transforms exist
//
// A T2w equivalent is accepted in place of a missing T1w file.
func (r *Resolver) CheckQSIPrepOutputs(subjectID string, anatType AnatType) []string {
	toCheck := qsiprepAnatRequirements
	if anatType == AnatTransforms {
		toCheck = qsiprepNormalizedAnatRequirements
	}

	var missing []string
	for _, requirement := range toCheck {
		rel := strings.ReplaceAll(requirement, "{subject_id}", subjectID)
		t1Version := filepath.Join(r.InputDir, rel)
		if r.checkZippedUnzipped(t1Version) {
			continue
		}
		t2Version := filepath.Join(r.InputDir, strings.ReplaceAll(rel, "_T1w", "_T2w"))
		if r.checkZippedUnzipped(t2Version) {
			continue
		}
		missing = append(missing, t1Version)
	}
	return missing
}

// CheckUKBOutputs checks for required files under a UKB session directory
// (eg 1234567_2_0).
func (r *Resolver) CheckUKBOutputs() []string {
	return r.checkRelative(ukbRequirements)
}

// CheckHCPOutputs checks for required files under an HCP subject directory
// (eg 100307/).
func (r *Resolver) CheckHCPOutputs() []string {
	return r.checkRelative(hcpRequirements)
}

func (r *Resolver) checkRelative(requirements []string) []string {
	var missing []string
	for _, requirement := range requirements {
		if _, err := os.Stat(filepath.Join(r.InputDir, requirement)); err != nil {
			missing = append(missing, requirement)
		}
	}
	return missing
}

// CheckHSVSInputs determines whether a FreeSurfer directory has the files
// required for hybrid surface/volume segmentation.
func CheckHSVSInputs(fsSubjectDir string) []string {
	var missing []string
	for _, requirement := range hsvsRequirements {
		if _, err := os.Stat(filepath.Join(fsSubjectDir, requirement)); err != nil {
			missing = append(missing, requirement)
		}
	}
	return missing
}
