package anat

import (
	"os"
	"path/filepath"
)

// FindFreeSurferPath locates a subject's FreeSurfer directory. Both bare
// subject IDs and sub- prefixed directory names are accepted, since
// FreeSurfer output trees are populated by different conventions upstream.
func FindFreeSurferPath(freesurferDir, subjectID string) (string, bool) {
	if freesurferDir == "" {
		return "", false
	}
	for _, name := range []string{subjectID, "sub-" + subjectID} {
		candidate := filepath.Join(freesurferDir, name)
		if info, err := os.Stat(candidate); err == nil && info.IsDir() {
			return candidate, true
		}
	}
	return "", false
}
