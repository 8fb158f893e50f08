// Package ingress locates preprocessed derivatives on disk so they can be
// materialized as workflow inputs.
package ingress

import (
	"fmt"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/dmriflow/dmriflow/internal/bids"
)

// DWIResult holds the files located next to a preprocessed DWI, keyed by the
// interchange field names they feed.
type DWIResult struct {
	Entities      bids.Entities
	DWIFile       string
	BvalFile      string
	BvecFile      string
	BFile         string
	ConfoundsFile string
	LocalBvecFile string
	MaskFile      string
	DWIRef        string
	QCFile        string
	SliceQCFile   string
}

// Fields returns the located files as a field->path map, omitting optional
// files that were not found.
func (r *DWIResult) Fields() map[string]string {
	out := map[string]string{
		"subject_id": r.Entities.Subject,
		"dwi_file":   r.DWIFile,
		"bval_file":  r.BvalFile,
		"bvec_file":  r.BvecFile,
	}
	optional := map[string]string{
		"b_file":          r.BFile,
		"confounds_file":  r.ConfoundsFile,
		"local_bvec_file": r.LocalBvecFile,
		"mask_file":       r.MaskFile,
		"dwi_ref":         r.DWIRef,
		"qc_file":         r.QCFile,
		"slice_qc_file":   r.SliceQCFile,
	}
	for k, v := range optional {
		if v != "" {
			out[k] = v
		}
	}
	return out
}

// LocateDWI finds the sibling derivatives of a preprocessed DWI file. The DWI
// must carry a space entity; its absence means the file was not written by a
// supported preprocessing pipeline.
func LocateDWI(dwiFile string, logger *zap.Logger) (*DWIResult, error) {
	entities, err := bids.ParseFilename(dwiFile)
	if err != nil {
		return nil, err
	}
	if entities.Space == "" {
		return nil, fmt.Errorf("unable to detect space of %s", dwiFile)
	}

	dir := filepath.Dir(dwiFile)
	stem := strings.TrimSuffix(filepath.Base(dwiFile), ".gz")
	stem = strings.TrimSuffix(stem, filepath.Ext(stem))

	result := &DWIResult{
		Entities: entities,
		DWIFile:  dwiFile,
		BvalFile: filepath.Join(dir, stem+".bval"),
		BvecFile: filepath.Join(dir, stem+".bvec"),
	}

	getIfExists := func(pattern string) string {
		matches, _ := filepath.Glob(pattern)
		if len(matches) >= 1 {
			if len(matches) > 1 {
				logger.Warn("Multiple candidate derivatives matched; using the first",
					zap.String("pattern", pattern),
					zap.Strings("matches", matches),
				)
			}
			return matches[0]
		}
		return ""
	}

	result.BFile = getIfExists(filepath.Join(dir, stem+".b"))
	result.ConfoundsFile = getIfExists(filepath.Join(dir, "*confounds.tsv"))
	result.LocalBvecFile = getIfExists(filepath.Join(dir, strings.TrimSuffix(stem, "dwi")+"bvec.nii*"))

	maskStem := bids.StemWithout(dwiFile, "desc")
	result.MaskFile = getIfExists(filepath.Join(dir, maskStem+"_desc-brain_mask.nii*"))

	refStem := bids.StemWithout(dwiFile, "space")
	result.DWIRef = getIfExists(filepath.Join(dir, refStem+"_dwiref.nii*"))

	// Image QC files don't carry the space entity.
	result.QCFile = getIfExists(qcFilename(dir, entities, "ImageQC", "csv"))
	result.SliceQCFile = getIfExists(qcFilename(dir, entities, "SliceQC", "json"))

	return result, nil
}

func qcFilename(dir string, e bids.Entities, desc, extension string) string {
	parts := make([]string, 0, 5)
	add := func(key, value string) {
		if value != "" {
			parts = append(parts, key+"-"+value)
		}
	}
	add("sub", e.Subject)
	add("ses", e.Session)
	add("acq", e.Acq)
	add("dir", e.Dir)
	add("run", e.Run)
	name := strings.Join(parts, "_") + fmt.Sprintf("_desc-%s_dwi.%s", desc, extension)
	return filepath.Join(dir, name)
}
