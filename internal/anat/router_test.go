package anat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFieldRouterClaimMovesFields(t *testing.T) {
	r := NewFieldRouter([]string{"dwi_mask", "t1_preproc", "odf_rois"})
	assert.Equal(t, []string{"dwi_mask", "odf_rois", "t1_preproc"}, r.InputFields())

	require.NoError(t, r.Claim("masking", "dwi_mask"))

	src, err := r.SourceOf("dwi_mask")
	require.NoError(t, err)
	assert.Equal(t, SourceComputed, src)

	src, err = r.SourceOf("t1_preproc")
	require.NoError(t, err)
	assert.Equal(t, SourceInput, src)

	assert.Equal(t, []string{"dwi_mask"}, r.ComputedFields())
	assert.Equal(t, []string{"odf_rois", "t1_preproc"}, r.InputFields())
}

func TestFieldRouterRejectsDoubleClaim(t *testing.T) {
	r := NewFieldRouter([]string{"t1_brain_mask"})
	require.NoError(t, r.Claim("freesurfer_registration", "t1_brain_mask"))

	err := r.Claim("masking", "t1_brain_mask")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `claimed by both "freesurfer_registration" and "masking"`)

	var aerr *AssemblyError
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, ErrInconsistency, aerr.Class)
}

func TestFieldRouterRejectsUnknownField(t *testing.T) {
	r := NewFieldRouter([]string{"dwi_mask"})

	err := r.Claim("masking", "dwi_maks")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown field "dwi_maks"`)

	_, err = r.SourceOf("dwi_maks")
	assert.Error(t, err)
}

func TestFieldRouterFinalize(t *testing.T) {
	r := NewFieldRouter([]string{"dwi_mask", "t1_preproc"})
	require.NoError(t, r.Claim("masking", "dwi_mask"))

	assert.NoError(t, r.Finalize([]string{"dwi_mask", "t1_preproc"}))

	err := r.Finalize([]string{"dwi_mask", "odf_rois"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"odf_rois" belongs to neither sourcing set`)

	err = r.Finalize([]string{"dwi_mask", "dwi_mask"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "appears twice")
}
