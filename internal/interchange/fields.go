// Package interchange defines the stable field vocabulary shared between the
// ingestion, anatomical, and reconstruction graphs. Downstream consumers read
// these names from a single output interface regardless of which branch of
// the anatomical assembler produced the value.
package interchange

// FreeSurferFilesToRegister are the FreeSurfer volumes that get moved into
// the DWI reference frame when FreeSurfer is the only anatomical source.
var FreeSurferFilesToRegister = []string{
	"brain",
	"aseg",
}

// AnatomicalOutputFields are produced by the high-res anatomical graph.
var AnatomicalOutputFields = append([]string{
	"t1_preproc",
	"t1_brain_mask",
	"t1_seg",
	"t1_2_mni_forward_transform",
	"t1_2_mni_reverse_transform",
	"fs_5tt_hsvs",
	"qsiprep_5tt_hsvs",
	"fs_to_qsiprep_transform_itk",
	"fs_to_qsiprep_transform_mrtrix",
}, FreeSurferFilesToRegister...)

// IngressedAnatomicalFields come straight out of an anatomical ingress node.
var IngressedAnatomicalFields = []string{
	"t1_preproc",
	"t1_brain_mask",
	"t1_seg",
	"t1_2_mni_forward_transform",
	"t1_2_mni_reverse_transform",
}

// IngressedDWIFields come out of a DWI ingress node: the preprocessed
// series plus the companions located next to it.
var IngressedDWIFields = []string{
	"subject_id",
	"dwi_file",
	"bval_file",
	"bvec_file",
	"b_file",
	"dwi_ref",
}

// ReconWorkflowInputFields is the unified input interface of every
// reconstruction workflow. The anatomical assembler guarantees that each of
// these is wired from exactly one source.
var ReconWorkflowInputFields = append([]string{
	"subject_id",
	"dwi_file",
	"bval_file",
	"bvec_file",
	"b_file",
	"dwi_ref",
	"dwi_mask",
	"atlas_configs",
	"odf_rois",
	"resampling_template",
}, AnatomicalOutputFields...)
