package anat

// Status records which anatomical derivatives exist for one subject. It is
// resolved once at assembly time and never mutated afterwards; assembler
// stages that change availability return an updated copy.
type Status struct {
	// HasQSIPrepT1w is true when a preprocessed T1w image and brain mask
	// (or their T2w equivalents) exist in the recon input directory.
	HasQSIPrepT1w bool
	// HasQSIPrepT1wTransforms is true when the T1w-to-template transform
	// pair exists. UKB and HCP inputs always report false here: their
	// FNIRT-style transforms cannot be converted for ANTs yet.
	HasQSIPrepT1wTransforms bool
	// HasFreeSurfer is true when the subject has a FreeSurfer directory.
	HasFreeSurfer bool
	// HasFreeSurfer5ttHSVS is true once a 5-tissue-type HSVS segmentation
	// exists in FreeSurfer-native space.
	HasFreeSurfer5ttHSVS bool
	// HasQSIPrep5ttHSVS is true once the HSVS segmentation has been moved
	// into the subject's preprocessed anatomical space.
	HasQSIPrep5ttHSVS bool
}
