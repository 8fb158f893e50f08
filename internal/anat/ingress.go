package anat

import (
	"strings"

	"go.uber.org/zap"

	"github.com/dmriflow/dmriflow/internal/interchange"
	"github.com/dmriflow/dmriflow/internal/pipeline"
)

// Supported upstream pipeline sources.
const (
	SourceQSIPrep = "qsiprep"
	SourceUKB     = "ukb"
	SourceHCPYA   = "hcpya"
)

// GatherAnatomicalData probes the input directory for the declared upstream
// pipeline's anatomical outputs and returns an ingress node that will
// materialize them, plus the availability status.
func (r *Resolver) GatherAnatomicalData(source, subjectID string) (pipeline.Node, Status, error) {
	switch source {
	case SourceQSIPrep:
		node, status := r.gatherQSIPrepAnatomicalData(subjectID)
		return node, status, nil
	case SourceUKB:
		node, status := r.gatherUKBAnatomicalData(subjectID)
		return node, status, nil
	case SourceHCPYA:
		node, status := r.gatherHCPAnatomicalData(subjectID)
		return node, status, nil
	default:
		return pipeline.Node{}, Status{}, unsupportedConfigError("unknown pipeline source %q", source)
	}
}

func (r *Resolver) gatherQSIPrepAnatomicalData(subjectID string) (pipeline.Node, Status) {
	var status Status

	missingAnats := r.CheckQSIPrepOutputs(subjectID, AnatT1w)
	status.HasQSIPrepT1w = len(missingAnats) == 0
	if len(missingAnats) > 0 {
		r.Logger.Info("Missing preprocessed T1w outputs",
			zap.String("subject_id", subjectID),
			zap.String("missing", strings.Join(missingAnats, " ")),
		)
	} else {
		r.Logger.Info("Found usable preprocessed T1w image and mask",
			zap.String("subject_id", subjectID))
	}

	missingTransforms := r.CheckQSIPrepOutputs(subjectID, AnatTransforms)
	status.HasQSIPrepT1wTransforms = len(missingTransforms) == 0
	if len(missingTransforms) > 0 {
		r.Logger.Info("Missing T1w-to-template transforms",
			zap.String("subject_id", subjectID),
			zap.String("missing", strings.Join(missingTransforms, " ")),
		)
	}

	return r.ingressNode("qsiprep_anat_ingress", SourceQSIPrep, subjectID), status
}

func (r *Resolver) gatherUKBAnatomicalData(subjectID string) (pipeline.Node, Status) {
	var status Status

	missing := r.CheckUKBOutputs()
	status.HasQSIPrepT1w = len(missing) == 0
	if len(missing) > 0 {
		r.Logger.Info("Missing T1w from UKB session",
			zap.String("input_dir", r.InputDir),
			zap.String("missing", strings.Join(missing, " ")),
		)
	} else {
		r.Logger.Info("Found usable UKB-preprocessed T1w image and mask",
			zap.String("subject_id", subjectID))
	}

	// FNIRT transforms from UKB can't be converted for ANTs, so no
	// spatial-normalization transform is available from this source.
	status.HasQSIPrepT1wTransforms = false
	r.Logger.Info("UKB template transforms are not readable at this time")

	return r.ingressNode("ukb_anat_ingress", SourceUKB, subjectID), status
}

func (r *Resolver) gatherHCPAnatomicalData(subjectID string) (pipeline.Node, Status) {
	var status Status

	missing := r.CheckHCPOutputs()
	status.HasQSIPrepT1w = len(missing) == 0
	if len(missing) > 0 {
		r.Logger.Info("Missing T1w from HCP session",
			zap.String("input_dir", r.InputDir),
			zap.String("missing", strings.Join(missing, " ")),
		)
	} else {
		r.Logger.Info("Found usable HCP-preprocessed T1w image and mask",
			zap.String("subject_id", subjectID))
	}

	// Same limitation as UKB: FNIRT-style transforms are unusable here.
	status.HasQSIPrepT1wTransforms = false
	r.Logger.Info("HCP template transforms are not readable at this time")

	return r.ingressNode("hcp_anat_ingress", SourceHCPYA, subjectID), status
}

func (r *Resolver) ingressNode(id, source, subjectID string) pipeline.Node {
	return pipeline.Node{
		ID:     id,
		Kind:   pipeline.KindIngress,
		Fields: append([]string(nil), interchange.IngressedAnatomicalFields...),
		Ingress: &pipeline.IngressSpec{
			Source:    source,
			SubjectID: subjectID,
			InputDir:  r.InputDir,
		},
	}
}
