package anat

import (
	"go.uber.org/zap"

	"github.com/dmriflow/dmriflow/internal/interchange"
	"github.com/dmriflow/dmriflow/internal/pipeline"
	"github.com/dmriflow/dmriflow/internal/tools"
)

// Extra derived products a reconstruction workflow can request.
const (
	Extra5ttHSVS = "mrtrix_5tt_hsvs"
)

// HighResOptions configures high-res anatomical graph assembly.
type HighResOptions struct {
	SubjectID         string
	Source            string
	ExtrasToMake      []string
	NeedsT1wTransform bool
	NThreads          int
	// RegistrationPreset overrides the default anatomical registration
	// parameters. Nil selects the built-in preset.
	RegistrationPreset *pipeline.ToolPreset
}

// InitHighResAnatomicalGraph gathers any high-res anatomical data (images,
// transforms, segmentations) available for a subject and assembles the graph
// that prepares them for reconstruction workflows. The anatomical data may
// live in the recon input directory or in a FreeSurfer directory.
func (r *Resolver) InitHighResAnatomicalGraph(opts HighResOptions) (*pipeline.Graph, Status, error) {
	graph := pipeline.NewGraph("recon_anatomical_wf")
	outputnode := pipeline.Node{
		ID:     "outputnode",
		Kind:   pipeline.KindIdentity,
		Fields: append([]string(nil), interchange.AnatomicalOutputFields...),
	}
	graph.AddNode(outputnode)

	ingressNode, status, err := r.GatherAnatomicalData(opts.Source, opts.SubjectID)
	if err != nil {
		return nil, status, err
	}

	if opts.NeedsT1wTransform && !status.HasQSIPrepT1wTransforms {
		missing := r.CheckQSIPrepOutputs(opts.SubjectID, AnatTransforms)
		return nil, status, missingInputError("cannot compute to-template: no T1w-to-template transform available", missing)
	}

	// There may still be an image available from FreeSurfer even when the
	// recon inputs carry no high-res anatomical data.
	fsPath, hasFS := FindFreeSurferPath(r.FreeSurferDir, opts.SubjectID)
	status.HasFreeSurfer = hasFS

	// If no high-res data is available anywhere, we're done here.
	if !status.HasQSIPrepT1w && !hasFS {
		r.Logger.Warn("No high-res anatomical data available directly in recon inputs",
			zap.String("subject_id", opts.SubjectID))
		if contains(opts.ExtrasToMake, Extra5ttHSVS) {
			return nil, status, unsupportedConfigError("FreeSurfer data is required to make a HSVS 5tt image")
		}
		return graph, status, nil
	}

	if status.HasQSIPrepT1w {
		r.Logger.Info("Found high-res anatomical data in preprocessed inputs",
			zap.String("subject_id", opts.SubjectID))
		graph.AddNode(ingressNode)
		graph.ConnectFields(ingressNode.ID, "outputnode", interchange.IngressedAnatomicalFields)
	}

	if hasFS {
		r.Logger.Info("FreeSurfer directory exists",
			zap.String("path", fsPath),
			zap.String("subject_id", opts.SubjectID),
		)
	}

	if contains(opts.ExtrasToMake, Extra5ttHSVS) {
		if missing := CheckHSVSInputs(fsPath); len(missing) > 0 {
			return nil, status, missingInputError("unable to make a HSVS segmentation", missing)
		}

		r.Logger.Info("FreeSurfer data will be used to create a HSVS 5tt image",
			zap.String("subject_id", opts.SubjectID))
		status.HasFreeSurfer5ttHSVS = true
		graph.AddNode(pipeline.Node{
			ID:   "create_5tt_hsvs",
			Kind: pipeline.KindTool,
			Tool: tools.Generate5ttHSVS(fsPath, opts.NThreads),
		})
		graph.AddNode(pipeline.Node{
			ID:   "ds_fs_5tt_hsvs",
			Kind: pipeline.KindSink,
			Sink: &pipeline.SinkSpec{Desc: "hsvs", Space: "fsnative", Suffix: "dseg", Compress: true},
		})
		graph.Connect("create_5tt_hsvs", "out_file", "outputnode", "fs_5tt_hsvs")
		graph.Connect("create_5tt_hsvs", "out_file", "ds_fs_5tt_hsvs", "in_file")

		// Move the 5tt image into the preprocessed anatomical space when a
		// reference T1w exists.
		if status.HasQSIPrepT1w {
			r.Logger.Info("HSVS 5tt image will be registered to the preprocessed T1w image")
			status.HasQSIPrep5ttHSVS = true

			// The registration is the only consumer of the FreeSurfer
			// volumes in this graph; without it they ingest later in DWI
			// space.
			fsSourceID := graph.AddNode(pipeline.Node{
				ID:     "fs_source",
				Kind:   pipeline.KindIngress,
				Fields: append([]string(nil), interchange.FreeSurferFilesToRegister...),
				Ingress: &pipeline.IngressSpec{
					Source:    "freesurfer",
					SubjectID: opts.SubjectID,
					InputDir:  fsPath,
				},
			})

			reg := buildRegisterFSToQSIPrepGraph("register_fs_to_qsiprep_wf", true, registrationPreset(opts.RegistrationPreset))
			graph.Merge(reg)
			graph.Connect(ingressNode.ID, "t1_preproc", "register_fs_to_qsiprep_wf_inputnode", "qsiprep_reference_image")
			graph.Connect(ingressNode.ID, "t1_brain_mask", "register_fs_to_qsiprep_wf_inputnode", "qsiprep_reference_mask")
			graph.ConnectFields(fsSourceID, "register_fs_to_qsiprep_wf_inputnode", interchange.FreeSurferFilesToRegister)
			graph.Connect("register_fs_to_qsiprep_wf_outputnode", "fs_to_qsiprep_transform_mrtrix", "outputnode", "fs_to_qsiprep_transform_mrtrix")
			graph.Connect("register_fs_to_qsiprep_wf_outputnode", "fs_to_qsiprep_transform_itk", "outputnode", "fs_to_qsiprep_transform_itk")
			graph.ConnectFields("register_fs_to_qsiprep_wf_outputnode", "outputnode", interchange.FreeSurferFilesToRegister)

			graph.AddNode(pipeline.Node{
				ID:   "apply_header_to_5tt",
				Kind: pipeline.KindTool,
				Tool: tools.TransformHeader("in_image", "qsiprep_5tt_hsvs.nii.gz"),
			})
			graph.AddNode(pipeline.Node{
				ID:   "ds_qsiprep_5tt_hsvs",
				Kind: pipeline.KindSink,
				Sink: &pipeline.SinkSpec{Atlas: "hsvs", Space: "T1w", Suffix: "dseg"},
			})
			graph.Connect("create_5tt_hsvs", "out_file", "apply_header_to_5tt", "in_image")
			graph.Connect("register_fs_to_qsiprep_wf_outputnode", "fs_to_qsiprep_transform_mrtrix", "apply_header_to_5tt", "transform_file")
			graph.Connect("apply_header_to_5tt", "out_image", "outputnode", "qsiprep_5tt_hsvs")
			graph.Connect("apply_header_to_5tt", "out_image", "ds_qsiprep_5tt_hsvs", "in_file")
		}
	}

	return graph, status, nil
}

// buildRegisterFSToQSIPrepGraph registers the FreeSurfer brain to a reference
// image and rewrites the headers of the FreeSurfer volumes into that frame.
// Node IDs are namespaced by the given name so the graph can be merged.
func buildRegisterFSToQSIPrepGraph(name string, useReferenceMask bool, preset *pipeline.ToolPreset) *pipeline.Graph {
	graph := pipeline.NewGraph(name)
	id := func(suffix string) string { return name + "_" + suffix }

	inputFields := append([]string{"qsiprep_reference_image", "qsiprep_reference_mask"},
		interchange.FreeSurferFilesToRegister...)
	outputFields := append([]string{"fs_to_qsiprep_transform_itk", "fs_to_qsiprep_transform_mrtrix"},
		interchange.FreeSurferFilesToRegister...)

	graph.AddNode(pipeline.Node{ID: id("inputnode"), Kind: pipeline.KindIdentity, Fields: inputFields})
	graph.AddNode(pipeline.Node{ID: id("outputnode"), Kind: pipeline.KindIdentity, Fields: outputFields})

	// FreeSurfer volumes need conventional strides before ANTs sees them.
	graph.AddNode(pipeline.Node{
		ID:   id("convert_fs_brain"),
		Kind: pipeline.KindTool,
		Tool: tools.MRConvert("in_file", "fs_brain.nii", "-1,-2,3"),
	})
	graph.Connect(id("inputnode"), "brain", id("convert_fs_brain"), "in_file")

	graph.AddNode(pipeline.Node{
		ID:   id("register_to_qsiprep"),
		Kind: pipeline.KindTool,
		Tool: tools.Registration(preset, useReferenceMask),
	})
	graph.Connect(id("inputnode"), "qsiprep_reference_image", id("register_to_qsiprep"), "fixed_image")
	graph.Connect(id("convert_fs_brain"), "out_file", id("register_to_qsiprep"), "moving_image")
	if useReferenceMask {
		graph.Connect(id("inputnode"), "qsiprep_reference_mask", id("register_to_qsiprep"), "fixed_image_mask")
	}
	graph.Connect(id("register_to_qsiprep"), "composite_transform", id("outputnode"), "fs_to_qsiprep_transform_itk")

	// The recent ANTs .mat format isn't compatible with transformconvert,
	// so go through the ANTs text format first.
	graph.AddNode(pipeline.Node{
		ID:   id("convert_ants_transform"),
		Kind: pipeline.KindTool,
		Tool: tools.ConvertTransformFile(3),
	})
	graph.Connect(id("register_to_qsiprep"), "forward_transform", id("convert_ants_transform"), "in_transform")

	graph.AddNode(pipeline.Node{
		ID:   id("convert_ants_to_mrtrix_transform"),
		Kind: pipeline.KindTool,
		Tool: tools.TransformConvert(),
	})
	graph.Connect(id("convert_ants_transform"), "out_transform", id("convert_ants_to_mrtrix_transform"), "in_transform")
	graph.Connect(id("convert_ants_to_mrtrix_transform"), "out_transform", id("outputnode"), "fs_to_qsiprep_transform_mrtrix")

	// Rewrite the headers of all FreeSurfer volumes into the reference frame.
	for _, imageName := range interchange.FreeSurferFilesToRegister {
		nodeID := id("transform_" + imageName)
		graph.AddNode(pipeline.Node{
			ID:   nodeID,
			Kind: pipeline.KindTool,
			Tool: tools.TransformHeader("in_image", imageName+"_to_ref.nii.gz"),
		})
		graph.Connect(id("inputnode"), imageName, nodeID, "in_image")
		graph.Connect(id("convert_ants_to_mrtrix_transform"), "out_transform", nodeID, "transform_file")
		graph.Connect(nodeID, "out_image", id("outputnode"), imageName)
	}

	return graph
}

func registrationPreset(preset *pipeline.ToolPreset) *pipeline.ToolPreset {
	if preset != nil {
		return preset
	}
	return tools.DefaultRegistrationPreset()
}

func contains(list []string, value string) bool {
	for _, v := range list {
		if v == value {
			return true
		}
	}
	return false
}
