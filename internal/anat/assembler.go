package anat

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/dmriflow/dmriflow/internal/interchange"
	"github.com/dmriflow/dmriflow/internal/pipeline"
	"github.com/dmriflow/dmriflow/internal/tools"
)

// AssemblerOptions configures DWI-space anatomical graph assembly.
type AssemblerOptions struct {
	Name              string
	SubjectID         string
	AtlasNames        []string
	// AtlasDir holds the template-space parcellations and their lookup
	// tables.
	AtlasDir          string
	ExtrasToMake      []string
	NeedsT1wTransform bool
	// PreferDWIMask derives the brain mask from the b=0 volumes even when
	// an anatomical mask could be resampled instead.
	PreferDWIMask bool
	B0Threshold   int
	// OutputResolution fixes the output grid's isotropic voxel size in mm.
	// Zero keeps a voxel size chosen from the DWI reference itself.
	OutputResolution float64
	Infant           bool
	NThreads         int
	// TemplateDir holds the standard-space template images.
	TemplateDir string
	// CrossingROIsPath is the fixed library of crossing-fiber ROIs warped
	// into DWI space for ODF plots.
	CrossingROIsPath   string
	RegistrationPreset *pipeline.ToolPreset
	// DWIFile is the preprocessed series this graph reconstructs. When set,
	// an ingress node locates its gradient tables and reference image on
	// the worker at execution time.
	DWIFile string
}

// InitDWIAnatomicalGraph ensures that anatomical data is available in the
// DWI reference frame for the reconstruction workflows. Three features are
// always added on top of the high-res anatomical outputs:
//
//   - dwi_mask: a brain mask in the voxel space of the DWI
//   - atlas_configs: a catalog used by connectivity workflows to fetch
//     brain parcellations
//   - odf_rois: an image with crossing-fiber ROIs for plotting ODFs
//
// The returned status is an updated copy; the input status is not mutated.
func (r *Resolver) InitDWIAnatomicalGraph(status Status, opts AssemblerOptions) (*pipeline.Graph, Status, error) {
	name := opts.Name
	if name == "" {
		name = "dwi_recon_anatomical_wf"
	}
	graph := pipeline.NewGraph(name)

	// inputnode holds data from the high-res anatomical workflow; buffernode
	// holds the values calculated here. The router decides, per field, which
	// of the two the outputnode reads from.
	fields := append([]string(nil), interchange.ReconWorkflowInputFields...)
	graph.AddNode(pipeline.Node{ID: "inputnode", Kind: pipeline.KindIdentity, Fields: fields})
	graph.AddNode(pipeline.Node{ID: "buffernode", Kind: pipeline.KindIdentity, Fields: fields})
	graph.AddNode(pipeline.Node{ID: "outputnode", Kind: pipeline.KindIdentity, Fields: fields})

	// The DWI series and its companions live on the worker's filesystem,
	// not the submitting client's, so locating them is an ingress node in
	// the graph rather than a lookup at assembly time.
	if opts.DWIFile != "" {
		graph.AddNode(pipeline.Node{
			ID:     "dwi_source",
			Kind:   pipeline.KindIngress,
			Fields: append([]string(nil), interchange.IngressedDWIFields...),
			Ingress: &pipeline.IngressSpec{
				Source:    "dwi",
				SubjectID: opts.SubjectID,
				InputDir:  opts.DWIFile,
			},
		})
		graph.ConnectFields("dwi_source", "inputnode", interchange.IngressedDWIFields)
	}

	router := NewFieldRouter(interchange.ReconWorkflowInputFields)

	sourceNodeOf := func(field string) (string, error) {
		src, err := router.SourceOf(field)
		if err != nil {
			return "", err
		}
		if src == SourceComputed {
			return "buffernode", nil
		}
		return "inputnode", nil
	}

	// These are always created here.
	if err := router.Claim("dwi_anatomical", "dwi_mask", "atlas_configs", "odf_rois", "resampling_template"); err != nil {
		return nil, status, err
	}

	if err := r.addOutputGridGraph(graph, opts); err != nil {
		return nil, status, err
	}

	// Missing FreeSurfer AND preprocessed T1w, or the caller wants a
	// DWI-based mask: estimate the mask from the b=0 images themselves and
	// skip all anatomical registration.
	if !(status.HasQSIPrepT1w || status.HasFreeSurfer) || opts.PreferDWIMask {
		r.Logger.Info("Estimating brain mask from the b=0 images",
			zap.String("subject_id", opts.SubjectID),
			zap.Bool("prefer_dwi_mask", opts.PreferDWIMask),
		)
		if contains(opts.ExtrasToMake, Extra5ttHSVS) && !status.HasQSIPrep5ttHSVS {
			return nil, status, unsupportedConfigError("unable to create a 5tt HSVS image given input data")
		}
		graph.AddNode(pipeline.Node{
			ID:   "extract_b0s",
			Kind: pipeline.KindTool,
			Tool: tools.ExtractB0s(opts.B0Threshold),
		})
		graph.AddNode(pipeline.Node{
			ID:   "mask_b0s",
			Kind: pipeline.KindTool,
			Tool: tools.Automask("in_file"),
		})
		graph.Connect("inputnode", "dwi_file", "extract_b0s", "dwi_file")
		graph.Connect("inputnode", "bval_file", "extract_b0s", "bval_file")
		graph.Connect("inputnode", "bvec_file", "extract_b0s", "bvec_file")
		graph.Connect("extract_b0s", "b0_series", "mask_b0s", "in_file")
		graph.Connect("mask_b0s", "out_file", "outputnode", "dwi_mask")
		graph.ConnectFields("inputnode", "outputnode", router.InputFields())
		graph.Connect("buffernode", "resampling_template", "outputnode", "resampling_template")
		if err := router.Finalize(interchange.ReconWorkflowInputFields); err != nil {
			return nil, status, err
		}
		return graph, status, nil
	}

	// Nothing from the preprocessed inputs, BUT we have FreeSurfer: register
	// it to the DWI reference and treat its outputs as the primary
	// anatomical source from here on.
	if status.HasFreeSurfer && !status.HasQSIPrepT1w {
		r.Logger.Info("Registering the FreeSurfer brain to the DWI reference",
			zap.String("subject_id", opts.SubjectID))

		fsPath, ok := FindFreeSurferPath(r.FreeSurferDir, opts.SubjectID)
		if !ok {
			return nil, status, inconsistencyError("status reports FreeSurfer for %s but no directory was found", opts.SubjectID)
		}
		claimed := append([]string(nil), interchange.FreeSurferFilesToRegister...)
		claimed = append(claimed,
			"t1_brain_mask",
			"t1_preproc",
			"fs_to_qsiprep_transform_mrtrix",
			"fs_to_qsiprep_transform_itk",
		)
		if err := router.Claim("freesurfer_registration", claimed...); err != nil {
			return nil, status, err
		}

		graph.AddNode(pipeline.Node{
			ID:     "fs_source",
			Kind:   pipeline.KindIngress,
			Fields: append([]string(nil), interchange.FreeSurferFilesToRegister...),
			Ingress: &pipeline.IngressSpec{
				Source:    "freesurfer",
				SubjectID: opts.SubjectID,
				InputDir:  fsPath,
			},
		})

		reg := buildRegisterFSToQSIPrepGraph("register_fs_to_qsiprep_wf", false, registrationPreset(opts.RegistrationPreset))
		graph.Merge(reg)
		graph.Connect("inputnode", "dwi_ref", "register_fs_to_qsiprep_wf_inputnode", "qsiprep_reference_image")
		graph.ConnectFields("fs_source", "register_fs_to_qsiprep_wf_inputnode", interchange.FreeSurferFilesToRegister)

		// The FreeSurfer "brain" image stands in as t1_preproc and the aseg
		// as the brain mask.
		graph.Connect("register_fs_to_qsiprep_wf_outputnode", "brain", "buffernode", "t1_preproc")
		graph.Connect("register_fs_to_qsiprep_wf_outputnode", "aseg", "buffernode", "t1_brain_mask")
		graph.Connect("register_fs_to_qsiprep_wf_outputnode", "fs_to_qsiprep_transform_mrtrix", "buffernode", "fs_to_qsiprep_transform_mrtrix")
		graph.Connect("register_fs_to_qsiprep_wf_outputnode", "fs_to_qsiprep_transform_itk", "buffernode", "fs_to_qsiprep_transform_itk")
		graph.ConnectFields("register_fs_to_qsiprep_wf_outputnode", "buffernode", interchange.FreeSurferFilesToRegister)

		status.HasQSIPrepT1w = true
	}

	// Move the HSVS 5tt image out of fsnative if it hasn't been already.
	if contains(opts.ExtrasToMake, Extra5ttHSVS) && !status.HasQSIPrep5ttHSVS {
		r.Logger.Info("HSVS 5tt image will be registered to the DWI reference",
			zap.String("subject_id", opts.SubjectID))
		if !status.HasFreeSurfer5ttHSVS {
			return nil, status, inconsistencyError("the 5tt image in fsnative should have been created by now")
		}
		if err := router.Claim("hsvs_transform", "qsiprep_5tt_hsvs"); err != nil {
			return nil, status, err
		}
		graph.AddNode(pipeline.Node{
			ID:   "apply_header_to_5tt_hsvs",
			Kind: pipeline.KindTool,
			Tool: tools.TransformHeader("in_image", "qsiprep_5tt_hsvs.nii.gz"),
		})
		graph.AddNode(pipeline.Node{
			ID:   "ds_qsiprep_5tt_hsvs",
			Kind: pipeline.KindSink,
			Sink: &pipeline.SinkSpec{Atlas: "hsvs", Suffix: "dseg"},
		})
		graph.Connect("inputnode", "fs_5tt_hsvs", "apply_header_to_5tt_hsvs", "in_image")
		transformSource, err := sourceNodeOf("fs_to_qsiprep_transform_mrtrix")
		if err != nil {
			return nil, status, err
		}
		graph.Connect(transformSource, "fs_to_qsiprep_transform_mrtrix", "apply_header_to_5tt_hsvs", "transform_file")
		graph.Connect("apply_header_to_5tt_hsvs", "out_image", "buffernode", "qsiprep_5tt_hsvs")
		graph.Connect("apply_header_to_5tt_hsvs", "out_image", "ds_qsiprep_5tt_hsvs", "in_file")
	}

	// Check the status of the T1w-to-template transforms.
	if opts.NeedsT1wTransform {
		if status.HasQSIPrepT1wTransforms {
			r.Logger.Info("Found T1w-to-template transforms in the recon inputs")
		} else {
			return nil, status, unsupportedConfigError(
				"reconstruction workflow requires a T1w-to-template transform; none were found (expected %s)",
				strings.Join(qsiprepNormalizedAnatRequirements, ", "))
		}
	}

	// Resample the anatomical brain mask into the DWI grid. Nearest-neighbor
	// keeps the mask binary.
	if status.HasQSIPrepT1w && !opts.PreferDWIMask {
		maskSource, err := sourceNodeOf("t1_brain_mask")
		if err != nil {
			return nil, status, err
		}
		graph.AddNode(pipeline.Node{
			ID:   "resample_mask",
			Kind: pipeline.KindTool,
			Tool: tools.ApplyTransforms(tools.ApplyTransformsSpec{
				Dimension:      3,
				Interpolation:  tools.InterpNearestNeighbor,
				InputField:     "input_image",
				ReferenceField: "reference_image",
				Transforms:     []string{"identity"},
				OutputName:     "dwi_mask.nii.gz",
			}),
		})
		graph.Connect(maskSource, "t1_brain_mask", "resample_mask", "input_image")
		graph.Connect("inputnode", "dwi_ref", "resample_mask", "reference_image")
		graph.Connect("resample_mask", "output_image", "buffernode", "dwi_mask")
	}

	if status.HasQSIPrepT1wTransforms {
		if opts.CrossingROIsPath == "" {
			return nil, status, unsupportedConfigError(
				"a crossing-fiber ROI image is required to map ODF ROIs into DWI space; set anatomical.crossing_rois_path")
		}
		r.Logger.Info("Transforming ODF ROIs into DWI space for the visual report")
		revSource, err := sourceNodeOf("t1_2_mni_reverse_transform")
		if err != nil {
			return nil, status, err
		}
		// Multi-label interpolation keeps the discrete ROI identities.
		graph.AddNode(pipeline.Node{
			ID:   "odf_rois",
			Kind: pipeline.KindTool,
			Tool: tools.ApplyTransforms(tools.ApplyTransformsSpec{
				Dimension:      3,
				Interpolation:  tools.InterpMultiLabel,
				InputField:     "input_image",
				ReferenceField: "reference_image",
				Transforms:     []string{"t1_2_mni_reverse_transform"},
				OutputName:     "odf_rois.nii.gz",
			}),
		})
		crossingROIs := graph.AddNode(pipeline.Node{
			ID:     "crossing_rois",
			Kind:   pipeline.KindIngress,
			Fields: []string{"roi_file"},
			Ingress: &pipeline.IngressSpec{
				Source:   "static",
				InputDir: opts.CrossingROIsPath,
			},
		})
		graph.Connect(crossingROIs, "roi_file", "odf_rois", "input_image")
		graph.Connect(revSource, "t1_2_mni_reverse_transform", "odf_rois", "t1_2_mni_reverse_transform")
		graph.Connect("inputnode", "dwi_file", "odf_rois", "reference_image")
		graph.Connect("odf_rois", "output_image", "buffernode", "odf_rois")

		// Parcellation atlases get the same treatment when requested.
		if len(opts.AtlasNames) > 0 {
			r.Logger.Info("Mapping parcellations from template space to the DWI grid",
				zap.Strings("atlases", opts.AtlasNames))
			if err := r.addAtlasGraph(graph, router, opts); err != nil {
				return nil, status, err
			}
		}
	}

	// Directly connect anything from the inputs that wasn't computed here.
	graph.ConnectFields("inputnode", "outputnode", router.InputFields())
	graph.ConnectFields("buffernode", "outputnode", router.ComputedFields())

	if err := router.Finalize(interchange.ReconWorkflowInputFields); err != nil {
		return nil, status, err
	}
	return graph, status, nil
}

// addOutputGridGraph generates a non-oblique, uniform voxel-size grid around
// the brain for downstream resampling. The grid derives from the masked
// template reoriented to LPS+, boxed, and deobliqued.
func (r *Resolver) addOutputGridGraph(graph *pipeline.Graph, opts AssemblerOptions) error {
	templateName := "MNI152NLin2009cAsym"
	padding := 8
	if opts.Infant {
		templateName = "MNIInfant"
		padding = 4
	}

	graph.AddNode(pipeline.Node{
		ID:     "get_template",
		Kind:   pipeline.KindIngress,
		Fields: []string{"template_file", "mask_file"},
		Ingress: &pipeline.IngressSpec{
			Source:    "template",
			SubjectID: templateName,
			InputDir:  opts.TemplateDir,
		},
	})
	graph.AddNode(pipeline.Node{
		ID:   "mask_template",
		Kind: pipeline.KindTool,
		Tool: tools.Calc("a*b", "template_file", "mask_file", "template_masked.nii.gz"),
	})
	graph.AddNode(pipeline.Node{
		ID:   "reorient_to_lps",
		Kind: pipeline.KindTool,
		Tool: tools.ResampleOrient("RAI", "in_file", "template_lps.nii.gz"),
	})
	graph.AddNode(pipeline.Node{
		ID:   "autobox_template",
		Kind: pipeline.KindTool,
		Tool: tools.Autobox(padding, "in_file", "template_boxed.nii.gz"),
	})
	graph.AddNode(pipeline.Node{
		ID:   "deoblique_autobox",
		Kind: pipeline.KindTool,
		Tool: tools.WarpDeoblique("in_file", "template_deoblique.nii.gz"),
	})
	graph.AddNode(pipeline.Node{
		ID:   "voxel_size_chooser",
		Kind: pipeline.KindTool,
		Tool: &pipeline.ToolSpec{
			Binary:  "builtin:voxel_size_chooser",
			Args:    []string{"{input_image}", fmt.Sprintf("%g", opts.OutputResolution)},
			Outputs: map[string]string{"voxel_size": "voxel_size"},
		},
	})
	graph.AddNode(pipeline.Node{
		ID:   "resample_to_voxel_size",
		Kind: pipeline.KindTool,
		Tool: tools.ResampleVoxelSize("in_file", "resampling_template.nii.gz"),
	})

	graph.Connect("get_template", "template_file", "mask_template", "template_file")
	graph.Connect("get_template", "mask_file", "mask_template", "mask_file")
	graph.Connect("mask_template", "out_file", "reorient_to_lps", "in_file")
	graph.Connect("reorient_to_lps", "out_file", "autobox_template", "in_file")
	graph.Connect("autobox_template", "out_file", "deoblique_autobox", "in_file")
	graph.Connect("inputnode", "dwi_ref", "voxel_size_chooser", "input_image")
	graph.Connect("deoblique_autobox", "out_file", "resample_to_voxel_size", "in_file")
	graph.Connect("voxel_size_chooser", "voxel_size", "resample_to_voxel_size", "voxel_size")
	graph.Connect("resample_to_voxel_size", "out_file", "buffernode", "resampling_template")
	return nil
}

// addAtlasGraph warps each requested parcellation into the DWI grid and
// sinks four artifacts per atlas: the native-resolution image, an MRtrix
// format copy, and the two lookup tables.
func (r *Resolver) addAtlasGraph(graph *pipeline.Graph, router *FieldRouter, opts AssemblerOptions) error {
	revSource, err := func() (string, error) {
		src, err := router.SourceOf("t1_2_mni_reverse_transform")
		if err != nil {
			return "", err
		}
		if src == SourceComputed {
			return "buffernode", nil
		}
		return "inputnode", nil
	}()
	if err != nil {
		return err
	}

	fields := []string{"atlas_configs"}
	outputs := map[string]string{"atlas_configs": "atlas_configs.json"}
	for _, atlas := range opts.AtlasNames {
		fields = append(fields,
			atlas+"_dwi_resolution_file",
			atlas+"_dwi_resolution_mif",
			atlas+"_mrtrix_lut",
			atlas+"_orig_lut",
		)
		outputs[atlas+"_dwi_resolution_file"] = atlas + "_dseg.nii.gz"
		outputs[atlas+"_dwi_resolution_mif"] = atlas + "_dseg.mif.gz"
		outputs[atlas+"_mrtrix_lut"] = atlas + "_mrtrix_lut.txt"
		outputs[atlas+"_orig_lut"] = atlas + "_orig_lut.txt"
	}

	graph.AddNode(pipeline.Node{
		ID:   "get_atlases",
		Kind: pipeline.KindTool,
		Tool: &pipeline.ToolSpec{
			Binary:  "builtin:warp_atlases",
			Args:    append([]string{"{forward_transform}", "{reference_image}", "--atlas-dir", opts.AtlasDir}, opts.AtlasNames...),
			Outputs: outputs,
		},
		Fields: fields,
	})
	graph.Connect(revSource, "t1_2_mni_reverse_transform", "get_atlases", "forward_transform")
	graph.Connect("inputnode", "dwi_file", "get_atlases", "reference_image")
	graph.Connect("get_atlases", "atlas_configs", "buffernode", "atlas_configs")

	for _, atlas := range opts.AtlasNames {
		sinks := []struct {
			id    string
			field string
			spec  pipeline.SinkSpec
		}{
			{"ds_atlas_" + atlas, atlas + "_dwi_resolution_file",
				pipeline.SinkSpec{Atlas: atlas, Suffix: "dseg", Compress: true}},
			{"ds_atlas_mifs_" + atlas, atlas + "_dwi_resolution_mif",
				pipeline.SinkSpec{Atlas: atlas, Suffix: "dseg", Extension: ".mif.gz", Compress: true}},
			{"ds_atlas_mrtrix_lut_" + atlas, atlas + "_mrtrix_lut",
				pipeline.SinkSpec{Atlas: atlas, Suffix: "dseg", Extension: ".txt"}},
			{"ds_atlas_orig_lut_" + atlas, atlas + "_orig_lut",
				pipeline.SinkSpec{Atlas: atlas, Suffix: "dseg", Extension: ".txt"}},
		}
		for _, s := range sinks {
			spec := s.spec
			graph.AddNode(pipeline.Node{ID: s.id, Kind: pipeline.KindSink, Sink: &spec})
			graph.Connect("get_atlases", s.field, s.id, "in_file")
			graph.Connect("inputnode", "dwi_file", s.id, "source_file")
		}
	}
	return nil
}
