package workflows

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/testsuite"

	"github.com/dmriflow/dmriflow/internal/activities"
	"github.com/dmriflow/dmriflow/internal/pipeline"
)

// testGraph builds a minimal graph: inputnode feeds a tool whose output is
// both sunk as a derivative and exposed on the outputnode.
func testGraph() *pipeline.Graph {
	g := pipeline.NewGraph("test_wf")
	g.AddNode(pipeline.Node{
		ID:     "inputnode",
		Kind:   pipeline.KindIdentity,
		Fields: []string{"dwi_file", "dwi_ref"},
	})
	g.AddNode(pipeline.Node{
		ID:   "mask",
		Kind: pipeline.KindTool,
		Tool: &pipeline.ToolSpec{
			Binary:  "3dAutomask",
			Args:    []string{"-prefix", "{out_file}", "{in_file}"},
			Outputs: map[string]string{"out_file": "mask.nii.gz"},
		},
	})
	g.AddNode(pipeline.Node{
		ID:   "ds_mask",
		Kind: pipeline.KindSink,
		Sink: &pipeline.SinkSpec{Desc: "brain", Suffix: "mask", Compress: true},
	})
	g.AddNode(pipeline.Node{
		ID:     "outputnode",
		Kind:   pipeline.KindIdentity,
		Fields: []string{"dwi_mask"},
	})
	g.Connect("inputnode", "dwi_ref", "mask", "in_file")
	g.Connect("mask", "out_file", "ds_mask", "in_file")
	g.Connect("inputnode", "dwi_file", "ds_mask", "source_file")
	g.Connect("mask", "out_file", "outputnode", "dwi_mask")
	return g
}

func TestReconWorkflow_ExecutesPlanInOrder(t *testing.T) {
	testSuite := &testsuite.WorkflowTestSuite{}
	env := testSuite.NewTestWorkflowEnvironment()

	var toolInputs activities.RunToolNodeInput
	env.RegisterActivityWithOptions(
		func(ctx context.Context, in activities.RunToolNodeInput) (activities.RunToolNodeResult, error) {
			toolInputs = in
			return activities.RunToolNodeResult{
				Outputs: map[string]string{"out_file": "/work/test_wf/mask/mask.nii.gz"},
			}, nil
		},
		activity.RegisterOptions{Name: "RunToolNode"},
	)
	var sinkInputs activities.RunSinkNodeInput
	env.RegisterActivityWithOptions(
		func(ctx context.Context, in activities.RunSinkNodeInput) (activities.RunSinkNodeResult, error) {
			sinkInputs = in
			return activities.RunSinkNodeResult{OutFile: "/out/sub-01/anat/sub-01_desc-brain_mask.nii.gz"}, nil
		},
		activity.RegisterOptions{Name: "RunSinkNode"},
	)

	env.ExecuteWorkflow(ReconWorkflow, ReconWorkflowInput{
		SubjectID: "01",
		Graph:     testGraph(),
		InputFields: map[string]string{
			"dwi_file": "/data/sub-01_space-T1w_desc-preproc_dwi.nii.gz",
			"dwi_ref":  "/data/sub-01_space-T1w_dwiref.nii.gz",
		},
		WorkDir: "/work",
	})

	assert.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var result ReconWorkflowResult
	require.NoError(t, env.GetWorkflowResult(&result))
	assert.True(t, result.Success)
	assert.Equal(t, 4, result.NodesRun)
	assert.Equal(t, "/work/test_wf/mask/mask.nii.gz", result.Outputs["dwi_mask"])
	assert.Equal(t, []string{"/out/sub-01/anat/sub-01_desc-brain_mask.nii.gz"}, result.Derivatives)

	// The tool saw the seeded input path, not a placeholder.
	assert.Equal(t, "/data/sub-01_space-T1w_dwiref.nii.gz", toolInputs.Inputs["in_file"])
	assert.Equal(t, "test_wf", toolInputs.GraphName)

	// The sink got both the produced file and its BIDS source.
	assert.Equal(t, "/work/test_wf/mask/mask.nii.gz", sinkInputs.InFile)
	assert.Equal(t, "/data/sub-01_space-T1w_desc-preproc_dwi.nii.gz", sinkInputs.SourceFile)
}

func TestReconWorkflow_IngressFieldsFlowThrough(t *testing.T) {
	testSuite := &testsuite.WorkflowTestSuite{}
	env := testSuite.NewTestWorkflowEnvironment()

	g := pipeline.NewGraph("ingress_wf")
	g.AddNode(pipeline.Node{
		ID:      "anat_ingress",
		Kind:    pipeline.KindIngress,
		Fields:  []string{"t1_preproc", "t1_brain_mask"},
		Ingress: &pipeline.IngressSpec{Source: "qsiprep", SubjectID: "01", InputDir: "/qsiprep"},
	})
	g.AddNode(pipeline.Node{
		ID:     "outputnode",
		Kind:   pipeline.KindIdentity,
		Fields: []string{"t1_preproc", "t1_brain_mask"},
	})
	g.Connect("anat_ingress", "t1_preproc", "outputnode", "t1_preproc")
	g.Connect("anat_ingress", "t1_brain_mask", "outputnode", "t1_brain_mask")

	env.RegisterActivityWithOptions(
		func(ctx context.Context, in activities.IngestAnatomicalInput) (activities.IngestAnatomicalResult, error) {
			assert.Equal(t, "qsiprep", in.Ingress.Source)
			return activities.IngestAnatomicalResult{Fields: map[string]string{
				"t1_preproc":    "/qsiprep/sub-01/anat/sub-01_desc-preproc_T1w.nii.gz",
				"t1_brain_mask": "/qsiprep/sub-01/anat/sub-01_desc-brain_mask.nii.gz",
			}}, nil
		},
		activity.RegisterOptions{Name: "IngestAnatomical"},
	)

	env.ExecuteWorkflow(ReconWorkflow, ReconWorkflowInput{SubjectID: "01", Graph: g, WorkDir: "/work"})

	assert.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var result ReconWorkflowResult
	require.NoError(t, env.GetWorkflowResult(&result))
	assert.Equal(t, "/qsiprep/sub-01/anat/sub-01_desc-preproc_T1w.nii.gz", result.Outputs["t1_preproc"])
	assert.Equal(t, "/qsiprep/sub-01/anat/sub-01_desc-brain_mask.nii.gz", result.Outputs["t1_brain_mask"])
}

func TestReconWorkflow_DWIIngressDispatchesLocator(t *testing.T) {
	testSuite := &testsuite.WorkflowTestSuite{}
	env := testSuite.NewTestWorkflowEnvironment()

	const dwiFile = "/data/sub-01/dwi/sub-01_space-T1w_desc-preproc_dwi.nii.gz"

	g := pipeline.NewGraph("dwi_ingress_wf")
	g.AddNode(pipeline.Node{
		ID:      "dwi_source",
		Kind:    pipeline.KindIngress,
		Fields:  []string{"dwi_file", "bval_file", "bvec_file"},
		Ingress: &pipeline.IngressSpec{Source: "dwi", SubjectID: "01", InputDir: dwiFile},
	})
	g.AddNode(pipeline.Node{
		ID:     "outputnode",
		Kind:   pipeline.KindIdentity,
		Fields: []string{"dwi_file", "bval_file", "bvec_file"},
	})
	g.Connect("dwi_source", "dwi_file", "outputnode", "dwi_file")
	g.Connect("dwi_source", "bval_file", "outputnode", "bval_file")
	g.Connect("dwi_source", "bvec_file", "outputnode", "bvec_file")

	var located activities.IngestDWIInput
	env.RegisterActivityWithOptions(
		func(ctx context.Context, in activities.IngestDWIInput) (activities.IngestDWIResult, error) {
			located = in
			return activities.IngestDWIResult{Fields: map[string]string{
				"dwi_file":  in.DWIFile,
				"bval_file": "/data/sub-01/dwi/sub-01_space-T1w_desc-preproc_dwi.bval",
				"bvec_file": "/data/sub-01/dwi/sub-01_space-T1w_desc-preproc_dwi.bvec",
			}}, nil
		},
		activity.RegisterOptions{Name: "IngestDWI"},
	)

	env.ExecuteWorkflow(ReconWorkflow, ReconWorkflowInput{SubjectID: "01", Graph: g, WorkDir: "/work"})

	assert.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	// The worker located the series, not the submitting client.
	assert.Equal(t, dwiFile, located.DWIFile)

	var result ReconWorkflowResult
	require.NoError(t, env.GetWorkflowResult(&result))
	assert.Equal(t, dwiFile, result.Outputs["dwi_file"])
	assert.Equal(t, "/data/sub-01/dwi/sub-01_space-T1w_desc-preproc_dwi.bval", result.Outputs["bval_file"])
}

func TestReconWorkflow_ToolFailureFailsWorkflow(t *testing.T) {
	testSuite := &testsuite.WorkflowTestSuite{}
	env := testSuite.NewTestWorkflowEnvironment()

	env.RegisterActivityWithOptions(
		func(ctx context.Context, in activities.RunToolNodeInput) (activities.RunToolNodeResult, error) {
			return activities.RunToolNodeResult{}, errors.New("3dAutomask failed: exit status 1")
		},
		activity.RegisterOptions{Name: "RunToolNode"},
	)
	env.RegisterActivityWithOptions(
		func(ctx context.Context, in activities.RunSinkNodeInput) (activities.RunSinkNodeResult, error) {
			t.Fatal("sink must not run after its producer failed")
			return activities.RunSinkNodeResult{}, nil
		},
		activity.RegisterOptions{Name: "RunSinkNode"},
	)

	env.ExecuteWorkflow(ReconWorkflow, ReconWorkflowInput{
		SubjectID: "01",
		Graph:     testGraph(),
		InputFields: map[string]string{
			"dwi_file": "/data/dwi.nii.gz",
			"dwi_ref":  "/data/dwiref.nii.gz",
		},
		WorkDir: "/work",
	})

	assert.True(t, env.IsWorkflowCompleted())
	assert.Error(t, env.GetWorkflowError())
}

func TestReconWorkflow_RejectsUncompilableGraph(t *testing.T) {
	testSuite := &testsuite.WorkflowTestSuite{}
	env := testSuite.NewTestWorkflowEnvironment()

	g := pipeline.NewGraph("cyclic_wf")
	g.AddNode(pipeline.Node{ID: "a", Kind: pipeline.KindIdentity, Fields: []string{"x"}})
	g.AddNode(pipeline.Node{ID: "b", Kind: pipeline.KindIdentity, Fields: []string{"x"}})
	g.Connect("a", "x", "b", "x")
	g.Connect("b", "x", "a", "x")

	env.ExecuteWorkflow(ReconWorkflow, ReconWorkflowInput{SubjectID: "01", Graph: g})

	assert.True(t, env.IsWorkflowCompleted())
	assert.Error(t, env.GetWorkflowError())
}

func TestReconWorkflow_NilGraph(t *testing.T) {
	testSuite := &testsuite.WorkflowTestSuite{}
	env := testSuite.NewTestWorkflowEnvironment()

	env.ExecuteWorkflow(ReconWorkflow, ReconWorkflowInput{SubjectID: "01"})

	assert.True(t, env.IsWorkflowCompleted())
	assert.Error(t, env.GetWorkflowError())
}
