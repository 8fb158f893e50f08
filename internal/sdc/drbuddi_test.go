package sdc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/dmriflow/dmriflow/internal/pipeline"
)

func epiGroups() ScanGroups {
	return ScanGroups{
		DWISeries:      []string{"sub-01_dir-AP_dwi.nii.gz"},
		DWISeriesPEDir: "j",
		FieldmapInfo: FieldmapInfo{
			Suffix: "epi",
			EPI:    []string{"sub-01_dir-PA_epi.nii.gz"},
		},
		ConcatenatedBIDSName: "sub-01_dir-AP",
	}
}

func TestFieldmapInfoFiles(t *testing.T) {
	assert.Equal(t, []string{"a.nii.gz"}, FieldmapInfo{Suffix: "epi", EPI: []string{"a.nii.gz"}}.Files())
	assert.Equal(t, []string{"b.nii.gz"}, FieldmapInfo{Suffix: "rpe_series", RPESeries: []string{"b.nii.gz"}}.Files())
	assert.Equal(t, []string{"c.nii.gz"}, FieldmapInfo{Suffix: "dwi", DWI: []string{"c.nii.gz"}}.Files())
	assert.Nil(t, FieldmapInfo{Suffix: "phasediff"}.Files())
}

func TestInitDRBUDDIGraphRejectsUnsupportedFieldmaps(t *testing.T) {
	groups := epiGroups()
	groups.FieldmapInfo.Suffix = "phasediff"

	_, err := InitDRBUDDIGraph(groups, Options{}, zaptest.NewLogger(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "epi, rpe_series or dwi")
}

func TestInitDRBUDDIGraphWiring(t *testing.T) {
	graph, err := InitDRBUDDIGraph(epiGroups(), Options{B0Threshold: 100, NThreads: 4}, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.Equal(t, "drbuddi_sdc_wf", graph.Name)

	gather := graph.NodeByID("gather_drbuddi_inputs")
	require.NotNil(t, gather)
	assert.Contains(t, gather.Tool.Args, "--pe-dir")
	assert.Contains(t, gather.Tool.Args, "j")
	assert.Contains(t, gather.Tool.Args, "sub-01_dir-PA_epi.nii.gz")
	assert.NotContains(t, gather.Tool.Args, "--raw-image-sdc")

	plan, err := pipeline.Compile(graph)
	require.NoError(t, err)

	// DRBUDDI consumes the gathered blip pair and feeds the aggregator.
	drbuddi := plan.Nodes["drbuddi"]
	assert.Equal(t, "gather_drbuddi_inputs", drbuddi.Inputs["blip_up_image"].Node)
	assert.Equal(t, "inputnode", drbuddi.Inputs["structural_image"].Node)

	agg := plan.Nodes["aggregate_drbuddi"]
	assert.Equal(t, "drbuddi", agg.Inputs["deformation_finv"].Node)
	assert.Equal(t, "gather_drbuddi_inputs", agg.Inputs["blip_assignments"].Node)

	out := plan.Nodes["outputnode"]
	assert.Equal(t, "drbuddi", out.Inputs["b0_ref"].Node)
	assert.Equal(t, "aggregate_drbuddi", out.Inputs["b0_mask"].Node)
	assert.Equal(t, "aggregate_drbuddi", out.Inputs["sdc_warps"].Node)
}

func TestInitDRBUDDIGraphRawImageSDC(t *testing.T) {
	graph, err := InitDRBUDDIGraph(epiGroups(), Options{RawImageSDC: true, Name: "custom_sdc_wf"}, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.Equal(t, "custom_sdc_wf", graph.Name)
	assert.Contains(t, graph.NodeByID("gather_drbuddi_inputs").Tool.Args, "--raw-image-sdc")
}

func TestMethod(t *testing.T) {
	method := Method(FieldmapInfo{Suffix: "rpe_series"})
	assert.Contains(t, method, "PEPOLAR")
	assert.Contains(t, method, "rpe_series")
}
