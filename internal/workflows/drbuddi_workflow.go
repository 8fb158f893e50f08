package workflows

import (
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
	"go.uber.org/zap"

	"github.com/dmriflow/dmriflow/internal/sdc"
)

// DRBUDDIWorkflowInput describes one distortion group to correct.
type DRBUDDIWorkflowInput struct {
	SubjectID string
	Groups    sdc.ScanGroups
	Options   sdc.Options
	// InputFields seed the graph's inputnode: the concatenated DWI series,
	// its gradient tables, and optional structural images.
	InputFields map[string]string
	WorkDir     string
}

// DRBUDDIWorkflow assembles and executes susceptibility distortion
// correction for one scan group. Assembly is deterministic (no filesystem
// probes), so it runs inside the workflow.
func DRBUDDIWorkflow(ctx workflow.Context, input DRBUDDIWorkflowInput) (ReconWorkflowResult, error) {
	graph, err := sdc.InitDRBUDDIGraph(input.Groups, input.Options, zap.NewNop())
	if err != nil {
		workflow.GetLogger(ctx).Error("DRBUDDI graph assembly failed",
			"subject_id", input.SubjectID,
			"error", err,
		)
		return ReconWorkflowResult{Success: false, ErrorMessage: err.Error()},
			temporal.NewNonRetryableApplicationError("DRBUDDI graph assembly failed", "invalid_fieldmap", err)
	}
	return ReconWorkflow(ctx, ReconWorkflowInput{
		SubjectID:   input.SubjectID,
		Graph:       graph,
		InputFields: input.InputFields,
		WorkDir:     input.WorkDir,
	})
}
