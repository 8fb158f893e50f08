package workflows

import (
	"github.com/dmriflow/dmriflow/internal/pipeline"
)

// ReconWorkflowInput carries one assembled subject graph for execution.
// Graphs are assembled client-side so the workflow stays deterministic: it
// only compiles, orders, and dispatches.
type ReconWorkflowInput struct {
	SubjectID string
	Graph     *pipeline.Graph
	// InputFields seed the graph's inputnode: field name to materialized
	// path (or literal value).
	InputFields map[string]string
	WorkDir     string
}

// ReconWorkflowResult reports the outputnode's resolved fields and every
// derivative the sinks wrote.
type ReconWorkflowResult struct {
	Success      bool
	ErrorMessage string
	Outputs      map[string]string
	Derivatives  []string
	NodesRun     int
}
