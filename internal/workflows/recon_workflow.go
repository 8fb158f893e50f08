package workflows

import (
	"fmt"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/dmriflow/dmriflow/internal/activities"
	"github.com/dmriflow/dmriflow/internal/constants"
	"github.com/dmriflow/dmriflow/internal/pipeline"
)

// ReconWorkflow executes a compiled subject graph deterministically: identity
// nodes propagate values in-workflow, everything else dispatches to
// activities in topological order.
func ReconWorkflow(ctx workflow.Context, input ReconWorkflowInput) (ReconWorkflowResult, error) {
	logger := workflow.GetLogger(ctx)

	if input.Graph == nil {
		return ReconWorkflowResult{Success: false, ErrorMessage: "no graph provided"},
			temporal.NewNonRetryableApplicationError("no graph provided", "invalid_input", nil)
	}

	plan, err := pipeline.Compile(input.Graph)
	if err != nil {
		logger.Error("Graph failed to compile", "graph", input.Graph.Name, "error", err)
		return ReconWorkflowResult{Success: false, ErrorMessage: err.Error()},
			temporal.NewNonRetryableApplicationError("graph failed to compile", "invalid_graph", err)
	}

	logger.Info("Starting ReconWorkflow",
		"graph", plan.GraphName,
		"subject_id", input.SubjectID,
		"nodes", len(plan.Order),
	)

	// values[node][field] holds every produced field, keyed by producer.
	values := make(map[string]map[string]string, len(plan.Nodes))
	result := ReconWorkflowResult{Outputs: map[string]string{}}

	for _, nodeID := range plan.Order {
		node := plan.Nodes[nodeID]
		inputs, err := resolveInputs(&node, values)
		if err != nil {
			return ReconWorkflowResult{Success: false, ErrorMessage: err.Error()}, err
		}

		var produced map[string]string
		switch node.Kind {
		case pipeline.KindIdentity:
			produced = runIdentityNode(&node, inputs, input.InputFields)

		case pipeline.KindIngress:
			produced, err = runIngressNode(ctx, &node)

		case pipeline.KindTool:
			produced, err = runToolNode(ctx, plan.GraphName, &node, inputs, input.WorkDir)

		case pipeline.KindSink:
			var outFile string
			outFile, err = runSinkNode(ctx, plan.GraphName, &node, inputs)
			if err == nil {
				result.Derivatives = append(result.Derivatives, outFile)
			}

		default:
			err = fmt.Errorf("node %s has unknown kind %q", node.ID, node.Kind)
		}
		if err != nil {
			logger.Error("Graph node failed",
				"graph", plan.GraphName,
				"node", node.ID,
				"error", err,
			)
			result.Success = false
			result.ErrorMessage = fmt.Sprintf("node %s: %v", node.ID, err)
			return result, err
		}

		values[node.ID] = produced
		result.NodesRun++
	}

	if out, ok := values["outputnode"]; ok {
		result.Outputs = out
	}
	result.Success = true
	logger.Info("ReconWorkflow completed",
		"graph", plan.GraphName,
		"nodes_run", result.NodesRun,
		"derivatives", len(result.Derivatives),
	)
	return result, nil
}

// resolveInputs looks up each wired input in the producers' recorded values.
// A missing producer value is a compile-order bug, not a data problem.
func resolveInputs(node *pipeline.ExecutableNode, values map[string]map[string]string) (map[string]string, error) {
	inputs := make(map[string]string, len(node.Inputs))
	for field, ref := range node.Inputs {
		produced, ok := values[ref.Node]
		if !ok {
			return nil, fmt.Errorf("node %s consumes %s.%s before it ran", node.ID, ref.Node, ref.Field)
		}
		v, ok := produced[ref.Field]
		if !ok {
			// Unset optional fields flow through as empty values; sinks
			// and tools decide whether that is fatal.
			continue
		}
		inputs[field] = v
	}
	return inputs, nil
}

// runIdentityNode passes wired values through and seeds the inputnode from
// the caller-provided fields.
func runIdentityNode(node *pipeline.ExecutableNode, inputs, seed map[string]string) map[string]string {
	produced := make(map[string]string, len(node.Fields))
	if node.ID == "inputnode" {
		for _, field := range node.Fields {
			if v, ok := seed[field]; ok {
				produced[field] = v
			}
		}
	}
	for field, v := range inputs {
		produced[field] = v
	}
	return produced
}

func runIngressNode(ctx workflow.Context, node *pipeline.ExecutableNode) (map[string]string, error) {
	// File probing is quick but permanent on failure: a missing
	// preprocessing output will not appear on retry.
	actCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 2 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: 2,
		},
	})
	if node.Ingress.Source == "dwi" {
		var out activities.IngestDWIResult
		err := workflow.ExecuteActivity(actCtx, constants.IngestDWIActivity, activities.IngestDWIInput{
			DWIFile: node.Ingress.InputDir,
		}).Get(ctx, &out)
		if err != nil {
			return nil, err
		}
		return out.Fields, nil
	}

	var out activities.IngestAnatomicalResult
	err := workflow.ExecuteActivity(actCtx, constants.IngestAnatomicalActivity, activities.IngestAnatomicalInput{
		GraphName: workflow.GetInfo(ctx).WorkflowExecution.ID,
		NodeID:    node.ID,
		Ingress:   *node.Ingress,
	}).Get(ctx, &out)
	if err != nil {
		return nil, err
	}
	return out.Fields, nil
}

func runToolNode(ctx workflow.Context, graphName string, node *pipeline.ExecutableNode, inputs map[string]string, workDir string) (map[string]string, error) {
	// Registration and segmentation run for hours; heartbeats keep the
	// activity from being considered lost.
	actCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 12 * time.Hour,
		HeartbeatTimeout:    5 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval: 30 * time.Second,
			MaximumAttempts: 2,
		},
	})
	var out activities.RunToolNodeResult
	err := workflow.ExecuteActivity(actCtx, constants.RunToolNodeActivity, activities.RunToolNodeInput{
		GraphName: graphName,
		NodeID:    node.ID,
		Tool:      *node.Tool,
		Inputs:    inputs,
		WorkDir:   workDir,
	}).Get(ctx, &out)
	if err != nil {
		return nil, err
	}
	return out.Outputs, nil
}

func runSinkNode(ctx workflow.Context, graphName string, node *pipeline.ExecutableNode, inputs map[string]string) (string, error) {
	actCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 5 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: 3,
		},
	})
	var out activities.RunSinkNodeResult
	err := workflow.ExecuteActivity(actCtx, constants.RunSinkNodeActivity, activities.RunSinkNodeInput{
		GraphName:  graphName,
		NodeID:     node.ID,
		Sink:       *node.Sink,
		InFile:     inputs["in_file"],
		SourceFile: inputs["source_file"],
	}).Get(ctx, &out)
	if err != nil {
		return "", err
	}
	return out.OutFile, nil
}
