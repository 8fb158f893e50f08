// Package interceptors carries cross-cutting worker behavior that must not
// live inside workflow code.
package interceptors

import (
	"go.temporal.io/sdk/interceptor"
	"go.temporal.io/sdk/workflow"

	"github.com/dmriflow/dmriflow/internal/metrics"
)

// WorkflowMetricsInterceptor counts workflow starts and completions at the
// worker boundary. Workflow bodies re-execute during history replay, so a
// counter incremented there fires once per replay; the replay guard here
// keeps one execution worth exactly one increment.
type WorkflowMetricsInterceptor struct {
	interceptor.WorkerInterceptorBase
}

// NewWorkflowMetricsInterceptor returns an interceptor ready to be passed to
// worker.Options.
func NewWorkflowMetricsInterceptor() *WorkflowMetricsInterceptor {
	return &WorkflowMetricsInterceptor{}
}

// InterceptWorkflow wraps every workflow execution handled by the worker.
func (w *WorkflowMetricsInterceptor) InterceptWorkflow(ctx workflow.Context, next interceptor.WorkflowInboundInterceptor) interceptor.WorkflowInboundInterceptor {
	return &workflowMetricsInbound{
		WorkflowInboundInterceptorBase: interceptor.WorkflowInboundInterceptorBase{Next: next},
	}
}

type workflowMetricsInbound struct {
	interceptor.WorkflowInboundInterceptorBase
}

func (i *workflowMetricsInbound) ExecuteWorkflow(ctx workflow.Context, in *interceptor.ExecuteWorkflowInput) (interface{}, error) {
	workflowType := workflow.GetInfo(ctx).WorkflowType.Name
	if !workflow.IsReplaying(ctx) {
		metrics.WorkflowsStarted.WithLabelValues(workflowType).Inc()
	}

	result, err := i.Next.ExecuteWorkflow(ctx, in)

	if !workflow.IsReplaying(ctx) {
		status := "success"
		if err != nil {
			status = "error"
		}
		metrics.WorkflowsCompleted.WithLabelValues(workflowType, status).Inc()
	}
	return result, err
}
