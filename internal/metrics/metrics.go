package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Assembly metrics
	PlansAssembled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dmriflow_plans_assembled_total",
			Help: "Total number of task graphs assembled and compiled",
		},
		[]string{"graph"},
	)

	AssemblyFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dmriflow_assembly_failures_total",
			Help: "Total number of graph assembly failures",
		},
		[]string{"graph", "error_class"},
	)

	// Workflow metrics
	WorkflowsStarted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dmriflow_workflows_started_total",
			Help: "Total number of workflow executions started on this worker",
		},
		[]string{"workflow_type"},
	)

	WorkflowsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dmriflow_workflows_completed_total",
			Help: "Total number of workflows completed",
		},
		[]string{"workflow_type", "status"},
	)

	// Tool metrics
	ToolInvocations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dmriflow_tool_invocations_total",
			Help: "Total number of external tool invocations",
		},
		[]string{"binary", "status"},
	)

	ToolDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dmriflow_tool_duration_seconds",
			Help:    "External tool execution duration in seconds",
			Buckets: []float64{1, 5, 15, 60, 300, 900, 3600, 14400},
		},
		[]string{"binary"},
	)
)
