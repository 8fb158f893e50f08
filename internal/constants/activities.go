package constants

// Activity names used for workflow registration and execution.
// Using constants eliminates magic strings and ensures consistency.
const (
	// Graph execution activities
	RunToolNodeActivity = "RunToolNode"
	RunSinkNodeActivity = "RunSinkNode"

	// Ingestion activities
	IngestAnatomicalActivity = "IngestAnatomical"
	IngestDWIActivity        = "IngestDWI"
)

// TaskQueue is the Temporal task queue the worker listens on.
const TaskQueue = "dmriflow"
