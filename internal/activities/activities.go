package activities

import (
	"go.uber.org/zap"

	"github.com/dmriflow/dmriflow/internal/tools"
)

// Activities holds dependencies for activity implementations.
type Activities struct {
	logger    *zap.Logger
	runner    *tools.Runner
	outputDir string
}

// NewActivities creates a new activities instance with dependencies.
func NewActivities(logger *zap.Logger, runner *tools.Runner, outputDir string) *Activities {
	return &Activities{
		logger:    logger,
		runner:    runner,
		outputDir: outputDir,
	}
}
