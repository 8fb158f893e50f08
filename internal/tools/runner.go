package tools

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"regexp"
	"time"

	"go.uber.org/zap"

	"github.com/dmriflow/dmriflow/internal/pipeline"
)

var placeholderRe = regexp.MustCompile(`\{([a-zA-Z0-9_]+)\}`)

// RenderArgs substitutes {field} placeholders in a tool's arguments. Input
// fields resolve to materialized paths; output fields resolve to paths under
// workDir. Unresolved placeholders are an internal-consistency error: the
// assembler wired a field no branch produced.
func RenderArgs(spec *pipeline.ToolSpec, inputs map[string]string, workDir string) ([]string, map[string]string, error) {
	outputs := make(map[string]string, len(spec.Outputs))
	for field, rel := range spec.Outputs {
		outputs[field] = filepath.Join(workDir, rel)
	}

	rendered := make([]string, 0, len(spec.Args))
	for _, arg := range spec.Args {
		var missing string
		out := placeholderRe.ReplaceAllStringFunc(arg, func(m string) string {
			name := m[1 : len(m)-1]
			if p, ok := inputs[name]; ok {
				return p
			}
			if p, ok := outputs[name]; ok {
				return p
			}
			missing = name
			return m
		})
		if missing != "" {
			return nil, nil, fmt.Errorf("argument %q of %s references unbound field %q", arg, spec.Binary, missing)
		}
		rendered = append(rendered, out)
	}
	return rendered, outputs, nil
}

// Runner executes rendered tool commands.
type Runner struct {
	logger *zap.Logger
}

// NewRunner creates a runner that logs tool output through the given logger.
func NewRunner(logger *zap.Logger) *Runner {
	return &Runner{logger: logger}
}

// Run executes the binary with the rendered arguments, returning the declared
// output paths. Stderr is captured and attached to the error on failure.
func (r *Runner) Run(ctx context.Context, spec *pipeline.ToolSpec, inputs map[string]string, workDir string) (map[string]string, error) {
	args, outputs, err := RenderArgs(spec, inputs, workDir)
	if err != nil {
		return nil, err
	}

	if _, err := exec.LookPath(spec.Binary); err != nil {
		return nil, fmt.Errorf("tool %s not found on PATH: %w", spec.Binary, err)
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, spec.Binary, args...)
	cmd.Dir = workDir
	cmd.Stderr = &stderr

	start := time.Now()
	r.logger.Info("Running external tool",
		zap.String("binary", spec.Binary),
		zap.Strings("args", args),
		zap.String("work_dir", workDir),
	)
	if err := cmd.Run(); err != nil {
		r.logger.Error("External tool failed",
			zap.String("binary", spec.Binary),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("stderr", stderr.String()),
			zap.Error(err),
		)
		return nil, fmt.Errorf("%s failed: %w: %s", spec.Binary, err, stderr.String())
	}
	r.logger.Info("External tool finished",
		zap.String("binary", spec.Binary),
		zap.Duration("elapsed", time.Since(start)),
	)
	return outputs, nil
}
