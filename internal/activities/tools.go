package activities

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.temporal.io/sdk/activity"
	"go.uber.org/zap"

	"github.com/dmriflow/dmriflow/internal/bids"
	"github.com/dmriflow/dmriflow/internal/metrics"
	"github.com/dmriflow/dmriflow/internal/pipeline"
	"github.com/dmriflow/dmriflow/internal/tracing"
)

// RunToolNodeInput carries one tool node's rendered execution request.
type RunToolNodeInput struct {
	GraphName string
	NodeID    string
	Tool      pipeline.ToolSpec
	// Inputs maps the node's input fields to materialized paths.
	Inputs  map[string]string
	WorkDir string
}

// RunToolNodeResult returns the paths (or literal values, for builtins) of
// the node's declared outputs.
type RunToolNodeResult struct {
	Outputs map[string]string
}

// RunToolNode executes one graph node: an external binary, or one of the
// small builtin computations that never warrant a subprocess.
func (a *Activities) RunToolNode(ctx context.Context, in RunToolNodeInput) (RunToolNodeResult, error) {
	workDir := filepath.Join(in.WorkDir, in.GraphName, in.NodeID)
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return RunToolNodeResult{}, fmt.Errorf("create work dir: %w", err)
	}

	activity.RecordHeartbeat(ctx, in.NodeID)

	if strings.HasPrefix(in.Tool.Binary, "builtin:") {
		outputs, err := a.runBuiltin(ctx, &in, workDir)
		if err != nil {
			metrics.ToolInvocations.WithLabelValues(in.Tool.Binary, "error").Inc()
			return RunToolNodeResult{}, err
		}
		metrics.ToolInvocations.WithLabelValues(in.Tool.Binary, "ok").Inc()
		return RunToolNodeResult{Outputs: outputs}, nil
	}

	ctx, span := tracing.StartToolSpan(ctx, in.Tool.Binary, in.NodeID)
	defer span.End()

	start := time.Now()
	outputs, err := a.runner.Run(ctx, &in.Tool, in.Inputs, workDir)
	metrics.ToolDuration.WithLabelValues(in.Tool.Binary).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.ToolInvocations.WithLabelValues(in.Tool.Binary, "error").Inc()
		return RunToolNodeResult{}, err
	}
	metrics.ToolInvocations.WithLabelValues(in.Tool.Binary, "ok").Inc()
	return RunToolNodeResult{Outputs: outputs}, nil
}

// RunSinkNodeInput asks for one derivative file to be written into the
// output tree with entities derived from its source file.
type RunSinkNodeInput struct {
	GraphName  string
	NodeID     string
	Sink       pipeline.SinkSpec
	InFile     string
	SourceFile string
}

// RunSinkNodeResult names the written derivative.
type RunSinkNodeResult struct {
	OutFile string
}

// RunSinkNode copies a produced file into the derivatives tree under a
// BIDS-style name built from the source file's entities and the sink spec.
func (a *Activities) RunSinkNode(ctx context.Context, in RunSinkNodeInput) (RunSinkNodeResult, error) {
	if in.InFile == "" {
		return RunSinkNodeResult{}, fmt.Errorf("sink %s has no input file", in.NodeID)
	}

	entities := bids.Entities{Suffix: in.Sink.Suffix}
	if in.SourceFile != "" {
		parsed, err := bids.ParseFilename(in.SourceFile)
		if err != nil {
			return RunSinkNodeResult{}, fmt.Errorf("sink %s: %w", in.NodeID, err)
		}
		entities = parsed
		entities.Suffix = in.Sink.Suffix
		// The desc entity describes the upstream file, not this derivative.
		entities.Desc = ""
	}
	if in.Sink.Desc != "" {
		entities.Desc = in.Sink.Desc
	}
	if in.Sink.Space != "" {
		entities.Space = in.Sink.Space
	}

	extension := in.Sink.Extension
	if extension == "" {
		extension = ".nii"
		if in.Sink.Compress {
			extension = ".nii.gz"
		}
	}
	name := entities.Filename(extension)
	if in.Sink.Atlas != "" {
		// Atlas names slot in before the suffix.
		name = strings.Replace(name, "_"+in.Sink.Suffix, "_atlas-"+in.Sink.Atlas+"_"+in.Sink.Suffix, 1)
	}

	outDir := filepath.Join(a.outputDir, in.GraphName)
	if entities.Subject != "" {
		outDir = filepath.Join(a.outputDir, "sub-"+entities.Subject, "anat")
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return RunSinkNodeResult{}, fmt.Errorf("create derivatives dir: %w", err)
	}
	outFile := filepath.Join(outDir, name)
	if err := copyFile(in.InFile, outFile); err != nil {
		return RunSinkNodeResult{}, err
	}
	a.logger.Info("Wrote derivative",
		zap.String("node", in.NodeID),
		zap.String("out_file", outFile),
	)
	return RunSinkNodeResult{OutFile: outFile}, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create %s: %w", dst, err)
	}
	defer out.Close()
	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("copy %s to %s: %w", src, dst, err)
	}
	return out.Sync()
}
