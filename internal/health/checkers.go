package health

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"time"

	"go.temporal.io/sdk/client"
)

// TemporalChecker verifies connectivity to the workflow engine.
type TemporalChecker struct {
	client  client.Client
	timeout time.Duration
}

// NewTemporalChecker creates a checker over an established client.
func NewTemporalChecker(c client.Client) *TemporalChecker {
	return &TemporalChecker{client: c, timeout: 5 * time.Second}
}

func (t *TemporalChecker) Name() string           { return "temporal" }
func (t *TemporalChecker) IsCritical() bool       { return true }
func (t *TemporalChecker) Timeout() time.Duration { return t.timeout }

func (t *TemporalChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()
	result := CheckResult{
		Component: "temporal",
		Critical:  true,
		Timestamp: start,
	}

	_, err := t.client.CheckHealth(ctx, &client.CheckHealthRequest{})
	result.Duration = time.Since(start)
	if err != nil {
		result.Status = StatusUnhealthy
		result.Error = err.Error()
		result.Message = "workflow engine unreachable"
		return result
	}
	if result.Duration > 500*time.Millisecond {
		result.Status = StatusDegraded
		result.Message = "workflow engine responding slowly"
	} else {
		result.Status = StatusHealthy
		result.Message = "workflow engine healthy"
	}
	result.Details = map[string]interface{}{"latency_ms": result.Duration.Milliseconds()}
	return result
}

// ToolPathChecker verifies that the external neuroimaging binaries the
// graphs depend on are resolvable on PATH. The worker still starts without
// them, but tool nodes would fail, so missing binaries mark it not ready.
type ToolPathChecker struct {
	binaries []string
}

// NewToolPathChecker creates a checker over the given binary names.
func NewToolPathChecker(binaries []string) *ToolPathChecker {
	return &ToolPathChecker{binaries: binaries}
}

// DefaultToolBinaries are the binaries every anatomical graph can reach for.
func DefaultToolBinaries() []string {
	return []string{
		"antsApplyTransforms",
		"antsRegistration",
		"ConvertTransformFile",
		"mrconvert",
		"mrtransform",
		"transformconvert",
		"dwiextract",
		"5ttgen",
		"3dAutomask",
		"3dcalc",
		"3dresample",
		"3dAutobox",
		"3dWarp",
	}
}

func (t *ToolPathChecker) Name() string           { return "tools" }
func (t *ToolPathChecker) IsCritical() bool       { return true }
func (t *ToolPathChecker) Timeout() time.Duration { return 5 * time.Second }

func (t *ToolPathChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()
	result := CheckResult{
		Component: "tools",
		Critical:  true,
		Timestamp: start,
	}

	var missing []string
	for _, bin := range t.binaries {
		if _, err := exec.LookPath(bin); err != nil {
			missing = append(missing, bin)
		}
	}
	result.Duration = time.Since(start)
	result.Details = map[string]interface{}{
		"checked": len(t.binaries),
		"missing": missing,
	}
	if len(missing) > 0 {
		result.Status = StatusUnhealthy
		result.Message = fmt.Sprintf("%d of %d required binaries missing from PATH", len(missing), len(t.binaries))
		return result
	}
	result.Status = StatusHealthy
	result.Message = "all required binaries found"
	return result
}

// DirectoryChecker verifies that a data directory exists and is readable.
type DirectoryChecker struct {
	name     string
	path     string
	critical bool
}

// NewDirectoryChecker creates a checker for the named directory.
func NewDirectoryChecker(name, path string, critical bool) *DirectoryChecker {
	return &DirectoryChecker{name: name, path: path, critical: critical}
}

func (d *DirectoryChecker) Name() string           { return d.name }
func (d *DirectoryChecker) IsCritical() bool       { return d.critical }
func (d *DirectoryChecker) Timeout() time.Duration { return 2 * time.Second }

func (d *DirectoryChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()
	result := CheckResult{
		Component: d.name,
		Critical:  d.critical,
		Timestamp: start,
		Details:   map[string]interface{}{"path": d.path},
	}

	info, err := os.Stat(d.path)
	result.Duration = time.Since(start)
	if err != nil {
		result.Status = StatusUnhealthy
		result.Error = err.Error()
		result.Message = "directory not accessible"
		return result
	}
	if !info.IsDir() {
		result.Status = StatusUnhealthy
		result.Message = "path is not a directory"
		return result
	}
	result.Status = StatusHealthy
	result.Message = "directory accessible"
	return result
}
