// Package testdata downloads and verifies the small reference datasets used
// by integration tests and smoke runs.
package testdata

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Dataset names a downloadable test dataset.
type Dataset struct {
	Name string
	URL  string
}

// KnownDatasets are the reference datasets the smoke tests run against.
func KnownDatasets() []Dataset {
	return []Dataset{
		{Name: "multishell_output", URL: "https://upenn.box.com/shared/static/hr7xnxicbx9iqndv1yl35bhtd61fpalp.xz"},
		{Name: "singleshell_output", URL: "https://upenn.box.com/shared/static/9jhf0eo3ml6ojrlxlz6lej09ny12efgg.gz"},
		{Name: "hsvs_data", URL: "https://upenn.box.com/shared/static/8ggsyfhldqzckh1qbywlnbm9x0tin3yr.xz"},
	}
}

// Fetch downloads and extracts a dataset into destDir. Extraction is
// idempotent: a completed marker short-circuits repeat fetches.
func Fetch(ctx context.Context, ds Dataset, destDir string, logger *zap.Logger) (string, error) {
	target := filepath.Join(destDir, ds.Name)
	marker := filepath.Join(target, ".complete")
	if _, err := os.Stat(marker); err == nil {
		logger.Info("Test dataset already present", zap.String("name", ds.Name))
		return target, nil
	}
	if err := os.MkdirAll(target, 0o755); err != nil {
		return "", fmt.Errorf("create dataset dir: %w", err)
	}

	logger.Info("Downloading test dataset",
		zap.String("name", ds.Name),
		zap.String("url", ds.URL),
	)
	client := &http.Client{Timeout: 30 * time.Minute}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ds.URL, nil)
	if err != nil {
		return "", err
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("download %s: %w", ds.Name, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("download %s: unexpected status %s", ds.Name, resp.Status)
	}

	if err := extract(ctx, ds.URL, resp.Body, target); err != nil {
		return "", fmt.Errorf("extract %s: %w", ds.Name, err)
	}
	if err := os.WriteFile(marker, []byte(time.Now().Format(time.RFC3339)+"\n"), 0o644); err != nil {
		return "", fmt.Errorf("write completion marker: %w", err)
	}
	logger.Info("Test dataset ready", zap.String("path", target))
	return target, nil
}

// extract dispatches on the archive compression. Gzip is handled natively;
// xz archives are piped through the xz binary.
func extract(ctx context.Context, url string, r io.Reader, dest string) error {
	switch {
	case strings.HasSuffix(url, ".gz"):
		gz, err := gzip.NewReader(r)
		if err != nil {
			return err
		}
		defer gz.Close()
		return extractTar(gz, dest)
	case strings.HasSuffix(url, ".xz"):
		cmd := exec.CommandContext(ctx, "xz", "--decompress", "--stdout")
		cmd.Stdin = r
		out, err := cmd.StdoutPipe()
		if err != nil {
			return err
		}
		if err := cmd.Start(); err != nil {
			return fmt.Errorf("start xz: %w", err)
		}
		if err := extractTar(out, dest); err != nil {
			_ = cmd.Wait()
			return err
		}
		return cmd.Wait()
	default:
		return fmt.Errorf("unknown archive type for %s", url)
	}
}

// extractTar unpacks a tar stream, refusing entries that would escape dest.
func extractTar(r io.Reader, dest string) error {
	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		path := filepath.Join(dest, hdr.Name)
		if !strings.HasPrefix(path, filepath.Clean(dest)+string(os.PathSeparator)) && path != filepath.Clean(dest) {
			return fmt.Errorf("tar entry %q escapes destination", hdr.Name)
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(path, 0o755); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return err
			}
			f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, os.FileMode(hdr.Mode)&0o777)
			if err != nil {
				return err
			}
			if _, err := io.Copy(f, tr); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
		}
	}
}

// CheckGeneratedFiles compares the derivatives tree against an expected file
// list and returns the missing and unexpected paths, both relative to root.
func CheckGeneratedFiles(root string, expected []string) (missing, unexpected []string, err error) {
	found := make(map[string]struct{})
	err = filepath.Walk(root, func(path string, info os.FileInfo, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if info.IsDir() {
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return relErr
		}
		found[rel] = struct{}{}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	want := make(map[string]struct{}, len(expected))
	for _, e := range expected {
		want[e] = struct{}{}
		if _, ok := found[e]; !ok {
			missing = append(missing, e)
		}
	}
	for f := range found {
		if _, ok := want[f]; !ok {
			unexpected = append(unexpected, f)
		}
	}
	return missing, unexpected, nil
}
