package activities

import (
	"context"

	"go.uber.org/zap"

	"github.com/dmriflow/dmriflow/internal/ingress"
	"github.com/dmriflow/dmriflow/internal/pipeline"
)

// IngestAnatomicalInput asks one ingress node to resolve its declared fields
// to files on disk.
type IngestAnatomicalInput struct {
	GraphName string
	NodeID    string
	Ingress   pipeline.IngressSpec
}

// IngestAnatomicalResult maps the node's fields to resolved paths.
type IngestAnatomicalResult struct {
	Fields map[string]string
}

// IngestAnatomical resolves an ingress node's fields against the filesystem.
// Missing required files are permanent failures: retrying will not make a
// preprocessing output appear.
func (a *Activities) IngestAnatomical(ctx context.Context, in IngestAnatomicalInput) (IngestAnatomicalResult, error) {
	fields, err := ingress.ResolveIngress(&in.Ingress)
	if err != nil {
		return IngestAnatomicalResult{}, err
	}
	a.logger.Info("Resolved ingress node",
		zap.String("graph", in.GraphName),
		zap.String("node", in.NodeID),
		zap.String("source", in.Ingress.Source),
		zap.Int("fields", len(fields)),
	)
	return IngestAnatomicalResult{Fields: fields}, nil
}

// IngestDWIInput names the preprocessed DWI series to locate companions for.
type IngestDWIInput struct {
	DWIFile string
}

// IngestDWIResult carries the located DWI inputs as graph fields.
type IngestDWIResult struct {
	Fields map[string]string
}

// IngestDWI locates the gradient tables, mask, and reference image that
// accompany a preprocessed DWI series.
func (a *Activities) IngestDWI(ctx context.Context, in IngestDWIInput) (IngestDWIResult, error) {
	result, err := ingress.LocateDWI(in.DWIFile, a.logger)
	if err != nil {
		return IngestDWIResult{}, err
	}
	return IngestDWIResult{Fields: result.Fields()}, nil
}
