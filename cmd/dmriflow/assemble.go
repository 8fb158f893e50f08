package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/dmriflow/dmriflow/internal/anat"
	"github.com/dmriflow/dmriflow/internal/config"
	"github.com/dmriflow/dmriflow/internal/metrics"
	"github.com/dmriflow/dmriflow/internal/pipeline"
	"github.com/dmriflow/dmriflow/internal/tools"
	"github.com/dmriflow/dmriflow/internal/tracing"
)

// dwiPlan pairs one DWI series with its graph. The series' companion files
// are located by an ingress node on the worker, not here.
type dwiPlan struct {
	DWIFile string
	Graph   *pipeline.Graph
}

// subjectPlan is everything assembled for one subject: the high-res
// anatomical graph plus one DWI-space graph per series.
type subjectPlan struct {
	SubjectID  string
	Anatomical *pipeline.Graph
	Status     anat.Status
	DWI        []dwiPlan
}

// assembleSubject probes the input tree and assembles all graphs for one
// subject. Assembly failures are fatal for the subject, never silently
// degraded.
func assembleSubject(ctx context.Context, cfg *config.Config, logger *zap.Logger, subject string) (*subjectPlan, error) {
	ctx, span := tracing.StartAssemblySpan(ctx, "recon_anatomical_wf", subject)
	defer span.End()

	resolver := &anat.Resolver{
		InputDir:      cfg.InputDir,
		FreeSurferDir: cfg.Anatomical.FreeSurferDir,
		Logger:        logger,
	}

	regPreset, err := loadRegistrationPreset(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	anatGraph, status, err := resolver.InitHighResAnatomicalGraph(anat.HighResOptions{
		SubjectID:          subject,
		Source:             cfg.Anatomical.InputType,
		ExtrasToMake:       cfg.Anatomical.Extras,
		NeedsT1wTransform:  cfg.Anatomical.NeedsT1wTransform,
		NThreads:           cfg.NThreads,
		RegistrationPreset: regPreset,
	})
	if err != nil {
		recordAssemblyFailure("recon_anatomical_wf", err)
		return nil, fmt.Errorf("subject %s: %w", subject, err)
	}
	metrics.PlansAssembled.WithLabelValues("recon_anatomical_wf").Inc()

	dwiFiles, err := findDWIFiles(cfg.InputDir, subject)
	if err != nil {
		return nil, err
	}
	if len(dwiFiles) == 0 {
		return nil, fmt.Errorf("subject %s has no preprocessed DWI series under %s", subject, cfg.InputDir)
	}

	plan := &subjectPlan{
		SubjectID:  subject,
		Anatomical: anatGraph,
		Status:     status,
	}
	for _, dwiFile := range dwiFiles {
		name := graphNameFor(dwiFile)
		graph, _, err := resolver.InitDWIAnatomicalGraph(status, anat.AssemblerOptions{
			Name:               name,
			SubjectID:          subject,
			AtlasNames:         cfg.Anatomical.Atlases,
			AtlasDir:           cfg.Anatomical.AtlasDir,
			ExtrasToMake:       cfg.Anatomical.Extras,
			NeedsT1wTransform:  cfg.Anatomical.NeedsT1wTransform,
			PreferDWIMask:      cfg.Anatomical.PreferDWIMask,
			B0Threshold:        cfg.SDC.B0Threshold,
			OutputResolution:   cfg.Anatomical.OutputResolution,
			Infant:             cfg.Anatomical.Infant,
			NThreads:           cfg.NThreads,
			TemplateDir:        cfg.Anatomical.TemplateDir,
			CrossingROIsPath:   cfg.Anatomical.CrossingROIsPath,
			RegistrationPreset: regPreset,
			DWIFile:            dwiFile,
		})
		if err != nil {
			recordAssemblyFailure(name, err)
			return nil, fmt.Errorf("subject %s, series %s: %w", subject, filepath.Base(dwiFile), err)
		}
		metrics.PlansAssembled.WithLabelValues(name).Inc()

		plan.DWI = append(plan.DWI, dwiPlan{DWIFile: dwiFile, Graph: graph})
	}
	return plan, nil
}

// loadRegistrationPreset fetches the current freesurfer_to_qsiprep preset
// from the preset directory, if one is configured. Each assembly re-reads
// the directory, so edits apply to the next subject without a restart. Nil
// selects the built-in registration parameters.
func loadRegistrationPreset(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*pipeline.ToolPreset, error) {
	if cfg.PresetDir == "" {
		return nil, nil
	}
	pm, err := config.NewPresetManager(cfg.PresetDir, logger)
	if err != nil {
		return nil, fmt.Errorf("preset directory %s: %w", cfg.PresetDir, err)
	}
	if err := pm.Start(ctx); err != nil {
		return nil, fmt.Errorf("load presets from %s: %w", cfg.PresetDir, err)
	}
	defer pm.Stop()

	preset, ok := pm.Get(tools.RegistrationPresetName)
	if !ok {
		return nil, nil
	}
	logger.Info("Using registration preset from preset directory",
		zap.String("name", tools.RegistrationPresetName),
		zap.String("binary", preset.Binary),
	)
	return preset, nil
}

func recordAssemblyFailure(graph string, err error) {
	class := "internal_inconsistency"
	var aerr *anat.AssemblyError
	if errors.As(err, &aerr) {
		class = string(aerr.Class)
	}
	metrics.AssemblyFailures.WithLabelValues(graph, class).Inc()
}

// findDWIFiles globs the preprocessed DWI series of a subject, with and
// without a session level.
func findDWIFiles(inputDir, subject string) ([]string, error) {
	patterns := []string{
		filepath.Join(inputDir, "sub-"+subject, "dwi", "*_dwi.nii.gz"),
		filepath.Join(inputDir, "sub-"+subject, "ses-*", "dwi", "*_dwi.nii.gz"),
	}
	var files []string
	for _, p := range patterns {
		matches, err := filepath.Glob(p)
		if err != nil {
			return nil, err
		}
		files = append(files, matches...)
	}
	sort.Strings(files)
	return files, nil
}

// graphNameFor derives a stable workflow name from a DWI filename.
func graphNameFor(dwiFile string) string {
	stem := strings.TrimSuffix(filepath.Base(dwiFile), ".gz")
	stem = strings.TrimSuffix(stem, filepath.Ext(stem))
	stem = strings.TrimSuffix(stem, "_dwi")
	return stem + "_dwi_anatomical_wf"
}
