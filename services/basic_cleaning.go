package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"basic-cleaning/models"
	"basic-cleaning/storage"
	"basic-cleaning/utils"
)

// JobType identifies runs of this step in the run registry.
const JobType = "basic_cleaning"

// ErrInvalidParams is returned by Params.Validate.
var ErrInvalidParams = errors.New("invalid parameters")

// Params are the six command-line parameters of the step.
type Params struct {
	InputArtifact     string
	OutputArtifact    string
	OutputType        string
	OutputDescription string
	MinPrice          float64
	MaxPrice          float64
}

// Validate checks the parameters before any I/O happens. Inverted price
// bounds are valid and simply keep no rows. Infinite bounds mean unbounded.
func (p Params) Validate() error {
	if _, err := models.ParseArtifactRef(p.InputArtifact); err != nil {
		return fmt.Errorf("%w: input_artifact: %v", ErrInvalidParams, err)
	}
	if _, err := models.ParseArtifactRef(p.OutputArtifact); err != nil {
		return fmt.Errorf("%w: output_artifact: %v", ErrInvalidParams, err)
	}
	if strings.ContainsAny(p.OutputArtifact, ":/") {
		return fmt.Errorf("%w: output_artifact %q must be a bare name", ErrInvalidParams, p.OutputArtifact)
	}
	if strings.TrimSpace(p.OutputType) == "" {
		return fmt.Errorf("%w: output_type is empty", ErrInvalidParams)
	}
	if math.IsNaN(p.MinPrice) || math.IsNaN(p.MaxPrice) {
		return fmt.Errorf("%w: price bounds must be numbers", ErrInvalidParams)
	}
	return nil
}

// Config returns the parameters as stored with the run.
func (p Params) Config() map[string]any {
	return map[string]any{
		"input_artifact":     p.InputArtifact,
		"output_artifact":    p.OutputArtifact,
		"output_type":        p.OutputType,
		"output_description": p.OutputDescription,
		"min_price":          models.JSONFloat(p.MinPrice),
		"max_price":          models.JSONFloat(p.MaxPrice),
	}
}

// ArtifactStore is the artifact collaborator of the step.
type ArtifactStore interface {
	Use(ctx context.Context, run *models.Run, ref models.ArtifactRef) (*models.ArtifactVersion, string, error)
	Log(ctx context.Context, run *models.Run, spec models.ArtifactSpec, localPath string) (*models.ArtifactVersion, error)
}

// RunTracker opens and closes runs.
type RunTracker interface {
	StartRun(ctx context.Context, jobType string, config map[string]any) (*models.Run, error)
	FinishRun(ctx context.Context, runID int64, status models.RunStatus) error
}

// EventPublisher announces registered versions.
type EventPublisher interface {
	PublishArtifactLogged(ctx context.Context, evt models.ArtifactLogged) error
}

// BasicCleaning downloads a dataset artifact, drops out-of-range rows, writes
// the rest to OutputPath and registers that file as a new artifact version.
type BasicCleaning struct {
	artifacts  ArtifactStore
	runs       RunTracker
	events     EventPublisher
	cleaner    *Cleaner
	insights   *InsightService
	outputPath string
	logger     *utils.Logger
	now        func() time.Time
}

// NewBasicCleaning wires the step to its artifact, run and event collaborators.
func NewBasicCleaning(artifacts ArtifactStore, runs RunTracker, events EventPublisher, outputPath string, logger *utils.Logger) *BasicCleaning {
	return &BasicCleaning{
		artifacts:  artifacts,
		runs:       runs,
		events:     events,
		cleaner:    NewCleaner(logger),
		insights:   NewInsightService(logger),
		outputPath: outputPath,
		logger:     logger,
		now:        time.Now,
	}
}

// Run executes the step once. The run is marked failed if any stage fails.
func (b *BasicCleaning) Run(ctx context.Context, p Params) (*models.ArtifactVersion, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	inputRef, _ := models.ParseArtifactRef(p.InputArtifact)

	run, err := b.runs.StartRun(ctx, JobType, p.Config())
	if err != nil {
		return nil, err
	}
	b.logger.Info("[%s] Started run %d", JobType, run.ID)

	out, err := b.execute(ctx, run, inputRef, p)
	status := models.RunFinished
	if err != nil {
		status = models.RunFailed
	}
	// The run is closed even when ctx was cancelled mid-step.
	if ferr := b.runs.FinishRun(context.WithoutCancel(ctx), run.ID, status); ferr != nil {
		b.logger.Warn("[%s] Could not mark run %d %s: %v", JobType, run.ID, status, ferr)
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (b *BasicCleaning) execute(ctx context.Context, run *models.Run, inputRef models.ArtifactRef, p Params) (*models.ArtifactVersion, error) {
	input, localPath, err := b.artifacts.Use(ctx, run, inputRef)
	if err != nil {
		return nil, err
	}
	b.logger.Info("[%s] Downloaded input artifact %s to %s", JobType, input.QualifiedName(), localPath)

	ds, err := storage.ReadDataset(localPath)
	if err != nil {
		return nil, err
	}

	cleaned, report, err := b.cleaner.Clean(ds, NewBounds(p.MinPrice, p.MaxPrice))
	if err != nil {
		return nil, err
	}
	b.insights.Generate(cleaned, report)
	b.insights.Log(report)

	if err := storage.WriteDataset(b.outputPath, cleaned); err != nil {
		return nil, err
	}
	b.logger.Info("[%s] Cleaned data saved to %s", JobType, b.outputPath)

	meta := report.Metadata()
	meta["source"] = input.QualifiedName()
	meta["min_price"] = models.JSONFloat(p.MinPrice)
	meta["max_price"] = models.JSONFloat(p.MaxPrice)

	version, err := b.artifacts.Log(ctx, run, models.ArtifactSpec{
		Name:        strings.TrimSpace(p.OutputArtifact),
		Type:        strings.TrimSpace(p.OutputType),
		Description: p.OutputDescription,
		Metadata:    meta,
	}, b.outputPath)
	if err != nil {
		return nil, err
	}
	b.logger.Info("[%s] Uploaded cleaned data artifact %s", JobType, version.QualifiedName())

	evt := models.ArtifactLogged{
		RunID:     run.ID,
		Project:   run.Project,
		Name:      version.Name,
		Version:   version.Version,
		Type:      version.Type,
		Digest:    version.Digest,
		ObjectKey: version.ObjectKey,
		LoggedAt:  b.now().UTC(),
	}
	if err := b.events.PublishArtifactLogged(ctx, evt); err != nil {
		b.logger.Warn("[%s] Artifact %s registered but event not published: %v", JobType, version.QualifiedName(), err)
	}

	return version, nil
}
