package report

import (
	"context"
	"fmt"
	"time"

	"github.com/clearview/reportline/pkg/export"
	"github.com/clearview/reportline/pkg/models/domain"
	"github.com/clearview/reportline/pkg/services/metrics"
	"github.com/clearview/reportline/pkg/store/artifact"
	"github.com/rs/zerolog"
)

// GenerationFailure is a fatal pipeline error; the job ends failed with
// the stage recorded.
type GenerationFailure struct {
	Stage string
	Err   error
}

func (e *GenerationFailure) Error() string {
	return fmt.Sprintf("generation failed at %s stage: %v", e.Stage, e.Err)
}

func (e *GenerationFailure) Unwrap() error { return e.Err }

// collectRetries is the fixed retry bound for transient section
// collection failures.
const collectRetries = 2

// Pipeline turns a validated config snapshot into rendered artifacts.
// Stages run in fixed order: per-section collect, render, format,
// finalize. Cancellation is cooperative and checked between stages.
type Pipeline struct {
	aggregator metrics.Aggregator
	renderer   *export.Renderer
	artifacts  artifact.Store
	now        func() time.Time
}

func NewPipeline(agg metrics.Aggregator, renderer *export.Renderer, store artifact.Store) *Pipeline {
	return &Pipeline{
		aggregator: agg,
		renderer:   renderer,
		artifacts:  store,
		now:        time.Now,
	}
}

// Run executes the pipeline over an immutable config snapshot and
// returns the terminal job state. publish is called after every stage
// transition so callers can expose monotonic progress.
func (p *Pipeline) Run(
	ctx context.Context,
	cfg domain.ReportConfig,
	job domain.GenerationJob,
	publish func(domain.GenerationJob),
) domain.GenerationJob {
	logger := zerolog.Ctx(ctx).With().
		Str("job", job.ID).
		Str("config", cfg.ID).
		Logger()

	enabled := cfg.EnabledSections()
	job.Status = domain.JobGenerating
	job.TotalStages = len(enabled) + 3
	job.Sections = make(map[string]domain.SectionOutcome, len(enabled))
	publish(job)

	// collect
	job.Stage = domain.StageCollect
	sections := make([]export.Section, 0, len(enabled))
	succeeded := 0
	for _, sel := range enabled {
		if ctx.Err() != nil {
			return p.cancel(job, nil, publish, &logger)
		}

		content, outcome := p.collectSection(ctx, cfg, sel)
		job.Sections[sel.Definition.ID] = outcome
		if outcome == domain.SectionOK {
			succeeded++
		} else {
			logger.Warn().
				Str("section", sel.Definition.ID).
				Msg("section collection degraded after retries")
		}

		sections = append(sections, content)
		job.CompletedStages++
		publish(job)
	}
	if succeeded == 0 {
		return p.fail(job, domain.StageCollect,
			fmt.Errorf("every section failed collection"), publish, &logger)
	}

	// render
	if ctx.Err() != nil {
		return p.cancel(job, nil, publish, &logger)
	}
	job.Stage = domain.StageRender
	doc := p.assemble(cfg, sections)
	job.CompletedStages++
	publish(job)

	// format
	if ctx.Err() != nil {
		return p.cancel(job, nil, publish, &logger)
	}
	job.Stage = domain.StageFormat
	rendered := make([]export.Artifact, 0, len(cfg.Formats))
	for _, format := range cfg.Formats {
		a, err := p.renderer.Render(doc, format)
		if err != nil {
			return p.fail(job, domain.StageFormat, err, publish, &logger)
		}
		rendered = append(rendered, a)
	}
	job.CompletedStages++
	publish(job)

	// finalize
	if ctx.Err() != nil {
		return p.cancel(job, nil, publish, &logger)
	}
	job.Stage = domain.StageFinalize
	var written []domain.ArtifactRef
	for _, a := range rendered {
		key := job.ID + "/" + a.Filename
		// Finalize must outlive the job context so a cancel arriving
		// mid-stage cannot leave half the formats written.
		if err := p.artifacts.Put(context.WithoutCancel(ctx), key, a.ContentType, a.Data); err != nil {
			p.discard(written, &logger)
			return p.fail(job, domain.StageFinalize, err, publish, &logger)
		}
		written = append(written, domain.ArtifactRef{
			Format:      a.Format,
			Key:         key,
			ContentType: a.ContentType,
			Size:        int64(len(a.Data)),
		})
	}

	job.Artifacts = written
	job.CompletedStages++
	job.Status = domain.JobCompleted
	job.Stage = ""
	finished := p.now()
	job.FinishedAt = &finished
	publish(job)

	logger.Info().
		Int("artifacts", len(written)).
		Strs("degraded", job.DegradedSections()).
		Msg("report generation completed")
	return job
}

// collectSection gathers one section's data with bounded retry. A
// section that still fails is degraded with a placeholder; it never
// aborts the job by itself.
func (p *Pipeline) collectSection(
	ctx context.Context,
	cfg domain.ReportConfig,
	sel domain.SectionSelection,
) (export.Section, domain.SectionOutcome) {
	def := sel.Definition
	content := export.Section{ID: def.ID, Title: def.Title, Type: def.Type}

	if def.DataSourceKey == "" {
		content.Narrative = staticNarrative(def, cfg)
		return content, domain.SectionOK
	}

	query := []domain.DomainQuery{{Domain: def.DataSourceKey, ComparePrevious: true}}

	var lastErr error
	for attempt := 0; attempt <= collectRetries; attempt++ {
		if ctx.Err() != nil {
			lastErr = ctx.Err()
			break
		}

		res, err := p.aggregator.Aggregate(ctx, query, cfg.Period)
		if err != nil {
			lastErr = err
			continue
		}

		dr := res.Domains[def.DataSourceKey]
		if dr.Status == domain.DomainMissing {
			lastErr = fmt.Errorf("domain %s missing: %s", def.DataSourceKey, dr.Err)
			continue
		}

		content.Table = &export.Table{
			KeyHeader: keyHeaderFor(def.DataSourceKey),
			Fields:    dr.FieldOrder,
			Rows:      dr.Rows,
		}
		content.Summary = summarize(dr)
		return content, domain.SectionOK
	}

	zerolog.Ctx(ctx).Warn().Err(lastErr).Str("section", def.ID).Msg("section collection failed")
	content.Degraded = true
	content.Placeholder = fmt.Sprintf("%s data was unavailable for this period", def.Title)
	return content, domain.SectionDegraded
}

func (p *Pipeline) assemble(cfg domain.ReportConfig, sections []export.Section) export.Document {
	doc := export.Document{
		Title:    cfg.Title,
		Period:   cfg.Period,
		Sections: sections,
	}
	if cfg.Custom.CoverPage {
		doc.Cover = &export.Cover{
			Title:           cfg.Title,
			Branding:        cfg.Custom.Branding,
			Confidentiality: cfg.Custom.Confidentiality,
			GeneratedAt:     p.now(),
		}
	}
	return doc
}

func (p *Pipeline) fail(
	job domain.GenerationJob,
	stage string,
	err error,
	publish func(domain.GenerationJob),
	logger *zerolog.Logger,
) domain.GenerationJob {
	failure := &GenerationFailure{Stage: stage, Err: err}
	logger.Error().Err(failure).Msg("report generation failed")

	job.Status = domain.JobFailed
	job.FailedStage = stage
	job.Error = failure.Error()
	finished := p.now()
	job.FinishedAt = &finished
	publish(job)
	return job
}

func (p *Pipeline) cancel(
	job domain.GenerationJob,
	written []domain.ArtifactRef,
	publish func(domain.GenerationJob),
	logger *zerolog.Logger,
) domain.GenerationJob {
	p.discard(written, logger)

	job.Status = domain.JobCancelled
	job.Error = "cancelled"
	finished := p.now()
	job.FinishedAt = &finished
	publish(job)

	logger.Info().Msg("report generation cancelled")
	return job
}

// discard removes partially written artifacts of an abandoned job.
func (p *Pipeline) discard(written []domain.ArtifactRef, logger *zerolog.Logger) {
	for _, ref := range written {
		if err := p.artifacts.Delete(context.Background(), ref.Key); err != nil {
			logger.Warn().Err(err).Str("key", ref.Key).Msg("failed to discard artifact")
		}
	}
}

func keyHeaderFor(domainName string) string {
	switch domainName {
	case "sales":
		return "date"
	case "inventory":
		return "productId"
	case "performance":
		return "service"
	}
	return "key"
}

func summarize(dr domain.DomainResult) map[string]string {
	out := make(map[string]string)
	for field, sum := range dr.Sums {
		out["total "+field] = fmt.Sprintf("%.2f", sum)
	}
	for field, pct := range dr.GrowthPct {
		out[field+" growth"] = fmt.Sprintf("%.1f%%", pct)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func staticNarrative(def domain.SectionDefinition, cfg domain.ReportConfig) string {
	period := cfg.Period.Start + " to " + cfg.Period.End
	switch def.Type {
	case domain.SectionExecutiveSummary:
		return fmt.Sprintf("%s covering %s.", cfg.Title, period)
	case domain.SectionStrategic:
		return "Strategic initiative tracking for the reporting period."
	case domain.SectionRisk:
		return "Risk register summary as of report generation."
	case domain.SectionCompliance:
		return "Compliance attestation summary for the reporting period."
	}
	return def.Title + " for " + period + "."
}
