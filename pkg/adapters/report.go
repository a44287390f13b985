package adapters

import (
	"github.com/clearview/reportline/pkg/models/api"
	"github.com/clearview/reportline/pkg/models/domain"
)

func MapReportConfigDomainToApi(cfg domain.ReportConfig, estimatedPages int) api.ReportConfig {
	out := api.ReportConfig{
		Id:             cfg.ID,
		Title:          cfg.Title,
		Description:    cfg.Description,
		Type:           string(cfg.Type),
		Period:         api.Period{Start: cfg.Period.Start, End: cfg.Period.End},
		Recipients:     cfg.Recipients,
		Groups:         cfg.Groups,
		TemplateId:     cfg.TemplateID,
		Status:         string(cfg.Status),
		EstimatedPages: estimatedPages,
		CreatedAt:      cfg.CreatedAt,
		UpdatedAt:      cfg.UpdatedAt,
	}

	for _, s := range cfg.Sections {
		out.Sections = append(out.Sections, MapSectionSelectionDomainToApi(s))
	}
	for _, f := range cfg.Formats {
		out.Formats = append(out.Formats, string(f))
	}

	return out
}

func MapSectionSelectionDomainToApi(s domain.SectionSelection) api.SectionSelection {
	return api.SectionSelection{
		Id:             s.Definition.ID,
		Title:          s.Definition.Title,
		Type:           string(s.Definition.Type),
		Required:       s.Definition.Required,
		Customizable:   s.Definition.Customizable,
		EstimatedPages: s.Definition.EstimatedPages,
		Enabled:        s.Enabled,
	}
}

func MapJobDomainToApi(job domain.GenerationJob) api.JobStatus {
	out := api.JobStatus{
		Id:               job.ID,
		ConfigId:         job.ConfigID,
		Status:           string(job.Status),
		Stage:            job.Stage,
		Progress:         job.Progress(),
		DegradedSections: job.DegradedSections(),
		FailedStage:      job.FailedStage,
		Error:            job.Error,
		StartedAt:        job.StartedAt,
		FinishedAt:       job.FinishedAt,
	}

	if len(job.Sections) > 0 {
		out.Sections = make(map[string]string, len(job.Sections))
		for id, outcome := range job.Sections {
			out.Sections[id] = string(outcome)
		}
	}
	for _, a := range job.Artifacts {
		out.Artifacts = append(out.Artifacts, api.ArtifactRef{
			Format:      string(a.Format),
			Key:         a.Key,
			ContentType: a.ContentType,
			Size:        a.Size,
		})
	}

	return out
}
