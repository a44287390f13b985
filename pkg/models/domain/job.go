package domain

import "time"

// SectionOutcome records how a single section fared during collection
// and rendering.
type SectionOutcome string

const (
	SectionOK       SectionOutcome = "ok"
	SectionDegraded SectionOutcome = "degraded"
	SectionFailed   SectionOutcome = "failed"
)

type JobStatus string

const (
	JobValidating JobStatus = "validating"
	JobGenerating JobStatus = "generating"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
	JobCancelled  JobStatus = "cancelled"
)

// Pipeline stage names, in execution order after per-section collection.
const (
	StageCollect  = "collect"
	StageRender   = "render"
	StageFormat   = "format"
	StageFinalize = "finalize"
)

// ArtifactRef points at one rendered export, one per requested format.
type ArtifactRef struct {
	Format      ExportFormat
	Key         string
	ContentType string
	Size        int64
}

// GenerationJob tracks a single run of the pipeline over a config snapshot.
type GenerationJob struct {
	ID              string
	ConfigID        string
	StartedAt       time.Time
	FinishedAt      *time.Time
	Status          JobStatus
	Stage           string
	CompletedStages int
	TotalStages     int
	Sections        map[string]SectionOutcome
	Artifacts       []ArtifactRef
	FailedStage     string
	Error           string
}

// Clone deep-copies the job so published snapshots never share state
// with the running pipeline.
func (j GenerationJob) Clone() GenerationJob {
	out := j
	if j.Sections != nil {
		out.Sections = make(map[string]SectionOutcome, len(j.Sections))
		for id, outcome := range j.Sections {
			out.Sections[id] = outcome
		}
	}
	out.Artifacts = append([]ArtifactRef(nil), j.Artifacts...)
	return out
}

// Progress is the completed fraction of the job's stages, in [0, 1].
// TotalStages is recomputed per job (enabled sections + the three fixed
// post-collection stages) so progress is monotonic and comparable across
// configs with different section counts.
func (j GenerationJob) Progress() float64 {
	if j.TotalStages == 0 {
		return 0
	}
	return float64(j.CompletedStages) / float64(j.TotalStages)
}

// DegradedSections lists section ids that fell back to placeholders,
// in no particular order.
func (j GenerationJob) DegradedSections() []string {
	var out []string
	for id, outcome := range j.Sections {
		if outcome == SectionDegraded {
			out = append(out, id)
		}
	}
	return out
}
