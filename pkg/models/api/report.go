package api

import "time"

type SectionSelection struct {
	Id             string `json:"id"`
	Title          string `json:"title"`
	Type           string `json:"type"`
	Required       bool   `json:"required"`
	Customizable   bool   `json:"customizable"`
	EstimatedPages int    `json:"estimated_pages"`
	Enabled        bool   `json:"enabled"`
}

type Period struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

type ReportConfig struct {
	Id             string             `json:"id"`
	Title          string             `json:"title"`
	Description    string             `json:"description,omitempty"`
	Type           string             `json:"type"`
	Period         Period             `json:"period"`
	Sections       []SectionSelection `json:"sections"`
	Recipients     []string           `json:"recipients"`
	Groups         []string           `json:"groups,omitempty"`
	Formats        []string           `json:"formats"`
	TemplateId     string             `json:"template_id,omitempty"`
	Status         string             `json:"status"`
	EstimatedPages int                `json:"estimated_pages"`
	CreatedAt      time.Time          `json:"created_at"`
	UpdatedAt      time.Time          `json:"updated_at"`
}

type CreateReportConfig struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Type        string   `json:"type"`
	Period      Period   `json:"period"`
	Recipients  []string `json:"recipients"`
	Groups      []string `json:"groups"`
	Formats     []string `json:"formats"`
	TemplateId  string   `json:"template_id"`
}

type ToggleSection struct {
	Enabled bool `json:"enabled"`
}

type ValidationIssue struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Issues []ValidationIssue `json:"issues,omitempty"`
}

type ArtifactRef struct {
	Format      string `json:"format"`
	Key         string `json:"key"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
}

type JobStatus struct {
	Id               string            `json:"id"`
	ConfigId         string            `json:"config_id"`
	Status           string            `json:"status"`
	Stage            string            `json:"stage,omitempty"`
	Progress         float64           `json:"progress"`
	Sections         map[string]string `json:"sections,omitempty"`
	DegradedSections []string          `json:"degraded_sections,omitempty"`
	Artifacts        []ArtifactRef     `json:"artifacts,omitempty"`
	FailedStage      string            `json:"failed_stage,omitempty"`
	Error            string            `json:"error,omitempty"`
	StartedAt        time.Time         `json:"started_at"`
	FinishedAt       *time.Time        `json:"finished_at,omitempty"`
}

type ScheduleRule struct {
	Frequency  string `json:"frequency"`
	DayOfWeek  int    `json:"day_of_week"`
	DayOfMonth int    `json:"day_of_month"`
	TimeOfDay  string `json:"time_of_day"`
}

type EmailArtifacts struct {
	Recipients []string `json:"recipients"`
	Groups     []string `json:"groups"`
}

type DeliveryOutcome struct {
	Recipient string `json:"recipient"`
	Format    string `json:"format"`
	Delivered bool   `json:"delivered"`
	Error     string `json:"error,omitempty"`
}
