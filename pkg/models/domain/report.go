package domain

import "time"

type ReportType string

const (
	ReportQuarterly ReportType = "quarterly"
	ReportMonthly   ReportType = "monthly"
	ReportAnnual    ReportType = "annual"
	ReportCustom    ReportType = "custom"
)

type ExportFormat string

const (
	FormatCSV        ExportFormat = "csv"
	FormatPDF        ExportFormat = "pdf"
	FormatExcel      ExportFormat = "excel"
	FormatPowerPoint ExportFormat = "powerpoint"
)

type ConfigStatus string

const (
	StatusDraft      ConfigStatus = "draft"
	StatusScheduled  ConfigStatus = "scheduled"
	StatusGenerating ConfigStatus = "generating"
	StatusCompleted  ConfigStatus = "completed"
	StatusFailed     ConfigStatus = "failed"
)

// Period is a closed date range. Dates are ISO strings (2006-01-02);
// lexicographic comparison matches calendar order for the fixed width.
type Period struct {
	Start string
	End   string
}

// Contains reports whether the ISO date falls inside the period. An empty
// bound is open on that side.
func (p Period) Contains(date string) bool {
	if p.Start != "" && date < p.Start {
		return false
	}
	if p.End != "" && date > p.End {
		return false
	}
	return true
}

// Customizations are presentation options applied at the finalize stage.
type Customizations struct {
	CoverPage       bool
	Branding        string
	Confidentiality string
}

// ReportConfig describes one configurable report. Mutable only while
// Status == draft; generation runs against a Clone.
type ReportConfig struct {
	ID          string
	Title       string
	Description string
	Type        ReportType
	Period      Period
	Sections    []SectionSelection
	Recipients  []string
	Groups      []string
	Formats     []ExportFormat
	TemplateID  string
	Custom      Customizations
	Status      ConfigStatus
	CreatedBy   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Clone returns a deep copy so an in-flight job never observes edits to
// the draft it was started from.
func (c ReportConfig) Clone() ReportConfig {
	out := c
	out.Sections = make([]SectionSelection, len(c.Sections))
	copy(out.Sections, c.Sections)
	out.Recipients = append([]string(nil), c.Recipients...)
	out.Groups = append([]string(nil), c.Groups...)
	out.Formats = append([]ExportFormat(nil), c.Formats...)
	return out
}

// EnabledSections returns the currently enabled selections in catalog order.
func (c ReportConfig) EnabledSections() []SectionSelection {
	var out []SectionSelection
	for _, s := range c.Sections {
		if s.Enabled {
			out = append(out, s)
		}
	}
	return out
}
