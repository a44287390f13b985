package report

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/clearview/reportline/pkg/models/domain"
	"github.com/clearview/reportline/pkg/services/access"
	"github.com/clearview/reportline/pkg/services/catalog"
	"github.com/google/uuid"
)

// ValidationIssue is one failed config check.
type ValidationIssue struct {
	Field   string
	Message string
}

// ValidationError carries every issue found; a config with any cannot
// leave draft.
type ValidationError struct {
	Issues []ValidationIssue
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Issues))
	for _, i := range e.Issues {
		msgs = append(msgs, fmt.Sprintf("%s: %s", i.Field, i.Message))
	}
	return "invalid report config: " + strings.Join(msgs, "; ")
}

// ErrAccessDenied is returned when the actor lacks authoring rights or
// section access at config-build time.
var ErrAccessDenied = fmt.Errorf("access denied")

// GroupDirectory expands stakeholder group names to member emails.
type GroupDirectory interface {
	Expand(groups []string) []string
}

// StaticDirectory is a config-fed directory.
type StaticDirectory map[string][]string

func (d StaticDirectory) Expand(groups []string) []string {
	var out []string
	for _, g := range groups {
		out = append(out, d[g]...)
	}
	return out
}

// CreateParams are the caller-supplied fields of a new draft.
type CreateParams struct {
	Title       string
	Description string
	Type        domain.ReportType
	Period      domain.Period
	Recipients  []string
	Groups      []string
	Formats     []domain.ExportFormat
	TemplateID  string
	Custom      domain.Customizations
}

// Builder creates and normalizes report configs against the section
// catalog and the access resolver.
type Builder struct {
	catalog catalog.Catalog
	access  access.Resolver
	groups  GroupDirectory
	now     func() time.Time
}

func NewBuilder(cat catalog.Catalog, resolver access.Resolver, groups GroupDirectory) *Builder {
	return &Builder{
		catalog: cat,
		access:  resolver,
		groups:  groups,
		now:     time.Now,
	}
}

// NewDraft creates a draft with the full section catalog enabled.
// Requires report-authoring permission.
func (b *Builder) NewDraft(actor domain.StakeholderAccount, params CreateParams) (domain.ReportConfig, error) {
	if !b.access.CanAuthorReports(actor) {
		return domain.ReportConfig{}, fmt.Errorf("%w: %s may not author reports", ErrAccessDenied, actor.Email)
	}

	now := b.now()
	return domain.ReportConfig{
		ID:          uuid.NewString(),
		Title:       params.Title,
		Description: params.Description,
		Type:        params.Type,
		Period:      params.Period,
		Sections:    b.catalog.DefaultSelections(),
		Recipients:  dedupe(params.Recipients),
		Groups:      append([]string(nil), params.Groups...),
		Formats:     append([]domain.ExportFormat(nil), params.Formats...),
		TemplateID:  params.TemplateID,
		Custom:      params.Custom,
		Status:      domain.StatusDraft,
		CreatedBy:   actor.ID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// ToggleSection flips a section's enabled flag. Toggling a required
// section off is silently ignored, not an error. Only drafts may change.
func (b *Builder) ToggleSection(cfg *domain.ReportConfig, sectionID string, enabled bool) error {
	if cfg.Status != domain.StatusDraft {
		return fmt.Errorf("config %s is %s, only drafts can be edited", cfg.ID, cfg.Status)
	}

	for i := range cfg.Sections {
		if cfg.Sections[i].Definition.ID != sectionID {
			continue
		}
		if cfg.Sections[i].Definition.Required && !enabled {
			return nil
		}
		cfg.Sections[i].Enabled = enabled
		cfg.UpdatedAt = b.now()
		return nil
	}
	return fmt.Errorf("unknown section: %s", sectionID)
}

// TotalEstimatedPages is the derived page count over enabled sections.
func (b *Builder) TotalEstimatedPages(cfg domain.ReportConfig) int {
	total := 0
	for _, s := range cfg.Sections {
		if s.Enabled {
			total += s.Definition.EstimatedPages
		}
	}
	return total
}

// Recipients expands group memberships and unions them with the direct
// recipient list, deduplicated and sorted.
func (b *Builder) Recipients(cfg domain.ReportConfig) []string {
	all := append([]string(nil), cfg.Recipients...)
	if b.groups != nil {
		all = append(all, b.groups.Expand(cfg.Groups)...)
	}
	return dedupe(all)
}

var validFormats = map[domain.ExportFormat]bool{
	domain.FormatCSV:        true,
	domain.FormatPDF:        true,
	domain.FormatExcel:      true,
	domain.FormatPowerPoint: true,
}

// Validate runs every config check. An empty result means the config may
// leave draft.
func (b *Builder) Validate(actor domain.StakeholderAccount, cfg domain.ReportConfig) []ValidationIssue {
	var issues []ValidationIssue

	if strings.TrimSpace(cfg.Title) == "" {
		issues = append(issues, ValidationIssue{Field: "title", Message: "title must not be empty"})
	}
	if cfg.Period.Start != "" && cfg.Period.End != "" && cfg.Period.Start > cfg.Period.End {
		issues = append(issues, ValidationIssue{Field: "period", Message: "start date must not be after end date"})
	}
	if len(b.Recipients(cfg)) == 0 {
		issues = append(issues, ValidationIssue{Field: "recipients", Message: "at least one recipient is required"})
	}
	if len(cfg.Formats) == 0 {
		issues = append(issues, ValidationIssue{Field: "formats", Message: "at least one export format is required"})
	}
	for _, f := range cfg.Formats {
		if !validFormats[f] {
			issues = append(issues, ValidationIssue{Field: "formats", Message: fmt.Sprintf("unsupported format: %s", f)})
		}
	}

	enabled := cfg.EnabledSections()
	if len(enabled) == 0 {
		issues = append(issues, ValidationIssue{Field: "sections", Message: "at least one section must be enabled"})
	}
	for _, s := range enabled {
		if !b.access.CanAccessSection(actor, s.Definition) {
			issues = append(issues, ValidationIssue{
				Field:   "sections",
				Message: fmt.Sprintf("section %s is not accessible to the requesting stakeholder", s.Definition.ID),
			})
		}
	}

	return issues
}

func dedupe(emails []string) []string {
	seen := make(map[string]bool, len(emails))
	out := make([]string, 0, len(emails))
	for _, e := range emails {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" || seen[e] {
			continue
		}
		seen[e] = true
		out = append(out, e)
	}
	sort.Strings(out)
	return out
}
