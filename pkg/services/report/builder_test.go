package report

import (
	"testing"

	"github.com/clearview/reportline/pkg/models/domain"
	"github.com/clearview/reportline/pkg/services/access"
	"github.com/clearview/reportline/pkg/services/catalog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBuilder() *Builder {
	return NewBuilder(catalog.NewCatalog(), access.NewResolver(), StaticDirectory{
		"board":   {"chair@example.com", "vice@example.com"},
		"finance": {"cfo@example.com", "chair@example.com"},
	})
}

func boardActor() domain.StakeholderAccount {
	return domain.StakeholderAccount{
		ID:          "act-1",
		Email:       "ceo@example.com",
		AccessLevel: domain.AccessCLevel,
	}
}

func validDraft(t *testing.T, b *Builder) domain.ReportConfig {
	t.Helper()
	cfg, err := b.NewDraft(boardActor(), CreateParams{
		Title:      "Q1 Review",
		Type:       domain.ReportQuarterly,
		Period:     domain.Period{Start: "2024-01-01", End: "2024-03-31"},
		Recipients: []string{"board@example.com"},
		Formats:    []domain.ExportFormat{domain.FormatPDF},
	})
	require.NoError(t, err)
	return cfg
}

func TestNewDraft_RequiresAuthoringPermission(t *testing.T) {
	b := newTestBuilder()

	analyst := domain.StakeholderAccount{ID: "a", AccessLevel: domain.AccessAnalyst}
	_, err := b.NewDraft(analyst, CreateParams{Title: "x"})
	assert.ErrorIs(t, err, ErrAccessDenied)
}

func TestNewDraft_EnablesFullCatalog(t *testing.T) {
	b := newTestBuilder()
	cfg := validDraft(t, b)

	assert.Equal(t, domain.StatusDraft, cfg.Status)
	assert.Len(t, cfg.Sections, 7)
	for _, s := range cfg.Sections {
		assert.True(t, s.Enabled)
	}
}

func TestToggleSection_RequiredStaysEnabled(t *testing.T) {
	b := newTestBuilder()
	cfg := validDraft(t, b)

	// executive_summary is required; toggling off is silently ignored.
	require.NoError(t, b.ToggleSection(&cfg, "executive_summary", false))
	for _, s := range cfg.Sections {
		if s.Definition.ID == "executive_summary" {
			assert.True(t, s.Enabled)
		}
	}
}

func TestToggleSection_Optional(t *testing.T) {
	b := newTestBuilder()
	cfg := validDraft(t, b)

	require.NoError(t, b.ToggleSection(&cfg, "risk_assessment", false))
	for _, s := range cfg.Sections {
		if s.Definition.ID == "risk_assessment" {
			assert.False(t, s.Enabled)
		}
	}

	assert.Error(t, b.ToggleSection(&cfg, "no_such_section", false))

	cfg.Status = domain.StatusGenerating
	assert.Error(t, b.ToggleSection(&cfg, "risk_assessment", true),
		"only drafts can be edited")
}

func TestTotalEstimatedPages_TracksToggles(t *testing.T) {
	b := newTestBuilder()
	cfg := validDraft(t, b)

	sum := func() int {
		total := 0
		for _, s := range cfg.Sections {
			if s.Enabled {
				total += s.Definition.EstimatedPages
			}
		}
		return total
	}

	toggles := []struct {
		id      string
		enabled bool
	}{
		{"risk_assessment", false},
		{"customer_insights", false},
		{"risk_assessment", true},
		{"executive_summary", false},
		{"strategic_initiatives", false},
		{"customer_insights", true},
	}

	assert.Equal(t, sum(), b.TotalEstimatedPages(cfg))
	for _, tg := range toggles {
		require.NoError(t, b.ToggleSection(&cfg, tg.id, tg.enabled))
		assert.Equal(t, sum(), b.TotalEstimatedPages(cfg), "after toggling %s", tg.id)
	}
}

func TestValidate(t *testing.T) {
	b := newTestBuilder()

	tests := []struct {
		name   string
		mutate func(*domain.ReportConfig)
		field  string
	}{
		{"empty title", func(c *domain.ReportConfig) { c.Title = "  " }, "title"},
		{"inverted period", func(c *domain.ReportConfig) {
			c.Period = domain.Period{Start: "2024-03-31", End: "2024-01-01"}
		}, "period"},
		{"no recipients", func(c *domain.ReportConfig) { c.Recipients = nil }, "recipients"},
		{"no formats", func(c *domain.ReportConfig) { c.Formats = nil }, "formats"},
		{"unknown format", func(c *domain.ReportConfig) {
			c.Formats = []domain.ExportFormat{"docx"}
		}, "formats"},
		{"zero enabled sections", func(c *domain.ReportConfig) {
			for i := range c.Sections {
				c.Sections[i].Enabled = false
			}
		}, "sections"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validDraft(t, b)
			tt.mutate(&cfg)

			issues := b.Validate(boardActor(), cfg)
			require.NotEmpty(t, issues)
			found := false
			for _, i := range issues {
				if i.Field == tt.field {
					found = true
				}
			}
			assert.True(t, found, "expected an issue on %s, got %v", tt.field, issues)
		})
	}
}

func TestValidate_CleanConfigPasses(t *testing.T) {
	b := newTestBuilder()
	cfg := validDraft(t, b)
	assert.Empty(t, b.Validate(boardActor(), cfg))
}

func TestValidate_SectionAccessIsChecked(t *testing.T) {
	b := newTestBuilder()
	cfg := validDraft(t, b)

	// A department head without the sales grant cannot keep the
	// financial section enabled.
	head := domain.StakeholderAccount{
		ID:          "dh-1",
		AccessLevel: domain.AccessDepartmentHead,
		DomainAccess: []string{
			"inventory", "performance",
		},
	}

	issues := b.Validate(head, cfg)
	require.NotEmpty(t, issues)
	assert.Contains(t, issues[0].Message, "financial_performance")
}

func TestRecipients_GroupExpansionDeduplicates(t *testing.T) {
	b := newTestBuilder()
	cfg := validDraft(t, b)
	cfg.Recipients = []string{"Chair@Example.com", "extra@example.com"}
	cfg.Groups = []string{"board", "finance", "unknown-group"}

	got := b.Recipients(cfg)
	// chair appears in the direct list and both groups; once in the union.
	assert.Equal(t, []string{
		"cfo@example.com",
		"chair@example.com",
		"extra@example.com",
		"vice@example.com",
	}, got)
}
