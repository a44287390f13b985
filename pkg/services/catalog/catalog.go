package catalog

import (
	"fmt"

	"github.com/clearview/reportline/pkg/models/domain"
)

// Catalog is the read-only registry of report section definitions.
type Catalog interface {
	// Definitions returns every definition in presentation order.
	Definitions() []domain.SectionDefinition
	// Get looks a definition up by id.
	Get(id string) (domain.SectionDefinition, error)
	// DefaultSelections returns a fresh per-report selection list with
	// every section enabled.
	DefaultSelections() []domain.SectionSelection
}

// defaultDefinitions is the fixed section set. Required sections cannot
// be disabled on any report.
var defaultDefinitions = []domain.SectionDefinition{
	{
		ID:             "executive_summary",
		Title:          "Executive Summary",
		Type:           domain.SectionExecutiveSummary,
		Required:       true,
		Customizable:   false,
		EstimatedPages: 2,
	},
	{
		ID:             "financial_performance",
		Title:          "Financial Performance",
		Type:           domain.SectionFinancial,
		Required:       true,
		Customizable:   true,
		DataSourceKey:  "sales",
		EstimatedPages: 8,
	},
	{
		ID:             "operational_metrics",
		Title:          "Operational Metrics",
		Type:           domain.SectionOperational,
		Customizable:   true,
		DataSourceKey:  "performance",
		EstimatedPages: 6,
	},
	{
		ID:             "strategic_initiatives",
		Title:          "Strategic Initiatives",
		Type:           domain.SectionStrategic,
		Customizable:   true,
		EstimatedPages: 4,
	},
	{
		ID:             "risk_assessment",
		Title:          "Risk Assessment",
		Type:           domain.SectionRisk,
		Customizable:   true,
		EstimatedPages: 5,
	},
	{
		ID:             "customer_insights",
		Title:          "Customer Insights",
		Type:           domain.SectionCustomer,
		Customizable:   true,
		DataSourceKey:  "inventory",
		EstimatedPages: 6,
	},
	{
		ID:             "compliance_report",
		Title:          "Compliance Report",
		Type:           domain.SectionCompliance,
		Customizable:   false,
		EstimatedPages: 3,
	},
}

type catalog struct {
	defs  []domain.SectionDefinition
	byID  map[string]domain.SectionDefinition
	order []string
}

// NewCatalog returns the standard catalog.
func NewCatalog() Catalog {
	return newCatalog(defaultDefinitions)
}

func newCatalog(defs []domain.SectionDefinition) Catalog {
	c := &catalog{byID: make(map[string]domain.SectionDefinition, len(defs))}
	for _, def := range defs {
		c.defs = append(c.defs, def)
		c.byID[def.ID] = def
		c.order = append(c.order, def.ID)
	}
	return c
}

func (c *catalog) Definitions() []domain.SectionDefinition {
	out := make([]domain.SectionDefinition, len(c.defs))
	copy(out, c.defs)
	return out
}

func (c *catalog) Get(id string) (domain.SectionDefinition, error) {
	def, ok := c.byID[id]
	if !ok {
		return domain.SectionDefinition{}, fmt.Errorf("unknown section: %s", id)
	}
	return def, nil
}

func (c *catalog) DefaultSelections() []domain.SectionSelection {
	out := make([]domain.SectionSelection, 0, len(c.defs))
	for _, def := range c.defs {
		out = append(out, domain.SectionSelection{Definition: def, Enabled: true})
	}
	return out
}
