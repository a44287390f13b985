package domain

// SectionType classifies the content a report section carries.
type SectionType string

const (
	SectionExecutiveSummary SectionType = "executive_summary"
	SectionFinancial        SectionType = "financial"
	SectionOperational      SectionType = "operational"
	SectionStrategic        SectionType = "strategic"
	SectionRisk             SectionType = "risk"
	SectionCustomer         SectionType = "customer"
	SectionCompliance       SectionType = "compliance"
)

// SectionDefinition is a catalog entry. Definitions are immutable at
// runtime; reports hold per-config copies as SectionSelection.
type SectionDefinition struct {
	ID             string
	Title          string
	Type           SectionType
	Required       bool
	Customizable   bool
	DataSourceKey  string
	EstimatedPages int
}

// SectionSelection is a definition paired with the per-report enabled flag.
// A required definition keeps Enabled true for the life of the config.
type SectionSelection struct {
	Definition SectionDefinition
	Enabled    bool
}
