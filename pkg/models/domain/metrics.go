package domain

// DomainStatus describes how complete one upstream domain's contribution
// to an aggregation is.
type DomainStatus string

const (
	DomainFresh   DomainStatus = "fresh"
	DomainPartial DomainStatus = "partial"
	DomainMissing DomainStatus = "missing"
)

// DomainQuery names one upstream domain to aggregate and whether to also
// fetch the preceding period of equal length for growth KPIs.
type DomainQuery struct {
	Domain          string
	ComparePrevious bool
}

// MetricRow is a normalized metric record: a key (date, product id,
// service name) plus named numeric fields.
type MetricRow struct {
	Key    string
	Fields map[string]float64
}

// DomainResult is one domain's normalized contribution.
type DomainResult struct {
	Domain string
	Status DomainStatus
	// FieldOrder preserves upstream field ordering for tabular export.
	FieldOrder []string
	Rows       []MetricRow
	// Sums holds per-field totals over Rows; empty when Status is missing.
	Sums map[string]float64
	// GrowthPct holds per-field growth against the preceding period when
	// the query asked for comparison and both periods were available.
	GrowthPct map[string]float64
	Err       string
}

// AggregationResult is the merged outcome of a fan-out aggregation.
// Statuses always carries an entry per requested domain, including the
// failed ones.
type AggregationResult struct {
	Domains  map[string]DomainResult
	Statuses map[string]DomainStatus
}

// Degraded reports whether any requested domain came back incomplete.
func (r AggregationResult) Degraded() bool {
	for _, s := range r.Statuses {
		if s != DomainFresh {
			return true
		}
	}
	return false
}
