package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/clearview/reportline/pkg/models/domain"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Aggregator fans out to every requested domain concurrently and merges
// the results. A single failed domain degrades to a missing marker; the
// call only errors when every domain failed.
type Aggregator interface {
	Aggregate(ctx context.Context, queries []domain.DomainQuery, period domain.Period) (domain.AggregationResult, error)
}

type aggregator struct {
	registry Registry
	deadline time.Duration
}

// NewAggregator wires an aggregator over a source registry. deadline is
// the whole-call bound; it takes precedence over per-source timeouts, so
// a source still pending when it elapses is reported as missing.
func NewAggregator(registry Registry, deadline time.Duration) Aggregator {
	if deadline == 0 {
		deadline = 15 * time.Second
	}
	return &aggregator{registry: registry, deadline: deadline}
}

func (a *aggregator) Aggregate(
	ctx context.Context,
	queries []domain.DomainQuery,
	period domain.Period,
) (domain.AggregationResult, error) {
	if len(queries) == 0 {
		return domain.AggregationResult{}, fmt.Errorf("at least one domain query is required")
	}

	ctx, cancel := context.WithTimeout(ctx, a.deadline)
	defer cancel()

	results := make([]domain.DomainResult, len(queries))
	g, ctx := errgroup.WithContext(ctx)
	for i, q := range queries {
		g.Go(func() error {
			results[i] = a.fetchDomain(ctx, q, period)
			// Failures degrade per domain instead of cancelling siblings.
			return nil
		})
	}
	_ = g.Wait()

	out := domain.AggregationResult{
		Domains:  make(map[string]domain.DomainResult, len(results)),
		Statuses: make(map[string]domain.DomainStatus, len(results)),
	}

	failed := 0
	for _, res := range results {
		out.Domains[res.Domain] = res
		out.Statuses[res.Domain] = res.Status
		if res.Status == domain.DomainMissing {
			failed++
		}
	}

	if failed == len(queries) {
		return domain.AggregationResult{}, fmt.Errorf("all %d metric domains failed", failed)
	}
	return out, nil
}

func (a *aggregator) fetchDomain(
	ctx context.Context,
	q domain.DomainQuery,
	period domain.Period,
) domain.DomainResult {
	logger := zerolog.Ctx(ctx)

	res := domain.DomainResult{Domain: q.Domain, Status: domain.DomainMissing}

	src, err := a.registry.Get(q.Domain)
	if err != nil {
		res.Err = err.Error()
		return res
	}

	snap, err := src.Fetch(ctx, period)
	if err != nil {
		logger.Warn().Err(err).Str("domain", q.Domain).Msg("domain fetch failed")
		res.Err = err.Error()
		return res
	}

	rows := snap.Rows
	if snap.DateKeyed {
		rows = filterByPeriod(rows, period)
	}

	res.Status = domain.DomainFresh
	res.FieldOrder = snap.FieldOrder
	res.Rows = rows
	res.Sums = sumFields(rows)

	if q.ComparePrevious {
		a.compareWithPrevious(ctx, src, period, &res)
	}

	return res
}

// compareWithPrevious fetches the preceding period of equal length and
// derives growth KPIs against it. A failed comparison marks the domain
// partial; the current period's data is kept either way.
func (a *aggregator) compareWithPrevious(
	ctx context.Context,
	src Source,
	period domain.Period,
	res *domain.DomainResult,
) {
	prevStart, prevEnd, ok := previousPeriod(period.Start, period.End)
	if !ok {
		res.Status = domain.DomainPartial
		return
	}

	prev := domain.Period{Start: prevStart, End: prevEnd}
	snap, err := src.Fetch(ctx, prev)
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).
			Str("domain", res.Domain).
			Msg("previous-period fetch failed, skipping growth KPIs")
		res.Status = domain.DomainPartial
		return
	}

	rows := snap.Rows
	if snap.DateKeyed {
		rows = filterByPeriod(rows, prev)
	}
	prevSums := sumFields(rows)

	res.GrowthPct = make(map[string]float64, len(res.Sums))
	for field, current := range res.Sums {
		res.GrowthPct[field] = GrowthPct(current, prevSums[field])
	}
}

// filterByPeriod keeps rows whose date key falls inside the period.
// Keys are fixed-width ISO dates, so lexicographic comparison matches
// calendar order.
func filterByPeriod(rows []domain.MetricRow, period domain.Period) []domain.MetricRow {
	out := make([]domain.MetricRow, 0, len(rows))
	for _, row := range rows {
		if period.Contains(row.Key) {
			out = append(out, row)
		}
	}
	return out
}

func sumFields(rows []domain.MetricRow) map[string]float64 {
	sums := make(map[string]float64)
	for _, row := range rows {
		for field, value := range row.Fields {
			sums[field] += value
		}
	}
	return sums
}
