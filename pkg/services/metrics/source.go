package metrics

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	"github.com/clearview/reportline/pkg/models/domain"
	"github.com/sony/gobreaker"
)

// Snapshot is one domain's raw metric payload normalized into flat rows.
type Snapshot struct {
	// FieldOrder is the canonical column order for tabular export.
	FieldOrder []string
	Rows       []domain.MetricRow
	// DateKeyed marks rows keyed by ISO date, which makes them subject
	// to period filtering.
	DateKeyed bool
}

// Source fetches one domain's metric snapshot. Implementations own their
// transport, timeout and resilience policy; the aggregator only sees
// rows or an error.
type Source interface {
	Domain() string
	Fetch(ctx context.Context, period domain.Period) (Snapshot, error)
}

// DomainFetchError wraps a single upstream failure. The aggregator
// recovers it into a missing-domain marker instead of propagating it.
type DomainFetchError struct {
	Domain string
	Err    error
}

func (e *DomainFetchError) Error() string {
	return fmt.Sprintf("domain %q fetch failed: %v", e.Domain, e.Err)
}

func (e *DomainFetchError) Unwrap() error { return e.Err }

// DecodeFunc turns an upstream JSON body into a normalized snapshot.
type DecodeFunc func(body []byte) (Snapshot, error)

// HTTPSourceConfig configures one JSON-over-HTTP metric source.
type HTTPSourceConfig struct {
	Domain  string
	URL     string
	Timeout time.Duration
	Decode  DecodeFunc
}

type httpSource struct {
	cfg     HTTPSourceConfig
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
}

// NewHTTPSource builds a source over a shared client. Every source gets
// its own circuit breaker; an open breaker fails fast without touching
// the upstream.
func NewHTTPSource(client *http.Client, cfg HTTPSourceConfig) Source {
	if cfg.Timeout == 0 {
		cfg.Timeout = 5 * time.Second
	}
	return &httpSource{
		cfg:    cfg,
		client: client,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    cfg.Domain,
			Timeout: 30 * time.Second,
		}),
	}
}

func (s *httpSource) Domain() string { return s.cfg.Domain }

func (s *httpSource) Fetch(ctx context.Context, period domain.Period) (Snapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	out, err := s.breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.cfg.URL, nil)
		if err != nil {
			return nil, err
		}
		q := req.URL.Query()
		if period.Start != "" {
			q.Set("from", period.Start)
		}
		if period.End != "" {
			q.Set("to", period.End)
		}
		req.URL.RawQuery = q.Encode()

		resp, err := s.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
		}

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, err
		}
		return s.cfg.Decode(body)
	})
	if err != nil {
		return Snapshot{}, &DomainFetchError{Domain: s.cfg.Domain, Err: err}
	}

	return out.(Snapshot), nil
}

// NewSalesSource reads GET /metrics/sales: { "daily": { isoDate: amount } }.
func NewSalesSource(client *http.Client, url string, timeout time.Duration) Source {
	return NewHTTPSource(client, HTTPSourceConfig{
		Domain:  "sales",
		URL:     url,
		Timeout: timeout,
		Decode:  decodeSales,
	})
}

// NewInventorySource reads GET /metrics/inventory:
// { "byProduct": { productId: quantity } }.
func NewInventorySource(client *http.Client, url string, timeout time.Duration) Source {
	return NewHTTPSource(client, HTTPSourceConfig{
		Domain:  "inventory",
		URL:     url,
		Timeout: timeout,
		Decode:  decodeInventory,
	})
}

// NewPerformanceSource reads GET /metrics/performance:
// { "byService": { service: { avgLatency, avgErrorRate, avgThroughput } } }.
func NewPerformanceSource(client *http.Client, url string, timeout time.Duration) Source {
	return NewHTTPSource(client, HTTPSourceConfig{
		Domain:  "performance",
		URL:     url,
		Timeout: timeout,
		Decode:  decodePerformance,
	})
}

func decodeSales(body []byte) (Snapshot, error) {
	var payload struct {
		Daily map[string]float64 `json:"daily"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return Snapshot{}, fmt.Errorf("failed to decode sales payload: %w", err)
	}

	rows := make([]domain.MetricRow, 0, len(payload.Daily))
	for date, amount := range payload.Daily {
		rows = append(rows, domain.MetricRow{
			Key:    date,
			Fields: map[string]float64{"amount": amount},
		})
	}
	sortRows(rows)

	return Snapshot{FieldOrder: []string{"amount"}, Rows: rows, DateKeyed: true}, nil
}

func decodeInventory(body []byte) (Snapshot, error) {
	var payload struct {
		ByProduct map[string]float64 `json:"byProduct"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return Snapshot{}, fmt.Errorf("failed to decode inventory payload: %w", err)
	}

	rows := make([]domain.MetricRow, 0, len(payload.ByProduct))
	for product, quantity := range payload.ByProduct {
		rows = append(rows, domain.MetricRow{
			Key:    product,
			Fields: map[string]float64{"quantity": quantity},
		})
	}
	sortRows(rows)

	return Snapshot{FieldOrder: []string{"quantity"}, Rows: rows}, nil
}

func decodePerformance(body []byte) (Snapshot, error) {
	var payload struct {
		ByService map[string]struct {
			AvgLatency    float64 `json:"avgLatency"`
			AvgErrorRate  float64 `json:"avgErrorRate"`
			AvgThroughput float64 `json:"avgThroughput"`
		} `json:"byService"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return Snapshot{}, fmt.Errorf("failed to decode performance payload: %w", err)
	}

	rows := make([]domain.MetricRow, 0, len(payload.ByService))
	for service, m := range payload.ByService {
		rows = append(rows, domain.MetricRow{
			Key: service,
			Fields: map[string]float64{
				"avgLatency":    m.AvgLatency,
				"avgErrorRate":  m.AvgErrorRate,
				"avgThroughput": m.AvgThroughput,
			},
		})
	}
	sortRows(rows)

	return Snapshot{
		FieldOrder: []string{"avgLatency", "avgErrorRate", "avgThroughput"},
		Rows:       rows,
	}, nil
}

func sortRows(rows []domain.MetricRow) {
	sort.Slice(rows, func(i, j int) bool { return rows[i].Key < rows[j].Key })
}
