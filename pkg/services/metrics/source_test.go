package metrics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/clearview/reportline/pkg/models/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSalesSource_Fetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "2024-01-01", r.URL.Query().Get("from"))
		assert.Equal(t, "2024-01-31", r.URL.Query().Get("to"))
		w.Write([]byte(`{"daily":{"2024-01-02":150,"2024-01-01":100}}`))
	}))
	t.Cleanup(srv.Close)

	src := NewSalesSource(srv.Client(), srv.URL, time.Second)
	snap, err := src.Fetch(context.Background(), domain.Period{Start: "2024-01-01", End: "2024-01-31"})
	require.NoError(t, err)

	assert.True(t, snap.DateKeyed)
	assert.Equal(t, []string{"amount"}, snap.FieldOrder)
	require.Len(t, snap.Rows, 2)
	// Rows come back sorted by key regardless of map iteration order.
	assert.Equal(t, "2024-01-01", snap.Rows[0].Key)
	assert.Equal(t, 100.0, snap.Rows[0].Fields["amount"])
	assert.Equal(t, "2024-01-02", snap.Rows[1].Key)
}

func TestInventorySource_Fetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"byProduct":{"widget-9":3,"widget-1":42}}`))
	}))
	t.Cleanup(srv.Close)

	src := NewInventorySource(srv.Client(), srv.URL, time.Second)
	snap, err := src.Fetch(context.Background(), domain.Period{})
	require.NoError(t, err)

	assert.False(t, snap.DateKeyed)
	require.Len(t, snap.Rows, 2)
	assert.Equal(t, "widget-1", snap.Rows[0].Key)
	assert.Equal(t, 42.0, snap.Rows[0].Fields["quantity"])
}

func TestPerformanceSource_Fetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"byService":{"checkout":{"avgLatency":120.5,"avgErrorRate":0.02,"avgThroughput":830}}}`))
	}))
	t.Cleanup(srv.Close)

	src := NewPerformanceSource(srv.Client(), srv.URL, time.Second)
	snap, err := src.Fetch(context.Background(), domain.Period{})
	require.NoError(t, err)

	assert.Equal(t, []string{"avgLatency", "avgErrorRate", "avgThroughput"}, snap.FieldOrder)
	require.Len(t, snap.Rows, 1)
	assert.Equal(t, "checkout", snap.Rows[0].Key)
	assert.Equal(t, 120.5, snap.Rows[0].Fields["avgLatency"])
	assert.Equal(t, 0.02, snap.Rows[0].Fields["avgErrorRate"])
}

func TestHTTPSource_UpstreamErrorWrapsDomain(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(srv.Close)

	src := NewSalesSource(srv.Client(), srv.URL, time.Second)
	_, err := src.Fetch(context.Background(), domain.Period{})
	require.Error(t, err)

	var fetchErr *DomainFetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, "sales", fetchErr.Domain)
}

func TestHTTPSource_MalformedPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json`))
	}))
	t.Cleanup(srv.Close)

	src := NewInventorySource(srv.Client(), srv.URL, time.Second)
	_, err := src.Fetch(context.Background(), domain.Period{})
	assert.Error(t, err)
}
