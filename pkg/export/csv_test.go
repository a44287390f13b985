package export

import (
	"bytes"
	"testing"

	"github.com/clearview/reportline/pkg/models/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteCSV_ExactBody(t *testing.T) {
	rows := []domain.MetricRow{
		{Key: "2024-01-01", Fields: map[string]float64{"amount": 100}},
		{Key: "2024-01-02", Fields: map[string]float64{"amount": 150}},
		{Key: "2024-01-03", Fields: map[string]float64{"amount": 0}},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, "date", []string{"amount"}, rows))

	assert.Equal(t, "date,amount\n2024-01-01,100\n2024-01-02,150\n2024-01-03,0\n", buf.String())
}

func TestWriteCSV_HeaderOnlyForEmptyRows(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, "productId", []string{"quantity"}, nil))
	assert.Equal(t, "productId,quantity\n", buf.String())
}

func TestWriteCSV_MultiFieldOrder(t *testing.T) {
	rows := []domain.MetricRow{
		{Key: "checkout", Fields: map[string]float64{
			"avgLatency": 120.5, "avgErrorRate": 0.02, "avgThroughput": 830,
		}},
	}

	var buf bytes.Buffer
	fields := []string{"avgLatency", "avgErrorRate", "avgThroughput"}
	require.NoError(t, WriteCSV(&buf, "service", fields, rows))

	assert.Equal(t,
		"service,avgLatency,avgErrorRate,avgThroughput\ncheckout,120.5,0.02,830\n",
		buf.String())
}
