package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/clearview/reportline/pkg/models/domain"
)

// WriteCSV projects uniform rows to w as header + one line per row.
// The header is always written, even for zero rows. Values are written
// verbatim with no locale reformatting.
func WriteCSV(w io.Writer, keyHeader string, fields []string, rows []domain.MetricRow) error {
	cw := csv.NewWriter(w)

	header := append([]string{keyHeader}, fields...)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}

	record := make([]string, len(header))
	for _, row := range rows {
		record[0] = row.Key
		for i, field := range fields {
			record[i+1] = formatValue(row.Fields[field])
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write csv row %q: %w", row.Key, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// formatValue renders a metric value with the shortest exact decimal
// representation, so 100 stays "100" and 0.02 stays "0.02".
func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
