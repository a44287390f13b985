package main

import (
	"fmt"
	"net/http"
	"os"

	"github.com/clearview/reportline/pkg/export"
	"github.com/clearview/reportline/pkg/models/domain"
	"github.com/clearview/reportline/pkg/services/config"
	"github.com/clearview/reportline/pkg/services/metrics"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	cfgPath    string
	metricName string
	startDate  string
	endDate    string
	outPath    string
)

// exportColumns mirrors the web CSV endpoints so both surfaces produce
// identical files.
var exportColumns = map[string]struct {
	keyHeader string
	fields    []string
}{
	"sales":       {"date", []string{"amount"}},
	"inventory":   {"productId", []string{"quantity"}},
	"performance": {"service", []string{"avgLatency", "avgErrorRate", "avgThroughput"}},
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "reportline",
		Short: "Reportline command line tools",
	}

	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "Export one metric domain as CSV",
		RunE:  runExport,
	}
	exportCmd.Flags().StringVarP(&cfgPath, "config", "c", "reportline.yaml", "Path to the application config file")
	exportCmd.Flags().StringVarP(&metricName, "domain", "d", "sales", "Metric domain: sales, inventory or performance")
	exportCmd.Flags().StringVar(&startDate, "start", "", "Period start (YYYY-MM-DD, inclusive)")
	exportCmd.Flags().StringVar(&endDate, "end", "", "Period end (YYYY-MM-DD, inclusive)")
	exportCmd.Flags().StringVarP(&outPath, "out", "o", "", "Output file (defaults to stdout)")

	rootCmd.AddCommand(exportCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runExport(cmd *cobra.Command, _ []string) error {
	columns, ok := exportColumns[metricName]
	if !ok {
		return fmt.Errorf("unknown metric domain: %s", metricName)
	}

	appCfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	src, ok := appCfg.Sources[metricName]
	if !ok {
		return fmt.Errorf("no source configured for domain %s", metricName)
	}

	logger := zerolog.New(os.Stderr).With().Timestamp().Logger()
	ctx := logger.WithContext(cmd.Context())

	client := &http.Client{}
	var source metrics.Source
	switch metricName {
	case "sales":
		source = metrics.NewSalesSource(client, src.URL, src.Timeout)
	case "inventory":
		source = metrics.NewInventorySource(client, src.URL, src.Timeout)
	case "performance":
		source = metrics.NewPerformanceSource(client, src.URL, src.Timeout)
	}

	registry, err := metrics.NewRegistry(source)
	if err != nil {
		return err
	}
	aggregator := metrics.NewAggregator(registry, appCfg.AggregateDeadline)

	period := domain.Period{Start: startDate, End: endDate}
	result, err := aggregator.Aggregate(ctx, []domain.DomainQuery{{Domain: metricName}}, period)
	if err != nil {
		return fmt.Errorf("failed to aggregate %s: %w", metricName, err)
	}

	res := result.Domains[metricName]
	fields := res.FieldOrder
	if len(fields) == 0 {
		fields = columns.fields
	}

	out := os.Stdout
	if outPath != "" {
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		out = f
	}

	return export.WriteCSV(out, columns.keyHeader, fields, res.Rows)
}
