package metrics

import "time"

// GrowthPct is period-over-period growth in percent. A zero previous
// value yields 0, not a division error.
func GrowthPct(current, previous float64) float64 {
	if previous == 0 {
		return 0
	}
	return (current - previous) / previous * 100
}

// ChurnRatePct is churned-over-active in percent, 0 when nothing is active.
func ChurnRatePct(churned, active float64) float64 {
	if active == 0 {
		return 0
	}
	return churned / active * 100
}

const isoDate = "2006-01-02"

// previousPeriod shifts a bounded period back by its own length, for
// period-over-period comparison. Returns false for unbounded or
// malformed periods.
func previousPeriod(start, end string) (string, string, bool) {
	if start == "" || end == "" {
		return "", "", false
	}
	from, err := time.Parse(isoDate, start)
	if err != nil {
		return "", "", false
	}
	to, err := time.Parse(isoDate, end)
	if err != nil {
		return "", "", false
	}

	days := int(to.Sub(from).Hours()/24) + 1
	prevTo := from.AddDate(0, 0, -1)
	prevFrom := prevTo.AddDate(0, 0, -(days - 1))

	return prevFrom.Format(isoDate), prevTo.Format(isoDate), true
}
