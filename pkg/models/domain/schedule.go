package domain

import "time"

type Frequency string

const (
	FrequencyWeekly    Frequency = "weekly"
	FrequencyMonthly   Frequency = "monthly"
	FrequencyQuarterly Frequency = "quarterly"
)

// ScheduleRule describes when a config's report should regenerate.
// At most one generation job runs per ConfigID at any time; a trigger
// that fires while one is in flight is dropped.
type ScheduleRule struct {
	ConfigID   string
	Frequency  Frequency
	DayOfWeek  time.Weekday
	DayOfMonth int
	// TimeOfDay is wall-clock "15:04".
	TimeOfDay string
}
