package schedule

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/clearview/reportline/pkg/models/domain"
	"github.com/clearview/reportline/pkg/services/report"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStarter struct {
	mu       sync.Mutex
	started  []string
	inflight map[string]bool
}

func newFakeStarter() *fakeStarter {
	return &fakeStarter{inflight: make(map[string]bool)}
}

func (f *fakeStarter) GenerateScheduled(_ context.Context, configID string) (domain.GenerationJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.inflight[configID] {
		return domain.GenerationJob{}, report.ErrJobInFlight
	}
	f.started = append(f.started, configID)
	return domain.GenerationJob{ID: "job-" + configID, ConfigID: configID}, nil
}

func (f *fakeStarter) startedCount(configID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, id := range f.started {
		if id == configID {
			n++
		}
	}
	return n
}

func at(t *testing.T, s *Scheduler, instant time.Time) {
	t.Helper()
	s.now = func() time.Time { return instant }
}

func TestSetRule_Validation(t *testing.T) {
	s := NewScheduler(newFakeStarter(), time.Second)

	assert.Error(t, s.SetRule(domain.ScheduleRule{
		Frequency: domain.FrequencyWeekly, TimeOfDay: "07:00",
	}), "missing config id")
	assert.Error(t, s.SetRule(domain.ScheduleRule{
		ConfigID: "c1", Frequency: domain.FrequencyWeekly, TimeOfDay: "7am",
	}), "bad time of day")
	assert.Error(t, s.SetRule(domain.ScheduleRule{
		ConfigID: "c1", Frequency: "daily", TimeOfDay: "07:00",
	}), "unsupported frequency")

	require.NoError(t, s.SetRule(domain.ScheduleRule{
		ConfigID: "c1", Frequency: domain.FrequencyWeekly,
		DayOfWeek: time.Monday, TimeOfDay: "07:00",
	}))
	_, ok := s.Rule("c1")
	assert.True(t, ok)
}

func TestEvaluate_WeeklyTrigger(t *testing.T) {
	starter := newFakeStarter()
	s := NewScheduler(starter, time.Second)
	require.NoError(t, s.SetRule(domain.ScheduleRule{
		ConfigID: "c1", Frequency: domain.FrequencyWeekly,
		DayOfWeek: time.Monday, TimeOfDay: "07:30",
	}))

	// 2024-01-01 is a Monday.
	at(t, s, time.Date(2024, 1, 1, 7, 30, 12, 0, time.UTC))
	s.Evaluate(context.Background())
	assert.Equal(t, 1, starter.startedCount("c1"))

	// Same minute, second tick: no duplicate trigger.
	at(t, s, time.Date(2024, 1, 1, 7, 30, 42, 0, time.UTC))
	s.Evaluate(context.Background())
	assert.Equal(t, 1, starter.startedCount("c1"))

	// Wrong weekday.
	at(t, s, time.Date(2024, 1, 2, 7, 30, 0, 0, time.UTC))
	s.Evaluate(context.Background())
	assert.Equal(t, 1, starter.startedCount("c1"))

	// Next Monday fires again.
	at(t, s, time.Date(2024, 1, 8, 7, 30, 0, 0, time.UTC))
	s.Evaluate(context.Background())
	assert.Equal(t, 2, starter.startedCount("c1"))
}

func TestEvaluate_MonthlyClampsShortMonths(t *testing.T) {
	starter := newFakeStarter()
	s := NewScheduler(starter, time.Second)
	require.NoError(t, s.SetRule(domain.ScheduleRule{
		ConfigID: "c1", Frequency: domain.FrequencyMonthly,
		DayOfMonth: 31, TimeOfDay: "06:00",
	}))

	// February has 29 days in 2024; a day-31 rule fires on the 29th.
	at(t, s, time.Date(2024, 2, 29, 6, 0, 0, 0, time.UTC))
	s.Evaluate(context.Background())
	assert.Equal(t, 1, starter.startedCount("c1"))

	at(t, s, time.Date(2024, 3, 31, 6, 0, 0, 0, time.UTC))
	s.Evaluate(context.Background())
	assert.Equal(t, 2, starter.startedCount("c1"))
}

func TestEvaluate_QuarterlyOnlyOnQuarterMonths(t *testing.T) {
	starter := newFakeStarter()
	s := NewScheduler(starter, time.Second)
	require.NoError(t, s.SetRule(domain.ScheduleRule{
		ConfigID: "c1", Frequency: domain.FrequencyQuarterly,
		DayOfMonth: 1, TimeOfDay: "08:00",
	}))

	at(t, s, time.Date(2024, 4, 1, 8, 0, 0, 0, time.UTC))
	s.Evaluate(context.Background())
	assert.Equal(t, 1, starter.startedCount("c1"))

	at(t, s, time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC))
	s.Evaluate(context.Background())
	assert.Equal(t, 1, starter.startedCount("c1"), "may is not a quarter month")
}

func TestEvaluate_InFlightTriggerIsDropped(t *testing.T) {
	starter := newFakeStarter()
	starter.inflight["c1"] = true
	s := NewScheduler(starter, time.Second)
	require.NoError(t, s.SetRule(domain.ScheduleRule{
		ConfigID: "c1", Frequency: domain.FrequencyWeekly,
		DayOfWeek: time.Monday, TimeOfDay: "07:00",
	}))

	at(t, s, time.Date(2024, 1, 1, 7, 0, 0, 0, time.UTC))
	s.Evaluate(context.Background())

	// Dropped, not queued: nothing started now or on a later sweep
	// within a different minute while still in flight.
	assert.Equal(t, 0, starter.startedCount("c1"))

	starter.mu.Lock()
	starter.inflight["c1"] = false
	starter.mu.Unlock()

	at(t, s, time.Date(2024, 1, 8, 7, 0, 0, 0, time.UTC))
	s.Evaluate(context.Background())
	assert.Equal(t, 1, starter.startedCount("c1"))
}

func TestRemoveRule(t *testing.T) {
	starter := newFakeStarter()
	s := NewScheduler(starter, time.Second)
	require.NoError(t, s.SetRule(domain.ScheduleRule{
		ConfigID: "c1", Frequency: domain.FrequencyWeekly,
		DayOfWeek: time.Monday, TimeOfDay: "07:00",
	}))

	s.RemoveRule("c1")

	at(t, s, time.Date(2024, 1, 1, 7, 0, 0, 0, time.UTC))
	s.Evaluate(context.Background())
	assert.Equal(t, 0, starter.startedCount("c1"))
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	s := NewScheduler(newFakeStarter(), 10*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())

	go s.Run(ctx)
	cancel()

	select {
	case <-s.Done():
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop")
	}
}
