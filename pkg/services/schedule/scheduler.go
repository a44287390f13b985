package schedule

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/clearview/reportline/pkg/models/domain"
	"github.com/clearview/reportline/pkg/services/report"
	"github.com/rs/zerolog"
)

// Starter starts a generation run for a scheduled config. A run already
// in flight surfaces as report.ErrJobInFlight and the trigger is dropped.
type Starter interface {
	GenerateScheduled(ctx context.Context, configID string) (domain.GenerationJob, error)
}

// Scheduler evaluates recurrence rules against wall-clock time and
// triggers generation runs. One rule per config id.
type Scheduler struct {
	starter Starter
	tick    time.Duration
	now     func() time.Time

	mu    sync.Mutex
	rules map[string]domain.ScheduleRule
	// fired de-duplicates triggers within the same due minute.
	fired map[string]string

	done chan struct{}
}

func NewScheduler(starter Starter, tick time.Duration) *Scheduler {
	if tick == 0 {
		tick = 30 * time.Second
	}
	return &Scheduler{
		starter: starter,
		tick:    tick,
		now:     time.Now,
		rules:   make(map[string]domain.ScheduleRule),
		fired:   make(map[string]string),
		done:    make(chan struct{}),
	}
}

// SetRule registers or replaces the recurrence rule for a config.
func (s *Scheduler) SetRule(rule domain.ScheduleRule) error {
	if rule.ConfigID == "" {
		return fmt.Errorf("rule config id cannot be empty")
	}
	if _, err := parseTimeOfDay(rule.TimeOfDay); err != nil {
		return err
	}
	switch rule.Frequency {
	case domain.FrequencyWeekly, domain.FrequencyMonthly, domain.FrequencyQuarterly:
	default:
		return fmt.Errorf("unsupported frequency: %s", rule.Frequency)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules[rule.ConfigID] = rule
	return nil
}

// RemoveRule drops the rule for a config, if any.
func (s *Scheduler) RemoveRule(configID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rules, configID)
	delete(s.fired, configID)
}

// Rule returns the registered rule for a config.
func (s *Scheduler) Rule(configID string) (domain.ScheduleRule, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rule, ok := s.rules[configID]
	return rule, ok
}

// Run evaluates rules until the context is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	defer close(s.done)
	logger := zerolog.Ctx(ctx)
	logger.Info().Dur("tick", s.tick).Msg("delivery scheduler started")

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("delivery scheduler stopped")
			return
		case <-ticker.C:
			s.Evaluate(ctx)
		}
	}
}

// Done is closed once Run has returned.
func (s *Scheduler) Done() <-chan struct{} { return s.done }

// Evaluate fires every rule that is due at the current minute. Exposed
// for direct invocation in tests and manual sweeps.
func (s *Scheduler) Evaluate(ctx context.Context) {
	now := s.now()
	minute := now.Format("2006-01-02 15:04")

	s.mu.Lock()
	var due []domain.ScheduleRule
	for configID, rule := range s.rules {
		if !ruleDue(rule, now) {
			continue
		}
		if s.fired[configID] == minute {
			continue
		}
		s.fired[configID] = minute
		due = append(due, rule)
	}
	s.mu.Unlock()

	logger := zerolog.Ctx(ctx)
	for _, rule := range due {
		_, err := s.starter.GenerateScheduled(ctx, rule.ConfigID)
		switch {
		case errors.Is(err, report.ErrJobInFlight):
			// Single-flight: a trigger during a running job is dropped.
			logger.Info().Str("config", rule.ConfigID).Msg("trigger dropped, job already in flight")
		case err != nil:
			logger.Error().Err(err).Str("config", rule.ConfigID).Msg("scheduled trigger failed")
		default:
			logger.Info().Str("config", rule.ConfigID).Msg("scheduled generation triggered")
		}
	}
}

// ruleDue reports whether the rule's trigger matches the given instant,
// to minute precision.
func ruleDue(rule domain.ScheduleRule, now time.Time) bool {
	tod, err := parseTimeOfDay(rule.TimeOfDay)
	if err != nil {
		return false
	}
	if now.Hour() != tod.hour || now.Minute() != tod.minute {
		return false
	}

	switch rule.Frequency {
	case domain.FrequencyWeekly:
		return now.Weekday() == rule.DayOfWeek
	case domain.FrequencyMonthly:
		return now.Day() == clampDayOfMonth(rule.DayOfMonth, now)
	case domain.FrequencyQuarterly:
		switch now.Month() {
		case time.January, time.April, time.July, time.October:
			return now.Day() == clampDayOfMonth(rule.DayOfMonth, now)
		}
	}
	return false
}

// clampDayOfMonth pins day-31 rules to the last day of shorter months.
func clampDayOfMonth(day int, now time.Time) int {
	last := time.Date(now.Year(), now.Month()+1, 0, 0, 0, 0, 0, now.Location()).Day()
	if day > last {
		return last
	}
	return day
}

type timeOfDay struct {
	hour   int
	minute int
}

func parseTimeOfDay(s string) (timeOfDay, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return timeOfDay{}, fmt.Errorf("invalid time of day %q: %w", s, err)
	}
	return timeOfDay{hour: t.Hour(), minute: t.Minute()}, nil
}
