// Package scheduler runs the daily feed fetch on a cron timer.
package scheduler

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Scheduler fires a task once a day at a fixed local time.
type Scheduler struct {
	cron     *cron.Cron
	location *time.Location
}

// New creates a Scheduler in the given timezone.
func New(timezone string) (*Scheduler, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("loading timezone %q: %w", timezone, err)
	}
	return &Scheduler{cron: cron.New(cron.WithLocation(loc)), location: loc}, nil
}

// Daily registers task to run every day at the given HH:MM time.
func (s *Scheduler) Daily(at string, task func()) error {
	hour, minute, err := parseTime(at)
	if err != nil {
		return err
	}

	expr := fmt.Sprintf("%d %d * * *", minute, hour)
	if _, err := s.cron.AddFunc(expr, task); err != nil {
		return fmt.Errorf("adding cron entry: %w", err)
	}

	slog.Info("daily fetch scheduled", "time", at, "cron", expr, "timezone", s.location.String())
	return nil
}

// Start begins the cron timer.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts the cron timer.
func (s *Scheduler) Stop() {
	s.cron.Stop()
}

// parseTime extracts hour and minute from HH:MM.
func parseTime(t string) (int, int, error) {
	if len(t) != 5 || t[2] != ':' {
		return 0, 0, fmt.Errorf("invalid time format %q: must be HH:MM", t)
	}
	for _, i := range []int{0, 1, 3, 4} {
		if t[i] < '0' || t[i] > '9' {
			return 0, 0, fmt.Errorf("invalid time format %q: must be HH:MM", t)
		}
	}

	hour := int(t[0]-'0')*10 + int(t[1]-'0')
	minute := int(t[3]-'0')*10 + int(t[4]-'0')
	if hour > 23 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid time %q: hour 0-23, minute 0-59", t)
	}
	return hour, minute, nil
}
