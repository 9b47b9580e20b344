package cron

import (
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// Standard 5-field expressions plus descriptors. A "CRON_TZ=<zone> " prefix
// evaluates the expression in that zone.
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ParseSchedule reads the textual schedule used in configuration:
// "every <duration>", "at <RFC 3339 time>", or a cron expression
// (descriptors such as "@hourly" included).
func ParseSchedule(spec string) (Schedule, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return Schedule{}, fmt.Errorf("schedule is empty")
	}

	var s Schedule
	switch {
	case strings.HasPrefix(spec, "every "):
		d, err := time.ParseDuration(strings.TrimSpace(strings.TrimPrefix(spec, "every ")))
		if err != nil {
			return Schedule{}, fmt.Errorf("invalid interval: %w", err)
		}
		s = Schedule{Kind: ScheduleKindEvery, EveryMs: d.Milliseconds()}
	case strings.HasPrefix(spec, "at "):
		s = Schedule{Kind: ScheduleKindAt, At: strings.TrimSpace(strings.TrimPrefix(spec, "at "))}
	default:
		s = Schedule{Kind: ScheduleKindCron, Expr: spec}
	}

	if _, err := s.Next(time.Now()); err != nil {
		return Schedule{}, err
	}
	return s, nil
}

// Next returns the first run of s after from. An "at" schedule yields its
// instant even when that is already past, so a missed one-shot run fires as
// soon as it is scheduled.
func (s Schedule) Next(from time.Time) (time.Time, error) {
	switch s.Kind {
	case ScheduleKindAt:
		if s.At == "" {
			return time.Time{}, fmt.Errorf("at schedule has no time")
		}
		t, err := time.Parse(time.RFC3339, s.At)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid at time %q: %w", s.At, err)
		}
		return t, nil

	case ScheduleKindEvery:
		if s.EveryMs <= 0 {
			return time.Time{}, fmt.Errorf("every schedule needs a positive interval, got %dms", s.EveryMs)
		}
		return from.Add(time.Duration(s.EveryMs) * time.Millisecond), nil

	case ScheduleKindCron:
		if s.Expr == "" {
			return time.Time{}, fmt.Errorf("cron schedule has no expression")
		}
		sched, err := cronParser.Parse(s.Expr)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid cron expression: %w", err)
		}
		next := sched.Next(from)
		if next.IsZero() {
			return time.Time{}, fmt.Errorf("cron expression %q never fires", s.Expr)
		}
		return next, nil

	default:
		return time.Time{}, fmt.Errorf("unknown schedule kind: %q", s.Kind)
	}
}

// CalculateNextRun returns the next run of schedule from now, in Unix
// milliseconds.
func CalculateNextRun(schedule Schedule) (int64, error) {
	next, err := schedule.Next(time.Now())
	if err != nil {
		return 0, err
	}
	return next.UnixMilli(), nil
}
