package schedule

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// NextRun calculates the next run time for a schedule in epoch milliseconds
func NextRun(schedule Schedule) (int64, error) {
	switch schedule.Kind {
	case KindAt:
		return nextAtRun(schedule)
	case KindEvery:
		return nextEveryRun(schedule)
	case KindCron:
		return nextCronRun(schedule)
	default:
		return 0, fmt.Errorf("unknown schedule kind: %s", schedule.Kind)
	}
}

// nextAtRun calculates next run for "at" schedule
func nextAtRun(schedule Schedule) (int64, error) {
	if schedule.At == "" {
		return 0, fmt.Errorf("'at' schedule requires 'at' field")
	}

	t, err := time.Parse(time.RFC3339, schedule.At)
	if err != nil {
		return 0, fmt.Errorf("invalid timestamp: %w", err)
	}

	return t.UnixMilli(), nil
}

// nextEveryRun calculates next run for "every" schedule
func nextEveryRun(schedule Schedule) (int64, error) {
	if schedule.EveryMs <= 0 {
		return 0, fmt.Errorf("'every' schedule requires positive 'everyMs' value")
	}

	now := time.Now().UnixMilli()

	// Without anchor: next run is now + interval
	if schedule.AnchorMs == nil {
		return now + schedule.EveryMs, nil
	}

	// With anchor: calculate next aligned time
	anchor := *schedule.AnchorMs
	elapsed := now - anchor

	// If anchor is in the future, use it
	if elapsed < 0 {
		return anchor, nil
	}

	// Next run is the first aligned point after now
	periods := elapsed / schedule.EveryMs
	nextRun := anchor + (periods+1)*schedule.EveryMs

	return nextRun, nil
}

// nextCronRun calculates next run for "cron" schedule
func nextCronRun(schedule Schedule) (int64, error) {
	if schedule.Expr == "" {
		return 0, fmt.Errorf("'cron' schedule requires 'expr' field")
	}

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	sched, err := parser.Parse(schedule.Expr)
	if err != nil {
		return 0, fmt.Errorf("invalid cron expression: %w", err)
	}

	now := time.Now()
	if schedule.TZ != "" {
		loc, err := time.LoadLocation(schedule.TZ)
		if err != nil {
			return 0, fmt.Errorf("invalid timezone: %w", err)
		}
		now = now.In(loc)
	}

	next := sched.Next(now)

	return next.UnixMilli(), nil
}
