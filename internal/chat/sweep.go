package chat

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultSweepCron runs the sweeper every ten minutes.
const DefaultSweepCron = "*/10 * * * *"

// cronParser uses standard 5-field cron expressions (minute, hour, dom, month, dow).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// SweepTask is one cleanup job. Run returns the number of items removed.
type SweepTask struct {
	Name string
	Run  func(ctx context.Context) (int64, error)
}

// Sweeper runs cleanup tasks on a cron schedule.
type Sweeper struct {
	sched cron.Schedule
	tasks []SweepTask
	now   func() time.Time
}

// SweeperOpts holds parameters for creating a Sweeper.
type SweeperOpts struct {
	Cron  string // defaults to DefaultSweepCron
	Tasks []SweepTask
	Now   func() time.Time // defaults to time.Now
}

// NewSweeper creates a Sweeper.
func NewSweeper(opts SweeperOpts) (*Sweeper, error) {
	expr := opts.Cron
	if expr == "" {
		expr = DefaultSweepCron
	}
	sched, err := cronParser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("chat: sweeper: parse cron %q: %w", expr, err)
	}
	if len(opts.Tasks) == 0 {
		return nil, fmt.Errorf("chat: sweeper: at least one task is required")
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Sweeper{sched: sched, tasks: opts.Tasks, now: now}, nil
}

// Next returns the duration until the next scheduled sweep.
func (s *Sweeper) Next() time.Duration {
	now := s.now()
	d := s.sched.Next(now).Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

// RunOnce runs every task and returns the removed counts by task name.
// A failing task is logged and does not stop the others.
func (s *Sweeper) RunOnce(ctx context.Context) map[string]int64 {
	removed := make(map[string]int64, len(s.tasks))
	for _, t := range s.tasks {
		n, err := t.Run(ctx)
		if err != nil {
			log.Printf("chat: sweep %s: %v", t.Name, err)
			continue
		}
		removed[t.Name] = n
		if n > 0 {
			log.Printf("chat: sweep %s: removed %d", t.Name, n)
		}
	}
	return removed
}

// Run sweeps on schedule until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	timer := time.NewTimer(s.Next())
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			s.RunOnce(ctx)
			timer.Reset(s.Next())
		}
	}
}
