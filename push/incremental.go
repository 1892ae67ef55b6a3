package push

import (
	"context"
	"time"

	"github.com/googlegsa/library/adaptor"
	"github.com/googlegsa/library/common"
	"github.com/googlegsa/library/journal"
)

// IncrementalDriver invokes an adaptor's change-lister on a periodic
// timer, fixed-rate: a tick that would overlap a still-running
// invocation is skipped rather than queued. At most one incremental push
// runs at a time per process.
type IncrementalDriver struct {
	Sender  *Sender
	Journal *journal.Journal
	Period  time.Duration

	tracker *RunTracker
	logger  *common.ContextLogger
}

// NewIncrementalDriver builds a driver that polls every period.
func NewIncrementalDriver(sender *Sender, j *journal.Journal, period time.Duration) *IncrementalDriver {
	return &IncrementalDriver{
		Sender:  sender,
		Journal: j,
		Period:  period,
		tracker: NewRunTracker(),
		logger:  common.ServiceLogger("push.incremental"),
	}
}

// Run blocks, ticking every Period and invoking a.GetModifiedDocIds,
// until ctx is canceled.
func (d *IncrementalDriver) Run(ctx context.Context, a adaptor.IncrementalAdaptor) {
	ticker := time.NewTicker(d.Period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.tick(ctx, a)
		}
	}
}

func (d *IncrementalDriver) tick(ctx context.Context, a adaptor.IncrementalAdaptor) {
	if err := d.tracker.Start(); err != nil {
		d.logger.Debug("skipping incremental tick: previous run still in progress")
		return
	}

	d.Journal.RecordPushStarted(journal.KindIncremental)

	pusher := d.Sender.NewStreamPusher(journal.KindIncremental)
	err := a.GetModifiedDocIds(ctx, pusher)
	if err == nil {
		err = pusher.Finish(ctx)
	}

	switch {
	case err == nil:
		d.tracker.Finish(StateSuccess)
		d.Journal.RecordPushFinished(journal.KindIncremental, journal.StatusSuccess)
	case ctx.Err() != nil:
		d.tracker.Finish(StateInterrupted)
		d.Journal.RecordPushFinished(journal.KindIncremental, journal.StatusInterrupted)
	default:
		d.tracker.Finish(StateFailed)
		d.Journal.RecordPushFinished(journal.KindIncremental, journal.StatusFailed)
		d.logger.WithError(err).Error("incremental push failed")
	}
}

// State returns the driver's current run state.
func (d *IncrementalDriver) State() RunState { return d.tracker.State() }

// CronDriver invokes an adaptor's full enumeration on a calendar
// schedule evaluated once per minute, in place of (or alongside) the
// periodic incremental timer. The pattern may be replaced at runtime via
// SetSchedule without restarting the running goroutine.
type CronDriver struct {
	full   *FullPushDriver
	logger *common.ContextLogger
	mu     chan *CronSchedule // 1-buffered mailbox used as a settable cell
}

// NewCronDriver builds a driver that fires full.Run on every minute tick
// matching schedule.
func NewCronDriver(full *FullPushDriver, schedule *CronSchedule) *CronDriver {
	d := &CronDriver{
		full:   full,
		logger: common.ServiceLogger("push.cron"),
		mu:     make(chan *CronSchedule, 1),
	}
	d.mu <- schedule
	return d
}

// SetSchedule replaces the active pattern without restarting Run.
func (d *CronDriver) SetSchedule(schedule *CronSchedule) {
	select {
	case <-d.mu:
	default:
	}
	d.mu <- schedule
}

func (d *CronDriver) schedule() *CronSchedule {
	s := <-d.mu
	d.mu <- s
	return s
}

// Run blocks, checking the schedule once per minute and firing a full
// push on each matching minute, until ctx is canceled.
func (d *CronDriver) Run(ctx context.Context, a adaptor.Adaptor) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if d.schedule().Matches(now) {
				if err := d.full.Run(ctx, a); err != nil {
					d.logger.WithError(err).Error("cron-triggered full push failed")
				}
			}
		}
	}
}
