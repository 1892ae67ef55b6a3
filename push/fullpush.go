package push

import (
	"context"
	"errors"
	"fmt"

	"github.com/googlegsa/library/adaptor"
	"github.com/googlegsa/library/journal"
)

// FullPushDriver calls the adaptor's enumeration method with a Sender as
// the callback, enforcing at most one full push at a time per process
// and recording the outcome in a Journal.
type FullPushDriver struct {
	Sender  *Sender
	Journal *journal.Journal
	tracker *RunTracker
}

// NewFullPushDriver builds a driver around sender, recording into j.
func NewFullPushDriver(sender *Sender, j *journal.Journal) *FullPushDriver {
	return &FullPushDriver{Sender: sender, Journal: j, tracker: NewRunTracker()}
}

// Run enumerates a.GetDocIds, batching and sending every identifier it
// yields. Returns an error if a full push is already running, if the
// context is canceled mid-enumeration, or if a batch fails permanently.
func (d *FullPushDriver) Run(ctx context.Context, a adaptor.Adaptor) error {
	if err := d.tracker.Start(); err != nil {
		return err
	}

	d.Journal.RecordPushStarted(journal.KindFull)

	pusher := d.Sender.NewStreamPusher(journal.KindFull)
	err := a.GetDocIds(ctx, pusher)
	if err == nil {
		err = pusher.Finish(ctx)
	}

	switch {
	case err == nil:
		d.tracker.Finish(StateSuccess)
		d.Journal.RecordPushFinished(journal.KindFull, journal.StatusSuccess)
		return nil
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		d.tracker.Finish(StateInterrupted)
		d.Journal.RecordPushFinished(journal.KindFull, journal.StatusInterrupted)
		return err
	default:
		d.tracker.Finish(StateFailed)
		d.Journal.RecordPushFinished(journal.KindFull, journal.StatusFailed)
		if marker := pusher.FirstFailed(); marker != nil {
			return fmt.Errorf("push: full push failed at %s: %w", marker.ID(), err)
		}
		return fmt.Errorf("push: full push failed: %w", err)
	}
}

// State returns the driver's current run state.
func (d *FullPushDriver) State() RunState { return d.tracker.State() }
