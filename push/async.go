package push

import (
	"context"
	"time"

	"github.com/googlegsa/library/common"
	"github.com/googlegsa/library/docid"
	"github.com/googlegsa/library/feed"
	"github.com/googlegsa/library/journal"
)

// AsyncSender is a bounded FIFO queue plus a single worker goroutine.
// AsyncPushItem enqueues without blocking, dropping the item (and
// logging a warning) if the queue is full. The worker accumulates items
// into batches bounded by size or elapsed latency and hands each batch
// to a Sender under the default retry policy.
type AsyncSender struct {
	sender      *Sender
	kind        journal.PushKind
	maxBatch    int
	maxLatency  time.Duration
	queue       chan docid.Record
	logger      *common.ContextLogger
	stopped     chan struct{}
}

// NewAsyncSender builds an AsyncSender with the given queue capacity,
// batch size, and max latency before a partial batch is flushed anyway.
// queueCapacity should be sized to absorb the expected arrival rate
// during one batch send (e.g. 300 docs/s x 1s = 300).
func NewAsyncSender(sender *Sender, kind journal.PushKind, queueCapacity, maxBatch int, maxLatency time.Duration) *AsyncSender {
	return &AsyncSender{
		sender:     sender,
		kind:       kind,
		maxBatch:   maxBatch,
		maxLatency: maxLatency,
		queue:      make(chan docid.Record, queueCapacity),
		logger:     common.ServiceLogger("push.async"),
		stopped:    make(chan struct{}),
	}
}

// AsyncPushItem enqueues rec non-blockingly. If the queue is full, the
// item is dropped and a warning is logged; the call always returns
// promptly either way.
func (a *AsyncSender) AsyncPushItem(rec docid.Record) {
	select {
	case a.queue <- rec:
	default:
		a.logger.WithField("doc_id", rec.DocId.ID()).Warn("async queue full, dropping item")
	}
}

// Run drives the worker loop until ctx is canceled, at which point it
// drains any remaining queued items and pushes them once with a no-retry
// policy so shutdown stays bounded, then returns.
func (a *AsyncSender) Run(ctx context.Context) {
	defer close(a.stopped)

	var batch []docid.Record
	var batchTimer *time.Timer
	var batchTimerC <-chan time.Time

	flush := func() {
		if len(batch) == 0 {
			return
		}
		toSend := batch
		batch = nil
		if batchTimer != nil {
			batchTimer.Stop()
			batchTimerC = nil
		}
		if _, err := a.sender.PushRecords(ctx, a.kind, toSend); err != nil {
			a.logger.WithError(err).Error("async batch push failed")
		}
	}

	for {
		select {
		case <-ctx.Done():
			if batchTimer != nil {
				batchTimer.Stop()
			}
			a.drain(batch)
			return
		case rec := <-a.queue:
			batch = append(batch, rec)
			if len(batch) == 1 {
				batchTimer = time.NewTimer(a.maxLatency)
				batchTimerC = batchTimer.C
			}
			if len(batch) >= a.maxBatch {
				flush()
			}
		case <-batchTimerC:
			flush()
		}
	}
}

// drain pushes pending, along with every item still sitting in the
// queue, once, using a no-retry policy so shutdown completes in bounded
// time. pending is the batch already dequeued by the worker loop but not
// yet flushed when the caller's context was canceled.
func (a *AsyncSender) drain(pending []docid.Record) {
	remaining := append([]docid.Record(nil), pending...)
	for {
		select {
		case rec := <-a.queue:
			remaining = append(remaining, rec)
		default:
			if len(remaining) == 0 {
				return
			}
			noRetry := &Sender{
				Datasource:          a.sender.Datasource,
				BaseURL:             a.sender.BaseURL,
				MaxBatchSize:        a.sender.MaxBatchSize,
				Transport:           a.sender.Transport,
				Policy:              feed.NoRetryPolicy(),
				Journal:             a.sender.Journal,
				Archiver:            a.sender.Archiver,
				MarkAllDocsAsPublic: a.sender.MarkAllDocsAsPublic,
			}
			_, _ = noRetry.PushRecords(context.Background(), a.kind, remaining)
			return
		}
	}
}

// Stopped is closed once the worker loop has returned from Run.
func (a *AsyncSender) Stopped() <-chan struct{} { return a.stopped }
