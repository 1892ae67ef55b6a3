// Package journal records operational statistics for the connector's
// dashboard: running counters of identifiers pushed and content requests
// served, time-windowed request/failure buckets at three granularities,
// and the last-known status of every push kind. It also mirrors the same
// events to Prometheus so an external scrape target sees the same data.
package journal

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PushKind identifies which of the framework's push drivers produced an
// event, for per-kind status tracking and metric labeling.
type PushKind string

const (
	KindFull        PushKind = "full"
	KindIncremental PushKind = "incremental"
	KindGroup       PushKind = "group"
)

// PushStatus is the most recent terminal state of a push kind.
type PushStatus string

const (
	StatusIdle        PushStatus = "idle"
	StatusRunning     PushStatus = "running"
	StatusSuccess     PushStatus = "success"
	StatusInterrupted PushStatus = "interrupted"
	StatusFailed      PushStatus = "failed"
)

// window is one circular buffer of fixed-size time buckets.
type window struct {
	bucketSize time.Duration
	buckets    []bucket
	headStart  time.Time // start time of buckets[0]
}

type bucket struct {
	requests int64
	failures int64
	duration time.Duration
	maxDur   time.Duration
	bytes    int64
	seen     bool
}

func newWindow(bucketSize time.Duration, count int, now time.Time) *window {
	return &window{
		bucketSize: bucketSize,
		buckets:    make([]bucket, count),
		headStart:  now.Truncate(bucketSize),
	}
}

// advance rotates the window so the bucket for now is at index 0,
// resetting any buckets skipped over. If the whole window has elapsed
// since the last advance, all buckets are cleared in one pass rather than
// rotated one at a time.
func (w *window) advance(now time.Time) {
	elapsedBuckets := int(now.Sub(w.headStart) / w.bucketSize)
	if elapsedBuckets <= 0 {
		return
	}
	if elapsedBuckets >= len(w.buckets) {
		for i := range w.buckets {
			w.buckets[i] = bucket{}
		}
		w.headStart = now.Truncate(w.bucketSize)
		return
	}
	copy(w.buckets[elapsedBuckets:], w.buckets[:len(w.buckets)-elapsedBuckets])
	for i := 0; i < elapsedBuckets; i++ {
		w.buckets[i] = bucket{}
	}
	w.headStart = w.headStart.Add(time.Duration(elapsedBuckets) * w.bucketSize)
}

func (w *window) record(now time.Time, failed bool, dur time.Duration, bytes int64, appliance bool) {
	w.advance(now)
	idx := int(now.Sub(w.headStart) / w.bucketSize)
	if idx < 0 || idx >= len(w.buckets) {
		idx = 0
	}
	b := &w.buckets[idx]
	b.requests++
	if failed {
		b.failures++
	}
	b.duration += dur
	if dur > b.maxDur {
		b.maxDur = dur
	}
	b.bytes += bytes
	if appliance {
		b.seen = true
	}
}

// Snapshot is a read-only copy of a window's buckets, safe to hold and
// inspect without the journal's lock.
type Snapshot struct {
	BucketSize time.Duration
	Buckets    []BucketSnapshot
}

// BucketSnapshot is one time bucket's accumulated statistics.
type BucketSnapshot struct {
	Requests int64
	Failures int64
	Duration time.Duration
	MaxDur   time.Duration
	Bytes    int64
	Seen     bool
}

func (w *window) snapshot(now time.Time) Snapshot {
	w.advance(now)
	out := Snapshot{BucketSize: w.bucketSize, Buckets: make([]BucketSnapshot, len(w.buckets))}
	for i, b := range w.buckets {
		out.Buckets[i] = BucketSnapshot{
			Requests: b.requests,
			Failures: b.failures,
			Duration: b.duration,
			MaxDur:   b.maxDur,
			Bytes:    b.bytes,
			Seen:     b.seen,
		}
	}
	return out
}

// pushRecord tracks a push kind's last successful window and current
// status.
type pushRecord struct {
	status       PushStatus
	lastStart    time.Time
	lastEnd      time.Time
	hasLastStart bool
	hasLastEnd   bool
}

// Journal is the framework's operational statistics store: counters, the
// three time-windowed request buckets, and per-push-kind status. All
// mutation happens under mu; readers take a defensive copy before
// releasing it.
type Journal struct {
	mu sync.Mutex

	idsPushedTotal   int64
	idsPushedUnique  map[string]struct{}
	contentReqTotal  int64
	contentReqUnique map[string]struct{}
	applianceReq     int64
	otherReq         int64

	secondWindow *window // 1s x 60
	minuteWindow *window // 1min x 60
	halfHrWindow *window // 30min x 48

	pushes         map[PushKind]*pushRecord
	batchFailures  map[PushKind]int64

	metrics *metrics
}

type metrics struct {
	idsPushed      prometheus.Counter
	contentReqs    *prometheus.CounterVec
	pushStatus     *prometheus.GaugeVec
	requestLatency *prometheus.HistogramVec
	batchFailures  *prometheus.CounterVec
}

func newMetrics(namespace string, reg prometheus.Registerer) *metrics {
	if namespace == "" {
		namespace = "gsa_adaptor"
	}
	factory := promauto.With(reg)
	return &metrics{
		idsPushed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ids_pushed_total",
			Help:      "Total number of document identifiers pushed to the appliance.",
		}),
		contentReqs: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "content_requests_total",
			Help:      "Total number of content retrieval requests served.",
		}, []string{"source"}),
		pushStatus: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "push_status",
			Help:      "Most recent push status per kind (0=idle,1=running,2=success,3=interrupted,4=failed).",
		}, []string{"kind"}),
		requestLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "content_request_duration_seconds",
			Help:      "Duration of content retrieval requests.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"source"}),
		batchFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batch_failures_total",
			Help:      "Total number of feed batch failures, classified by push kind.",
		}, []string{"kind"}),
	}
}

// New builds an empty Journal whose metrics register into reg (pass a
// fresh *prometheus.Registry in tests to avoid collisions with other
// Journal instances; pass prometheus.DefaultRegisterer in production).
// namespace prefixes its Prometheus metric names; pass "" to use the
// default "gsa_adaptor".
func New(namespace string, reg prometheus.Registerer) *Journal {
	now := time.Now()
	return &Journal{
		idsPushedUnique:  make(map[string]struct{}),
		contentReqUnique: make(map[string]struct{}),
		secondWindow:     newWindow(time.Second, 60, now),
		minuteWindow:     newWindow(time.Minute, 60, now),
		halfHrWindow:     newWindow(30*time.Minute, 48, now),
		pushes: map[PushKind]*pushRecord{
			KindFull:        {status: StatusIdle},
			KindIncremental: {status: StatusIdle},
			KindGroup:       {status: StatusIdle},
		},
		batchFailures: make(map[PushKind]int64),
		metrics:       newMetrics(namespace, reg),
	}
}

// RecordBatchFailure classifies one failed feed batch by push kind
// (groupPushFailed/fullPushFailed/incrementalPushFailed in spec terms),
// independent of the kind's overall push status.
func (j *Journal) RecordBatchFailure(kind PushKind) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.batchFailures[kind]++
	j.metrics.batchFailures.WithLabelValues(string(kind)).Inc()
}

// RecordIdPushed records one pushed identifier, counted toward both the
// running total and the unique-identifier set.
func (j *Journal) RecordIdPushed(id string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.idsPushedTotal++
	j.idsPushedUnique[id] = struct{}{}
	j.metrics.idsPushed.Inc()
}

// RecordContentRequest records one content retrieval, classified by
// whether it came from the appliance itself (vs. a direct client) and
// windowed by dur/failed/bytes.
func (j *Journal) RecordContentRequest(id string, fromAppliance bool, failed bool, dur time.Duration, bytes int64) {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.contentReqTotal++
	j.contentReqUnique[id] = struct{}{}
	if fromAppliance {
		j.applianceReq++
	} else {
		j.otherReq++
	}

	now := time.Now()
	j.secondWindow.record(now, failed, dur, bytes, fromAppliance)
	j.minuteWindow.record(now, failed, dur, bytes, fromAppliance)
	j.halfHrWindow.record(now, failed, dur, bytes, fromAppliance)

	source := "other"
	if fromAppliance {
		source = "appliance"
	}
	j.metrics.contentReqs.WithLabelValues(source).Inc()
	j.metrics.requestLatency.WithLabelValues(source).Observe(dur.Seconds())
}

// RecordPushStarted marks kind as running and sets lastStart.
func (j *Journal) RecordPushStarted(kind PushKind) {
	j.mu.Lock()
	defer j.mu.Unlock()
	rec := j.pushes[kind]
	rec.status = StatusRunning
	rec.lastStart = time.Now()
	rec.hasLastStart = true
	j.setStatusMetric(kind, rec.status)
}

// RecordPushFinished marks kind's terminal status and sets lastEnd.
func (j *Journal) RecordPushFinished(kind PushKind, status PushStatus) {
	j.mu.Lock()
	defer j.mu.Unlock()
	rec := j.pushes[kind]
	rec.status = status
	rec.lastEnd = time.Now()
	rec.hasLastEnd = true
	j.setStatusMetric(kind, status)
}

func (j *Journal) setStatusMetric(kind PushKind, status PushStatus) {
	var v float64
	switch status {
	case StatusIdle:
		v = 0
	case StatusRunning:
		v = 1
	case StatusSuccess:
		v = 2
	case StatusInterrupted:
		v = 3
	case StatusFailed:
		v = 4
	}
	j.metrics.pushStatus.WithLabelValues(string(kind)).Set(v)
}

// Stats is a point-in-time snapshot of the journal's counters and push
// statuses, safe to hold after the call returns.
type Stats struct {
	IdsPushedTotal    int64
	IdsPushedUnique   int64
	ContentReqTotal   int64
	ContentReqUnique  int64
	ApplianceRequests int64
	OtherRequests     int64
	PushStatus        map[PushKind]PushStatus
	BatchFailures     map[PushKind]int64
	Second            Snapshot
	Minute            Snapshot
	HalfHour          Snapshot
}

// Snapshot takes a defensive copy of all journal state.
func (j *Journal) Snapshot() Stats {
	j.mu.Lock()
	defer j.mu.Unlock()

	now := time.Now()
	statuses := make(map[PushKind]PushStatus, len(j.pushes))
	for k, rec := range j.pushes {
		statuses[k] = rec.status
	}
	failures := make(map[PushKind]int64, len(j.batchFailures))
	for k, v := range j.batchFailures {
		failures[k] = v
	}

	return Stats{
		IdsPushedTotal:    j.idsPushedTotal,
		IdsPushedUnique:   int64(len(j.idsPushedUnique)),
		ContentReqTotal:   j.contentReqTotal,
		ContentReqUnique:  int64(len(j.contentReqUnique)),
		ApplianceRequests: j.applianceReq,
		OtherRequests:     j.otherReq,
		PushStatus:        statuses,
		BatchFailures:     failures,
		Second:            j.secondWindow.snapshot(now),
		Minute:            j.minuteWindow.snapshot(now),
		HalfHour:          j.halfHrWindow.snapshot(now),
	}
}
