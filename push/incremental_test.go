package push

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/googlegsa/library/adaptor"
	"github.com/googlegsa/library/docid"
	"github.com/googlegsa/library/feed"
	"github.com/googlegsa/library/journal"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeIncrementalAdaptor struct {
	fakeAdaptor
	onTick func(ctx context.Context, pusher adaptor.IdPusher) error
}

func (f *fakeIncrementalAdaptor) GetModifiedDocIds(ctx context.Context, pusher adaptor.IdPusher) error {
	return f.onTick(ctx, pusher)
}

func newTestIncrementalDriver(t *testing.T, handler http.HandlerFunc, period time.Duration) *IncrementalDriver {
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	transport := feed.NewTransport(srv.URL, "datasource", 5*time.Second)
	j := journal.New("test", prometheus.NewRegistry())
	sender := &Sender{
		Datasource:   "mysource",
		BaseURL:      "https://example.com/docs/",
		MaxBatchSize: 10,
		Transport:    transport,
		Policy:       feed.NoRetryPolicy(),
		Journal:      j,
		Archiver:     feed.NopArchiver{},
	}
	return NewIncrementalDriver(sender, j, period)
}

func TestIncrementalDriverSkipsOverlappingTick(t *testing.T) {
	driver := newTestIncrementalDriver(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("Success"))
	}, 10*time.Millisecond)

	var running int32
	var overlapObserved int32
	release := make(chan struct{})

	a := &fakeIncrementalAdaptor{onTick: func(ctx context.Context, pusher adaptor.IdPusher) error {
		if !atomic.CompareAndSwapInt32(&running, 0, 1) {
			atomic.StoreInt32(&overlapObserved, 1)
			return nil
		}
		<-release
		atomic.StoreInt32(&running, 0)
		return nil
	}}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go driver.Run(ctx, a)

	time.Sleep(50 * time.Millisecond)
	close(release)
	time.Sleep(30 * time.Millisecond)

	assert.Equal(t, int32(0), atomic.LoadInt32(&overlapObserved), "no second tick should have entered the callback concurrently")
}

func TestIncrementalDriverRecordsSuccess(t *testing.T) {
	driver := newTestIncrementalDriver(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("Success"))
	}, 5*time.Millisecond)

	a := &fakeIncrementalAdaptor{onTick: func(ctx context.Context, pusher adaptor.IdPusher) error {
		return pusher.PushDocId(ctx, docid.MustNew("changed"))
	}}

	ctx, cancel := context.WithCancel(context.Background())
	go driver.Run(ctx, a)

	require.Eventually(t, func() bool {
		stats := driver.Journal.Snapshot()
		return stats.IdsPushedTotal > 0
	}, time.Second, 5*time.Millisecond)
	cancel()
}

func TestCronDriverFiresOnMatchingScheduleOnly(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Write([]byte("Success"))
	}))
	t.Cleanup(srv.Close)

	transport := feed.NewTransport(srv.URL, "datasource", 5*time.Second)
	j := journal.New("test", prometheus.NewRegistry())
	sender := &Sender{
		Datasource:   "mysource",
		BaseURL:      "https://example.com/docs/",
		MaxBatchSize: 10,
		Transport:    transport,
		Policy:       feed.NoRetryPolicy(),
		Journal:      j,
		Archiver:     feed.NopArchiver{},
	}
	full := NewFullPushDriver(sender, j)

	// Midnight in January on the 1st or on a Sunday: neither occurs during
	// this test's short run window.
	neverMatches, err := ParseCronSchedule("0 0 1 1 0")
	require.NoError(t, err)

	driver := NewCronDriver(full, neverMatches)

	a := &fakeAdaptor{enumerate: func(ctx context.Context, pusher adaptor.IdPusher) error {
		return pusher.PushDocId(ctx, docid.MustNew("x"))
	}}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go driver.Run(ctx, a)

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
}

func TestCronDriverSetScheduleReplacesActivePattern(t *testing.T) {
	full := &FullPushDriver{tracker: NewRunTracker()}
	initial, err := ParseCronSchedule("* * * * *")
	require.NoError(t, err)
	driver := NewCronDriver(full, initial)

	assert.NotNil(t, driver.schedule())

	replacement, err := ParseCronSchedule("0 0 1 1 0")
	require.NoError(t, err)
	driver.SetSchedule(replacement)

	got := driver.schedule()
	assert.Equal(t, replacement.String(), got.String())
}
