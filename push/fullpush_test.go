package push

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
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

// fakeAdaptor satisfies adaptor.Adaptor, driving a caller-supplied
// enumeration function so each test can control what Run sees.
type fakeAdaptor struct {
	enumerate func(ctx context.Context, pusher adaptor.IdPusher) error
}

func (f *fakeAdaptor) GetDocIds(ctx context.Context, pusher adaptor.IdPusher) error {
	return f.enumerate(ctx, pusher)
}

func (f *fakeAdaptor) GetDocContent(ctx context.Context, req *adaptor.Request, resp adaptor.Response) error {
	return nil
}

func (f *fakeAdaptor) IsUserAuthorized(ctx context.Context, identity string, ids []docid.DocId) (map[docid.DocId]adaptor.AuthzStatus, error) {
	return nil, nil
}

func newTestFullPushDriver(t *testing.T, handler http.HandlerFunc) *FullPushDriver {
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	transport := feed.NewTransport(srv.URL, "datasource", 5*time.Second)
	j := journal.New("test", prometheus.NewRegistry())
	sender := &Sender{
		Datasource:   "mysource",
		BaseURL:      "https://example.com/docs/",
		MaxBatchSize: 5,
		Transport:    transport,
		Policy:       feed.NoRetryPolicy(),
		Journal:      j,
		Archiver:     feed.NopArchiver{},
	}
	return NewFullPushDriver(sender, j)
}

func TestFullPushDriverSuccessRecordsJournalAndResetsToIdle(t *testing.T) {
	driver := newTestFullPushDriver(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("Success"))
	})

	a := &fakeAdaptor{enumerate: func(ctx context.Context, pusher adaptor.IdPusher) error {
		for _, id := range []string{"a", "b", "c"} {
			if err := pusher.PushDocId(ctx, docid.MustNew(id)); err != nil {
				return err
			}
		}
		return nil
	}}

	err := driver.Run(context.Background(), a)
	require.NoError(t, err)
	assert.Equal(t, StateIdle, driver.State())

	stats := driver.Journal.Snapshot()
	assert.Equal(t, journal.StatusSuccess, stats.PushStatus[journal.KindFull])
	assert.Equal(t, int64(3), stats.IdsPushedTotal)
}

func TestFullPushDriverRejectsConcurrentRun(t *testing.T) {
	driver := newTestFullPushDriver(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("Success"))
	})
	require.NoError(t, driver.tracker.Start())

	a := &fakeAdaptor{enumerate: func(ctx context.Context, pusher adaptor.IdPusher) error {
		return nil
	}}
	err := driver.Run(context.Background(), a)
	assert.Error(t, err)
}

func TestFullPushDriverFailureWrapsFirstFailedMarker(t *testing.T) {
	driver := newTestFullPushDriver(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("Error - Unauthorized Request"))
	})

	a := &fakeAdaptor{enumerate: func(ctx context.Context, pusher adaptor.IdPusher) error {
		return pusher.PushDocId(ctx, docid.MustNew("bad-doc"))
	}}

	err := driver.Run(context.Background(), a)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad-doc")

	stats := driver.Journal.Snapshot()
	assert.Equal(t, journal.StatusFailed, stats.PushStatus[journal.KindFull])
}

func TestFullPushDriverCancellationRecordsInterrupted(t *testing.T) {
	driver := newTestFullPushDriver(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("Success"))
	})

	ctx, cancel := context.WithCancel(context.Background())
	a := &fakeAdaptor{enumerate: func(ctx context.Context, pusher adaptor.IdPusher) error {
		cancel()
		return context.Canceled
	}}

	err := driver.Run(ctx, a)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))

	stats := driver.Journal.Snapshot()
	assert.Equal(t, journal.StatusInterrupted, stats.PushStatus[journal.KindFull])
}
