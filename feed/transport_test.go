package feed

import (
	"compress/gzip"
	"context"
	"io"
	"mime"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendPostsMultipartAndClassifiesSuccess(t *testing.T) {
	var gotDatasource, gotFeedtype string
	var gotData []byte

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mediaType, params, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
		require.NoError(t, err)
		require.Equal(t, "multipart/form-data", mediaType)

		require.NoError(t, r.ParseMultipartForm(10<<20))
		gotDatasource = r.FormValue("datasource")
		gotFeedtype = r.FormValue("feedtype")

		file, _, err := r.FormFile("data")
		require.NoError(t, err)
		defer file.Close()

		if r.Header.Get("Content-Encoding") == "gzip" {
			gz, err := gzip.NewReader(file)
			require.NoError(t, err)
			gotData, err = io.ReadAll(gz)
			require.NoError(t, err)
		} else {
			gotData, err = io.ReadAll(file)
			require.NoError(t, err)
		}
		_ = params

		w.Write([]byte("Success"))
	}))
	defer srv.Close()

	tr := NewTransport(srv.URL, "datasource", 5*time.Second)
	err := tr.Send(context.Background(), "mysource", TypeMetadataAndURL, []byte("<gsafeed/>"))
	require.NoError(t, err)

	assert.Equal(t, "mysource", gotDatasource)
	assert.Equal(t, "metadata-and-url", gotFeedtype)
	assert.Equal(t, "<gsafeed/>", string(gotData))
}

func TestSendClassifiesSuccessCaseInsensitively(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("SUCCESS"))
	}))
	defer srv.Close()

	tr := NewTransport(srv.URL, "datasource", 5*time.Second)
	err := tr.Send(context.Background(), "mysource", TypeFull, []byte("data"))
	assert.NoError(t, err)
}

func TestSendClassifiesUnauthorizedAsFatal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("Error - Unauthorized Request"))
	}))
	defer srv.Close()

	tr := NewTransport(srv.URL, "datasource", 5*time.Second)
	err := tr.Send(context.Background(), "mysource", TypeFull, []byte("data"))
	require.Error(t, err)

	var terr *TransportError
	require.ErrorAs(t, err, &terr)
	assert.True(t, terr.Fatal())
}

func TestSendClassifiesGenericFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("Error - Something else"))
	}))
	defer srv.Close()

	tr := NewTransport(srv.URL, "datasource", 5*time.Second)
	err := tr.Send(context.Background(), "mysource", TypeIncremental, []byte("data"))
	require.Error(t, err)

	var terr *TransportError
	require.ErrorAs(t, err, &terr)
	assert.False(t, terr.Fatal())
}

func TestSendRejectsInvalidSourceName(t *testing.T) {
	tr := NewTransport("http://unused.invalid", "datasource", time.Second)
	err := tr.Send(context.Background(), "bad name!", TypeFull, []byte("data"))
	assert.Error(t, err)
}
