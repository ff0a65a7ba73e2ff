package store

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockperf/internal/credentials"
)

// fakeS3 answers path-style HEAD and DELETE requests for a set of keys.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string]bool
	deletes []string
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	key := strings.TrimPrefix(r.URL.Path, "/")
	switch r.Method {
	case http.MethodHead:
		if f.objects[key] {
			w.Header().Set("Content-Length", "0")
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	case http.MethodDelete:
		f.deletes = append(f.deletes, key)
		delete(f.objects, key)
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusNotImplemented)
	}
}

func newFakeS3Store(t *testing.T, fake *fakeS3) *S3Store {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	s, err := NewS3Store(context.Background(), S3Options{
		Bucket:   "stock-data",
		Prefix:   "staging",
		Region:   "ap-northeast-1",
		Endpoint: srv.URL,
	}, credentials.ObjectStore{AccessKeyID: "AKIATEST", SecretAccessKey: "secret"})
	require.NoError(t, err)
	return s
}

func TestS3StoreURI(t *testing.T) {
	s := &S3Store{bucket: "stock-data", prefix: "staging"}
	assert.Equal(t, "s3://stock-data/staging/combined.parquet", s.URI("combined.parquet"))

	s = &S3Store{bucket: "stock-data"}
	assert.Equal(t, "s3://stock-data/combined.parquet", s.URI("combined.parquet"))
}

func TestS3StoreExistsAndDelete(t *testing.T) {
	fake := &fakeS3{objects: map[string]bool{"stock-data/staging/combined.parquet": true}}
	s := newFakeS3Store(t, fake)
	ctx := context.Background()

	ok, err := s.Exists(ctx, "combined.parquet")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, s.Delete(ctx, "combined.parquet"))
	assert.Equal(t, []string{"stock-data/staging/combined.parquet"}, fake.deletes)

	ok, err = s.Exists(ctx, "combined.parquet")
	require.NoError(t, err)
	assert.False(t, ok)
}
