package storage

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docsync/internal/config"
)

func TestNewMinIO_Validation(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.MinIOConfig
		wantErr string
	}{
		{name: "missing endpoint", cfg: config.MinIOConfig{}, wantErr: "endpoint is required"},
		{name: "missing credentials", cfg: config.MinIOConfig{Endpoint: "localhost:9000"}, wantErr: "credentials are required"},
		{
			name:    "missing bucket",
			cfg:     config.MinIOConfig{Endpoint: "localhost:9000", AccessKey: "a", SecretKey: "b"},
			wantErr: "bucket is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := NewMinIO(context.Background(), tt.cfg)
			assert.Nil(t, s)
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestDeletedKey(t *testing.T) {
	at := time.Unix(0, 1700000000123456789)
	assert.Equal(t, "deleted/doc-1/1700000000123456789.json", DeletedKey("doc-1", at))
}

// fakeS3 answers the handful of S3 calls the archive makes.
type fakeS3 struct {
	mu           sync.Mutex
	bucketExists bool
	requests     []string
	metadata     http.Header
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	path := strings.Trim(r.URL.Path, "/")
	f.requests = append(f.requests, r.Method+" "+path)

	switch {
	case r.Method == http.MethodHead && path == "archive":
		if !f.bucketExists {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	case r.Method == http.MethodPut && path == "archive":
		f.bucketExists = true
		w.WriteHeader(http.StatusOK)
	case r.Method == http.MethodPut && strings.HasPrefix(path, "archive/"):
		f.metadata = r.Header.Clone()
		w.Header().Set("ETag", `"0123abcd"`)
		w.WriteHeader(http.StatusOK)
	default:
		w.WriteHeader(http.StatusNotImplemented)
	}
}

func (f *fakeS3) seen() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.requests...)
}

func newFakeArchive(t *testing.T, f *fakeS3) *MinIOArchive {
	t.Helper()
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)

	a, err := NewMinIO(context.Background(), config.MinIOConfig{
		Endpoint:  srv.URL,
		AccessKey: "access",
		SecretKey: "secret",
		Bucket:    "archive",
		Region:    "us-east-1",
	})
	require.NoError(t, err)
	return a
}

func TestNewMinIO_CreatesMissingBucket(t *testing.T) {
	f := &fakeS3{}
	newFakeArchive(t, f)

	assert.Equal(t, []string{"HEAD archive", "PUT archive"}, f.seen())
}

func TestMinIOArchive_Put(t *testing.T) {
	f := &fakeS3{bucketExists: true}
	a := newFakeArchive(t, f)

	body := `{"id":"doc-1","title":"Notes"}`
	key := DeletedKey("doc-1", time.Unix(1, 0))
	info, err := a.Put(context.Background(), key, strings.NewReader(body), PutObjectOptions{
		Size:        int64(len(body)),
		ContentType: "application/json",
		Metadata:    map[string]string{"document-id": "doc-1"},
	})
	require.NoError(t, err)

	assert.Equal(t, key, info.Key)
	assert.Equal(t, "0123abcd", info.ETag)
	assert.Equal(t, "application/json", info.ContentType)
	assert.False(t, info.LastModified.IsZero())
	assert.Contains(t, f.seen(), "PUT archive/"+key)

	f.mu.Lock()
	defer f.mu.Unlock()
	assert.Equal(t, "doc-1", f.metadata.Get("X-Amz-Meta-Document-Id"))
	assert.Equal(t, "application/json", f.metadata.Get("Content-Type"))
}
