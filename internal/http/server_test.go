package http

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/registryd/internal/index"
)

type fakeIndexer struct {
	mu        sync.Mutex
	status    index.Status
	indexed   int
	indexErr  error
	started   []time.Duration
	stopped   int
	statusErr error
}

func (f *fakeIndexer) Index() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.indexErr != nil {
		return f.indexErr
	}
	f.indexed++
	return nil
}

func (f *fakeIndexer) StartAutoIndex(interval time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started = append(f.started, interval)
	return nil
}

func (f *fakeIndexer) StopAutoIndex() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped++
	return nil
}

func (f *fakeIndexer) Status(context.Context) (index.Status, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status, f.statusErr
}

func newTestServer(t *testing.T, indexers map[string]Indexer) *Server {
	t.Helper()
	s, err := NewServer(indexers, zap.NewNop(), nil)
	require.NoError(t, err)
	return s
}

func doRequest(s *Server, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)
	return rec
}

func TestNewServer_Validation(t *testing.T) {
	_, err := NewServer(nil, zap.NewNop(), nil)
	require.Error(t, err)

	_, err = NewServer(map[string]Indexer{"m": &fakeIndexer{}}, nil, nil)
	require.Error(t, err)
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, map[string]Indexer{"crates": &fakeIndexer{}})

	rec := doRequest(s, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ok"`)
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t, map[string]Indexer{"crates": &fakeIndexer{}})

	rec := doRequest(s, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestListMirrors(t *testing.T) {
	crates := &fakeIndexer{status: index.Status{
		Mirror:     "crates",
		RemoteURL:  "https://example.com/index.git",
		Checkpoint: index.Checkpoint{LastCommit: "h1"},
	}}
	s := newTestServer(t, map[string]Indexer{"crates": crates})

	rec := doRequest(s, http.MethodGet, "/api/v1/mirrors", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"crates"`)
	assert.Contains(t, rec.Body.String(), `"h1"`)
}

func TestListMirrors_StatusFailure(t *testing.T) {
	s := newTestServer(t, map[string]Indexer{
		"crates": &fakeIndexer{statusErr: errors.New("worker wedged")},
	})

	rec := doRequest(s, http.MethodGet, "/api/v1/mirrors", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestTriggerIndex(t *testing.T) {
	crates := &fakeIndexer{}
	s := newTestServer(t, map[string]Indexer{"crates": crates})

	rec := doRequest(s, http.MethodPost, "/api/v1/mirrors/crates/index", "")
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, 1, crates.indexed)
}

func TestTriggerIndex_UnknownMirror(t *testing.T) {
	s := newTestServer(t, map[string]Indexer{"crates": &fakeIndexer{}})

	rec := doRequest(s, http.MethodPost, "/api/v1/mirrors/npm/index", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTriggerIndex_QueueFull(t *testing.T) {
	s := newTestServer(t, map[string]Indexer{
		"crates": &fakeIndexer{indexErr: errors.New("mailbox full")},
	})

	rec := doRequest(s, http.MethodPost, "/api/v1/mirrors/crates/index", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestStartAutoIndex(t *testing.T) {
	crates := &fakeIndexer{}
	s := newTestServer(t, map[string]Indexer{"crates": crates})

	rec := doRequest(s, http.MethodPut, "/api/v1/mirrors/crates/autoindex", `{"interval":"90s"}`)
	assert.Equal(t, http.StatusAccepted, rec.Code)
	require.Len(t, crates.started, 1)
	assert.Equal(t, 90*time.Second, crates.started[0])
}

func TestStartAutoIndex_BadInterval(t *testing.T) {
	s := newTestServer(t, map[string]Indexer{"crates": &fakeIndexer{}})

	rec := doRequest(s, http.MethodPut, "/api/v1/mirrors/crates/autoindex", `{"interval":"soon"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStopAutoIndex(t *testing.T) {
	crates := &fakeIndexer{}
	s := newTestServer(t, map[string]Indexer{"crates": crates})

	rec := doRequest(s, http.MethodDelete, "/api/v1/mirrors/crates/autoindex", "")
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, 1, crates.stopped)
}
