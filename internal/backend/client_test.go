package backend

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-insights-pipeline/internal/model"
)

func newTestClient(t *testing.T, h http.HandlerFunc, opts Options) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	opts.BaseURL = srv.URL
	c, err := NewClient(opts)
	require.NoError(t, err)
	return c
}

func TestClient_ListPostsFiltersAndDecodes(t *testing.T) {
	var gotPath, gotAuth, gotQuery string
	var gotBody map[string]interface{}
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		gotQuery = r.URL.RawQuery
		b, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(b, &gotBody)
		_, _ = w.Write([]byte(`{"records":[{"id":"a","n":1}],"_metadata":{"total_count":7,"has_next":true}}`))
	}, Options{Token: "secret", Routes: map[string]string{"widgets": "/v1/widgets/"}})

	res, err := c.List(context.Background(), "widgets", model.Filters{"page": 0, "page_size": 50}, url.Values{"there": {"1"}})
	require.NoError(t, err)

	assert.Equal(t, "/v1/widgets/list", gotPath)
	assert.Equal(t, "Bearer secret", gotAuth)
	assert.Equal(t, "there=1", gotQuery)
	assert.Equal(t, float64(50), gotBody["page_size"])
	require.Len(t, res.Records, 1)
	assert.Equal(t, "a", res.Records[0]["id"])
	assert.Equal(t, 7, res.Metadata.TotalCount)
	assert.True(t, res.Metadata.More())
}

func TestClient_GetUsesResourcePath(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/dashboards/42", r.URL.Path)
		_, _ = w.Write([]byte(`{"id":"42","name":"Ops"}`))
	}, Options{})

	rec, err := c.Get(context.Background(), "dashboards", "42", nil)
	require.NoError(t, err)
	assert.Equal(t, "Ops", rec["name"])
}

func TestClient_ErrorStatusBecomesAPIError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"message":"nope"}`))
	}, Options{})

	_, err := c.List(context.Background(), "tags", nil, nil)
	require.Error(t, err)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusForbidden, apiErr.StatusCode)
	assert.Equal(t, "nope", apiErr.Message)
	assert.Equal(t, http.StatusForbidden, StatusCode(err))
}

func TestClient_RetriesServerErrors(t *testing.T) {
	var hits int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"records":[]}`))
	}, Options{Retry: model.RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}})

	_, err := c.List(context.Background(), "tags", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&hits))
}

func TestClient_DoesNotRetryClientErrors(t *testing.T) {
	var hits int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusBadRequest)
	}, Options{Retry: model.RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond}})

	_, err := c.List(context.Background(), "tags", nil, nil)
	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestNewClient_RejectsEmptyURL(t *testing.T) {
	_, err := NewClient(Options{})
	assert.Error(t, err)
}

func TestRetryPolicy_DelayBackoffCapped(t *testing.T) {
	p := NewRetryPolicy(model.RetryConfig{MaxAttempts: 5, InitialDelay: 100 * time.Millisecond, MaxDelay: 300 * time.Millisecond, BackoffMultiplier: 2})
	assert.Equal(t, 100*time.Millisecond, p.Delay(1))
	assert.Equal(t, 200*time.Millisecond, p.Delay(2))
	assert.Equal(t, 300*time.Millisecond, p.Delay(3))
}

func TestRetryable(t *testing.T) {
	assert.True(t, Retryable(errors.New("connection reset")))
	assert.True(t, Retryable(&APIError{StatusCode: 503}))
	assert.True(t, Retryable(&APIError{StatusCode: 429}))
	assert.False(t, Retryable(&APIError{StatusCode: 404}))
	assert.False(t, Retryable(&DecodeError{Err: errors.New("bad json")}))
	assert.False(t, Retryable(context.Canceled))
	assert.False(t, Retryable(nil))
}

func TestRetryPolicy_StopsOnContextCancel(t *testing.T) {
	p := NewRetryPolicy(model.RetryConfig{MaxAttempts: 5, InitialDelay: time.Hour})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := p.Do(ctx, func() error {
		calls++
		return errors.New("boom")
	})
	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}
