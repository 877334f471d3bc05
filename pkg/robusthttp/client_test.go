package robusthttp

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRetryPolicy(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	fixtures := []struct {
		status int
		retry  bool
	}{
		{status: http.StatusOK, retry: false},
		{status: http.StatusNotFound, retry: false},
		{status: http.StatusTooManyRequests, retry: false},
		{status: http.StatusNotImplemented, retry: false},
		{status: http.StatusBadGateway, retry: true},
		{status: http.StatusServiceUnavailable, retry: true},
	}
	for _, f := range fixtures {
		retry, _ := RetryPolicy(ctx, &http.Response{StatusCode: f.status}, nil)
		assert.Equal(f.retry, retry, "status %d", f.status)
	}

	retry, _ := RetryPolicy(ctx, nil, errors.New("connection reset"))
	assert.True(retry)
}

func TestClientRetriesServerErrors(t *testing.T) {
	assert := assert.New(t)

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient(WithRetryWait(time.Millisecond, 5*time.Millisecond), WithTransport(http.DefaultTransport))
	resp, err := c.Get(srv.URL)
	assert.NoError(err)
	defer resp.Body.Close()
	assert.Equal(http.StatusOK, resp.StatusCode)
	assert.Equal(int32(3), calls.Load())

	// rate limit responses come straight back
	calls.Store(0)
	srv429 := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv429.Close()
	resp, err = c.Get(srv429.URL)
	assert.NoError(err)
	defer resp.Body.Close()
	assert.Equal(http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(int32(1), calls.Load())
}
