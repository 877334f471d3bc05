package metrics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/stretchr/testify/assert"
)

var testCounter = promauto.NewCounter(prometheus.CounterOpts{
	Name: "warden_metrics_test_total",
	Help: "Counter registered only by the metrics package tests",
})

func TestHandler(t *testing.T) {
	assert := assert.New(t)

	testCounter.Inc()
	srv := httptest.NewServer(Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/ping")
	assert.NoError(err)
	assert.Equal(http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(http.StatusOK, rec.Code)
	assert.Contains(rec.Body.String(), "warden_metrics_test_total 1")

	rec = httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/version", nil))
	assert.Equal(http.StatusOK, rec.Code)
	assert.NotEmpty(rec.Body.String())
}

func TestRunServerDisabled(t *testing.T) {
	assert := assert.New(t)
	assert.NoError(RunServer(context.Background(), "", nil))
}

func TestRunServerShutdown(t *testing.T) {
	assert := assert.New(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- RunServer(ctx, "127.0.0.1:0", nil)
	}()
	cancel()
	assert.NoError(<-done)
}
