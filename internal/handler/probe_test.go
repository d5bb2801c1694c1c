package handler

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veranemoloko/media-queue/internal/domain"
)

func TestHeadSizeProbe_ContentLength(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "4096")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	probe := NewHeadSizeProbe(server.Client(), newTestLogger())

	size, err := probe.Estimate(context.Background(), domain.Payload{URL: server.URL})
	require.NoError(t, err)
	assert.Equal(t, int64(4096), size)
}

func TestHeadSizeProbe_RangeFallback(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			// No Content-Length on HEAD.
			w.WriteHeader(http.StatusOK)
			return
		}
		w.Header().Set("Content-Range", "bytes 0-0/98765")
		w.WriteHeader(http.StatusPartialContent)
		w.Write([]byte{0})
	}))
	defer server.Close()

	probe := NewHeadSizeProbe(server.Client(), newTestLogger())

	size, err := probe.Estimate(context.Background(), domain.Payload{URL: server.URL})
	require.NoError(t, err)
	assert.Equal(t, int64(98765), size)
}

func TestHeadSizeProbe_UnknownSize(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	probe := NewHeadSizeProbe(server.Client(), newTestLogger())

	size, err := probe.Estimate(context.Background(), domain.Payload{URL: server.URL})
	require.NoError(t, err)
	assert.Equal(t, int64(0), size, "unknown size reports zero for the caller's fallback")
}

func TestHeadSizeProbe_CachesEstimates(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Length", "1000")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	probe := NewHeadSizeProbe(server.Client(), newTestLogger())
	payload := domain.Payload{URL: server.URL}

	for i := 0; i < 5; i++ {
		size, err := probe.Estimate(context.Background(), payload)
		require.NoError(t, err)
		assert.Equal(t, int64(1000), size)
	}
	assert.Equal(t, int32(1), hits.Load(), "repeated estimates for one URL must hit the cache")
}

func TestHeadSizeProbe_LiveWindowEstimate(t *testing.T) {
	probe := NewHeadSizeProbe(http.DefaultClient, newTestLogger())

	size, err := probe.Estimate(context.Background(), domain.Payload{URL: "http://example.com", Duration: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(10*assumedLiveBitrate), size)
}

func TestHeadSizeProbe_MetadataEstimate(t *testing.T) {
	probe := NewHeadSizeProbe(http.DefaultClient, newTestLogger())

	size, err := probe.EstimateForTask(context.Background(), domain.TaskTypeFetchMetadata, domain.Payload{URL: "http://example.com"})
	require.NoError(t, err)
	assert.Equal(t, int64(metadataEstimate), size)
}

func TestHeadSizeProbe_SlowOriginFailsFast(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Never answer; the probe client's own timeout has to cut this off.
		<-r.Context().Done()
	}))
	defer server.Close()

	probe := NewHeadSizeProbe(&http.Client{Timeout: 50 * time.Millisecond}, newTestLogger())

	start := time.Now()
	_, err := probe.Estimate(context.Background(), domain.Payload{URL: server.URL + "/v.mp4"})
	assert.Error(t, err)
	assert.Less(t, time.Since(start), 500*time.Millisecond,
		"a stalled origin must not hold the estimate beyond the probe timeout")
}

func TestHeadSizeProbe_ProbeError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	serverURL := server.URL
	server.Close() // connection refused from here on

	probe := NewHeadSizeProbe(http.DefaultClient, newTestLogger())

	_, err := probe.Estimate(context.Background(), domain.Payload{URL: fmt.Sprintf("%s/x", serverURL)})
	assert.Error(t, err)
}
