package handler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/veranemoloko/media-queue/internal/domain"
)

// HeadSizeProbe estimates payload size from a HEAD request's Content-Length,
// falling back to a one-byte ranged GET for origins that omit it on HEAD.
// Estimates are memoized per URL for a short period so repeated scheduler
// passes over the same waiting task do not re-probe the origin.
//
// fetch_metadata tasks always estimate a small fixed size: their artifact is
// an info document, not the media. fetch_live tasks estimate from the
// window's byte budget. Unknown sizes report (0, nil); the scheduler applies
// the configured fallback.
type HeadSizeProbe struct {
	client *http.Client
	cache  *gocache.Cache
	logger *slog.Logger
}

const metadataEstimate = 1024 * 1024 // info documents are tiny; 1MiB is generous

// NewHeadSizeProbe creates a HeadSizeProbe with a 5 minute estimate cache.
func NewHeadSizeProbe(client *http.Client, logger *slog.Logger) *HeadSizeProbe {
	return &HeadSizeProbe{
		client: client,
		cache:  gocache.New(5*time.Minute, 10*time.Minute),
		logger: logger,
	}
}

// Estimate returns the best-effort byte estimate for the payload.
func (p *HeadSizeProbe) Estimate(ctx context.Context, payload domain.Payload) (int64, error) {
	switch {
	case payload.Duration > 0:
		return int64(payload.Duration) * assumedLiveBitrate, nil
	case payload.URL == "":
		return 0, fmt.Errorf("payload has no URL")
	}

	if cached, found := p.cache.Get(payload.URL); found {
		return cached.(int64), nil
	}

	size, err := p.probe(ctx, payload.URL)
	if err != nil {
		p.logger.Debug("size probe failed", "url", payload.URL, "error", err)
		return 0, err
	}

	p.cache.Set(payload.URL, size, gocache.DefaultExpiration)
	return size, nil
}

// EstimateForTask folds the task type into the estimate.
func (p *HeadSizeProbe) EstimateForTask(ctx context.Context, taskType domain.TaskType, payload domain.Payload) (int64, error) {
	if taskType == domain.TaskTypeFetchMetadata {
		return metadataEstimate, nil
	}
	return p.Estimate(ctx, payload)
}

func (p *HeadSizeProbe) probe(ctx context.Context, url string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", browserUserAgent)

	resp, err := p.client.Do(req)
	if err == nil {
		resp.Body.Close()
		if resp.StatusCode >= 200 && resp.StatusCode < 300 && resp.ContentLength > 0 {
			return resp.ContentLength, nil
		}
	}

	return p.probeRange(ctx, url)
}

// probeRange asks for the first byte and reads the total from Content-Range.
func (p *HeadSizeProbe) probeRange(ctx context.Context, url string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", browserUserAgent)
	req.Header.Set("Range", "bytes=0-0")

	resp, err := p.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("ranged probe: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusPartialContent {
		// Origin ignored the range; size stays unknown.
		return 0, nil
	}

	// Content-Range: bytes 0-0/12345
	contentRange := resp.Header.Get("Content-Range")
	idx := strings.LastIndex(contentRange, "/")
	if idx < 0 {
		return 0, nil
	}
	total, err := strconv.ParseInt(contentRange[idx+1:], 10, 64)
	if err != nil {
		return 0, nil
	}
	return total, nil
}
