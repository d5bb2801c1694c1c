package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/veranemoloko/media-queue/internal/domain"
)

// FetchMetadataHandler captures information about a URL without downloading
// the media itself. The result is an info.json artifact.
type FetchMetadataHandler struct {
	client *http.Client
	logger *slog.Logger
}

// NewFetchMetadataHandler creates a FetchMetadataHandler.
func NewFetchMetadataHandler(client *http.Client, logger *slog.Logger) *FetchMetadataHandler {
	return &FetchMetadataHandler{client: client, logger: logger}
}

type mediaInfo struct {
	URL           string    `json:"url"`
	ResolvedURL   string    `json:"resolved_url"`
	ContentType   string    `json:"content_type,omitempty"`
	ContentLength int64     `json:"content_length,omitempty"`
	LastModified  string    `json:"last_modified,omitempty"`
	ETag          string    `json:"etag,omitempty"`
	AcceptRanges  string    `json:"accept_ranges,omitempty"`
	FetchedAt     time.Time `json:"fetched_at"`
}

// Execute issues a HEAD request (falling back to a body-less GET for servers
// that reject HEAD) and writes the captured metadata as info.json.
func (h *FetchMetadataHandler) Execute(ctx context.Context, payload domain.Payload, taskID, workDir string) (string, error) {
	resp, err := h.head(ctx, payload.URL)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	info := mediaInfo{
		URL:          payload.URL,
		ResolvedURL:  resp.Request.URL.String(),
		ContentType:  resp.Header.Get("Content-Type"),
		LastModified: resp.Header.Get("Last-Modified"),
		ETag:         resp.Header.Get("ETag"),
		AcceptRanges: resp.Header.Get("Accept-Ranges"),
		FetchedAt:    time.Now().UTC(),
	}
	if cl := resp.Header.Get("Content-Length"); cl != "" {
		if n, err := strconv.ParseInt(cl, 10, 64); err == nil {
			info.ContentLength = n
		}
	}

	data, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal info: %w", err)
	}

	localPath := filepath.Join(workDir, "info.json")
	if err := os.WriteFile(localPath, data, 0o644); err != nil {
		return "", fmt.Errorf("write info file: %w", err)
	}

	h.logger.Debug("metadata fetched",
		"task_id", taskID,
		"url", payload.URL,
		"content_type", info.ContentType,
		"content_length", info.ContentLength,
	)
	return localPath, nil
}

func (h *FetchMetadataHandler) head(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", browserUserAgent)

	resp, err := h.client.Do(req)
	if err == nil && resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}
	if err == nil {
		resp.Body.Close()
	}

	// Some origins refuse HEAD; retry once as GET and discard the body.
	return fetch(ctx, h.client, url)
}
