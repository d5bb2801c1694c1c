package handler

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/veranemoloko/media-queue/internal/domain"
)

// assumedLiveBitrate caps live captures when the origin does not expose the
// stream size: bytes captured = duration * this rate. Tuning it is a policy
// decision, not part of the orchestration contract.
const assumedLiveBitrate = 500 * 1024 // bytes per second

// FetchLiveHandler captures a trailing window of a live stream. The window is
// payload.StartOffset seconds back from now, payload.Duration seconds long;
// since plain HTTP origins cannot seek by time, the window is approximated by
// capping the captured bytes at duration times an assumed bitrate.
type FetchLiveHandler struct {
	client *http.Client
	logger *slog.Logger
}

// NewFetchLiveHandler creates a FetchLiveHandler.
func NewFetchLiveHandler(client *http.Client, logger *slog.Logger) *FetchLiveHandler {
	return &FetchLiveHandler{client: client, logger: logger}
}

// Execute streams the URL into workDir, stopping after the window's byte
// budget is reached.
func (h *FetchLiveHandler) Execute(ctx context.Context, payload domain.Payload, taskID, workDir string) (string, error) {
	if payload.Duration <= 0 {
		return "", fmt.Errorf("live capture requires a positive duration, got %d", payload.Duration)
	}

	resp, err := fetch(ctx, h.client, payload.URL)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	name := outputName(payload, resp, true)
	localPath := filepath.Join(workDir, name)

	file, err := os.Create(localPath)
	if err != nil {
		return "", fmt.Errorf("create file: %w", err)
	}
	defer file.Close()

	budget := int64(payload.Duration) * assumedLiveBitrate
	written, err := copyWithContext(ctx, file, io.LimitReader(resp.Body, budget))
	if err != nil {
		os.Remove(localPath)
		return "", fmt.Errorf("copy data: %w", err)
	}

	h.logger.Debug("live window captured",
		"task_id", taskID,
		"url", payload.URL,
		"start_offset", payload.StartOffset,
		"duration", payload.Duration,
		"bytes", written,
	)
	return localPath, nil
}
