package handler

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path"
	"path/filepath"

	"github.com/veranemoloko/media-queue/internal/domain"
)

const browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) " +
	"AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

// FetchMediaHandler downloads the media file at the payload URL into the
// task's working directory.
type FetchMediaHandler struct {
	client *http.Client
	logger *slog.Logger
}

// NewFetchMediaHandler creates a FetchMediaHandler using the provided client.
func NewFetchMediaHandler(client *http.Client, logger *slog.Logger) *FetchMediaHandler {
	return &FetchMediaHandler{client: client, logger: logger}
}

// Execute streams the URL into workDir and returns the local file path.
func (h *FetchMediaHandler) Execute(ctx context.Context, payload domain.Payload, taskID, workDir string) (string, error) {
	resp, err := fetch(ctx, h.client, payload.URL)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	name := outputName(payload, resp, false)
	localPath := filepath.Join(workDir, name)

	file, err := os.Create(localPath)
	if err != nil {
		return "", fmt.Errorf("create file: %w", err)
	}
	defer file.Close()

	written, err := copyWithContext(ctx, file, resp.Body)
	if err != nil {
		os.Remove(localPath)
		return "", fmt.Errorf("copy data: %w", err)
	}

	h.logger.Debug("media fetched",
		"task_id", taskID,
		"url", payload.URL,
		"bytes", written,
		"file", name,
	)
	return localPath, nil
}

func fetch(ctx context.Context, client *http.Client, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", browserUserAgent)
	req.Header.Set("Accept", "*/*")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		return nil, fmt.Errorf("bad status: %s", resp.Status)
	}
	return resp, nil
}

// outputName picks the artifact file name: video.<ext> or audio.<ext>, with
// the live_ prefix for live-window captures. The extension comes from the URL
// path, falling back to the response content type.
func outputName(payload domain.Payload, resp *http.Response, live bool) string {
	base := "video"
	if payload.Kind == domain.MediaKindAudio {
		base = "audio"
	}
	if live {
		base = "live_" + base
	}

	ext := path.Ext(path.Base(resp.Request.URL.Path))
	if ext == "" {
		if exts, err := mime.ExtensionsByType(resp.Header.Get("Content-Type")); err == nil && len(exts) > 0 {
			ext = exts[0]
		}
	}
	if ext == "" {
		if payload.Kind == domain.MediaKindAudio {
			ext = ".m4a"
		} else {
			ext = ".mp4"
		}
	}
	return base + ext
}

// copyWithContext copies src to dst while honoring context cancellation
// between read chunks.
func copyWithContext(ctx context.Context, dst io.Writer, src io.Reader) (int64, error) {
	buf := make([]byte, 32*1024)
	var total int64

	for {
		select {
		case <-ctx.Done():
			return total, ctx.Err()
		default:
			nr, err := src.Read(buf)
			if nr > 0 {
				nw, werr := dst.Write(buf[0:nr])
				if nw > 0 {
					total += int64(nw)
				}
				if werr != nil {
					return total, werr
				}
				if nr != nw {
					return total, io.ErrShortWrite
				}
			}
			if err != nil {
				if err == io.EOF {
					return total, nil
				}
				return total, err
			}
		}
	}
}
