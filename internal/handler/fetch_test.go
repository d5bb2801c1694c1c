package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veranemoloko/media-queue/internal/domain"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestFetchMediaHandler_Execute(t *testing.T) {
	wantContent := "fake media bytes"
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := io.WriteString(w, wantContent); err != nil {
			t.Fatalf("failed to write response: %v", err)
		}
	}))
	defer server.Close()

	h := NewFetchMediaHandler(server.Client(), newTestLogger())
	dir := t.TempDir()

	payload := domain.Payload{URL: server.URL + "/clip.mp4", Kind: domain.MediaKindVideo}
	localPath, err := h.Execute(context.Background(), payload, "task1", dir)
	require.NoError(t, err)

	assert.True(t, strings.HasSuffix(localPath, "video.mp4"), "got %s", localPath)
	data, err := os.ReadFile(localPath)
	require.NoError(t, err)
	assert.Equal(t, wantContent, string(data))
}

func TestFetchMediaHandler_BadStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	h := NewFetchMediaHandler(server.Client(), newTestLogger())

	_, err := h.Execute(context.Background(), domain.Payload{URL: server.URL}, "task1", t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad status")
}

func TestFetchMediaHandler_AudioNaming(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "audio")
	}))
	defer server.Close()

	h := NewFetchMediaHandler(server.Client(), newTestLogger())

	payload := domain.Payload{URL: server.URL + "/track.ogg", Kind: domain.MediaKindAudio}
	localPath, err := h.Execute(context.Background(), payload, "task1", t.TempDir())
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(localPath, "audio.ogg"), "got %s", localPath)
}

func TestFetchMetadataHandler_Execute(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "video/mp4")
		w.Header().Set("Content-Length", "12345")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	h := NewFetchMetadataHandler(server.Client(), newTestLogger())

	localPath, err := h.Execute(context.Background(), domain.Payload{URL: server.URL}, "task1", t.TempDir())
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(localPath, "info.json"))

	data, err := os.ReadFile(localPath)
	require.NoError(t, err)

	var info map[string]any
	require.NoError(t, json.Unmarshal(data, &info))
	assert.Equal(t, "video/mp4", info["content_type"])
	assert.Equal(t, float64(12345), info["content_length"])
}

func TestFetchLiveHandler_CapsAtWindowBudget(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Endless stream: the handler must stop at the window budget.
		chunk := make([]byte, 64*1024)
		for i := 0; i < 64; i++ {
			if _, err := w.Write(chunk); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	h := NewFetchLiveHandler(server.Client(), newTestLogger())

	payload := domain.Payload{URL: server.URL, Kind: domain.MediaKindVideo, StartOffset: 60, Duration: 1}
	localPath, err := h.Execute(context.Background(), payload, "task1", t.TempDir())
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(localPath, "live_video.mp4"), "got %s", localPath)

	info, err := os.Stat(localPath)
	require.NoError(t, err)
	assert.Equal(t, int64(assumedLiveBitrate), info.Size())
}

func TestFetchLiveHandler_RequiresDuration(t *testing.T) {
	h := NewFetchLiveHandler(http.DefaultClient, newTestLogger())

	_, err := h.Execute(context.Background(), domain.Payload{URL: "http://example.com"}, "task1", t.TempDir())
	assert.Error(t, err)
}

func TestRegistry_LookupAndVerify(t *testing.T) {
	registry := NewRegistry(http.DefaultClient, newTestLogger())
	require.NoError(t, registry.Verify())

	for _, taskType := range domain.AllTaskTypes {
		h, err := registry.Lookup(taskType)
		require.NoError(t, err)
		assert.NotNil(t, h)
	}

	_, err := registry.Lookup(domain.TaskType("bogus"))
	assert.Error(t, err)
}
