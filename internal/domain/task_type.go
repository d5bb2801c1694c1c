package domain

// TaskType identifies which handler a task is dispatched to.
// The set is closed: adding a new type requires registering a handler
// for it, which is checked at startup.
type TaskType string

const (
	// TaskTypeFetchMedia downloads a media file from a URL.
	TaskTypeFetchMedia TaskType = "fetch_media"
	// TaskTypeFetchMetadata captures metadata about a URL without
	// downloading the media itself.
	TaskTypeFetchMetadata TaskType = "fetch_metadata"
	// TaskTypeFetchLive captures a trailing window of a live stream.
	TaskTypeFetchLive TaskType = "fetch_live"
)

// AllTaskTypes lists every valid task type. The handler registry is
// validated against this list at startup.
var AllTaskTypes = []TaskType{
	TaskTypeFetchMedia,
	TaskTypeFetchMetadata,
	TaskTypeFetchLive,
}

// Valid reports whether t is one of the known task types.
func (t TaskType) Valid() bool {
	for _, known := range AllTaskTypes {
		if t == known {
			return true
		}
	}
	return false
}

// MediaKind selects between the video and audio variants of a fetch.
type MediaKind string

const (
	MediaKindVideo MediaKind = "video"
	MediaKindAudio MediaKind = "audio"
)

// Payload holds the immutable handler parameters captured at task creation.
type Payload struct {
	URL         string    `json:"url"`
	Kind        MediaKind `json:"kind,omitempty"`
	VideoFormat string    `json:"video_format,omitempty"`
	AudioFormat string    `json:"audio_format,omitempty"`
	Quality     string    `json:"quality,omitempty"`

	// StartOffset and Duration (seconds) describe the live window for
	// fetch_live tasks: the window starts StartOffset seconds before
	// the moment the handler runs and lasts Duration seconds.
	StartOffset int `json:"start_offset,omitempty"`
	Duration    int `json:"duration,omitempty"`
}
