package domain

import (
	"time"
)

// Kind identifies which backing technology serves playback
type Kind string

const (
	KindAudio Kind = "audio"
	KindVideo Kind = "video"
	KindEmbed Kind = "embed"
)

// Valid reports whether k is one of the known media kinds
func (k Kind) Valid() bool {
	switch k {
	case KindAudio, KindVideo, KindEmbed:
		return true
	}
	return false
}

// MediaSource describes one playable item. It is created by the caller
// before a controller is constructed and never mutated afterwards.
type MediaSource struct {
	Kind Kind   `json:"kind"`
	URL  string `json:"url"`
	ID   string `json:"id"`
}

// TimeRange is a half-open buffered interval [Start, End) in seconds
type TimeRange struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// PlaybackState is the uniform snapshot a controller exposes regardless
// of the backing player. Duration 0 means unknown.
type PlaybackState struct {
	CurrentTime float64     `json:"current_time"`
	Duration    float64     `json:"duration"`
	IsPlaying   bool        `json:"is_playing"`
	IsLoading   bool        `json:"is_loading"`
	Volume      float64     `json:"volume"`
	Speed       float64     `json:"speed"`
	Buffered    []TimeRange `json:"buffered,omitempty"`
	Err         error       `json:"-"`
}

// NewPlaybackState returns the initial snapshot: loading, full volume, normal speed
func NewPlaybackState() PlaybackState {
	return PlaybackState{
		IsLoading: true,
		Volume:    1,
		Speed:     1,
	}
}

// ProgressRecord is the persisted playback position for one item within one
// kind partition. Completed derives from the 0.9 completion threshold.
type ProgressRecord struct {
	ID          string    `json:"id"`
	Kind        Kind      `json:"kind"`
	CurrentTime float64   `json:"current_time"`
	Duration    float64   `json:"duration"`
	LastUpdated time.Time `json:"last_updated"`
	Completed   bool      `json:"completed"`
}

// Podcast represents a podcast in the catalog
type Podcast struct {
	ID          string    `json:"id" dynamodbav:"id"`
	Title       string    `json:"title" dynamodbav:"title"`
	Description string    `json:"description" dynamodbav:"description"`
	Author      string    `json:"author,omitempty" dynamodbav:"author,omitempty"`
	ImageURL    string    `json:"image_url,omitempty" dynamodbav:"image_url,omitempty"`
	CreatedAt   time.Time `json:"created_at" dynamodbav:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" dynamodbav:"updated_at"`
}

// Episode represents a single episode. An episode may carry up to three
// alternative sources: a directly playable audio/video URL, a media object
// key in the bucket, and an external watch URL for the embed player.
type Episode struct {
	ID          string `json:"id" dynamodbav:"id"`
	PodcastID   string `json:"podcast_id" dynamodbav:"podcast_id"`
	Title       string `json:"title" dynamodbav:"title"`
	Description string `json:"description" dynamodbav:"description"`

	// Source alternatives
	AudioURL   string `json:"audio_url,omitempty" dynamodbav:"audio_url,omitempty"`
	VideoURL   string `json:"video_url,omitempty" dynamodbav:"video_url,omitempty"`
	YouTubeURL string `json:"youtube_url,omitempty" dynamodbav:"youtube_url,omitempty"`
	MediaKey   string `json:"media_key,omitempty" dynamodbav:"media_key,omitempty"`

	// Metadata
	Duration    float64   `json:"duration,omitempty" dynamodbav:"duration,omitempty"`
	PublishedAt time.Time `json:"published_at" dynamodbav:"published_at"`

	// Playback counters, maintained by the event worker
	PlayCount     int64 `json:"play_count" dynamodbav:"play_count"`
	CompleteCount int64 `json:"complete_count" dynamodbav:"complete_count"`

	CreatedAt time.Time `json:"created_at" dynamodbav:"created_at"`
	UpdatedAt time.Time `json:"updated_at" dynamodbav:"updated_at"`
}

// NewPodcast creates a new Podcast with initialized timestamps
func NewPodcast(id, title string) *Podcast {
	now := time.Now()
	return &Podcast{
		ID:        id,
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// NewEpisode creates a new Episode with initialized timestamps
func NewEpisode(id, podcastID, title string) *Episode {
	now := time.Now()
	return &Episode{
		ID:        id,
		PodcastID: podcastID,
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// SourceFor returns the source URL an episode offers for the given kind,
// or empty if the episode has no such source. MediaKey-backed episodes are
// resolved separately through the object store.
func (e *Episode) SourceFor(kind Kind) string {
	switch kind {
	case KindAudio:
		return e.AudioURL
	case KindVideo:
		return e.VideoURL
	case KindEmbed:
		return e.YouTubeURL
	}
	return ""
}
