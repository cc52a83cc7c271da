package player

import (
	"context"

	"github.com/catechize/playback/internal/domain"
)

// ElementEvent names the native media element signals a controller listens to.
type ElementEvent string

const (
	EventLoadStart      ElementEvent = "loadstart"
	EventLoadedMetadata ElementEvent = "loadedmetadata"
	EventTimeUpdate     ElementEvent = "timeupdate"
	EventDurationChange ElementEvent = "durationchange"
	EventPlay           ElementEvent = "play"
	EventPause          ElementEvent = "pause"
	EventWaiting        ElementEvent = "waiting"
	EventCanPlay        ElementEvent = "canplay"
	EventError          ElementEvent = "error"
	EventProgress       ElementEvent = "progress"
)

// Element is the native media element boundary for the audio and video kinds.
// The host owns the concrete element (a browser tag, a remote client mirror);
// the controller owns it for the controller's lifetime once attached.
//
// Listeners registered through AddListener must be invoked from outside any
// controller call, in event arrival order.
type Element interface {
	// Play invokes the native play primitive. It may fail asynchronously
	// (autoplay policy, decode errors); the controller never propagates
	// the failure.
	Play(ctx context.Context) error
	Pause()

	CurrentTime() float64
	SetCurrentTime(seconds float64)
	Duration() float64
	SetVolume(volume float64)
	SetPlaybackRate(rate float64)
	Buffered() []domain.TimeRange
	// Err returns the element's last media error, if any.
	Err() error

	AddListener(event ElementEvent, fn func())
}

// WidgetState mirrors the external embed widget's player states.
type WidgetState int

const (
	WidgetEnded     WidgetState = 0
	WidgetPlaying   WidgetState = 1
	WidgetPaused    WidgetState = 2
	WidgetBuffering WidgetState = 3
)

// Widget is the embed widget boundary. Unlike Element it exposes no time
// event; the controller polls CurrentTime while playing.
type Widget interface {
	Play()
	Pause()
	SeekTo(seconds float64, allowSeekAhead bool)
	// SetVolume takes a percentage in [0,100].
	SetVolume(percent float64)
	SetPlaybackRate(rate float64)
	CurrentTime() float64
	Duration() float64
	Destroy()
}

// WidgetEvents carries the callbacks a widget factory wires into the widget's
// asynchronous lifecycle.
type WidgetEvents struct {
	OnReady       func()
	OnStateChange func(state WidgetState)
	OnError       func(err error)
}

// WidgetFactory constructs an embed widget bound to a video ID.
type WidgetFactory interface {
	Create(ctx context.Context, videoID string, events WidgetEvents) (Widget, error)
}

// EmbedLoader ensures the embed API is available before widgets are created.
type EmbedLoader interface {
	Load(ctx context.Context) error
}

// ProgressStore is the persistence boundary the controller needs: restore a
// prior position on activation, write back every meaningful time update.
type ProgressStore interface {
	Update(ctx context.Context, id string, kind domain.Kind, currentTime, duration float64)
	Get(id string, kind domain.Kind) (domain.ProgressRecord, bool)
}
