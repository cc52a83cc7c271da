package session

import (
	"context"
	"errors"
	"sync"

	"github.com/catechize/playback/internal/domain"
	"github.com/catechize/playback/internal/player"
)

// Command is a pending control instruction for the client-hosted player.
type Command struct {
	Name  string  `json:"name"`
	Value float64 `json:"value,omitempty"`
	Arg   string  `json:"arg,omitempty"`
}

// EventReport is a media event the client observed on its element or widget.
type EventReport struct {
	Event    string             `json:"event"`
	Time     float64            `json:"time,omitempty"`
	Duration float64            `json:"duration,omitempty"`
	State    int                `json:"state,omitempty"`
	Error    string             `json:"error,omitempty"`
	Buffered []domain.TimeRange `json:"buffered,omitempty"`
}

// Widget lifecycle reports, distinct from the native element event names.
const (
	ReportWidgetReady       = "ready"
	ReportWidgetStateChange = "statechange"
	ReportWidgetError       = "embederror"
)

// Bridge mirrors a client-hosted media element or embed widget over HTTP.
// The controller drives it like a local backing player: commands queue up
// for the client to drain, and client-reported events feed the controller's
// listeners. It implements player.Element, player.Widget and
// player.WidgetFactory.
//
// Listener dispatch happens outside the bridge lock so a firing listener may
// freely read the bridge back.
type Bridge struct {
	mu          sync.Mutex
	commands    []Command
	listeners   map[player.ElementEvent][]func()
	currentTime float64
	duration    float64
	buffered    []domain.TimeRange
	lastErr     error

	widgetEvents player.WidgetEvents
}

// NewBridge returns an empty bridge.
func NewBridge() *Bridge {
	return &Bridge{listeners: make(map[player.ElementEvent][]func())}
}

func (b *Bridge) enqueue(cmd Command) {
	b.mu.Lock()
	b.commands = append(b.commands, cmd)
	b.mu.Unlock()
}

// Drain returns and clears the pending command queue, in enqueue order.
func (b *Bridge) Drain() []Command {
	b.mu.Lock()
	defer b.mu.Unlock()
	cmds := b.commands
	b.commands = nil
	return cmds
}

// Apply ingests a client event report: caches the reported position and
// metadata, then fires the matching listener or widget callback.
func (b *Bridge) Apply(report EventReport) {
	b.mu.Lock()
	if report.Time > 0 || report.Event == string(player.EventTimeUpdate) {
		b.currentTime = report.Time
	}
	if report.Duration > 0 {
		b.duration = report.Duration
	}
	if report.Buffered != nil {
		b.buffered = report.Buffered
	}
	if report.Error != "" {
		b.lastErr = errors.New(report.Error)
	}
	widgetEvents := b.widgetEvents
	fns := b.listeners[player.ElementEvent(report.Event)]
	b.mu.Unlock()

	switch report.Event {
	case ReportWidgetReady:
		if widgetEvents.OnReady != nil {
			widgetEvents.OnReady()
		}
	case ReportWidgetStateChange:
		if widgetEvents.OnStateChange != nil {
			widgetEvents.OnStateChange(player.WidgetState(report.State))
		}
	case ReportWidgetError:
		if widgetEvents.OnError != nil {
			widgetEvents.OnError(errors.New(report.Error))
		}
	default:
		for _, fn := range fns {
			fn()
		}
	}
}

// player.Element implementation.

func (b *Bridge) Play(context.Context) error {
	b.enqueue(Command{Name: "play"})
	return nil
}

func (b *Bridge) Pause() {
	b.enqueue(Command{Name: "pause"})
}

func (b *Bridge) CurrentTime() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.currentTime
}

func (b *Bridge) SetCurrentTime(seconds float64) {
	b.mu.Lock()
	b.currentTime = seconds
	b.mu.Unlock()
	b.enqueue(Command{Name: "seek", Value: seconds})
}

func (b *Bridge) Duration() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.duration
}

func (b *Bridge) SetVolume(volume float64) {
	b.enqueue(Command{Name: "volume", Value: volume})
}

func (b *Bridge) SetPlaybackRate(rate float64) {
	b.enqueue(Command{Name: "rate", Value: rate})
}

func (b *Bridge) Buffered() []domain.TimeRange {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]domain.TimeRange, len(b.buffered))
	copy(out, b.buffered)
	return out
}

func (b *Bridge) Err() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastErr
}

func (b *Bridge) AddListener(event player.ElementEvent, fn func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listeners[event] = append(b.listeners[event], fn)
}

// player.Widget implementation. SeekTo and friends reuse the element command
// names so the client protocol stays uniform across kinds.

func (b *Bridge) SeekTo(seconds float64, _ bool) {
	b.SetCurrentTime(seconds)
}

func (b *Bridge) Destroy() {
	b.enqueue(Command{Name: "destroy"})
}

// bridgeWidget adapts the bridge to player.Widget, whose Play takes no
// context; the bridge's element-side Play(ctx) keeps its own signature.
type bridgeWidget struct {
	*Bridge
}

func (w bridgeWidget) Play() {
	w.Bridge.enqueue(Command{Name: "play"})
}

// player.WidgetFactory implementation: the widget is the bridge itself,
// cued on the client by a command carrying the video ID.
func (b *Bridge) Create(_ context.Context, videoID string, events player.WidgetEvents) (player.Widget, error) {
	b.mu.Lock()
	b.widgetEvents = events
	b.mu.Unlock()
	b.enqueue(Command{Name: "cue", Arg: videoID})
	return bridgeWidget{b}, nil
}
