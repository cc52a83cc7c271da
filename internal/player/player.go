// Package player presents one playback control and state contract over three
// structurally different backings: a native audio element, a native video
// element, and an iframe-based embed widget with an asynchronous lifecycle.
package player

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/catechize/playback/internal/domain"
	"github.com/catechize/playback/internal/embed"
	"github.com/catechize/playback/pkg/logger"
)

// Config holds controller tunables
type Config struct {
	// PollInterval is the widget time-sync cadence while playing.
	PollInterval time.Duration
	// SkipForward/SkipBackward are the default relative seek distances.
	SkipForward  float64
	SkipBackward float64
	// MinSpeed/MaxSpeed bound SetSpeed.
	MinSpeed float64
	MaxSpeed float64
}

// DefaultConfig returns the standard controller tunables
func DefaultConfig() Config {
	return Config{
		PollInterval: 250 * time.Millisecond,
		SkipForward:  10,
		SkipBackward: 10,
		MinSpeed:     0.25,
		MaxSpeed:     4,
	}
}

// resyncThreshold is the divergence, in seconds, past which Play resynchronizes
// the element position with the controller's restored position.
const resyncThreshold = 0.1

// Controller owns one media source and exposes a uniform snapshot and command
// set over it. All methods are safe for concurrent use; state updates are
// last-writer-wins in event arrival order.
type Controller struct {
	source  domain.MediaSource
	store   ProgressStore
	loader  EmbedLoader
	factory WidgetFactory
	cfg     Config
	log     *logger.Logger

	mu             sync.Mutex
	state          domain.PlaybackState
	element        Element
	widget         Widget
	activated      bool
	closed         bool
	canPlayHandled bool
	pollStop       chan struct{}

	// Persistence lifecycle: outlives any activation context, canceled on
	// Close. Progress writes must not die with the request that created
	// the controller.
	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a controller for the given source. The loader and factory are
// required only for embed sources; audio and video sources wait for an
// element via AttachElement.
func New(source domain.MediaSource, store ProgressStore, loader EmbedLoader, factory WidgetFactory, cfg Config, log *logger.Logger) *Controller {
	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{
		source:  source,
		store:   store,
		loader:  loader,
		factory: factory,
		cfg:     cfg,
		log:     log,
		state:   domain.NewPlaybackState(),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Activate restores persisted progress into the snapshot and attaches the
// backing player. For embed sources this loads the embed API, resolves the
// video ID and constructs the widget; for native sources the element arrives
// later through AttachElement. A load failure is recorded in the snapshot and
// returned; there is no automatic retry.
func (c *Controller) Activate(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return domain.ErrControllerClosed
	}
	if c.activated {
		c.mu.Unlock()
		return nil
	}
	c.activated = true

	if rec, ok := c.store.Get(c.source.ID, c.source.Kind); ok {
		c.state.CurrentTime = rec.CurrentTime
		c.state.Duration = rec.Duration
	}

	if c.source.Kind != domain.KindEmbed {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	return c.attachWidget(ctx)
}

func (c *Controller) attachWidget(ctx context.Context) error {
	fail := func(err error) error {
		c.mu.Lock()
		c.state.Err = err
		c.state.IsLoading = false
		c.mu.Unlock()
		c.log.Error("embed attach failed", "id", c.source.ID, "error", err)
		return err
	}

	if c.loader == nil || c.factory == nil {
		return fail(fmt.Errorf("embed source requires a loader and widget factory"))
	}
	if err := c.loader.Load(ctx); err != nil {
		return fail(fmt.Errorf("load embed api: %w", err))
	}

	videoID := embed.VideoID(c.source.URL)
	if videoID == "" {
		return fail(fmt.Errorf("no video id in url %q", c.source.URL))
	}

	widget, err := c.factory.Create(ctx, videoID, WidgetEvents{
		OnReady:       c.onWidgetReady,
		OnStateChange: c.onWidgetStateChange,
		OnError:       c.onWidgetError,
	})
	if err != nil {
		return fail(fmt.Errorf("create widget: %w", err))
	}

	c.mu.Lock()
	c.widget = widget
	c.mu.Unlock()
	return nil
}

func (c *Controller) onWidgetReady() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.widget == nil {
		return
	}
	c.state.IsLoading = false
	if d := c.widget.Duration(); d > 0 {
		c.state.Duration = d
	}
	if rec, ok := c.store.Get(c.source.ID, c.source.Kind); ok && rec.CurrentTime > 0 {
		c.widget.SeekTo(rec.CurrentTime, true)
		c.state.CurrentTime = rec.CurrentTime
	}
}

func (c *Controller) onWidgetStateChange(state WidgetState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch state {
	case WidgetPlaying:
		c.state.IsPlaying = true
		c.state.IsLoading = false
		c.startPollingLocked()
	case WidgetPaused:
		c.state.IsPlaying = false
		c.state.IsLoading = false
		c.stopPollingLocked()
	case WidgetBuffering:
		c.state.IsLoading = true
	case WidgetEnded:
		c.state.IsPlaying = false
		c.state.IsLoading = false
		c.stopPollingLocked()
	}
}

func (c *Controller) onWidgetError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err == nil {
		err = fmt.Errorf("embed player error")
	}
	c.state.Err = err
	c.state.IsLoading = false
	c.log.Error("embed player error", "id", c.source.ID, "error", err)
}

// AttachElement wires a native media element into the controller. Listeners
// are attached exactly once per element: re-attaching the element already in
// place is a no-op. The restore-position seek on canplay is guarded so
// repeated canplay signals do not fight the user's own seeks.
func (c *Controller) AttachElement(el Element) {
	if el == nil {
		return
	}

	c.mu.Lock()
	if c.closed || c.element == el {
		c.mu.Unlock()
		return
	}
	c.element = el
	c.canPlayHandled = false
	volume, speed := c.state.Volume, c.state.Speed
	c.mu.Unlock()

	el.AddListener(EventLoadStart, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.state.IsLoading = true
	})
	el.AddListener(EventLoadedMetadata, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if d := el.Duration(); d > 0 {
			c.state.Duration = d
		}
		c.state.IsLoading = false
	})
	el.AddListener(EventTimeUpdate, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		// Track time regardless of play state so seeks are reflected too.
		c.state.CurrentTime = el.CurrentTime()
		c.persistLocked()
	})
	el.AddListener(EventDurationChange, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if d := el.Duration(); d > 0 {
			c.state.Duration = d
			c.persistLocked()
		}
	})
	el.AddListener(EventPlay, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.state.IsPlaying = true
		c.state.IsLoading = false
	})
	el.AddListener(EventPause, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.state.IsPlaying = false
	})
	el.AddListener(EventWaiting, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.state.IsLoading = true
	})
	el.AddListener(EventCanPlay, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.canPlayHandled {
			return
		}
		c.canPlayHandled = true
		c.state.IsLoading = false
		if c.state.CurrentTime > 0 {
			el.SetCurrentTime(c.state.CurrentTime)
		}
	})
	el.AddListener(EventError, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		err := el.Err()
		if err == nil {
			err = fmt.Errorf("%s loading error", c.source.Kind)
		}
		c.state.Err = err
		c.state.IsLoading = false
		c.log.Error("media element error", "id", c.source.ID, "kind", c.source.Kind, "error", err)
	})
	el.AddListener(EventProgress, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.state.Buffered = el.Buffered()
	})

	el.SetVolume(volume)
	el.SetPlaybackRate(speed)
}

// Play starts playback. For embed sources it delegates to the widget; for
// native sources it resynchronizes the element position first when it has
// drifted from the restored position, then invokes the native play primitive.
// Failures are logged and never propagated.
func (c *Controller) Play(ctx context.Context) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	widget, el := c.widget, c.element
	current := c.state.CurrentTime
	c.mu.Unlock()

	if c.source.Kind == domain.KindEmbed {
		if widget != nil {
			widget.Play()
		}
		return
	}

	if el == nil {
		c.log.Error("play with no media element attached", "id", c.source.ID, "kind", c.source.Kind)
		return
	}
	if current > 0 && abs(el.CurrentTime()-current) > resyncThreshold {
		el.SetCurrentTime(current)
	}
	if err := el.Play(ctx); err != nil {
		c.log.Error("play failed", "id", c.source.ID, "kind", c.source.Kind, "error", err)
	}
}

// Pause pauses playback. It never fails the caller.
func (c *Controller) Pause() {
	c.mu.Lock()
	widget, el := c.widget, c.element
	c.mu.Unlock()

	if c.source.Kind == domain.KindEmbed {
		if widget != nil {
			widget.Pause()
		}
		return
	}
	if el != nil {
		el.Pause()
	}
}

// TogglePlay pauses when the snapshot says playing, else plays. It uses the
// controller's own IsPlaying, not a freshly queried native flag.
func (c *Controller) TogglePlay(ctx context.Context) {
	c.mu.Lock()
	playing := c.state.IsPlaying
	c.mu.Unlock()

	if playing {
		c.Pause()
	} else {
		c.Play(ctx)
	}
}

// Seek moves playback to the given time. A value in [0,1] is interpreted as a
// fraction of the duration; anything else is absolute seconds. The new
// position is reflected in the snapshot and persisted immediately rather than
// waiting for the next time update.
func (c *Controller) Seek(t float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}

	target := t
	if t >= 0 && t <= 1 {
		target = t * c.state.Duration
	}
	if target < 0 {
		target = 0
	}

	if c.source.Kind == domain.KindEmbed {
		if c.widget == nil {
			return
		}
		c.widget.SeekTo(target, true)
	} else {
		if c.element == nil {
			return
		}
		c.element.SetCurrentTime(target)
	}
	c.state.CurrentTime = target
	c.persistLocked()
}

// SetVolume sets the volume, clamped to [0,1]. The snapshot always reflects
// the clamped value, even if the backing apply is a no-op.
func (c *Controller) SetVolume(v float64) {
	v = clamp(v, 0, 1)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.widget != nil {
		c.widget.SetVolume(v * 100)
	} else if c.element != nil {
		c.element.SetVolume(v)
	}
	c.state.Volume = v
}

// SetSpeed sets the playback rate, clamped to the configured bounds.
func (c *Controller) SetSpeed(s float64) {
	s = clamp(s, c.cfg.MinSpeed, c.cfg.MaxSpeed)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.widget != nil {
		c.widget.SetPlaybackRate(s)
	} else if c.element != nil {
		c.element.SetPlaybackRate(s)
	}
	c.state.Speed = s
}

// SkipForward seeks forward by the given distance, or the configured default
// when seconds is not positive.
func (c *Controller) SkipForward(seconds float64) {
	if seconds <= 0 {
		seconds = c.cfg.SkipForward
	}
	c.Seek(c.currentTime() + seconds)
}

// SkipBackward seeks backward by the given distance, or the configured
// default when seconds is not positive.
func (c *Controller) SkipBackward(seconds float64) {
	if seconds <= 0 {
		seconds = c.cfg.SkipBackward
	}
	c.Seek(c.currentTime() - seconds)
}

// Source returns the immutable source descriptor.
func (c *Controller) Source() domain.MediaSource {
	return c.source
}

// State returns a copy of the current snapshot.
func (c *Controller) State() domain.PlaybackState {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := c.state
	if len(c.state.Buffered) > 0 {
		st.Buffered = make([]domain.TimeRange, len(c.state.Buffered))
		copy(st.Buffered, c.state.Buffered)
	}
	return st
}

// Close tears the controller down: the poll timer stops, the element is
// paused and detached, the widget is destroyed. Terminal.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.cancel()
	c.stopPollingLocked()
	if c.element != nil {
		c.element.Pause()
		c.element = nil
	}
	if c.widget != nil {
		c.widget.Destroy()
		c.widget = nil
	}
	c.state.IsPlaying = false
}

func (c *Controller) currentTime() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.CurrentTime
}

// persistLocked writes the current position through to the progress store.
// The store applies its own validity filters. Callers hold c.mu.
func (c *Controller) persistLocked() {
	c.store.Update(c.ctx, c.source.ID, c.source.Kind, c.state.CurrentTime, c.state.Duration)
}

// startPollingLocked begins the widget time-sync loop. The widget exposes no
// time-update event, so the controller polls while playing. Callers hold c.mu.
func (c *Controller) startPollingLocked() {
	if c.pollStop != nil || c.closed {
		return
	}
	stop := make(chan struct{})
	c.pollStop = stop
	go c.pollLoop(stop)
}

func (c *Controller) stopPollingLocked() {
	if c.pollStop != nil {
		close(c.pollStop)
		c.pollStop = nil
	}
}

func (c *Controller) pollLoop(stop <-chan struct{}) {
	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			c.mu.Lock()
			if c.widget != nil && !c.closed {
				c.state.CurrentTime = c.widget.CurrentTime()
				c.persistLocked()
			}
			c.mu.Unlock()
		}
	}
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
