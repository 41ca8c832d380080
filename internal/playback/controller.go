package playback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jmylchreest/xtreamer/internal/state"
)

// State is a controller lifecycle state.
type State string

const (
	StateIdle      State = "idle"
	StatePreparing State = "preparing"
	StateReady     State = "ready"
	StatePlaying   State = "playing"
	StatePaused    State = "paused"
	StateFaulted   State = "faulted"
	StateReleased  State = "released"
)

// Controller defaults and limits.
const (
	DefaultPollInterval = time.Second
	DefaultSeekStep     = 10 * time.Second
	MinSpeed            = 0.25
	MaxSpeed            = 4.0
)

// ErrNotSeekable is returned by seek controls on live streams.
var ErrNotSeekable = errors.New("live streams cannot seek")

// Media describes what to open.
type Media struct {
	URL   string `json:"url"`
	Title string `json:"title,omitempty"`
	Live  bool   `json:"live"`
}

// Status is the published snapshot of a controller.
type Status struct {
	State        State    `json:"state"`
	Media        Media    `json:"media"`
	Position     Position `json:"position"`
	Speed        float64  `json:"speed"`
	Volume       float64  `json:"volume"`
	IsBuffering  bool     `json:"is_buffering"`
	ErrorMessage string   `json:"error_message,omitempty"`

	// Err is the fault that moved the controller to StateFaulted.
	Err *PlaybackError `json:"-"`
}

// Option configures a Controller.
type Option func(*Controller)

// WithPollInterval sets the position polling cadence.
func WithPollInterval(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.pollInterval = d
		}
	}
}

// WithSeekStep sets the Rewind/FastForward step.
func WithSeekStep(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.seekStep = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// Controller owns at most one live Player. Opening new media releases the
// previous player before the next one is created, and the position poller
// runs at most once per player.
type Controller struct {
	factory      Factory
	pollInterval time.Duration
	seekStep     time.Duration
	logger       *slog.Logger

	// lifecycle serializes Open and Release.
	lifecycle sync.Mutex

	mu       sync.Mutex
	player   Player
	gen      uint64
	stop     chan struct{}
	pollOnce *sync.Once
	released bool
	wg       sync.WaitGroup

	value *state.Value[Status]
}

// NewController creates an idle controller.
func NewController(factory Factory, opts ...Option) *Controller {
	c := &Controller{
		factory:      factory,
		pollInterval: DefaultPollInterval,
		seekStep:     DefaultSeekStep,
		logger:       slog.Default(),
		value:        state.NewValue(Status{State: StateIdle, Speed: 1, Volume: 1}),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With(slog.String("component", "playback"))
	return c
}

// Status returns the current snapshot.
func (c *Controller) Status() Status {
	return c.value.Get()
}

// Subscribe streams status snapshots.
func (c *Controller) Subscribe() *state.Subscription[Status] {
	return c.value.Subscribe()
}

// Open tears down the current player, if any, and starts playing media on a
// new one.
func (c *Controller) Open(ctx context.Context, media Media) error {
	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()

	c.mu.Lock()
	released := c.released
	c.mu.Unlock()
	if released {
		return ErrReleased
	}

	c.teardown()

	p, err := c.factory()
	if err != nil {
		perr := &PlaybackError{Op: "create", Err: err}
		c.mu.Lock()
		c.value.Set(Status{State: StateFaulted, Media: media, Speed: 1, Volume: 1, ErrorMessage: faultMessage(perr), Err: perr})
		c.mu.Unlock()
		return perr
	}

	c.mu.Lock()
	c.gen++
	gen := c.gen
	stop := make(chan struct{})
	c.player = p
	c.stop = stop
	c.pollOnce = new(sync.Once)
	c.value.Set(Status{State: StatePreparing, Media: media, Speed: 1, Volume: 1})
	c.wg.Add(1)
	go c.pump(gen, p, stop)
	c.mu.Unlock()

	c.logger.Debug("opening media", slog.String("title", media.Title), slog.Bool("live", media.Live))

	if err := p.Prepare(ctx, media.URL); err != nil {
		perr := &PlaybackError{Op: "prepare", Err: err}
		c.mu.Lock()
		c.faultLocked(gen, perr)
		c.mu.Unlock()
		return perr
	}
	return nil
}

// teardown detaches the current player, waits for its goroutines and
// releases it. The caller holds lifecycle.
func (c *Controller) teardown() {
	c.mu.Lock()
	p, stop := c.player, c.stop
	c.player, c.stop, c.pollOnce = nil, nil, nil
	c.gen++
	c.mu.Unlock()

	if stop != nil {
		close(stop)
	}
	c.wg.Wait()

	if p != nil {
		if err := p.Release(); err != nil {
			c.logger.Warn("releasing player failed", slog.String("error", err.Error()))
		}
	}
}

func (c *Controller) pump(gen uint64, p Player, stop chan struct{}) {
	defer c.wg.Done()
	events := p.Events()
	for {
		select {
		case <-stop:
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			c.handle(gen, p, stop, ev)
		}
	}
}

func (c *Controller) handle(gen uint64, p Player, stop chan struct{}, ev Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != gen {
		return
	}

	s := c.value.Get()
	switch ev.Kind {
	case EventReady:
		if s.State == StatePreparing {
			s.State = StateReady
		}
		s.IsBuffering = false
		c.startPollerLocked(gen, p, stop)
	case EventPlaying:
		switch s.State {
		case StatePreparing, StateReady, StatePaused:
			s.State = StatePlaying
		}
		s.IsBuffering = false
		c.startPollerLocked(gen, p, stop)
	case EventPaused:
		if s.State == StatePlaying || s.State == StateReady {
			s.State = StatePaused
		}
	case EventBuffering:
		switch s.State {
		case StatePreparing, StateReady, StatePlaying:
			s.IsBuffering = true
		}
	case EventEnded:
		if s.State == StatePlaying || s.State == StateReady {
			s.State = StatePaused
			s.Position.Current = s.Position.Duration
		}
	case EventError:
		c.faultLocked(gen, &PlaybackError{Op: "play", Err: ev.Err})
		return
	}
	c.value.Set(s)
}

// faultLocked moves to StateFaulted from Preparing, Ready or Playing.
func (c *Controller) faultLocked(gen uint64, perr *PlaybackError) {
	if c.gen != gen {
		return
	}
	s := c.value.Get()
	switch s.State {
	case StatePreparing, StateReady, StatePlaying:
	default:
		c.logger.Debug("ignoring player fault", slog.String("state", string(s.State)), slog.String("error", perr.Error()))
		return
	}
	c.logger.Warn("playback faulted", slog.String("error", perr.Error()))
	s.State = StateFaulted
	s.IsBuffering = false
	s.ErrorMessage = faultMessage(perr)
	s.Err = perr
	c.value.Set(s)
}

func faultMessage(perr *PlaybackError) string {
	if perr.Op == "play" {
		return "Playback error: " + perr.Err.Error()
	}
	return "Failed to initialize player: " + perr.Err.Error()
}

func (c *Controller) startPollerLocked(gen uint64, p Player, stop chan struct{}) {
	c.pollOnce.Do(func() {
		c.wg.Add(1)
		go c.poll(gen, p, stop)
	})
}

// poll samples the position while the player is Ready or Playing.
func (c *Controller) poll(gen uint64, p Player, stop chan struct{}) {
	defer c.wg.Done()
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		c.mu.Lock()
		current := c.gen == gen
		st := c.value.Get().State
		c.mu.Unlock()
		if !current {
			return
		}

		if st == StateReady || st == StatePlaying {
			pos := p.Position()
			c.mu.Lock()
			if c.gen == gen {
				c.value.Update(func(s Status) Status {
					s.Position = pos
					return s
				})
			}
			c.mu.Unlock()
		}

		select {
		case <-stop:
			return
		case <-ticker.C:
		}
	}
}

// control runs fn against the active player under the controller lock.
func (c *Controller) control(op string, fn func(p Player, s *Status) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.released {
		return ErrReleased
	}
	if c.player == nil {
		return ErrNoPlayer
	}

	s := c.value.Get()
	if err := fn(c.player, &s); err != nil {
		var perr *PlaybackError
		if errors.As(err, &perr) || errors.Is(err, ErrDurationUnknown) ||
			errors.Is(err, ErrInvalidSpeed) || errors.Is(err, ErrNotSeekable) {
			return err
		}
		return &PlaybackError{Op: op, Err: err}
	}
	c.value.Set(s)
	return nil
}

// Pause pauses a playing player.
func (c *Controller) Pause() error {
	return c.control("pause", func(p Player, s *Status) error {
		if s.State != StatePlaying {
			return fmt.Errorf("cannot pause while %s", s.State)
		}
		if err := p.Pause(); err != nil {
			return err
		}
		s.State = StatePaused
		return nil
	})
}

// Resume starts a ready or paused player.
func (c *Controller) Resume() error {
	return c.control("play", func(p Player, s *Status) error {
		if s.State != StateReady && s.State != StatePaused {
			return fmt.Errorf("cannot play while %s", s.State)
		}
		if err := p.Play(); err != nil {
			return err
		}
		s.State = StatePlaying
		return nil
	})
}

// TogglePlayPause pauses when playing and plays otherwise.
func (c *Controller) TogglePlayPause() error {
	if c.Status().State == StatePlaying {
		return c.Pause()
	}
	return c.Resume()
}

// SeekTo moves the playhead, clamped to [0, duration] when the duration is
// known.
func (c *Controller) SeekTo(pos time.Duration) error {
	return c.control("seek", func(p Player, s *Status) error {
		return c.seekLocked(p, s, pos)
	})
}

func (c *Controller) seekLocked(p Player, s *Status, pos time.Duration) error {
	if s.Media.Live {
		return ErrNotSeekable
	}
	pos = max(pos, 0)
	if s.Position.Duration > 0 {
		pos = min(pos, s.Position.Duration)
	}
	if err := p.Seek(pos); err != nil {
		return err
	}
	s.Position.Current = pos
	return nil
}

// SeekBy moves the playhead by delta. Seeking forward needs a known
// duration.
func (c *Controller) SeekBy(delta time.Duration) error {
	return c.control("seek", func(p Player, s *Status) error {
		if delta > 0 && s.Position.Duration <= 0 {
			return ErrDurationUnknown
		}
		return c.seekLocked(p, s, s.Position.Current+delta)
	})
}

// Rewind seeks back by the seek step.
func (c *Controller) Rewind() error {
	return c.SeekBy(-c.seekStep)
}

// FastForward seeks forward by the seek step.
func (c *Controller) FastForward() error {
	return c.SeekBy(c.seekStep)
}

// SeekPercent seeks to fraction f of the duration, f clamped to [0, 1].
func (c *Controller) SeekPercent(f float64) error {
	return c.control("seek", func(p Player, s *Status) error {
		if s.Position.Duration <= 0 {
			return ErrDurationUnknown
		}
		f = min(max(f, 0), 1)
		return c.seekLocked(p, s, time.Duration(float64(s.Position.Duration)*f))
	})
}

// SetSpeed sets the playback rate, which must be within [MinSpeed, MaxSpeed].
func (c *Controller) SetSpeed(speed float64) error {
	if speed < MinSpeed || speed > MaxSpeed {
		return fmt.Errorf("%w: %g", ErrInvalidSpeed, speed)
	}
	return c.control("speed", func(p Player, s *Status) error {
		if err := p.SetSpeed(speed); err != nil {
			return err
		}
		s.Speed = speed
		return nil
	})
}

// SetVolume sets the volume, clamped to [0, 1].
func (c *Controller) SetVolume(volume float64) error {
	volume = min(max(volume, 0), 1)
	return c.control("volume", func(p Player, s *Status) error {
		if err := p.SetVolume(volume); err != nil {
			return err
		}
		s.Volume = volume
		return nil
	})
}

// Release tears down the player and moves to the terminal StateReleased.
// The state changes only after the player's Release returned.
func (c *Controller) Release() {
	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()

	c.mu.Lock()
	if c.released {
		c.mu.Unlock()
		return
	}
	c.released = true
	c.mu.Unlock()

	c.teardown()

	c.mu.Lock()
	c.value.Set(Status{State: StateReleased})
	c.mu.Unlock()
	c.value.Close()
}
