package playback

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakePlayer records calls and lets the test drive events.
type fakePlayer struct {
	id     int
	events chan Event
	log    *callLog

	mu       sync.Mutex
	pos      Position
	url      string
	speed    float64
	volume   float64
	seeks    []time.Duration
	released bool

	prepareErr error
	seekErr    error
	positions  atomic.Int32
}

// callLog orders lifecycle calls across player instances.
type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *callLog) add(s string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, s)
}

func (l *callLog) list() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}

func (p *fakePlayer) Prepare(_ context.Context, url string) error {
	p.mu.Lock()
	p.url = url
	p.mu.Unlock()
	p.log.add("prepare")
	return p.prepareErr
}

func (p *fakePlayer) Play() error  { p.log.add("play"); return nil }
func (p *fakePlayer) Pause() error { p.log.add("pause"); return nil }

func (p *fakePlayer) Seek(pos time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.seekErr != nil {
		return p.seekErr
	}
	p.seeks = append(p.seeks, pos)
	return nil
}

func (p *fakePlayer) SetSpeed(v float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.speed = v
	return nil
}

func (p *fakePlayer) SetVolume(v float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.volume = v
	return nil
}

func (p *fakePlayer) Position() Position {
	p.positions.Add(1)
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pos
}

func (p *fakePlayer) setPosition(pos Position) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pos = pos
}

func (p *fakePlayer) Events() <-chan Event { return p.events }

func (p *fakePlayer) Release() error {
	p.mu.Lock()
	p.released = true
	p.mu.Unlock()
	p.log.add("release")
	return nil
}

func (p *fakePlayer) isReleased() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.released
}

type fakeFactory struct {
	log     callLog
	mu      sync.Mutex
	players []*fakePlayer
	err     error
}

func (f *fakeFactory) New() (Player, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.log.add("create")
	p := &fakePlayer{id: len(f.players), events: make(chan Event, 16), log: &f.log}
	f.players = append(f.players, p)
	return p, nil
}

func (f *fakeFactory) last() *fakePlayer {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.players[len(f.players)-1]
}

func newTestController(t *testing.T, f *fakeFactory, opts ...Option) *Controller {
	t.Helper()
	c := NewController(f.New, append([]Option{WithPollInterval(5 * time.Millisecond)}, opts...)...)
	t.Cleanup(c.Release)
	return c
}

func waitState(t *testing.T, c *Controller, want State) {
	t.Helper()
	require.Eventually(t, func() bool { return c.Status().State == want },
		time.Second, time.Millisecond, "state %s", want)
}

func vod() Media {
	return Media{URL: "http://panel.example/movie/u/p/1.mp4", Title: "Heat"}
}

func TestController_Lifecycle(t *testing.T) {
	f := &fakeFactory{}
	c := newTestController(t, f)
	assert.Equal(t, StateIdle, c.Status().State)

	require.NoError(t, c.Open(context.Background(), vod()))
	assert.Equal(t, StatePreparing, c.Status().State)
	p := f.last()

	p.events <- Event{Kind: EventBuffering}
	require.Eventually(t, func() bool { return c.Status().IsBuffering }, time.Second, time.Millisecond)

	p.events <- Event{Kind: EventReady}
	waitState(t, c, StateReady)
	assert.False(t, c.Status().IsBuffering)

	p.events <- Event{Kind: EventPlaying}
	waitState(t, c, StatePlaying)

	require.NoError(t, c.TogglePlayPause())
	assert.Equal(t, StatePaused, c.Status().State)
	require.NoError(t, c.TogglePlayPause())
	assert.Equal(t, StatePlaying, c.Status().State)

	c.Release()
	assert.Equal(t, StateReleased, c.Status().State)
	assert.True(t, p.isReleased())
	assert.ErrorIs(t, c.Open(context.Background(), vod()), ErrReleased)
	assert.ErrorIs(t, c.Pause(), ErrReleased)
}

func TestController_FaultFromPlayerError(t *testing.T) {
	f := &fakeFactory{}
	c := newTestController(t, f)
	require.NoError(t, c.Open(context.Background(), vod()))

	f.last().events <- Event{Kind: EventError, Err: errors.New("codec not supported")}
	waitState(t, c, StateFaulted)

	s := c.Status()
	require.NotNil(t, s.Err)
	assert.ErrorIs(t, s.Err, ErrPlayback)
	assert.Equal(t, "play", s.Err.Op)
	assert.Equal(t, "Playback error: codec not supported", s.ErrorMessage)

	// A faulted controller can open again.
	require.NoError(t, c.Open(context.Background(), vod()))
	assert.Equal(t, StatePreparing, c.Status().State)
	assert.Empty(t, c.Status().ErrorMessage)
}

func TestController_FaultIgnoredWhilePaused(t *testing.T) {
	f := &fakeFactory{}
	c := newTestController(t, f)
	require.NoError(t, c.Open(context.Background(), vod()))
	p := f.last()
	p.events <- Event{Kind: EventPlaying}
	waitState(t, c, StatePlaying)
	require.NoError(t, c.Pause())

	p.events <- Event{Kind: EventError, Err: errors.New("stall")}
	p.events <- Event{Kind: EventBuffering}
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, StatePaused, c.Status().State)
}

func TestController_PrepareAndCreateFailures(t *testing.T) {
	t.Run("create", func(t *testing.T) {
		f := &fakeFactory{err: errors.New("mpv not found")}
		c := newTestController(t, f)
		err := c.Open(context.Background(), vod())

		var perr *PlaybackError
		require.ErrorAs(t, err, &perr)
		assert.Equal(t, "create", perr.Op)
		assert.Equal(t, StateFaulted, c.Status().State)
		assert.Equal(t, "Failed to initialize player: mpv not found", c.Status().ErrorMessage)
	})

	t.Run("prepare", func(t *testing.T) {
		f := &fakeFactory{}
		c := NewController(func() (Player, error) {
			p, _ := f.New()
			p.(*fakePlayer).prepareErr = errors.New("bad url")
			return p, nil
		})
		defer c.Release()

		err := c.Open(context.Background(), vod())
		assert.ErrorIs(t, err, ErrPlayback)
		assert.Equal(t, StateFaulted, c.Status().State)
	})
}

func TestController_OpenReleasesPreviousPlayerFirst(t *testing.T) {
	f := &fakeFactory{}
	c := newTestController(t, f)

	require.NoError(t, c.Open(context.Background(), vod()))
	first := f.last()
	first.events <- Event{Kind: EventReady}
	waitState(t, c, StateReady)

	require.NoError(t, c.Open(context.Background(), Media{URL: "http://panel.example/live/u/p/2.m3u8", Live: true}))
	assert.True(t, first.isReleased())
	assert.Equal(t, []string{"create", "prepare", "release", "create", "prepare"}, f.log.list())

	// Events from the old player no longer reach the controller.
	first.events <- Event{Kind: EventError, Err: errors.New("late")}
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, StatePreparing, c.Status().State)
	assert.True(t, c.Status().Media.Live)
}

func TestController_PollerStartsOnceAndTracksPosition(t *testing.T) {
	f := &fakeFactory{}
	c := newTestController(t, f)
	require.NoError(t, c.Open(context.Background(), vod()))
	p := f.last()

	time.Sleep(20 * time.Millisecond)
	assert.Zero(t, p.positions.Load(), "no polling before ready")

	p.setPosition(Position{Current: 5 * time.Second, Duration: time.Minute, Buffered: 8 * time.Second})
	p.events <- Event{Kind: EventReady}
	p.events <- Event{Kind: EventPlaying}
	p.events <- Event{Kind: EventPaused}
	p.events <- Event{Kind: EventPlaying}

	require.Eventually(t, func() bool {
		return c.Status().Position.Current == 5*time.Second
	}, time.Second, time.Millisecond)
	assert.Equal(t, time.Minute, c.Status().Position.Duration)
	assert.Equal(t, 8*time.Second, c.Status().Position.Buffered)

	c.Release()
	polled := p.positions.Load()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, polled, p.positions.Load(), "poller stopped with the player")
}

func playing(t *testing.T, c *Controller, f *fakeFactory, m Media, pos Position) *fakePlayer {
	t.Helper()
	require.NoError(t, c.Open(context.Background(), m))
	p := f.last()
	p.setPosition(pos)
	p.events <- Event{Kind: EventPlaying}
	require.Eventually(t, func() bool { return c.Status().Position == pos }, time.Second, time.Millisecond)
	return p
}

func TestController_Seeking(t *testing.T) {
	f := &fakeFactory{}
	c := newTestController(t, f, WithPollInterval(time.Hour))
	p := playing(t, c, f, vod(), Position{Current: 5 * time.Second, Duration: 100 * time.Second})

	require.NoError(t, c.Rewind())
	assert.Equal(t, time.Duration(0), c.Status().Position.Current)

	require.NoError(t, c.SeekTo(95*time.Second))
	require.NoError(t, c.FastForward())
	assert.Equal(t, 100*time.Second, c.Status().Position.Current)

	require.NoError(t, c.SeekPercent(0.25))
	assert.Equal(t, 25*time.Second, c.Status().Position.Current)
	require.NoError(t, c.SeekPercent(7))
	assert.Equal(t, 100*time.Second, c.Status().Position.Current)

	assert.Equal(t, []time.Duration{0, 95 * time.Second, 100 * time.Second, 25 * time.Second, 100 * time.Second}, p.seeks)

	p.seekErr = errors.New("not seekable")
	err := c.SeekTo(time.Second)
	var perr *PlaybackError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "seek", perr.Op)
}

func TestController_SeekNeedsDurationAndVOD(t *testing.T) {
	f := &fakeFactory{}
	c := newTestController(t, f, WithPollInterval(time.Hour))
	playing(t, c, f, vod(), Position{Current: 5 * time.Second})

	assert.ErrorIs(t, c.FastForward(), ErrDurationUnknown)
	assert.ErrorIs(t, c.SeekPercent(0.5), ErrDurationUnknown)
	assert.NoError(t, c.Rewind())

	playing(t, c, f, Media{URL: "http://panel.example/live/u/p/1.m3u8", Live: true}, Position{Current: time.Second})
	assert.ErrorIs(t, c.SeekTo(0), ErrNotSeekable)
}

func TestController_SpeedAndVolume(t *testing.T) {
	f := &fakeFactory{}
	c := newTestController(t, f)

	assert.ErrorIs(t, c.SetVolume(0.5), ErrNoPlayer)

	p := playing(t, c, f, vod(), Position{})

	require.NoError(t, c.SetSpeed(2))
	assert.Equal(t, 2.0, c.Status().Speed)
	assert.ErrorIs(t, c.SetSpeed(0.1), ErrInvalidSpeed)
	assert.ErrorIs(t, c.SetSpeed(4.5), ErrInvalidSpeed)

	require.NoError(t, c.SetVolume(1.7))
	assert.Equal(t, 1.0, c.Status().Volume)
	require.NoError(t, c.SetVolume(-3))
	assert.Equal(t, 0.0, c.Status().Volume)

	p.mu.Lock()
	defer p.mu.Unlock()
	assert.Equal(t, 2.0, p.speed)
	assert.Equal(t, 0.0, p.volume)
}

func TestController_SubscribeSeesReleased(t *testing.T) {
	f := &fakeFactory{}
	c := NewController(f.New)
	sub := c.Subscribe()
	<-sub.Updates

	c.Release()
	var last Status
	for s := range sub.Updates {
		last = s
	}
	assert.Equal(t, StateReleased, last.State)
}
