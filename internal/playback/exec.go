package playback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"time"
)

// ExecConfig describes an external player command. The stream URL is
// appended as the last argument.
type ExecConfig struct {
	Command string
	Args    []string
	// Env is appended to the current environment.
	Env []string
	// StopTimeout is how long the process gets to exit after an interrupt
	// before it is killed.
	StopTimeout time.Duration
	Logger      *slog.Logger
}

// ExecPlayer runs an external media player such as mpv. The process is a
// black box: it plays from the moment it starts and cannot be paused,
// seeked or re-rated, so those controls return errors.ErrUnsupported.
type ExecPlayer struct {
	cfg    ExecConfig
	events chan Event

	mu      sync.Mutex
	cmd     *exec.Cmd
	cancel  context.CancelFunc
	started time.Time
	exited  chan struct{}
	closed  chan struct{}
	once    sync.Once
}

// NewExecFactory returns a Factory of ExecPlayers.
func NewExecFactory(cfg ExecConfig) Factory {
	return func() (Player, error) {
		if cfg.Command == "" {
			return nil, errors.New("no player command configured")
		}
		if _, err := exec.LookPath(cfg.Command); err != nil {
			return nil, fmt.Errorf("player command %q: %w", cfg.Command, err)
		}
		return NewExecPlayer(cfg), nil
	}
}

// NewExecPlayer creates an unstarted player.
func NewExecPlayer(cfg ExecConfig) *ExecPlayer {
	if cfg.StopTimeout <= 0 {
		cfg.StopTimeout = 2 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &ExecPlayer{
		cfg:    cfg,
		events: make(chan Event, 8),
		closed: make(chan struct{}),
	}
}

// Prepare starts the process. The process outlives ctx; Release stops it.
func (p *ExecPlayer) Prepare(_ context.Context, url string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cmd != nil {
		return errors.New("player already started")
	}

	ctx, cancel := context.WithCancel(context.Background())
	args := append(append([]string{}, p.cfg.Args...), url)
	cmd := exec.CommandContext(ctx, p.cfg.Command, args...)
	cmd.Env = append(os.Environ(), p.cfg.Env...)
	cmd.Cancel = func() error { return cmd.Process.Signal(os.Interrupt) }
	cmd.WaitDelay = p.cfg.StopTimeout

	if err := cmd.Start(); err != nil {
		cancel()
		return fmt.Errorf("starting %s: %w", p.cfg.Command, err)
	}

	p.cmd = cmd
	p.cancel = cancel
	p.started = time.Now()
	p.exited = make(chan struct{})
	p.cfg.Logger.Debug("player process started",
		slog.String("command", p.cfg.Command),
		slog.Int("pid", cmd.Process.Pid))

	p.emit(Event{Kind: EventReady})
	p.emit(Event{Kind: EventPlaying})

	go p.wait(ctx, cmd, p.exited)
	return nil
}

func (p *ExecPlayer) wait(ctx context.Context, cmd *exec.Cmd, exited chan struct{}) {
	defer close(exited)
	err := cmd.Wait()
	switch {
	case ctx.Err() != nil:
	case err != nil:
		p.emit(Event{Kind: EventError, Err: fmt.Errorf("%s exited: %w", p.cfg.Command, err)})
	default:
		p.emit(Event{Kind: EventEnded})
	}
}

// emit never blocks once the player is released.
func (p *ExecPlayer) emit(ev Event) {
	select {
	case p.events <- ev:
	case <-p.closed:
	}
}

// Play is a no-op for a running process.
func (p *ExecPlayer) Play() error { return nil }

// Pause is unsupported.
func (p *ExecPlayer) Pause() error { return errors.ErrUnsupported }

// Seek is unsupported.
func (p *ExecPlayer) Seek(time.Duration) error { return errors.ErrUnsupported }

// SetSpeed is unsupported.
func (p *ExecPlayer) SetSpeed(float64) error { return errors.ErrUnsupported }

// SetVolume is unsupported.
func (p *ExecPlayer) SetVolume(float64) error { return errors.ErrUnsupported }

// Position reports the wall time since the process started.
func (p *ExecPlayer) Position() Position {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started.IsZero() {
		return Position{}
	}
	return Position{Current: time.Since(p.started)}
}

// Events returns the event stream.
func (p *ExecPlayer) Events() <-chan Event {
	return p.events
}

// Done is closed when the process has exited. It is nil before Prepare.
func (p *ExecPlayer) Done() <-chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exited
}

// Release interrupts the process, killing it after StopTimeout, and waits
// for it to exit.
func (p *ExecPlayer) Release() error {
	p.once.Do(func() { close(p.closed) })

	p.mu.Lock()
	cancel, exited := p.cancel, p.exited
	p.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	<-exited
	return nil
}
