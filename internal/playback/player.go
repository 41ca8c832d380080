// Package playback drives a media player through a fixed lifecycle and
// exposes the transport controls used by the live and VOD screens.
package playback

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrPlayback is matched by every *PlaybackError.
var ErrPlayback = errors.New("playback error")

// Controller errors that do not come from a player.
var (
	ErrReleased        = errors.New("player controller released")
	ErrNoPlayer        = errors.New("no active player")
	ErrDurationUnknown = errors.New("duration unknown")
	ErrInvalidSpeed    = errors.New("playback speed out of range")
)

// PlaybackError is a fault reported by, or raised while driving, a player.
type PlaybackError struct {
	Op  string
	Err error
}

func (e *PlaybackError) Error() string {
	return fmt.Sprintf("playback %s: %v", e.Op, e.Err)
}

// Is matches ErrPlayback.
func (e *PlaybackError) Is(target error) bool {
	return target == ErrPlayback
}

func (e *PlaybackError) Unwrap() error {
	return e.Err
}

// EventKind classifies player events.
type EventKind int

const (
	EventReady EventKind = iota
	EventPlaying
	EventPaused
	EventBuffering
	EventEnded
	EventError
)

func (k EventKind) String() string {
	switch k {
	case EventReady:
		return "ready"
	case EventPlaying:
		return "playing"
	case EventPaused:
		return "paused"
	case EventBuffering:
		return "buffering"
	case EventEnded:
		return "ended"
	case EventError:
		return "error"
	default:
		return fmt.Sprintf("event(%d)", int(k))
	}
}

// Event is emitted by a player as its state changes.
type Event struct {
	Kind EventKind
	Err  error
}

// Position is a snapshot of the playhead. Duration is zero while unknown.
type Position struct {
	Current  time.Duration `json:"current"`
	Duration time.Duration `json:"duration"`
	Buffered time.Duration `json:"buffered"`
}

// Player is one media player instance. Prepare starts loading and playback
// begins as soon as the media is ready; readiness and faults arrive on
// Events. Release frees every resource and must be called exactly once.
type Player interface {
	Prepare(ctx context.Context, url string) error
	Play() error
	Pause() error
	Seek(pos time.Duration) error
	SetSpeed(speed float64) error
	SetVolume(volume float64) error
	Position() Position
	Events() <-chan Event
	Release() error
}

// Factory creates a fresh player for each Open.
type Factory func() (Player, error)
