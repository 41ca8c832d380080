package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/jmylchreest/xtreamer/internal/app"
	"github.com/jmylchreest/xtreamer/internal/state"
)

// Event names sent on the events stream.
const (
	EventLogin        = "login"
	EventFavorites    = "favorites"
	EventChannels     = "channels"
	EventMovies       = "movies"
	EventSeries       = "series"
	EventMovieDetail  = "movie_detail"
	EventSeriesDetail = "series_detail"
)

// EventsHandler streams state snapshots as server-sent events.
type EventsHandler struct {
	app               *app.App
	logger            *slog.Logger
	heartbeatInterval time.Duration

	closeOnce sync.Once
	closed    chan struct{}
}

// NewEventsHandler creates a new events handler.
func NewEventsHandler(a *app.App) *EventsHandler {
	return &EventsHandler{
		app:               a,
		logger:            a.Logger.With(slog.String("component", "events")),
		heartbeatInterval: 30 * time.Second,
		closed:            make(chan struct{}),
	}
}

// Close ends every open stream and refuses new ones.
func (h *EventsHandler) Close() {
	h.closeOnce.Do(func() { close(h.closed) })
}

// SetHeartbeatInterval sets the SSE heartbeat interval.
func (h *EventsHandler) SetHeartbeatInterval(interval time.Duration) {
	h.heartbeatInterval = interval
}

// RegisterSSE registers the SSE endpoint on a chi router.
// Huma operations cannot stream, so this bypasses the API.
func (h *EventsHandler) RegisterSSE(router interface {
	Get(pattern string, handlerFn http.HandlerFunc)
}) {
	router.Get("/api/v1/events", h.handleSSEEvents)
}

type sseEvent struct {
	name string
	data any
}

// stream fans subscriptions into one channel. Its methods are called from
// the handler goroutine only.
type stream struct {
	ctx     context.Context
	out     chan sseEvent
	wg      sync.WaitGroup
	cancels []func()
	content *app.Content
}

func forward[T any](s *stream, name string, sub *state.Subscription[T]) {
	s.cancels = append(s.cancels, sub.Cancel)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			select {
			case v, ok := <-sub.Updates:
				if !ok {
					return
				}
				select {
				case s.out <- sseEvent{name: name, data: v}:
				case <-s.ctx.Done():
					return
				}
			case <-s.ctx.Done():
				return
			}
		}
	}()
}

// attach subscribes to the orchestrators of c unless already attached.
// Their subscriptions end by themselves when the session is logged out.
func (s *stream) attach(c *app.Content) {
	if c == nil || c == s.content {
		return
	}
	s.content = c
	forward(s, EventChannels, c.Channels.Subscribe())
	forward(s, EventMovies, c.Movies.Subscribe())
	forward(s, EventSeries, c.Series.Subscribe())
	forward(s, EventMovieDetail, c.Movies.SubscribeDetail())
	forward(s, EventSeriesDetail, c.Series.SubscribeDetail())
}

func (s *stream) close() {
	for _, cancel := range s.cancels {
		cancel()
	}
	s.wg.Wait()
}

func (h *EventsHandler) handleSSEEvents(w http.ResponseWriter, r *http.Request) {
	select {
	case <-h.closed:
		http.Error(w, "server shutting down", http.StatusServiceUnavailable)
		return
	default:
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	ctx, cancel := context.WithCancel(r.Context())

	clientID := ulid.Make().String()
	logger := h.logger.With(slog.String("client_id", clientID))

	s := &stream{ctx: ctx, out: make(chan sseEvent)}
	// Forwarders blocked on a send exit once ctx is cancelled.
	defer s.close()
	defer cancel()

	forward(s, EventLogin, h.app.Login.Subscribe())
	forward(s, EventFavorites, h.app.Favorites.Subscribe())

	rc := http.NewResponseController(w)
	heartbeat := time.NewTicker(h.heartbeatInterval)
	defer heartbeat.Stop()

	fmt.Fprintf(w, ":connected %s\n\n", clientID)
	if err := rc.Flush(); err != nil {
		logger.Error("failed to flush initial SSE connection", slog.String("error", err.Error()))
		return
	}
	logger.Debug("events client connected")

	for {
		select {
		case <-ctx.Done():
			logger.Debug("events client disconnected")
			return
		case <-h.closed:
			return
		case <-heartbeat.C:
			fmt.Fprintf(w, ":heartbeat %d\n\n", time.Now().Unix())
			if err := rc.Flush(); err != nil {
				logger.Debug("heartbeat flush failed, client likely disconnected", slog.String("error", err.Error()))
				return
			}
		case ev := <-s.out:
			if ev.name == EventLogin {
				if c, err := h.app.Content(); err == nil {
					s.attach(c)
				}
			}
			if err := writeSSEEvent(w, ev); err != nil {
				logger.Error("failed to write SSE event",
					slog.String("event_type", ev.name),
					slog.String("error", err.Error()),
				)
				return
			}
			if err := rc.Flush(); err != nil {
				logger.Debug("event flush failed, client likely disconnected", slog.String("event_type", ev.name))
				return
			}
		}
	}
}

func writeSSEEvent(w http.ResponseWriter, ev sseEvent) error {
	data, err := json.Marshal(ev.data)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.name, data)
	return err
}
