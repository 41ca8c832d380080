package orchestrator

import (
	"context"
	"log/slog"
	"strings"

	"github.com/jmylchreest/xtreamer/internal/state"
	"github.com/jmylchreest/xtreamer/internal/streamurl"
	"github.com/jmylchreest/xtreamer/pkg/xtream"
)

// MovieDetailState is the published snapshot of the movie detail view.
type MovieDetailState struct {
	MovieID      string              `json:"movie_id,omitempty"`
	Detail       *xtream.MovieDetail `json:"detail,omitempty"`
	IsLoading    bool                `json:"is_loading"`
	ErrorMessage string              `json:"error_message,omitempty"`
}

// Movies browses the VOD catalog. The first category is selected as soon as
// the categories arrive.
type Movies struct {
	*Catalog[xtream.Movie]

	panel  Panel
	urls   *streamurl.Builder
	logger *slog.Logger

	detail     *state.Value[MovieDetailState]
	detailSlot *taskSlot
}

// NewMovies creates the movie orchestrator.
func NewMovies(panel Panel, urls *streamurl.Builder, opts ...Option) *Movies {
	src := Source[xtream.Movie]{
		Fetch: panel.ListMovies,
		ID:    func(m xtream.Movie) string { return itemID(m.StreamID) },
		Name:  func(m xtream.Movie) string { return m.Name },
	}
	o := buildOptions(opts)
	return &Movies{
		Catalog:    newCatalog(xtream.ContentMovie, panel, src, true, opts),
		panel:      panel,
		urls:       urls,
		logger:     o.logger.With(slog.String("component", "movie_detail")),
		detail:     state.NewValue(MovieDetailState{}),
		detailSlot: newTaskSlot(),
	}
}

// Detail returns the current detail snapshot.
func (m *Movies) Detail() MovieDetailState {
	return m.detail.Get()
}

// SubscribeDetail streams detail snapshots.
func (m *Movies) SubscribeDetail() *state.Subscription[MovieDetailState] {
	return m.detail.Subscribe()
}

// LoadDetail fetches the detail of a movie, replacing any load in flight.
func (m *Movies) LoadDetail(movieID string) <-chan struct{} {
	id, err := parseStreamID(movieID)
	if err != nil {
		return m.detailSlot.now(func() {
			m.detail.Set(MovieDetailState{MovieID: movieID, ErrorMessage: UserMessage(err)})
		})
	}

	return m.detailSlot.start(func(ctx context.Context, commit commitFunc) {
		commit(func() {
			m.detail.Set(MovieDetailState{MovieID: movieID, IsLoading: true})
		})

		detail, err := m.panel.FetchMovieDetail(ctx, id)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			m.logger.Warn("loading movie detail failed",
				slog.String("movie_id", movieID),
				slog.String("error", err.Error()))
			commit(func() {
				m.detail.Set(MovieDetailState{MovieID: movieID, ErrorMessage: UserMessage(err)})
			})
			return
		}

		commit(func() {
			m.detail.Set(MovieDetailState{MovieID: movieID, Detail: detail})
		})
	})
}

// ClearDetail cancels any detail load and empties the detail view.
func (m *Movies) ClearDetail() {
	m.detailSlot.now(func() {
		m.detail.Set(MovieDetailState{})
	})
}

// StreamURL returns the playable URL of a movie using its container
// extension.
func (m *Movies) StreamURL(movie xtream.Movie) string {
	return m.urls.Movie(itemID(movie.StreamID), movie.ContainerExtension)
}

// StreamURLByID builds the URL of a movie by id. A blank ext takes the
// extension of the indexed movie, if any.
func (m *Movies) StreamURLByID(movieID, ext string) string {
	movieID = strings.TrimSpace(movieID)
	if ext == "" {
		if movie, ok := m.Lookup(movieID); ok {
			ext = movie.ContainerExtension
		}
	}
	return m.urls.Movie(movieID, ext)
}

// Close stops every load and ends all subscriptions.
func (m *Movies) Close() {
	m.detailSlot.close()
	m.detail.Close()
	m.Catalog.Close()
}
