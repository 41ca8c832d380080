package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/jmylchreest/xtreamer/internal/state"
	"github.com/jmylchreest/xtreamer/internal/streamurl"
	"github.com/jmylchreest/xtreamer/pkg/xtream"
)

var errNoSeries = errors.New("no series loaded")

// SeriesDetailState is the published snapshot of the series detail view.
type SeriesDetailState struct {
	SeriesID       string               `json:"series_id,omitempty"`
	Detail         *xtream.SeriesDetail `json:"detail,omitempty"`
	Seasons        []int                `json:"seasons"`
	SelectedSeason int                  `json:"selected_season"`
	Episodes       []xtream.Episode     `json:"episodes"`
	IsLoading      bool                 `json:"is_loading"`
	ErrorMessage   string               `json:"error_message,omitempty"`
}

// Series browses the series catalog and its seasons.
type Series struct {
	*Catalog[xtream.Series]

	panel  Panel
	urls   *streamurl.Builder
	logger *slog.Logger

	detail     *state.Value[SeriesDetailState]
	detailSlot *taskSlot
}

// NewSeries creates the series orchestrator.
func NewSeries(panel Panel, urls *streamurl.Builder, opts ...Option) *Series {
	src := Source[xtream.Series]{
		Fetch: panel.ListSeries,
		ID:    func(s xtream.Series) string { return itemID(s.SeriesID) },
		Name:  func(s xtream.Series) string { return s.Name },
	}
	o := buildOptions(opts)
	return &Series{
		Catalog:    newCatalog(xtream.ContentSeries, panel, src, true, opts),
		panel:      panel,
		urls:       urls,
		logger:     o.logger.With(slog.String("component", "series_detail")),
		detail:     state.NewValue(SeriesDetailState{}),
		detailSlot: newTaskSlot(),
	}
}

// Detail returns the current detail snapshot.
func (s *Series) Detail() SeriesDetailState {
	return s.detail.Get()
}

// SubscribeDetail streams detail snapshots.
func (s *Series) SubscribeDetail() *state.Subscription[SeriesDetailState] {
	return s.detail.Subscribe()
}

// LoadDetail fetches a series and selects its lowest season.
func (s *Series) LoadDetail(seriesID string) <-chan struct{} {
	id, err := parseStreamID(seriesID)
	if err != nil {
		return s.detailSlot.now(func() {
			s.detail.Set(SeriesDetailState{SeriesID: seriesID, ErrorMessage: UserMessage(err)})
		})
	}

	return s.detailSlot.start(func(ctx context.Context, commit commitFunc) {
		commit(func() {
			s.detail.Set(SeriesDetailState{SeriesID: seriesID, IsLoading: true})
		})

		detail, err := s.panel.FetchSeriesDetail(ctx, id)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.logger.Warn("loading series detail failed",
				slog.String("series_id", seriesID),
				slog.String("error", err.Error()))
			commit(func() {
				s.detail.Set(SeriesDetailState{SeriesID: seriesID, ErrorMessage: UserMessage(err)})
			})
			return
		}

		next := SeriesDetailState{
			SeriesID: seriesID,
			Detail:   detail,
			Seasons:  detail.SeasonNumbers(),
			Episodes: []xtream.Episode{},
		}
		if len(next.Seasons) > 0 {
			next.SelectedSeason = next.Seasons[0]
			next.Episodes = detail.EpisodesFor(next.SelectedSeason)
		}
		commit(func() {
			s.detail.Set(next)
		})
	})
}

// SelectSeason shows the episodes of season n of the loaded series.
func (s *Series) SelectSeason(n int) error {
	var err error
	s.detail.Update(func(cur SeriesDetailState) SeriesDetailState {
		if cur.Detail == nil {
			err = errNoSeries
			return cur
		}
		if !slices.Contains(cur.Seasons, n) {
			err = fmt.Errorf("season %d not found", n)
			return cur
		}
		cur.SelectedSeason = n
		cur.Episodes = cur.Detail.EpisodesFor(n)
		return cur
	})
	return err
}

// Episodes returns the episodes of the selected season.
func (s *Series) Episodes() []xtream.Episode {
	return s.detail.Get().Episodes
}

// ClearDetail cancels any detail load and empties the detail view.
func (s *Series) ClearDetail() {
	s.detailSlot.now(func() {
		s.detail.Set(SeriesDetailState{})
	})
}

// EpisodeURL returns the playable URL of an episode.
func (s *Series) EpisodeURL(ep xtream.Episode) string {
	return s.urls.Episode(ep.ID.String(), ep.ContainerExtension)
}

// EpisodeURLByID builds an episode URL by id. A blank ext takes the extension
// of the matching episode of the loaded series, if any.
func (s *Series) EpisodeURLByID(episodeID, ext string) string {
	if ext == "" {
		if detail := s.detail.Get().Detail; detail != nil {
			for _, episodes := range detail.Episodes {
				for _, ep := range episodes {
					if ep.ID.String() == episodeID {
						ext = ep.ContainerExtension
					}
				}
			}
		}
	}
	return s.urls.Episode(episodeID, ext)
}

// Close stops every load and ends all subscriptions.
func (s *Series) Close() {
	s.detailSlot.close()
	s.detail.Close()
	s.Catalog.Close()
}
