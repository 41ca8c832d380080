package handlers_test

import (
	"net/http"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/xtreamer/internal/orchestrator"
	"github.com/jmylchreest/xtreamer/pkg/xtream"
)

func firstID[T any](items map[string][]T, cats []xtream.Category, id func(T) int64) int64 {
	return id(items[string(cats[0].ID)][0])
}

func TestDetailHandler_Movie(t *testing.T) {
	env := newTestEnv(t)
	env.login(t)

	c := env.panel.Catalog
	id := firstID(c.Movies, c.Categories[xtream.ContentMovie], func(m xtream.Movie) int64 { return m.StreamID.Int() })

	rec := env.do(t, "GET", "/api/v1/movie/"+strconv.FormatInt(id, 10), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	st := decode[orchestrator.MovieDetailState](t, rec)
	require.NotNil(t, st.Detail)
	assert.Equal(t, c.MovieDetails[id].Info.Name, st.Detail.Info.Name)

	rec = env.do(t, "GET", "/api/v1/movie/abc", nil)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestDetailHandler_Series(t *testing.T) {
	env := newTestEnv(t)
	env.login(t)

	c := env.panel.Catalog
	id := firstID(c.Series, c.Categories[xtream.ContentSeries], func(s xtream.Series) int64 { return s.SeriesID.Int() })
	path := "/api/v1/series/" + strconv.FormatInt(id, 10)

	rec := env.do(t, "GET", path, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	st := decode[orchestrator.SeriesDetailState](t, rec)
	assert.Equal(t, []int{1, 2}, st.Seasons)
	assert.Equal(t, 1, st.SelectedSeason)
	require.Len(t, st.Episodes, 3)
	assert.Equal(t, int64(1), st.Episodes[0].EpisodeNum.Int())

	rec = env.do(t, "GET", path+"?season=2", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	st = decode[orchestrator.SeriesDetailState](t, rec)
	assert.Equal(t, 2, st.SelectedSeason)
	for _, ep := range st.Episodes {
		assert.Equal(t, int64(2), ep.Season.Int())
	}

	rec = env.do(t, "GET", path+"?season=9", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDetailHandler_ProgramGuide(t *testing.T) {
	env := newTestEnv(t)
	env.login(t)

	c := env.panel.Catalog
	id := firstID(c.Channels, c.Categories[xtream.ContentLive], func(ch xtream.Channel) int64 { return ch.StreamID.Int() })

	rec := env.do(t, "GET", "/api/v1/live/streams/"+strconv.FormatInt(id, 10)+"/epg", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode[struct {
		StreamID string              `json:"stream_id"`
		Programs []xtream.EPGProgram `json:"programs"`
	}](t, rec)
	assert.Equal(t, strconv.FormatInt(id, 10), body.StreamID)
	assert.Equal(t, c.Guide[id], body.Programs)
	assert.Equal(t, 1, env.panel.Calls("xmltv"))
}
