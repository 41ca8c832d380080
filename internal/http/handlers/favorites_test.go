package handlers_test

import (
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/xtreamer/internal/orchestrator"
	"github.com/jmylchreest/xtreamer/pkg/xtream"
)

type favoritesBody struct {
	Favorites []string `json:"favorites"`
}

type toggleBody struct {
	StreamID string `json:"stream_id"`
	Favorite bool   `json:"favorite"`
}

func TestFavoritesHandler_AddRemoveWithoutLogin(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, "PUT", "/api/v1/favorites/12", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = env.do(t, "PUT", "/api/v1/favorites/3", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"3", "12"}, decode[favoritesBody](t, rec).Favorites)

	rec = env.do(t, "DELETE", "/api/v1/favorites/12", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"3"}, decode[favoritesBody](t, rec).Favorites)

	rec = env.do(t, "GET", "/api/v1/favorites", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"3"}, decode[favoritesBody](t, rec).Favorites)

	rec = env.do(t, "PUT", "/api/v1/favorites/%20", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, "PUT", "/api/v1/favorites/abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, []string{"3"}, env.app.Favorites.List())
}

func TestFavoritesHandler_ShowAndToggle(t *testing.T) {
	env := newTestEnv(t)

	cats := env.panel.Catalog.Categories[xtream.ContentLive]
	last := env.panel.Catalog.Channels[string(cats[len(cats)-1].ID)][0]
	id := last.StreamID.String()

	rec := env.do(t, "GET", "/api/v1/live/favorites", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	require.Equal(t, http.StatusOK, env.do(t, "PUT", "/api/v1/favorites/"+id, nil).Code)
	env.login(t)

	rec = env.do(t, "GET", "/api/v1/live/favorites", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	st := decode[orchestrator.ChannelsState](t, rec)
	assert.True(t, st.ShowingFavorites)
	assert.Equal(t, []string{id}, st.Favorites)
	assert.Equal(t, []xtream.Channel{last}, st.Items)

	rec = env.do(t, "POST", "/api/v1/live/favorites/"+id+"/toggle", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, toggleBody{StreamID: id, Favorite: false}, decode[toggleBody](t, rec))
	assert.False(t, env.app.Favorites.Contains(id))

	rec = env.do(t, "POST", "/api/v1/live/favorites/abc/toggle", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFavoritesHandler_Playlist(t *testing.T) {
	env := newTestEnv(t)

	cats := env.panel.Catalog.Categories[xtream.ContentLive]
	ch := env.panel.Catalog.Channels[string(cats[0].ID)][1]
	id := ch.StreamID.String()

	rec := env.do(t, "GET", "/api/v1/live/favorites/playlist.m3u", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	require.Equal(t, http.StatusOK, env.do(t, "PUT", "/api/v1/favorites/"+id, nil).Code)
	env.login(t)

	rec = env.do(t, "GET", "/api/v1/live/favorites/playlist.m3u", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "audio/x-mpegurl", rec.Header().Get("Content-Type"))

	body := rec.Body.String()
	assert.True(t, strings.HasPrefix(body, "#EXTM3U\n"), body)
	assert.Contains(t, body, `group-title="`+cats[0].Name+`"`)
	assert.Contains(t, body, ","+ch.Name+"\n")
	assert.Contains(t, body, "/live/alice/secret/"+id+".m3u8\n")
}
