package handlers

import (
	"bytes"
	"context"
	"errors"

	"github.com/danielgtaylor/huma/v2"

	"github.com/jmylchreest/xtreamer/internal/app"
	"github.com/jmylchreest/xtreamer/internal/export"
	"github.com/jmylchreest/xtreamer/internal/favorites"
	"github.com/jmylchreest/xtreamer/internal/orchestrator"
)

// FavoritesHandler handles the favorite channel endpoints.
type FavoritesHandler struct {
	app *app.App
}

// NewFavoritesHandler creates a new favorites handler.
func NewFavoritesHandler(a *app.App) *FavoritesHandler {
	return &FavoritesHandler{app: a}
}

// Register registers the favorites routes with the API.
func (h *FavoritesHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "listFavorites",
		Method:      "GET",
		Path:        "/api/v1/favorites",
		Summary:     "List favorite channel ids",
		Tags:        []string{"Favorites"},
	}, h.ListFavorites)

	huma.Register(api, huma.Operation{
		OperationID: "addFavorite",
		Method:      "PUT",
		Path:        "/api/v1/favorites/{streamId}",
		Summary:     "Add a favorite channel",
		Tags:        []string{"Favorites"},
	}, h.AddFavorite)

	huma.Register(api, huma.Operation{
		OperationID: "removeFavorite",
		Method:      "DELETE",
		Path:        "/api/v1/favorites/{streamId}",
		Summary:     "Remove a favorite channel",
		Tags:        []string{"Favorites"},
	}, h.RemoveFavorite)

	huma.Register(api, huma.Operation{
		OperationID: "showFavoriteChannels",
		Method:      "GET",
		Path:        "/api/v1/live/favorites",
		Summary:     "Show the favorite channels",
		Description: "Switches the live list to the favorites view, resolving channels from categories not browsed yet.",
		Tags:        []string{"Favorites"},
	}, h.ShowFavorites)

	huma.Register(api, huma.Operation{
		OperationID: "toggleFavorite",
		Method:      "POST",
		Path:        "/api/v1/live/favorites/{streamId}/toggle",
		Summary:     "Toggle a favorite channel",
		Tags:        []string{"Favorites"},
	}, h.ToggleFavorite)

	huma.Register(api, huma.Operation{
		OperationID: "getFavoritesPlaylist",
		Method:      "GET",
		Path:        "/api/v1/live/favorites/playlist.m3u",
		Summary:     "Export the favorite channels as an M3U playlist",
		Tags:        []string{"Favorites"},
	}, h.FavoritesPlaylist)
}

func (h *FavoritesHandler) ids() *FavoritesOutput {
	out := &FavoritesOutput{}
	out.Body.Favorites = h.app.Favorites.List()
	return out
}

// ListFavorites returns the favorite ids. No session is needed.
func (h *FavoritesHandler) ListFavorites(_ context.Context, _ *EmptyInput) (*FavoritesOutput, error) {
	return h.ids(), nil
}

// AddFavorite adds a channel id.
func (h *FavoritesHandler) AddFavorite(ctx context.Context, input *FavoriteInput) (*FavoritesOutput, error) {
	if err := h.app.Favorites.Add(ctx, input.StreamID); err != nil {
		return nil, favoriteError(err)
	}
	h.refresh()
	return h.ids(), nil
}

// RemoveFavorite removes a channel id.
func (h *FavoritesHandler) RemoveFavorite(ctx context.Context, input *FavoriteInput) (*FavoritesOutput, error) {
	if err := h.app.Favorites.Remove(ctx, input.StreamID); err != nil {
		return nil, favoriteError(err)
	}
	h.refresh()
	return h.ids(), nil
}

// refresh re-resolves the favorites view of a logged-in session that is
// showing it.
func (h *FavoritesHandler) refresh() {
	c, err := h.app.Content()
	if err != nil {
		return
	}
	if c.Channels.State().View == orchestrator.ViewFavorites {
		c.Channels.ShowFavorites()
	}
}

// ShowFavorites publishes the favorites view and returns it once resolved.
func (h *FavoritesHandler) ShowFavorites(ctx context.Context, _ *EmptyInput) (*ChannelsOutput, error) {
	c, err := content(h.app)
	if err != nil {
		return nil, err
	}
	if err := wait(ctx, c.Channels.ShowFavorites()); err != nil {
		return nil, err
	}

	snap := c.Channels.Snapshot()
	if snap.ErrorMessage != "" {
		return nil, huma.Error502BadGateway(snap.ErrorMessage)
	}
	return &ChannelsOutput{Body: snap}, nil
}

// ToggleFavorite flips a channel and reports the new membership.
func (h *FavoritesHandler) ToggleFavorite(ctx context.Context, input *FavoriteInput) (*ToggleFavoriteOutput, error) {
	c, err := content(h.app)
	if err != nil {
		return nil, err
	}
	id, err := favorites.ParseID(input.StreamID)
	if err != nil {
		return nil, favoriteError(err)
	}
	added, err := c.Channels.ToggleFavorite(ctx, id)
	if err != nil {
		return nil, favoriteError(err)
	}

	out := &ToggleFavoriteOutput{}
	out.Body.StreamID = id
	out.Body.Favorite = added
	return out, nil
}

// FavoritesPlaylist renders the resolved favorites view as M3U.
func (h *FavoritesHandler) FavoritesPlaylist(ctx context.Context, _ *EmptyInput) (*PlaylistOutput, error) {
	c, err := content(h.app)
	if err != nil {
		return nil, err
	}
	if err := wait(ctx, c.Channels.ShowFavorites()); err != nil {
		return nil, err
	}
	snap := c.Channels.Snapshot()
	if snap.ErrorMessage != "" {
		return nil, huma.Error502BadGateway(snap.ErrorMessage)
	}

	var buf bytes.Buffer
	playlist := export.NewPlaylist(&buf)
	for _, ch := range snap.Items {
		group := ""
		if cat, ok := c.Channels.Categories.Find(string(ch.CategoryID)); ok {
			group = cat.Name
		}
		if err := playlist.AddChannel(ch, group, c.Channels.StreamURL(ch.StreamID.String())); err != nil {
			return nil, huma.Error500InternalServerError("writing playlist failed", err)
		}
	}
	if _, err := playlist.Close(); err != nil {
		return nil, huma.Error500InternalServerError("writing playlist failed", err)
	}

	return &PlaylistOutput{ContentType: "audio/x-mpegurl", Body: buf.Bytes()}, nil
}

func favoriteError(err error) error {
	if errors.Is(err, favorites.ErrInvalidID) {
		return huma.Error400BadRequest(err.Error())
	}
	return huma.Error500InternalServerError("saving favorites failed", err)
}
