package orchestrator

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/jmylchreest/xtreamer/internal/favorites"
	"github.com/jmylchreest/xtreamer/internal/streamurl"
	"github.com/jmylchreest/xtreamer/pkg/xtream"
)

// ChannelsState is the channel list snapshot plus the favorite ids.
type ChannelsState struct {
	ListState[xtream.Channel]
	Favorites        []string `json:"favorites"`
	ShowingFavorites bool     `json:"showing_favorites"`
}

// Channels browses live channels and owns the favorites view.
type Channels struct {
	*Catalog[xtream.Channel]

	panel     Panel
	urls      *streamurl.Builder
	favorites *favorites.Store
}

// NewChannels creates the live channel orchestrator.
func NewChannels(panel Panel, urls *streamurl.Builder, favs *favorites.Store, opts ...Option) *Channels {
	src := Source[xtream.Channel]{
		Fetch: panel.ListChannels,
		ID:    func(ch xtream.Channel) string { return itemID(ch.StreamID) },
		Name:  func(ch xtream.Channel) string { return ch.Name },
	}
	return &Channels{
		Catalog:   newCatalog(xtream.ContentLive, panel, src, false, opts),
		panel:     panel,
		urls:      urls,
		favorites: favs,
	}
}

// Snapshot combines the list state with the current favorites.
func (c *Channels) Snapshot() ChannelsState {
	list := c.State()
	return ChannelsState{
		ListState:        list,
		Favorites:        c.favorites.List(),
		ShowingFavorites: list.View == ViewFavorites,
	}
}

// Favorites returns the favorite channel ids.
func (c *Channels) Favorites() []string {
	return c.favorites.List()
}

// IsFavorite reports whether a channel is a favorite.
func (c *Channels) IsFavorite(streamID string) bool {
	return c.favorites.Contains(streamID)
}

// ShowFavorites publishes the favorite channels, resolving the ones that
// have not been browsed yet.
func (c *Channels) ShowFavorites() <-chan struct{} {
	return c.ShowIDs(c.favorites.List())
}

// ToggleFavorite flips a channel in the favorites set and reports whether it
// is now a favorite. The favorites view is refreshed when it is showing.
func (c *Channels) ToggleFavorite(ctx context.Context, streamID string) (bool, error) {
	added, err := c.favorites.Toggle(ctx, streamID)
	if err != nil {
		return false, err
	}
	if c.State().View == ViewFavorites {
		c.ShowFavorites()
	}
	return added, nil
}

// StreamURL returns the HLS URL of a channel.
func (c *Channels) StreamURL(streamID string) string {
	return c.urls.Live(strings.TrimSpace(streamID))
}

// ProgramGuide fetches the short EPG of a channel. It runs outside the task
// slot and does not touch the list state.
func (c *Channels) ProgramGuide(ctx context.Context, streamID string) ([]xtream.EPGProgram, error) {
	id, err := parseStreamID(streamID)
	if err != nil {
		return nil, err
	}
	return c.panel.FetchProgramGuide(ctx, id)
}

func parseStreamID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid stream id %q: %w", s, err)
	}
	return id, nil
}
