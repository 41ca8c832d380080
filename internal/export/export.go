// Package export renders browsed catalogs as M3U playlists and program
// guides as XMLTV, for players that cannot speak the panel API.
package export

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/jmylchreest/xtreamer/internal/version"
	"github.com/jmylchreest/xtreamer/pkg/m3u"
	"github.com/jmylchreest/xtreamer/pkg/xmltv"
	"github.com/jmylchreest/xtreamer/pkg/xtream"
)

// Playlist streams catalog items to an M3U writer.
type Playlist struct {
	w *m3u.Writer
}

// NewPlaylist starts a playlist on w.
func NewPlaylist(w io.Writer) *Playlist {
	return &Playlist{w: m3u.NewWriter(w)}
}

// AddChannel adds a live channel under group.
func (p *Playlist) AddChannel(ch xtream.Channel, group, url string) error {
	return p.w.WriteEntry(m3u.Entry{
		TvgID:         ch.EPGChannelID,
		TvgName:       ch.Name,
		TvgLogo:       ch.StreamIcon,
		GroupTitle:    group,
		ChannelNumber: ch.Num.Int(),
		Title:         ch.Name,
		URL:           url,
	})
}

// AddMovie adds a movie under group.
func (p *Playlist) AddMovie(m xtream.Movie, group, url string) error {
	return p.w.WriteEntry(m3u.Entry{
		TvgName:    m.Name,
		TvgLogo:    m.StreamIcon,
		GroupTitle: group,
		Title:      m.Name,
		URL:        url,
	})
}

// AddEpisode adds an episode of series, grouped by the series name.
func (p *Playlist) AddEpisode(series string, ep xtream.Episode, url string) error {
	title := fmt.Sprintf("%s S%02dE%02d", series, ep.Season.Int(), ep.EpisodeNum.Int())
	if ep.Title != "" {
		title += " - " + ep.Title
	}
	return p.w.WriteEntry(m3u.Entry{
		Duration:   int(ep.Info.DurationSecs.Int()),
		TvgLogo:    ep.Info.MovieImage,
		GroupTitle: series,
		Title:      title,
		URL:        url,
	})
}

// Close writes the header of an empty playlist and reports the number of
// entries written.
func (p *Playlist) Close() (int, error) {
	if err := p.w.WriteHeader(); err != nil {
		return 0, err
	}
	return p.w.Entries(), nil
}

// GuideFetcher returns the program guide of a live stream.
type GuideFetcher func(ctx context.Context, streamID string) ([]xtream.EPGProgram, error)

// GuideChannelID is the XMLTV channel id of ch: its EPG channel id, or the
// stream id when the panel has none.
func GuideChannelID(ch xtream.Channel) string {
	if id := strings.TrimSpace(ch.EPGChannelID); id != "" {
		return id
	}
	return ch.StreamID.String()
}

// WriteGuide writes the guides of channels as one XMLTV document. A channel
// whose guide cannot be fetched is kept without programmes; the first such
// error is returned once the document is complete.
func WriteGuide(ctx context.Context, w io.Writer, channels []xtream.Channel, fetch GuideFetcher, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	doc := xmltv.NewWriter(w, version.ApplicationName)

	seen := make(map[string]bool, len(channels))
	for _, ch := range channels {
		id := GuideChannelID(ch)
		if seen[id] {
			continue
		}
		seen[id] = true
		if err := doc.WriteChannel(xmltv.Channel{ID: id, DisplayName: ch.Name, Icon: ch.StreamIcon}); err != nil {
			return err
		}
	}

	var firstErr error
	for _, ch := range channels {
		programs, err := fetch(ctx, ch.StreamID.String())
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logger.Warn("fetching program guide failed",
				slog.String("stream_id", ch.StreamID.String()),
				slog.String("error", err.Error()))
			if firstErr == nil {
				firstErr = fmt.Errorf("guide for stream %s: %w", ch.StreamID, err)
			}
			continue
		}
		for i := range programs {
			prog := &programs[i]
			if err := doc.WriteProgramme(xmltv.Programme{
				Start:       prog.StartTime(),
				Stop:        prog.EndTime(),
				Channel:     GuideChannelID(ch),
				Title:       prog.Title,
				Description: prog.Description,
				Language:    prog.Lang,
			}); err != nil {
				return err
			}
		}
	}

	if err := doc.Close(); err != nil {
		return err
	}
	return firstErr
}
