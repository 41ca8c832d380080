package cmd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/google/renameio/v2"
	"github.com/spf13/cobra"

	"github.com/jmylchreest/xtreamer/internal/app"
	"github.com/jmylchreest/xtreamer/internal/export"
	"github.com/jmylchreest/xtreamer/internal/orchestrator"
	"github.com/jmylchreest/xtreamer/pkg/xtream"
)

var exportOpts struct {
	file      string
	category  string
	favorites bool
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export playlists and program guides",
	Long: `Export browsed channels, movies or episodes as an M3U playlist, or the
program guides of live channels as XMLTV. Output goes to standard output
unless --file is given, in which case the file is replaced atomically.`,
}

var exportM3UCmd = &cobra.Command{
	Use:   "m3u <live|movie|series> [series-id]",
	Short: "Export an M3U playlist",
	Long: `Export an M3U playlist of a live or movie category (--category), of the
favorite channels (--favorites, live only), or of every episode of a series.`,
	Example: `  xtreamer export m3u live --favorites --file favorites.m3u
  xtreamer export m3u movie --category 12
  xtreamer export m3u series 4711`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ct, err := xtream.ParseContentType(args[0])
		if err != nil {
			return err
		}
		return withContent(cmd, func(ctx context.Context, _ *app.App, c *app.Content) error {
			var buf bytes.Buffer
			playlist := export.NewPlaylist(&buf)
			switch ct {
			case xtream.ContentLive:
				channels, err := exportChannels(ctx, c)
				if err != nil {
					return err
				}
				for _, ch := range channels {
					group := categoryName(c.Channels.Categories, string(ch.CategoryID))
					if err := playlist.AddChannel(ch, group, c.Channels.StreamURL(ch.StreamID.String())); err != nil {
						return err
					}
				}
			case xtream.ContentMovie:
				if exportOpts.category == "" {
					return errors.New("--category is required for movies")
				}
				if err := loadCategory(ctx, c.Movies.Catalog, exportOpts.category); err != nil {
					return err
				}
				group := categoryName(c.Movies.Categories, exportOpts.category)
				for _, m := range c.Movies.State().Items {
					if err := playlist.AddMovie(m, group, c.Movies.StreamURL(m)); err != nil {
						return err
					}
				}
			case xtream.ContentSeries:
				if len(args) < 2 {
					return errors.New("a series id is required")
				}
				if err := exportEpisodes(ctx, c, args[1], playlist); err != nil {
					return err
				}
			}

			n, err := playlist.Close()
			if err != nil {
				return err
			}
			logger.Info("playlist exported", slog.Int("entries", n), slog.String("type", ct.String()))
			return writeExport(cmd, buf.Bytes())
		})
	},
}

func exportEpisodes(ctx context.Context, c *app.Content, seriesID string, playlist *export.Playlist) error {
	if err := await(ctx, c.Series.LoadDetail(seriesID)); err != nil {
		return err
	}
	st := c.Series.Detail()
	if st.ErrorMessage != "" {
		return errors.New(st.ErrorMessage)
	}
	for _, season := range st.Seasons {
		for _, ep := range st.Detail.EpisodesFor(season) {
			if err := playlist.AddEpisode(st.Detail.Info.Name, ep, c.Series.EpisodeURL(ep)); err != nil {
				return err
			}
		}
	}
	return nil
}

var exportXMLTVCmd = &cobra.Command{
	Use:   "xmltv",
	Short: "Export program guides as XMLTV",
	Long: `Export the program guides of the live channels of a category (--category)
or of the favorite channels (--favorites) as one XMLTV document. Channels
whose guide cannot be fetched are listed without programmes and the command
fails after writing the document.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withContent(cmd, func(ctx context.Context, _ *app.App, c *app.Content) error {
			channels, err := exportChannels(ctx, c)
			if err != nil {
				return err
			}
			var buf bytes.Buffer
			guideErr := export.WriteGuide(ctx, &buf, channels, c.Channels.ProgramGuide, logger)
			if errors.Is(guideErr, context.Canceled) {
				return guideErr
			}
			if err := writeExport(cmd, buf.Bytes()); err != nil {
				return err
			}
			return guideErr
		})
	},
}

// exportChannels resolves the live channels selected by --category or
// --favorites.
func exportChannels(ctx context.Context, c *app.Content) ([]xtream.Channel, error) {
	switch {
	case exportOpts.favorites && exportOpts.category != "":
		return nil, errors.New("--category and --favorites are mutually exclusive")
	case exportOpts.favorites:
		if err := await(ctx, c.Channels.ShowFavorites()); err != nil {
			return nil, err
		}
		st := c.Channels.Snapshot()
		if st.ErrorMessage != "" {
			return nil, errors.New(st.ErrorMessage)
		}
		return st.Items, nil
	case exportOpts.category != "":
		if err := loadCategory(ctx, c.Channels.Catalog, exportOpts.category); err != nil {
			return nil, err
		}
		return c.Channels.State().Items, nil
	default:
		return nil, errors.New("one of --category or --favorites is required")
	}
}

func categoryName(categories *orchestrator.Categories, id string) string {
	if cat, ok := categories.Find(id); ok {
		return cat.Name
	}
	return ""
}

// writeExport writes data to --file, or to standard output.
func writeExport(cmd *cobra.Command, data []byte) error {
	if exportOpts.file == "" {
		_, err := cmd.OutOrStdout().Write(data)
		return err
	}

	pending, err := renameio.NewPendingFile(exportOpts.file, renameio.WithPermissions(0o644))
	if err != nil {
		return fmt.Errorf("create %s: %w", exportOpts.file, err)
	}
	defer func() { _ = pending.Cleanup() }()

	if _, err := io.Copy(pending, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("write %s: %w", exportOpts.file, err)
	}
	if err := pending.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("replace %s: %w", exportOpts.file, err)
	}
	logger.Info("export written", slog.String("file", exportOpts.file), slog.Int("bytes", len(data)))
	return nil
}

func init() {
	flags := exportCmd.PersistentFlags()
	flags.StringVarP(&exportOpts.file, "file", "f", "", "write to this file instead of standard output")
	flags.StringVarP(&exportOpts.category, "category", "c", "", "category to export")
	flags.BoolVar(&exportOpts.favorites, "favorites", false, "export the favorite channels")

	exportCmd.AddCommand(exportM3UCmd, exportXMLTVCmd)
	rootCmd.AddCommand(exportCmd)
}
