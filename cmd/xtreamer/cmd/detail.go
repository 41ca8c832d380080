package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/xtreamer/internal/app"
	"github.com/jmylchreest/xtreamer/pkg/xtream"
)

var epgCmd = &cobra.Command{
	Use:   "epg <stream-id>",
	Short: "Show the program guide of a live channel",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withContent(cmd, func(ctx context.Context, _ *app.App, c *app.Content) error {
			programs, err := c.Channels.ProgramGuide(ctx, args[0])
			if err != nil {
				return err
			}
			return render(cmd, programs, func(w io.Writer) {
				row(w, "START", "END", "TITLE")
				for _, p := range programs {
					row(w, p.StartTime().Local().Format(time.DateTime), p.EndTime().Local().Format("15:04"), p.Title)
				}
			})
		})
	},
}

var detailSeason int

var detailCmd = &cobra.Command{
	Use:   "detail <movie|series> <id>",
	Short: "Show the details of a movie or series",
	Long: `Show the details of a movie, or of a series and the episodes of one of its
seasons. Without --season the lowest season is shown.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ct, err := xtream.ParseContentType(args[0])
		if err != nil {
			return err
		}
		return withContent(cmd, func(ctx context.Context, _ *app.App, c *app.Content) error {
			switch ct {
			case xtream.ContentMovie:
				return movieDetail(ctx, cmd, c, args[1])
			case xtream.ContentSeries:
				return seriesDetail(ctx, cmd, c, args[1], detailSeason)
			default:
				return fmt.Errorf("%s has no detail view", ct)
			}
		})
	},
}

func movieDetail(ctx context.Context, cmd *cobra.Command, c *app.Content, id string) error {
	if err := await(ctx, c.Movies.LoadDetail(id)); err != nil {
		return err
	}
	st := c.Movies.Detail()
	if st.ErrorMessage != "" {
		return errors.New(st.ErrorMessage)
	}
	return render(cmd, st, func(w io.Writer) {
		info := st.Detail.Info
		row(w, "NAME", info.Name)
		row(w, "GENRE", info.Genre)
		row(w, "RELEASED", info.ReleaseDate)
		row(w, "DURATION", info.Duration)
		row(w, "RATING", fmt.Sprintf("%.1f", info.Rating.Float()))
		row(w, "DIRECTOR", info.Director)
		row(w, "CAST", info.Cast)
		row(w, "PLOT", info.Plot)
		row(w, "EXT", st.Detail.Movie.ContainerExtension)
	})
}

func seriesDetail(ctx context.Context, cmd *cobra.Command, c *app.Content, id string, season int) error {
	if err := await(ctx, c.Series.LoadDetail(id)); err != nil {
		return err
	}
	st := c.Series.Detail()
	if st.ErrorMessage != "" {
		return errors.New(st.ErrorMessage)
	}
	if season > 0 {
		if err := c.Series.SelectSeason(season); err != nil {
			return err
		}
		st = c.Series.Detail()
	}

	return render(cmd, st, func(w io.Writer) {
		seasons := make([]string, 0, len(st.Seasons))
		for _, n := range st.Seasons {
			seasons = append(seasons, strconv.Itoa(n))
		}
		fmt.Fprintf(w, "%s\nseasons: %s (showing %d)\n\n", st.Detail.Info.Name, strings.Join(seasons, ", "), st.SelectedSeason)
		row(w, "ID", "EPISODE", "TITLE", "DURATION", "EXT")
		for _, ep := range st.Episodes {
			row(w, ep.ID, ep.EpisodeNum, ep.Title, ep.Info.Duration, ep.ContainerExtension)
		}
	})
}

var urlExt string

var urlCmd = &cobra.Command{
	Use:   "url <live|movie|series> <id>",
	Short: "Print the playable URL of a stream",
	Long: `Print the playable URL of a live channel, movie or series episode. Live
streams are always HLS; movies and episodes use --ext, defaulting to mp4.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ct, err := xtream.ParseContentType(args[0])
		if err != nil {
			return err
		}
		return withContent(cmd, func(_ context.Context, _ *app.App, c *app.Content) error {
			url, err := streamURL(c, ct, args[1], urlExt)
			if err != nil {
				return err
			}
			return render(cmd, map[string]string{"url": url}, func(w io.Writer) {
				fmt.Fprintln(w, url)
			})
		})
	},
}

// streamURL builds the playable URL of a stream of type ct.
func streamURL(c *app.Content, ct xtream.ContentType, id, ext string) (string, error) {
	id = strings.TrimSpace(id)
	if _, err := strconv.ParseInt(id, 10, 64); err != nil {
		return "", fmt.Errorf("invalid stream id %q", id)
	}
	ext = strings.TrimPrefix(ext, ".")
	switch ct {
	case xtream.ContentLive:
		return c.Channels.StreamURL(id), nil
	case xtream.ContentMovie:
		return c.Movies.StreamURLByID(id, ext), nil
	default:
		return c.Series.EpisodeURLByID(id, ext), nil
	}
}

func init() {
	detailCmd.Flags().IntVarP(&detailSeason, "season", "s", 0, "season to list episodes for")
	urlCmd.Flags().StringVar(&urlExt, "ext", "", "container extension for movies and episodes")

	rootCmd.AddCommand(epgCmd, detailCmd, urlCmd)
}
