package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/xtreamer/internal/app"
	"github.com/jmylchreest/xtreamer/internal/playback"
	"github.com/jmylchreest/xtreamer/pkg/xtream"
)

var (
	playExt   string
	playTitle string
)

var playCmd = &cobra.Command{
	Use:   "play <live|movie|series> <id>",
	Short: "Play a stream in the external player",
	Long: `Build the playable URL of a live channel, movie or series episode and
open it in the player configured under player.command (mpv by default).

The command returns when the player exits. Interrupting xtreamer stops the
player.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ct, err := xtream.ParseContentType(args[0])
		if err != nil {
			return err
		}
		return withContent(cmd, func(ctx context.Context, a *app.App, c *app.Content) error {
			media, err := playbackMedia(ctx, c, ct, args[1], playExt, playTitle)
			if err != nil {
				return err
			}
			return play(ctx, a.NewPlayer(), media)
		})
	},
}

// playbackMedia describes the stream to open. Movies without an explicit
// extension or title take them from the movie detail.
func playbackMedia(ctx context.Context, c *app.Content, ct xtream.ContentType, id, ext, title string) (playback.Media, error) {
	if ct == xtream.ContentMovie && (ext == "" || title == "") {
		if err := await(ctx, c.Movies.LoadDetail(id)); err != nil {
			return playback.Media{}, err
		}
		if d := c.Movies.Detail().Detail; d != nil {
			if ext == "" {
				ext = d.Movie.ContainerExtension
			}
			if title == "" {
				title = d.Info.Name
			}
		}
	}

	url, err := streamURL(c, ct, id, ext)
	if err != nil {
		return playback.Media{}, err
	}
	if title == "" {
		title = fmt.Sprintf("%s %s", ct, id)
	}
	return playback.Media{URL: url, Title: title, Live: ct == xtream.ContentLive}, nil
}

// play opens media and blocks until playback ends, faults or ctx is
// cancelled.
func play(ctx context.Context, player *playback.Controller, media playback.Media) error {
	defer player.Release()

	sub := player.Subscribe()
	defer sub.Cancel()

	if err := player.Open(ctx, media); err != nil {
		return err
	}
	logger.Info("playing", slog.String("title", media.Title), slog.Bool("live", media.Live))

	for {
		select {
		case <-ctx.Done():
			return nil
		case st, ok := <-sub.Updates:
			if !ok {
				return nil
			}
			switch st.State {
			case playback.StateFaulted:
				if st.Err != nil {
					return st.Err
				}
				return errors.New(st.ErrorMessage)
			case playback.StatePaused, playback.StateReleased:
				logger.Debug("playback finished", slog.String("state", string(st.State)))
				return nil
			}
		}
	}
}

func init() {
	playCmd.Flags().StringVar(&playExt, "ext", "", "container extension for movies and episodes")
	playCmd.Flags().StringVar(&playTitle, "title", "", "title shown in logs")
	rootCmd.AddCommand(playCmd)
}
