package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/xtreamer/internal/app"
	"github.com/jmylchreest/xtreamer/pkg/xtream"
)

var favoritesCmd = &cobra.Command{
	Use:     "favorites",
	Aliases: []string{"fav"},
	Short:   "Manage favorite live channels",
	Long: `Manage the set of favorite live channels. Favorites are stored by stream
id in the configured favorites backend and do not need a panel login, except
for "show" and "toggle" which work against the channel catalog.`,
}

func listFavorites(cmd *cobra.Command, ids []string) error {
	return render(cmd, map[string][]string{"favorites": ids}, func(w io.Writer) {
		row(w, "STREAM ID")
		for _, id := range ids {
			row(w, id)
		}
	})
}

var favoritesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List favorite stream ids",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(cmd, func(_ context.Context, a *app.App) error {
			return listFavorites(cmd, a.Favorites.List())
		})
	},
}

var favoritesAddCmd = &cobra.Command{
	Use:   "add <stream-id>...",
	Short: "Add channels to the favorites",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			for _, id := range args {
				if err := a.Favorites.Add(ctx, id); err != nil {
					return err
				}
			}
			return listFavorites(cmd, a.Favorites.List())
		})
	},
}

var favoritesRemoveCmd = &cobra.Command{
	Use:     "remove <stream-id>...",
	Aliases: []string{"rm"},
	Short:   "Remove channels from the favorites",
	Args:    cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			for _, id := range args {
				if err := a.Favorites.Remove(ctx, id); err != nil {
					return err
				}
			}
			return listFavorites(cmd, a.Favorites.List())
		})
	},
}

var favoritesToggleCmd = &cobra.Command{
	Use:   "toggle <stream-id>",
	Short: "Add or remove a channel from the favorites",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withContent(cmd, func(ctx context.Context, _ *app.App, c *app.Content) error {
			favorite, err := c.Channels.ToggleFavorite(ctx, args[0])
			if err != nil {
				return err
			}
			out := struct {
				StreamID string `json:"stream_id"`
				Favorite bool   `json:"favorite"`
			}{args[0], favorite}
			return render(cmd, out, func(w io.Writer) {
				verb := "removed from"
				if favorite {
					verb = "added to"
				}
				fmt.Fprintf(w, "%s %s favorites\n", args[0], verb)
			})
		})
	},
}

var favoritesShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the favorite channels",
	Long: `Resolve the favorite stream ids against the live catalog and list the
matching channels. Categories are browsed in order until every favorite is
found; ids that match no channel are reported on standard error.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withContent(cmd, func(ctx context.Context, _ *app.App, c *app.Content) error {
			if err := await(ctx, c.Channels.ShowFavorites()); err != nil {
				return err
			}
			st := c.Channels.Snapshot()
			if st.ErrorMessage != "" {
				return errors.New(st.ErrorMessage)
			}

			found := make(map[string]bool, len(st.Items))
			for _, ch := range st.Items {
				found[ch.StreamID.String()] = true
			}
			for _, id := range st.Favorites {
				if !found[id] {
					fmt.Fprintf(cmd.ErrOrStderr(), "favorite %s not found in the live catalog\n", id)
				}
			}

			view := catalogViews[xtream.ContentLive].(catalogView[xtream.Channel])
			return view.render(cmd.OutOrStdout(), outputFormat(cmd), st.ListState)
		})
	},
}

func init() {
	favoritesCmd.AddCommand(favoritesListCmd, favoritesAddCmd, favoritesRemoveCmd, favoritesToggleCmd, favoritesShowCmd)
	rootCmd.AddCommand(favoritesCmd)
}
