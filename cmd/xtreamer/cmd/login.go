package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/xtreamer/internal/app"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Check the panel credentials and show the account",
	Long: `Log in to the panel with the configured credentials and print the
account details returned by the panel.

Credentials come from the config file, XTREAMER_PANEL_* environment
variables or the --scheme, --host, --port, --username and --password flags.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withContent(cmd, func(_ context.Context, a *app.App, _ *app.Content) error {
			st := a.Login.State()
			logger.Info("logged in", slog.String("host", st.Host), slog.String("username", st.Username))
			return render(cmd, st, func(w io.Writer) {
				acct := st.Account
				if acct == nil {
					row(w, st.SuccessMessage)
					return
				}
				expires := "never"
				if !acct.ExpiresAt.IsZero() {
					expires = acct.ExpiresAt.Local().Format(time.DateTime)
				}
				row(w, "USERNAME", "STATUS", "EXPIRES", "TRIAL", "CONNECTIONS", "SERVER")
				row(w, acct.Username, acct.Status, expires, acct.IsTrial,
					fmt.Sprintf("%d/%d", acct.ActiveConnections, acct.MaxConnections), acct.ServerURL)
			})
		})
	},
}

func init() {
	rootCmd.AddCommand(loginCmd)
}
