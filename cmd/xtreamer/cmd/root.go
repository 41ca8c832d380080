// Package cmd implements the CLI commands for xtreamer.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/jmylchreest/xtreamer/internal/app"
	"github.com/jmylchreest/xtreamer/internal/config"
	"github.com/jmylchreest/xtreamer/internal/observability"
	"github.com/jmylchreest/xtreamer/internal/version"
)

var (
	// cfgFile holds the config file path from CLI flag.
	cfgFile string
	// cfg is the configuration loaded before every command runs.
	cfg *config.Config
	// logger is the process logger, set up from cfg.
	logger *slog.Logger
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:     version.ApplicationName,
	Short:   "Browse and play an Xtream Codes IPTV panel",
	Version: version.Short(),
	Long: `xtreamer logs in to an Xtream Codes panel and browses its live channels,
movies and series from the command line.

It lists categories and items, searches what has been browsed, shows movie
and series details and the program guide of a channel, keeps a set of
favorite channels, builds playable stream URLs and hands them to an external
player. The same operations are available over HTTP with "xtreamer serve".`,
	SilenceUsage: true,
	// PersistentPreRunE is set in init() to avoid initialization cycle
}

// Execute adds all child commands to the root command and sets flags appropriately.
// Commands run under a context cancelled by SIGINT or SIGTERM.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		return fmt.Errorf("executing root command: %w", err)
	}
	return nil
}

func init() {
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		if err := loadConfig(cmd.Flags()); err != nil {
			return err
		}
		return initLogging()
	}

	// These flags are not bound to viper: they only override the config and
	// environment when set explicitly, so a flag default never hides
	// XTREAMER_PANEL_HOST and friends.
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is ./xtreamer.yaml, $HOME/.config/xtreamer/xtreamer.yaml)")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
	flags.String("log-format", "text", "log format (text, json)")
	flags.StringP("output", "o", outputTable, "output format (table, json, yaml)")

	flags.String("scheme", "", "panel URL scheme (http, https)")
	flags.String("host", "", "panel host")
	flags.String("port", "", "panel port")
	flags.StringP("username", "u", "", "panel username")
	flags.StringP("password", "p", "", "panel password (prefer XTREAMER_PANEL_PASSWORD)")
}

// loadConfig reads the config file and environment, then applies the panel
// flags that were set on the command line.
func loadConfig(flags *pflag.FlagSet) error {
	loaded, err := config.LoadWith(viper.GetViper(), cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	overrides := map[string]*string{
		"scheme":   &loaded.Panel.Scheme,
		"host":     &loaded.Panel.Host,
		"port":     &loaded.Panel.Port,
		"username": &loaded.Panel.Username,
		"password": &loaded.Panel.Password,
	}
	for name, field := range overrides {
		if flags.Changed(name) {
			*field, _ = flags.GetString(name)
		}
	}

	cfg = loaded
	return nil
}

// initLogging configures the slog logger.
//
// Priority order (highest to lowest):
//  1. CLI flags (--log-level, --log-format) - only if explicitly provided
//  2. Environment variables (XTREAMER_LOGGING_LEVEL, XTREAMER_LOGGING_FORMAT)
//  3. Config file values
//  4. Built-in defaults (info, text)
func initLogging() error {
	logCfg := cfg.Logging
	if rootCmd.PersistentFlags().Changed("log-level") {
		logCfg.Level, _ = rootCmd.PersistentFlags().GetString("log-level")
	}
	if rootCmd.PersistentFlags().Changed("log-format") {
		logCfg.Format, _ = rootCmd.PersistentFlags().GetString("log-format")
	}
	logCfg.Level = strings.ToLower(logCfg.Level)
	logCfg.Format = strings.ToLower(logCfg.Format)

	logger = observability.WithApp(observability.NewLoggerWithWriter(logCfg, os.Stderr), version.ApplicationName)
	observability.SetDefault(logger)
	return nil
}

// withApp runs fn with an application built from the loaded config.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) error {
	ctx := cmd.Context()
	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := a.Close(); cerr != nil {
			logger.Warn("closing application", slog.String("error", cerr.Error()))
		}
	}()
	return fn(ctx, a)
}

// withContent logs in with the configured credentials before running fn.
func withContent(cmd *cobra.Command, fn func(ctx context.Context, a *app.App, c *app.Content) error) error {
	return withApp(cmd, func(ctx context.Context, a *app.App) error {
		c, err := a.Connect(ctx)
		if err != nil {
			return fmt.Errorf("login: %w", err)
		}
		return fn(ctx, a, c)
	})
}

// await blocks until done closes or ctx ends.
func await(ctx context.Context, done <-chan struct{}) error {
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
