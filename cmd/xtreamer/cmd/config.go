package cmd

import (
	"fmt"
	"io"
	"reflect"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/jmylchreest/xtreamer/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management commands",
	Long:  `Commands for managing xtreamer configuration.`,
}

var configDumpEffective bool

var configDumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Dump the default configuration",
	Long: `Dump the default configuration values in YAML format.

This shows all available configuration options with their default values.
You can redirect this output to a file to create a configuration template:

  xtreamer config dump > xtreamer.yaml

With --effective the loaded configuration is dumped instead, with the panel
password masked.

Configuration can be set via:
  - Config file (./xtreamer.yaml, $HOME/.config/xtreamer/xtreamer.yaml, /etc/xtreamer/xtreamer.yaml)
  - Environment variables (XTREAMER_PANEL_HOST, XTREAMER_SERVER_PORT, etc.)
  - Command-line flags (for some options)

Environment variables use the XTREAMER_ prefix and underscores for nesting.
Example: server.port -> XTREAMER_SERVER_PORT`,
	Args: cobra.NoArgs,
	RunE: runConfigDump,
}

func init() {
	configDumpCmd.Flags().BoolVar(&configDumpEffective, "effective", false, "dump the loaded configuration instead of the defaults")
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configDumpCmd)
}

// toMap converts a config struct to a map keyed by yaml tag, formatting
// durations for human readability.
func toMap(v any) map[string]any {
	result := make(map[string]any)
	val := reflect.ValueOf(v)
	if val.Kind() == reflect.Ptr {
		val = val.Elem()
	}
	typ := val.Type()

	for i := 0; i < val.NumField(); i++ {
		field := val.Field(i)
		fieldType := typ.Field(i)
		if !fieldType.IsExported() {
			continue
		}

		key, _, _ := strings.Cut(fieldType.Tag.Get("yaml"), ",")
		if key == "" {
			key = strings.ToLower(fieldType.Name)
		}

		switch fv := field.Interface().(type) {
		case time.Duration:
			result[key] = fv.String()
		case []string:
			if fv == nil {
				fv = []string{}
			}
			result[key] = fv
		default:
			if field.Kind() == reflect.Struct {
				result[key] = toMap(field.Interface())
			} else {
				result[key] = fv
			}
		}
	}
	return result
}

func runConfigDump(cmd *cobra.Command, _ []string) error {
	var dump *config.Config
	if configDumpEffective {
		masked := *cfg
		if masked.Panel.Password != "" {
			masked.Panel.Password = "********"
		}
		dump = &masked
	} else {
		defaults, err := defaultConfig()
		if err != nil {
			return err
		}
		dump = defaults
	}

	yamlData, err := yaml.Marshal(toMap(dump))
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	out := cmd.OutOrStdout()
	writeConfigHeader(out, configDumpEffective)
	_, err = out.Write(yamlData)
	return err
}

// defaultConfig decodes the built-in defaults without reading any file or
// environment variable.
func defaultConfig() (*config.Config, error) {
	v := viper.New()
	config.SetDefaults(v)
	var c config.Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}
	return &c, nil
}

func writeConfigHeader(w io.Writer, effective bool) {
	fmt.Fprintln(w, "# xtreamer Configuration File")
	fmt.Fprintln(w, "# ============================")
	fmt.Fprintln(w, "#")
	if effective {
		fmt.Fprintln(w, "# Values shown below are the loaded configuration.")
	} else {
		fmt.Fprintln(w, "# All values shown below are defaults.")
	}
	fmt.Fprintln(w, "# Duration format: 500ms, 30s, 5m, 1h")
	fmt.Fprintln(w, "#")
	fmt.Fprintln(w, "# Environment variable overrides:")
	fmt.Fprintln(w, "#   XTREAMER_PANEL_HOST, XTREAMER_PANEL_PORT")
	fmt.Fprintln(w, "#   XTREAMER_PANEL_USERNAME, XTREAMER_PANEL_PASSWORD")
	fmt.Fprintln(w, "#   XTREAMER_FAVORITES_BACKEND, XTREAMER_FAVORITES_DATABASE_DSN")
	fmt.Fprintln(w, "#   XTREAMER_SERVER_HOST, XTREAMER_SERVER_PORT")
	fmt.Fprintln(w, "#   XTREAMER_LOGGING_LEVEL, XTREAMER_LOGGING_FORMAT")
	fmt.Fprintln(w, "#   etc.")
	fmt.Fprintln(w, "#")
	fmt.Fprintln(w)
}
