package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/goliatone/go-enhance/internal/logging"
	"github.com/goliatone/go-enhance/pkg/manager"
	"github.com/goliatone/go-enhance/pkg/settings"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "enhanced",
	Short: "Layered configuration manager for a local proxy engine",
	Long: `enhanced stores configuration profiles, merges them through the
enhancement pipeline, validates the result, and atomically swaps it into
the running engine. A rejected configuration never replaces the last
known-good one.

Configuration sources, strongest first: command-line flags, ENHANCE_*
environment variables, settings.yaml in the data directory, built-in
defaults.`,
	SilenceUsage: true,
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "bootstrap config file (flags and ENHANCE_* env still win)")
	flags.String("dir", "", "data directory (default: user config dir + /enhance)")
	flags.String("engine-addr", "", "engine control API address, host:port")
	flags.String("engine-secret", "", "engine control API bearer token")
	flags.String("log-level", "", "log level: debug, info, warn, error")
	flags.Bool("log-json", false, "emit JSON logs")

	for _, name := range []string{"dir", "engine-addr", "engine-secret", "log-level", "log-json"} {
		if err := viper.BindPFlag(name, flags.Lookup(name)); err != nil {
			panic(err)
		}
	}
}

func initConfig() {
	viper.SetEnvPrefix("ENHANCE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
		if err := viper.ReadInConfig(); err != nil {
			fmt.Fprintf(os.Stderr, "enhanced: read config %s: %v\n", cfgFile, err)
		}
	}
}

func dataDir() string {
	if dir := viper.GetString("dir"); dir != "" {
		return dir
	}
	base, err := os.UserConfigDir()
	if err != nil {
		return "enhance"
	}
	return filepath.Join(base, "enhance")
}

func newLogger() *slog.Logger {
	return logging.New(os.Stderr, viper.GetString("log-level"), viper.GetBool("log-json"))
}

// flagSettingsLayer projects the engine and logging flags into a settings
// layer resolved above settings.yaml.
func flagSettingsLayer() (settings.Layer, bool) {
	var value settings.Settings
	set := false
	if addr := viper.GetString("engine-addr"); addr != "" {
		value.Engine.ExternalController = &addr
		set = true
	}
	if secret := viper.GetString("engine-secret"); secret != "" {
		value.Engine.Secret = &secret
		set = true
	}
	if level := viper.GetString("log-level"); level != "" {
		value.Logging.Level = &level
		set = true
	}
	if !set {
		return settings.Layer{}, false
	}
	return settings.Layer{
		Source: settings.Source{Name: "flags", Level: settings.LevelFlag},
		Value:  value,
	}, true
}

func newManager(log *slog.Logger, opts ...manager.Option) (*manager.Manager, error) {
	opts = append(opts, manager.WithLogger(log))
	if layer, ok := flagSettingsLayer(); ok {
		opts = append(opts, manager.WithSettingsLayers(layer))
	}
	return manager.New(dataDir(), opts...)
}
