package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/atikulmunna/strand/internal/config"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var cfgFile string

// loaded is the configuration the running command was built from.
var (
	loadedMu sync.Mutex
	loaded   config.Config
)

// rootCmd is the base command when called without subcommands.
var rootCmd = &cobra.Command{
	Use:   "strand",
	Short: "Strand: one log stream, four transports",
	Long: `Strand follows the logs a server emits for one instance and lets you
switch live between short polling, long polling, server-sent events and a
socket.io connection to compare how each transport behaves.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&cfgFile, "config", "c", "", "config file (default: $HOME/.strand.yaml)")
	flags.StringP("base-url", "u", "", "server base URL (default http://localhost:3001)")
	flags.StringP("instance", "i", "", "instance id to follow (default: create one)")
	flags.StringP("transport", "t", "", "initial transport: short-polling, long-polling, sse, websocket")
	flags.String("log-file", "", "diagnostic log file")
	flags.String("log-level", "", "diagnostic log level: debug, info, warn, error")

	bindFlag(flags.Lookup("base-url"), "base_url")
	bindFlag(flags.Lookup("instance"), "instance")
	bindFlag(flags.Lookup("transport"), "transport")
	bindFlag(flags.Lookup("log-file"), "log_file")
	bindFlag(flags.Lookup("log-level"), "log_level")
}

func initConfig() {
	config.SetDefaults(viper.GetViper())

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		viper.AddConfigPath(home)
		viper.AddConfigPath(".")
		viper.SetConfigName(".strand")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix(config.EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && cfgFile != "" {
			fmt.Fprintf(os.Stderr, "strand: reading %s: %v\n", cfgFile, err)
		}
		return
	}

	viper.OnConfigChange(reloadConfig)
	viper.WatchConfig()
}

// reloadConfig applies a changed log_level live. Every other key is read
// once at startup; changes to them are reported and take effect on restart.
func reloadConfig(e fsnotify.Event) {
	level := viper.GetString("log_level")
	config.SetLogLevel(level)
	slog.Info("config reloaded", "file", e.Name, "op", e.Op.String(), "log_level", level)

	next, err := config.Load(viper.GetViper())
	if err != nil {
		slog.Warn("reloaded config is invalid", "file", e.Name, "error", err)
		return
	}
	loadedMu.Lock()
	keys := loaded.RestartKeys(next)
	loadedMu.Unlock()
	if len(keys) > 0 {
		slog.Warn("config changes take effect on restart", "keys", keys)
	}
}

func bindFlag(f *pflag.Flag, key string) {
	cobra.CheckErr(viper.BindPFlag(key, f))
}

// loadConfig resolves flags, environment and file into a validated Config.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return cfg, fmt.Errorf("loading config: %w", err)
	}
	loadedMu.Lock()
	loaded = cfg
	loadedMu.Unlock()
	return cfg, nil
}
