// Package cmd provides the command-line interface. Configuration comes
// from, in ascending precedence: the .markview.yml config file, MARKVIEW_*
// environment variables, and command-line flags.
package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/markview/markview/internal/config"
	"github.com/markview/markview/internal/logging"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "markview",
	Short: "Live preview server for lightweight markup documents",
	Long: `markview renders Markdown and friends to HTML and serves a live,
self-refreshing preview in your browser.

Quick start:
  markview serve README.md        Serve a live preview of README.md
  markview export README.md       Write a self-contained README.html

The preview page polls the server and updates in place as the source file
changes; saves refresh immediately, bursts of edits are debounced.`,
}

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default .markview.yml)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "text", "log format (text, json)")

	// flag names use dashes, config keys use underscores
	rootCmd.PersistentFlags().VisitAll(func(f *pflag.Flag) {
		if f.Name == "config" {
			return
		}
		key := strings.ReplaceAll(f.Name, "-", "_")
		_ = viper.BindPFlag(key, f)
	})
}

func initConfig() {
	config.SetDefaults()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			viper.AddConfigPath(home)
		}
		viper.SetConfigType("yaml")
		viper.SetConfigName(".markview")
	}

	viper.SetEnvPrefix("MARKVIEW")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func newLogger(cfg *config.Config) logging.Logger {
	return logging.NewLogger(&logging.Config{
		Level:  logging.ParseLevel(cfg.LogLevel),
		Format: cfg.LogFormat,
		Output: os.Stderr,
	})
}
