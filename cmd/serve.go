package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/markview/markview/internal/config"
	"github.com/markview/markview/internal/core"
	"github.com/markview/markview/internal/source"
)

const shutdownTimeout = 5 * time.Second

var serveOpen bool

var serveCmd = &cobra.Command{
	Use:     "serve <file>...",
	Aliases: []string{"s"},
	Short:   "Serve a live preview of the given files",
	Long: `Serve starts the preview server over the given files. Each file
becomes one buffer; writing to a file refreshes its preview through the
debounced pipeline, exactly as editor keystroke events would.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&serveOpen, "open", false, "open the first file's preview in the browser")
	serveCmd.Flags().Int("port", 0, "listen port")
	serveCmd.Flags().String("host", "", "listen host")
	_ = viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
	_ = viper.BindPFlag("server.host", serveCmd.Flags().Lookup("host"))
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	fs, err := source.NewFileSource(args, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c := core.New(cfg, fs, logger)
	fs.OnModified = c.OnModified
	fs.OnRemoved = c.OnClosed

	if err := fs.Start(ctx); err != nil {
		return err
	}
	defer fs.Stop()

	if err := c.Start(ctx); err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		c.Stop(shutdownCtx)
	}()

	for _, id := range fs.IDs() {
		c.OnLoaded(id)
	}

	// Settings edits apply live: binding changes restart the listener,
	// renderer changes rebuild the registry.
	viper.OnConfigChange(func(fsnotify.Event) {
		newCfg, err := config.Load()
		if err != nil {
			logger.Warn(ctx, err, "ignoring invalid configuration change")
			return
		}
		if err := c.ApplySettings(ctx, newCfg); err != nil {
			logger.Error(ctx, err, "applying settings")
		}
	})
	viper.WatchConfig()

	if serveOpen {
		ids := fs.IDs()
		if err := c.OpenPreview(ctx, ids[0]); err != nil {
			logger.Warn(ctx, err, "could not open browser")
		}
	} else {
		for _, id := range fs.IDs() {
			fmt.Fprintf(cmd.OutOrStdout(), "http://%s/view/%d\n", c.Addr(), id)
		}
	}

	<-ctx.Done()
	return nil
}
