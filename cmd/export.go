package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/markview/markview/internal/config"
	"github.com/markview/markview/internal/core"
	"github.com/markview/markview/internal/source"
)

var (
	exportOutDir    string
	exportOpen      bool
	exportClipboard bool
)

var exportCmd = &cobra.Command{
	Use:     "export <file>...",
	Aliases: []string{"e"},
	Short:   "Export files as self-contained HTML",
	Long: `Export renders each file once and writes a standalone HTML file
with all local images inlined as data URIs. No server is started.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runExport,
}

func init() {
	exportCmd.Flags().StringVar(&exportOutDir, "out-dir", "", "target folder (default: alongside each source file)")
	exportCmd.Flags().BoolVar(&exportOpen, "open", false, "open each exported file in the browser")
	exportCmd.Flags().BoolVar(&exportClipboard, "clipboard", false, "copy the document to the clipboard instead of writing a file")
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	fs, err := source.NewFileSource(args, logger)
	if err != nil {
		return err
	}

	ctx := context.Background()
	c := core.New(cfg, fs, logger)
	// Export is synchronous; build the registry in the foreground instead
	// of starting the full system.
	c.Registry().Reload(cfg.Renderers.Ignored, cfg.Renderers.Options)

	for _, id := range fs.IDs() {
		out, err := c.Export(ctx, id, core.ExportOptions{
			ClipboardOnly: exportClipboard,
			TargetFolder:  exportOutDir,
			OpenAfter:     exportOpen,
		})
		if err != nil {
			return fmt.Errorf("exporting buffer %d: %w", id, err)
		}
		if out != "" {
			fmt.Fprintln(cmd.OutOrStdout(), out)
		}
	}
	return nil
}
