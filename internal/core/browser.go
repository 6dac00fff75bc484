package core

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"strings"

	"github.com/markview/markview/internal/logging"
)

// openBrowser launches the user's configured browser command, or the
// platform opener when none is set.
func openBrowser(ctx context.Context, url, command string, logger logging.Logger) error {
	var cmd *exec.Cmd
	if command != "" {
		parts := strings.Fields(command)
		cmd = exec.Command(parts[0], append(parts[1:], url)...)
	} else {
		switch runtime.GOOS {
		case "darwin":
			cmd = exec.Command("open", url)
		case "windows":
			cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
		default:
			cmd = exec.Command("xdg-open", url)
		}
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("opening browser: %w", err)
	}
	logger.Info(ctx, "opened browser", "url", url)
	return nil
}
