package prompt

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"

	"github.com/aymanbagabas/go-osc52/v2"
)

// OpenBrowser opens url in the user's default browser without waiting for it to exit.
func OpenBrowser(url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "linux", "freebsd", "openbsd":
		cmd = exec.Command("xdg-open", url)
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		return fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("opening browser: %w", err)
	}
	// Reap the child; its exit status says nothing useful.
	go func() { _ = cmd.Wait() }()
	return nil
}

// CopyToClipboard asks the terminal behind w to put text on the clipboard.
// It works over SSH and inside tmux; terminals without OSC 52 ignore it.
func CopyToClipboard(w io.Writer, text string) error {
	seq := osc52.New(text)
	if os.Getenv("TMUX") != "" {
		seq = seq.Tmux()
	}
	_, err := seq.WriteTo(w)
	return err
}
