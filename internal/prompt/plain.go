// Package prompt shows device verification instructions on a plain terminal.
package prompt

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"golang.org/x/term"

	"github.com/waabox/deviceauth/internal/auth"
	"github.com/waabox/deviceauth/internal/session"
)

// Plain writes the verification URL and code to Out and, when Interactive, waits for the
// user to open the browser, copy the code, or cancel.
type Plain struct {
	Out         io.Writer
	Interactive bool
	// Open launches the browser; defaults to OpenBrowser.
	Open func(url string) error

	// The reader goroutine scans one line per request, so stdin is never read
	// while no prompt is waiting.
	requests chan struct{}
	lines    chan string
	pending  bool
	eof      bool
	spinner  *spinner.Spinner
}

// NewPlain creates a prompter reading keys from in and writing to out.
func NewPlain(in io.Reader, out io.Writer, interactive bool) *Plain {
	p := &Plain{
		Out:         out,
		Interactive: interactive,
		Open:        OpenBrowser,
		requests:    make(chan struct{}, 1),
		lines:       make(chan string, 1),
	}
	if interactive {
		go p.readLines(in)
	}
	return p
}

// NewTerminal creates a prompter on stdin/stderr, interactive only when both are terminals.
func NewTerminal(noBrowser bool) *Plain {
	interactive := !noBrowser && term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stderr.Fd()))
	return NewPlain(os.Stdin, os.Stderr, interactive)
}

func (p *Plain) readLines(in io.Reader) {
	scanner := bufio.NewScanner(in)
	for range p.requests {
		if !scanner.Scan() {
			close(p.lines)
			return
		}
		p.lines <- strings.TrimSpace(scanner.Text())
	}
}

// requestLine asks the reader for the next line unless a request is already outstanding.
func (p *Plain) requestLine() {
	if p.pending || p.eof {
		return
	}
	p.pending = true
	p.requests <- struct{}{}
}

// ShowVerification prints the instructions and, in interactive mode, handles the key choices.
func (p *Plain) ShowVerification(ctx context.Context, device auth.DeviceCodeResponse) error {
	fmt.Fprintf(p.Out, "\nTo sign in, visit:\n\n  %s\n\nand enter the code:\n\n  %s\n\n", device.VerificationURI, device.UserCode)
	if !p.Interactive {
		return nil
	}

	for {
		fmt.Fprint(p.Out, "[o] open browser  [c] copy code  [q] cancel  (enter = open): ")
		var choice string
		p.requestLine()
		select {
		case <-ctx.Done():
			fmt.Fprintln(p.Out)
			return ctx.Err()
		case line, ok := <-p.lines:
			p.pending = false
			if !ok {
				p.eof = true
				// stdin closed; keep going without the browser.
				fmt.Fprintln(p.Out)
				return nil
			}
			choice = strings.ToLower(line)
		}

		switch choice {
		case "", "o":
			if err := p.Open(device.BrowserURL()); err != nil {
				fmt.Fprintf(p.Out, "Could not open a browser (%v); open the URL above manually.\n", err)
			}
			return nil
		case "c":
			if err := CopyToClipboard(p.Out, device.UserCode); err != nil {
				fmt.Fprintf(p.Out, "Could not copy the code: %v\n", err)
				continue
			}
			fmt.Fprintln(p.Out, "Code copied to clipboard.")
		case "q":
			return session.ErrPromptCancelled
		default:
			fmt.Fprintf(p.Out, "Unknown choice %q.\n", choice)
		}
	}
}

// PollingStarted shows a spinner while the flow waits for the user.
func (p *Plain) PollingStarted(device auth.DeviceCodeResponse) {
	fmt.Fprintf(p.Out, "Waiting for authorization (code expires in %s)...\n", device.Lifetime().Round(time.Second))
	if !p.Interactive {
		return
	}
	p.spinner = spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(p.Out))
	p.spinner.Suffix = " waiting for approval in the browser"
	p.spinner.Start()
}

// PollingStopped clears the spinner.
func (p *Plain) PollingStopped(err error) {
	if p.spinner != nil {
		p.spinner.Stop()
		p.spinner = nil
	}
	if err == nil {
		fmt.Fprintln(p.Out, "Authorization received.")
	}
}
