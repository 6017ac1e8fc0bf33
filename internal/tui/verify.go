// Package tui renders the device verification prompt as a full-screen Bubbletea view.
package tui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/waabox/deviceauth/internal/auth"
	"github.com/waabox/deviceauth/internal/prompt"
	"github.com/waabox/deviceauth/internal/session"
)

const separator = "────────────────────────────────────────────────────────────\n"

// browserOpenedMsg reports the result of opening the verification URL.
type browserOpenedMsg struct{ err error }

// codeCopiedMsg reports the result of copying the user code.
type codeCopiedMsg struct{ err error }

// VerifyModel is the Bubbletea model for the verification screen.
type VerifyModel struct {
	device auth.DeviceCodeResponse
	open   func(string) error
	copy   func(string) error

	status    string
	accepted  bool
	cancelled bool
}

// NewVerifyModel creates the model. open and copyCode default to the prompt package helpers.
func NewVerifyModel(device auth.DeviceCodeResponse, open, copyCode func(string) error) VerifyModel {
	if open == nil {
		open = prompt.OpenBrowser
	}
	if copyCode == nil {
		copyCode = func(code string) error { return prompt.CopyToClipboard(os.Stderr, code) }
	}
	return VerifyModel{device: device, open: open, copy: copyCode}
}

// Init does nothing; the model waits for keys.
func (m VerifyModel) Init() tea.Cmd {
	return nil
}

// Accepted reports whether the user moved on to the browser.
func (m VerifyModel) Accepted() bool { return m.accepted }

// Cancelled reports whether the user dismissed the prompt.
func (m VerifyModel) Cancelled() bool { return m.cancelled }

func (m VerifyModel) openBrowser() tea.Cmd {
	url := m.device.BrowserURL()
	return func() tea.Msg {
		return browserOpenedMsg{err: m.open(url)}
	}
}

func (m VerifyModel) copyCode() tea.Cmd {
	code := m.device.UserCode
	return func() tea.Msg {
		return codeCopiedMsg{err: m.copy(code)}
	}
}

// Update handles key presses and the results of browser and clipboard commands.
func (m VerifyModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case browserOpenedMsg:
		// A failed launch is not fatal: the URL is on screen.
		m.accepted = true
		return m, tea.Quit
	case codeCopiedMsg:
		if msg.err != nil {
			m.status = fmt.Sprintf("Could not copy the code: %v", msg.err)
		} else {
			m.status = "Code copied to clipboard."
		}
		return m, nil
	case tea.KeyMsg:
		switch msg.String() {
		case "o", "enter":
			m.status = "Opening browser..."
			return m, m.openBrowser()
		case "c":
			return m, m.copyCode()
		case "esc", "q", "ctrl+c":
			m.cancelled = true
			return m, tea.Quit
		}
	}
	return m, nil
}

// View renders the verification screen.
func (m VerifyModel) View() string {
	header := " deviceauth | Sign in\n"
	body := fmt.Sprintf(
		"\n Visit:  %s\n"+
			" Code:   %s\n\n"+
			" The code expires in %s.\n\n",
		m.device.VerificationURI, m.device.UserCode, m.device.Lifetime())
	if m.status != "" {
		body += " " + m.status + "\n\n"
	}
	footer := " o/enter: open browser   c: copy code   esc: cancel\n"
	return header + separator + body + separator + footer
}

// Prompter shows the verification screen and blocks until the user opens the browser or cancels.
type Prompter struct {
	Output io.Writer
	Input  io.Reader
}

// ShowVerification runs the Bubbletea program for device.
func (p Prompter) ShowVerification(ctx context.Context, device auth.DeviceCodeResponse) error {
	opts := []tea.ProgramOption{tea.WithContext(ctx), tea.WithAltScreen()}
	if p.Output != nil {
		opts = append(opts, tea.WithOutput(p.Output))
	} else {
		opts = append(opts, tea.WithOutput(os.Stderr))
	}
	if p.Input != nil {
		opts = append(opts, tea.WithInput(p.Input))
	}

	final, err := tea.NewProgram(NewVerifyModel(device, nil, nil), opts...).Run()
	if err != nil {
		if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("running verification prompt: %w", err)
	}
	if m, ok := final.(VerifyModel); ok && m.Cancelled() {
		return session.ErrPromptCancelled
	}
	return nil
}
