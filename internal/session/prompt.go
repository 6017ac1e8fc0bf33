package session

import (
	"context"
	"errors"

	"github.com/waabox/deviceauth/internal/auth"
)

// ErrPromptCancelled is returned by a Prompter when the user dismisses the verification prompt.
var ErrPromptCancelled = errors.New("verification cancelled by user")

// Prompter shows the verification instructions to the user.
// It may block until the user acknowledges; a returned error aborts the flow before polling.
type Prompter interface {
	ShowVerification(ctx context.Context, device auth.DeviceCodeResponse) error
}

// PollWatcher is optionally implemented by a Prompter that wants to know while polling runs.
type PollWatcher interface {
	PollingStarted(device auth.DeviceCodeResponse)
	PollingStopped(err error)
}
