package prompt_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waabox/deviceauth/internal/auth"
	"github.com/waabox/deviceauth/internal/prompt"
	"github.com/waabox/deviceauth/internal/session"
)

var device = auth.DeviceCodeResponse{
	DeviceCode:              "D1",
	UserCode:                "ABCD-EFGH",
	VerificationURI:         "https://auth.example.com/activate",
	VerificationURIComplete: "https://auth.example.com/activate?user_code=ABCD-EFGH",
	ExpiresIn:               600,
}

func newPlain(input string) (*prompt.Plain, *bytes.Buffer, *[]string) {
	var out bytes.Buffer
	opened := &[]string{}
	p := prompt.NewPlain(strings.NewReader(input), &out, true)
	p.Open = func(url string) error {
		*opened = append(*opened, url)
		return nil
	}
	return p, &out, opened
}

func TestPlain_NonInteractivePrintsAndReturns(t *testing.T) {
	var out bytes.Buffer
	p := prompt.NewPlain(strings.NewReader(""), &out, false)

	require.NoError(t, p.ShowVerification(context.Background(), device))
	assert.Contains(t, out.String(), "https://auth.example.com/activate")
	assert.Contains(t, out.String(), "ABCD-EFGH")
	assert.NotContains(t, out.String(), "[o] open browser")
}

func TestPlain_EnterOpensCompleteURI(t *testing.T) {
	p, _, opened := newPlain("\n")

	require.NoError(t, p.ShowVerification(context.Background(), device))
	assert.Equal(t, []string{device.VerificationURIComplete}, *opened)
}

func TestPlain_CopyThenOpen(t *testing.T) {
	p, out, opened := newPlain("c\no\n")

	require.NoError(t, p.ShowVerification(context.Background(), device))
	assert.Contains(t, out.String(), "Code copied")
	assert.Contains(t, out.String(), "\x1b]52;c;")
	assert.Len(t, *opened, 1)
}

func TestPlain_QuitCancels(t *testing.T) {
	p, _, opened := newPlain("q\n")

	err := p.ShowVerification(context.Background(), device)
	assert.ErrorIs(t, err, session.ErrPromptCancelled)
	assert.Empty(t, *opened)
}

func TestPlain_BrowserFailureIsNotFatal(t *testing.T) {
	p, out, _ := newPlain("o\n")
	p.Open = func(string) error { return errors.New("no display") }

	require.NoError(t, p.ShowVerification(context.Background(), device))
	assert.Contains(t, out.String(), "open the URL above manually")
}

func TestPlain_ClosedInputContinues(t *testing.T) {
	p, _, opened := newPlain("")

	require.NoError(t, p.ShowVerification(context.Background(), device))
	assert.Empty(t, *opened)
}

func TestPlain_ContextCancelled(t *testing.T) {
	pr, _ := io.Pipe()
	var out bytes.Buffer
	p := prompt.NewPlain(pr, &out, true)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, p.ShowVerification(ctx, device), context.Canceled)
}

func TestPlain_PollingMessages(t *testing.T) {
	var out bytes.Buffer
	p := prompt.NewPlain(strings.NewReader(""), &out, false)

	p.PollingStarted(device)
	p.PollingStopped(nil)
	assert.Contains(t, out.String(), "code expires in 10m0s")
	assert.Contains(t, out.String(), "Authorization received.")
}

func TestPlain_DoesNotReadInputBetweenPrompts(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()
	var out bytes.Buffer
	p := prompt.NewPlain(pr, &out, true)
	p.Open = func(string) error { return nil }

	go func() { _, _ = pw.Write([]byte("o\n")) }()
	require.NoError(t, p.ShowVerification(context.Background(), device))

	written := make(chan struct{})
	go func() {
		_, _ = pw.Write([]byte("q\n"))
		close(written)
	}()

	select {
	case <-written:
		t.Fatal("input was consumed while no prompt was waiting")
	case <-time.After(50 * time.Millisecond):
	}

	assert.ErrorIs(t, p.ShowVerification(context.Background(), device), session.ErrPromptCancelled)
	<-written
}
