// Package cli implements the deviceauth command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/waabox/deviceauth/internal/app"
	"github.com/waabox/deviceauth/internal/config"
	"github.com/waabox/deviceauth/internal/domain"
	"github.com/waabox/deviceauth/internal/session"
)

// Exit codes for CLI commands.
const (
	ExitCodeSuccess      = 0
	ExitCodeError        = 1
	ExitCodeAuthRequired = 2
	ExitCodeAuthFailed   = 3
	ExitCodeConfig       = 4
)

// globals holds the persistent flags and the hooks tests use to swap collaborators.
type globals struct {
	configPath  string
	backend     string
	verbose     bool
	metricsFile string
	version     string

	// base is merged into the app.Options of every command.
	base app.Options
}

// NewRootCommand builds the command tree. base seeds the app.Options each command uses.
func NewRootCommand(version string, base app.Options) *cobra.Command {
	g := &globals{version: version, base: base}

	root := &cobra.Command{
		Use:   "deviceauth",
		Short: "Sign in to an OAuth authorization server with the device flow",
		Long: `deviceauth signs you in with the OAuth 2.0 Device Authorization Grant,
keeps the resulting sessions in the system keychain or an encrypted file,
and hands out fresh access tokens to scripts.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version,
	}
	root.SetVersionTemplate(`{{printf "deviceauth version %s\n" .Version}}`)

	flags := root.PersistentFlags()
	flags.StringVar(&g.configPath, "config", config.DefaultConfigPath(), "path to the TOML config file")
	flags.StringVar(&g.backend, "store", "", "secret store backend (keyring, file, memory)")
	flags.BoolVar(&g.verbose, "verbose", false, "log at debug level to stderr")
	flags.StringVar(&g.metricsFile, "metrics-file", "", "write Prometheus counters to this file when the command ends")

	root.AddCommand(
		newSignInCommand(g),
		newSignOutCommand(g),
		newStatusCommand(g),
		newTokenCommand(g),
		newSessionsCommand(g),
		newConfigCommand(g),
		newVersionCommand(g),
	)
	return root
}

// loadConfig reads the config file and applies flag overrides.
func (g *globals) loadConfig() (config.Config, error) {
	cfg, err := config.LoadFrom(g.configPath)
	if err != nil {
		return config.Config{}, err
	}
	if g.backend != "" {
		cfg.Store.Backend = g.backend
	}
	return cfg, nil
}

// open builds the application context. prompter may be nil for commands that never sign in.
func (g *globals) open(prompter session.Prompter) (*app.App, error) {
	cfg, err := g.loadConfig()
	if err != nil {
		return nil, err
	}
	opts := g.base
	opts.Debug = opts.Debug || g.verbose
	if g.metricsFile != "" {
		opts.MetricsFile = g.metricsFile
	}
	if opts.Prompter == nil {
		opts.Prompter = prompter
	}
	return app.New(cfg, opts)
}

// Execute runs the CLI and returns the process exit code.
func Execute(version string) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	root := NewRootCommand(version, app.Options{})
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "deviceauth: %v\n", err)
		return ExitCode(err)
	}
	return ExitCodeSuccess
}

// ExitCode maps an error to the process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitCodeSuccess
	}
	var cfgErr *domain.ConfigurationError
	var flowErr *domain.DeviceFlowError
	switch {
	case errors.Is(err, domain.ErrNotSignedIn):
		return ExitCodeAuthRequired
	case errors.As(err, &cfgErr):
		return ExitCodeConfig
	case errors.Is(err, domain.ErrDeviceCodeExpired),
		errors.Is(err, domain.ErrPollTimeout),
		errors.Is(err, session.ErrPromptCancelled),
		errors.As(err, &flowErr):
		return ExitCodeAuthFailed
	default:
		return ExitCodeError
	}
}

func newVersionCommand(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the deviceauth version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "deviceauth", g.version)
		},
	}
}

// confirm asks question on out and reads a y/N answer from in.
func confirm(in io.Reader, out io.Writer, question string) bool {
	fmt.Fprintf(out, "%s [y/N] ", question)
	var answer string
	if _, err := fmt.Fscanln(in, &answer); err != nil {
		return false
	}
	return answer == "y" || answer == "Y" || answer == "yes"
}
