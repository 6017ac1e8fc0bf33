package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/waabox/deviceauth/internal/domain"
	"github.com/waabox/deviceauth/internal/prompt"
	"github.com/waabox/deviceauth/internal/session"
	"github.com/waabox/deviceauth/internal/tui"
)

func newSignInCommand(g *globals) *cobra.Command {
	var (
		scopes    []string
		useTUI    bool
		noBrowser bool
	)
	cmd := &cobra.Command{
		Use:   "signin",
		Short: "Sign in with the device authorization flow",
		Long: `signin requests a device code, shows the verification URL and user code,
and waits until you approve the request in a browser. The new session is stored
alongside any existing ones.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var prompter session.Prompter
			switch {
			case useTUI:
				prompter = tui.Prompter{Output: cmd.ErrOrStderr()}
			default:
				prompter = plainPrompter(cmd, noBrowser)
			}
			a, err := g.open(prompter)
			if err != nil {
				return err
			}
			defer a.Close()

			s, err := a.Auth.SignIn(cmd.Context(), scopes...)
			if err != nil {
				return fmt.Errorf("sign-in failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s (%s)\n", s.Account.Label, strings.Join(s.Scopes, " "))
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&scopes, "scope", nil, "extra scopes to request (repeatable)")
	cmd.Flags().BoolVar(&useTUI, "tui", false, "show the full-screen verification prompt")
	cmd.Flags().BoolVar(&noBrowser, "no-browser", false, "print the code and wait without prompting")
	return cmd
}

// plainPrompter prompts on the real terminal when stdin is the process stdin, and on the
// command's streams otherwise.
func plainPrompter(cmd *cobra.Command, noBrowser bool) *prompt.Plain {
	in := cmd.InOrStdin()
	if f, ok := in.(*os.File); ok && f == os.Stdin {
		return prompt.NewTerminal(noBrowser)
	}
	return prompt.NewPlain(in, cmd.ErrOrStderr(), !noBrowser)
}

func newSignOutCommand(g *globals) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "signout",
		Short: "Remove every stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := g.open(nil)
			if err != nil {
				return err
			}
			defer a.Close()

			if !yes && !confirm(cmd.InOrStdin(), cmd.ErrOrStderr(), "Sign out and remove all stored sessions?") {
				fmt.Fprintln(cmd.ErrOrStderr(), "Aborted.")
				return nil
			}
			removed, err := a.Auth.SignOut(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d session(s).\n", len(removed))
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")
	return cmd
}

func newStatusCommand(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show who is signed in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := g.open(nil)
			if err != nil {
				return err
			}
			defer a.Close()

			account, err := a.Auth.GetAccount(cmd.Context())
			if errors.Is(err, domain.ErrNotSignedIn) {
				fmt.Fprintln(cmd.OutOrStdout(), "Not signed in. Run `deviceauth signin`.")
				return nil
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s (%s)\n", account.Label, account.ID)
			return nil
		},
	}
}

func newTokenCommand(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "token",
		Short: "Print a valid access token, refreshing it if needed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := g.open(nil)
			if err != nil {
				return err
			}
			defer a.Close()

			token, err := a.Auth.GetAccessToken(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
}
