package cli

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"github.com/waabox/deviceauth/internal/session"
)

func newSessionsCommand(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List or remove stored sessions",
	}
	cmd.AddCommand(newSessionsListCommand(g), newSessionsRemoveCommand(g))
	return cmd
}

func newSessionsListCommand(g *globals) *cobra.Command {
	var filter session.Filter
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List valid sessions, refreshing or pruning expired ones",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := g.open(nil)
			if err != nil {
				return err
			}
			defer a.Close()

			sessions, err := a.Sessions.GetSessions(cmd.Context(), filter)
			if err != nil {
				return err
			}
			if len(sessions) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), text.FgYellow.Sprint("No sessions found"))
				return nil
			}

			t := table.NewWriter()
			t.SetOutputMirror(cmd.OutOrStdout())
			t.SetStyle(table.StyleRounded)
			t.AppendHeader(table.Row{"ID", "ACCOUNT", "USER", "SCOPES"})
			for _, s := range sessions {
				t.AppendRow(table.Row{s.ID, s.Account.Label, s.Account.ID, strings.Join(s.Scopes, " ")})
			}
			t.Render()
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&filter.Scopes, "scope", nil, "only sessions granted these scopes")
	cmd.Flags().StringVar(&filter.AccountID, "account", "", "only sessions of this account id")
	return cmd
}

func newSessionsRemoveCommand(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:     "remove <id>",
		Aliases: []string{"rm"},
		Short:   "Remove one stored session",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := g.open(nil)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.Sessions.RemoveSession(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed session %s\n", args[0])
			return nil
		},
	}
}
