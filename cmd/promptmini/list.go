package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/stellarlinkco/prompt-mini/internal/stats"
	"github.com/stellarlinkco/prompt-mini/internal/store"
)

func newListCmd(st *cliState) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored prompts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := st.ensure(); err != nil {
				return err
			}
			prompts, err := st.st.List(cmd.Context())
			if err != nil {
				return err
			}
			return printPromptTable(cmd, prompts)
		},
	}
}

func newSearchCmd(st *cliState) *cobra.Command {
	return &cobra.Command{
		Use:   "search <query>",
		Short: "Search prompts by terms and quoted phrases",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := st.ensure(); err != nil {
				return err
			}
			prompts, err := st.st.Search(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			return printPromptTable(cmd, prompts)
		},
	}
}

func printPromptTable(cmd *cobra.Command, prompts []*store.Prompt) error {
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tTAGS\tMODIFIED")
	for _, p := range prompts {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
			p.ID, p.Title, strings.Join(p.Tags, ","), p.Modified.Format("2006-01-02 15:04"))
	}
	return tw.Flush()
}

func newShowCmd(st *cliState) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Print one prompt in full",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := st.ensure(); err != nil {
				return err
			}
			p, err := st.st.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "ID:       %s\n", p.ID)
			fmt.Fprintf(out, "Title:    %s\n", p.Title)
			if p.Purpose != "" {
				fmt.Fprintf(out, "Purpose:  %s\n", p.Purpose)
			}
			if len(p.Tags) > 0 {
				fmt.Fprintf(out, "Tags:     %s\n", strings.Join(p.Tags, ", "))
			}
			if p.SessionRef != "" {
				fmt.Fprintf(out, "Session:  %s\n", p.SessionRef)
			}
			fmt.Fprintf(out, "Created:  %s\n", p.Created.Format("2006-01-02 15:04:05"))
			fmt.Fprintf(out, "Modified: %s\n", p.Modified.Format("2006-01-02 15:04:05"))
			fmt.Fprintf(out, "\n%s\n", p.Body)
			if p.Notes != "" {
				fmt.Fprintf(out, "\nNotes: %s\n", p.Notes)
			}
			return nil
		},
	}
}

func newStatsCmd(st *cliState) *cobra.Command {
	return &cobra.Command{
		Use:   "stats <id>",
		Short: "Show size statistics for a prompt body",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := st.ensure(); err != nil {
				return err
			}
			p, err := st.st.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			m := stats.Measure(p.Body)
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintf(tw, "CHARACTERS\t%d\n", m.Characters)
			fmt.Fprintf(tw, "WORDS\t%d\n", m.Words)
			fmt.Fprintf(tw, "LINES\t%d\n", m.Lines)
			fmt.Fprintf(tw, "TOKENS (EST)\t%d\n", m.Tokens)
			return tw.Flush()
		},
	}
}
