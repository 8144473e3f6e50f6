package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/stellarlinkco/prompt-mini/internal/store"
)

type promptFlags struct {
	title      string
	body       string
	bodyFile   string
	purpose    string
	tags       []string
	sessionRef string
	notes      string
}

func (f *promptFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.title, "title", "", "prompt title")
	cmd.Flags().StringVar(&f.body, "body", "", "prompt body text")
	cmd.Flags().StringVar(&f.bodyFile, "body-file", "", "read the body from a file, or - for stdin")
	cmd.Flags().StringVar(&f.purpose, "purpose", "", "what the prompt is for")
	cmd.Flags().StringSliceVar(&f.tags, "tag", nil, "tag to attach (repeatable)")
	cmd.Flags().StringVar(&f.sessionRef, "session", "", "session reference")
	cmd.Flags().StringVar(&f.notes, "notes", "", "free-form notes")
}

func (f *promptFlags) fields(in io.Reader) (store.Fields, error) {
	body := f.body
	if f.bodyFile != "" {
		if body != "" {
			return store.Fields{}, fmt.Errorf("--body and --body-file are mutually exclusive")
		}
		data, err := readBodySource(f.bodyFile, in)
		if err != nil {
			return store.Fields{}, err
		}
		body = data
	}
	return store.Fields{
		Title:      f.title,
		Body:       body,
		Purpose:    f.purpose,
		Tags:       f.tags,
		SessionRef: f.sessionRef,
		Notes:      f.notes,
	}, nil
}

func readBodySource(src string, in io.Reader) (string, error) {
	if src == "-" {
		data, err := io.ReadAll(in)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return strings.TrimRight(string(data), "\n"), nil
	}
	data, err := os.ReadFile(src)
	if err != nil {
		return "", fmt.Errorf("read body file: %w", err)
	}
	return strings.TrimRight(string(data), "\n"), nil
}

func newNewCmd(st *cliState) *cobra.Command {
	var flags promptFlags

	cmd := &cobra.Command{
		Use:   "new",
		Short: "Create a prompt",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := st.ensure(); err != nil {
				return err
			}
			fields, err := flags.fields(cmd.InOrStdin())
			if err != nil {
				return err
			}
			p, err := st.st.Create(cmd.Context(), fields)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), p.ID)
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}

func newEditCmd(st *cliState) *cobra.Command {
	var flags promptFlags

	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Replace the fields of a prompt",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := st.ensure(); err != nil {
				return err
			}
			fields, err := flags.fields(cmd.InOrStdin())
			if err != nil {
				return err
			}
			p, err := st.st.Update(cmd.Context(), args[0], fields)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "updated %s\n", p.ID)
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}

func newDuplicateCmd(st *cliState) *cobra.Command {
	return &cobra.Command{
		Use:   "duplicate <id>",
		Short: "Copy a prompt under a new id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := st.ensure(); err != nil {
				return err
			}
			p, err := st.st.Duplicate(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), p.ID)
			return nil
		},
	}
}

func newDeleteCmd(st *cliState) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a prompt",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := st.ensure(); err != nil {
				return err
			}
			if err := st.st.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
			return nil
		},
	}
}
