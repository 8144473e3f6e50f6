package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/stellarlinkco/prompt-mini/internal/export"
	"github.com/stellarlinkco/prompt-mini/internal/store"
)

func newExportCmd(st *cliState) *cobra.Command {
	var formatName string
	var outPath string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export all prompts to csv, txt, md, or json",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := st.ensure(); err != nil {
				return err
			}
			format, err := export.ParseFormat(formatName)
			if err != nil {
				return err
			}
			prompts, err := st.st.List(cmd.Context())
			if err != nil {
				return err
			}
			if outPath == "" {
				return export.Write(cmd.OutOrStdout(), format, prompts)
			}
			f, err := os.Create(outPath)
			if err != nil {
				return fmt.Errorf("create export file: %w", err)
			}
			if err := export.Write(f, format, prompts); err != nil {
				_ = f.Close()
				return err
			}
			return f.Close()
		},
	}

	cmd.Flags().StringVar(&formatName, "format", "json", "export format: csv, txt, md, json")
	cmd.Flags().StringVar(&outPath, "out", "", "output file (default stdout)")
	return cmd
}

func newImportCmd(st *cliState) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file.json>",
		Short: "Import prompts from a JSON export",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := st.ensure(); err != nil {
				return err
			}
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read import file: %w", err)
			}
			var records []*store.Prompt
			if err := json.Unmarshal(data, &records); err != nil {
				return fmt.Errorf("parse import file: %w", err)
			}
			n, err := st.st.Import(cmd.Context(), records)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d prompts\n", n)
			return nil
		},
	}
}

func newBackupCmd(st *cliState) *cobra.Command {
	return &cobra.Command{
		Use:   "backup <dst>",
		Short: "Copy the database file to dst",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := st.ensure(); err != nil {
				return err
			}
			if err := st.st.Backup(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "backed up to %s\n", args[0])
			return nil
		},
	}
}

func newRestoreCmd(st *cliState) *cobra.Command {
	return &cobra.Command{
		Use:   "restore <src>",
		Short: "Replace the database with a backup file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := st.ensure(); err != nil {
				return err
			}
			if err := st.st.Restore(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "restored from %s\n", args[0])
			return nil
		},
	}
}
