package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/stellarlinkco/prompt-mini/internal/config"
	"github.com/stellarlinkco/prompt-mini/internal/store"
)

type cliState struct {
	configPath string
	cfg        *config.Config
	st         store.Store
}

var (
	osExit                 = os.Exit
	stderrWriter io.Writer = os.Stderr
)

func main() {
	cmd := newRootCmd()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(stderrWriter, err)
		osExit(1)
	}
}

func newRootCmd() *cobra.Command {
	st := &cliState{configPath: config.DefaultPath}

	root := &cobra.Command{
		Use:           "promptmini",
		Short:         "Manage and tune a prompt library",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.PersistentFlags().StringVar(&st.configPath, "config", st.configPath, "path to config file")

	root.AddCommand(newNewCmd(st))
	root.AddCommand(newListCmd(st))
	root.AddCommand(newSearchCmd(st))
	root.AddCommand(newShowCmd(st))
	root.AddCommand(newEditCmd(st))
	root.AddCommand(newDuplicateCmd(st))
	root.AddCommand(newDeleteCmd(st))
	root.AddCommand(newStatsCmd(st))
	root.AddCommand(newTuneCmd(st))
	root.AddCommand(newExportCmd(st))
	root.AddCommand(newImportCmd(st))
	root.AddCommand(newBackupCmd(st))
	root.AddCommand(newRestoreCmd(st))
	root.AddCommand(newServeCmd(st))
	return root
}

// ensure loads the config and opens the store once per invocation.
func (st *cliState) ensure() error {
	if st.cfg == nil {
		cfg, err := config.Load(st.configPath)
		if err != nil {
			return err
		}
		st.cfg = cfg
	}
	if st.st == nil {
		s, err := store.Open(st.cfg)
		if err != nil {
			return err
		}
		st.st = s
	}
	return nil
}
