package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/stellarlinkco/prompt-mini/internal/gateway"
	"github.com/stellarlinkco/prompt-mini/internal/provider"
	"github.com/stellarlinkco/prompt-mini/internal/store"
)

type tuneOptions struct {
	providerName string
	model        string
	instruction  string
	save         bool
	verbose      bool
}

func newTuneCmd(st *cliState) *cobra.Command {
	var opts tuneOptions

	cmd := &cobra.Command{
		Use:   "tune <id>",
		Short: "Ask a vendor to refine a stored prompt",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := st.ensure(); err != nil {
				return err
			}
			return runTune(cmd, st, args[0], &opts)
		},
	}

	cmd.Flags().StringVar(&opts.providerName, "provider", "", "provider to use (default from config)")
	cmd.Flags().StringVar(&opts.model, "model", "", "model override")
	cmd.Flags().StringVar(&opts.instruction, "instruction", "", "custom tuning instruction")
	cmd.Flags().BoolVar(&opts.save, "save", false, "save the result as a new prompt")
	cmd.Flags().BoolVar(&opts.verbose, "verbose", false, "print per-attempt details")
	return cmd
}

func runTune(cmd *cobra.Command, st *cliState, id string, opts *tuneOptions) error {
	p, err := st.st.Get(cmd.Context(), id)
	if err != nil {
		return err
	}

	profile, err := provider.ProfileFromConfig(st.cfg, opts.providerName)
	if err != nil {
		return err
	}
	if opts.model != "" {
		profile.Model = opts.model
	}

	gw := gateway.FromConfig(st.cfg)
	handle, err := gw.Submit(cmd.Context(), &provider.TuneRequest{
		Text:        p.Body,
		Instruction: opts.instruction,
	}, profile, nil)
	if err != nil {
		return err
	}

	result, err := handle.Wait(cmd.Context())
	if err != nil {
		handle.Cancel()
		return err
	}

	if opts.verbose {
		for _, a := range handle.Attempts() {
			if a.Kind == "" {
				fmt.Fprintf(cmd.ErrOrStderr(), "attempt %d: ok\n", a.Num)
				continue
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "attempt %d: %s: %s\n", a.Num, a.Kind, a.Diagnostic)
		}
	}

	if handle.State() != gateway.StateSucceeded || result == nil {
		diag := ""
		if result != nil {
			diag = result.Diagnostic
		}
		return fmt.Errorf("tune %s via %s failed: %s: %s", id, profile.Provider, handle.Kind(), diag)
	}

	fmt.Fprintln(cmd.OutOrStdout(), result.Text)

	if opts.save {
		saved, err := st.st.Create(cmd.Context(), store.Fields{
			Title:      fmt.Sprintf("Tuned (%s)", p.Title),
			Body:       result.Text,
			Purpose:    p.Purpose,
			Tags:       p.Tags,
			SessionRef: p.SessionRef,
			Notes:      fmt.Sprintf("tuned from %s via %s (%s)", p.ID, result.Provider, result.Model),
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "saved as %s\n", saved.ID)
	}
	return nil
}
