package main

import (
	"github.com/spf13/cobra"
	"github.com/stellarlinkco/prompt-mini/api"
	"github.com/stellarlinkco/prompt-mini/internal/gateway"
)

func newServeCmd(st *cliState) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := st.ensure(); err != nil {
				return err
			}
			srv, err := api.NewServer(st.cfg, st.st, gateway.FromConfig(st.cfg))
			if err != nil {
				return err
			}
			return srv.Run(addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":8080", "listen address")
	return cmd
}
