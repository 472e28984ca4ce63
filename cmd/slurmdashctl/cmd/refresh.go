package cmd

import (
	"github.com/spf13/cobra"

	"github.com/slurmdash/slurmdash/internal/slurmdashctl"
)

func refreshCmd() *cobra.Command {
	a := slurmdashctl.New()
	cmd := &cobra.Command{
		Use:   "refresh",
		Short: "Force an immediate refresh of every monitored host.",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return initParams(cmd, a.Params)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.Refresh()
		},
	}
	return cmd
}
