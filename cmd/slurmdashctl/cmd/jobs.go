package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/slurmdash/slurmdash/internal/slurmdashctl"
)

func jobsCmd() *cobra.Command {
	a := slurmdashctl.New()
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "List all tracked jobs across the monitored hosts.",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return initParams(cmd, a.Params)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			showArrays, err := cmd.Flags().GetBool("arrays")
			if err != nil {
				return fmt.Errorf("error reading arrays: %s", err)
			}
			return a.Jobs(showArrays)
		},
	}
	cmd.Flags().Bool("arrays", false, "Also print array job groupings")
	return cmd
}
