package cmd

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/slurmdash/slurmdash/internal/slurmdashctl"
)

// RootCmd is the root Cobra command that gets called from the main func.
// All other sub-commands should be registered here.
func RootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "slurmdashctl",
		Short: "slurmdashctl inspects job state across monitored SLURM clusters.",
	}

	cmd.PersistentFlags().String("api-url", "http://localhost:8080/api", "Gateway base URL for status queries")
	cmd.PersistentFlags().String("push-url", "", "Push channel URL (derived from api-url when empty)")
	cmd.PersistentFlags().StringSlice("host", []string{}, "Cluster host to monitor (repeatable)")
	cmd.PersistentFlags().Duration("timeout", 10*time.Second, "Timeout for one status query")

	cmd.AddCommand(
		jobsCmd(),
		watchCmd(),
		refreshCmd(),
	)

	return cmd
}

// initParams copies the persistent flags into the app parameters.
func initParams(cmd *cobra.Command, params *slurmdashctl.Params) error {
	flags := cmd.Root().PersistentFlags()

	var err error
	if params.ApiBaseUrl, err = flags.GetString("api-url"); err != nil {
		return err
	}
	if params.WebSocketUrl, err = flags.GetString("push-url"); err != nil {
		return err
	}
	if params.Hosts, err = flags.GetStringSlice("host"); err != nil {
		return err
	}
	if params.RequestTimeout, err = flags.GetDuration("timeout"); err != nil {
		return err
	}
	return nil
}
