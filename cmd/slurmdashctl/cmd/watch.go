package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/slurmdash/slurmdash/internal/slurmdashctl"
)

func watchCmd() *cobra.Command {
	a := slurmdashctl.New()
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Stream job state summaries as they change.",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return initParams(cmd, a.Params)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			return a.Watch(ctx)
		},
	}
	return cmd
}
