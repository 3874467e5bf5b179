package cli

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/example/dispatch/internal/ports/primary"
	"github.com/example/dispatch/internal/wire"
)

// DashboardCmd returns the dashboard command
func DashboardCmd() *cobra.Command {
	var window time.Duration

	cmd := &cobra.Command{
		Use:   "dashboard [operator-id]",
		Short: "Show an operator's workload and SLA statistics",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return wire.DashboardAdapter().Show(commandContext(cmd), args[0], window)
		},
	}
	cmd.Flags().DurationVar(&window, "window", primary.DefaultUpcomingWindow, "How far ahead to list upcoming SLAs")
	return cmd
}
