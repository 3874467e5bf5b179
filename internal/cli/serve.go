package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/example/dispatch/internal/adapters/httpapi"
	"github.com/example/dispatch/internal/logging"
	"github.com/example/dispatch/internal/wire"
)

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	var addr string
	var interval time.Duration
	var noSweep bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the escalation sweeper",
		Long: `Run the REST API and, unless --no-sweep is given, the escalation sweeper.
Both stop on SIGINT or SIGTERM. Logs, traces and metrics are written to stderr.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
			defer stop()

			svc := wire.Get()
			defer svc.Close()

			if addr == "" {
				addr = svc.Config.HTTPAddr
			}
			if interval == 0 {
				interval = svc.Config.SweepInterval
			}

			logger := logging.NewLogger("http")
			g, ctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				return httpapi.ListenAndServe(ctx, addr, svc.HTTPHandler(logger).Handler(), logger)
			})
			if !noSweep {
				g.Go(func() error {
					return svc.Escalation.Run(ctx, interval)
				})
			}
			return g.Wait()
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default $DISPATCH_HTTP_ADDR or :8080)")
	cmd.Flags().DurationVar(&interval, "sweep-interval", 0, "Escalation sweep interval (default $DISPATCH_SWEEP_INTERVAL or 1m)")
	cmd.Flags().BoolVar(&noSweep, "no-sweep", false, "Serve the API without running the sweeper")

	return cmd
}

// SweepCmd returns the sweep command
func SweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Run one escalation sweep",
		Long:  `Escalate every active task whose escalation tier rose since it was last escalated, then exit.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc := wire.Get()
			defer svc.Close()

			result, err := svc.Escalation.Sweep(commandContext(cmd))
			if err != nil {
				return fmt.Errorf("sweep failed: %w", err)
			}
			fmt.Printf("✓ Sweep at %s: %d scanned, %d escalated, %d skipped, %d failed\n",
				result.StartedAt.Format(time.RFC3339), result.Scanned, result.Escalated, result.Skipped, result.Failed)
			return nil
		},
	}
}
