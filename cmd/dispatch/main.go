package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/dispatch/internal/cli"
	"github.com/example/dispatch/internal/version"
)

func main() {
	rootCmd := &cobra.Command{
		Use:     "dispatch",
		Short:   "Dispatch - task and SLA escalation engine for field service",
		Version: version.String(),
		Long: `Dispatch tracks operational exceptions on service orders as tasks,
assigns them to operators, and escalates tasks that approach or breach their SLA.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cli.AddActorFlag(rootCmd)
	telemetry := cli.AddTelemetry(rootCmd, os.Stderr)

	// Runtime
	rootCmd.AddCommand(cli.ServeCmd())
	rootCmd.AddCommand(cli.SweepCmd())

	// Tasks
	rootCmd.AddCommand(cli.TaskCmd())
	rootCmd.AddCommand(cli.DashboardCmd())

	// Directory mirrors
	rootCmd.AddCommand(cli.OrderCmd())
	rootCmd.AddCommand(cli.OperatorCmd())

	err := rootCmd.Execute()

	flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	err = errors.Join(err, telemetry.Flush(flushCtx))
	cancel()

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
