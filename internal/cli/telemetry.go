package cli

import (
	"context"
	"io"

	"github.com/spf13/cobra"

	"github.com/example/dispatch/internal/logging"
)

// Telemetry owns the process OTel providers for one command invocation.
type Telemetry struct {
	w        io.Writer
	shutdown logging.ShutdownFunc
}

// AddTelemetry installs the OTel providers, exporting to w, before any
// subcommand of root runs. Call Flush once Execute returns: cobra skips
// post-run hooks when a command fails, and failure logs must still export.
func AddTelemetry(root *cobra.Command, w io.Writer) *Telemetry {
	t := &Telemetry{w: w}
	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		return t.start(cmd.Context())
	}
	return t
}

func (t *Telemetry) start(ctx context.Context) error {
	if t.shutdown != nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	shutdown, err := logging.SetupOTelSDK(ctx, t.w)
	if err != nil {
		return err
	}
	t.shutdown = shutdown
	return nil
}

// Flush exports buffered logs, spans and metrics and stops the providers.
// It is a no-op if no command ran.
func (t *Telemetry) Flush(ctx context.Context) error {
	if t.shutdown == nil {
		return nil
	}
	err := t.shutdown(ctx)
	t.shutdown = nil
	return err
}
