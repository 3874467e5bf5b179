package cli

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/example/dispatch/internal/ctxutil"
)

// ActorFlag names the persistent flag that identifies the acting operator.
const ActorFlag = "as"

// ActorEnv is consulted when --as is not given.
const ActorEnv = "DISPATCH_OPERATOR"

// AddActorFlag registers --as on root so every subcommand inherits it.
func AddActorFlag(root *cobra.Command) {
	root.PersistentFlags().String(ActorFlag, "", "Operator ID performing the action (default $"+ActorEnv+")")
}

// commandContext returns the command's context carrying the acting operator.
func commandContext(cmd *cobra.Command) context.Context {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	actor, _ := cmd.Flags().GetString(ActorFlag)
	if actor == "" {
		actor = os.Getenv(ActorEnv)
	}
	if actor != "" {
		ctx = ctxutil.WithActorID(ctx, actor)
	}
	return ctx
}
