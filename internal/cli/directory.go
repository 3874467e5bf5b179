package cli

import (
	"github.com/spf13/cobra"

	"github.com/example/dispatch/internal/wire"
)

// OrderCmd returns the order command
func OrderCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "order",
		Short: "Maintain the service order mirror",
	}

	var country, businessUnit string
	register := &cobra.Command{
		Use:   "register [service-order-id]",
		Short: "Add or refresh a service order",
		Long: `Add or refresh a service order. Tasks take their country and business
unit from the order they belong to.

Example:
  dispatch order register SO-1001 --country FR --bu LM`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return wire.DirectoryAdapter().RegisterOrder(commandContext(cmd), args[0], country, businessUnit)
		},
	}
	register.Flags().StringVar(&country, "country", "", "Two-letter country code (required)")
	register.Flags().StringVar(&businessUnit, "bu", "", "Business unit")
	_ = register.MarkFlagRequired("country")

	cmd.AddCommand(register)
	return cmd
}

// OperatorCmd returns the operator command
func OperatorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "operator",
		Short: "Maintain the operator directory",
	}

	var name, country, taskTypes string
	var inactive bool
	register := &cobra.Command{
		Use:   "register [operator-id]",
		Short: "Add or refresh an operator",
		Long: `Add or refresh an operator. Auto-assignment only considers active
operators of the task's country who handle its type; no --types means every type.

Example:
  dispatch operator register op-alice --name Alice --country FR --types PAYMENT_FAILED,WCF_ISSUE`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return wire.DirectoryAdapter().RegisterOperator(commandContext(cmd), args[0], name, country, taskTypes, inactive)
		},
	}
	register.Flags().StringVar(&name, "name", "", "Display name")
	register.Flags().StringVar(&country, "country", "", "Two-letter country code (required)")
	register.Flags().StringVar(&taskTypes, "types", "", "Comma separated task types handled")
	register.Flags().BoolVar(&inactive, "inactive", false, "Exclude from auto-assignment")
	_ = register.MarkFlagRequired("country")

	list := &cobra.Command{
		Use:   "list [country]",
		Short: "List the operators of a country",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return wire.DirectoryAdapter().ListOperators(commandContext(cmd), args[0])
		},
	}

	cmd.AddCommand(register)
	cmd.AddCommand(list)
	return cmd
}
