package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/example/dispatch/internal/models"
	"github.com/example/dispatch/internal/ports/primary"
)

// DirectoryAdapter registers service orders and operators.
type DirectoryAdapter struct {
	service primary.DirectoryService
	out     io.Writer
}

// NewDirectoryAdapter creates a new DirectoryAdapter with the given service.
func NewDirectoryAdapter(service primary.DirectoryService, out io.Writer) *DirectoryAdapter {
	return &DirectoryAdapter{service: service, out: out}
}

// RegisterOrder adds or refreshes a service order.
func (a *DirectoryAdapter) RegisterOrder(ctx context.Context, id, country, businessUnit string) error {
	err := a.service.RegisterServiceOrder(ctx, primary.RegisterServiceOrderRequest{
		ServiceOrderID: id,
		CountryCode:    country,
		BusinessUnit:   businessUnit,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "✓ Service order %s registered\n", id)
	return nil
}

// RegisterOperator adds or refreshes an operator. taskTypes is comma separated.
func (a *DirectoryAdapter) RegisterOperator(ctx context.Context, id, name, country, taskTypes string, inactive bool) error {
	var types []models.TaskType
	for _, t := range strings.Split(taskTypes, ",") {
		if t = strings.TrimSpace(t); t != "" {
			types = append(types, models.TaskType(t))
		}
	}
	err := a.service.RegisterOperator(ctx, primary.RegisterOperatorRequest{
		OperatorID:  id,
		Name:        name,
		CountryCode: country,
		TaskTypes:   types,
		Inactive:    inactive,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "✓ Operator %s registered\n", id)
	return nil
}

// ListOperators prints the operators of a country.
func (a *DirectoryAdapter) ListOperators(ctx context.Context, country string) error {
	ops, err := a.service.ListOperators(ctx, country)
	if err != nil {
		return fmt.Errorf("failed to list operators: %w", err)
	}
	if len(ops) == 0 {
		fmt.Fprintln(a.out, "No operators found")
		return nil
	}

	fmt.Fprintf(a.out, "\n%-20s %-20s %-8s %s\n", "ID", "NAME", "ACTIVE", "TASK TYPES")
	fmt.Fprintln(a.out, "────────────────────────────────────────────────────────────────")
	for _, op := range ops {
		active := color.New(color.FgGreen).Sprintf("%-8s", "yes")
		if !op.Active {
			active = color.New(color.FgRed).Sprintf("%-8s", "no")
		}
		types := "all"
		if len(op.TaskTypes) > 0 {
			names := make([]string, len(op.TaskTypes))
			for i, t := range op.TaskTypes {
				names[i] = string(t)
			}
			types = strings.Join(names, ",")
		}
		fmt.Fprintf(a.out, "%-20s %-20s %s %s\n", op.ID, op.Name, active, types)
	}
	fmt.Fprintln(a.out)
	return nil
}
