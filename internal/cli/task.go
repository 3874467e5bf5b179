package cli

import (
	"strings"

	"github.com/spf13/cobra"

	cliadapter "github.com/example/dispatch/internal/adapters/cli"
	"github.com/example/dispatch/internal/models"
	"github.com/example/dispatch/internal/ports/primary"
	"github.com/example/dispatch/internal/wire"
)

// TaskCmd returns the task command
func TaskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Manage dispatch tasks",
		Long:  `Create, list and move tasks through their lifecycle: OPEN, ASSIGNED, IN_PROGRESS, then COMPLETED or CANCELLED.`,
	}

	cmd.AddCommand(taskCreateCmd())
	cmd.AddCommand(taskListCmd())
	cmd.AddCommand(taskShowCmd())
	cmd.AddCommand(taskAssignCmd())
	cmd.AddCommand(taskStartCmd())
	cmd.AddCommand(taskCompleteCmd())
	cmd.AddCommand(taskCancelCmd())
	cmd.AddCommand(taskUpdateCmd())
	cmd.AddCommand(taskPauseCmd())
	cmd.AddCommand(taskResumeCmd())

	return cmd
}

func taskCreateCmd() *cobra.Command {
	var opts cliadapter.CreateOptions

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a task for a service order",
		Long: `Create a task for a service order. Without --assign the task is
auto-assigned to the least loaded eligible operator of the order's country.

Examples:
  dispatch task create --type PAYMENT_FAILED --priority URGENT --order SO-1001
  dispatch task create --type WCF_ISSUE --priority HIGH --order SO-1002 --assign op-alice \
    --context '{"wcfId":"WCF-9","issue":"missing signature"}'`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return wire.TaskAdapter().Create(commandContext(cmd), opts)
		},
	}

	cmd.Flags().StringVar(&opts.TaskType, "type", "", "Task type (required)")
	cmd.Flags().StringVar(&opts.Priority, "priority", "", "Priority: URGENT, HIGH, MEDIUM or LOW (required)")
	cmd.Flags().StringVar(&opts.ServiceOrderID, "order", "", "Service order ID (required)")
	cmd.Flags().StringVar(&opts.Context, "context", "", "Task context as JSON")
	cmd.Flags().StringVar(&opts.AssignedTo, "assign", "", "Operator to assign instead of auto-assigning")
	_ = cmd.MarkFlagRequired("type")
	_ = cmd.MarkFlagRequired("priority")
	_ = cmd.MarkFlagRequired("order")

	return cmd
}

// listFlags holds the raw flags of `task list`.
type listFlags struct {
	statuses   []string
	priorities []string
	taskTypes  []string
	assignedTo string
	orderID    string
	country    string
	slaStatus  string
	page       int
	pageSize   int
	sortBy     string
	sortOrder  string
}

func (f listFlags) query() (primary.TaskQuery, error) {
	q := primary.TaskQuery{
		AssignedTo:     f.assignedTo,
		ServiceOrderID: f.orderID,
		CountryCode:    strings.ToUpper(f.country),
		Page:           f.page,
		PageSize:       f.pageSize,
		SortBy:         f.sortBy,
		SortOrder:      f.sortOrder,
	}
	for _, v := range f.statuses {
		s, err := models.ParseTaskStatus(v)
		if err != nil {
			return q, err
		}
		q.Statuses = append(q.Statuses, s)
	}
	for _, v := range f.priorities {
		p, err := models.ParsePriority(v)
		if err != nil {
			return q, err
		}
		q.Priorities = append(q.Priorities, p)
	}
	for _, v := range f.taskTypes {
		t, err := models.ParseTaskType(v)
		if err != nil {
			return q, err
		}
		q.TaskTypes = append(q.TaskTypes, t)
	}
	if f.slaStatus != "" {
		s, err := models.ParseSLAStatus(f.slaStatus)
		if err != nil {
			return q, err
		}
		q.SLAStatus = s
	}
	return q, nil
}

func taskListCmd() *cobra.Command {
	var f listFlags

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks",
		Long: `List tasks with filters, sorting and pagination.

Examples:
  dispatch task list --status OPEN,ASSIGNED --priority URGENT
  dispatch task list --assignee op-alice --sla at_risk --sort slaDeadline`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			query, err := f.query()
			if err != nil {
				return err
			}
			return wire.TaskAdapter().List(commandContext(cmd), query)
		},
	}

	cmd.Flags().StringSliceVar(&f.statuses, "status", nil, "Filter by status (repeatable or comma separated)")
	cmd.Flags().StringSliceVar(&f.priorities, "priority", nil, "Filter by priority")
	cmd.Flags().StringSliceVar(&f.taskTypes, "type", nil, "Filter by task type")
	cmd.Flags().StringVar(&f.assignedTo, "assignee", "", "Filter by assigned operator")
	cmd.Flags().StringVar(&f.orderID, "order", "", "Filter by service order")
	cmd.Flags().StringVar(&f.country, "country", "", "Filter by country code")
	cmd.Flags().StringVar(&f.slaStatus, "sla", "", "Filter by SLA status: on_track, at_risk or breached")
	cmd.Flags().IntVar(&f.page, "page", 1, "Page number")
	cmd.Flags().IntVar(&f.pageSize, "page-size", primary.DefaultPageSize, "Tasks per page")
	cmd.Flags().StringVar(&f.sortBy, "sort", "createdAt", "Sort by createdAt, updatedAt, slaDeadline, priority or status")
	cmd.Flags().StringVar(&f.sortOrder, "order-by", "desc", "Sort order: asc or desc")

	return cmd
}

func taskShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show [task-id]",
		Short: "Show a task and its history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return wire.TaskAdapter().Show(commandContext(cmd), args[0])
		},
	}
}

func taskAssignCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "assign [task-id] [operator-id]",
		Short: "Assign or reassign a task",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return wire.TaskAdapter().Assign(commandContext(cmd), args[0], args[1])
		},
	}
}

func taskStartCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start [task-id]",
		Short: "Start work on an assigned task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return wire.TaskAdapter().Start(commandContext(cmd), args[0])
		},
	}
}

func taskCompleteCmd() *cobra.Command {
	var notes string

	cmd := &cobra.Command{
		Use:   "complete [task-id]",
		Short: "Complete a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return wire.TaskAdapter().Complete(commandContext(cmd), args[0], notes)
		},
	}
	cmd.Flags().StringVarP(&notes, "notes", "n", "", "Resolution notes")
	return cmd
}

func taskCancelCmd() *cobra.Command {
	var reason string

	cmd := &cobra.Command{
		Use:   "cancel [task-id]",
		Short: "Cancel a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return wire.TaskAdapter().Cancel(commandContext(cmd), args[0], reason)
		},
	}
	cmd.Flags().StringVarP(&reason, "reason", "r", "", "Cancellation reason")
	return cmd
}

func taskUpdateCmd() *cobra.Command {
	var priority, notes string

	cmd := &cobra.Command{
		Use:   "update [task-id]",
		Short: "Change a task's priority or add notes",
		Long: `Change a task's priority or add notes. A new priority recomputes the
SLA deadline from the creation time, keeping any paused time.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return wire.TaskAdapter().Update(commandContext(cmd), args[0], priority, notes)
		},
	}
	cmd.Flags().StringVar(&priority, "priority", "", "New priority")
	cmd.Flags().StringVarP(&notes, "notes", "n", "", "Notes")
	return cmd
}

func taskPauseCmd() *cobra.Command {
	var reason string

	cmd := &cobra.Command{
		Use:   "pause [task-id]",
		Short: "Pause a task's SLA clock",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return wire.TaskAdapter().Pause(commandContext(cmd), args[0], reason)
		},
	}
	cmd.Flags().StringVarP(&reason, "reason", "r", "", "Why the clock is paused (required)")
	_ = cmd.MarkFlagRequired("reason")
	return cmd
}

func taskResumeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resume [task-id]",
		Short: "Resume a task's SLA clock",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return wire.TaskAdapter().Resume(commandContext(cmd), args[0])
		},
	}
}
