package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"

	"github.com/example/dispatch/internal/ports/primary"
)

// DashboardAdapter renders operator dashboards.
type DashboardAdapter struct {
	service primary.DashboardService
	out     io.Writer
}

// NewDashboardAdapter creates a new DashboardAdapter with the given service.
func NewDashboardAdapter(service primary.DashboardService, out io.Writer) *DashboardAdapter {
	return &DashboardAdapter{service: service, out: out}
}

// Show prints the dashboard for operatorID.
func (a *DashboardAdapter) Show(ctx context.Context, operatorID string, upcomingWindow time.Duration) error {
	d, err := a.service.GetOperatorDashboard(ctx, primary.DashboardRequest{
		OperatorID:     operatorID,
		UpcomingWindow: upcomingWindow,
	})
	if err != nil {
		return fmt.Errorf("failed to build dashboard: %w", err)
	}

	header := color.New(color.Bold)
	fmt.Fprintf(a.out, "\n%s\n", header.Sprintf("Dashboard for %s", d.OperatorID))

	a.section("In progress", d.InProgress)
	a.section("Assigned", d.Assigned)
	a.section("Upcoming SLAs", d.UpcomingSLAs)
	a.section("Escalated", d.Escalated)
	a.section("Completed today", d.RecentlyCompleted)

	s := d.Stats
	compliance := color.New(color.FgGreen)
	if s.SLAComplianceRate < 90 {
		compliance = color.New(color.FgYellow)
	}
	if s.SLAComplianceRate < 75 {
		compliance = color.New(color.FgRed)
	}
	fmt.Fprintf(a.out, "\n%s\n", header.Sprint("Statistics"))
	fmt.Fprintf(a.out, "  Completed today:     %d\n", s.CompletedToday)
	fmt.Fprintf(a.out, "  Completed total:     %d\n", s.TotalCompleted)
	fmt.Fprintf(a.out, "  Avg resolution:      %.1f min\n", s.AverageResolutionTime)
	fmt.Fprintf(a.out, "  SLA compliance:      %s\n\n", compliance.Sprintf("%.1f%%", s.SLAComplianceRate))
	return nil
}

func (a *DashboardAdapter) section(title string, tasks []*primary.Task) {
	fmt.Fprintf(a.out, "\n%s (%d)\n", title, len(tasks))
	for _, t := range tasks {
		fmt.Fprintf(a.out, "  %-36s %-20s %-8s %s %s\n", t.ID, t.TaskType, t.Priority, slaLabel(t), formatTime(t.SLADeadline))
	}
}
