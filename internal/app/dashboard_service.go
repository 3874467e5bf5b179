package app

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/example/dispatch/internal/core/sla"
	"github.com/example/dispatch/internal/models"
	"github.com/example/dispatch/internal/ports/primary"
	"github.com/example/dispatch/internal/ports/secondary"
)

// recentWindow bounds the recently completed list.
const recentWindow = 24 * time.Hour

type dashboardSection struct {
	name    string
	filters secondary.TaskFilters
	out     *[]*primary.Task
}

// DashboardServiceImpl implements the DashboardService interface.
type DashboardServiceImpl struct {
	taskRepo secondary.TaskRepository
	clock    secondary.Clock
	policy   *sla.Policy
}

// NewDashboardService creates a new DashboardService with injected dependencies.
func NewDashboardService(taskRepo secondary.TaskRepository, clock secondary.Clock, policy *sla.Policy) *DashboardServiceImpl {
	return &DashboardServiceImpl{
		taskRepo: taskRepo,
		clock:    clock,
		policy:   policy,
	}
}

// Ensure DashboardServiceImpl implements the interface
var _ primary.DashboardService = (*DashboardServiceImpl)(nil)

// GetOperatorDashboard composes the operator's workload and statistics.
func (s *DashboardServiceImpl) GetOperatorDashboard(ctx context.Context, req primary.DashboardRequest) (*primary.OperatorDashboard, error) {
	operatorID := strings.TrimSpace(req.OperatorID)
	if operatorID == "" {
		return nil, models.NewValidationError("operatorId", "is required")
	}
	window := req.UpcomingWindow
	if window == 0 {
		window = primary.DefaultUpcomingWindow
	}
	if window < 0 {
		return nil, models.NewValidationError("upcomingWindow", "must be positive")
	}

	now := s.clock.Now().UTC()
	horizon := now.Add(window)
	recentSince := now.Add(-recentWindow)

	dashboard := &primary.OperatorDashboard{OperatorID: operatorID, GeneratedAt: now}
	sections := []dashboardSection{
		{"in progress", secondary.TaskFilters{
			Statuses:   []models.TaskStatus{models.TaskStatusInProgress},
			AssignedTo: operatorID,
			SortBy:     secondary.SortBySLADeadline,
		}, &dashboard.InProgress},
		{"assigned", secondary.TaskFilters{
			Statuses:   []models.TaskStatus{models.TaskStatusAssigned},
			AssignedTo: operatorID,
			SortBy:     secondary.SortBySLADeadline,
		}, &dashboard.Assigned},
		{"upcoming", secondary.TaskFilters{
			Statuses:       models.ActiveStatuses,
			AssignedTo:     operatorID,
			DeadlineAfter:  &now,
			DeadlineBefore: &horizon,
			SortBy:         secondary.SortBySLADeadline,
		}, &dashboard.UpcomingSLAs},
		{"escalated", secondary.TaskFilters{
			Statuses:           models.ActiveStatuses,
			AssignedTo:         operatorID,
			MinEscalationLevel: 1,
			SortBy:             secondary.SortByEscalatedAt,
			SortDesc:           true,
		}, &dashboard.Escalated},
		{"recently completed", secondary.TaskFilters{
			Statuses:       []models.TaskStatus{models.TaskStatusCompleted},
			CompletedBy:    operatorID,
			CompletedSince: &recentSince,
			SortBy:         secondary.SortByCompletedAt,
			SortDesc:       true,
		}, &dashboard.RecentlyCompleted},
	}

	for _, sec := range sections {
		records, err := s.taskRepo.List(ctx, sec.filters)
		if err != nil {
			return nil, fmt.Errorf("failed to list %s tasks: %w", sec.name, err)
		}
		*sec.out = recordsToTasks(records, s.policy, now)
	}

	completed, err := s.taskRepo.List(ctx, secondary.TaskFilters{
		Statuses:    []models.TaskStatus{models.TaskStatusCompleted},
		CompletedBy: operatorID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list completed tasks: %w", err)
	}
	dashboard.Stats = completionStats(completed, now)
	return dashboard, nil
}

// completionStats summarises completed tasks. Rates and averages are rounded
// to one decimal; both are 0 when nothing has been completed.
func completionStats(completed []*secondary.TaskRecord, now time.Time) primary.DashboardStats {
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	var (
		stats         primary.DashboardStats
		withinSLA     int
		resolutionSum int
		resolutionN   int
	)
	stats.TotalCompleted = len(completed)
	for _, r := range completed {
		if r.CompletedAt != nil && !r.CompletedAt.Before(startOfDay) {
			stats.CompletedToday++
		}
		if r.WithinSLA != nil && *r.WithinSLA {
			withinSLA++
		}
		if r.ResolutionTime != nil {
			resolutionSum += *r.ResolutionTime
			resolutionN++
		}
	}
	if stats.TotalCompleted > 0 {
		stats.SLAComplianceRate = roundOne(float64(withinSLA) / float64(stats.TotalCompleted) * 100)
	}
	if resolutionN > 0 {
		stats.AverageResolutionTime = roundOne(float64(resolutionSum) / float64(resolutionN))
	}
	return stats
}

func roundOne(v float64) float64 {
	return math.Round(v*10) / 10
}
