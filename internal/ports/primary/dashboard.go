package primary

import (
	"context"
	"time"
)

// DashboardService defines the primary port for read-only operator dashboards.
type DashboardService interface {
	// GetOperatorDashboard composes an operator's current workload and statistics.
	GetOperatorDashboard(ctx context.Context, req DashboardRequest) (*OperatorDashboard, error)
}

// DefaultUpcomingWindow is how far ahead upcoming SLAs are listed when unset.
const DefaultUpcomingWindow = 4 * time.Hour

// DashboardRequest contains parameters for building a dashboard.
type DashboardRequest struct {
	OperatorID     string
	UpcomingWindow time.Duration // defaults to DefaultUpcomingWindow
}

// OperatorDashboard is the per-operator view.
type OperatorDashboard struct {
	OperatorID        string         `json:"operatorId"`
	GeneratedAt       time.Time      `json:"generatedAt"`
	InProgress        []*Task        `json:"inProgress"`
	Assigned          []*Task        `json:"assigned"`
	UpcomingSLAs      []*Task        `json:"upcomingSLAs"`
	Escalated         []*Task        `json:"escalated"`
	RecentlyCompleted []*Task        `json:"recentlyCompleted"`
	Stats             DashboardStats `json:"statistics"`
}

// DashboardStats are the operator's completion statistics.
type DashboardStats struct {
	CompletedToday        int     `json:"completedToday"`
	TotalCompleted        int     `json:"totalCompleted"`
	AverageResolutionTime float64 `json:"averageResolutionTime"` // minutes, one decimal
	SLAComplianceRate     float64 `json:"slaComplianceRate"`     // percent, one decimal; 0 when nothing completed
}
