// Package sla contains the pure SLA deadline arithmetic.
// Nothing here touches storage or the clock; callers pass times in.
package sla

import (
	"fmt"
	"time"

	"github.com/example/dispatch/internal/models"
)

// DefaultAtRiskPercent is the elapsed share of the allotted time at which an
// open task is considered at risk.
const DefaultAtRiskPercent = 80.0

// DefaultDurations returns the built-in SLA table. Only URGENT has a fixed
// value; other tiers must be configured.
func DefaultDurations() map[models.Priority]time.Duration {
	return map[models.Priority]time.Duration{
		models.PriorityUrgent: 4 * time.Hour,
	}
}

// Policy maps priorities to SLA durations.
type Policy struct {
	durations     map[models.Priority]time.Duration
	atRiskPercent float64
}

// NewPolicy builds a policy from the default table overlaid with overrides.
// atRiskPercent <= 0 selects DefaultAtRiskPercent.
func NewPolicy(overrides map[models.Priority]time.Duration, atRiskPercent float64) (*Policy, error) {
	durations := DefaultDurations()
	for p, d := range overrides {
		if d <= 0 {
			return nil, fmt.Errorf("sla duration for %s must be positive, got %s", p, d)
		}
		durations[p] = d
	}
	if atRiskPercent <= 0 {
		atRiskPercent = DefaultAtRiskPercent
	}
	if atRiskPercent > 100 {
		return nil, fmt.Errorf("at-risk percent must be at most 100, got %.1f", atRiskPercent)
	}
	return &Policy{durations: durations, atRiskPercent: atRiskPercent}, nil
}

// Duration returns the SLA interval for a priority.
func (p *Policy) Duration(priority models.Priority) (time.Duration, error) {
	d, ok := p.durations[priority]
	if !ok {
		return 0, models.NewValidationError("priority", fmt.Sprintf("no SLA duration configured for %s", priority))
	}
	return d, nil
}

// Deadline returns createdAt + Duration(priority).
func (p *Policy) Deadline(createdAt time.Time, priority models.Priority) (time.Time, error) {
	d, err := p.Duration(priority)
	if err != nil {
		return time.Time{}, err
	}
	return createdAt.Add(d), nil
}

// RecomputeDeadline derives a deadline from the original creation time and a
// new priority, re-applying the pause time already accumulated.
func (p *Policy) RecomputeDeadline(createdAt time.Time, priority models.Priority, totalPaused time.Duration) (time.Time, error) {
	deadline, err := p.Deadline(createdAt, priority)
	if err != nil {
		return time.Time{}, err
	}
	return deadline.Add(totalPaused), nil
}

// PausedDuration returns the time between pausedAt and now, never negative.
func PausedDuration(pausedAt, now time.Time) time.Duration {
	if !now.After(pausedAt) {
		return 0
	}
	return now.Sub(pausedAt)
}

// Resume pushes the deadline out by exactly the paused duration, which it
// also returns so callers can add it to the running total.
func Resume(deadline, pausedAt, now time.Time) (time.Time, time.Duration) {
	paused := PausedDuration(pausedAt, now)
	return deadline.Add(paused), paused
}

// WholeMinutes reports d in whole minutes, rounding down.
func WholeMinutes(d time.Duration) int {
	return int(d / time.Minute)
}

// IsWithinSLA reports completion <= deadline.
func IsWithinSLA(completion, deadline time.Time) bool {
	return !completion.After(deadline)
}

// ResolutionMinutes returns whole minutes from creation to completion.
func ResolutionMinutes(createdAt, completedAt time.Time) int {
	if !completedAt.After(createdAt) {
		return 0
	}
	return int(completedAt.Sub(createdAt) / time.Minute)
}

// Snapshot is the subset of task state the SLA calculations read.
type Snapshot struct {
	Status      models.TaskStatus
	Priority    models.Priority
	CreatedAt   time.Time
	Deadline    time.Time
	TotalPaused time.Duration
	Paused      bool
	PausedAt    *time.Time
	WithinSLA   *bool
}

// Percentage returns elapsed time as a percentage of the total allotted time
// (SLA duration plus accumulated pause). While paused the clock is frozen at
// the pause start.
func (p *Policy) Percentage(s Snapshot, now time.Time) (float64, error) {
	d, err := p.Duration(s.Priority)
	if err != nil {
		return 0, err
	}
	if s.Paused && s.PausedAt != nil {
		now = *s.PausedAt
	}
	allotted := d + s.TotalPaused
	elapsed := now.Sub(s.CreatedAt)
	if elapsed < 0 {
		elapsed = 0
	}
	return 100 * float64(elapsed) / float64(allotted), nil
}

// Status classifies a task. Completed tasks are breached when they finished
// outside the SLA; cancelled tasks are never breached.
func (p *Policy) Status(s Snapshot, now time.Time) models.SLAStatus {
	switch s.Status {
	case models.TaskStatusCompleted:
		if s.WithinSLA != nil && !*s.WithinSLA {
			return models.SLAStatusBreached
		}
		return models.SLAStatusOnTrack
	case models.TaskStatusCancelled:
		return models.SLAStatusOnTrack
	}

	effectiveNow := now
	if s.Paused && s.PausedAt != nil {
		effectiveNow = *s.PausedAt
	}
	if effectiveNow.After(s.Deadline) {
		return models.SLAStatusBreached
	}
	pct, err := p.Percentage(s, now)
	if err == nil && pct >= p.atRiskPercent {
		return models.SLAStatusAtRisk
	}
	return models.SLAStatusOnTrack
}

// AtRiskPercent returns the configured at-risk threshold.
func (p *Policy) AtRiskPercent() float64 { return p.atRiskPercent }
