// Package escalation contains the pure breach-tier rules used by the
// escalation sweeper.
package escalation

import (
	"fmt"
	"time"

	"github.com/example/dispatch/internal/models"
)

// Tier values
const (
	TierNone        = 0
	TierApproaching = 1
	TierBreached    = 2
)

// Rules configures tier computation.
type Rules struct {
	// Lookahead is how far before the deadline a task becomes TierApproaching.
	Lookahead time.Duration
	// RepeatInterval adds one tier for every full interval past the deadline.
	// Zero disables repeat escalation.
	RepeatInterval time.Duration
	// MaxTier caps the tier. Values below TierBreached are raised to it.
	MaxTier int
}

// DefaultRules returns the rules used when nothing is configured.
func DefaultRules() Rules {
	return Rules{
		Lookahead:      30 * time.Minute,
		RepeatInterval: 4 * time.Hour,
		MaxTier:        5,
	}
}

// Validate checks the rules are usable.
func (r Rules) Validate() error {
	if r.Lookahead < 0 {
		return fmt.Errorf("escalation lookahead must not be negative, got %s", r.Lookahead)
	}
	if r.RepeatInterval < 0 {
		return fmt.Errorf("escalation repeat interval must not be negative, got %s", r.RepeatInterval)
	}
	return nil
}

func (r Rules) maxTier() int {
	if r.MaxTier < TierBreached {
		return TierBreached
	}
	return r.MaxTier
}

// TierContext is the task state the tier rules read.
type TierContext struct {
	Status   models.TaskStatus
	Deadline time.Time
	Paused   bool
}

// TierAt returns the breach tier of a task at now.
// Terminal and paused tasks are never escalated.
func (r Rules) TierAt(ctx TierContext, now time.Time) int {
	if !ctx.Status.IsActive() || ctx.Paused {
		return TierNone
	}
	if now.Before(ctx.Deadline) {
		if ctx.Deadline.Sub(now) <= r.Lookahead {
			return TierApproaching
		}
		return TierNone
	}

	tier := TierBreached
	if r.RepeatInterval > 0 {
		tier += int(now.Sub(ctx.Deadline) / r.RepeatInterval)
	}
	if limit := r.maxTier(); tier > limit {
		tier = limit
	}
	return tier
}

// GuardResult represents the outcome of an escalation guard.
type GuardResult struct {
	Allowed bool
	Reason  string
}

// CanEscalate reports whether a task observed at lastTier should be escalated
// to tier. A task is escalated at most once per tier.
func CanEscalate(taskID string, lastTier, tier int) GuardResult {
	if tier == TierNone {
		return GuardResult{Allowed: false, Reason: fmt.Sprintf("task %s is not near its deadline", taskID)}
	}
	if tier <= lastTier {
		return GuardResult{Allowed: false, Reason: fmt.Sprintf("task %s already escalated at tier %d", taskID, lastTier)}
	}
	return GuardResult{Allowed: true}
}
