package escalation

import (
	"testing"
	"time"

	"github.com/example/dispatch/internal/models"
)

func TestRules_TierAt(t *testing.T) {
	deadline := time.Date(2025, 1, 1, 4, 0, 0, 0, time.UTC)
	rules := Rules{Lookahead: 30 * time.Minute, RepeatInterval: 2 * time.Hour, MaxTier: 4}

	tests := []struct {
		name string
		ctx  TierContext
		now  time.Time
		want int
	}{
		{
			name: "far from deadline",
			ctx:  TierContext{Status: models.TaskStatusAssigned, Deadline: deadline},
			now:  deadline.Add(-2 * time.Hour),
			want: TierNone,
		},
		{
			name: "inside lookahead",
			ctx:  TierContext{Status: models.TaskStatusOpen, Deadline: deadline},
			now:  deadline.Add(-10 * time.Minute),
			want: TierApproaching,
		},
		{
			name: "exactly at lookahead boundary",
			ctx:  TierContext{Status: models.TaskStatusOpen, Deadline: deadline},
			now:  deadline.Add(-30 * time.Minute),
			want: TierApproaching,
		},
		{
			name: "at deadline",
			ctx:  TierContext{Status: models.TaskStatusInProgress, Deadline: deadline},
			now:  deadline,
			want: TierBreached,
		},
		{
			name: "one repeat interval past",
			ctx:  TierContext{Status: models.TaskStatusInProgress, Deadline: deadline},
			now:  deadline.Add(2*time.Hour + time.Minute),
			want: TierBreached + 1,
		},
		{
			name: "capped at max tier",
			ctx:  TierContext{Status: models.TaskStatusInProgress, Deadline: deadline},
			now:  deadline.Add(48 * time.Hour),
			want: 4,
		},
		{
			name: "paused tasks are not escalated",
			ctx:  TierContext{Status: models.TaskStatusAssigned, Deadline: deadline, Paused: true},
			now:  deadline.Add(time.Hour),
			want: TierNone,
		},
		{
			name: "completed tasks are not escalated",
			ctx:  TierContext{Status: models.TaskStatusCompleted, Deadline: deadline},
			now:  deadline.Add(time.Hour),
			want: TierNone,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := rules.TierAt(tt.ctx, tt.now); got != tt.want {
				t.Errorf("TierAt = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestRules_NoRepeat(t *testing.T) {
	deadline := time.Date(2025, 1, 1, 4, 0, 0, 0, time.UTC)
	rules := Rules{Lookahead: time.Minute}
	got := rules.TierAt(TierContext{Status: models.TaskStatusOpen, Deadline: deadline}, deadline.Add(72*time.Hour))
	if got != TierBreached {
		t.Errorf("TierAt = %d, want %d", got, TierBreached)
	}
}

func TestCanEscalate(t *testing.T) {
	tests := []struct {
		name        string
		lastTier    int
		tier        int
		wantAllowed bool
		wantReason  string
	}{
		{name: "first escalation", lastTier: 0, tier: 1, wantAllowed: true},
		{name: "tier increased", lastTier: 1, tier: 2, wantAllowed: true},
		{name: "same tier", lastTier: 2, tier: 2, wantReason: "task TASK-1 already escalated at tier 2"},
		{name: "not due", lastTier: 0, tier: 0, wantReason: "task TASK-1 is not near its deadline"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := CanEscalate("TASK-1", tt.lastTier, tt.tier)
			if result.Allowed != tt.wantAllowed {
				t.Errorf("Allowed = %v, want %v", result.Allowed, tt.wantAllowed)
			}
			if !tt.wantAllowed && result.Reason != tt.wantReason {
				t.Errorf("Reason = %q, want %q", result.Reason, tt.wantReason)
			}
		})
	}
}
