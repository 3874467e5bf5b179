package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/example/dispatch/internal/core/escalation"
	"github.com/example/dispatch/internal/logging"
	"github.com/example/dispatch/internal/models"
	"github.com/example/dispatch/internal/ports/primary"
	"github.com/example/dispatch/internal/ports/secondary"
)

// DefaultSweepWorkers bounds concurrent escalations within one sweep.
const DefaultSweepWorkers = 4

// EscalationServiceImpl implements the EscalationService interface.
type EscalationServiceImpl struct {
	tx        secondary.Transactor
	taskRepo  secondary.TaskRepository
	auditRepo secondary.AuditRepository
	publisher secondary.EventPublisher
	clock     secondary.Clock
	rules     escalation.Rules
	workers   int
	logger    *slog.Logger
	metrics   *logging.Metrics
}

// NewEscalationService creates a new EscalationService with injected dependencies.
func NewEscalationService(
	tx secondary.Transactor,
	taskRepo secondary.TaskRepository,
	auditRepo secondary.AuditRepository,
	publisher secondary.EventPublisher,
	clock secondary.Clock,
	rules escalation.Rules,
	workers int,
	logger *slog.Logger,
	metrics *logging.Metrics,
) *EscalationServiceImpl {
	if workers < 1 {
		workers = DefaultSweepWorkers
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &EscalationServiceImpl{
		tx:        tx,
		taskRepo:  taskRepo,
		auditRepo: auditRepo,
		publisher: publisher,
		clock:     clock,
		rules:     rules,
		workers:   workers,
		logger:    logger,
		metrics:   metrics,
	}
}

// Ensure EscalationServiceImpl implements the interface
var _ primary.EscalationService = (*EscalationServiceImpl)(nil)

type sweepOutcome int

const (
	outcomeEscalated sweepOutcome = iota
	outcomeSkipped
	outcomeFailed
)

// Sweep escalates every active task whose tier rose since it was last escalated.
// A failure on one task never stops the others.
func (s *EscalationServiceImpl) Sweep(ctx context.Context) (*primary.SweepResult, error) {
	ctx, span := logging.Tracer().Start(ctx, "escalation.sweep")
	defer span.End()

	now := s.clock.Now().UTC().Truncate(time.Microsecond)
	horizon := now.Add(s.rules.Lookahead)
	candidates, err := s.taskRepo.List(ctx, secondary.TaskFilters{
		Statuses:       models.ActiveStatuses,
		DeadlineBefore: &horizon,
		SortBy:         secondary.SortBySLADeadline,
	})
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to list escalation candidates: %w", err)
	}

	var escalated, skipped, failed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for _, rec := range candidates {
		g.Go(func() error {
			switch s.escalateOne(gctx, rec, now) {
			case outcomeEscalated:
				escalated.Add(1)
			case outcomeSkipped:
				skipped.Add(1)
			case outcomeFailed:
				failed.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	result := &primary.SweepResult{
		StartedAt: now,
		Scanned:   len(candidates),
		Escalated: int(escalated.Load()),
		Skipped:   int(skipped.Load()),
		Failed:    int(failed.Load()),
	}
	span.SetAttributes(
		attribute.Int("sweep.scanned", result.Scanned),
		attribute.Int("sweep.escalated", result.Escalated),
		attribute.Int("sweep.failed", result.Failed),
	)
	if result.Escalated > 0 || result.Failed > 0 {
		s.logger.InfoContext(ctx, "escalation sweep finished",
			"scanned", result.Scanned,
			"escalated", result.Escalated,
			"skipped", result.Skipped,
			"failed", result.Failed,
		)
	}
	return result, nil
}

func (s *EscalationServiceImpl) escalateOne(ctx context.Context, rec *secondary.TaskRecord, now time.Time) sweepOutcome {
	tier := s.rules.TierAt(escalation.TierContext{
		Status:   rec.Status,
		Deadline: rec.SLADeadline,
		Paused:   rec.SLAPaused,
	}, now)
	if guard := escalation.CanEscalate(rec.ID, rec.LastEscalatedTier, tier); !guard.Allowed {
		return outcomeSkipped
	}

	level := rec.EscalationLevel + 1
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.taskRepo.Escalate(ctx, rec.ID, rec.LastEscalatedTier, tier, now); err != nil {
			return err
		}
		if err := s.auditRepo.Append(ctx, &secondary.AuditRecord{
			TaskID:      rec.ID,
			Action:      models.AuditEscalated,
			PerformedBy: models.SystemActorID,
			PerformedAt: now,
			Details: map[string]any{
				"escalationLevel": level,
				"tier":            tier,
				"previousTier":    rec.LastEscalatedTier,
				"slaDeadline":     isoTime(rec.SLADeadline),
			},
		}); err != nil {
			return fmt.Errorf("failed to write audit entry: %w", err)
		}
		return nil
	})
	if errors.Is(err, models.ErrConflict) {
		s.logger.DebugContext(ctx, "task escalated concurrently", "task_id", rec.ID, "tier", tier)
		return outcomeSkipped
	}
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to escalate task", "task_id", rec.ID, "tier", tier, "error", err)
		s.metrics.SweepFailed(ctx)
		return outcomeFailed
	}

	s.logger.InfoContext(ctx, "task escalated",
		"task_id", rec.ID,
		"tier", tier,
		"escalation_level", level,
		"assigned_to", rec.AssignedTo,
	)
	s.metrics.TaskEscalated(ctx, tier)
	publishEvent(ctx, s.publisher, s.logger, s.metrics, secondary.NewEvent(secondary.EventTaskEscalated, rec.ID, now, map[string]any{
		"escalationLevel": level,
		"tier":            tier,
		"slaDeadline":     isoTime(rec.SLADeadline),
		"priority":        string(rec.Priority),
		"assignedTo":      rec.AssignedTo,
		"serviceOrderId":  rec.ServiceOrderID,
	}))
	return outcomeEscalated
}

// Run sweeps immediately and then on every tick until ctx is cancelled.
func (s *EscalationServiceImpl) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return models.NewValidationError("interval", "must be positive")
	}
	s.logger.InfoContext(ctx, "escalation sweeper started", "interval", interval.String(), "workers", s.workers)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if _, err := s.Sweep(ctx); err != nil {
			s.logger.ErrorContext(ctx, "escalation sweep failed", "error", err)
		}
		select {
		case <-ctx.Done():
			s.logger.InfoContext(context.WithoutCancel(ctx), "escalation sweeper stopped")
			return nil
		case <-ticker.C:
		}
	}
}
