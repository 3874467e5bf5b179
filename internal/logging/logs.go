// Package logging wires structured logging, metrics and tracing through OpenTelemetry.
package logging

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/example/dispatch/internal/models"
)

const instrumentationName = "github.com/example/dispatch"

// NewLogger returns an slog logger that emits through the global OTel log provider.
func NewLogger(component string) *slog.Logger {
	return otelslog.NewLogger(instrumentationName).With("component", component)
}

// Tracer returns the package tracer.
func Tracer() trace.Tracer {
	return otel.Tracer(instrumentationName)
}

// Metrics holds the counters the services record. A nil *Metrics records nothing.
type Metrics struct {
	tasksCreated    metric.Int64Counter
	tasksEscalated  metric.Int64Counter
	publishFailures metric.Int64Counter
	sweepErrors     metric.Int64Counter
}

// NewMetrics creates the counters on meter, or on the global meter when nil.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	if meter == nil {
		meter = otel.Meter(instrumentationName)
	}
	var (
		m   Metrics
		err error
	)
	if m.tasksCreated, err = meter.Int64Counter("dispatch_tasks_created",
		metric.WithDescription("Tasks created"),
		metric.WithUnit("{task}")); err != nil {
		return nil, err
	}
	if m.tasksEscalated, err = meter.Int64Counter("dispatch_tasks_escalated",
		metric.WithDescription("Escalations raised by the sweeper"),
		metric.WithUnit("{task}")); err != nil {
		return nil, err
	}
	if m.publishFailures, err = meter.Int64Counter("dispatch_publish_failures",
		metric.WithDescription("Lifecycle events that could not be published"),
		metric.WithUnit("{event}")); err != nil {
		return nil, err
	}
	if m.sweepErrors, err = meter.Int64Counter("dispatch_sweep_errors",
		metric.WithDescription("Tasks the sweeper failed to escalate"),
		metric.WithUnit("{task}")); err != nil {
		return nil, err
	}
	return &m, nil
}

// TaskCreated counts a created task.
func (m *Metrics) TaskCreated(ctx context.Context, taskType models.TaskType, priority models.Priority) {
	if m == nil {
		return
	}
	m.tasksCreated.Add(ctx, 1, metric.WithAttributes(
		attribute.String("task_type", string(taskType)),
		attribute.String("priority", string(priority)),
	))
}

// TaskEscalated counts an escalation at tier.
func (m *Metrics) TaskEscalated(ctx context.Context, tier int) {
	if m == nil {
		return
	}
	m.tasksEscalated.Add(ctx, 1, metric.WithAttributes(attribute.Int("tier", tier)))
}

// PublishFailed counts an event that could not be published.
func (m *Metrics) PublishFailed(ctx context.Context, topic string) {
	if m == nil {
		return
	}
	m.publishFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("topic", topic)))
}

// SweepFailed counts a task the sweeper could not escalate.
func (m *Metrics) SweepFailed(ctx context.Context) {
	if m == nil {
		return
	}
	m.sweepErrors.Add(ctx, 1)
}
