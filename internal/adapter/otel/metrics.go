package otel

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "taskforge"

// Metrics holds all TaskForge metric instruments.
type Metrics struct {
	TasksCreated     metric.Int64Counter
	TasksDeleted     metric.Int64Counter
	StatusChanges    metric.Int64Counter
	SelectionQueries metric.Int64Counter
	CompletionTime   metric.Float64Histogram
}

// NewMetrics creates all metric instruments. Without a configured meter
// provider the instruments are no-ops, so this is safe to call before
// or without Setup.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}
	var err error

	m.TasksCreated, err = meter.Int64Counter("taskforge.tasks.created",
		metric.WithDescription("Number of tasks registered"))
	if err != nil {
		return nil, err
	}

	m.TasksDeleted, err = meter.Int64Counter("taskforge.tasks.deleted",
		metric.WithDescription("Number of tasks deleted"))
	if err != nil {
		return nil, err
	}

	m.StatusChanges, err = meter.Int64Counter("taskforge.tasks.status_changes",
		metric.WithDescription("Number of accepted status transitions"))
	if err != nil {
		return nil, err
	}

	m.SelectionQueries, err = meter.Int64Counter("taskforge.selection.queries",
		metric.WithDescription("Number of scheduling selection queries"))
	if err != nil {
		return nil, err
	}

	m.CompletionTime, err = meter.Float64Histogram("taskforge.task.completion_seconds",
		metric.WithDescription("Seconds from submission to completion"))
	if err != nil {
		return nil, err
	}

	return m, nil
}
