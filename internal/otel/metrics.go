package otel

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	initMetricsOnce    sync.Once
	statusOpsCounter   metric.Int64Counter
	cascadeCounter     metric.Int64Counter
	checkpointsCounter metric.Int64Counter
	delegationsCounter metric.Int64Counter
)

// InitMetrics creates the meter instruments. Safe to call multiple times;
// only runs once. Call after InitMeterProvider.
func InitMetrics(ctx context.Context) error {
	var err error
	initMetricsOnce.Do(func() {
		m := Meter()
		statusOpsCounter, err = m.Int64Counter("coord_status_updates_total", metric.WithDescription("Total task status updates by status"))
		if err != nil {
			return
		}
		cascadeCounter, err = m.Int64Counter("coord_cascade_transitions_total", metric.WithDescription("Total tasks promoted by the readiness cascade"))
		if err != nil {
			return
		}
		checkpointsCounter, err = m.Int64Counter("coord_checkpoints_total", metric.WithDescription("Total checkpoints written by kind"))
		if err != nil {
			return
		}
		delegationsCounter, err = m.Int64Counter("coord_delegations_total", metric.WithDescription("Total delegations by coordination mode"))
		if err != nil {
			return
		}
	})
	return err
}

// RecordStatusUpdate records one task status write.
func RecordStatusUpdate(ctx context.Context, status string) {
	if statusOpsCounter == nil {
		return
	}
	statusOpsCounter.Add(ctx, 1, metric.WithAttributes(AttrStatus.String(status)))
}

// RecordCascade records n tasks promoted by the readiness cascade.
func RecordCascade(ctx context.Context, n int) {
	if cascadeCounter == nil || n <= 0 {
		return
	}
	cascadeCounter.Add(ctx, int64(n))
}

// RecordCheckpoint records one checkpoint write by kind (auto or manual).
func RecordCheckpoint(ctx context.Context, kind string) {
	if checkpointsCounter == nil {
		return
	}
	checkpointsCounter.Add(ctx, 1, metric.WithAttributes(AttrKind.String(kind)))
}

// RecordDelegation records one delegation by coordination mode.
func RecordDelegation(ctx context.Context, mode string) {
	if delegationsCounter == nil {
		return
	}
	delegationsCounter.Add(ctx, 1, metric.WithAttributes(AttrMode.String(mode)))
}

// TaskCountFunc returns per-status task counts for the tasks gauge.
type TaskCountFunc func() map[string]int64

// InitMetricsWithTaskCount creates instruments and optionally registers a
// callback for the task-count gauge. Call after InitMeterProvider.
func InitMetricsWithTaskCount(ctx context.Context, taskCount TaskCountFunc) error {
	if err := InitMetrics(ctx); err != nil {
		return err
	}
	if taskCount == nil {
		return nil
	}
	m := Meter()
	tasksGauge, err := m.Int64ObservableGauge("coord_tasks_total", metric.WithDescription("Number of tasks by status"))
	if err != nil {
		return err
	}
	_, err = m.RegisterCallback(func(ctx context.Context, o metric.Observer) error {
		for status, n := range taskCount() {
			o.ObserveInt64(tasksGauge, n, metric.WithAttributes(attribute.String("status", status)))
		}
		return nil
	}, tasksGauge)
	return err
}
