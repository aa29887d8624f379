package http

import (
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/freekieb7/staticd/http"

type instruments struct {
	accepted  metric.Int64Counter
	rejected  metric.Int64Counter
	responses metric.Int64Counter
	duration  metric.Float64Histogram
	queued    metric.Int64UpDownCounter
	busy      metric.Int64UpDownCounter
}

func newInstruments(meter metric.Meter) (instruments, error) {
	var (
		inst instruments
		err  error
	)

	inst.accepted, err = meter.Int64Counter("staticd.connections.accepted",
		metric.WithDescription("Connections accepted by the listener"),
		metric.WithUnit("{connection}"))
	if err != nil {
		return inst, err
	}

	inst.rejected, err = meter.Int64Counter("staticd.connections.rejected",
		metric.WithDescription("Connections turned away because the queue was full or closed"),
		metric.WithUnit("{connection}"))
	if err != nil {
		return inst, err
	}

	inst.responses, err = meter.Int64Counter("staticd.responses",
		metric.WithDescription("Responses written, by status code"),
		metric.WithUnit("{response}"))
	if err != nil {
		return inst, err
	}

	inst.duration, err = meter.Float64Histogram("staticd.request.duration",
		metric.WithDescription("Time from dequeue to response flush"),
		metric.WithUnit("s"))
	if err != nil {
		return inst, err
	}

	inst.queued, err = meter.Int64UpDownCounter("staticd.pool.queued",
		metric.WithDescription("Connections waiting for a worker"),
		metric.WithUnit("{connection}"))
	if err != nil {
		return inst, err
	}

	inst.busy, err = meter.Int64UpDownCounter("staticd.pool.busy",
		metric.WithDescription("Workers currently serving a connection"),
		metric.WithUnit("{worker}"))
	if err != nil {
		return inst, err
	}

	return inst, nil
}
