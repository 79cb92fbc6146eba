package monitor

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// AttrPage tags every pagewatch measurement with the page name.
const AttrPage = attribute.Key("page")

type instruments struct {
	polls          metric.Int64Counter
	failures       metric.Int64Counter
	changes        metric.Int64Counter
	notifyFailures metric.Int64Counter
	extractTime    metric.Float64Histogram
}

func newInstruments(meter metric.Meter) *instruments {
	if meter == nil {
		meter = noop.NewMeterProvider().Meter("pagewatch")
	}
	noopMeter := noop.Meter{}
	inst := &instruments{}

	var err error
	if inst.polls, err = meter.Int64Counter("pagewatch.polls",
		metric.WithDescription("Poll iterations started"),
		metric.WithUnit("{poll}")); err != nil {
		inst.polls, _ = noopMeter.Int64Counter("pagewatch.polls")
	}
	if inst.failures, err = meter.Int64Counter("pagewatch.extract.failures",
		metric.WithDescription("Iterations without an observation"),
		metric.WithUnit("{poll}")); err != nil {
		inst.failures, _ = noopMeter.Int64Counter("pagewatch.extract.failures")
	}
	if inst.changes, err = meter.Int64Counter("pagewatch.changes",
		metric.WithDescription("Content changes detected"),
		metric.WithUnit("{change}")); err != nil {
		inst.changes, _ = noopMeter.Int64Counter("pagewatch.changes")
	}
	if inst.notifyFailures, err = meter.Int64Counter("pagewatch.notify.failures",
		metric.WithDescription("Change notifications that could not be delivered"),
		metric.WithUnit("{event}")); err != nil {
		inst.notifyFailures, _ = noopMeter.Int64Counter("pagewatch.notify.failures")
	}
	if inst.extractTime, err = meter.Float64Histogram("pagewatch.extract.duration",
		metric.WithDescription("Extraction latency"),
		metric.WithUnit("ms")); err != nil {
		inst.extractTime, _ = noopMeter.Float64Histogram("pagewatch.extract.duration")
	}
	return inst
}
