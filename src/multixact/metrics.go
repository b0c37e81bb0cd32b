package multixact

import (
	"context"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/Blackdeer1524/multixact/src/multixact"

var (
	lookupBySet = metric.WithAttributes(attribute.String("lookup", "set"))
	lookupByID  = metric.WithAttributes(attribute.String("lookup", "id"))
)

type metrics struct {
	created        metric.Int64Counter
	cacheHits      metric.Int64Counter
	cacheMisses    metric.Int64Counter
	resolveRetries metric.Int64Counter
	truncations    metric.Int64Counter
	vacuumRequests metric.Int64Counter
}

func newMetrics(meter metric.Meter) (*metrics, error) {
	if meter == nil {
		meter = otel.Meter(meterName)
	}

	var (
		m   metrics
		err error
	)

	if m.created, err = meter.Int64Counter(
		"multixact.created",
		metric.WithDescription("Groups allocated"),
	); err != nil {
		return nil, errors.Wrap(err, "created counter")
	}
	if m.cacheHits, err = meter.Int64Counter(
		"multixact.cache.hits",
		metric.WithDescription("Membership cache hits"),
	); err != nil {
		return nil, errors.Wrap(err, "cache hits counter")
	}
	if m.cacheMisses, err = meter.Int64Counter(
		"multixact.cache.misses",
		metric.WithDescription("Membership cache misses"),
	); err != nil {
		return nil, errors.Wrap(err, "cache misses counter")
	}
	if m.resolveRetries, err = meter.Int64Counter(
		"multixact.resolve.retries",
		metric.WithDescription("Waits for a successor's offset to be recorded"),
	); err != nil {
		return nil, errors.Wrap(err, "resolve retries counter")
	}
	if m.truncations, err = meter.Int64Counter(
		"multixact.truncations",
		metric.WithDescription("Completed truncations"),
	); err != nil {
		return nil, errors.Wrap(err, "truncations counter")
	}
	if m.vacuumRequests, err = meter.Int64Counter(
		"multixact.vacuum.requests",
		metric.WithDescription("Vacuum requests sent by the allocator"),
	); err != nil {
		return nil, errors.Wrap(err, "vacuum requests counter")
	}

	return &m, nil
}

func (m *metrics) cacheHit(opt metric.AddOption) {
	m.cacheHits.Add(context.Background(), 1, opt)
}

func (m *metrics) cacheMiss(opt metric.AddOption) {
	m.cacheMisses.Add(context.Background(), 1, opt)
}

func (m *metrics) inc(c metric.Int64Counter) {
	c.Add(context.Background(), 1)
}
