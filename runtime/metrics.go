// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package runtime

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// metrics records transaction outcomes.
type metrics struct {
	total    metric.Int64Counter
	reverted metric.Int64Counter
	units    metric.Int64Histogram
}

func newMetrics(meter metric.Meter) (*metrics, error) {
	total, err := meter.Int64Counter(
		"swapvault.tx.total",
		metric.WithDescription("Total number of executed transactions"),
		metric.WithUnit("{tx}"),
	)
	if err != nil {
		return nil, err
	}

	reverted, err := meter.Int64Counter(
		"swapvault.tx.reverted",
		metric.WithDescription("Total number of reverted transactions"),
		metric.WithUnit("{tx}"),
	)
	if err != nil {
		return nil, err
	}

	units, err := meter.Int64Histogram(
		"swapvault.tx.units",
		metric.WithDescription("Compute units consumed per transaction"),
		metric.WithUnit("{unit}"),
	)
	if err != nil {
		return nil, err
	}

	return &metrics{
		total:    total,
		reverted: reverted,
		units:    units,
	}, nil
}

func (m *metrics) record(ctx context.Context, instructions int, units uint64, err error) {
	outcome := "committed"
	if err != nil {
		outcome = "reverted"
	}
	opt := metric.WithAttributes(
		attribute.String("tx.outcome", outcome),
		attribute.Int("tx.instructions", instructions),
	)

	m.total.Add(ctx, 1, opt)
	if err != nil {
		m.reverted.Add(ctx, 1, opt)
	}
	m.units.Record(ctx, int64(units), opt)
}
