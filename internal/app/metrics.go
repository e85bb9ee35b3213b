package app

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/loqalabs/whispnote/app"

type metrics struct {
	created  metric.Int64Counter
	deleted  metric.Int64Counter
	sessions metric.Int64Counter
	errors   metric.Int64Counter
	total    metric.Int64ObservableGauge
	reg      metric.Registration
}

func newMetrics(count func() int) (*metrics, error) {
	meter := otel.Meter(instrumentationName)
	m := &metrics{}
	var err error
	if m.created, err = meter.Int64Counter("whispnote.notes.created", metric.WithDescription("Notes saved")); err != nil {
		return nil, err
	}
	if m.deleted, err = meter.Int64Counter("whispnote.notes.deleted", metric.WithDescription("Notes deleted or taken for editing")); err != nil {
		return nil, err
	}
	if m.sessions, err = meter.Int64Counter("whispnote.recognition.sessions", metric.WithDescription("Recognition sessions started")); err != nil {
		return nil, err
	}
	if m.errors, err = meter.Int64Counter("whispnote.recognition.errors", metric.WithDescription("Recognition failures by reason")); err != nil {
		return nil, err
	}
	if m.total, err = meter.Int64ObservableGauge("whispnote.notes.total", metric.WithDescription("Notes currently stored")); err != nil {
		return nil, err
	}
	m.reg, err = meter.RegisterCallback(func(ctx context.Context, obs metric.Observer) error {
		obs.ObserveInt64(m.total, int64(count()))
		return nil
	}, m.total)
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (m *metrics) recognitionError(ctx context.Context, reason string) {
	if m == nil {
		return
	}
	m.errors.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

func (m *metrics) close() {
	if m == nil || m.reg == nil {
		return
	}
	_ = m.reg.Unregister()
}
