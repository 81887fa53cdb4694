// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package metric

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/xmidt-org/touchstone"
	"github.com/xmidt-org/vitrine/store"
	"go.uber.org/fx"
)

// Generic Metrics
const (
	StoreOperationCounter  = "store_operation_count"
	StoreDurationSeconds   = "store_duration_seconds"
	StoreBlobBytesObserved = "store_blob_bytes"
)

// DynamoDB metrics
const (
	CapacityUnitConsumedCounter = "capacity_unit_consumed"
)

// ProvideMetrics returns the Metrics relevant to this package
func ProvideMetrics() fx.Option {
	return fx.Options(
		touchstone.CounterVec(
			prometheus.CounterOpts{
				Name: StoreOperationCounter,
				Help: "The total number of store operations by type and outcome",
			},
			store.TypeLabel,
			store.OutcomeLabel,
		),
		touchstone.HistogramVec(
			prometheus.HistogramOpts{
				Name:    StoreDurationSeconds,
				Help:    "A histogram of latencies for store operations.",
				Buckets: []float64{0.0005, 0.001, 0.005, 0.01, .025, .05, .1, .25, .5, 1, 5},
			},
			store.TypeLabel,
		),
		touchstone.HistogramVec(
			prometheus.HistogramOpts{
				Name:    StoreBlobBytesObserved,
				Help:    "Size of the blobs moved through the store.",
				Buckets: prometheus.ExponentialBuckets(256, 4, 8),
			},
			store.TypeLabel,
		),
		touchstone.CounterVec(
			prometheus.CounterOpts{
				Name: CapacityUnitConsumedCounter,
				Help: "The number of capacity units consumed by the operation.",
			},
			store.TypeLabel,
		),
	)
}

// Measures are the store metrics shared by every backend.
type Measures struct {
	fx.In
	Operations *prometheus.CounterVec   `name:"store_operation_count"`
	Duration   *prometheus.HistogramVec `name:"store_duration_seconds"`
	BlobBytes  *prometheus.HistogramVec `name:"store_blob_bytes"`

	// DynamoDB Metrics
	CapacityUnitConsumedCount *prometheus.CounterVec `name:"capacity_unit_consumed"`
}

// NewMeasures builds unregistered measures, which is handy for tests and tools
// that do not run the fx container.
func NewMeasures() Measures {
	return Measures{
		Operations: prometheus.NewCounterVec(prometheus.CounterOpts{Name: StoreOperationCounter}, []string{store.TypeLabel, store.OutcomeLabel}),
		Duration:   prometheus.NewHistogramVec(prometheus.HistogramOpts{Name: StoreDurationSeconds}, []string{store.TypeLabel}),
		BlobBytes:  prometheus.NewHistogramVec(prometheus.HistogramOpts{Name: StoreBlobBytesObserved}, []string{store.TypeLabel}),
		CapacityUnitConsumedCount: prometheus.NewCounterVec(prometheus.CounterOpts{Name: CapacityUnitConsumedCounter},
			[]string{store.TypeLabel}),
	}
}

// Update records one finished store operation.
func (m Measures) Update(operation string, start time.Time, size int, err error) {
	outcome := store.SuccessOutcome
	switch {
	case err == nil, errors.Is(err, store.ErrNotFound):
	case errors.Is(err, store.ErrQuotaExceeded):
		outcome = store.QuotaOutcome
	default:
		outcome = store.FailureOutcome
	}
	if m.Operations != nil {
		m.Operations.With(prometheus.Labels{store.TypeLabel: operation, store.OutcomeLabel: outcome}).Inc()
	}
	if m.Duration != nil {
		m.Duration.With(prometheus.Labels{store.TypeLabel: operation}).Observe(time.Since(start).Seconds())
	}
	if m.BlobBytes != nil && size > 0 {
		m.BlobBytes.With(prometheus.Labels{store.TypeLabel: operation}).Observe(float64(size))
	}
}
