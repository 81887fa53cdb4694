// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package gallery

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/xmidt-org/touchstone"
	"go.uber.org/fx"
)

const (
	BatchCounter       = "gallery_batch_count"
	SkippedItemCounter = "gallery_skipped_item_count"

	OutcomeLabel = "outcome"

	LoadedOutcome   = "loaded"
	DoneOutcome     = "done"
	InFlightOutcome = "in_flight"
	FailedOutcome   = "failed"
)

// ProvideMetrics registers the gallery metrics.
func ProvideMetrics() fx.Option {
	return fx.Options(
		touchstone.CounterVec(
			prometheus.CounterOpts{
				Name: BatchCounter,
				Help: "Gallery batch loads by outcome.",
			},
			OutcomeLabel,
		),
		touchstone.Counter(
			prometheus.CounterOpts{
				Name: SkippedItemCounter,
				Help: "Gallery items left out of a batch because the ledger or metadata failed.",
			},
		),
	)
}

// Measures are the gallery metrics.
type Measures struct {
	fx.In
	Batches *prometheus.CounterVec `name:"gallery_batch_count"`
	Skipped prometheus.Counter     `name:"gallery_skipped_item_count"`
}

// NewMeasures builds unregistered measures.
func NewMeasures() Measures {
	return Measures{
		Batches: prometheus.NewCounterVec(prometheus.CounterOpts{Name: BatchCounter}, []string{OutcomeLabel}),
		Skipped: prometheus.NewCounter(prometheus.CounterOpts{Name: SkippedItemCounter}),
	}
}

func (m Measures) batch(outcome string) {
	if m.Batches != nil {
		m.Batches.With(prometheus.Labels{OutcomeLabel: outcome}).Inc()
	}
}

func (m Measures) skipped() {
	if m.Skipped != nil {
		m.Skipped.Inc()
	}
}
