// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package ledger

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/xmidt-org/touchstone"
	"go.uber.org/fx"
)

const (
	CallCounter         = "ledger_call_count"
	CallDurationSeconds = "ledger_call_duration_seconds"
	TransactionCounter  = "ledger_transaction_count"

	MethodLabel  = "method"
	OutcomeLabel = "outcome"

	SuccessOutcome   = "success"
	FailureOutcome   = "failure"
	SubmittedOutcome = "submitted"
	ConfirmedOutcome = "confirmed"
	RevertedOutcome  = "reverted"
)

// ProvideMetrics registers the ledger metrics.
func ProvideMetrics() fx.Option {
	return fx.Options(
		touchstone.CounterVec(
			prometheus.CounterOpts{
				Name: CallCounter,
				Help: "Contract calls by method and outcome.",
			},
			MethodLabel,
			OutcomeLabel,
		),
		touchstone.HistogramVec(
			prometheus.HistogramOpts{
				Name:    CallDurationSeconds,
				Help:    "Latency of contract calls and transaction submissions.",
				Buckets: []float64{0.01, 0.025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			MethodLabel,
		),
		touchstone.CounterVec(
			prometheus.CounterOpts{
				Name: TransactionCounter,
				Help: "Transactions by method and lifecycle outcome.",
			},
			MethodLabel,
			OutcomeLabel,
		),
	)
}

// Measures are the ledger metrics.
type Measures struct {
	fx.In
	Calls        *prometheus.CounterVec   `name:"ledger_call_count"`
	Duration     *prometheus.HistogramVec `name:"ledger_call_duration_seconds"`
	Transactions *prometheus.CounterVec   `name:"ledger_transaction_count"`
}

// NewMeasures builds unregistered measures.
func NewMeasures() Measures {
	return Measures{
		Calls:        prometheus.NewCounterVec(prometheus.CounterOpts{Name: CallCounter}, []string{MethodLabel, OutcomeLabel}),
		Duration:     prometheus.NewHistogramVec(prometheus.HistogramOpts{Name: CallDurationSeconds}, []string{MethodLabel}),
		Transactions: prometheus.NewCounterVec(prometheus.CounterOpts{Name: TransactionCounter}, []string{MethodLabel, OutcomeLabel}),
	}
}

func (m Measures) call(method string, start time.Time, err error) {
	outcome := SuccessOutcome
	if err != nil {
		outcome = FailureOutcome
	}
	if m.Calls != nil {
		m.Calls.With(prometheus.Labels{MethodLabel: method, OutcomeLabel: outcome}).Inc()
	}
	if m.Duration != nil {
		m.Duration.With(prometheus.Labels{MethodLabel: method}).Observe(time.Since(start).Seconds())
	}
}

func (m Measures) transaction(method, outcome string) {
	if m.Transactions != nil {
		m.Transactions.With(prometheus.Labels{MethodLabel: method, OutcomeLabel: outcome}).Inc()
	}
}
