// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/xmidt-org/touchstone"
	"go.uber.org/fx"
)

const (
	ChangeCounter = "session_change_count"

	ChangeLabel  = "change"
	OutcomeLabel = "outcome"

	StartChange      = "start"
	ConnectChange    = "connect"
	DisconnectChange = "disconnect"

	SuccessOutcome = "success"
	FailureOutcome = "failure"
)

// ProvideMetrics registers the session metrics.
func ProvideMetrics() fx.Option {
	return touchstone.CounterVec(
		prometheus.CounterOpts{
			Name: ChangeCounter,
			Help: "Session replacements by kind and outcome.",
		},
		ChangeLabel,
		OutcomeLabel,
	)
}

// Measures are the session metrics.
type Measures struct {
	fx.In
	Changes *prometheus.CounterVec `name:"session_change_count"`
}

// NewMeasures builds unregistered measures.
func NewMeasures() Measures {
	return Measures{
		Changes: prometheus.NewCounterVec(prometheus.CounterOpts{Name: ChangeCounter}, []string{ChangeLabel, OutcomeLabel}),
	}
}

func (m Measures) change(kind string, err error) {
	if m.Changes == nil {
		return
	}
	outcome := SuccessOutcome
	if err != nil {
		outcome = FailureOutcome
	}
	m.Changes.With(prometheus.Labels{ChangeLabel: kind, OutcomeLabel: outcome}).Inc()
}
