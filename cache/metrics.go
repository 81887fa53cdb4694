// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/xmidt-org/touchstone"
	"go.uber.org/fx"
)

const (
	LookupCounter   = "cache_lookup_count"
	EvictionCounter = "cache_eviction_count"
	ResetCounter    = "cache_reset_count"

	ResultLabel = "result"
	HitResult   = "hit"
	MissResult  = "miss"
	StaleResult = "stale"
)

// ProvideMetrics registers the cache metrics.
func ProvideMetrics() fx.Option {
	return fx.Options(
		touchstone.CounterVec(
			prometheus.CounterOpts{
				Name: LookupCounter,
				Help: "Item cache lookups by result.",
			},
			ResultLabel,
		),
		touchstone.Counter(
			prometheus.CounterOpts{
				Name: EvictionCounter,
				Help: "Entries evicted from the item cache to stay under its ceiling.",
			},
		),
		touchstone.Counter(
			prometheus.CounterOpts{
				Name: ResetCounter,
				Help: "Times the item cache was cleared after the store ran out of room.",
			},
		),
	)
}

// Measures are the cache metrics.
type Measures struct {
	fx.In
	Lookups   *prometheus.CounterVec `name:"cache_lookup_count"`
	Evictions prometheus.Counter     `name:"cache_eviction_count"`
	Resets    prometheus.Counter     `name:"cache_reset_count"`
}

// NewMeasures builds unregistered measures.
func NewMeasures() Measures {
	return Measures{
		Lookups:   prometheus.NewCounterVec(prometheus.CounterOpts{Name: LookupCounter}, []string{ResultLabel}),
		Evictions: prometheus.NewCounter(prometheus.CounterOpts{Name: EvictionCounter}),
		Resets:    prometheus.NewCounter(prometheus.CounterOpts{Name: ResetCounter}),
	}
}

func (m Measures) lookup(result string) {
	if m.Lookups != nil {
		m.Lookups.With(prometheus.Labels{ResultLabel: result}).Inc()
	}
}

func (m Measures) evicted(n int) {
	if m.Evictions != nil && n > 0 {
		m.Evictions.Add(float64(n))
	}
}

func (m Measures) reset() {
	if m.Resets != nil {
		m.Resets.Inc()
	}
}
