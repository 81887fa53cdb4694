// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"github.com/xmidt-org/touchstone/touchhttp"
	"github.com/xmidt-org/vitrine/cache"
	"github.com/xmidt-org/vitrine/gallery"
	"github.com/xmidt-org/vitrine/ledger"
	"github.com/xmidt-org/vitrine/session"
	"github.com/xmidt-org/vitrine/watch"
	"go.uber.org/fx"
)

// provideMetrics registers the application metrics with the touchstone
// factory. The store metrics come with db.Provide.
func provideMetrics() fx.Option {
	return fx.Options(
		cache.ProvideMetrics(),
		gallery.ProvideMetrics(),
		ledger.ProvideMetrics(),
		session.ProvideMetrics(),
		watch.ProvideMetrics(),
		fx.Provide(
			fx.Annotated{
				Name: "servers.primary.metrics",
				Target: touchhttp.ServerBundle{}.NewInstrumenter(
					touchhttp.ServerLabel, "primary",
				),
			},
			fx.Annotated{
				Name: "servers.health.metrics",
				Target: touchhttp.ServerBundle{}.NewInstrumenter(
					touchhttp.ServerLabel, "health",
				),
			},
		),
	)
}
