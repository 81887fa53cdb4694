// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package storefront

import (
	"github.com/xmidt-org/vitrine/admin"
	"github.com/xmidt-org/vitrine/item"
	"github.com/xmidt-org/vitrine/metadata"
	"github.com/xmidt-org/vitrine/network"
	"github.com/xmidt-org/vitrine/session"
	"github.com/xmidt-org/vitrine/watch"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type serviceIn struct {
	fx.In

	Sessions *session.Manager
	Items    *item.Controller
	Admin    *admin.Controller
	Watcher  *watch.Watcher `optional:"true"`
	Renderer *Renderer
	Networks *network.Registry
	Config   Config
}

type handlersIn struct {
	fx.In

	Service *Service
	Logger  *zap.Logger
}

// ProvideHandlers builds the renderer, the service and its handlers.
func ProvideHandlers() fx.Option {
	return fx.Provide(
		func(r *metadata.Resolver) (*Renderer, error) {
			return NewRenderer(r)
		},
		newServiceFromIn,
		func(in handlersIn) *Handlers {
			return NewHandlers(in.Service, in.Logger)
		},
	)
}

func newServiceFromIn(in serviceIn) *Service {
	var stats StatsSource
	if in.Watcher != nil {
		stats = in.Watcher
	}
	return NewService(in.Sessions, in.Items, in.Admin, stats, in.Renderer, in.Networks.All(), in.Config)
}
