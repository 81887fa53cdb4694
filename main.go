// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/xmidt-org/candlelight"
	"github.com/xmidt-org/touchstone"
	"github.com/xmidt-org/touchstone/touchhttp"
	"github.com/xmidt-org/vitrine/admin"
	"github.com/xmidt-org/vitrine/cache"
	"github.com/xmidt-org/vitrine/gallery"
	"github.com/xmidt-org/vitrine/item"
	"github.com/xmidt-org/vitrine/ledger"
	"github.com/xmidt-org/vitrine/metadata"
	"github.com/xmidt-org/vitrine/model"
	"github.com/xmidt-org/vitrine/network"
	"github.com/xmidt-org/vitrine/session"
	"github.com/xmidt-org/vitrine/store"
	"github.com/xmidt-org/vitrine/store/db"
	"github.com/xmidt-org/vitrine/storefront"
	"github.com/xmidt-org/vitrine/watch"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

const (
	applicationName = "vitrine"
)

var (
	GitCommit = "undefined"
	Version   = "undefined"
	BuildTime = "undefined"
)

func main() {
	v, logger, err := setup(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	app := fx.New(
		fx.WithLogger(func() fxevent.Logger {
			return &fxevent.ZapLogger{Logger: logger}
		}),
		fx.Supply(logger, v),
		touchstone.Provide(),
		touchhttp.Provide(),
		provideMetrics(),
		db.Provide(),
		storefront.ProvideHandlers(),
		fx.Provide(
			unmarshal[touchstone.Config]("prometheus"),
			unmarshal[ServersConfig]("servers"),
			unmarshal[db.Configs]("store"),
			unmarshal[cache.Config]("cache"),
			unmarshal[gallery.Config]("gallery"),
			unmarshal[network.Config]("networks"),
			unmarshal[ledger.Config]("ledger"),
			unmarshal[ledger.WalletConfig]("wallet"),
			unmarshal[metadata.Config]("metadata"),
			unmarshal[session.Config]("session"),
			unmarshal[watch.Config]("watch"),
			unmarshal[storefront.Config]("storefront"),
			candlelight.New,
			func(v *viper.Viper) (candlelight.Config, error) {
				var config candlelight.Config
				err := v.UnmarshalKey("tracing", &config, decodeHook())
				if err != nil {
					return candlelight.Config{}, err
				}
				config.ApplicationName = applicationName
				return config, nil
			},
			network.NewRegistry,
			provideWallet,
			provideDialer,
			func(config metadata.Config, logger *zap.Logger) *metadata.Resolver {
				return metadata.NewResolver(config, nil, logger.Named("metadata"))
			},
			provideCache,
			provideLoaders,
			provideSessions,
			provideWatcher,
			func(r *metadata.Resolver, logger *zap.Logger) *item.Controller {
				return item.NewController(r, logger.Named("item"))
			},
			func(logger *zap.Logger) *admin.Controller {
				return admin.NewController(logger.Named("admin"))
			},
		),

		fx.Invoke(
			BuildPrimaryRoutes,
			BuildMetricsRoutes,
			BuildHealthRoutes,
		),
	)

	switch err := app.Err(); {
	case errors.Is(err, pflag.ErrHelp):
		return
	case err == nil:
		app.Run()
	default:
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
}

// provideWallet opens the keystore. Without a keystore directory the
// storefront stays read-only.
func provideWallet(config ledger.WalletConfig, logger *zap.Logger) ledger.Wallet {
	if config.KeystoreDir == "" {
		logger.Info("no keystore configured, wallet connections are disabled")
		return nil
	}
	return ledger.NewKeystoreWallet(config)
}

type dialerIn struct {
	fx.In
	Config   ledger.Config
	Registry *network.Registry
	Wallet   ledger.Wallet `optional:"true"`
	Measures ledger.Measures
	Logger   *zap.Logger
}

func provideDialer(in dialerIn) (*ledger.Dialer, error) {
	return ledger.NewDialer(in.Config, afero.NewOsFs(), in.Registry, in.Wallet, in.Measures, in.Logger.Named("ledger"))
}

func provideCache(s store.S, config cache.Config, measures cache.Measures, logger *zap.Logger) *cache.Cache {
	return cache.New(s, config,
		cache.WithLogger(logger.Named("cache")),
		cache.WithMeasures(measures),
	)
}

func provideLoaders(c *cache.Cache, r *metadata.Resolver, config gallery.Config, measures gallery.Measures, logger *zap.Logger) gallery.Factory {
	return gallery.Factory{
		Cache:    c,
		Resolver: r,
		Config:   config,
		Measures: measures,
		Logger:   logger.Named("gallery"),
	}
}

type sessionsIn struct {
	fx.In
	Dialer   *ledger.Dialer
	Wallet   ledger.Wallet `optional:"true"`
	Loaders  gallery.Factory
	Config   session.Config
	Measures session.Measures
	LC       fx.Lifecycle
	Logger   *zap.Logger
}

// provideSessions connects to the default network in the background once
// the application starts. Pages render in a connecting state until then.
func provideSessions(in sessionsIn) *session.Manager {
	m := session.NewManager(in.Dialer, in.Wallet, in.Loaders, in.Config, in.Measures, in.Logger.Named("session"))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	in.LC.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				defer close(done)
				if err := m.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
					in.Logger.Error("failed to reach the default network", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			select {
			case <-done:
			case <-stopCtx.Done():
			}
			m.Close()
			return nil
		},
	})
	return m
}

type watcherIn struct {
	fx.In
	Config   watch.Config
	Sessions *session.Manager
	Measures watch.Measures
	LC       fx.Lifecycle
	Logger   *zap.Logger
}

// provideWatcher polls the header stats through the current session's
// gateway.
func provideWatcher(in watcherIn) (*watch.Watcher, error) {
	logger := in.Logger.Named("watch")
	source := watch.SourceFunc(func(ctx context.Context) (model.Stats, error) {
		s, err := in.Sessions.Await(ctx)
		if err != nil {
			return model.Stats{}, err
		}
		return admin.ReadStats(ctx, s.Gateway, false, time.Now)
	})
	changed := watch.ListenerFunc(func(s model.Stats) {
		logger.Debug("contract stats", zap.Stringer("totalSupply", s.TotalSupply), zap.String("price", model.FormatEther(s.Price)))
	})
	w, err := watch.New(in.Config, source, &in.Measures, logger, changed)
	if err != nil {
		return nil, err
	}
	in.LC.Append(fx.Hook{
		OnStart: w.Start,
		OnStop:  w.Stop,
	})
	return w, nil
}
