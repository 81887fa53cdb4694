// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/justinas/alice"
	"github.com/xmidt-org/candlelight"
	"github.com/xmidt-org/httpaux"
	"github.com/xmidt-org/httpaux/recovery"
	"github.com/xmidt-org/touchstone/touchhttp"
	"github.com/xmidt-org/vitrine/session"
	"github.com/xmidt-org/vitrine/store"
	"github.com/xmidt-org/vitrine/storefront"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	defaultPrimaryAddress = ":8080"
	defaultMetricsAddress = ":9361"
	defaultHealthAddress  = ":9362"

	metricsPath = "/metrics"
	healthPath  = "/health"
)

// ServerConfig is one entry of the servers section.
type ServerConfig struct {
	Address           string
	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int
}

// ServersConfig is the servers section of the configuration.
type ServersConfig struct {
	Primary ServerConfig
	Metrics ServerConfig
	Health  ServerConfig
}

func (sc ServerConfig) newServer(defaultAddress string, h http.Handler) *http.Server {
	if sc.Address == "" {
		sc.Address = defaultAddress
	}
	if sc.ReadHeaderTimeout <= 0 {
		sc.ReadHeaderTimeout = 10 * time.Second
	}
	return &http.Server{
		Addr:              sc.Address,
		Handler:           h,
		ReadHeaderTimeout: sc.ReadHeaderTimeout,
		ReadTimeout:       sc.ReadTimeout,
		WriteTimeout:      sc.WriteTimeout,
		IdleTimeout:       sc.IdleTimeout,
		MaxHeaderBytes:    sc.MaxHeaderBytes,
	}
}

type ServerMetricsIn struct {
	fx.In
	Primary touchhttp.ServerInstrumenter `name:"servers.primary.metrics"`
	Health  touchhttp.ServerInstrumenter `name:"servers.health.metrics"`
}

type PrimaryRoutesIn struct {
	fx.In
	Config   ServersConfig
	Metrics  ServerMetricsIn
	Tracing  candlelight.Tracing
	Handlers *storefront.Handlers
	LC       fx.Lifecycle
	Logger   *zap.Logger
}

type MetricsRoutesIn struct {
	fx.In
	Config  ServersConfig
	Handler touchhttp.Handler
	LC      fx.Lifecycle
	Logger  *zap.Logger
}

type HealthRoutesIn struct {
	fx.In
	Config   ServersConfig
	Metrics  ServerMetricsIn
	Sessions *session.Manager
	Store    store.S
	LC       fx.Lifecycle
	Logger   *zap.Logger
}

// primaryRouter mounts the storefront behind recovery, tracing and request metrics.
func primaryRouter(in PrimaryRoutesIn) http.Handler {
	r := mux.NewRouter()
	in.Handlers.Register(r)
	traced(r, "server_primary", in.Tracing)

	return alice.New(
		recovery.Middleware(recovery.WithStatusCode(555)),
		in.Metrics.Primary.Then,
	).Then(r)
}

// traced starts a span for every request r routes and echoes the trace
// headers back to the caller.
func traced(r *mux.Router, name string, tracing candlelight.Tracing) {
	options := []otelmux.Option{
		otelmux.WithTracerProvider(tracing.TracerProvider()),
		otelmux.WithPropagators(tracing.Propagator()),
	}
	r.Use(
		otelmux.Middleware(name, options...),
		candlelight.EchoFirstTraceNodeInfo(tracing, false),
	)
}

func BuildPrimaryRoutes(in PrimaryRoutesIn) {
	s := in.Config.Primary.newServer(defaultPrimaryAddress, primaryRouter(in))
	bindServer(in.LC, "primary", s, in.Logger)
}

func BuildMetricsRoutes(in MetricsRoutesIn) {
	r := mux.NewRouter()
	r.Handle(metricsPath, in.Handler).Methods(http.MethodGet)
	s := in.Config.Metrics.newServer(defaultMetricsAddress, r)
	bindServer(in.LC, "metrics", s, in.Logger)
}

func BuildHealthRoutes(in HealthRoutesIn) {
	r := mux.NewRouter()
	r.Handle(healthPath, httpaux.ConstantHandler{
		StatusCode: http.StatusOK,
	}).Methods(http.MethodGet)
	r.Handle(readyPath, readiness{
		ready:  in.Sessions.Ready(),
		store:  in.Store,
		logger: in.Logger,
	}).Methods(http.MethodGet)
	s := in.Config.Health.newServer(defaultHealthAddress, in.Metrics.Health.Then(r))
	bindServer(in.LC, "health", s, in.Logger)
}

// bindServer listens when the application starts and shuts the server down
// gracefully when it stops.
func bindServer(lc fx.Lifecycle, name string, s *http.Server, logger *zap.Logger) {
	logger = logger.With(zap.String("server", name), zap.String("address", s.Addr))
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			l, err := net.Listen("tcp", s.Addr)
			if err != nil {
				return err
			}
			logger.Info("starting server")
			go func() {
				if err := s.Serve(l); !errors.Is(err, http.ErrServerClosed) {
					logger.Error("server exited", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("stopping server")
			return s.Shutdown(ctx)
		},
	})
}
