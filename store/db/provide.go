// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package db

import (
	"context"

	"github.com/spf13/afero"
	"github.com/xmidt-org/vitrine/store"
	"github.com/xmidt-org/vitrine/store/cassandra"
	"github.com/xmidt-org/vitrine/store/db/metric"
	"github.com/xmidt-org/vitrine/store/dynamodb"
	"github.com/xmidt-org/vitrine/store/file"
	"github.com/xmidt-org/vitrine/store/inmem"
	"github.com/xmidt-org/vitrine/store/redis"
	"github.com/xmidt-org/vitrine/store/sqldb"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Configs holds one optional section per backend. The first non-nil
// section, in field order, wins.
type Configs struct {
	Dynamo   *dynamodb.Config
	Yugabyte *cassandra.Config
	Redis    *redis.Config
	SQL      *sqldb.Config
	File     *file.Config

	// MaxBytes bounds blobs in the in memory store used when nothing else is configured.
	MaxBytes int
}

type SetupIn struct {
	fx.In
	Configs  Configs
	Measures metric.Measures
	LC       fx.Lifecycle
	Logger   *zap.Logger
}

func Provide() fx.Option {
	return fx.Options(
		metric.ProvideMetrics(),
		fx.Provide(
			SetupStore,
		),
	)
}

type closer interface {
	Close() error
}

func SetupStore(in SetupIn) (store.S, error) {
	s, err := newStore(in)
	if err != nil {
		return nil, err
	}
	if c, ok := s.(closer); ok {
		in.LC.Append(fx.Hook{
			OnStop: func(context.Context) error {
				return c.Close()
			},
		})
	}
	return s, nil
}

func newStore(in SetupIn) (store.S, error) {
	switch {
	case in.Configs.Dynamo != nil:
		in.Logger.Info("using dynamodb store implementation")
		return dynamodb.NewDynamoDB(*in.Configs.Dynamo, in.Measures, in.Logger)
	case in.Configs.Yugabyte != nil:
		in.Logger.Info("using yugabyte store implementation")
		return cassandra.NewCassandra(*in.Configs.Yugabyte, in.Measures, in.LC, in.Logger)
	case in.Configs.Redis != nil:
		in.Logger.Info("using redis store implementation", zap.String("addr", in.Configs.Redis.Addr))
		return redis.New(*in.Configs.Redis, in.Measures)
	case in.Configs.SQL != nil:
		in.Logger.Info("using sql store implementation", zap.String("driver", in.Configs.SQL.Driver))
		return sqldb.New(*in.Configs.SQL, in.Measures)
	case in.Configs.File != nil:
		in.Logger.Info("using file store implementation", zap.String("dir", in.Configs.File.Dir))
		return file.New(afero.NewOsFs(), *in.Configs.File)
	}
	in.Logger.Info("using in memory store implementation")
	return inmem.NewInMem(store.Quota{MaxBytes: in.Configs.MaxBytes}), nil
}
