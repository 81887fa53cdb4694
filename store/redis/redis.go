// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package redis

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/xmidt-org/vitrine/store"
	"github.com/xmidt-org/vitrine/store/db/metric"
)

const (
	defaultKeyPrefix   = "vitrine:"
	defaultDialTimeout = 5 * time.Second
	oomPrefix          = "OOM "
)

// Config describes the redis connection.
type Config struct {
	Addr     string
	Password string `json:"-"`
	DB       int

	// KeyPrefix is prepended to every namespace. Defaults to "vitrine:".
	KeyPrefix string

	// MaxBytes bounds a single blob before it reaches redis. Zero means unbounded.
	MaxBytes int
}

// cmdable is the subset of the redis client in use.
type cmdable interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Ping(ctx context.Context) *redis.StatusCmd
	Close() error
}

// Store keeps each namespace under one redis string key.
type Store struct {
	client   cmdable
	prefix   string
	quota    store.Quota
	measures metric.Measures
}

// New dials redis and verifies the connection with a ping.
func New(config Config, measures metric.Measures) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         config.Addr,
		Password:     config.Password,
		DB:           config.DB,
		DialTimeout:  defaultDialTimeout,
		ReadTimeout:  defaultDialTimeout,
		WriteTimeout: defaultDialTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), defaultDialTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}
	return newStore(client, config, measures), nil
}

func newStore(client cmdable, config Config, measures metric.Measures) *Store {
	prefix := config.KeyPrefix
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	return &Store{
		client:   client,
		prefix:   prefix,
		quota:    store.Quota{MaxBytes: config.MaxBytes},
		measures: measures,
	}
}

func (s *Store) Load(ctx context.Context, namespace string) (data []byte, err error) {
	start := time.Now()
	defer func() { s.measures.Update(store.LoadType, start, len(data), err) }()
	data, err = s.client.Get(ctx, s.prefix+namespace).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, store.OperationError{Operation: store.LoadType, Namespace: namespace, Err: store.ErrNotFound}
	}
	if err != nil {
		return nil, store.OperationError{Operation: store.LoadType, Namespace: namespace, Err: err}
	}
	return data, nil
}

func (s *Store) Save(ctx context.Context, namespace string, data []byte) (err error) {
	start := time.Now()
	defer func() { s.measures.Update(store.SaveType, start, len(data), err) }()
	if err = s.quota.Check(namespace, data); err != nil {
		return err
	}
	err = s.client.Set(ctx, s.prefix+namespace, data, 0).Err()
	if err != nil && strings.HasPrefix(err.Error(), oomPrefix) {
		return store.QuotaExceededError{Namespace: namespace, Size: len(data), Err: err}
	}
	if err != nil {
		return store.OperationError{Operation: store.SaveType, Namespace: namespace, Err: err}
	}
	return nil
}

func (s *Store) Clear(ctx context.Context, namespace string) (err error) {
	start := time.Now()
	defer func() { s.measures.Update(store.ClearType, start, 0, err) }()
	if err = s.client.Del(ctx, s.prefix+namespace).Err(); err != nil {
		return store.OperationError{Operation: store.ClearType, Namespace: namespace, Err: err}
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *Store) Close() error {
	return s.client.Close()
}
