// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package redis

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/xmidt-org/vitrine/store"
	"github.com/xmidt-org/vitrine/store/db/metric"
	"github.com/xmidt-org/vitrine/store/storetest"
)

// fakeClient answers commands from a map, the way a single redis node would.
type fakeClient struct {
	lock   sync.Mutex
	values map[string][]byte
	setErr error
}

func newFakeClient() *fakeClient {
	return &fakeClient{values: map[string][]byte{}}
}

func (c *fakeClient) Get(ctx context.Context, key string) *redis.StringCmd {
	c.lock.Lock()
	defer c.lock.Unlock()
	cmd := redis.NewStringCmd(ctx, "get", key)
	v, ok := c.values[key]
	if !ok {
		cmd.SetErr(redis.Nil)
		return cmd
	}
	cmd.SetVal(string(v))
	return cmd
}

func (c *fakeClient) Set(ctx context.Context, key string, value interface{}, _ time.Duration) *redis.StatusCmd {
	c.lock.Lock()
	defer c.lock.Unlock()
	cmd := redis.NewStatusCmd(ctx, "set", key, value)
	if c.setErr != nil {
		cmd.SetErr(c.setErr)
		return cmd
	}
	c.values[key] = append([]byte(nil), value.([]byte)...)
	cmd.SetVal("OK")
	return cmd
}

func (c *fakeClient) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	c.lock.Lock()
	defer c.lock.Unlock()
	cmd := redis.NewIntCmd(ctx, "del")
	var n int64
	for _, k := range keys {
		if _, ok := c.values[k]; ok {
			delete(c.values, k)
			n++
		}
	}
	cmd.SetVal(n)
	return cmd
}

func (c *fakeClient) Ping(ctx context.Context) *redis.StatusCmd {
	cmd := redis.NewStatusCmd(ctx, "ping")
	cmd.SetVal("PONG")
	return cmd
}

func (c *fakeClient) Close() error { return nil }

func TestConformance(t *testing.T) {
	storetest.StoreTest(newStore(newFakeClient(), Config{MaxBytes: 512}, metric.NewMeasures()), 512, t)
}

func TestKeyPrefix(t *testing.T) {
	assert := assert.New(t)
	client := newFakeClient()
	s := newStore(client, Config{}, metric.NewMeasures())

	assert.NoError(s.Save(context.Background(), "vitrine-items", []byte(`{}`)))
	assert.Contains(client.values, "vitrine:vitrine-items")
}

func TestSaveOutOfMemory(t *testing.T) {
	assert := assert.New(t)
	client := newFakeClient()
	client.setErr = errors.New("OOM command not allowed when used memory > 'maxmemory'.")
	s := newStore(client, Config{}, metric.NewMeasures())

	err := s.Save(context.Background(), "vitrine-items", []byte(`{}`))
	assert.ErrorIs(err, store.ErrQuotaExceeded)

	client.setErr = errors.New("connection refused")
	err = s.Save(context.Background(), "vitrine-items", []byte(`{}`))
	assert.Error(err)
	assert.NotErrorIs(err, store.ErrQuotaExceeded)
}

func TestPing(t *testing.T) {
	s := newStore(newFakeClient(), Config{}, metric.NewMeasures())
	assert.NoError(t, s.Ping(context.Background()))
}
