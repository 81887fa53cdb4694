// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package inmem

import (
	"context"
	"sync"

	"github.com/xmidt-org/vitrine/store"
)

type InMem struct {
	data  map[string][]byte
	quota store.Quota
	lock  sync.Mutex
}

// NewInMem returns an in memory store. A zero quota leaves blobs unbounded.
func NewInMem(quota store.Quota) *InMem {
	return &InMem{
		data:  map[string][]byte{},
		quota: quota,
	}
}

func (i *InMem) Load(_ context.Context, namespace string) ([]byte, error) {
	i.lock.Lock()
	defer i.lock.Unlock()
	data, ok := i.data[namespace]
	if !ok {
		return nil, store.OperationError{Operation: store.LoadType, Namespace: namespace, Err: store.ErrNotFound}
	}
	return copyBytes(data), nil
}

func (i *InMem) Save(_ context.Context, namespace string, data []byte) error {
	if err := i.quota.Check(namespace, data); err != nil {
		return err
	}
	i.lock.Lock()
	defer i.lock.Unlock()
	i.data[namespace] = copyBytes(data)
	return nil
}

func (i *InMem) Clear(_ context.Context, namespace string) error {
	i.lock.Lock()
	defer i.lock.Unlock()
	delete(i.data, namespace)
	return nil
}

func copyBytes(b []byte) []byte {
	c := make([]byte, len(b))
	copy(c, b)
	return c
}
