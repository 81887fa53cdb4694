// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package test

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockDB is a testify mock of store.S and store.Pinger.
type MockDB struct {
	mock.Mock
}

func (s *MockDB) Load(ctx context.Context, namespace string) ([]byte, error) {
	args := s.Called(ctx, namespace)
	data, _ := args.Get(0).([]byte)
	return data, args.Error(1)
}

func (s *MockDB) Save(ctx context.Context, namespace string, data []byte) error {
	args := s.Called(ctx, namespace, data)
	return args.Error(0)
}

func (s *MockDB) Clear(ctx context.Context, namespace string) error {
	args := s.Called(ctx, namespace)
	return args.Error(0)
}

func (s *MockDB) Ping(ctx context.Context) error {
	args := s.Called(ctx)
	return args.Error(0)
}
