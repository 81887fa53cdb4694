// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package cassandra

import (
	"context"

	"github.com/stretchr/testify/mock"
)

type mockDB struct {
	mock.Mock
}

func (s *mockDB) Load(ctx context.Context, namespace string) ([]byte, error) {
	args := s.Called(ctx, namespace)
	return args.Get(0).([]byte), args.Error(1)
}

func (s *mockDB) Save(ctx context.Context, namespace string, data []byte) error {
	args := s.Called(ctx, namespace, data)
	return args.Error(0)
}

func (s *mockDB) Clear(ctx context.Context, namespace string) error {
	args := s.Called(ctx, namespace)
	return args.Error(0)
}

func (s *mockDB) Close() {
	s.Called()
}

func (s *mockDB) Ping() error {
	args := s.Called()
	return args.Error(0)
}
