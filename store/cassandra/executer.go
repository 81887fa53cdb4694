// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package cassandra

import (
	"context"
	"errors"
	"strings"

	"github.com/gocql/gocql"
	"github.com/hailocab/go-hostpool"
	"github.com/xmidt-org/vitrine/store"
	"go.uber.org/zap"
)

type dbStore interface {
	store.S
	Close()
	Ping() error
}

var errServerClosed = errors.New("server is closed")

const mutationTooLarge = "is too large"

type cassandraExecutor struct {
	session *gocql.Session
	logger  *zap.Logger
}

func connect(clusterConfig *gocql.ClusterConfig, logger *zap.Logger) (dbStore, error) {
	clusterConfig.PoolConfig.HostSelectionPolicy = gocql.HostPoolHostPolicy(hostpool.New(nil))
	session, err := clusterConfig.CreateSession()
	if err != nil {
		return nil, err
	}

	return &cassandraExecutor{session: session, logger: logger}, nil
}

func (s *cassandraExecutor) Load(ctx context.Context, namespace string) ([]byte, error) {
	var data []byte
	err := s.session.Query("SELECT data FROM blobs WHERE namespace = ?", namespace).WithContext(ctx).Scan(&data)
	if errors.Is(err, gocql.ErrNotFound) {
		return nil, store.OperationError{Operation: store.LoadType, Namespace: namespace, Err: store.ErrNotFound}
	}
	if err != nil {
		return nil, store.OperationError{Operation: store.LoadType, Namespace: namespace, Err: err}
	}
	return data, nil
}

func (s *cassandraExecutor) Save(ctx context.Context, namespace string, data []byte) error {
	err := s.session.Query("INSERT INTO blobs (namespace, data) VALUES (?,?)", namespace, data).WithContext(ctx).Exec()
	if err == nil {
		return nil
	}
	var reqErr gocql.RequestError
	if errors.As(err, &reqErr) && reqErr.Code() == gocql.ErrCodeInvalid && strings.Contains(reqErr.Message(), mutationTooLarge) {
		return store.QuotaExceededError{Namespace: namespace, Size: len(data), Err: err}
	}
	return store.OperationError{Operation: store.SaveType, Namespace: namespace, Err: err}
}

func (s *cassandraExecutor) Clear(ctx context.Context, namespace string) error {
	err := s.session.Query("DELETE FROM blobs WHERE namespace = ?", namespace).WithContext(ctx).Exec()
	if err != nil {
		return store.OperationError{Operation: store.ClearType, Namespace: namespace, Err: err}
	}
	return nil
}

func (s *cassandraExecutor) Close() {
	s.session.Close()
}

func (s *cassandraExecutor) Ping() error {
	if s.session.Closed() {
		return errServerClosed
	}
	return nil
}
