// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"net/http"
	"time"

	"github.com/xmidt-org/vitrine/store"
	"go.uber.org/zap"
)

const (
	readyPath        = "/ready"
	readinessTimeout = 2 * time.Second
)

// readiness answers 200 once the ledger session exists and the cache
// store, when it is remote, answers a ping.
type readiness struct {
	ready  <-chan struct{}
	store  store.S
	logger *zap.Logger
}

func (rd readiness) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	select {
	case <-rd.ready:
	default:
		http.Error(w, "ledger not ready", http.StatusServiceUnavailable)
		return
	}

	if err := rd.ping(r.Context()); err != nil {
		rd.logger.Warn("store ping failed", zap.Error(err))
		http.Error(w, "store unavailable", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// sessionPinger is the cassandra client, whose session check takes no context.
type sessionPinger interface {
	Ping() error
}

func (rd readiness) ping(ctx context.Context) error {
	switch p := rd.store.(type) {
	case store.Pinger:
		ctx, cancel := context.WithTimeout(ctx, readinessTimeout)
		defer cancel()
		return p.Ping(ctx)
	case sessionPinger:
		return p.Ping()
	}
	return nil
}
