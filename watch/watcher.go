// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package watch

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/xmidt-org/vitrine/model"
	"go.uber.org/zap"
)

// Errors that can be returned by this package. Since some of these errors are returned wrapped, it
// is safest to use errors.Is() to check for them.
var (
	ErrWatcherNotStopped = errors.New("watcher is either running or starting")
	ErrWatcherNotRunning = errors.New("watcher is either stopped or stopping")
	ErrNoSourceProvided  = errors.New("no stats source provided")
	ErrNilMeasures       = errors.New("measures cannot be nil")
)

// watching states
const (
	stopped int32 = iota
	running
	transitioning
)

const (
	defaultPollInterval = time.Second * 30
	defaultPollTimeout  = time.Second * 10
)

// Source reads a fresh stats snapshot.
type Source interface {
	Stats(ctx context.Context) (model.Stats, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(context.Context) (model.Stats, error)

func (f SourceFunc) Stats(ctx context.Context) (model.Stats, error) {
	return f(ctx)
}

// Listener is told about every successful poll.
type Listener interface {
	Update(model.Stats)
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func(model.Stats)

func (f ListenerFunc) Update(s model.Stats) {
	f(s)
}

// Config is the watch section of the configuration.
type Config struct {
	// PollInterval is how often the contract stats are read.
	// (Optional). Defaults to 30 seconds.
	PollInterval time.Duration

	// PollTimeout bounds a single poll.
	// (Optional). Defaults to 10 seconds.
	PollTimeout time.Duration
}

// Watcher polls the contract stats shown in the page header and keeps
// the latest snapshot.
type Watcher struct {
	source    Source
	listeners []Listener
	config    Config
	measures  *Measures
	logger    *zap.Logger

	ticker   *time.Ticker
	shutdown chan struct{}
	state    int32

	lock   sync.RWMutex
	latest model.Stats
	has    bool
}

// New returns a stopped watcher.
func New(config Config, source Source, measures *Measures, logger *zap.Logger, listeners ...Listener) (*Watcher, error) {
	if source == nil {
		return nil, ErrNoSourceProvided
	}
	if measures == nil {
		return nil, ErrNilMeasures
	}
	if config.PollInterval <= 0 {
		config.PollInterval = defaultPollInterval
	}
	if config.PollTimeout <= 0 {
		config.PollTimeout = defaultPollTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Watcher{
		source:    source,
		listeners: listeners,
		config:    config,
		measures:  measures,
		logger:    logger,
		ticker:    time.NewTicker(config.PollInterval),
		shutdown:  make(chan struct{}),
	}, nil
}

// Start begins polling on an interval. If polling is already in progress,
// Start returns ErrWatcherNotStopped. To restart, call Stop first.
func (w *Watcher) Start(context.Context) error {
	if !atomic.CompareAndSwapInt32(&w.state, stopped, transitioning) {
		w.logger.Error("Start called when the watcher was not in stopped state", zap.Error(ErrWatcherNotStopped))
		return ErrWatcherNotStopped
	}

	w.ticker.Reset(w.config.PollInterval)
	go func() {
		w.Poll(context.Background())
		for {
			select {
			case <-w.shutdown:
				return
			case <-w.ticker.C:
				w.Poll(context.Background())
			}
		}
	}()

	atomic.SwapInt32(&w.state, running)
	return nil
}

// Stop ends polling and waits for the polling goroutine to exit.
func (w *Watcher) Stop(context.Context) error {
	if !atomic.CompareAndSwapInt32(&w.state, running, transitioning) {
		w.logger.Error("Stop called when the watcher was not in running state", zap.Error(ErrWatcherNotRunning))
		return ErrWatcherNotRunning
	}

	w.ticker.Stop()
	w.shutdown <- struct{}{}
	atomic.SwapInt32(&w.state, stopped)
	return nil
}

// Poll reads the stats once, outside the schedule.
func (w *Watcher) Poll(ctx context.Context) (model.Stats, error) {
	ctx, cancel := context.WithTimeout(ctx, w.config.PollTimeout)
	defer cancel()

	outcome := SuccessOutcome
	defer func() {
		w.measures.Polls.With(prometheus.Labels{OutcomeLabel: outcome}).Add(1)
	}()

	s, err := w.source.Stats(ctx)
	if err != nil {
		outcome = FailureOutcome
		w.logger.Warn("Failed to read contract stats", zap.Error(err))
		return model.Stats{}, err
	}

	w.lock.Lock()
	w.latest, w.has = s, true
	w.lock.Unlock()

	for _, l := range w.listeners {
		l.Update(s)
	}
	return s, nil
}

// Latest returns the most recent snapshot, if any poll succeeded.
func (w *Watcher) Latest() (model.Stats, bool) {
	w.lock.RLock()
	defer w.lock.RUnlock()
	return w.latest, w.has
}
