// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package watch

import (
	"context"
	"errors"
	"math/big"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xmidt-org/vitrine/model"
)

var errUnreachable = errors.New("rpc unreachable")

type countingSource struct {
	calls atomic.Int32
	fail  atomic.Bool
}

func (s *countingSource) Stats(context.Context) (model.Stats, error) {
	n := s.calls.Add(1)
	if s.fail.Load() {
		return model.Stats{}, errUnreachable
	}
	return model.Stats{TotalSupply: big.NewInt(int64(n)), Price: big.NewInt(5)}, nil
}

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.GetCounter().GetValue()
}

func newTestWatcher(t *testing.T, interval time.Duration, listeners ...Listener) (*Watcher, *countingSource) {
	src := new(countingSource)
	w, err := New(Config{PollInterval: interval}, src, NewMeasures(), nil, listeners...)
	require.NoError(t, err)
	return w, src
}

func TestStartStopPairsParallel(t *testing.T) {
	w, _ := newTestWatcher(t, 10*time.Millisecond)

	t.Run("ParallelGroup", func(t *testing.T) {
		for i := 0; i < 20; i++ {
			t.Run(strconv.Itoa(i), func(t *testing.T) {
				t.Parallel()
				assert := assert.New(t)
				if err := w.Start(context.Background()); err != nil {
					assert.ErrorIs(err, ErrWatcherNotStopped)
				}
				time.Sleep(20 * time.Millisecond)
				if err := w.Stop(context.Background()); err != nil {
					assert.ErrorIs(err, ErrWatcherNotRunning)
				}
			})
		}
	})

	assert.Equal(t, stopped, atomic.LoadInt32(&w.state))
}

func TestStartStopPairsSerial(t *testing.T) {
	w, _ := newTestWatcher(t, 10*time.Millisecond)
	for i := 0; i < 5; i++ {
		assert.NoError(t, w.Start(context.Background()))
		assert.NoError(t, w.Stop(context.Background()))
	}
	assert.Equal(t, stopped, atomic.LoadInt32(&w.state))
	assert.ErrorIs(t, w.Stop(context.Background()), ErrWatcherNotRunning)
}

func TestPolling(t *testing.T) {
	updates := make(chan model.Stats, 16)
	w, src := newTestWatcher(t, 5*time.Millisecond, ListenerFunc(func(s model.Stats) {
		select {
		case updates <- s:
		default:
		}
	}))

	require.NoError(t, w.Start(context.Background()))
	<-updates
	<-updates
	require.NoError(t, w.Stop(context.Background()))

	latest, ok := w.Latest()
	assert.True(t, ok)
	assert.Equal(t, big.NewInt(5), latest.Price)
	assert.GreaterOrEqual(t, src.calls.Load(), int32(2))
	assert.GreaterOrEqual(t, counterValue(t, w.measures.Polls.WithLabelValues(SuccessOutcome)), float64(2))
}

func TestPollFailureKeepsLatest(t *testing.T) {
	assert := assert.New(t)
	w, src := newTestWatcher(t, time.Hour)

	_, ok := w.Latest()
	assert.False(ok)

	first, err := w.Poll(context.Background())
	assert.NoError(err)

	src.fail.Store(true)
	_, err = w.Poll(context.Background())
	assert.ErrorIs(err, errUnreachable)

	latest, ok := w.Latest()
	assert.True(ok)
	assert.Equal(first, latest)
	assert.Equal(float64(1), counterValue(t, w.measures.Polls.WithLabelValues(FailureOutcome)))
}

func TestNew(t *testing.T) {
	tcs := []struct {
		Description string
		Source      Source
		Measures    *Measures
		ExpectedErr error
	}{
		{Description: "No source", Measures: NewMeasures(), ExpectedErr: ErrNoSourceProvided},
		{Description: "No measures", Source: new(countingSource), ExpectedErr: ErrNilMeasures},
		{Description: "Defaults", Source: new(countingSource), Measures: NewMeasures()},
	}
	for _, tc := range tcs {
		t.Run(tc.Description, func(t *testing.T) {
			w, err := New(Config{}, tc.Source, tc.Measures, nil)
			if tc.ExpectedErr != nil {
				assert.ErrorIs(t, err, tc.ExpectedErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, defaultPollInterval, w.config.PollInterval)
			assert.Equal(t, defaultPollTimeout, w.config.PollTimeout)
		})
	}
}
