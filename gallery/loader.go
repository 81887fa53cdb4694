// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package gallery

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"sync/atomic"

	"github.com/xmidt-org/vitrine/ledger"
	"github.com/xmidt-org/vitrine/model"
	"go.uber.org/zap"
)

// ErrLoadInFlight is returned when a batch is requested while another one
// is still loading. Callers treat it as a no-op.
var ErrLoadInFlight = errors.New("a gallery batch is already loading")

// ItemCache is the local store of item display data.
type ItemCache interface {
	Get(ctx context.Context, id int) (model.CacheEntry, bool)
	Put(ctx context.Context, id int, e model.CacheEntry)
}

// MetadataResolver turns a token URI into a metadata document.
type MetadataResolver interface {
	Resolve(ctx context.Context, uri string) (model.Metadata, error)
}

// Batch is the result of one load.
type Batch struct {
	Tiles []model.Tile

	// Start and End bound the id range the batch covered.
	Start int
	End   int

	// Done is set once the range reaches the last item of the series.
	Done bool
}

// Factory builds one Loader per session.
type Factory struct {
	Cache    ItemCache
	Resolver MetadataResolver
	Config   Config
	Measures Measures
	Logger   *zap.Logger

	// Rand returns a uniform int in [0, n). Defaults to math/rand/v2.
	Rand func(n int) int
}

// New returns a loader reading from r.
func (f Factory) New(r ledger.Reader) *Loader {
	l := &Loader{
		reader:   r,
		cache:    f.Cache,
		resolver: f.Resolver,
		config:   f.Config.withDefaults(),
		measures: f.Measures,
		logger:   f.Logger,
		rand:     f.Rand,
	}
	if l.logger == nil {
		l.logger = zap.NewNop()
	}
	if l.rand == nil {
		l.rand = rand.IntN
	}
	return l
}

// Loader pages through the series for a single session.
type Loader struct {
	reader   ledger.Reader
	cache    ItemCache
	resolver MetadataResolver
	config   Config
	measures Measures
	logger   *zap.Logger
	rand     func(int) int

	inFlight atomic.Bool

	lock   sync.Mutex
	next   int
	loaded []model.Tile
}

// Next returns the id the following batch starts at, or zero before the
// first batch.
func (l *Loader) Next() int {
	l.lock.Lock()
	defer l.lock.Unlock()
	return l.next
}

// Tiles returns every tile loaded so far, in load order.
func (l *Loader) Tiles() []model.Tile {
	l.lock.Lock()
	defer l.lock.Unlock()
	return append([]model.Tile(nil), l.loaded...)
}

// LoadNextBatch loads up to BatchSize items following the previous batch.
// The first batch starts at a random id in [1, MaxStart].
func (l *Loader) LoadNextBatch(ctx context.Context) (Batch, error) {
	if !l.inFlight.CompareAndSwap(false, true) {
		l.measures.batch(InFlightOutcome)
		return Batch{}, ErrLoadInFlight
	}
	defer l.inFlight.Store(false)

	l.lock.Lock()
	start := l.next
	if start == 0 {
		start = l.rand(l.config.MaxStart) + 1
	}
	l.lock.Unlock()

	if start > model.MaxItemID {
		l.measures.batch(DoneOutcome)
		return Batch{Start: start, End: model.MaxItemID, Done: true}, nil
	}

	end := min(start+l.config.BatchSize-1, model.MaxItemID)
	b := Batch{Start: start, End: end, Done: end == model.MaxItemID}
	for id := start; id <= end; id++ {
		if err := ctx.Err(); err != nil {
			l.measures.batch(FailedOutcome)
			return Batch{}, err
		}
		t, err := l.tile(ctx, id)
		if err != nil {
			l.measures.skipped()
			l.logger.Warn("skipping gallery item", zap.Int("id", id), zap.Error(err))
			continue
		}
		b.Tiles = append(b.Tiles, t)
	}

	l.lock.Lock()
	l.next = end + 1
	l.loaded = append(l.loaded, b.Tiles...)
	l.lock.Unlock()

	l.measures.batch(LoadedOutcome)
	l.logger.Debug("gallery batch loaded",
		zap.Int("start", start),
		zap.Int("end", end),
		zap.Int("tiles", len(b.Tiles)),
	)
	return b, nil
}

func (l *Loader) tile(ctx context.Context, id int) (model.Tile, error) {
	if l.cache != nil {
		if e, ok := l.cache.Get(ctx, id); ok {
			return model.Tile{ID: id, Name: e.Name, Image: e.Image, Cached: true}, nil
		}
	}

	uri, err := l.reader.TokenURI(ctx, id)
	if err != nil {
		return model.Tile{}, err
	}

	m, err := l.resolver.Resolve(ctx, uri)
	if err != nil {
		// The token exists; show a placeholder and try the document again
		// on a later visit.
		l.logger.Debug("metadata unavailable", zap.Int("id", id), zap.Error(err))
		return model.Tile{ID: id, Name: model.PlaceholderName(id)}, nil
	}

	t := model.Tile{ID: id, Name: m.DisplayName(id), Image: m.Image}
	if l.cache != nil {
		l.cache.Put(ctx, id, model.CacheEntry{Name: t.Name, Image: t.Image})
	}
	return t, nil
}
