// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package gallery

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/xmidt-org/vitrine/cache"
	"github.com/xmidt-org/vitrine/ledger"
	"github.com/xmidt-org/vitrine/ledger/ledgertest"
	"github.com/xmidt-org/vitrine/model"
	"github.com/xmidt-org/vitrine/store"
	"github.com/xmidt-org/vitrine/store/inmem"
)

var errNoDocument = errors.New("no document")

type fakeResolver struct {
	lock    sync.Mutex
	missing map[string]bool
	gate    chan struct{}
	entered chan struct{}
	calls   int
}

func (r *fakeResolver) Resolve(_ context.Context, uri string) (model.Metadata, error) {
	r.lock.Lock()
	r.calls++
	gate, entered := r.gate, r.entered
	missing := r.missing[uri]
	r.lock.Unlock()

	if entered != nil {
		select {
		case entered <- struct{}{}:
		default:
		}
	}
	if gate != nil {
		<-gate
	}
	if missing {
		return model.Metadata{}, errNoDocument
	}
	return model.Metadata{Name: "name " + uri, Image: "ipfs://img/" + uri}, nil
}

func uri(id int) string {
	return fmt.Sprintf("doc-%d", id)
}

type LoaderTestSuite struct {
	suite.Suite
	gateway  *ledgertest.Gateway
	cache    *cache.Cache
	resolver *fakeResolver
	randN    []int
	randOut  int
	loader   *Loader
}

func (s *LoaderTestSuite) SetupTest() {
	s.gateway = ledgertest.New(ledgertest.Network())
	s.gateway.Mint(model.MinItemID, model.MaxItemID, uri)
	s.cache = cache.New(inmem.NewInMem(store.Quota{}), cache.Config{})
	s.resolver = &fakeResolver{missing: map[string]bool{}}
	s.randN = nil
	s.randOut = 99
	s.loader = s.factory(Config{}).New(s.gateway)
}

func (s *LoaderTestSuite) factory(config Config) Factory {
	return Factory{
		Cache:    s.cache,
		Resolver: s.resolver,
		Config:   config,
		Measures: NewMeasures(),
		Rand: func(n int) int {
			s.randN = append(s.randN, n)
			return s.randOut
		},
	}
}

func ids(tiles []model.Tile) []int {
	out := make([]int, 0, len(tiles))
	for _, t := range tiles {
		out = append(out, t.ID)
	}
	return out
}

func span(from, to int) []int {
	out := []int{}
	for id := from; id <= to; id++ {
		out = append(out, id)
	}
	return out
}

func (s *LoaderTestSuite) TestFirstBatchAndContinuation() {
	require := require.New(s.T())
	ctx := context.Background()

	b, err := s.loader.LoadNextBatch(ctx)
	require.NoError(err)
	s.Equal([]int{DefaultMaxStart}, s.randN)
	s.Equal(100, b.Start)
	s.Equal(114, b.End)
	s.False(b.Done)
	s.Equal(span(100, 114), ids(b.Tiles))
	s.Equal("name doc-100", b.Tiles[0].Name)
	s.Equal(115, s.loader.Next())

	b, err = s.loader.LoadNextBatch(ctx)
	require.NoError(err)
	s.Equal(span(115, 129), ids(b.Tiles))
	s.Len(s.randN, 1, "only the first batch picks a random start")
	s.Equal(span(100, 129), ids(s.loader.Tiles()))
}

func (s *LoaderTestSuite) TestStartRange() {
	tcs := []struct {
		Description string
		RandOut     int
		Start       int
	}{
		{Description: "Lowest", RandOut: 0, Start: 1},
		{Description: "Highest", RandOut: DefaultMaxStart - 1, Start: DefaultMaxStart},
	}
	for _, tc := range tcs {
		s.Run(tc.Description, func() {
			s.randOut = tc.RandOut
			b, err := s.factory(Config{}).New(s.gateway).LoadNextBatch(context.Background())
			s.Require().NoError(err)
			s.Equal(tc.Start, b.Start)
			s.Len(b.Tiles, min(DefaultBatchSize, model.MaxItemID-tc.Start+1))
		})
	}
}

func (s *LoaderTestSuite) TestEndOfSeries() {
	require := require.New(s.T())
	ctx := context.Background()
	s.randOut = 9994
	l := s.factory(Config{MaxStart: model.MaxItemID}).New(s.gateway)

	b, err := l.LoadNextBatch(ctx)
	require.NoError(err)
	s.Equal(span(9995, 10000), ids(b.Tiles))
	s.True(b.Done)

	calls := len(s.gateway.Calls())
	b, err = l.LoadNextBatch(ctx)
	require.NoError(err)
	s.True(b.Done)
	s.Empty(b.Tiles)
	s.Len(s.gateway.Calls(), calls)
}

func (s *LoaderTestSuite) TestCacheFirst() {
	require := require.New(s.T())
	ctx := context.Background()
	s.cache.Put(ctx, 101, model.CacheEntry{Name: "cached 101", Image: "ipfs://cached"})

	b, err := s.loader.LoadNextBatch(ctx)
	require.NoError(err)
	require.Len(b.Tiles, DefaultBatchSize)
	s.Equal(model.Tile{ID: 101, Name: "cached 101", Image: "ipfs://cached", Cached: true}, b.Tiles[1])
	s.False(b.Tiles[0].Cached)
	s.Equal(DefaultBatchSize-1, s.gateway.CallCount(ledger.MethodTokenURI))

	e, ok := s.cache.Get(ctx, 100)
	s.True(ok, "fetched items are cached")
	s.Equal("name doc-100", e.Name)
}

func (s *LoaderTestSuite) TestFailingItemsAreSkipped() {
	require := require.New(s.T())
	ctx := context.Background()
	s.gateway.SetItem(103, ledgertest.Item{})

	b, err := s.loader.LoadNextBatch(ctx)
	require.NoError(err)
	s.Len(b.Tiles, DefaultBatchSize-1)
	s.NotContains(ids(b.Tiles), 103)
	s.Equal(115, s.loader.Next())
}

func (s *LoaderTestSuite) TestMissingMetadataPlaceholder() {
	require := require.New(s.T())
	ctx := context.Background()
	s.resolver.missing[uri(100)] = true

	b, err := s.loader.LoadNextBatch(ctx)
	require.NoError(err)
	s.Equal(model.Tile{ID: 100, Name: "Item #100"}, b.Tiles[0])

	_, ok := s.cache.Get(ctx, 100)
	s.False(ok, "placeholders are not cached")
}

func (s *LoaderTestSuite) TestReentrantLoad() {
	ctx := context.Background()
	s.resolver.gate = make(chan struct{})
	s.resolver.entered = make(chan struct{}, 1)

	done := make(chan error, 1)
	go func() {
		_, err := s.loader.LoadNextBatch(ctx)
		done <- err
	}()
	<-s.resolver.entered

	calls := len(s.gateway.Calls())
	_, err := s.loader.LoadNextBatch(ctx)
	s.ErrorIs(err, ErrLoadInFlight)
	s.Len(s.gateway.Calls(), calls, "a rejected load makes no ledger calls")

	close(s.resolver.gate)
	s.NoError(<-done)

	_, err = s.loader.LoadNextBatch(ctx)
	s.NoError(err, "the guard is released after the load")
}

func (s *LoaderTestSuite) TestCanceled() {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.loader.LoadNextBatch(ctx)
	s.ErrorIs(err, context.Canceled)
	s.Zero(s.loader.Next(), "a canceled batch does not advance the cursor")
}

func TestLoader(t *testing.T) {
	suite.Run(t, new(LoaderTestSuite))
}

func TestConfigDefaults(t *testing.T) {
	assert := assert.New(t)
	c := Config{}.withDefaults()
	assert.Equal(15, c.BatchSize)
	assert.Equal(9000, c.MaxStart)

	c = Config{BatchSize: 3, MaxStart: 10}.withDefaults()
	assert.Equal(3, c.BatchSize)
	assert.Equal(10, c.MaxStart)
}
