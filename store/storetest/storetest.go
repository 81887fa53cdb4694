// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package storetest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xmidt-org/vitrine/store"
)

const (
	GenericNamespace = "vitrine-items"
	OtherNamespace   = "vitrine-other"
)

var GenericBlob = []byte(`{"42":{"name":"What a Wonderful World","image":"ipfs://earth","timestamp":1967}}`)

// StoreTest runs the behavior every store.S must share. quota is the
// MaxBytes the store under test was built with; zero skips the quota checks.
func StoreTest(s store.S, quota int, t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()

	t.Log("Missing namespace")
	_, err := s.Load(ctx, GenericNamespace)
	assert.ErrorIs(err, store.ErrNotFound)
	assert.NoError(s.Clear(ctx, GenericNamespace))

	t.Log("Basic Test")
	require.NoError(s.Save(ctx, GenericNamespace, GenericBlob))
	data, err := s.Load(ctx, GenericNamespace)
	require.NoError(err)
	assert.Equal(GenericBlob, data)

	t.Log("Namespaces are isolated")
	_, err = s.Load(ctx, OtherNamespace)
	assert.ErrorIs(err, store.ErrNotFound)

	t.Log("Save replaces")
	replacement := []byte(`{}`)
	require.NoError(s.Save(ctx, GenericNamespace, replacement))
	data, err = s.Load(ctx, GenericNamespace)
	require.NoError(err)
	assert.Equal(replacement, data)

	t.Log("Clear")
	require.NoError(s.Clear(ctx, GenericNamespace))
	_, err = s.Load(ctx, GenericNamespace)
	assert.ErrorIs(err, store.ErrNotFound)

	if quota > 0 {
		t.Log("Quota")
		err = s.Save(ctx, GenericNamespace, make([]byte, quota+1))
		assert.ErrorIs(err, store.ErrQuotaExceeded)
		_, err = s.Load(ctx, GenericNamespace)
		assert.ErrorIs(err, store.ErrNotFound, "a rejected save must not leave a partial value behind")
	}
}
