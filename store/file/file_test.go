// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package file

import (
	"context"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xmidt-org/vitrine/store"
	"github.com/xmidt-org/vitrine/store/storetest"
)

func TestConformance(t *testing.T) {
	s, err := New(afero.NewMemMapFs(), Config{Dir: "/var/lib/vitrine", MaxBytes: 2048})
	require.NoError(t, err)
	storetest.StoreTest(s, 2048, t)
}

func TestSaveWritesNamespaceFile(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	fsys := afero.NewMemMapFs()
	s, err := New(fsys, Config{})
	require.NoError(err)

	require.NoError(s.Save(context.Background(), "vitrine-items", []byte(`{}`)))

	data, err := afero.ReadFile(fsys, "data/vitrine-items.json")
	require.NoError(err)
	assert.Equal([]byte(`{}`), data)

	exists, err := afero.Exists(fsys, "data/vitrine-items.json.tmp")
	require.NoError(err)
	assert.False(exists)
}

func TestInvalidNamespace(t *testing.T) {
	assert := assert.New(t)
	s, err := New(afero.NewMemMapFs(), Config{})
	require.NoError(t, err)

	ctx := context.Background()
	_, err = s.Load(ctx, "../secrets")
	assert.ErrorIs(err, store.ErrInvalidNamespace)
	assert.ErrorIs(s.Save(ctx, "../secrets", nil), store.ErrInvalidNamespace)
	assert.ErrorIs(s.Clear(ctx, "../secrets"), store.ErrInvalidNamespace)
}

func TestReadOnlyFilesystem(t *testing.T) {
	assert := assert.New(t)
	base := afero.NewMemMapFs()
	require.NoError(t, base.MkdirAll("data", 0o700))
	s := &Store{fs: afero.NewReadOnlyFs(base), dir: "data"}

	err := s.Save(context.Background(), "vitrine-items", []byte(`{}`))
	assert.Error(err)
	assert.NotErrorIs(err, store.ErrQuotaExceeded)
}
