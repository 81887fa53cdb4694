// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package ledger

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/xmidt-org/vitrine/network"
)

type mockWallet struct {
	mock.Mock
}

func (w *mockWallet) Accounts() []common.Address {
	return w.Called().Get(0).([]common.Address)
}

func (w *mockWallet) Unlock(account common.Address, passphrase string) error {
	return w.Called(account, passphrase).Error(0)
}

func (w *mockWallet) Lock(account common.Address) error {
	return w.Called(account).Error(0)
}

func (w *mockWallet) Transactor(account common.Address, chainID *big.Int) (*bind.TransactOpts, error) {
	args := w.Called(account, chainID)
	opts, _ := args.Get(0).(*bind.TransactOpts)
	return opts, args.Error(1)
}

func newTestDialer(t *testing.T, chainID uint64, w Wallet) (*Dialer, *fakeBackend) {
	parsed, err := LoadABI(afero.NewMemMapFs(), "")
	require.NoError(t, err)
	registry, err := network.NewRegistry(network.Config{Networks: map[string]network.Network{
		"blocknet": {ChainID: network.Blocknet, ContractAddress: testContract, RPCURL: "http://blocknet:8545"},
		"amoy":     {ChainID: network.PolygonAmoy, ContractAddress: testContract, RPCURL: "http://amoy:8545"},
	}})
	require.NoError(t, err)
	backend := newFakeBackend(parsed, chainID)
	return &Dialer{
		Registry: registry,
		ABI:      parsed,
		Wallet:   w,
		Measures: NewMeasures(),
		Dial: func(_ context.Context, rawurl string) (Backend, error) {
			if rawurl == "http://unreachable:8545" {
				return nil, errors.New("connection refused")
			}
			return backend, nil
		},
	}, backend
}

func TestDialerReadOnly(t *testing.T) {
	assert := assert.New(t)
	d, backend := newTestDialer(t, network.Blocknet, nil)

	g, err := d.ReadOnly(context.Background())
	require.NoError(t, err)
	assert.Equal(network.Blocknet, g.Network().ChainID)
	_, ok := g.Account()
	assert.False(ok)

	g.Close()
	assert.True(backend.closed)
}

func TestDialerSigned(t *testing.T) {
	assert := assert.New(t)
	account := common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")
	w := new(mockWallet)
	w.On("Transactor", account, big.NewInt(int64(network.PolygonAmoy))).Return(&bind.TransactOpts{From: account}, nil)
	d, _ := newTestDialer(t, network.PolygonAmoy, w)

	g, err := d.Signed(context.Background(), network.PolygonAmoy, account)
	require.NoError(t, err)
	from, ok := g.Account()
	assert.True(ok)
	assert.Equal(account, from)
	assert.Equal("Polygon Amoy", g.Network().Name)
	w.AssertExpectations(t)
}

func TestDialerUnsupportedNetwork(t *testing.T) {
	assert := assert.New(t)
	w := new(mockWallet)
	d, _ := newTestDialer(t, network.Blocknet, w)

	_, err := d.Signed(context.Background(), 1, common.Address{})
	var switchErr SwitchNetworkError
	require.True(t, errors.As(err, &switchErr))
	assert.Equal(uint64(1), switchErr.Requested)
	assert.Equal(network.Blocknet, switchErr.Target.ChainID)
	w.AssertNotCalled(t, "Transactor", mock.Anything, mock.Anything)
}

func TestDialerChainMismatch(t *testing.T) {
	d, backend := newTestDialer(t, 1, nil)
	_, err := d.ReadOnly(context.Background())
	assert.ErrorIs(t, err, ErrChainMismatch)
	assert.True(t, backend.closed)
}

func TestDialerDialFailure(t *testing.T) {
	d, _ := newTestDialer(t, network.Blocknet, nil)
	registry, err := network.NewRegistry(network.Config{Networks: map[string]network.Network{
		"blocknet": {ChainID: network.Blocknet, ContractAddress: testContract, RPCURL: "http://unreachable:8545"},
	}})
	require.NoError(t, err)
	d.Registry = registry
	d.ABI = abi.ABI{}

	_, err = d.ReadOnly(context.Background())
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestNewDialer(t *testing.T) {
	registry, err := network.NewRegistry(network.Config{Networks: map[string]network.Network{
		"blocknet": {ChainID: network.Blocknet, ContractAddress: testContract},
	}})
	require.NoError(t, err)
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/etc/vitrine/partial.json", []byte(`[{"type":"function","name":"price","outputs":[{"type":"uint256"}]}]`), 0o644))

	t.Run("Bundled", func(t *testing.T) {
		d, err := NewDialer(Config{}, fs, registry, nil, NewMeasures(), nil)
		require.NoError(t, err)
		assert.Contains(t, d.ABI.Methods, MethodBuy)
		assert.NotNil(t, d.Dial)
	})
	t.Run("MissingFile", func(t *testing.T) {
		_, err := NewDialer(Config{ABIFile: "/nope.json"}, fs, registry, nil, NewMeasures(), nil)
		assert.Error(t, err)
	})
	t.Run("MissingMethods", func(t *testing.T) {
		_, err := NewDialer(Config{ABIFile: "/etc/vitrine/partial.json"}, fs, registry, nil, NewMeasures(), nil)
		assert.ErrorIs(t, err, ErrMissingMethods)
	})
}
