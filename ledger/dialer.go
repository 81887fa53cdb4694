// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package ledger

import (
	"context"
	"fmt"
	"math/big"

	"emperror.dev/emperror"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/spf13/afero"
	"github.com/xmidt-org/vitrine/network"
	"go.uber.org/zap"
)

// DialFunc opens an RPC connection.
type DialFunc func(ctx context.Context, rawurl string) (Backend, error)

// DialEthereum dials a JSON-RPC endpoint with ethclient.
func DialEthereum(ctx context.Context, rawurl string) (Backend, error) {
	c, err := ethclient.DialContext(ctx, rawurl)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Config is the ledger section of the configuration.
type Config struct {
	// ABIFile replaces the bundled contract interface.
	ABIFile string
}

// NewDialer loads the contract interface named in config from fs and returns
// a Dialer over registry.
func NewDialer(config Config, fs afero.Fs, registry *network.Registry, w Wallet, measures Measures, logger *zap.Logger) (*Dialer, error) {
	parsed, err := LoadABI(fs, config.ABIFile)
	if err != nil {
		return nil, err
	}
	return &Dialer{
		Registry: registry,
		ABI:      parsed,
		Wallet:   w,
		Dial:     DialEthereum,
		Measures: measures,
		Logger:   logger,
	}, nil
}

// Dialer builds gateways for the networks in its registry.
type Dialer struct {
	Registry *network.Registry
	ABI      abi.ABI
	Wallet   Wallet
	Dial     DialFunc
	Measures Measures
	Logger   *zap.Logger
}

// ReadOnly returns a gateway without identity on the default network.
func (d *Dialer) ReadOnly(ctx context.Context) (Gateway, error) {
	return d.open(ctx, d.Registry.Default(), nil)
}

// Signed returns a gateway that signs with account on chainID. The account
// must already be unlocked in the wallet for writes to succeed.
func (d *Dialer) Signed(ctx context.Context, chainID uint64, account common.Address) (Gateway, error) {
	n, err := d.Registry.Lookup(chainID)
	if err != nil {
		return nil, SwitchNetworkError{Requested: chainID, Target: d.Registry.Default()}
	}
	if d.Wallet == nil {
		return nil, ErrIdentityRequired
	}
	opts, err := d.Wallet.Transactor(account, new(big.Int).SetUint64(n.ChainID))
	if err != nil {
		return nil, err
	}
	return d.open(ctx, n, opts)
}

func (d *Dialer) open(ctx context.Context, n network.Network, opts *bind.TransactOpts) (Gateway, error) {
	dial := d.Dial
	if dial == nil {
		dial = DialEthereum
	}
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	backend, err := dial(ctx, n.RPCURL)
	if err != nil {
		return nil, emperror.WrapWith(err, "dialing rpc endpoint failed", "network", n.Name, "url", n.RPCURL)
	}
	closeBackend := func() {
		if c, ok := backend.(interface{ Close() }); ok {
			c.Close()
		}
	}

	id, err := backend.ChainID(ctx)
	if err != nil {
		closeBackend()
		return nil, emperror.WrapWith(err, "reading chain id failed", "network", n.Name)
	}
	if id.Uint64() != n.ChainID {
		closeBackend()
		return nil, fmt.Errorf("%w: %s reports chain id %s", ErrChainMismatch, n, id)
	}

	logger = logger.With(zap.Uint64("chainID", n.ChainID), zap.Stringer("contract", n.Contract()))
	if opts != nil {
		logger = logger.With(zap.Stringer("account", opts.From))
	}
	return &contractGateway{
		contract: bind.NewBoundContract(n.Contract(), d.ABI, backend, backend, backend),
		backend:  backend,
		network:  n,
		opts:     opts,
		measures: d.Measures,
		logger:   logger,
		close:    closeBackend,
	}, nil
}
