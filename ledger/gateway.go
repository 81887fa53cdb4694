// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package ledger

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/xmidt-org/vitrine/network"
	"go.uber.org/zap"
)

// BalanceCall labels native balance reads, which bypass the contract.
const BalanceCall = "balance"

var ErrUnexpectedOutput = errors.New("unexpected contract output")

// Backend is the RPC surface the gateway needs. *ethclient.Client
// satisfies it.
type Backend interface {
	bind.ContractBackend
	bind.DeployBackend
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	ChainID(ctx context.Context) (*big.Int, error)
}

// contractGateway implements Gateway on top of a bound contract. A nil
// opts makes it read-only.
type contractGateway struct {
	contract *bind.BoundContract
	backend  Backend
	network  network.Network
	opts     *bind.TransactOpts
	measures Measures
	logger   *zap.Logger
	close    func()
}

func (g *contractGateway) Network() network.Network {
	return g.network
}

func (g *contractGateway) Account() (common.Address, bool) {
	if g.opts == nil {
		return common.Address{}, false
	}
	return g.opts.From, true
}

func (g *contractGateway) ContractAddress() common.Address {
	return g.network.Contract()
}

func (g *contractGateway) Close() {
	if g.close != nil {
		g.close()
	}
}

func tokenID(id int) *big.Int {
	return big.NewInt(int64(id))
}

func (g *contractGateway) call(ctx context.Context, method string, args ...interface{}) (out []interface{}, err error) {
	start := time.Now()
	defer func() {
		g.measures.call(method, start, err)
		if err != nil {
			g.logger.Debug("contract call failed", zap.String("method", method), zap.Error(err))
		}
	}()
	err = g.contract.Call(&bind.CallOpts{Context: ctx}, &out, method, args...)
	return
}

func output[T any](method string, out []interface{}, i int) (T, error) {
	var zero T
	if len(out) <= i {
		return zero, fmt.Errorf("%w: %s returned %d values", ErrUnexpectedOutput, method, len(out))
	}
	v, ok := out[i].(T)
	if !ok {
		return zero, fmt.Errorf("%w: %s returned %T", ErrUnexpectedOutput, method, out[i])
	}
	return v, nil
}

func callOne[T any](ctx context.Context, g *contractGateway, method string, args ...interface{}) (T, error) {
	out, err := g.call(ctx, method, args...)
	if err != nil {
		var zero T
		return zero, err
	}
	return output[T](method, out, 0)
}

func (g *contractGateway) Exists(ctx context.Context, id int) (bool, error) {
	return callOne[bool](ctx, g, MethodExists, tokenID(id))
}

func (g *contractGateway) IsAvailable(ctx context.Context, id int) (bool, error) {
	return callOne[bool](ctx, g, MethodIsAvailable, tokenID(id))
}

func (g *contractGateway) OwnerOf(ctx context.Context, id int) (common.Address, error) {
	return callOne[common.Address](ctx, g, MethodOwnerOf, tokenID(id))
}

func (g *contractGateway) TokenURI(ctx context.Context, id int) (string, error) {
	return callOne[string](ctx, g, MethodTokenURI, tokenID(id))
}

func (g *contractGateway) Price(ctx context.Context) (*big.Int, error) {
	return callOne[*big.Int](ctx, g, MethodPrice)
}

func (g *contractGateway) TotalSupply(ctx context.Context) (*big.Int, error) {
	return callOne[*big.Int](ctx, g, MethodTotalSupply)
}

func (g *contractGateway) RoyaltyInfo(ctx context.Context, id int, salePrice *big.Int) (common.Address, *big.Int, error) {
	out, err := g.call(ctx, MethodRoyaltyInfo, tokenID(id), salePrice)
	if err != nil {
		return common.Address{}, nil, err
	}
	receiver, err := output[common.Address](MethodRoyaltyInfo, out, 0)
	if err != nil {
		return common.Address{}, nil, err
	}
	amount, err := output[*big.Int](MethodRoyaltyInfo, out, 1)
	if err != nil {
		return common.Address{}, nil, err
	}
	return receiver, amount, nil
}

func (g *contractGateway) VirtualOwner(ctx context.Context) (common.Address, error) {
	return callOne[common.Address](ctx, g, MethodVirtualOwner)
}

func (g *contractGateway) BalanceOf(ctx context.Context, account common.Address) (balance *big.Int, err error) {
	start := time.Now()
	defer func() { g.measures.call(BalanceCall, start, err) }()
	return g.backend.BalanceAt(ctx, account, nil)
}

func (g *contractGateway) transact(ctx context.Context, method string, value *big.Int, args ...interface{}) (p Pending, err error) {
	if g.opts == nil {
		return nil, ErrIdentityRequired
	}
	start := time.Now()
	defer func() {
		g.measures.call(method, start, err)
		if err != nil {
			g.measures.transaction(method, FailureOutcome)
			g.logger.Warn("transaction rejected", zap.String("method", method), zap.Error(err))
		}
	}()

	opts := *g.opts
	opts.Context = ctx
	opts.Value = value
	tx, err := g.contract.Transact(&opts, method, args...)
	if err != nil {
		return nil, err
	}
	g.measures.transaction(method, SubmittedOutcome)
	g.logger.Info("transaction submitted",
		zap.String("method", method),
		zap.Stringer("hash", tx.Hash()),
		zap.Stringer("from", opts.From),
	)
	return &pending{
		tx:       tx,
		backend:  g.backend,
		method:   method,
		measures: g.measures,
		logger:   g.logger,
	}, nil
}

func (g *contractGateway) Buy(ctx context.Context, id int, value *big.Int) (Pending, error) {
	return g.transact(ctx, MethodBuy, value, tokenID(id))
}

func (g *contractGateway) TransferFrom(ctx context.Context, from, to common.Address, id int) (Pending, error) {
	return g.transact(ctx, MethodTransferFrom, nil, from, to, tokenID(id))
}

func (g *contractGateway) SetPrice(ctx context.Context, price *big.Int) (Pending, error) {
	return g.transact(ctx, MethodSetPrice, nil, price)
}

func (g *contractGateway) SetRoyalty(ctx context.Context, receiver common.Address, feeBasisPoints uint64) (Pending, error) {
	return g.transact(ctx, MethodSetRoyalty, nil, receiver, new(big.Int).SetUint64(feeBasisPoints))
}

func (g *contractGateway) Withdraw(ctx context.Context) (Pending, error) {
	return g.transact(ctx, MethodWithdraw, nil)
}

func (g *contractGateway) Airdrop(ctx context.Context, recipient common.Address, id int) (Pending, error) {
	return g.transact(ctx, MethodAirdrop, nil, recipient, tokenID(id))
}
