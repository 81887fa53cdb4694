// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

// Package ledgertest provides an in memory ledger.Gateway for tests of the
// packages built on top of the ledger.
package ledgertest

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/xmidt-org/vitrine/ledger"
	"github.com/xmidt-org/vitrine/network"
)

var ErrNonexistentToken = errors.New("nonexistent token")

// Item is the contract's view of one token.
type Item struct {
	Exists    bool
	Available bool
	Owner     common.Address
	URI       string
}

// Tx is a recorded submission.
type Tx struct {
	Method string
	Args   []interface{}
	Value  *big.Int
}

// Gateway is a ledger.Gateway whose state lives in memory. Submitted
// transactions take effect only when their Pending is awaited.
type Gateway struct {
	Net      network.Network
	Signer   *common.Address
	Contract common.Address

	lock         sync.Mutex
	items        map[int]Item
	price        *big.Int
	supply       *big.Int
	royaltyTo    common.Address
	royaltyBps   uint64
	virtualOwner common.Address
	balance      *big.Int
	errs         map[string]error
	revert       bool
	calls        []string
	sent         []Tx
	closed       bool
}

// New returns an empty read-only gateway on n.
func New(n network.Network) *Gateway {
	return &Gateway{
		Net:      n,
		Contract: n.Contract(),
		items:    map[int]Item{},
		price:    big.NewInt(0),
		supply:   big.NewInt(0),
		balance:  big.NewInt(0),
		errs:     map[string]error{},
	}
}

// Network returns a test network on Blocknet with a fixed contract.
func Network() network.Network {
	return network.Network{
		ChainID:         network.Blocknet,
		Name:            "Blocknet",
		Currency:        "BLOCK",
		ContractAddress: "0x00000000000000000000000000000000000000aa",
		RPCURL:          "http://localhost:8545",
	}
}

// WithSigner makes the gateway signed by account.
func (g *Gateway) WithSigner(account common.Address) *Gateway {
	g.Signer = &account
	return g
}

// SetItem replaces the state of one token.
func (g *Gateway) SetItem(id int, it Item) {
	g.lock.Lock()
	defer g.lock.Unlock()
	g.items[id] = it
}

// Item returns the state of one token.
func (g *Gateway) Item(id int) Item {
	g.lock.Lock()
	defer g.lock.Unlock()
	return g.items[id]
}

// Mint marks ids in [from, to] as existing and available with uriFn(id).
func (g *Gateway) Mint(from, to int, uriFn func(int) string) {
	g.lock.Lock()
	defer g.lock.Unlock()
	for id := from; id <= to; id++ {
		g.items[id] = Item{Exists: true, Available: true, Owner: g.Contract, URI: uriFn(id)}
	}
}

func (g *Gateway) SetPriceValue(p *big.Int) {
	g.lock.Lock()
	defer g.lock.Unlock()
	g.price = p
}

func (g *Gateway) SetSupply(s *big.Int) {
	g.lock.Lock()
	defer g.lock.Unlock()
	g.supply = s
}

func (g *Gateway) SetBalance(b *big.Int) {
	g.lock.Lock()
	defer g.lock.Unlock()
	g.balance = b
}

func (g *Gateway) SetVirtualOwner(a common.Address) {
	g.lock.Lock()
	defer g.lock.Unlock()
	g.virtualOwner = a
}

func (g *Gateway) SetRoyaltyConfig(receiver common.Address, bps uint64) {
	g.lock.Lock()
	defer g.lock.Unlock()
	g.royaltyTo, g.royaltyBps = receiver, bps
}

// Fail makes every call of method return err. A nil err clears it.
func (g *Gateway) Fail(method string, err error) {
	g.lock.Lock()
	defer g.lock.Unlock()
	if err == nil {
		delete(g.errs, method)
		return
	}
	g.errs[method] = err
}

// Revert makes awaited transactions fail.
func (g *Gateway) Revert(revert bool) {
	g.lock.Lock()
	defer g.lock.Unlock()
	g.revert = revert
}

// Calls returns the methods invoked so far, reads and writes alike.
func (g *Gateway) Calls() []string {
	g.lock.Lock()
	defer g.lock.Unlock()
	return append([]string(nil), g.calls...)
}

// CallCount returns how many times method was invoked.
func (g *Gateway) CallCount(method string) int {
	n := 0
	for _, c := range g.Calls() {
		if c == method {
			n++
		}
	}
	return n
}

// Sent returns the submitted transactions.
func (g *Gateway) Sent() []Tx {
	g.lock.Lock()
	defer g.lock.Unlock()
	return append([]Tx(nil), g.sent...)
}

// Closed reports whether Close was called.
func (g *Gateway) Closed() bool {
	g.lock.Lock()
	defer g.lock.Unlock()
	return g.closed
}

// enter records a call and returns the configured failure, if any. The
// caller holds the lock.
func (g *Gateway) enter(method string) error {
	g.calls = append(g.calls, method)
	return g.errs[method]
}

func (g *Gateway) Exists(_ context.Context, id int) (bool, error) {
	g.lock.Lock()
	defer g.lock.Unlock()
	if err := g.enter(ledger.MethodExists); err != nil {
		return false, err
	}
	return g.items[id].Exists, nil
}

func (g *Gateway) IsAvailable(_ context.Context, id int) (bool, error) {
	g.lock.Lock()
	defer g.lock.Unlock()
	if err := g.enter(ledger.MethodIsAvailable); err != nil {
		return false, err
	}
	return g.items[id].Available, nil
}

func (g *Gateway) OwnerOf(_ context.Context, id int) (common.Address, error) {
	g.lock.Lock()
	defer g.lock.Unlock()
	if err := g.enter(ledger.MethodOwnerOf); err != nil {
		return common.Address{}, err
	}
	it, ok := g.items[id]
	if !ok || !it.Exists {
		return common.Address{}, ErrNonexistentToken
	}
	return it.Owner, nil
}

func (g *Gateway) TokenURI(_ context.Context, id int) (string, error) {
	g.lock.Lock()
	defer g.lock.Unlock()
	if err := g.enter(ledger.MethodTokenURI); err != nil {
		return "", err
	}
	it, ok := g.items[id]
	if !ok || !it.Exists {
		return "", ErrNonexistentToken
	}
	return it.URI, nil
}

func (g *Gateway) Price(context.Context) (*big.Int, error) {
	g.lock.Lock()
	defer g.lock.Unlock()
	if err := g.enter(ledger.MethodPrice); err != nil {
		return nil, err
	}
	return new(big.Int).Set(g.price), nil
}

func (g *Gateway) TotalSupply(context.Context) (*big.Int, error) {
	g.lock.Lock()
	defer g.lock.Unlock()
	if err := g.enter(ledger.MethodTotalSupply); err != nil {
		return nil, err
	}
	return new(big.Int).Set(g.supply), nil
}

func (g *Gateway) RoyaltyInfo(_ context.Context, _ int, salePrice *big.Int) (common.Address, *big.Int, error) {
	g.lock.Lock()
	defer g.lock.Unlock()
	if err := g.enter(ledger.MethodRoyaltyInfo); err != nil {
		return common.Address{}, nil, err
	}
	amount := new(big.Int).Mul(salePrice, new(big.Int).SetUint64(g.royaltyBps))
	return g.royaltyTo, amount.Div(amount, big.NewInt(10000)), nil
}

func (g *Gateway) VirtualOwner(context.Context) (common.Address, error) {
	g.lock.Lock()
	defer g.lock.Unlock()
	if err := g.enter(ledger.MethodVirtualOwner); err != nil {
		return common.Address{}, err
	}
	return g.virtualOwner, nil
}

func (g *Gateway) BalanceOf(_ context.Context, account common.Address) (*big.Int, error) {
	g.lock.Lock()
	defer g.lock.Unlock()
	if err := g.enter(ledger.BalanceCall); err != nil {
		return nil, err
	}
	if account != g.Contract {
		return big.NewInt(0), nil
	}
	return new(big.Int).Set(g.balance), nil
}

func (g *Gateway) submit(method string, value *big.Int, effect func(), args ...interface{}) (ledger.Pending, error) {
	g.lock.Lock()
	defer g.lock.Unlock()
	if g.Signer == nil {
		return nil, ledger.ErrIdentityRequired
	}
	if err := g.enter(method); err != nil {
		return nil, err
	}
	g.sent = append(g.sent, Tx{Method: method, Args: args, Value: value})
	hash := crypto.Keccak256Hash([]byte(fmt.Sprintf("%s/%d", method, len(g.sent))))
	return &Pending{g: g, hash: hash, effect: effect}, nil
}

func (g *Gateway) Buy(_ context.Context, id int, value *big.Int) (ledger.Pending, error) {
	return g.submit(ledger.MethodBuy, value, func() {
		it := g.items[id]
		it.Available = false
		it.Owner = *g.Signer
		g.items[id] = it
		if value != nil {
			g.balance = new(big.Int).Add(g.balance, value)
		}
	}, id)
}

func (g *Gateway) TransferFrom(_ context.Context, from, to common.Address, id int) (ledger.Pending, error) {
	return g.submit(ledger.MethodTransferFrom, nil, func() {
		it := g.items[id]
		it.Owner = to
		g.items[id] = it
	}, from, to, id)
}

func (g *Gateway) SetPrice(_ context.Context, price *big.Int) (ledger.Pending, error) {
	return g.submit(ledger.MethodSetPrice, nil, func() {
		g.price = new(big.Int).Set(price)
	}, price)
}

func (g *Gateway) SetRoyalty(_ context.Context, receiver common.Address, feeBasisPoints uint64) (ledger.Pending, error) {
	return g.submit(ledger.MethodSetRoyalty, nil, func() {
		g.royaltyTo, g.royaltyBps = receiver, feeBasisPoints
	}, receiver, feeBasisPoints)
}

func (g *Gateway) Withdraw(context.Context) (ledger.Pending, error) {
	return g.submit(ledger.MethodWithdraw, nil, func() {
		g.balance = big.NewInt(0)
	})
}

func (g *Gateway) Airdrop(_ context.Context, recipient common.Address, id int) (ledger.Pending, error) {
	return g.submit(ledger.MethodAirdrop, nil, func() {
		it := g.items[id]
		it.Available = false
		it.Owner = recipient
		g.items[id] = it
		g.supply = new(big.Int).Add(g.supply, big.NewInt(1))
	}, recipient, id)
}

func (g *Gateway) Network() network.Network {
	return g.Net
}

func (g *Gateway) Account() (common.Address, bool) {
	if g.Signer == nil {
		return common.Address{}, false
	}
	return *g.Signer, true
}

func (g *Gateway) ContractAddress() common.Address {
	return g.Contract
}

func (g *Gateway) Close() {
	g.lock.Lock()
	defer g.lock.Unlock()
	g.closed = true
}

// Pending applies its effect to the gateway when awaited.
type Pending struct {
	g      *Gateway
	hash   common.Hash
	effect func()
	once   sync.Once
}

func (p *Pending) Hash() common.Hash {
	return p.hash
}

func (p *Pending) Wait(ctx context.Context) (*types.Receipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.g.lock.Lock()
	defer p.g.lock.Unlock()
	if p.g.revert {
		return nil, ledger.ErrTransactionReverted
	}
	p.once.Do(p.effect)
	return &types.Receipt{Status: types.ReceiptStatusSuccessful, TxHash: p.hash}, nil
}

var _ ledger.Gateway = (*Gateway)(nil)
