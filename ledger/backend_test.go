// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package ledger

import (
	"context"
	"errors"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// fakeBackend answers contract calls from canned outputs packed through
// the contract interface and records submitted transactions.
type fakeBackend struct {
	abi     abi.ABI
	chainID *big.Int

	lock    sync.Mutex
	outputs map[string][]interface{}
	errs    map[string]error
	calls   []string
	sent    []*types.Transaction
	status  uint64
	balance *big.Int
	closed  bool
}

func newFakeBackend(parsed abi.ABI, chainID uint64) *fakeBackend {
	return &fakeBackend{
		abi:     parsed,
		chainID: new(big.Int).SetUint64(chainID),
		outputs: map[string][]interface{}{},
		errs:    map[string]error{},
		status:  types.ReceiptStatusSuccessful,
		balance: big.NewInt(0),
	}
}

func (b *fakeBackend) set(method string, values ...interface{}) {
	b.lock.Lock()
	defer b.lock.Unlock()
	b.outputs[method] = values
}

func (b *fakeBackend) fail(method string, err error) {
	b.lock.Lock()
	defer b.lock.Unlock()
	b.errs[method] = err
}

func (b *fakeBackend) called() []string {
	b.lock.Lock()
	defer b.lock.Unlock()
	return append([]string(nil), b.calls...)
}

// decodeSent returns the method name and arguments of the i'th submitted transaction.
func (b *fakeBackend) decodeSent(i int) (string, []interface{}, *types.Transaction, error) {
	b.lock.Lock()
	defer b.lock.Unlock()
	if i >= len(b.sent) {
		return "", nil, nil, errors.New("no such transaction")
	}
	tx := b.sent[i]
	m, err := b.abi.MethodById(tx.Data()[:4])
	if err != nil {
		return "", nil, nil, err
	}
	args, err := m.Inputs.Unpack(tx.Data()[4:])
	return m.Name, args, tx, err
}

func (b *fakeBackend) CallContract(_ context.Context, call ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	m, err := b.abi.MethodById(call.Data[:4])
	if err != nil {
		return nil, err
	}
	b.lock.Lock()
	defer b.lock.Unlock()
	b.calls = append(b.calls, m.Name)
	if err := b.errs[m.Name]; err != nil {
		return nil, err
	}
	return m.Outputs.Pack(b.outputs[m.Name]...)
}

func (b *fakeBackend) CodeAt(context.Context, common.Address, *big.Int) ([]byte, error) {
	return []byte{0x60, 0x80}, nil
}

func (b *fakeBackend) HeaderByNumber(context.Context, *big.Int) (*types.Header, error) {
	return &types.Header{Number: big.NewInt(1), BaseFee: big.NewInt(1_000_000_000)}, nil
}

func (b *fakeBackend) PendingCodeAt(context.Context, common.Address) ([]byte, error) {
	return []byte{0x60, 0x80}, nil
}

func (b *fakeBackend) PendingNonceAt(context.Context, common.Address) (uint64, error) {
	b.lock.Lock()
	defer b.lock.Unlock()
	return uint64(len(b.sent)), nil
}

func (b *fakeBackend) SuggestGasPrice(context.Context) (*big.Int, error) {
	return big.NewInt(2_000_000_000), nil
}

func (b *fakeBackend) SuggestGasTipCap(context.Context) (*big.Int, error) {
	return big.NewInt(1_000_000_000), nil
}

func (b *fakeBackend) EstimateGas(context.Context, ethereum.CallMsg) (uint64, error) {
	return 100_000, nil
}

func (b *fakeBackend) SendTransaction(_ context.Context, tx *types.Transaction) error {
	m, err := b.abi.MethodById(tx.Data()[:4])
	if err != nil {
		return err
	}
	b.lock.Lock()
	defer b.lock.Unlock()
	if err := b.errs[m.Name]; err != nil {
		return err
	}
	b.sent = append(b.sent, tx)
	return nil
}

func (b *fakeBackend) FilterLogs(context.Context, ethereum.FilterQuery) ([]types.Log, error) {
	return nil, nil
}

func (b *fakeBackend) SubscribeFilterLogs(context.Context, ethereum.FilterQuery, chan<- types.Log) (ethereum.Subscription, error) {
	return nil, errors.New("subscriptions are not supported")
}

func (b *fakeBackend) TransactionReceipt(_ context.Context, hash common.Hash) (*types.Receipt, error) {
	b.lock.Lock()
	defer b.lock.Unlock()
	for _, tx := range b.sent {
		if tx.Hash() == hash {
			return &types.Receipt{Status: b.status, TxHash: hash, GasUsed: 21_000, BlockNumber: big.NewInt(2)}, nil
		}
	}
	return nil, ethereum.NotFound
}

func (b *fakeBackend) BalanceAt(context.Context, common.Address, *big.Int) (*big.Int, error) {
	b.lock.Lock()
	defer b.lock.Unlock()
	return new(big.Int).Set(b.balance), nil
}

func (b *fakeBackend) ChainID(context.Context) (*big.Int, error) {
	return new(big.Int).Set(b.chainID), nil
}

func (b *fakeBackend) Close() {
	b.lock.Lock()
	defer b.lock.Unlock()
	b.closed = true
}
