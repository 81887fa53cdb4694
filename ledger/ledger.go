// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package ledger

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/xmidt-org/vitrine/network"
)

var (
	// ErrIdentityRequired is returned by writes on a read-only gateway.
	ErrIdentityRequired = errors.New("a connected wallet is required")

	// ErrTransactionReverted is returned by Pending.Wait when the receipt
	// reports failure.
	ErrTransactionReverted = errors.New("transaction reverted")

	// ErrChainMismatch means the RPC endpoint serves a different chain
	// than the network it is configured for.
	ErrChainMismatch = errors.New("rpc endpoint serves a different chain")
)

// SwitchNetworkError is returned when a signed gateway is requested for a
// network outside the registry.
type SwitchNetworkError struct {
	Requested uint64
	Target    network.Network
}

func (e SwitchNetworkError) Error() string {
	return fmt.Sprintf("chain id %d is not supported, please switch to %s", e.Requested, e.Target)
}

func (e SwitchNetworkError) Unwrap() error {
	return network.ErrUnsupported
}

// Reader is the read side of the contract. Reads work in every mode.
type Reader interface {
	Exists(ctx context.Context, id int) (bool, error)
	IsAvailable(ctx context.Context, id int) (bool, error)
	OwnerOf(ctx context.Context, id int) (common.Address, error)
	TokenURI(ctx context.Context, id int) (string, error)
	Price(ctx context.Context) (*big.Int, error)
	TotalSupply(ctx context.Context) (*big.Int, error)

	// RoyaltyInfo returns the receiver and the royalty owed on salePrice.
	RoyaltyInfo(ctx context.Context, id int, salePrice *big.Int) (common.Address, *big.Int, error)
	VirtualOwner(ctx context.Context) (common.Address, error)

	// BalanceOf returns the native balance held by account.
	BalanceOf(ctx context.Context, account common.Address) (*big.Int, error)
}

// Writer submits transactions. Each call returns once the transaction is
// accepted by the node; callers Wait on the result before reading
// dependent state.
type Writer interface {
	Buy(ctx context.Context, id int, value *big.Int) (Pending, error)
	TransferFrom(ctx context.Context, from, to common.Address, id int) (Pending, error)
	SetPrice(ctx context.Context, price *big.Int) (Pending, error)
	SetRoyalty(ctx context.Context, receiver common.Address, feeBasisPoints uint64) (Pending, error)
	Withdraw(ctx context.Context) (Pending, error)
	Airdrop(ctx context.Context, recipient common.Address, id int) (Pending, error)
}

// Gateway is a handle on the contract for one network and, optionally,
// one signing account.
type Gateway interface {
	Reader
	Writer

	// Network is the network the gateway is bound to.
	Network() network.Network

	// Account returns the signing account, if any.
	Account() (common.Address, bool)

	// ContractAddress is the address of the storefront contract.
	ContractAddress() common.Address

	Close()
}

// Pending is a submitted transaction.
type Pending interface {
	Hash() common.Hash

	// Wait blocks until the transaction is mined. It returns
	// ErrTransactionReverted when the transaction failed on chain.
	Wait(ctx context.Context) (*types.Receipt, error)
}
