// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package ledger

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"
)

type pending struct {
	tx       *types.Transaction
	backend  bind.DeployBackend
	method   string
	measures Measures
	logger   *zap.Logger
}

func (p *pending) Hash() common.Hash {
	return p.tx.Hash()
}

func (p *pending) Wait(ctx context.Context) (*types.Receipt, error) {
	receipt, err := bind.WaitMined(ctx, p.backend, p.tx)
	if err != nil {
		return nil, err
	}
	if receipt.Status == types.ReceiptStatusFailed {
		p.measures.transaction(p.method, RevertedOutcome)
		p.logger.Warn("transaction reverted", zap.String("method", p.method), zap.Stringer("hash", p.tx.Hash()))
		return receipt, fmt.Errorf("%w: %s", ErrTransactionReverted, p.tx.Hash().Hex())
	}
	p.measures.transaction(p.method, ConfirmedOutcome)
	p.logger.Info("transaction confirmed",
		zap.String("method", p.method),
		zap.Stringer("hash", p.tx.Hash()),
		zap.Uint64("gasUsed", receipt.GasUsed),
	)
	return receipt, nil
}
