// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package admin

import (
	"context"
	"errors"
	"math"
	"math/big"
	"regexp"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/params"
	"github.com/go-playground/validator/v10"
	"github.com/xmidt-org/vitrine/ledger"
	"github.com/xmidt-org/vitrine/model"
	"go.uber.org/zap"
)

var (
	ErrNotAdmin         = errors.New("the connected account is not the contract administrator")
	ErrInvalidPrice     = errors.New("please enter a valid price")
	ErrInvalidTokenID   = errors.New("please enter a valid token id")
	ErrInvalidRecipient = errors.New("please enter a valid recipient address")
	ErrInvalidRoyalty   = errors.New("royalty percentage must be between 0 and 100")
	ErrInvalidReceiver  = errors.New("please enter a valid royalty receiver address")
)

var decimal = regexp.MustCompile(`^(\d+(\.\d+)?|\.\d+)$`)

// referencePrice is the sale price royaltyInfo is asked about; the answer
// in basis points is the amount owed on it.
var referencePrice = big.NewInt(10000)

// royaltyProbeID is the token royalties are read for. The series uses one
// royalty for every token.
const royaltyProbeID = model.MinItemID

// IsAdmin reports whether the gateway's account is the contract's virtual
// owner. Read-only gateways are never admin.
func IsAdmin(ctx context.Context, gw ledger.Gateway) (bool, error) {
	account, ok := gw.Account()
	if !ok {
		return false, nil
	}
	owner, err := gw.VirtualOwner(ctx)
	if err != nil {
		return false, err
	}
	return SameAccount(owner.Hex(), account.Hex()), nil
}

// SameAccount compares two hex addresses ignoring checksum case.
func SameAccount(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

type airdropRequest struct {
	TokenID   int    `validate:"min=1,max=10000"`
	Recipient string `validate:"required,eth_addr"`
}

type royaltyRequest struct {
	Receiver   string  `validate:"required,eth_addr"`
	Percentage float64 `validate:"min=0,max=100"`
}

// Controller runs the administrator operations. Every operation re-checks
// the gate, validates its input before submitting and refreshes Stats once
// the transaction is confirmed.
type Controller struct {
	validate *validator.Validate
	logger   *zap.Logger
	now      func() time.Time
}

// NewController returns an admin controller.
func NewController(logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{
		validate: validator.New(),
		logger:   logger,
		now:      time.Now,
	}
}

func (c *Controller) gate(ctx context.Context, gw ledger.Gateway) error {
	ok, err := IsAdmin(ctx, gw)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotAdmin
	}
	return nil
}

// ParseEther converts a decimal amount of the native currency to wei.
// Amounts must be positive and have at most 18 decimals.
func ParseEther(amount string) (*big.Int, error) {
	amount = strings.TrimSpace(amount)
	if !decimal.MatchString(amount) {
		return nil, ErrInvalidPrice
	}
	r, ok := new(big.Rat).SetString(amount)
	if !ok || r.Sign() <= 0 {
		return nil, ErrInvalidPrice
	}
	r.Mul(r, new(big.Rat).SetInt(big.NewInt(params.Ether)))
	if !r.IsInt() {
		return nil, ErrInvalidPrice
	}
	return new(big.Int).Set(r.Num()), nil
}

// BasisPoints converts a royalty percentage to basis points, truncating.
func BasisPoints(percentage float64) uint64 {
	return uint64(percentage * 100)
}

// SetPrice sets the sale price from a decimal amount of the native currency.
func (c *Controller) SetPrice(ctx context.Context, gw ledger.Gateway, amount string) (model.Stats, error) {
	price, err := ParseEther(amount)
	if err != nil {
		return model.Stats{}, err
	}
	if err := c.gate(ctx, gw); err != nil {
		return model.Stats{}, err
	}
	return c.submit(ctx, gw, ledger.MethodSetPrice, func() (ledger.Pending, error) {
		return gw.SetPrice(ctx, price)
	})
}

// Airdrop gives tokenID to recipient.
func (c *Controller) Airdrop(ctx context.Context, gw ledger.Gateway, tokenID int, recipient string) (model.Stats, error) {
	req := airdropRequest{TokenID: tokenID, Recipient: strings.TrimSpace(recipient)}
	if err := c.validate.Struct(req); err != nil {
		return model.Stats{}, c.inputError(err)
	}
	if err := c.gate(ctx, gw); err != nil {
		return model.Stats{}, err
	}
	return c.submit(ctx, gw, ledger.MethodAirdrop, func() (ledger.Pending, error) {
		return gw.Airdrop(ctx, common.HexToAddress(req.Recipient), req.TokenID)
	})
}

// SetRoyalty sets the royalty receiver and fee.
func (c *Controller) SetRoyalty(ctx context.Context, gw ledger.Gateway, receiver string, percentage float64) (model.Stats, error) {
	if math.IsNaN(percentage) {
		return model.Stats{}, ErrInvalidRoyalty
	}
	req := royaltyRequest{Receiver: strings.TrimSpace(receiver), Percentage: percentage}
	if err := c.validate.Struct(req); err != nil {
		return model.Stats{}, c.inputError(err)
	}
	if err := c.gate(ctx, gw); err != nil {
		return model.Stats{}, err
	}
	return c.submit(ctx, gw, ledger.MethodSetRoyalty, func() (ledger.Pending, error) {
		return gw.SetRoyalty(ctx, common.HexToAddress(req.Receiver), BasisPoints(req.Percentage))
	})
}

// Withdraw moves the contract balance to the owner.
func (c *Controller) Withdraw(ctx context.Context, gw ledger.Gateway) (model.Stats, error) {
	if err := c.gate(ctx, gw); err != nil {
		return model.Stats{}, err
	}
	return c.submit(ctx, gw, ledger.MethodWithdraw, func() (ledger.Pending, error) {
		return gw.Withdraw(ctx)
	})
}

// Stats reads the admin view of the contract.
func (c *Controller) Stats(ctx context.Context, gw ledger.Gateway) (model.Stats, error) {
	if err := c.gate(ctx, gw); err != nil {
		return model.Stats{}, err
	}
	return ReadStats(ctx, gw, true, c.now)
}

func (c *Controller) submit(ctx context.Context, gw ledger.Gateway, method string, send func() (ledger.Pending, error)) (model.Stats, error) {
	logger := c.logger.With(zap.String("method", method))
	p, err := send()
	if err != nil {
		logger.Warn("admin transaction rejected", zap.Error(err))
		return model.Stats{}, err
	}
	logger = logger.With(zap.Stringer("hash", p.Hash()))
	if _, err := p.Wait(ctx); err != nil {
		logger.Warn("admin transaction failed", zap.Error(err))
		return model.Stats{}, err
	}
	logger.Info("admin transaction confirmed")
	return ReadStats(ctx, gw, true, c.now)
}

func (c *Controller) inputError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}
	switch verrs[0].StructField() {
	case "TokenID":
		return ErrInvalidTokenID
	case "Recipient":
		return ErrInvalidRecipient
	case "Receiver":
		return ErrInvalidReceiver
	case "Percentage":
		return ErrInvalidRoyalty
	}
	return err
}

// ReadStats reads total supply and price, and with full set the contract
// balance and royalty configuration.
func ReadStats(ctx context.Context, gw ledger.Gateway, full bool, now func() time.Time) (model.Stats, error) {
	var (
		s   model.Stats
		err error
	)
	if s.TotalSupply, err = gw.TotalSupply(ctx); err != nil {
		return model.Stats{}, err
	}
	if s.Price, err = gw.Price(ctx); err != nil {
		return model.Stats{}, err
	}
	if full {
		if s.Balance, err = gw.BalanceOf(ctx, gw.ContractAddress()); err != nil {
			return model.Stats{}, err
		}
		receiver, amount, err := gw.RoyaltyInfo(ctx, royaltyProbeID, referencePrice)
		if err != nil {
			return model.Stats{}, err
		}
		s.Royalty = &model.RoyaltyConfig{Receiver: receiver, FeeBasisPoints: amount.Uint64()}
	}
	s.ObservedAt = now()
	return s, nil
}
