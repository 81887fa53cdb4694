// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package item

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-playground/validator/v10"
	"github.com/xmidt-org/vitrine/ledger"
	"github.com/xmidt-org/vitrine/model"
	"go.uber.org/zap"
)

var (
	ErrInvalidID        = fmt.Errorf("please enter a valid item id between %d and %d", model.MinItemID, model.MaxItemID)
	ErrInvalidRecipient = errors.New("please enter a valid recipient address")
	ErrNotOwner         = errors.New("only the owner can send this item")
)

// MetadataResolver turns a token URI into a metadata document.
type MetadataResolver interface {
	Resolve(ctx context.Context, uri string) (model.Metadata, error)
}

// ParseID parses a user supplied item id.
func ParseID(raw string) (int, error) {
	id, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || !model.ValidItemID(id) {
		return 0, ErrInvalidID
	}
	return id, nil
}

// Controller reads and acts on a single item.
type Controller struct {
	resolver MetadataResolver
	validate *validator.Validate
	logger   *zap.Logger
}

// NewController returns a controller resolving metadata with r.
func NewController(r MetadataResolver, logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{
		resolver: r,
		validate: validator.New(),
		logger:   logger,
	}
}

// Load reads the item. Items that do not exist come back with Exists unset
// and nothing else read. Metadata and price are best effort.
func (c *Controller) Load(ctx context.Context, gw ledger.Gateway, id int) (model.ItemView, error) {
	if !model.ValidItemID(id) {
		return model.ItemView{}, ErrInvalidID
	}
	v := model.ItemView{ID: id, Currency: gw.Network().Currency}

	exists, err := gw.Exists(ctx, id)
	if err != nil {
		return model.ItemView{}, err
	}
	if !exists {
		return v, nil
	}
	v.Exists = true

	if v.Available, err = gw.IsAvailable(ctx, id); err != nil {
		return model.ItemView{}, err
	}
	if !v.Available {
		owner, err := gw.OwnerOf(ctx, id)
		if err != nil {
			return model.ItemView{}, err
		}
		v.Owner = &owner
	}

	logger := c.logger.With(zap.Int("id", id))
	if uri, err := gw.TokenURI(ctx, id); err != nil {
		logger.Info("could not read token uri", zap.Error(err))
	} else if m, err := c.resolver.Resolve(ctx, uri); err != nil {
		logger.Info("could not resolve metadata", zap.Error(err))
	} else {
		v.Metadata = &m
	}

	if v.Available {
		if v.Price, err = gw.Price(ctx); err != nil {
			logger.Info("could not read price", zap.Error(err))
		}
	}
	return v, nil
}

// Buy purchases the item at the current price, waits for confirmation and
// reloads it.
func (c *Controller) Buy(ctx context.Context, gw ledger.Gateway, id int) (model.ItemView, error) {
	if !model.ValidItemID(id) {
		return model.ItemView{}, ErrInvalidID
	}
	if _, ok := gw.Account(); !ok {
		return model.ItemView{}, ledger.ErrIdentityRequired
	}

	price, err := gw.Price(ctx)
	if err != nil {
		return model.ItemView{}, err
	}
	p, err := gw.Buy(ctx, id, price)
	if err != nil {
		return model.ItemView{}, err
	}
	if err := c.wait(ctx, p, "buy", id); err != nil {
		return model.ItemView{}, err
	}
	return c.Load(ctx, gw, id)
}

// Send transfers an owned item to a recipient, waits for confirmation and
// reloads it.
func (c *Controller) Send(ctx context.Context, gw ledger.Gateway, id int, to string) (model.ItemView, error) {
	if !model.ValidItemID(id) {
		return model.ItemView{}, ErrInvalidID
	}
	if err := c.validate.Var(to, "required,eth_addr"); err != nil {
		return model.ItemView{}, ErrInvalidRecipient
	}
	from, ok := gw.Account()
	if !ok {
		return model.ItemView{}, ledger.ErrIdentityRequired
	}

	owner, err := gw.OwnerOf(ctx, id)
	if err != nil {
		return model.ItemView{}, err
	}
	if owner != from {
		return model.ItemView{}, ErrNotOwner
	}

	p, err := gw.TransferFrom(ctx, from, common.HexToAddress(to), id)
	if err != nil {
		return model.ItemView{}, err
	}
	if err := c.wait(ctx, p, "send", id); err != nil {
		return model.ItemView{}, err
	}
	return c.Load(ctx, gw, id)
}

func (c *Controller) wait(ctx context.Context, p ledger.Pending, action string, id int) error {
	logger := c.logger.With(zap.String("action", action), zap.Int("id", id), zap.Stringer("hash", p.Hash()))
	logger.Info("waiting for confirmation")
	if _, err := p.Wait(ctx); err != nil {
		logger.Warn("transaction failed", zap.Error(err))
		return err
	}
	logger.Info("transaction confirmed")
	return nil
}
