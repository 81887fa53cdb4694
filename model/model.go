// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package model

import (
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Item IDs of the series live in this closed range.
const (
	MinItemID = 1
	MaxItemID = 10000
)

// ValidItemID reports whether id names an item of the series.
func ValidItemID(id int) bool {
	return id >= MinItemID && id <= MaxItemID
}

// Attribute is a single trait of an item as found in its metadata document.
type Attribute struct {
	TraitType string `json:"trait_type"`
	Value     any    `json:"value"`
}

// Metadata is the display document referenced by an item's token URI.
type Metadata struct {
	Name        string      `json:"name,omitempty"`
	Description string      `json:"description,omitempty"`
	Image       string      `json:"image,omitempty"`
	Attributes  []Attribute `json:"attributes,omitempty"`
}

// DisplayName returns the metadata name, or a placeholder derived from the item ID.
func (m Metadata) DisplayName(id int) string {
	if m.Name != "" {
		return m.Name
	}
	return PlaceholderName(id)
}

// PlaceholderName is the name shown for items without usable metadata.
func PlaceholderName(id int) string {
	return fmt.Sprintf("Item #%d", id)
}

// ItemView is the resolved state of a single item.
type ItemView struct {
	ID        int
	Exists    bool
	Available bool

	// Owner is only set when the item is not available.
	Owner *common.Address

	// Metadata is nil when the token URI could not be read or decoded.
	Metadata *Metadata

	// Price is the sale price in the network's base unit.
	Price    *big.Int
	Currency string
}

// Name returns the display name for the item.
func (v ItemView) Name() string {
	if v.Metadata == nil {
		return PlaceholderName(v.ID)
	}
	return v.Metadata.DisplayName(v.ID)
}

// CacheEntry holds the minimal display metadata kept in the local item cache.
type CacheEntry struct {
	Name  string `json:"name"`
	Image string `json:"image"`

	// Timestamp is the write time in unix milliseconds.
	Timestamp int64 `json:"timestamp"`
}

// WrittenAt returns the entry's write time.
func (e CacheEntry) WrittenAt() time.Time {
	return time.UnixMilli(e.Timestamp)
}

// Tile is one entry of the gallery.
type Tile struct {
	ID     int    `json:"id"`
	Name   string `json:"name"`
	Image  string `json:"image"`
	Cached bool   `json:"cached"`
}

// RoyaltyConfig is the royalty receiver and fee as reported by the ledger.
type RoyaltyConfig struct {
	Receiver       common.Address `json:"receiver"`
	FeeBasisPoints uint64         `json:"feeBasisPoints"`
}

// Percentage returns the fee as a percentage of the sale price.
func (r RoyaltyConfig) Percentage() float64 {
	return float64(r.FeeBasisPoints) / 100
}

// Stats is a snapshot of contract-wide values.
type Stats struct {
	TotalSupply *big.Int       `json:"totalSupply,omitempty"`
	Price       *big.Int       `json:"price,omitempty"`
	Balance     *big.Int       `json:"balance,omitempty"`
	Royalty     *RoyaltyConfig `json:"royalty,omitempty"`
	ObservedAt  time.Time      `json:"observedAt"`
}

var weiPerEther = new(big.Rat).SetInt(big.NewInt(1_000_000_000_000_000_000))

// FormatEther renders a base unit amount as a decimal of the native
// currency without trailing zeros.
func FormatEther(wei *big.Int) string {
	if wei == nil {
		return "-"
	}
	s := new(big.Rat).Quo(new(big.Rat).SetInt(wei), weiPerEther).FloatString(18)
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}
