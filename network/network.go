// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package network

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Well known chain ids.
const (
	Blocknet    uint64 = 21201
	PolygonAmoy uint64 = 80002
	Polygon     uint64 = 137

	DefaultChainID = Blocknet
)

var (
	ErrUnsupported        = errors.New("unsupported network")
	ErrNoDefault          = errors.New("default network is not configured")
	errMissingRPCURL      = errors.New("rpc url must be set")
	errMalformedContract  = errors.New("contract address is malformed")
	errDuplicateNetworkID = errors.New("duplicate chain id")
)

// Network describes one chain the storefront can talk to.
type Network struct {
	ChainID         uint64
	Name            string
	Currency        string
	ContractAddress string
	RPCURL          string
}

// Contract returns the parsed contract address.
func (n Network) Contract() common.Address {
	return common.HexToAddress(n.ContractAddress)
}

func (n Network) String() string {
	return fmt.Sprintf("%s (Chain ID: %d)", n.Name, n.ChainID)
}

func (n Network) validate() error {
	if n.RPCURL == "" {
		return fmt.Errorf("%s: %w", n, errMissingRPCURL)
	}
	if !common.IsHexAddress(n.ContractAddress) {
		return fmt.Errorf("%s: %w: %q", n, errMalformedContract, n.ContractAddress)
	}
	return nil
}

// Defaults returns the built in networks without contract addresses.
func Defaults() []Network {
	return []Network{
		{ChainID: Blocknet, Name: "Blocknet", Currency: "BLOCK", RPCURL: "https://rpc.blocknet.org"},
		{ChainID: PolygonAmoy, Name: "Polygon Amoy", Currency: "POL", RPCURL: "https://rpc-amoy.polygon.technology"},
		{ChainID: Polygon, Name: "Polygon", Currency: "POL", RPCURL: "https://polygon-rpc.com"},
	}
}

// Config is the networks section of the configuration. Entries are keyed
// by a lowercase name and merged over the built in defaults by chain id.
type Config struct {
	Default  uint64
	Networks map[string]Network
}

// Registry is the closed set of supported networks.
type Registry struct {
	byID     map[uint64]Network
	fallback uint64
}

// NewRegistry merges config over the defaults and validates every network
// that has a contract address. The default network must be usable.
func NewRegistry(config Config) (*Registry, error) {
	r := &Registry{
		byID:     map[uint64]Network{},
		fallback: config.Default,
	}
	if r.fallback == 0 {
		r.fallback = DefaultChainID
	}
	for _, n := range Defaults() {
		r.byID[n.ChainID] = n
	}

	seen := map[uint64]string{}
	keys := make([]string, 0, len(config.Networks))
	for k := range config.Networks {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		n := config.Networks[k]
		if other, ok := seen[n.ChainID]; ok {
			return nil, fmt.Errorf("%w: %d in %s and %s", errDuplicateNetworkID, n.ChainID, other, k)
		}
		seen[n.ChainID] = k
		r.byID[n.ChainID] = merge(r.byID[n.ChainID], n, k)
	}

	for id, n := range r.byID {
		if n.ContractAddress == "" {
			if id == r.fallback {
				return nil, fmt.Errorf("%w: %s has no contract address", ErrNoDefault, n)
			}
			delete(r.byID, id)
			continue
		}
		if err := n.validate(); err != nil {
			return nil, err
		}
	}
	if _, ok := r.byID[r.fallback]; !ok {
		return nil, fmt.Errorf("%w: %d", ErrNoDefault, r.fallback)
	}
	return r, nil
}

func merge(base, override Network, key string) Network {
	base.ChainID = override.ChainID
	if override.Name != "" {
		base.Name = override.Name
	}
	if base.Name == "" {
		base.Name = strings.ToUpper(key[:1]) + key[1:]
	}
	if override.Currency != "" {
		base.Currency = override.Currency
	}
	if override.ContractAddress != "" {
		base.ContractAddress = override.ContractAddress
	}
	if override.RPCURL != "" {
		base.RPCURL = override.RPCURL
	}
	return base
}

// Lookup returns the network for chainID.
func (r *Registry) Lookup(chainID uint64) (Network, error) {
	n, ok := r.byID[chainID]
	if !ok {
		return Network{}, fmt.Errorf("%w: chain id %d", ErrUnsupported, chainID)
	}
	return n, nil
}

// Default returns the network used for read-only sessions and network switches.
func (r *Registry) Default() Network {
	return r.byID[r.fallback]
}

// Supported reports whether chainID is in the registry.
func (r *Registry) Supported(chainID uint64) bool {
	_, ok := r.byID[chainID]
	return ok
}

// All returns the supported networks ordered by chain id.
func (r *Registry) All() []Network {
	all := make([]Network, 0, len(r.byID))
	for _, n := range r.byID {
		all = append(all, n)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ChainID < all[j].ChainID })
	return all
}
