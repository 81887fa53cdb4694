// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package ledger

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/spf13/afero"
)

// Contract method names.
const (
	MethodExists       = "exists"
	MethodIsAvailable  = "isAvailable"
	MethodOwnerOf      = "ownerOf"
	MethodTokenURI     = "tokenURI"
	MethodPrice        = "price"
	MethodTotalSupply  = "totalSupply"
	MethodRoyaltyInfo  = "royaltyInfo"
	MethodVirtualOwner = "virtualOwner"
	MethodBuy          = "buy"
	MethodTransferFrom = "transferFrom"
	MethodSetPrice     = "setPrice"
	MethodSetRoyalty   = "setRoyalty"
	MethodWithdraw     = "withdraw"
	MethodAirdrop      = "airdrop"
)

// RequiredMethods lists every method the gateway calls.
var RequiredMethods = []string{
	MethodExists, MethodIsAvailable, MethodOwnerOf, MethodTokenURI,
	MethodPrice, MethodTotalSupply, MethodRoyaltyInfo, MethodVirtualOwner,
	MethodBuy, MethodTransferFrom, MethodSetPrice, MethodSetRoyalty,
	MethodWithdraw, MethodAirdrop,
}

var ErrMissingMethods = errors.New("contract interface is missing methods")

//go:embed abi/storefront.json
var defaultABI []byte

// ParseABI reads a JSON interface document and verifies it declares every
// required method.
func ParseABI(r io.Reader) (abi.ABI, error) {
	parsed, err := abi.JSON(r)
	if err != nil {
		return abi.ABI{}, fmt.Errorf("parsing contract interface: %w", err)
	}
	var missing []string
	for _, m := range RequiredMethods {
		if _, ok := parsed.Methods[m]; !ok {
			missing = append(missing, m)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return abi.ABI{}, fmt.Errorf("%w: %v", ErrMissingMethods, missing)
	}
	return parsed, nil
}

// LoadABI reads the interface document at path, or the bundled one when
// path is empty.
func LoadABI(fs afero.Fs, path string) (abi.ABI, error) {
	if path == "" {
		return ParseABI(bytes.NewReader(defaultABI))
	}
	f, err := fs.Open(path)
	if err != nil {
		return abi.ABI{}, fmt.Errorf("opening contract interface: %w", err)
	}
	defer f.Close()
	return ParseABI(f)
}
