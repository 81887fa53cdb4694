// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package ledger

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrUnknownAccount = errors.New("account not found in keystore")
	ErrBadPassphrase  = errors.New("could not unlock account")
)

// Wallet holds signing accounts.
type Wallet interface {
	// Accounts lists the addresses the wallet can sign for.
	Accounts() []common.Address

	// Unlock makes account available for signing until Lock.
	Unlock(account common.Address, passphrase string) error

	Lock(account common.Address) error

	// Transactor returns signing options bound to chainID.
	Transactor(account common.Address, chainID *big.Int) (*bind.TransactOpts, error)
}

// WalletConfig is the wallet section of the configuration.
type WalletConfig struct {
	// KeystoreDir holds encrypted key files.
	KeystoreDir string

	// LightScrypt trades key file strength for unlock speed.
	LightScrypt bool
}

// KeystoreWallet is a Wallet over an encrypted key directory.
type KeystoreWallet struct {
	ks *keystore.KeyStore
}

// NewKeystoreWallet opens the keystore directory in config.
func NewKeystoreWallet(config WalletConfig) *KeystoreWallet {
	n, p := keystore.StandardScryptN, keystore.StandardScryptP
	if config.LightScrypt {
		n, p = keystore.LightScryptN, keystore.LightScryptP
	}
	return &KeystoreWallet{ks: keystore.NewKeyStore(config.KeystoreDir, n, p)}
}

func (w *KeystoreWallet) Accounts() []common.Address {
	accts := w.ks.Accounts()
	out := make([]common.Address, 0, len(accts))
	for _, a := range accts {
		out = append(out, a.Address)
	}
	return out
}

func (w *KeystoreWallet) find(account common.Address) (accounts.Account, error) {
	a, err := w.ks.Find(accounts.Account{Address: account})
	if err != nil {
		return accounts.Account{}, fmt.Errorf("%w: %s", ErrUnknownAccount, account.Hex())
	}
	return a, nil
}

func (w *KeystoreWallet) Unlock(account common.Address, passphrase string) error {
	a, err := w.find(account)
	if err != nil {
		return err
	}
	if err := w.ks.Unlock(a, passphrase); err != nil {
		return fmt.Errorf("%w: %v", ErrBadPassphrase, err)
	}
	return nil
}

func (w *KeystoreWallet) Lock(account common.Address) error {
	return w.ks.Lock(account)
}

func (w *KeystoreWallet) Transactor(account common.Address, chainID *big.Int) (*bind.TransactOpts, error) {
	a, err := w.find(account)
	if err != nil {
		return nil, err
	}
	return bind.NewKeyStoreTransactorWithChainID(w.ks, a, chainID)
}
