// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
	"github.com/xmidt-org/vitrine/gallery"
	"github.com/xmidt-org/vitrine/ledger"
	"github.com/xmidt-org/vitrine/ledger/ledgertest"
	"github.com/xmidt-org/vitrine/network"
)

var (
	alice   = common.HexToAddress("0x1111111111111111111111111111111111111111")
	bob     = common.HexToAddress("0x2222222222222222222222222222222222222222")
	errDial = errors.New("connection refused")
)

type mockWallet struct {
	mock.Mock
}

func (w *mockWallet) Accounts() []common.Address {
	args := w.Called()
	return args.Get(0).([]common.Address)
}

func (w *mockWallet) Unlock(account common.Address, passphrase string) error {
	return w.Called(account, passphrase).Error(0)
}

func (w *mockWallet) Lock(account common.Address) error {
	return w.Called(account).Error(0)
}

func (w *mockWallet) Transactor(account common.Address, chainID *big.Int) (*bind.TransactOpts, error) {
	args := w.Called(account, chainID)
	opts, _ := args.Get(0).(*bind.TransactOpts)
	return opts, args.Error(1)
}

// fakeDialer hands out ledgertest gateways and remembers them.
type fakeDialer struct {
	lock         sync.Mutex
	failReadOnly int
	virtualOwner common.Address
	opened       []*ledgertest.Gateway
}

func (d *fakeDialer) gateway(n network.Network) *ledgertest.Gateway {
	gw := ledgertest.New(n)
	gw.SetVirtualOwner(d.virtualOwner)
	d.opened = append(d.opened, gw)
	return gw
}

func (d *fakeDialer) ReadOnly(context.Context) (ledger.Gateway, error) {
	d.lock.Lock()
	defer d.lock.Unlock()
	if d.failReadOnly > 0 {
		d.failReadOnly--
		return nil, errDial
	}
	return d.gateway(ledgertest.Network()), nil
}

func (d *fakeDialer) Signed(_ context.Context, chainID uint64, account common.Address) (ledger.Gateway, error) {
	d.lock.Lock()
	defer d.lock.Unlock()
	if chainID != network.Blocknet {
		return nil, ledger.SwitchNetworkError{Requested: chainID, Target: ledgertest.Network()}
	}
	return d.gateway(ledgertest.Network()).WithSigner(account), nil
}

func (d *fakeDialer) last() *ledgertest.Gateway {
	d.lock.Lock()
	defer d.lock.Unlock()
	return d.opened[len(d.opened)-1]
}

type ManagerTestSuite struct {
	suite.Suite
	dialer  *fakeDialer
	wallet  *mockWallet
	manager *Manager
}

func (s *ManagerTestSuite) SetupTest() {
	s.dialer = &fakeDialer{virtualOwner: alice}
	s.wallet = new(mockWallet)
	s.manager = NewManager(s.dialer, s.wallet, gallery.Factory{}, Config{RetryInterval: time.Millisecond}, NewMeasures(), nil)
}

func (s *ManagerTestSuite) TearDownTest() {
	s.wallet.AssertExpectations(s.T())
}

func (s *ManagerTestSuite) TestReadiness() {
	_, ok := s.manager.Current()
	s.False(ok)

	ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond)
	defer cancel()
	_, err := s.manager.Await(ctx)
	s.ErrorIs(err, context.DeadlineExceeded)

	s.Require().NoError(s.manager.Start(context.Background()))
	select {
	case <-s.manager.Ready():
	default:
		s.Fail("ready is closed once a session exists")
	}

	sess, err := s.manager.Await(context.Background())
	s.Require().NoError(err)
	s.False(sess.Connected())
	s.False(sess.Admin)
	s.NotNil(sess.Loader)
	s.Equal(network.Blocknet, sess.Network.ChainID)
}

func (s *ManagerTestSuite) TestRunRetries() {
	s.dialer.failReadOnly = 2
	s.Require().NoError(s.manager.Run(context.Background()))
	_, ok := s.manager.Current()
	s.True(ok)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	m := NewManager(&fakeDialer{failReadOnly: 100}, nil, nil, Config{RetryInterval: time.Hour}, Measures{}, nil)
	s.ErrorIs(m.Run(ctx), context.Canceled)
}

func (s *ManagerTestSuite) TestConnectAdmin() {
	s.Require().NoError(s.manager.Start(context.Background()))
	readOnly, _ := s.manager.Current()
	s.wallet.On("Unlock", alice, "secret").Return(nil).Once()

	sess, err := s.manager.Connect(context.Background(), ConnectRequest{
		Address:    "0x1111111111111111111111111111111111111111",
		Passphrase: "secret",
		ChainID:    network.Blocknet,
	})
	s.Require().NoError(err)
	s.True(sess.Connected())
	s.True(sess.Admin)
	s.Equal("0x1111...1111", sess.ShortAccount())
	s.NotEqual(readOnly.ID, sess.ID)
	s.NotSame(readOnly.Loader, sess.Loader, "each session has its own loader")

	current, _ := s.manager.Current()
	s.Same(sess, current)
	s.True(readOnly.Gateway.(*ledgertest.Gateway).Closed())
}

func (s *ManagerTestSuite) TestConnectVisitor() {
	s.wallet.On("Unlock", bob, "pw").Return(nil).Once()
	sess, err := s.manager.Connect(context.Background(), ConnectRequest{Address: bob.Hex(), Passphrase: "pw", ChainID: network.Blocknet})
	s.Require().NoError(err)
	s.False(sess.Admin)
}

func (s *ManagerTestSuite) TestConnectUnsupportedNetwork() {
	s.Require().NoError(s.manager.Start(context.Background()))
	before, _ := s.manager.Current()
	s.wallet.On("Unlock", alice, "secret").Return(nil).Once()
	s.wallet.On("Lock", alice).Return(nil).Once()

	_, err := s.manager.Connect(context.Background(), ConnectRequest{Address: alice.Hex(), Passphrase: "secret", ChainID: 1})
	var switchErr ledger.SwitchNetworkError
	s.Require().ErrorAs(err, &switchErr)
	s.Equal(uint64(1), switchErr.Requested)
	s.Equal(network.Blocknet, switchErr.Target.ChainID)

	after, _ := s.manager.Current()
	s.Same(before, after, "a failed connect leaves the session in place")
}

func (s *ManagerTestSuite) TestConnectFailureKeepsSignedAccount() {
	s.wallet.On("Unlock", alice, "secret").Return(nil).Twice()

	signed, err := s.manager.Connect(context.Background(), ConnectRequest{Address: alice.Hex(), Passphrase: "secret", ChainID: network.Blocknet})
	s.Require().NoError(err)

	_, err = s.manager.Connect(context.Background(), ConnectRequest{Address: alice.Hex(), Passphrase: "secret", ChainID: 999})
	var switchErr ledger.SwitchNetworkError
	s.Require().ErrorAs(err, &switchErr)

	current, _ := s.manager.Current()
	s.Same(signed, current)
	s.False(signed.Gateway.(*ledgertest.Gateway).Closed())
	s.wallet.AssertNotCalled(s.T(), "Lock", alice)
}

func (s *ManagerTestSuite) TestHoldDefersClose() {
	s.wallet.On("Unlock", alice, "secret").Return(nil).Once()
	signed, err := s.manager.Connect(context.Background(), ConnectRequest{Address: alice.Hex(), Passphrase: "secret", ChainID: network.Blocknet})
	s.Require().NoError(err)
	gw := signed.Gateway.(*ledgertest.Gateway)

	release := signed.Hold()
	_, err = s.manager.Disconnect(context.Background())
	s.Require().NoError(err)
	s.False(gw.Closed(), "a held session stays open after it is replaced")
	s.wallet.AssertNotCalled(s.T(), "Lock", alice)

	s.wallet.On("Lock", alice).Return(nil).Once()
	release()
	s.True(gw.Closed())
	release()
	s.wallet.AssertNumberOfCalls(s.T(), "Lock", 1)

	readOnly, _ := s.manager.Current()
	s.manager.Close()
	s.True(readOnly.Gateway.(*ledgertest.Gateway).Closed(), "an unheld session closes right away")
}

func (s *ManagerTestSuite) TestConnectRejected() {
	_, err := s.manager.Connect(context.Background(), ConnectRequest{Address: "alice"})
	s.ErrorIs(err, ErrInvalidAccount)

	s.wallet.On("Unlock", alice, "wrong").Return(ledger.ErrBadPassphrase).Once()
	_, err = s.manager.Connect(context.Background(), ConnectRequest{Address: alice.Hex(), Passphrase: "wrong", ChainID: network.Blocknet})
	s.ErrorIs(err, ledger.ErrBadPassphrase)

	m := NewManager(s.dialer, nil, nil, Config{}, Measures{}, nil)
	_, err = m.Connect(context.Background(), ConnectRequest{Address: alice.Hex()})
	s.ErrorIs(err, ErrNoWallet)
}

func (s *ManagerTestSuite) TestDisconnect() {
	s.wallet.On("Unlock", alice, "secret").Return(nil).Once()
	s.wallet.On("Lock", alice).Return(nil).Once()

	signed, err := s.manager.Connect(context.Background(), ConnectRequest{Address: alice.Hex(), Passphrase: "secret", ChainID: network.Blocknet})
	s.Require().NoError(err)

	sess, err := s.manager.Disconnect(context.Background())
	s.Require().NoError(err)
	s.False(sess.Connected())
	s.False(sess.Admin)
	s.True(signed.Gateway.(*ledgertest.Gateway).Closed())
	s.Same(s.dialer.last(), sess.Gateway)
}

func (s *ManagerTestSuite) TestClose() {
	s.Require().NoError(s.manager.Start(context.Background()))
	sess, _ := s.manager.Current()
	s.manager.Close()
	_, ok := s.manager.Current()
	s.False(ok)
	s.True(sess.Gateway.(*ledgertest.Gateway).Closed())
}

func (s *ManagerTestSuite) TestAccounts() {
	s.wallet.On("Accounts").Return([]common.Address{alice, bob}).Once()
	s.Equal([]common.Address{alice, bob}, s.manager.Accounts())
	s.Nil(NewManager(s.dialer, nil, nil, Config{}, Measures{}, nil).Accounts())
}

func TestManager(t *testing.T) {
	suite.Run(t, new(ManagerTestSuite))
}

func TestShorten(t *testing.T) {
	assert := assert.New(t)
	assert.Equal("0xAbCd...Ef01", Shorten("0xAbCdEf0123456789aBcDeF0123456789AbCdEf01"))
	assert.Equal("0x12", Shorten("0x12"))
	assert.Empty((&Session{}).ShortAccount())
}
