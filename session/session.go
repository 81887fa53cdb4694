// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/xmidt-org/vitrine/admin"
	"github.com/xmidt-org/vitrine/gallery"
	"github.com/xmidt-org/vitrine/ledger"
	"github.com/xmidt-org/vitrine/network"
	"go.uber.org/zap"
)

const defaultRetryInterval = 5 * time.Second

var (
	ErrInvalidAccount = errors.New("please choose a valid account address")
	ErrNoWallet       = errors.New("no wallet is configured")
)

// Session is the state of the storefront for the current visitor. Its
// fields never change; connecting, disconnecting or switching networks
// replaces it.
type Session struct {
	ID      uuid.UUID
	Network network.Network

	// Account is nil for read-only sessions.
	Account *common.Address

	// Admin is set when Account is the contract's virtual owner.
	Admin bool

	Gateway ledger.Gateway
	Loader  *gallery.Loader
	Started time.Time

	inflight sync.Mutex
	holds    int
	retired  bool
	closed   bool
	onClose  func()
}

// Hold keeps Gateway open until release is called, even when the session is
// replaced in the meantime. Writes hold their session until the transaction
// is mined.
func (s *Session) Hold() (release func()) {
	s.inflight.Lock()
	s.holds++
	s.inflight.Unlock()

	var once sync.Once
	return func() { once.Do(s.release) }
}

func (s *Session) release() {
	s.inflight.Lock()
	s.holds--
	done := s.closing()
	s.inflight.Unlock()
	if done {
		s.close()
	}
}

// retire closes the session now, or when the last hold is released.
func (s *Session) retire(onClose func()) {
	s.inflight.Lock()
	s.retired = true
	s.onClose = onClose
	done := s.closing()
	s.inflight.Unlock()
	if done {
		s.close()
	}
}

// closing reports whether the caller should close the session. The caller
// holds the inflight lock.
func (s *Session) closing() bool {
	if !s.retired || s.holds > 0 || s.closed {
		return false
	}
	s.closed = true
	return true
}

func (s *Session) close() {
	s.Gateway.Close()
	if s.onClose != nil {
		s.onClose()
	}
}

// Connected reports whether the session signs with a wallet account.
func (s *Session) Connected() bool {
	return s.Account != nil
}

// ShortAccount renders the account as 0x1234...abcd.
func (s *Session) ShortAccount() string {
	if s.Account == nil {
		return ""
	}
	return Shorten(s.Account.Hex())
}

// Shorten abbreviates a hex address to its first six and last four characters.
func Shorten(hex string) string {
	if len(hex) <= 10 {
		return hex
	}
	return hex[:6] + "..." + hex[len(hex)-4:]
}

// Dialer builds ledger gateways.
type Dialer interface {
	ReadOnly(ctx context.Context) (ledger.Gateway, error)
	Signed(ctx context.Context, chainID uint64, account common.Address) (ledger.Gateway, error)
}

// LoaderFactory builds a gallery loader for a gateway.
type LoaderFactory interface {
	New(r ledger.Reader) *gallery.Loader
}

// ConnectRequest asks for a signed session.
type ConnectRequest struct {
	Address    string
	Passphrase string
	ChainID    uint64
}

// Config is the session section of the configuration.
type Config struct {
	// RetryInterval is the pause between attempts to reach the default
	// network at startup.
	RetryInterval time.Duration
}

// Manager owns the current session.
type Manager struct {
	dialer   Dialer
	wallet   ledger.Wallet
	loaders  LoaderFactory
	config   Config
	measures Measures
	logger   *zap.Logger
	now      func() time.Time

	ready     chan struct{}
	readyOnce sync.Once

	// change serializes session replacement.
	change sync.Mutex

	lock    sync.RWMutex
	current *Session
}

// NewManager returns a manager with no session. Start or Run creates the
// first one.
func NewManager(d Dialer, w ledger.Wallet, loaders LoaderFactory, config Config, measures Measures, logger *zap.Logger) *Manager {
	if config.RetryInterval <= 0 {
		config.RetryInterval = defaultRetryInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		dialer:   d,
		wallet:   w,
		loaders:  loaders,
		config:   config,
		measures: measures,
		logger:   logger,
		now:      time.Now,
		ready:    make(chan struct{}),
	}
}

// Ready is closed once the first session exists.
func (m *Manager) Ready() <-chan struct{} {
	return m.ready
}

// Await blocks until a session exists or ctx ends.
func (m *Manager) Await(ctx context.Context) (*Session, error) {
	select {
	case <-m.ready:
		s, _ := m.Current()
		return s, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Current returns the session, if one exists yet.
func (m *Manager) Current() (*Session, bool) {
	m.lock.RLock()
	defer m.lock.RUnlock()
	return m.current, m.current != nil
}

// Accounts lists the wallet accounts a visitor can connect with.
func (m *Manager) Accounts() []common.Address {
	if m.wallet == nil {
		return nil
	}
	return m.wallet.Accounts()
}

// Start creates the read-only session on the default network.
func (m *Manager) Start(ctx context.Context) (err error) {
	m.change.Lock()
	defer m.change.Unlock()
	defer func() { m.measures.change(StartChange, err) }()

	gw, err := m.dialer.ReadOnly(ctx)
	if err != nil {
		return err
	}
	m.swap(m.newSession(gw, nil, false))
	return nil
}

// Run calls Start until it succeeds or ctx ends.
func (m *Manager) Run(ctx context.Context) error {
	t := time.NewTicker(m.config.RetryInterval)
	defer t.Stop()
	for {
		err := m.Start(ctx)
		if err == nil {
			return nil
		}
		m.logger.Warn("default network unavailable, retrying",
			zap.Duration("interval", m.config.RetryInterval),
			zap.Error(err),
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
}

// Connect unlocks an account and replaces the session with one signing on
// the requested chain. A chain outside the registry fails with
// ledger.SwitchNetworkError and leaves the session unchanged.
func (m *Manager) Connect(ctx context.Context, req ConnectRequest) (s *Session, err error) {
	defer func() { m.measures.change(ConnectChange, err) }()
	if !common.IsHexAddress(req.Address) {
		return nil, ErrInvalidAccount
	}
	if m.wallet == nil {
		return nil, ErrNoWallet
	}
	account := common.HexToAddress(req.Address)

	m.change.Lock()
	defer m.change.Unlock()

	if err := m.wallet.Unlock(account, req.Passphrase); err != nil {
		return nil, err
	}
	gw, err := m.dialer.Signed(ctx, req.ChainID, account)
	if err != nil {
		m.lockAccount(account)
		return nil, err
	}

	isAdmin, err := admin.IsAdmin(ctx, gw)
	if err != nil {
		m.logger.Warn("could not check admin status", zap.Stringer("account", account), zap.Error(err))
	}
	s = m.newSession(gw, &account, isAdmin)
	m.swap(s)
	m.logger.Info("wallet connected",
		zap.Stringer("session", s.ID),
		zap.Stringer("account", account),
		zap.Stringer("network", s.Network),
		zap.Bool("admin", isAdmin),
	)
	return s, nil
}

// Disconnect returns to a read-only session on the default network.
func (m *Manager) Disconnect(ctx context.Context) (s *Session, err error) {
	defer func() { m.measures.change(DisconnectChange, err) }()
	m.change.Lock()
	defer m.change.Unlock()

	gw, err := m.dialer.ReadOnly(ctx)
	if err != nil {
		return nil, err
	}
	s = m.newSession(gw, nil, false)
	m.swap(s)
	m.logger.Info("wallet disconnected", zap.Stringer("session", s.ID))
	return s, nil
}

// Close releases the current session.
func (m *Manager) Close() {
	m.change.Lock()
	defer m.change.Unlock()
	m.swap(nil)
}

func (m *Manager) newSession(gw ledger.Gateway, account *common.Address, isAdmin bool) *Session {
	s := &Session{
		ID:      uuid.New(),
		Network: gw.Network(),
		Account: account,
		Admin:   isAdmin,
		Gateway: gw,
		Started: m.now(),
	}
	if m.loaders != nil {
		s.Loader = m.loaders.New(gw)
	}
	return s
}

// swap installs next and releases the previous session. The caller holds
// the change lock.
func (m *Manager) swap(next *Session) {
	m.lock.Lock()
	prev := m.current
	m.current = next
	m.lock.Unlock()

	if next != nil {
		m.readyOnce.Do(func() { close(m.ready) })
	}
	if prev == nil {
		return
	}
	prev.retire(func() {
		if prev.Account != nil {
			m.lockAccount(*prev.Account)
		}
	})
}

// lockAccount locks account unless the current session signs with it.
func (m *Manager) lockAccount(account common.Address) {
	if cur, ok := m.Current(); ok && cur.Account != nil && *cur.Account == account {
		return
	}
	if err := m.wallet.Lock(account); err != nil {
		m.logger.Warn("could not lock account", zap.Stringer("account", account), zap.Error(err))
	}
}
