// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package storefront

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-kit/kit/endpoint"
	"github.com/spf13/cast"
	"github.com/xmidt-org/sallust"
	"github.com/xmidt-org/vitrine/admin"
	"github.com/xmidt-org/vitrine/gallery"
	"github.com/xmidt-org/vitrine/item"
	"github.com/xmidt-org/vitrine/ledger"
	"github.com/xmidt-org/vitrine/model"
	"github.com/xmidt-org/vitrine/network"
	"github.com/xmidt-org/vitrine/session"
	"github.com/xmidt-org/vitrine/view"
	"go.uber.org/zap"
)

const (
	defaultReadyTimeout = 10 * time.Second
	pageTitle           = "Vitrine"
)

// Sessions hands out the visitor's session.
type Sessions interface {
	Await(ctx context.Context) (*session.Session, error)
	Connect(ctx context.Context, req session.ConnectRequest) (*session.Session, error)
	Disconnect(ctx context.Context) (*session.Session, error)
	Accounts() []common.Address
}

// StatsSource supplies the contract stats shown in the header.
type StatsSource interface {
	Latest() (model.Stats, bool)
	Poll(ctx context.Context) (model.Stats, error)
}

// Config is the storefront section of the configuration.
type Config struct {
	// ReadyTimeout bounds how long a request waits for the first ledger
	// connection.
	ReadyTimeout time.Duration
}

// Service holds what the storefront endpoints act on.
type Service struct {
	sessions Sessions
	items    *item.Controller
	admin    *admin.Controller
	stats    StatsSource
	renderer *Renderer
	networks []network.Network
	config   Config
}

// NewService returns the storefront service. stats may be nil.
func NewService(sessions Sessions, items *item.Controller, ac *admin.Controller, stats StatsSource,
	renderer *Renderer, networks []network.Network, config Config) *Service {
	if config.ReadyTimeout <= 0 {
		config.ReadyTimeout = defaultReadyTimeout
	}
	return &Service{
		sessions: sessions,
		items:    items,
		admin:    ac,
		stats:    stats,
		renderer: renderer,
		networks: networks,
		config:   config,
	}
}

var errNotReady = NoticeError{
	Code:    http.StatusServiceUnavailable,
	Message: "Still connecting to the network, please try again shortly",
}

var errNotFound = NoticeError{Code: http.StatusNotFound, Message: "Not found"}

// existenceError is the notice for an item the ledger does not know.
func existenceError(id int) NoticeError {
	return NoticeError{Code: http.StatusNotFound, Message: fmt.Sprintf("Item #%d does not exist", id)}
}

// session waits for the current session.
func (s *Service) session(ctx context.Context) (*session.Session, error) {
	ctx, cancel := context.WithTimeout(ctx, s.config.ReadyTimeout)
	defer cancel()
	sess, err := s.sessions.Await(ctx)
	if err != nil || sess == nil {
		e := errNotReady
		e.Err = err
		return nil, e
	}
	return sess, nil
}

func (s *Service) header(sess *session.Session, stats model.Stats, ok bool) Header {
	var currency string
	if sess != nil {
		currency = sess.Network.Currency
	}
	return headerOf(stats, ok, currency)
}

func (s *Service) latest() (model.Stats, bool) {
	if s.stats == nil {
		return model.Stats{}, false
	}
	return s.stats.Latest()
}

// freshStats polls the ledger, falling back to the last snapshot.
func (s *Service) freshStats(ctx context.Context) (model.Stats, bool) {
	if s.stats == nil {
		return model.Stats{}, false
	}
	stats, err := s.stats.Poll(ctx)
	if err != nil {
		sallust.Get(ctx).Info("could not refresh stats", zap.Error(err))
		return s.stats.Latest()
	}
	return stats, true
}

func galleryOf(sess *session.Session) *GalleryPage {
	if sess == nil || sess.Loader == nil {
		return &GalleryPage{Retry: sess == nil}
	}
	return &GalleryPage{
		Tiles: sess.Loader.Tiles(),
		Done:  sess.Loader.Next() > model.MaxItemID,
	}
}

// view builds the page for state. A single item that cannot be read falls
// back to the gallery with a notice.
func (s *Service) view(ctx context.Context, sess *session.Session, state view.State) Page {
	stats, ok := s.latest()
	p := Page{
		Title:  pageTitle,
		Header: s.header(sess, stats, ok),
		Wallet: walletOf(sess, s.sessions.Accounts(), s.networks),
		State:  state,
	}
	if state.Mode == view.SingleItem {
		if sess == nil {
			p.Notices = append(p.Notices, Notice{Level: "info", Message: errNotReady.Message})
		} else if v, err := s.items.Load(ctx, sess.Gateway, state.ID); err != nil {
			p.Notices = append(p.Notices, Notice{Level: "error", Message: notice("load the item", err).Error()})
		} else {
			p.Item = s.renderer.itemPage(v, sess)
			p.Title = p.Item.Title + " | " + pageTitle
			return p
		}
		p.State = view.State{}
	}
	p.Gallery = galleryOf(sess)
	return p
}

// transitionView builds the main area for a transition. Unlike view, a
// failing item read is an error so the current view stays in place.
func (s *Service) transitionView(ctx context.Context, sess *session.Session, state view.State) (Page, error) {
	p := Page{Title: pageTitle, State: state}
	if state.Mode != view.SingleItem {
		p.Gallery = galleryOf(sess)
		return p, nil
	}
	v, err := s.items.Load(ctx, sess.Gateway, state.ID)
	if err != nil {
		return Page{}, notice("load the item", err)
	}
	p.Item = s.renderer.itemPage(v, sess)
	p.Title = p.Item.Title + " | " + pageTitle
	return p, nil
}

func newPageEndpoint(s *Service) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		req := request.(*pageRequest)
		state := req.state
		if req.restore {
			state = view.NewRouter(state, nil).PopState(req.url)
		}
		sess, err := s.session(ctx)
		if err != nil {
			sallust.Get(ctx).Info("rendering page before the ledger is ready")
		}
		return &fragment{template: "page", data: s.view(ctx, sess, state)}, nil
	}
}

func newHeaderEndpoint(s *Service) endpoint.Endpoint {
	return func(ctx context.Context, _ interface{}) (interface{}, error) {
		sess, err := s.session(ctx)
		if err != nil {
			return &fragment{template: "header", data: Header{}}, nil
		}
		stats, ok := s.freshStats(ctx)
		return &fragment{template: "header", data: s.header(sess, stats, ok)}, nil
	}
}

func newBatchEndpoint(s *Service) endpoint.Endpoint {
	return func(ctx context.Context, _ interface{}) (interface{}, error) {
		sess, err := s.session(ctx)
		if err != nil || sess.Loader == nil {
			return &fragment{template: "batch", data: GalleryPage{Retry: true}}, nil
		}
		b, err := sess.Loader.LoadNextBatch(ctx)
		if errors.Is(err, gallery.ErrLoadInFlight) {
			return &fragment{empty: true}, nil
		}
		if err != nil {
			return nil, notice("load the gallery", err)
		}
		return &fragment{template: "batch", data: GalleryPage{Tiles: b.Tiles, Done: b.Done}}, nil
	}
}

func newTransitionEndpoint(s *Service) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		req := request.(*transitionRequest)
		sess, err := s.session(ctx)
		if err != nil {
			return nil, err
		}

		var pushed string
		router := view.NewRouter(req.current, view.HistoryFunc(func(u string) { pushed = u }))
		var state view.State
		switch req.transition {
		case SelectTransition, SearchTransition:
			if state, err = router.Select(req.id); err != nil {
				return nil, err
			}
		case BackTransition:
			state = router.BackToGallery()
		case NextTransition:
			state = router.Next()
		case PrevTransition:
			state = router.Prev()
		}

		p, err := s.transitionView(ctx, sess, state)
		if err != nil {
			return nil, err
		}
		return &fragment{template: "main", data: p, pushURL: pushed}, nil
	}
}

func newBuyEndpoint(s *Service) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		req := request.(*itemRequest)
		sess, err := s.session(ctx)
		if err != nil {
			return nil, err
		}
		defer sess.Hold()()
		v, err := s.items.Buy(ctx, sess.Gateway, req.id)
		if err != nil {
			return nil, notice("buy item", err)
		}
		p := s.renderer.itemPage(v, sess)
		p.Flash = fmt.Sprintf("You bought %s", p.Title)
		return &fragment{template: "item", data: p, statsChanged: true}, nil
	}
}

func newSendEndpoint(s *Service) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		req := request.(*sendRequest)
		sess, err := s.session(ctx)
		if err != nil {
			return nil, err
		}
		defer sess.Hold()()
		v, err := s.items.Send(ctx, sess.Gateway, req.id, req.to)
		if err != nil {
			return nil, notice("send item", err)
		}
		p := s.renderer.itemPage(v, sess)
		p.Flash = fmt.Sprintf("%s sent to %s", p.Title, session.Shorten(req.to))
		return &fragment{template: "item", data: p, statsChanged: true}, nil
	}
}

func newConnectEndpoint(s *Service) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		req := request.(*connectRequest)
		var notices []Notice

		sess, err := s.sessions.Connect(ctx, req.ConnectRequest)
		var switchErr ledger.SwitchNetworkError
		if errors.As(err, &switchErr) {
			sallust.Get(ctx).Info("switching to the default network",
				zap.Uint64("requested", switchErr.Requested),
				zap.Uint64("target", switchErr.Target.ChainID),
			)
			notices = append(notices, Notice{
				Level:   "info",
				Message: fmt.Sprintf("Chain %d is not supported, switched to %s", switchErr.Requested, switchErr.Target),
			})
			retry := req.ConnectRequest
			retry.ChainID = switchErr.Target.ChainID
			sess, err = s.sessions.Connect(ctx, retry)
		}
		if err != nil {
			return nil, notice("connect wallet", err)
		}

		notices = append(notices, Notice{Level: "success", Message: "Connected " + sess.ShortAccount()})
		p := s.view(ctx, sess, req.current)
		p.Notices = append(notices, p.Notices...)
		return &fragment{template: "body", data: p, statsChanged: true}, nil
	}
}

func newDisconnectEndpoint(s *Service) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		current := request.(*view.State)
		sess, err := s.sessions.Disconnect(ctx)
		if err != nil {
			return nil, notice("disconnect wallet", err)
		}
		p := s.view(ctx, sess, *current)
		p.Notices = append([]Notice{{Level: "info", Message: "Wallet disconnected"}}, p.Notices...)
		return &fragment{template: "body", data: p}, nil
	}
}

// adminSession returns the session if its account is the administrator.
// Anyone else gets a 404 so the panel stays hidden.
func (s *Service) adminSession(ctx context.Context) (*session.Session, error) {
	sess, err := s.session(ctx)
	if err != nil {
		return nil, err
	}
	if !sess.Admin {
		return nil, errNotFound
	}
	return sess, nil
}

func newAdminPanelEndpoint(s *Service) endpoint.Endpoint {
	return func(ctx context.Context, _ interface{}) (interface{}, error) {
		sess, err := s.adminSession(ctx)
		if err != nil {
			return nil, err
		}
		stats, err := s.admin.Stats(ctx, sess.Gateway)
		if errors.Is(err, admin.ErrNotAdmin) {
			return nil, errNotFound
		}
		if err != nil {
			return nil, notice("load contract stats", err)
		}
		return &fragment{template: "admin", data: adminPage(stats, sess.Network.Currency)}, nil
	}
}

// adminAction runs an administrator write and renders the refreshed panel.
func adminAction(s *Service, action, flash string, run func(context.Context, *session.Session, interface{}) (model.Stats, error)) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		sess, err := s.adminSession(ctx)
		if err != nil {
			return nil, err
		}
		defer sess.Hold()()
		stats, err := run(ctx, sess, request)
		if err != nil {
			return nil, notice(action, err)
		}
		p := adminPage(stats, sess.Network.Currency)
		p.Flash = flash
		return &fragment{template: "admin", data: p, statsChanged: true}, nil
	}
}

func newSetPriceEndpoint(s *Service) endpoint.Endpoint {
	return adminAction(s, "set price", "Price updated", func(ctx context.Context, sess *session.Session, request interface{}) (model.Stats, error) {
		return s.admin.SetPrice(ctx, sess.Gateway, request.(*priceRequest).amount)
	})
}

func newSetRoyaltyEndpoint(s *Service) endpoint.Endpoint {
	return adminAction(s, "set royalty", "Royalty updated", func(ctx context.Context, sess *session.Session, request interface{}) (model.Stats, error) {
		req := request.(*royaltyRequest)
		pct, err := cast.ToFloat64E(req.percentage)
		if err != nil {
			return model.Stats{}, admin.ErrInvalidRoyalty
		}
		return s.admin.SetRoyalty(ctx, sess.Gateway, req.receiver, pct)
	})
}

func newAirdropEndpoint(s *Service) endpoint.Endpoint {
	return adminAction(s, "airdrop", "Airdrop confirmed", func(ctx context.Context, sess *session.Session, request interface{}) (model.Stats, error) {
		req := request.(*airdropRequest)
		id, err := strconv.Atoi(req.tokenID)
		if err != nil {
			return model.Stats{}, admin.ErrInvalidTokenID
		}
		return s.admin.Airdrop(ctx, sess.Gateway, id, req.recipient)
	})
}

func newWithdrawEndpoint(s *Service) endpoint.Endpoint {
	return adminAction(s, "withdraw", "Withdrawal confirmed", func(ctx context.Context, sess *session.Session, _ interface{}) (model.Stats, error) {
		return s.admin.Withdraw(ctx, sess.Gateway)
	})
}

// ItemResponse is the JSON rendering of an item.
type ItemResponse struct {
	ID         int               `json:"id"`
	Name       string            `json:"name"`
	Available  bool              `json:"available"`
	Owner      string            `json:"owner,omitempty"`
	Image      string            `json:"image,omitempty"`
	Attributes []model.Attribute `json:"attributes,omitempty"`
	Price      string            `json:"price,omitempty"`
	Currency   string            `json:"currency"`
}

// GalleryResponse is the JSON rendering of the loaded gallery.
type GalleryResponse struct {
	Tiles []model.Tile `json:"tiles"`
	Next  int          `json:"next"`
}

func newItemAPIEndpoint(s *Service) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		req := request.(*itemRequest)
		sess, err := s.session(ctx)
		if err != nil {
			return nil, err
		}
		v, err := s.items.Load(ctx, sess.Gateway, req.id)
		if err != nil {
			return nil, notice("read the item", err)
		}
		if !v.Exists {
			return nil, existenceError(v.ID)
		}
		resp := ItemResponse{
			ID:        v.ID,
			Name:      v.Name(),
			Available: v.Available,
			Currency:  v.Currency,
		}
		if v.Owner != nil {
			resp.Owner = v.Owner.Hex()
		}
		if v.Metadata != nil {
			resp.Image = s.renderer.presenter.ImageURL(v.Metadata.Image)
			resp.Attributes = v.Metadata.Attributes
		}
		if v.Price != nil {
			resp.Price = v.Price.String()
		}
		return resp, nil
	}
}

func newStatsAPIEndpoint(s *Service) endpoint.Endpoint {
	return func(ctx context.Context, _ interface{}) (interface{}, error) {
		if _, err := s.session(ctx); err != nil {
			return nil, err
		}
		stats, ok := s.freshStats(ctx)
		if !ok {
			return nil, errNotReady
		}
		return stats, nil
	}
}

func newGalleryAPIEndpoint(s *Service) endpoint.Endpoint {
	return func(ctx context.Context, _ interface{}) (interface{}, error) {
		sess, err := s.session(ctx)
		if err != nil {
			return nil, err
		}
		resp := GalleryResponse{Tiles: []model.Tile{}}
		if sess.Loader != nil {
			resp.Tiles = append(resp.Tiles, sess.Loader.Tiles()...)
			resp.Next = sess.Loader.Next()
		}
		return resp, nil
	}
}
