// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package storefront

import (
	"net/http"

	"github.com/go-kit/kit/endpoint"
	kithttp "github.com/go-kit/kit/transport/http"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// Handlers are the storefront's HTTP handlers.
type Handlers struct {
	Page    http.Handler
	Header  http.Handler
	Batch   http.Handler
	Gallery http.Handler
	Select  http.Handler
	Next    http.Handler
	Prev    http.Handler
	Search  http.Handler

	Buy  http.Handler
	Send http.Handler

	Connect    http.Handler
	Disconnect http.Handler

	AdminPanel    http.Handler
	AdminPrice    http.Handler
	AdminRoyalty  http.Handler
	AdminAirdrop  http.Handler
	AdminWithdraw http.Handler

	APIItem    http.Handler
	APIStats   http.Handler
	APIGallery http.Handler
}

// NewHandlers builds a go-kit server per route.
func NewHandlers(s *Service, logger *zap.Logger) *Handlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	html := func(e endpoint.Endpoint, dec kithttp.DecodeRequestFunc) http.Handler {
		return kithttp.NewServer(
			e,
			dec,
			encodeFragment(s.renderer),
			kithttp.ServerBefore(requestLogger(logger)),
			kithttp.ServerErrorEncoder(encodeNotice(s.renderer)),
		)
	}
	api := func(e endpoint.Endpoint, dec kithttp.DecodeRequestFunc) http.Handler {
		return kithttp.NewServer(
			e,
			dec,
			encodeJSON,
			kithttp.ServerBefore(requestLogger(logger)),
			kithttp.ServerErrorEncoder(encodeJSONError),
		)
	}
	transition := newTransitionEndpoint(s)

	return &Handlers{
		Page:    html(newPageEndpoint(s), decodePageRequest),
		Header:  html(newHeaderEndpoint(s), decodeEmptyRequest),
		Batch:   html(newBatchEndpoint(s), decodeEmptyRequest),
		Gallery: html(transition, decodeTransitionRequest(BackTransition)),
		Select:  html(transition, decodeTransitionRequest(SelectTransition)),
		Next:    html(transition, decodeTransitionRequest(NextTransition)),
		Prev:    html(transition, decodeTransitionRequest(PrevTransition)),
		Search:  html(transition, decodeTransitionRequest(SearchTransition)),

		Buy:  html(newBuyEndpoint(s), decodeItemRequest),
		Send: html(newSendEndpoint(s), decodeSendRequest),

		Connect:    html(newConnectEndpoint(s), decodeConnectRequest),
		Disconnect: html(newDisconnectEndpoint(s), decodeCurrentState),

		AdminPanel:    html(newAdminPanelEndpoint(s), decodeEmptyRequest),
		AdminPrice:    html(newSetPriceEndpoint(s), decodePriceRequest),
		AdminRoyalty:  html(newSetRoyaltyEndpoint(s), decodeRoyaltyRequest),
		AdminAirdrop:  html(newAirdropEndpoint(s), decodeAirdropRequest),
		AdminWithdraw: html(newWithdrawEndpoint(s), decodeEmptyRequest),

		APIItem:    api(newItemAPIEndpoint(s), decodeItemRequest),
		APIStats:   api(newStatsAPIEndpoint(s), decodeEmptyRequest),
		APIGallery: api(newGalleryAPIEndpoint(s), decodeEmptyRequest),
	}
}

// Register mounts the handlers on r.
func (h *Handlers) Register(r *mux.Router) {
	r.Handle("/", h.Page).Methods(http.MethodGet)
	r.Handle("/header", h.Header).Methods(http.MethodGet)
	r.Handle("/gallery/batch", h.Batch).Methods(http.MethodGet)
	r.Handle("/view/gallery", h.Gallery).Methods(http.MethodGet)
	r.Handle("/view/items/{id}", h.Select).Methods(http.MethodGet)
	r.Handle("/view/items/{id}/next", h.Next).Methods(http.MethodGet)
	r.Handle("/view/items/{id}/prev", h.Prev).Methods(http.MethodGet)
	r.Handle("/search", h.Search).Methods(http.MethodGet)

	r.Handle("/items/{id}/buy", h.Buy).Methods(http.MethodPost)
	r.Handle("/items/{id}/send", h.Send).Methods(http.MethodPost)

	r.Handle("/wallet/connect", h.Connect).Methods(http.MethodPost)
	r.Handle("/wallet/disconnect", h.Disconnect).Methods(http.MethodPost)

	r.Handle("/admin", h.AdminPanel).Methods(http.MethodGet)
	r.Handle("/admin/price", h.AdminPrice).Methods(http.MethodPost)
	r.Handle("/admin/royalty", h.AdminRoyalty).Methods(http.MethodPost)
	r.Handle("/admin/airdrop", h.AdminAirdrop).Methods(http.MethodPost)
	r.Handle("/admin/withdraw", h.AdminWithdraw).Methods(http.MethodPost)

	api := r.PathPrefix("/api/v1").Subrouter()
	api.Handle("/items/{id}", h.APIItem).Methods(http.MethodGet)
	api.Handle("/stats", h.APIStats).Methods(http.MethodGet)
	api.Handle("/gallery", h.APIGallery).Methods(http.MethodGet)
}
