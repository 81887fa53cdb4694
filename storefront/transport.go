// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package storefront

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"

	kithttp "github.com/go-kit/kit/transport/http"
	"github.com/gorilla/mux"
	"github.com/spf13/cast"
	"github.com/xmidt-org/sallust"
	"github.com/xmidt-org/vitrine/item"
	"github.com/xmidt-org/vitrine/session"
	"github.com/xmidt-org/vitrine/view"
	"go.uber.org/zap"
)

// request URL path keys
const (
	idVarKey = "id"
)

// htmx request and response headers
const (
	hxRequestHeader        = "HX-Request"
	hxCurrentURLHeader     = "HX-Current-URL"
	hxHistoryRestoreHeader = "HX-History-Restore-Request"
	hxPushURLHeader        = "HX-Push-Url"
	hxRetargetHeader       = "HX-Retarget"
	hxReswapHeader         = "HX-Reswap"
	hxTriggerHeader        = "HX-Trigger"

	noticeHeader = "X-Vitrine-Notice"
)

// noticeTarget is the element notices are appended to.
const noticeTarget = "#notices"

// statsChangedEvent asks the page header to refresh.
const statsChangedEvent = "stats-changed"

var (
	errMissingField   = errors.New("required field is missing")
	errInvalidChainID = errors.New("invalid chain id")
)

type contextKey int

const htmxKey contextKey = iota

// Transition names a view change.
type Transition string

const (
	SelectTransition Transition = "select"
	SearchTransition Transition = "search"
	BackTransition   Transition = "back"
	NextTransition   Transition = "next"
	PrevTransition   Transition = "prev"
)

type pageRequest struct {
	state view.State

	// restore is set when the browser asks for a history entry it no
	// longer has cached.
	restore bool
	url     *url.URL
}

type transitionRequest struct {
	transition Transition
	id         int
	current    view.State
}

type itemRequest struct {
	id int
}

type sendRequest struct {
	id int
	to string
}

type connectRequest struct {
	session.ConnectRequest
	current view.State
}

type priceRequest struct {
	amount string
}

// Admin requests keep their raw form values. They are parsed after the
// admin gate so visitors only ever see a 404.
type royaltyRequest struct {
	receiver   string
	percentage string
}

type airdropRequest struct {
	tokenID   string
	recipient string
}

// fragment is a rendered response.
type fragment struct {
	template string
	data     interface{}

	// pushURL is sent as HX-Push-Url when set.
	pushURL string

	// statsChanged triggers a header refresh on the client.
	statsChanged bool

	// empty answers 204 without a body.
	empty bool
}

// requestLogger attaches a request scoped logger and the htmx flag to the context.
func requestLogger(logger *zap.Logger) kithttp.RequestFunc {
	return func(ctx context.Context, r *http.Request) context.Context {
		htmx := r.Header.Get(hxRequestHeader) == "true"
		ctx = sallust.With(ctx, logger.With(
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Bool("htmx", htmx),
		))
		return context.WithValue(ctx, htmxKey, htmx)
	}
}

func isHTMX(ctx context.Context) bool {
	htmx, _ := ctx.Value(htmxKey).(bool)
	return htmx
}

func decodePageRequest(_ context.Context, r *http.Request) (interface{}, error) {
	return &pageRequest{
		state:   view.Parse(r.URL),
		restore: r.Header.Get(hxHistoryRestoreHeader) == "true",
		url:     r.URL,
	}, nil
}

func decodeEmptyRequest(context.Context, *http.Request) (interface{}, error) {
	return nil, nil
}

func decodeCurrentState(_ context.Context, r *http.Request) (interface{}, error) {
	s := currentState(r)
	return &s, nil
}

// currentState reads the view state the client is showing. htmx sends the
// page URL with every request.
func currentState(r *http.Request) view.State {
	raw := r.Header.Get(hxCurrentURLHeader)
	if raw == "" {
		return view.State{}
	}
	u, err := url.Parse(raw)
	if err != nil {
		return view.State{}
	}
	return view.Parse(u)
}

func decodeTransitionRequest(t Transition) kithttp.DecodeRequestFunc {
	return func(_ context.Context, r *http.Request) (interface{}, error) {
		req := &transitionRequest{transition: t, current: currentState(r)}
		var err error
		switch t {
		case SearchTransition:
			req.id, err = item.ParseID(r.URL.Query().Get(view.IDParam))
		case SelectTransition:
			req.id, err = pathID(r)
		case NextTransition, PrevTransition:
			req.id, err = pathID(r)
			req.current = view.Item(req.id)
		}
		if err != nil {
			return nil, err
		}
		return req, nil
	}
}

func pathID(r *http.Request) (int, error) {
	raw, ok := mux.Vars(r)[idVarKey]
	if !ok {
		return 0, errMissingField
	}
	return item.ParseID(raw)
}

func decodeItemRequest(_ context.Context, r *http.Request) (interface{}, error) {
	id, err := pathID(r)
	if err != nil {
		return nil, err
	}
	return &itemRequest{id: id}, nil
}

func decodeSendRequest(_ context.Context, r *http.Request) (interface{}, error) {
	id, err := pathID(r)
	if err != nil {
		return nil, err
	}
	return &sendRequest{id: id, to: formValue(r, "to")}, nil
}

func decodeConnectRequest(_ context.Context, r *http.Request) (interface{}, error) {
	address := formValue(r, "address")
	if address == "" {
		return nil, session.ErrInvalidAccount
	}
	var chainID uint64
	if raw := formValue(r, "chainId"); raw != "" {
		// wallets report chain ids in hex
		id, err := cast.ToUint64E(raw)
		if err != nil {
			return nil, errInvalidChainID
		}
		chainID = id
	}
	return &connectRequest{
		ConnectRequest: session.ConnectRequest{
			Address:    address,
			Passphrase: r.PostFormValue("passphrase"),
			ChainID:    chainID,
		},
		current: currentState(r),
	}, nil
}

func decodePriceRequest(_ context.Context, r *http.Request) (interface{}, error) {
	return &priceRequest{amount: formValue(r, "price")}, nil
}

func decodeRoyaltyRequest(_ context.Context, r *http.Request) (interface{}, error) {
	return &royaltyRequest{
		receiver:   formValue(r, "receiver"),
		percentage: formValue(r, "percentage"),
	}, nil
}

func decodeAirdropRequest(_ context.Context, r *http.Request) (interface{}, error) {
	return &airdropRequest{
		tokenID:   formValue(r, "tokenId"),
		recipient: formValue(r, "recipient"),
	}, nil
}

func formValue(r *http.Request, key string) string {
	return strings.TrimSpace(r.FormValue(key))
}

// encodeFragment renders fragments with htmx response headers.
func encodeFragment(renderer *Renderer) kithttp.EncodeResponseFunc {
	return func(ctx context.Context, w http.ResponseWriter, response interface{}) error {
		f, ok := response.(*fragment)
		if !ok {
			return ErrCasting
		}
		if f.pushURL != "" {
			w.Header().Set(hxPushURLHeader, f.pushURL)
		}
		if f.statsChanged {
			w.Header().Set(hxTriggerHeader, statsChangedEvent)
		}
		if f.empty {
			w.WriteHeader(http.StatusNoContent)
			return nil
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		return renderer.Render(w, f.template, f.data)
	}
}

func encodeJSON(_ context.Context, w http.ResponseWriter, response interface{}) error {
	data, err := json.Marshal(response)
	if err != nil {
		return err
	}
	w.Header().Set("Content-Type", "application/json")
	_, err = w.Write(data)
	return err
}

func headersOf(err error, w http.ResponseWriter) int {
	if headerer, ok := err.(kithttp.Headerer); ok {
		for k, values := range headerer.Headers() {
			for _, v := range values {
				w.Header().Add(k, v)
			}
		}
	}
	code := http.StatusInternalServerError
	if sc, ok := err.(kithttp.StatusCoder); ok {
		code = sc.StatusCode()
	}
	return code
}

// encodeNotice shows errors as notices. htmx requests get a 200 swapped
// into the notice area so the rest of the page stays in place.
func encodeNotice(renderer *Renderer) kithttp.ErrorEncoder {
	return func(ctx context.Context, err error, w http.ResponseWriter) {
		err = notice("complete the request", err)
		code := headersOf(err, w)
		sallust.Get(ctx).Info("request failed", zap.Int("code", code), zap.Error(err))

		if !isHTMX(ctx) {
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			w.WriteHeader(code)
			_, _ = w.Write([]byte(err.Error()))
			return
		}

		w.Header().Set(hxRetargetHeader, noticeTarget)
		w.Header().Set(hxReswapHeader, "beforeend")
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_ = renderer.Render(w, "notice", Notice{Level: "error", Message: err.Error()})
	}
}

type jsonError struct {
	Message string `json:"message"`
}

func encodeJSONError(ctx context.Context, err error, w http.ResponseWriter) {
	err = notice("read the ledger", err)
	code := headersOf(err, w)
	sallust.Get(ctx).Info("api request failed", zap.Int("code", code), zap.Error(err))

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	data, _ := json.Marshal(jsonError{Message: err.Error()})
	_, _ = w.Write(data)
}
