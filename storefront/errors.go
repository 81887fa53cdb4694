// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package storefront

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/xmidt-org/vitrine/admin"
	"github.com/xmidt-org/vitrine/item"
	"github.com/xmidt-org/vitrine/ledger"
	"github.com/xmidt-org/vitrine/session"
	"github.com/xmidt-org/vitrine/view"
)

// ErrCasting indicates there was a middleware wiring mistake with the go-kit style
// encoders.
var ErrCasting = errors.New("casting error due to middleware wiring mistake")

// NoticeError is an error shown to the visitor. It carries the status code
// used outside htmx swaps.
type NoticeError struct {
	Code    int
	Message string
	Err     error
}

func (e NoticeError) Error() string {
	return e.Message
}

func (e NoticeError) Unwrap() error {
	return e.Err
}

// StatusCode implements kithttp.StatusCoder.
func (e NoticeError) StatusCode() int {
	return e.Code
}

// Headers implements kithttp.Headerer.
func (e NoticeError) Headers() http.Header {
	return http.Header{noticeHeader: {e.Message}}
}

var inputErrors = []error{
	item.ErrInvalidID,
	item.ErrInvalidRecipient,
	view.ErrInvalidID,
	session.ErrInvalidAccount,
	admin.ErrInvalidPrice,
	admin.ErrInvalidTokenID,
	admin.ErrInvalidRecipient,
	admin.ErrInvalidRoyalty,
	admin.ErrInvalidReceiver,
	errMissingField,
	errInvalidChainID,
}

// notice turns err into a NoticeError. action names the operation for
// ledger failures, which are shown verbatim after it.
func notice(action string, err error) error {
	var ne NoticeError
	if errors.As(err, &ne) {
		return ne
	}

	for _, target := range inputErrors {
		if errors.Is(err, target) {
			return NoticeError{Code: http.StatusBadRequest, Message: capitalize(err.Error()), Err: err}
		}
	}

	var switchErr ledger.SwitchNetworkError
	switch {
	case errors.As(err, &switchErr):
		return NoticeError{
			Code:    http.StatusConflict,
			Message: fmt.Sprintf("Please switch to %s", switchErr.Target),
			Err:     err,
		}
	case errors.Is(err, ledger.ErrIdentityRequired):
		return NoticeError{Code: http.StatusUnauthorized, Message: "Please connect your wallet first", Err: err}
	case errors.Is(err, session.ErrNoWallet):
		return NoticeError{Code: http.StatusServiceUnavailable, Message: "No wallet is available on this server", Err: err}
	case errors.Is(err, ledger.ErrUnknownAccount), errors.Is(err, ledger.ErrBadPassphrase):
		return NoticeError{Code: http.StatusBadRequest, Message: "Failed to connect wallet", Err: err}
	case errors.Is(err, admin.ErrNotAdmin), errors.Is(err, item.ErrNotOwner):
		return NoticeError{Code: http.StatusForbidden, Message: capitalize(err.Error()), Err: err}
	case errors.Is(err, context.DeadlineExceeded):
		return NoticeError{Code: http.StatusGatewayTimeout, Message: fmt.Sprintf("Failed to %s: timed out", action), Err: err}
	}
	return NoticeError{Code: http.StatusBadGateway, Message: fmt.Sprintf("Failed to %s: %s", action, err), Err: err}
}

func capitalize(s string) string {
	if s == "" || s[0] < 'a' || s[0] > 'z' {
		return s
	}
	return string(s[0]-'a'+'A') + s[1:]
}
