// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package view

import (
	"errors"
	"net/url"
	"strconv"

	"github.com/xmidt-org/vitrine/model"
)

// IDParam is the query parameter that selects the single item view.
const IDParam = "id"

var ErrInvalidID = errors.New("invalid item id")

// Mode is the top level view.
type Mode int

const (
	Gallery Mode = iota
	SingleItem
)

func (m Mode) String() string {
	if m == SingleItem {
		return "item"
	}
	return "gallery"
}

// State is what the page shows.
type State struct {
	Mode Mode

	// ID is set in SingleItem mode.
	ID int
}

// Item returns the single item state for id.
func Item(id int) State {
	return State{Mode: SingleItem, ID: id}
}

// URL is the history entry for the state.
func (s State) URL() string {
	if s.Mode != SingleItem {
		return "/"
	}
	return "/?" + url.Values{IDParam: {strconv.Itoa(s.ID)}}.Encode()
}

// Parse derives the state from a page URL. Anything but a valid id selects
// the gallery.
func Parse(u *url.URL) State {
	if u == nil {
		return State{}
	}
	return FromQuery(u.Query())
}

// FromQuery derives the state from query parameters.
func FromQuery(q url.Values) State {
	id, err := strconv.Atoi(q.Get(IDParam))
	if err != nil || !model.ValidItemID(id) {
		return State{}
	}
	return Item(id)
}

// History records navigation entries.
type History interface {
	Push(url string)
}

// HistoryFunc adapts a function to History.
type HistoryFunc func(string)

func (f HistoryFunc) Push(u string) {
	f(u)
}

// Router moves between views and keeps history in step. A transition to
// the state already shown pushes nothing.
type Router struct {
	state   State
	history History
}

// NewRouter starts at initial. A nil history discards entries.
func NewRouter(initial State, h History) *Router {
	if h == nil {
		h = HistoryFunc(func(string) {})
	}
	return &Router{state: initial, history: h}
}

// State is the current view.
func (r *Router) State() State {
	return r.state
}

// Select shows the single item view for id.
func (r *Router) Select(id int) (State, error) {
	if !model.ValidItemID(id) {
		return r.state, ErrInvalidID
	}
	r.push(Item(id))
	return r.state, nil
}

// BackToGallery shows the gallery.
func (r *Router) BackToGallery() State {
	r.push(State{})
	return r.state
}

// PopState adopts the state of a restored history entry without pushing.
func (r *Router) PopState(entry *url.URL) State {
	r.state = Parse(entry)
	return r.state
}

// Next moves to the following item, stopping at the last one.
func (r *Router) Next() State {
	return r.step(1)
}

// Prev moves to the preceding item, stopping at the first one.
func (r *Router) Prev() State {
	return r.step(-1)
}

func (r *Router) step(delta int) State {
	if r.state.Mode != SingleItem {
		return r.state
	}
	id := min(max(r.state.ID+delta, model.MinItemID), model.MaxItemID)
	r.push(Item(id))
	return r.state
}

func (r *Router) push(next State) {
	if next == r.state {
		return
	}
	r.state = next
	r.history.Push(next.URL())
}
