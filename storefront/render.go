// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package storefront

import (
	"bytes"
	"embed"
	"html/template"
	"io"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/xmidt-org/vitrine/model"
	"github.com/xmidt-org/vitrine/network"
	"github.com/xmidt-org/vitrine/session"
	"github.com/xmidt-org/vitrine/view"
)

//go:embed templates/*.html
var templateFS embed.FS

const placeholderImage template.URL = "data:image/svg+xml;utf8," +
	"%3Csvg xmlns='http://www.w3.org/2000/svg' viewBox='0 0 100 100'%3E" +
	"%3Crect width='100' height='100' fill='%23eee'/%3E" +
	"%3Ctext x='50' y='58' font-size='30' text-anchor='middle' fill='%23999'%3E%3F%3C/text%3E%3C/svg%3E"

// Presenter prepares metadata for display. ImageURL returns only URLs that
// are safe in an img src, or "".
type Presenter interface {
	DescriptionHTML(description string) template.HTML
	ImageURL(raw string) string
}

// Wallet is the wallet bar.
type Wallet struct {
	Connected bool
	Account   string
	Short     string
	Admin     bool
	Network   network.Network
	Accounts  []common.Address
	Networks  []network.Network
}

// Header is the stats shown in the page header.
type Header struct {
	TotalSupply string
	Price       string
	Currency    string
	Ready       bool
}

// ItemPage is the single item view.
type ItemPage struct {
	model.ItemView
	Title       string
	Image       template.URL
	Description template.HTML
	Attributes  []model.Attribute
	OwnerShort  string
	PriceText   string
	Owned       bool
	Connected   bool
	Prev        int
	Next        int

	// Flash is a confirmation shown after a write.
	Flash string
}

// GalleryPage is the gallery view, or one appended batch of it.
type GalleryPage struct {
	Tiles []model.Tile
	Done  bool

	// Retry asks the sentinel to try again shortly. It is set while the
	// ledger connection is still being established.
	Retry bool
}

// AdminPage is the admin panel.
type AdminPage struct {
	Currency   string
	Stats      model.Stats
	Price      string
	Balance    string
	Supply     string
	Receiver   string
	Percentage float64
	Flash      string
}

// Page is a full document.
type Page struct {
	Title   string
	Header  Header
	Wallet  Wallet
	State   view.State
	Item    *ItemPage
	Gallery *GalleryPage
	Notices []Notice
}

// Notice is a message for the visitor.
type Notice struct {
	Level   string
	Message string
}

// Renderer executes the storefront templates.
type Renderer struct {
	templates *template.Template
	presenter Presenter
}

// NewRenderer parses the embedded templates.
func NewRenderer(p Presenter) (*Renderer, error) {
	t, err := template.New("storefront").Funcs(template.FuncMap{
		"ether": model.FormatEther,
		"short": session.Shorten,
		"image": func(raw string) template.URL {
			if u := p.ImageURL(raw); u != "" {
				return template.URL(u)
			}
			return placeholderImage
		},
	}).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}
	return &Renderer{templates: t, presenter: p}, nil
}

// Render writes the named template.
func (r *Renderer) Render(w io.Writer, name string, data interface{}) error {
	var buf bytes.Buffer
	if err := r.templates.ExecuteTemplate(&buf, name, data); err != nil {
		return err
	}
	_, err := buf.WriteTo(w)
	return err
}

// itemPage builds the single item view for v as seen by the session.
func (r *Renderer) itemPage(v model.ItemView, s *session.Session) *ItemPage {
	p := &ItemPage{
		ItemView:  v,
		Title:     v.Name(),
		Image:     placeholderImage,
		PriceText: model.FormatEther(v.Price),
		Connected: s != nil && s.Connected(),
		Prev:      max(v.ID-1, model.MinItemID),
		Next:      min(v.ID+1, model.MaxItemID),
	}
	if v.Metadata != nil {
		if u := r.presenter.ImageURL(v.Metadata.Image); u != "" {
			p.Image = template.URL(u)
		}
		p.Description = r.presenter.DescriptionHTML(v.Metadata.Description)
		p.Attributes = v.Metadata.Attributes
	}
	if v.Owner != nil {
		p.OwnerShort = session.Shorten(v.Owner.Hex())
		p.Owned = p.Connected && *s.Account == *v.Owner
	}
	return p
}

func walletOf(s *session.Session, accounts []common.Address, networks []network.Network) Wallet {
	w := Wallet{Accounts: accounts, Networks: networks}
	if s == nil {
		return w
	}
	w.Network = s.Network
	if s.Connected() {
		w.Connected = true
		w.Account = s.Account.Hex()
		w.Short = s.ShortAccount()
		w.Admin = s.Admin
	}
	return w
}

func headerOf(stats model.Stats, ok bool, currency string) Header {
	if !ok {
		return Header{Currency: currency}
	}
	return Header{
		TotalSupply: bigString(stats.TotalSupply),
		Price:       model.FormatEther(stats.Price),
		Currency:    currency,
		Ready:       true,
	}
}

func adminPage(stats model.Stats, currency string) AdminPage {
	p := AdminPage{
		Currency: currency,
		Stats:    stats,
		Price:    model.FormatEther(stats.Price),
		Balance:  model.FormatEther(stats.Balance),
		Supply:   bigString(stats.TotalSupply),
	}
	if stats.Royalty != nil {
		p.Receiver = stats.Royalty.Receiver.Hex()
		p.Percentage = stats.Royalty.Percentage()
	}
	return p
}

func bigString(i *big.Int) string {
	if i == nil {
		return "-"
	}
	return i.String()
}
