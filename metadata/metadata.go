// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package metadata

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"html/template"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/xmidt-org/vitrine/model"
	"github.com/yuin/goldmark"
	"go.uber.org/zap"
)

const (
	defaultGateway  = "https://ipfs.io/ipfs/"
	defaultTimeout  = 10 * time.Second
	defaultMaxBytes = 1 << 20

	dataScheme = "data:"
	ipfsScheme = "ipfs://"
)

var (
	ErrUnsupportedURI = errors.New("unsupported metadata uri")
	ErrMalformedURI   = errors.New("malformed data uri")
	ErrTooLarge       = errors.New("metadata document too large")
	ErrFetch          = errors.New("fetching metadata failed")
)

// Config is the metadata section of the configuration.
type Config struct {
	// IPFSGateway replaces the ipfs:// scheme. Defaults to https://ipfs.io/ipfs/.
	IPFSGateway string

	// Timeout bounds a single remote fetch.
	Timeout time.Duration

	// MaxBytes bounds a single metadata document.
	MaxBytes int64
}

// Resolver turns token URIs into sanitized metadata.
type Resolver struct {
	client   *http.Client
	gateway  string
	maxBytes int64
	markdown goldmark.Markdown
	ugc      *bluemonday.Policy
	strict   *bluemonday.Policy
	logger   *zap.Logger
}

// NewResolver builds a Resolver. A nil client uses one with config.Timeout.
func NewResolver(config Config, client *http.Client, logger *zap.Logger) *Resolver {
	if config.IPFSGateway == "" {
		config.IPFSGateway = defaultGateway
	}
	if !strings.HasSuffix(config.IPFSGateway, "/") {
		config.IPFSGateway += "/"
	}
	if config.Timeout <= 0 {
		config.Timeout = defaultTimeout
	}
	if config.MaxBytes <= 0 {
		config.MaxBytes = defaultMaxBytes
	}
	if client == nil {
		client = &http.Client{Timeout: config.Timeout}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{
		client:   client,
		gateway:  config.IPFSGateway,
		maxBytes: config.MaxBytes,
		markdown: goldmark.New(),
		ugc:      bluemonday.UGCPolicy(),
		strict:   bluemonday.StrictPolicy(),
		logger:   logger,
	}
}

// Resolve reads the document uri points at and returns its sanitized metadata.
func (r *Resolver) Resolve(ctx context.Context, uri string) (model.Metadata, error) {
	var (
		data []byte
		err  error
	)
	switch {
	case strings.HasPrefix(uri, dataScheme):
		data, err = decodeDataURI(uri)
	case strings.HasPrefix(uri, "https://"), strings.HasPrefix(uri, "http://"), strings.HasPrefix(uri, ipfsScheme):
		data, err = r.fetch(ctx, r.gatewayURL(uri))
	default:
		err = fmt.Errorf("%w: %.32q", ErrUnsupportedURI, uri)
	}
	if err != nil {
		return model.Metadata{}, err
	}
	return r.Decode(data)
}

// Decode parses a metadata document and sanitizes its display fields.
func (r *Resolver) Decode(data []byte) (model.Metadata, error) {
	var m model.Metadata
	if err := json.Unmarshal(data, &m); err != nil {
		return model.Metadata{}, fmt.Errorf("decoding metadata: %w", err)
	}
	m.Name = strings.TrimSpace(r.plain(m.Name))
	m.Image = r.ImageURL(m.Image)
	for i := range m.Attributes {
		m.Attributes[i].TraitType = r.plain(m.Attributes[i].TraitType)
		if s, ok := m.Attributes[i].Value.(string); ok {
			m.Attributes[i].Value = r.plain(s)
		}
	}
	return m, nil
}

// plain strips markup and leaves text for the templates to escape.
func (r *Resolver) plain(s string) string {
	return html.UnescapeString(r.strict.Sanitize(s))
}

// DescriptionHTML renders a markdown description to sanitized HTML.
func (r *Resolver) DescriptionHTML(description string) template.HTML {
	if description == "" {
		return ""
	}
	var buf bytes.Buffer
	if err := r.markdown.Convert([]byte(description), &buf); err != nil {
		return template.HTML(r.strict.Sanitize(description))
	}
	return template.HTML(r.ugc.SanitizeBytes(buf.Bytes()))
}

// ImageURL returns a URL safe to place in an img src, or "" when raw
// cannot be displayed.
func (r *Resolver) ImageURL(raw string) string {
	raw = strings.TrimSpace(raw)
	switch {
	case raw == "":
		return ""
	case strings.HasPrefix(raw, "data:image/"):
		return raw
	case strings.HasPrefix(raw, ipfsScheme):
		return r.gatewayURL(raw)
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" {
		return ""
	}
	return u.String()
}

func (r *Resolver) gatewayURL(uri string) string {
	if rest, ok := strings.CutPrefix(uri, ipfsScheme); ok {
		return r.gateway + strings.TrimPrefix(rest, "ipfs/")
	}
	return uri
}

func (r *Resolver) fetch(ctx context.Context, target string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	req.Header.Set("Accept", "application/json")
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s returned %d", ErrFetch, target, resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, r.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	if int64(len(data)) > r.maxBytes {
		return nil, ErrTooLarge
	}
	r.logger.Debug("fetched metadata", zap.String("url", target), zap.Int("size", len(data)))
	return data, nil
}

// decodeDataURI returns the payload of a base64 or percent-encoded data URI.
func decodeDataURI(uri string) ([]byte, error) {
	header, payload, ok := strings.Cut(strings.TrimPrefix(uri, dataScheme), ",")
	if !ok {
		return nil, ErrMalformedURI
	}
	if strings.HasSuffix(header, ";base64") {
		data, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			data, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(payload, "="))
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedURI, err)
		}
		return data, nil
	}
	data, err := url.PathUnescape(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedURI, err)
	}
	return []byte(data), nil
}
