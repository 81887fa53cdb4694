// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package cache

import "time"

// Defaults for the item cache.
const (
	DefaultNamespace  = "vitrine-items"
	DefaultTTL        = 24 * time.Hour
	DefaultMaxEntries = 500
	DefaultEvictTo    = 400
)

// Config tunes the item cache. Zero values fall back to the defaults.
type Config struct {
	// Namespace is the blob the cache lives in.
	Namespace string

	// TTL is how long an entry stays readable after it was written.
	TTL time.Duration

	// MaxEntries is the ceiling that triggers eviction on the next write.
	MaxEntries int

	// EvictTo is how many entries remain after an eviction.
	EvictTo int
}

func (c Config) withDefaults() Config {
	if c.Namespace == "" {
		c.Namespace = DefaultNamespace
	}
	if c.TTL <= 0 {
		c.TTL = DefaultTTL
	}
	if c.MaxEntries <= 0 {
		c.MaxEntries = DefaultMaxEntries
	}
	if c.EvictTo <= 0 || c.EvictTo > c.MaxEntries {
		c.EvictTo = DefaultEvictTo
		if c.EvictTo > c.MaxEntries {
			c.EvictTo = c.MaxEntries
		}
	}
	return c
}
