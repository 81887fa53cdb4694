// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package gallery

const (
	DefaultBatchSize = 15
	DefaultMaxStart  = 9000
)

// Config is the gallery section of the configuration.
type Config struct {
	// BatchSize is the number of ids a single load covers.
	BatchSize int

	// MaxStart bounds the random first id of a session's gallery.
	MaxStart int
}

func (c Config) withDefaults() Config {
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.MaxStart <= 0 {
		c.MaxStart = DefaultMaxStart
	}
	return c
}
