// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
)

const (
	// TypeLabel is for labeling metrics; if there is a single metric for
	// successful operations, the typeLabel and corresponding type can be used
	// when incrementing the metric.
	TypeLabel = "type"
	LoadType  = "load"
	SaveType  = "save"
	ClearType = "clear"
	PingType  = "ping"

	// OutcomeLabel splits operation metrics by result.
	OutcomeLabel   = "outcome"
	SuccessOutcome = "success"
	FailureOutcome = "failure"
	QuotaOutcome   = "quota"
)

// S is a namespaced blob store. Each namespace holds a single opaque value,
// the same shape a browser's local storage offers a web page.
type S interface {
	// Load returns the blob stored under namespace or ErrNotFound.
	Load(ctx context.Context, namespace string) ([]byte, error)

	// Save replaces the blob stored under namespace. Implementations return
	// an error matching ErrQuotaExceeded when the blob does not fit.
	Save(ctx context.Context, namespace string, data []byte) error

	// Clear removes the namespace. Clearing a missing namespace is not an error.
	Clear(ctx context.Context, namespace string) error
}

// Pinger is implemented by stores backed by a remote database.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Quota bounds the size of a single blob. A zero MaxBytes means unbounded.
type Quota struct {
	MaxBytes int
}

// Check returns a QuotaExceededError when data does not fit the quota.
func (q Quota) Check(namespace string, data []byte) error {
	if q.MaxBytes > 0 && len(data) > q.MaxBytes {
		return QuotaExceededError{Namespace: namespace, Size: len(data), Limit: q.MaxBytes}
	}
	return nil
}
