// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned by Load when the namespace holds no value.
	ErrNotFound = errors.New("namespace not found")

	// ErrQuotaExceeded is matched by every QuotaExceededError.
	ErrQuotaExceeded = errors.New("store quota exceeded")
)

// QuotaExceededError reports a blob that the backend refused because of its size.
type QuotaExceededError struct {
	Namespace string
	Size      int

	// Limit is zero when the backend does not expose its limit.
	Limit int

	// Err is the backend error, if any.
	Err error
}

func (e QuotaExceededError) Error() string {
	if e.Limit > 0 {
		return fmt.Sprintf("namespace %q: blob of %d bytes exceeds the %d byte quota", e.Namespace, e.Size, e.Limit)
	}
	if e.Err != nil {
		return fmt.Sprintf("namespace %q: blob of %d bytes rejected: %v", e.Namespace, e.Size, e.Err)
	}
	return fmt.Sprintf("namespace %q: blob of %d bytes rejected", e.Namespace, e.Size)
}

func (e QuotaExceededError) Is(target error) bool {
	return target == ErrQuotaExceeded
}

func (e QuotaExceededError) Unwrap() error {
	return e.Err
}

// OperationError decorates backend failures with the operation and namespace.
type OperationError struct {
	Operation string
	Namespace string
	Err       error
}

func (e OperationError) Error() string {
	return fmt.Sprintf("%s %q: %v", e.Operation, e.Namespace, e.Err)
}

func (e OperationError) Unwrap() error {
	return e.Err
}
