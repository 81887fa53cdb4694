// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"errors"
	"regexp"
)

// NamespaceFormatRegexSource is the format every namespace must follow.
// Backends use namespaces as table keys and file names so the format is strict.
const NamespaceFormatRegexSource = "^[0-9a-z][0-9a-z-]{1,61}[0-9a-z]$"

var namespaceFormatRegex = regexp.MustCompile(NamespaceFormatRegexSource)

var ErrInvalidNamespace = errors.New("invalid namespace format")

// IsNamespaceValid return true if and only if all the following rules are satisfied. False otherwise.
// 1) Between 3 and 63 characters long.
// 2) Consists only of lowercase letters, numbers and hyphens (-).
// 3) Must begin and end with a letter or number.
func IsNamespaceValid(namespace string) bool {
	return namespaceFormatRegex.MatchString(namespace)
}

// ValidateNamespace returns ErrInvalidNamespace for a namespace that breaks the format.
func ValidateNamespace(namespace string) error {
	if !IsNamespaceValid(namespace) {
		return ErrInvalidNamespace
	}
	return nil
}
